package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordProviderCall(t *testing.T) {
	before := testutil.ToFloat64(ProviderRequests.WithLabelValues("GoodReads", OutcomeOK))

	RecordProviderCall("GoodReads", OutcomeOK, time.Now().Add(-50*time.Millisecond))

	after := testutil.ToFloat64(ProviderRequests.WithLabelValues("GoodReads", OutcomeOK))
	assert.Equal(t, before+1, after)
}

func TestRecordBook(t *testing.T) {
	before := testutil.ToFloat64(BooksRefreshed.WithLabelValues(StatusSkipped))

	RecordBook(StatusSkipped)
	RecordBook(StatusSkipped)

	assert.Equal(t, before+2, testutil.ToFloat64(BooksRefreshed.WithLabelValues(StatusSkipped)))
}

func TestWriteTextfile(t *testing.T) {
	RecordBook(StatusUpdated)
	RecordRefreshDuration(time.Now())

	path := filepath.Join(t.TempDir(), "bookmeta.prom")
	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "bookmeta_books_refreshed_total")
	assert.Contains(t, string(data), "bookmeta_refresh_duration_seconds")
}
