package fetch

import (
	"context"
	stdErrors "errors"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/bookmeta/internal/errors"
	"github.com/lepinkainen/bookmeta/internal/provider"
)

type stubAdapter struct {
	id       provider.ID
	title    string
	err      error
	panicMsg string
	delay    time.Duration
	block    bool
	previews int
	calls    atomic.Int32
	expanded atomic.Int32
}

func (s *stubAdapter) ID() provider.ID { return s.id }

func (s *stubAdapter) SearchPreviews(ctx context.Context, _ provider.Query) ([]provider.Metadata, error) {
	s.calls.Add(1)
	if err := s.behave(ctx); err != nil {
		return nil, err
	}
	out := make([]provider.Metadata, s.previews)
	for i := range out {
		out[i] = provider.Metadata{Provider: s.id, ProviderBookID: strconv.Itoa(i + 1)}
	}
	return out, nil
}

func (s *stubAdapter) FetchDetails(_ context.Context, previews []provider.Metadata) ([]provider.Metadata, error) {
	s.expanded.Add(int32(len(previews)))
	return previews, nil
}

func (s *stubAdapter) FetchTop(ctx context.Context, _ provider.Query) (*provider.Metadata, error) {
	s.calls.Add(1)
	if err := s.behave(ctx); err != nil {
		return nil, err
	}
	if s.title == "" {
		return nil, nil
	}
	return &provider.Metadata{Provider: s.id, ProviderBookID: "1", Title: provider.Text(s.title)}, nil
}

func (s *stubAdapter) behave(ctx context.Context) error {
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.err
}

func TestFetchAllIsolatesFailures(t *testing.T) {
	good := &stubAdapter{id: provider.GoodReads, title: "Dune"}
	failing := &stubAdapter{id: provider.GoogleBooks, err: stdErrors.New("503")}
	panicking := &stubAdapter{id: provider.Hardcover, panicMsg: "nil map"}
	empty := &stubAdapter{id: provider.OpenLibrary}
	o := New(provider.NewRegistry(good, failing, panicking, empty))

	results, err := o.FetchAll(context.Background(), provider.Query{Title: "Dune"},
		[]provider.ID{provider.GoodReads, provider.GoogleBooks, provider.Hardcover, provider.OpenLibrary})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "Dune", *results[provider.GoodReads].Title)
	assert.EqualValues(t, 1, failing.calls.Load())
	assert.EqualValues(t, 1, panicking.calls.Load())
}

func TestFetchAllKeysByProviderNotCompletionOrder(t *testing.T) {
	slow := &stubAdapter{id: provider.GoodReads, title: "slow", delay: 30 * time.Millisecond}
	fast := &stubAdapter{id: provider.GoogleBooks, title: "fast"}
	o := New(provider.NewRegistry(slow, fast))

	results, err := o.FetchAll(context.Background(), provider.Query{}, []provider.ID{provider.GoodReads, provider.GoogleBooks})
	require.NoError(t, err)

	assert.Equal(t, "slow", *results[provider.GoodReads].Title)
	assert.Equal(t, "fast", *results[provider.GoogleBooks].Title)
}

func TestFetchAllRejectsUnregisteredBeforeFetching(t *testing.T) {
	good := &stubAdapter{id: provider.GoodReads, title: "Dune"}
	o := New(provider.NewRegistry(good))

	_, err := o.FetchAll(context.Background(), provider.Query{}, []provider.ID{provider.GoodReads, provider.Amazon})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrProviderNotRegistered)
	assert.Zero(t, good.calls.Load())
}

func TestFetchAllDeduplicatesProviders(t *testing.T) {
	good := &stubAdapter{id: provider.GoodReads, title: "Dune"}
	o := New(provider.NewRegistry(good))

	results, err := o.FetchAll(context.Background(), provider.Query{}, []provider.ID{provider.GoodReads, provider.GoodReads})
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.EqualValues(t, 1, good.calls.Load())
}

func TestFetchAllTimeout(t *testing.T) {
	stuck := &stubAdapter{id: provider.GoodReads, block: true}
	fine := &stubAdapter{id: provider.OpenLibrary, title: "Dune"}
	o := New(provider.NewRegistry(stuck, fine), WithTimeout(20*time.Millisecond))

	start := time.Now()
	results, err := o.FetchAll(context.Background(), provider.Query{}, []provider.ID{provider.GoodReads, provider.OpenLibrary})
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.NotContains(t, results, provider.GoodReads)
	assert.Contains(t, results, provider.OpenLibrary)
}

func TestSearchInterleaved(t *testing.T) {
	gr := &stubAdapter{id: provider.GoodReads, previews: 5}
	gb := &stubAdapter{id: provider.GoogleBooks, previews: 2}
	broken := &stubAdapter{id: provider.Hardcover, err: stdErrors.New("down")}
	o := New(provider.NewRegistry(gr, gb, broken))

	got, err := o.SearchInterleaved(context.Background(), provider.Query{Title: "Dune"},
		[]provider.ID{provider.GoodReads, provider.Hardcover, provider.GoogleBooks})
	require.NoError(t, err)

	var order []string
	for _, md := range got {
		order = append(order, string(md.Provider)+":"+md.ProviderBookID)
	}
	assert.Equal(t, []string{
		"GoodReads:1", "GoogleBooks:1",
		"GoodReads:2", "GoogleBooks:2",
		"GoodReads:3",
	}, order)
	assert.EqualValues(t, 3, gr.expanded.Load())
}

func TestSearchInterleavedUnregistered(t *testing.T) {
	o := New(provider.NewRegistry())

	_, err := o.SearchInterleaved(context.Background(), provider.Query{}, []provider.ID{provider.Amazon})
	assert.True(t, errors.IsProviderNotRegistered(err))
}
