package cover

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"net/http"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/bookmeta/internal/httpclient"
	"github.com/lepinkainen/bookmeta/internal/testutil"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 120, B: 40, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return buf.Bytes()
}

func decodeFile(t *testing.T, path string) image.Image {
	t.Helper()
	img, err := imaging.Open(path)
	require.NoError(t, err)
	return img
}

func TestFromBytesResizesLargeImages(t *testing.T) {
	svc := New(t.TempDir())

	path, err := svc.FromBytes(7, pngBytes(t, 1000, 1400))
	require.NoError(t, err)
	assert.Equal(t, svc.Path(7), path)

	img := decodeFile(t, path)
	assert.Equal(t, DefaultWidth, img.Bounds().Dx())
	assert.Equal(t, DefaultHeight, img.Bounds().Dy())
}

func TestFromBytesKeepsSmallImages(t *testing.T) {
	svc := New(t.TempDir(), WithSize(500, 500))

	path, err := svc.FromBytes(1, pngBytes(t, 100, 150))
	require.NoError(t, err)

	img := decodeFile(t, path)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 150, img.Bounds().Dy())
}

func TestFromBytesRejectsGarbage(t *testing.T) {
	svc := New(t.TempDir())

	_, err := svc.FromBytes(1, []byte("not an image"))
	require.Error(t, err)
}

func TestFromURL(t *testing.T) {
	data := pngBytes(t, 600, 900)
	server := testutil.NewIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cover.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(data)
	}))

	svc := New(t.TempDir(), WithHTTPClient(httpclient.New("cover", httpclient.WithRetryAttempts(1))))

	path, err := svc.FromURL(context.Background(), 3, server.URL+"/cover.png")
	require.NoError(t, err)
	img := decodeFile(t, path)
	assert.LessOrEqual(t, img.Bounds().Dy(), DefaultHeight)

	_, err = svc.FromURL(context.Background(), 3, server.URL+"/missing.png")
	require.Error(t, err)

	_, err = svc.FromURL(context.Background(), 3, "")
	require.Error(t, err)
}
