// Package cover turns downloaded or uploaded images into book thumbnails.
package cover

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/disintegration/imaging"

	"github.com/lepinkainen/bookmeta/internal/httpclient"
)

const (
	// DefaultWidth and DefaultHeight bound the thumbnail size.
	DefaultWidth  = 250
	DefaultHeight = 350

	thumbnailName = "cover.jpg"
	jpegQuality   = 85
)

// Service writes thumbnails below a root directory, one directory per book.
type Service struct {
	dir    string
	client *httpclient.Client
	width  int
	height int
}

// Option is a functional option for configuring the Service.
type Option func(*Service)

// WithHTTPClient sets the client used for downloads.
func WithHTTPClient(c *httpclient.Client) Option {
	return func(s *Service) {
		if c != nil {
			s.client = c
		}
	}
}

// WithSize sets the bounding box of generated thumbnails.
func WithSize(width, height int) Option {
	return func(s *Service) {
		if width > 0 && height > 0 {
			s.width, s.height = width, height
		}
	}
}

// New creates a Service writing into dir.
func New(dir string, opts ...Option) *Service {
	s := &Service{
		dir:    dir,
		client: httpclient.New("cover"),
		width:  DefaultWidth,
		height: DefaultHeight,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns where the thumbnail of a book is stored.
func (s *Service) Path(bookID int64) string {
	return filepath.Join(s.dir, strconv.FormatInt(bookID, 10), thumbnailName)
}

// FromURL downloads an image and stores it as the book's thumbnail. It
// returns the thumbnail path.
func (s *Service) FromURL(ctx context.Context, bookID int64, imageURL string) (string, error) {
	if imageURL == "" {
		return "", fmt.Errorf("cover: empty image URL")
	}
	data, err := s.client.Get(ctx, imageURL)
	if err != nil {
		return "", fmt.Errorf("failed to download cover: %w", err)
	}
	path, err := s.FromBytes(bookID, data)
	if err != nil {
		return "", err
	}
	slog.Debug("Downloaded cover", "book_id", bookID, "url", imageURL, "path", path)
	return path, nil
}

// FromBytes decodes an image and stores it as the book's thumbnail. It
// returns the thumbnail path.
func (s *Service) FromBytes(bookID int64, data []byte) (string, error) {
	return s.save(bookID, bytes.NewReader(data))
}

func (s *Service) save(bookID int64, r io.Reader) (string, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to decode cover image: %w", err)
	}

	img = s.fit(img)

	path := s.Path(bookID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create thumbnail directory: %w", err)
	}
	if err := imaging.Save(img, path, imaging.JPEGQuality(jpegQuality)); err != nil {
		return "", fmt.Errorf("failed to save thumbnail: %w", err)
	}
	return path, nil
}

// fit shrinks images larger than the bounding box and leaves smaller ones
// alone.
func (s *Service) fit(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dx() <= s.width && b.Dy() <= s.height {
		return img
	}
	return imaging.Fit(img, s.width, s.height, imaging.Lanczos)
}
