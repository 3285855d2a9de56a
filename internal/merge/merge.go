// Package merge writes resolved provider metadata into canonical records
// while honouring field locks.
package merge

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/lepinkainen/bookmeta/internal/errors"
	"github.com/lepinkainen/bookmeta/internal/metadata"
	"github.com/lepinkainen/bookmeta/internal/notify"
	"github.com/lepinkainen/bookmeta/internal/provider"
)

// Store loads and persists records. SaveRecord must write the whole record
// in one transaction.
type Store interface {
	LoadRecord(ctx context.Context, bookID int64) (*metadata.Record, error)
	SaveRecord(ctx context.Context, rec *metadata.Record) error
}

// Thumbnailer creates cover thumbnails and returns their path.
type Thumbnailer interface {
	FromURL(ctx context.Context, bookID int64, imageURL string) (string, error)
	FromBytes(bookID int64, data []byte) (string, error)
}

// RefreshFlags are the parts of the refresh options the merger needs.
type RefreshFlags struct {
	MergeCategories bool
	RefreshCovers   bool
}

// Outcome reports what a merge did.
type Outcome struct {
	Record *metadata.Record
	// NoOp is set when the master lock prevented any field update.
	NoOp bool
	// Changed names the fields whose stored value changed.
	Changed []string
}

// Updated reports whether any field changed.
func (o Outcome) Updated() bool {
	return len(o.Changed) > 0
}

// Merger applies refresh results and explicit edits to records.
type Merger struct {
	store    Store
	thumbs   Thumbnailer
	notifier notify.Notifier
	now      func() time.Time
}

// Option is a functional option for configuring the Merger.
type Option func(*Merger)

// WithThumbnailer enables cover handling.
func WithThumbnailer(t Thumbnailer) Option {
	return func(m *Merger) {
		m.thumbs = t
	}
}

// WithNotifier sets where change events go.
func WithNotifier(n notify.Notifier) Option {
	return func(m *Merger) {
		if n != nil {
			m.notifier = n
		}
	}
}

// WithClock overrides the time source used for cover stamps and award dates.
func WithClock(now func() time.Time) Option {
	return func(m *Merger) {
		if now != nil {
			m.now = now
		}
	}
}

// New creates a Merger.
func New(store Store, opts ...Option) *Merger {
	m := &Merger{
		store:    store,
		notifier: notify.LogNotifier{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ApplyRefresh merges automatically resolved metadata into a record. Lock
// instructions carried by resolved are applied first. Locked fields and
// absent values are left alone.
func (m *Merger) ApplyRefresh(ctx context.Context, bookID int64, resolved *provider.Metadata, flags RefreshFlags) (Outcome, error) {
	rec, err := m.store.LoadRecord(ctx, bookID)
	if err != nil {
		return Outcome{}, err
	}
	if resolved == nil {
		resolved = &provider.Metadata{}
	}

	locksChanged := resolved.Locks.ApplyTo(&rec.Locks)

	if rec.Locks.AllFieldsLocked {
		slog.Warn("All fields are locked, skipping metadata update", "book_id", bookID, "title", rec.DisplayTitle())
		if locksChanged {
			if err := m.store.SaveRecord(ctx, rec); err != nil {
				return Outcome{}, fmt.Errorf("saving locks: %w", err)
			}
		}
		return Outcome{Record: rec, NoOp: true}, nil
	}

	var changed []string
	for _, f := range fields {
		if f.lock != "" && rec.Locks.IsLocked(f.lock) {
			continue
		}
		if !f.present(resolved, false) {
			continue
		}
		if f.write(rec, resolved, flags) {
			changed = append(changed, f.name)
		}
	}
	if addAwards(rec, resolved.Awards, metadata.Date(m.now())) {
		changed = append(changed, "awards")
	}

	if flags.RefreshCovers && !rec.Locks.IsLocked(metadata.FieldCover) && resolved.ThumbnailURL != nil {
		if url := strings.TrimSpace(*resolved.ThumbnailURL); url != "" && m.thumbs != nil {
			if m.updateCover(ctx, rec, url) {
				changed = append(changed, string(metadata.FieldCover))
			}
		}
	}

	if len(changed) == 0 && !locksChanged {
		return Outcome{Record: rec}, nil
	}
	if err := m.store.SaveRecord(ctx, rec); err != nil {
		return Outcome{}, fmt.Errorf("saving book %d: %w", bookID, err)
	}
	if len(changed) > 0 {
		m.notifier.Notify(ctx, notify.NewEvent(notify.MetadataUpdated, rec))
	}
	return Outcome{Record: rec, Changed: changed}, nil
}

// updateCover downloads the cover. Failures are logged and leave the record
// untouched.
func (m *Merger) updateCover(ctx context.Context, rec *metadata.Record, url string) bool {
	path, err := m.thumbs.FromURL(ctx, rec.BookID, url)
	if err != nil {
		slog.Error("Failed to update cover", "book_id", rec.BookID, "url", url, "error", err)
		return false
	}
	now := m.now().UTC()
	rec.ThumbnailPath = &path
	rec.CoverUpdatedOn = &now
	return true
}

// ApplyEdit writes user supplied values. Present fields are written even
// when blank, which clears them. If any present field is locked nothing is
// written and the returned LockedFieldsError names every such field.
func (m *Merger) ApplyEdit(ctx context.Context, bookID int64, edit *provider.Metadata) (Outcome, error) {
	rec, err := m.store.LoadRecord(ctx, bookID)
	if err != nil {
		return Outcome{}, err
	}
	if rec.Locks.AllFieldsLocked {
		return Outcome{}, errors.ErrMetadataLocked
	}

	coverURL := ""
	if edit.ThumbnailURL != nil {
		coverURL = strings.TrimSpace(*edit.ThumbnailURL)
	}

	var rejected []string
	for _, f := range fields {
		if f.lock != "" && f.present(edit, true) && rec.Locks.IsLocked(f.lock) && !slices.Contains(rejected, string(f.lock)) {
			rejected = append(rejected, string(f.lock))
		}
	}
	if coverURL != "" && rec.Locks.IsLocked(metadata.FieldCover) {
		rejected = append(rejected, string(metadata.FieldCover))
	}
	if len(rejected) > 0 {
		return Outcome{}, errors.NewLockedFieldsError(rejected)
	}

	var changed []string
	for _, f := range fields {
		if f.present(edit, true) && f.write(rec, edit, RefreshFlags{}) {
			changed = append(changed, f.name)
		}
	}
	if addAwards(rec, edit.Awards, metadata.Date(m.now())) {
		changed = append(changed, "awards")
	}
	if coverURL != "" {
		if m.thumbs == nil {
			return Outcome{}, fmt.Errorf("cover updates are not configured")
		}
		path, err := m.thumbs.FromURL(ctx, bookID, coverURL)
		if err != nil {
			return Outcome{}, fmt.Errorf("updating cover: %w", err)
		}
		now := m.now().UTC()
		rec.ThumbnailPath = &path
		rec.CoverUpdatedOn = &now
		changed = append(changed, string(metadata.FieldCover))
	}
	edit.Locks.ApplyTo(&rec.Locks)

	if err := m.store.SaveRecord(ctx, rec); err != nil {
		return Outcome{}, fmt.Errorf("saving book %d: %w", bookID, err)
	}
	m.notifier.Notify(ctx, notify.NewEvent(notify.MetadataUpdated, rec))
	return Outcome{Record: rec, Changed: changed}, nil
}

// SetFieldLock locks or unlocks a single field by name. The name "all"
// toggles the master lock.
func (m *Merger) SetFieldLock(ctx context.Context, bookID int64, name string, locked bool) (*metadata.Record, error) {
	var update metadata.LockUpdate
	if strings.EqualFold(strings.TrimSpace(name), "all") {
		update.AllFieldsLocked = &locked
	} else {
		f, err := metadata.ParseLockField(name)
		if err != nil {
			return nil, err
		}
		update.Fields = map[metadata.LockField]bool{f: locked}
	}

	rec, err := m.store.LoadRecord(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if !update.ApplyTo(&rec.Locks) {
		return rec, nil
	}
	if err := m.store.SaveRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("saving locks for book %d: %w", bookID, err)
	}
	return rec, nil
}

// UploadCover stores image bytes as the book's cover.
func (m *Merger) UploadCover(ctx context.Context, bookID int64, data []byte) (*metadata.Record, error) {
	if m.thumbs == nil {
		return nil, fmt.Errorf("cover updates are not configured")
	}
	rec, err := m.store.LoadRecord(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if rec.Locks.AllFieldsLocked {
		return nil, errors.ErrMetadataLocked
	}
	if rec.Locks.IsLocked(metadata.FieldCover) {
		return nil, errors.NewLockedFieldsError([]string{string(metadata.FieldCover)})
	}

	path, err := m.thumbs.FromBytes(bookID, data)
	if err != nil {
		return nil, fmt.Errorf("creating thumbnail: %w", err)
	}
	now := m.now().UTC()
	rec.ThumbnailPath = &path
	rec.CoverUpdatedOn = &now

	if err := m.store.SaveRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("saving book %d: %w", bookID, err)
	}
	m.notifier.Notify(ctx, notify.NewEvent(notify.CoverUpdated, rec))
	return rec, nil
}
