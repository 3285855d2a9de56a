package merge

import (
	"context"
	stdErrors "errors"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/bookmeta/internal/errors"
	"github.com/lepinkainen/bookmeta/internal/metadata"
	"github.com/lepinkainen/bookmeta/internal/notify"
	"github.com/lepinkainen/bookmeta/internal/provider"
	"github.com/lepinkainen/bookmeta/internal/store"
)

var fixedNow = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

type memStore struct {
	records map[int64]*metadata.Record
	saves   int
}

func newMemStore(recs ...*metadata.Record) *memStore {
	s := &memStore{records: map[int64]*metadata.Record{}}
	for _, r := range recs {
		s.records[r.BookID] = cloneRecord(r)
	}
	return s
}

func (s *memStore) LoadRecord(_ context.Context, bookID int64) (*metadata.Record, error) {
	r, ok := s.records[bookID]
	if !ok {
		return nil, errors.NewNotFoundError("book", bookID)
	}
	return cloneRecord(r), nil
}

func (s *memStore) SaveRecord(_ context.Context, rec *metadata.Record) error {
	s.saves++
	s.records[rec.BookID] = cloneRecord(rec)
	return nil
}

func cloneRecord(r *metadata.Record) *metadata.Record {
	c := *r
	c.Authors = slices.Clone(r.Authors)
	c.Categories = slices.Clone(r.Categories)
	c.Awards = slices.Clone(r.Awards)
	c.Locks = r.Locks.Clone()
	return &c
}

type fakeThumbs struct {
	urls  []string
	err   error
	bytes int
}

func (f *fakeThumbs) FromURL(_ context.Context, bookID int64, imageURL string) (string, error) {
	f.urls = append(f.urls, imageURL)
	if f.err != nil {
		return "", f.err
	}
	return filepath.Join("thumbs", "cover.jpg"), nil
}

func (f *fakeThumbs) FromBytes(_ int64, data []byte) (string, error) {
	f.bytes += len(data)
	if f.err != nil {
		return "", f.err
	}
	return filepath.Join("thumbs", "upload.jpg"), nil
}

func ptr[T any](v T) *T { return &v }

func newMerger(st Store, thumbs *fakeThumbs, rec *notify.Recorder) *Merger {
	return New(st,
		WithThumbnailer(thumbs),
		WithNotifier(rec),
		WithClock(func() time.Time { return fixedNow }),
	)
}

func lockedRecord(id int64, fields ...metadata.LockField) *metadata.Record {
	r := &metadata.Record{BookID: id}
	for _, f := range fields {
		r.Locks.Set(f, true)
	}
	return r
}

func TestApplyRefreshSkipsLockedFields(t *testing.T) {
	rec := lockedRecord(1, metadata.FieldTitle)
	rec.Title = ptr("Old Title")
	st := newMemStore(rec)
	events := &notify.Recorder{}
	m := newMerger(st, &fakeThumbs{}, events)

	out, err := m.ApplyRefresh(context.Background(), 1, &provider.Metadata{
		Title:     ptr("New Title"),
		Publisher: ptr("Ace"),
	}, RefreshFlags{})
	require.NoError(t, err)

	assert.Equal(t, []string{"publisher"}, out.Changed)
	stored := st.records[1]
	assert.Equal(t, "Old Title", *stored.Title)
	assert.Equal(t, "Ace", *stored.Publisher)
	assert.Len(t, events.Events(), 1)
}

func TestApplyRefreshAllFieldsLockedIsNoOp(t *testing.T) {
	rec := &metadata.Record{BookID: 1, Title: ptr("Kept")}
	rec.Locks.AllFieldsLocked = true
	st := newMemStore(rec)
	thumbs := &fakeThumbs{}
	events := &notify.Recorder{}
	m := newMerger(st, thumbs, events)

	out, err := m.ApplyRefresh(context.Background(), 1, &provider.Metadata{
		Title:        ptr("Replaced"),
		Authors:      []string{"Someone"},
		ThumbnailURL: ptr("http://example.invalid/c.jpg"),
	}, RefreshFlags{RefreshCovers: true, MergeCategories: true})
	require.NoError(t, err)

	assert.True(t, out.NoOp)
	assert.False(t, out.Updated())
	assert.Equal(t, "Kept", *st.records[1].Title)
	assert.Empty(t, st.records[1].Authors)
	assert.Nil(t, st.records[1].ThumbnailPath)
	assert.Empty(t, thumbs.urls)
	assert.Zero(t, st.saves)
	assert.Empty(t, events.Events())
}

func TestApplyRefreshAppliesLockInstructionsFirst(t *testing.T) {
	st := newMemStore(&metadata.Record{BookID: 1})
	m := newMerger(st, &fakeThumbs{}, &notify.Recorder{})

	out, err := m.ApplyRefresh(context.Background(), 1, &provider.Metadata{
		Title:       ptr("Dune"),
		Description: ptr("Spice"),
		Locks:       metadata.LockUpdate{Fields: map[metadata.LockField]bool{metadata.FieldTitle: true}},
	}, RefreshFlags{})
	require.NoError(t, err)

	assert.Equal(t, []string{"description"}, out.Changed)
	assert.Nil(t, st.records[1].Title)
	assert.True(t, st.records[1].Locks.IsLocked(metadata.FieldTitle))
}

func TestApplyRefreshMasterLockInstructionPersists(t *testing.T) {
	st := newMemStore(&metadata.Record{BookID: 1})
	m := newMerger(st, &fakeThumbs{}, &notify.Recorder{})

	out, err := m.ApplyRefresh(context.Background(), 1, &provider.Metadata{
		Title: ptr("Dune"),
		Locks: metadata.LockUpdate{AllFieldsLocked: ptr(true)},
	}, RefreshFlags{})
	require.NoError(t, err)

	assert.True(t, out.NoOp)
	assert.Equal(t, 1, st.saves)
	assert.True(t, st.records[1].Locks.AllFieldsLocked)
	assert.Nil(t, st.records[1].Title)
}

func TestApplyRefreshIgnoresBlankAndAbsentValues(t *testing.T) {
	st := newMemStore(&metadata.Record{BookID: 1, Title: ptr("Dune"), Authors: []string{"Frank Herbert"}})
	m := newMerger(st, &fakeThumbs{}, &notify.Recorder{})

	out, err := m.ApplyRefresh(context.Background(), 1, &provider.Metadata{
		Title:   ptr("   "),
		Authors: []string{" ", ""},
	}, RefreshFlags{})
	require.NoError(t, err)

	assert.False(t, out.Updated())
	assert.Zero(t, st.saves)
	assert.Equal(t, "Dune", *st.records[1].Title)
	assert.Equal(t, []string{"Frank Herbert"}, st.records[1].Authors)
}

func TestApplyRefreshCategories(t *testing.T) {
	tests := []struct {
		name     string
		merge    bool
		incoming []string
		want     []string
	}{
		{name: "replace", incoming: []string{"Drama"}, want: []string{"Drama"}},
		{name: "empty keeps existing", incoming: []string{}, want: []string{"Fiction"}},
		{name: "merge unions", merge: true, incoming: []string{"Drama", "Fiction"}, want: []string{"Fiction", "Drama"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newMemStore(&metadata.Record{BookID: 1, Categories: []string{"Fiction"}})
			m := newMerger(st, &fakeThumbs{}, &notify.Recorder{})

			_, err := m.ApplyRefresh(context.Background(), 1, &provider.Metadata{Categories: tt.incoming}, RefreshFlags{MergeCategories: tt.merge})
			require.NoError(t, err)
			assert.Equal(t, tt.want, st.records[1].Categories)
		})
	}
}

func TestApplyRefreshAwards(t *testing.T) {
	awarded := time.Date(1966, 1, 1, 0, 0, 0, 0, time.UTC)
	st := newMemStore(&metadata.Record{
		BookID: 1,
		Awards: []metadata.Award{{Name: "Nebula Award", Category: "Novel", AwardedAt: &awarded}},
	})
	m := newMerger(st, &fakeThumbs{}, &notify.Recorder{})

	_, err := m.ApplyRefresh(context.Background(), 1, &provider.Metadata{
		Awards: []metadata.Award{
			{Name: "Nebula Award", Category: "Novel", AwardedAt: &awarded},
			{Name: "Hugo Award", Category: "Novel"},
			{Name: " "},
		},
	}, RefreshFlags{})
	require.NoError(t, err)

	awards := st.records[1].Awards
	require.Len(t, awards, 2)
	assert.Equal(t, "Hugo Award", awards[1].Name)
	require.NotNil(t, awards[1].AwardedAt)
	assert.True(t, metadata.SameDay(fixedNow, *awards[1].AwardedAt))
}

func TestApplyRefreshCover(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		st := newMemStore(&metadata.Record{BookID: 1})
		thumbs := &fakeThumbs{}
		m := newMerger(st, thumbs, &notify.Recorder{})

		_, err := m.ApplyRefresh(context.Background(), 1, &provider.Metadata{ThumbnailURL: ptr("http://covers/1.jpg")}, RefreshFlags{})
		require.NoError(t, err)
		assert.Empty(t, thumbs.urls)
	})

	t.Run("locked", func(t *testing.T) {
		st := newMemStore(lockedRecord(1, metadata.FieldCover))
		thumbs := &fakeThumbs{}
		m := newMerger(st, thumbs, &notify.Recorder{})

		_, err := m.ApplyRefresh(context.Background(), 1, &provider.Metadata{ThumbnailURL: ptr("http://covers/1.jpg")}, RefreshFlags{RefreshCovers: true})
		require.NoError(t, err)
		assert.Empty(t, thumbs.urls)
	})

	t.Run("updated", func(t *testing.T) {
		st := newMemStore(&metadata.Record{BookID: 1})
		thumbs := &fakeThumbs{}
		m := newMerger(st, thumbs, &notify.Recorder{})

		out, err := m.ApplyRefresh(context.Background(), 1, &provider.Metadata{ThumbnailURL: ptr("http://covers/1.jpg")}, RefreshFlags{RefreshCovers: true})
		require.NoError(t, err)
		assert.Equal(t, []string{"cover"}, out.Changed)
		assert.Equal(t, []string{"http://covers/1.jpg"}, thumbs.urls)
		assert.Equal(t, filepath.Join("thumbs", "cover.jpg"), *st.records[1].ThumbnailPath)
		assert.True(t, fixedNow.Equal(*st.records[1].CoverUpdatedOn))
	})

	t.Run("failure is not fatal", func(t *testing.T) {
		st := newMemStore(&metadata.Record{BookID: 1})
		thumbs := &fakeThumbs{err: stdErrors.New("boom")}
		m := newMerger(st, thumbs, &notify.Recorder{})

		out, err := m.ApplyRefresh(context.Background(), 1, &provider.Metadata{
			Title:        ptr("Dune"),
			ThumbnailURL: ptr("http://covers/1.jpg"),
		}, RefreshFlags{RefreshCovers: true})
		require.NoError(t, err)
		assert.Equal(t, []string{"title"}, out.Changed)
		assert.Nil(t, st.records[1].ThumbnailPath)
	})
}

func TestApplyRefreshUnknownBook(t *testing.T) {
	m := newMerger(newMemStore(), &fakeThumbs{}, &notify.Recorder{})

	_, err := m.ApplyRefresh(context.Background(), 9, &provider.Metadata{}, RefreshFlags{})
	assert.True(t, errors.IsNotFound(err))
}

func TestApplyEditIsAllOrNothing(t *testing.T) {
	rec := lockedRecord(1, metadata.FieldTitle)
	rec.Title = ptr("Dune")
	rec.Publisher = ptr("Chilton")
	st := newMemStore(rec)
	events := &notify.Recorder{}
	m := newMerger(st, &fakeThumbs{}, events)

	_, err := m.ApplyEdit(context.Background(), 1, &provider.Metadata{
		Title:     ptr("Dune Messiah"),
		Publisher: ptr("Ace"),
	})
	require.Error(t, err)

	var lockedErr *errors.LockedFieldsError
	require.ErrorAs(t, err, &lockedErr)
	assert.Equal(t, []string{"title"}, lockedErr.Fields)
	assert.Equal(t, "Chilton", *st.records[1].Publisher)
	assert.Zero(t, st.saves)
	assert.Empty(t, events.Events())
}

func TestApplyEditListsEveryLockedField(t *testing.T) {
	st := newMemStore(lockedRecord(1, metadata.FieldTitle, metadata.FieldAuthors, metadata.FieldCover))
	m := newMerger(st, &fakeThumbs{}, &notify.Recorder{})

	_, err := m.ApplyEdit(context.Background(), 1, &provider.Metadata{
		Title:        ptr("x"),
		Authors:      []string{"y"},
		ThumbnailURL: ptr("http://covers/x.jpg"),
		Subtitle:     ptr("z"),
	})

	var lockedErr *errors.LockedFieldsError
	require.ErrorAs(t, err, &lockedErr)
	assert.Equal(t, []string{"title", "authors", "cover"}, lockedErr.Fields)
}

func TestApplyEditMasterLock(t *testing.T) {
	rec := &metadata.Record{BookID: 1}
	rec.Locks.AllFieldsLocked = true
	m := newMerger(newMemStore(rec), &fakeThumbs{}, &notify.Recorder{})

	_, err := m.ApplyEdit(context.Background(), 1, &provider.Metadata{Title: ptr("x")})
	assert.ErrorIs(t, err, errors.ErrMetadataLocked)
}

func TestApplyEditWritesAndClears(t *testing.T) {
	st := newMemStore(&metadata.Record{BookID: 1, Subtitle: ptr("Old"), Categories: []string{"Old"}})
	events := &notify.Recorder{}
	m := newMerger(st, &fakeThumbs{}, events)

	out, err := m.ApplyEdit(context.Background(), 1, &provider.Metadata{
		Title:      ptr("Dune"),
		Subtitle:   ptr(""),
		Categories: []string{},
		PageCount:  ptr(412),
		Locks:      metadata.LockUpdate{Fields: map[metadata.LockField]bool{metadata.FieldTitle: true}},
	})
	require.NoError(t, err)

	stored := st.records[1]
	assert.Equal(t, "Dune", *stored.Title)
	assert.Nil(t, stored.Subtitle)
	assert.Empty(t, stored.Categories)
	assert.Equal(t, 412, *stored.PageCount)
	assert.True(t, stored.Locks.IsLocked(metadata.FieldTitle))
	assert.ElementsMatch(t, []string{"title", "subtitle", "categories", "pageCount"}, out.Changed)
	require.Len(t, events.Events(), 1)
	assert.Equal(t, "Dune", events.Events()[0].Title)
}

func TestSetFieldLock(t *testing.T) {
	st := newMemStore(&metadata.Record{BookID: 1})
	m := newMerger(st, &fakeThumbs{}, &notify.Recorder{})
	ctx := context.Background()

	rec, err := m.SetFieldLock(ctx, 1, "Description", true)
	require.NoError(t, err)
	assert.True(t, rec.Locks.IsLocked(metadata.FieldDescription))
	assert.True(t, st.records[1].Locks.IsLocked(metadata.FieldDescription))

	_, err = m.SetFieldLock(ctx, 1, "all", true)
	require.NoError(t, err)
	assert.True(t, st.records[1].Locks.AllFieldsLocked)

	_, err = m.SetFieldLock(ctx, 1, "shelf", true)
	assert.ErrorIs(t, err, errors.ErrUnknownLockField)
}

func TestUploadCover(t *testing.T) {
	st := newMemStore(&metadata.Record{BookID: 1})
	thumbs := &fakeThumbs{}
	events := &notify.Recorder{}
	m := newMerger(st, thumbs, events)

	rec, err := m.UploadCover(context.Background(), 1, []byte("image"))
	require.NoError(t, err)
	assert.Equal(t, 5, thumbs.bytes)
	assert.Equal(t, filepath.Join("thumbs", "upload.jpg"), *rec.ThumbnailPath)
	assert.True(t, fixedNow.Equal(*st.records[1].CoverUpdatedOn))
	require.Len(t, events.Events(), 1)
	assert.Equal(t, notify.CoverUpdated, events.Events()[0].Type)

	locked := newMemStore(lockedRecord(2, metadata.FieldCover))
	m = newMerger(locked, thumbs, events)
	_, err = m.UploadCover(context.Background(), 2, []byte("image"))
	assert.True(t, errors.IsLockedFields(err))
}

func TestApplyRefreshWithSQLiteStore(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	lib, err := st.AddLibrary(ctx, "Fiction")
	require.NoError(t, err)
	book, err := st.AddBook(ctx, lib.ID, ptr("dune.epub"))
	require.NoError(t, err)

	m := newMerger(st, &fakeThumbs{}, &notify.Recorder{})
	_, err = m.ApplyRefresh(ctx, book.ID, &provider.Metadata{
		Title:      ptr("Dune"),
		Authors:    []string{"Frank Herbert"},
		Categories: []string{"Science Fiction", "Classics"},
	}, RefreshFlags{})
	require.NoError(t, err)

	_, err = m.ApplyRefresh(ctx, book.ID, &provider.Metadata{
		Categories: []string{"Fiction"},
	}, RefreshFlags{MergeCategories: true})
	require.NoError(t, err)

	loaded, err := st.LoadRecord(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dune", *loaded.Title)
	assert.Equal(t, []string{"Frank Herbert"}, loaded.Authors)
	assert.Equal(t, []string{"Classics", "Fiction", "Science Fiction"}, loaded.Categories)
}
