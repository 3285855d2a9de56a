package provider

import (
	"context"
	stdErrors "errors"
	"testing"

	"github.com/lepinkainen/bookmeta/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAdapter struct {
	id        ID
	previews  []Metadata
	searchErr error
	dropAll   bool
	expanded  []string
}

func (s *stubAdapter) ID() ID { return s.id }

func (s *stubAdapter) SearchPreviews(context.Context, Query) ([]Metadata, error) {
	return s.previews, s.searchErr
}

func (s *stubAdapter) FetchDetails(_ context.Context, previews []Metadata) ([]Metadata, error) {
	if s.dropAll {
		return nil, nil
	}
	out := make([]Metadata, 0, len(previews))
	for _, p := range previews {
		s.expanded = append(s.expanded, p.ProviderBookID)
		p.Description = Text("detailed")
		out = append(out, p)
	}
	return out, nil
}

func (s *stubAdapter) FetchTop(ctx context.Context, q Query) (*Metadata, error) {
	return TopFrom(ctx, s, q)
}

func TestParseID(t *testing.T) {
	id, err := ParseID("goodreads")
	require.NoError(t, err)
	assert.Equal(t, GoodReads, id)

	id, err = ParseID(" Amazon ")
	require.NoError(t, err)
	assert.Equal(t, Amazon, id)

	_, err = ParseID("Audible")
	require.Error(t, err)
}

func TestIDUnmarshalText(t *testing.T) {
	var id ID
	require.NoError(t, id.UnmarshalText([]byte("openlibrary")))
	assert.Equal(t, OpenLibrary, id)
	require.Error(t, id.UnmarshalText([]byte("nope")))
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry(&stubAdapter{id: GoodReads}, &stubAdapter{id: GoogleBooks})

	a, err := reg.Get(GoogleBooks)
	require.NoError(t, err)
	assert.Equal(t, GoogleBooks, a.ID())

	_, err = reg.Get(Amazon)
	require.Error(t, err)
	assert.True(t, stdErrors.Is(err, errors.ErrProviderNotRegistered))

	require.Error(t, reg.Register(&stubAdapter{id: GoodReads}))
	assert.Equal(t, []ID{GoodReads, GoogleBooks}, reg.IDs())
}

func TestTopFromExpandsOnlyFirstPreview(t *testing.T) {
	s := &stubAdapter{id: GoodReads, previews: []Metadata{
		{Provider: GoodReads, ProviderBookID: "1"},
		{Provider: GoodReads, ProviderBookID: "2"},
	}}

	top, err := s.FetchTop(context.Background(), Query{Title: "Dune"})
	require.NoError(t, err)
	require.NotNil(t, top)
	assert.Equal(t, "1", top.ProviderBookID)
	assert.Equal(t, "detailed", *top.Description)
	assert.Equal(t, []string{"1"}, s.expanded)
}

func TestTopFromEmptyResults(t *testing.T) {
	top, err := TopFrom(context.Background(), &stubAdapter{id: GoodReads}, Query{})
	require.NoError(t, err)
	assert.Nil(t, top)

	s := &stubAdapter{id: GoodReads, dropAll: true, previews: []Metadata{{ProviderBookID: "1"}}}
	top, err = TopFrom(context.Background(), s, Query{})
	require.NoError(t, err)
	assert.Nil(t, top, "a preview that fails to expand yields no result")
}

func TestTopFromPropagatesTransportErrors(t *testing.T) {
	s := &stubAdapter{id: GoodReads, searchErr: stdErrors.New("connection reset")}
	_, err := TopFrom(context.Background(), s, Query{})
	require.Error(t, err)
}

func TestISBNs(t *testing.T) {
	isbn10, isbn13 := ISBNs("0-441-17271-7", "978-0441172719", "junk")
	require.NotNil(t, isbn10)
	require.NotNil(t, isbn13)
	assert.Equal(t, "0441172717", *isbn10)
	assert.Equal(t, "9780441172719", *isbn13)
}

func TestText(t *testing.T) {
	assert.Nil(t, Text("   "))
	assert.Equal(t, "x", *Text(" x "))
	assert.Nil(t, Positive(0))
	assert.Equal(t, 3, *Positive(3))
}
