package resolve

import (
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/lepinkainen/bookmeta/internal/metadata"
	"github.com/lepinkainen/bookmeta/internal/provider"
)

func text(s string) *string { return &s }

func TestResolveScalarPriority(t *testing.T) {
	tests := []struct {
		name    string
		results Results
		want    *string
	}{
		{
			name: "p1 wins over lower slots",
			results: Results{
				provider.GoogleBooks: {Title: text("Google")},
				provider.OpenLibrary: {Title: text("OpenLibrary")},
				provider.GoodReads:   {Title: text("GoodReads")},
			},
			want: text("GoodReads"),
		},
		{
			name: "p2 used when p1 has nothing",
			results: Results{
				provider.GoogleBooks: {Title: text("Google")},
				provider.OpenLibrary: {Title: text("OpenLibrary")},
				provider.GoodReads:   {},
			},
			want: text("OpenLibrary"),
		},
		{
			name: "p3 used when p1 is missing entirely",
			results: Results{
				provider.GoogleBooks: {Title: text("Google")},
			},
			want: text("Google"),
		},
		{
			name:    "nothing provided",
			results: Results{provider.GoodReads: nil},
			want:    nil,
		},
	}

	opts := RefreshOptions{
		AllP1: provider.GoodReads,
		FieldOptions: FieldOptions{
			Title: FieldPriority{P3: provider.GoogleBooks, P2: provider.OpenLibrary, P1: provider.GoodReads},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.results, opts)
			assert.Equal(t, tt.want, got.Title)
		})
	}
}

func TestResolveTitleSkipsUnsetSlot(t *testing.T) {
	opts := RefreshOptions{
		AllP1: provider.GoodReads,
		FieldOptions: FieldOptions{
			Title: FieldPriority{P3: provider.GoogleBooks, P1: provider.GoodReads},
		},
	}
	results := Results{
		provider.GoodReads:   {Title: text("Dune")},
		provider.GoogleBooks: {Title: nil},
	}

	got := Resolve(results, opts)
	assert.Equal(t, text("Dune"), got.Title)
}

func TestResolveCategoriesFirstNonEmpty(t *testing.T) {
	opts := RefreshOptions{
		AllP1: provider.GoodReads,
		FieldOptions: FieldOptions{
			Categories: FieldPriority{P3: provider.GoodReads, P2: provider.GoogleBooks},
		},
	}
	results := Results{
		provider.GoodReads:   {Categories: []string{}},
		provider.GoogleBooks: {Categories: []string{"Sci-Fi"}},
	}

	got := Resolve(results, opts)
	assert.Equal(t, []string{"Sci-Fi"}, got.Categories)
}

func TestResolveListLowestSlotWins(t *testing.T) {
	opts := RefreshOptions{
		AllP1: provider.GoodReads,
		FieldOptions: FieldOptions{
			Authors: FieldPriority{P3: provider.OpenLibrary, P1: provider.GoodReads},
		},
	}
	results := Results{
		provider.OpenLibrary: {Authors: []string{"Frank Herbert"}},
		provider.GoodReads:   {Authors: []string{"F. Herbert", "Brian Herbert"}},
	}

	got := Resolve(results, opts)
	assert.Equal(t, []string{"Frank Herbert"}, got.Authors)
}

func TestResolveMergeCategories(t *testing.T) {
	opts := RefreshOptions{
		AllP1:           provider.GoodReads,
		MergeCategories: true,
		FieldOptions: FieldOptions{
			Categories: FieldPriority{P3: provider.GoogleBooks, P2: provider.OpenLibrary, P1: provider.GoodReads},
		},
	}
	results := Results{
		provider.GoogleBooks: {Categories: []string{"Fiction"}},
		provider.OpenLibrary: {Categories: []string{"Fiction", "Drama"}},
		provider.GoodReads:   {Categories: []string{}},
	}

	got := Resolve(results, opts)
	assert.Equal(t, []string{"Drama", "Fiction"}, got.Categories)
}

func TestResolveFallbackCascade(t *testing.T) {
	pages := 412
	otherPages := 500
	rating := 4.3
	opts := RefreshOptions{AllP3: provider.OpenLibrary, AllP1: provider.GoodReads}
	results := Results{
		provider.OpenLibrary: {
			Publisher: text("Ace"),
			PageCount: &otherPages,
			Awards:    []metadata.Award{{Name: "Nebula"}},
		},
		provider.GoodReads: {
			PageCount: &pages,
			Rating:    &rating,
			Title:     text("Dune"),
		},
	}

	got := Resolve(results, opts)
	assert.Equal(t, text("Ace"), got.Publisher)
	assert.Equal(t, &pages, got.PageCount)
	assert.Equal(t, &rating, got.Rating)
	assert.Equal(t, text("Dune"), got.Title)
	assert.Equal(t, []metadata.Award{{Name: "Nebula"}}, got.Awards)
}

func TestResolveIgnoresProvidersOutsideOptions(t *testing.T) {
	opts := RefreshOptions{AllP1: provider.GoodReads}
	results := Results{
		provider.Hardcover: {Subtitle: text("ignored")},
	}

	got := Resolve(results, opts)
	assert.Zero(t, got.Subtitle)
}

func TestProviders(t *testing.T) {
	opts := RefreshOptions{
		AllP3: provider.OpenLibrary,
		AllP1: provider.GoodReads,
		FieldOptions: FieldOptions{
			Title:       FieldPriority{P3: provider.GoogleBooks, P1: provider.GoodReads},
			Description: FieldPriority{P2: provider.Hardcover},
		},
	}

	assert.Equal(t, []provider.ID{
		provider.GoodReads,
		provider.OpenLibrary,
		provider.GoogleBooks,
		provider.Hardcover,
	}, opts.Providers())
	assert.True(t, opts.Uses(provider.Hardcover))
	assert.False(t, opts.Uses(provider.Amazon))
}

func TestParseOptions(t *testing.T) {
	data := []byte(`
allP3: openlibrary
allP1: GoodReads
mergeCategories: true
refreshCovers: true
fieldOptions:
  title:
    p3: GoogleBooks
    p1: GoodReads
`)
	opts, err := ParseOptions(data)
	assert.NoError(t, err)
	assert.Equal(t, provider.OpenLibrary, opts.AllP3)
	assert.Equal(t, provider.GoodReads, opts.AllP1)
	assert.True(t, opts.MergeCategories)
	assert.True(t, opts.RefreshCovers)
	assert.Equal(t, FieldPriority{P3: provider.GoogleBooks, P1: provider.GoodReads}, opts.FieldOptions.Title)
}

func TestParseOptionsErrors(t *testing.T) {
	_, err := ParseOptions([]byte("allP3: GoodReads\n"))
	assert.IsError(t, err, ErrNoFallbackProvider)

	_, err = ParseOptions([]byte("allP1: Audible\n"))
	assert.Error(t, err)
}
