package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/bookmeta/internal/provider"
)

func candidate(id, title string) provider.Metadata {
	return provider.Metadata{Provider: provider.GoodReads, ProviderBookID: id, Title: provider.Text(title)}
}

func withProgram(t *testing.T, fn func(m tea.Model) (tea.Model, error)) {
	t.Helper()
	orig := runProgram
	runProgram = fn
	t.Cleanup(func() { runProgram = orig })
}

func TestSelectSkipsWhenNothingToShow(t *testing.T) {
	withProgram(t, func(tea.Model) (tea.Model, error) {
		t.Fatal("program should not run")
		return nil, nil
	})

	res, err := Select("Dune", []provider.Metadata{{Provider: provider.GoodReads, ProviderBookID: "1"}})
	require.NoError(t, err)
	assert.Equal(t, ActionSkipped, res.Action)
}

func TestSelectReturnsChosenCandidate(t *testing.T) {
	withProgram(t, func(m tea.Model) (tea.Model, error) {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
		next, _ = next.Update(tea.KeyMsg{Type: tea.KeyEnter})
		return next, nil
	})

	res, err := Select("Dune", []provider.Metadata{candidate("1", "Dune"), candidate("2", "Dune Messiah")})
	require.NoError(t, err)
	require.Equal(t, ActionSelected, res.Action)
	assert.Equal(t, "2", res.Selection.ProviderBookID)
}

func TestModelKeys(t *testing.T) {
	tests := []struct {
		name string
		key  tea.KeyMsg
		want SelectionAction
	}{
		{name: "skip", key: tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")}, want: ActionSkipped},
		{name: "escape", key: tea.KeyMsg{Type: tea.KeyEsc}, want: ActionSkipped},
		{name: "stop", key: tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}, want: ActionStopped},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newModel("Dune", []candidateItem{{Metadata: candidate("1", "Dune")}})
			_, cmd := m.Update(tt.key)
			assert.NotNil(t, cmd)
			assert.Equal(t, tt.want, m.result.Action)
		})
	}
}

func TestFormatMetadata(t *testing.T) {
	pages := 412
	rating := 4.27
	count := 1543
	published := time.Date(1965, 8, 1, 0, 0, 0, 0, time.UTC)
	md := provider.Metadata{
		PageCount:     &pages,
		Language:      provider.Text("en"),
		Rating:        &rating,
		RatingCount:   &count,
		ISBN13:        provider.Text("9780441172719"),
		PublishedDate: &published,
	}

	assert.Equal(t, "412 pages | EN | 4.27 (1.5K ratings) | ISBN 9780441172719", formatMetadata(md, 0))
	assert.Equal(t, "No metadata available", formatMetadata(provider.Metadata{}, 0))
	assert.Equal(t, "1965", year(md))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "a long...", truncate("a long   description", 9))
	assert.Equal(t, "ab", truncate("abcdef", 2))
}
