// Package tui provides interactive terminal UI components.
package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lepinkainen/bookmeta/internal/provider"
)

const (
	defaultListWidth  = 72
	defaultListHeight = 20
)

var runProgram = func(m tea.Model) (tea.Model, error) {
	return tea.NewProgram(m).Run()
}

// SelectionAction represents the user's action in the selection UI.
type SelectionAction int

const (
	// ActionNone indicates no action was taken.
	ActionNone SelectionAction = iota
	// ActionSelected indicates the user selected an item.
	ActionSelected
	// ActionSkipped indicates the user skipped the selection.
	ActionSkipped
	// ActionStopped indicates the user stopped processing entirely.
	ActionStopped
)

// SelectionResult holds the result of a TUI selection.
type SelectionResult struct {
	Action    SelectionAction
	Selection *provider.Metadata
}

type candidateItem struct {
	provider.Metadata
}

func (i candidateItem) Title() string {
	return fmt.Sprintf("%s (%s)", strings.ToUpper(valueOr(i.Metadata.Title, "untitled")), year(i.Metadata))
}

func (i candidateItem) FilterValue() string {
	return valueOr(i.Metadata.Title, "")
}

func (i candidateItem) Description() string {
	return valueOr(i.Metadata.Description, "")
}

type itemStyles struct {
	normal        lipgloss.Style
	selected      lipgloss.Style
	sourceStyle   lipgloss.Style
	titleStyle    lipgloss.Style
	authorStyle   lipgloss.Style
	metadataStyle lipgloss.Style
	overviewStyle lipgloss.Style
}

func newItemStyles() itemStyles {
	asciiBorder := lipgloss.Border{
		Top:         "-",
		Bottom:      "-",
		Left:        "|",
		Right:       "|",
		TopLeft:     "+",
		TopRight:    "+",
		BottomLeft:  "+",
		BottomRight: "+",
	}

	container := lipgloss.NewStyle().
		Border(asciiBorder).
		BorderForeground(lipgloss.Color("62")).
		Padding(0, 1).
		Foreground(lipgloss.Color("252"))

	selected := container.Copy().
		BorderForeground(lipgloss.Color("214")).
		Foreground(lipgloss.Color("230")).
		Background(lipgloss.Color("237"))

	return itemStyles{
		normal:   container,
		selected: selected,
		sourceStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("110")),
		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("254")),
		authorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("178")),
		metadataStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("247")).
			Faint(true),
		overviewStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("248")),
	}
}

type candidateDelegate struct {
	styles itemStyles
}

func newDelegate() candidateDelegate {
	return candidateDelegate{styles: newItemStyles()}
}

func (d candidateDelegate) Height() int                         { return 5 }
func (d candidateDelegate) Spacing() int                        { return 1 }
func (d candidateDelegate) Update(tea.Msg, *list.Model) tea.Cmd { return nil }

func (d candidateDelegate) Render(w io.Writer, m list.Model, idx int, item list.Item) {
	candidate, ok := item.(candidateItem)
	if !ok {
		return
	}
	md := candidate.Metadata

	sourceLine := d.styles.sourceStyle.Render(fmt.Sprintf("[%s]", strings.ToUpper(string(md.Provider))))
	metadataLine := d.styles.metadataStyle.Render(formatMetadata(md, m.Width()-4))
	titleLine := d.styles.titleStyle.Render(candidate.Title())
	authorLine := d.styles.authorStyle.Render(truncate(strings.Join(md.Authors, ", "), m.Width()-4))
	overviewLine := d.styles.overviewStyle.Render(truncate(candidate.Description(), m.Width()-4))

	content := lipgloss.JoinVertical(lipgloss.Left, sourceLine, metadataLine, titleLine, authorLine, overviewLine)

	container := d.styles.normal
	if idx == m.Index() {
		container = d.styles.selected
	}
	_, _ = fmt.Fprint(w, container.Render(content))
}

type model struct {
	list        list.Model
	searchTitle string
	result      SelectionResult
}

func newModel(title string, items []candidateItem) *model {
	listItems := make([]list.Item, len(items))
	for i, item := range items {
		listItems[i] = item
	}

	delegate := newDelegate()
	l := list.New(listItems, delegate, defaultListWidth, defaultListHeight)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.SetShowTitle(false)
	l.SetShowPagination(false)
	l.DisableQuitKeybindings()
	l.Styles.NoItems = lipgloss.NewStyle()

	return &model{
		list:        l,
		searchTitle: title,
		result: SelectionResult{
			Action: ActionNone,
		},
	}
}

func (m *model) Init() tea.Cmd { return nil }

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			if selected, ok := m.list.SelectedItem().(candidateItem); ok {
				md := selected.Metadata
				m.result = SelectionResult{
					Action:    ActionSelected,
					Selection: &md,
				}
				return m, tea.Quit
			}
		case "s", "esc":
			m.result = SelectionResult{Action: ActionSkipped}
			return m, tea.Quit
		case "ctrl+c", "q":
			m.result = SelectionResult{Action: ActionStopped}
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		width := clamp(defaultListWidth, msg.Width-4, 40)
		height := clamp(defaultListHeight, msg.Height-6, 5)
		m.list.SetSize(width, height)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *model) View() string {
	header := headerStyle.Render(fmt.Sprintf("Candidates for: %s", m.searchTitle))
	listView := m.list.View()
	buttons := lipgloss.JoinHorizontal(
		lipgloss.Left,
		skipButtonStyle.Render(" Skip "),
		lipgloss.NewStyle().Padding(0, 2).Render(""),
		stopButtonStyle.Render(" Stop "),
	)
	help := helpStyle.Render("Up/Down navigate | Enter select | s skip | q stop")
	return lipgloss.JoinVertical(lipgloss.Left, header, listView, buttons, help)
}

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")).
			MarginBottom(1)

	skipButtonStyle = lipgloss.NewStyle().
			MarginTop(1).
			Padding(0, 2).
			Background(lipgloss.Color("178")).
			Foreground(lipgloss.Color("0")).
			Bold(true)

	stopButtonStyle = lipgloss.NewStyle().
			MarginTop(1).
			Padding(0, 2).
			Background(lipgloss.Color("161")).
			Foreground(lipgloss.Color("230")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			MarginTop(1).
			Foreground(lipgloss.Color("244"))
)

// Select lets the user pick one of the search candidates. Candidates without
// a title are not offered.
func Select(title string, candidates []provider.Metadata) (SelectionResult, error) {
	items := make([]candidateItem, 0, len(candidates))
	for _, c := range candidates {
		if c.Title == nil || strings.TrimSpace(*c.Title) == "" {
			continue
		}
		items = append(items, candidateItem{Metadata: c})
	}
	if len(items) == 0 {
		return SelectionResult{Action: ActionSkipped}, nil
	}

	m := newModel(title, items)
	finalModel, err := runProgram(m)
	if err != nil {
		return SelectionResult{}, err
	}

	if typed, ok := finalModel.(*model); ok {
		return typed.result, nil
	}

	return SelectionResult{}, fmt.Errorf("unexpected program result")
}

func valueOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

func year(md provider.Metadata) string {
	if md.PublishedDate == nil {
		return "n/a"
	}
	return md.PublishedDate.Format("2006")
}

func truncate(value string, width int) string {
	value = strings.Join(strings.Fields(value), " ")
	runes := []rune(value)
	if width <= 0 || len(runes) <= width {
		return value
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}

// formatMetadata creates the metadata line with page count, language,
// rating and ISBN.
func formatMetadata(md provider.Metadata, availableWidth int) string {
	var parts []string

	if md.PageCount != nil {
		parts = append(parts, fmt.Sprintf("%d pages", *md.PageCount))
	}
	if md.Language != nil {
		parts = append(parts, strings.ToUpper(*md.Language))
	}
	if md.Rating != nil {
		rating := fmt.Sprintf("%.2f", *md.Rating)
		if md.RatingCount != nil {
			rating += " (" + formatRatingCount(*md.RatingCount) + ")"
		}
		parts = append(parts, rating)
	}
	switch {
	case md.ISBN13 != nil:
		parts = append(parts, "ISBN "+*md.ISBN13)
	case md.ISBN10 != nil:
		parts = append(parts, "ISBN "+*md.ISBN10)
	}

	if len(parts) == 0 {
		return "No metadata available"
	}

	line := strings.Join(parts, " | ")
	if availableWidth > 0 && len(line) > availableWidth {
		line = truncate(line, availableWidth)
	}
	return line
}

// formatRatingCount formats rating counts in a compact way
func formatRatingCount(count int) string {
	if count >= 1000 {
		return fmt.Sprintf("%.1fK ratings", float64(count)/1000)
	}
	return fmt.Sprintf("%d ratings", count)
}

func clamp(defaultValue, available, minimum int) int {
	width := defaultValue
	if available > 0 && available < defaultValue {
		width = available
	}
	if width < minimum {
		width = minimum
	}
	return width
}
