package chooser

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"

	"github.com/riceball-k/textfsm-parse-to-csv/pkg/selector"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	activeFilterStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("99"))

	inactiveFilterStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("247"))

	cursorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("62"))

	checkStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

// maxVisible is the number of entries shown before the list scrolls.
const maxVisible = 15

type model struct {
	prompt  string
	dir     string
	filters []selector.Filter
	filter  int

	entries  []string
	cursor   int
	offset   int
	selected []string

	keys  keyMap
	help  help.Model
	width int
	err   error

	confirmed bool
	cancelled bool
}

func newModel(dir, prompt string, filters []selector.Filter) *model {
	if len(filters) == 0 {
		filters = []selector.Filter{{Name: "All files", Patterns: []string{"*"}}}
	}
	m := &model{
		prompt:  prompt,
		dir:     dir,
		filters: filters,
		keys:    newKeyMap(),
		help:    help.New(),
		width:   80,
	}
	m.reload()
	return m
}

// Init implements tea.Model.
func (m *model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil
	case tea.KeyMsg:
		return m.updateKey(msg)
	}
	return m, nil
}

func (m *model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.cancelled = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Confirm):
		if len(m.selected) == 0 && len(m.entries) > 0 {
			m.selected = []string{m.entries[m.cursor]}
		}
		m.confirmed = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.entries)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Toggle):
		if len(m.entries) > 0 {
			m.toggle(m.entries[m.cursor])
		}
	case key.Matches(msg, m.keys.ToggleAll):
		m.toggleAll()
	case key.Matches(msg, m.keys.NextFilter):
		m.filter = (m.filter + 1) % len(m.filters)
		m.reload()
	}
	m.scroll()
	return m, nil
}

func (m *model) toggle(name string) {
	if i := slices.Index(m.selected, name); i >= 0 {
		m.selected = slices.Delete(m.selected, i, i+1)
		return
	}
	m.selected = append(m.selected, name)
}

func (m *model) toggleAll() {
	allSelected := true
	for _, e := range m.entries {
		if !slices.Contains(m.selected, e) {
			allSelected = false
			break
		}
	}
	for _, e := range m.entries {
		if slices.Contains(m.selected, e) == allSelected {
			m.toggle(e)
		}
	}
}

func (m *model) scroll() {
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+maxVisible {
		m.offset = m.cursor - maxVisible + 1
	}
}

// reload lists the regular files in dir matching the active filter.
// Selections survive a filter change.
func (m *model) reload() {
	m.entries, m.err = listFiles(m.dir, m.filters[m.filter].Patterns)
	m.cursor = 0
	m.offset = 0
}

func listFiles(dir string, patterns []string) ([]string, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}

	var names []string
	for _, de := range des {
		if !de.Type().IsRegular() {
			continue
		}
		for _, p := range patterns {
			if ok, _ := doublestar.Match(p, de.Name()); ok {
				names = append(names, de.Name())
				break
			}
		}
	}
	slices.Sort(names)
	return names, nil
}

// Paths returns the chosen files joined to the listing directory, in the
// order they were selected. It is empty when the user cancelled.
func (m *model) Paths() []string {
	if m.cancelled || !m.confirmed {
		return nil
	}
	paths := make([]string, 0, len(m.selected))
	for _, name := range m.selected {
		paths = append(paths, filepath.Join(m.dir, name))
	}
	return paths
}

// View implements tea.Model.
func (m *model) View() string {
	if m.confirmed || m.cancelled {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.prompt))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(truncate.StringWithTail(m.dir, uint(max(m.width-2, 10)), "...")))
	b.WriteString("\n\n")

	for i, f := range m.filters {
		label := fmt.Sprintf("%s (%s)", f.Name, strings.Join(f.Patterns, " "))
		if i == m.filter {
			b.WriteString(activeFilterStyle.Render("[" + label + "]"))
		} else {
			b.WriteString(inactiveFilterStyle.Render(" " + label + " "))
		}
		b.WriteString(" ")
	}
	b.WriteString("\n\n")

	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render(m.err.Error()))
		b.WriteString("\n")
	case len(m.entries) == 0:
		b.WriteString(dimStyle.Render("  no matching files"))
		b.WriteString("\n")
	default:
		end := min(m.offset+maxVisible, len(m.entries))
		for i := m.offset; i < end; i++ {
			b.WriteString(m.renderEntry(i))
			b.WriteString("\n")
		}
		if len(m.entries) > maxVisible {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  %d-%d of %d", m.offset+1, end, len(m.entries))))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("%d selected", len(m.selected))))
	b.WriteString("  ")
	b.WriteString(m.help.View(m.keys))
	b.WriteString("\n")
	return b.String()
}

func (m *model) renderEntry(i int) string {
	name := m.entries[i]
	check := "[ ]"
	if slices.Contains(m.selected, name) {
		check = checkStyle.Render("[x]")
	}
	name = truncate.StringWithTail(name, uint(max(m.width-8, 10)), "...")
	if i == m.cursor {
		return "> " + check + " " + cursorStyle.Render(name)
	}
	return "  " + check + " " + name
}
