package ui

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/cockroachdb/errors"
)

// RegenerateLabel is the trailing entry that asks for a new round.
const RegenerateLabel = "↻ Regenerate"

// ErrCancelled is returned when the user quits the selector.
var ErrCancelled = errors.New("selection cancelled")

var (
	cursorStyle   = cyan.Bold(true)
	selectedStyle = cyan
)

// Selection is the outcome of a selector run.
type Selection struct {
	Value      string
	Regenerate bool
}

type selectorKeys struct {
	Up         key.Binding
	Down       key.Binding
	Select     key.Binding
	Regenerate key.Binding
	Quit       key.Binding
}

func (k selectorKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Select, k.Regenerate, k.Quit}
}

func (k selectorKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var defaultSelectorKeys = selectorKeys{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j", "tab"),
		key.WithHelp("↓/j", "down"),
	),
	Select: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "select"),
	),
	Regenerate: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "regenerate"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "esc", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// SelectorModel is a bubbletea model listing items plus a regenerate entry.
type SelectorModel struct {
	title  string
	items  []string
	cursor int
	keys   selectorKeys
	help   help.Model

	selection Selection
	cancelled bool
	done      bool
}

// NewSelector returns a model positioned on the first item.
func NewSelector(title string, items []string) SelectorModel {
	return SelectorModel{
		title: title,
		items: items,
		keys:  defaultSelectorKeys,
		help:  help.New(),
	}
}

func (m SelectorModel) Init() tea.Cmd {
	return nil
}

func (m SelectorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	last := len(m.items)
	switch {
	case key.Matches(keyMsg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		} else {
			m.cursor = last
		}
	case key.Matches(keyMsg, m.keys.Down):
		if m.cursor < last {
			m.cursor++
		} else {
			m.cursor = 0
		}
	case key.Matches(keyMsg, m.keys.Select):
		m.done = true
		if m.cursor == last {
			m.selection = Selection{Regenerate: true}
		} else {
			m.selection = Selection{Value: m.items[m.cursor]}
		}
		return m, tea.Quit
	case key.Matches(keyMsg, m.keys.Regenerate):
		m.done = true
		m.selection = Selection{Regenerate: true}
		return m, tea.Quit
	case key.Matches(keyMsg, m.keys.Quit):
		m.done = true
		m.cancelled = true
		return m, tea.Quit
	}
	return m, nil
}

func (m SelectorModel) View() string {
	if m.done {
		return ""
	}

	var b strings.Builder
	b.WriteString(bold.Render(m.title))
	b.WriteString("\n")

	entries := append(append([]string{}, m.items...), RegenerateLabel)
	for i, entry := range entries {
		if i == m.cursor {
			fmt.Fprintf(&b, "%s %s\n", cursorStyle.Render(">"), selectedStyle.Render(entry))
			continue
		}
		fmt.Fprintf(&b, "  %s\n", entry)
	}

	b.WriteString(m.help.View(m.keys))
	b.WriteString("\n")
	return b.String()
}

// Result reports the user's choice once the model has finished.
func (m SelectorModel) Result() (Selection, error) {
	if m.cancelled || !m.done {
		return Selection{}, ErrCancelled
	}
	return m.selection, nil
}

// Select shows items and blocks until the user picks one, asks to
// regenerate, or cancels.
func Select(ctx context.Context, title string, items []string) (Selection, error) {
	p := tea.NewProgram(NewSelector(title, items),
		tea.WithContext(ctx),
		tea.WithOutput(os.Stderr),
	)

	final, err := p.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) {
			return Selection{}, ErrCancelled
		}
		return Selection{}, errors.Wrap(err, "running selector")
	}

	m, ok := final.(SelectorModel)
	if !ok {
		return Selection{}, errors.Newf("unexpected selector model %T", final)
	}
	return m.Result()
}
