// Package input is a single-line text field for the chat panel with an optional masked mode
// for API key entry.
package input

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	defaultPlaceholder = "Ask Clippy something..."
	maskChar           = "•"
)

// Model is the input field
type Model struct {
	value       string
	cursor      int
	width       int
	style       lipgloss.Style
	prompt      string
	placeholder string
	masked      bool // Render every character as maskChar
	loading     bool
}

// NewModel creates an empty input field
func NewModel() Model {
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	return Model{
		width:       80,
		style:       style,
		prompt:      "> ",
		placeholder: defaultPlaceholder,
	}
}

// SetWidth resizes the field, border included
func (m *Model) SetWidth(width int) {
	if width < 4 || m.width == width {
		return
	}
	m.width = width
	m.style = m.style.Width(width - 2)
}

// Value returns the current text
func (m Model) Value() string {
	return m.value
}

// SetValue replaces the text and moves the cursor to the end
func (m *Model) SetValue(value string) {
	m.value = value
	m.cursor = len(value)
}

// CursorPosition returns the cursor offset in bytes
func (m Model) CursorPosition() int {
	return m.cursor
}

// Clear empties the field
func (m *Model) Clear() {
	m.value = ""
	m.cursor = 0
}

// SetMasked switches secret entry on or off with the given placeholder.
// An empty placeholder restores the default.
func (m *Model) SetMasked(masked bool, placeholder string) {
	m.masked = masked
	if placeholder == "" {
		placeholder = defaultPlaceholder
	}
	m.placeholder = placeholder
}

// IsMasked reports whether secret entry is active
func (m Model) IsMasked() bool {
	return m.masked
}

// SetLoading disables editing while a request is in flight
func (m *Model) SetLoading(loading bool) {
	m.loading = loading
}

// IsLoading reports whether editing is disabled
func (m Model) IsLoading() bool {
	return m.loading
}

// Update handles key events
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.loading {
		return m, nil
	}
	if key, ok := msg.(tea.KeyMsg); ok {
		m.handleKey(key)
	}
	return m, nil
}

// Backspace deletes the character before the cursor
func (m *Model) Backspace() {
	if m.cursor == 0 {
		return
	}
	m.value = m.value[:m.cursor-1] + m.value[m.cursor:]
	m.cursor--
}

// MoveCursorLeft moves the cursor one position to the left
func (m *Model) MoveCursorLeft() {
	if m.cursor > 0 {
		m.cursor--
	}
}

// MoveCursorRight moves the cursor one position to the right
func (m *Model) MoveCursorRight() {
	if m.cursor < len(m.value) {
		m.cursor++
	}
}

// InsertCharacter inserts a single visible ASCII character at the cursor
func (m *Model) InsertCharacter(char string) {
	if len(char) != 1 {
		return
	}
	if m.cursor == len(m.value) {
		m.value += char
	} else {
		var sb strings.Builder
		sb.Grow(len(m.value) + 1)
		sb.WriteString(m.value[:m.cursor])
		sb.WriteString(char)
		sb.WriteString(m.value[m.cursor:])
		m.value = sb.String()
	}
	m.cursor++
}

func (m *Model) handleKey(msg tea.KeyMsg) {
	switch msg.String() {
	case "backspace":
		m.Backspace()
	case "left":
		m.MoveCursorLeft()
	case "right":
		m.MoveCursorRight()
	case "home", "ctrl+a":
		m.cursor = 0
	case "end", "ctrl+e":
		m.cursor = len(m.value)
	case "ctrl+u":
		m.Clear()
	default:
		if IsVisibleASCII(msg) {
			m.InsertCharacter(msg.String())
		}
	}
}

// IsVisibleASCII reports whether the key is a printable ASCII character, space included
func IsVisibleASCII(keyMsg tea.KeyMsg) bool {
	key := keyMsg.String()
	if key == " " {
		return true
	}
	if len(key) == 1 {
		c := key[0]
		return c >= 33 && c <= 126
	}
	return false
}

func (m Model) display() string {
	if m.masked {
		return strings.Repeat(maskChar, len(m.value))
	}
	return m.value
}

// View renders the field
func (m Model) View() string {
	var content string
	switch {
	case m.value == "" && !m.loading:
		content = m.prompt + m.placeholder + "█"
	case m.cursor == len(m.value):
		content = m.prompt + m.display() + "█"
	case m.masked:
		content = m.prompt + strings.Repeat(maskChar, m.cursor) + "█" + strings.Repeat(maskChar, len(m.value)-m.cursor)
	default:
		content = m.prompt + m.value[:m.cursor] + "█" + m.value[m.cursor:]
	}
	return m.style.Render(content)
}
