package tui

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// maxInputLen is the maximum number of runes allowed in form inputs.
const maxInputLen = 200

// newField builds a form input with the shared prompt style.
func newField(placeholder string, secret bool) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = maxInputLen
	ti.Width = 40
	ti.Prompt = "> "
	ti.PromptStyle = inputPromptStyle
	ti.PlaceholderStyle = inputPlaceholderStyle
	if secret {
		ti.EchoMode = textinput.EchoPassword
		ti.EchoCharacter = '•'
	}
	return ti
}

// form is an ordered set of inputs with one focused field.
type form struct {
	labels []string
	fields []textinput.Model
	focus  int
}

func newForm(labels []string, fields []textinput.Model) form {
	f := form{labels: labels, fields: fields}
	if len(f.fields) > 0 {
		f.fields[0].Focus()
	}
	return f
}

// move shifts focus by delta, wrapping around.
func (f form) move(delta int) (form, tea.Cmd) {
	if len(f.fields) == 0 {
		return f, nil
	}
	f.fields[f.focus].Blur()
	f.focus = (f.focus + delta + len(f.fields)) % len(f.fields)
	return f, f.fields[f.focus].Focus()
}

// onLast reports whether the focused field is the last one.
func (f form) onLast() bool {
	return f.focus == len(f.fields)-1
}

func (f form) value(i int) string {
	return f.fields[i].Value()
}

// update forwards msg to the focused field.
func (f form) update(msg tea.Msg) (form, tea.Cmd) {
	if len(f.fields) == 0 {
		return f, nil
	}
	var cmd tea.Cmd
	f.fields[f.focus], cmd = f.fields[f.focus].Update(msg)
	return f, cmd
}

func (f form) view() string {
	var out string
	for i, field := range f.fields {
		label := labelStyle.Render(f.labels[i])
		if i == f.focus {
			label = labelStyle.Foreground(accentStyle.GetForeground()).Render(f.labels[i])
		}
		out += "  " + label + field.View() + "\n"
	}
	return out
}

// truncateToHeight limits output to maxLines newline-delimited lines.
// Returns the original string if it fits or maxLines is <= 0.
func truncateToHeight(s string, maxLines int) string {
	if maxLines <= 0 {
		return s
	}
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			n++
			if n >= maxLines {
				return s[:i+1]
			}
		}
	}
	return s
}
