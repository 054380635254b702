package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/curia-rag/curia/internal/errors"
	"github.com/curia-rag/curia/internal/index"
)

// ExampleQuestion is offered as the placeholder of the chat prompt.
const ExampleQuestion = "What happens in case about Parfums Marcel Rochas, in detail?"

// Asker answers a question, streaming the generated tokens.
type Asker interface {
	QueryStream(ctx context.Context, text string, onToken func(string)) (*index.Answer, error)
}

// ChatConfig configures a chat session.
type ChatConfig struct {
	In         io.Reader
	Out        io.Writer
	Asker      Asker
	ForcePlain bool
	NoColor    bool

	// Model is shown in the header.
	Model string
}

// RunChat starts an interactive session and returns when the user quits or
// ctx is cancelled. A TUI is used when both ends are terminals.
func RunChat(ctx context.Context, cfg ChatConfig) error {
	if cfg.ForcePlain || !IsTTY(cfg.In) || !IsTTY(cfg.Out) {
		return RunPlainChat(ctx, cfg)
	}

	m := newChatModel(ctx, cfg)
	p := tea.NewProgram(m, tea.WithContext(ctx), tea.WithInput(cfg.In), tea.WithOutput(cfg.Out))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return errors.InternalError("chat session failed", err)
	}
	return nil
}

// RunPlainChat reads one question per line and streams each answer.
// "exit" or "quit" ends the session, as does end of input.
func RunPlainChat(ctx context.Context, cfg ChatConfig) error {
	styles := GetStyles(cfg.NoColor || DetectNoColor() || !IsTTY(cfg.Out))
	scanner := bufio.NewScanner(cfg.In)

	for {
		_, _ = fmt.Fprint(cfg.Out, styles.User.Render("> "))
		if !scanner.Scan() {
			_, _ = fmt.Fprintln(cfg.Out)
			return scanner.Err()
		}

		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if isExit(question) {
			return nil
		}

		ans, err := cfg.Asker.QueryStream(ctx, question, func(tok string) {
			_, _ = io.WriteString(cfg.Out, tok)
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			_, _ = fmt.Fprintln(cfg.Out)
			_, _ = fmt.Fprint(cfg.Out, styles.Error.Render(errors.FormatForCLI(err)))
			continue
		}
		_, _ = fmt.Fprintln(cfg.Out)
		if refs := sourceLine(ans); refs != "" {
			_, _ = fmt.Fprintln(cfg.Out, styles.Source.Render(refs))
		}
		_, _ = fmt.Fprintln(cfg.Out)
	}
}

func isExit(s string) bool {
	switch strings.ToLower(s) {
	case "exit", "quit", ":q":
		return true
	}
	return false
}

// sourceLine lists the distinct documents an answer drew on.
func sourceLine(ans *index.Answer) string {
	if ans == nil || len(ans.Sources) == 0 {
		return ""
	}
	seen := make(map[string]bool)
	var names []string
	for _, r := range ans.Sources {
		if r.Source != "" && !seen[r.Source] {
			seen[r.Source] = true
			names = append(names, r.Source)
		}
	}
	if len(names) == 0 {
		return ""
	}
	return "sources: " + strings.Join(names, ", ")
}

type turn struct {
	question string
	answer   strings.Builder
	sources  string
	err      error
	done     bool
}

type tokenMsg string

type answerMsg struct {
	answer *index.Answer
	err    error
}

// chatModel is the bubbletea model for `curia chat`.
type chatModel struct {
	ctx     context.Context
	asker   Asker
	model   string
	input   textinput.Model
	spinner spinner.Model
	styles  Styles
	turns   []*turn
	stream  <-chan tea.Msg
	busy    bool
	width   int
}

func newChatModel(ctx context.Context, cfg ChatConfig) *chatModel {
	in := textinput.New()
	in.Placeholder = ExampleQuestion
	in.Prompt = "> "
	in.CharLimit = 2000
	in.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot

	styles := DefaultStyles()
	if cfg.NoColor || DetectNoColor() {
		styles = NoColorStyles()
	}

	return &chatModel{
		ctx:     ctx,
		asker:   cfg.Asker,
		model:   cfg.Model,
		input:   in,
		spinner: s,
		styles:  styles,
		width:   80,
	}
}

// Init implements tea.Model.
func (m *chatModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m *chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-4, 20)
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.busy {
				return m, nil
			}
			q := strings.TrimSpace(m.input.Value())
			if q == "" {
				q = m.input.Placeholder
			}
			if isExit(q) {
				return m, tea.Quit
			}
			m.input.Reset()
			return m, tea.Batch(m.ask(q), m.spinner.Tick)
		}

	case tokenMsg:
		if n := len(m.turns); n > 0 {
			m.turns[n-1].answer.WriteString(string(msg))
		}
		return m, waitFor(m.stream)

	case answerMsg:
		if n := len(m.turns); n > 0 {
			t := m.turns[n-1]
			t.done = true
			t.err = msg.err
			t.sources = sourceLine(msg.answer)
		}
		m.busy = false
		m.stream = nil
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// ask starts answering q in the background. Tokens arrive as tokenMsg and
// the end as answerMsg, read one at a time through waitFor.
func (m *chatModel) ask(q string) tea.Cmd {
	m.turns = append(m.turns, &turn{question: q})
	m.busy = true

	ch := make(chan tea.Msg, 64)
	m.stream = ch
	go func() {
		defer close(ch)
		ans, err := m.asker.QueryStream(m.ctx, q, func(tok string) {
			select {
			case ch <- tokenMsg(tok):
			case <-m.ctx.Done():
			}
		})
		select {
		case ch <- answerMsg{answer: ans, err: err}:
		case <-m.ctx.Done():
		}
	}()
	return waitFor(ch)
}

func waitFor(ch <-chan tea.Msg) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

// View implements tea.Model.
func (m *chatModel) View() string {
	var b strings.Builder

	header := "Curia"
	if m.model != "" {
		header += " • " + m.model
	}
	b.WriteString(m.styles.Header.Render(header))
	b.WriteString("\n\n")

	wrap := lipgloss.NewStyle().Width(max(m.width-2, 20))
	for _, t := range m.turns {
		b.WriteString(m.styles.User.Render("You: "))
		b.WriteString(t.question)
		b.WriteString("\n")
		b.WriteString(m.styles.Assist.Render("Curia: "))
		b.WriteString("\n")

		text := t.answer.String()
		if !t.done && text == "" {
			text = m.spinner.View() + " thinking..."
		}
		b.WriteString(wrap.Render(text))
		b.WriteString("\n")
		if t.err != nil {
			b.WriteString(m.styles.Error.Render(strings.TrimSpace(errors.FormatForCLI(t.err))))
			b.WriteString("\n")
		}
		if t.sources != "" {
			b.WriteString(m.styles.Source.Render(t.sources))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(m.styles.Dim.Render("enter to ask • esc to quit"))
	b.WriteString("\n")
	return b.String()
}
