package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUIRenderer shows build progress with bubbletea.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *buildModel
	tracker *ProgressTracker
	cancel  context.CancelFunc
	started bool
	done    chan struct{}
}

// NewTUIRenderer creates a TUI renderer. It fails when the output is not a terminal.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a TTY")
	}

	tracker := NewProgressTracker()
	model := newBuildModel(tracker, cfg.DataDir)
	if cfg.NoColor || DetectNoColor() {
		model.styles = NoColorStyles()
	}

	return &TUIRenderer{
		cfg:     cfg,
		tracker: tracker,
		model:   model,
		done:    make(chan struct{}),
	}, nil
}

// Start implements Renderer.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}

	ctx, r.cancel = context.WithCancel(ctx)
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}

	r.program = tea.NewProgram(r.model, opts...)
	r.started = true

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return nil
}

// UpdateProgress implements Renderer.
func (r *TUIRenderer) UpdateProgress(event ProgressEvent) {
	r.tracker.Apply(event)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		r.program.Send(refreshMsg{})
	}
}

// AddError implements Renderer.
func (r *TUIRenderer) AddError(event ErrorEvent) {
	r.tracker.AddError(event)
}

// Complete implements Renderer.
func (r *TUIRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	program := r.program
	r.mu.Unlock()

	if program == nil {
		return
	}
	program.Send(completeMsg(stats))

	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
	}
}

// Stop implements Renderer.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.program == nil {
		return nil
	}
	r.program.Quit()

	// An unresponsive program must not hang Ctrl+C.
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
	}
	if r.cancel != nil {
		r.cancel()
	}
	return nil
}

type refreshMsg struct{}
type completeMsg CompletionStats

// buildModel is the bubbletea model for build progress.
type buildModel struct {
	tracker  *ProgressTracker
	dataDir  string
	width    int
	quitting bool
	complete bool
	stats    CompletionStats
	spinner  spinner.Model
	bar      progress.Model
	styles   Styles
}

func newBuildModel(tracker *ProgressTracker, dataDir string) *buildModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAccent))

	return &buildModel{
		tracker: tracker,
		dataDir: dataDir,
		width:   80,
		spinner: s,
		bar: progress.New(
			progress.WithSolidFill(ColorAccent),
			progress.WithWidth(50),
			progress.WithoutPercentage(),
		),
		styles: DefaultStyles(),
	}
}

// Init implements tea.Model.
func (m *buildModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m *buildModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(msg.Width-20, 20)
	case completeMsg:
		m.complete = true
		m.stats = CompletionStats(msg)
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *buildModel) View() string {
	if m.quitting {
		return "Cancelled.\n"
	}
	if m.complete {
		return m.renderComplete()
	}

	stats := m.tracker.Stats()
	title := "Curia Indexer"
	if m.dataDir != "" {
		title += " • " + m.dataDir
	}

	lines := []string{
		m.styles.Header.Render(title),
		m.renderStages(stats.Stage),
		m.renderProgress(stats),
	}
	if stats.CurrentFile != "" {
		lines = append(lines, m.styles.Dim.Render(truncate(stats.CurrentFile, m.width-4)))
	}
	if status := m.renderIssues(stats); status != "" {
		lines = append(lines, status)
	}
	return strings.Join(lines, "\n") + "\n"
}

func (m *buildModel) renderStages(current Stage) string {
	stages := []Stage{StageScanning, StageExtracting, StageEmbedding, StagePersisting}

	parts := make([]string, 0, len(stages))
	for _, s := range stages {
		switch {
		case s < current:
			parts = append(parts, m.styles.Success.Render("● "+s.String()))
		case s == current:
			parts = append(parts, m.styles.Active.Render(m.spinner.View()+" "+s.String()))
		default:
			parts = append(parts, m.styles.Dim.Render("○ "+s.String()))
		}
	}
	return strings.Join(parts, m.styles.Dim.Render(" → "))
}

func (m *buildModel) renderProgress(stats ProgressStats) string {
	if stats.Total == 0 {
		return m.styles.Label.Render(stats.Stage.String() + "...")
	}

	unit := "chunks"
	if stats.Stage == StageExtracting {
		unit = "documents"
	}
	line := fmt.Sprintf("%s  %s  %s",
		m.bar.ViewAs(stats.Progress),
		m.styles.Active.Render(fmt.Sprintf("%3.0f%%", stats.Progress*100)),
		m.styles.Label.Render(fmt.Sprintf("%d / %d %s", stats.Current, stats.Total, unit)))
	if stats.ETA > 0 {
		line += m.styles.Label.Render("  ETA " + formatDuration(stats.ETA))
	}
	return line
}

func (m *buildModel) renderIssues(stats ProgressStats) string {
	var parts []string
	if stats.WarnCount > 0 {
		parts = append(parts, m.styles.Warning.Render(fmt.Sprintf("⚠ %d warnings", stats.WarnCount)))
	}
	if stats.ErrorCount > 0 {
		parts = append(parts, m.styles.Error.Render(fmt.Sprintf("✗ %d errors", stats.ErrorCount)))
	}
	return strings.Join(parts, "  ")
}

func (m *buildModel) renderComplete() string {
	var lines []string
	if m.stats.Reused {
		lines = append(lines, m.styles.Success.Render("✓ Index up to date"))
	} else {
		lines = append(lines,
			m.styles.Success.Render("✓ Indexing complete"),
			"",
			fmt.Sprintf("%s %d", m.styles.Label.Render("Documents:"), m.stats.Files),
			fmt.Sprintf("%s    %d", m.styles.Label.Render("Chunks:"), m.stats.Chunks))
		if m.stats.Skipped > 0 {
			lines = append(lines, m.styles.Warning.Render(fmt.Sprintf("⚠ %d skipped without text", m.stats.Skipped)))
		}
	}
	lines = append(lines, fmt.Sprintf("%s  %s", m.styles.Label.Render("Duration:"), formatDuration(m.stats.Duration)))

	return m.styles.Complete.Width(max(m.width-4, 40)).Render(strings.Join(lines, "\n")) + "\n"
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		if s == 0 {
			return fmt.Sprintf("%dm", m)
		}
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

// truncate shortens s from the left to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if n < 4 || len(r) <= n {
		return s
	}
	return "..." + string(r[len(r)-n+3:])
}

var _ Renderer = (*TUIRenderer)(nil)
