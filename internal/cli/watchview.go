package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"tasksync/backend"
)

// SyncResultMsg reports one finished sync to the watch view
type SyncResultMsg struct {
	At      time.Time
	Summary *backend.SyncSummary
	Err     error
}

// watchModel is the bubbletea model for the live watch status
type watchModel struct {
	provider string
	path     string
	spinner  spinner.Model
	runs     int
	failures int
	last     *SyncResultMsg
	quitting bool
	width    int
}

var (
	watchTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	watchMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	watchOKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	watchErrStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// newWatchModel creates the watch view model
func newWatchModel(provider, path string) watchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("36"))

	return watchModel{
		provider: provider,
		path:     path,
		spinner:  s,
		width:    80,
	}
}

// Init starts the spinner
func (m watchModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles key presses, sync results and spinner ticks
func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case SyncResultMsg:
		m.runs++
		if msg.Err != nil || (msg.Summary != nil && !msg.Summary.Success) {
			m.failures++
		}
		result := msg
		m.last = &result
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the status screen
func (m watchModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(watchTitleStyle.Render(fmt.Sprintf("Watching %s for %s", m.path, m.provider)))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("%s waiting for changes  ", m.spinner.View()))
	b.WriteString(watchMutedStyle.Render(fmt.Sprintf("(%d syncs, %d failed)", m.runs, m.failures)))
	b.WriteString("\n\n")

	if m.last != nil {
		stamp := m.last.At.Format(time.TimeOnly)
		switch {
		case m.last.Err != nil:
			b.WriteString(watchErrStyle.Render(fmt.Sprintf("%s ✗ %v", stamp, m.last.Err)))
		case m.last.Summary != nil && !m.last.Summary.Success:
			b.WriteString(watchErrStyle.Render(fmt.Sprintf("%s ✗ %s", stamp, backend.StringValue(m.last.Summary.Error))))
		case m.last.Summary != nil:
			s := m.last.Summary
			b.WriteString(watchOKStyle.Render(fmt.Sprintf("%s ✓ +%d ~%d -%d tasks, %d projects, %d labels",
				stamp, s.TasksAdded, s.TasksUpdated, s.TasksDeleted, s.ProjectsSynced, s.LabelsSynced)))
		}
		b.WriteString("\n\n")
	}

	b.WriteString(watchMutedStyle.Render("q: quit"))
	b.WriteString("\n")
	return b.String()
}

// WatchView runs the live status screen. Results are pushed with Send; the
// view ends when the user quits or ctx is cancelled.
type WatchView struct {
	program *tea.Program
}

// NewWatchView creates the status screen for provider and path
func NewWatchView(ctx context.Context, provider, path string) *WatchView {
	return &WatchView{
		program: tea.NewProgram(newWatchModel(provider, path), tea.WithContext(ctx)),
	}
}

// Send delivers a sync result to the screen
func (v *WatchView) Send(result SyncResultMsg) {
	v.program.Send(result)
}

// Run blocks until the user quits or the context ends
func (v *WatchView) Run() error {
	_, err := v.program.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}
