package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"

	"tasksync/backend"
)

// GetTerminalWidth returns the current terminal width, defaulting to 80 if unable to detect
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		// Default to 80 if we can't detect terminal size
		return 80
	}
	return width
}

// Display renders command results for humans
type Display struct {
	out   io.Writer
	boxed bool
	width int

	title   lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	success lipgloss.Style
	failure lipgloss.Style
	muted   lipgloss.Style
	box     lipgloss.Style
}

// NewDisplay renders to f, using borders and colour only when f is a terminal
func NewDisplay(f *os.File) *Display {
	isTTY := term.IsTerminal(int(f.Fd()))
	width := 80
	if isTTY {
		width = GetTerminalWidth()
	}
	return newDisplay(f, isTTY, width)
}

// NewPlainDisplay renders to w without borders
func NewPlainDisplay(w io.Writer) *Display {
	return newDisplay(w, false, 80)
}

func newDisplay(w io.Writer, boxed bool, width int) *Display {
	r := lipgloss.NewRenderer(w)

	// Border width: leave some padding, stay readable on wide terminals
	if width < 40 {
		width = 40
	}
	if width > 100 {
		width = 100
	}

	return &Display{
		out:     w,
		boxed:   boxed,
		width:   width,
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		label:   r.NewStyle().Foreground(lipgloss.Color("241")),
		value:   r.NewStyle().Bold(true),
		success: r.NewStyle().Foreground(lipgloss.Color("42")),
		failure: r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		muted:   r.NewStyle().Foreground(lipgloss.Color("245")),
		box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("36")).
			Padding(0, 1),
	}
}

// field renders one "label: value" line
func (d *Display) field(name string, value interface{}) string {
	return fmt.Sprintf("%s %s", d.label.Render(fmt.Sprintf("%-16s", name+":")), d.value.Render(fmt.Sprint(value)))
}

// frame joins lines and puts them in a box on terminals
func (d *Display) frame(lines ...string) {
	body := lipgloss.JoinVertical(lipgloss.Left, lines...)
	if d.boxed {
		body = d.box.Width(d.width - 2).Render(body)
	}
	fmt.Fprintln(d.out, body)
}

// SyncSummary prints the result of a sync
func (d *Display) SyncSummary(provider, mode string, s *backend.SyncSummary) {
	status := d.success.Render("✓ Sync completed")
	if !s.Success {
		status = d.failure.Render("✗ Sync failed")
	}

	lines := []string{
		d.title.Render(fmt.Sprintf("%s sync: %s", mode, provider)),
		status,
		d.field("Tasks added", s.TasksAdded),
		d.field("Tasks updated", s.TasksUpdated),
		d.field("Tasks deleted", s.TasksDeleted),
		d.field("Projects synced", s.ProjectsSynced),
		d.field("Labels synced", s.LabelsSynced),
	}
	if s.NewSyncToken != nil {
		lines = append(lines, d.field("Sync token", *s.NewSyncToken))
	}
	if s.Error != nil {
		lines = append(lines, d.failure.Render("Error: "+*s.Error))
	}
	d.frame(lines...)
}

// Completions prints an outbox listing
func (d *Display) Completions(provider string, completions []backend.PendingCompletion) {
	if len(completions) == 0 {
		fmt.Fprintln(d.out, d.muted.Render(fmt.Sprintf("No pending completions for %s", provider)))
		return
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "TASK", "PROVIDER TASK", "ACTION", "QUEUED", "RETRIES")
	for _, c := range completions {
		action := "complete"
		if !c.Completed {
			action = "reopen"
		}
		t.Row(c.ID, c.TaskID, c.ProviderTaskID, action, c.CreatedAt.Local().Format(time.DateTime), strconv.Itoa(c.RetryCount))
	}

	fmt.Fprintln(d.out, d.title.Render(fmt.Sprintf("Pending completions: %s (%d)", provider, len(completions))))
	fmt.Fprintln(d.out, t.Render())
}

// Completion prints a single queued record
func (d *Display) Completion(c *backend.PendingCompletion) {
	d.frame(
		d.success.Render("✓ Completion queued"),
		d.field("ID", c.ID),
		d.field("Task", c.TaskID),
		d.field("Provider", c.Provider),
		d.field("Completed", c.Completed),
	)
}

// Cleared prints the result of clearing a provider
func (d *Display) Cleared(provider string, deleted int) {
	fmt.Fprintln(d.out, d.success.Render(fmt.Sprintf("✓ Cleared %d tasks for %s", deleted, provider)))
}

// Token prints a provider's sync token
func (d *Display) Token(provider string, token *string) {
	if token == nil {
		fmt.Fprintln(d.out, d.muted.Render(fmt.Sprintf("No sync token stored for %s", provider)))
		return
	}
	fmt.Fprintln(d.out, d.field("Sync token", *token))
}

// Message prints a plain status line
func (d *Display) Message(format string, args ...interface{}) {
	fmt.Fprintln(d.out, d.success.Render(fmt.Sprintf(format, args...)))
}

// Stats prints database statistics
func (d *Display) Stats(path string, s backend.Stats) {
	d.frame(
		d.title.Render("Local store"),
		d.field("Database", path),
		d.field("Providers", s.Providers),
		d.field("Tasks", s.Tasks),
		d.field("Projects", s.Projects),
		d.field("Labels", s.Labels),
		d.field("Pending", s.PendingCompletions),
		d.field("Size", fmt.Sprintf("%.2f MB", float64(s.DatabaseSize)/(1024*1024))),
	)
}
