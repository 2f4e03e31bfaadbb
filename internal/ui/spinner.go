package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Task is work shown behind a spinner. report updates the status line.
type Task func(ctx context.Context, report func(status string)) error

type statusMsg string

type doneMsg struct{ err error }

// spinnerModel is the bubbletea model for a single long-running task.
type spinnerModel struct {
	title   string
	status  string
	started time.Time
	spinner spinner.Model
	cancel  context.CancelFunc
	err     error
	done    bool
	now     func() time.Time
}

func newSpinnerModel(title string, cancel context.CancelFunc) spinnerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle
	return spinnerModel{
		title:   title,
		status:  "starting",
		started: time.Now(),
		spinner: s,
		cancel:  cancel,
		now:     time.Now,
	}
}

func (m spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			// The task sees the cancellation and reports back with doneMsg.
			m.cancel()
			m.status = "cancelling"
		}
		return m, nil

	case statusMsg:
		m.status = string(msg)
		return m, nil

	case doneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m spinnerModel) View() string {
	elapsed := m.now().Sub(m.started).Truncate(time.Second)
	if m.done {
		if m.err != nil {
			return fmt.Sprintf("%s %s %s\n", Mark(false), m.title, Error(m.err.Error()))
		}
		return fmt.Sprintf("%s %s %s\n", Mark(true), m.title, Dim(elapsed.String()))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s %s\n", m.spinner.View(), Title(m.title), m.status, Dim(elapsed.String()))
	b.WriteString(Dim("  ctrl+c to stop waiting") + "\n")
	return b.String()
}

// RunWithSpinner runs task while showing a spinner and its latest status.
// Without a terminal it prints each distinct status on its own line.
func RunWithSpinner(ctx context.Context, title string, task Task) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if !IsTerminal() {
		return runPlain(ctx, title, task)
	}

	p := tea.NewProgram(newSpinnerModel(title, cancel))
	errCh := make(chan error, 1)
	go func() {
		err := task(ctx, func(s string) { p.Send(statusMsg(s)) })
		errCh <- err
		p.Send(doneMsg{err: err})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-errCh
		return fmt.Errorf("running progress display: %w", err)
	}
	return <-errCh
}

func runPlain(ctx context.Context, title string, task Task) error {
	fmt.Println(title + "...")
	last := ""
	return task(ctx, func(s string) {
		if s != last {
			fmt.Printf("  status: %s\n", s)
			last = s
		}
	})
}
