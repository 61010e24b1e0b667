// Package tui renders an inline spinner view while a poll operation waits
// for a remote model to finish.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	anyworld "github.com/anythingworld/anything-world-go"
)

var (
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
	stageStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("35")).Bold(true)
)

// PollFunc runs a poll to completion, reporting each non-terminal check
// through progress.
type PollFunc func(ctx context.Context, progress func(attempt int, stage string, elapsed time.Duration)) (*anyworld.Model, error)

type progressMsg struct {
	attempt int
	stage   string
	elapsed time.Duration
}

type pollDoneMsg struct {
	model *anyworld.Model
	err   error
}

type watchModel struct {
	modelID  string
	spin     spinner.Model
	stage    string
	attempt  int
	elapsed  time.Duration
	events   chan tea.Msg
	cancel   context.CancelFunc
	result   *anyworld.Model
	err      error
	finished bool
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.nextEvent())
}

// nextEvent forwards the next poll event (progress or completion) to the program.
func (m watchModel) nextEvent() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		return <-events
	}
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressMsg:
		m.attempt = msg.attempt
		m.stage = msg.stage
		m.elapsed = msg.elapsed
		return m, m.nextEvent()
	case pollDoneMsg:
		m.result = msg.model
		m.err = msg.err
		m.finished = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.cancel()
			m.err = fmt.Errorf("cancelled")
			m.finished = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m watchModel) View() string {
	if m.finished {
		if m.err == nil && m.result != nil {
			return doneStyle.Render(fmt.Sprintf("✓ model %s ready (stage %s)", m.modelID, m.result.Stage)) + "\n"
		}
		return ""
	}

	stage := m.stage
	if stage == "" {
		stage = "waiting for first status"
	}
	return fmt.Sprintf("%s Waiting for model %s... %s\n",
		spinnerStyle.Render(m.spin.View()),
		m.modelID,
		stageStyle.Render(fmt.Sprintf("stage: %s · attempt %d · %s elapsed",
			stage, m.attempt, m.elapsed.Round(time.Second))),
	)
}

// Watch runs poll while rendering an inline spinner with the latest stage.
// It renders inline (no alt screen); ctrl+c cancels the poll.
func Watch(ctx context.Context, modelID string, poll PollFunc) (*anyworld.Model, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan tea.Msg, 8)
	go func() {
		model, err := poll(ctx, func(attempt int, stage string, elapsed time.Duration) {
			events <- progressMsg{attempt: attempt, stage: stage, elapsed: elapsed}
		})
		events <- pollDoneMsg{model: model, err: err}
	}()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := watchModel{
		modelID: modelID,
		spin:    sp,
		events:  events,
		cancel:  cancel,
	}
	result, err := tea.NewProgram(m).Run()
	if err != nil {
		return nil, err
	}
	final := result.(watchModel)
	return final.result, final.err
}
