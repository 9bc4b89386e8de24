package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const (
	barPadding  = 2
	maxBarWidth = 60
)

type phase int

const (
	phaseDownloading phase = iota
	phaseForwarding
	phaseDone
)

type (
	progressMsg float64
	loadedMsg   struct{}
	resultMsg   struct {
		err    error
		output string
	}
)

type runModel struct {
	err      error
	cancel   context.CancelFunc
	title    string
	output   string
	progress progress.Model
	spinner  spinner.Model
	phase    phase
}

func newRunModel(title string, cancel context.CancelFunc) *runModel {
	s := spinner.New()
	s.Spinner = spinner.Dot

	return &runModel{
		title:    title,
		cancel:   cancel,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(maxBarWidth)),
		spinner:  s,
	}
}

func (m *runModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *runModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.cancel()
			m.err = context.Canceled
			m.phase = phaseDone
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.progress.Width = min(msg.Width-barPadding*2, maxBarWidth)

	case progressMsg:
		return m, m.progress.SetPercent(float64(msg))

	case loadedMsg:
		m.phase = phaseForwarding
		return m, m.progress.SetPercent(1)

	case resultMsg:
		m.output, m.err = msg.output, msg.err
		m.phase = phaseDone
		return m, tea.Quit

	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		m.progress = pm.(progress.Model)
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *runModel) View() string {
	var b strings.Builder
	pad := strings.Repeat(" ", barPadding)

	b.WriteString(titleStyle.Render(m.title) + "\n\n")

	switch m.phase {
	case phaseDownloading:
		b.WriteString(pad + m.spinner.View() + " Downloading model\n")
		b.WriteString(pad + m.progress.View() + "\n\n")
		b.WriteString(helpStyle.Render(pad+"ctrl+c: cancel") + "\n")
	case phaseForwarding:
		b.WriteString(pad + m.spinner.View() + " Running model\n")
	case phaseDone:
		if m.err != nil {
			b.WriteString(errorStyle.Render(pad+"Error: "+m.err.Error()) + "\n")
		} else {
			b.WriteString(resultStyle.Render(pad+"Output: "+m.output) + "\n")
		}
	}

	return b.String()
}

// RunInteractive executes job while drawing its progress on out.
func RunInteractive(ctx context.Context, job Job, out io.Writer) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := newRunModel(fmt.Sprintf("stylus · %s", job.Source), cancel)
	p := tea.NewProgram(m, tea.WithOutput(out), tea.WithContext(ctx))

	go func() {
		err := job.Module.Load(ctx, job.Source, func(v float64) { p.Send(progressMsg(v)) })
		if err != nil {
			p.Send(resultMsg{err: fmt.Errorf("load %s: %w", job.Source, err)})
			return
		}
		p.Send(loadedMsg{})

		output, err := job.Module.Forward(ctx, job.Input)
		p.Send(resultMsg{output: output, err: err})
	}()

	final, err := p.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return "", fmt.Errorf("cli: run ui: %w", err)
	}

	rm, ok := final.(*runModel)
	if !ok || rm.phase != phaseDone {
		return "", context.Canceled
	}
	return rm.output, rm.err
}
