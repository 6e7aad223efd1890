// Package tui renders the terminal progress view for fixture generation.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/afero"
	"github.com/zarlcorp/core/pkg/zstyle"
	"github.com/zarlcorp/zgen/internal/emitter"
)

const (
	maxBarWidth = 60
	// progress updates per run; more only costs redraws
	updates = 200
)

var footer = []zstyle.HelpPair{{Key: "q", Desc: "cancel"}}

// ProgressMsg reports records written so far.
type ProgressMsg struct {
	Written int
	Total   int
}

// DoneMsg reports the end of a run.
type DoneMsg struct {
	Result emitter.Result
	Err    error
}

// Model is the progress view for a single emit run.
type Model struct {
	bar       progress.Model
	path      string
	written   int
	total     int
	done      bool
	cancelled bool
	err       error
	cancel    context.CancelFunc
}

// NewModel creates the progress view. cancel is invoked when the user
// asks to stop; the view keeps running until DoneMsg arrives.
func NewModel(cfg emitter.Config, cancel context.CancelFunc) Model {
	return Model{
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(maxBarWidth)),
		path:   cfg.Path,
		total:  cfg.Count,
		cancel: cancel,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = min(msg.Width-4, maxBarWidth)
		return m, nil

	case tea.KeyMsg:
		if (key.Matches(msg, zstyle.KeyQuit) || key.Matches(msg, zstyle.KeyBack)) && !m.cancelled {
			m.cancelled = true
			if m.cancel != nil {
				m.cancel()
			}
		}
		return m, nil

	case ProgressMsg:
		m.written = msg.Written
		m.total = msg.Total
		return m, nil

	case DoneMsg:
		m.done = true
		m.err = msg.Err
		if msg.Err == nil {
			m.written = msg.Result.Count
		}
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) percent() float64 {
	if m.total <= 0 {
		if m.done {
			return 1
		}
		return 0
	}
	return float64(m.written) / float64(m.total)
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString("\n  " + zstyle.Title.Render("zgen") + " " + zstyle.MutedText.Render(m.path) + "\n\n")
	b.WriteString("  " + m.bar.ViewAs(m.percent()) + "\n")
	b.WriteString("  " + zstyle.MutedText.Render(fmt.Sprintf("%d/%d records", m.written, m.total)) + "\n\n")

	switch {
	case m.done && m.err != nil:
		b.WriteString("  " + zstyle.StatusErr.Render("failed: "+m.err.Error()) + "\n")
	case m.done:
		b.WriteString("  " + zstyle.StatusOK.Render("done") + "\n")
	case m.cancelled:
		b.WriteString("  " + zstyle.MutedText.Render("cancelling...") + "\n")
	default:
		b.WriteString(zstyle.RenderFooter(footer) + "\n")
	}

	return b.String()
}

// Emit runs the emitter while rendering the progress view. It returns
// once the emitter has finished and released the file.
func Emit(ctx context.Context, fsys afero.Fs, cfg emitter.Config, opts ...tea.ProgramOption) (emitter.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewModel(cfg, cancel), opts...)

	every := max(cfg.Count/updates, 1)
	em := emitter.New(fsys, emitter.WithProgress(func(written, total int) {
		p.Send(ProgressMsg{Written: written, Total: total})
	}, every))

	type outcome struct {
		res emitter.Result
		err error
	}
	out := make(chan outcome, 1)
	go func() {
		res, err := em.Emit(ctx, cfg)
		out <- outcome{res, err}
		p.Send(DoneMsg{Result: res, Err: err})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		o := <-out
		if o.err != nil {
			return o.res, o.err
		}
		return o.res, fmt.Errorf("progress view: %w", err)
	}

	o := <-out
	return o.res, o.err
}
