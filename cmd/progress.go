package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/xeptore/ymdl/acquire"
)

const (
	progressBarWidth  = 40
	transferThrottle  = 100 * time.Millisecond
	messageWidthLimit = 72
)

var (
	labelStyle   = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	skippedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// reporter renders progress of concurrent runs. Sink(slot) is used by
// exactly one run.
type reporter interface {
	Sink(slot int) acquire.Sink
	Start()
	Stop()
}

// isTransfer reports whether p only carries byte counters of the track
// being downloaded.
func isTransfer(p acquire.Progress) bool {
	return p.Bytes != 0 || p.BytesTotal != 0
}

// fraction is the share of the run that is done, counting the partially
// transferred track.
func fraction(p acquire.Progress) float64 {
	if p.Total == 0 {
		if p.Phase.Terminal() {
			return 1
		}
		return 0
	}
	done := float64(p.Current)
	if p.BytesTotal > 0 {
		done += float64(p.Bytes) / float64(p.BytesTotal)
	}
	return min(done/float64(p.Total), 1)
}

type plainReporter struct {
	logger zerolog.Logger
}

func newPlainReporter(logger zerolog.Logger) *plainReporter {
	return &plainReporter{logger: logger}
}

func (r *plainReporter) Start() {}
func (r *plainReporter) Stop() {}

func (r *plainReporter) Sink(slot int) acquire.Sink {
	return func(p acquire.Progress) {
		if isTransfer(p) {
			return
		}
		e := r.logger.Info()
		if p.Phase == acquire.PhaseError {
			e = r.logger.Error()
		}
		e.
			Int("slot", slot).
			Str("run_id", p.RunID).
			Str("phase", string(p.Phase)).
			Int("current", p.Current).
			Int("total", p.Total).
			Msg(p.Message)
	}
}

type progressMsg struct {
	slot int
	p    acquire.Progress
}

type stopMsg struct{}

type runRow struct {
	identifier string
	last       acquire.Progress
	bar        progress.Model
}

type progressModel struct {
	rows   []runRow
	cancel context.CancelFunc
}

func newProgressModel(identifiers []string, cancel context.CancelFunc) progressModel {
	rows := make([]runRow, len(identifiers))
	for i, identifier := range identifiers {
		rows[i] = runRow{
			identifier: identifier,
			last:       acquire.Progress{Phase: acquire.PhasePending, Message: "Queued"}, //nolint:exhaustruct
			bar:        progress.New(progress.WithDefaultGradient(), progress.WithWidth(progressBarWidth)),
		}
	}
	return progressModel{rows: rows, cancel: cancel}
}

func (m progressModel) Init() tea.Cmd {
	return nil
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Raw mode delivers Ctrl+C as a key press instead of a signal.
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			m.cancel()
		}
	case progressMsg:
		if msg.slot >= 0 && msg.slot < len(m.rows) {
			m.rows[msg.slot].last = msg.p
		}
	case stopMsg:
		return m, tea.Quit
	}
	return m, nil
}

func (m progressModel) View() string {
	var b strings.Builder
	for _, row := range m.rows {
		p := row.last
		status := mutedStyle.Render(string(p.Phase))
		switch p.Phase {
		case acquire.PhaseCompleted:
			status = successStyle.Render(string(p.Phase))
		case acquire.PhaseError:
			status = failureStyle.Render(string(p.Phase))
		}
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(row.identifier), status)
		fmt.Fprintf(&b, "  %s %d/%d\n", row.bar.ViewAs(fraction(p)), p.Current, p.Total)
		fmt.Fprintf(&b, "  %s\n\n", mutedStyle.Render(shorten(p.Message, messageWidthLimit)))
	}
	b.WriteString(mutedStyle.Render("Press ctrl+c to stop"))
	b.WriteString("\n")
	return b.String()
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

type tuiReporter struct {
	program *tea.Program
	done    chan struct{}
	once    sync.Once
}

func newTUIReporter(identifiers []string, cancel context.CancelFunc, out io.Writer) *tuiReporter {
	program := tea.NewProgram(
		newProgressModel(identifiers, cancel),
		tea.WithOutput(out),
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
	)
	return &tuiReporter{program: program, done: make(chan struct{}), once: sync.Once{}}
}

func (r *tuiReporter) Start() {
	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
}

func (r *tuiReporter) Stop() {
	r.once.Do(func() {
		r.program.Send(stopMsg{})
		<-r.done
	})
}

func (r *tuiReporter) Sink(slot int) acquire.Sink {
	var lastTransfer time.Time
	return func(p acquire.Progress) {
		if isTransfer(p) {
			now := time.Now()
			if now.Sub(lastTransfer) < transferThrottle {
				return
			}
			lastTransfer = now
		}
		r.program.Send(progressMsg{slot: slot, p: p})
	}
}

func printSummaries(w io.Writer, summaries []acquire.Summary) {
	for _, s := range summaries {
		title := s.Identifier
		if nil != s.Playlist {
			title = s.Playlist.Title + " (" + s.Identifier + ")"
		}
		status := successStyle.Render("done")
		if !s.Success {
			status = failureStyle.Render("failed")
		}
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render(title), status)
		if s.Dir != "" {
			fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("directory:"), s.Dir)
		}
		fmt.Fprintf(
			w,
			"  %s  %s  %s\n",
			successStyle.Render(fmt.Sprintf("%d successful", s.Successful)),
			failureStyle.Render(fmt.Sprintf("%d failed", s.Failed)),
			skippedStyle.Render(fmt.Sprintf("%d already present", s.Skipped)),
		)
		fmt.Fprintf(w, "  %s\n", s.Message)
		if s.RunID != "" {
			fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("run:"), s.RunID)
		}
	}
}
