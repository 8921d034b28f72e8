package report

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/zond/worldtest"
	"github.com/zond/worldtest/gametest"
	"golang.org/x/term"
)

// LogSink writes human-readable results to a logger.
type LogSink struct {
	logger   *log.Logger
	styled   bool
	stack    bool
	pass     lipgloss.Style
	fail     lipgloss.Style
	optional lipgloss.Style
	muted    lipgloss.Style
	tally    Tally
}

type LogOptions struct {
	// Styled forces coloring on or off. When nil it is on if the writer is a terminal.
	Styled *bool
	// Stacks adds the stack trace of failures.
	Stacks bool
}

func NewLogSink(w io.Writer, opts LogOptions) *LogSink {
	styled := isTerminal(w)
	if opts.Styled != nil {
		styled = *opts.Styled
	}
	return &LogSink{
		logger:   log.New(w, "", log.LstdFlags),
		styled:   styled,
		stack:    opts.Stacks,
		pass:     lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		fail:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		optional: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		muted:    lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (l *LogSink) render(style lipgloss.Style, s string) string {
	if !l.styled {
		return s
	}
	return style.Render(s)
}

func (l *LogSink) OnTestSuccess(e *gametest.Execution) {
	r := FromExecution(e)
	l.tally.Add(r)
	l.logger.Printf("%s %s %s", l.render(l.pass, "PASS"), r.Name, l.render(l.muted, l.details(r)))
}

func (l *LogSink) OnTestFailed(e *gametest.Execution) {
	r := FromExecution(e)
	l.tally.Add(r)
	label, style := "FAIL", l.fail
	if !r.Required {
		label, style = "WARN", l.optional
	}
	l.logger.Printf("%s %s %s: %v", l.render(style, label), r.Name, l.render(l.muted, l.details(r)), r.Err)
	if l.stack {
		if trace := worldtest.StackTrace(r.Err); trace != "" {
			l.logger.Print(trace)
		}
	}
}

func (l *LogSink) details(r Result) string {
	return fmt.Sprintf("(%s, attempt %d, %d ticks, %v)", r.Structure, r.Attempt, r.Ticks, r.Duration.Round(time.Millisecond))
}

func (l *LogSink) Finish() {
	style := l.pass
	if l.tally.FailedRequired > 0 {
		style = l.fail
	} else if l.tally.FailedOptional > 0 {
		style = l.optional
	}
	l.logger.Print(l.render(style, l.tally.Summary()))
	l.tally = Tally{}
}
