// Package command implements the operator commands of the test console.
//
// Most commands touch the world and the engine, so Execute must run on the
// tick thread unless Detached reports otherwise. Output goes to the writer
// passed to Execute.
package command

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/buildkite/shellwords"
	"github.com/pkg/errors"
	"github.com/rodaine/table"
	"github.com/zond/worldtest"
	"github.com/zond/worldtest/gametest"
	"github.com/zond/worldtest/geom"
	"github.com/zond/worldtest/lang"
	"github.com/zond/worldtest/metrics"
	"github.com/zond/worldtest/storage"

	goccy "github.com/goccy/go-json"
)

// ErrUsage is returned, wrapped with the usage line, for malformed commands.
var ErrUsage = errors.New("usage")

type command struct {
	names map[string]bool
	usage string
	help  string
	// detached commands only read the history and run off the tick thread.
	detached bool
	f        func(c *Console, w io.Writer, args []string) error
}

type commands []command

func (c commands) find(name string) (*command, bool) {
	for i := range c {
		if c[i].names[name] {
			return &c[i], true
		}
	}
	return nil, false
}

func m(s ...string) map[string]bool {
	res := map[string]bool{}
	for _, p := range s {
		res[p] = true
	}
	return res
}

func usage(cmd *command) error {
	return errors.Wrap(ErrUsage, "usage: "+cmd.usage)
}

// Console runs operator commands against an orchestrator.
type Console struct {
	orch     *gametest.Orchestrator
	history  *storage.History
	commands commands
}

// New returns a console. history may be nil.
func New(orch *gametest.Orchestrator, history *storage.History) *Console {
	c := &Console{orch: orch, history: history}
	c.commands = c.all()
	return c
}

// Execute runs one command line. Unknown commands and usage errors are
// returned, so that callers can print them.
func (c *Console) Execute(w io.Writer, line string) error {
	parts, err := shellwords.SplitPosix(line)
	if err != nil {
		return worldtest.WithStack(err)
	}
	if len(parts) == 0 {
		return nil
	}
	name := strings.TrimPrefix(parts[0], "/")
	cmd, found := c.commands.find(name)
	if !found {
		metrics.CommandsTotal.WithLabelValues("unknown", "error").Inc()
		return errors.Errorf("unknown command %q, try help", name)
	}
	if err := cmd.f(c, w, parts[1:]); err != nil {
		metrics.CommandsTotal.WithLabelValues(name, "error").Inc()
		if errors.Is(err, ErrUsage) {
			return err
		}
		return worldtest.WithStack(err)
	}
	metrics.CommandsTotal.WithLabelValues(name, "ok").Inc()
	return nil
}

// Detached reports whether line can be executed off the tick thread.
func (c *Console) Detached(line string) bool {
	parts, err := shellwords.SplitPosix(line)
	if err != nil || len(parts) == 0 {
		return false
	}
	cmd, found := c.commands.find(strings.TrimPrefix(parts[0], "/"))
	return found && cmd.detached
}

// Names returns the primary name of every command, sorted.
func (c *Console) Names() []string {
	var res []string
	for _, cmd := range c.commands {
		res = append(res, strings.Fields(cmd.usage)[0])
	}
	sort.Strings(res)
	return res
}

func parsePos(args []string) (geom.Pos, error) {
	if len(args) != 3 {
		return geom.Pos{}, errors.Errorf("want 3 coordinates, got %d", len(args))
	}
	coords := [3]int{}
	for i, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil {
			return geom.Pos{}, errors.Wrapf(err, "coordinate %q", a)
		}
		coords[i] = n
	}
	return geom.P(coords[0], coords[1], coords[2]), nil
}

func printStarted(w io.Writer, execs []*gametest.Execution) {
	fmt.Fprintf(w, "Started %s.\n", lang.Count(len(execs), "test"))
}

func (c *Console) all() commands {
	return commands{
		{
			names: m("run", "test"),
			usage: "run <test> [x y z]",
			help:  "Run a single test, at the given position or the default origin.",
			f: func(c *Console, w io.Writer, args []string) error {
				if len(args) != 1 && len(args) != 4 {
					return usage(c.mustFind("run"))
				}
				desc, found := c.orch.Registry().Get(args[0])
				if !found {
					return errors.Errorf("no test named %q", args[0])
				}
				origin := c.orch.Origin()
				if len(args) == 4 {
					pos, err := parsePos(args[1:])
					if err != nil {
						return err
					}
					origin = pos
				}
				e, err := c.orch.RunTest(desc, origin)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "Started %s at %v.\n", e, origin)
				return nil
			},
		},
		{
			names: m("runall"),
			usage: "runall [selector]",
			help:  "Clear the test area and run every test, or those matching a class, name, or prefix.",
			f: func(c *Console, w io.Writer, args []string) error {
				if len(args) > 1 {
					return usage(c.mustFind("runall"))
				}
				selector := ""
				if len(args) == 1 {
					selector = args[0]
				}
				execs, err := c.orch.RunAll(selector)
				if err != nil {
					return err
				}
				printStarted(w, execs)
				return nil
			},
		},
		{
			names: m("runfailed"),
			usage: "runfailed [required]",
			help:  "Rerun the tests that failed in the latest run, optionally only the required ones.",
			f: func(c *Console, w io.Writer, args []string) error {
				requiredOnly := false
				switch {
				case len(args) == 1 && args[0] == "required":
					requiredOnly = true
				case len(args) != 0:
					return usage(c.mustFind("runfailed"))
				}
				execs, err := c.orch.RunFailed(requiredOnly)
				if err != nil {
					return err
				}
				printStarted(w, execs)
				return nil
			},
		},
		{
			names: m("clearall"),
			usage: "clearall [radius]",
			help:  "Stop the current run and remove every test structure and marker near the origin.",
			f: func(c *Console, w io.Writer, args []string) error {
				radius := c.orch.ClearRadius()
				switch len(args) {
				case 0:
				case 1:
					n, err := strconv.Atoi(args[0])
					if err != nil || n < 1 {
						return usage(c.mustFind("clearall"))
					}
					radius = n
				default:
					return usage(c.mustFind("clearall"))
				}
				removed := c.orch.ClearAllTests(c.orch.Origin(), radius)
				fmt.Fprintf(w, "Removed %s.\n", lang.Count(removed, "structure"))
				return nil
			},
		},
		{
			names: m("stop"),
			usage: "stop",
			help:  "Abandon the current run, leaving its structures in place.",
			f: func(c *Console, w io.Writer, args []string) error {
				wasRunning := c.orch.Running()
				c.orch.Stop()
				if wasRunning {
					fmt.Fprintln(w, "Stopped.")
				} else {
					fmt.Fprintln(w, "Nothing running.")
				}
				return nil
			},
		},
		{
			names: m("list", "ls"),
			usage: "list [selector]",
			help:  "List registered tests.",
			f: func(c *Console, w io.Writer, args []string) error {
				if len(args) > 1 {
					return usage(c.mustFind("list"))
				}
				selector := ""
				if len(args) == 1 {
					selector = args[0]
				}
				t := table.New("Test", "Batch", "Structure", "Required", "Attempts", "Ticks").WithWriter(w)
				for _, d := range c.orch.Registry().Matching(selector) {
					attempts := strconv.Itoa(d.MaxAttempts)
					if d.Flaky() {
						attempts = fmt.Sprintf("%d of %d", d.RequiredSuccesses, d.MaxAttempts)
					}
					t.AddRow(d.Name, d.Batch, d.Structure, d.Required(), attempts, d.MaxTicks)
				}
				t.Print()
				return nil
			},
		},
		{
			names: m("status"),
			usage: "status",
			help:  "Show progress of the current run.",
			f: func(c *Console, w io.Writer, args []string) error {
				roster := c.orch.Current()
				if roster == nil {
					fmt.Fprintln(w, "No current run.")
					return nil
				}
				index, total := c.orch.Batch()
				t := table.New("Batch", "Done", "Passed", "Failed", "Optional failed", "Live").WithWriter(w)
				t.AddRow(fmt.Sprintf("%d/%d", index+1, total), fmt.Sprintf("%d/%d", roster.DoneCount(), roster.Total()), roster.PassedCount(), roster.FailedRequiredCount(), roster.FailedOptionalCount(), c.orch.Ticker().Len())
				t.Print()
				fmt.Fprintf(w, "[%s]\n", roster.Progress())
				if roster.Done() {
					fmt.Fprintln(w, roster.Summary())
				}
				return nil
			},
		},
		{
			names: m("failed"),
			usage: "failed",
			help:  "List the tests that failed in the latest run.",
			f: func(c *Console, w io.Writer, args []string) error {
				failed := c.orch.LastFailed()
				if len(failed) == 0 {
					fmt.Fprintln(w, "No failures.")
					return nil
				}
				t := table.New("Test", "Batch", "Required").WithWriter(w)
				for _, d := range failed {
					t.AddRow(d.Name, d.Batch, d.Required())
				}
				t.Print()
				return nil
			},
		},
		{
			names: m("inspect"),
			usage: "inspect <test>",
			help:  "Show a test descriptor as JSON.",
			f: func(c *Console, w io.Writer, args []string) error {
				if len(args) != 1 {
					return usage(c.mustFind("inspect"))
				}
				d, found := c.orch.Registry().Get(args[0])
				if !found {
					return errors.Errorf("no test named %q", args[0])
				}
				js, err := goccy.MarshalIndent(describe(d), "", "  ")
				if err != nil {
					return worldtest.WithStack(err)
				}
				fmt.Fprintln(w, string(js))
				return nil
			},
		},
		{
			names:    m("history"),
			detached: true,
			usage:    "history [count]",
			help:     "Show the latest recorded runs.",
			f: func(c *Console, w io.Writer, args []string) error {
				limit, err := c.limitArg("history", args)
				if err != nil {
					return err
				}
				if c.history == nil {
					fmt.Fprintln(w, "History is disabled.")
					return nil
				}
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				runs, err := c.history.Runs(ctx, limit)
				if err != nil {
					return err
				}
				t := table.New("Run", "Started", "Tests", "Passed", "Failed", "Optional failed").WithWriter(w)
				for _, r := range runs {
					t.AddRow(r.ID, time.Unix(0, r.StartedAt).Format(time.DateTime), r.Tests, r.Passed, r.FailedRequired, r.FailedOptional)
				}
				t.Print()
				return nil
			},
		},
		{
			names:    m("flaky"),
			detached: true,
			usage:    "flaky [count]",
			help:     "Show the tests that failed most often in recorded runs.",
			f: func(c *Console, w io.Writer, args []string) error {
				limit, err := c.limitArg("flaky", args)
				if err != nil {
					return err
				}
				if c.history == nil {
					fmt.Fprintln(w, "History is disabled.")
					return nil
				}
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				stats, err := c.history.Flakiest(ctx, limit)
				if err != nil {
					return err
				}
				t := table.New("Test", "Runs", "Failures", "Rate%").WithWriter(w)
				for _, s := range stats {
					t.AddRow(s.Name, s.Runs, s.Failures, fmt.Sprintf("%.1f", 100*s.FailureRate()))
				}
				t.Print()
				return nil
			},
		},
		{
			names: m("help", "?"),
			usage: "help",
			help:  "Show this list.",
			f: func(c *Console, w io.Writer, args []string) error {
				t := table.New("Command", "Description").WithWriter(w)
				for _, cmd := range c.commands {
					t.AddRow(cmd.usage, cmd.help)
				}
				t.Print()
				return nil
			},
		},
	}
}

func (c *Console) mustFind(name string) *command {
	cmd, found := c.commands.find(name)
	if !found {
		panic(fmt.Sprintf("no command %q", name))
	}
	return cmd
}

func (c *Console) limitArg(name string, args []string) (int, error) {
	switch len(args) {
	case 0:
		return 10, nil
	case 1:
		n, err := strconv.Atoi(args[0])
		if err == nil && n > 0 {
			return n, nil
		}
	}
	return 0, usage(c.mustFind(name))
}

type descriptorView struct {
	Name              string `json:"name"`
	Class             string `json:"class"`
	Structure         string `json:"structure"`
	Rotation          string `json:"rotation"`
	Batch             string `json:"batch"`
	Required          bool   `json:"required"`
	MaxTicks          int    `json:"max_ticks"`
	SetupTicks        int    `json:"setup_ticks"`
	MaxAttempts       int    `json:"max_attempts"`
	RequiredSuccesses int    `json:"required_successes"`
}

func describe(d *gametest.Descriptor) descriptorView {
	return descriptorView{
		Name:              d.Name,
		Class:             d.Class(),
		Structure:         d.Structure,
		Rotation:          d.Rotation.String(),
		Batch:             d.Batch,
		Required:          d.Required(),
		MaxTicks:          d.MaxTicks,
		SetupTicks:        d.SetupTicks,
		MaxAttempts:       d.MaxAttempts,
		RequiredSuccesses: d.RequiredSuccesses,
	}
}
