// Package integration_test drives a complete server over its SSH console.
//
// Everything the scenario does goes through the console, like an operator
// would. The server is only accessed directly to verify what the console
// reported.
//
// A separate binary (bin/integration_test) runs the scenario and leaves the
// server up, so the resulting world can be inspected over SSH.
package integration_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/zond/worldtest/geom"
)

const runTimeout = 30 * time.Second

func boxAround(ts *TestServer) geom.Box {
	origin := ts.Orchestrator().Origin()
	return geom.BoxOf(origin, origin).Inflate(ts.Orchestrator().ClearRadius())
}

// waitForSummary polls status until it reports a finished run with summary.
func waitForSummary(cc *consoleClient, summary string) error {
	var last string
	if waitForCondition(runTimeout, 100*time.Millisecond, func() bool {
		out, err := cc.command("status")
		last = out
		return err == nil && strings.Contains(out, summary)
	}) {
		return nil
	}
	return errors.Errorf("status never reported %q, last: %q", summary, last)
}

func expect(cc *consoleClient, line string, wants ...string) (string, error) {
	out, err := cc.command(line)
	if err != nil {
		return out, err
	}
	for _, want := range wants {
		if !strings.Contains(out, want) {
			return out, errors.Errorf("%q: output lacks %q: %q", line, want, out)
		}
	}
	return out, nil
}

// RunAll runs the console scenario against ts.
func RunAll(ts *TestServer) error {
	ctx := context.Background()
	total := ts.Orchestrator().Registry().Len()

	cc, err := newConsoleClient(ts.SSHAddr())
	if err != nil {
		return err
	}
	defer cc.Close()
	if out, found := cc.waitFor("> ", 5*time.Second); !found {
		return errors.Errorf("no prompt: %q", out)
	}

	fmt.Println("Testing discovery commands...")
	if _, err := expect(cc, "help", "runall [selector]", "flaky [count]"); err != nil {
		return err
	}
	if _, err := expect(cc, "list lamp", "lamp.lights", "lamp.turns_off", "lamp.triggers"); err != nil {
		return err
	}
	if _, err := expect(cc, "inspect lamp.turns_off", `"setup_ticks": 2`, `"structure": "lit_lamp_circuit"`); err != nil {
		return err
	}
	if _, err := expect(cc, "status", "No current run."); err != nil {
		return err
	}
	if _, err := expect(cc, "inspect no.such.test", `no test named "no.such.test"`); err != nil {
		return err
	}

	fmt.Println("Testing a full run...")
	if _, err := expect(cc, "runall", fmt.Sprintf("Started %d tests.", total)); err != nil {
		return err
	}
	allPassed := fmt.Sprintf("All %d tests passed :)", total)
	if err := waitForSummary(cc, allPassed); err != nil {
		return err
	}
	if _, err := expect(cc, "failed", "No failures."); err != nil {
		return err
	}
	if msgs := ts.World().Messages(); len(msgs) == 0 || msgs[len(msgs)-1] != allPassed {
		return errors.Errorf("world was not told %q: %q", allPassed, msgs)
	}
	if _, err := os.Stat(ts.JUnitPath()); err != nil {
		return errors.Wrap(err, "no junit report")
	}

	fmt.Println("Testing history...")
	runs, err := ts.History().Runs(ctx, 1)
	if err != nil {
		return err
	}
	if len(runs) != 1 || !runs[0].Finished() || runs[0].Passed != total {
		return errors.Errorf("unexpected recorded runs: %+v", runs)
	}
	if _, err := expect(cc, "history", runs[0].ID); err != nil {
		return err
	}
	if _, err := expect(cc, "history 0", "usage: history [count]"); err != nil {
		return err
	}

	fmt.Println("Testing single test runs...")
	if _, err := expect(cc, "run sand.falls 40 0 40", "Started"); err != nil {
		return err
	}
	if err := waitForSummary(cc, "All 1 test passed :)"); err != nil {
		return err
	}
	if _, err := expect(cc, "stop", "Nothing running."); err != nil {
		return err
	}
	if _, err := expect(cc, "clearall", "Remove every test structure near the origin? [y/n]"); err != nil {
		return err
	}
	if _, err := expect(cc, "n", "Aborted."); err != nil {
		return err
	}
	if structures := len(ts.World().StructuresWithin(boxAround(ts))); structures == 0 {
		return errors.New("aborted clearall removed the structures")
	}
	if _, err := expect(cc, "clearall", "[y/n]"); err != nil {
		return err
	}
	if _, err := expect(cc, "y", "Removed"); err != nil {
		return err
	}
	if structures := len(ts.World().StructuresWithin(boxAround(ts))); structures != 0 {
		return errors.Errorf("%d structures left after clearall", structures)
	}
	if _, err := expect(cc, "runfailed", "no failed tests to rerun"); err != nil {
		return err
	}
	return nil
}
