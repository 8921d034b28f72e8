package report

import (
	"bufio"
	"bytes"
	"context"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/zond/worldtest/gametest"
	"github.com/zond/worldtest/geom"
	"github.com/zond/worldtest/metrics"
	"github.com/zond/worldtest/storage"
	"github.com/zond/worldtest/world"
	"github.com/zond/worldtest/world/memworld"

	goccy "github.com/goccy/go-json"
)

type fixture struct {
	t      *testing.T
	world  *memworld.World
	reg    *gametest.Registry
	bus    *gametest.Bus
	placed int
}

func newFixture(t *testing.T) *fixture {
	reg := gametest.NewRegistry()
	body := func(*gametest.Helper) error { return nil }
	reg.MustRegister(
		gametest.Descriptor{Name: "sand.falls", Structure: "box", Batch: "physics", Body: body},
		gametest.Descriptor{Name: "sand.stacks", Structure: "box", Batch: "physics", Body: body},
		gametest.Descriptor{Name: "lamp.flickers", Structure: "box", Batch: "night", Optional: true, Body: body},
	)
	return &fixture{
		t:     t,
		world: memworld.New(world.Templates{}.Add(&world.Template{ID: "box", Size: geom.P(3, 3, 3)})),
		reg:   reg,
		bus:   gametest.NewBus(),
	}
}

// finish runs name to a final result: success when err is nil.
func (f *fixture) finish(name string, err error) *gametest.Execution {
	d, found := f.reg.Get(name)
	if !found {
		f.t.Fatalf("no test %q", name)
	}
	e := gametest.NewExecution(d, f.world, geom.RotateNone, f.bus)
	e.Start(geom.P(f.placed*10, 0, 0), 0)
	f.placed++
	if err == nil {
		e.Succeed()
	} else {
		e.Fail(err)
	}
	return e
}

func (f *fixture) run(r gametest.Reporter) {
	if starter, ok := r.(gametest.RunStartReporter); ok {
		starter.OnRunStarted(3, 2)
	}
	r.OnTestSuccess(f.finish("sand.falls", nil))
	abs, rel := geom.P(11, 1, 1), geom.P(1, 1, 1)
	r.OnTestFailed(f.finish("sand.stacks", &gametest.AssertionError{Msg: "expected sand", Abs: &abs, Rel: &rel, Tick: 4}))
	r.OnTestFailed(f.finish("lamp.flickers", &gametest.TimeoutError{Ticks: 100}))
	r.Finish()
}

func TestFromExecution(t *testing.T) {
	f := newFixture(t)
	abs, rel := geom.P(1, 2, 3), geom.P(1, 2, 3)
	r := FromExecution(f.finish("sand.stacks", &gametest.AssertionError{Msg: "nope", Abs: &abs, Rel: &rel}))
	if r.Passed || !r.Required || r.Batch != "physics" || r.Attempt != 1 || r.Outcome() != "failed" {
		t.Errorf("got %+v", r)
	}
	if r.Pos == nil || *r.Pos != abs {
		t.Errorf("got position %v, want %v", r.Pos, abs)
	}
	if got := FromExecution(f.finish("lamp.flickers", &gametest.TimeoutError{Ticks: 3})).Outcome(); got != "failed_optional" {
		t.Errorf("got %q", got)
	}
}

func TestTallySummary(t *testing.T) {
	tally := Tally{}
	tally.Add(Result{Passed: true})
	tally.Add(Result{Required: true})
	if got, want := tally.Summary(), "1 required test failed :("; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestLogSink(t *testing.T) {
	buf := &bytes.Buffer{}
	styled := false
	newFixture(t).run(NewLogSink(buf, LogOptions{Styled: &styled}))
	out := buf.String()
	for _, want := range []string{"PASS sand.falls", "FAIL sand.stacks", "WARN lamp.flickers", "1 required test and 1 optional test failed :("} {
		if !strings.Contains(out, want) {
			t.Errorf("%q missing from %q", want, out)
		}
	}
}

func TestJUnitSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "junit.xml")
	newFixture(t).run(NewJUnitSink(path))
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	got := junitSuites{}
	if err := xml.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}
	if got.Tests != 3 || got.Failures != 1 || got.Skipped != 1 || len(got.Suites) != 2 {
		t.Fatalf("got %+v", got)
	}
	physics := got.Suites[0]
	if physics.Name != "physics" || physics.Tests != 2 || physics.Cases[1].Failure == nil {
		t.Errorf("got %+v", physics)
	}
	if !strings.Contains(physics.Cases[1].Failure.Message, "expected sand") {
		t.Errorf("got %q", physics.Cases[1].Failure.Message)
	}
	if night := got.Suites[1]; night.Cases[0].Skipped == nil || night.Cases[0].Failure != nil {
		t.Errorf("optional failure not skipped: %+v", night.Cases[0])
	}
}

func TestTableSink(t *testing.T) {
	buf := &bytes.Buffer{}
	newFixture(t).run(NewTableSink(buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if !strings.HasPrefix(lines[0], "Test") {
		t.Errorf("got header %q", lines[0])
	}
	if got, want := lines[len(lines)-1], "1 required test and 1 optional test failed :("; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	for _, want := range []string{"sand.falls", "sand.stacks", "lamp.flickers", "failed_optional", "expected sand"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("%q missing from %q", want, buf.String())
		}
	}
}

func TestJSONSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.log")
	j, err := storage.NewJournal(path, storage.JournalOptions{})
	if err != nil {
		t.Fatal(err)
	}
	newFixture(t).run(NewJSONSink(j))
	if err := j.Close(); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	events := []string{}
	runIDs := map[string]bool{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		entry := struct {
			Event string `json:"event"`
			RunID string `json:"run_id"`
		}{}
		if err := goccy.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatal(err)
		}
		events = append(events, entry.Event)
		runIDs[entry.RunID] = true
	}
	want := []string{
		storage.EventRunStarted,
		storage.EventTestPassed,
		storage.EventTestFailed,
		storage.EventTestFailed,
		storage.EventRunFinished,
	}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Errorf("unexpected events: %s", diff)
	}
	if len(runIDs) != 1 || runIDs[""] {
		t.Errorf("got run ids %v, want one", runIDs)
	}
}

func TestHistorySink(t *testing.T) {
	ctx := context.Background()
	h, err := storage.OpenHistory(ctx, filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	newFixture(t).run(NewHistorySink(h, 0))
	runs, err := h.Runs(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %+v", runs)
	}
	run := runs[0]
	if !run.Finished() || run.Tests != 3 || run.Passed != 1 || run.FailedRequired != 1 || run.FailedOptional != 1 {
		t.Errorf("got %+v", run)
	}
	results, err := h.Results(ctx, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 || results[0].Name != "lamp.flickers" || results[0].Error == "" {
		t.Errorf("got %+v", results)
	}
}

func TestHistorySinkKeepsNewestRuns(t *testing.T) {
	ctx := context.Background()
	h, err := storage.OpenHistory(ctx, filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	sink := NewHistorySink(h, 2)
	var ids []string
	for i := 0; i < 3; i++ {
		newFixture(t).run(sink)
		latest, err := h.Runs(ctx, 1)
		if err != nil || len(latest) != 1 {
			t.Fatalf("got %v, %v", latest, err)
		}
		ids = append(ids, latest[0].ID)
	}
	runs, err := h.Runs(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	got := []string{}
	for _, r := range runs {
		got = append(got, r.ID)
	}
	if diff := cmp.Diff([]string{ids[2], ids[1]}, got); diff != "" {
		t.Errorf("unexpected runs kept: %s", diff)
	}
}

func TestMetricsSink(t *testing.T) {
	before := testutil.ToFloat64(metrics.TestsTotal.WithLabelValues("physics", "failed"))
	runsBefore := testutil.ToFloat64(metrics.RunsTotal.WithLabelValues("failed"))
	newFixture(t).run(&MetricsSink{})
	if got := testutil.ToFloat64(metrics.TestsTotal.WithLabelValues("physics", "failed")); got != before+1 {
		t.Errorf("got %v failed, want %v", got, before+1)
	}
	if got := testutil.ToFloat64(metrics.RunsTotal.WithLabelValues("failed")); got != runsBefore+1 {
		t.Errorf("got %v failed runs, want %v", got, runsBefore+1)
	}
}

func TestReportersFanOut(t *testing.T) {
	counts := map[string]int{}
	sink := Funcs{
		Failed:  func(Result) { counts["failed"]++ },
		Success: func(Result) { counts["success"]++ },
		Done:    func() { counts["done"]++ },
	}
	history := &startRecorder{}
	newFixture(t).run(gametest.Reporters{sink, sink, history})
	if diff := cmp.Diff(map[string]int{"failed": 4, "success": 2, "done": 2}, counts); diff != "" {
		t.Errorf("unexpected counts: %s", diff)
	}
	if history.started != 1 {
		t.Errorf("run start not forwarded")
	}
}

type startRecorder struct {
	Funcs
	started int
}

func (s *startRecorder) OnRunStarted(tests, batches int) {
	s.started++
}
