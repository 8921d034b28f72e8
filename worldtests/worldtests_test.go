package worldtests

import (
	"go/ast"
	"go/parser"
	"go/token"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/zond/worldtest/gametest"
	"github.com/zond/worldtest/genregistry"
	"github.com/zond/worldtest/geom"
	"github.com/zond/worldtest/report"
	"github.com/zond/worldtest/world/memworld"
)

func TestSuitePassesOnMemworld(t *testing.T) {
	reg := gametest.NewRegistry()
	Register(reg)
	w := memworld.New(Templates())
	results := map[string]report.Result{}
	finished := 0
	collect := func(r report.Result) { results[r.Name] = r }
	orch := gametest.NewOrchestrator(gametest.Options{
		Registry: reg,
		World:    w,
		Origin:   geom.P(0, 0, 0),
		Reporter: report.Funcs{Failed: collect, Success: collect, Done: func() { finished++ }},
	})
	if _, err := orch.RunAll(""); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 500 && finished == 0; i++ {
		w.Tick()
		orch.Ticker().Tick()
	}
	if finished != 1 {
		t.Fatalf("run did not finish, progress %q", orch.Progress())
	}
	if len(results) != reg.Len() {
		t.Errorf("got %d results, want %d", len(results), reg.Len())
	}
	for name, r := range results {
		if !r.Passed {
			t.Errorf("%s: %v", name, r.Err)
		}
	}
	if got := results["flaky.sand_settles"].Attempt; got != 2 {
		t.Errorf("flaky test passed on attempt %d, want 2", got)
	}
	if now := w.Time(); now >= NightTime {
		t.Errorf("night batch left the time at %d", now)
	}
}

func TestRegistryMatchesDirectives(t *testing.T) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "tests.go", nil, parser.ParseComments)
	if err != nil {
		t.Fatal(err)
	}
	manifest, err := genregistry.Scan("worldtests", []*ast.File{file})
	if err != nil {
		t.Fatal(err)
	}
	reg := gametest.NewRegistry()
	Register(reg)
	if len(manifest.Tests) != reg.Len() {
		t.Fatalf("directives declare %d tests, registry has %d", len(manifest.Tests), reg.Len())
	}
	for _, test := range manifest.Tests {
		d, found := reg.Get(test.Name)
		if !found {
			t.Errorf("%s not registered", test.Name)
			continue
		}
		want := genregistry.Test{
			Func:              test.Func,
			Name:              d.Name,
			Structure:         d.Structure,
			Batch:             d.Batch,
			Rotation:          d.Rotation,
			MaxTicks:          d.MaxTicks,
			SetupTicks:        d.SetupTicks,
			MaxAttempts:       d.MaxAttempts,
			RequiredSuccesses: d.RequiredSuccesses,
			Optional:          d.Optional,
		}
		got := test
		// Registration fills in defaults the directives leave out.
		if got.MaxTicks == 0 {
			got.MaxTicks = gametest.DefaultMaxTicks
		}
		if got.MaxAttempts == 0 {
			got.MaxAttempts = 1
		}
		if got.RequiredSuccesses == 0 {
			got.RequiredSuccesses = 1
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("%s: registry differs from directive: %s", test.Name, diff)
		}
	}
	if diff := cmp.Diff([]genregistry.Hook{
		{Func: "startNight", Batch: "night"},
		{Func: "endNight", Batch: "night", After: true},
	}, manifest.Hooks); diff != "" {
		t.Errorf("unexpected hooks: %s", diff)
	}
}
