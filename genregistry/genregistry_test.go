package genregistry

import (
	"bytes"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/zond/worldtest/geom"
)

const source = `package sample

import "github.com/zond/worldtest/gametest"

//worldtest:test structure=box batch=physics max_ticks=20
func sandFalls(h *gametest.Helper) error { return nil }

// lampFlickers is flaky.
//
//worldtest:test name=lamp.flicker structure="lamp box" optional max_attempts=3 required_successes=2 rotation=clockwise_90
func lampFlickers(h *gametest.Helper) error { return nil }

func helper() {}

//worldtest:before batch=physics
func setUp(w world.World) {}

//worldtest:after batch=physics
func tearDown(w world.World) {}
`

func parse(t *testing.T, src string) []*ast.File {
	t.Helper()
	file, err := parser.ParseFile(token.NewFileSet(), "sample.go", src, parser.ParseComments)
	if err != nil {
		t.Fatal(err)
	}
	return []*ast.File{file}
}

func TestDefaultName(t *testing.T) {
	for _, tc := range []struct {
		fn   string
		want string
	}{
		{"sandFalls", "sand.falls"},
		{"LampTurnsOffAtNight", "lamp.turns_off_at_night"},
		{"gravel", "gravel"},
	} {
		if got := DefaultName(tc.fn); got != tc.want {
			t.Errorf("DefaultName(%q) = %q, want %q", tc.fn, got, tc.want)
		}
	}
}

func TestScan(t *testing.T) {
	manifest, err := Scan("sample", parse(t, source))
	if err != nil {
		t.Fatal(err)
	}
	want := &Manifest{
		Package: "sample",
		Tests: []Test{
			{Func: "sandFalls", Name: "sand.falls", Structure: "box", Batch: "physics", MaxTicks: 20},
			{
				Func:              "lampFlickers",
				Name:              "lamp.flicker",
				Structure:         "lamp box",
				Rotation:          geom.Clockwise90,
				MaxAttempts:       3,
				RequiredSuccesses: 2,
				Optional:          true,
			},
		},
		Hooks: []Hook{
			{Func: "setUp", Batch: "physics"},
			{Func: "tearDown", Batch: "physics", After: true},
		},
	}
	if diff := cmp.Diff(want, manifest); diff != "" {
		t.Errorf("unexpected manifest: %s", diff)
	}
}

func TestScanErrors(t *testing.T) {
	for name, src := range map[string]string{
		"missing structure": "package p\n//worldtest:test batch=b\nfunc a() {}\n",
		"unknown key":       "package p\n//worldtest:test structure=s color=red\nfunc a() {}\n",
		"bad int":           "package p\n//worldtest:test structure=s max_ticks=many\nfunc a() {}\n",
		"bad rotation":      "package p\n//worldtest:test structure=s rotation=sideways\nfunc a() {}\n",
		"unknown directive": "package p\n//worldtest:bench structure=s\nfunc a() {}\n",
		"hook batch":        "package p\n//worldtest:before\nfunc a() {}\n",
		"duplicate name":    "package p\n//worldtest:test structure=s\nfunc aB() {}\n//worldtest:test name=a.b structure=s\nfunc c() {}\n",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := Scan("p", parse(t, src)); err == nil {
				t.Errorf("wanted error")
			}
		})
	}
}

func TestRender(t *testing.T) {
	manifest, err := Scan("sample", parse(t, source))
	if err != nil {
		t.Fatal(err)
	}
	buf := &bytes.Buffer{}
	if err := manifest.Render(buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if _, err := parser.ParseFile(token.NewFileSet(), "registry_gen.go", out, 0); err != nil {
		t.Fatalf("generated invalid Go: %v\n%s", err, out)
	}
	for _, want := range []string{
		"// Code generated by genregistry. DO NOT EDIT.",
		"package sample",
		"func Register(r *gametest.Registry)",
		`Name:      "sand.falls"`,
		"Body:      sandFalls",
		"MaxTicks:  20",
		`Structure:         "lamp box"`,
		"Rotation:          geom.Clockwise90",
		"Optional:          true",
		`r.Before("physics", setUp)`,
		`r.After("physics", tearDown)`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "SetupTicks") {
		t.Errorf("zero fields should be omitted:\n%s", out)
	}
}
