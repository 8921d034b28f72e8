// Package genregistry generates the registration function for annotated test functions.
//
// A test function is annotated with a directive in its doc comment:
//
//	//worldtest:test structure=sand_column batch=physics max_ticks=20
//	func sandFalls(h *gametest.Helper) error
//
// Batch hooks use //worldtest:before batch=<batch> or //worldtest:after batch=<batch>
// on a func(world.World). The test name defaults to the function name split
// at the first word, so sandFalls becomes "sand.falls".
package genregistry

import (
	"go/ast"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/buildkite/shellwords"
	"github.com/dave/jennifer/jen"
	"github.com/pkg/errors"
	"github.com/zond/worldtest"
	"github.com/zond/worldtest/geom"
)

const (
	directivePrefix = "//worldtest:"
	gametestPath    = "github.com/zond/worldtest/gametest"
	geomPath        = "github.com/zond/worldtest/geom"
)

var rotationConsts = map[geom.Rotation]string{
	geom.Clockwise90:        "Clockwise90",
	geom.Clockwise180:       "Clockwise180",
	geom.CounterClockwise90: "CounterClockwise90",
}

type Test struct {
	Func              string
	Name              string
	Structure         string
	Batch             string
	Rotation          geom.Rotation
	MaxTicks          int
	SetupTicks        int
	MaxAttempts       int
	RequiredSuccesses int
	Optional          bool
}

type Hook struct {
	Func  string
	Batch string
	After bool
}

// Manifest is everything found in one package.
type Manifest struct {
	Package string
	Tests   []Test
	Hooks   []Hook
}

// DefaultName derives a test name from a function name.
func DefaultName(funcName string) string {
	var words []string
	current := []rune{}
	for _, r := range funcName {
		if unicode.IsUpper(r) && len(current) > 0 {
			words = append(words, string(current))
			current = current[:0]
		}
		current = append(current, unicode.ToLower(r))
	}
	if len(current) > 0 {
		words = append(words, string(current))
	}
	if len(words) < 2 {
		return strings.Join(words, "")
	}
	return words[0] + "." + strings.Join(words[1:], "_")
}

func directive(doc *ast.CommentGroup) (kind string, args []string, found bool, err error) {
	if doc == nil {
		return "", nil, false, nil
	}
	for _, c := range doc.List {
		if !strings.HasPrefix(c.Text, directivePrefix) {
			continue
		}
		parts, err := shellwords.SplitPosix(strings.TrimPrefix(c.Text, directivePrefix))
		if err != nil {
			return "", nil, false, worldtest.WithStack(err)
		}
		if len(parts) == 0 {
			return "", nil, false, errors.Errorf("empty directive %q", c.Text)
		}
		return parts[0], parts[1:], true, nil
	}
	return "", nil, false, nil
}

func parseTest(funcName string, args []string) (Test, error) {
	t := Test{Func: funcName, Name: DefaultName(funcName)}
	for _, arg := range args {
		key, value, hasValue := strings.Cut(arg, "=")
		if !hasValue {
			if key != "optional" {
				return t, errors.Errorf("%s: flag %q needs a value", funcName, key)
			}
			t.Optional = true
			continue
		}
		var err error
		switch key {
		case "name":
			t.Name = value
		case "structure":
			t.Structure = value
		case "batch":
			t.Batch = value
		case "rotation":
			t.Rotation, err = geom.ParseRotation(value)
		case "max_ticks":
			t.MaxTicks, err = strconv.Atoi(value)
		case "setup_ticks":
			t.SetupTicks, err = strconv.Atoi(value)
		case "max_attempts":
			t.MaxAttempts, err = strconv.Atoi(value)
		case "required_successes":
			t.RequiredSuccesses, err = strconv.Atoi(value)
		default:
			return t, errors.Errorf("%s: unknown key %q", funcName, key)
		}
		if err != nil {
			return t, errors.Wrapf(err, "%s: %s", funcName, key)
		}
	}
	if t.Structure == "" {
		return t, errors.Errorf("%s: structure is required", funcName)
	}
	return t, nil
}

func parseHook(funcName string, after bool, args []string) (Hook, error) {
	h := Hook{Func: funcName, After: after}
	for _, arg := range args {
		key, value, _ := strings.Cut(arg, "=")
		if key != "batch" {
			return h, errors.Errorf("%s: unknown key %q", funcName, key)
		}
		h.Batch = value
	}
	if h.Batch == "" {
		return h, errors.Errorf("%s: batch is required", funcName)
	}
	return h, nil
}

// Scan collects the annotated functions of a package, in file and declaration order.
func Scan(pkgName string, files []*ast.File) (*Manifest, error) {
	manifest := &Manifest{Package: pkgName}
	names := map[string]string{}
	for _, file := range files {
		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Recv != nil {
				continue
			}
			kind, args, found, err := directive(fn.Doc)
			if err != nil {
				return nil, err
			} else if !found {
				continue
			}
			switch kind {
			case "test":
				t, err := parseTest(fn.Name.Name, args)
				if err != nil {
					return nil, err
				}
				if prev, dup := names[t.Name]; dup {
					return nil, errors.Errorf("%s and %s are both named %q", prev, fn.Name.Name, t.Name)
				}
				names[t.Name] = fn.Name.Name
				manifest.Tests = append(manifest.Tests, t)
			case "before", "after":
				h, err := parseHook(fn.Name.Name, kind == "after", args)
				if err != nil {
					return nil, err
				}
				manifest.Hooks = append(manifest.Hooks, h)
			default:
				return nil, errors.Errorf("%s: unknown directive %q", fn.Name.Name, kind)
			}
		}
	}
	return manifest, nil
}

func (t Test) descriptor() jen.Code {
	fields := jen.Dict{
		jen.Id("Name"):      jen.Lit(t.Name),
		jen.Id("Structure"): jen.Lit(t.Structure),
		jen.Id("Body"):      jen.Id(t.Func),
	}
	if t.Batch != "" {
		fields[jen.Id("Batch")] = jen.Lit(t.Batch)
	}
	if name, found := rotationConsts[t.Rotation]; found {
		fields[jen.Id("Rotation")] = jen.Qual(geomPath, name)
	}
	ints := map[string]int{
		"MaxTicks":          t.MaxTicks,
		"SetupTicks":        t.SetupTicks,
		"MaxAttempts":       t.MaxAttempts,
		"RequiredSuccesses": t.RequiredSuccesses,
	}
	for field, value := range ints {
		if value != 0 {
			fields[jen.Id(field)] = jen.Lit(value)
		}
	}
	if t.Optional {
		fields[jen.Id("Optional")] = jen.True()
	}
	return jen.Qual(gametestPath, "Descriptor").Values(fields)
}

// Render writes the generated Go file.
func (m *Manifest) Render(w io.Writer) error {
	f := jen.NewFile(m.Package)
	f.HeaderComment("Code generated by genregistry. DO NOT EDIT.")

	descs := make([]jen.Code, 0, len(m.Tests))
	for _, t := range m.Tests {
		descs = append(descs, t.descriptor())
	}
	var body []jen.Code
	if len(descs) > 0 {
		body = append(body, jen.Id("r").Dot("MustRegister").Custom(jen.Options{
			Open:      "(",
			Close:     ")",
			Separator: ",",
			Multi:     true,
		}, descs...))
	}
	for _, h := range m.Hooks {
		method := "Before"
		if h.After {
			method = "After"
		}
		body = append(body, jen.Id("r").Dot(method).Call(jen.Lit(h.Batch), jen.Id(h.Func)))
	}

	f.Comment("Register adds every annotated test and hook to r.")
	f.Func().Id("Register").Params(jen.Id("r").Op("*").Qual(gametestPath, "Registry")).Block(body...)
	return worldtest.WithStack(f.Render(w))
}
