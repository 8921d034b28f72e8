package worldtest

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
)

func TestWithStack(t *testing.T) {
	if WithStack(nil) != nil {
		t.Errorf("got non nil for nil error")
	}
	base := errors.New("boom")
	if got := WithStack(base); got != base {
		t.Errorf("got %v, want the original error since it already has a stack", got)
	}
	wrapped := WithStack(stdError("plain"))
	if trace := StackTrace(wrapped); !strings.Contains(trace, "TestWithStack") {
		t.Errorf("got trace %q, want it to mention TestWithStack", trace)
	}
}

type stdError string

func (s stdError) Error() string { return string(s) }

func TestNextUniqueID(t *testing.T) {
	seen := map[string]bool{}
	prev := ""
	for i := 0; i < 1000; i++ {
		id := NextUniqueID()
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		if id <= prev {
			t.Errorf("got %q after %q, want increasing ids", id, prev)
		}
		seen[id] = true
		prev = id
	}
}

func TestErrs(t *testing.T) {
	if (Errs{}).Err() != nil {
		t.Errorf("empty Errs should be nil")
	}
	err := Errs{errors.New("a"), errors.New("b")}.Err()
	if err == nil || err.Error() != "a; b" {
		t.Errorf("got %v, want a; b", err)
	}
}
