package termio

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"golang.org/x/term"
)

type session struct {
	io.Reader
	io.Writer
}

func newTerminal(input string) (*term.Terminal, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return term.NewTerminal(session{strings.NewReader(input), out}, "> "), out
}

func TestSelect(t *testing.T) {
	tm, out := newTerminal("maybe\rABORT\r")
	got, err := Select(tm, "Really?", "yes", "no", "abort")
	if err != nil {
		t.Fatal(err)
	}
	if got != "abort" {
		t.Errorf("got %q, want abort", got)
	}
	if !strings.Contains(out.String(), `Answer "yes", "no", or "abort".`) {
		t.Errorf("no hint after a bad answer: %q", out.String())
	}
}

func TestConfirm(t *testing.T) {
	for input, want := range map[string]bool{"y\r": true, "N\r": false} {
		tm, _ := newTerminal(input)
		got, err := Confirm(tm, "Sure?")
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("%q: got %v, want %v", input, got, want)
		}
	}
}

func TestSelectEOF(t *testing.T) {
	tm, _ := newTerminal("")
	if _, err := Confirm(tm, "Sure?"); !errors.Is(err, io.EOF) {
		t.Errorf("got %v, want EOF", err)
	}
}
