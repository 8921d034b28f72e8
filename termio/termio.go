// Package termio asks questions on an interactive terminal.
package termio

import (
	"fmt"
	"strings"

	"github.com/zond/worldtest"
	"github.com/zond/worldtest/lang"
	"golang.org/x/term"
)

// Select repeats prompt until the answer matches one of options, ignoring case.
func Select(t *term.Terminal, prompt string, options ...string) (string, error) {
	for {
		fmt.Fprintf(t, "%s [%s]\n", prompt, strings.Join(options, "/"))
		line, err := t.ReadLine()
		if err != nil {
			return "", worldtest.WithStack(err)
		}
		for _, option := range options {
			if strings.EqualFold(strings.TrimSpace(line), option) {
				return option, nil
			}
		}
		fmt.Fprintf(t, "Answer %s.\n", lang.Enumerator{Pattern: "%q", Operator: "or"}.Do(options...))
	}
}

// Confirm asks a yes or no question.
func Confirm(t *term.Terminal, question string) (bool, error) {
	answer, err := Select(t, question, "y", "n")
	return answer == "y", err
}
