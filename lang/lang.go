// Package lang renders the English fragments used in run summaries.
package lang

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gertd/go-pluralize"
)

const (
	DefaultPattern   = "%s"
	DefaultSeparator = ","
	DefaultOperator  = "and"
)

var client = pluralize.NewClient()

type Enumerator struct {
	Pattern   string
	Separator string
	Operator  string
}

// Do joins elements as "a, b, and c". Two elements get no separator.
func (e Enumerator) Do(elements ...string) string {
	pattern, separator, operator := DefaultPattern, DefaultSeparator, DefaultOperator
	if e.Pattern != "" {
		pattern = e.Pattern
	}
	if e.Separator != "" {
		separator = e.Separator
	}
	if e.Operator != "" {
		operator = e.Operator
	}
	res := &bytes.Buffer{}
	for idx, element := range elements {
		fmt.Fprintf(res, pattern, element)
		switch {
		case idx+2 < len(elements):
			fmt.Fprintf(res, "%s ", separator)
		case idx+2 == len(elements) && len(elements) > 2:
			fmt.Fprintf(res, "%s %s ", separator, operator)
		case idx+2 == len(elements):
			fmt.Fprintf(res, " %s ", operator)
		}
	}
	return res.String()
}

func Plural(word string) string {
	return client.Plural(word)
}

func Singular(word string) string {
	return client.Singular(word)
}

// Noun picks the singular or plural form of word to agree with n.
func Noun(n int, word string) string {
	if n == 1 {
		return Singular(word)
	}
	return Plural(word)
}

// Count renders "no tests", "1 test" or "12 tests".
func Count(n int, word string) string {
	switch n {
	case 0:
		return "no " + Plural(word)
	case 1:
		return "1 " + Singular(word)
	}
	return fmt.Sprintf("%d %s", n, Plural(word))
}

// Be picks "is" or "are" to agree with n.
func Be(n int) string {
	if n == 1 {
		return "is"
	}
	return "are"
}

func Capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// Truncate shortens s to at most n runes, marking the cut with an ellipsis.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n || n < 1 {
		return s
	}
	runes := []rune(s)
	return strings.TrimRightFunc(string(runes[:n-1]), unicode.IsSpace) + "…"
}
