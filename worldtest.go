package worldtest

import (
	"bytes"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// WithStack attaches a stack trace to err unless it already carries one.
func WithStack(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(stackTracer); !ok {
		return errors.WithStack(err)
	}
	return err
}

// StackTrace renders the stack attached to err, or the empty string.
func StackTrace(err error) string {
	buf := &bytes.Buffer{}
	var tracer stackTracer
	if errors.As(err, &tracer) {
		for _, f := range tracer.StackTrace() {
			fmt.Fprintf(buf, "%+v\n", f)
		}
	}
	return buf.String()
}

// Errs collects errors from operations that must all be attempted.
type Errs []error

func (e Errs) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Err returns nil for an empty collection.
func (e Errs) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

var lastUnique uint64

// Increment stores a strictly increasing nanosecond timestamp in prevPointer and returns it.
func Increment(prevPointer *uint64) uint64 {
	next := uint64(0)
	for {
		next = uint64(time.Now().UnixNano())
		previous := atomic.LoadUint64(prevPointer)
		if next <= previous {
			next = previous + 1
		}
		if atomic.CompareAndSwapUint64(prevPointer, previous, next) {
			break
		}
	}
	return next
}

// NextUniqueID returns a process-unique, lexically increasing id.
func NextUniqueID() string {
	return fmt.Sprintf("%016x", Increment(&lastUnique))
}
