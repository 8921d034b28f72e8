package gametest

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/zond/worldtest/geom"
)

const (
	DefaultBatch    = "defaultBatch"
	DefaultMaxTicks = 100
)

// Body is the entry point of a test. It runs once, on the tick the setup
// delay ends, and usually schedules sequences or callbacks for later ticks.
// A returned error fails the test immediately.
type Body func(h *Helper) error

// Descriptor is the immutable description of a test.
type Descriptor struct {
	Name      string
	Structure string
	Rotation  geom.Rotation
	// MaxTicks is the tick budget counted from when the body runs.
	MaxTicks int
	// SetupTicks delays the body after the structure is placed.
	SetupTicks int
	Batch      string
	// Optional tests do not fail a run. Tests are required by default.
	Optional          bool
	MaxAttempts       int
	RequiredSuccesses int
	Body              Body
}

func (d Descriptor) withDefaults() Descriptor {
	if d.MaxTicks == 0 {
		d.MaxTicks = DefaultMaxTicks
	}
	if d.Batch == "" {
		d.Batch = DefaultBatch
	}
	if d.MaxAttempts == 0 {
		d.MaxAttempts = 1
	}
	if d.RequiredSuccesses == 0 {
		d.RequiredSuccesses = 1
	}
	return d
}

func (d Descriptor) Validate() error {
	switch {
	case d.Name == "":
		return errors.New("test name is required")
	case strings.ContainsAny(d.Name, " \t\n"):
		return errors.Errorf("test name %q contains whitespace", d.Name)
	case d.Structure == "":
		return errors.Errorf("test %q has no structure", d.Name)
	case d.Body == nil:
		return errors.Errorf("test %q has no body", d.Name)
	case d.MaxTicks < 1:
		return errors.Errorf("test %q has max ticks %d", d.Name, d.MaxTicks)
	case d.SetupTicks < 0:
		return errors.Errorf("test %q has setup ticks %d", d.Name, d.SetupTicks)
	case d.RequiredSuccesses < 1 || d.RequiredSuccesses > d.MaxAttempts:
		return errors.Errorf("test %q requires %d successes in %d attempts", d.Name, d.RequiredSuccesses, d.MaxAttempts)
	}
	return nil
}

func (d *Descriptor) Required() bool {
	return !d.Optional
}

// Flaky tests get more than one attempt.
func (d *Descriptor) Flaky() bool {
	return d.MaxAttempts > 1 || d.RequiredSuccesses > 1
}

// Class is the part of the name before the first dot, used to select groups of tests.
func (d *Descriptor) Class() string {
	class, _, _ := strings.Cut(d.Name, ".")
	return class
}
