// Package loop hosts the world and the test engine on a single tick thread.
//
// Other goroutines never touch the world or the engine directly. They queue
// commands with Do or Call, and the loop drains the queue at the start of
// each tick, in submission order, before running the per-tick steps.
package loop

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/zond/worldtest"
	"github.com/zond/worldtest/metrics"
)

const (
	DefaultTickRate    = 50 * time.Millisecond
	DefaultMaxCommands = 1000
)

var (
	ErrQueueFull = errors.New("command queue full")
	ErrStopped   = errors.New("loop stopped")
)

type Config struct {
	TickRate time.Duration
	// MaxCommands caps the commands waiting for the next tick.
	MaxCommands int
}

// Loop runs Steps once per tick at a fixed rate.
type Loop struct {
	tickRate    time.Duration
	maxCommands int
	steps       []func()

	mu      sync.Mutex
	queue   []func()
	tickNum uint64
	running bool

	cancel  context.CancelFunc
	stopped chan struct{}
}

func New(cfg Config, steps ...func()) *Loop {
	if cfg.TickRate <= 0 {
		cfg.TickRate = DefaultTickRate
	}
	if cfg.MaxCommands <= 0 {
		cfg.MaxCommands = DefaultMaxCommands
	}
	return &Loop{
		tickRate:    cfg.TickRate,
		maxCommands: cfg.MaxCommands,
		steps:       steps,
	}
}

// Do queues fn to run on the tick thread at the start of the next tick.
func (l *Loop) Do(fn func()) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) >= l.maxCommands {
		return ErrQueueFull
	}
	l.queue = append(l.queue, fn)
	metrics.LoopQueueDepth.Set(float64(len(l.queue)))
	return nil
}

// Call queues fn and waits until it has run on the tick thread.
func (l *Loop) Call(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	if err := l.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				done <- errors.Errorf("panic: %v", r)
			}
		}()
		done <- fn()
	}); err != nil {
		return err
	}
	l.mu.Lock()
	stopped := l.stopped
	l.mu.Unlock()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-stopped:
		return ErrStopped
	}
}

func (l *Loop) Ticks() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tickNum
}

// Step runs one tick synchronously: queued commands first, then every step.
// A panicking command or step is logged and the tick goes on with the next one.
func (l *Loop) Step() {
	start := time.Now()
	for _, cmd := range l.collect() {
		guard(cmd)
	}
	for _, step := range l.steps {
		guard(step)
	}
	l.mu.Lock()
	l.tickNum++
	l.mu.Unlock()
	metrics.LoopTicksTotal.Inc()
	metrics.LoopTickLatency.Observe(time.Since(start).Seconds())
}

func guard(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			metrics.LoopTickPanics.Inc()
			err := errors.Errorf("tick panicked: %v", r)
			log.Printf("%v\n%s", err, worldtest.StackTrace(err))
		}
	}()
	fn()
}

func (l *Loop) collect() []func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cmds := l.queue
	l.queue = make([]func(), 0, len(cmds))
	metrics.LoopQueueDepth.Set(0)
	return cmds
}

// Start runs the loop in a new goroutine until Stop is called or ctx is done.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return errors.New("loop already running")
	}
	l.running = true
	ctx, l.cancel = context.WithCancel(ctx)
	l.stopped = make(chan struct{})
	go l.run(ctx, l.stopped)
	return nil
}

func (l *Loop) run(ctx context.Context, stopped chan struct{}) {
	defer close(stopped)
	ticker := time.NewTicker(l.tickRate)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Step()
		}
	}
}

// Stop halts the loop and waits for the current tick to finish.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	cancel, stopped := l.cancel, l.stopped
	l.mu.Unlock()
	cancel()
	<-stopped
}
