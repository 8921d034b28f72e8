package storage

import (
	"context"
	"log"
	"sync"
	"time"

	goccy "github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/zond/worldtest"
	"gopkg.in/natefinch/lumberjack.v2"
)

type runIDKey struct{}

// WithRunID returns a context carrying the id of the current run.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

func RunID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runIDKey{}).(string)
	return id, ok
}

// JournalData is the typed payload of a journal entry.
type JournalData interface {
	journalData()
}

// JournalEntry is one line in the journal.
type JournalEntry struct {
	Time  string      `json:"time"`
	RunID string      `json:"run_id,omitempty"`
	Event string      `json:"event"`
	Data  JournalData `json:"data"`
}

const (
	EventRunStarted  = "run_started"
	EventTestPassed  = "test_passed"
	EventTestFailed  = "test_failed"
	EventRunFinished = "run_finished"
)

type JournalRunStarted struct {
	Tests   int `json:"tests"`
	Batches int `json:"batches"`
}

func (JournalRunStarted) journalData() {}

// JournalTest is logged for every final test result.
type JournalTest struct {
	Name       string `json:"name"`
	Structure  string `json:"structure"`
	Batch      string `json:"batch"`
	Required   bool   `json:"required"`
	Attempt    int    `json:"attempt"`
	Ticks      int    `json:"ticks"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

func (JournalTest) journalData() {}

type JournalRunFinished struct {
	Passed         int    `json:"passed"`
	FailedRequired int    `json:"failed_required"`
	FailedOptional int    `json:"failed_optional"`
	Summary        string `json:"summary"`
}

func (JournalRunFinished) journalData() {}

// JournalOptions controls rotation of the journal file.
type JournalOptions struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Journal writes run events to a rotated file as JSON lines.
type Journal struct {
	mu  sync.Mutex
	out *lumberjack.Logger
	enc *goccy.Encoder
}

func NewJournal(path string, opts JournalOptions) (*Journal, error) {
	if path == "" {
		return nil, errors.New("journal path is required")
	}
	out := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}
	return &Journal{
		out: out,
		enc: goccy.NewEncoder(out),
	}, nil
}

// Log writes an entry. Write errors are logged, not returned.
func (j *Journal) Log(ctx context.Context, event string, data JournalData) {
	j.mu.Lock()
	defer j.mu.Unlock()
	runID, _ := RunID(ctx)
	if err := j.enc.Encode(JournalEntry{
		Time:  time.Now().UTC().Format(time.RFC3339Nano),
		RunID: runID,
		Event: event,
		Data:  data,
	}); err != nil {
		log.Printf("journal write failed: %v", err)
	}
}

// Rotate starts a new journal file, keeping the old one as a backup.
func (j *Journal) Rotate() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return worldtest.WithStack(j.out.Rotate())
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return worldtest.WithStack(j.out.Close())
}
