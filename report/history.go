package report

import (
	"context"
	"time"

	"github.com/zond/worldtest/gametest"
	"github.com/zond/worldtest/storage"
)

// HistorySink stores every run in a History database. The writes are queued
// on the history writer, so the sink never waits for the database.
type HistorySink struct {
	history *storage.History
	timeout time.Duration
	keep    int
	runID   string
}

// NewHistorySink returns a sink writing to h. When keep is positive, only
// the newest keep runs are kept after every run.
func NewHistorySink(h *storage.History, keep int) *HistorySink {
	return &HistorySink{history: h, timeout: 5 * time.Second, keep: keep}
}

func (s *HistorySink) queue(what string, fn func(ctx context.Context) error) {
	if err := s.history.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			logError(what, err)
		}
	}); err != nil {
		logError(what, err)
	}
}

func (s *HistorySink) start(tests int) {
	id := storage.NewRunID()
	s.runID = id
	s.queue("starting history run", func(ctx context.Context) error {
		return s.history.StartRunWithID(ctx, id, tests)
	})
}

func (s *HistorySink) OnRunStarted(tests, batches int) {
	s.start(tests)
}

// RunID is the id of the run being recorded, or "" between runs.
func (s *HistorySink) RunID() string {
	return s.runID
}

func (s *HistorySink) record(r Result) {
	if s.runID == "" {
		s.start(0)
	}
	res := storage.Result{
		RunID:      s.runID,
		Name:       r.Name,
		Batch:      r.Batch,
		Required:   r.Required,
		Passed:     r.Passed,
		Attempt:    r.Attempt,
		Ticks:      r.Ticks,
		DurationMS: r.Duration.Milliseconds(),
		Error:      r.Message(),
	}
	s.queue("recording result", func(ctx context.Context) error {
		return s.history.Record(ctx, res)
	})
}

func (s *HistorySink) OnTestFailed(e *gametest.Execution) {
	s.record(FromExecution(e))
}

func (s *HistorySink) OnTestSuccess(e *gametest.Execution) {
	s.record(FromExecution(e))
}

func (s *HistorySink) Finish() {
	if s.runID == "" {
		return
	}
	id := s.runID
	s.queue("finishing history run", func(ctx context.Context) error {
		_, err := s.history.FinishRun(ctx, id)
		return err
	})
	if s.keep > 0 {
		s.queue("pruning history", func(ctx context.Context) error {
			_, err := s.history.Prune(ctx, s.keep)
			return err
		})
	}
	s.runID = ""
}
