package report

import (
	"context"

	"github.com/google/uuid"
	"github.com/zond/worldtest/gametest"
	"github.com/zond/worldtest/storage"
)

// JSONSink writes every run to a journal as JSON lines.
type JSONSink struct {
	journal *storage.Journal
	ctx     context.Context
	tally   Tally
}

func NewJSONSink(j *storage.Journal) *JSONSink {
	return &JSONSink{journal: j}
}

func (s *JSONSink) runContext() context.Context {
	if s.ctx == nil {
		s.ctx = storage.WithRunID(context.Background(), uuid.NewString())
	}
	return s.ctx
}

func (s *JSONSink) OnRunStarted(tests, batches int) {
	s.ctx = nil
	s.tally = Tally{}
	s.journal.Log(s.runContext(), storage.EventRunStarted, storage.JournalRunStarted{Tests: tests, Batches: batches})
}

func (s *JSONSink) log(event string, r Result) {
	s.tally.Add(r)
	s.journal.Log(s.runContext(), event, storage.JournalTest{
		Name:       r.Name,
		Structure:  r.Structure,
		Batch:      r.Batch,
		Required:   r.Required,
		Attempt:    r.Attempt,
		Ticks:      r.Ticks,
		DurationMS: r.Duration.Milliseconds(),
		Error:      r.Message(),
	})
}

func (s *JSONSink) OnTestFailed(e *gametest.Execution) {
	s.log(storage.EventTestFailed, FromExecution(e))
}

func (s *JSONSink) OnTestSuccess(e *gametest.Execution) {
	s.log(storage.EventTestPassed, FromExecution(e))
}

func (s *JSONSink) Finish() {
	s.journal.Log(s.runContext(), storage.EventRunFinished, storage.JournalRunFinished{
		Passed:         s.tally.Passed,
		FailedRequired: s.tally.FailedRequired,
		FailedOptional: s.tally.FailedOptional,
		Summary:        s.tally.Summary(),
	})
	s.ctx = nil
	s.tally = Tally{}
}
