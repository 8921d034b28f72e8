package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/zond/worldtest"

	_ "modernc.org/sqlite"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	started_at INTEGER NOT NULL,
	finished_at INTEGER,
	tests INTEGER NOT NULL DEFAULT 0,
	passed INTEGER NOT NULL DEFAULT 0,
	failed_required INTEGER NOT NULL DEFAULT 0,
	failed_optional INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS results (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	batch TEXT NOT NULL,
	required INTEGER NOT NULL,
	passed INTEGER NOT NULL,
	attempt INTEGER NOT NULL,
	ticks INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	recorded_at INTEGER NOT NULL,
	PRIMARY KEY (run_id, name)
);
CREATE INDEX IF NOT EXISTS results_name ON results(name);
`

// Run is one row of run history.
type Run struct {
	ID             string `db:"id"`
	StartedAt      int64  `db:"started_at"`
	FinishedAt     *int64 `db:"finished_at"`
	Tests          int    `db:"tests"`
	Passed         int    `db:"passed"`
	FailedRequired int    `db:"failed_required"`
	FailedOptional int    `db:"failed_optional"`
}

func (r *Run) Finished() bool {
	return r.FinishedAt != nil
}

// Result is the final result of one test in one run.
type Result struct {
	RunID      string `db:"run_id" faker:"-"`
	Name       string `db:"name" faker:"word"`
	Batch      string `db:"batch" faker:"word"`
	Required   bool   `db:"required"`
	Passed     bool   `db:"passed"`
	Attempt    int    `db:"attempt" faker:"boundary_start=1, boundary_end=5"`
	Ticks      int    `db:"ticks" faker:"boundary_start=0, boundary_end=1000"`
	DurationMS int64  `db:"duration_ms" faker:"boundary_start=0, boundary_end=60000"`
	Error      string `db:"error" faker:"sentence"`
	RecordedAt int64  `db:"recorded_at" faker:"-"`
}

// TestStats aggregates the history of one test.
type TestStats struct {
	Name     string `db:"name"`
	Runs     int    `db:"runs"`
	Failures int    `db:"failures"`
}

func (t TestStats) FailureRate() float64 {
	if t.Runs == 0 {
		return 0
	}
	return float64(t.Failures) / float64(t.Runs)
}

// DefaultWriteQueue is how many writes may wait for the writer goroutine.
const DefaultWriteQueue = 4096

// ErrWriteQueueFull is returned by Go when the writer is behind.
var ErrWriteQueueFull = errors.New("history write queue full")

// History keeps run results in SQLite.
//
// Writes queued with Go run in order on a goroutine of their own. The read
// methods wait for the writes queued before them.
type History struct {
	db *sqlx.DB

	mu      sync.RWMutex
	closed  bool
	writes  chan func()
	drained chan struct{}
}

// OpenHistory opens or creates the history database at path. Use ":memory:" for a throwaway database.
func OpenHistory(ctx context.Context, path string) (*History, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, worldtest.WithStack(err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, historySchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating history schema")
	}
	h := &History{
		db:      db,
		writes:  make(chan func(), DefaultWriteQueue),
		drained: make(chan struct{}),
	}
	go h.write()
	return h, nil
}

func (h *History) write() {
	defer close(h.drained)
	for fn := range h.writes {
		fn()
	}
}

// Go queues fn to run on the writer goroutine. It never blocks.
func (h *History) Go(fn func()) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return errors.New("history closed")
	}
	select {
	case h.writes <- fn:
		return nil
	default:
		return ErrWriteQueueFull
	}
}

// Sync waits until every write queued before it is done.
func (h *History) Sync(ctx context.Context) error {
	done := make(chan struct{})
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return nil
	}
	select {
	case h.writes <- func() { close(done) }:
		h.mu.RUnlock()
	case <-ctx.Done():
		h.mu.RUnlock()
		return worldtest.WithStack(ctx.Err())
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return worldtest.WithStack(ctx.Err())
	}
}

// Close finishes the queued writes and closes the database.
func (h *History) Close() error {
	h.mu.Lock()
	if !h.closed {
		h.closed = true
		close(h.writes)
	}
	h.mu.Unlock()
	<-h.drained
	return worldtest.WithStack(h.db.Close())
}

// NewRunID returns an id for StartRunWithID.
func NewRunID() string {
	return uuid.NewString()
}

// StartRun records a new run and returns its id.
func (h *History) StartRun(ctx context.Context, tests int) (string, error) {
	id := NewRunID()
	return id, h.StartRunWithID(ctx, id, tests)
}

func (h *History) StartRunWithID(ctx context.Context, id string, tests int) error {
	if _, err := h.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, tests) VALUES (?, ?, ?)`,
		id, time.Now().UnixNano(), tests); err != nil {
		return errors.Wrapf(err, "starting run %q", id)
	}
	return nil
}

// Record stores a final test result. A later result for the same test in the same run replaces the earlier one.
func (h *History) Record(ctx context.Context, r Result) error {
	if r.RecordedAt == 0 {
		r.RecordedAt = time.Now().UnixNano()
	}
	if _, err := h.db.NamedExecContext(ctx, `
INSERT OR REPLACE INTO results
	(run_id, name, batch, required, passed, attempt, ticks, duration_ms, error, recorded_at)
VALUES
	(:run_id, :name, :batch, :required, :passed, :attempt, :ticks, :duration_ms, :error, :recorded_at)`, r); err != nil {
		return errors.Wrapf(err, "recording %q in run %q", r.Name, r.RunID)
	}
	return nil
}

// FinishRun marks the run done and stores its counts, computed from its results.
func (h *History) FinishRun(ctx context.Context, runID string) (*Run, error) {
	tx, err := h.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, worldtest.WithStack(err)
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx, `
UPDATE runs SET
	finished_at = ?,
	passed = (SELECT COUNT(*) FROM results WHERE run_id = runs.id AND passed),
	failed_required = (SELECT COUNT(*) FROM results WHERE run_id = runs.id AND NOT passed AND required),
	failed_optional = (SELECT COUNT(*) FROM results WHERE run_id = runs.id AND NOT passed AND NOT required)
WHERE id = ?`, time.Now().UnixNano(), runID)
	if err != nil {
		return nil, worldtest.WithStack(err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, worldtest.WithStack(err)
	} else if n == 0 {
		return nil, errors.Errorf("no run %q", runID)
	}
	run := &Run{}
	if err := tx.GetContext(ctx, run, `SELECT * FROM runs WHERE id = ?`, runID); err != nil {
		return nil, worldtest.WithStack(err)
	}
	return run, worldtest.WithStack(tx.Commit())
}

// Runs returns the latest runs, newest first.
func (h *History) Runs(ctx context.Context, limit int) ([]Run, error) {
	if err := h.Sync(ctx); err != nil {
		return nil, err
	}
	res := []Run{}
	if err := h.db.SelectContext(ctx, &res, `SELECT * FROM runs ORDER BY started_at DESC LIMIT ?`, limit); err != nil {
		return nil, worldtest.WithStack(err)
	}
	return res, nil
}

// Results returns the results of a run ordered by name.
func (h *History) Results(ctx context.Context, runID string) ([]Result, error) {
	if err := h.Sync(ctx); err != nil {
		return nil, err
	}
	res := []Result{}
	if err := h.db.SelectContext(ctx, &res, `SELECT * FROM results WHERE run_id = ? ORDER BY name`, runID); err != nil {
		return nil, worldtest.WithStack(err)
	}
	return res, nil
}

// Flakiest returns the tests that failed at least once, most failures first.
func (h *History) Flakiest(ctx context.Context, limit int) ([]TestStats, error) {
	if err := h.Sync(ctx); err != nil {
		return nil, err
	}
	res := []TestStats{}
	if err := h.db.SelectContext(ctx, &res, `
SELECT name, COUNT(*) AS runs, SUM(CASE WHEN passed THEN 0 ELSE 1 END) AS failures
FROM results
GROUP BY name
HAVING failures > 0
ORDER BY failures DESC, name
LIMIT ?`, limit); err != nil {
		return nil, worldtest.WithStack(err)
	}
	return res, nil
}

// Prune deletes all but the newest keep runs.
func (h *History) Prune(ctx context.Context, keep int) (int64, error) {
	res, err := h.db.ExecContext(ctx, `
DELETE FROM runs WHERE id NOT IN (SELECT id FROM runs ORDER BY started_at DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, worldtest.WithStack(err)
	}
	n, err := res.RowsAffected()
	return n, worldtest.WithStack(err)
}
