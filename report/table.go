package report

import (
	"io"

	"github.com/rodaine/table"
	"github.com/zond/worldtest/gametest"
)

// TableSink prints a table of every result when a run finishes.
type TableSink struct {
	w       io.Writer
	results []Result
}

func NewTableSink(w io.Writer) *TableSink {
	return &TableSink{w: w}
}

func (t *TableSink) OnTestFailed(e *gametest.Execution) {
	t.results = append(t.results, FromExecution(e))
}

func (t *TableSink) OnTestSuccess(e *gametest.Execution) {
	t.results = append(t.results, FromExecution(e))
}

func (t *TableSink) Finish() {
	tbl := table.New("Test", "Batch", "Result", "Attempt", "Ticks", "Error").WithWriter(t.w)
	tally := Tally{}
	for _, r := range t.results {
		tally.Add(r)
		tbl.AddRow(r.Name, r.Batch, r.Outcome(), r.Attempt, r.Ticks, r.Message())
	}
	tbl.Print()
	io.WriteString(t.w, tally.Summary()+"\n")
	t.results = nil
}
