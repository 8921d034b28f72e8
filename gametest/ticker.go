package gametest

// Ticker is the set of live executions. It must only be used from the tick thread.
type Ticker struct {
	now        int64
	executions []*Execution
}

func NewTicker() *Ticker {
	return &Ticker{}
}

// Now is the number of ticks since the ticker was created.
func (t *Ticker) Now() int64 {
	return t.now
}

// Add makes e tick from the next Tick call on.
func (t *Ticker) Add(e *Execution) {
	t.executions = append(t.executions, e)
}

// Tick advances time and ticks every execution in the order they were
// added. Executions added while ticking wait for the next tick. Executions
// that are done afterwards are dropped.
func (t *Ticker) Tick() {
	t.now++
	current := t.executions[:len(t.executions):len(t.executions)]
	for _, e := range current {
		e.Tick(t.now)
	}
	kept := t.executions[:0]
	for _, e := range t.executions {
		if !e.Done() {
			kept = append(kept, e)
		}
	}
	clear(t.executions[len(kept):])
	t.executions = kept
}

// Clear drops every execution without failing or succeeding any of them.
func (t *Ticker) Clear() {
	t.executions = nil
}

func (t *Ticker) Len() int {
	return len(t.executions)
}

func (t *Ticker) Executions() []*Execution {
	return append([]*Execution(nil), t.executions...)
}
