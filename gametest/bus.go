package gametest

// Listener observes the life cycle of executions.
type Listener interface {
	StructureLoaded(e *Execution)
	Passed(e *Execution)
	Failed(e *Execution)
}

// ListenerFuncs adapts functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	OnStructureLoaded func(e *Execution)
	OnPassed          func(e *Execution)
	OnFailed          func(e *Execution)
}

func (l ListenerFuncs) StructureLoaded(e *Execution) {
	if l.OnStructureLoaded != nil {
		l.OnStructureLoaded(e)
	}
}

func (l ListenerFuncs) Passed(e *Execution) {
	if l.OnPassed != nil {
		l.OnPassed(e)
	}
}

func (l ListenerFuncs) Failed(e *Execution) {
	if l.OnFailed != nil {
		l.OnFailed(e)
	}
}

// Bus holds listener subscriptions keyed by execution id. Listeners are
// notified in subscription order. Subscriptions are dropped once the
// execution has published its result.
type Bus struct {
	subs map[string][]Listener
}

func NewBus() *Bus {
	return &Bus{subs: map[string][]Listener{}}
}

func (b *Bus) Subscribe(executionID string, l Listener) {
	b.subs[executionID] = append(b.subs[executionID], l)
}

func (b *Bus) Forget(executionID string) {
	delete(b.subs, executionID)
}

func (b *Bus) Listeners(executionID string) []Listener {
	return append([]Listener(nil), b.subs[executionID]...)
}

// Len is the number of executions with subscriptions.
func (b *Bus) Len() int {
	return len(b.subs)
}

func (b *Bus) structureLoaded(e *Execution) {
	for _, l := range b.Listeners(e.ID) {
		l.StructureLoaded(e)
	}
}

func (b *Bus) passed(e *Execution) {
	for _, l := range b.Listeners(e.ID) {
		l.Passed(e)
	}
	b.Forget(e.ID)
}

func (b *Bus) failed(e *Execution) {
	for _, l := range b.Listeners(e.ID) {
		l.Failed(e)
	}
	b.Forget(e.ID)
}
