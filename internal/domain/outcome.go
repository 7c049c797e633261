package domain

// Action is what the orchestrator asked a sink to do for one event.
type Action string

const (
	ActionNone   Action = "none"
	ActionUpsert Action = "upsert"
	ActionDelete Action = "delete"
)

// SinkResult is the outcome of one sink for one event. Each sink fails
// independently, so each carries its own error.
type SinkResult struct {
	Action Action
	Err    error
}

// Attempted reports whether a call was made to the sink.
func (r SinkResult) Attempted() bool { return r.Action != ActionNone && r.Action != "" }

// Failed reports whether the sink call returned an error.
func (r SinkResult) Failed() bool { return r.Err != nil }

// Outcome summarizes how one change event was handled.
type Outcome struct {
	Skipped    bool
	SkipReason string

	Op          Op
	Key         any
	SnapshotHit bool

	Document SinkResult
	Search   SinkResult
}

// Failed reports whether any sink call failed.
func (o Outcome) Failed() bool { return o.Document.Failed() || o.Search.Failed() }
