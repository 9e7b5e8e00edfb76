package domain

// PipelineState is a step of the per-document state machine.
type PipelineState string

// Pipeline states in the order a fresh document visits them.
const (
	StateStart            PipelineState = "START"
	StateHashing          PipelineState = "HASHING"
	StateDedupCheck       PipelineState = "DEDUP_CHECK"
	StateExtracting       PipelineState = "EXTRACTING"
	StateSkippedDuplicate PipelineState = "SKIPPED_DUPLICATE"
	StateEnriching        PipelineState = "ENRICHING"
	StatePersisting       PipelineState = "PERSISTING"
	StateDone             PipelineState = "DONE"
	StateFailed           PipelineState = "FAILED"
)

// IsTerminal reports whether no further transition is possible.
func (s PipelineState) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// String returns the string representation.
func (s PipelineState) String() string {
	return string(s)
}
