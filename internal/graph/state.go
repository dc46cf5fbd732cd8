package graph

// State is the scheduling state of one node. The numeric order is the
// precedence used when folding upstream states with max: Done yields to
// everything, Error dominates everything, and an output-present-but-stale
// node (Outdated) yields to nodes that are still queued behind unfinished
// work.
type State uint8

const (
	// Done means outputs exist, are up to date, and all upstream work is done.
	Done State = iota

	// Runnable means all upstream work is done and the node's own outputs
	// are absent or stale; the executor may dispatch it.
	Runnable

	// Outdated means outputs exist but upstream work is still pending, so
	// they are known stale and will be rebuilt once upstream completes.
	Outdated

	// Queued means the node is waiting for upstream work to finish.
	Queued

	// Running means the executor has claimed the node. Sticky across
	// refreshes.
	Running

	// Error means the node failed, a liveness check on it failed, or an
	// upstream node is in Error. Sticky across refreshes when set directly.
	Error
)

var stateNames = [...]string{
	Done:     "done",
	Runnable: "runnable",
	Outdated: "outdated",
	Queued:   "queued",
	Running:  "running",
	Error:    "error",
}

// String returns the lower-case state name.
func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}
