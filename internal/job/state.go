package job

import "fmt"

// State is the position of a job in its lifecycle DAG.
//
// Jobs advance NEW → DEPEND → PRIORITY → SCHED → RUN → CLEANUP → INACTIVE.
// SCHED may fall back to PRIORITY on a restart, and a fatal exception can
// skip straight to CLEANUP from any live state. INACTIVE is terminal.
type State int

const (
	StateNew State = iota + 1
	StateDepend
	StatePriority
	StateSched
	StateRun
	StateCleanup
	StateInactive
)

// String returns the lower-case wire name of the state.
func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateDepend:
		return "depend"
	case StatePriority:
		return "priority"
	case StateSched:
		return "sched"
	case StateRun:
		return "run"
	case StateCleanup:
		return "cleanup"
	case StateInactive:
		return "inactive"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Running reports whether the state is in the running set (RUN or CLEANUP).
// The engine maintains a process-wide count of jobs in this set.
func (s State) Running() bool {
	return s == StateRun || s == StateCleanup
}

// Terminal reports whether the state is terminal.
func (s State) Terminal() bool {
	return s == StateInactive
}
