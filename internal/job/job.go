// Package job holds the in-memory record of a single job and the small
// helpers the state machine needs: dependency tracking, flag lookup,
// annotation merge, and reference counting.
//
// A Job is owned by the engine's active-jobs index and mutated only from
// the reactor goroutine. The reference count exists solely to keep the
// record alive across reentrant event posting; it is not a concurrency
// mechanism.
package job

import (
	"fmt"
	"math"
)

// PriorityUnset is the sentinel for a job whose priority has not yet been
// assigned by the priority plugin.
const PriorityUnset = int64(-1)

// Urgency bounds and named sentinels.
const (
	UrgencyMin      = 0
	UrgencyMax      = 31
	UrgencyHold     = UrgencyMin
	UrgencyExpedite = UrgencyMax
)

// Job is the authoritative in-memory record of one job.
//
// All exported fields are mutated only by the engine on its reactor
// goroutine. Collaborators flip the pending booleans as their requests go
// in flight and resolve.
type Job struct {
	ID      uint64
	State   State
	TSubmit float64
	Urgency int
	// Priority is PriorityUnset until the first priority event.
	Priority int64
	UserID   uint32
	Flags    Flags

	// Resource and collaborator bookkeeping.
	HasResources bool
	AllocQueued  bool
	AllocPending bool
	FreePending  bool
	StartPending bool
	AllocBypass  bool

	// PerilogActive counts in-flight prolog and epilog scripts.
	PerilogActive uint8

	// DependPosted latches the one-shot depend event.
	DependPosted bool

	// EventlogSeq is the count of sequence numbers assigned: one per
	// committed event, plus one per NoCommit event posted with
	// ForceSequence. The next sequenced event is assigned this value.
	EventlogSeq int64

	// EndEvent records the first terminal event (fatal exception or
	// finish). Once set it is never replaced.
	EndEvent *EndEvent

	deps        map[string]struct{}
	eventSeen   map[int]int64
	annotations map[string]any
	refcount    int
}

// EndEvent is the captured copy of the entry that terminated execution.
type EndEvent struct {
	Timestamp float64
	Name      string
	Context   map[string]any
}

// New creates a job in NEW state with one reference held by the caller.
func New(id uint64) *Job {
	return &Job{
		ID:       id,
		State:    StateNew,
		Priority: PriorityUnset,
		refcount: 1,
	}
}

// SetFlag sets a flag by its wire name from the static table.
func (j *Job) SetFlag(name string) error {
	f, err := FlagByName(name)
	if err != nil {
		return err
	}
	j.Flags |= f
	if f == FlagAllocBypass {
		j.AllocBypass = true
	}
	return nil
}

// DependencyAdd registers an outstanding dependency keyed by description.
// Adding a description twice is an error.
func (j *Job) DependencyAdd(desc string) error {
	if j.deps == nil {
		j.deps = make(map[string]struct{})
	}
	if _, ok := j.deps[desc]; ok {
		return fmt.Errorf("dependency %q already exists", desc)
	}
	j.deps[desc] = struct{}{}
	return nil
}

// DependencyRemove drops an outstanding dependency by description.
// Removing an unknown description is an error.
func (j *Job) DependencyRemove(desc string) error {
	if _, ok := j.deps[desc]; !ok {
		return fmt.Errorf("dependency %q does not exist", desc)
	}
	delete(j.deps, desc)
	return nil
}

// DependencyCount returns the number of outstanding dependencies.
func (j *Job) DependencyCount() int {
	return len(j.deps)
}

// PerilogStart increments the in-flight prolog/epilog counter.
func (j *Job) PerilogStart() error {
	if j.PerilogActive == math.MaxUint8 {
		return fmt.Errorf("perilog counter overflow")
	}
	j.PerilogActive++
	return nil
}

// PerilogFinish decrements the counter, clamping at zero.
func (j *Job) PerilogFinish() {
	if j.PerilogActive > 0 {
		j.PerilogActive--
	}
}

// SetEndEvent latches the terminal event. Only the first call wins.
func (j *Job) SetEndEvent(timestamp float64, name string, context map[string]any) {
	if j.EndEvent != nil {
		return
	}
	j.EndEvent = &EndEvent{Timestamp: timestamp, Name: name, Context: context}
}

// MarkEventSeen records the last assigned sequence for an event id from
// the event index. seq is -1 for events that were assigned no sequence.
func (j *Job) MarkEventSeen(eventID int, seq int64) {
	if j.eventSeen == nil {
		j.eventSeen = make(map[int]int64)
	}
	j.eventSeen[eventID] = seq
}

// EventSeen reports whether the job has ever observed the event id, and
// the sequence it was last assigned.
func (j *Job) EventSeen(eventID int) (int64, bool) {
	seq, ok := j.eventSeen[eventID]
	return seq, ok
}

// UpdateAnnotations merges an annotation object into the given namespace.
// A null value deletes the key; merging an empty object is a no-op.
func (j *Job) UpdateAnnotations(ns string, update map[string]any) {
	if len(update) == 0 {
		return
	}
	if j.annotations == nil {
		j.annotations = make(map[string]any)
	}
	space, _ := j.annotations[ns].(map[string]any)
	if space == nil {
		space = make(map[string]any)
	}
	for k, v := range update {
		if v == nil {
			delete(space, k)
			continue
		}
		space[k] = v
	}
	if len(space) == 0 {
		delete(j.annotations, ns)
		return
	}
	j.annotations[ns] = space
}

// Annotations returns the annotation object for a namespace, or nil.
func (j *Job) Annotations(ns string) map[string]any {
	space, _ := j.annotations[ns].(map[string]any)
	return space
}

// Incref takes an inbound reference on the job.
func (j *Job) Incref() {
	j.refcount++
}

// Decref drops a reference and reports whether the job may now be
// destroyed (count reached zero). The engine removes jobs from its index
// on INACTIVE but must not recycle a record while references remain.
func (j *Job) Decref() bool {
	if j.refcount == 0 {
		return false
	}
	j.refcount--
	return j.refcount == 0
}

// Refcount returns the current inbound reference count.
func (j *Job) Refcount() int {
	return j.refcount
}
