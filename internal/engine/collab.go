package engine

import "github.com/hpcsched/kestrel/internal/job"

// Scheduler is the resource-allocation collaborator. All methods are
// invoked on the reactor goroutine; implementations that do real work
// should hand off and report back by posting events.
type Scheduler interface {
	// EnqueueAllocRequest queues an allocation request for a job in
	// SCHED state.
	EnqueueAllocRequest(j *job.Job) error
	// DequeueAllocRequest withdraws a queued, not-yet-sent request.
	DequeueAllocRequest(j *job.Job)
	// CancelAllocRequest cancels an in-flight request.
	CancelAllocRequest(j *job.Job) error
	// SendFreeRequest returns the job's resources to the scheduler.
	SendFreeRequest(j *job.Job) error
	// RecalcPending re-evaluates queue order after a priority change.
	RecalcPending()
}

// Launcher starts job execution once resources are held.
type Launcher interface {
	SendStartRequest(j *job.Job) error
}

// Waiter is notified when a waitable job goes inactive.
type Waiter interface {
	NotifyInactive(j *job.Job)
}

// Drainer is consulted when a job leaves the active set so a pending
// drain can complete once the set is empty.
type Drainer interface {
	Check()
}

// Journal observes every posted event in order, before the batch
// commits. Events posted with NoCommit and without ForceSequence carry
// seq -1.
type Journal interface {
	ProcessEvent(id uint64, seq int64, name string, entry []byte)
}

// PriorityProvider maps urgency to priority. A nil provider leaves
// priorities unset.
type PriorityProvider interface {
	Priority(j *job.Job) (int64, error)
}
