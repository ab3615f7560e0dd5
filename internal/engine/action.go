package engine

import (
	"github.com/hpcsched/kestrel/internal/job"
)

// runAction performs the per-state action after an event has been
// applied. Requests that start work (alloc enqueue, start, free) and the
// depend and clean posts are guarded by flags on the job record, so
// re-running an action with no intervening event does not repeat them.
// The SCHED action calls RecalcPending, and the CLEANUP action calls
// CancelAllocRequest while AllocPending is set, on every run.
//
// Actions may post further events (depend, clean), reentering the post
// pipeline. The caller holds a reference on j across the call.
func (e *Engine) runAction(j *job.Job) error {
	switch j.State {
	case job.StateNew:

	case job.StateDepend:
		if j.DependencyCount() == 0 && !j.DependPosted {
			j.DependPosted = true
			if err := e.PostEvent(j, "depend", 0, nil); err != nil {
				return err
			}
		}

	case job.StatePriority:
		// A restart or fatal exception can leave an alloc request queued
		// from a previous pass through SCHED.
		if j.AllocQueued {
			e.scheduler.DequeueAllocRequest(j)
			j.AllocQueued = false
		}

	case job.StateSched:
		if j.Priority != job.PriorityUnset &&
			j.Urgency != job.UrgencyHold &&
			!j.AllocQueued && !j.AllocPending && !j.HasResources && !j.AllocBypass {
			j.AllocQueued = true
			if err := e.scheduler.EnqueueAllocRequest(j); err != nil {
				j.AllocQueued = false
				return &Error{Kind: KindDownstream, JobID: j.ID, Msg: "enqueue alloc request", Err: err}
			}
		}
		e.scheduler.RecalcPending()

	case job.StateRun:
		if j.PerilogActive == 0 && !j.StartPending {
			j.StartPending = true
			if err := e.launcher.SendStartRequest(j); err != nil {
				j.StartPending = false
				return &Error{Kind: KindDownstream, JobID: j.ID, Msg: "send start request", Err: err}
			}
		}

	case job.StateCleanup:
		if j.AllocQueued {
			e.scheduler.DequeueAllocRequest(j)
			j.AllocQueued = false
		}
		if j.AllocPending {
			if err := e.scheduler.CancelAllocRequest(j); err != nil {
				return &Error{Kind: KindDownstream, JobID: j.ID, Msg: "cancel alloc request", Err: err}
			}
		}
		if j.HasResources && j.PerilogActive == 0 &&
			!j.StartPending && !j.FreePending && !j.AllocBypass {
			j.FreePending = true
			if err := e.scheduler.SendFreeRequest(j); err != nil {
				j.FreePending = false
				return &Error{Kind: KindDownstream, JobID: j.ID, Msg: "send free request", Err: err}
			}
		}
		if !j.AllocQueued && !j.AllocPending && !j.FreePending && !j.StartPending &&
			!j.HasResources && j.PerilogActive == 0 {
			if err := e.PostEvent(j, "clean", 0, nil); err != nil {
				return err
			}
		}

	case job.StateInactive:
		if j.Flags.Has(job.FlagWaitable) {
			e.waiter.NotifyInactive(j)
		}
		e.removeJob(j)
		e.drainer.Check()
	}
	return nil
}
