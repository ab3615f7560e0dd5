package engine

import (
	"github.com/hpcsched/kestrel/internal/eventlog"
	"github.com/hpcsched/kestrel/internal/job"
)

// applyTransition runs the state-machine transition for one entry,
// mutating j in place. Unknown event names are accepted with no state
// change so new event producers can roll out ahead of this engine.
func (e *Engine) applyTransition(j *job.Job, entry *eventlog.Entry) error {
	switch entry.Name {
	case "submit":
		if j.State != job.StateNew {
			return transitionErr(j, entry)
		}
		sc, err := eventlog.DecodeSubmit(entry.Context)
		if err != nil {
			return malformedErr(j, entry, err)
		}
		if sc.Urgency < job.UrgencyMin || sc.Urgency > job.UrgencyMax {
			return newError(KindMalformed, j.ID, entry.Name, "urgency %d out of range", sc.Urgency)
		}
		j.TSubmit = entry.Timestamp
		j.Urgency = sc.Urgency
		j.UserID = sc.UserID
		j.Flags = job.Flags(sc.Flags)
		j.AllocBypass = j.Flags.Has(job.FlagAllocBypass)
		j.State = job.StateDepend

	case "dependency-add":
		if j.State != job.StateDepend {
			return transitionErr(j, entry)
		}
		desc, err := eventlog.DecodeDescription(entry.Context)
		if err != nil {
			return malformedErr(j, entry, err)
		}
		if err := j.DependencyAdd(desc); err != nil {
			return malformedErr(j, entry, err)
		}

	case "dependency-remove":
		if j.State != job.StateDepend {
			return transitionErr(j, entry)
		}
		desc, err := eventlog.DecodeDescription(entry.Context)
		if err != nil {
			return malformedErr(j, entry, err)
		}
		if err := j.DependencyRemove(desc); err != nil {
			return malformedErr(j, entry, err)
		}

	case "set-flags":
		names, err := eventlog.DecodeFlagNames(entry.Context)
		if err != nil {
			return malformedErr(j, entry, err)
		}
		for _, name := range names {
			if _, err := job.FlagByName(name); err != nil {
				return malformedErr(j, entry, err)
			}
		}
		for _, name := range names {
			if err := j.SetFlag(name); err != nil {
				return malformedErr(j, entry, err)
			}
		}

	case "memo":
		j.UpdateAnnotations("user", entry.Context)

	case "depend":
		if j.State != job.StateDepend {
			return transitionErr(j, entry)
		}
		j.State = job.StatePriority

	case "priority":
		if j.State != job.StatePriority && j.State != job.StateSched {
			return transitionErr(j, entry)
		}
		priority, err := eventlog.DecodePriority(entry.Context)
		if err != nil {
			return malformedErr(j, entry, err)
		}
		j.Priority = priority
		if j.State == job.StatePriority {
			j.State = job.StateSched
		}

	case "urgency":
		if j.State == job.StateInactive {
			return transitionErr(j, entry)
		}
		urgency, err := eventlog.DecodeUrgency(entry.Context)
		if err != nil {
			return malformedErr(j, entry, err)
		}
		if urgency < job.UrgencyMin || urgency > job.UrgencyMax {
			return newError(KindMalformed, j.ID, entry.Name, "urgency %d out of range", urgency)
		}
		j.Urgency = urgency

	case "exception":
		if j.State == job.StateNew || j.State == job.StateInactive {
			return transitionErr(j, entry)
		}
		severity, err := eventlog.DecodeSeverity(entry.Context)
		if err != nil {
			return malformedErr(j, entry, err)
		}
		if severity == 0 {
			j.SetEndEvent(entry.Timestamp, entry.Name, entry.Context)
			j.State = job.StateCleanup
			// Execution is over; a start request that never got a
			// response must not hold cleanup open.
			j.StartPending = false
		}

	case "alloc":
		if j.State != job.StateSched && j.State != job.StateCleanup {
			return transitionErr(j, entry)
		}
		j.HasResources = true
		j.AllocPending = false
		if j.State == job.StateSched {
			j.State = job.StateRun
		}

	case "free":
		if j.State != job.StateCleanup || !j.HasResources {
			return transitionErr(j, entry)
		}
		j.HasResources = false
		j.FreePending = false

	case "finish":
		if j.State != job.StateRun && j.State != job.StateCleanup {
			return transitionErr(j, entry)
		}
		if j.State == job.StateRun {
			j.SetEndEvent(entry.Timestamp, entry.Name, entry.Context)
			j.State = job.StateCleanup
			j.StartPending = false
		}

	case "release":
		if j.State != job.StateRun && j.State != job.StateCleanup {
			return transitionErr(j, entry)
		}
		final, err := eventlog.DecodeFinal(entry.Context)
		if err != nil {
			return malformedErr(j, entry, err)
		}
		if final && j.State == job.StateRun {
			return newError(KindInvalidTransition, j.ID, entry.Name, "final release in run state")
		}

	case "clean":
		if j.State != job.StateCleanup {
			return transitionErr(j, entry)
		}
		j.State = job.StateInactive

	case "prolog-start":
		if j.StartPending {
			return transitionErr(j, entry)
		}
		if err := j.PerilogStart(); err != nil {
			return &Error{Kind: KindResourceExhausted, JobID: j.ID, Event: entry.Name, Msg: err.Error()}
		}

	case "prolog-finish":
		if j.StartPending {
			return transitionErr(j, entry)
		}
		j.PerilogFinish()

	case "epilog-start":
		if j.State != job.StateCleanup {
			return transitionErr(j, entry)
		}
		if err := j.PerilogStart(); err != nil {
			return &Error{Kind: KindResourceExhausted, JobID: j.ID, Event: entry.Name, Msg: err.Error()}
		}

	case "epilog-finish":
		if j.State != job.StateCleanup {
			return transitionErr(j, entry)
		}
		j.PerilogFinish()

	case "flux-restart":
		if j.State != job.StateSched {
			return transitionErr(j, entry)
		}
		j.State = job.StatePriority
	}
	return nil
}

func transitionErr(j *job.Job, entry *eventlog.Entry) *Error {
	return newError(KindInvalidTransition, j.ID, entry.Name,
		"event not valid in state %s", j.State)
}

func malformedErr(j *job.Job, entry *eventlog.Entry, err error) *Error {
	return &Error{Kind: KindMalformed, JobID: j.ID, Event: entry.Name, Msg: "bad context", Err: err}
}
