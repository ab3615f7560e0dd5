package engine

import (
	"log/slog"

	"github.com/hpcsched/kestrel/internal/eventlog"
	"github.com/hpcsched/kestrel/internal/job"
	"github.com/hpcsched/kestrel/internal/kvs"
)

// PostFlag modifies how an event moves through the post pipeline.
type PostFlag int

const (
	// NoCommit applies the event and notifies observers without writing
	// it to the KVS or consuming a sequence number.
	NoCommit PostFlag = 1 << iota
	// ForceSequence consumes a sequence number even with NoCommit set.
	ForceSequence
)

// PostEvent posts a named event with a freshly stamped timestamp.
func (e *Engine) PostEvent(j *job.Job, name string, flags PostFlag, context map[string]any) error {
	return e.PostEntry(j, eventlog.New(name, context), flags)
}

// PostEntry runs the full post pipeline for one entry.
//
// Failures before the batch append are returned to the caller and leave
// the job untouched. After the append, commit and publish failures are
// fatal and plugin hook failures are logged; an error from the per-state
// action is returned to the caller with the event already in the batch.
// PostEntry is reentrant: hooks and actions may post further events on
// the same job.
func (e *Engine) PostEntry(j *job.Job, entry eventlog.Entry, flags PostFlag) error {
	if j.State == job.StateNew && entry.Name != "submit" {
		return newError(KindTryAgain, j.ID, entry.Name, "job not yet submitted")
	}

	if entry.Timestamp == 0 {
		entry = eventlog.New(entry.Name, entry.Context)
	}
	data, err := eventlog.Encode(entry)
	if err != nil {
		return &Error{Kind: KindMalformed, JobID: j.ID, Event: entry.Name, Msg: "encode", Err: err}
	}

	willCommit := flags&NoCommit == 0
	assignSeq := willCommit || flags&ForceSequence != 0
	seq := int64(-1)
	if assignSeq {
		seq = j.EventlogSeq
	}
	if e.journal != nil {
		e.journal.ProcessEvent(j.ID, seq, entry.Name, data)
	}

	prev := j.State
	if err := e.applyTransition(j, &entry); err != nil {
		return err
	}
	if assignSeq {
		j.EventlogSeq++
	}
	j.MarkEventSeen(e.evx.Lookup(entry.Name), seq)
	e.stats.EventPosted(entry.Name)

	if willCommit {
		e.ensureBatch().txn.Append(kvs.EventlogKey(j.ID), data)
	}
	if j.State != prev {
		b := e.ensureBatch()
		b.transitions = append(b.transitions, StateTransition{
			ID:        j.ID,
			State:     j.State.String(),
			Timestamp: entry.Timestamp,
		})
	}

	if prev.Running() != j.State.Running() {
		if j.State.Running() {
			e.runningCount++
		} else {
			e.runningCount--
		}
		e.stats.RunningJobs(e.runningCount)
	}

	j.Incref()
	defer j.Decref()

	e.callHooks(j, &entry, prev)
	return e.runAction(j)
}

// callHooks notifies plugin subscribers. Hook failures are logged and
// swallowed so third-party callbacks cannot wedge the state machine.
func (e *Engine) callHooks(j *job.Job, entry *eventlog.Entry, prev job.State) {
	for _, fn := range e.hooks.event {
		if err := fn(j, entry); err != nil {
			e.log.Warn("event hook failed",
				slog.Uint64("job", j.ID), slog.String("event", entry.Name), slog.Any("error", err))
		}
	}
	if j.State != prev {
		for _, fn := range e.hooks.state[StateTopic(j.State)] {
			if err := fn(j, entry, prev); err != nil {
				e.log.Warn("state hook failed",
					slog.Uint64("job", j.ID), slog.String("state", j.State.String()), slog.Any("error", err))
			}
		}
	}
	if entry.Name == "urgency" {
		e.reprioritize(j)
	}
}

// reprioritize asks the priority provider for a fresh priority after an
// urgency change and posts a priority event if it moved. Only jobs that
// have not yet left the scheduling phase are repriced.
func (e *Engine) reprioritize(j *job.Job) {
	if e.priority == nil {
		return
	}
	if j.State != job.StatePriority && j.State != job.StateSched {
		return
	}
	p, err := e.priority.Priority(j)
	if err != nil {
		e.log.Warn("priority provider failed",
			slog.Uint64("job", j.ID), slog.Any("error", err))
		return
	}
	if p == j.Priority {
		return
	}
	if err := e.PostEvent(j, "priority", 0, map[string]any{"priority": p}); err != nil {
		e.log.Warn("reprioritize post failed",
			slog.Uint64("job", j.ID), slog.Any("error", err))
	}
}
