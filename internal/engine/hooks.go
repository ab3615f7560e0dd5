package engine

import (
	"github.com/hpcsched/kestrel/internal/eventlog"
	"github.com/hpcsched/kestrel/internal/job"
)

// EventHook observes every posted event after the transition has been
// applied. Hook errors are logged, never propagated: a misbehaving
// plugin must not corrupt the job state machine.
type EventHook func(j *job.Job, entry *eventlog.Entry) error

// StateHook observes a job entering a state. Topic form is
// "job.state.<state>".
type StateHook func(j *job.Job, entry *eventlog.Entry, prev job.State) error

// hooks is the plugin dispatch table. Mutated only before Run or on the
// reactor goroutine.
type hooks struct {
	event []EventHook
	state map[string][]StateHook
}

func newHooks() *hooks {
	return &hooks{state: make(map[string][]StateHook)}
}

func (h *hooks) subscribe(fn EventHook) {
	h.event = append(h.event, fn)
}

func (h *hooks) subscribeState(topic string, fn StateHook) {
	h.state[topic] = append(h.state[topic], fn)
}

// StateTopic returns the hook topic for a state.
func StateTopic(s job.State) string {
	return "job.state." + s.String()
}
