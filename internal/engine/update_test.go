package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpcsched/kestrel/internal/eventlog"
	"github.com/hpcsched/kestrel/internal/job"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	h := newHarness(t)
	return h.eng
}

func entry(name string, ctx map[string]any) *eventlog.Entry {
	e := eventlog.New(name, ctx)
	return &e
}

func jobInState(s job.State) *job.Job {
	j := job.New(7)
	j.State = s
	if s != job.StateNew {
		j.Urgency = 16
	}
	return j
}

func TestApplyTransition_Submit(t *testing.T) {
	e := testEngine(t)
	j := job.New(1)

	err := e.applyTransition(j, entry("submit", map[string]any{
		"urgency": 16, "userid": 1000, "flags": 0,
	}))
	require.NoError(t, err)
	assert.Equal(t, job.StateDepend, j.State)
	assert.Equal(t, 16, j.Urgency)
	assert.Equal(t, uint32(1000), j.UserID)
}

func TestApplyTransition_SubmitUrgencyOutOfRange(t *testing.T) {
	e := testEngine(t)
	j := job.New(1)

	err := e.applyTransition(j, entry("submit", map[string]any{
		"urgency": 99, "userid": 1000, "flags": 0,
	}))
	assert.True(t, IsMalformed(err))
}

func TestApplyTransition_IllegalSourceStates(t *testing.T) {
	cases := []struct {
		name  string
		event string
		ctx   map[string]any
		state job.State
	}{
		{"submit outside new", "submit", map[string]any{"urgency": 16, "userid": 0, "flags": 0}, job.StateRun},
		{"depend outside depend", "depend", nil, job.StateSched},
		{"dependency-add outside depend", "dependency-add", map[string]any{"description": "x"}, job.StateRun},
		{"priority in depend", "priority", map[string]any{"priority": 5}, job.StateDepend},
		{"priority in run", "priority", map[string]any{"priority": 5}, job.StateRun},
		{"urgency on inactive", "urgency", map[string]any{"urgency": 3}, job.StateInactive},
		{"exception on inactive", "exception", map[string]any{"severity": 0}, job.StateInactive},
		{"alloc in run", "alloc", nil, job.StateRun},
		{"free outside cleanup", "free", nil, job.StateRun},
		{"finish in sched", "finish", nil, job.StateSched},
		{"clean outside cleanup", "clean", nil, job.StateRun},
		{"epilog-start outside cleanup", "epilog-start", nil, job.StateRun},
		{"restart outside sched", "flux-restart", nil, job.StateRun},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := testEngine(t)
			j := jobInState(tc.state)
			err := e.applyTransition(j, entry(tc.event, tc.ctx))
			assert.True(t, IsInvalidTransition(err), "got %v", err)
			assert.Equal(t, tc.state, j.State, "state must not change on rejection")
		})
	}
}

func TestApplyTransition_MalformedContexts(t *testing.T) {
	cases := []struct {
		name  string
		event string
		ctx   map[string]any
		state job.State
	}{
		{"submit missing urgency", "submit", map[string]any{"userid": 0, "flags": 0}, job.StateNew},
		{"priority wrong type", "priority", map[string]any{"priority": "high"}, job.StatePriority},
		{"urgency missing", "urgency", nil, job.StateSched},
		{"exception missing severity", "exception", map[string]any{}, job.StateRun},
		{"release final wrong type", "release", map[string]any{"final": 1}, job.StateCleanup},
		{"dependency missing description", "dependency-add", nil, job.StateDepend},
		{"set-flags unknown flag", "set-flags", map[string]any{"flags": []any{"bogus"}}, job.StateDepend},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := testEngine(t)
			j := jobInState(tc.state)
			err := e.applyTransition(j, entry(tc.event, tc.ctx))
			assert.True(t, IsMalformed(err), "got %v", err)
		})
	}
}

func TestApplyTransition_PriorityMovesSchedOnce(t *testing.T) {
	e := testEngine(t)
	j := jobInState(job.StatePriority)

	require.NoError(t, e.applyTransition(j, entry("priority", map[string]any{"priority": 100})))
	assert.Equal(t, job.StateSched, j.State)
	assert.Equal(t, int64(100), j.Priority)

	// Reprioritize in SCHED updates the value without a state change.
	require.NoError(t, e.applyTransition(j, entry("priority", map[string]any{"priority": 200})))
	assert.Equal(t, job.StateSched, j.State)
	assert.Equal(t, int64(200), j.Priority)
}

func TestApplyTransition_ExceptionSeverity(t *testing.T) {
	e := testEngine(t)
	j := jobInState(job.StateRun)

	// Nonfatal exception leaves the state machine alone.
	require.NoError(t, e.applyTransition(j, entry("exception", map[string]any{"severity": 1})))
	assert.Equal(t, job.StateRun, j.State)
	assert.Nil(t, j.EndEvent)

	// Fatal exception latches the end event and enters cleanup.
	require.NoError(t, e.applyTransition(j, entry("exception", map[string]any{"severity": 0})))
	assert.Equal(t, job.StateCleanup, j.State)
	require.NotNil(t, j.EndEvent)
	assert.Equal(t, "exception", j.EndEvent.Name)
}

func TestApplyTransition_FinishDoesNotOverwriteEndEvent(t *testing.T) {
	e := testEngine(t)
	j := jobInState(job.StateRun)

	require.NoError(t, e.applyTransition(j, entry("exception", map[string]any{"severity": 0})))
	require.NoError(t, e.applyTransition(j, entry("finish", map[string]any{"status": 0})))
	assert.Equal(t, "exception", j.EndEvent.Name)
}

func TestApplyTransition_AllocAndFree(t *testing.T) {
	e := testEngine(t)
	j := jobInState(job.StateSched)

	require.NoError(t, e.applyTransition(j, entry("alloc", nil)))
	assert.Equal(t, job.StateRun, j.State)
	assert.True(t, j.HasResources)

	require.NoError(t, e.applyTransition(j, entry("finish", map[string]any{"status": 0})))
	assert.Equal(t, job.StateCleanup, j.State)

	require.NoError(t, e.applyTransition(j, entry("free", nil)))
	assert.False(t, j.HasResources)

	// A second free has nothing to release.
	err := e.applyTransition(j, entry("free", nil))
	assert.True(t, IsInvalidTransition(err))
}

func TestApplyTransition_FinalReleaseInRunRejected(t *testing.T) {
	e := testEngine(t)
	j := jobInState(job.StateRun)

	err := e.applyTransition(j, entry("release", map[string]any{"final": true}))
	assert.True(t, IsInvalidTransition(err))

	require.NoError(t, e.applyTransition(j, entry("release", map[string]any{"final": false})))
}

func TestApplyTransition_RestartRequeues(t *testing.T) {
	e := testEngine(t)
	j := jobInState(job.StateSched)

	require.NoError(t, e.applyTransition(j, entry("flux-restart", nil)))
	assert.Equal(t, job.StatePriority, j.State)
}

func TestApplyTransition_PerilogCounting(t *testing.T) {
	e := testEngine(t)
	j := jobInState(job.StateRun)

	require.NoError(t, e.applyTransition(j, entry("prolog-start", nil)))
	require.NoError(t, e.applyTransition(j, entry("prolog-start", nil)))
	assert.Equal(t, uint8(2), j.PerilogActive)

	require.NoError(t, e.applyTransition(j, entry("prolog-finish", nil)))
	assert.Equal(t, uint8(1), j.PerilogActive)
}

func TestApplyTransition_PerilogOverflow(t *testing.T) {
	e := testEngine(t)
	j := jobInState(job.StateRun)
	for i := 0; i < 255; i++ {
		require.NoError(t, j.PerilogStart())
	}

	err := e.applyTransition(j, entry("prolog-start", nil))
	assert.True(t, IsResourceExhausted(err))
}

func TestApplyTransition_SetFlagsAndMemo(t *testing.T) {
	e := testEngine(t)
	j := jobInState(job.StateDepend)

	require.NoError(t, e.applyTransition(j, entry("set-flags", map[string]any{"flags": []any{"waitable"}})))
	assert.True(t, j.Flags.Has(job.FlagWaitable))

	require.NoError(t, e.applyTransition(j, entry("set-flags", map[string]any{"flags": []any{"alloc-bypass"}})))
	assert.True(t, j.AllocBypass)

	require.NoError(t, e.applyTransition(j, entry("memo", map[string]any{"project": "alpha"})))
	assert.Equal(t, map[string]any{"project": "alpha"}, j.Annotations("user"))

	require.NoError(t, e.applyTransition(j, entry("memo", map[string]any{"project": nil})))
	assert.Nil(t, j.Annotations("user"))
}

func TestApplyTransition_UnknownEventAccepted(t *testing.T) {
	e := testEngine(t)
	j := jobInState(job.StateRun)

	require.NoError(t, e.applyTransition(j, entry("checkpoint", map[string]any{"n": 1})))
	assert.Equal(t, job.StateRun, j.State)
}
