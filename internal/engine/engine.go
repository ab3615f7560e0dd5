// Package engine implements the job-manager event engine: a
// single-threaded reactor that applies eventlog entries to in-memory
// job records, batches the entries into transactional KVS appends, and
// broadcasts state transitions only after they are durable.
package engine

import (
	"log/slog"
	"time"

	"github.com/hpcsched/kestrel/internal/evindex"
	"github.com/hpcsched/kestrel/internal/job"
	"github.com/hpcsched/kestrel/internal/kvs"
	"github.com/hpcsched/kestrel/internal/pubsub"
)

// TimerFunc arms a one-shot timer firing fn after d. The returned
// function cancels it. Tests substitute a manual implementation.
type TimerFunc func(d time.Duration, fn func()) (stop func())

// Stats receives engine counters. Implementations must be cheap; every
// call happens on the reactor goroutine.
type Stats interface {
	EventPosted(name string)
	BatchCommitted(appends int)
	BatchFailed()
	ActiveJobs(n int)
	RunningJobs(n int)
}

// Options wires the engine's collaborators. Store, Publisher and
// Reactor are required; everything else has a working default.
type Options struct {
	Store     kvs.Store
	Publisher pubsub.Publisher
	Reactor   *Reactor

	Scheduler Scheduler
	Launcher  Launcher
	Waiter    Waiter
	Drainer   Drainer
	Journal   Journal
	Priority  PriorityProvider

	Log   *slog.Logger
	Stats Stats
	Timer TimerFunc
}

// Engine owns the active-jobs index and the batch pipeline. All methods
// except Shutdown must be called on the reactor goroutine.
type Engine struct {
	reactor   *Reactor
	store     kvs.Store
	publisher pubsub.Publisher

	scheduler Scheduler
	launcher  Launcher
	waiter    Waiter
	drainer   Drainer
	journal   Journal
	priority  PriorityProvider

	log   *slog.Logger
	stats Stats
	timer TimerFunc

	evx   *evindex.Index
	jobs  map[uint64]*job.Job
	hooks *hooks

	batch        *batch
	pending      []*batch
	stopTimer    func()
	pubsInFlight int
	drainDone    chan struct{}

	runningCount int
}

// New creates an engine on the given reactor.
func New(opts Options) *Engine {
	e := &Engine{
		reactor:   opts.Reactor,
		store:     opts.Store,
		publisher: opts.Publisher,
		scheduler: opts.Scheduler,
		launcher:  opts.Launcher,
		waiter:    opts.Waiter,
		drainer:   opts.Drainer,
		journal:   opts.Journal,
		priority:  opts.Priority,
		log:       opts.Log,
		stats:     opts.Stats,
		timer:     opts.Timer,
		evx:       evindex.New(),
		jobs:      make(map[uint64]*job.Job),
		hooks:     newHooks(),
	}
	if e.scheduler == nil {
		e.scheduler = nopScheduler{}
	}
	if e.launcher == nil {
		e.launcher = nopLauncher{}
	}
	if e.waiter == nil {
		e.waiter = nopWaiter{}
	}
	if e.drainer == nil {
		e.drainer = nopDrainer{}
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	if e.stats == nil {
		e.stats = nopStats{}
	}
	if e.timer == nil {
		e.timer = func(d time.Duration, fn func()) func() {
			t := time.AfterFunc(d, func() { e.reactor.Submit(fn) })
			return func() { t.Stop() }
		}
	}
	return e
}

// Reactor returns the run loop the engine is bound to.
func (e *Engine) Reactor() *Reactor { return e.reactor }

// Adopt places a new job record in the active index. The index holds
// the record's initial reference.
func (e *Engine) Adopt(j *job.Job) {
	e.jobs[j.ID] = j
	e.stats.ActiveJobs(len(e.jobs))
}

// Job looks up an active job by id.
func (e *Engine) Job(id uint64) (*job.Job, bool) {
	j, ok := e.jobs[id]
	return j, ok
}

// ActiveCount returns the number of jobs in the active index.
func (e *Engine) ActiveCount() int { return len(e.jobs) }

// Subscribe registers a hook invoked for every posted event.
func (e *Engine) Subscribe(fn EventHook) { e.hooks.subscribe(fn) }

// SubscribeState registers a hook invoked when a job enters the state
// named by topic, e.g. StateTopic(job.StateCleanup).
func (e *Engine) SubscribeState(topic string, fn StateHook) {
	e.hooks.subscribeState(topic, fn)
}

// EventSeen reports whether j has ever posted the named event.
func (e *Engine) EventSeen(j *job.Job, name string) (int64, bool) {
	return j.EventSeen(e.evx.Lookup(name))
}

func (e *Engine) removeJob(j *job.Job) {
	if _, ok := e.jobs[j.ID]; !ok {
		return
	}
	delete(e.jobs, j.ID)
	e.stats.ActiveJobs(len(e.jobs))
	j.Decref()
}

type nopScheduler struct{}

func (nopScheduler) EnqueueAllocRequest(*job.Job) error { return nil }
func (nopScheduler) DequeueAllocRequest(*job.Job)       {}
func (nopScheduler) CancelAllocRequest(*job.Job) error  { return nil }
func (nopScheduler) SendFreeRequest(*job.Job) error     { return nil }
func (nopScheduler) RecalcPending()                     {}

type nopLauncher struct{}

func (nopLauncher) SendStartRequest(*job.Job) error { return nil }

type nopWaiter struct{}

func (nopWaiter) NotifyInactive(*job.Job) {}

type nopDrainer struct{}

func (nopDrainer) Check() {}

type nopStats struct{}

func (nopStats) EventPosted(string) {}
func (nopStats) BatchCommitted(int) {}
func (nopStats) BatchFailed()       {}
func (nopStats) ActiveJobs(int)     {}
func (nopStats) RunningJobs(int)    {}
