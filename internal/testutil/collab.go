package testutil

import (
	"sync"

	"github.com/hpcsched/kestrel/internal/job"
	"github.com/hpcsched/kestrel/internal/pubsub"
)

// FakeScheduler records every scheduler request the engine makes.
// Methods run on the reactor goroutine; the mutex exists so tests can
// inspect the records from their own goroutine.
type FakeScheduler struct {
	mu        sync.Mutex
	Enqueued  []uint64
	Dequeued  []uint64
	Cancelled []uint64
	Freed     []uint64
	Recalcs   int

	// MarkSent simulates a scheduler that forwards queued requests
	// immediately: the job's queued flag flips to pending on enqueue.
	MarkSent bool

	EnqueueErr error
	FreeErr    error
}

func (s *FakeScheduler) EnqueueAllocRequest(j *job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.EnqueueErr != nil {
		return s.EnqueueErr
	}
	s.Enqueued = append(s.Enqueued, j.ID)
	if s.MarkSent {
		j.AllocQueued = false
		j.AllocPending = true
	}
	return nil
}

func (s *FakeScheduler) DequeueAllocRequest(j *job.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Dequeued = append(s.Dequeued, j.ID)
}

func (s *FakeScheduler) CancelAllocRequest(j *job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Cancelled = append(s.Cancelled, j.ID)
	return nil
}

func (s *FakeScheduler) SendFreeRequest(j *job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FreeErr != nil {
		return s.FreeErr
	}
	s.Freed = append(s.Freed, j.ID)
	return nil
}

func (s *FakeScheduler) RecalcPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Recalcs++
}

// Snapshot returns copies of the request records.
func (s *FakeScheduler) Snapshot() (enqueued, freed []uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint64(nil), s.Enqueued...), append([]uint64(nil), s.Freed...)
}

// FakeLauncher records start requests.
type FakeLauncher struct {
	mu      sync.Mutex
	Started []uint64
	Err     error
}

func (l *FakeLauncher) SendStartRequest(j *job.Job) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return l.Err
	}
	l.Started = append(l.Started, j.ID)
	return nil
}

// StartCount returns the number of start requests sent.
func (l *FakeLauncher) StartCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Started)
}

// FakeWaiter records inactive notifications for waitable jobs.
type FakeWaiter struct {
	mu       sync.Mutex
	Notified []uint64
}

func (w *FakeWaiter) NotifyInactive(j *job.Job) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Notified = append(w.Notified, j.ID)
}

// FakeDrainer counts drain checks.
type FakeDrainer struct {
	mu     sync.Mutex
	Checks int
}

func (d *FakeDrainer) Check() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Checks++
}

// JournalRecord is one observed event.
type JournalRecord struct {
	ID   uint64
	Seq  int64
	Name string
}

// RecordingJournal captures the pre-commit journal stream.
type RecordingJournal struct {
	mu      sync.Mutex
	Records []JournalRecord
}

func (r *RecordingJournal) ProcessEvent(id uint64, seq int64, name string, _ []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Records = append(r.Records, JournalRecord{ID: id, Seq: seq, Name: name})
}

// Snapshot returns a copy of the recorded stream.
func (r *RecordingJournal) Snapshot() []JournalRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]JournalRecord(nil), r.Records...)
}

// FakePublisher records published messages and resolves each publish
// with a configurable result.
type FakePublisher struct {
	mu        sync.Mutex
	Published []pubsub.Message
	Err       error
}

func (p *FakePublisher) Publish(topic string, payload any) <-chan error {
	p.mu.Lock()
	p.Published = append(p.Published, pubsub.Message{Topic: topic, Payload: payload})
	err := p.Err
	p.mu.Unlock()

	done := make(chan error, 1)
	done <- err
	close(done)
	return done
}

// Messages returns a copy of the published messages.
func (p *FakePublisher) Messages() []pubsub.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]pubsub.Message(nil), p.Published...)
}
