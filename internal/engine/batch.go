package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/hpcsched/kestrel/internal/kvs"
)

// BatchWindow is how long a batch accumulates appends before committing.
const BatchWindow = 10 * time.Millisecond

// StateTransition is one entry of a job-state broadcast.
type StateTransition struct {
	ID        uint64  `json:"id"`
	State     string  `json:"state"`
	Timestamp float64 `json:"timestamp"`
}

// StateUpdate is the payload published on the job-state topic, at most
// once per batch commit.
type StateUpdate struct {
	Transitions []StateTransition `json:"transitions"`
}

// TopicJobState is the broadcast topic for batched state transitions.
const TopicJobState = "job-state"

// batch accumulates work during one window. Owned exclusively by the
// engine; never touched off the reactor goroutine except for its txn,
// which the commit goroutine reads after the engine has let go of it.
type batch struct {
	txn         *kvs.Txn
	transitions []StateTransition
	responses   []func()

	committed bool
	commitErr error
}

// ensureBatch returns the accumulating batch, creating one and arming
// the window timer on first use.
func (e *Engine) ensureBatch() *batch {
	if e.batch != nil {
		return e.batch
	}
	e.batch = &batch{txn: kvs.NewTxn()}
	e.stopTimer = e.timer(BatchWindow, e.commitBatch)
	return e.batch
}

// commitBatch closes the accumulating batch and starts its commit. Runs
// on the reactor, from the window timer or from Shutdown.
func (e *Engine) commitBatch() {
	if e.batch == nil {
		return
	}
	b := e.batch
	e.batch = nil
	if e.stopTimer != nil {
		e.stopTimer()
		e.stopTimer = nil
	}

	e.pending = append(e.pending, b)
	if b.txn.Len() == 0 {
		// Nothing durable to wait for.
		b.committed = true
		e.resolvePending()
		return
	}
	go func() {
		err := e.store.Commit(context.Background(), b.txn)
		e.reactor.Submit(func() {
			b.committed = true
			b.commitErr = err
			e.resolvePending()
		})
	}()
}

// resolvePending finishes committed batches from the head of the FIFO,
// preserving commit order in the broadcast stream even if two commits
// resolve out of order.
func (e *Engine) resolvePending() {
	for len(e.pending) > 0 && e.pending[0].committed {
		b := e.pending[0]
		e.pending = e.pending[1:]
		if b.commitErr != nil {
			err := &Error{Kind: KindCommitFailed, Msg: "eventlog batch commit", Err: b.commitErr}
			e.log.Error("batch commit failed, stopping",
				slog.Int("appends", b.txn.Len()), slog.Any("error", b.commitErr))
			e.stats.BatchFailed()
			e.reactor.StopError(err)
			continue
		}
		e.stats.BatchCommitted(b.txn.Len())
		e.finishBatch(b)
	}
	e.checkDrained()
}

// finishBatch publishes accumulated transitions and sends deferred
// replies, in that order. The publish result is awaited off-reactor; a
// failed publish stops the engine because observers would otherwise
// trail the durable log forever.
func (e *Engine) finishBatch(b *batch) {
	if len(b.transitions) > 0 {
		done := e.publisher.Publish(TopicJobState, StateUpdate{Transitions: b.transitions})
		e.pubsInFlight++
		go func() {
			err := <-done
			e.reactor.Submit(func() { e.pubDone(err) })
		}()
	}
	for _, respond := range b.responses {
		respond()
	}
}

func (e *Engine) pubDone(err error) {
	e.pubsInFlight--
	if err != nil {
		e.log.Error("job-state publish failed, stopping", slog.Any("error", err))
		e.reactor.StopError(&Error{Kind: KindPubFailed, Msg: "job-state publish", Err: err})
	}
	e.checkDrained()
}

func (e *Engine) checkDrained() {
	if e.drainDone == nil {
		return
	}
	if e.batch == nil && len(e.pending) == 0 && e.pubsInFlight == 0 {
		close(e.drainDone)
		e.drainDone = nil
	}
}

// RespondOnCommit defers respond until the current batch has committed,
// giving the requester read-after-write semantics against the store. On
// commit failure the reply is dropped along with the batch.
func (e *Engine) RespondOnCommit(respond func()) {
	b := e.ensureBatch()
	b.responses = append(b.responses, respond)
}

// Shutdown forces the open batch to commit and waits for every pending
// commit and in-flight publish to resolve, or for ctx to expire. Call
// while the reactor is still running.
func (e *Engine) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	e.reactor.Submit(func() {
		e.drainDone = done
		e.commitBatch()
		e.checkDrained()
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
