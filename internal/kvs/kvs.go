// Package kvs provides the transactional append-only store the engine
// commits job eventlogs to.
//
// The engine owns exactly one key per job, jobs/<id>/eventlog, and only
// ever appends to it. A Txn accumulates appends in order; Commit applies
// the whole transaction atomically. The engine relies on that atomicity
// for its durable-before-publish guarantee.
package kvs

import (
	"context"
	"fmt"
)

// EventlogKey returns the well-known log key for a job id.
func EventlogKey(id uint64) string {
	return fmt.Sprintf("jobs/%d/eventlog", id)
}

// Txn is an ordered list of append operations built up by the batch
// engine during one batch window.
type Txn struct {
	appends []appendOp
}

type appendOp struct {
	key  string
	data []byte
}

// NewTxn creates an empty transaction.
func NewTxn() *Txn {
	return &Txn{}
}

// Append schedules data to be appended to key when the transaction
// commits. Order of Append calls is preserved.
func (t *Txn) Append(key string, data []byte) {
	t.appends = append(t.appends, appendOp{key: key, data: data})
}

// Len returns the number of scheduled appends.
func (t *Txn) Len() int {
	return len(t.appends)
}

// Each calls fn for every scheduled append, in order.
func (t *Txn) Each(fn func(key string, data []byte)) {
	for _, op := range t.appends {
		fn(op.key, op.data)
	}
}

// Store is the transactional append contract the engine commits against.
//
// Commit must apply every append in the transaction atomically and in
// order: a reader observing the last append must observe all earlier ones.
type Store interface {
	Commit(ctx context.Context, txn *Txn) error
	ReadLog(ctx context.Context, key string) ([]byte, error)
	Close() error
}
