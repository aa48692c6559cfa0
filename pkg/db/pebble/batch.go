package pebble

import (
	"sync/atomic"

	"github.com/cockroachdb/pebble"

	"github.com/eigerco/varint/pkg/db"
)

// Batch collects writes against a KVStore and applies them on Commit.
// A batch obtained from a closed store rejects every operation with ErrClosed.
type Batch struct {
	store *KVStore
	batch *pebble.Batch
	done  atomic.Bool
}

func (p *KVStore) NewBatch() db.Batch {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return closedBatch{}
	}
	return &Batch{
		store: p,
		batch: p.db.NewBatch(),
	}
}

func (b *Batch) Put(key, value []byte) error {
	if b.done.Load() {
		return ErrBatchDone
	}
	return b.batch.Set(key, value, nil)
}

func (b *Batch) Delete(key []byte) error {
	if b.done.Load() {
		return ErrBatchDone
	}
	return b.batch.Delete(key, nil)
}

// Commit applies the batch and releases it. It fails with ErrClosed if the
// store was closed after the batch was created.
func (b *Batch) Commit() error {
	b.store.mu.RLock()
	defer b.store.mu.RUnlock()

	if b.store.closed {
		return ErrClosed
	}
	if !b.done.CompareAndSwap(false, true) {
		return ErrBatchDone
	}
	if err := b.batch.Commit(pebble.Sync); err != nil {
		b.batch.Close()
		return err
	}
	return b.batch.Close()
}

func (b *Batch) Close() error {
	if !b.done.CompareAndSwap(false, true) {
		return nil
	}
	return b.batch.Close()
}

type closedBatch struct{}

func (closedBatch) Put(key, value []byte) error { return ErrClosed }
func (closedBatch) Delete(key []byte) error     { return ErrClosed }
func (closedBatch) Commit() error               { return ErrClosed }
func (closedBatch) Close() error                { return nil }
