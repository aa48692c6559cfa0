package store

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/eigerco/varint/internal/safemath"
	"github.com/eigerco/varint/pkg/db"
	"github.com/eigerco/varint/pkg/db/pebble"
	"github.com/eigerco/varint/pkg/log"
	"github.com/eigerco/varint/pkg/serialization/codec/varint"
)

var (
	ErrNumberNotFound = errors.New("number not found")
	ErrStoreClosed    = errors.New("number store is closed")
	ErrEmptyName      = errors.New("number name is empty")
)

// Numbers stores named unsigned integers, each value kept as its varint
// encoding.
type Numbers struct {
	db     db.KVStore
	closed atomic.Bool
	// held by every write so updates never interleave with them
	mu sync.Mutex
}

// NewNumbers creates a new number store on top of a KVStore
func NewNumbers(db db.KVStore) *Numbers {
	return &Numbers{db: db}
}

// Put stores v under name.
func (n *Numbers) Put(name string, v uint64) error {
	if err := n.check(name); err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if err := n.db.Put(makeKey(prefixNumber, []byte(name)), varint.Encode64(v)); err != nil {
		return fmt.Errorf("store number: %w", err)
	}
	return nil
}

// PutAll stores every entry of values atomically.
func (n *Numbers) PutAll(values map[string]uint64) error {
	if n.closed.Load() {
		return ErrStoreClosed
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	batch := n.db.NewBatch()
	defer batch.Close()

	for name, v := range values {
		if name == "" {
			return ErrEmptyName
		}
		if err := batch.Put(makeKey(prefixNumber, []byte(name)), varint.Encode64(v)); err != nil {
			return fmt.Errorf("store number %q: %w", name, err)
		}
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf(ErrFailedBatchCommit, err)
	}
	return nil
}

// Get returns the number stored under name.
func (n *Numbers) Get(name string) (uint64, error) {
	if err := n.check(name); err != nil {
		return 0, err
	}
	return n.get(name)
}

func (n *Numbers) get(name string) (uint64, error) {
	value, err := n.db.Get(makeKey(prefixNumber, []byte(name)))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return 0, ErrNumberNotFound
		}
		return 0, fmt.Errorf("get number: %w", err)
	}
	return decodeNumber(name, value)
}

// Increment adds delta to the number stored under name, treating a missing
// number as zero, and returns the new value.
func (n *Numbers) Increment(name string, delta uint64) (uint64, error) {
	return n.update(name, func(cur uint64) (uint64, error) {
		return safemath.CheckedAdd64(cur, delta)
	})
}

// Decrement subtracts delta from the number stored under name, treating a
// missing number as zero, and returns the new value.
func (n *Numbers) Decrement(name string, delta uint64) (uint64, error) {
	return n.update(name, func(cur uint64) (uint64, error) {
		return safemath.CheckedSub64(cur, delta)
	})
}

func (n *Numbers) update(name string, fn func(uint64) (uint64, error)) (uint64, error) {
	if err := n.check(name); err != nil {
		return 0, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	cur, err := n.get(name)
	if err != nil && !errors.Is(err, ErrNumberNotFound) {
		return 0, err
	}
	next, err := fn(cur)
	if err != nil {
		log.Store.Debug().Err(err).Str("name", name).Uint64("current", cur).Msg("update rejected")
		return 0, fmt.Errorf("update %q: %w", name, err)
	}
	if err := n.db.Put(makeKey(prefixNumber, []byte(name)), varint.Encode64(next)); err != nil {
		return 0, fmt.Errorf("store number: %w", err)
	}
	return next, nil
}

// Delete removes the number stored under name. Deleting a missing number is
// not an error.
func (n *Numbers) Delete(name string) error {
	if err := n.check(name); err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	return n.db.Delete(makeKey(prefixNumber, []byte(name)))
}

// All returns every stored number keyed by name. Entries whose value is not a
// valid varint are logged and skipped.
func (n *Numbers) All() (map[string]uint64, error) {
	if n.closed.Load() {
		return nil, ErrStoreClosed
	}

	iter, err := n.db.NewIterator([]byte{prefixNumber}, []byte{prefixNumber + 1})
	if err != nil {
		return nil, fmt.Errorf("create iterator: %w", err)
	}
	defer iter.Close()

	numbers := make(map[string]uint64)
	for iter.Next() {
		name := string(iter.Key()[1:])
		value, err := iter.Value()
		if err != nil {
			log.Store.Error().Err(err).Str("name", name).Msg("read number value from iterator")
			continue
		}
		x, err := decodeNumber(name, value)
		if err != nil {
			log.Store.Error().Err(err).Str("name", name).Msg("skipping corrupt number")
			continue
		}
		numbers[name] = x
	}
	return numbers, nil
}

// Close closes the number store and the underlying KVStore
func (n *Numbers) Close() error {
	if !n.closed.CompareAndSwap(false, true) {
		return nil
	}
	return n.db.Close()
}

func (n *Numbers) check(name string) error {
	if n.closed.Load() {
		return ErrStoreClosed
	}
	if name == "" {
		return ErrEmptyName
	}
	return nil
}

func decodeNumber(name string, value []byte) (uint64, error) {
	x, size, err := varint.DecodeStrict[uint64](value)
	if err != nil {
		return 0, fmt.Errorf("decode number %q: %w", name, err)
	}
	if size != len(value) {
		return 0, fmt.Errorf("decode number %q: %d trailing bytes", name, len(value)-size)
	}
	return x, nil
}
