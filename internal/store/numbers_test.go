package store

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/varint/internal/safemath"
	"github.com/eigerco/varint/pkg/db"
	"github.com/eigerco/varint/pkg/db/pebble"
	"github.com/eigerco/varint/pkg/serialization/codec/varint"
)

func newTestNumbers(t *testing.T) *Numbers {
	kv, err := pebble.NewMemKVStore()
	require.NoError(t, err)

	numbers := NewNumbers(kv)
	t.Cleanup(func() {
		numbers.Close()
	})
	return numbers
}

func TestNumbersPutGet(t *testing.T) {
	numbers := newTestNumbers(t)

	for _, v := range []uint64{0, 127, 128, 300, math.MaxUint64} {
		require.NoError(t, numbers.Put("n", v))

		got, err := numbers.Get("n")
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}

	_, err := numbers.Get("missing")
	assert.ErrorIs(t, err, ErrNumberNotFound)

	assert.ErrorIs(t, numbers.Put("", 1), ErrEmptyName)
}

func TestNumbersStoresVarint(t *testing.T) {
	kv, err := pebble.NewMemKVStore()
	require.NoError(t, err)
	numbers := NewNumbers(kv)
	defer numbers.Close()

	require.NoError(t, numbers.Put("n", 300))

	raw, err := kv.Get(makeKey(prefixNumber, []byte("n")))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xac, 0x02}, raw)
}

func TestNumbersCorruptValue(t *testing.T) {
	kv, err := pebble.NewMemKVStore()
	require.NoError(t, err)
	numbers := NewNumbers(kv)
	defer numbers.Close()

	require.NoError(t, kv.Put(makeKey(prefixNumber, []byte("truncated")), []byte{0x80}))
	require.NoError(t, kv.Put(makeKey(prefixNumber, []byte("trailing")), []byte{0x01, 0x01}))
	require.NoError(t, numbers.Put("ok", 7))

	_, err = numbers.Get("truncated")
	assert.ErrorIs(t, err, varint.ErrTruncated)

	_, err = numbers.Get("trailing")
	assert.ErrorContains(t, err, "trailing bytes")

	all, err := numbers.All()
	require.NoError(t, err)
	assert.Equal(t, map[string]uint64{"ok": 7}, all)
}

func TestNumbersIncrementDecrement(t *testing.T) {
	numbers := newTestNumbers(t)

	v, err := numbers.Increment("counter", 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), v)

	v, err = numbers.Increment("counter", 200)
	require.NoError(t, err)
	assert.Equal(t, uint64(205), v)

	v, err = numbers.Decrement("counter", 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(200), v)

	_, err = numbers.Decrement("counter", 201)
	assert.ErrorIs(t, err, safemath.ErrUnderflow)

	require.NoError(t, numbers.Put("big", math.MaxUint64))
	_, err = numbers.Increment("big", 1)
	assert.ErrorIs(t, err, safemath.ErrOverflow)

	// failed updates leave the value untouched
	v, err = numbers.Get("big")
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), v)
}

func TestNumbersConcurrentIncrement(t *testing.T) {
	numbers := newTestNumbers(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				_, err := numbers.Increment("counter", 1)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	v, err := numbers.Get("counter")
	require.NoError(t, err)
	assert.Equal(t, uint64(200), v)
}

// pausedKV blocks the first Get until release is closed.
type pausedKV struct {
	db.KVStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (p *pausedKV) Get(key []byte) ([]byte, error) {
	p.once.Do(func() {
		close(p.entered)
		<-p.release
	})
	return p.KVStore.Get(key)
}

func TestNumbersPutWaitsForIncrement(t *testing.T) {
	kv, err := pebble.NewMemKVStore()
	require.NoError(t, err)
	paused := &pausedKV{KVStore: kv, entered: make(chan struct{}), release: make(chan struct{})}
	numbers := NewNumbers(paused)
	defer numbers.Close()

	require.NoError(t, kv.Put(makeKey(prefixNumber, []byte("n")), varint.Encode64(10)))

	incremented := make(chan error, 1)
	go func() {
		_, err := numbers.Increment("n", 1)
		incremented <- err
	}()
	<-paused.entered

	stored := make(chan error, 1)
	go func() {
		stored <- numbers.Put("n", 1000)
	}()

	select {
	case <-stored:
		close(paused.release)
		t.Fatal("Put completed while Increment was between its read and write")
	case <-time.After(50 * time.Millisecond):
	}
	close(paused.release)

	require.NoError(t, <-incremented)
	require.NoError(t, <-stored)

	v, err := numbers.Get("n")
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), v)
}

func TestNumbersPutAllDeleteAll(t *testing.T) {
	numbers := newTestNumbers(t)

	values := map[string]uint64{"a": 1, "b": 1 << 14, "c": math.MaxUint32}
	require.NoError(t, numbers.PutAll(values))

	all, err := numbers.All()
	require.NoError(t, err)
	assert.Equal(t, values, all)

	require.NoError(t, numbers.Delete("b"))
	require.NoError(t, numbers.Delete("b"))

	_, err = numbers.Get("b")
	assert.ErrorIs(t, err, ErrNumberNotFound)

	assert.ErrorIs(t, numbers.PutAll(map[string]uint64{"": 1}), ErrEmptyName)
}

func TestNumbersClosed(t *testing.T) {
	numbers := newTestNumbers(t)
	require.NoError(t, numbers.Close())

	assert.ErrorIs(t, numbers.Put("n", 1), ErrStoreClosed)
	_, err := numbers.Get("n")
	assert.ErrorIs(t, err, ErrStoreClosed)
	_, err = numbers.Increment("n", 1)
	assert.ErrorIs(t, err, ErrStoreClosed)
	_, err = numbers.All()
	assert.ErrorIs(t, err, ErrStoreClosed)

	assert.NoError(t, numbers.Close())
}

func TestPrefixToString(t *testing.T) {
	assert.Equal(t, "number", PrefixToString(prefixNumber))
	assert.Equal(t, "unknown", PrefixToString(0xff))
}
