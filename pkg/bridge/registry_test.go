package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryResolveSettlesWaiter(t *testing.T) {
	r := NewRegistry()

	w, err := r.Register("corr-1")
	require.NoError(t, err)
	require.Equal(t, 1, r.Len())

	ok := r.Resolve("corr-1", json.RawMessage(`{"answer":42}`))
	require.True(t, ok)
	require.Equal(t, 0, r.Len())

	data, err := w.Wait(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"answer":42}`, string(data))
}

func TestRegistryDuplicateCorrelationID(t *testing.T) {
	r := NewRegistry()

	_, err := r.Register("corr-1")
	require.NoError(t, err)

	_, err = r.Register("corr-1")
	require.ErrorIs(t, err, ErrDuplicateCorrelationID)
	require.Equal(t, 1, r.Len())
}

func TestRegistryExpire(t *testing.T) {
	r := NewRegistry()

	w, err := r.Register("corr-1")
	require.NoError(t, err)

	require.True(t, r.Expire("corr-1"))
	require.Equal(t, 0, r.Len())

	_, err = w.Wait(context.Background())
	require.ErrorIs(t, err, ErrTimeout)

	// A late reply after expiry is dropped, never resurrected.
	require.False(t, r.Resolve("corr-1", json.RawMessage(`"late"`)))
}

func TestRegistryExpireAfterResolveIsNoOp(t *testing.T) {
	r := NewRegistry()

	w, err := r.Register("corr-1")
	require.NoError(t, err)

	require.True(t, r.Resolve("corr-1", json.RawMessage(`"ok"`)))
	require.False(t, r.Expire("corr-1"))

	data, err := w.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `"ok"`, string(data))
}

func TestRegistryFailAll(t *testing.T) {
	r := NewRegistry()

	var waiters []*Waiter
	for i := 0; i < 5; i++ {
		w, err := r.Register(fmt.Sprintf("corr-%d", i))
		require.NoError(t, err)
		waiters = append(waiters, w)
	}

	cause := fmt.Errorf("broker gone")
	r.FailAll(cause)
	require.Equal(t, 0, r.Len())

	for _, w := range waiters {
		_, err := w.Wait(context.Background())
		require.ErrorIs(t, err, cause)
	}
}

func TestRegistryConcurrentSettlement(t *testing.T) {
	r := NewRegistry()

	const n = 200
	waiters := make([]*Waiter, n)
	for i := 0; i < n; i++ {
		w, err := r.Register(fmt.Sprintf("corr-%d", i))
		require.NoError(t, err)
		waiters[i] = w
	}

	// Resolve and expire every waiter concurrently; each must settle
	// exactly once and the map must end up empty.
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("corr-%d", i)
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Resolve(id, json.RawMessage(`"resolved"`))
		}()
		go func() {
			defer wg.Done()
			r.Expire(id)
		}()
	}
	wg.Wait()

	require.Equal(t, 0, r.Len())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for _, w := range waiters {
		data, err := w.Wait(ctx)
		if err != nil {
			require.ErrorIs(t, err, ErrTimeout)
		} else {
			assert.Equal(t, `"resolved"`, string(data))
		}
	}
}
