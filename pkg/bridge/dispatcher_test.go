package bridge_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/C0kke/FitFashion/pkg/bridge"
	"github.com/C0kke/FitFashion/pkg/transport"
	"github.com/C0kke/FitFashion/pkg/transport/transporttest"
)

// echoWorker consumes a queue and replies to each request with the given
// function's output, mimicking a backend service on the other side of
// the broker.
func echoWorker(t *testing.T, tr *transporttest.InMem, queue string, fn func(req bridge.Request) bridge.Response) {
	t.Helper()
	_, err := tr.Subscribe(queue, func(d *transport.Delivery) {
		defer d.Ack()

		var req bridge.Request
		require.NoError(t, json.Unmarshal(d.Body, &req))
		if req.ReplyTo == "" {
			return
		}
		body, err := json.Marshal(fn(req))
		require.NoError(t, err)
		require.NoError(t, tr.Publish(context.Background(), req.ReplyTo, body))
	})
	require.NoError(t, err)
}

func newBridge(t *testing.T, tr *transporttest.InMem, opts ...bridge.DispatcherOption) (*bridge.Dispatcher, *bridge.Registry) {
	t.Helper()
	reg := bridge.NewRegistry()
	replyTo, err := bridge.NewListener(reg).Start(tr, "")
	require.NoError(t, err)
	return bridge.NewDispatcher(tr, reg, replyTo, opts...), reg
}

func TestSendResolvesWithWorkerResponse(t *testing.T) {
	tr := transporttest.New()
	echoWorker(t, tr, "products_queue", func(req bridge.Request) bridge.Response {
		assert.Equal(t, "find_one_product", req.Pattern)
		assert.JSONEq(t, `"id-123"`, string(req.Data))
		return bridge.Response{
			CorrelationID: req.CorrelationID,
			Response:      json.RawMessage(`{"id":"id-123","name":"Shirt","price":1000}`),
		}
	})

	d, reg := newBridge(t, tr)
	resp, err := d.Send(context.Background(), "products_queue", "find_one_product", "id-123")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"id-123","name":"Shirt","price":1000}`, string(resp))
	assert.Equal(t, 0, reg.Len())
}

func TestSendTokenTravelsInEnvelope(t *testing.T) {
	tr := transporttest.New()
	echoWorker(t, tr, "auth-request", func(req bridge.Request) bridge.Response {
		return bridge.Response{
			CorrelationID: req.CorrelationID,
			Response:      json.RawMessage(fmt.Sprintf("%q", req.Token)),
		}
	})

	d, _ := newBridge(t, tr)
	resp, err := d.Send(context.Background(), "auth-request", "GET_PROFILE", nil,
		bridge.WithToken("Token abc123"))
	require.NoError(t, err)
	assert.Equal(t, `"Token abc123"`, string(resp))
}

func TestConcurrentSendsResolveOutOfOrder(t *testing.T) {
	tr := transporttest.New()

	// Collect all requests first, then answer them in reverse order.
	var mu sync.Mutex
	var pending []bridge.Request
	const n = 8

	_, err := tr.Subscribe("products_queue", func(d *transport.Delivery) {
		defer d.Ack()
		var req bridge.Request
		require.NoError(t, json.Unmarshal(d.Body, &req))

		mu.Lock()
		pending = append(pending, req)
		ready := len(pending) == n
		batch := pending
		mu.Unlock()

		if !ready {
			return
		}
		for i := len(batch) - 1; i >= 0; i-- {
			r := batch[i]
			body, _ := json.Marshal(bridge.Response{
				CorrelationID: r.CorrelationID,
				Response:      r.Data, // echo back the caller's own payload
			})
			require.NoError(t, tr.Publish(context.Background(), r.ReplyTo, body))
		}
	})
	require.NoError(t, err)

	d, reg := newBridge(t, tr)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := d.Send(context.Background(), "products_queue", "find_one_product",
				fmt.Sprintf("payload-%d", i))
			require.NoError(t, err)
			// Each caller must get its own payload back, never a mismatch.
			assert.Equal(t, fmt.Sprintf("%q", fmt.Sprintf("payload-%d", i)), string(resp))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, reg.Len())
}

func TestSendTimesOutWhenWorkerStaysSilent(t *testing.T) {
	tr := transporttest.New()
	// No worker on the queue at all.

	d, reg := newBridge(t, tr)

	start := time.Now()
	_, err := d.Send(context.Background(), "products_queue", "find_all_products", nil,
		bridge.WithTimeout(100*time.Millisecond))
	elapsed := time.Since(start)

	require.ErrorIs(t, err, bridge.ErrTimeout)
	assert.Less(t, elapsed, time.Second)
	assert.Equal(t, 0, reg.Len(), "registry entry must be gone right after the timeout")
}

func TestSendFailsFastWithoutTransport(t *testing.T) {
	tr := transporttest.New()
	d, reg := newBridge(t, tr)

	tr.SetDown(true)

	start := time.Now()
	_, err := d.Send(context.Background(), "products_queue", "find_all_products", nil)
	require.ErrorIs(t, err, transport.ErrNotReady)
	assert.Less(t, time.Since(start), time.Second, "must reject immediately, not wait for the timeout")
	assert.Equal(t, 0, reg.Len(), "no orphaned registry entry after a publish failure")
}

func TestSendPropagatesDomainError(t *testing.T) {
	tr := transporttest.New()
	echoWorker(t, tr, "products_queue", func(req bridge.Request) bridge.Response {
		return bridge.Response{
			CorrelationID: req.CorrelationID,
			Error:         json.RawMessage(`{"status":409,"msg":"insufficient stock"}`),
		}
	})

	d, _ := newBridge(t, tr)
	_, err := d.Send(context.Background(), "products_queue", "decrease_stock", nil)
	require.Error(t, err)

	var domainErr *bridge.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "insufficient stock", domainErr.Error())
	assert.Equal(t, 409, domainErr.Status())
}

func TestLateReplyAfterTimeoutIsDropped(t *testing.T) {
	tr := transporttest.New()

	release := make(chan struct{})
	echoWorker(t, tr, "products_queue", func(req bridge.Request) bridge.Response {
		<-release
		return bridge.Response{
			CorrelationID: req.CorrelationID,
			Response:      json.RawMessage(`"too late"`),
		}
	})

	d, reg := newBridge(t, tr)
	_, err := d.Send(context.Background(), "products_queue", "find_all_products", nil,
		bridge.WithTimeout(50*time.Millisecond))
	require.ErrorIs(t, err, bridge.ErrTimeout)

	// Let the worker publish its stale reply now; it must be dropped
	// without settling anything or panicking.
	close(release)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, reg.Len())
}

func TestFailAllOnDisconnectRejectsPendingSends(t *testing.T) {
	tr := transporttest.New()
	// Worker that never answers, so the send stays pending.

	d, reg := newBridge(t, tr)

	done := make(chan error, 1)
	go func() {
		_, err := d.Send(context.Background(), "products_queue", "find_all_products", nil,
			bridge.WithTimeout(5*time.Second))
		done <- err
	}()

	// Wait for the waiter to be registered, then simulate the transport's
	// disconnect hook firing.
	require.Eventually(t, func() bool { return reg.Len() == 1 },
		time.Second, 10*time.Millisecond)
	reg.FailAll(transport.ErrNotReady)

	select {
	case err := <-done:
		require.ErrorIs(t, err, transport.ErrNotReady)
	case <-time.After(time.Second):
		t.Fatal("pending send was not failed on disconnect")
	}
}
