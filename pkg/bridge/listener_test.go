package bridge_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/C0kke/FitFashion/pkg/bridge"
	"github.com/C0kke/FitFashion/pkg/transport/transporttest"
)

func TestListenerDropsMalformedEnvelopes(t *testing.T) {
	tr := transporttest.New()
	reg := bridge.NewRegistry()

	replyTo, err := bridge.NewListener(reg).Start(tr, "replies")
	require.NoError(t, err)
	require.Equal(t, "replies", replyTo)

	w, err := reg.Register("corr-1")
	require.NoError(t, err)

	ctx := context.Background()
	// Neither of these may crash the listener or settle the waiter.
	require.NoError(t, tr.Publish(ctx, "replies", []byte("not json at all")))
	require.NoError(t, tr.Publish(ctx, "replies", []byte(`{"response":"no correlation id"}`)))

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, reg.Len())

	// The genuinely awaited reply still lands afterwards.
	body, _ := json.Marshal(bridge.Response{
		CorrelationID: "corr-1",
		Response:      json.RawMessage(`"still alive"`),
	})
	require.NoError(t, tr.Publish(ctx, "replies", body))

	data, err := w.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, `"still alive"`, string(data))

	// Every reply, including the malformed ones, is acked.
	assert.Eventually(t, func() bool { return tr.Acked() == 3 },
		time.Second, 10*time.Millisecond)
}

func TestListenerRejectsWithDomainError(t *testing.T) {
	tr := transporttest.New()
	reg := bridge.NewRegistry()

	_, err := bridge.NewListener(reg).Start(tr, "replies")
	require.NoError(t, err)

	w, err := reg.Register("corr-1")
	require.NoError(t, err)

	body, _ := json.Marshal(bridge.Response{
		CorrelationID: "corr-1",
		Error:         json.RawMessage(`{"status":401,"msg":"invalid token"}`),
	})
	require.NoError(t, tr.Publish(context.Background(), "replies", body))

	_, err = w.Wait(context.Background())
	var domainErr *bridge.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, 401, domainErr.Status())
	assert.Equal(t, "invalid token", domainErr.Error())
}
