package amqp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReplyQueueNameStableAcrossRedeclares(t *testing.T) {
	sub := &subscription{}

	first := sub.queueName()
	assert.NotEmpty(t, first)
	assert.True(t, strings.HasPrefix(first, "reply."))

	// A reconnect redeclares the queue; the name, and thus every replyTo
	// already embedded in a request envelope, must not change.
	assert.Equal(t, first, sub.queueName())
	assert.Equal(t, first, sub.queueName())
}

func TestReplyQueueNamesUniquePerSubscription(t *testing.T) {
	a := &subscription{}
	b := &subscription{}
	assert.NotEqual(t, a.queueName(), b.queueName())
}

func TestNamedQueueKeepsRequestedAddress(t *testing.T) {
	sub := &subscription{address: "products_queue"}
	assert.Equal(t, "products_queue", sub.queueName())
	assert.Equal(t, "products_queue", sub.queueName())
}
