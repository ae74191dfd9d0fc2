package stats

import (
	"fmt"

	"github.com/go-redis/redis"
	log "github.com/sirupsen/logrus"
)

// Dispatch outcomes tracked per destination.
const (
	OutcomeResolved = "resolved"
	OutcomeTimeout  = "timeouts"
	OutcomeDomain   = "domain_errors"
	OutcomeFailed   = "failures"
)

// Collector keeps per-destination dispatch counters in redis. Updates are
// best effort and never fail a request.
type Collector struct {
	redisClient *redis.Client
}

func NewCollector(redisClient *redis.Client) *Collector {
	return &Collector{
		redisClient: redisClient,
	}
}

// RecordDispatch bumps the sent counter and the counter of the given
// outcome for a destination.
func (c *Collector) RecordDispatch(destination, outcome string) {
	if c == nil || c.redisClient == nil {
		return
	}

	key := fmt.Sprintf("stats:dispatch:%s", destination)

	if _, err := c.redisClient.HIncrBy(key, "sent", 1).Result(); err != nil {
		log.Error("Failed to update dispatch stats: ", err)
		return
	}
	if _, err := c.redisClient.HIncrBy(key, outcome, 1).Result(); err != nil {
		log.Error("Failed to update dispatch stats: ", err)
	}
}
