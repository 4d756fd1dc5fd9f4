package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// KeyPrefix namespaces the per-stage buckets.
const KeyPrefix = "prospect:pace:"

const minPoll = 10 * time.Millisecond

// SharedPacer admits one provider call per interval across every process
// using the same Redis and stage key.
type SharedPacer struct {
	bucket   *TokenBucket
	key      string
	interval time.Duration
}

// NewSharedPacer creates a pacer for stage with one call per interval.
func NewSharedPacer(client redis.Scripter, stage string, interval time.Duration) *SharedPacer {
	if interval <= 0 {
		interval = time.Millisecond
	}
	refill := float64(time.Second) / float64(interval)
	return &SharedPacer{
		bucket:   NewTokenBucket(client, 1, refill, 10*interval+time.Minute),
		key:      KeyPrefix + stage,
		interval: interval,
	}
}

// Key returns the Redis key of the bucket.
func (p *SharedPacer) Key() string {
	return p.key
}

// Wait blocks until the shared bucket grants a token or ctx is done.
func (p *SharedPacer) Wait(ctx context.Context) error {
	poll := max(p.interval/4, minPoll)
	for {
		ok, err := p.bucket.Allow(ctx, p.key)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		timer := time.NewTimer(poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return eris.Wrapf(ctx.Err(), "ratelimit: wait %s", p.key)
		case <-timer.C:
		}
	}
}
