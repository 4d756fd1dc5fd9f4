package pipeline

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/ratelimit"
)

// Pacer spaces the provider calls of a stage. Wait blocks until the next
// call may start; Done marks the end of a call, so the following Wait
// blocks for the full interval counted from that moment.
type Pacer interface {
	Wait(ctx context.Context) error
	Done()
}

// PacerFactory builds the pacer for one execution of a stage. A fresh pacer
// is created per stage so the first call of each stage is not delayed.
type PacerFactory func(stage model.Stage, interval time.Duration) Pacer

// localPacer keeps interval between the end of one call and the start of
// the next within one process.
type localPacer struct {
	interval time.Duration
	limiter  *rate.Limiter
}

// NewLocalPacer admits the first call immediately and every later call one
// interval after the previous call is Done.
func NewLocalPacer(interval time.Duration) Pacer {
	if interval <= 0 {
		return &localPacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &localPacer{interval: interval, limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

func (p *localPacer) Wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "pipeline: pace")
	}
	return nil
}

// Done restarts the bucket empty, so the next token refills one interval
// from now regardless of how long the call took.
func (p *localPacer) Done() {
	if p.interval <= 0 {
		return
	}
	l := rate.NewLimiter(rate.Every(p.interval), 1)
	l.Allow()
	p.limiter = l
}

// chainPacer waits on every pacer in order.
type chainPacer []Pacer

func (c chainPacer) Wait(ctx context.Context) error {
	for _, p := range c {
		if err := p.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c chainPacer) Done() {
	for _, p := range c {
		p.Done()
	}
}

// sharedPacer adapts the cross-process bucket, which spaces calls by start
// time only; the local pacer in the same chain enforces the gap after Done.
type sharedPacer struct {
	*ratelimit.SharedPacer
}

func (sharedPacer) Done() {}

// LocalPacers is the default factory: in-process pacing only.
func LocalPacers() PacerFactory {
	return func(_ model.Stage, interval time.Duration) Pacer {
		return NewLocalPacer(interval)
	}
}

// SharedPacers paces locally and additionally on a Redis token bucket per
// stage, so runs in several processes share one provider budget.
func SharedPacers(client redis.Scripter) PacerFactory {
	return func(stage model.Stage, interval time.Duration) Pacer {
		if interval <= 0 {
			return NewLocalPacer(interval)
		}
		return chainPacer{
			NewLocalPacer(interval),
			sharedPacer{ratelimit.NewSharedPacer(client, string(stage), interval)},
		}
	}
}
