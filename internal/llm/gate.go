package llm

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

// Priority orders gate submissions. Lower values dispatch first.
type Priority int

const (
	// PriorityHigh is for user-initiated turns.
	PriorityHigh Priority = iota
	// PriorityNormal is for tool-triggered follow-up requests.
	PriorityNormal
	// PriorityLow is for background subagent calls (titles, summaries).
	PriorityLow

	numPriorities
)

// GateOptions tunes the inter-dispatch cooldown. Zero values select the
// production window of 500-800ms.
type GateOptions struct {
	MinCooldown time.Duration
	MaxCooldown time.Duration
}

type gateRequest struct {
	ctx  context.Context
	fn   func(context.Context) error
	done chan error

	// abandoned is set when the submitter stopped waiting; the actor skips
	// the entry without running it.
	abandoned atomic.Bool
}

// Gate serializes model requests through a single dispatcher goroutine.
// Submissions queue per priority; the dispatcher always drains higher
// priorities first and inserts a randomized cooldown between consecutive
// dispatches to stay inside provider concurrency limits.
//
// The gate carries no retry logic. Failures, including rate limits, surface
// to the caller unchanged.
type Gate struct {
	mu     sync.Mutex
	queues [numPriorities][]*gateRequest
	closed bool

	// wake is buffered so an enqueue during queue inspection is not lost.
	wake chan struct{}

	minCooldown time.Duration
	maxCooldown time.Duration
}

// NewGate creates a gate and starts its dispatcher.
func NewGate(opts GateOptions) *Gate {
	if opts.MinCooldown <= 0 {
		opts.MinCooldown = 500 * time.Millisecond
	}
	if opts.MaxCooldown < opts.MinCooldown {
		opts.MaxCooldown = opts.MinCooldown + 300*time.Millisecond
	}
	g := &Gate{
		wake:        make(chan struct{}, 1),
		minCooldown: opts.MinCooldown,
		maxCooldown: opts.MaxCooldown,
	}
	go g.run()
	return g
}

var (
	defaultGate     *Gate
	defaultGateOnce sync.Once
)

// Default returns the process-wide gate shared by every client.
func Default() *Gate {
	defaultGateOnce.Do(func() {
		defaultGate = NewGate(GateOptions{})
	})
	return defaultGate
}

// Do submits fn and blocks until it has run or the submission context is
// done. Cancellation while queued or running returns KindAborted; the
// dispatcher skips abandoned entries without consuming a dispatch slot.
func (g *Gate) Do(ctx context.Context, pri Priority, fn func(context.Context) error) error {
	if pri < PriorityHigh || pri >= numPriorities {
		pri = PriorityNormal
	}
	req := &gateRequest{ctx: ctx, fn: fn, done: make(chan error, 1)}

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return NewAPIError(KindAborted, "gate", errors.New("gate is drained"))
	}
	g.queues[pri] = append(g.queues[pri], req)
	g.signalLocked()
	g.mu.Unlock()

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		req.abandoned.Store(true)
		return NewAPIError(KindAborted, "gate", ctx.Err())
	}
}

// Drain fails every queued entry with KindAborted and stops the dispatcher.
// A request already running is left to finish. Subsequent Do calls fail
// immediately.
func (g *Gate) Drain() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	var pending []*gateRequest
	for i := range g.queues {
		pending = append(pending, g.queues[i]...)
		g.queues[i] = nil
	}
	close(g.wake)
	g.mu.Unlock()

	for _, req := range pending {
		req.done <- NewAPIError(KindAborted, "gate", errors.New("gate drained on shutdown"))
	}
}

func (g *Gate) run() {
	for {
		req, ok := g.next()
		if !ok {
			return
		}
		if req.abandoned.Load() || req.ctx.Err() != nil {
			// done is buffered; the submitter may already be gone.
			req.done <- NewAPIError(KindAborted, "gate", req.ctx.Err())
			continue
		}
		req.done <- req.fn(req.ctx)
		g.cooldown()
	}
}

// next pops the highest-priority queued request, blocking until one exists.
// Returns ok=false once the gate is drained and empty.
func (g *Gate) next() (*gateRequest, bool) {
	for {
		g.mu.Lock()
		for i := range g.queues {
			if len(g.queues[i]) > 0 {
				req := g.queues[i][0]
				g.queues[i] = g.queues[i][1:]
				g.mu.Unlock()
				return req, true
			}
		}
		closed := g.closed
		g.mu.Unlock()
		if closed {
			return nil, false
		}
		<-g.wake
	}
}

// signalLocked nudges the dispatcher. Callers hold g.mu, which also
// guarantees the channel is still open.
func (g *Gate) signalLocked() {
	select {
	case g.wake <- struct{}{}:
	default:
	}
}

func (g *Gate) cooldown() {
	d := g.minCooldown
	if span := g.maxCooldown - g.minCooldown; span > 0 {
		d += time.Duration(rand.Int63n(int64(span)))
	}
	time.Sleep(d)
}
