package permission

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/go-drift/permissions/pkg/platform"
)

// Coordinator requests batches of capabilities and emits one combined
// Result per batch.
type Coordinator struct {
	registry *Registry
	logger   *slog.Logger
}

// NewCoordinator returns a coordinator resolving strategies from registry.
// A nil logger discards debug output.
func NewCoordinator(registry *Registry, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Coordinator{registry: registry, logger: logger}
}

// RequestBatch requests every capability in caps and calls emit exactly once
// with the status of each unique capability, after all have settled.
// Capabilities without a strategy settle as StatusUnknown immediately. An
// empty batch emits an empty Result before RequestBatch returns.
//
// RequestBatch never blocks on the platform. emit runs on whichever goroutine
// settles the last capability, which may be the caller's. If a strategy never
// settles, emit is never called.
func (c *Coordinator) RequestBatch(caps []Capability, emit func(Result)) {
	id := uuid.NewString()
	logger := c.logger.With("batch", id)
	unique := dedupe(caps)
	logger.Debug("permission batch started", "capabilities", len(unique))

	b := newBatch(unique, func(r Result) {
		logger.Debug("permission batch settled", "results", len(r))
		emit(r)
	})
	if len(unique) == 0 {
		b.emitNow()
		return
	}

	for _, capability := range unique {
		strategy, ok := c.registry.Resolve(capability)
		if !ok {
			logger.Debug("no strategy for capability", "capability", capability)
			b.settle(capability, StatusUnknown)
			continue
		}
		strategy.Request(capability, func(s Status) {
			b.settle(capability, s)
		})
	}
}

// Request runs a batch and waits for its Result. If ctx ends first it
// returns platform.ErrTimeout or platform.ErrCanceled; the batch keeps running
// and its late Result is dropped.
func (c *Coordinator) Request(ctx context.Context, caps ...Capability) (Result, error) {
	done := make(chan Result, 1)
	c.RequestBatch(caps, func(r Result) {
		done <- r
	})

	select {
	case r := <-done:
		return r, nil
	case <-ctx.Done():
		// Prefer a result that raced the deadline.
		select {
		case r := <-done:
			return r, nil
		default:
		}
		if ctx.Err() == context.DeadlineExceeded {
			return nil, platform.ErrTimeout
		}
		return nil, platform.ErrCanceled
	}
}

// batch is the shared state of one RequestBatch call. Record, decrement,
// zero check and the emitted flag all change under mu, so exactly one
// settle observes the last pending capability and emits.
type batch struct {
	mu      sync.Mutex
	pending map[Capability]struct{}
	results Result
	emitted bool
	emit    func(Result)
}

func newBatch(unique []Capability, emit func(Result)) *batch {
	pending := make(map[Capability]struct{}, len(unique))
	for _, c := range unique {
		pending[c] = struct{}{}
	}
	return &batch{
		pending: pending,
		results: make(Result, len(unique)),
		emit:    emit,
	}
}

// settle records the status of c. Settlements for capabilities that already
// settled, or that arrive after emission, are ignored.
func (b *batch) settle(c Capability, s Status) {
	b.mu.Lock()
	if b.emitted {
		b.mu.Unlock()
		return
	}
	if _, ok := b.pending[c]; !ok {
		b.mu.Unlock()
		return
	}
	delete(b.pending, c)
	b.results[c] = s
	if len(b.pending) > 0 {
		b.mu.Unlock()
		return
	}
	b.emitted = true
	out := b.results
	b.results = nil
	b.mu.Unlock()

	b.emit(out)
}

func (b *batch) emitNow() {
	b.mu.Lock()
	if b.emitted {
		b.mu.Unlock()
		return
	}
	b.emitted = true
	out := b.results
	b.results = nil
	b.mu.Unlock()

	b.emit(out)
}
