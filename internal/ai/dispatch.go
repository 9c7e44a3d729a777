package ai

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lifeos/lifeosd/internal/logging"
)

// ErrDispatchExhausted means every provider in a tier's fallback chain
// failed. It is the only dispatch error that reaches the caller.
var ErrDispatchExhausted = errors.New("all providers in fallback chain failed")

// Dispatcher resolves a tier to its provider chain and attempts each entry in
// order. A timeout, transport error, or malformed response advances the
// chain; no entry is ever attempted twice within one dispatch.
type Dispatcher struct {
	routing *RoutingStore

	mu        sync.RWMutex
	providers map[string]Provider

	// attemptTimeout bounds a single provider attempt.
	attemptTimeout time.Duration
}

// NewDispatcher creates a dispatcher over the given routing store.
func NewDispatcher(routing *RoutingStore, attemptTimeout time.Duration) *Dispatcher {
	if attemptTimeout <= 0 {
		attemptTimeout = 60 * time.Second
	}
	return &Dispatcher{
		routing:        routing,
		providers:      make(map[string]Provider),
		attemptTimeout: attemptTimeout,
	}
}

// Register adds a provider instance. Chain entries naming an unregistered
// provider are skipped at dispatch time.
func (d *Dispatcher) Register(p Provider) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.providers[p.ID()] = p
}

// Provider returns a registered provider by ID.
func (d *Dispatcher) Provider(id string) (Provider, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.providers[id]
	return p, ok
}

// Dispatch sends the request down the tier's chain and returns the first
// successful normalized response. The response's Provider field names the
// chain entry that served it, so fallback use is visible to the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, tier Tier, req *ChatRequest) (*NormalizedResponse, error) {
	chain := d.routing.Chain(tier)
	if len(chain) == 0 {
		return nil, fmt.Errorf("tier %s: %w", tier, ErrDispatchExhausted)
	}

	var lastErr error
	for _, entry := range chain {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		providerID, model := ParseModelID(entry)
		provider, ok := d.Provider(providerID)
		if !ok {
			logging.Warnf("[dispatch] tier=%s skipping %s: provider not registered", tier, entry)
			continue
		}

		resp, err := d.attempt(ctx, provider, model, req)
		if err != nil {
			lastErr = err
			logging.Warnf("[dispatch] tier=%s provider=%s failed (%s): %v", tier, entry, ClassifyErrorReason(err), err)
			continue
		}

		resp.Provider = entry
		return resp, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("tier %s: %w: last error: %v", tier, ErrDispatchExhausted, lastErr)
	}
	return nil, fmt.Errorf("tier %s: %w", tier, ErrDispatchExhausted)
}

// attempt runs one provider call under the per-attempt timeout and drains
// its stream into a normalized response.
func (d *Dispatcher) attempt(ctx context.Context, provider Provider, model string, req *ChatRequest) (*NormalizedResponse, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, d.attemptTimeout)
	defer cancel()

	attemptReq := *req
	attemptReq.Model = model

	events, err := provider.Stream(attemptCtx, &attemptReq)
	if err != nil {
		return nil, err
	}
	return collect(attemptCtx, provider.ID(), events)
}
