package schema

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// ChangeKind is the kind of mutation
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// Change announces a committed mutation of one record
type Change struct {
	Model string     `json:"model"`
	ID    string     `json:"id"`
	Kind  ChangeKind `json:"kind"`
}

// Broker carries change events to every Hub that serves subscriptions
type Broker interface {
	Publish(ctx context.Context, change Change) error
}

// Dispatcher receives change events from a Broker
type Dispatcher interface {
	Dispatch(change Change)
}

// LocalBroker delivers changes to a single in-process Hub
type LocalBroker struct {
	hub Dispatcher
}

// NewLocalBroker creates a broker for single-instance deployments
func NewLocalBroker(hub Dispatcher) *LocalBroker {
	return &LocalBroker{hub: hub}
}

// Publish dispatches change synchronously
func (b *LocalBroker) Publish(_ context.Context, change Change) error {
	b.hub.Dispatch(change)
	return nil
}

// Hub fans change notifications out to the subscriptions of each model.
// Notifications coalesce: a subscriber that has not caught up sees one pending signal.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan struct{}]struct{})}
}

// Dispatch signals every subscription registered for change.Model
func (h *Hub) Dispatch(change Change) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[change.Model] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (h *Hub) register(model string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	h.mu.Lock()
	if h.subs[model] == nil {
		h.subs[model] = make(map[chan struct{}]struct{})
	}
	h.subs[model][ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		delete(h.subs[model], ch)
		if len(h.subs[model]) == 0 {
			delete(h.subs, model)
		}
		h.mu.Unlock()
	}
}

// Subscribers returns the number of live subscriptions for model
func (h *Hub) Subscribers(model string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[model])
}

// Subscription is a live query. Updates delivers the current matching set first,
// then the full set again each time it changes. Only the latest unread set is kept.
type Subscription[S any] struct {
	updates chan S
	cancel  context.CancelFunc
	done    chan struct{}
}

// Updates returns the snapshot channel. It is closed when the subscription ends.
func (s *Subscription[S]) Updates() <-chan S {
	return s.updates
}

// Cancel ends the subscription and waits for its goroutine to exit
func (s *Subscription[S]) Cancel() {
	s.cancel()
	<-s.done
}

// Done is closed once the subscription has stopped
func (s *Subscription[S]) Done() <-chan struct{} {
	return s.done
}

// subscribe registers for changes to model before loading the initial snapshot,
// so no mutation between the two is missed.
func subscribe[S any](ctx context.Context, hub *Hub, model string, logger *zap.Logger, load func(context.Context) (S, error)) (*Subscription[S], error) {
	notify, unregister := hub.register(model)

	initial, err := load(ctx)
	if err != nil {
		unregister()
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription[S]{
		updates: make(chan S),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go func() {
		defer close(sub.done)
		defer close(sub.updates)
		defer unregister()

		last := fingerprint(initial)
		pending, hasPending := initial, true
		for {
			var out chan S
			if hasPending {
				out = sub.updates
			}
			select {
			case <-ctx.Done():
				return
			case out <- pending:
				hasPending = false
			case <-notify:
				snapshot, err := load(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					logger.Warn("subscription reload failed", zap.String("model", model), zap.Error(err))
					continue
				}
				fp := fingerprint(snapshot)
				if bytes.Equal(fp, last) {
					continue
				}
				last = fp
				pending, hasPending = snapshot, true
			}
		}
	}()

	return sub, nil
}

func fingerprint(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
