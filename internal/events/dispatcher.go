package events

import (
	"context"
	"reflect"
	"sync"

	"github.com/google/uuid"

	"github.com/raidex-network/raidex-go/pkg/logging"
)

// EventHandler consumes one outward-facing Event.
type EventHandler func(Event)

// StateChangeHandler applies one inward-facing StateChange against the
// DataManager. It is invoked from a single goroutine only, so FSM mutations
// never race.
type StateChangeHandler func(StateChange) error

// Dispatcher routes Events to type-filtered consumers and serializes
// StateChange application through a single channel-fed loop, in place of
// the source's global dispatcher pattern.
type Dispatcher struct {
	mu            sync.Mutex
	eventHandlers map[reflect.Type][]EventHandler

	apply        StateChangeHandler
	stateChanges chan StateChange
	log          *logging.Logger
}

// NewDispatcher creates a Dispatcher with the given StateChange handler and
// a bounded state-change queue of the given capacity.
func NewDispatcher(apply StateChangeHandler, queueCapacity int, log *logging.Logger) *Dispatcher {
	if log == nil {
		log = logging.GetDefault()
	}
	return &Dispatcher{
		eventHandlers: make(map[reflect.Type][]EventHandler),
		apply:         apply,
		stateChanges:  make(chan StateChange, queueCapacity),
		log:           log.Component("dispatcher"),
	}
}

// Subscribe registers handler for every Event whose concrete type matches
// sample's type (sample is a zero value used only to pick the type).
func (d *Dispatcher) Subscribe(sample Event, handler EventHandler) {
	t := reflect.TypeOf(sample)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.eventHandlers[t] = append(d.eventHandlers[t], handler)
}

// DispatchEvent delivers e to every handler registered for its concrete
// type. Each dispatch logs a fresh correlation id alongside the event type.
// The id is only logged: it is not passed to the handlers, and state
// changes they enqueue are logged by Run under ids of their own.
func (d *Dispatcher) DispatchEvent(e Event) {
	t := reflect.TypeOf(e)
	correlationID := uuid.NewString()
	d.mu.Lock()
	handlers := append([]EventHandler(nil), d.eventHandlers[t]...)
	d.mu.Unlock()
	d.log.Debug("dispatching event", "type", t, "correlation_id", correlationID)
	for _, h := range handlers {
		h(e)
	}
}

// EnqueueStateChange queues sc for serialized application. It blocks if the
// queue is full, providing natural backpressure on producers.
func (d *Dispatcher) EnqueueStateChange(sc StateChange) {
	d.stateChanges <- sc
}

// Run drains the state-change queue, applying each one serially, until ctx
// is canceled. Apply errors are logged and absorbed, never panicked, per
// the error-handling design: only invariant violations should panic, and
// those originate inside apply itself.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case sc := <-d.stateChanges:
			correlationID := uuid.NewString()
			if err := d.apply(sc); err != nil {
				d.log.Error("state change rejected", "type", reflect.TypeOf(sc), "correlation_id", correlationID, "error", err)
			} else {
				d.log.Debug("state change applied", "type", reflect.TypeOf(sc), "correlation_id", correlationID)
			}
		}
	}
}
