// Package event implements a synchronous, in-process, typed
// publish/subscribe dispatcher. Listener objects register callbacks for
// event types, producers post event instances, and the bus invokes every
// applicable handler in phase order on the posting goroutine, honoring
// cancellation.
package event

import (
	"context"
	"reflect"
	"runtime/debug"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fluxorio/dispatch/pkg/failfast"
	obsprom "github.com/fluxorio/dispatch/pkg/observability/prometheus"
	"github.com/fluxorio/dispatch/pkg/plugin"
)

// Bus is the public registration and dispatch API.
type Bus interface {
	// Register adds a handler for an event type at the given phase.
	// It returns false when an equal handler is already registered for
	// that type.
	Register(eventType reflect.Type, handler *Handler, order Order, owner *plugin.Container) (bool, error)

	// Unregister removes a handler from one event type, regardless of the
	// phase or owner it was registered with.
	Unregister(eventType reflect.Type, handler *Handler) (bool, error)

	// RegisterAll scans listener for subscriber callbacks and registers
	// each under the given plugin instance's container.
	RegisterAll(pluginInstance, listener interface{}) error

	// UnregisterAll removes every callback the listener subscribed.
	UnregisterAll(listener interface{}) error

	// Post delivers an event to every applicable handler, in phase order,
	// on the calling goroutine. It returns whether the event ended in the
	// cancelled state.
	Post(ev Event) bool

	// Stats returns a snapshot of dispatch counters.
	Stats() Stats
}

// Stats is a point-in-time snapshot of bus counters.
type Stats struct {
	EventsPosted       uint64
	EventsCancelled    uint64
	HandlersInvoked    uint64
	HandlerPanics      uint64
	RegisteredHandlers int64
	KnownTypes         int
	Specializations    int
}

// Option configures a Bus.
type Option func(*bus)

// WithConfig sets the bus configuration.
func WithConfig(cfg Config) Option {
	return func(b *bus) { b.config = cfg }
}

// WithLogger replaces the default logger.
func WithLogger(logger Logger) Option {
	return func(b *bus) { b.logger = logger }
}

// WithScanner replaces the default discovery scanner.
func WithScanner(scanner Scanner) Option {
	return func(b *bus) { b.scanner = scanner }
}

// bus implements Bus.
//
// Thread-safety:
//   - the hierarchy cache guards the type -> HandlerSet map and the memo
//   - each HandlerSet guards its own registrations and publishes immutable
//     snapshots, so Post never takes a lock while iterating handlers
//   - handlers may re-enter the bus (post nested events, register or
//     unregister listeners) during dispatch; an in-flight post keeps
//     iterating the snapshots it already holds
type bus struct {
	manager   plugin.Manager
	factory   *Factory
	scanner   Scanner
	hierarchy *hierarchyCache
	logger    Logger
	config    Config
	metrics   *obsprom.Metrics
	tracer    trace.Tracer

	eventsPosted       atomic.Uint64
	eventsCancelled    atomic.Uint64
	handlersInvoked    atomic.Uint64
	handlerPanics      atomic.Uint64
	registeredHandlers atomic.Int64
}

var _ Bus = (*bus)(nil)

// New creates a Bus. The plugin manager resolves registrant objects to
// their owning containers and must not be nil.
func New(manager plugin.Manager, opts ...Option) Bus {
	failfast.NotNil(manager, "manager")

	b := &bus{
		manager:   manager,
		factory:   NewFactory(),
		hierarchy: newHierarchyCache(),
		config:    DefaultConfig(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = NewDefaultLogger()
	}
	if b.scanner == nil {
		b.scanner = NewScanner(b.logger)
	}
	if b.config.MetricsEnabled {
		b.metrics = obsprom.GetMetrics()
	}
	if b.config.TracingEnabled {
		b.tracer = otel.Tracer("github.com/fluxorio/dispatch")
	}
	return b
}

func (b *bus) Register(eventType reflect.Type, handler *Handler, order Order, owner *plugin.Container) (bool, error) {
	if err := ValidateEventType(eventType); err != nil {
		return false, err
	}
	if handler == nil {
		return false, ErrNilHandler
	}
	if err := ValidateOrder(order); err != nil {
		return false, err
	}

	// Warm the hierarchy before the handler set mutates, so no dispatch
	// resolves this subtree mid-registration.
	set := b.hierarchy.Set(eventType)
	b.hierarchy.Resolve(eventType)

	added := set.Register(handler, order, owner)
	if added {
		b.registeredHandlers.Add(1)
		if b.metrics != nil {
			b.metrics.SetHandlersRegistered(float64(b.registeredHandlers.Load()))
			b.metrics.SetSpecializations(float64(b.factory.Size()))
		}
	}
	return added, nil
}

func (b *bus) Unregister(eventType reflect.Type, handler *Handler) (bool, error) {
	if err := ValidateEventType(eventType); err != nil {
		return false, err
	}
	if handler == nil {
		return false, ErrNilHandler
	}

	removed := b.hierarchy.Set(eventType).Remove(handler)
	if removed {
		b.registeredHandlers.Add(-1)
		if b.metrics != nil {
			b.metrics.SetHandlersRegistered(float64(b.registeredHandlers.Load()))
		}
	}
	return removed, nil
}

func (b *bus) RegisterAll(pluginInstance, listener interface{}) error {
	if err := ValidateListener(pluginInstance); err != nil {
		return err
	}
	if err := ValidateListener(listener); err != nil {
		return err
	}

	container, ok := b.manager.FromInstance(pluginInstance)
	if !ok {
		return ErrUnknownPlugin
	}

	callbacks, err := b.scanner.Scan(listener)
	if err != nil {
		return err
	}

	for _, cb := range callbacks {
		handler, err := b.factory.CreateHandler(listener, cb.Method, cb.IgnoreCancelled)
		if err != nil {
			// Specialization failures are fatal for the registration.
			return err
		}
		if _, err := b.Register(cb.EventType, handler, cb.Order, container); err != nil {
			return err
		}
	}
	return nil
}

func (b *bus) UnregisterAll(listener interface{}) error {
	if err := ValidateListener(listener); err != nil {
		return err
	}

	callbacks, err := b.scanner.Scan(listener)
	if err != nil {
		return err
	}

	for _, cb := range callbacks {
		handler, err := b.factory.CreateHandler(listener, cb.Method, cb.IgnoreCancelled)
		if err != nil {
			return err
		}
		if _, err := b.Unregister(cb.EventType, handler); err != nil {
			return err
		}
	}
	return nil
}

func (b *bus) Post(ev Event) bool {
	failfast.Err(ValidateEvent(ev))

	eventType := reflect.TypeOf(ev)
	start := time.Now()

	var span trace.Span
	if b.tracer != nil {
		_, span = b.tracer.Start(context.Background(), "event.post",
			trace.WithAttributes(attribute.String("event.type", eventType.String())))
	}

	sets := b.hierarchy.Resolve(eventType)
	for _, order := range orders {
		for _, set := range sets {
			for _, handler := range set.Snapshot(order) {
				b.callHandler(handler, ev, eventType)
			}
		}
	}

	cancelled := false
	if c, ok := ev.(Cancellable); ok {
		cancelled = c.Cancelled()
	}

	b.eventsPosted.Add(1)
	if cancelled {
		b.eventsCancelled.Add(1)
	}
	if b.metrics != nil {
		b.metrics.RecordPost(eventType.String(), cancelled, time.Since(start))
	}
	if span != nil {
		span.SetAttributes(attribute.Bool("event.cancelled", cancelled))
		span.End()
	}
	return cancelled
}

// callHandler invokes one handler with panic isolation. A panicking handler
// is logged and never aborts dispatch of the remaining handlers or phases.
func (b *bus) callHandler(handler *Handler, ev Event, eventType reflect.Type) {
	defer func() {
		if r := recover(); r != nil {
			b.handlerPanics.Add(1)
			if b.metrics != nil {
				b.metrics.RecordHandlerPanic(eventType.String())
			}
			b.logger.Errorf("handler %s.%s raised an error handling %s (isolated): %v\n%s",
				reflect.TypeOf(handler.Listener()), handler.Method(), eventType, r, debug.Stack())
		}
	}()

	started := time.Now()
	handler.Invoke(ev)
	b.handlersInvoked.Add(1)

	if warn := b.config.slowHandlerWarning(); warn > 0 {
		if elapsed := time.Since(started); elapsed > warn {
			b.logger.Warnf("handler %s.%s took %s handling %s",
				reflect.TypeOf(handler.Listener()), handler.Method(), elapsed, eventType)
		}
	}
}

func (b *bus) Stats() Stats {
	return Stats{
		EventsPosted:       b.eventsPosted.Load(),
		EventsCancelled:    b.eventsCancelled.Load(),
		HandlersInvoked:    b.handlersInvoked.Load(),
		HandlerPanics:      b.handlerPanics.Load(),
		RegisteredHandlers: b.registeredHandlers.Load(),
		KnownTypes:         b.hierarchy.Len(),
		Specializations:    b.factory.Size(),
	}
}
