package event

import (
	"fmt"
	"reflect"
	"sync"
)

// Handler binds one listener callback for one event type. Invocation goes
// through a specialized path built once per (listener type, method,
// ignoreCancelled) key rather than resolving the callback on every post.
type Handler struct {
	listener        interface{}
	recv            reflect.Value
	method          string
	eventType       reflect.Type
	ignoreCancelled bool
	invoke          invoker
}

// invoker is the specialized invocation path shared by all Handlers with the
// same specialization key. The listener instance is bound per Handler.
type invoker func(recv reflect.Value, ev Event)

// Invoke delivers ev to the listener callback.
func (h *Handler) Invoke(ev Event) {
	h.invoke(h.recv, ev)
}

// Listener returns the bound listener object.
func (h *Handler) Listener() interface{} {
	return h.listener
}

// Method returns the callback method name.
func (h *Handler) Method() string {
	return h.method
}

// EventType returns the lattice type the callback accepts.
func (h *Handler) EventType() reflect.Type {
	return h.eventType
}

// IgnoreCancelled reports whether the handler skips cancelled events.
func (h *Handler) IgnoreCancelled() bool {
	return h.ignoreCancelled
}

// identity is the equality key for de-duplication and unregistration.
// Order and owner are deliberately excluded: re-registering the same
// (listener, callback) under a different order is a duplicate.
type identity struct {
	listener interface{}
	method   string
}

func (h *Handler) identity() identity {
	return identity{listener: h.listener, method: h.method}
}

// specKey identifies one specialized invocation path. It depends only on
// shapes, never on the listener instance.
type specKey struct {
	listener        reflect.Type
	method          string
	ignoreCancelled bool
}

// Factory turns (listener, callback) pairs into Handlers. Specialization is
// performed once per key and cached; concurrent requests for the same new
// key specialize exactly once.
type Factory struct {
	mu    sync.RWMutex
	cache map[specKey]invoker
}

// NewFactory creates an empty specialization factory.
func NewFactory() *Factory {
	return &Factory{
		cache: make(map[specKey]invoker),
	}
}

// CreateHandler returns a Handler for the listener's callback m. The
// invocation path is looked up in the specialization cache; shape validation
// is the scanner's responsibility and a shape mismatch here is a fatal
// specialization error.
func (f *Factory) CreateHandler(listener interface{}, m reflect.Method, ignoreCancelled bool) (*Handler, error) {
	if err := ValidateListener(listener); err != nil {
		return nil, err
	}

	lt := reflect.TypeOf(listener)
	key := specKey{listener: lt, method: m.Name, ignoreCancelled: ignoreCancelled}

	inv, err := f.invokerFor(key, m)
	if err != nil {
		return nil, err
	}

	return &Handler{
		listener:        listener,
		recv:            reflect.ValueOf(listener),
		method:          m.Name,
		eventType:       m.Type.In(1),
		ignoreCancelled: ignoreCancelled,
		invoke:          inv,
	}, nil
}

// Size returns the number of cached specializations.
func (f *Factory) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.cache)
}

func (f *Factory) invokerFor(key specKey, m reflect.Method) (invoker, error) {
	f.mu.RLock()
	inv, ok := f.cache[key]
	f.mu.RUnlock()
	if ok {
		return inv, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// Another goroutine may have populated the key while we waited.
	if inv, ok := f.cache[key]; ok {
		return inv, nil
	}

	inv, err := specialize(key.listener, m, key.ignoreCancelled)
	if err != nil {
		return nil, err
	}
	f.cache[key] = inv
	return inv, nil
}

// specialize builds the direct-call closure for one cache key. The method
// func value and the cancellation short-circuit are resolved here, once;
// Invoke performs no per-call name or signature resolution.
func specialize(listenerType reflect.Type, m reflect.Method, ignoreCancelled bool) (invoker, error) {
	fn := m.Func
	if !fn.IsValid() {
		return nil, specializationError(listenerType, m.Name, "method has no func value")
	}
	mt := m.Type
	if mt.NumIn() != 2 || mt.NumOut() != 0 || !mt.In(1).Implements(latticeRoot) {
		return nil, specializationError(listenerType, m.Name, "callback signature does not match func(Event)")
	}
	if !listenerType.AssignableTo(mt.In(0)) {
		return nil, specializationError(listenerType, m.Name, "method is not declared on the listener type")
	}

	if ignoreCancelled {
		return func(recv reflect.Value, ev Event) {
			if c, ok := ev.(Cancellable); ok && c.Cancelled() {
				return
			}
			fn.Call([]reflect.Value{recv, reflect.ValueOf(ev)})
		}, nil
	}
	return func(recv reflect.Value, ev Event) {
		fn.Call([]reflect.Value{recv, reflect.ValueOf(ev)})
	}, nil
}

func specializationError(listenerType reflect.Type, method, reason string) error {
	return &Error{
		Code:    "SPECIALIZATION_FAILED",
		Message: fmt.Sprintf("cannot specialize %s.%s: %s", listenerType, method, reason),
	}
}
