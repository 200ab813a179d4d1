package event

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/fluxorio/dispatch/pkg/plugin"
)

// HandlerSet owns the registrations for exactly one event type. Mutations
// happen under a lock and rebuild an order-partitioned snapshot that is
// published atomically, so dispatch iterates without locking and an
// in-flight post is never affected by concurrent register/remove calls.
type HandlerSet struct {
	mu       sync.Mutex
	handlers map[identity]registration
	seq      uint64
	baked    atomic.Pointer[bakedView]
}

// registration is one (handler, order, owner) tuple. seq preserves insertion
// order within a phase when the snapshot is rebuilt.
type registration struct {
	handler *Handler
	order   Order
	owner   *plugin.Container
	seq     uint64
}

// bakedView maps each dispatch phase to its handlers in insertion order.
type bakedView [orderCount][]*Handler

// NewHandlerSet creates an empty handler set with an empty baked view.
func NewHandlerSet() *HandlerSet {
	s := &HandlerSet{
		handlers: make(map[identity]registration),
	}
	s.baked.Store(&bakedView{})
	return s
}

// Register adds handler at the given phase. It returns false when an equal
// handler is already present, regardless of the phase or owner it was
// registered with.
func (s *HandlerSet) Register(handler *Handler, order Order, owner *plugin.Container) bool {
	if handler == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := handler.identity()
	if _, ok := s.handlers[key]; ok {
		return false
	}

	s.seq++
	s.handlers[key] = registration{handler: handler, order: order, owner: owner, seq: s.seq}
	s.baked.Store(s.bake())
	return true
}

// Remove deletes handler regardless of the phase or owner it was registered
// with. It returns false if the handler was not present.
func (s *HandlerSet) Remove(handler *Handler) bool {
	if handler == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := handler.identity()
	if _, ok := s.handlers[key]; !ok {
		return false
	}

	delete(s.handlers, key)
	s.baked.Store(s.bake())
	return true
}

// Snapshot returns the baked handler list for one phase. The returned slice
// is immutable and safe to iterate while registrations proceed on other
// goroutines.
func (s *HandlerSet) Snapshot(order Order) []*Handler {
	if !order.Valid() {
		return nil
	}
	return s.baked.Load()[order]
}

// Len returns the number of registered handlers.
func (s *HandlerSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handlers)
}

// bake rebuilds the order-partitioned view from the registration map.
// Caller holds mu.
func (s *HandlerSet) bake() *bakedView {
	regs := make([]registration, 0, len(s.handlers))
	for _, reg := range s.handlers {
		regs = append(regs, reg)
	}
	sort.Slice(regs, func(i, j int) bool { return regs[i].seq < regs[j].seq })

	var view bakedView
	for _, reg := range regs {
		view[reg.order] = append(view[reg.order], reg.handler)
	}
	return &view
}
