package event

import "reflect"

// Event marks a type as a member of the event lattice. Concrete event types
// embed Base and are posted by pointer; ancestor types are interfaces that
// embed Event.
type Event interface {
	isEvent()
}

// Base places a concrete type in the event lattice. Every event struct
// embeds it.
type Base struct{}

func (Base) isEvent() {}

// Cancellable is the capability interface for events carrying a mutable
// cancelled flag. Cancelling an event never halts dispatch; it only causes
// handlers registered with IgnoreCancelled to skip themselves.
type Cancellable interface {
	Event

	// Cancelled reports whether the event is currently cancelled
	Cancelled() bool

	// SetCancelled sets the cancelled flag
	SetCancelled(cancelled bool)
}

// Cancellation is an embeddable Cancellable state. It is not synchronized:
// dispatch is synchronous and the flag is only touched from the posting
// goroutine's call tree.
type Cancellation struct {
	cancelled bool
}

func (c *Cancellation) Cancelled() bool {
	return c.cancelled
}

func (c *Cancellation) SetCancelled(cancelled bool) {
	c.cancelled = cancelled
}

// latticeRoot is the reflect view of the Event marker interface.
var latticeRoot = reflect.TypeOf((*Event)(nil)).Elem()

// TypeOf returns the lattice type key for T. For concrete events T is the
// pointer type used when posting (e.g. *UserCreated); for ancestor types T
// is the interface itself.
func TypeOf[T Event]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
