package event

// Order is the dispatch phase of a handler registration. All handlers at an
// earlier phase run before any handler at a later phase, across every event
// type applicable to the posted event.
type Order int

const (
	// First runs before all other phases
	First Order = iota

	// Early runs before the default phase
	Early

	// Default is the phase used by most handlers
	Default

	// Late runs after the default phase
	Late

	// Last runs after all mutating phases
	Last

	// Monitor runs last and should only observe the final event state
	Monitor

	orderCount int = iota
)

// orders enumerates all phases in their global dispatch order.
var orders = [orderCount]Order{First, Early, Default, Late, Last, Monitor}

// Orders returns all dispatch phases in the order dispatch visits them.
func Orders() []Order {
	return orders[:]
}

// Valid reports whether o is a defined dispatch phase.
func (o Order) Valid() bool {
	return o >= First && o < Order(orderCount)
}

// String returns a human-readable phase name.
func (o Order) String() string {
	switch o {
	case First:
		return "first"
	case Early:
		return "early"
	case Default:
		return "default"
	case Late:
		return "late"
	case Last:
		return "last"
	case Monitor:
		return "monitor"
	default:
		return "invalid"
	}
}
