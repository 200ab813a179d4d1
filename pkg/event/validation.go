package event

import "reflect"

// ValidateEvent validates an event before dispatch
func ValidateEvent(ev Event) error {
	if ev == nil {
		return ErrNilEvent
	}
	if v := reflect.ValueOf(ev); v.Kind() == reflect.Ptr && v.IsNil() {
		return ErrNilEvent
	}
	return nil
}

// ValidateListener validates a listener or plugin object reference
func ValidateListener(listener interface{}) error {
	if listener == nil {
		return ErrNilListener
	}
	if v := reflect.ValueOf(listener); v.Kind() == reflect.Ptr && v.IsNil() {
		return ErrNilListener
	}
	return nil
}

// ValidateOrder validates a dispatch phase
func ValidateOrder(order Order) error {
	if !order.Valid() {
		return ErrInvalidOrder
	}
	return nil
}

// ValidateEventType validates that t is a member of the event lattice
func ValidateEventType(t reflect.Type) error {
	if t == nil {
		return ErrInvalidType
	}
	if !t.Implements(latticeRoot) {
		return ErrInvalidType
	}
	return nil
}
