package event

import (
	"fmt"
	"reflect"
)

// Subscription declares one subscriber callback on a listener: the method
// name, the dispatch phase, and whether cancelled events are skipped.
type Subscription struct {
	Method          string
	Order           Order
	IgnoreCancelled bool
}

// Subscriber is the default discovery convention: a listener lists its
// callbacks explicitly. Each named method must take exactly one event
// parameter and return nothing.
type Subscriber interface {
	Subscriptions() []Subscription
}

// Callback is a validated (event type, method, order, flag) tuple produced
// by discovery.
type Callback struct {
	EventType       reflect.Type
	Method          reflect.Method
	Order           Order
	IgnoreCancelled bool
}

// Scanner discovers subscriber callbacks on a listener object. Candidates
// with an invalid shape are skipped with a warning, never registered.
type Scanner interface {
	Scan(listener interface{}) ([]Callback, error)
}

// subscriptionScanner implements Scanner over the Subscriber convention.
type subscriptionScanner struct {
	logger Logger
}

var _ Scanner = (*subscriptionScanner)(nil)

// NewScanner creates the default scanner. Shape warnings go to logger.
func NewScanner(logger Logger) Scanner {
	if logger == nil {
		logger = NewDefaultLogger()
	}
	return &subscriptionScanner{logger: logger}
}

func (s *subscriptionScanner) Scan(listener interface{}) ([]Callback, error) {
	if err := ValidateListener(listener); err != nil {
		return nil, err
	}

	sub, ok := listener.(Subscriber)
	if !ok {
		return nil, ErrNotSubscriber
	}

	t := reflect.TypeOf(listener)
	var callbacks []Callback
	for _, decl := range sub.Subscriptions() {
		m, ok := t.MethodByName(decl.Method)
		if !ok {
			s.logger.Warnf("listener %s declares a subscription for missing method %q, skipping", t, decl.Method)
			continue
		}
		if err := ValidateCallbackShape(m); err != nil {
			s.logger.Warnf("method %s on %s has the wrong subscriber signature (%v), skipping", m.Name, t, err)
			continue
		}
		if !decl.Order.Valid() {
			s.logger.Warnf("subscription %s on %s names an invalid order %d, skipping", m.Name, t, decl.Order)
			continue
		}
		callbacks = append(callbacks, Callback{
			EventType:       m.Type.In(1),
			Method:          m,
			Order:           decl.Order,
			IgnoreCancelled: decl.IgnoreCancelled,
		})
	}
	return callbacks, nil
}

// ValidateCallbackShape reports whether m can serve as a subscriber
// callback: exported, exactly one parameter that is part of the event
// lattice, and no results.
func ValidateCallbackShape(m reflect.Method) error {
	if m.PkgPath != "" {
		return shapeError("method is unexported")
	}
	mt := m.Type
	if mt.NumIn() != 2 {
		return shapeError(fmt.Sprintf("want exactly one event parameter, have %d", mt.NumIn()-1))
	}
	if mt.NumOut() != 0 {
		return shapeError(fmt.Sprintf("want no results, have %d", mt.NumOut()))
	}
	if !mt.In(1).Implements(latticeRoot) {
		return shapeError(fmt.Sprintf("parameter %s is not part of the event lattice", mt.In(1)))
	}
	return nil
}

func shapeError(reason string) error {
	return &Error{Code: "INVALID_CALLBACK_SHAPE", Message: reason}
}
