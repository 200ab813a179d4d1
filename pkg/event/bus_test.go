package event

import (
	"io"
	"testing"

	"github.com/fluxorio/dispatch/pkg/plugin"
)

// nodeEvent is the ancestor interface used across the dispatch tests.
type nodeEvent interface {
	Event
	NodeName() string
}

// nodeCreated is a concrete, non-cancellable event.
type nodeCreated struct {
	Base
	name string
}

func (e *nodeCreated) NodeName() string { return e.name }

// nodeRemoved is a concrete, cancellable event.
type nodeRemoved struct {
	Base
	Cancellation
	name string
}

func (e *nodeRemoved) NodeName() string { return e.name }

// createdListener subscribes to the concrete created event.
type createdListener struct {
	log   *[]string
	tag   string
	order Order
}

func (l *createdListener) Subscriptions() []Subscription {
	return []Subscription{{Method: "OnCreated", Order: l.order}}
}

func (l *createdListener) OnCreated(e *nodeCreated) {
	*l.log = append(*l.log, l.tag)
}

// nodeListener subscribes to the nodeEvent ancestor interface.
type nodeListener struct {
	log   *[]string
	tag   string
	order Order
}

func (l *nodeListener) Subscriptions() []Subscription {
	return []Subscription{{Method: "OnNode", Order: l.order}}
}

func (l *nodeListener) OnNode(e nodeEvent) {
	*l.log = append(*l.log, l.tag+":"+e.NodeName())
}

// cancellingListener cancels removals at its phase.
type cancellingListener struct {
	order Order
}

func (l *cancellingListener) Subscriptions() []Subscription {
	return []Subscription{{Method: "OnRemoved", Order: l.order}}
}

func (l *cancellingListener) OnRemoved(e *nodeRemoved) {
	e.SetCancelled(true)
}

// removedListener observes removals, optionally skipping cancelled ones.
type removedListener struct {
	log    *[]string
	tag    string
	order  Order
	ignore bool
}

func (l *removedListener) Subscriptions() []Subscription {
	return []Subscription{{Method: "OnRemoved", Order: l.order, IgnoreCancelled: l.ignore}}
}

func (l *removedListener) OnRemoved(e *nodeRemoved) {
	*l.log = append(*l.log, l.tag)
}

// panickingListener raises from its callback.
type panickingListener struct{}

func (l *panickingListener) Subscriptions() []Subscription {
	return []Subscription{{Method: "OnCreated", Order: Early}}
}

func (l *panickingListener) OnCreated(e *nodeCreated) {
	panic("listener failure")
}

// testPlugin must not be zero-size: distinct allocations of a zero-size
// struct may share an address, which would defeat identity-based lookup.
type testPlugin struct{ _ byte }

func newTestBus(t *testing.T) (Bus, *testPlugin) {
	t.Helper()

	manager := plugin.NewManager()
	owner := &testPlugin{}
	if _, err := manager.Register("test-plugin", owner); err != nil {
		t.Fatalf("Register() plugin error = %v", err)
	}

	cfg := DefaultConfig()
	cfg.SlowHandlerWarningMs = 0
	b := New(manager, WithConfig(cfg), WithLogger(NewLogger(io.Discard, io.Discard)))
	return b, owner
}

func TestBus_PostWithoutHandlers(t *testing.T) {
	b, _ := newTestBus(t)

	if cancelled := b.Post(&nodeCreated{name: "a"}); cancelled {
		t.Error("Post() with no handlers = true, want false")
	}
	if cancelled := b.Post(&nodeRemoved{name: "a"}); cancelled {
		t.Error("Post() cancellable with no handlers = true, want false")
	}
}

func TestBus_PriorityOrderAcrossTypes(t *testing.T) {
	b, owner := newTestBus(t)
	var log []string

	// The interface subscriber registers before the concrete one but at a
	// later phase; phase order must win across the whole lattice.
	if err := b.RegisterAll(owner, &nodeListener{log: &log, tag: "base", order: Default}); err != nil {
		t.Fatalf("RegisterAll() error = %v", err)
	}
	if err := b.RegisterAll(owner, &createdListener{log: &log, tag: "derived", order: First}); err != nil {
		t.Fatalf("RegisterAll() error = %v", err)
	}

	if cancelled := b.Post(&nodeCreated{name: "a"}); cancelled {
		t.Error("Post() = true, want false")
	}

	want := []string{"derived", "base:a"}
	if len(log) != len(want) {
		t.Fatalf("invocations = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("invocation[%d] = %q, want %q", i, log[i], want[i])
		}
	}
}

func TestBus_DuplicateRegistration(t *testing.T) {
	b, owner := newTestBus(t)
	var log []string
	listener := &createdListener{log: &log, tag: "once", order: Default}

	if err := b.RegisterAll(owner, listener); err != nil {
		t.Fatalf("RegisterAll() error = %v", err)
	}
	if err := b.RegisterAll(owner, listener); err != nil {
		t.Fatalf("RegisterAll() second call error = %v", err)
	}

	b.Post(&nodeCreated{name: "a"})
	if len(log) != 1 {
		t.Errorf("handler invoked %d times, want 1", len(log))
	}
}

func TestBus_DuplicateRegistrationDifferentOrder(t *testing.T) {
	b, owner := newTestBus(t)
	var log []string
	listener := &createdListener{log: &log, tag: "x", order: Default}

	if err := b.RegisterAll(owner, listener); err != nil {
		t.Fatalf("RegisterAll() error = %v", err)
	}

	// Re-registering the same (listener, callback) under another phase is
	// rejected as a duplicate, not treated as a phase update.
	listener.order = Last
	if err := b.RegisterAll(owner, listener); err != nil {
		t.Fatalf("RegisterAll() second call error = %v", err)
	}

	b.Post(&nodeCreated{name: "a"})
	if len(log) != 1 {
		t.Errorf("handler invoked %d times, want 1", len(log))
	}
}

func TestBus_UnregisterAll(t *testing.T) {
	b, owner := newTestBus(t)
	var log []string
	listener := &createdListener{log: &log, tag: "gone", order: Default}

	if err := b.RegisterAll(owner, listener); err != nil {
		t.Fatalf("RegisterAll() error = %v", err)
	}
	if err := b.UnregisterAll(listener); err != nil {
		t.Fatalf("UnregisterAll() error = %v", err)
	}

	b.Post(&nodeCreated{name: "a"})
	if len(log) != 0 {
		t.Errorf("handler invoked %d times after UnregisterAll, want 0", len(log))
	}

	if stats := b.Stats(); stats.RegisteredHandlers != 0 {
		t.Errorf("Stats().RegisteredHandlers = %d, want 0", stats.RegisteredHandlers)
	}
}

func TestBus_CancellationGating(t *testing.T) {
	b, owner := newTestBus(t)
	var log []string

	if err := b.RegisterAll(owner, &cancellingListener{order: First}); err != nil {
		t.Fatalf("RegisterAll() error = %v", err)
	}
	if err := b.RegisterAll(owner, &removedListener{log: &log, tag: "skipped", order: Last, ignore: true}); err != nil {
		t.Fatalf("RegisterAll() error = %v", err)
	}
	if err := b.RegisterAll(owner, &removedListener{log: &log, tag: "ran", order: Last}); err != nil {
		t.Fatalf("RegisterAll() error = %v", err)
	}

	cancelled := b.Post(&nodeRemoved{name: "a"})
	if !cancelled {
		t.Error("Post() = false, want true")
	}
	if len(log) != 1 || log[0] != "ran" {
		t.Errorf("invocations = %v, want [ran]", log)
	}
}

func TestBus_AlreadyCancelledSkipsIgnoringHandlers(t *testing.T) {
	b, owner := newTestBus(t)
	var log []string

	if err := b.RegisterAll(owner, &removedListener{log: &log, tag: "skipped", order: Default, ignore: true}); err != nil {
		t.Fatalf("RegisterAll() error = %v", err)
	}

	ev := &nodeRemoved{name: "a"}
	ev.SetCancelled(true)
	if cancelled := b.Post(ev); !cancelled {
		t.Error("Post() = false, want true")
	}
	if len(log) != 0 {
		t.Errorf("invocations = %v, want none", log)
	}
}

func TestBus_HandlerPanicIsolation(t *testing.T) {
	b, owner := newTestBus(t)
	var log []string

	if err := b.RegisterAll(owner, &panickingListener{}); err != nil {
		t.Fatalf("RegisterAll() error = %v", err)
	}
	if err := b.RegisterAll(owner, &createdListener{log: &log, tag: "after", order: Default}); err != nil {
		t.Fatalf("RegisterAll() error = %v", err)
	}

	if cancelled := b.Post(&nodeCreated{name: "a"}); cancelled {
		t.Error("Post() = true, want false")
	}
	if len(log) != 1 || log[0] != "after" {
		t.Errorf("invocations = %v, want [after]", log)
	}
	if stats := b.Stats(); stats.HandlerPanics != 1 {
		t.Errorf("Stats().HandlerPanics = %d, want 1", stats.HandlerPanics)
	}
}

func TestBus_RegisterAllUnknownPlugin(t *testing.T) {
	b, _ := newTestBus(t)
	var log []string

	err := b.RegisterAll(&testPlugin{}, &createdListener{log: &log, order: Default})
	if err != ErrUnknownPlugin {
		t.Errorf("RegisterAll() error = %v, want %v", err, ErrUnknownPlugin)
	}
}

func TestBus_RegisterAllNotSubscriber(t *testing.T) {
	b, owner := newTestBus(t)

	err := b.RegisterAll(owner, &struct{ X int }{})
	if err != ErrNotSubscriber {
		t.Errorf("RegisterAll() error = %v, want %v", err, ErrNotSubscriber)
	}
}

func TestBus_ReentrantDispatch(t *testing.T) {
	b, owner := newTestBus(t)
	var log []string

	// A handler that posts a nested event during dispatch.
	nested := &removedListener{log: &log, tag: "nested", order: Default}
	if err := b.RegisterAll(owner, nested); err != nil {
		t.Fatalf("RegisterAll() error = %v", err)
	}
	reentrant := &reentrantListener{bus: b, log: &log}
	if err := b.RegisterAll(owner, reentrant); err != nil {
		t.Fatalf("RegisterAll() error = %v", err)
	}

	b.Post(&nodeCreated{name: "outer"})

	want := []string{"outer", "nested"}
	if len(log) != len(want) {
		t.Fatalf("invocations = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("invocation[%d] = %q, want %q", i, log[i], want[i])
		}
	}
}

// reentrantListener posts a nested event from inside a handler.
type reentrantListener struct {
	bus Bus
	log *[]string
}

func (l *reentrantListener) Subscriptions() []Subscription {
	return []Subscription{{Method: "OnCreated", Order: Default}}
}

func (l *reentrantListener) OnCreated(e *nodeCreated) {
	*l.log = append(*l.log, e.name)
	l.bus.Post(&nodeRemoved{name: "inner"})
}

func TestBus_Stats(t *testing.T) {
	b, owner := newTestBus(t)
	var log []string

	if err := b.RegisterAll(owner, &createdListener{log: &log, tag: "a", order: Default}); err != nil {
		t.Fatalf("RegisterAll() error = %v", err)
	}

	b.Post(&nodeCreated{name: "x"})
	b.Post(&nodeCreated{name: "y"})

	stats := b.Stats()
	if stats.EventsPosted != 2 {
		t.Errorf("Stats().EventsPosted = %d, want 2", stats.EventsPosted)
	}
	if stats.HandlersInvoked != 2 {
		t.Errorf("Stats().HandlersInvoked = %d, want 2", stats.HandlersInvoked)
	}
	if stats.RegisteredHandlers != 1 {
		t.Errorf("Stats().RegisteredHandlers = %d, want 1", stats.RegisteredHandlers)
	}
	if stats.Specializations != 1 {
		t.Errorf("Stats().Specializations = %d, want 1", stats.Specializations)
	}
}

func TestBus_PostNilEventPanics(t *testing.T) {
	b, _ := newTestBus(t)

	defer func() {
		if recover() == nil {
			t.Error("Post(nil) did not panic")
		}
	}()
	b.Post(nil)
}
