// Package plugin tracks the units that own event registrations. The
// dispatcher attaches a Container to every registration for bookkeeping and
// never inspects its contents.
package plugin

import (
	"sync"

	"github.com/google/uuid"
)

// Errors
var (
	ErrNilInstance       = &Error{Code: "NIL_INSTANCE", Message: "plugin instance cannot be nil"}
	ErrEmptyName         = &Error{Code: "EMPTY_NAME", Message: "plugin name cannot be empty"}
	ErrAlreadyRegistered = &Error{Code: "ALREADY_REGISTERED", Message: "plugin instance is already registered"}
)

// Error is a plugin registry error
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Container identifies one registered plugin instance.
type Container struct {
	// ID is a process-unique identifier assigned at registration
	ID string

	// Name is the plugin's declared name
	Name string

	// Instance is the plugin object itself
	Instance interface{}
}

// Manager resolves plugin instances to their containers.
type Manager interface {
	// Register adds a plugin instance and returns its container
	Register(name string, instance interface{}) (*Container, error)

	// FromInstance returns the container for a registered instance
	FromInstance(instance interface{}) (*Container, bool)

	// Containers returns all registered containers
	Containers() []*Container
}

// manager implements Manager
type manager struct {
	mu         sync.RWMutex
	byInstance map[interface{}]*Container
}

var _ Manager = (*manager)(nil)

// NewManager creates an empty plugin manager.
func NewManager() Manager {
	return &manager{
		byInstance: make(map[interface{}]*Container),
	}
}

func (m *manager) Register(name string, instance interface{}) (*Container, error) {
	if instance == nil {
		return nil, ErrNilInstance
	}
	if name == "" {
		return nil, ErrEmptyName
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byInstance[instance]; ok {
		return nil, ErrAlreadyRegistered
	}

	c := &Container{
		ID:       uuid.New().String(),
		Name:     name,
		Instance: instance,
	}
	m.byInstance[instance] = c
	return c, nil
}

func (m *manager) FromInstance(instance interface{}) (*Container, bool) {
	if instance == nil {
		return nil, false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.byInstance[instance]
	return c, ok
}

func (m *manager) Containers() []*Container {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Container, 0, len(m.byInstance))
	for _, c := range m.byInstance {
		result = append(result, c)
	}
	return result
}
