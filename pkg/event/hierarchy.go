package event

import (
	"reflect"
	"sync"
)

// hierarchyCache memoizes, per concrete event type, the HandlerSets of every
// lattice type the dispatcher must consult when that type is posted: the
// type itself plus every known lattice interface it implements.
//
// Go cannot enumerate the interfaces a type implements, so the lattice
// interfaces become known as registrations name them. The first registration
// for a previously-unseen interface extends the lattice and resets the memo;
// between extensions every entry is immutable and resolution is stable.
type hierarchyCache struct {
	mu       sync.RWMutex
	sets     map[reflect.Type]*HandlerSet
	resolved map[reflect.Type][]*HandlerSet
	ifaces   []reflect.Type
}

func newHierarchyCache() *hierarchyCache {
	return &hierarchyCache{
		sets:     make(map[reflect.Type]*HandlerSet),
		resolved: make(map[reflect.Type][]*HandlerSet),
	}
}

// Set returns the HandlerSet for a lattice type, creating it on first
// reference. A set may exist purely as an ancestor placeholder before any
// handler registers for exactly that type.
func (c *hierarchyCache) Set(t reflect.Type) *HandlerSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setLocked(t)
}

// Resolve returns the ordered HandlerSet sequence for an event type.
// Repeated calls return the same sequence until the lattice is extended.
func (c *hierarchyCache) Resolve(t reflect.Type) []*HandlerSet {
	c.mu.RLock()
	sets, ok := c.resolved[t]
	c.mu.RUnlock()
	if ok {
		return sets
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if sets, ok := c.resolved[t]; ok {
		return sets
	}

	sets = []*HandlerSet{c.setLocked(t)}
	for _, iface := range c.ifaces {
		if iface == t {
			continue
		}
		if t.Implements(iface) {
			sets = append(sets, c.sets[iface])
		}
	}
	c.resolved[t] = sets
	return sets
}

// Len returns the number of known lattice types.
func (c *hierarchyCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sets)
}

func (c *hierarchyCache) setLocked(t reflect.Type) *HandlerSet {
	if s, ok := c.sets[t]; ok {
		return s
	}
	s := NewHandlerSet()
	c.sets[t] = s
	if t.Kind() == reflect.Interface {
		c.extendLocked(t)
	}
	return s
}

// extendLocked records a newly seen lattice interface. Entries resolved
// before the interface was known would miss its handler set, so the memo is
// dropped; readers holding older sequences are unaffected.
func (c *hierarchyCache) extendLocked(t reflect.Type) {
	c.ifaces = append(c.ifaces, t)
	c.resolved = make(map[reflect.Type][]*HandlerSet)
}
