package permission

import (
	"errors"
	"sync"
)

const maxCapabilities = 64

var (
	// ErrForbidden is returned when a role lacks a required capability.
	ErrForbidden = errors.New("forbidden")
	// ErrUnknownRole is returned for role names outside the role table.
	ErrUnknownRole = errors.New("unknown role")
	// ErrUnknownCapability is returned for capabilities that were never registered.
	ErrUnknownCapability = errors.New("unknown capability")
)

// Registry maps capability names to bit positions within a [Mask64].
type Registry struct {
	mu        sync.RWMutex
	nameToBit map[Capability]int
	bitToName map[int]Capability
	frozen    bool
}

// NewRegistry creates an empty capability registry.
func NewRegistry() *Registry {
	return &Registry{
		nameToBit: make(map[Capability]int),
		bitToName: make(map[int]Capability),
	}
}

// Register assigns the next available bit to capability c.
// Must be called before [Registry.Freeze].
func (r *Registry) Register(c Capability) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return -1, errors.New("registry frozen")
	}
	if c == "" {
		return -1, errors.New("capability name cannot be empty")
	}
	if _, exists := r.nameToBit[c]; exists {
		return -1, errors.New("capability already registered: " + string(c))
	}

	next := len(r.nameToBit)
	if next >= maxCapabilities {
		return -1, errors.New("capability limit exceeded")
	}

	r.nameToBit[c] = next
	r.bitToName[next] = c
	return next, nil
}

// Bit returns the bit index for c, or false if it was never registered.
func (r *Registry) Bit(c Capability) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.nameToBit[c]
	return bit, ok
}

// Name returns the capability stored at bit, or false if unassigned.
func (r *Registry) Name(bit int) (Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.bitToName[bit]
	return c, ok
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Count returns the number of registered capabilities.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nameToBit)
}
