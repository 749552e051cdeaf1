package permission

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

type roleEntry struct {
	mask        Mask64
	ownerScoped bool
}

// Table holds the role to capability mapping. After [Table.Freeze] it is
// read-only and safe for concurrent use.
type Table struct {
	registry *Registry

	mu     sync.RWMutex
	roles  map[Role]roleEntry
	frozen bool
}

// NewTable creates an empty role table backed by registry.
func NewTable(registry *Registry) *Table {
	return &Table{
		registry: registry,
		roles:    make(map[Role]roleEntry),
	}
}

// NewTableFromSpecs registers every capability in caps, registers each role
// in specs and freezes both the registry and the table.
func NewTableFromSpecs(caps []Capability, specs map[Role]RoleSpec) (*Table, error) {
	registry := NewRegistry()
	for _, c := range caps {
		if _, err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	registry.Freeze()

	table := NewTable(registry)

	// Deterministic registration order keeps errors reproducible.
	names := make([]string, 0, len(specs))
	for role := range specs {
		names = append(names, string(role))
	}
	sort.Strings(names)
	for _, name := range names {
		role := Role(name)
		if err := table.RegisterRole(role, specs[role]); err != nil {
			return nil, err
		}
	}
	table.Freeze()
	return table, nil
}

// Default returns the frozen built-in table (see [DefaultRoles]).
func Default() *Table {
	t, err := NewTableFromSpecs(All(), DefaultRoles())
	if err != nil {
		panic(fmt.Sprintf("permission: default role table: %v", err))
	}
	return t
}

// RegisterRole adds role with the capabilities in spec.
func (t *Table) RegisterRole(role Role, spec RoleSpec) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.frozen {
		return errors.New("role table frozen")
	}
	if role == "" {
		return errors.New("role name empty")
	}
	if _, exists := t.roles[role]; exists {
		return errors.New("role already registered: " + string(role))
	}

	var mask Mask64
	for _, c := range spec.Capabilities {
		bit, ok := t.registry.Bit(c)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownCapability, c)
		}
		mask.Set(bit)
	}

	t.roles[role] = roleEntry{mask: mask, ownerScoped: spec.OwnerScoped}
	return nil
}

// Freeze prevents further role registrations.
func (t *Table) Freeze() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frozen = true
}

// Check reports whether role carries capability c. Unknown roles and
// unregistered capabilities never pass.
func (t *Table) Check(role Role, c Capability) bool {
	if t == nil {
		return false
	}
	bit, ok := t.registry.Bit(c)
	if !ok {
		return false
	}

	t.mu.RLock()
	entry, ok := t.roles[role]
	t.mu.RUnlock()
	if !ok {
		return false
	}
	return entry.mask.Has(bit)
}

// Require fails with [ErrForbidden] when role does not carry c.
func (t *Table) Require(role Role, c Capability) error {
	if !t.Check(role, c) {
		return fmt.Errorf("%w: role %q lacks %s", ErrForbidden, role, c)
	}
	return nil
}

// OwnerScoped reports whether role is limited to entities it owns.
// Unknown roles are treated as owner-scoped.
func (t *Table) OwnerScoped(role Role) bool {
	if t == nil {
		return true
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	entry, ok := t.roles[role]
	if !ok {
		return true
	}
	return entry.ownerScoped
}

// Known reports whether role is registered.
func (t *Table) Known(role Role) bool {
	if t == nil {
		return false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.roles[role]
	return ok
}

// Capabilities lists the capabilities of role in registration order.
func (t *Table) Capabilities(role Role) []Capability {
	t.mu.RLock()
	entry, ok := t.roles[role]
	t.mu.RUnlock()
	if !ok {
		return nil
	}

	out := make([]Capability, 0, t.registry.Count())
	for bit := 0; bit < maxCapabilities; bit++ {
		if !entry.mask.Has(bit) {
			continue
		}
		if c, ok := t.registry.Name(bit); ok {
			out = append(out, c)
		}
	}
	return out
}

// Mask returns the raw capability mask of role.
func (t *Table) Mask(role Role) (Mask64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entry, ok := t.roles[role]
	return entry.mask, ok
}
