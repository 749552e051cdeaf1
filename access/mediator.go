package access

import (
	"fmt"

	"github.com/MrEthical07/goVPS/lifecycle"
	"github.com/MrEthical07/goVPS/permission"
	"github.com/MrEthical07/goVPS/store"
)

// ErrForbidden is the error every denial wraps.
var ErrForbidden = permission.ErrForbidden

// Principal is an authenticated caller.
type Principal struct {
	AccountID int64
	Role      permission.Role
}

// Mediator authorizes operations against a role table.
type Mediator struct {
	table *permission.Table
}

// New returns a mediator over table. A nil table uses [permission.Default].
func New(table *permission.Table) *Mediator {
	if table == nil {
		table = permission.Default()
	}
	return &Mediator{table: table}
}

// Table returns the role table the mediator checks against.
func (m *Mediator) Table() *permission.Table { return m.table }

// Require checks the capability alone, for operations with no target entity.
func (m *Mediator) Require(p Principal, c permission.Capability) error {
	return m.table.Require(p.Role, c)
}

// OwnerScoped reports whether p only acts on entities it owns.
func (m *Mediator) OwnerScoped(p Principal) bool {
	return m.table.OwnerScoped(p.Role)
}

// AuthorizeVPS checks c against v.
func (m *Mediator) AuthorizeVPS(p Principal, c permission.Capability, v *store.VPS) error {
	if err := m.table.Require(p.Role, c); err != nil {
		return err
	}
	if v == nil {
		return fmt.Errorf("%w: no target", ErrForbidden)
	}
	if m.table.OwnerScoped(p.Role) && v.OwnerID != p.AccountID {
		return fmt.Errorf("%w: vps %d is not owned by account %d", ErrForbidden, v.ID, p.AccountID)
	}
	return nil
}

// AuthorizeCommand checks the capability a lifecycle command needs against v.
func (m *Mediator) AuthorizeCommand(p Principal, cmd lifecycle.Command, v *store.VPS) error {
	c, ok := CommandCapability(cmd)
	if !ok {
		return fmt.Errorf("%w: %w", ErrForbidden, lifecycle.ErrUnknownCommand)
	}
	return m.AuthorizeVPS(p, c, v)
}

// CommandCapability maps a lifecycle command to the capability it needs.
func CommandCapability(cmd lifecycle.Command) (permission.Capability, bool) {
	switch cmd {
	case lifecycle.CommandStart:
		return permission.VPSStart, true
	case lifecycle.CommandStop:
		return permission.VPSStop, true
	case lifecycle.CommandReboot:
		return permission.VPSReboot, true
	case lifecycle.CommandDelete:
		return permission.VPSDelete, true
	}
	return "", false
}

// AuthorizeVPSUpdate applies field-level rules to a patch. Resizing needs
// vps:resize. Renaming needs vps:update from a role that is not owner-scoped.
// Other fields need vps:update on the target.
func (m *Mediator) AuthorizeVPSUpdate(p Principal, v *store.VPS, patch store.VPSPatch) error {
	if err := m.AuthorizeVPS(p, permission.VPSUpdate, v); err != nil {
		return err
	}
	if patch.ChangesSpec() {
		if err := m.table.Require(p.Role, permission.VPSResize); err != nil {
			return err
		}
	}
	if patch.ChangesName() && m.table.OwnerScoped(p.Role) {
		return fmt.Errorf("%w: role %q may not rename instances", ErrForbidden, p.Role)
	}
	return nil
}

// AuthorizeRemoteShell checks who may open a shell session on v. Network mode
// and status preconditions are the caller's to check.
func (m *Mediator) AuthorizeRemoteShell(p Principal, v *store.VPS) error {
	return m.AuthorizeVPS(p, permission.VPSUpdate, v)
}

// VPSFilter returns the owner predicate for a listing. Owner-scoped callers
// are pinned to themselves whatever they asked for; others get requested,
// which may be nil for every owner.
func (m *Mediator) VPSFilter(p Principal, requested *int64) (*int64, error) {
	if err := m.table.Require(p.Role, permission.VPSRead); err != nil {
		return nil, err
	}
	if m.table.OwnerScoped(p.Role) {
		self := p.AccountID
		return &self, nil
	}
	if requested == nil {
		return nil, nil
	}
	owner := *requested
	return &owner, nil
}

// AuthorizeAccount checks c against the account targetID. Any caller may
// read or update its own account.
func (m *Mediator) AuthorizeAccount(p Principal, c permission.Capability, targetID int64) error {
	if targetID == p.AccountID && (c == permission.UserRead || c == permission.UserUpdate) {
		return nil
	}
	if err := m.table.Require(p.Role, c); err != nil {
		return err
	}
	if m.table.OwnerScoped(p.Role) && targetID != p.AccountID {
		return fmt.Errorf("%w: account %d is not account %d", ErrForbidden, targetID, p.AccountID)
	}
	return nil
}

// AuthorizeSSHKey checks c against the account owning k. Owners manage their
// own keys; staff need the matching user capability.
func (m *Mediator) AuthorizeSSHKey(p Principal, c permission.Capability, k *store.SSHKey) error {
	if k == nil {
		return fmt.Errorf("%w: no target", ErrForbidden)
	}
	return m.AuthorizeAccount(p, c, k.OwnerID)
}

// AuthorizeAccountUpdate applies field-level rules to an account patch. Role
// and active flag changes need user:role, which also applies to the caller's
// own account.
func (m *Mediator) AuthorizeAccountUpdate(p Principal, targetID int64, patch store.AccountPatch) error {
	if err := m.AuthorizeAccount(p, permission.UserUpdate, targetID); err != nil {
		return err
	}
	if patch.Role != nil || patch.Active != nil {
		return m.table.Require(p.Role, permission.UserRole)
	}
	return nil
}
