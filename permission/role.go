package permission

import "strings"

// Role is the tagged role of an account. Every account holds exactly one.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleSupport Role = "support"
	RoleBilling Role = "billing"
	RoleUser    Role = "user"
)

var allRoles = []Role{RoleAdmin, RoleSupport, RoleBilling, RoleUser}

// Roles returns every built-in role.
func Roles() []Role {
	out := make([]Role, len(allRoles))
	copy(out, allRoles)
	return out
}

// ParseRole normalizes s and reports whether it names a built-in role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", ErrUnknownRole
	}
	return r, nil
}

// Valid reports whether r is a built-in role.
func (r Role) Valid() bool {
	for _, known := range allRoles {
		if r == known {
			return true
		}
	}
	return false
}

func (r Role) String() string { return string(r) }

// RoleSpec describes one row of the role table.
type RoleSpec struct {
	Capabilities []Capability
	// OwnerScoped roles may only exercise their capabilities on entities they own.
	OwnerScoped bool
}

// DefaultRoles is the built-in role table.
func DefaultRoles() map[Role]RoleSpec {
	return map[Role]RoleSpec{
		RoleAdmin: {Capabilities: All()},
		RoleSupport: {Capabilities: []Capability{
			VPSRead, VPSUpdate,
			UserRead, UserUpdate,
			HostRead,
		}},
		RoleBilling: {Capabilities: []Capability{
			BillingRead, BillingManage,
			UserRead,
		}},
		RoleUser: {
			Capabilities: []Capability{VPSRead, VPSUpdate, VPSStart, VPSStop, VPSReboot},
			OwnerScoped:  true,
		},
	}
}
