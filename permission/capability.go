package permission

// Capability is an atomic permission token such as "vps:start".
type Capability string

const (
	VPSCreate Capability = "vps:create"
	VPSRead   Capability = "vps:read"
	VPSUpdate Capability = "vps:update"
	// VPSResize covers cpu, ram and storage changes.
	VPSResize Capability = "vps:resize"
	VPSDelete Capability = "vps:delete"
	VPSStart  Capability = "vps:start"
	VPSStop   Capability = "vps:stop"
	VPSReboot Capability = "vps:reboot"

	UserCreate Capability = "user:create"
	UserRead   Capability = "user:read"
	UserUpdate Capability = "user:update"
	// UserRole covers role and active flag changes.
	UserRole   Capability = "user:role"
	UserDelete Capability = "user:delete"

	HostRead   Capability = "host:read"
	HostManage Capability = "host:manage"

	ImageUpload Capability = "image:upload"
	ImageDelete Capability = "image:delete"

	BillingRead   Capability = "billing:read"
	BillingManage Capability = "billing:manage"
)

var allCapabilities = []Capability{
	VPSCreate, VPSRead, VPSUpdate, VPSResize, VPSDelete, VPSStart, VPSStop, VPSReboot,
	UserCreate, UserRead, UserUpdate, UserRole, UserDelete,
	HostRead, HostManage,
	ImageUpload, ImageDelete,
	BillingRead, BillingManage,
}

// All returns the full capability universe in registration order.
func All() []Capability {
	out := make([]Capability, len(allCapabilities))
	copy(out, allCapabilities)
	return out
}
