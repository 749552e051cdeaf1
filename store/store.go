package store

import (
	"context"
	"time"

	"github.com/MrEthical07/goVPS/lifecycle"
)

// AccountStore persists accounts.
type AccountStore interface {
	// CreateAccount inserts a and assigns its ID.
	CreateAccount(ctx context.Context, a *Account) error
	AccountByID(ctx context.Context, id int64) (*Account, error)
	// AccountByEmail matches case-insensitively.
	AccountByEmail(ctx context.Context, email string) (*Account, error)
	// AccountByUsername matches case-insensitively.
	AccountByUsername(ctx context.Context, username string) (*Account, error)
	ListAccounts(ctx context.Context, filter AccountFilter) ([]Account, error)
	UpdateAccount(ctx context.Context, id int64, patch AccountPatch, at time.Time) (*Account, error)
	SetLastLogin(ctx context.Context, id int64, at time.Time) error
	DeleteAccount(ctx context.Context, id int64) error
}

// VPSStore persists VPS instances.
type VPSStore interface {
	// CreateVPS inserts v and assigns its ID.
	CreateVPS(ctx context.Context, v *VPS) error
	VPSByID(ctx context.Context, id int64) (*VPS, error)
	ListVPS(ctx context.Context, filter VPSFilter) ([]VPS, error)
	// UpdateVPS applies patch unless the VPS is deleting, in which case it
	// fails with ErrStatusChanged.
	UpdateVPS(ctx context.Context, id int64, patch VPSPatch, at time.Time) (*VPS, error)
	// TransitionVPS moves the VPS from status from to status to and marks cmd
	// pending, only if the stored status still equals from.
	TransitionVPS(ctx context.Context, id int64, from, to lifecycle.Status, cmd lifecycle.Command, at time.Time) (*VPS, error)
	// RecordObservation stores a hypervisor report. The pending command is
	// cleared only when obs.Command matches it.
	RecordObservation(ctx context.Context, id int64, obs Observation) (*VPS, error)
}

// ImageStore persists OS images.
type ImageStore interface {
	CreateImage(ctx context.Context, img *Image) error
	ImageByID(ctx context.Context, id int64) (*Image, error)
	ListImages(ctx context.Context, filter ImageFilter) ([]Image, error)
	SetImageActive(ctx context.Context, id int64, active bool) error
}

// HostStore persists hypervisor hosts.
type HostStore interface {
	CreateHost(ctx context.Context, h *Host) error
	HostByID(ctx context.Context, id int64) (*Host, error)
	ListHosts(ctx context.Context) ([]Host, error)
}

// SSHKeyStore persists account SSH keys. Deleting an account removes its keys.
type SSHKeyStore interface {
	// CreateSSHKey fails with ErrDuplicate when the fingerprint is registered.
	CreateSSHKey(ctx context.Context, k *SSHKey) error
	SSHKeyByID(ctx context.Context, id int64) (*SSHKey, error)
	ListSSHKeys(ctx context.Context, ownerID int64) ([]SSHKey, error)
	DeleteSSHKey(ctx context.Context, id int64) error
}

// Store is the full persistence surface consumed by the engine.
type Store interface {
	AccountStore
	VPSStore
	ImageStore
	HostStore
	SSHKeyStore
}
