package goVPS

import (
	"time"

	"github.com/MrEthical07/goVPS/access"
	"github.com/MrEthical07/goVPS/lifecycle"
	"github.com/MrEthical07/goVPS/permission"
	"github.com/MrEthical07/goVPS/store"
	"github.com/google/uuid"
)

// Principal is an authenticated caller: the account id and the role snapshot
// carried by its access token.
type Principal = access.Principal

// TokenPair is the result of a login or refresh. Both tokens are always
// replaced together.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// LoginRequest is one login attempt. An Identifier containing "@" is looked
// up as an email, anything else as a username.
type LoginRequest struct {
	Identifier    string
	Password      string
	TwoFactorCode string
}

// RegisterRequest is a self-registration. The account always gets role user.
type RegisterRequest struct {
	Email    string
	Username string
	Password string
	FullName string
}

// CreateAccountRequest is an administrative account creation.
type CreateAccountRequest struct {
	Email    string
	Username string
	Password string
	FullName string
	Role     permission.Role
	Disabled bool
}

// AccountUpdate lists account fields to change; nil fields are left alone.
type AccountUpdate struct {
	Email    *string
	Username *string
	FullName *string
	Role     *permission.Role
	Active   *bool
}

// CreateSSHKeyRequest registers a public key in authorized_keys format. An
// empty Name falls back to the key's comment.
type CreateSSHKeyRequest struct {
	Name      string
	PublicKey string
}

// CreateVPSRequest describes a new instance. OwnerID defaults to the caller.
type CreateVPSRequest struct {
	Name             string
	CPUCores         int
	RAMGB            float64
	StorageGB        int
	ImageID          int64
	NetworkType      store.NetworkType
	OwnerID          int64
	HostID           *int64
	ExpiresAt        *time.Time
	ExpirationAction store.ExpirationAction
	AutoBackups      bool
	StartOnCreate    bool
	CloudInit        string
}

// VPSListOptions narrows ListVPS. OwnerID is ignored for owner-scoped callers.
type VPSListOptions struct {
	OwnerID *int64
	Status  lifecycle.Status
	Limit   int
	Offset  int
}

// TOTPEnrollment is the material an authenticator app needs.
type TOTPEnrollment struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioning_uri"`
}

// RemoteShellGrant identifies the instance a remote shell session may attach to.
type RemoteShellGrant struct {
	VPSID      int64     `json:"vps_id"`
	ExternalID uuid.UUID `json:"external_id"`
	PrivateIP  string    `json:"private_ip"`
	HostID     *int64    `json:"host_id,omitempty"`
}
