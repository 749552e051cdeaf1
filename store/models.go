package store

import (
	"strings"
	"time"

	"github.com/MrEthical07/goVPS/lifecycle"
	"github.com/MrEthical07/goVPS/permission"
	"github.com/google/uuid"
)

// Account is a panel identity.
type Account struct {
	ID            int64
	ExternalID    uuid.UUID
	Email         string
	Username      string
	PasswordHash  string
	FullName      string
	Role          permission.Role
	Active        bool
	EmailVerified bool
	TOTPSecret    string
	TOTPEnabled   bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastLoginAt   *time.Time
}

// NormalizeEmail returns the case-insensitive uniqueness key for an email.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeUsername returns the case-insensitive uniqueness key for a username.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// AccountPatch lists account fields to change; nil fields are left alone.
type AccountPatch struct {
	Email        *string
	Username     *string
	FullName     *string
	PasswordHash *string
	Role         *permission.Role
	Active       *bool
	TOTPSecret   *string
	TOTPEnabled  *bool
}

// AccountFilter narrows ListAccounts.
type AccountFilter struct {
	Role   permission.Role
	Active *bool
	Limit  int
	Offset int
}

type NetworkType string

const (
	NetworkPublicIPv4  NetworkType = "public_ipv4"
	NetworkPrivateOnly NetworkType = "private_only"
)

func (n NetworkType) Valid() bool {
	return n == NetworkPublicIPv4 || n == NetworkPrivateOnly
}

type ExpirationAction string

const (
	ExpireAutoDelete   ExpirationAction = "auto_delete"
	ExpireAutoShutdown ExpirationAction = "auto_shutdown"
	ExpireNotify       ExpirationAction = "notify"
)

func (a ExpirationAction) Valid() bool {
	return a == ExpireAutoDelete || a == ExpireAutoShutdown || a == ExpireNotify
}

// VPS is an owned compute instance.
//
// Status records caller intent and moves through the lifecycle state machine
// as soon as a command is accepted. ObservedStatus is what the hypervisor last
// confirmed; PendingCommand is set while a dispatched command awaits that
// confirmation.
type VPS struct {
	ID               int64
	ExternalID       uuid.UUID
	Name             string
	CPUCores         int
	RAMGB            float64
	StorageGB        int
	ImageID          int64
	NetworkType      NetworkType
	PublicIPv4       string
	PrivateIP        string
	OwnerID          int64
	HostID           *int64
	Status           lifecycle.Status
	ObservedStatus   lifecycle.Status
	PendingCommand   lifecycle.Command
	LastCommandError string
	ExpiresAt        *time.Time
	ExpirationAction ExpirationAction
	AutoBackups      bool
	StartOnCreate    bool
	CloudInit        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Pending reports whether a dispatched command still awaits confirmation.
func (v *VPS) Pending() bool {
	return v.PendingCommand != ""
}

// Diverged reports whether the hypervisor has confirmed a status different from
// the recorded one.
func (v *VPS) Diverged() bool {
	return v.ObservedStatus != "" && v.ObservedStatus != v.Status
}

// VPSPatch lists VPS fields to change; nil fields are left alone.
type VPSPatch struct {
	Name             *string
	CPUCores         *int
	RAMGB            *float64
	StorageGB        *int
	AutoBackups      *bool
	ExpiresAt        *time.Time
	ExpirationAction *ExpirationAction
}

// ChangesSpec reports whether the patch resizes the instance.
func (p VPSPatch) ChangesSpec() bool {
	return p.CPUCores != nil || p.RAMGB != nil || p.StorageGB != nil
}

// ChangesName reports whether the patch renames the instance.
func (p VPSPatch) ChangesName() bool {
	return p.Name != nil
}

// Empty reports whether the patch changes nothing.
func (p VPSPatch) Empty() bool {
	return !p.ChangesSpec() && !p.ChangesName() &&
		p.AutoBackups == nil && p.ExpiresAt == nil && p.ExpirationAction == nil
}

// VPSFilter narrows ListVPS. A nil OwnerID lists every owner.
type VPSFilter struct {
	OwnerID *int64
	Status  lifecycle.Status
	ImageID *int64
	Limit   int
	Offset  int
}

// Observation is a hypervisor report about a dispatched command.
type Observation struct {
	Command  lifecycle.Command
	Observed lifecycle.Status
	Err      string
	At       time.Time
}

type HostStatus string

const (
	HostOnline      HostStatus = "online"
	HostOffline     HostStatus = "offline"
	HostMaintenance HostStatus = "maintenance"
	HostError       HostStatus = "error"
)

func (s HostStatus) Valid() bool {
	switch s {
	case HostOnline, HostOffline, HostMaintenance, HostError:
		return true
	}
	return false
}

// Host is a hypervisor node tracked for capacity bookkeeping.
type Host struct {
	ID             int64
	Name           string
	Address        string
	TotalCPU       int
	UsedCPU        int
	TotalRAMGB     float64
	UsedRAMGB      float64
	TotalStorageGB int
	UsedStorageGB  int
	Status         HostStatus
	CreatedAt      time.Time
}

// SSHKey is a public key an account registered for VPS access.
type SSHKey struct {
	ID      int64
	OwnerID int64
	Name    string
	// PublicKey is the authorized_keys line as submitted, trimmed.
	PublicKey string
	// Fingerprint is the SHA256 fingerprint and is unique across accounts.
	Fingerprint       string
	LegacyFingerprint string
	CreatedAt         time.Time
	LastUsedAt        *time.Time
}

type ImageFormat string

const (
	ImageQCOW2 ImageFormat = "qcow2"
	ImageRaw   ImageFormat = "raw"
	ImageVMDK  ImageFormat = "vmdk"
)

func (f ImageFormat) Valid() bool {
	return f == ImageQCOW2 || f == ImageRaw || f == ImageVMDK
}

// Image is an OS image VPS instances are created from.
type Image struct {
	ID          int64
	Name        string
	OSType      string
	Version     string
	Format      ImageFormat
	Description string
	IsPublic    bool
	IsActive    bool
	CreatedAt   time.Time
}

// ImageFilter narrows ListImages.
type ImageFilter struct {
	PublicOnly bool
	ActiveOnly bool
}

// AuditRecord is a persisted audit entry.
type AuditRecord struct {
	ID         int64
	Action     string
	Resource   string
	ResourceID string
	ActorID    string
	IP         string
	UserAgent  string
	Success    bool
	Details    string
	CreatedAt  time.Time
}
