package httpapi

import (
	"time"

	"github.com/MrEthical07/goVPS/lifecycle"
	"github.com/MrEthical07/goVPS/permission"
	"github.com/MrEthical07/goVPS/store"
	"github.com/google/uuid"
)

type accountView struct {
	ID           int64                   `json:"id"`
	ExternalID   uuid.UUID               `json:"external_id"`
	Email        string                  `json:"email"`
	Username     string                  `json:"username"`
	FullName     string                  `json:"full_name,omitempty"`
	Role         permission.Role         `json:"role"`
	Active       bool                    `json:"active"`
	TOTPEnabled  bool                    `json:"totp_enabled"`
	CreatedAt    time.Time               `json:"created_at"`
	LastLoginAt  *time.Time              `json:"last_login_at,omitempty"`
	Capabilities []permission.Capability `json:"capabilities,omitempty"`
}

func newAccountView(a *store.Account) accountView {
	return accountView{
		ID:          a.ID,
		ExternalID:  a.ExternalID,
		Email:       a.Email,
		Username:    a.Username,
		FullName:    a.FullName,
		Role:        a.Role,
		Active:      a.Active,
		TOTPEnabled: a.TOTPEnabled,
		CreatedAt:   a.CreatedAt,
		LastLoginAt: a.LastLoginAt,
	}
}

type vpsView struct {
	ID               int64                  `json:"id"`
	ExternalID       uuid.UUID              `json:"external_id"`
	Name             string                 `json:"name"`
	CPUCores         int                    `json:"cpu_cores"`
	RAMGB            float64                `json:"ram_gb"`
	StorageGB        int                    `json:"storage_gb"`
	ImageID          int64                  `json:"image_id"`
	NetworkType      store.NetworkType      `json:"network_type"`
	PublicIPv4       string                 `json:"public_ipv4,omitempty"`
	PrivateIP        string                 `json:"private_ip,omitempty"`
	OwnerID          int64                  `json:"owner_id"`
	HostID           *int64                 `json:"host_id,omitempty"`
	Status           lifecycle.Status       `json:"status"`
	ObservedStatus   lifecycle.Status       `json:"observed_status,omitempty"`
	PendingCommand   lifecycle.Command      `json:"pending_command,omitempty"`
	LastCommandError string                 `json:"last_command_error,omitempty"`
	ExpiresAt        *time.Time             `json:"expires_at,omitempty"`
	ExpirationAction store.ExpirationAction `json:"expiration_action"`
	AutoBackups      bool                   `json:"auto_backups"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}

func newVPSView(v *store.VPS) vpsView {
	return vpsView{
		ID:               v.ID,
		ExternalID:       v.ExternalID,
		Name:             v.Name,
		CPUCores:         v.CPUCores,
		RAMGB:            v.RAMGB,
		StorageGB:        v.StorageGB,
		ImageID:          v.ImageID,
		NetworkType:      v.NetworkType,
		PublicIPv4:       v.PublicIPv4,
		PrivateIP:        v.PrivateIP,
		OwnerID:          v.OwnerID,
		HostID:           v.HostID,
		Status:           v.Status,
		ObservedStatus:   v.ObservedStatus,
		PendingCommand:   v.PendingCommand,
		LastCommandError: v.LastCommandError,
		ExpiresAt:        v.ExpiresAt,
		ExpirationAction: v.ExpirationAction,
		AutoBackups:      v.AutoBackups,
		CreatedAt:        v.CreatedAt,
		UpdatedAt:        v.UpdatedAt,
	}
}

type imageView struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	OSType      string            `json:"os_type"`
	Version     string            `json:"version,omitempty"`
	Format      store.ImageFormat `json:"format"`
	Description string            `json:"description,omitempty"`
	IsPublic    bool              `json:"is_public"`
	IsActive    bool              `json:"is_active"`
}

func newImageView(img *store.Image) imageView {
	return imageView{
		ID:          img.ID,
		Name:        img.Name,
		OSType:      img.OSType,
		Version:     img.Version,
		Format:      img.Format,
		Description: img.Description,
		IsPublic:    img.IsPublic,
		IsActive:    img.IsActive,
	}
}

type hostView struct {
	ID             int64            `json:"id"`
	Name           string           `json:"name"`
	Address        string           `json:"address"`
	TotalCPU       int              `json:"total_cpu"`
	UsedCPU        int              `json:"used_cpu"`
	TotalRAMGB     float64          `json:"total_ram_gb"`
	UsedRAMGB      float64          `json:"used_ram_gb"`
	TotalStorageGB int              `json:"total_storage_gb"`
	UsedStorageGB  int              `json:"used_storage_gb"`
	Status         store.HostStatus `json:"status"`
}

func newHostView(h *store.Host) hostView {
	return hostView{
		ID:             h.ID,
		Name:           h.Name,
		Address:        h.Address,
		TotalCPU:       h.TotalCPU,
		UsedCPU:        h.UsedCPU,
		TotalRAMGB:     h.TotalRAMGB,
		UsedRAMGB:      h.UsedRAMGB,
		TotalStorageGB: h.TotalStorageGB,
		UsedStorageGB:  h.UsedStorageGB,
		Status:         h.Status,
	}
}

type sshKeyView struct {
	ID                int64      `json:"id"`
	Name              string     `json:"name"`
	PublicKey         string     `json:"public_key"`
	Fingerprint       string     `json:"fingerprint"`
	LegacyFingerprint string     `json:"legacy_fingerprint"`
	CreatedAt         time.Time  `json:"created_at"`
	LastUsedAt        *time.Time `json:"last_used_at"`
}

func newSSHKeyView(k *store.SSHKey) sshKeyView {
	return sshKeyView{
		ID:                k.ID,
		Name:              k.Name,
		PublicKey:         k.PublicKey,
		Fingerprint:       k.Fingerprint,
		LegacyFingerprint: k.LegacyFingerprint,
		CreatedAt:         k.CreatedAt,
		LastUsedAt:        k.LastUsedAt,
	}
}

func mapSlice[T, V any](items []T, fn func(*T) V) []V {
	out := make([]V, len(items))
	for i := range items {
		out[i] = fn(&items[i])
	}
	return out
}
