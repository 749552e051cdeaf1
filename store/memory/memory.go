// Package memory is a concurrency-safe in-memory implementation of
// store.Store. It is used by tests and by single-process deployments that do
// not need durability.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MrEthical07/goVPS/lifecycle"
	"github.com/MrEthical07/goVPS/store"
	"github.com/google/uuid"
)

// Store keeps every entity in maps guarded by one RWMutex. Compare-and-swap
// on VPS status happens under the write lock.
type Store struct {
	mu sync.RWMutex

	accounts   map[int64]*store.Account
	byEmail    map[string]int64
	byUsername map[string]int64
	vps        map[int64]*store.VPS
	images     map[int64]*store.Image
	hosts      map[int64]*store.Host
	sshKeys    map[int64]*store.SSHKey

	nextAccount int64
	nextVPS     int64
	nextImage   int64
	nextHost    int64
	nextSSHKey  int64
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		accounts:   make(map[int64]*store.Account),
		byEmail:    make(map[string]int64),
		byUsername: make(map[string]int64),
		vps:        make(map[int64]*store.VPS),
		images:     make(map[int64]*store.Image),
		hosts:      make(map[int64]*store.Host),
		sshKeys:    make(map[int64]*store.SSHKey),
	}
}

func (s *Store) CreateAccount(_ context.Context, a *store.Account) error {
	emailKey := store.NormalizeEmail(a.Email)
	usernameKey := store.NormalizeUsername(a.Username)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[emailKey]; taken {
		return store.ErrEmailTaken
	}
	if _, taken := s.byUsername[usernameKey]; taken {
		return store.ErrUsernameTaken
	}

	s.nextAccount++
	a.ID = s.nextAccount
	if a.ExternalID == uuid.Nil {
		a.ExternalID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = a.CreatedAt
	}

	cp := *a
	s.accounts[a.ID] = &cp
	s.byEmail[emailKey] = a.ID
	s.byUsername[usernameKey] = a.ID
	return nil
}

func (s *Store) AccountByID(_ context.Context, id int64) (*store.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accountLocked(id)
}

func (s *Store) AccountByEmail(_ context.Context, email string) (*store.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[store.NormalizeEmail(email)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.accountLocked(id)
}

func (s *Store) AccountByUsername(_ context.Context, username string) (*store.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byUsername[store.NormalizeUsername(username)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.accountLocked(id)
}

func (s *Store) accountLocked(id int64) (*store.Account, error) {
	a, ok := s.accounts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *Store) ListAccounts(_ context.Context, filter store.AccountFilter) ([]store.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		if filter.Role != "" && a.Role != filter.Role {
			continue
		}
		if filter.Active != nil && a.Active != *filter.Active {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, filter.Offset, filter.Limit), nil
}

func (s *Store) UpdateAccount(_ context.Context, id int64, patch store.AccountPatch, at time.Time) (*store.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, store.ErrNotFound
	}

	oldEmail := store.NormalizeEmail(a.Email)
	oldUsername := store.NormalizeUsername(a.Username)
	if patch.Email != nil {
		key := store.NormalizeEmail(*patch.Email)
		if owner, taken := s.byEmail[key]; taken && owner != id {
			return nil, store.ErrEmailTaken
		}
	}
	if patch.Username != nil {
		key := store.NormalizeUsername(*patch.Username)
		if owner, taken := s.byUsername[key]; taken && owner != id {
			return nil, store.ErrUsernameTaken
		}
	}

	if patch.Email != nil {
		delete(s.byEmail, oldEmail)
		a.Email = *patch.Email
		s.byEmail[store.NormalizeEmail(a.Email)] = id
	}
	if patch.Username != nil {
		delete(s.byUsername, oldUsername)
		a.Username = *patch.Username
		s.byUsername[store.NormalizeUsername(a.Username)] = id
	}
	if patch.FullName != nil {
		a.FullName = *patch.FullName
	}
	if patch.PasswordHash != nil {
		a.PasswordHash = *patch.PasswordHash
	}
	if patch.Role != nil {
		a.Role = *patch.Role
	}
	if patch.Active != nil {
		a.Active = *patch.Active
	}
	if patch.TOTPSecret != nil {
		a.TOTPSecret = *patch.TOTPSecret
	}
	if patch.TOTPEnabled != nil {
		a.TOTPEnabled = *patch.TOTPEnabled
	}
	a.UpdatedAt = at

	cp := *a
	return &cp, nil
}

func (s *Store) SetLastLogin(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return store.ErrNotFound
	}
	t := at
	a.LastLoginAt = &t
	return nil
}

func (s *Store) DeleteAccount(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return store.ErrNotFound
	}
	for _, v := range s.vps {
		if v.OwnerID == id {
			return store.ErrInUse
		}
	}
	for keyID, k := range s.sshKeys {
		if k.OwnerID == id {
			delete(s.sshKeys, keyID)
		}
	}
	delete(s.byEmail, store.NormalizeEmail(a.Email))
	delete(s.byUsername, store.NormalizeUsername(a.Username))
	delete(s.accounts, id)
	return nil
}

func (s *Store) CreateVPS(_ context.Context, v *store.VPS) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextVPS++
	v.ID = s.nextVPS
	if v.ExternalID == uuid.Nil {
		v.ExternalID = uuid.New()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	if v.UpdatedAt.IsZero() {
		v.UpdatedAt = v.CreatedAt
	}

	s.vps[v.ID] = cloneVPS(v)
	return nil
}

func (s *Store) VPSByID(_ context.Context, id int64) (*store.VPS, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vps[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneVPS(v), nil
}

func (s *Store) ListVPS(_ context.Context, filter store.VPSFilter) ([]store.VPS, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.VPS, 0, len(s.vps))
	for _, v := range s.vps {
		if filter.OwnerID != nil && v.OwnerID != *filter.OwnerID {
			continue
		}
		if filter.Status != "" && v.Status != filter.Status {
			continue
		}
		if filter.ImageID != nil && v.ImageID != *filter.ImageID {
			continue
		}
		out = append(out, *cloneVPS(v))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, filter.Offset, filter.Limit), nil
}

func (s *Store) UpdateVPS(_ context.Context, id int64, patch store.VPSPatch, at time.Time) (*store.VPS, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vps[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if v.Status == lifecycle.StatusDeleting {
		return nil, store.ErrStatusChanged
	}

	if patch.Name != nil {
		v.Name = *patch.Name
	}
	if patch.CPUCores != nil {
		v.CPUCores = *patch.CPUCores
	}
	if patch.RAMGB != nil {
		v.RAMGB = *patch.RAMGB
	}
	if patch.StorageGB != nil {
		v.StorageGB = *patch.StorageGB
	}
	if patch.AutoBackups != nil {
		v.AutoBackups = *patch.AutoBackups
	}
	if patch.ExpiresAt != nil {
		t := *patch.ExpiresAt
		v.ExpiresAt = &t
	}
	if patch.ExpirationAction != nil {
		v.ExpirationAction = *patch.ExpirationAction
	}
	v.UpdatedAt = at
	return cloneVPS(v), nil
}

func (s *Store) TransitionVPS(_ context.Context, id int64, from, to lifecycle.Status, cmd lifecycle.Command, at time.Time) (*store.VPS, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vps[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if v.Status != from {
		return cloneVPS(v), store.ErrStatusChanged
	}

	v.Status = to
	v.PendingCommand = cmd
	v.LastCommandError = ""
	v.UpdatedAt = at
	return cloneVPS(v), nil
}

func (s *Store) RecordObservation(_ context.Context, id int64, obs store.Observation) (*store.VPS, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vps[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if obs.Observed != "" {
		v.ObservedStatus = obs.Observed
	}
	if v.PendingCommand == obs.Command {
		v.PendingCommand = ""
		v.LastCommandError = obs.Err
	}
	v.UpdatedAt = obs.At
	return cloneVPS(v), nil
}

func (s *Store) CreateImage(_ context.Context, img *store.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.images {
		if existing.Name == img.Name {
			return store.ErrDuplicate
		}
	}
	s.nextImage++
	img.ID = s.nextImage
	if img.CreatedAt.IsZero() {
		img.CreatedAt = time.Now().UTC()
	}
	cp := *img
	s.images[img.ID] = &cp
	return nil
}

func (s *Store) ImageByID(_ context.Context, id int64) (*store.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	img, ok := s.images[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *img
	return &cp, nil
}

func (s *Store) ListImages(_ context.Context, filter store.ImageFilter) ([]store.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.Image, 0, len(s.images))
	for _, img := range s.images {
		if filter.PublicOnly && !img.IsPublic {
			continue
		}
		if filter.ActiveOnly && !img.IsActive {
			continue
		}
		out = append(out, *img)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SetImageActive(_ context.Context, id int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	img, ok := s.images[id]
	if !ok {
		return store.ErrNotFound
	}
	img.IsActive = active
	return nil
}

func (s *Store) CreateHost(_ context.Context, h *store.Host) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.hosts {
		if existing.Name == h.Name {
			return store.ErrDuplicate
		}
	}
	s.nextHost++
	h.ID = s.nextHost
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	cp := *h
	s.hosts[h.ID] = &cp
	return nil
}

func (s *Store) HostByID(_ context.Context, id int64) (*store.Host, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.hosts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *h
	return &cp, nil
}

func (s *Store) ListHosts(_ context.Context) ([]store.Host, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.Host, 0, len(s.hosts))
	for _, h := range s.hosts {
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CreateSSHKey(_ context.Context, k *store.SSHKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[k.OwnerID]; !ok {
		return store.ErrNotFound
	}
	for _, existing := range s.sshKeys {
		if existing.Fingerprint == k.Fingerprint {
			return store.ErrDuplicate
		}
	}
	s.nextSSHKey++
	k.ID = s.nextSSHKey
	if k.CreatedAt.IsZero() {
		k.CreatedAt = time.Now().UTC()
	}
	s.sshKeys[k.ID] = cloneSSHKey(k)
	return nil
}

func (s *Store) SSHKeyByID(_ context.Context, id int64) (*store.SSHKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	k, ok := s.sshKeys[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneSSHKey(k), nil
}

func (s *Store) ListSSHKeys(_ context.Context, ownerID int64) ([]store.SSHKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []store.SSHKey{}
	for _, k := range s.sshKeys {
		if k.OwnerID == ownerID {
			out = append(out, *cloneSSHKey(k))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) DeleteSSHKey(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sshKeys[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.sshKeys, id)
	return nil
}

func cloneSSHKey(k *store.SSHKey) *store.SSHKey {
	cp := *k
	if k.LastUsedAt != nil {
		t := *k.LastUsedAt
		cp.LastUsedAt = &t
	}
	return &cp
}

func cloneVPS(v *store.VPS) *store.VPS {
	cp := *v
	if v.HostID != nil {
		id := *v.HostID
		cp.HostID = &id
	}
	if v.ExpiresAt != nil {
		t := *v.ExpiresAt
		cp.ExpiresAt = &t
	}
	return &cp
}

func page[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return items[:0]
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
