package goVPS

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/goVPS/permission"
	"github.com/MrEthical07/goVPS/store"
	"golang.org/x/crypto/ssh"
)

const maxSSHKeyName = 128

// ListSSHKeys lists the keys of account ownerID, or of p when ownerID is 0.
func (e *Engine) ListSSHKeys(ctx context.Context, p Principal, ownerID int64) ([]store.SSHKey, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if ownerID == 0 {
		ownerID = p.AccountID
	}
	if err := e.access.AuthorizeAccount(p, permission.UserRead, ownerID); err != nil {
		e.metricInc(MetricForbidden)
		return nil, err
	}
	return e.store.ListSSHKeys(ctx, ownerID)
}

// CreateSSHKey parses req.PublicKey and stores it for p. A key whose
// fingerprint is already registered, by any account, is a conflict.
func (e *Engine) CreateSSHKey(ctx context.Context, p Principal, req CreateSSHKeyRequest) (*store.SSHKey, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	audit := AuditEvent{Action: AuditCreate, Resource: ResourceSSHKey, ActorID: formatID(p.AccountID)}

	k, err := parseSSHKey(req)
	if err != nil {
		return nil, err
	}
	k.OwnerID = p.AccountID
	k.CreatedAt = e.now().UTC()

	if err := e.store.CreateSSHKey(ctx, k); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			err = fmt.Errorf("%w: ssh key already exists", ErrConflict)
		} else {
			err = mapStoreErr(err)
		}
		e.emitAudit(ctx, audit, err)
		return nil, err
	}
	audit.ResourceID = formatID(k.ID)
	audit.Metadata = map[string]string{"name": k.Name, "fingerprint": k.Fingerprint}
	e.emitAudit(ctx, audit, nil)
	return k, nil
}

// DeleteSSHKey removes a key. Owners may delete their own keys; anyone else
// needs user:update on the owning account.
func (e *Engine) DeleteSSHKey(ctx context.Context, p Principal, id int64) error {
	if err := e.ready(); err != nil {
		return err
	}
	audit := AuditEvent{
		Action:     AuditDelete,
		Resource:   ResourceSSHKey,
		ResourceID: formatID(id),
		ActorID:    formatID(p.AccountID),
	}
	k, err := e.store.SSHKeyByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			err = notFound("ssh key", id)
		}
		e.emitAudit(ctx, audit, err)
		return err
	}
	if err := e.access.AuthorizeSSHKey(p, permission.UserUpdate, k); err != nil {
		e.metricInc(MetricForbidden)
		e.emitAudit(ctx, audit, err)
		return err
	}
	if err := e.store.DeleteSSHKey(ctx, id); err != nil {
		err = mapStoreErr(err)
		e.emitAudit(ctx, audit, err)
		return err
	}
	audit.Metadata = map[string]string{"fingerprint": k.Fingerprint}
	e.emitAudit(ctx, audit, nil)
	return nil
}

// parseSSHKey accepts exactly one authorized_keys line.
func parseSSHKey(req CreateSSHKeyRequest) (*store.SSHKey, error) {
	raw := bytes.TrimSpace([]byte(req.PublicKey))
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: public_key is required", ErrValidation)
	}
	pub, comment, _, rest, err := ssh.ParseAuthorizedKey(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ssh key: %v", ErrValidation, err)
	}
	if len(bytes.TrimSpace(rest)) > 0 {
		return nil, fmt.Errorf("%w: one ssh key per request", ErrValidation)
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = strings.TrimSpace(comment)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: ssh key name is required", ErrValidation)
	}
	if len(name) > maxSSHKeyName {
		return nil, fmt.Errorf("%w: ssh key name longer than %d bytes", ErrValidation, maxSSHKeyName)
	}

	line := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(pub)))
	if comment != "" {
		line += " " + comment
	}
	return &store.SSHKey{
		Name:              name,
		PublicKey:         line,
		Fingerprint:       ssh.FingerprintSHA256(pub),
		LegacyFingerprint: ssh.FingerprintLegacyMD5(pub),
	}, nil
}
