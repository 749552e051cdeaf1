package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/MrEthical07/goVPS/store"
)

const sshKeyColumns = `id, owner_id, name, public_key, fingerprint, legacy_fingerprint, created_at, last_used_at`

func scanSSHKey(row rowScanner) (*store.SSHKey, error) {
	var (
		k        store.SSHKey
		lastUsed sql.NullTime
	)
	err := row.Scan(&k.ID, &k.OwnerID, &k.Name, &k.PublicKey, &k.Fingerprint, &k.LegacyFingerprint,
		&k.CreatedAt, &lastUsed)
	if err != nil {
		return nil, err
	}
	if lastUsed.Valid {
		t := lastUsed.Time
		k.LastUsedAt = &t
	}
	return &k, nil
}

func (s *Store) CreateSSHKey(ctx context.Context, k *store.SSHKey) error {
	if k.CreatedAt.IsZero() {
		k.CreatedAt = time.Now().UTC()
	}
	err := s.queryRow(ctx,
		`INSERT INTO ssh_keys (owner_id, name, public_key, fingerprint, legacy_fingerprint, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 RETURNING id`,
		k.OwnerID, k.Name, k.PublicKey, k.Fingerprint, k.LegacyFingerprint, k.CreatedAt.UTC(),
	).Scan(&k.ID)
	if foreignKeyViolation(err) {
		return store.ErrNotFound
	}
	return mapDuplicate(err)
}

func (s *Store) SSHKeyByID(ctx context.Context, id int64) (*store.SSHKey, error) {
	k, err := scanSSHKey(s.queryRow(ctx, `SELECT `+sshKeyColumns+` FROM ssh_keys WHERE id = ?`, id))
	return k, notFoundOr(err)
}

func (s *Store) ListSSHKeys(ctx context.Context, ownerID int64) ([]store.SSHKey, error) {
	rows, err := s.query(ctx, `SELECT `+sshKeyColumns+` FROM ssh_keys WHERE owner_id = ? ORDER BY id`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []store.SSHKey{}
	for rows.Next() {
		k, err := scanSSHKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *k)
	}
	return out, rows.Err()
}

func (s *Store) DeleteSSHKey(ctx context.Context, id int64) error {
	res, err := s.exec(ctx, `DELETE FROM ssh_keys WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}
