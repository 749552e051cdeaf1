package sqlstore

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/MrEthical07/goVPS/lifecycle"
	"github.com/MrEthical07/goVPS/store"
	"github.com/google/uuid"
)

const vpsColumns = `id, external_id, name, cpu_cores, ram_gb, storage_gb, image_id, network_type,
	public_ipv4, private_ip, owner_id, host_id, status, observed_status, pending_command,
	last_command_error, expires_at, expiration_action, auto_backups, start_on_create, cloud_init,
	created_at, updated_at`

func scanVPS(row rowScanner) (*store.VPS, error) {
	var (
		v       store.VPS
		hostID  sql.NullInt64
		expires sql.NullTime
	)
	err := row.Scan(&v.ID, &v.ExternalID, &v.Name, &v.CPUCores, &v.RAMGB, &v.StorageGB, &v.ImageID, &v.NetworkType,
		&v.PublicIPv4, &v.PrivateIP, &v.OwnerID, &hostID, &v.Status, &v.ObservedStatus, &v.PendingCommand,
		&v.LastCommandError, &expires, &v.ExpirationAction, &v.AutoBackups, &v.StartOnCreate, &v.CloudInit,
		&v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if hostID.Valid {
		id := hostID.Int64
		v.HostID = &id
	}
	if expires.Valid {
		t := expires.Time
		v.ExpiresAt = &t
	}
	return &v, nil
}

func (s *Store) CreateVPS(ctx context.Context, v *store.VPS) error {
	if v.ExternalID == uuid.Nil {
		v.ExternalID = uuid.New()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	if v.UpdatedAt.IsZero() {
		v.UpdatedAt = v.CreatedAt
	}

	var expires sql.NullTime
	if v.ExpiresAt != nil {
		expires = sql.NullTime{Time: v.ExpiresAt.UTC(), Valid: true}
	}

	query := `INSERT INTO vps (external_id, name, cpu_cores, ram_gb, storage_gb, image_id, network_type,
		public_ipv4, private_ip, owner_id, host_id, status, observed_status, pending_command,
		last_command_error, expires_at, expiration_action, auto_backups, start_on_create, cloud_init,
		created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`
	err := s.queryRow(ctx, query,
		v.ExternalID, v.Name, v.CPUCores, v.RAMGB, v.StorageGB, v.ImageID, string(v.NetworkType),
		v.PublicIPv4, v.PrivateIP, v.OwnerID, nullInt64(v.HostID), string(v.Status), string(v.ObservedStatus),
		string(v.PendingCommand), v.LastCommandError, expires, string(v.ExpirationAction), v.AutoBackups,
		v.StartOnCreate, v.CloudInit, v.CreatedAt.UTC(), v.UpdatedAt.UTC(),
	).Scan(&v.ID)
	if err != nil {
		if foreignKeyViolation(err) {
			return store.ErrNotFound
		}
		return mapDuplicate(err)
	}
	return nil
}

func (s *Store) VPSByID(ctx context.Context, id int64) (*store.VPS, error) {
	v, err := scanVPS(s.queryRow(ctx, `SELECT `+vpsColumns+` FROM vps WHERE id = ?`, id))
	return v, notFoundOr(err)
}

func (s *Store) ListVPS(ctx context.Context, filter store.VPSFilter) ([]store.VPS, error) {
	var (
		where []string
		args  []any
	)
	if filter.OwnerID != nil {
		where = append(where, "owner_id = ?")
		args = append(args, *filter.OwnerID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.ImageID != nil {
		where = append(where, "image_id = ?")
		args = append(args, *filter.ImageID)
	}

	query := `SELECT ` + vpsColumns + ` FROM vps`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	limit, offset := page(filter.Limit, filter.Offset)
	query += " ORDER BY id LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []store.VPS{}
	for rows.Next() {
		v, err := scanVPS(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func (s *Store) UpdateVPS(ctx context.Context, id int64, patch store.VPSPatch, at time.Time) (*store.VPS, error) {
	var (
		set  []string
		args []any
	)
	if patch.Name != nil {
		set = append(set, "name = ?")
		args = append(args, *patch.Name)
	}
	if patch.CPUCores != nil {
		set = append(set, "cpu_cores = ?")
		args = append(args, *patch.CPUCores)
	}
	if patch.RAMGB != nil {
		set = append(set, "ram_gb = ?")
		args = append(args, *patch.RAMGB)
	}
	if patch.StorageGB != nil {
		set = append(set, "storage_gb = ?")
		args = append(args, *patch.StorageGB)
	}
	if patch.AutoBackups != nil {
		set = append(set, "auto_backups = ?")
		args = append(args, *patch.AutoBackups)
	}
	if patch.ExpiresAt != nil {
		set = append(set, "expires_at = ?")
		args = append(args, patch.ExpiresAt.UTC())
	}
	if patch.ExpirationAction != nil {
		set = append(set, "expiration_action = ?")
		args = append(args, string(*patch.ExpirationAction))
	}
	set = append(set, "updated_at = ?")
	args = append(args, at.UTC(), id, string(lifecycle.StatusDeleting))

	res, err := s.exec(ctx, `UPDATE vps SET `+strings.Join(set, ", ")+` WHERE id = ? AND status <> ?`, args...)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		if _, err := s.VPSByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, store.ErrStatusChanged
	}
	return s.VPSByID(ctx, id)
}

// TransitionVPS is a single conditional UPDATE; the status predicate is the
// compare half of the swap.
func (s *Store) TransitionVPS(ctx context.Context, id int64, from, to lifecycle.Status, cmd lifecycle.Command, at time.Time) (*store.VPS, error) {
	res, err := s.exec(ctx,
		`UPDATE vps SET status = ?, pending_command = ?, last_command_error = '', updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(to), string(cmd), at.UTC(), id, string(from))
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}

	cur, err := s.VPSByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return cur, store.ErrStatusChanged
	}
	return cur, nil
}

func (s *Store) RecordObservation(ctx context.Context, id int64, obs store.Observation) (*store.VPS, error) {
	at := obs.At
	if at.IsZero() {
		at = time.Now()
	}
	cmd := string(obs.Command)
	res, err := s.exec(ctx,
		`UPDATE vps SET
			observed_status = CASE WHEN ? <> '' THEN ? ELSE observed_status END,
			last_command_error = CASE WHEN pending_command = ? THEN ? ELSE last_command_error END,
			pending_command = CASE WHEN pending_command = ? THEN '' ELSE pending_command END,
			updated_at = ?
		 WHERE id = ?`,
		string(obs.Observed), string(obs.Observed), cmd, obs.Err, cmd, at.UTC(), id)
	if err != nil {
		return nil, err
	}
	if err := requireRow(res); err != nil {
		return nil, err
	}
	return s.VPSByID(ctx, id)
}
