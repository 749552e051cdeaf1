package sqlstore

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/MrEthical07/goVPS/store"
	"github.com/google/uuid"
)

const accountColumns = `id, external_id, email, username, password_hash, full_name, role,
	active, email_verified, totp_secret, totp_enabled, created_at, updated_at, last_login_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*store.Account, error) {
	var (
		a         store.Account
		lastLogin sql.NullTime
	)
	err := row.Scan(&a.ID, &a.ExternalID, &a.Email, &a.Username, &a.PasswordHash, &a.FullName, &a.Role,
		&a.Active, &a.EmailVerified, &a.TOTPSecret, &a.TOTPEnabled, &a.CreatedAt, &a.UpdatedAt, &lastLogin)
	if err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		a.LastLoginAt = &t
	}
	return &a, nil
}

func (s *Store) CreateAccount(ctx context.Context, a *store.Account) error {
	if a.ExternalID == uuid.Nil {
		a.ExternalID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = a.CreatedAt
	}

	query := `INSERT INTO accounts (external_id, email, email_key, username, username_key, password_hash,
		full_name, role, active, email_verified, totp_secret, totp_enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`
	err := s.queryRow(ctx, query,
		a.ExternalID, a.Email, store.NormalizeEmail(a.Email), a.Username, store.NormalizeUsername(a.Username),
		a.PasswordHash, a.FullName, string(a.Role), a.Active, a.EmailVerified, a.TOTPSecret, a.TOTPEnabled,
		a.CreatedAt.UTC(), a.UpdatedAt.UTC(),
	).Scan(&a.ID)
	if err != nil {
		return mapAccountErr(err)
	}
	return nil
}

func (s *Store) AccountByID(ctx context.Context, id int64) (*store.Account, error) {
	a, err := scanAccount(s.queryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id))
	return a, notFoundOr(err)
}

func (s *Store) AccountByEmail(ctx context.Context, email string) (*store.Account, error) {
	a, err := scanAccount(s.queryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email_key = ?`, store.NormalizeEmail(email)))
	return a, notFoundOr(err)
}

func (s *Store) AccountByUsername(ctx context.Context, username string) (*store.Account, error) {
	a, err := scanAccount(s.queryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE username_key = ?`, store.NormalizeUsername(username)))
	return a, notFoundOr(err)
}

func (s *Store) ListAccounts(ctx context.Context, filter store.AccountFilter) ([]store.Account, error) {
	var (
		where []string
		args  []any
	)
	if filter.Role != "" {
		where = append(where, "role = ?")
		args = append(args, string(filter.Role))
	}
	if filter.Active != nil {
		where = append(where, "active = ?")
		args = append(args, *filter.Active)
	}

	query := `SELECT ` + accountColumns + ` FROM accounts`
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

	out := []store.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *Store) UpdateAccount(ctx context.Context, id int64, patch store.AccountPatch, at time.Time) (*store.Account, error) {
	var (
		set  []string
		args []any
	)
	if patch.Email != nil {
		set = append(set, "email = ?", "email_key = ?")
		args = append(args, *patch.Email, store.NormalizeEmail(*patch.Email))
	}
	if patch.Username != nil {
		set = append(set, "username = ?", "username_key = ?")
		args = append(args, *patch.Username, store.NormalizeUsername(*patch.Username))
	}
	if patch.FullName != nil {
		set = append(set, "full_name = ?")
		args = append(args, *patch.FullName)
	}
	if patch.PasswordHash != nil {
		set = append(set, "password_hash = ?")
		args = append(args, *patch.PasswordHash)
	}
	if patch.Role != nil {
		set = append(set, "role = ?")
		args = append(args, string(*patch.Role))
	}
	if patch.Active != nil {
		set = append(set, "active = ?")
		args = append(args, *patch.Active)
	}
	if patch.TOTPSecret != nil {
		set = append(set, "totp_secret = ?")
		args = append(args, *patch.TOTPSecret)
	}
	if patch.TOTPEnabled != nil {
		set = append(set, "totp_enabled = ?")
		args = append(args, *patch.TOTPEnabled)
	}
	set = append(set, "updated_at = ?")
	args = append(args, at.UTC(), id)

	res, err := s.exec(ctx, `UPDATE accounts SET `+strings.Join(set, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, mapAccountErr(err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, store.ErrNotFound
	}
	return s.AccountByID(ctx, id)
}

func (s *Store) SetLastLogin(ctx context.Context, id int64, at time.Time) error {
	res, err := s.exec(ctx, `UPDATE accounts SET last_login_at = ? WHERE id = ?`, at.UTC(), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) DeleteAccount(ctx context.Context, id int64) error {
	var owned int
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM vps WHERE owner_id = ?`, id).Scan(&owned); err != nil {
		return err
	}
	if owned > 0 {
		return store.ErrInUse
	}
	res, err := s.exec(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		if foreignKeyViolation(err) {
			return store.ErrInUse
		}
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
