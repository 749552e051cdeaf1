package sqlstore

import (
	"context"
	"time"

	"github.com/MrEthical07/goVPS/store"
)

// AppendAudit inserts rec into audit_logs and assigns its ID.
func (s *Store) AppendAudit(ctx context.Context, rec *store.AuditRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return s.queryRow(ctx,
		`INSERT INTO audit_logs (action, resource, resource_id, actor_id, ip, user_agent, success, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING id`,
		rec.Action, rec.Resource, rec.ResourceID, rec.ActorID, rec.IP, rec.UserAgent, rec.Success, rec.Details,
		rec.CreatedAt.UTC(),
	).Scan(&rec.ID)
}

// ListAudit returns the newest entries for one resource first. An empty
// resourceID matches every entity of that resource kind.
func (s *Store) ListAudit(ctx context.Context, resource, resourceID string, limit int) ([]store.AuditRecord, error) {
	query := `SELECT id, action, resource, resource_id, actor_id, ip, user_agent, success, details, created_at
		FROM audit_logs WHERE resource = ?`
	args := []any{resource}
	if resourceID != "" {
		query += " AND resource_id = ?"
		args = append(args, resourceID)
	}
	l, _ := page(limit, 0)
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, l)

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []store.AuditRecord{}
	for rows.Next() {
		var r store.AuditRecord
		if err := rows.Scan(&r.ID, &r.Action, &r.Resource, &r.ResourceID, &r.ActorID, &r.IP, &r.UserAgent,
			&r.Success, &r.Details, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
