package sqlstore

import (
	"context"
	"time"

	"github.com/MrEthical07/goVPS/store"
)

const imageColumns = `id, name, os_type, version, format, description, is_public, is_active, created_at`

func scanImage(row rowScanner) (*store.Image, error) {
	var img store.Image
	err := row.Scan(&img.ID, &img.Name, &img.OSType, &img.Version, &img.Format, &img.Description,
		&img.IsPublic, &img.IsActive, &img.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &img, nil
}

func (s *Store) CreateImage(ctx context.Context, img *store.Image) error {
	if img.CreatedAt.IsZero() {
		img.CreatedAt = time.Now().UTC()
	}
	err := s.queryRow(ctx,
		`INSERT INTO images (name, os_type, version, format, description, is_public, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING id`,
		img.Name, img.OSType, img.Version, string(img.Format), img.Description, img.IsPublic, img.IsActive,
		img.CreatedAt.UTC(),
	).Scan(&img.ID)
	return mapDuplicate(err)
}

func (s *Store) ImageByID(ctx context.Context, id int64) (*store.Image, error) {
	img, err := scanImage(s.queryRow(ctx, `SELECT `+imageColumns+` FROM images WHERE id = ?`, id))
	return img, notFoundOr(err)
}

func (s *Store) ListImages(ctx context.Context, filter store.ImageFilter) ([]store.Image, error) {
	query := `SELECT ` + imageColumns + ` FROM images WHERE 1 = 1`
	var args []any
	if filter.PublicOnly {
		query += " AND is_public = ?"
		args = append(args, true)
	}
	if filter.ActiveOnly {
		query += " AND is_active = ?"
		args = append(args, true)
	}
	rows, err := s.query(ctx, query+" ORDER BY id", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []store.Image{}
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *img)
	}
	return out, rows.Err()
}

func (s *Store) SetImageActive(ctx context.Context, id int64, active bool) error {
	res, err := s.exec(ctx, `UPDATE images SET is_active = ? WHERE id = ?`, active, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

const hostColumns = `id, name, address, total_cpu, used_cpu, total_ram_gb, used_ram_gb,
	total_storage_gb, used_storage_gb, status, created_at`

func scanHost(row rowScanner) (*store.Host, error) {
	var h store.Host
	err := row.Scan(&h.ID, &h.Name, &h.Address, &h.TotalCPU, &h.UsedCPU, &h.TotalRAMGB, &h.UsedRAMGB,
		&h.TotalStorageGB, &h.UsedStorageGB, &h.Status, &h.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (s *Store) CreateHost(ctx context.Context, h *store.Host) error {
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	err := s.queryRow(ctx,
		`INSERT INTO hosts (name, address, total_cpu, used_cpu, total_ram_gb, used_ram_gb,
			total_storage_gb, used_storage_gb, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING id`,
		h.Name, h.Address, h.TotalCPU, h.UsedCPU, h.TotalRAMGB, h.UsedRAMGB,
		h.TotalStorageGB, h.UsedStorageGB, string(h.Status), h.CreatedAt.UTC(),
	).Scan(&h.ID)
	return mapDuplicate(err)
}

func (s *Store) HostByID(ctx context.Context, id int64) (*store.Host, error) {
	h, err := scanHost(s.queryRow(ctx, `SELECT `+hostColumns+` FROM hosts WHERE id = ?`, id))
	return h, notFoundOr(err)
}

func (s *Store) ListHosts(ctx context.Context) ([]store.Host, error) {
	rows, err := s.query(ctx, `SELECT `+hostColumns+` FROM hosts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []store.Host{}
	for rows.Next() {
		h, err := scanHost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *h)
	}
	return out, rows.Err()
}
