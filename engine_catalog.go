package goVPS

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrEthical07/goVPS/lifecycle"
	"github.com/MrEthical07/goVPS/permission"
	"github.com/MrEthical07/goVPS/store"
)

/*
====================================
IMAGES
====================================
*/

// CreateImage registers an OS image. New images are active.
func (e *Engine) CreateImage(ctx context.Context, p Principal, img store.Image) (*store.Image, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	audit := AuditEvent{Action: AuditCreate, Resource: ResourceImage, ActorID: formatID(p.AccountID)}
	if err := e.Authorize(p, permission.ImageUpload); err != nil {
		e.emitAudit(ctx, audit, err)
		return nil, err
	}

	img.Name = strings.TrimSpace(img.Name)
	if img.Name == "" {
		return nil, fmt.Errorf("%w: image name is required", ErrValidation)
	}
	if strings.TrimSpace(img.OSType) == "" {
		return nil, fmt.Errorf("%w: os_type is required", ErrValidation)
	}
	if img.Format == "" {
		img.Format = store.ImageQCOW2
	}
	if !img.Format.Valid() {
		return nil, fmt.Errorf("%w: unknown image format %q", ErrValidation, img.Format)
	}
	img.ID = 0
	img.IsActive = true
	img.CreatedAt = e.now().UTC()

	if err := e.store.CreateImage(ctx, &img); err != nil {
		err = mapStoreErr(err)
		e.emitAudit(ctx, audit, err)
		return nil, err
	}
	audit.ResourceID = formatID(img.ID)
	audit.Metadata = map[string]string{"name": img.Name}
	e.emitAudit(ctx, audit, nil)
	return &img, nil
}

// ListImages lists images p may choose from. Callers without image:upload
// only see public, active images.
func (e *Engine) ListImages(ctx context.Context, p Principal) ([]store.Image, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	filter := store.ImageFilter{}
	if !e.access.Table().Check(p.Role, permission.ImageUpload) {
		filter.PublicOnly = true
		filter.ActiveOnly = true
	}
	return e.store.ListImages(ctx, filter)
}

// GetImage returns one image. Callers without image:upload only see public,
// active images; anything else is reported as not found.
func (e *Engine) GetImage(ctx context.Context, p Principal, id int64) (*store.Image, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	img, err := e.store.ImageByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, notFound("image", id)
		}
		return nil, err
	}
	if !e.access.Table().Check(p.Role, permission.ImageUpload) && (!img.IsPublic || !img.IsActive) {
		return nil, notFound("image", id)
	}
	return img, nil
}

// DeactivateImage hides an image from new instances. It fails with a
// conflict while any instance that is not being deleted still uses it.
func (e *Engine) DeactivateImage(ctx context.Context, p Principal, id int64) error {
	if err := e.ready(); err != nil {
		return err
	}
	audit := AuditEvent{Action: AuditDelete, Resource: ResourceImage, ResourceID: formatID(id), ActorID: formatID(p.AccountID)}
	if err := e.Authorize(p, permission.ImageDelete); err != nil {
		e.emitAudit(ctx, audit, err)
		return err
	}
	if _, err := e.store.ImageByID(ctx, id); err != nil {
		if isNotFound(err) {
			return notFound("image", id)
		}
		return err
	}

	imageID := id
	users, err := e.store.ListVPS(ctx, store.VPSFilter{ImageID: &imageID})
	if err != nil {
		return err
	}
	for _, v := range users {
		if v.Status != lifecycle.StatusDeleting {
			err := fmt.Errorf("%w: image %d is in use by vps %d", ErrConflict, id, v.ID)
			e.emitAudit(ctx, audit, err)
			return err
		}
	}

	if err := e.store.SetImageActive(ctx, id, false); err != nil {
		err = mapStoreErr(err)
		e.emitAudit(ctx, audit, err)
		return err
	}
	e.emitAudit(ctx, audit, nil)
	return nil
}

/*
====================================
HOSTS
====================================
*/

// CreateHost registers a hypervisor node for capacity bookkeeping.
func (e *Engine) CreateHost(ctx context.Context, p Principal, h store.Host) (*store.Host, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	audit := AuditEvent{Action: AuditCreate, Resource: ResourceHost, ActorID: formatID(p.AccountID)}
	if err := e.Authorize(p, permission.HostManage); err != nil {
		e.emitAudit(ctx, audit, err)
		return nil, err
	}

	h.Name = strings.TrimSpace(h.Name)
	if h.Name == "" {
		return nil, fmt.Errorf("%w: host name is required", ErrValidation)
	}
	if h.TotalCPU < 0 || h.TotalRAMGB < 0 || h.TotalStorageGB < 0 {
		return nil, fmt.Errorf("%w: host capacity must not be negative", ErrValidation)
	}
	if h.Status == "" {
		h.Status = store.HostOnline
	}
	if !h.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown host status %q", ErrValidation, h.Status)
	}
	h.ID = 0
	h.CreatedAt = e.now().UTC()

	if err := e.store.CreateHost(ctx, &h); err != nil {
		err = mapStoreErr(err)
		e.emitAudit(ctx, audit, err)
		return nil, err
	}
	audit.ResourceID = formatID(h.ID)
	audit.Metadata = map[string]string{"name": h.Name}
	e.emitAudit(ctx, audit, nil)
	return &h, nil
}

func (e *Engine) GetHost(ctx context.Context, p Principal, id int64) (*store.Host, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.Authorize(p, permission.HostRead); err != nil {
		return nil, err
	}
	h, err := e.store.HostByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, notFound("host", id)
		}
		return nil, err
	}
	return h, nil
}

func (e *Engine) ListHosts(ctx context.Context, p Principal) ([]store.Host, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.Authorize(p, permission.HostRead); err != nil {
		return nil, err
	}
	return e.store.ListHosts(ctx)
}
