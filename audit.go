package goVPS

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/MrEthical07/goVPS/lifecycle"
	"github.com/MrEthical07/goVPS/store"
)

// AuditAction names what an audited operation did.
type AuditAction string

const (
	AuditCreate  AuditAction = "create"
	AuditUpdate  AuditAction = "update"
	AuditDelete  AuditAction = "delete"
	AuditStart   AuditAction = "start"
	AuditStop    AuditAction = "stop"
	AuditReboot  AuditAction = "reboot"
	AuditLogin   AuditAction = "login"
	AuditLogout  AuditAction = "logout"
	AuditRefresh AuditAction = "refresh"
)

// AuditResource names the kind of entity an event concerns.
type AuditResource string

const (
	ResourceVPS    AuditResource = "vps"
	ResourceUser   AuditResource = "user"
	ResourceHost   AuditResource = "host"
	ResourceImage  AuditResource = "image"
	ResourceSSHKey AuditResource = "ssh_key"
)

// AuditEvent is one audited operation. PriorStatus and NewStatus are set for
// VPS lifecycle transitions.
type AuditEvent struct {
	Timestamp   time.Time         `json:"timestamp"`
	Action      AuditAction       `json:"action"`
	Resource    AuditResource     `json:"resource"`
	ResourceID  string            `json:"resource_id,omitempty"`
	ActorID     string            `json:"actor_id,omitempty"`
	IP          string            `json:"ip,omitempty"`
	UserAgent   string            `json:"user_agent,omitempty"`
	Success     bool              `json:"success"`
	Error       string            `json:"error,omitempty"`
	PriorStatus lifecycle.Status  `json:"prior_status,omitempty"`
	NewStatus   lifecycle.Status  `json:"new_status,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// AuditSink receives audit events. Errors are logged by the engine and never
// reach the caller of the audited operation.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent) error
}

// AuditSinkFunc adapts a function to AuditSink.
type AuditSinkFunc func(ctx context.Context, event AuditEvent) error

func (f AuditSinkFunc) Emit(ctx context.Context, event AuditEvent) error {
	return f(ctx, event)
}

type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, AuditEvent) error { return nil }

// ChannelSink forwards events to a buffered channel, mostly for tests.
type ChannelSink struct {
	events chan AuditEvent
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan AuditEvent, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) error {
	select {
	case s.events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(_ context.Context, event AuditEvent) error {
	if s == nil || s.writer == nil {
		return nil
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.writer.Write(data)
	return err
}

// AuditRecorder persists audit records, typically into an audit_logs table.
type AuditRecorder interface {
	AppendAudit(ctx context.Context, rec *store.AuditRecord) error
}

// RecorderSink stores events through an AuditRecorder. Fields without a
// dedicated column are kept as a JSON document in Details.
type RecorderSink struct {
	recorder AuditRecorder
}

func NewRecorderSink(r AuditRecorder) *RecorderSink {
	return &RecorderSink{recorder: r}
}

type auditDetails struct {
	Error       string            `json:"error,omitempty"`
	PriorStatus lifecycle.Status  `json:"prior_status,omitempty"`
	NewStatus   lifecycle.Status  `json:"new_status,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func (s *RecorderSink) Emit(ctx context.Context, event AuditEvent) error {
	rec := store.AuditRecord{
		Action:     string(event.Action),
		Resource:   string(event.Resource),
		ResourceID: event.ResourceID,
		ActorID:    event.ActorID,
		IP:         event.IP,
		UserAgent:  event.UserAgent,
		Success:    event.Success,
		CreatedAt:  event.Timestamp,
	}
	details := auditDetails{
		Error:       event.Error,
		PriorStatus: event.PriorStatus,
		NewStatus:   event.NewStatus,
		Metadata:    event.Metadata,
	}
	if details.Error != "" || details.PriorStatus != "" || details.NewStatus != "" || len(details.Metadata) > 0 {
		data, err := json.Marshal(details)
		if err != nil {
			return err
		}
		rec.Details = string(data)
	}
	return s.recorder.AppendAudit(ctx, &rec)
}
