package goWA

import (
	"context"
	"errors"

	"github.com/MrEthical07/goWA/internal/audit"
)

const (
	auditEventSessionCreated      = "session_created"
	auditEventSessionCreateFailed = "session_create_failed"
	auditEventSessionDuplicate    = "session_duplicate"
	auditEventSessionRemoved      = "session_removed"
	auditEventSessionRemoveFailed = "session_remove_failed"
	auditEventSessionTransition   = "session_transition"
	auditEventSessionLoggedOut    = "session_logged_out"
	auditEventMessageSent         = "message_sent"
	auditEventMessageFailed       = "message_failed"
)

// AuditErrorCode is the stable error classification recorded on audit events.
type AuditErrorCode string

const (
	auditErrDuplicate         AuditErrorCode = "duplicate"
	auditErrSessionNotFound   AuditErrorCode = "session_not_found"
	auditErrValidation        AuditErrorCode = "validation"
	auditErrTimeout           AuditErrorCode = "timeout"
	auditErrClientUnavailable AuditErrorCode = "client_unavailable"
	auditErrExternalClient    AuditErrorCode = "external_client"
	auditErrCanceled          AuditErrorCode = "canceled"
	auditErrInternal          AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	sessionID string,
	tenantID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}
	e.audit.Emit(ctx, newAuditEvent(ctx, eventType, success, sessionID, tenantID, err, metadataBuilder))
}

func (e *Engine) emitAuditRecipient(
	ctx context.Context,
	eventType string,
	success bool,
	sessionID string,
	recipient string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}
	event := newAuditEvent(ctx, eventType, success, sessionID, "", err, metadataBuilder)
	event.Recipient = recipient
	e.audit.Emit(ctx, event)
}

func newAuditEvent(
	ctx context.Context,
	eventType string,
	success bool,
	sessionID string,
	tenantID string,
	err error,
	metadataBuilder func() map[string]string,
) audit.Event {
	if tenantID == "" {
		tenantID = tenantIDFromContext(ctx)
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}
	if rid := RequestIDFromContext(ctx); rid != "" {
		if metadata == nil {
			metadata = make(map[string]string, 1)
		}
		metadata["request_id"] = rid
	}

	event := audit.Event{
		EventType: eventType,
		TenantID:  tenantID,
		SessionID: sessionID,
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}
	return event
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrDuplicateSession):
		return auditErrDuplicate
	case errors.Is(err, ErrSessionNotFound):
		return auditErrSessionNotFound
	case errors.Is(err, ErrValidation):
		return auditErrValidation
	case errors.Is(err, ErrClientTimeout):
		return auditErrTimeout
	case errors.Is(err, ErrClientUnavailable):
		return auditErrClientUnavailable
	case errors.Is(err, context.Canceled):
		return auditErrCanceled
	case errors.Is(err, ErrExternalClient):
		return auditErrExternalClient
	default:
		return auditErrInternal
	}
}
