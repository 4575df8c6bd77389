package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/effectmoe/contract-system/model"
	"github.com/effectmoe/contract-system/pkg/logger"
	"github.com/effectmoe/contract-system/pkg/metrics"
)

type auditStore interface {
	AppendAudit(ctx context.Context, id string, entry model.AuditEntry) error
}

// AuditAppender records actions on a contract's audit log. Appending is
// best effort: failures are logged and never reach the caller.
type AuditAppender struct {
	store   auditStore
	timeout time.Duration
	now     func() time.Time
	newID   func() string
}

// NewAuditAppender creates an appender writing to store, bounding each write by timeout.
func NewAuditAppender(store auditStore, timeout time.Duration) *AuditAppender {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AuditAppender{
		store:   store,
		timeout: timeout,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Append adds one entry for action to the contract's log. It runs even if
// ctx was cancelled, since the action it records has already happened.
func (a *AuditAppender) Append(ctx context.Context, contractID string, action model.AuditAction, actor string) {
	entry := model.AuditEntry{
		ID:          a.newID(),
		Action:      action.Tag(),
		PerformedBy: actor,
		Timestamp:   a.now(),
		Details:     action.Details(),
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
	defer cancel()

	if err := a.store.AppendAudit(writeCtx, contractID, entry); err != nil {
		metrics.AuditFailure()
		logger.Error(ctx, "failed to append audit entry",
			"contract_id", contractID,
			"action", entry.Action,
			"error", err,
		)
	}
}
