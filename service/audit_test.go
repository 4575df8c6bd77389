package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/effectmoe/contract-system/model"
)

type recordingAuditStore struct {
	entries []model.AuditEntry
	ctxErr  error
	err     error
}

func (r *recordingAuditStore) AppendAudit(ctx context.Context, _ string, entry model.AuditEntry) error {
	r.ctxErr = ctx.Err()
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, entry)
	return nil
}

func TestAuditAppendStampsEntry(t *testing.T) {
	store := &recordingAuditStore{}
	appender := NewAuditAppender(store, time.Second)
	fixed := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	appender.now = func() time.Time { return fixed }
	appender.newID = func() string { return "entry-1" }

	appender.Append(context.Background(), "c-1", model.AIAnalyzed{RisksFound: 2, Model: "m"}, "alice")

	require.Len(t, store.entries, 1)
	e := store.entries[0]
	assert.Equal(t, "entry-1", e.ID)
	assert.Equal(t, model.ActionAIAnalyzed, e.Action)
	assert.Equal(t, "alice", e.PerformedBy)
	assert.Equal(t, fixed, e.Timestamp)
	assert.Equal(t, 2, e.Details["risksFound"])
}

func TestAuditAppendSwallowsErrors(t *testing.T) {
	store := &recordingAuditStore{err: errors.New("write failed")}
	appender := NewAuditAppender(store, time.Second)

	assert.NotPanics(t, func() {
		appender.Append(context.Background(), "c-1", model.Viewed{Resource: "audit"}, "bob")
	})
	assert.Empty(t, store.entries)
}

func TestAuditAppendSurvivesCancelledRequest(t *testing.T) {
	store := &recordingAuditStore{}
	appender := NewAuditAppender(store, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	appender.Append(ctx, "c-1", model.Updated{Fields: []string{"title"}}, "carol")

	assert.NoError(t, store.ctxErr)
	assert.Len(t, store.entries, 1)
}

func TestAuditAppendIsAppendOnly(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t, &model.Contract{ID: "c-1"})
	appender := NewAuditAppender(repo, time.Second)

	appender.Append(ctx, "c-1", model.Created{Title: "A"}, "alice")
	appender.Append(ctx, "c-1", model.Updated{Fields: []string{"title"}}, "alice")
	appender.Append(ctx, "missing", model.Updated{}, "alice")

	c, err := repo.Get(ctx, "c-1")
	require.NoError(t, err)
	require.Len(t, c.AuditLog, 2)
	assert.Equal(t, model.ActionCreated, c.AuditLog[0].Action)
	assert.Equal(t, model.ActionUpdated, c.AuditLog[1].Action)
	assert.NotEqual(t, c.AuditLog[0].ID, c.AuditLog[1].ID)
}
