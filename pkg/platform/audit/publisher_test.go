package audit_test

import (
	"context"
	"testing"

	id "presence/pkg/domain"
	audit "presence/pkg/platform/audit"
	"presence/pkg/platform/audit/store/memory"
	"presence/pkg/requestcontext"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisher_EmitFillsMetadata(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := audit.NewPublisher(store)

	ctx := requestcontext.WithRequestID(context.Background(), "req-42")
	ctx = requestcontext.WithClientMetadata(ctx, "10.1.2.3", "test-agent")

	attendantID := id.AttendantID(uuid.New())
	err := pub.Emit(ctx, audit.Event{
		AttendantID: attendantID,
		Action:      string(audit.EventClockInRejected),
	})
	require.NoError(t, err)

	events, err := store.ListByAttendant(ctx, attendantID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.CategorySecurity, events[0].Category)
	assert.Equal(t, "req-42", events[0].RequestID)
	assert.Equal(t, "10.1.2.3", events[0].ClientIP)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestPublisher_PreservesExplicitCategory(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := audit.NewPublisher(store)

	err := pub.Emit(context.Background(), audit.Event{
		Category: audit.CategoryCompliance,
		Action:   string(audit.EventCenterUpdated),
	})
	require.NoError(t, err)

	events, err := store.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.CategoryCompliance, events[0].Category)
}

func TestAuditEvent_Category(t *testing.T) {
	assert.Equal(t, audit.CategoryCompliance, audit.EventClockInRecorded.Category())
	assert.Equal(t, audit.CategoryCompliance, audit.EventClockOutRecorded.Category())
	assert.Equal(t, audit.CategorySecurity, audit.EventSessionFlagged.Category())
	assert.Equal(t, audit.CategoryOperations, audit.EventCenterCreated.Category())
	assert.Equal(t, audit.CategoryOperations, audit.AuditEvent("unknown").Category())
}
