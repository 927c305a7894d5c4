package security

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "custodia/pkg/platform/audit"
	"custodia/pkg/platform/audit/store/memory"
	"custodia/pkg/requestcontext"
)

func TestPublisher_FlushPersistsBufferedEvents(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := New(store)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)

	pub.Emit(ctx, audit.SecurityEvent{Action: audit.EventTransferRejected, Subject: "env-1", Reason: "sender_sanctioned"})
	assert.Equal(t, 1, pub.Pending())

	pub.Flush(ctx)
	assert.Equal(t, 0, pub.Pending())

	events, err := store.ListBySubject(ctx, "env-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.CategorySecurity, events[0].Category)
	assert.Equal(t, "sender_sanctioned", events[0].Reason)
	assert.Equal(t, now, events[0].Timestamp)
	assert.Equal(t, string(audit.SeverityWarning), events[0].Decision)
}

func TestPublisher_OverflowDropsOldest(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := New(store, WithCapacity(2))
	ctx := context.Background()

	for _, subject := range []string{"a", "b", "c"} {
		pub.Emit(ctx, audit.SecurityEvent{Action: audit.EventTransferRejected, Subject: subject})
	}
	assert.Equal(t, int64(1), pub.Dropped())

	pub.Flush(ctx)
	events, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "b", events[0].Subject)
	assert.Equal(t, "c", events[1].Subject)
}

func TestPublisher_RunDrainsOnShutdown(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := New(store, WithFlushInterval(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())

	pub.Emit(ctx, audit.SecurityEvent{Action: audit.EventRoleRevoked, Subject: "party-1"})

	done := make(chan error, 1)
	go func() { done <- pub.Run(ctx) }()
	cancel()
	require.NoError(t, <-done)

	events, err := store.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
