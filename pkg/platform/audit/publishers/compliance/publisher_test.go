package compliance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "custodia/pkg/platform/audit"
	"custodia/pkg/platform/audit/store/memory"
	"custodia/pkg/platform/tx"
	"custodia/pkg/requestcontext"
)

type failingStore struct{}

func (failingStore) Append(context.Context, audit.Event) error {
	return errors.New("outbox unavailable")
}

func TestPublisher_Emit(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)
	ctx = requestcontext.WithCaller(ctx, "policy-admin")
	ctx = requestcontext.WithRequestID(ctx, "req-1")

	t.Run("fills timestamp actor and request id from context", func(t *testing.T) {
		store := memory.NewInMemoryStore()
		pub := New(store)

		require.NoError(t, pub.Emit(ctx, audit.ComplianceEvent{Action: audit.EventRuleSetRegistered, Subject: "R1"}))

		events, err := store.ListBySubject(ctx, "R1")
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, now, events[0].Timestamp)
		assert.Equal(t, "policy-admin", events[0].ActorID)
		assert.Equal(t, "req-1", events[0].RequestID)
		assert.Equal(t, audit.CategoryCompliance, events[0].Category)
	})

	t.Run("rejects events without action or subject", func(t *testing.T) {
		pub := New(memory.NewInMemoryStore())
		assert.Error(t, pub.Emit(ctx, audit.ComplianceEvent{Subject: "R1"}))
		assert.Error(t, pub.Emit(ctx, audit.ComplianceEvent{Action: audit.EventRuleSetRegistered}))
	})

	t.Run("store failure is returned to the caller", func(t *testing.T) {
		pub := New(failingStore{})
		err := pub.Emit(ctx, audit.ComplianceEvent{Action: audit.EventTokenWrapped, Subject: "env"})
		assert.ErrorContains(t, err, "outbox unavailable")
	})

	t.Run("event is withdrawn when the ledger transaction rolls back", func(t *testing.T) {
		store := memory.NewInMemoryStore()
		pub := New(store)
		ledger := tx.NewLedger()

		err := ledger.RunInTx(ctx, func(ctx context.Context) error {
			if err := pub.Emit(ctx, audit.ComplianceEvent{Action: audit.EventRepoExecuted, Subject: "repo"}); err != nil {
				return err
			}
			return errors.New("custody transfer failed")
		})
		require.Error(t, err)

		events, err := store.ListAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, events)
	})
}
