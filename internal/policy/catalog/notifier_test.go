package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custodia/pkg/platform/circuit"
)

type recordingPublisher struct {
	mu       sync.Mutex
	messages [][]byte
	fail     bool
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, _, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker unavailable")
	}
	p.messages = append(p.messages, value)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifierPublishesQueuedEntries(t *testing.T) {
	pub := &recordingPublisher{}
	n := New(pub, "policy.catalog", WithLogger(quietLogger()))

	n.Notify(context.Background(), Entry{Event: EventRegistered, RuleSetID: "R1", RuleType: "kyc"})
	n.Notify(context.Background(), Entry{Event: EventRegistered, RuleSetID: "R2", RuleType: "aml"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = n.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return pub.count() == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	var first Entry
	require.NoError(t, json.Unmarshal(pub.messages[0], &first))
	assert.Equal(t, "R1", first.RuleSetID)
}

func TestNotifierDropsWhenQueueFull(t *testing.T) {
	pub := &recordingPublisher{}
	n := New(pub, "policy.catalog", WithLogger(quietLogger()), WithQueueSize(1))

	n.Notify(context.Background(), Entry{RuleSetID: "R1"})
	n.Notify(context.Background(), Entry{RuleSetID: "R2"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, n.Run(ctx))
	assert.Equal(t, 1, pub.count())
}

func TestNotifierFailuresOpenBreaker(t *testing.T) {
	pub := &recordingPublisher{fail: true}
	breaker := circuit.New("catalog", circuit.WithFailureThreshold(2), circuit.WithSuccessThreshold(1))
	n := New(pub, "policy.catalog", WithLogger(quietLogger()), WithBreaker(breaker))

	n.publish(context.Background(), Entry{RuleSetID: "R1"})
	n.publish(context.Background(), Entry{RuleSetID: "R2"})
	assert.True(t, breaker.IsOpen())

	pub.fail = false
	n.publish(context.Background(), Entry{RuleSetID: "R3"})
	assert.False(t, breaker.IsOpen())
	assert.Equal(t, 1, pub.count())
}
