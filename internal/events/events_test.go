package events

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	var r Recorder
	ctx := context.Background()

	require.NoError(t, r.Publish(ctx, Event{Type: ClaimQueued, UID: "bob"}))
	require.NoError(t, r.Publish(ctx, Event{Type: ClaimSettled, UID: "bob"}))
	require.NoError(t, r.Publish(ctx, Event{Type: ClaimQueued, UID: "bob"}))

	assert.Equal(t, 2, r.Count(ClaimQueued))
	assert.Equal(t, 1, r.Count(ClaimSettled))
	assert.Equal(t, 0, r.Count(BalanceRefreshed))
	assert.Len(t, r.Events(), 3)
}

func TestNop(t *testing.T) {
	require.NoError(t, Nop{}.Publish(context.Background(), Event{Type: ClaimFailed}))
}

func TestBus_PublishSubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := NewBus(zerolog.Nop(), 8)
	defer func() { _ = bus.Close() }()

	ch, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, Event{Type: BalanceRefreshed, UID: "bob", Balance: 150}))
	require.NoError(t, bus.Publish(ctx, Event{Type: ClaimSettled, UID: "bob", Nonce: "abcdefghijkl"}))

	got := make(map[Type]Event)
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case e := <-ch:
			got[e.Type] = e
		case <-timeout:
			t.Fatalf("timed out waiting for events, got %v", got)
		}
	}

	assert.Equal(t, int64(150), got[BalanceRefreshed].Balance)
	assert.Equal(t, "abcdefghijkl", got[ClaimSettled].Nonce)
}

func TestBus_PublishWithoutSubscribers(t *testing.T) {
	bus := NewBus(zerolog.Nop(), 1)
	defer func() { _ = bus.Close() }()

	require.NoError(t, bus.Publish(context.Background(), Event{Type: ClaimQueued}))
}

func TestZerologAdapter(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewZerologAdapter(zerolog.New(&buf).Level(zerolog.TraceLevel))

	adapter.With(watermill.LogFields{"topic": Topic}).Info("subscribed", watermill.LogFields{"n": 1})
	adapter.Error("publish failed", errors.New("closed"), nil)

	out := buf.String()
	assert.Contains(t, out, `"topic":"paytoken.events"`)
	assert.Contains(t, out, `"message":"subscribed"`)
	assert.Contains(t, out, `"error":"closed"`)
}
