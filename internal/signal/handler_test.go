package signal

import (
	"context"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_FirstSignalCancels(t *testing.T) {
	h := NewHandler(context.Background())
	defer h.Stop()

	require.NoError(t, h.Context().Err())
	assert.Nil(t, h.Signal())

	h.handleSignal(syscall.SIGTERM)

	assert.ErrorIs(t, h.Context().Err(), context.Canceled)
	assert.Equal(t, syscall.SIGTERM, h.Signal())
	select {
	case <-h.Interrupted():
	default:
		t.Fatal("interrupted channel should be closed after a signal")
	}
}

func TestHandler_SecondSignalForces(t *testing.T) {
	var forced atomic.Int32
	h := NewHandler(context.Background(), WithForce(func() { forced.Add(1) }))
	defer h.Stop()

	h.handleSignal(syscall.SIGINT)
	assert.Zero(t, forced.Load())

	h.handleSignal(syscall.SIGINT)
	h.handleSignal(syscall.SIGINT)
	assert.Equal(t, int32(1), forced.Load())
	assert.Equal(t, syscall.SIGINT, h.Signal())
}

func TestHandler_ListenDeliversSignals(t *testing.T) {
	var forced atomic.Int32
	h := NewHandler(context.Background(), WithForce(func() { forced.Add(1) }))
	defer h.Stop()

	h.sigChan <- syscall.SIGINT
	h.sigChan <- syscall.SIGINT

	assert.Eventually(t, func() bool { return forced.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Error(t, h.Context().Err())
}

func TestHandler_Stop(t *testing.T) {
	h := NewHandler(context.Background())
	h.Stop()
	h.Stop()

	assert.Error(t, h.Context().Err())
	select {
	case <-h.Interrupted():
		t.Fatal("stop is not an interrupt")
	default:
	}
}

func TestHandler_ParentCanceled(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	h := NewHandler(parent)
	defer h.Stop()

	cancel()
	assert.Error(t, h.Context().Err())
}
