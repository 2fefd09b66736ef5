package model

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Interface compliance (compile-time assertion)
var _ Runner = (*MockRunner)(nil)

func TestMockRunner_CannedAndFallback(t *testing.T) {
	m := NewMockRunner()
	m.AddResponse("hello", "<hello>")

	text, err := m.Run(context.Background(), Request{RequestID: "r1", Prompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "<hello>", text)

	text, err = m.Run(context.Background(), Request{RequestID: "r2", Prompt: "other"})
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: other", text)

	calls := m.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "hello", calls[0].Prompt)
}

func TestMockRunner_FailWith(t *testing.T) {
	m := NewMockRunner()
	cause := errors.New("no capacity")
	m.FailWith(cause)

	_, err := m.Run(context.Background(), Request{RequestID: "r1", Prompt: "x"})

	assert.ErrorIs(t, err, cause)
}

func TestMockRunner_CancelResolvesBlockedRun(t *testing.T) {
	m := NewMockRunner()
	m.Block(true)

	errCh := make(chan error, 1)
	go func() {
		_, err := m.Run(context.Background(), Request{RequestID: "r1", Prompt: "x"})
		errCh <- err
	}()

	require.Eventually(t, func() bool { return m.Cancel("r1") }, time.Second, time.Millisecond)

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrCancelled)
	case <-time.After(time.Second):
		t.Fatal("blocked run did not resolve after cancel")
	}

	// Once resolved the request is no longer cancellable.
	select {
	case <-m.Resolved("r1"):
	case <-time.After(time.Second):
		t.Fatal("resolved channel never closed")
	}
	assert.False(t, m.Cancel("r1"))
}

func TestMockRunner_DeadlineResolvesAsTimeout(t *testing.T) {
	m := NewMockRunner()
	m.Block(true)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := m.Run(ctx, Request{RequestID: "r1", Prompt: "x"})

	assert.ErrorIs(t, err, ErrTimeout)
}

func TestCancelRegistry_UnknownRequest(t *testing.T) {
	r := NewCancelRegistry()

	assert.False(t, r.Cancel("ghost"))

	// Unknown ids yield an already closed channel.
	select {
	case <-r.Resolved("ghost"):
	default:
		t.Fatal("expected closed channel for unknown request")
	}
}

func TestCancelRegistry_TrackAndRelease(t *testing.T) {
	r := NewCancelRegistry()

	ctx, release := r.Track(context.Background(), "r1")
	resolved := r.Resolved("r1")

	select {
	case <-resolved:
		t.Fatal("request resolved before release")
	default:
	}

	release()

	select {
	case <-resolved:
	case <-time.After(time.Second):
		t.Fatal("release did not close resolved channel")
	}
	assert.Error(t, ctx.Err()) // release cancels the derived context
}
