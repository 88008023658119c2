package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/campus-widgets/backend/internal/model/persona"
	"github.com/zhouzirui/campus-widgets/backend/internal/service/reply"
	"github.com/zhouzirui/campus-widgets/backend/internal/service/typing"
)

type sendResult struct {
	err error
}

// Send 与 EndSession 交错时，TTL 刷新不能让已结束的会话重新出现在存储中。
func TestSendDoesNotRestoreEndedSession(t *testing.T) {
	store := persona.NewMemoryStore(persona.Seed())
	replies, err := reply.NewService(context.Background(), store, reply.NewSource(1), nil)
	require.NoError(t, err)
	svc := NewService(store, replies, Config{DelayScale: 1, Clock: typing.NewManualClock(time.Unix(0, 0))}, nil)
	t.Cleanup(svc.Close)

	ctx := context.Background()
	session, err := svc.CreateSession(ctx, "xiaoke")
	require.NoError(t, err)

	conv, ok := svc.sessions.Peek(session.ID)
	require.True(t, ok)

	conv.mu.Lock()
	sent := make(chan sendResult, 1)
	go func() {
		_, err := svc.Send(ctx, session.ID, "你好")
		sent <- sendResult{err: err}
	}()
	// let Send pass Get and block on the conversation lock
	time.Sleep(20 * time.Millisecond)

	ended := make(chan error, 1)
	go func() { ended <- svc.EndSession(ctx, session.ID) }()
	time.Sleep(20 * time.Millisecond)
	conv.mu.Unlock()

	select {
	case res := <-sent:
		if res.err != nil {
			assert.ErrorIs(t, res.err, ErrSessionNotFound)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Send did not return")
	}
	select {
	case err := <-ended:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("EndSession did not return")
	}

	_, err = svc.GetSession(ctx, session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = svc.LoadTranscript(ctx, session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Zero(t, svc.sessions.Len())
}
