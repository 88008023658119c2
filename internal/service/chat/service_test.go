package chat_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	chatmodel "github.com/zhouzirui/campus-widgets/backend/internal/model/chat"
	"github.com/zhouzirui/campus-widgets/backend/internal/model/persona"
	chat "github.com/zhouzirui/campus-widgets/backend/internal/service/chat"
	"github.com/zhouzirui/campus-widgets/backend/internal/service/reply"
	"github.com/zhouzirui/campus-widgets/backend/internal/service/typing"
)

func TestMain(m *testing.M) {
	// expirable.LRU 带 TTL 时启动的清理协程没有停止入口
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("github.com/hashicorp/golang-lru/v2/expirable.NewLRU[...].func1"),
	)
}

func newTestService(t *testing.T) (*chat.Service, *typing.ManualClock) {
	t.Helper()

	store := persona.NewMemoryStore(persona.Seed())
	replies, err := reply.NewService(context.Background(), store, reply.NewSource(1), nil)
	require.NoError(t, err)

	clock := typing.NewManualClock(time.Unix(0, 0))
	svc := chat.NewService(store, replies, chat.Config{DelayScale: 1, Clock: clock}, nil)
	t.Cleanup(svc.Close)
	return svc, clock
}

func waitForPending(t *testing.T, clock *typing.ManualClock, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return clock.Pending() == n }, 2*time.Second, time.Millisecond)
}

func nextMessage(t *testing.T, events <-chan chatmodel.Event, sender chatmodel.Sender) chatmodel.Message {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			require.True(t, ok, "event stream closed")
			if ev.Type == chatmodel.EventMessage && ev.Message.Sender == sender {
				return *ev.Message
			}
		case <-timeout:
			t.Fatalf("no %s message received", sender)
		}
	}
}

func TestServiceGetSession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "xiaoke")
	require.NoError(t, err)

	got, err := svc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)
	assert.Equal(t, "xiaoke", got.PersonaID)
}

func TestServiceGetSessionNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)
}

func TestCreateSessionValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateSession(ctx, "")
	assert.ErrorIs(t, err, chat.ErrPersonaRequired)

	_, err = svc.CreateSession(ctx, "unknown")
	assert.ErrorIs(t, err, chat.ErrPersonaNotFound)
}

func TestCreateSessionSeedsGreeting(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "xiaoke")
	require.NoError(t, err)
	transcript, err := svc.LoadTranscript(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, transcript, 1)
	assert.Equal(t, chatmodel.SenderSystem, transcript[0].Sender)

	session, err = svc.CreateSession(ctx, "jiaohaoyun")
	require.NoError(t, err)
	transcript, err = svc.LoadTranscript(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, transcript, 1)
	assert.Equal(t, chatmodel.SenderAgent, transcript[0].Sender)
}

func TestEmptyInputAppendsNothing(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "xiaoke")
	require.NoError(t, err)

	for _, input := range []string{"", "   ", "\n\t"} {
		_, err := svc.Send(ctx, session.ID, input)
		assert.ErrorIs(t, err, chat.ErrEmptyMessage)
	}

	transcript, err := svc.LoadTranscript(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, transcript, 1)
	assert.Zero(t, clock.Pending())
}

func TestSendSchedulesReplyAfterTypingDelay(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "xiaoke")
	require.NoError(t, err)
	events, cancel, err := svc.Subscribe(session.ID)
	require.NoError(t, err)
	defer cancel()

	msg, err := svc.Send(ctx, session.ID, "  学费多少 ")
	require.NoError(t, err)
	assert.Equal(t, "学费多少", msg.Content)
	assert.Equal(t, chatmodel.SenderUser, msg.Sender)

	typingNow, err := svc.Typing(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, typingNow)

	waitForPending(t, clock, 1)
	clock.Advance(999 * time.Millisecond)
	assert.Equal(t, 1, clock.Pending())

	clock.Advance(time.Millisecond)
	answer := nextMessage(t, events, chatmodel.SenderAgent)
	assert.Equal(t, "tuition", answer.RuleID)
	assert.Contains(t, answer.Content, "国际高中（A-Level/IB/AP）：每年15-20万元")

	require.Eventually(t, func() bool {
		busy, _ := svc.Typing(ctx, session.ID)
		return !busy
	}, 2*time.Second, time.Millisecond)

	transcript, err := svc.LoadTranscript(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, transcript, 3)
	assert.Equal(t, chatmodel.SenderAgent, transcript[2].Sender)
}

func TestBusyRejectDropsSecondSend(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "jiaohaoyun")
	require.NoError(t, err)
	events, cancel, err := svc.Subscribe(session.ID)
	require.NoError(t, err)
	defer cancel()

	_, err = svc.Send(ctx, session.ID, "怎么查课表")
	require.NoError(t, err)
	_, err = svc.Send(ctx, session.ID, "考试安排")
	assert.ErrorIs(t, err, chat.ErrBusy)

	waitForPending(t, clock, 1)
	clock.Advance(1500 * time.Millisecond)
	answer := nextMessage(t, events, chatmodel.SenderAgent)
	assert.Equal(t, "timetable", answer.RuleID)

	transcript, err := svc.LoadTranscript(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, transcript, 3)
}

func TestBusyQueueAnswersInOrder(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "xiaoke")
	require.NoError(t, err)
	events, cancel, err := svc.Subscribe(session.ID)
	require.NoError(t, err)
	defer cancel()

	_, err = svc.Send(ctx, session.ID, "课程设置")
	require.NoError(t, err)
	_, err = svc.Send(ctx, session.ID, "校园设施")
	require.NoError(t, err)

	waitForPending(t, clock, 1)
	clock.Advance(time.Second)
	first := nextMessage(t, events, chatmodel.SenderAgent)
	assert.Equal(t, "courses", first.RuleID)

	waitForPending(t, clock, 1)
	clock.Advance(time.Second)
	second := nextMessage(t, events, chatmodel.SenderAgent)
	assert.Equal(t, "facilities", second.RuleID)

	transcript, err := svc.LoadTranscript(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, transcript, 5)
	senders := []chatmodel.Sender{}
	for _, m := range transcript {
		senders = append(senders, m.Sender)
	}
	assert.Equal(t, []chatmodel.Sender{
		chatmodel.SenderSystem, chatmodel.SenderUser, chatmodel.SenderUser, chatmodel.SenderAgent, chatmodel.SenderAgent,
	}, senders)
}

func TestEndSessionCancelsPendingReply(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "xiaoke")
	require.NoError(t, err)
	events, cancel, err := svc.Subscribe(session.ID)
	require.NoError(t, err)
	defer cancel()

	_, err = svc.Send(ctx, session.ID, "你好")
	require.NoError(t, err)
	waitForPending(t, clock, 1)

	require.NoError(t, svc.EndSession(ctx, session.ID))
	waitForPending(t, clock, 0)

	// drain until the stream is closed; no assistant reply may arrive
	for ev := range events {
		if ev.Type == chatmodel.EventMessage {
			assert.NotEqual(t, chatmodel.SenderAgent, ev.Message.Sender)
		}
	}

	_, err = svc.Send(ctx, session.ID, "你好")
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)
	assert.ErrorIs(t, svc.EndSession(ctx, session.ID), chat.ErrSessionNotFound)
}

func TestSessionsExpire(t *testing.T) {
	store := persona.NewMemoryStore(persona.Seed())
	replies, err := reply.NewService(context.Background(), store, reply.NewSource(1), nil)
	require.NoError(t, err)

	svc := chat.NewService(store, replies, chat.Config{TTL: 20 * time.Millisecond}, nil)
	defer svc.Close()

	ctx := context.Background()
	session, err := svc.CreateSession(ctx, "xiaoke")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := svc.GetSession(ctx, session.ID)
		return err != nil
	}, time.Second, 5*time.Millisecond)
}

func TestMaxSessionsEvictsOldest(t *testing.T) {
	store := persona.NewMemoryStore(persona.Seed())
	replies, err := reply.NewService(context.Background(), store, reply.NewSource(1), nil)
	require.NoError(t, err)

	svc := chat.NewService(store, replies, chat.Config{MaxSessions: 1}, nil)
	defer svc.Close()

	ctx := context.Background()
	first, err := svc.CreateSession(ctx, "xiaoke")
	require.NoError(t, err)
	_, err = svc.CreateSession(ctx, "jiaohaoyun")
	require.NoError(t, err)

	_, err = svc.GetSession(ctx, first.ID)
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)
}
