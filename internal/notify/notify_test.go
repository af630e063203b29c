package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v3"
)

type recordingSink struct {
	name string
	err  error
	got  []Message
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Send(ctx context.Context, msg Message) error {
	s.got = append(s.got, msg)
	return s.err
}

type telegramSenderStub struct {
	to   telebot.Recipient
	what interface{}
	err  error
}

func (s *telegramSenderStub) Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error) {
	s.to = to
	s.what = what
	return &telebot.Message{}, s.err
}

func TestDispatcherRoutesByChannel(t *testing.T) {
	push := &recordingSink{name: "push"}
	failing := &recordingSink{name: "broken", err: errors.New("boom")}
	d := NewDispatcher(nil)
	d.Register(push, ChannelPush, ChannelToast)
	d.Register(failing, ChannelWhatsApp)

	require.NoError(t, d.Send(context.Background(), Message{Channel: ChannelPush, Text: "hi"}))
	require.NoError(t, d.Send(context.Background(), Message{Channel: ChannelToast, Text: "toast"}))
	assert.Len(t, push.got, 2)

	err := d.Send(context.Background(), Message{Channel: ChannelWhatsApp, Text: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")

	d2 := NewDispatcher(nil)
	assert.NoError(t, d2.Send(context.Background(), Message{Channel: ChannelPush}), "unrouted channels are dropped")
}

func TestTelegramSink(t *testing.T) {
	sender := &telegramSenderStub{}
	sink := NewTelegramSink(sender, -100123)

	require.NoError(t, sink.Send(context.Background(), Message{Channel: ChannelPush, Recipient: "sup@example.com", Text: "Delivery waiting"}))
	chat, ok := sender.to.(*telebot.Chat)
	require.True(t, ok)
	assert.Equal(t, int64(-100123), chat.ID)
	assert.Equal(t, "[sup@example.com] Delivery waiting", sender.what)

	sender.err = errors.New("flood")
	assert.Error(t, sink.Send(context.Background(), Message{Text: "x"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sink.Send(ctx, Message{Text: "x"}), context.Canceled)
}

func TestLogSinkNeverFails(t *testing.T) {
	assert.NoError(t, NewLogSink(nil).Send(context.Background(), Message{Text: "x"}))
}
