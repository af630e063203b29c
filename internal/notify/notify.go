// Package notify delivers pre-rendered alert text to outbound channels. Delivery is best effort:
// callers build the message and dedup key, sinks never confirm that a human saw it.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Channel is the delivery hint attached to a message.
type Channel string

const (
	ChannelPush     Channel = "push"
	ChannelToast    Channel = "toast"
	ChannelWhatsApp Channel = "whatsapp"
)

// Message is one outbound notification.
type Message struct {
	Channel   Channel
	Recipient string
	Text      string
	DedupKey  string
}

// Sink sends messages to one backend.
type Sink interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Dispatcher routes messages to the sinks registered for their channel.
type Dispatcher struct {
	mu     sync.RWMutex
	routes map[Channel][]Sink
	logger *zap.Logger
}

// NewDispatcher constructs an empty dispatcher.
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{routes: make(map[Channel][]Sink), logger: logger}
}

// Register attaches a sink to one or more channels.
func (d *Dispatcher) Register(sink Sink, channels ...Channel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, ch := range channels {
		d.routes[ch] = append(d.routes[ch], sink)
	}
}

// Name implements Sink.
func (d *Dispatcher) Name() string { return "dispatcher" }

// Send fans the message out. Every sink is attempted; failures are joined.
func (d *Dispatcher) Send(ctx context.Context, msg Message) error {
	d.mu.RLock()
	sinks := append([]Sink(nil), d.routes[msg.Channel]...)
	d.mu.RUnlock()

	if len(sinks) == 0 {
		d.logger.Debug("no sink for channel", zap.String("channel", string(msg.Channel)), zap.String("dedup_key", msg.DedupKey))
		return nil
	}

	var errs []error
	for _, sink := range sinks {
		if err := sink.Send(ctx, msg); err != nil {
			d.logger.Warn("notification send failed",
				zap.String("sink", sink.Name()),
				zap.String("channel", string(msg.Channel)),
				zap.String("dedup_key", msg.DedupKey),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// LogSink writes messages to the structured log.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink constructs a LogSink.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Name implements Sink.
func (s *LogSink) Name() string { return "log" }

// Send implements Sink.
func (s *LogSink) Send(ctx context.Context, msg Message) error {
	s.logger.Info("notification",
		zap.String("channel", string(msg.Channel)),
		zap.String("recipient", msg.Recipient),
		zap.String("dedup_key", msg.DedupKey),
		zap.String("text", msg.Text))
	return nil
}
