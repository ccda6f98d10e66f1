package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/fathima-sithara/dm-service/internal/domain"
	"github.com/fathima-sithara/dm-service/internal/metrics"
	"github.com/fathima-sithara/dm-service/internal/push"
	"go.uber.org/zap"
)

type Presence interface {
	IsOnline(ctx context.Context, userID string) bool
}

// Sink receives every dispatched event after local delivery, e.g. to
// reach other nodes.
type Sink interface {
	Forward(ctx context.Context, ev domain.Event, frame []byte) error
}

type Option func(*Fanout)

func WithPresence(p Presence) Option { return func(f *Fanout) { f.presence = p } }
func WithPush(q push.Queue) Option { return func(f *Fanout) { f.push = q } }
func WithSink(s Sink) Option { return func(f *Fanout) { f.sinks = append(f.sinks, s) } }
func WithQueueSize(n int) Option { return func(f *Fanout) { f.size = n } }

// Fanout delivers events to live channels from a single goroutine, so
// events emitted by one caller arrive in the order they were emitted.
type Fanout struct {
	reg      *Registry
	presence Presence
	push     push.Queue
	sinks    []Sink
	size     int
	log      *zap.SugaredLogger

	events chan domain.Event
	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewFanout(reg *Registry, log *zap.SugaredLogger, opts ...Option) *Fanout {
	f := &Fanout{reg: reg, size: 1024, log: log, done: make(chan struct{})}
	for _, o := range opts {
		o(f)
	}
	if f.presence == nil {
		f.presence = reg
	}
	f.events = make(chan domain.Event, f.size)
	go f.run()
	return f
}

// Emit queues ev and returns immediately. A full queue drops the event.
func (f *Fanout) Emit(ev domain.Event) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return
	}
	select {
	case f.events <- ev:
	default:
		metrics.EventsDropped.WithLabelValues("queue_full").Inc()
		f.log.Warnw("realtime queue full, event dropped", "type", ev.Type, "to", ev.To)
	}
}

// Close drains queued events and stops the dispatcher.
func (f *Fanout) Close() {
	f.mu.Lock()
	if !f.closed {
		f.closed = true
		close(f.events)
	}
	f.mu.Unlock()
	<-f.done
}

func (f *Fanout) run() {
	defer close(f.done)
	for ev := range f.events {
		f.dispatch(ev)
	}
}

func (f *Fanout) dispatch(ev domain.Event) {
	frame, err := json.Marshal(ev)
	if err != nil {
		f.log.Errorw("encode realtime event", "type", ev.Type, "err", err)
		return
	}
	f.DeliverLocal(ev.Targets(), frame)

	ctx := context.Background()
	for _, s := range f.sinks {
		if err := s.Forward(ctx, ev, frame); err != nil {
			f.log.Warnw("realtime sink failed", "type", ev.Type, "err", err)
		}
	}

	if ev.Type == domain.EventMessageCreated && f.push != nil {
		f.maybePush(ctx, ev)
	}
}

// DeliverLocal sends frame to every channel of each user, in order. A
// channel that refuses the frame is dropped; the rest are unaffected.
func (f *Fanout) DeliverLocal(userIDs []string, frame []byte) {
	for _, uid := range userIDs {
		for _, ch := range f.reg.Channels(uid) {
			if ch.Send(frame) {
				metrics.EventsDelivered.Inc()
				continue
			}
			metrics.EventsDropped.WithLabelValues("slow_consumer").Inc()
			f.log.Warnw("dropping unresponsive channel", "user_id", uid, "channel_id", ch.ID())
			f.reg.Unregister(uid, ch.ID())
			ch.Close()
		}
	}
}

func (f *Fanout) maybePush(ctx context.Context, ev domain.Event) {
	if ev.From == ev.To || f.presence.IsOnline(ctx, ev.To) {
		return
	}
	view, ok := ev.Payload.(*domain.MessageView)
	if !ok {
		return
	}
	job := push.Job{UserID: ev.To, Notification: push.NotificationFor(view)}
	if err := f.push.Submit(job); err != nil {
		f.log.Warnw("push not queued", "user_id", ev.To, "err", err)
	}
}
