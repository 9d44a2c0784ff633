// Package fanout delivers engagement updates to interested listeners after
// the ledger has accepted them. Delivery is best-effort and never blocks the
// write path.
package fanout

import (
	"context"
	"sync"
	"time"

	"github.com/zfogg/showcase/backend/internal/logger"
	"github.com/zfogg/showcase/backend/internal/metrics"
	"github.com/zfogg/showcase/backend/internal/models"
	"go.uber.org/zap"
)

// Update describes one accepted event and the post's counters after it
type Update struct {
	EventID    string                `json:"event_id"`
	PostID     string                `json:"post_id"`
	OwnerID    string                `json:"owner_id"`
	ActorID    string                `json:"actor_id"`
	Kind       models.EventKind      `json:"kind"`
	Engagement models.PostEngagement `json:"engagement"`
	At         time.Time             `json:"at"`
}

// Listener receives updates on the broadcaster's worker goroutine
type Listener func(Update)

// Broadcaster queues updates in a bounded buffer drained by a single worker
type Broadcaster struct {
	queue chan Update

	mu        sync.RWMutex
	listeners map[uint64]Listener
	nextID    uint64

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewBroadcaster creates a broadcaster holding at most buffer pending updates
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = 256
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Broadcaster{
		queue:     make(chan Update, buffer),
		listeners: make(map[uint64]Listener),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// Start launches the delivery worker
func (b *Broadcaster) Start() {
	b.startOnce.Do(func() {
		go b.run()
		logger.Log.Info("Engagement fan-out started", zap.Int("buffer", cap(b.queue)))
	})
}

// Stop halts the worker after delivering what is already queued, or when
// ctx expires
func (b *Broadcaster) Stop(ctx context.Context) error {
	b.stopOnce.Do(func() {
		b.cancel()
		// Never started: nothing will close done
		b.startOnce.Do(func() { close(b.done) })
	})

	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Broadcaster) run() {
	defer close(b.done)

	for {
		select {
		case u := <-b.queue:
			b.deliver(u)
		case <-b.ctx.Done():
			b.drain()
			logger.Log.Info("Engagement fan-out stopped")
			return
		}
	}
}

func (b *Broadcaster) drain() {
	for {
		select {
		case u := <-b.queue:
			b.deliver(u)
		default:
			return
		}
	}
}

// Publish enqueues u without blocking. When the buffer is full the update is
// dropped; the ledger already holds the event.
func (b *Broadcaster) Publish(u Update) {
	select {
	case <-b.ctx.Done():
		return
	default:
	}

	select {
	case b.queue <- u:
	default:
		metrics.Get().Engagement.FanoutDropped.Inc()
		logger.Log.Warn("Engagement update dropped, fan-out buffer full",
			logger.WithPostID(u.PostID),
			logger.WithEventKind(string(u.Kind)),
		)
	}
}

// Subscribe registers l for every update delivered from now on
func (b *Broadcaster) Subscribe(l Listener) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.listeners[id] = l
	return &Subscription{b: b, id: id}
}

// Clear removes every listener
func (b *Broadcaster) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = make(map[uint64]Listener)
}

// ListenerCount returns the number of registered listeners
func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

func (b *Broadcaster) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.listeners, id)
}

func (b *Broadcaster) deliver(u Update) {
	b.mu.RLock()
	snapshot := make([]Listener, 0, len(b.listeners))
	for _, l := range b.listeners {
		snapshot = append(snapshot, l)
	}
	b.mu.RUnlock()

	for _, l := range snapshot {
		b.safeCall(l, u)
	}
}

func (b *Broadcaster) safeCall(l Listener, u Update) {
	defer func() {
		if r := recover(); r != nil {
			metrics.Get().Engagement.FanoutPanics.Inc()
			logger.Log.Error("Engagement listener panicked",
				logger.WithPostID(u.PostID),
				zap.Any("panic", r),
			)
		}
	}()

	l(u)
	metrics.Get().Engagement.FanoutDelivered.Inc()
}

// Subscription is a handle to one registered listener
type Subscription struct {
	b    *Broadcaster
	id   uint64
	once sync.Once
}

// Unsubscribe removes the listener. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.b.remove(s.id)
	})
}
