package notify

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"points-miner/internal/metrics"
	"points-miner/internal/types"
)

// Backend delivers one rendered message to an external service.
type Backend interface {
	Name() string
	Send(ctx context.Context, ev Event, message string) error
}

// Renderer turns an event into message text.
type Renderer interface {
	Render(ev Event) (string, error)
}

type Options struct {
	QueueSize     int
	SendTimeout   time.Duration
	RatePerSecond float64
}

type sink struct {
	backend Backend
	allow   map[types.Tag]struct{}
	queue   chan Event
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// Dispatcher routes events to every backend whose allow-list contains the
// event's tag. Each backend has its own queue and goroutine, so a slow or
// failing backend never delays another one or the caller.
type Dispatcher struct {
	logger   *zap.Logger
	renderer Renderer
	opts     Options

	mu      sync.RWMutex
	sinks   []*sink
	started bool
	stopped bool
	wg      sync.WaitGroup
}

func NewDispatcher(logger *zap.Logger, renderer Renderer, opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 32
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 10 * time.Second
	}
	return &Dispatcher{
		logger:   logger,
		renderer: renderer,
		opts:     opts,
	}
}

// Register adds a backend with its allow-list. It must be called before Start.
func (d *Dispatcher) Register(b Backend, tags []types.Tag) {
	allow := make(map[types.Tag]struct{}, len(tags))
	for _, t := range tags {
		allow[t] = struct{}{}
	}

	limit := rate.Inf
	if d.opts.RatePerSecond > 0 {
		limit = rate.Limit(d.opts.RatePerSecond)
	}

	name := b.Name()
	s := &sink{
		backend: b,
		allow:   allow,
		queue:   make(chan Event, d.opts.QueueSize),
		limiter: rate.NewLimiter(limit, 1),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    name,
			Timeout: time.Minute,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				d.logger.Warn("Notification backend circuit changed state",
					zap.String("backend", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		}),
	}

	d.mu.Lock()
	d.sinks = append(d.sinks, s)
	d.mu.Unlock()

	d.logger.Info("Registered notification backend",
		zap.String("backend", name),
		zap.Int("events", len(tags)))
}

// Backends returns the names of the registered backends.
func (d *Dispatcher) Backends() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.sinks))
	for _, s := range d.sinks {
		names = append(names, s.backend.Name())
	}
	return names
}

func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true
	for _, s := range d.sinks {
		d.wg.Add(1)
		go d.run(ctx, s)
	}
}

// Dispatch enqueues ev for every backend that accepts its tag and returns
// immediately. Events for a backend whose queue is full are dropped.
func (d *Dispatcher) Dispatch(ev Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return
	}

	tag := ev.Tag()
	for _, s := range d.sinks {
		if _, ok := s.allow[tag]; !ok {
			continue
		}
		select {
		case s.queue <- ev:
		default:
			metrics.NotificationsSent.WithLabelValues(s.backend.Name(), metrics.ResultDropped).Inc()
			d.logger.Warn("Notification queue full, dropping event",
				zap.String("backend", s.backend.Name()),
				zap.String("tag", string(tag)),
				zap.String("streamer", ev.Meta().Username))
		}
	}
}

// Stop closes every queue and waits for the backends to drain what was already
// enqueued.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	for _, s := range d.sinks {
		close(s.queue)
	}
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Info("Notification dispatcher stopped")
}

func (d *Dispatcher) run(ctx context.Context, s *sink) {
	defer d.wg.Done()
	for ev := range s.queue {
		d.deliver(ctx, s, ev)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, s *sink, ev Event) {
	name := s.backend.Name()
	logger := d.logger.With(
		zap.String("backend", name),
		zap.String("tag", string(ev.Tag())),
		zap.String("streamer", ev.Meta().Username))

	if err := s.limiter.Wait(ctx); err != nil {
		// Shutting down; deliver the backlog without pacing.
		logger.Debug("Rate limiter wait aborted", zap.Error(err))
	}

	message, err := d.renderer.Render(ev)
	if err != nil {
		metrics.NotificationsSent.WithLabelValues(name, metrics.ResultError).Inc()
		logger.Error("Failed to render notification", zap.Error(err))
		return
	}

	_, err = s.breaker.Execute(func() (interface{}, error) {
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.opts.SendTimeout)
		defer cancel()
		return nil, safeSend(sendCtx, s.backend, ev, message)
	})
	if err != nil {
		metrics.NotificationsSent.WithLabelValues(name, metrics.ResultError).Inc()
		logger.Warn("Failed to send notification", zap.Error(err))
		return
	}
	metrics.NotificationsSent.WithLabelValues(name, metrics.ResultOK).Inc()
}

func safeSend(ctx context.Context, b Backend, ev Event, message string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backend %s panicked: %v", b.Name(), r)
		}
	}()
	return b.Send(ctx, ev, message)
}

// ParseTags converts configured event names to tags, skipping unknown ones.
func ParseTags(names []string) []types.Tag {
	tags := make([]types.Tag, 0, len(names))
	for _, n := range names {
		if types.IsTag(n) && !slices.Contains(tags, types.Tag(n)) {
			tags = append(tags, types.Tag(n))
		}
	}
	return tags
}
