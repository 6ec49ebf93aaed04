package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ivankudzin/nikah/backend/internal/domain/enums"
	"github.com/ivankudzin/nikah/backend/internal/domain/model"
)

const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeDropped = "dropped"
)

var (
	ErrQueueFull = errors.New("notification queue is full")
	ErrStopped   = errors.New("notification dispatcher is stopped")
)

type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

type Recorder interface {
	NotificationDispatched(kind enums.NotificationKind, outcome string)
}

type Config struct {
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
}

// Dispatcher delivers notifications off the request path. Enqueue never blocks: a
// full queue drops the notification and reports ErrQueueFull.
type Dispatcher struct {
	notifier Notifier
	recorder Recorder
	logger   *zap.Logger
	cfg      Config

	queue   chan model.Notification
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	now   func() time.Time
	newID func() string
}

func NewDispatcher(notifier Notifier, cfg Config, logger *zap.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
		queue:    make(chan model.Notification, cfg.QueueSize),
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
}

func (d *Dispatcher) AttachRecorder(recorder Recorder) {
	d.recorder = recorder
}

func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}
	d.running = true
	d.stopCh = make(chan struct{})

	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.work(ctx, d.stopCh)
	}

	d.logger.Info("notification dispatcher started",
		zap.Int("workers", d.cfg.Workers),
		zap.Int("queue_size", d.cfg.QueueSize),
	)
}

// Stop waits for workers to flush whatever is already queued.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	close(d.stopCh)
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Info("notification dispatcher stopped")
}

func (d *Dispatcher) Enqueue(n model.Notification) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.running {
		return ErrStopped
	}

	if n.ID == "" {
		n.ID = d.newID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = d.now().UTC()
	}

	select {
	case d.queue <- n:
		return nil
	default:
		d.record(n.Kind, OutcomeDropped)
		return ErrQueueFull
	}
}

func (d *Dispatcher) work(ctx context.Context, stopCh <-chan struct{}) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			d.drain(ctx)
			return
		case n := <-d.queue:
			d.deliver(ctx, n)
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context) {
	for {
		select {
		case n := <-d.queue:
			d.deliver(ctx, n)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n model.Notification) {
	if d.notifier == nil {
		d.record(n.Kind, OutcomeDropped)
		return
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.SendTimeout)
	defer cancel()

	if err := d.notifier.Notify(sendCtx, n); err != nil {
		d.record(n.Kind, OutcomeFailed)
		d.logger.Warn("deliver notification",
			zap.String("notification_id", n.ID),
			zap.String("kind", string(n.Kind)),
			zap.Int64("user_id", n.UserID),
			zap.Error(err),
		)
		return
	}

	d.record(n.Kind, OutcomeSent)
}

func (d *Dispatcher) record(kind enums.NotificationKind, outcome string) {
	if d.recorder != nil {
		d.recorder.NotificationDispatched(kind, outcome)
	}
}
