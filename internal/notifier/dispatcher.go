package notifier

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type delivery struct {
	TargetID string
	Message  string
	Attempt  int
	Enqueued time.Time
}

// DispatcherConfig tunes the background delivery workers.
type DispatcherConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// Dispatcher delivers notifications off the caller's path: Notify enqueues
// and returns, background workers drive the wrapped Notifier and retry
// transient failures. It implements Notifier, so callers cannot tell it
// apart from a synchronous sender.
type Dispatcher struct {
	delegate Notifier
	logger   *zap.Logger

	workers    int
	maxRetries int
	retryDelay time.Duration

	deliveries chan delivery
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.Mutex
	started    bool
}

// NewDispatcher builds a dispatcher around the given delegate.
func NewDispatcher(delegate Notifier, cfg DispatcherConfig, logger *zap.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 16
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		delegate:   delegate,
		logger:     logger,
		workers:    cfg.Workers,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		deliveries: make(chan delivery, cfg.BufferSize),
	}
}

// Start launches the delivery workers. Safe to call once.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.ctx, d.cancel = context.WithCancel(ctx)
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	d.started = true
	d.logger.Info("notification dispatcher started", zap.Int("workers", d.workers))
}

// Stop cancels workers and waits for them to exit.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	d.cancel()
	d.mu.Unlock()
	d.wg.Wait()
}

// Notify implements Notifier. The return value reports a successful
// hand-off to the delivery queue, not end delivery.
func (d *Dispatcher) Notify(_ context.Context, targetID, message string) bool {
	d.mu.Lock()
	started := d.started
	d.mu.Unlock()
	if !started {
		return false
	}

	select {
	case d.deliveries <- delivery{TargetID: targetID, Message: message, Enqueued: time.Now().UTC()}:
		return true
	default:
		d.logger.Warn("notification queue full, message dropped", zap.String("target_id", targetID))
		return false
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case item := <-d.deliveries:
			if d.delegate.Notify(d.ctx, item.TargetID, item.Message) {
				continue
			}
			d.retry(item)
		}
	}
}

func (d *Dispatcher) retry(item delivery) {
	item.Attempt++
	if item.Attempt > d.maxRetries {
		d.logger.Error("notification exceeded retries", zap.String("target_id", item.TargetID), zap.Int("attempts", item.Attempt))
		return
	}
	d.logger.Warn("notification failed, retrying", zap.String("target_id", item.TargetID), zap.Int("attempt", item.Attempt))

	go func(it delivery) {
		timer := time.NewTimer(d.retryDelay)
		defer timer.Stop()
		select {
		case <-d.ctx.Done():
		case <-timer.C:
			select {
			case d.deliveries <- it:
			default:
				d.logger.Error("notification requeue failed, queue full", zap.String("target_id", it.TargetID))
			}
		}
	}(item)
}
