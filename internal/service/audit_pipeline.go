package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/uzconnect/operator-console-api/internal/models"
)

type auditSink interface {
	Insert(ctx context.Context, event *models.AuditEvent) error
}

// AuditPipelineConfig tunes queue behaviour.
type AuditPipelineConfig struct {
	QueueCapacity int
	FlushTimeout  time.Duration
}

// AuditPipeline is an append-only, non-blocking event log for privileged
// actions. Producers enqueue; a single background consumer persists events
// one at a time in arrival order, so audit writes never sit on the staff
// member's critical path. When the queue is full the oldest queued event is
// dropped and counted; enqueue itself never blocks. A failed write is
// logged and skipped, it never stops the pipeline.
type AuditPipeline struct {
	sink         auditSink
	logger       *zap.Logger
	metrics      *MetricsService
	flushTimeout time.Duration

	queue     chan *models.AuditEvent
	done      chan struct{}
	startOnce sync.Once

	mu      sync.RWMutex
	closed  bool
	started atomic.Bool
	dropped atomic.Uint64
}

// NewAuditPipeline constructs the pipeline. The consumer goroutine is not
// started here: it starts lazily on the first event, so paths that never
// create applications pay nothing.
func NewAuditPipeline(sink auditSink, logger *zap.Logger, metrics *MetricsService, cfg AuditPipelineConfig) *AuditPipeline {
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 1024
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditPipeline{
		sink:         sink,
		logger:       logger,
		metrics:      metrics,
		flushTimeout: cfg.FlushTimeout,
		queue:        make(chan *models.AuditEvent, cfg.QueueCapacity),
		done:         make(chan struct{}),
	}
}

// NewSessionID derives a correlation id for one creation attempt from the
// creator, the start instant and a random component. Every event of the
// attempt carries it, so the full trail is reconstructed by filtering on it.
func NewSessionID(creatorID string, startedAt time.Time) string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|", creatorID, startedAt.UnixNano())
	h.Write(buf)
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// Enqueue hands an event to the queue and returns immediately. The payload
// must already be sanitized by the Log* helpers.
func (p *AuditPipeline) Enqueue(event *models.AuditEvent) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}

	p.startOnce.Do(func() {
		p.started.Store(true)
		go p.consume()
	})

	select {
	case p.queue <- event:
	default:
		// Queue full: drop the oldest event so the newest survives, and
		// signal the loss through the counter.
		select {
		case <-p.queue:
			p.countDrop()
		default:
		}
		select {
		case p.queue <- event:
		default:
			p.countDrop()
		}
	}
	if p.metrics != nil {
		p.metrics.SetAuditQueueDepth(len(p.queue))
	}
}

// Dropped reports how many events were lost to back-pressure.
func (p *AuditPipeline) Dropped() uint64 {
	return p.dropped.Load()
}

// Close stops accepting events and waits for the consumer to drain the
// queue, up to the flush timeout.
func (p *AuditPipeline) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	if !p.started.Load() {
		return
	}

	select {
	case <-p.done:
	case <-time.After(p.flushTimeout):
		p.logger.Warn("audit pipeline close timed out before drain", zap.Int("remaining", len(p.queue)))
	}
}

func (p *AuditPipeline) consume() {
	defer close(p.done)
	for event := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), p.flushTimeout)
		err := p.sink.Insert(ctx, event)
		cancel()
		if err != nil {
			// A failed audit write must never fail the operation it
			// describes; record the loss locally and move on.
			p.logger.Error("audit event write failed",
				zap.String("event_type", string(event.EventType)),
				zap.String("session_id", event.SessionID),
				zap.Error(err))
			continue
		}
		if p.metrics != nil {
			p.metrics.RecordAuditPersisted()
		}
	}
}

func (p *AuditPipeline) countDrop() {
	p.dropped.Add(1)
	if p.metrics != nil {
		p.metrics.RecordAuditDropped()
	}
	p.logger.Warn("audit queue full, dropped oldest event", zap.Uint64("dropped_total", p.dropped.Load()))
}

// event assembles and enqueues one sanitized audit event.
func (p *AuditPipeline) event(t models.AuditEventType, severity models.AuditSeverity, sessionID string, creator models.CreatorContext, data map[string]interface{}, mutate func(*models.AuditEvent)) {
	payload, err := json.Marshal(Sanitize(data))
	if err != nil {
		p.logger.Error("audit payload marshal failed", zap.String("event_type", string(t)), zap.Error(err))
		payload = []byte("{}")
	}
	ev := &models.AuditEvent{
		CreatorID:   creator.CreatorID,
		CreatorRole: creator.Role,
		EventType:   t,
		Severity:    severity,
		EventData:   payload,
		SessionID:   sessionID,
		CreatedAt:   time.Now().UTC(),
	}
	if mutate != nil {
		mutate(ev)
	}
	p.Enqueue(ev)
}

// LogCreationStart records the opening of a creation session.
func (p *AuditPipeline) LogCreationStart(sessionID string, creator models.CreatorContext, appType models.ApplicationType, decision Decision) {
	p.event(models.AuditCreationStarted, models.SeverityInfo, sessionID, creator, map[string]interface{}{
		"allowed":     decision.Allowed,
		"reason":      string(decision.Reason),
		"daily_count": creator.DailyCount,
	}, func(ev *models.AuditEvent) {
		ev.ApplicationType = &appType
	})
}

// LogClientSelected records that an existing client was attached.
func (p *AuditPipeline) LogClientSelected(sessionID string, creator models.CreatorContext, client *models.Client, method models.ClientSearchMethod) {
	p.event(models.AuditClientSelected, models.SeverityInfo, sessionID, creator, map[string]interface{}{
		"search_method": string(method),
		"client_phone":  client.Phone,
		"client_name":   client.FullName,
	}, func(ev *models.AuditEvent) {
		ev.ClientID = &client.ID
	})
}

// LogClientCreated records a new client row inserted on the client's behalf.
func (p *AuditPipeline) LogClientCreated(sessionID string, creator models.CreatorContext, client *models.Client) {
	p.event(models.AuditClientCreated, models.SeverityInfo, sessionID, creator, map[string]interface{}{
		"client_phone": client.Phone,
		"client_name":  client.FullName,
		"address":      client.Address,
		"language":     client.Language,
	}, func(ev *models.AuditEvent) {
		ev.ClientID = &client.ID
	})
}

// LogApplicationSubmitted records the durable commit of a request.
func (p *AuditPipeline) LogApplicationSubmitted(sessionID string, creator models.CreatorContext, app *models.Application) {
	p.event(models.AuditApplicationSubmitted, models.SeverityInfo, sessionID, creator, map[string]interface{}{
		"description": app.Description,
		"location":    app.Location,
		"priority":    app.Priority,
		"status":      string(app.Status),
	}, func(ev *models.AuditEvent) {
		ev.ApplicationID = &app.ID
		ev.ClientID = &app.ClientID
		ev.ApplicationType = &app.Type
	})
}

// LogClientNotified records the outcome of the submit notification.
func (p *AuditPipeline) LogClientNotified(sessionID string, creator models.CreatorContext, applicationID, clientID string, delivered bool) {
	severity := models.SeverityInfo
	if !delivered {
		severity = models.SeverityWarning
	}
	p.event(models.AuditClientNotified, severity, sessionID, creator, map[string]interface{}{
		"delivered": delivered,
	}, func(ev *models.AuditEvent) {
		ev.ApplicationID = &applicationID
		ev.ClientID = &clientID
	})
}

// LogWorkflowInitiated records the first workflow transition of a request.
func (p *AuditPipeline) LogWorkflowInitiated(sessionID string, creator models.CreatorContext, app *models.Application, log *models.StatusLog) {
	p.event(models.AuditWorkflowInitiated, models.SeverityInfo, sessionID, creator, map[string]interface{}{
		"from_status":   string(log.FromStatus),
		"to_status":     string(log.ToStatus),
		"action":        string(log.Action),
		"status_log_id": log.ID,
	}, func(ev *models.AuditEvent) {
		ev.ApplicationID = &app.ID
		ev.ApplicationType = &app.Type
	})
}

// LogPermissionDenied records a refused privileged action.
func (p *AuditPipeline) LogPermissionDenied(sessionID string, creator models.CreatorContext, appType models.ApplicationType, reason PermissionReason) {
	p.event(models.AuditPermissionDenied, models.SeverityWarning, sessionID, creator, map[string]interface{}{
		"reason":      string(reason),
		"daily_count": creator.DailyCount,
	}, func(ev *models.AuditEvent) {
		ev.ApplicationType = &appType
	})
}

// LogValidationFailed records form data that failed shape rules.
func (p *AuditPipeline) LogValidationFailed(sessionID string, creator models.CreatorContext, field, detail string) {
	p.event(models.AuditValidationFailed, models.SeverityWarning, sessionID, creator, map[string]interface{}{
		"field":  field,
		"detail": detail,
	}, nil)
}

// LogAuth records a login or logout of a staff account.
func (p *AuditPipeline) LogAuth(t models.AuditEventType, creator models.CreatorContext, data map[string]interface{}) {
	p.event(t, models.SeverityInfo, "", creator, data, nil)
}

// LogError records an infrastructure failure inside a creation attempt.
func (p *AuditPipeline) LogError(sessionID string, creator models.CreatorContext, stage string, err error) {
	p.event(models.AuditError, models.SeverityError, sessionID, creator, map[string]interface{}{
		"stage": stage,
		"cause": err.Error(),
	}, nil)
}
