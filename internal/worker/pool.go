package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"invoiceflow/internal/logger"
	"invoiceflow/internal/model"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueAudit = "jobs:audit"
	QueueEmail = "jobs:email"
)

const (
	JobAudit        = "audit"
	JobInvoiceEmail = "invoice_email"
)

const defaultMaxAttempts = 3

// Job is the generic envelope for all async tasks.
type Job struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	RequestID string          `json:"request_id,omitempty"`
}

// Handler processes one job payload. A returned error triggers a retry and,
// once attempts are exhausted, a move to the dead letter queue.
type Handler interface {
	Process(ctx context.Context, payload json.RawMessage) error
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueueAudit queues an audit row whose direct insert failed.
func (d *Dispatcher) EnqueueAudit(ctx context.Context, entry *model.AuditLog) error {
	return d.enqueue(ctx, QueueAudit, JobAudit, entry)
}

// EnqueueInvoiceEmail queues the partner notification for an issued invoice.
func (d *Dispatcher) EnqueueInvoiceEmail(ctx context.Context, job InvoiceEmailJob) error {
	return d.enqueue(ctx, QueueEmail, JobInvoiceEmail, job)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(Job{Type: jobType, Payload: data, RequestID: logger.RequestID(ctx)})
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

// Pool runs a fixed number of goroutines consuming every registered queue.
// Each goroutine blocks on BRPOP, so idle workers cost nothing.
type Pool struct {
	rdb         *redis.Client
	size        int
	maxAttempts int
	backoff     time.Duration
	handlers    map[string]Handler
	wg          sync.WaitGroup
}

func NewPool(rdb *redis.Client, size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{
		rdb:         rdb,
		size:        size,
		maxAttempts: defaultMaxAttempts,
		backoff:     time.Second,
		handlers:    make(map[string]Handler),
	}
}

// Register binds a handler to a queue. Call before Start.
func (p *Pool) Register(queue string, h Handler) {
	p.handlers[queue] = h
}

func (p *Pool) queues() []string {
	qs := make([]string, 0, len(p.handlers))
	for q := range p.handlers {
		qs = append(qs, q)
	}
	return qs
}

// Start launches the workers. They stop when ctx is cancelled; Wait blocks
// until the in-flight jobs have finished.
func (p *Pool) Start(ctx context.Context) {
	if len(p.handlers) == 0 {
		log.Warn().Msg("worker pool: no handlers registered, not starting")
		return
	}
	queues := p.queues()
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.run(ctx, id, queues)
		}(i)
	}
	log.Info().Int("workers", p.size).Strs("queues", queues).Msg("worker pool started")
}

func (p *Pool) Wait() { p.wg.Wait() }

func (p *Pool) run(ctx context.Context, id int, queues []string) {
	failures := 0
	for {
		select {
		case <-ctx.Done():
			log.Info().Int("worker", id).Msg("worker shutting down")
			return
		default:
			// waits up to 5s then loops to check ctx
			result, err := p.rdb.BRPop(ctx, 5*time.Second, queues...).Result()
			if errors.Is(err, redis.Nil) {
				failures = 0
				continue
			}
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				failures++
				wait := pollBackoff(failures)
				if failures == 1 {
					log.Warn().Err(err).Int("worker", id).Msg("worker: redis unavailable, backing off")
				}
				select {
				case <-ctx.Done():
				case <-time.After(wait):
				}
				continue
			}
			failures = 0
			if len(result) < 2 {
				continue
			}
			p.process(ctx, result[0], result[1])
		}
	}
}

// pollBackoff doubles from 100ms per consecutive Redis failure, capped at 5s.
func pollBackoff(failures int) time.Duration {
	const (
		base     = 100 * time.Millisecond
		maxDelay = 5 * time.Second
	)
	if failures < 1 {
		return 0
	}
	if failures > 6 {
		return maxDelay
	}
	d := base << uint(failures-1)
	if d > maxDelay {
		return maxDelay
	}
	return d
}

func (p *Pool) process(ctx context.Context, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		quoted, _ := json.Marshal(raw)
		SendToDLQ(ctx, p.rdb, queue, "unknown", quoted, "malformed envelope", 0)
		return
	}

	h, ok := p.handlers[queue]
	if !ok {
		log.Error().Str("queue", queue).Str("type", job.Type).Msg("no handler for queue")
		return
	}

	jobCtx := ctx
	if job.RequestID != "" {
		jobCtx = logger.ContextWithRequestID(ctx, job.RequestID)
	}
	l := logger.Ctx(jobCtx)
	l.Debug().Str("type", job.Type).Str("queue", queue).Msg("processing job")

	attempts := 0
	err := withRetry(jobCtx, p.maxAttempts, p.backoff, func(int) error {
		attempts++
		return h.Process(jobCtx, job.Payload)
	})
	if err != nil {
		l.Error().Err(err).Str("type", job.Type).Int("attempts", attempts).Msg("job failed")
		SendToDLQ(ctx, p.rdb, queue, job.Type, job.Payload, err.Error(), attempts)
	}
}

// withRetry calls fn up to maxAttempts times with exponential backoff
// starting at base.
func withRetry(ctx context.Context, maxAttempts int, base time.Duration, fn func(attempt int) error) error {
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		if i > 0 {
			wait := base * time.Duration(1<<uint(i-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		if err := fn(i); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}
