package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/resume-ranker/internal/core/domain"
	"github.com/kirillkom/resume-ranker/internal/infrastructure/resilience"
)

const workerGroup = "workers"

// reconnectableErrors are connection states the client recovers from by itself,
// so a publish that hit one of them is worth another attempt.
var reconnectableErrors = []error{
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrConnectionReconnecting,
	nats.ErrDisconnected,
}

type Queue struct {
	conn        *nats.Conn
	subject     string
	concurrency int
	executor    *resilience.Executor

	subscribed     chan struct{}
	subscribedOnce sync.Once
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	// Concurrency is the number of queue-group subscriptions this process
	// holds; each delivers messages on its own goroutine.
	Concurrency        int
	ResilienceExecutor *resilience.Executor
}

func New(url, subject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	concurrency := options.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	conn, err := nats.Connect(
		url,
		nats.Name("resume-ranker"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:        conn,
		subject:     subject,
		concurrency: concurrency,
		executor:    options.ResilienceExecutor,
		subscribed:  make(chan struct{}),
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishResumeSubmitted(ctx context.Context, resumeID string) error {
	return q.publish(ctx, "nats.publish", q.subject, []byte(resumeID))
}

func (q *Queue) SubscribeResumeSubmitted(ctx context.Context, handler func(context.Context, string) error) error {
	subs := make([]*nats.Subscription, 0, q.concurrency)
	for i := 0; i < q.concurrency; i++ {
		sub, err := q.conn.QueueSubscribe(q.subject, workerGroup, func(msg *nats.Msg) {
			if ctx.Err() != nil {
				return
			}
			id := string(msg.Data)
			if err := handler(ctx, id); err != nil {
				slog.Error("worker_handler_failed", "resume_id", id, "error", err)
			}
		})
		if err != nil {
			drainAll(subs)
			return fmt.Errorf("nats subscribe: %w", err)
		}
		subs = append(subs, sub)
	}

	if err := q.conn.Flush(); err != nil {
		drainAll(subs)
		return fmt.Errorf("nats flush: %w", err)
	}
	slog.Info("nats_subscribed", "subject", q.subject, "group", workerGroup, "subscriptions", len(subs))
	q.subscribedOnce.Do(func() { close(q.subscribed) })

	<-ctx.Done()
	if err := drainAll(subs); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

// Subscribed is closed once this process holds its queue-group subscriptions.
// Core NATS drops messages nobody is subscribed to, so re-publishing before
// that point can lose work.
func (q *Queue) Subscribed() <-chan struct{} {
	return q.subscribed
}

// NotifyResumeCompleted announces a terminal record on "<subject>.completed".
func (q *Queue) NotifyResumeCompleted(ctx context.Context, record domain.ResumeRecord) error {
	data, err := encodeCompletion(record)
	if err != nil {
		return err
	}
	return q.publish(ctx, "nats.notify", CompletedSubject(q.subject), data)
}

func (q *Queue) publish(ctx context.Context, operation, subject string, data []byte) error {
	call := func(_ context.Context) error {
		if err := q.conn.Publish(subject, data); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}
	return publishFailure(operation, q.executor.Execute(ctx, operation, call, classifyPublishError))
}

// publishFailure tags failures that outlived the retries but may clear up
// later as temporary, so the API answers 503 instead of 500.
func publishFailure(operation string, err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) || !classifyPublishError(err).Retryable {
		return err
	}
	return domain.WrapError(domain.ErrTemporary, operation, err)
}

// classifyPublishError retries connection-level failures and an open breaker.
// A deadline or cancellation belongs to the caller and is not held against the
// connection; everything else follows the domain classification.
func classifyPublishError(err error) resilience.ErrorClassification {
	if err == nil || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	for _, target := range reconnectableErrors {
		if errors.Is(err, target) {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
	}
	return resilience.ClassifyDomain(err)
}

func CompletedSubject(subject string) string {
	return subject + ".completed"
}

type completionEvent struct {
	ResumeID    string `json:"resume_id"`
	Status      string `json:"status"`
	FailedStage string `json:"failed_stage,omitempty"`
	LastError   string `json:"last_error,omitempty"`
}

func encodeCompletion(record domain.ResumeRecord) ([]byte, error) {
	data, err := json.Marshal(completionEvent{
		ResumeID:    record.ID,
		Status:      string(record.Status),
		FailedStage: string(record.FailedStage),
		LastError:   record.LastError,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal completion event: %w", err)
	}
	return data, nil
}

func drainAll(subs []*nats.Subscription) error {
	var errs []error
	for _, sub := range subs {
		if err := sub.Drain(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Pinger reports the connection state for readiness checks.
type Pinger struct {
	queue *Queue
}

func NewPinger(q *Queue) *Pinger {
	return &Pinger{queue: q}
}

func (p *Pinger) Name() string { return "nats" }

func (p *Pinger) Ping(_ context.Context) error {
	if status := p.queue.conn.Status(); status != nats.CONNECTED {
		return fmt.Errorf("nats connection %s", status)
	}
	return nil
}
