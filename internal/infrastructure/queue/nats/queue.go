package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/merchant-statements/internal/infrastructure/resilience"
)

const workerQueueGroup = "statement-workers"

// submittedEvent is the wire form of a statement submission.
type submittedEvent struct {
	StatementID string    `json:"statement_id"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type Queue struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
	logger   *slog.Logger
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
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
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("merchant-statements"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			logger.Log(context.Background(), asyncErrorLevel(err), "nats async error", "subject", subject, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
		logger:   logger,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishStatementSubmitted(ctx context.Context, statementID string) error {
	payload, err := encodeEvent(statementID, time.Now().UTC())
	if err != nil {
		return err
	}

	call := func(_ context.Context) error {
		if err := q.conn.Publish(q.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, opPublish, call, classifyQueueError)
	} else {
		err = call(ctx)
	}
	return wrapTemporary(opPublish, err)
}

func (q *Queue) SubscribeStatementSubmitted(ctx context.Context, handler func(context.Context, string) error) error {
	onMessage := func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		event, err := decodeEvent(msg.Data)
		if err != nil {
			q.logger.Error("drop malformed statement event", "error", err)
			return
		}
		if !event.SubmittedAt.IsZero() {
			q.logger.Debug("statement event received", "statement_id", event.StatementID, "queue_lag", time.Since(event.SubmittedAt).String())
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, event.StatementID); err != nil {
			q.logger.Error("worker handler error", "statement_id", event.StatementID, "error", err)
		}
	}

	var sub *nats.Subscription
	subscribe := func(_ context.Context) error {
		s, err := q.conn.QueueSubscribe(q.subject, workerQueueGroup, onMessage)
		if err != nil {
			return fmt.Errorf("nats subscribe: %w", err)
		}
		sub = s
		return nil
	}
	var err error
	if q.executor != nil {
		err = q.executor.Execute(ctx, opSubscribe, subscribe, classifyQueueError)
	} else {
		err = subscribe(ctx)
	}
	if err != nil {
		return wrapTemporary(opSubscribe, err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func encodeEvent(statementID string, at time.Time) ([]byte, error) {
	payload, err := json.Marshal(submittedEvent{StatementID: statementID, SubmittedAt: at})
	if err != nil {
		return nil, fmt.Errorf("marshal statement event: %w", err)
	}
	return payload, nil
}

// decodeEvent also accepts a bare statement id so events can be replayed by hand
// with `nats pub`.
func decodeEvent(data []byte) (submittedEvent, error) {
	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return submittedEvent{}, errors.New("empty statement event")
	}
	if !strings.HasPrefix(raw, "{") {
		return submittedEvent{StatementID: raw}, nil
	}
	var event submittedEvent
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		return submittedEvent{}, fmt.Errorf("decode statement event: %w", err)
	}
	if strings.TrimSpace(event.StatementID) == "" {
		return submittedEvent{}, errors.New("statement event without statement_id")
	}
	return event, nil
}
