package nats

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/merchant-statements/internal/core/domain"
	"github.com/kirillkom/merchant-statements/internal/infrastructure/resilience"
)

// Executor operation labels; each gets its own breaker and metric series.
const (
	opPublish   = "nats.publish"
	opSubscribe = "nats.subscribe"
)

// classifyQueueError decides how a NATS failure counts against the breaker.
// Rejected subjects and oversized events are caller errors and never trip it.
func classifyQueueError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	case resilience.IsCircuitOpen(err):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	case errors.Is(err, nats.ErrNoServers),
		errors.Is(err, nats.ErrTimeout),
		errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, nats.ErrConnectionReconnecting),
		errors.Is(err, nats.ErrDisconnected),
		errors.Is(err, nats.ErrSlowConsumer):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	case errors.Is(err, nats.ErrBadSubject),
		errors.Is(err, nats.ErrBadSubscription),
		errors.Is(err, nats.ErrBadQueueName),
		errors.Is(err, nats.ErrMaxPayload):
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

// wrapTemporary tags retryable failures as domain.ErrTemporary.
func wrapTemporary(operation string, err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifyQueueError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}

// asyncErrorLevel picks the log level for errors NATS reports outside a call.
// A slow consumer is dropping statement events.
func asyncErrorLevel(err error) slog.Level {
	if errors.Is(err, nats.ErrSlowConsumer) {
		return slog.LevelError
	}
	return slog.LevelWarn
}
