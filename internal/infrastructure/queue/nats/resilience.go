package nats

import (
	"context"
	"errors"

	"github.com/kirillkom/policy-qa/internal/infrastructure/resilience"
	"github.com/nats-io/nats.go"
)

// publishTraceOp names the trace publish in breaker state and error text.
const publishTraceOp = "nats.publish_answer_trace"

// classifyTraceQueueError treats lost connections and publish timeouts as
// transient; anything else (oversized trace, bad subject) is permanent.
func classifyTraceQueueError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}
	if errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrDisconnected) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	return resilience.ErrorClassification{
		Retryable:     false,
		RecordFailure: true,
	}
}
