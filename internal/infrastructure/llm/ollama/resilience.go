package ollama

import (
	"context"
	"errors"
	"net"

	"github.com/kirillkom/crop-disease-analyzer/internal/infrastructure/resilience"
)

// classifyOllamaError decides how the executor treats a failed generate call.
// A busy host answers 429 or 503 while it loads the model, and slow
// generations hit the per-attempt deadline; both are worth another attempt.
func classifyOllamaError(err error) resilience.ErrorClassification {
	var statusErr *HTTPStatusError
	var netErr net.Error

	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return resilience.Ignored
	case errors.Is(err, context.DeadlineExceeded), resilience.IsCircuitOpen(err):
		return resilience.Transient
	case errors.As(err, &statusErr):
		if statusErr.Temporary() {
			return resilience.Transient
		}
		// Unknown model or rejected prompt: the host itself is fine.
		return resilience.Ignored
	case errors.As(err, &netErr):
		return resilience.Transient
	default:
		return resilience.Permanent
	}
}
