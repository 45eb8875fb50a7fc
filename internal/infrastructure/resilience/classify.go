package resilience

import (
	"github.com/kirillkom/crop-disease-analyzer/internal/core/domain"
)

var (
	// Transient failures are retried and count against the breaker.
	Transient = ErrorClassification{Retryable: true, RecordFailure: true}
	// Permanent failures are returned at once but still count against the breaker.
	Permanent = ErrorClassification{RecordFailure: true}
	// Ignored failures are the caller's fault, not the dependency's.
	Ignored = ErrorClassification{}
)

// AsTemporary tags failures the classifier would retry, and open-breaker
// rejections, with domain.ErrTemporary.
func AsTemporary(operation string, err error, classifier ErrorClassifier) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if IsCircuitOpen(err) || (classifier != nil && classifier(err).Retryable) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}
