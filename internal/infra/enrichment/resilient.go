package enrichment

import (
	"context"
	"errors"

	"github.com/boddenberg/cnpj-enricher-go/internal/domain"
	"github.com/boddenberg/cnpj-enricher-go/internal/infra/observability"
	"github.com/boddenberg/cnpj-enricher-go/internal/infra/resilience"
	"github.com/boddenberg/cnpj-enricher-go/internal/port"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const providerName = "enrichment"

// Resilient guards an Enricher with a bulkhead, a circuit breaker and retry
// with exponential backoff.
type Resilient struct {
	next     port.Enricher
	cb       *gobreaker.CircuitBreaker
	bulkhead *resilience.Bulkhead
	cfg      resilience.Config
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewResilient wraps next. Validation, not-found and cancellation errors are
// never retried.
func NewResilient(next port.Enricher, cb *gobreaker.CircuitBreaker, cfg resilience.Config, metrics *observability.Metrics, logger *zap.Logger) *Resilient {
	if cfg.Retryable == nil {
		cfg.Retryable = isRetryable
	}
	return &Resilient{
		next:     next,
		cb:       cb,
		bulkhead: resilience.NewBulkhead(cfg.MaxConcurrency),
		cfg:      cfg,
		metrics:  metrics,
		logger:   logger,
	}
}

// Enrich calls the wrapped enricher with retry, circuit breaker, and tracing.
func (r *Resilient) Enrich(ctx context.Context, cnpj string) (*domain.Company, error) {
	ctx, span := tracer.Start(ctx, "Resilient.Enrich")
	defer span.End()

	if err := r.bulkhead.Acquire(ctx); err != nil {
		return nil, contextError(err)
	}
	defer r.bulkhead.Release()
	span.SetAttributes(attribute.Int("bulkhead.in_use", r.bulkhead.InUse()))

	result, err := r.cb.Execute(func() (any, error) {
		var company *domain.Company
		innerErr := resilience.RetryWithBackoff(ctx, r.cfg, func() error {
			c, err := r.next.Enrich(ctx, cnpj)
			if err != nil {
				r.logger.Debug("enrichment attempt failed",
					zap.String("cnpj", cnpj),
					zap.Error(err),
				)
				return err
			}
			company = c
			return nil
		})
		if innerErr != nil {
			return nil, innerErr
		}
		return company, nil
	})

	if err != nil {
		span.RecordError(err)
		return nil, r.translate(err)
	}
	return result.(*domain.Company), nil
}

func (r *Resilient) translate(err error) error {
	var validation *domain.ErrValidation
	var notFound *domain.ErrNotFound
	var timeout *domain.ErrTimeout

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		r.metrics.IncrExternalError(providerName)
		return &domain.ErrCircuitOpen{Service: providerName}
	case errors.As(err, &validation), errors.As(err, &notFound), errors.As(err, &timeout):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return contextError(err)
	default:
		r.metrics.IncrExternalError(providerName)
		return &domain.ErrExternalService{Service: providerName, Err: err}
	}
}

func isRetryable(err error) bool {
	var validation *domain.ErrValidation
	var notFound *domain.ErrNotFound
	switch {
	case errors.As(err, &validation), errors.As(err, &notFound):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

func contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.ErrTimeout{Operation: providerName}
	}
	return err
}
