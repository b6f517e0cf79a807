package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/cnpj-enricher-go/internal/domain"
	"github.com/boddenberg/cnpj-enricher-go/internal/infra/observability"
	"github.com/boddenberg/cnpj-enricher-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("service/registry")

// Registry orchestrates validation, enrichment and the record store.
type Registry struct {
	store            port.CompanyStore
	enricher         port.Enricher
	batchConcurrency int
	lookupTimeout    time.Duration
	metrics          *observability.Metrics
	logger           *zap.Logger

	inflight singleflight.Group
}

// NewRegistry creates the registry service with all dependencies injected.
// lookupTimeout bounds a shared provider lookup, which outlives the request
// that started it.
func NewRegistry(
	store port.CompanyStore,
	enricher port.Enricher,
	batchConcurrency int,
	lookupTimeout time.Duration,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Registry {
	if batchConcurrency < 1 {
		batchConcurrency = 1
	}
	if lookupTimeout <= 0 {
		lookupTimeout = 30 * time.Second
	}
	r := &Registry{
		store:            store,
		enricher:         enricher,
		batchConcurrency: batchConcurrency,
		lookupTimeout:    lookupTimeout,
		metrics:          metrics,
		logger:           logger,
	}
	metrics.SetStoredRecords(store.Len())
	return r
}

// Enrich validates raw, resolves it into a company record and appends it to
// the store. Nothing is stored when validation or enrichment fails, or when
// ctx is done before the result arrives.
//
// Concurrent submissions of the same CNPJ share one provider lookup. The
// first caller still waiting when it completes stores the record; the others
// get ErrConflict, as they would had they arrived one after the other.
func (r *Registry) Enrich(ctx context.Context, raw string) (*domain.Company, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "Registry.Enrich")
	defer span.End()

	start := time.Now()
	defer func() {
		r.metrics.RecordRequestDuration("enrich", time.Since(start))
	}()

	if !domain.ValidateCNPJ(raw) {
		r.metrics.IncrEnrichment(observability.OutcomeInvalid)
		return nil, &domain.ErrValidation{Field: "cnpj", Message: "CNPJ deve conter 14 dígitos"}
	}
	digits := domain.CNPJDigits(raw)
	display := domain.FormatCNPJ(digits)
	span.SetAttributes(attribute.String("company.cnpj", display))

	if _, ok := r.store.FindByCNPJ(ctx, digits); ok {
		r.metrics.IncrEnrichment(observability.OutcomeDuplicate)
		return nil, &domain.ErrConflict{Message: fmt.Sprintf("CNPJ já cadastrado: %s", display)}
	}

	ch := r.inflight.DoChan(digits, func() (any, error) {
		return r.lookup(ctx, display)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, r.abandon(ctx, display)
	}
	if res.Err != nil {
		return nil, res.Err
	}
	if ctx.Err() != nil {
		return nil, r.abandon(ctx, display)
	}
	if res.Shared {
		r.logger.Debug("enrichment shared with concurrent submission", zap.String("cnpj", display))
	}

	company := res.Val.(domain.Company)
	return r.persist(ctx, company.Clone())
}

// lookup calls the provider on a context that survives the cancellation of
// the caller who started it, so other callers waiting on the same CNPJ still
// get the result.
func (r *Registry) lookup(ctx context.Context, display string) (domain.Company, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.lookupTimeout)
	defer cancel()

	company, err := r.enricher.Enrich(ctx, display)
	if err != nil {
		r.metrics.IncrEnrichment(observability.OutcomeError)
		r.logger.Warn("enrichment failed",
			zap.String("cnpj", display),
			zap.Error(err),
		)
		return domain.Company{}, fmt.Errorf("enrich %s: %w", display, err)
	}
	return *company, nil
}

func (r *Registry) persist(ctx context.Context, company domain.Company) (*domain.Company, error) {
	if err := r.store.Add(ctx, company); err != nil {
		var conflict *domain.ErrConflict
		if errors.As(err, &conflict) {
			r.metrics.IncrEnrichment(observability.OutcomeDuplicate)
			return nil, &domain.ErrConflict{Message: fmt.Sprintf("CNPJ já cadastrado: %s", domain.FormatCNPJ(company.CNPJ))}
		}
		r.metrics.IncrEnrichment(observability.OutcomeError)
		return nil, fmt.Errorf("store company: %w", err)
	}

	r.metrics.IncrEnrichment(observability.OutcomeSuccess)
	r.metrics.SetStoredRecords(r.store.Len())

	stored, ok := r.store.FindByCNPJ(ctx, company.CNPJ)
	if !ok {
		// deleted between Add and lookup
		stored = company
	}
	r.logger.Info("company enriched",
		zap.String("cnpj", stored.CNPJ),
		zap.String("company_id", stored.ID),
	)
	return &stored, nil
}

// abandon records a caller that stopped waiting. A deadline surfaces as a
// timeout; a plain cancellation is returned as is.
func (r *Registry) abandon(ctx context.Context, display string) error {
	r.metrics.IncrEnrichment(observability.OutcomeAbandoned)
	r.logger.Info("enrichment abandoned, result discarded", zap.String("cnpj", display))

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &domain.ErrTimeout{Operation: "enrichment"}
	}
	return ctx.Err()
}

// EnrichBatch enriches every identifier concurrently, bounded by the batch
// concurrency. One failure does not stop the others; results keep the input
// order.
func (r *Registry) EnrichBatch(ctx context.Context, raws []string) (*domain.BatchResult, error) {
	ctx, span := tracer.Start(ctx, "Registry.EnrichBatch")
	defer span.End()
	span.SetAttributes(attribute.Int("batch.size", len(raws)))

	results := make([]domain.BatchItemResult, len(raws))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.batchConcurrency)

	for i, raw := range raws {
		g.Go(func() error {
			item := domain.BatchItemResult{CNPJ: domain.FormatCNPJ(raw)}
			if item.CNPJ == "" {
				item.CNPJ = raw
			}
			company, err := r.Enrich(gCtx, raw)
			if err != nil {
				item.Error = err.Error()
			} else {
				item.Company = company
			}
			results[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &domain.BatchResult{Results: results}
	for _, item := range results {
		if item.Error == "" {
			out.Succeeded++
		} else {
			out.Failed++
		}
	}
	return out, nil
}

// List returns the stored companies matching query, in insertion order.
func (r *Registry) List(ctx context.Context, query string) []domain.Company {
	ctx, span := tracer.Start(ctx, "Registry.List")
	defer span.End()

	return FilterCompanies(r.store.List(ctx), query)
}

// Get returns one company by id.
func (r *Registry) Get(ctx context.Context, id string) (*domain.Company, error) {
	ctx, span := tracer.Start(ctx, "Registry.Get")
	defer span.End()

	c, ok := r.store.Get(ctx, id)
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "company", ID: id}
	}
	return &c, nil
}

// Update merges patch into the company with the given id.
func (r *Registry) Update(ctx context.Context, id string, patch domain.CompanyPatch) (*domain.Company, error) {
	ctx, span := tracer.Start(ctx, "Registry.Update")
	defer span.End()

	c, ok := r.store.Update(ctx, id, patch)
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "company", ID: id}
	}
	r.logger.Info("company updated", zap.String("company_id", id))
	return &c, nil
}

// Delete removes the company with the given id. It reports whether a record
// was removed; deleting an unknown id is not an error. A remembered lookup
// for the removed CNPJ is forgotten, so submitting it again asks the
// provider afresh.
func (r *Registry) Delete(ctx context.Context, id string) bool {
	ctx, span := tracer.Start(ctx, "Registry.Delete")
	defer span.End()

	existing, found := r.store.Get(ctx, id)
	if !found || !r.store.Remove(ctx, id) {
		return false
	}
	if f, ok := r.enricher.(port.Forgetter); ok {
		f.Forget(existing.CNPJ)
	}
	r.metrics.SetStoredRecords(r.store.Len())
	r.logger.Info("company deleted", zap.String("company_id", id))
	return true
}

// Stats returns the aggregate counters for the dashboard cards.
func (r *Registry) Stats(ctx context.Context) domain.Stats {
	ctx, span := tracer.Start(ctx, "Registry.Stats")
	defer span.End()

	return r.store.Stats(ctx)
}

// Count returns the number of stored companies.
func (r *Registry) Count() int {
	return r.store.Len()
}
