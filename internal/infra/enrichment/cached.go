package enrichment

import (
	"context"
	"time"

	"github.com/boddenberg/cnpj-enricher-go/internal/domain"
	"github.com/boddenberg/cnpj-enricher-go/internal/infra/observability"
	"github.com/boddenberg/cnpj-enricher-go/internal/port"

	"github.com/google/uuid"
)

// Cached remembers successful lookups per CNPJ. A hit is served as a copy
// with a fresh id and enrichment time, as if the provider had answered again.
type Cached struct {
	// Now stamps EnrichedAt on cache hits.
	Now func() time.Time

	next    port.Enricher
	cache   port.Cache[domain.Company]
	newID   func() string
	metrics *observability.Metrics
}

// NewCached wraps next with cache.
func NewCached(next port.Enricher, cache port.Cache[domain.Company], metrics *observability.Metrics) *Cached {
	return &Cached{
		Now:     time.Now,
		next:    next,
		cache:   cache,
		newID:   uuid.NewString,
		metrics: metrics,
	}
}

// Enrich serves from cache when possible, otherwise delegates and stores the result.
func (c *Cached) Enrich(ctx context.Context, cnpj string) (*domain.Company, error) {
	ctx, span := tracer.Start(ctx, "Cached.Enrich")
	defer span.End()

	key := domain.CNPJDigits(cnpj)
	if hit, ok := c.cache.Get(key); ok {
		c.metrics.IncrCacheHit("lookup")
		company := hit.Clone()
		company.ID = c.newID()
		company.EnrichedAt = c.Now().UTC()
		return &company, nil
	}
	c.metrics.IncrCacheMiss("lookup")

	company, err := c.next.Enrich(ctx, cnpj)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, company.Clone())
	return company, nil
}

// Forget evicts the remembered lookup for cnpj.
func (c *Cached) Forget(cnpj string) {
	c.cache.Delete(domain.CNPJDigits(cnpj))
}
