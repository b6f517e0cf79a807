// Package port defines the interfaces (ports) for the service's collaborators.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/boddenberg/cnpj-enricher-go/internal/domain"
)

// Enricher resolves a CNPJ into a full company record.
// Implementations must honour ctx cancellation and must not keep state
// between calls.
type Enricher interface {
	Enrich(ctx context.Context, cnpj string) (*domain.Company, error)
}

// Forgetter is implemented by enrichers that remember lookups. Forget drops
// whatever is remembered for cnpj.
type Forgetter interface {
	Forget(cnpj string)
}

// CompanyStore holds the ordered collection of enriched records.
type CompanyStore interface {
	Add(ctx context.Context, c domain.Company) error
	Remove(ctx context.Context, id string) bool
	Update(ctx context.Context, id string, patch domain.CompanyPatch) (domain.Company, bool)
	Get(ctx context.Context, id string) (domain.Company, bool)
	FindByCNPJ(ctx context.Context, cnpj string) (domain.Company, bool)
	List(ctx context.Context) []domain.Company
	Len() int
	Stats(ctx context.Context) domain.Stats
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
