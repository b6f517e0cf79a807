// Package memstore keeps enriched company records in process memory.
// Records are lost on restart.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/boddenberg/cnpj-enricher-go/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("memstore")

// Store is an ordered, goroutine-safe collection of companies keyed by id,
// with a secondary index on the CNPJ digits.
type Store struct {
	mu      sync.RWMutex
	records []domain.Company
	byCNPJ  map[string]string // digits -> id
}

// New creates an empty store.
func New() *Store {
	return &Store{byCNPJ: make(map[string]string)}
}

// Seed appends records that are not yet present, skipping invalid ones.
// It returns how many were added.
func (s *Store) Seed(ctx context.Context, companies []domain.Company) int {
	n := 0
	for _, c := range companies {
		if err := s.Add(ctx, c); err == nil {
			n++
		}
	}
	return n
}

// Add appends c to the end of the collection.
func (s *Store) Add(ctx context.Context, c domain.Company) error {
	_, span := tracer.Start(ctx, "Store.Add")
	defer span.End()
	span.SetAttributes(attribute.String("company.cnpj", c.CNPJ))

	digits := domain.CNPJDigits(c.CNPJ)
	if len(digits) != domain.CNPJLen {
		return &domain.ErrValidation{Field: "cnpj", Message: "CNPJ deve conter 14 dígitos"}
	}
	if c.ID == "" {
		return &domain.ErrValidation{Field: "id", Message: "id is required"}
	}
	switch c.Status {
	case domain.LifecyclePending, domain.LifecycleEnriched, domain.LifecycleError:
	default:
		return &domain.ErrValidation{Field: "status", Message: fmt.Sprintf("unknown lifecycle %q", c.Status)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byCNPJ[digits]; exists {
		return &domain.ErrConflict{Message: fmt.Sprintf("CNPJ já cadastrado: %s", domain.FormatCNPJ(digits))}
	}
	if s.indexOf(c.ID) >= 0 {
		return &domain.ErrConflict{Message: fmt.Sprintf("id já utilizado: %s", c.ID)}
	}

	c = c.Clone()
	c.CNPJ = domain.FormatCNPJ(digits)
	s.records = append(s.records, c)
	s.byCNPJ[digits] = c.ID
	return nil
}

// Remove deletes the record with the given id. Unknown ids are a no-op and
// report false.
func (s *Store) Remove(ctx context.Context, id string) bool {
	_, span := tracer.Start(ctx, "Store.Remove")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	delete(s.byCNPJ, domain.CNPJDigits(s.records[i].CNPJ))
	s.records = slices.Delete(s.records, i, i+1)
	return true
}

// Update merges patch into the record with the given id. Identity (id and
// CNPJ) is preserved. Unknown ids are a no-op and report false.
func (s *Store) Update(ctx context.Context, id string, patch domain.CompanyPatch) (domain.Company, bool) {
	_, span := tracer.Start(ctx, "Store.Update")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return domain.Company{}, false
	}
	updated := patch.Apply(s.records[i])
	s.records[i] = updated
	return updated.Clone(), true
}

// Get returns a copy of the record with the given id.
func (s *Store) Get(ctx context.Context, id string) (domain.Company, bool) {
	_, span := tracer.Start(ctx, "Store.Get")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return domain.Company{}, false
	}
	return s.records[i].Clone(), true
}

// FindByCNPJ looks a record up by identifier, in any punctuation.
func (s *Store) FindByCNPJ(ctx context.Context, cnpj string) (domain.Company, bool) {
	_, span := tracer.Start(ctx, "Store.FindByCNPJ")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byCNPJ[domain.CNPJDigits(cnpj)]
	if !ok {
		return domain.Company{}, false
	}
	return s.records[s.indexOf(id)].Clone(), true
}

// List returns a copy of all records in insertion order.
func (s *Store) List(ctx context.Context) []domain.Company {
	_, span := tracer.Start(ctx, "Store.List")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Company, len(s.records))
	for i, c := range s.records {
		out[i] = c.Clone()
	}
	return out
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Stats recomputes the aggregate counters from the current collection.
func (s *Store) Stats(ctx context.Context) domain.Stats {
	_, span := tracer.Start(ctx, "Store.Stats")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.ComputeStats(s.records)
}

func (s *Store) indexOf(id string) int {
	for i := range s.records {
		if s.records[i].ID == id {
			return i
		}
	}
	return -1
}
