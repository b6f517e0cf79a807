// Package enrichment turns a CNPJ into a company record. The Stub fabricates
// data after a simulated latency; Resilient and Cached decorate any
// port.Enricher with fault tolerance and lookup caching.
package enrichment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/cnpj-enricher-go/internal/domain"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("enrichment")

// DefaultDelay is the simulated provider latency.
const DefaultDelay = 2 * time.Second

// Stub fabricates company data. It holds no state between calls, so
// concurrent calls are independent.
type Stub struct {
	// Delay is waited before each result; zero answers immediately.
	Delay time.Duration
	// Now stamps EnrichedAt.
	Now func() time.Time
	// NewID generates the record id.
	NewID func() string
	// Outcome, when set, is consulted with the CNPJ digits before a record
	// is fabricated; a non-nil error is returned as the lookup failure.
	Outcome func(digits string) error
}

// NewStub creates a stub with the given delay, wall clock and UUID ids.
func NewStub(delay time.Duration) *Stub {
	return &Stub{
		Delay: delay,
		Now:   time.Now,
		NewID: uuid.NewString,
	}
}

// Enrich waits for the simulated latency and returns a fabricated record.
func (s *Stub) Enrich(ctx context.Context, cnpj string) (*domain.Company, error) {
	ctx, span := tracer.Start(ctx, "Stub.Enrich")
	defer span.End()
	span.SetAttributes(attribute.String("company.cnpj", cnpj))

	digits := domain.CNPJDigits(cnpj)
	if len(digits) != domain.CNPJLen {
		return nil, &domain.ErrValidation{Field: "cnpj", Message: "CNPJ deve conter 14 dígitos"}
	}

	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	if s.Outcome != nil {
		if err := s.Outcome(digits); err != nil {
			return nil, err
		}
	}

	return &domain.Company{
		ID:               s.NewID(),
		CNPJ:             domain.FormatCNPJ(digits),
		RazaoSocial:      fmt.Sprintf("EMPRESA %s LTDA", digits[2:8]),
		Situacao:         domain.SituacaoAtiva,
		DataAbertura:     "2019-06-01",
		NaturezaJuridica: "Sociedade Empresária Limitada",
		Endereco: domain.Address{
			Logradouro: "Rua Exemplo",
			Numero:     "123",
			Bairro:     "Centro",
			Cidade:     "São Paulo",
			UF:         "SP",
			CEP:        "01000-000",
		},
		CapitalSocial:      10000,
		Porte:              domain.PorteMicro,
		AtividadePrincipal: "Atividades de serviços de tecnologia da informação",
		EnrichedAt:         s.Now().UTC(),
		Status:             domain.LifecycleEnriched,
	}, nil
}

func (s *Stub) wait(ctx context.Context) error {
	if s.Delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.Delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &domain.ErrTimeout{Operation: "enrichment"}
		}
		return ctx.Err()
	}
}
