package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/cnpj-enricher-go/internal/domain"
	"github.com/boddenberg/cnpj-enricher-go/internal/infra/cache"
	"github.com/boddenberg/cnpj-enricher-go/internal/infra/enrichment"
	"github.com/boddenberg/cnpj-enricher-go/internal/infra/memstore"
	"github.com/boddenberg/cnpj-enricher-go/internal/infra/observability"
	"github.com/boddenberg/cnpj-enricher-go/internal/port"
	"github.com/boddenberg/cnpj-enricher-go/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- Mocks ---

type mockEnricher struct {
	calls   atomic.Int32
	err     error
	release chan struct{}
	started chan struct{}
	once    sync.Once
}

func (m *mockEnricher) Enrich(ctx context.Context, cnpj string) (*domain.Company, error) {
	n := m.calls.Add(1)
	if m.started != nil {
		m.once.Do(func() { close(m.started) })
	}
	if m.release != nil {
		<-m.release
	}
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Company{
		ID:          fmt.Sprintf("id-%d", n),
		CNPJ:        cnpj,
		RazaoSocial: "EMPRESA TESTE LTDA",
		Situacao:    domain.SituacaoAtiva,
		Porte:       domain.PorteMicro,
		EnrichedAt:  time.Now().UTC(),
		Status:      domain.LifecycleEnriched,
	}, nil
}

func newRegistry(enricher port.Enricher) (*service.Registry, *memstore.Store) {
	store := memstore.New()
	return service.NewRegistry(store, enricher, 4, time.Second, observability.NewMetrics(), zap.NewNop()), store
}

type submission struct {
	company *domain.Company
	err     error
}

func submit(ctx context.Context, svc *service.Registry, cnpj string) <-chan submission {
	out := make(chan submission, 1)
	go func() {
		c, err := svc.Enrich(ctx, cnpj)
		out <- submission{c, err}
	}()
	return out
}

// --- Tests ---

func TestEnrich_Success(t *testing.T) {
	svc, _ := newRegistry(&mockEnricher{})

	company, err := svc.Enrich(context.Background(), "11222333000181")
	require.NoError(t, err)
	assert.Equal(t, "11.222.333/0001-81", company.CNPJ)

	stats := svc.Stats(context.Background())
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Enriched)
}

func TestEnrich_InvalidCNPJ(t *testing.T) {
	enricher := &mockEnricher{}
	svc, _ := newRegistry(enricher)

	_, err := svc.Enrich(context.Background(), "1122233300018")

	var validation *domain.ErrValidation
	require.ErrorAs(t, err, &validation)
	assert.Zero(t, enricher.calls.Load(), "enricher must not be called for an invalid CNPJ")
	assert.Zero(t, svc.Count())
}

func TestEnrich_Duplicate(t *testing.T) {
	enricher := &mockEnricher{}
	svc, _ := newRegistry(enricher)
	ctx := context.Background()

	_, err := svc.Enrich(ctx, "11.222.333/0001-81")
	require.NoError(t, err)

	_, err = svc.Enrich(ctx, "11222333000181")

	var conflict *domain.ErrConflict
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, 1, svc.Count())
	assert.Equal(t, int32(1), enricher.calls.Load())
}

func TestEnrich_ProviderFailureStoresNothing(t *testing.T) {
	svc, _ := newRegistry(&mockEnricher{err: &domain.ErrExternalService{Service: "enrichment", Err: errors.New("503")}})

	_, err := svc.Enrich(context.Background(), "11222333000181")

	var external *domain.ErrExternalService
	require.ErrorAs(t, err, &external)
	assert.Zero(t, svc.Count())
}

func TestEnrich_CancelledCallerDiscardsResult(t *testing.T) {
	enricher := &mockEnricher{release: make(chan struct{}), started: make(chan struct{})}
	svc, _ := newRegistry(enricher)
	ctx, cancel := context.WithCancel(context.Background())

	done := submit(ctx, svc, "11222333000181")
	<-enricher.started
	cancel()

	res := <-done
	assert.ErrorIs(t, res.err, context.Canceled, "the caller returns as soon as it cancels")

	close(enricher.release)
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, svc.Count(), "abandoned result must not be stored")
}

func TestEnrich_DeadlineBecomesTimeout(t *testing.T) {
	enricher := &mockEnricher{release: make(chan struct{})}
	defer close(enricher.release)
	svc, _ := newRegistry(enricher)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := svc.Enrich(ctx, "11222333000181")

	var timeout *domain.ErrTimeout
	assert.ErrorAs(t, err, &timeout)
	assert.Zero(t, svc.Count())
}

func TestEnrich_AlreadyCancelled(t *testing.T) {
	enricher := &mockEnricher{}
	svc, _ := newRegistry(enricher)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Enrich(ctx, "11222333000181")

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, enricher.calls.Load())
}

func TestEnrich_ConcurrentSameCNPJShareLookup(t *testing.T) {
	enricher := &mockEnricher{release: make(chan struct{}), started: make(chan struct{})}
	svc, _ := newRegistry(enricher)

	first := submit(context.Background(), svc, "11222333000181")
	<-enricher.started
	second := submit(context.Background(), svc, "11.222.333/0001-81")
	time.Sleep(20 * time.Millisecond)
	close(enricher.release)

	results := []submission{<-first, <-second}

	assert.Equal(t, int32(1), enricher.calls.Load(), "one provider lookup")
	assert.Equal(t, 1, svc.Count(), "one record")

	var created, conflicts int
	for _, res := range results {
		var conflict *domain.ErrConflict
		switch {
		case res.err == nil:
			created++
		case errors.As(res.err, &conflict):
			conflicts++
		default:
			assert.Failf(t, "unexpected error", "%v", res.err)
		}
	}
	assert.Equal(t, 1, created, "exactly one submission creates the record")
	assert.Equal(t, 1, conflicts, "the other sees a duplicate, as if it came later")
}

func TestEnrich_SharedLookupSurvivesFirstCallerCancelling(t *testing.T) {
	enricher := &mockEnricher{release: make(chan struct{}), started: make(chan struct{})}
	svc, _ := newRegistry(enricher)
	ctxA, cancelA := context.WithCancel(context.Background())

	a := submit(ctxA, svc, "11222333000181")
	<-enricher.started
	b := submit(context.Background(), svc, "11222333000181")
	time.Sleep(20 * time.Millisecond)

	cancelA()
	resA := <-a
	close(enricher.release)
	resB := <-b

	assert.ErrorIs(t, resA.err, context.Canceled)
	require.NoError(t, resB.err, "a caller that did not cancel still gets the record")
	assert.Equal(t, "11.222.333/0001-81", resB.company.CNPJ)
	assert.Equal(t, 1, svc.Count())
	assert.Equal(t, int32(1), enricher.calls.Load())
}

func TestEnrichBatch_KeepsOrderAndIsolatesFailures(t *testing.T) {
	svc, _ := newRegistry(&mockEnricher{})
	input := []string{"11222333000181", "123", "22.333.444/0001-92", "33444555000103"}

	result, err := svc.EnrichBatch(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, result.Results, len(input))

	want := []string{"11.222.333/0001-81", "12.3", "22.333.444/0001-92", "33.444.555/0001-03"}
	for i, item := range result.Results {
		assert.Equal(t, want[i], item.CNPJ, "result %d", i)
	}
	assert.NotEmpty(t, result.Results[1].Error, "the short CNPJ fails")
	assert.NotNil(t, result.Results[2].Company)
	assert.Equal(t, 3, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 3, svc.Count())
}

func TestEnrichBatch_RepeatedCNPJStoredOnce(t *testing.T) {
	svc, _ := newRegistry(&mockEnricher{})

	result, err := svc.EnrichBatch(context.Background(), []string{"11222333000181", "11.222.333/0001-81"})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, svc.Count())
}

func TestGet_NotFound(t *testing.T) {
	svc, _ := newRegistry(&mockEnricher{})

	_, err := svc.Get(context.Background(), "missing")

	var notFound *domain.ErrNotFound
	assert.ErrorAs(t, err, &notFound)
}

func TestUpdate(t *testing.T) {
	svc, _ := newRegistry(&mockEnricher{})
	ctx := context.Background()
	company, err := svc.Enrich(ctx, "11222333000181")
	require.NoError(t, err)

	fantasia := "Teste"
	updated, err := svc.Update(ctx, company.ID, domain.CompanyPatch{NomeFantasia: &fantasia})
	require.NoError(t, err)
	assert.Equal(t, "Teste", updated.NomeFantasia)
	assert.Equal(t, company.RazaoSocial, updated.RazaoSocial)

	var notFound *domain.ErrNotFound
	_, err = svc.Update(ctx, "missing", domain.CompanyPatch{NomeFantasia: &fantasia})
	assert.ErrorAs(t, err, &notFound)
}

func TestDelete(t *testing.T) {
	svc, _ := newRegistry(&mockEnricher{})
	ctx := context.Background()
	company, err := svc.Enrich(ctx, "11222333000181")
	require.NoError(t, err)

	assert.False(t, svc.Delete(ctx, "missing"), "deleting an unknown id reports false")
	require.Equal(t, 1, svc.Count(), "unknown id leaves the store unchanged")

	assert.True(t, svc.Delete(ctx, company.ID))
	assert.Zero(t, svc.Count())

	_, err = svc.Enrich(ctx, "11222333000181")
	assert.NoError(t, err, "the same CNPJ can be registered again")
}

func TestDelete_ForgetsRememberedLookup(t *testing.T) {
	lookups := cache.New[domain.Company](time.Minute)
	defer lookups.Close()

	stub := enrichment.NewStub(0)
	var providerCalls atomic.Int32
	stub.Outcome = func(string) error {
		providerCalls.Add(1)
		return nil
	}
	svc, _ := newRegistry(enrichment.NewCached(stub, lookups, observability.NewMetrics()))
	ctx := context.Background()

	company, err := svc.Enrich(ctx, "11222333000181")
	require.NoError(t, err)
	require.True(t, svc.Delete(ctx, company.ID))

	again, err := svc.Enrich(ctx, "11222333000181")
	require.NoError(t, err)

	assert.Equal(t, int32(2), providerCalls.Load(), "a deleted CNPJ is looked up afresh")
	assert.NotEqual(t, company.ID, again.ID)
}

func TestList_FiltersSeededData(t *testing.T) {
	svc, store := newRegistry(&mockEnricher{})
	store.Seed(context.Background(), memstore.DemoCompanies())

	assert.Len(t, svc.List(context.Background(), ""), 3)
	assert.Len(t, svc.List(context.Background(), "techsol"), 1, "matches trade name")
}
