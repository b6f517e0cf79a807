package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/boddenberg/cnpj-enricher-go/internal/domain"
	"github.com/boddenberg/cnpj-enricher-go/internal/handler"
	"github.com/boddenberg/cnpj-enricher-go/internal/infra/enrichment"
	"github.com/boddenberg/cnpj-enricher-go/internal/infra/memstore"
	"github.com/boddenberg/cnpj-enricher-go/internal/infra/observability"
	"github.com/boddenberg/cnpj-enricher-go/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testAPI struct {
	router http.Handler
	stub   *enrichment.Stub
}

func newTestAPI(t *testing.T, opts handler.Options) *testAPI {
	t.Helper()
	store := memstore.New()
	store.Seed(context.Background(), memstore.DemoCompanies())

	stub := enrichment.NewStub(0)
	metrics := observability.NewMetrics()
	svc := service.NewRegistry(store, stub, 2, time.Second, metrics, zap.NewNop())

	return &testAPI{
		router: handler.NewRouter(svc, metrics, zap.NewNop(), opts),
		stub:   stub,
	}
}

func (a *testAPI) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestEnrichCompany_Created(t *testing.T) {
	api := newTestAPI(t, handler.Options{})

	rec := api.do(http.MethodPost, "/v1/companies", `{"cnpj":"44.555.666/0001-77"}`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	company := decode[domain.Company](t, rec)
	assert.Equal(t, "44.555.666/0001-77", company.CNPJ)
	assert.Equal(t, "EMPRESA 555666 LTDA", company.RazaoSocial)
	assert.Equal(t, domain.LifecycleEnriched, company.Status)
	assert.Equal(t, "/v1/companies/"+company.ID, rec.Header().Get("Location"))

	stats := decode[domain.Stats](t, api.do(http.MethodGet, "/v1/companies/stats", ""))
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 4, stats.Enriched)
}

func TestEnrichCompany_Rejections(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"incomplete cnpj", `{"cnpj":"11.222.333/0001-8"}`, http.StatusBadRequest},
		{"missing field", `{}`, http.StatusBadRequest},
		{"empty body", ``, http.StatusBadRequest},
		{"unknown field", `{"cnpj":"44555666000177","extra":1}`, http.StatusBadRequest},
		{"malformed json", `{"cnpj":`, http.StatusBadRequest},
		{"already registered", `{"cnpj":"11222333000181"}`, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t, handler.Options{})

			var rec *httptest.ResponseRecorder
			if tt.body == "" {
				req := httptest.NewRequest(http.MethodPost, "/v1/companies", strings.NewReader(""))
				rec = httptest.NewRecorder()
				api.router.ServeHTTP(rec, req)
			} else {
				rec = api.do(http.MethodPost, "/v1/companies", tt.body)
			}

			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.Len(t, decode[domain.ListResponse[domain.Company]](t, api.do(http.MethodGet, "/v1/companies", "")).Data, 3)
		})
	}
}

func TestEnrichCompany_ProviderFailure(t *testing.T) {
	api := newTestAPI(t, handler.Options{})
	api.stub.Outcome = func(string) error {
		return &domain.ErrExternalService{Service: "enrichment", Err: errors.New("503")}
	}

	rec := api.do(http.MethodPost, "/v1/companies", `{"cnpj":"44555666000177"}`)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "Não foi possível coletar os dados da empresa")
}

func TestEnrichCompany_Timeout(t *testing.T) {
	api := newTestAPI(t, handler.Options{RequestTimeout: 20 * time.Millisecond})
	api.stub.Delay = time.Minute

	rec := api.do(http.MethodPost, "/v1/companies", `{"cnpj":"44555666000177"}`)

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestEnrichBatch(t *testing.T) {
	api := newTestAPI(t, handler.Options{BatchMaxItems: 3})

	rec := api.do(http.MethodPost, "/v1/companies/batch", `{"cnpjs":["44555666000177","123","11222333000181"]}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[domain.BatchResult](t, rec)
	require.Len(t, result.Results, 3)
	assert.NotNil(t, result.Results[0].Company)
	assert.NotEmpty(t, result.Results[1].Error)
	assert.NotEmpty(t, result.Results[2].Error)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 2, result.Failed)

	tooMany := api.do(http.MethodPost, "/v1/companies/batch", `{"cnpjs":["1","2","3","4"]}`)
	assert.Equal(t, http.StatusBadRequest, tooMany.Code)

	empty := api.do(http.MethodPost, "/v1/companies/batch", `{"cnpjs":[]}`)
	assert.Equal(t, http.StatusBadRequest, empty.Code)
}

func TestListCompanies(t *testing.T) {
	api := newTestAPI(t, handler.Options{})

	all := decode[domain.ListResponse[domain.Company]](t, api.do(http.MethodGet, "/v1/companies", ""))
	assert.Equal(t, 3, all.Total)
	require.Len(t, all.Data, 3)
	assert.Equal(t, []string{"1", "2", "3"}, []string{all.Data[0].ID, all.Data[1].ID, all.Data[2].ID})

	filtered := decode[domain.ListResponse[domain.Company]](t, api.do(http.MethodGet, "/v1/companies?q=mercado", ""))
	require.Len(t, filtered.Data, 1)
	assert.Equal(t, "2", filtered.Data[0].ID)

	paged := decode[domain.ListResponse[domain.Company]](t, api.do(http.MethodGet, "/v1/companies?page=2&page_size=2", ""))
	assert.Equal(t, 3, paged.Total)
	require.Len(t, paged.Data, 1)
	assert.Equal(t, "3", paged.Data[0].ID)
	assert.False(t, paged.HasMore)
}

func TestGetCompany(t *testing.T) {
	api := newTestAPI(t, handler.Options{})

	rec := api.do(http.MethodGet, "/v1/companies/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "TECH SOLUTIONS LTDA", decode[domain.Company](t, rec).RazaoSocial)

	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/v1/companies/missing", "").Code)
}

func TestUpdateCompany(t *testing.T) {
	api := newTestAPI(t, handler.Options{})

	rec := api.do(http.MethodPatch, "/v1/companies/1", `{"situacao":"BAIXADA","endereco":{"cidade":"Campinas"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	company := decode[domain.Company](t, rec)
	assert.Equal(t, domain.SituacaoBaixada, company.Situacao)
	assert.Equal(t, "Campinas", company.Endereco.Cidade)
	assert.Equal(t, "Av. Paulista", company.Endereco.Logradouro)
	assert.Equal(t, "11.222.333/0001-81", company.CNPJ)

	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPatch, "/v1/companies/1", `{"situacao":"FECHADA"}`).Code)
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPatch, "/v1/companies/1", `{"cnpj":"44555666000177"}`).Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodPatch, "/v1/companies/missing", `{"nomeFantasia":"X"}`).Code)
}

func TestDeleteCompany(t *testing.T) {
	api := newTestAPI(t, handler.Options{})

	assert.Equal(t, http.StatusNoContent, api.do(http.MethodDelete, "/v1/companies/2", "").Code)
	assert.Equal(t, http.StatusNoContent, api.do(http.MethodDelete, "/v1/companies/missing", "").Code)

	stats := decode[domain.Stats](t, api.do(http.MethodGet, "/v1/companies/stats", ""))
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/v1/companies/2", "").Code)
}

func TestExportCompanies(t *testing.T) {
	api := newTestAPI(t, handler.Options{})

	rec := api.do(http.MethodPost, "/v1/companies/export", "")

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, decode[domain.SuccessResponse](t, rec).Message, "Exportação iniciada")
}

func TestEnrichmentMetrics(t *testing.T) {
	api := newTestAPI(t, handler.Options{})
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/v1/companies", `{"cnpj":"44555666000177"}`).Code)
	require.Equal(t, http.StatusConflict, api.do(http.MethodPost, "/v1/companies", `{"cnpj":"44555666000177"}`).Code)

	snapshot := decode[domain.EnrichmentMetrics](t, api.do(http.MethodGet, "/v1/metrics/enrichment", ""))
	assert.Equal(t, int64(1), snapshot.Succeeded)
	assert.Equal(t, int64(1), snapshot.Duplicates)
	assert.Equal(t, int64(4), snapshot.StoredRecords)
}
