package handler

import (
	"fmt"
	"net/http"

	"github.com/boddenberg/cnpj-enricher-go/internal/domain"
	"github.com/boddenberg/cnpj-enricher-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Companies Handlers
// ============================================================

type enrichRequest struct {
	CNPJ string `json:"cnpj" validate:"required,cnpj"`
}

type enrichBatchRequest struct {
	CNPJs []string `json:"cnpjs" validate:"required,min=1,dive,required"`
}

type formatResponse struct {
	Formatted string `json:"formatted"`
	Digits    string `json:"digits"`
	Valid     bool   `json:"valid"`
}

func formatCNPJHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		value := r.URL.Query().Get("value")
		writeJSON(w, http.StatusOK, formatResponse{
			Formatted: domain.FormatCNPJ(value),
			Digits:    domain.CNPJDigits(value),
			Valid:     domain.ValidateCNPJ(value),
		})
	}
}

func enrichCompanyHandler(svc *service.Registry, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/companies")
		defer span.End()

		var req enrichRequest
		if err := decodeJSON(w, r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.String("company.cnpj", domain.FormatCNPJ(req.CNPJ)))

		company, err := svc.Enrich(ctx, req.CNPJ)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.Header().Set("Location", fmt.Sprintf("/v1/companies/%s", company.ID))
		writeJSON(w, http.StatusCreated, company)
	}
}

func enrichBatchHandler(svc *service.Registry, maxItems int, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/companies/batch")
		defer span.End()

		var req enrichBatchRequest
		if err := decodeJSON(w, r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if len(req.CNPJs) > maxItems {
			handleServiceError(w, &domain.ErrValidation{
				Field:   "cnpjs",
				Message: fmt.Sprintf("máximo de %d CNPJs por lote", maxItems),
			}, logger)
			return
		}

		result, err := svc.EnrichBatch(ctx, req.CNPJs)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func listCompaniesHandler(svc *service.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/companies")
		defer span.End()

		query := r.URL.Query().Get("q")
		page, pageSize := parsePagination(r)

		companies := svc.List(ctx, query)
		writeJSON(w, http.StatusOK, paginate(companies, page, pageSize))
	}
}

func getCompanyHandler(svc *service.Registry, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/companies/{companyId}")
		defer span.End()

		company, err := svc.Get(ctx, chi.URLParam(r, "companyId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, company)
	}
}

func updateCompanyHandler(svc *service.Registry, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/companies/{companyId}")
		defer span.End()

		var patch domain.CompanyPatch
		if err := decodeJSON(w, r, &patch); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		company, err := svc.Update(ctx, chi.URLParam(r, "companyId"), patch)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, company)
	}
}

func deleteCompanyHandler(svc *service.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/companies/{companyId}")
		defer span.End()

		svc.Delete(ctx, chi.URLParam(r, "companyId"))
		w.WriteHeader(http.StatusNoContent)
	}
}

func companyStatsHandler(svc *service.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/companies/stats")
		defer span.End()

		writeJSON(w, http.StatusOK, svc.Stats(ctx))
	}
}

// exportCompaniesHandler only acknowledges the request; file export is not
// implemented.
func exportCompaniesHandler(svc *service.Registry, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger.Info("export requested", zap.Int("records", svc.Count()))
		writeJSON(w, http.StatusAccepted, domain.SuccessResponse{
			Message: "Exportação iniciada. Os dados serão exportados em breve.",
		})
	}
}
