package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual component.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// EnrichmentMetrics is returned by GET /v1/metrics/enrichment.
type EnrichmentMetrics struct {
	TotalEnrichments int64   `json:"totalEnrichments"`
	Succeeded        int64   `json:"succeeded"`
	Failed           int64   `json:"failed"`
	Duplicates       int64   `json:"duplicates"`
	ErrorRate        float64 `json:"errorRate"`
	CacheHitRate     float64 `json:"cacheHitRate"`
	StoredRecords    int64   `json:"storedRecords"`
	Period           string  `json:"period"`
}

// ============================================================
// Generic API Response wrappers
// ============================================================

// ListResponse wraps paginated list results.
type ListResponse[T any] struct {
	Data     []T  `json:"data"`
	Total    int  `json:"total"`
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasMore  bool `json:"has_more"`
}

// SuccessResponse wraps a successful single-entity response.
type SuccessResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}
