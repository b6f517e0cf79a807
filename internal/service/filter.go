package service

import (
	"strings"

	"github.com/boddenberg/cnpj-enricher-go/internal/domain"
)

// FilterCompanies returns the records whose CNPJ (as displayed, punctuation
// included), razão social or nome fantasia contain query, ignoring case.
// Relative order is preserved and an empty query matches everything.
func FilterCompanies(companies []domain.Company, query string) []domain.Company {
	out := make([]domain.Company, 0, len(companies))
	if query == "" {
		return append(out, companies...)
	}

	q := strings.ToLower(query)
	for _, c := range companies {
		if matchesQuery(c, q) {
			out = append(out, c)
		}
	}
	return out
}

func matchesQuery(c domain.Company, lowerQuery string) bool {
	return strings.Contains(strings.ToLower(c.CNPJ), lowerQuery) ||
		strings.Contains(strings.ToLower(c.RazaoSocial), lowerQuery) ||
		(c.NomeFantasia != "" && strings.Contains(strings.ToLower(c.NomeFantasia), lowerQuery))
}
