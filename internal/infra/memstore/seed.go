package memstore

import (
	"time"

	"github.com/boddenberg/cnpj-enricher-go/internal/domain"
)

// DemoCompanies returns the records the dashboard ships with in demo mode.
func DemoCompanies() []domain.Company {
	return []domain.Company{
		{
			ID:               "1",
			CNPJ:             "11.222.333/0001-81",
			RazaoSocial:      "TECH SOLUTIONS LTDA",
			NomeFantasia:     "TechSol",
			Situacao:         domain.SituacaoAtiva,
			DataAbertura:     "2020-03-15",
			NaturezaJuridica: "Sociedade Empresária Limitada",
			Endereco: domain.Address{
				Logradouro:  "Av. Paulista",
				Numero:      "1000",
				Complemento: "Sala 101",
				Bairro:      "Bela Vista",
				Cidade:      "São Paulo",
				UF:          "SP",
				CEP:         "01310-100",
			},
			Telefone:           "(11) 99999-9999",
			Email:              "contato@techsol.com.br",
			CapitalSocial:      100000,
			Porte:              domain.PortePequeno,
			AtividadePrincipal: "Desenvolvimento de programas de computador",
			Socios: []domain.Partner{
				{Nome: "João Silva", Participacao: 60},
				{Nome: "Maria Santos", Participacao: 40},
			},
			EnrichedAt: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
			Status:     domain.LifecycleEnriched,
		},
		{
			ID:               "2",
			CNPJ:             "22.333.444/0001-92",
			RazaoSocial:      "COMERCIO DE ALIMENTOS LTDA",
			NomeFantasia:     "Mercado Bom",
			Situacao:         domain.SituacaoAtiva,
			DataAbertura:     "2018-07-22",
			NaturezaJuridica: "Sociedade Empresária Limitada",
			Endereco: domain.Address{
				Logradouro: "Rua das Flores",
				Numero:     "500",
				Bairro:     "Centro",
				Cidade:     "Rio de Janeiro",
				UF:         "RJ",
				CEP:        "20000-000",
			},
			CapitalSocial:      50000,
			Porte:              domain.PorteMicro,
			AtividadePrincipal: "Comércio varejista de mercadorias em geral",
			EnrichedAt:         time.Date(2024, 1, 14, 15, 20, 0, 0, time.UTC),
			Status:             domain.LifecycleEnriched,
		},
		{
			ID:               "3",
			CNPJ:             "33.444.555/0001-03",
			RazaoSocial:      "CONSULTORIA EMPRESARIAL S.A.",
			Situacao:         domain.SituacaoAtiva,
			DataAbertura:     "2015-11-10",
			NaturezaJuridica: "Sociedade Anônima",
			Endereco: domain.Address{
				Logradouro:  "Av. Brigadeiro Faria Lima",
				Numero:      "2000",
				Complemento: "15º andar",
				Bairro:      "Itaim Bibi",
				Cidade:      "São Paulo",
				UF:          "SP",
				CEP:         "01451-000",
			},
			CapitalSocial:      1000000,
			Porte:              domain.PorteMedio,
			AtividadePrincipal: "Atividades de consultoria em gestão empresarial",
			EnrichedAt:         time.Date(2024, 1, 16, 9, 45, 0, 0, time.UTC),
			Status:             domain.LifecycleEnriched,
		},
	}
}
