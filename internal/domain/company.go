package domain

import "time"

// ============================================================
// Company records (CNPJ enrichment)
// ============================================================

// RegistrationStatus is the legal standing of the company at the registry
// ("situação cadastral").
type RegistrationStatus string

const (
	SituacaoAtiva    RegistrationStatus = "ATIVA"
	SituacaoSuspensa RegistrationStatus = "SUSPENSA"
	SituacaoInapta   RegistrationStatus = "INAPTA"
	SituacaoBaixada  RegistrationStatus = "BAIXADA"
)

// SizeClass is the statutory size category ("porte").
type SizeClass string

const (
	PorteMEI     SizeClass = "MEI"
	PorteMicro   SizeClass = "MICRO"
	PortePequeno SizeClass = "PEQUENO"
	PorteMedio   SizeClass = "MEDIO"
	PorteGrande  SizeClass = "GRANDE"
)

// Lifecycle tracks the processing state of a record inside this system.
// It is unrelated to RegistrationStatus.
type Lifecycle string

const (
	LifecyclePending  Lifecycle = "PENDING"
	LifecycleEnriched Lifecycle = "ENRICHED"
	LifecycleError    Lifecycle = "ERROR"
)

// Address is the registered address of a company.
type Address struct {
	Logradouro  string `json:"logradouro"`
	Numero      string `json:"numero"`
	Complemento string `json:"complemento,omitempty"`
	Bairro      string `json:"bairro"`
	Cidade      string `json:"cidade"`
	UF          string `json:"uf"`
	CEP         string `json:"cep"`
}

// Partner is a member of the company's ownership structure (sócio).
// Participacao is a percentage in [0, 100]; the sum across partners is not checked.
type Partner struct {
	Nome         string  `json:"nome" validate:"required"`
	Participacao float64 `json:"participacao" validate:"gte=0,lte=100"`
}

// Company is one enriched business record.
type Company struct {
	ID                 string             `json:"id"`
	CNPJ               string             `json:"cnpj"` // display form NN.NNN.NNN/NNNN-NN
	RazaoSocial        string             `json:"razaoSocial"`
	NomeFantasia       string             `json:"nomeFantasia,omitempty"`
	Situacao           RegistrationStatus `json:"situacao"`
	DataAbertura       string             `json:"dataAbertura"` // YYYY-MM-DD
	NaturezaJuridica   string             `json:"naturezaJuridica"`
	Endereco           Address            `json:"endereco"`
	Telefone           string             `json:"telefone,omitempty"`
	Email              string             `json:"email,omitempty"`
	CapitalSocial      float64            `json:"capitalSocial"`
	Porte              SizeClass          `json:"porte"`
	AtividadePrincipal string             `json:"atividadePrincipal"`
	Socios             []Partner          `json:"socios,omitempty"`
	EnrichedAt         time.Time          `json:"enrichedAt"`
	Status             Lifecycle          `json:"status"`
}

// Clone returns a deep copy, so callers can hand records out without sharing
// the partner slice with the store.
func (c Company) Clone() Company {
	if c.Socios != nil {
		socios := make([]Partner, len(c.Socios))
		copy(socios, c.Socios)
		c.Socios = socios
	}
	return c
}

// AddressPatch carries the address fields of a partial update.
type AddressPatch struct {
	Logradouro  *string `json:"logradouro,omitempty" validate:"omitempty,min=1"`
	Numero      *string `json:"numero,omitempty" validate:"omitempty,min=1"`
	Complemento *string `json:"complemento,omitempty"`
	Bairro      *string `json:"bairro,omitempty" validate:"omitempty,min=1"`
	Cidade      *string `json:"cidade,omitempty" validate:"omitempty,min=1"`
	UF          *string `json:"uf,omitempty" validate:"omitempty,len=2"`
	CEP         *string `json:"cep,omitempty" validate:"omitempty,min=8,max=9"`
}

// CompanyPatch is a partial update. Nil fields are left untouched.
// ID and CNPJ are the record's identity and cannot be patched.
type CompanyPatch struct {
	RazaoSocial        *string             `json:"razaoSocial,omitempty" validate:"omitempty,min=1"`
	NomeFantasia       *string             `json:"nomeFantasia,omitempty"`
	Situacao           *RegistrationStatus `json:"situacao,omitempty" validate:"omitempty,oneof=ATIVA SUSPENSA INAPTA BAIXADA"`
	DataAbertura       *string             `json:"dataAbertura,omitempty" validate:"omitempty,datetime=2006-01-02"`
	NaturezaJuridica   *string             `json:"naturezaJuridica,omitempty"`
	Endereco           *AddressPatch       `json:"endereco,omitempty"`
	Telefone           *string             `json:"telefone,omitempty"`
	Email              *string             `json:"email,omitempty" validate:"omitempty,email"`
	CapitalSocial      *float64            `json:"capitalSocial,omitempty" validate:"omitempty,gte=0"`
	Porte              *SizeClass          `json:"porte,omitempty" validate:"omitempty,oneof=MEI MICRO PEQUENO MEDIO GRANDE"`
	AtividadePrincipal *string             `json:"atividadePrincipal,omitempty"`
	Socios             *[]Partner          `json:"socios,omitempty" validate:"omitempty,dive"`
	Status             *Lifecycle          `json:"status,omitempty" validate:"omitempty,oneof=PENDING ENRICHED ERROR"`
}

// Apply merges the set fields of p into c and returns the result.
func (p CompanyPatch) Apply(c Company) Company {
	c = c.Clone()
	setString(&c.RazaoSocial, p.RazaoSocial)
	setString(&c.NomeFantasia, p.NomeFantasia)
	if p.Situacao != nil {
		c.Situacao = *p.Situacao
	}
	setString(&c.DataAbertura, p.DataAbertura)
	setString(&c.NaturezaJuridica, p.NaturezaJuridica)
	if a := p.Endereco; a != nil {
		setString(&c.Endereco.Logradouro, a.Logradouro)
		setString(&c.Endereco.Numero, a.Numero)
		setString(&c.Endereco.Complemento, a.Complemento)
		setString(&c.Endereco.Bairro, a.Bairro)
		setString(&c.Endereco.Cidade, a.Cidade)
		setString(&c.Endereco.UF, a.UF)
		setString(&c.Endereco.CEP, a.CEP)
	}
	setString(&c.Telefone, p.Telefone)
	setString(&c.Email, p.Email)
	if p.CapitalSocial != nil {
		c.CapitalSocial = *p.CapitalSocial
	}
	if p.Porte != nil {
		c.Porte = *p.Porte
	}
	setString(&c.AtividadePrincipal, p.AtividadePrincipal)
	if p.Socios != nil {
		c.Socios = append([]Partner(nil), (*p.Socios)...)
	}
	if p.Status != nil {
		c.Status = *p.Status
	}
	return c
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// ============================================================
// Statistics
// ============================================================

// Stats is the aggregate view of the record collection. It is always derived
// from the records and never mutated on its own.
type Stats struct {
	Total    int                        `json:"total"`
	Enriched int                        `json:"enriched"`
	Pending  int                        `json:"pending"`
	Errors   int                        `json:"errors"`
	ByStatus map[RegistrationStatus]int `json:"byStatus"`
	ByPorte  map[SizeClass]int          `json:"byPorte"`
}

// ComputeStats tallies the given records.
func ComputeStats(companies []Company) Stats {
	s := Stats{
		Total:    len(companies),
		ByStatus: make(map[RegistrationStatus]int),
		ByPorte:  make(map[SizeClass]int),
	}
	for _, c := range companies {
		switch c.Status {
		case LifecycleEnriched:
			s.Enriched++
		case LifecyclePending:
			s.Pending++
		case LifecycleError:
			s.Errors++
		}
		s.ByStatus[c.Situacao]++
		s.ByPorte[c.Porte]++
	}
	return s
}

// ============================================================
// Batch enrichment
// ============================================================

// BatchItemResult is the outcome of one identifier in a batch submission.
type BatchItemResult struct {
	CNPJ    string   `json:"cnpj"`
	Company *Company `json:"company,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// BatchResult preserves the input order of the submitted identifiers.
type BatchResult struct {
	Results   []BatchItemResult `json:"results"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
}
