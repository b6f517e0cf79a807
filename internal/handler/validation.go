package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/boddenberg/cnpj-enricher-go/internal/domain"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON field names instead of Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("cnpj", func(fl validator.FieldLevel) bool {
		return domain.ValidateCNPJ(fl.Field().String())
	}); err != nil {
		panic("register cnpj validator: " + err.Error())
	}
	return v
}

// decodeJSON reads a JSON body into dst, rejecting unknown fields, then
// validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return &domain.ErrValidation{Field: "body", Message: "corpo da requisição vazio"}
		}
		return &domain.ErrValidation{Field: "body", Message: fmt.Sprintf("JSON inválido: %v", err)}
	}
	return validateRequest(dst)
}

// validateRequest runs the struct tags and maps the first failure to a
// domain validation error.
func validateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &domain.ErrValidation{Field: fe.Field(), Message: validationMessage(fe)}
	}
	return &domain.ErrValidation{Field: "body", Message: err.Error()}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "campo obrigatório"
	case "cnpj":
		return "CNPJ deve conter 14 dígitos"
	case "oneof":
		return "deve ser um de: " + fe.Param()
	case "email":
		return "e-mail inválido"
	case "datetime":
		return "data deve estar no formato " + fe.Param()
	case "gte":
		return "deve ser maior ou igual a " + fe.Param()
	case "lte":
		return "deve ser menor ou igual a " + fe.Param()
	case "len":
		return "deve ter exatamente " + fe.Param() + " caracteres"
	case "min":
		return "tamanho mínimo " + fe.Param()
	case "max":
		return "tamanho máximo " + fe.Param()
	default:
		return fmt.Sprintf("falhou na regra '%s'", fe.Tag())
	}
}
