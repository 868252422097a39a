// internal/common/validation/schema.go
package validation

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"

	apperrors "internship-portal/internal/common/errors"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Schema names accepted by Validator.Validate.
const (
	SubmitPayment     = "submit-payment"
	VerifyPayment     = "verify-payment"
	RejectPayment     = "reject-payment"
	FlagDuplicate     = "flag-duplicate"
	CreateOpportunity = "create-opportunity"
	ApplicationForm   = "application-form"
	ReviewApplication = "review-application"
)

// Validator checks request bodies against the embedded JSON schemas.
type Validator struct {
	schemas map[string]*gojsonschema.Schema
}

// NewValidator compiles every embedded schema.
func NewValidator() (*Validator, error) {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("read schemas: %w", err)
	}
	v := &Validator{schemas: make(map[string]*gojsonschema.Schema, len(entries))}
	for _, e := range entries {
		raw, err := schemaFS.ReadFile(path.Join("schemas", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", e.Name(), err)
		}
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", e.Name(), err)
		}
		v.schemas[strings.TrimSuffix(e.Name(), ".json")] = compiled
	}
	return v, nil
}

// MustNewValidator panics if the embedded schemas do not compile.
func MustNewValidator() *Validator {
	v, err := NewValidator()
	if err != nil {
		panic(err)
	}
	return v
}

// Validate checks body against the named schema. Violations are returned as
// a ValidationFailed error whose "fields" metadata maps a field path to its
// first message.
func (v *Validator) Validate(name string, body []byte) error {
	schema, ok := v.schemas[name]
	if !ok {
		return apperrors.NewInternalError(fmt.Errorf("unknown schema %q", name))
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		body = []byte("{}")
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return apperrors.NewValidationFailedError("request body is not valid JSON", map[string]string{"body": err.Error()})
	}
	if result.Valid() {
		return nil
	}

	fields := make(map[string]string)
	for _, re := range result.Errors() {
		field := fieldOf(re)
		if _, seen := fields[field]; !seen {
			fields[field] = re.Description()
		}
	}
	return apperrors.NewValidationFailedError(summary(fields), fields)
}

// fieldOf reports the JSON path of a violation. Missing properties are
// reported on the property rather than on its parent object.
func fieldOf(re gojsonschema.ResultError) string {
	field := re.Field()
	if re.Type() == "required" {
		if prop, ok := re.Details()["property"].(string); ok {
			if field == gojsonschema.STRING_CONTEXT_ROOT || field == "" {
				return prop
			}
			return field + "." + prop
		}
	}
	if field == gojsonschema.STRING_CONTEXT_ROOT || field == "" {
		return "body"
	}
	return field
}

func summary(fields map[string]string) string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "invalid fields: " + strings.Join(names, ", ")
}
