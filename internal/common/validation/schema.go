package validation

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Schema names of the embedded JSON schemas.
const (
	SchemaManualRecompute = "manual_recompute"
	SchemaExplanation     = "explanation"
	SchemaTrigger         = "trigger"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	compiledMu sync.Mutex
	compiled   = map[string]*gojsonschema.Schema{}
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func loadSchema(name string) (*gojsonschema.Schema, error) {
	compiledMu.Lock()
	defer compiledMu.Unlock()

	if s, ok := compiled[name]; ok {
		return s, nil
	}
	raw, err := schemaFS.ReadFile("schemas/" + name + ".json")
	if err != nil {
		return nil, fmt.Errorf("unknown schema %q: %w", name, err)
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("compile schema %q: %w", name, err)
	}
	compiled[name] = s
	return s, nil
}

// Validate checks a Go value (struct, map or slice) against a named schema.
func Validate(schemaName string, document interface{}) (*ValidationResult, error) {
	return validate(schemaName, gojsonschema.NewGoLoader(document))
}

// ValidateJSON checks raw JSON bytes against a named schema.
func ValidateJSON(schemaName string, body []byte) (*ValidationResult, error) {
	return validate(schemaName, gojsonschema.NewBytesLoader(body))
}

func validate(schemaName string, doc gojsonschema.JSONLoader) (*ValidationResult, error) {
	schema, err := loadSchema(schemaName)
	if err != nil {
		return nil, err
	}
	result, err := schema.Validate(doc)
	if err != nil {
		return nil, fmt.Errorf("validate against %q: %w", schemaName, err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, e := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   e.Field(),
			Message: e.Description(),
			Code:    strings.ToUpper(e.Type()),
		})
	}
	return out, nil
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field || strings.HasPrefix(err.Field, field+".") {
			return true
		}
	}
	return false
}
