package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	schemasassets "github.com/structbio/bcifpipe/internal/assets/schemas"
)

// SchemaID is the schema identifier for job manifests.
const SchemaID = "bcifpipe/v1.0.0/job-manifest"

// Validation errors
var (
	// ErrSchemaNotFound indicates the schema could not be located.
	ErrSchemaNotFound = errors.New("manifest schema not found")

	// ErrValidationFailed indicates the manifest failed schema validation.
	ErrValidationFailed = errors.New("manifest validation failed")
)

// Cached schema instance (compiled once from the embedded document)
var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

// ValidationError represents a single validation issue.
type ValidationError struct {
	// Path locates the problematic field (e.g., "lists.mode").
	Path string

	// Message describes the validation failure.
	Message string
}

// Error implements error interface.
func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("manifest validation failed with %d errors:\n", len(e)))
	for i, err := range e {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("  - ")
		b.WriteString(err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error type.
func (e ValidationErrors) Unwrap() error {
	return ErrValidationFailed
}

// Validate checks the manifest against the JSON schema.
//
// Note: this validates the struct representation, which loses unknown
// fields. For strict validation including additionalProperties checks, use
// ValidateRaw on the original input data.
func Validate(m *Manifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to serialize manifest for validation: %w", err)
	}
	return ValidateRaw(data)
}

// ValidateRaw checks raw JSON data against the manifest schema.
//
// The raw JSON preserves all fields from the original input, so unknown
// fields are rejected (additionalProperties: false). The schema is embedded
// at compile time, so validation works in installed binaries without schema
// files on disk.
//
// Returns nil if validation succeeds, or a ValidationErrors with details
// about all validation failures.
func ValidateRaw(jsonData []byte) error {
	s, err := getSchema()
	if err != nil {
		return err
	}

	result, err := s.Validate(gojsonschema.NewBytesLoader(jsonData))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var errs ValidationErrors
	for _, d := range result.Errors() {
		errs = append(errs, ValidationError{
			Path:    d.Field(),
			Message: d.Description(),
		})
	}
	return errs
}

// getSchema returns the cached schema compiled from the embedded document.
func getSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		if len(schemasassets.JobManifestSchema) == 0 {
			schemaErr = fmt.Errorf("%w: embedded job-manifest schema is empty", ErrSchemaNotFound)
			return
		}
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemasassets.JobManifestSchema))
		if schemaErr != nil {
			schemaErr = fmt.Errorf("failed to compile manifest schema: %w", schemaErr)
		}
	})
	return schema, schemaErr
}
