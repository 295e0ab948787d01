package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/wirecap/wirecap/internal/errdef"
)

// Validator checks parsed documents against a compiled schema.
type Validator struct {
	schema *jsonschema.Schema
}

// NewDocumentValidator compiles the export-document schema.
func NewDocumentValidator() (*Validator, error) {
	// Round-trip through JSON to get the clean map form the compiler wants.
	raw, err := json.Marshal(Document())
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeEncode, err, "marshal document schema")
	}
	var schemaValue any
	if err := json.Unmarshal(raw, &schemaValue); err != nil {
		return nil, errdef.Wrap(errdef.CodeDecode, err, "unmarshal document schema")
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", schemaValue); err != nil {
		return nil, errdef.Wrap(errdef.CodeValidate, err, "add schema resource")
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeValidate, err, "compile document schema")
	}
	return &Validator{schema: compiled}, nil
}

// ValidateValue checks an already-parsed generic document. On failure the
// returned error carries every leaf validation message.
func (v *Validator) ValidateValue(value any) error {
	err := v.schema.Validate(value)
	if err == nil {
		return nil
	}
	msgs := extractValidationErrors(err)
	return errdef.New(errdef.CodeValidate, "document does not match the session schema: %s", strings.Join(msgs, "; "))
}

// Validate parses JSON bytes and checks them against the schema.
func (v *Validator) Validate(data []byte) error {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return errdef.Wrap(errdef.CodeCorrupt, err, "parse document")
	}
	return v.ValidateValue(value)
}

// printer is a default English printer for localized error messages.
var printer = message.NewPrinter(language.English)

func extractValidationErrors(err error) []string {
	var validationErr *jsonschema.ValidationError
	if !errors.As(err, &validationErr) {
		return []string{err.Error()}
	}

	errorsByPath := make(map[string][]string)
	collectErrors(validationErr, errorsByPath)

	paths := make([]string, 0, len(errorsByPath))
	for path := range errorsByPath {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var result []string
	for _, path := range paths {
		seen := make(map[string]bool)
		for _, msg := range errorsByPath[path] {
			if seen[msg] {
				continue
			}
			seen[msg] = true
			if path != "" {
				result = append(result, fmt.Sprintf("%s: %s", path, msg))
			} else {
				result = append(result, msg)
			}
		}
	}
	if len(result) == 0 {
		result = []string{validationErr.Error()}
	}
	return result
}

// collectErrors recursively collects leaf errors (those without causes).
func collectErrors(err *jsonschema.ValidationError, errorsByPath map[string][]string) {
	instancePath := ""
	if len(err.InstanceLocation) > 0 {
		instancePath = "/" + strings.Join(err.InstanceLocation, "/")
	}

	if err.ErrorKind != nil && len(err.Causes) == 0 {
		errMsg := err.ErrorKind.LocalizedString(printer)
		// $ref and "doesn't validate with" wrappers restate the leaf errors.
		if !strings.HasPrefix(errMsg, "$ref ") && !strings.HasPrefix(errMsg, "doesn't validate with") {
			errorsByPath[instancePath] = append(errorsByPath[instancePath], errMsg)
		}
	}

	for _, cause := range err.Causes {
		collectErrors(cause, errorsByPath)
	}
}
