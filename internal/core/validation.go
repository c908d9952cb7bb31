package core

// validation.go provides validation for import input before anything is persisted.
//
// Validation happens at two levels:
//  1. Mapping validation: paths are well formed and do not collide
//  2. Row validation: each cell is coerced against its FieldSpec (type, format, enum values)
//
// A row that fails validation aborts Build with a *BuildError carrying every
// problem found on that row, so the caller can report them all at once.

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedOperation is returned when an importer does not accept the requested operation.
	ErrUnsupportedOperation = errors.New("operation not supported")

	// ErrInvalidMapping wraps every mapping problem.
	ErrInvalidMapping = errors.New("invalid mapping")
)

// ValidationError represents a single validation error for a field.
type ValidationError struct {
	Field   string `json:"field"`           // Mapping path
	Value   string `json:"value,omitempty"` // The invalid value
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// BuildError reports the validation problems of the first invalid row.
type BuildError struct {
	Row    int               `json:"row"`
	Errors []ValidationError `json:"errors"`
}

func (e *BuildError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		msgs[i] = ve.Error()
	}
	return fmt.Sprintf("row %d: %s", e.Row, strings.Join(msgs, "; "))
}

// ValidateMapping checks that every path is well formed and that no path is
// both a leaf and the parent of another path.
func ValidateMapping(mapping []string) error {
	if len(mapping) == 0 {
		return fmt.Errorf("%w: mapping is empty", ErrInvalidMapping)
	}

	var errs []string
	seen := make(map[string]bool, len(mapping))
	for _, path := range mapping {
		if path == "" {
			// Blank columns are skipped
			continue
		}
		for _, seg := range strings.Split(path, ".") {
			if strings.TrimSpace(seg) == "" {
				errs = append(errs, fmt.Sprintf("invalid path %q: empty segment", path))
				break
			}
		}
		if seen[path] {
			errs = append(errs, fmt.Sprintf("duplicate path %q", path))
		}
		seen[path] = true
	}

	for path := range seen {
		parts := strings.Split(path, ".")
		for i := 1; i < len(parts); i++ {
			if prefix := strings.Join(parts[:i], "."); seen[prefix] {
				errs = append(errs, fmt.Sprintf("path %q conflicts with %q", prefix, path))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidMapping, strings.Join(errs, ", "))
	}
	return nil
}

// ValidateCell validates a single raw cell against a field specification.
// Returns nil if valid, or an error describing the problem.
func ValidateCell(raw any, spec FieldSpec) error {
	_, err := Coerce(raw, spec)
	return err
}

// fieldTypeName returns a human-readable name for a field type.
func fieldTypeName(ft FieldType) string {
	switch ft {
	case FieldText:
		return "text"
	case FieldEnum:
		return "enum"
	case FieldDate:
		return "date"
	case FieldNumeric:
		return "numeric"
	case FieldBool:
		return "bool"
	default:
		return "value"
	}
}
