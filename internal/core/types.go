// Package core provides the business logic for tabular import operations.
// This package has no transport dependencies and can be used by any frontend.
package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind identifies an import type ("invoice", "customer", ...).
type Kind string

// Operation is the write operation applied to a pending record.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpsert Operation = "upsert"
	OpUpdate Operation = "update"
	OpVoid   Operation = "void"
	OpDelete Operation = "delete"
)

// ErrUnknownOperation is returned for an operation name outside the five known ones.
var ErrUnknownOperation = errors.New("unknown operation")

// ParseOperation validates an operation name. Blank means create.
func ParseOperation(s string) (Operation, error) {
	switch op := Operation(strings.ToLower(strings.TrimSpace(s))); op {
	case "":
		return OpCreate, nil
	case OpCreate, OpUpsert, OpUpdate, OpVoid, OpDelete:
		return op, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownOperation, s)
	}
}

// FieldType represents the expected data type for a mapped field.
type FieldType int

const (
	FieldText FieldType = iota
	FieldEnum
	FieldDate
	FieldNumeric
	FieldBool
)

// FieldSpec defines coercion and validation rules for one mapping path.
type FieldSpec struct {
	Name        string              // Dotted path; a trailing ".*" matches any sub-field
	Type        FieldType           // Expected data type
	EnumValues  []string            // Valid values for FieldEnum type
	NonNegative bool                // Negative values exclude the whole row
	Normalizer  func(string) string // Optional transformation function
}

// matches reports whether the spec applies to path.
func (s FieldSpec) matches(path string) bool {
	if prefix, ok := strings.CutSuffix(s.Name, ".*"); ok {
		return strings.HasPrefix(path, prefix+".")
	}
	return s.Name == path
}

// LineSpec describes how rows contribute entries to a list-valued field.
type LineSpec struct {
	Key           string            // Record key holding the list: "items", "applied_to", ...
	Fields        map[string]string // Row path -> entry key
	Identifying   []string          // Row paths whose presence creates an entry
	MetadataField string            // Row prefix copied to entry "metadata" ("line_item_metadata")
	DefaultQty    bool              // Entries without quantity get quantity 1
}

// ReferenceSpec describes a reference to another entity kind.
type ReferenceSpec struct {
	Field       string // Record key receiving the reference
	NameField   string // Row path with the free-text name
	NumberField string // Row path with the business key; empty for name-only references
	Kind        Kind   // Referenced kind
	Create      bool   // Create the entity when it cannot be found
}

// LinkSpec describes a reference to another document, resolved only at run time.
// List is empty for a top-level field.
type LinkSpec struct {
	List  string
	Field string
	Kind  Kind
}

// MatchSpec names the fields used to find an existing document.
type MatchSpec struct {
	NumberField string
	NameField   string
}

// FinishFunc applies kind-specific defaults to a merged record.
type FinishFunc func(rec *PendingRecord, opts ImportOptions) error

// DefinitionInfo contains display information about an importer.
type DefinitionInfo struct {
	Kind       Kind        `json:"kind"`
	Group      string      `json:"group"`
	Label      string      `json:"label"`
	Operations []Operation `json:"operations"`
}

// Definition contains everything needed to build and run one import kind.
type Definition struct {
	Info       DefinitionInfo
	FieldSpecs []FieldSpec
	Identity   []string // DocumentIdentity paths; empty means rows never merge
	Lines      *LineSpec
	References []ReferenceSpec
	Links      []LinkSpec
	Match      MatchSpec
	Rates      bool // Sum tax/discount across merged rows
	Terms      bool // Parse early-payment terms
	Voidable   bool
	Finish     FinishFunc
}

// FieldSpec returns the spec governing path. Unlisted paths are text.
func (d Definition) FieldSpec(path string) FieldSpec {
	for _, spec := range d.FieldSpecs {
		if spec.matches(path) {
			return spec
		}
	}
	return FieldSpec{Name: path, Type: FieldText}
}

// Supports reports whether the importer accepts op.
func (d Definition) Supports(op Operation) bool {
	for _, o := range d.Info.Operations {
		if o == op {
			return true
		}
	}
	return false
}

// ImportOptions configures a single import.
type ImportOptions struct {
	Operation Operation `json:"operation,omitempty" yaml:"operation,omitempty"`
	Currency  string    `json:"currency,omitempty" yaml:"currency,omitempty"` // Default for records without a currency
}

// ImportSpec is the raw input of an import: mapping, rows, options.
type ImportSpec struct {
	Mapping []string      `json:"mapping"`
	Rows    [][]any       `json:"rows"`
	Options ImportOptions `json:"options"`
}

// ImportContext identifies the job a run belongs to.
// Position is advanced by Run and must be persisted by the caller.
// Position counts built records; RowPosition is one past the highest source
// row consumed so far, for callers that track offsets into the input rows.
type ImportContext struct {
	JobID       string `json:"jobId"`
	Tenant      string `json:"tenant"`
	Kind        Kind   `json:"kind"`
	Position    int    `json:"position"`
	RowPosition int    `json:"rowPosition"`
}

// PendingRecord is a built, not yet persisted document.
type PendingRecord struct {
	Operation Operation
	Rows      []int // Source row indexes, first row first
	Fields    *Object
}

// FirstRow returns the index of the row the record started on.
func (r *PendingRecord) FirstRow() int {
	if len(r.Rows) == 0 {
		return -1
	}
	return r.Rows[0]
}

// LastRow returns the highest source row index merged into the record.
func (r *PendingRecord) LastRow() int {
	last := -1
	for _, i := range r.Rows {
		last = max(last, i)
	}
	return last
}

// MarshalJSON renders the record fields with its operation under "_operation".
func (r *PendingRecord) MarshalJSON() ([]byte, error) {
	m := r.Fields.ToMap()
	m["_operation"] = string(r.Operation)
	return json.Marshal(m)
}

// RowFailure describes a record that could not be applied.
type RowFailure struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportResult contains the final result of a run.
type ImportResult struct {
	JobID       string        `json:"jobId"`
	Kind        Kind          `json:"kind"`
	Tenant      string        `json:"tenant"`
	NumCreated  int           `json:"numCreated"`
	NumUpdated  int           `json:"numUpdated"`
	NumFailed   int           `json:"numFailed"`
	Failures    []RowFailure  `json:"failures"`
	Position    int           `json:"position"`
	RowPosition int           `json:"rowPosition"`
	Duration    time.Duration `json:"duration"`
}
