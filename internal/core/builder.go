package core

// builder.go turns an ImportSpec into ordered pending records.
//
// The flow for every row is:
//  1. Coerce and map the cells (MapRow); the first invalid row aborts the build
//  2. Drop blank rows and rows holding a negative amount
//  3. Normalize references into {name, number}
//
// The surviving rows are merged by DocumentIdentity, rates are accumulated
// and the importer's Finish hook fills in kind-specific defaults. Build is a
// pure function of its input; nothing is looked up or persisted.

import (
	"fmt"
	"strings"
)

// BuildStats reports what Build did with the input rows.
type BuildStats struct {
	Rows     int `json:"rows"`
	Excluded int `json:"excluded"` // Negative amounts
	Blank    int `json:"blank"`
	Records  int `json:"records"`
}

// Build validates and merges spec.Rows into pending records for def.
func Build(def Definition, spec ImportSpec) ([]*PendingRecord, error) {
	records, _, err := BuildWithStats(def, spec)
	return records, err
}

// BuildWithStats is Build that also reports row accounting.
func BuildWithStats(def Definition, spec ImportSpec) ([]*PendingRecord, BuildStats, error) {
	stats := BuildStats{Rows: len(spec.Rows)}

	op, err := ParseOperation(string(spec.Options.Operation))
	if err != nil {
		return nil, stats, err
	}
	if !def.Supports(op) {
		return nil, stats, fmt.Errorf("%s import: %s: %w", def.Info.Kind, op, ErrUnsupportedOperation)
	}

	if err := ValidateMapping(spec.Mapping); err != nil {
		return nil, stats, err
	}

	currency := strings.ToLower(strings.TrimSpace(spec.Options.Currency))
	hasCurrency := false
	for _, fs := range def.FieldSpecs {
		if fs.Name == "currency" {
			hasCurrency = true
		}
	}

	mapped := make([]MappedRow, 0, len(spec.Rows))
	for i, row := range spec.Rows {
		mr, errs := MapRow(def, spec.Mapping, i, row)
		if mr.Blank {
			stats.Blank++
			continue
		}
		if len(errs) > 0 {
			return nil, stats, &BuildError{Row: i, Errors: errs}
		}
		if mr.Excluded {
			stats.Excluded++
			continue
		}
		if mr.Fields.Len() == 0 {
			// A normalizer can reduce every non-empty cell to nothing
			stats.Blank++
			continue
		}

		for _, ref := range def.References {
			normalizeReference(mr.Fields, ref)
		}
		if currency != "" && hasCurrency && !mr.Fields.Has("currency") {
			mr.Fields.Set("currency", StringValue(currency))
		}

		mapped = append(mapped, mr)
	}

	records := MergeRows(def, op, mapped)

	if def.Finish != nil {
		for _, rec := range records {
			if err := def.Finish(rec, spec.Options); err != nil {
				return nil, stats, &BuildError{
					Row:    rec.FirstRow(),
					Errors: []ValidationError{{Message: err.Error()}},
				}
			}
		}
	}

	stats.Records = len(records)
	return records, stats, nil
}
