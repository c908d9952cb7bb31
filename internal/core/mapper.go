package core

// mapper.go builds a nested record from one row.
//
// Every (path, cell) pair is coerced by the path's FieldSpec and written to
// the dotted path, creating intermediate objects as needed. Paths never carry
// list indices: list membership comes from the row merger. Blank leaves are
// dropped afterwards, and so is any nested object left without fields, which
// keeps an all-blank "ship_to.*" group out of the record.

// ColumnInfo describes a mapping path accepted by an importer.
type ColumnInfo struct {
	Path string `json:"path"`
	Type string `json:"type"`
}

// Columns lists the declared paths of the importer.
func (d Definition) Columns() []ColumnInfo {
	cols := make([]ColumnInfo, len(d.FieldSpecs))
	for i, spec := range d.FieldSpecs {
		cols[i] = ColumnInfo{Path: spec.Name, Type: fieldTypeName(spec.Type)}
	}
	return cols
}

// MappedRow is one coerced row.
type MappedRow struct {
	Index    int
	Fields   *Object
	Excluded bool // A non-negative field held a negative value
	Blank    bool // Every mapped cell was empty before coercion
}

// MapRow coerces row against mapping and returns the nested record.
// Cells past the end of mapping are ignored; missing trailing cells are blank.
func MapRow(def Definition, mapping []string, index int, row []any) (MappedRow, []ValidationError) {
	out := MappedRow{Index: index, Fields: NewObject(), Blank: true}
	var errs []ValidationError

	for i, path := range mapping {
		if path == "" {
			continue
		}

		var raw any
		if i < len(row) {
			raw = row[i]
		}
		if cellText(raw) != "" {
			out.Blank = false
		}

		spec := def.FieldSpec(path)
		v, err := Coerce(raw, spec)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   path,
				Value:   cellText(raw),
				Message: err.Error(),
			})
			continue
		}

		if spec.NonNegative && v.Kind == KindNumber && v.Num.IsNegative() {
			out.Excluded = true
		}

		out.Fields.SetPath(path, v)
	}

	out.Fields.Prune()
	return out, errs
}
