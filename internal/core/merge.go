package core

// merge.go groups rows describing the same document.
//
// Rows whose DocumentIdentity matches collapse into one record, adjacent or
// not. The first row's scalar fields win; every row may contribute one entry
// to the importer's list field ("items", "applied_to", ...). The list field
// only appears when some row supplied item-identifying data, so an update
// that maps no item columns leaves existing items alone.

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// DocumentIdentity returns the grouping key of a row.
// ok is false when the importer has no identity or every identity field is blank;
// such rows never merge.
func DocumentIdentity(def Definition, fields *Object) (string, bool) {
	if len(def.Identity) == 0 {
		return "", false
	}

	parts := make([]string, len(def.Identity))
	present := false
	for i, path := range def.Identity {
		n, ok := fields.Lookup(path)
		if !ok {
			continue
		}
		parts[i] = identityText(n)
		if parts[i] != "" {
			present = true
		}
	}
	return strings.Join(parts, "\x1f"), present
}

func identityText(n Node) string {
	switch t := n.(type) {
	case Value:
		return t.Text()
	case *Object:
		keys := t.Keys()
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			if s := identityText(t.fields[k]); s != "" {
				parts = append(parts, k+"="+s)
			}
		}
		return strings.Join(parts, "\x1e")
	default:
		return ""
	}
}

// extractLine moves the line columns of a row into a list entry.
// The entry is returned only when an identifying column was present.
func extractLine(spec *LineSpec, fields *Object) (*Object, bool) {
	entry := NewObject()
	identified := false

	srcs := make([]string, 0, len(spec.Fields))
	for src := range spec.Fields {
		srcs = append(srcs, src)
	}
	sort.Strings(srcs)

	for _, src := range srcs {
		n, ok := fields.Get(src)
		if !ok {
			continue
		}
		fields.Delete(src)
		entry.Set(spec.Fields[src], n)
		for _, id := range spec.Identifying {
			if id == src {
				identified = true
			}
		}
	}

	if spec.MetadataField != "" {
		if meta, ok := fields.Object(spec.MetadataField); ok {
			fields.Delete(spec.MetadataField)
			entry.Set("metadata", meta)
		}
	}

	if !identified {
		return nil, false
	}
	if spec.DefaultQty && !entry.Has("quantity") {
		entry.Set("quantity", NumberValue(decimal.NewFromInt(1)))
	}
	return entry, true
}

// mergeGroup is a record under construction.
type mergeGroup struct {
	rec   *PendingRecord
	rows  []*Object // Every row's own fields, for rate accumulation
	lines *List
}

// MergeRows collapses rows sharing a DocumentIdentity.
// Output order is the order in which each identity first appears.
func MergeRows(def Definition, op Operation, rows []MappedRow) []*PendingRecord {
	var groups []*mergeGroup
	byIdentity := make(map[string]*mergeGroup)

	for _, row := range rows {
		fields := row.Fields

		var entry *Object
		hasLine := false
		if def.Lines != nil {
			entry, hasLine = extractLine(def.Lines, fields)
		}

		key, ok := DocumentIdentity(def, fields)
		g := byIdentity[key]
		if !ok || g == nil {
			g = &mergeGroup{
				rec:   &PendingRecord{Operation: op, Fields: fields},
				lines: NewList(),
			}
			groups = append(groups, g)
			if ok {
				byIdentity[key] = g
			}
		}

		g.rec.Rows = append(g.rec.Rows, row.Index)
		g.rows = append(g.rows, fields)
		if hasLine {
			g.lines.Append(entry)
		}
	}

	records := make([]*PendingRecord, len(groups))
	for i, g := range groups {
		if def.Lines != nil && g.lines.Len() > 0 {
			g.rec.Fields.Set(def.Lines.Key, g.lines)
		}
		applyRates(def, g.rec.Fields, g.rows)
		records[i] = g.rec
	}
	return records
}
