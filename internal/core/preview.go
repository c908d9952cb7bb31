package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// PreviewSummary contains the summary counts for an import preview.
type PreviewSummary struct {
	TotalRows    int `json:"totalRows"`
	ExcludedRows int `json:"excludedRows"`
	BlankRows    int `json:"blankRows"`
	Records      int `json:"records"`
	Creates      int `json:"creates"`
	Updates      int `json:"updates"`
	Failures     int `json:"failures"`
	NewRefs      int `json:"newReferences"`
}

// RecordPreview is the predicted outcome of one pending record.
type RecordPreview struct {
	Rows    []int    `json:"rows"`
	Action  string   `json:"action"` // create, update, void, delete or fail
	Key     string   `json:"key,omitempty"`
	Message string   `json:"message,omitempty"`
	NewRefs []string `json:"newReferences,omitempty"`
	Record  *Object  `json:"record"`
}

// UpdateDiff is a before/after view of a record that will change a stored document.
type UpdateDiff struct {
	Rows     []int             `json:"rows"`
	Key      string            `json:"key"`
	Current  map[string]string `json:"current"`
	Incoming map[string]string `json:"incoming"`
	Changed  []string          `json:"changed"`
}

// PreviewResponse is the complete result of a preview.
type PreviewResponse struct {
	Summary          PreviewSummary  `json:"summary"`
	Samples          []RecordPreview `json:"samples"`
	UpdateDiffs      []UpdateDiff    `json:"updateDiffs"`
	ProcessingTimeMs int64           `json:"processingTimeMs"`
}

// Sample limits
const (
	maxRecordSamples = 20
	maxUpdateDiffs   = 10
)

// Preview builds spec and predicts what Run would do against store, without writing.
// Build errors are returned as-is.
func Preview(ctx context.Context, store Store, def Definition, spec ImportSpec, tenant string) (*PreviewResponse, error) {
	start := time.Now()

	records, stats, err := BuildWithStats(def, spec)
	if err != nil {
		return nil, err
	}

	resp := &PreviewResponse{
		Summary: PreviewSummary{
			TotalRows:    stats.Rows,
			ExcludedRows: stats.Excluded,
			BlankRows:    stats.Blank,
			Records:      stats.Records,
		},
		Samples:     []RecordPreview{},
		UpdateDiffs: []UpdateDiff{},
	}

	res := &resolver{store: store, tenant: tenant, cache: NewResolutionCache(), now: time.Now}
	// References that would be created by earlier records
	pending := make(map[Kind]map[string]bool)

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p, existing, err := previewRecord(ctx, res, def, rec, pending)
		if err != nil {
			return nil, err
		}

		switch p.Action {
		case "create":
			resp.Summary.Creates++
		case "fail":
			resp.Summary.Failures++
		default:
			resp.Summary.Updates++
		}
		resp.Summary.NewRefs += len(p.NewRefs)

		if len(resp.Samples) < maxRecordSamples {
			resp.Samples = append(resp.Samples, p)
		}
		if existing != nil && p.Action == "update" && len(resp.UpdateDiffs) < maxUpdateDiffs {
			resp.UpdateDiffs = append(resp.UpdateDiffs, diffRecord(p, existing, rec.Fields))
		}
	}

	resp.ProcessingTimeMs = time.Since(start).Milliseconds()
	return resp, nil
}

// previewRecord predicts one record. Only infrastructure errors are returned;
// an expected failure is reported as Action "fail".
func previewRecord(ctx context.Context, res *resolver, def Definition, rec *PendingRecord, pending map[Kind]map[string]bool) (RecordPreview, *Document, error) {
	p := RecordPreview{Rows: rec.Rows, Record: rec.Fields}
	key := Reference{
		Number: strings.TrimSpace(pathText(rec.Fields, def.Match.NumberField)),
		Name:   strings.TrimSpace(pathText(rec.Fields, def.Match.NameField)),
	}
	p.Key = key.String()

	fail := func(err error) (RecordPreview, *Document, error) {
		p.Action = "fail"
		p.Message = err.Error()
		return p, nil, nil
	}

	var existing *Document
	if rec.Operation != OpCreate && !key.IsZero() {
		doc, err := res.find(ctx, def.Info.Kind, key)
		switch {
		case err == nil:
			existing = doc
		case !errors.Is(err, ErrNotFound):
			return p, nil, err
		}
	}

	switch rec.Operation {
	case OpCreate:
		p.Action = "create"
	case OpUpsert:
		p.Action = "create"
		if existing != nil {
			p.Action = "update"
		}
	case OpUpdate, OpVoid, OpDelete:
		if existing == nil {
			return fail(fmt.Errorf("%s %q: %w", def.Info.Kind, key.String(), ErrNotFound))
		}
		p.Action = string(rec.Operation)
		if rec.Operation == OpUpdate {
			p.Action = "update"
		}
		if rec.Operation == OpVoid && !def.Voidable {
			return fail(fmt.Errorf("%s cannot be voided: %w", def.Info.Kind, ErrUnsupportedOperation))
		}
		if rec.Operation == OpUpdate && existing.Voided {
			return fail(fmt.Errorf("%s %q: %w", def.Info.Kind, key.String(), ErrDocumentVoided))
		}
	}
	if rec.Operation == OpUpsert && existing != nil && existing.Voided {
		return fail(fmt.Errorf("%s %q: %w", def.Info.Kind, key.String(), ErrDocumentVoided))
	}

	if rec.Operation == OpVoid || rec.Operation == OpDelete {
		return p, existing, nil
	}

	create := rec.Operation == OpCreate || rec.Operation == OpUpsert
	for _, spec := range def.References {
		n, ok := rec.Fields.Get(spec.Field)
		if !ok {
			continue
		}
		ref, ok := referenceFromNode(n)
		if !ok {
			continue
		}
		_, err := res.find(ctx, spec.Kind, ref)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return p, nil, err
		}

		cacheKey := strings.ToLower(ref.String())
		if pending[spec.Kind][cacheKey] {
			continue
		}
		if !create || !spec.Create {
			return fail(fmt.Errorf("%s %q: %w", spec.Kind, ref.String(), ErrReferenceNotFound))
		}
		if pending[spec.Kind] == nil {
			pending[spec.Kind] = make(map[string]bool)
		}
		pending[spec.Kind][cacheKey] = true
		p.NewRefs = append(p.NewRefs, fmt.Sprintf("%s %s", spec.Kind, ref.String()))
	}

	for _, link := range def.Links {
		objs := []*Object{rec.Fields}
		if link.List != "" {
			objs = nil
			if list, ok := rec.Fields.List(link.List); ok {
				objs = list.Objects()
			}
		}
		for _, obj := range objs {
			number := strings.TrimSpace(pathText(obj, link.Field))
			if number == "" {
				continue
			}
			if _, err := res.findDocument(ctx, link.Kind, number); err != nil {
				if errors.Is(err, ErrReferenceNotFound) {
					return fail(err)
				}
				return p, nil, err
			}
		}
	}

	return p, existing, nil
}

// diffRecord compares the top-level fields a record supplies with the stored document.
func diffRecord(p RecordPreview, doc *Document, incoming *Object) UpdateDiff {
	diff := UpdateDiff{
		Rows:     p.Rows,
		Key:      p.Key,
		Current:  make(map[string]string),
		Incoming: make(map[string]string),
		Changed:  []string{},
	}

	for _, k := range incoming.Keys() {
		n, _ := incoming.Get(k)
		diff.Incoming[k] = formatValueForPreview(n)

		if doc.Fields == nil {
			diff.Changed = append(diff.Changed, k)
			continue
		}
		cur, ok := doc.Fields.Get(k)
		if !ok {
			diff.Changed = append(diff.Changed, k)
			continue
		}
		diff.Current[k] = formatValueForPreview(cur)
		if diff.Current[k] != diff.Incoming[k] {
			diff.Changed = append(diff.Changed, k)
		}
	}

	sort.Strings(diff.Changed)
	return diff
}

// formatValueForPreview formats a record value for display in preview.
func formatValueForPreview(n Node) string {
	switch v := n.(type) {
	case Value:
		switch v.Kind {
		case KindNull:
			return ""
		case KindBool:
			if v.Bool {
				return "Yes"
			}
			return "No"
		case KindTime:
			return v.Time.Format("2006-01-02")
		case KindNumber:
			return v.Num.String()
		default:
			return v.Str
		}
	case *Object:
		// References display by name or number
		if ref, ok := referenceFromNode(v); ok {
			return ref.String()
		}
		return fmt.Sprintf("{%d fields}", v.Len())
	case *List:
		return fmt.Sprintf("[%d entries]", v.Len())
	default:
		return ""
	}
}
