package core

// runner.go applies pending records to a Store.
//
// Every record ends CREATED, UPDATED or FAILED. A failed record is reported
// in the result and the run continues with the next one. The import context's
// Position is advanced once per record after its outcome is recorded, so a
// cancelled run can be resumed by calling Run again with the same records.
//
// Entities created while resolving references are not rolled back when the
// record that needed them fails.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrDocumentVoided is returned when updating a voided document.
var ErrDocumentVoided = errors.New("document is voided")

type outcome int

const (
	outcomeCreated outcome = iota
	outcomeUpdated
)

// Runner applies records for one job. The zero value is not usable; see NewRunner.
type Runner struct {
	store Store
	cache *ResolutionCache
	now   func() time.Time
}

// NewRunner returns a Runner with a fresh ResolutionCache.
func NewRunner(store Store) *Runner {
	return &Runner{
		store: store,
		cache: NewResolutionCache(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// WithCache makes the runner share cache, used when resuming a job.
func (r *Runner) WithCache(cache *ResolutionCache) *Runner {
	r.cache = cache
	return r
}

// WithClock overrides the timestamp source.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

// Cache returns the runner's resolution cache.
func (r *Runner) Cache() *ResolutionCache {
	return r.cache
}

// Run applies records to store with a fresh ResolutionCache.
func Run(ctx context.Context, store Store, def Definition, records []*PendingRecord, ictx *ImportContext) (ImportResult, error) {
	return NewRunner(store).Run(ctx, def, records, ictx)
}

// Run applies records, skipping those below ictx.Position.
// It returns early with ctx.Err() when the context is cancelled between records;
// the partial result and ictx.Position are still valid.
func (r *Runner) Run(ctx context.Context, def Definition, records []*PendingRecord, ictx *ImportContext) (ImportResult, error) {
	start := time.Now()
	result := ImportResult{
		JobID:    ictx.JobID,
		Kind:     def.Info.Kind,
		Tenant:   ictx.Tenant,
		Failures: []RowFailure{},
	}

	res := &resolver{store: r.store, tenant: ictx.Tenant, cache: r.cache, now: r.now}

	for i, rec := range records {
		if i < ictx.Position {
			continue
		}
		if err := ctx.Err(); err != nil {
			result.Position = ictx.Position
			result.RowPosition = ictx.RowPosition
			result.Duration = time.Since(start)
			return result, err
		}

		out, err := r.apply(ctx, res, def, ictx.Tenant, rec)
		switch {
		case err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
			// Not an outcome; the record is retried on resume
			result.Position = ictx.Position
			result.RowPosition = ictx.RowPosition
			result.Duration = time.Since(start)
			return result, err
		case err != nil:
			result.NumFailed++
			result.Failures = append(result.Failures, RowFailure{Row: rec.FirstRow(), Message: err.Error()})
			slog.Debug("import record failed",
				"job_id", ictx.JobID,
				"kind", def.Info.Kind,
				"row", rec.FirstRow(),
				"error", err,
			)
		case out == outcomeCreated:
			result.NumCreated++
		default:
			result.NumUpdated++
		}
		ictx.Position = i + 1
		ictx.RowPosition = max(ictx.RowPosition, rec.LastRow()+1)
	}

	result.Position = ictx.Position
	result.RowPosition = ictx.RowPosition
	result.Duration = time.Since(start)
	return result, nil
}

// apply dispatches one record on its operation.
func (r *Runner) apply(ctx context.Context, res *resolver, def Definition, tenant string, rec *PendingRecord) (outcome, error) {
	fields := rec.Fields.Clone()
	match := Reference{
		Number: strings.TrimSpace(pathText(fields, def.Match.NumberField)),
		Name:   strings.TrimSpace(pathText(fields, def.Match.NameField)),
	}

	switch rec.Operation {
	case OpCreate:
		if err := r.resolveAll(ctx, res, def, fields, true); err != nil {
			return 0, err
		}
		return outcomeCreated, r.insert(ctx, def, tenant, match, fields)

	case OpUpsert:
		existing, err := r.match(ctx, res, def, match)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return 0, err
		}
		if err := r.resolveAll(ctx, res, def, fields, true); err != nil {
			return 0, err
		}
		if existing == nil {
			return outcomeCreated, r.insert(ctx, def, tenant, match, fields)
		}
		return outcomeUpdated, r.merge(ctx, def, existing, match, fields)

	case OpUpdate:
		existing, err := r.match(ctx, res, def, match)
		if err != nil {
			return 0, err
		}
		if err := r.resolveAll(ctx, res, def, fields, false); err != nil {
			return 0, err
		}
		return outcomeUpdated, r.merge(ctx, def, existing, match, fields)

	case OpVoid:
		if !def.Voidable {
			return 0, fmt.Errorf("%s cannot be voided: %w", def.Info.Kind, ErrUnsupportedOperation)
		}
		existing, err := r.match(ctx, res, def, match)
		if err != nil {
			return 0, err
		}
		if existing.Voided {
			return outcomeUpdated, nil
		}
		existing.Voided = true
		existing.UpdatedAt = r.now()
		return outcomeUpdated, r.store.Update(ctx, existing)

	case OpDelete:
		existing, err := r.match(ctx, res, def, match)
		if err != nil {
			return 0, err
		}
		return outcomeUpdated, r.store.Delete(ctx, tenant, def.Info.Kind, existing.ID)

	default:
		return 0, fmt.Errorf("%w %q", ErrUnknownOperation, rec.Operation)
	}
}

// match finds the stored document a record refers to.
func (r *Runner) match(ctx context.Context, res *resolver, def Definition, key Reference) (*Document, error) {
	if key.IsZero() {
		return nil, fmt.Errorf("%s: no identifying value to match on: %w", def.Info.Kind, ErrNotFound)
	}
	doc, err := res.find(ctx, def.Info.Kind, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%s %q: %w", def.Info.Kind, key.String(), ErrNotFound)
		}
		return nil, err
	}
	return doc, nil
}

// resolveAll replaces references and links on fields with resolved handles.
func (r *Runner) resolveAll(ctx context.Context, res *resolver, def Definition, fields *Object, create bool) error {
	for _, spec := range def.References {
		n, ok := fields.Get(spec.Field)
		if !ok {
			continue
		}
		ref, ok := referenceFromNode(n)
		if !ok {
			continue
		}
		id, err := res.resolve(ctx, spec.Kind, ref, create && spec.Create)
		if err != nil {
			return err
		}
		fields.Set(spec.Field, handle(id, ref))
	}

	for _, link := range def.Links {
		if link.List == "" {
			if err := r.resolveLink(ctx, res, link, fields); err != nil {
				return err
			}
			continue
		}
		list, ok := fields.List(link.List)
		if !ok {
			continue
		}
		for _, entry := range list.Objects() {
			if err := r.resolveLink(ctx, res, link, entry); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Runner) resolveLink(ctx context.Context, res *resolver, link LinkSpec, obj *Object) error {
	number := strings.TrimSpace(pathText(obj, link.Field))
	if number == "" {
		return nil
	}
	id, err := res.findDocument(ctx, link.Kind, number)
	if err != nil {
		return err
	}
	obj.Set(link.Field, handle(id, Reference{Number: number}))
	return nil
}

// handle is the stored form of a resolved reference.
func handle(id string, ref Reference) *Object {
	obj := NewObject()
	obj.Set("id", StringValue(id))
	if ref.Name != "" {
		obj.Set("name", StringValue(ref.Name))
	}
	if ref.Number != "" {
		obj.Set("number", StringValue(ref.Number))
	}
	return obj
}

// handleFields lists the top-level fields that hold resolved handles.
func handleFields(def Definition) []string {
	out := make([]string, 0, len(def.References)+len(def.Links))
	for _, spec := range def.References {
		out = append(out, spec.Field)
	}
	for _, link := range def.Links {
		if link.List == "" {
			out = append(out, link.Field)
		}
	}
	return out
}

func (r *Runner) insert(ctx context.Context, def Definition, tenant string, key Reference, fields *Object) error {
	now := r.now()
	doc := &Document{
		ID:        uuid.New().String(),
		Tenant:    tenant,
		Kind:      def.Info.Kind,
		Number:    key.Number,
		Name:      key.Name,
		Fields:    fields,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.store.Insert(ctx, doc); err != nil {
		return fmt.Errorf("create %s: %w", def.Info.Kind, err)
	}
	return nil
}

// merge applies a partial update: supplied keys overwrite, nested objects
// deep-merge and lists replace only when supplied. Reference and link
// handles are replaced whole.
func (r *Runner) merge(ctx context.Context, def Definition, doc *Document, key Reference, fields *Object) error {
	if doc.Voided {
		return fmt.Errorf("%s %q: %w", doc.Kind, key.String(), ErrDocumentVoided)
	}
	if doc.Fields == nil {
		doc.Fields = NewObject()
	}
	for _, field := range handleFields(def) {
		if n, ok := fields.Get(field); ok {
			doc.Fields.Set(field, n)
			fields.Delete(field)
		}
	}
	doc.Fields.Merge(fields)
	if key.Number != "" {
		doc.Number = key.Number
	}
	if key.Name != "" {
		doc.Name = key.Name
	}
	doc.UpdatedAt = r.now()
	if err := r.store.Update(ctx, doc); err != nil {
		return fmt.Errorf("update %s: %w", doc.Kind, err)
	}
	return nil
}
