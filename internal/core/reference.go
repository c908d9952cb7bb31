package core

// reference.go resolves lightweight references to other entities.
//
// At build time a reference is only normalized: the name and business-key
// columns become a {name, number} object (or a plain name string when the
// importer has no business-key column). Nothing is looked up until Run, and
// user input never addresses a store ID directly.
//
// At run time a non-blank number is the authoritative lookup. When it finds
// nothing the name is tried, and when both miss the entity may be created.
// Resolutions are kept in a ResolutionCache scoped to one job so that a
// customer created for row 1 is reused by row 2.

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrReferenceNotFound is returned when a reference cannot be resolved.
var ErrReferenceNotFound = errors.New("reference not found")

// Reference identifies another entity by name or business number.
type Reference struct {
	Name   string `json:"name"`
	Number string `json:"number"`
}

// IsZero reports whether neither name nor number is set.
func (r Reference) IsZero() bool {
	return r.Name == "" && r.Number == ""
}

func (r Reference) String() string {
	switch {
	case r.Number != "" && r.Name != "":
		return fmt.Sprintf("%s (%s)", r.Name, r.Number)
	case r.Number != "":
		return r.Number
	default:
		return r.Name
	}
}

// ResolveReference reads the reference described by spec from a mapped row.
// Blanks are normalized to "".
func ResolveReference(fields *Object, spec ReferenceSpec) Reference {
	ref := Reference{Name: strings.TrimSpace(pathText(fields, spec.NameField))}
	if spec.NumberField != "" {
		ref.Number = strings.TrimSpace(pathText(fields, spec.NumberField))
	}
	return ref
}

// normalizeReference rewrites the name/number columns of spec into a single
// reference field on fields.
func normalizeReference(fields *Object, spec ReferenceSpec) {
	ref := ResolveReference(fields, spec)
	if spec.NumberField != "" && spec.NumberField != spec.Field {
		fields.Delete(spec.NumberField)
	}
	if spec.NameField != spec.Field {
		fields.Delete(spec.NameField)
	}

	if ref.IsZero() {
		fields.Delete(spec.Field)
		return
	}
	if spec.NumberField == "" {
		fields.Set(spec.Field, StringValue(ref.Name))
		return
	}

	obj := NewObject()
	obj.Set("name", StringValue(ref.Name))
	obj.Set("number", StringValue(ref.Number))
	fields.Set(spec.Field, obj)
}

// referenceFromNode reads a normalized reference back from a record field.
func referenceFromNode(n Node) (Reference, bool) {
	switch t := n.(type) {
	case Value:
		if t.Kind != KindString || t.Str == "" {
			return Reference{}, false
		}
		return Reference{Name: t.Str}, true
	case *Object:
		ref := Reference{Name: t.String("name"), Number: t.String("number")}
		return ref, !ref.IsZero()
	default:
		return Reference{}, false
	}
}

func pathText(fields *Object, path string) string {
	if path == "" {
		return ""
	}
	n, ok := fields.Lookup(path)
	if !ok {
		return ""
	}
	v, ok := n.(Value)
	if !ok {
		return ""
	}
	return v.Text()
}

// ResolutionCache remembers resolved references for one import job.
type ResolutionCache struct {
	ids     map[Kind]map[string]string
	created int
}

// NewResolutionCache returns an empty cache.
func NewResolutionCache() *ResolutionCache {
	return &ResolutionCache{ids: make(map[Kind]map[string]string)}
}

// Get returns the document ID cached for ref. A ref carrying a number is
// only found by that number; the caller checks the store before falling back
// to the name.
func (c *ResolutionCache) Get(kind Kind, ref Reference) (string, bool) {
	m := c.ids[kind]
	if m == nil {
		return "", false
	}
	if ref.Number != "" {
		id, ok := m["number:"+ref.Number]
		return id, ok
	}
	if ref.Name != "" {
		if id, ok := m["name:"+strings.ToLower(ref.Name)]; ok {
			return id, true
		}
	}
	return "", false
}

// Put records the document ID for ref under both its number and name.
func (c *ResolutionCache) Put(kind Kind, ref Reference, id string) {
	m := c.ids[kind]
	if m == nil {
		m = make(map[string]string)
		c.ids[kind] = m
	}
	if ref.Number != "" {
		m["number:"+ref.Number] = id
	}
	if ref.Name != "" {
		m["name:"+strings.ToLower(ref.Name)] = id
	}
}

// Created returns how many entities were created while resolving.
func (c *ResolutionCache) Created() int {
	return c.created
}

// resolver looks references up against the store for one tenant.
type resolver struct {
	store  Store
	tenant string
	cache  *ResolutionCache
	now    func() time.Time
}

// resolve returns the ID of the entity ref points to, creating it when allowed.
func (r *resolver) resolve(ctx context.Context, kind Kind, ref Reference, create bool) (string, error) {
	if id, ok := r.cache.Get(kind, ref); ok {
		return id, nil
	}

	doc, err := r.findNumber(ctx, kind, ref.Number)
	if errors.Is(err, ErrNotFound) && ref.Name != "" {
		if id, ok := r.cache.Get(kind, Reference{Name: ref.Name}); ok {
			return id, nil
		}
		doc, err = r.store.Find(ctx, r.tenant, kind, Lookup{Name: ref.Name})
	}
	if err == nil {
		r.cache.Put(kind, ref, doc.ID)
		return doc.ID, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", err
	}

	if !create {
		return "", fmt.Errorf("%s %q: %w", kind, ref.String(), ErrReferenceNotFound)
	}

	fields := NewObject()
	if ref.Name != "" {
		fields.Set("name", StringValue(ref.Name))
	}
	if ref.Number != "" {
		fields.Set("number", StringValue(ref.Number))
	}

	now := r.now()
	doc = &Document{
		ID:        uuid.New().String(),
		Tenant:    r.tenant,
		Kind:      kind,
		Number:    ref.Number,
		Name:      ref.Name,
		Fields:    fields,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.store.Insert(ctx, doc); err != nil {
		return "", fmt.Errorf("create %s %q: %w", kind, ref.String(), err)
	}

	r.cache.created++
	r.cache.Put(kind, ref, doc.ID)
	return doc.ID, nil
}

// find looks ref up by number first, then by name.
func (r *resolver) find(ctx context.Context, kind Kind, ref Reference) (*Document, error) {
	doc, err := r.findNumber(ctx, kind, ref.Number)
	if errors.Is(err, ErrNotFound) && ref.Name != "" {
		return r.store.Find(ctx, r.tenant, kind, Lookup{Name: ref.Name})
	}
	return doc, err
}

func (r *resolver) findNumber(ctx context.Context, kind Kind, number string) (*Document, error) {
	if number == "" {
		return nil, ErrNotFound
	}
	return r.store.Find(ctx, r.tenant, kind, Lookup{Number: number})
}

// findDocument looks up a document by its business number, used for links.
// Links always go to the store so they see the current state.
func (r *resolver) findDocument(ctx context.Context, kind Kind, number string) (string, error) {
	doc, err := r.store.Find(ctx, r.tenant, kind, Lookup{Number: number})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("%s %q: %w", kind, number, ErrReferenceNotFound)
		}
		return "", err
	}
	return doc.ID, nil
}
