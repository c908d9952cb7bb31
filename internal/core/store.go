package core

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned by a Store when no document matches.
	ErrNotFound = errors.New("document not found")

	// ErrDuplicate is returned when a document number is already taken.
	ErrDuplicate = errors.New("duplicate document number")
)

// Document is a persisted domain object.
type Document struct {
	ID        string    `json:"id"`
	Tenant    string    `json:"tenant"`
	Kind      Kind      `json:"kind"`
	Number    string    `json:"number,omitempty"`
	Name      string    `json:"name,omitempty"`
	Voided    bool      `json:"voided"`
	Fields    *Object   `json:"fields"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	c := *d
	if d.Fields != nil {
		c.Fields = d.Fields.Clone()
	}
	return &c
}

// Lookup selects a document by business number or, when Number is blank, by name.
// Name matching is case-insensitive.
type Lookup struct {
	Number string
	Name   string
}

// Store is the persistence boundary of the runner.
// Implementations must be safe for concurrent use.
type Store interface {
	Find(ctx context.Context, tenant string, kind Kind, l Lookup) (*Document, error)
	Insert(ctx context.Context, doc *Document) error
	Update(ctx context.Context, doc *Document) error
	Delete(ctx context.Context, tenant string, kind Kind, id string) error
}

// MemoryStore is a Store kept in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*Document // by ID
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*Document)}
}

// Find implements Store.
func (s *MemoryStore) Find(ctx context.Context, tenant string, kind Kind, l Lookup) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.Number == "" && l.Name == "" {
		return nil, ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var match *Document
	for _, doc := range s.docs {
		if doc.Tenant != tenant || doc.Kind != kind {
			continue
		}
		if l.Number != "" {
			if doc.Number != l.Number {
				continue
			}
		} else if !strings.EqualFold(doc.Name, l.Name) {
			continue
		}
		// Oldest match wins so lookups are deterministic
		if match == nil || doc.CreatedAt.Before(match.CreatedAt) {
			match = doc
		}
	}
	if match == nil {
		return nil, ErrNotFound
	}
	return match.Clone(), nil
}

// Insert implements Store.
func (s *MemoryStore) Insert(ctx context.Context, doc *Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if doc.Number != "" && s.numberTaken(doc) {
		return ErrDuplicate
	}
	s.docs[doc.ID] = doc.Clone()
	return nil
}

// Update implements Store.
func (s *MemoryStore) Update(ctx context.Context, doc *Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[doc.ID]; !ok {
		return ErrNotFound
	}
	if doc.Number != "" && s.numberTaken(doc) {
		return ErrDuplicate
	}
	s.docs[doc.ID] = doc.Clone()
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, tenant string, kind Kind, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok || doc.Tenant != tenant || doc.Kind != kind {
		return ErrNotFound
	}
	delete(s.docs, id)
	return nil
}

// List returns the documents of one kind for a tenant, oldest first.
func (s *MemoryStore) List(tenant string, kind Kind) []*Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Document
	for _, doc := range s.docs {
		if doc.Tenant == tenant && doc.Kind == kind {
			out = append(out, doc.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// numberTaken reports whether another document of the same tenant and kind uses doc.Number.
// Caller must hold s.mu.
func (s *MemoryStore) numberTaken(doc *Document) bool {
	for id, other := range s.docs {
		if id != doc.ID && other.Tenant == doc.Tenant && other.Kind == doc.Kind && other.Number == doc.Number {
			return true
		}
	}
	return false
}
