package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newDoc(id, tenant string, kind Kind, number, name string, created time.Time) *Document {
	return &Document{
		ID:        id,
		Tenant:    tenant,
		Kind:      kind,
		Number:    number,
		Name:      name,
		Fields:    NewObject(),
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	s := NewMemoryStore()
	for _, doc := range []*Document{
		newDoc("c2", "t1", fixtureCustomer, "", "ACME", base.Add(time.Hour)),
		newDoc("c1", "t1", fixtureCustomer, "C-1", "Acme", base),
		newDoc("c3", "t2", fixtureCustomer, "C-1", "Acme", base),
	} {
		if err := s.Insert(ctx, doc); err != nil {
			t.Fatalf("Insert(%s) error: %v", doc.ID, err)
		}
	}

	t.Run("find by number", func(t *testing.T) {
		doc, err := s.Find(ctx, "t1", fixtureCustomer, Lookup{Number: "C-1"})
		if err != nil || doc.ID != "c1" {
			t.Errorf("Find() = %v, %v; want c1", doc, err)
		}
	})

	t.Run("find by name is case-insensitive and oldest first", func(t *testing.T) {
		doc, err := s.Find(ctx, "t1", fixtureCustomer, Lookup{Name: "acme"})
		if err != nil || doc.ID != "c1" {
			t.Errorf("Find() = %v, %v; want c1", doc, err)
		}
	})

	t.Run("number takes precedence over name", func(t *testing.T) {
		_, err := s.Find(ctx, "t1", fixtureCustomer, Lookup{Number: "C-9", Name: "Acme"})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Find() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("tenants are isolated", func(t *testing.T) {
		doc, err := s.Find(ctx, "t2", fixtureCustomer, Lookup{Number: "C-1"})
		if err != nil || doc.ID != "c3" {
			t.Errorf("Find() = %v, %v; want c3", doc, err)
		}
		if _, err := s.Find(ctx, "t3", fixtureCustomer, Lookup{Name: "Acme"}); !errors.Is(err, ErrNotFound) {
			t.Errorf("Find() in empty tenant error = %v", err)
		}
	})

	t.Run("blank lookup", func(t *testing.T) {
		if _, err := s.Find(ctx, "t1", fixtureCustomer, Lookup{}); !errors.Is(err, ErrNotFound) {
			t.Errorf("Find() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("duplicate number", func(t *testing.T) {
		err := s.Insert(ctx, newDoc("c4", "t1", fixtureCustomer, "C-1", "Other", base))
		if !errors.Is(err, ErrDuplicate) {
			t.Errorf("Insert() error = %v, want ErrDuplicate", err)
		}
		// Same number in another kind is fine
		if err := s.Insert(ctx, newDoc("i1", "t1", fixtureInvoice, "C-1", "", base)); err != nil {
			t.Errorf("Insert() other kind error = %v", err)
		}
	})

	t.Run("returned documents are copies", func(t *testing.T) {
		doc, _ := s.Find(ctx, "t1", fixtureCustomer, Lookup{Number: "C-1"})
		doc.Fields.Set("email", StringValue("x@acme.test"))
		doc.Voided = true

		again, _ := s.Find(ctx, "t1", fixtureCustomer, Lookup{Number: "C-1"})
		if again.Voided || again.Fields.Has("email") {
			t.Error("store shares state with callers")
		}
	})

	t.Run("update", func(t *testing.T) {
		doc, _ := s.Find(ctx, "t1", fixtureCustomer, Lookup{Number: "C-1"})
		doc.Fields.Set("email", StringValue("x@acme.test"))
		if err := s.Update(ctx, doc); err != nil {
			t.Fatalf("Update() error: %v", err)
		}
		again, _ := s.Find(ctx, "t1", fixtureCustomer, Lookup{Number: "C-1"})
		if again.Fields.String("email") != "x@acme.test" {
			t.Error("update not stored")
		}

		missing := newDoc("nope", "t1", fixtureCustomer, "", "Ghost", base)
		if err := s.Update(ctx, missing); !errors.Is(err, ErrNotFound) {
			t.Errorf("Update() missing error = %v", err)
		}
	})

	t.Run("delete checks tenant and kind", func(t *testing.T) {
		if err := s.Delete(ctx, "t2", fixtureCustomer, "c1"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Delete() other tenant error = %v", err)
		}
		if err := s.Delete(ctx, "t1", fixtureCustomer, "c2"); err != nil {
			t.Errorf("Delete() error = %v", err)
		}
		if got := len(s.List("t1", fixtureCustomer)); got != 1 {
			t.Errorf("List() len = %d, want 1", got)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := s.Find(cctx, "t1", fixtureCustomer, Lookup{Name: "Acme"}); !errors.Is(err, context.Canceled) {
			t.Errorf("Find() error = %v, want context.Canceled", err)
		}
	})
}

func TestMemoryStore_ListOrder(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	s := NewMemoryStore()
	_ = s.Insert(ctx, newDoc("b", "t1", fixtureInvoice, "2", "", base.Add(time.Minute)))
	_ = s.Insert(ctx, newDoc("c", "t1", fixtureInvoice, "3", "", base))
	_ = s.Insert(ctx, newDoc("a", "t1", fixtureInvoice, "1", "", base))

	docs := s.List("t1", fixtureInvoice)
	got := []string{docs[0].ID, docs[1].ID, docs[2].ID}
	if got[0] != "a" || got[1] != "c" || got[2] != "b" {
		t.Errorf("List() order = %v, want [a c b]", got)
	}
}
