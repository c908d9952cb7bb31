package pgstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/JonMunkholm/importer/internal/core"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"no rows", pgx.ErrNoRows, core.ErrNotFound},
		{"wrapped no rows", fmt.Errorf("scan: %w", pgx.ErrNoRows), core.ErrNotFound},
		{"unique", &pgconn.PgError{Code: "23505", Detail: "Key exists"}, core.ErrDuplicate},
		{"other pg", &pgconn.PgError{Code: "40P01"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err)
			switch {
			case tt.err == nil:
				if got != nil {
					t.Errorf("mapError(nil) = %v", got)
				}
			case tt.want == nil:
				if got != tt.err {
					t.Errorf("mapError() = %v, want passthrough", got)
				}
			case !errors.Is(got, tt.want):
				t.Errorf("mapError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFieldsRoundTrip(t *testing.T) {
	fields := core.NewObject()
	fields.Set("number", core.StringValue("INV-1"))
	fields.Set("total", core.NumberValue(decimal.RequireFromString("12.50")))

	b, err := encodeFields(fields)
	if err != nil {
		t.Fatalf("encodeFields() error: %v", err)
	}
	got, err := decodeFields(b)
	if err != nil {
		t.Fatalf("decodeFields() error: %v", err)
	}
	if got.String("number") != "INV-1" {
		t.Errorf("number = %q", got.String("number"))
	}
	if d, ok := got.Decimal("total"); !ok || !d.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("total = %v, %v", d, ok)
	}

	if b, _ := encodeFields(nil); string(b) != "{}" {
		t.Errorf("encodeFields(nil) = %s", b)
	}
	if obj, err := decodeFields(nil); err != nil || len(obj.Keys()) != 0 {
		t.Errorf("decodeFields(nil) = %v, %v", obj, err)
	}
	if _, err := decodeFields([]byte("[1]")); err == nil {
		t.Error("decodeFields(array) should fail")
	}
}

// TestStore_Postgres runs against a live database named by PGSTORE_TEST_URL.
func TestStore_Postgres(t *testing.T) {
	url := os.Getenv("PGSTORE_TEST_URL")
	if url == "" {
		t.Skip("PGSTORE_TEST_URL not set")
	}

	ctx := context.Background()
	store, err := Open(ctx, PoolConfig{URL: url, MaxConns: 2})
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema() error: %v", err)
	}

	tenant := "pgstore-test-" + uuid.NewString()
	const kind core.Kind = "invoice"
	now := time.Now().UTC().Truncate(time.Microsecond)

	newDoc := func(number, name string, created time.Time) *core.Document {
		fields := core.NewObject()
		fields.Set("number", core.StringValue(number))
		return &core.Document{
			ID: uuid.NewString(), Tenant: tenant, Kind: kind,
			Number: number, Name: name, Fields: fields,
			CreatedAt: created, UpdatedAt: created,
		}
	}

	first := newDoc("INV-1", "Acme", now)
	if err := store.Insert(ctx, first); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}
	if err := store.Insert(ctx, newDoc("INV-1", "Other", now)); !errors.Is(err, core.ErrDuplicate) {
		t.Errorf("duplicate Insert() error = %v", err)
	}
	later := newDoc("", "acme", now.Add(time.Second))
	if err := store.Insert(ctx, later); err != nil {
		t.Fatalf("Insert() unnumbered error: %v", err)
	}

	got, err := store.Find(ctx, tenant, kind, core.Lookup{Number: "INV-1"})
	if err != nil || got.ID != first.ID || got.Fields.String("number") != "INV-1" {
		t.Errorf("Find(number) = %+v, %v", got, err)
	}
	got, err = store.Find(ctx, tenant, kind, core.Lookup{Name: "ACME"})
	if err != nil || got.ID != first.ID {
		t.Errorf("Find(name) should return the oldest match, got %+v, %v", got, err)
	}
	if _, err := store.Find(ctx, tenant, kind, core.Lookup{Number: "INV-404"}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Find(missing) error = %v", err)
	}

	first.Voided = true
	first.UpdatedAt = now.Add(time.Minute)
	if err := store.Update(ctx, first); err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if got, _ := store.Find(ctx, tenant, kind, core.Lookup{Number: "INV-1"}); got == nil || !got.Voided {
		t.Errorf("Update() not persisted: %+v", got)
	}

	docs, err := store.List(ctx, tenant, kind)
	if err != nil || len(docs) != 2 || docs[0].ID != first.ID {
		t.Errorf("List() = %d docs, %v", len(docs), err)
	}

	for _, doc := range docs {
		if err := store.Delete(ctx, tenant, kind, doc.ID); err != nil {
			t.Errorf("Delete() error: %v", err)
		}
	}
	if err := store.Delete(ctx, tenant, kind, first.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second Delete() error = %v", err)
	}
	if err := store.Update(ctx, first); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Update() after delete error = %v", err)
	}
}
