package core

import (
	"context"
	"testing"
)

func TestPreview(t *testing.T) {
	store := NewMemoryStore()
	seedInvoices(t, store)

	spec := ImportSpec{
		Mapping: []string{"customer", "number", "status", "item", "unit_cost"},
		Rows: [][]any{
			{"Acme", "INV-1", "sent", "", ""},
			{"Beta", "INV-9", "draft", "Widget", "5"},
			{"Beta", "INV-10", "draft", "Widget", "5"},
			{"Gamma", "INV-11", "draft", "Widget", "-5"},
		},
		Options: ImportOptions{Operation: OpUpsert},
	}

	resp, err := Preview(context.Background(), store, invoiceFixture(), spec, tenant)
	if err != nil {
		t.Fatalf("Preview() error: %v", err)
	}

	want := PreviewSummary{TotalRows: 4, ExcludedRows: 1, Records: 3, Creates: 2, Updates: 1, NewRefs: 1}
	if resp.Summary != want {
		t.Errorf("Summary = %+v, want %+v", resp.Summary, want)
	}
	if len(resp.Samples) != 3 {
		t.Fatalf("Samples = %d, want 3", len(resp.Samples))
	}
	if resp.Samples[0].Action != "update" || resp.Samples[0].Key != "INV-1" {
		t.Errorf("Samples[0] = %+v", resp.Samples[0])
	}
	if refs := resp.Samples[1].NewRefs; len(refs) != 1 || refs[0] != "fixture_customer Beta" {
		t.Errorf("Samples[1].NewRefs = %v", refs)
	}
	if len(resp.Samples[2].NewRefs) != 0 {
		t.Error("a reference created by an earlier record is not new again")
	}

	if len(resp.UpdateDiffs) != 1 {
		t.Fatalf("UpdateDiffs = %d, want 1", len(resp.UpdateDiffs))
	}
	diff := resp.UpdateDiffs[0]
	if diff.Incoming["status"] != "sent" {
		t.Errorf("Incoming[status] = %q", diff.Incoming["status"])
	}
	if !contains(diff.Changed, "status") || contains(diff.Changed, "number") {
		t.Errorf("Changed = %v, want status only among status/number", diff.Changed)
	}

	// Nothing was written
	if got := len(store.List(tenant, fixtureCustomer)); got != 1 {
		t.Errorf("customers = %d after preview, want 1", got)
	}
	if got := len(store.List(tenant, fixtureInvoice)); got != 2 {
		t.Errorf("invoices = %d after preview, want 2", got)
	}
}

func TestPreview_Failures(t *testing.T) {
	store := NewMemoryStore()
	seedInvoices(t, store)

	spec := ImportSpec{
		Mapping: []string{"customer", "number", "status"},
		Rows: [][]any{
			{"Acme", "INV-404", "sent"},
			{"Nobody", "INV-1", "sent"},
			{"Acme", "INV-2", "sent"},
		},
		Options: ImportOptions{Operation: OpUpdate},
	}

	resp, err := Preview(context.Background(), store, invoiceFixture(), spec, tenant)
	if err != nil {
		t.Fatalf("Preview() error: %v", err)
	}
	if resp.Summary.Failures != 2 || resp.Summary.Updates != 1 {
		t.Errorf("Summary = %+v, want 2 failures 1 update", resp.Summary)
	}
	for i, want := range []string{"fail", "fail", "update"} {
		if resp.Samples[i].Action != want {
			t.Errorf("Samples[%d].Action = %q, want %q", i, resp.Samples[i].Action, want)
		}
	}
	if resp.Samples[0].Message == "" {
		t.Error("failed sample should carry a message")
	}
}

func TestPreview_BuildErrorReturned(t *testing.T) {
	_, err := Preview(context.Background(), NewMemoryStore(), invoiceFixture(), ImportSpec{
		Mapping: []string{"number", "date"},
		Rows:    [][]any{{"INV-1", "not a date"}},
	}, tenant)
	if err == nil {
		t.Fatal("Preview() succeeded, want build error")
	}
}

func TestFormatValueForPreview(t *testing.T) {
	ref := NewObject()
	ref.Set("name", StringValue("Acme"))
	ref.Set("number", StringValue("C-1"))

	tests := []struct {
		name string
		node Node
		want string
	}{
		{"null", Null(), ""},
		{"true", BoolValue(true), "Yes"},
		{"false", BoolValue(false), "No"},
		{"date", TimeValue(day(2024, 1, 15)), "2024-01-15"},
		{"number", NumberValue(dec("12.50")), "12.5"},
		{"reference", ref, "Acme (C-1)"},
		{"list", NewList(NewObject(), NewObject()), "[2 entries]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatValueForPreview(tt.node); got != tt.want {
				t.Errorf("formatValueForPreview() = %q, want %q", got, tt.want)
			}
		})
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
