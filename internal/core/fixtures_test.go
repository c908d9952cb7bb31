package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

const (
	fixtureInvoice  Kind = "fixture_invoice"
	fixtureCustomer Kind = "fixture_customer"
	fixturePayment  Kind = "fixture_payment"
)

var allOps = []Operation{OpCreate, OpUpsert, OpUpdate, OpVoid, OpDelete}

func invoiceFixture() Definition {
	return Definition{
		Info: DefinitionInfo{Kind: fixtureInvoice, Group: "Fixtures", Label: "Invoices", Operations: allOps},
		FieldSpecs: []FieldSpec{
			{Name: "date", Type: FieldDate},
			{Name: "due_date", Type: FieldDate},
			{Name: "currency", Type: FieldText},
			{Name: "quantity", Type: FieldNumeric, NonNegative: true},
			{Name: "unit_cost", Type: FieldNumeric, NonNegative: true},
			{Name: "tax", Type: FieldNumeric},
			{Name: "discount", Type: FieldNumeric},
			{Name: "autopay", Type: FieldBool},
			{Name: "status", Type: FieldEnum, EnumValues: []string{"draft", "sent"}},
			{Name: "metadata.*", Type: FieldText},
		},
		Identity: []string{"customer", "number"},
		Lines: &LineSpec{
			Key: "items",
			Fields: map[string]string{
				"item":      "name",
				"quantity":  "quantity",
				"unit_cost": "unit_cost",
			},
			Identifying: []string{"item", "unit_cost"},
			DefaultQty:  true,
		},
		References: []ReferenceSpec{
			{Field: "customer", NameField: "customer", NumberField: "account_number", Kind: fixtureCustomer, Create: true},
		},
		Match:    MatchSpec{NumberField: "number"},
		Rates:    true,
		Terms:    true,
		Voidable: true,
	}
}

func customerFixture() Definition {
	return Definition{
		Info: DefinitionInfo{Kind: fixtureCustomer, Group: "Fixtures", Label: "Customers",
			Operations: []Operation{OpCreate, OpUpsert, OpUpdate, OpDelete}},
		FieldSpecs: []FieldSpec{
			{Name: "taxable", Type: FieldBool},
		},
		Match: MatchSpec{NumberField: "number", NameField: "name"},
	}
}

func paymentFixture() Definition {
	return Definition{
		Info: DefinitionInfo{Kind: fixturePayment, Group: "Fixtures", Label: "Payments", Operations: allOps},
		FieldSpecs: []FieldSpec{
			{Name: "amount", Type: FieldNumeric, NonNegative: true},
			{Name: "applied_amount", Type: FieldNumeric, NonNegative: true},
		},
		Identity: []string{"reference"},
		Lines: &LineSpec{
			Key:         "applied_to",
			Fields:      map[string]string{"invoice": "invoice", "applied_amount": "amount"},
			Identifying: []string{"invoice"},
		},
		Links:    []LinkSpec{{List: "applied_to", Field: "invoice", Kind: fixtureInvoice}},
		Match:    MatchSpec{NumberField: "reference"},
		Voidable: true,
	}
}

var registerOnce sync.Once

// registerFixtures adds the fixture importers to the global registry once.
func registerFixtures(t *testing.T) {
	t.Helper()
	registerOnce.Do(func() {
		for _, def := range []Definition{invoiceFixture(), customerFixture(), paymentFixture()} {
			if _, ok := Get(def.Info.Kind); !ok {
				Register(def)
			}
		}
	})
}

func mustBuild(t *testing.T, def Definition, spec ImportSpec) []*PendingRecord {
	t.Helper()
	records, err := Build(def, spec)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	return records
}

func mustRun(t *testing.T, store Store, def Definition, records []*PendingRecord, tenant string) ImportResult {
	t.Helper()
	ictx := &ImportContext{JobID: "job-" + tenant, Tenant: tenant, Kind: def.Info.Kind}
	res, err := Run(context.Background(), store, def, records, ictx)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	return res
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, ReferenceHour, 0, 0, 0, time.UTC)
}

// invoiceSpec is a two-line invoice followed by a single-line one.
func invoiceSpec(op Operation) ImportSpec {
	return ImportSpec{
		Mapping: []string{"customer", "number", "date", "item", "quantity", "unit_cost"},
		Rows: [][]any{
			{"Acme", "INV-1", "2024-01-15", "Widget", "2", "10.00"},
			{"Acme", "INV-1", "", "Gadget", "", "3"},
			{"Acme", "INV-2", "2024-01-20", "Widget", "1", "10.00"},
		},
		Options: ImportOptions{Operation: op},
	}
}
