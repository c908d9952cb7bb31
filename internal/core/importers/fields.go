package importers

import (
	"github.com/JonMunkholm/importer/internal/core"
	"github.com/shopspring/decimal"
)

// Operation sets shared by the importers.
var (
	allOperations  = []core.Operation{core.OpCreate, core.OpUpsert, core.OpUpdate, core.OpVoid, core.OpDelete}
	editOperations = []core.Operation{core.OpCreate, core.OpUpsert, core.OpUpdate, core.OpDelete}
)

var oneDecimal = decimal.NewFromInt(1)

func text(name string) core.FieldSpec {
	return core.FieldSpec{Name: name, Type: core.FieldText}
}

func date(name string) core.FieldSpec {
	return core.FieldSpec{Name: name, Type: core.FieldDate}
}

func numeric(name string) core.FieldSpec {
	return core.FieldSpec{Name: name, Type: core.FieldNumeric}
}

// amount is a numeric field whose negative values drop the row.
func amount(name string) core.FieldSpec {
	return core.FieldSpec{Name: name, Type: core.FieldNumeric, NonNegative: true}
}

func boolean(name string) core.FieldSpec {
	return core.FieldSpec{Name: name, Type: core.FieldBool}
}

func enum(name string, values ...string) core.FieldSpec {
	return core.FieldSpec{Name: name, Type: core.FieldEnum, EnumValues: values}
}

func currency() core.FieldSpec {
	return core.FieldSpec{Name: "currency", Type: core.FieldText, Normalizer: NormalizeCurrency}
}

func email(name string) core.FieldSpec {
	return core.FieldSpec{Name: name, Type: core.FieldText, Normalizer: NormalizeEmail}
}

func state(name string) core.FieldSpec {
	return core.FieldSpec{Name: name, Type: core.FieldText, Normalizer: NormalizeUsState}
}

// addressSpecs declares the postal address fields under prefix ("" for top level).
func addressSpecs(prefix string) []core.FieldSpec {
	p := func(s string) string {
		if prefix == "" {
			return s
		}
		return prefix + "." + s
	}
	return []core.FieldSpec{
		text(p("name")),
		text(p("attention_to")),
		text(p("address1")),
		text(p("address2")),
		text(p("city")),
		state(p("state")),
		text(p("postal_code")),
		text(p("country")),
	}
}

// metadata declares free-form custom fields.
func metadata() core.FieldSpec {
	return text("metadata.*")
}

func specs(groups ...[]core.FieldSpec) []core.FieldSpec {
	var out []core.FieldSpec
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// customerRef is the customer reference shared by receivables documents.
func customerRef() core.ReferenceSpec {
	return core.ReferenceSpec{
		Field:       "customer",
		NameField:   "customer",
		NumberField: "account_number",
		Kind:        "customer",
		Create:      true,
	}
}

// defaultQuantity sets quantity 1 on a record that has none.
func defaultQuantity(fields *core.Object) {
	if !fields.Has("quantity") {
		fields.Set("quantity", core.NumberValue(oneDecimal))
	}
}

// sumApplied fills in amount from the applied_to entries when it was not mapped.
func sumApplied(rec *core.PendingRecord, _ core.ImportOptions) error {
	applied, ok := rec.Fields.List("applied_to")
	if !ok {
		return nil
	}

	total := decimal.Zero
	for _, entry := range applied.Objects() {
		if amt, ok := entry.Decimal("amount"); ok {
			total = total.Add(amt)
		}
	}

	if !rec.Fields.Has("amount") {
		rec.Fields.Set("amount", core.NumberValue(total))
	}
	return nil
}
