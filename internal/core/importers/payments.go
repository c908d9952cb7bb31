package importers

import (
	"fmt"

	"github.com/JonMunkholm/importer/internal/core"
)

func init() {
	registerPayments()
	registerPaymentPlans()
}

var paymentMethods = []string{"ach", "cash", "check", "credit_card", "direct_debit", "wire_transfer", "other"}

func registerPayments() {
	core.Register(core.Definition{
		Info: core.DefinitionInfo{
			Kind:       "payment",
			Group:      "Receivables",
			Label:      "Payments",
			Operations: allOperations,
		},
		FieldSpecs: []core.FieldSpec{
			text("customer"),
			text("account_number"),
			date("date"),
			enum("method", paymentMethods...),
			text("reference"),
			currency(),
			numeric("amount"),
			text("notes"),
			text("invoice"),
			amount("applied_amount"),
			enum("applied_type", "invoice", "credit_note", "convenience_fee"),
			metadata(),
		},
		Identity: []string{"customer", "reference", "date"},
		Lines: &core.LineSpec{
			Key: "applied_to",
			Fields: map[string]string{
				"invoice":        "invoice",
				"applied_amount": "amount",
				"applied_type":   "type",
			},
			Identifying: []string{"invoice", "applied_amount"},
		},
		References: []core.ReferenceSpec{customerRef()},
		Links:      []core.LinkSpec{{List: "applied_to", Field: "invoice", Kind: "invoice"}},
		Match:      core.MatchSpec{NumberField: "reference"},
		Voidable:   true,
		Finish: func(rec *core.PendingRecord, opts core.ImportOptions) error {
			if applied, ok := rec.Fields.List("applied_to"); ok {
				for _, entry := range applied.Objects() {
					if entry.Has("invoice") && !entry.Has("type") {
						entry.Set("type", core.StringValue("invoice"))
					}
				}
			}
			return sumApplied(rec, opts)
		},
	})
}

// Payment plans split one invoice into dated installments.
func registerPaymentPlans() {
	core.Register(core.Definition{
		Info: core.DefinitionInfo{
			Kind:       "payment_plan",
			Group:      "Receivables",
			Label:      "Payment Plans",
			Operations: editOperations,
		},
		FieldSpecs: []core.FieldSpec{
			text("invoice"),
			date("installment_date"),
			amount("installment_amount"),
		},
		Identity: []string{"invoice"},
		Lines: &core.LineSpec{
			Key: "installments",
			Fields: map[string]string{
				"installment_date":   "date",
				"installment_amount": "amount",
			},
			Identifying: []string{"installment_date", "installment_amount"},
		},
		Links: []core.LinkSpec{{Field: "invoice", Kind: "invoice"}},
		Match: core.MatchSpec{NumberField: "invoice"},
		Finish: func(rec *core.PendingRecord, _ core.ImportOptions) error {
			installments, ok := rec.Fields.List("installments")
			if !ok {
				return nil
			}
			for i, entry := range installments.Objects() {
				if !entry.Has("date") || !entry.Has("amount") {
					return fmt.Errorf("installment %d needs both a date and an amount", i+1)
				}
			}
			return nil
		},
	})
}
