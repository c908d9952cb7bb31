package importers

import "github.com/JonMunkholm/importer/internal/core"

func init() {
	registerInvoices()
	registerEstimates()
	registerCreditNotes()
	registerPendingLineItems()
}

// documentItems is the items list shared by invoices, estimates and credit notes.
func documentItems() *core.LineSpec {
	return &core.LineSpec{
		Key: "items",
		Fields: map[string]string{
			"item":         "name",
			"description":  "description",
			"quantity":     "quantity",
			"unit_cost":    "unit_cost",
			"discountable": "discountable",
			"taxable":      "taxable",
		},
		Identifying:   []string{"item", "description", "unit_cost"},
		MetadataField: "line_item_metadata",
		DefaultQty:    true,
	}
}

// documentSpecs are the columns shared by invoices, estimates and credit notes.
func documentSpecs() []core.FieldSpec {
	return specs(
		[]core.FieldSpec{
			text("customer"),
			text("account_number"),
			text("number"),
			text("name"),
			date("date"),
			currency(),
			text("purchase_order"),
			text("notes"),
			boolean("draft"),
			boolean("closed"),
			text("item"),
			text("description"),
			numeric("quantity"),
			amount("unit_cost"),
			boolean("discountable"),
			boolean("taxable"),
			numeric("discount"),
			numeric("tax"),
			text("line_item_metadata.*"),
			metadata(),
		},
		addressSpecs("ship_to"),
	)
}

func registerInvoices() {
	core.Register(core.Definition{
		Info: core.DefinitionInfo{
			Kind:       "invoice",
			Group:      "Receivables",
			Label:      "Invoices",
			Operations: allOperations,
		},
		FieldSpecs: specs(documentSpecs(), []core.FieldSpec{
			date("due_date"),
			text("payment_terms"),
			boolean("autopay"),
		}),
		Identity:   []string{"customer", "number"},
		Lines:      documentItems(),
		References: []core.ReferenceSpec{customerRef()},
		Match:      core.MatchSpec{NumberField: "number"},
		Rates:      true,
		Terms:      true,
		Voidable:   true,
	})
}

func registerEstimates() {
	core.Register(core.Definition{
		Info: core.DefinitionInfo{
			Kind:       "estimate",
			Group:      "Receivables",
			Label:      "Estimates",
			Operations: allOperations,
		},
		FieldSpecs: specs(documentSpecs(), []core.FieldSpec{
			date("expiration_date"),
			text("payment_terms"),
			amount("deposit"),
		}),
		Identity:   []string{"customer", "number"},
		Lines:      documentItems(),
		References: []core.ReferenceSpec{customerRef()},
		Match:      core.MatchSpec{NumberField: "number"},
		Rates:      true,
		Voidable:   true,
	})
}

func registerCreditNotes() {
	core.Register(core.Definition{
		Info: core.DefinitionInfo{
			Kind:       "credit_note",
			Group:      "Receivables",
			Label:      "Credit Notes",
			Operations: allOperations,
		},
		FieldSpecs: specs(documentSpecs(), []core.FieldSpec{
			text("invoice"),
		}),
		Identity:   []string{"customer", "number"},
		Lines:      documentItems(),
		References: []core.ReferenceSpec{customerRef()},
		Links:      []core.LinkSpec{{Field: "invoice", Kind: "invoice"}},
		Match:      core.MatchSpec{NumberField: "number"},
		Rates:      true,
		Voidable:   true,
	})
}

// Pending line items are billed on the customer's next invoice.
// They carry no identity, so every row is its own record.
func registerPendingLineItems() {
	core.Register(core.Definition{
		Info: core.DefinitionInfo{
			Kind:       "pending_line_item",
			Group:      "Receivables",
			Label:      "Pending Line Items",
			Operations: []core.Operation{core.OpCreate},
		},
		FieldSpecs: []core.FieldSpec{
			text("customer"),
			text("account_number"),
			text("name"),
			text("description"),
			numeric("quantity"),
			amount("unit_cost"),
			boolean("discountable"),
			boolean("taxable"),
			metadata(),
		},
		References: []core.ReferenceSpec{customerRef()},
		Finish: func(rec *core.PendingRecord, _ core.ImportOptions) error {
			defaultQuantity(rec.Fields)
			return nil
		},
	})
}
