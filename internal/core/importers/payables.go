package importers

import "github.com/JonMunkholm/importer/internal/core"

func init() {
	registerVendors()
	registerBills()
	registerVendorPayments()
}

// vendorRef references a vendor by name only; bills show the plain name.
func vendorRef() core.ReferenceSpec {
	return core.ReferenceSpec{Field: "vendor", NameField: "vendor", Kind: "vendor", Create: true}
}

func registerVendors() {
	core.Register(core.Definition{
		Info: core.DefinitionInfo{
			Kind:       "vendor",
			Group:      "Payables",
			Label:      "Vendors",
			Operations: editOperations,
		},
		FieldSpecs: specs(
			[]core.FieldSpec{
				text("number"),
				email("email"),
				text("phone"),
				currency(),
				text("payment_terms"),
				text("tax_id"),
				text("notes"),
				metadata(),
			},
			addressSpecs(""),
		),
		Identity: []string{"number", "name"},
		Match:    core.MatchSpec{NumberField: "number", NameField: "name"},
	})
}

func registerBills() {
	core.Register(core.Definition{
		Info: core.DefinitionInfo{
			Kind:       "bill",
			Group:      "Payables",
			Label:      "Bills",
			Operations: allOperations,
		},
		FieldSpecs: []core.FieldSpec{
			text("vendor"),
			text("number"),
			date("date"),
			date("due_date"),
			currency(),
			text("payment_terms"),
			text("notes"),
			text("description"),
			numeric("quantity"),
			amount("unit_cost"),
			amount("amount"),
			numeric("discount"),
			numeric("tax"),
			metadata(),
		},
		Identity: []string{"vendor", "number"},
		Lines: &core.LineSpec{
			Key: "line_items",
			Fields: map[string]string{
				"description": "description",
				"quantity":    "quantity",
				"unit_cost":   "unit_cost",
				"amount":      "amount",
			},
			Identifying: []string{"description", "unit_cost", "amount"},
		},
		References: []core.ReferenceSpec{vendorRef()},
		Match:      core.MatchSpec{NumberField: "number"},
		Rates:      true,
		Terms:      true,
		Voidable:   true,
	})
}

func registerVendorPayments() {
	core.Register(core.Definition{
		Info: core.DefinitionInfo{
			Kind:       "vendor_payment",
			Group:      "Payables",
			Label:      "Vendor Payments",
			Operations: allOperations,
		},
		FieldSpecs: []core.FieldSpec{
			text("vendor"),
			date("date"),
			enum("method", paymentMethods...),
			text("reference"),
			currency(),
			numeric("amount"),
			text("notes"),
			text("bill"),
			amount("applied_amount"),
		},
		Identity: []string{"vendor", "reference", "date"},
		Lines: &core.LineSpec{
			Key: "applied_to",
			Fields: map[string]string{
				"bill":           "bill",
				"applied_amount": "amount",
			},
			Identifying: []string{"bill", "applied_amount"},
		},
		References: []core.ReferenceSpec{vendorRef()},
		Links:      []core.LinkSpec{{List: "applied_to", Field: "bill", Kind: "bill"}},
		Match:      core.MatchSpec{NumberField: "reference"},
		Voidable:   true,
		Finish:     sumApplied,
	})
}
