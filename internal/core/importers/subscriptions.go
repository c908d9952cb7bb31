package importers

import "github.com/JonMunkholm/importer/internal/core"

func init() {
	registerSubscriptions()
}

// Subscriptions have no business number of their own; an optional "number"
// column is used to find them again for upsert, update and delete.
func registerSubscriptions() {
	core.Register(core.Definition{
		Info: core.DefinitionInfo{
			Kind:       "subscription",
			Group:      "Subscriptions",
			Label:      "Subscriptions",
			Operations: editOperations,
		},
		FieldSpecs: []core.FieldSpec{
			text("customer"),
			text("account_number"),
			text("plan"),
			text("plan_number"),
			text("number"),
			date("start_date"),
			date("period_end"),
			numeric("quantity"),
			enum("bill_in", "advance", "arrears"),
			numeric("cycles"),
			enum("contract_renewal", "auto", "manual", "none"),
			boolean("paused"),
			text("addon"),
			numeric("addon_quantity"),
			text("addon_description"),
			metadata(),
		},
		Identity: []string{"customer", "plan", "start_date"},
		Lines: &core.LineSpec{
			Key: "addons",
			Fields: map[string]string{
				"addon":             "plan",
				"addon_quantity":    "quantity",
				"addon_description": "description",
			},
			Identifying: []string{"addon"},
			DefaultQty:  true,
		},
		References: []core.ReferenceSpec{
			customerRef(),
			{Field: "plan", NameField: "plan", NumberField: "plan_number", Kind: "plan", Create: true},
		},
		Match: core.MatchSpec{NumberField: "number"},
		Finish: func(rec *core.PendingRecord, _ core.ImportOptions) error {
			defaultQuantity(rec.Fields)
			return nil
		},
	})
}
