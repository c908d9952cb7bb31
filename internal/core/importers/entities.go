package importers

import "github.com/JonMunkholm/importer/internal/core"

func init() {
	registerCustomers()
	registerContacts()
	registerItems()
	registerPlans()
	registerCoupons()
	registerTaxRates()
}

func registerCustomers() {
	core.Register(core.Definition{
		Info: core.DefinitionInfo{
			Kind:       "customer",
			Group:      "Customers",
			Label:      "Customers",
			Operations: editOperations,
		},
		FieldSpecs: specs(
			[]core.FieldSpec{
				text("number"),
				email("email"),
				enum("type", "company", "person"),
				text("phone"),
				currency(),
				text("payment_terms"),
				boolean("autopay"),
				boolean("credit_hold"),
				amount("credit_limit"),
				boolean("taxable"),
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

func registerContacts() {
	core.Register(core.Definition{
		Info: core.DefinitionInfo{
			Kind:       "contact",
			Group:      "Customers",
			Label:      "Contacts",
			Operations: editOperations,
		},
		FieldSpecs: specs(
			[]core.FieldSpec{
				text("customer"),
				text("account_number"),
				email("email"),
				text("title"),
				text("phone"),
				boolean("primary"),
				boolean("sms_enabled"),
			},
			addressSpecs(""),
		),
		Identity:   []string{"customer", "email"},
		References: []core.ReferenceSpec{customerRef()},
		Match:      core.MatchSpec{NumberField: "email"},
	})
}

func registerItems() {
	core.Register(core.Definition{
		Info: core.DefinitionInfo{
			Kind:       "item",
			Group:      "Catalog",
			Label:      "Items",
			Operations: editOperations,
		},
		FieldSpecs: []core.FieldSpec{
			text("number"),
			text("name"),
			enum("type", "product", "service", "shipping", "expense", "hours"),
			text("description"),
			currency(),
			amount("unit_cost"),
			boolean("discountable"),
			boolean("taxable"),
			text("gl_account"),
			metadata(),
		},
		Identity: []string{"number", "name"},
		Match:    core.MatchSpec{NumberField: "number", NameField: "name"},
	})
}

func registerPlans() {
	core.Register(core.Definition{
		Info: core.DefinitionInfo{
			Kind:       "plan",
			Group:      "Catalog",
			Label:      "Plans",
			Operations: editOperations,
		},
		FieldSpecs: []core.FieldSpec{
			text("number"),
			text("name"),
			text("item"),
			text("item_number"),
			currency(),
			amount("amount"),
			enum("interval", "day", "week", "month", "year"),
			numeric("interval_count"),
			enum("pricing_mode", "per_unit", "volume", "tiered", "custom"),
			text("quantity_type"),
			metadata(),
		},
		Identity: []string{"number", "name"},
		References: []core.ReferenceSpec{{
			Field:       "item",
			NameField:   "item",
			NumberField: "item_number",
			Kind:        "item",
			Create:      true,
		}},
		Match: core.MatchSpec{NumberField: "number", NameField: "name"},
		Finish: func(rec *core.PendingRecord, _ core.ImportOptions) error {
			if rec.Fields.Has("interval") && !rec.Fields.Has("interval_count") {
				rec.Fields.Set("interval_count", core.NumberValue(oneDecimal))
			}
			return nil
		},
	})
}

func registerCoupons() {
	core.Register(core.Definition{
		Info: core.DefinitionInfo{
			Kind:       "coupon",
			Group:      "Catalog",
			Label:      "Coupons",
			Operations: editOperations,
		},
		FieldSpecs: []core.FieldSpec{
			text("number"),
			text("name"),
			currency(),
			amount("value"),
			boolean("is_percent"),
			boolean("exclusive"),
			date("expiration_date"),
			numeric("max_redemptions"),
		},
		Identity: []string{"number"},
		Match:    core.MatchSpec{NumberField: "number"},
	})
}

func registerTaxRates() {
	core.Register(core.Definition{
		Info: core.DefinitionInfo{
			Kind:       "tax_rate",
			Group:      "Catalog",
			Label:      "Tax Rates",
			Operations: editOperations,
		},
		FieldSpecs: []core.FieldSpec{
			text("number"),
			text("name"),
			currency(),
			amount("value"),
			boolean("is_percent"),
			boolean("inclusive"),
		},
		Identity: []string{"number"},
		Match:    core.MatchSpec{NumberField: "number"},
	})
}
