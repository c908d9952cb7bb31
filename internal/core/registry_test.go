package core

import (
	"errors"
	"testing"
)

func TestRegistry(t *testing.T) {
	registerFixtures(t)

	def, err := Require(fixtureInvoice)
	if err != nil {
		t.Fatalf("Require() error: %v", err)
	}
	if def.Info.Label != "Invoices" || !def.Supports(OpVoid) {
		t.Errorf("Require() = %+v", def.Info)
	}

	if _, err := Require("widget"); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("Require(widget) error = %v", err)
	}

	found := false
	for _, g := range Groups() {
		if g == "Fixtures" {
			found = true
		}
	}
	if !found {
		t.Errorf("Groups() = %v, want Fixtures", Groups())
	}

	group := ByGroup("Fixtures")
	if len(group) != 3 || group[0].Info.Kind != fixtureCustomer {
		t.Errorf("ByGroup() = %d definitions, first %q", len(group), group[0].Info.Kind)
	}
	if Count() < 3 {
		t.Errorf("Count() = %d", Count())
	}
}

func TestRegister_DefaultsToCreate(t *testing.T) {
	const kind Kind = "fixture_defaults"
	if _, ok := Get(kind); !ok {
		Register(Definition{Info: DefinitionInfo{Kind: kind, Group: "Other"}})
	}

	def, _ := Get(kind)
	if len(def.Info.Operations) != 1 || !def.Supports(OpCreate) || def.Supports(OpUpsert) {
		t.Errorf("Operations = %v, want [create]", def.Info.Operations)
	}
}

func TestRegister_PanicsOnDuplicate(t *testing.T) {
	registerFixtures(t)

	defer func() {
		if recover() == nil {
			t.Error("Register() of a duplicate kind should panic")
		}
	}()
	Register(invoiceFixture())
}
