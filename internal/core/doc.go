// Package core provides the business logic for tabular import operations.
//
// This package turns spreadsheet-like rows into billing documents (invoices,
// customers, payments, bills, ...) independent of any transport. It can be
// used by web handlers, CLI tools, or tests without modification.
//
// # Architecture
//
// An import has two phases:
//
//   - Build: a pure function of the mapping, the rows and the options.
//     Cells are coerced ([Coerce]), written to their dotted paths ([MapRow]),
//     references are normalized, rows describing the same document are
//     merged ([MergeRows]) and rates are accumulated. The result is an
//     ordered list of [PendingRecord] values.
//   - Run: applies each record to a [Store] with its operation (create,
//     upsert, update, void or delete) and reports an [ImportResult]. Runs of
//     one tenant are serialized by the [RunLimiter].
//
// # Importer Registry
//
// Import kinds are registered at init time using [Register]. Each
// [Definition] contains everything needed to build and run one kind:
//
//	core.Register(core.Definition{
//	    Info: core.DefinitionInfo{Kind: "bill", Group: "Payables", Label: "Bills"},
//	    FieldSpecs: []core.FieldSpec{
//	        {Name: "date", Type: core.FieldDate},
//	        {Name: "amount", Type: core.FieldNumeric, NonNegative: true},
//	    },
//	    Identity: []string{"vendor", "number"},
//	    Lines:    &core.LineSpec{Key: "line_items", ...},
//	})
//
// # Resuming
//
// [ImportContext.Position] counts the records a run has consumed. Calling
// [Run] again with the same records and context skips what was already
// applied. [Service.Import] keeps this state per job.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - DB001-DB005: Store errors (duplicates, connections)
//   - VAL001-VAL007: Validation errors found by Build
//   - IMP001-IMP007: Matching and resolution errors found by Run
//   - RUN001-RUN006: Scheduling and cancellation errors
package core
