// Package tables holds the table-name registry types.
//
// Callers name tables either one at a time or as a collection. The two shapes
// are represented by the sealed Input interface so normalization is a plain
// switch over known variants:
//
//	EnsureTables(One("AgentEntry"))            // {AgentEntry}
//	EnsureTables(Many([]string{"a", "a", "b"})) // {a, b}
//
// Decode turns a JSON argument into an Input and is the only place where
// the received type is inspected. Unsupported JSON types fail with
// *InputTypeError before any registry is touched.
package tables
