// Package harness runs optimization scenarios: YAML files that pair an
// expression tree with the rewrite the optimizer must (or must not) apply,
// and with bindings under which the original and optimized trees must
// evaluate identically.
//
// # Scenario Format
//
//	name: left_join_member
//	description: "x == null ? null : x.Name collapses to x ?. x.Name"
//	model: ../../../model/testdata/shop   # optional, relative to this file
//	primary_key_guards: false             # requires model
//	sources:
//	  - {name: x, entity: Customer, clause: left_join}
//	expr:
//	  cond: {test: {eq: [{ref: x}, null]}, then: null, else: {path: x.Name}}
//	expect:
//	  tree: "x ?. x.Name"
//	  rewrites: [null_propagation]
//	evaluations:
//	  - bindings: {x: null}
//	    result: null
//	  - bindings: {x: {Name: Ada}}
//	    result: Ada
//
// expect.tree is the rendered optimized tree (expr.Format). expect.rewrites
// lists the rewrite kinds in application order; an empty list asserts the
// tree is unchanged. An evaluation without result expects null; one with
// error expects evaluation to fail with that kind (null_reference,
// unbound_source, unknown_member, invalid_cast, not_boolean, not_evaluable,
// type_mismatch).
//
// # Checks
//
// Beyond the scenario's own expectations, every run checks that
//   - optimizing the optimized tree changes nothing
//   - under every evaluation's bindings, original and optimized trees
//     produce the same value or fail with the same kind
//
// # Golden Files
//
// RunWithGolden snapshots the run (rendered trees, rewrites, evaluation
// outcomes) as canonical JSON under testdata/golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
