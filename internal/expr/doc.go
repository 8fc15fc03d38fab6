// Package expr provides the expression tree that the optimizer rewrites and
// the shapers evaluate.
//
// ARCHITECTURE:
//
//	[upstream tree builder] → [expr.Node tree] → [optimize] → [engine plan]
//	                                                         → [shaper projection]
//
// SEALED INTERFACE:
//
// Node is a sealed interface using the marker method pattern. Only types in
// this package implement it, so every type switch over Node can be
// exhaustive:
//
//	switch n := node.(type) {
//	case *Constant:
//	case *SourceRef:
//	case *MemberAccess:
//	case *PropertyAccess:
//	case *MethodCall:
//	case *Convert:
//	case *Unary:
//	case *Binary:
//	case *Conditional:
//	case *Coalesce:
//	case *NullConditional:
//	case *Opaque:
//	}
//
// IMMUTABILITY:
//
// Nodes are never mutated after construction. Rewrite produces new parents
// for changed subtrees and shares everything else, so a subtree referenced
// from several parents is never affected by a rewrite of one of them.
// Trees handed to the execution layer are read concurrently without locks.
//
// SOURCE IDENTITY:
//
// SourceRef nodes carry a source.Handle. Two references denote the same
// logical source only when their handles are identical; names are for
// display.
package expr
