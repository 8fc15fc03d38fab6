// Package optimize rewrites null-guarded conditionals in expression trees.
//
// Two rewrites are applied, bottom-up, to every Conditional in a tree:
//
// Coalesce:
//
//	c != null ? c : fallback    =>  c ?? fallback
//	null != c ? c : fallback    =>  c ?? fallback
//	c == null ? fallback : c    =>  c ?? fallback
//	null == c ? fallback : c    =>  c ?? fallback
//
// where c is a bare source reference and both occurrences denote the same
// source (handle identity, see package source).
//
// Null propagation:
//
//	g == null ? null : r    =>  g ?. r
//	g != null ? r : null    =>  g ?. r
//
// applied only when the safety check accepts (g, r): every access in r that
// is rooted at the guarded source must be the access g already tested, or a
// single member step from it. Anything else is left alone.
//
// The optimizer never fails. Pattern mismatch and unsafe verdicts leave the
// node unchanged, and running the pass twice yields the same tree as running
// it once.
//
// An Optimizer holds no per-call state and is safe for concurrent use.
package optimize
