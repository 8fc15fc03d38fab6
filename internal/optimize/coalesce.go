package optimize

import "github.com/roach88/shapeq/internal/expr"

// MatchCoalesce recognizes the null-guard shapes
//
//	ref != null ? ref : fallback   (either operand order)
//	ref == null ? fallback : ref   (either operand order)
//
// and returns ref ?? fallback. ref must be a bare source reference, and the
// returned branch must reference the same source as the test.
func MatchCoalesce(c *expr.Conditional) (expr.Node, bool) {
	ref, op, ok := refNullTest(c.Test)
	if !ok {
		return nil, false
	}

	primary, fallback := c.IfTrue, c.IfFalse
	if op == expr.OpEqual {
		primary, fallback = c.IfFalse, c.IfTrue
	}

	p, ok := primary.(*expr.SourceRef)
	if !ok || !p.Source.Same(ref.Source) {
		return nil, false
	}
	return expr.NewCoalesce(p, fallback), true
}

// refNullTest matches "ref == null" or "ref != null" in either operand order.
func refNullTest(test expr.Node) (*expr.SourceRef, expr.BinaryOp, bool) {
	bin, ok := test.(*expr.Binary)
	if !ok || (bin.Op != expr.OpEqual && bin.Op != expr.OpNotEqual) {
		return nil, "", false
	}

	if ref, ok := bin.Left.(*expr.SourceRef); ok && expr.IsNullConstant(bin.Right) {
		return ref, bin.Op, true
	}
	if ref, ok := bin.Right.(*expr.SourceRef); ok && expr.IsNullConstant(bin.Left) {
		return ref, bin.Op, true
	}
	return nil, "", false
}
