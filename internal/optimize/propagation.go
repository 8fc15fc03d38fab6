package optimize

import "github.com/roach88/shapeq/internal/expr"

// NullPropagationCandidate extracts the guarded operand and the result
// branch from
//
//	test == null ? null : result
//	test != null ? result : null
//
// with the null constant on either side of the comparison. The branch taken
// when test is null must be the null literal itself.
func NullPropagationCandidate(c *expr.Conditional) (test, result expr.Node, ok bool) {
	bin, isBin := c.Test.(*expr.Binary)
	if !isBin || (bin.Op != expr.OpEqual && bin.Op != expr.OpNotEqual) {
		return nil, nil, false
	}

	leftNull, rightNull := expr.IsNullConstant(bin.Left), expr.IsNullConstant(bin.Right)
	switch {
	case rightNull && !leftNull:
		test = bin.Left
	case leftNull && !rightNull:
		test = bin.Right
	default:
		return nil, nil, false
	}

	nullBranch, result := c.IfTrue, c.IfFalse
	if bin.Op == expr.OpNotEqual {
		nullBranch, result = c.IfFalse, c.IfTrue
	}
	if !expr.IsNullConstant(nullBranch) {
		return nil, nil, false
	}
	return test, result, true
}
