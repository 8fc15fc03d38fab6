package expr

import "github.com/roach88/shapeq/internal/ir"

// DeepEqual reports whether two trees have the same structure.
//
// Source references are equal only when they denote the same source
// (handle identity); display names are ignored. Constants compare by value.
func DeepEqual(a, b Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a == b {
		return true
	}

	switch x := a.(type) {
	case *Constant:
		y, ok := b.(*Constant)
		return ok && ir.KindName(x.Value) == ir.KindName(y.Value) && ir.Equal(x.Value, y.Value)
	case *SourceRef:
		y, ok := b.(*SourceRef)
		return ok && x.Source.Same(y.Source)
	case *MemberAccess:
		y, ok := b.(*MemberAccess)
		return ok && x.Name == y.Name && DeepEqual(x.Receiver, y.Receiver)
	case *PropertyAccess:
		y, ok := b.(*PropertyAccess)
		return ok && x.Name == y.Name && DeepEqual(x.Receiver, y.Receiver)
	case *MethodCall:
		y, ok := b.(*MethodCall)
		return ok && x.Method == y.Method && equalAll(x.Args, y.Args)
	case *Convert:
		y, ok := b.(*Convert)
		return ok && x.Type == y.Type && x.Mode == y.Mode && DeepEqual(x.Operand, y.Operand)
	case *Unary:
		y, ok := b.(*Unary)
		return ok && x.Op == y.Op && DeepEqual(x.Operand, y.Operand)
	case *Binary:
		y, ok := b.(*Binary)
		return ok && x.Op == y.Op && DeepEqual(x.Left, y.Left) && DeepEqual(x.Right, y.Right)
	case *Conditional:
		y, ok := b.(*Conditional)
		return ok && DeepEqual(x.Test, y.Test) && DeepEqual(x.IfTrue, y.IfTrue) && DeepEqual(x.IfFalse, y.IfFalse)
	case *Coalesce:
		y, ok := b.(*Coalesce)
		return ok && DeepEqual(x.Left, y.Left) && DeepEqual(x.Right, y.Right)
	case *NullConditional:
		y, ok := b.(*NullConditional)
		return ok && DeepEqual(x.Guard, y.Guard) && DeepEqual(x.TestRoot, y.TestRoot) && DeepEqual(x.Result, y.Result)
	case *Opaque:
		y, ok := b.(*Opaque)
		return ok && x.Label == y.Label && equalAll(x.Args, y.Args)
	default:
		return false
	}
}

func equalAll(a, b []Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !DeepEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}
