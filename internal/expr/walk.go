package expr

import "fmt"

// Children returns the direct children of n in evaluation order.
func Children(n Node) []Node {
	switch n := n.(type) {
	case *Constant, *SourceRef:
		return nil
	case *MemberAccess:
		return []Node{n.Receiver}
	case *PropertyAccess:
		return []Node{n.Receiver}
	case *MethodCall:
		return n.Args
	case *Convert:
		return []Node{n.Operand}
	case *Unary:
		return []Node{n.Operand}
	case *Binary:
		return []Node{n.Left, n.Right}
	case *Conditional:
		return []Node{n.Test, n.IfTrue, n.IfFalse}
	case *Coalesce:
		return []Node{n.Left, n.Right}
	case *NullConditional:
		return []Node{n.Guard, n.TestRoot, n.Result}
	case *Opaque:
		return n.Args
	default:
		panic(fmt.Sprintf("expr: unknown node type %T", n))
	}
}

// withChildren returns a copy of n with its children replaced.
// kids must have the length Children(n) returned.
func withChildren(n Node, kids []Node) Node {
	switch n := n.(type) {
	case *Constant, *SourceRef:
		return n
	case *MemberAccess:
		return &MemberAccess{Receiver: kids[0], Name: n.Name}
	case *PropertyAccess:
		return &PropertyAccess{Receiver: kids[0], Name: n.Name}
	case *MethodCall:
		return &MethodCall{Method: n.Method, Args: kids}
	case *Convert:
		return &Convert{Operand: kids[0], Type: n.Type, Mode: n.Mode}
	case *Unary:
		return &Unary{Op: n.Op, Operand: kids[0]}
	case *Binary:
		return &Binary{Op: n.Op, Left: kids[0], Right: kids[1]}
	case *Conditional:
		return &Conditional{Test: kids[0], IfTrue: kids[1], IfFalse: kids[2]}
	case *Coalesce:
		return &Coalesce{Left: kids[0], Right: kids[1]}
	case *NullConditional:
		return &NullConditional{Guard: kids[0], TestRoot: kids[1], Result: kids[2]}
	case *Opaque:
		return &Opaque{Label: n.Label, Args: kids}
	default:
		panic(fmt.Sprintf("expr: unknown node type %T", n))
	}
}

// Rewrite applies fn to every node of the tree bottom-up and returns the
// new root. fn sees each node after its children have been rewritten and
// returns either the node itself or a replacement.
//
// Unchanged subtrees are returned as the identical node, so callers can
// detect "no rewrite" with ==. The input tree is never modified.
func Rewrite(n Node, fn func(Node) Node) Node {
	if n == nil {
		return nil
	}

	kids := Children(n)
	var replaced []Node
	for i, kid := range kids {
		newKid := Rewrite(kid, fn)
		if newKid != kid && replaced == nil {
			replaced = make([]Node, len(kids))
			copy(replaced, kids[:i])
		}
		if replaced != nil {
			replaced[i] = newKid
		}
	}

	if replaced != nil {
		n = withChildren(n, replaced)
	}
	return fn(n)
}

// Walk visits the tree top-down. When fn returns false the children of that
// node are skipped.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, kid := range Children(n) {
		Walk(kid, fn)
	}
}

// Count returns the number of nodes in the tree.
func Count(n Node) int {
	total := 0
	Walk(n, func(Node) bool {
		total++
		return true
	})
	return total
}
