package optimize

import (
	"github.com/roach88/shapeq/internal/expr"
	"github.com/roach88/shapeq/internal/source"
)

// CanRemoveNullCheck reports whether test == null ? null : result may be
// collapsed to test ?. result. It never widens primary-key guards; use an
// Optimizer configured with WithPrimaryKeyGuards for that.
func CanRemoveNullCheck(test, result expr.Node) bool {
	return canRemoveNullCheck(test, result, nil)
}

// nullSafety walks a result expression against a guard.
//
// The guard is either a whole source (c) or one property of a source (c.P,
// c["P"], Property(c, "P")). The walk accepts when it reaches the guarded
// thing through casts and member accesses, with at most one member step
// beyond the guard. A property lookup is accepted only when it is exactly
// the guarded property; any other lookup, node kind, second source or
// longer chain rejects.
type nullSafety struct {
	source      source.Handle
	property    string
	hasProperty bool

	hops    int
	verdict bool
	decided bool
}

func canRemoveNullCheck(test, result expr.Node, keys *keyGuards) bool {
	var s nullSafety
	if !s.analyzeGuard(test) {
		return false
	}
	if s.hasProperty && keys.isPrimaryKey(s.source, s.property) {
		s.hasProperty = false
		s.property = ""
	}
	s.visit(result)
	return s.decided && s.verdict
}

// analyzeGuard establishes the guarded source and optional property.
func (s *nullSafety) analyzeGuard(test expr.Node) bool {
	test = expr.StripConvert(test)

	if ref, ok := test.(*expr.SourceRef); ok {
		s.source = ref.Source
		return ref.Source.IsValid()
	}

	var (
		recv expr.Node
		name string
		ok   bool
	)
	if m, isMember := test.(*expr.MemberAccess); isMember {
		recv, name, ok = m.Receiver, m.Name, true
	} else {
		recv, name, ok = expr.PropertyLookup(test)
	}
	if !ok {
		return false
	}

	ref, ok := expr.StripConvert(recv).(*expr.SourceRef)
	if !ok || !ref.Source.IsValid() {
		return false
	}
	s.source = ref.Source
	s.property = name
	s.hasProperty = true
	return true
}

func (s *nullSafety) decide(v bool) {
	s.verdict = v
	s.decided = true
}

func (s *nullSafety) visit(n expr.Node) {
	if s.decided {
		return
	}

	switch n := n.(type) {
	case *expr.SourceRef:
		s.decide(n.Source.Same(s.source) && !s.hasProperty)
	case *expr.MemberAccess:
		s.visitAccess(n.Receiver, n.Name)
	case *expr.PropertyAccess:
		s.decide(s.isGuardedProperty(n.Receiver, n.Name))
	case *expr.MethodCall:
		recv, name, ok := expr.PropertyLookup(n)
		s.decide(ok && s.isGuardedProperty(recv, name))
	case *expr.Convert:
		s.visit(n.Operand)
	default:
		s.decide(false)
	}
}

// isGuardedProperty reports whether recv.name is exactly the guarded
// property of the guarded source.
func (s *nullSafety) isGuardedProperty(recv expr.Node, name string) bool {
	if !s.hasProperty || name != s.property {
		return false
	}
	ref, ok := expr.StripConvert(recv).(*expr.SourceRef)
	return ok && ref.Source.Same(s.source)
}

// visitAccess handles a member access: the guarded property itself, or
// one step beyond the guarded thing.
func (s *nullSafety) visitAccess(recv expr.Node, name string) {
	if s.isGuardedProperty(recv, name) {
		s.decide(true)
		return
	}

	s.hops++
	if s.hops > 1 {
		s.decide(false)
		return
	}
	s.visit(recv)
}
