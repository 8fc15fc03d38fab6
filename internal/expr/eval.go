package expr

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/shapeq/internal/ir"
	"github.com/roach88/shapeq/internal/source"
)

// Evaluation errors. Eval wraps these with the failing node's context, so
// test with errors.Is.
var (
	ErrNullReference = errors.New("null reference")
	ErrUnboundSource = errors.New("unbound source")
	ErrUnknownMember = errors.New("unknown member")
	ErrInvalidCast   = errors.New("invalid cast")
	ErrNotBoolean    = errors.New("not a boolean")
	ErrNotEvaluable  = errors.New("not evaluable")
	ErrTypeMismatch  = errors.New("type mismatch")
)

// Env supplies the current value of each logical source.
type Env interface {
	Lookup(h source.Handle) (ir.IRValue, bool)
}

// Bindings is a map-backed Env.
type Bindings map[source.Handle]ir.IRValue

// Lookup implements Env.
func (b Bindings) Lookup(h source.Handle) (ir.IRValue, bool) {
	v, ok := b[h]
	return v, ok
}

var (
	upperCaser = cases.Upper(language.Und)
	lowerCaser = cases.Lower(language.Und)
)

// Eval evaluates n against env.
//
// Semantics follow the host language the trees are built from:
//   - member access on null fails with ErrNullReference
//   - the property-lookup idiom on null yields null
//   - Coalesce and NullConditional short-circuit, so the right operand
//     (or the result) is only evaluated when needed
//   - arithmetic with a null operand yields null; ordering comparisons
//     with a null operand yield false
//   - a failed conversion is an error, a failed as-test yields null
func Eval(n Node, env Env) (ir.IRValue, error) {
	switch n := n.(type) {
	case *Constant:
		if n.Value == nil {
			return ir.Null, nil
		}
		return n.Value, nil

	case *SourceRef:
		v, ok := env.Lookup(n.Source)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnboundSource, Format(n))
		}
		if v == nil {
			return ir.Null, nil
		}
		return v, nil

	case *MemberAccess:
		recv, err := Eval(n.Receiver, env)
		if err != nil {
			return nil, err
		}
		if ir.IsNull(recv) {
			return nil, fmt.Errorf("%w: %s", ErrNullReference, Format(n))
		}
		return member(recv, n.Name)

	case *PropertyAccess:
		return evalProperty(n.Receiver, n.Name, env)

	case *MethodCall:
		if recv, name, ok := PropertyLookup(n); ok {
			return evalProperty(recv, name, env)
		}
		return evalCall(n, env)

	case *Convert:
		v, err := Eval(n.Operand, env)
		if err != nil {
			return nil, err
		}
		return convert(v, n.Type, n.Mode)

	case *Unary:
		v, err := Eval(n.Operand, env)
		if err != nil {
			return nil, err
		}
		if ir.IsNull(v) {
			return ir.Null, nil
		}
		switch n.Op {
		case OpNot:
			b, ok := v.(ir.IRBool)
			if !ok {
				return nil, fmt.Errorf("%w: !%s", ErrNotBoolean, ir.KindName(v))
			}
			return !b, nil
		case OpNegate:
			i, ok := v.(ir.IRInt)
			if !ok {
				return nil, fmt.Errorf("%w: -%s", ErrTypeMismatch, ir.KindName(v))
			}
			return -i, nil
		}
		return nil, fmt.Errorf("%w: unary %s", ErrNotEvaluable, n.Op)

	case *Binary:
		return evalBinary(n, env)

	case *Conditional:
		test, err := evalBool(n.Test, env)
		if err != nil {
			return nil, err
		}
		if test {
			return Eval(n.IfTrue, env)
		}
		return Eval(n.IfFalse, env)

	case *Coalesce:
		left, err := Eval(n.Left, env)
		if err != nil {
			return nil, err
		}
		if !ir.IsNull(left) {
			return left, nil
		}
		return Eval(n.Right, env)

	case *NullConditional:
		guard, err := Eval(n.Guard, env)
		if err != nil {
			return nil, err
		}
		if ir.IsNull(guard) {
			return ir.Null, nil
		}
		return Eval(n.Result, env)

	case *Opaque:
		return nil, fmt.Errorf("%w: %s", ErrNotEvaluable, n.Label)

	default:
		return nil, fmt.Errorf("%w: %T", ErrNotEvaluable, n)
	}
}

func member(recv ir.IRValue, name string) (ir.IRValue, error) {
	obj, ok := recv.(ir.IRObject)
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrUnknownMember, name, ir.KindName(recv))
	}
	v, ok := obj[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMember, name)
	}
	if v == nil {
		return ir.Null, nil
	}
	return v, nil
}

func evalProperty(receiver Node, name string, env Env) (ir.IRValue, error) {
	recv, err := Eval(receiver, env)
	if err != nil {
		return nil, err
	}
	if ir.IsNull(recv) {
		return ir.Null, nil
	}
	return member(recv, name)
}

func evalBool(n Node, env Env) (bool, error) {
	v, err := Eval(n, env)
	if err != nil {
		return false, err
	}
	b, ok := v.(ir.IRBool)
	if !ok {
		return false, fmt.Errorf("%w: %s is %s", ErrNotBoolean, Format(n), ir.KindName(v))
	}
	return bool(b), nil
}

func evalBinary(n *Binary, env Env) (ir.IRValue, error) {
	switch n.Op {
	case OpAnd, OpOr:
		left, err := evalBool(n.Left, env)
		if err != nil {
			return nil, err
		}
		if n.Op == OpAnd && !left {
			return ir.IRBool(false), nil
		}
		if n.Op == OpOr && left {
			return ir.IRBool(true), nil
		}
		right, err := evalBool(n.Right, env)
		if err != nil {
			return nil, err
		}
		return ir.IRBool(right), nil
	}

	left, err := Eval(n.Left, env)
	if err != nil {
		return nil, err
	}
	right, err := Eval(n.Right, env)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case OpEqual:
		return ir.IRBool(ir.Equal(left, right)), nil
	case OpNotEqual:
		return ir.IRBool(!ir.Equal(left, right)), nil
	}

	if ir.IsNull(left) || ir.IsNull(right) {
		switch n.Op {
		case OpAdd, OpSubtract:
			return ir.Null, nil
		default:
			return ir.IRBool(false), nil
		}
	}

	switch l := left.(type) {
	case ir.IRInt:
		r, ok := right.(ir.IRInt)
		if !ok {
			break
		}
		switch n.Op {
		case OpAdd:
			return l + r, nil
		case OpSubtract:
			return l - r, nil
		case OpLessThan:
			return ir.IRBool(l < r), nil
		case OpLessOrEqual:
			return ir.IRBool(l <= r), nil
		case OpGreaterThan:
			return ir.IRBool(l > r), nil
		case OpGreaterOrEqual:
			return ir.IRBool(l >= r), nil
		}
	case ir.IRString:
		r, ok := right.(ir.IRString)
		if !ok {
			break
		}
		switch n.Op {
		case OpAdd:
			return l + r, nil
		case OpLessThan:
			return ir.IRBool(l < r), nil
		case OpLessOrEqual:
			return ir.IRBool(l <= r), nil
		case OpGreaterThan:
			return ir.IRBool(l > r), nil
		case OpGreaterOrEqual:
			return ir.IRBool(l >= r), nil
		}
	}
	return nil, fmt.Errorf("%w: %s %s %s", ErrTypeMismatch, ir.KindName(left), n.Op, ir.KindName(right))
}

func evalCall(n *MethodCall, env Env) (ir.IRValue, error) {
	args := make([]ir.IRValue, len(n.Args))
	for i, arg := range n.Args {
		v, err := Eval(arg, env)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	switch n.Method {
	case "upper", "lower":
		if len(args) != 1 {
			return nil, fmt.Errorf("%w: %s takes 1 argument, got %d", ErrNotEvaluable, n.Method, len(args))
		}
		if ir.IsNull(args[0]) {
			return nil, fmt.Errorf("%w: %s", ErrNullReference, Format(n))
		}
		s, ok := args[0].(ir.IRString)
		if !ok {
			return nil, fmt.Errorf("%w: %s of %s", ErrTypeMismatch, n.Method, ir.KindName(args[0]))
		}
		if n.Method == "upper" {
			return ir.IRString(upperCaser.String(string(s))), nil
		}
		return ir.IRString(lowerCaser.String(string(s))), nil

	case "len":
		if len(args) != 1 {
			return nil, fmt.Errorf("%w: len takes 1 argument, got %d", ErrNotEvaluable, len(args))
		}
		switch v := args[0].(type) {
		case ir.IRString:
			return ir.IRInt(len([]rune(string(v)))), nil
		case ir.IRArray:
			return ir.IRInt(len(v)), nil
		case ir.IRObject:
			return ir.IRInt(len(v)), nil
		case nil, ir.IRNull:
			return nil, fmt.Errorf("%w: %s", ErrNullReference, Format(n))
		default:
			return nil, fmt.Errorf("%w: len of %s", ErrTypeMismatch, ir.KindName(v))
		}

	case "concat":
		var b strings.Builder
		for _, arg := range args {
			switch v := arg.(type) {
			case nil, ir.IRNull:
			case ir.IRString:
				b.WriteString(string(v))
			default:
				return nil, fmt.Errorf("%w: concat of %s", ErrTypeMismatch, ir.KindName(v))
			}
		}
		return ir.IRString(b.String()), nil
	}

	return nil, fmt.Errorf("%w: method %s", ErrNotEvaluable, n.Method)
}

// convert applies a cast. Scalar type names must match the value's kind;
// any other type name is an entity type and accepts objects.
func convert(v ir.IRValue, typ string, mode CastMode) (ir.IRValue, error) {
	if ir.IsNull(v) || typ == "" {
		return v, nil
	}

	var ok bool
	switch typ {
	case "string", "int", "bool", "array", "object":
		ok = ir.KindName(v) == typ
	default:
		_, ok = v.(ir.IRObject)
	}
	if ok {
		return v, nil
	}
	if mode == CastAs {
		return ir.Null, nil
	}
	return nil, fmt.Errorf("%w: %s to %s", ErrInvalidCast, ir.KindName(v), typ)
}
