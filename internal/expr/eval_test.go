package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shapeq/internal/ir"
)

func customer(name string) ir.IRObject {
	return ir.IRObject{"Name": ir.IRString(name), "Age": ir.IRInt(41), "Address": ir.Null}
}

func TestEvalNullShortCircuit(t *testing.T) {
	c, _ := twoSources(t)
	name := Member(c, "Name")

	nc := NewNullConditional(c, c, name)
	guarded := Cond(Equal(c, Null()), Null(), name)

	for _, n := range []Node{nc, guarded} {
		v, err := Eval(n, Bindings{c.Source: ir.Null})
		require.NoError(t, err, Format(n))
		assert.Equal(t, ir.Null, v)

		v, err = Eval(n, Bindings{c.Source: customer("Ada")})
		require.NoError(t, err, Format(n))
		assert.Equal(t, ir.IRString("Ada"), v)
	}

	_, err := Eval(name, Bindings{c.Source: ir.Null})
	assert.ErrorIs(t, err, ErrNullReference)
}

func TestEvalCoalesce(t *testing.T) {
	c, o := twoSources(t)
	n := NewCoalesce(c, Member(o, "Missing"))

	v, err := Eval(n, Bindings{c.Source: ir.IRString("x")})
	require.NoError(t, err, "right operand is not evaluated when left is non-null")
	assert.Equal(t, ir.IRString("x"), v)

	_, err = Eval(n, Bindings{c.Source: ir.Null, o.Source: ir.IRObject{}})
	assert.ErrorIs(t, err, ErrUnknownMember)
}

func TestEvalPropertyLookupOnNull(t *testing.T) {
	c, _ := twoSources(t)
	env := Bindings{c.Source: ir.Null}

	for _, n := range []Node{Property(c, "Name"), PropertyCall(c, "Name")} {
		v, err := Eval(n, env)
		require.NoError(t, err)
		assert.Equal(t, ir.Null, v)
	}
}

func TestEvalErrors(t *testing.T) {
	c, o := twoSources(t)
	env := Bindings{c.Source: customer("Ada")}

	tests := []struct {
		name string
		n    Node
		want error
	}{
		{"unbound", o, ErrUnboundSource},
		{"unknown member", Member(c, "Nope"), ErrUnknownMember},
		{"member of scalar", Member(Member(c, "Name"), "Length"), ErrUnknownMember},
		{"bad cast", Cast(Member(c, "Name"), "int"), ErrInvalidCast},
		{"condition not bool", Cond(Member(c, "Age"), Null(), Null()), ErrNotBoolean},
		{"opaque", NewOpaque("subquery"), ErrNotEvaluable},
		{"unknown method", Call("reverse", c), ErrNotEvaluable},
		{"mismatched add", NewBinary(OpAdd, Member(c, "Age"), Member(c, "Name")), ErrTypeMismatch},
		{"upper of null", Call("upper", Member(c, "Address")), ErrNullReference},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Eval(tt.n, env)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestEvalValues(t *testing.T) {
	c, _ := twoSources(t)
	env := Bindings{c.Source: customer("Ada")}
	age := Member(c, "Age")
	addr := Member(c, "Address")

	tests := []struct {
		name string
		n    Node
		want ir.IRValue
	}{
		{"as mismatch is null", As(Member(c, "Name"), "int"), ir.Null},
		{"as entity", As(c, "Customer"), customer("Ada")},
		{"convert null", Cast(addr, "string"), ir.Null},
		{"lifted add", NewBinary(OpAdd, age, addr), ir.Null},
		{"null comparison", NewBinary(OpLessThan, age, addr), ir.IRBool(false)},
		{"null equals null", Equal(addr, Null()), ir.IRBool(true)},
		{"arithmetic", NewBinary(OpSubtract, age, Const(ir.IRInt(1))), ir.IRInt(40)},
		{"negate", Negate(age), ir.IRInt(-41)},
		{"not", Not(Const(ir.IRBool(false))), ir.IRBool(true)},
		{"and short circuit", NewBinary(OpAnd, Const(ir.IRBool(false)), Member(c, "Nope")), ir.IRBool(false)},
		{"or", NewBinary(OpOr, Const(ir.IRBool(false)), Const(ir.IRBool(true))), ir.IRBool(true)},
		{"string concat", NewBinary(OpAdd, Member(c, "Name"), Const(ir.IRString("!"))), ir.IRString("Ada!")},
		{"upper", Call("upper", Member(c, "Name")), ir.IRString("ADA")},
		{"lower", Call("lower", Const(ir.IRString("ÉCOLE"))), ir.IRString("école")},
		{"len runes", Call("len", Const(ir.IRString("café"))), ir.IRInt(4)},
		{"concat skips null", Call("concat", Member(c, "Name"), addr, Const(ir.IRString("?"))), ir.IRString("Ada?")},
		{"string order", NewBinary(OpGreaterOrEqual, Const(ir.IRString("b")), Const(ir.IRString("a"))), ir.IRBool(true)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Eval(tt.n, env)
			require.NoError(t, err)
			assert.True(t, ir.Equal(tt.want, v), "got %#v", v)
		})
	}
}
