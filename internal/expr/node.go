package expr

import (
	"github.com/roach88/shapeq/internal/ir"
	"github.com/roach88/shapeq/internal/source"
)

// Node is an expression tree node.
//
// This is a sealed interface - only types in this package implement it.
type Node interface {
	exprNode() // Marker method - seals interface to this package
}

// PropertyMethod is the method name of the property-lookup-by-name idiom:
//
//	Property(receiver, "Name")
//
// which reads the property "Name" of receiver without a compiled member.
const PropertyMethod = "Property"

// Constant is a literal value. A Constant holding IRNull is the null constant.
type Constant struct {
	Value ir.IRValue
}

func (*Constant) exprNode() {}

// SourceRef references a logical source (range variable) of the query.
type SourceRef struct {
	Source source.Handle
	Name   string // Display name only; identity is Source
}

func (*SourceRef) exprNode() {}

// MemberAccess reads a compiled member: receiver.Name
type MemberAccess struct {
	Receiver Node
	Name     string
}

func (*MemberAccess) exprNode() {}

// PropertyAccess is an indexer-style lookup with a constant name:
// receiver["Name"]
type PropertyAccess struct {
	Receiver Node
	Name     string
}

func (*PropertyAccess) exprNode() {}

// MethodCall invokes a named method. Args[0] is the receiver for instance
// methods and for the Property idiom.
type MethodCall struct {
	Method string
	Args   []Node
}

func (*MethodCall) exprNode() {}

// CastMode distinguishes conversions from type tests.
type CastMode string

const (
	// CastConvert is an implicit or explicit conversion: (T)x
	// A failed conversion is an evaluation error.
	CastConvert CastMode = "convert"

	// CastAs is an as-style type test: x as T
	// A failed test yields null.
	CastAs CastMode = "as"
)

// Convert is a type cast of its operand.
type Convert struct {
	Operand Node
	Type    string // Target type name; "" converts to any
	Mode    CastMode
}

func (*Convert) exprNode() {}

// UnaryOp identifies a non-cast unary operator.
type UnaryOp string

const (
	OpNot    UnaryOp = "not"
	OpNegate UnaryOp = "negate"
)

// Unary applies a non-cast unary operator.
type Unary struct {
	Op      UnaryOp
	Operand Node
}

func (*Unary) exprNode() {}

// BinaryOp identifies a binary operator.
type BinaryOp string

const (
	OpEqual          BinaryOp = "eq"
	OpNotEqual       BinaryOp = "ne"
	OpAnd            BinaryOp = "and"
	OpOr             BinaryOp = "or"
	OpAdd            BinaryOp = "add"
	OpSubtract       BinaryOp = "sub"
	OpLessThan       BinaryOp = "lt"
	OpLessOrEqual    BinaryOp = "le"
	OpGreaterThan    BinaryOp = "gt"
	OpGreaterOrEqual BinaryOp = "ge"
)

// binaryOps lists every operator, in the order used by the decoder.
var binaryOps = []BinaryOp{
	OpEqual, OpNotEqual, OpAnd, OpOr, OpAdd, OpSubtract,
	OpLessThan, OpLessOrEqual, OpGreaterThan, OpGreaterOrEqual,
}

// Binary applies a binary operator.
type Binary struct {
	Op    BinaryOp
	Left  Node
	Right Node
}

func (*Binary) exprNode() {}

// Conditional is test ? IfTrue : IfFalse
type Conditional struct {
	Test    Node
	IfTrue  Node
	IfFalse Node
}

func (*Conditional) exprNode() {}

// Coalesce is Left ?? Right: Left when non-null, otherwise Right.
// Right is not evaluated when Left is non-null.
type Coalesce struct {
	Left  Node
	Right Node
}

func (*Coalesce) exprNode() {}

// NullConditional evaluates Guard; when it is null the whole node is null
// and Result is never evaluated, otherwise the node is Result.
//
// TestRoot records the expression whose nullness was originally tested.
// The optimizer sets it to the guard itself.
type NullConditional struct {
	Guard    Node
	TestRoot Node
	Result   Node
}

func (*NullConditional) exprNode() {}

// Opaque stands for any node kind this package does not model (lambdas,
// subqueries, provider-specific calls). It cannot be evaluated and every
// rewrite rule treats it as an unrecognized shape.
type Opaque struct {
	Label string
	Args  []Node
}

func (*Opaque) exprNode() {}

// Null returns a new null constant.
func Null() *Constant {
	return &Constant{Value: ir.IRNull{}}
}

// Const returns a constant for a value. A nil value is the null constant.
func Const(v ir.IRValue) *Constant {
	if v == nil {
		v = ir.IRNull{}
	}
	return &Constant{Value: v}
}

// Ref returns a reference to a source.
func Ref(h source.Handle, name string) *SourceRef {
	return &SourceRef{Source: h, Name: name}
}

// Member returns receiver.name
func Member(receiver Node, name string) *MemberAccess {
	return &MemberAccess{Receiver: receiver, Name: name}
}

// Property returns receiver["name"]
func Property(receiver Node, name string) *PropertyAccess {
	return &PropertyAccess{Receiver: receiver, Name: name}
}

// PropertyCall returns Property(receiver, "name") as a method call.
func PropertyCall(receiver Node, name string) *MethodCall {
	return &MethodCall{Method: PropertyMethod, Args: []Node{receiver, Const(ir.IRString(name))}}
}

// Call returns method(args...).
func Call(method string, args ...Node) *MethodCall {
	return &MethodCall{Method: method, Args: args}
}

// Cast returns (typ)operand.
func Cast(operand Node, typ string) *Convert {
	return &Convert{Operand: operand, Type: typ, Mode: CastConvert}
}

// As returns operand as typ.
func As(operand Node, typ string) *Convert {
	return &Convert{Operand: operand, Type: typ, Mode: CastAs}
}

// Not returns !operand.
func Not(operand Node) *Unary {
	return &Unary{Op: OpNot, Operand: operand}
}

// Negate returns -operand.
func Negate(operand Node) *Unary {
	return &Unary{Op: OpNegate, Operand: operand}
}

// NewBinary returns left op right.
func NewBinary(op BinaryOp, left, right Node) *Binary {
	return &Binary{Op: op, Left: left, Right: right}
}

// Equal returns left == right.
func Equal(left, right Node) *Binary {
	return NewBinary(OpEqual, left, right)
}

// NotEqual returns left != right.
func NotEqual(left, right Node) *Binary {
	return NewBinary(OpNotEqual, left, right)
}

// Cond returns test ? ifTrue : ifFalse.
func Cond(test, ifTrue, ifFalse Node) *Conditional {
	return &Conditional{Test: test, IfTrue: ifTrue, IfFalse: ifFalse}
}

// NewCoalesce returns left ?? right.
func NewCoalesce(left, right Node) *Coalesce {
	return &Coalesce{Left: left, Right: right}
}

// NewNullConditional returns a null-conditional node.
func NewNullConditional(guard, testRoot, result Node) *NullConditional {
	return &NullConditional{Guard: guard, TestRoot: testRoot, Result: result}
}

// NewOpaque returns an opaque node.
func NewOpaque(label string, args ...Node) *Opaque {
	return &Opaque{Label: label, Args: args}
}

// IsNullConstant reports whether n is the null constant.
func IsNullConstant(n Node) bool {
	c, ok := n.(*Constant)
	return ok && ir.IsNull(c.Value)
}

// StripConvert removes any number of cast wrappers around n.
func StripConvert(n Node) Node {
	for {
		c, ok := n.(*Convert)
		if !ok {
			return n
		}
		n = c.Operand
	}
}

// PropertyLookup recognizes both spellings of the property-lookup idiom,
// receiver["Name"] and Property(receiver, "Name"), and returns the receiver
// and the constant property name.
func PropertyLookup(n Node) (Node, string, bool) {
	switch n := n.(type) {
	case *PropertyAccess:
		return n.Receiver, n.Name, true
	case *MethodCall:
		if n.Method != PropertyMethod || len(n.Args) != 2 {
			return nil, "", false
		}
		c, ok := n.Args[1].(*Constant)
		if !ok {
			return nil, "", false
		}
		name, ok := c.Value.(ir.IRString)
		if !ok {
			return nil, "", false
		}
		return n.Args[0], string(name), true
	default:
		return nil, "", false
	}
}
