package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/shapeq/internal/ir"
)

// Precedence levels, lowest first.
const (
	precConditional = iota + 1
	precCoalesce
	precOr
	precAnd
	precEquality
	precRelational
	precAdditive
	precUnary
	precPostfix
)

var binarySymbols = map[BinaryOp]string{
	OpEqual:          "==",
	OpNotEqual:       "!=",
	OpAnd:            "&&",
	OpOr:             "||",
	OpAdd:            "+",
	OpSubtract:       "-",
	OpLessThan:       "<",
	OpLessOrEqual:    "<=",
	OpGreaterThan:    ">",
	OpGreaterOrEqual: ">=",
}

var binaryPrecedence = map[BinaryOp]int{
	OpEqual:          precEquality,
	OpNotEqual:       precEquality,
	OpAnd:            precAnd,
	OpOr:             precOr,
	OpAdd:            precAdditive,
	OpSubtract:       precAdditive,
	OpLessThan:       precRelational,
	OpLessOrEqual:    precRelational,
	OpGreaterThan:    precRelational,
	OpGreaterOrEqual: precRelational,
}

// Format renders n in a compact C-like syntax:
//
//	c != null ? c : "guest"
//	c ?? "guest"
//	c ?. c.Name
//	Property(c, "Name")
//	(int)c.Age
//	(c as Customer)
//
// A null-conditional renders as "guard ?. result". The output is meant for
// logs, CLI output and golden files; it is not parsed back.
func Format(n Node) string {
	var b strings.Builder
	format(&b, n, 0)
	return b.String()
}

func format(b *strings.Builder, n Node, minPrec int) {
	if n == nil {
		b.WriteString("<nil>")
		return
	}

	prec := precedence(n)
	if prec < minPrec {
		b.WriteByte('(')
		defer b.WriteByte(')')
	}

	switch n := n.(type) {
	case *Constant:
		b.WriteString(formatValue(n.Value))
	case *SourceRef:
		if n.Name != "" {
			b.WriteString(n.Name)
		} else {
			b.WriteString(n.Source.String())
		}
	case *MemberAccess:
		format(b, n.Receiver, precPostfix)
		b.WriteByte('.')
		b.WriteString(n.Name)
	case *PropertyAccess:
		format(b, n.Receiver, precPostfix)
		fmt.Fprintf(b, "[%s]", strconv.Quote(n.Name))
	case *MethodCall:
		b.WriteString(n.Method)
		b.WriteByte('(')
		for i, arg := range n.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			format(b, arg, 0)
		}
		b.WriteByte(')')
	case *Convert:
		if n.Mode == CastAs {
			b.WriteByte('(')
			format(b, n.Operand, precRelational+1)
			b.WriteString(" as ")
			b.WriteString(typeName(n.Type))
			b.WriteByte(')')
			return
		}
		fmt.Fprintf(b, "(%s)", typeName(n.Type))
		format(b, n.Operand, precUnary)
	case *Unary:
		if n.Op == OpNot {
			b.WriteByte('!')
		} else {
			b.WriteByte('-')
		}
		format(b, n.Operand, precUnary)
	case *Binary:
		p := binaryPrecedence[n.Op]
		format(b, n.Left, p)
		b.WriteByte(' ')
		b.WriteString(binarySymbols[n.Op])
		b.WriteByte(' ')
		format(b, n.Right, p+1)
	case *Conditional:
		format(b, n.Test, precCoalesce)
		b.WriteString(" ? ")
		format(b, n.IfTrue, precConditional)
		b.WriteString(" : ")
		format(b, n.IfFalse, precConditional)
	case *Coalesce:
		format(b, n.Left, precOr)
		b.WriteString(" ?? ")
		format(b, n.Right, precCoalesce)
	case *NullConditional:
		format(b, n.Guard, precCoalesce)
		b.WriteString(" ?. ")
		format(b, n.Result, precCoalesce)
	case *Opaque:
		fmt.Fprintf(b, "<%s>", n.Label)
		if len(n.Args) > 0 {
			b.WriteByte('(')
			for i, arg := range n.Args {
				if i > 0 {
					b.WriteString(", ")
				}
				format(b, arg, 0)
			}
			b.WriteByte(')')
		}
	}
}

func precedence(n Node) int {
	switch n := n.(type) {
	case *Conditional, *NullConditional:
		return precConditional
	case *Coalesce:
		return precCoalesce
	case *Binary:
		return binaryPrecedence[n.Op]
	case *Unary:
		return precUnary
	case *Convert:
		if n.Mode == CastAs {
			return precPostfix
		}
		return precUnary
	default:
		return precPostfix
	}
}

func typeName(t string) string {
	if t == "" {
		return "any"
	}
	return t
}

func formatValue(v ir.IRValue) string {
	switch val := v.(type) {
	case nil, ir.IRNull:
		return "null"
	case ir.IRString:
		return strconv.Quote(string(val))
	case ir.IRInt:
		return strconv.FormatInt(int64(val), 10)
	case ir.IRBool:
		return strconv.FormatBool(bool(val))
	default:
		data, err := ir.MarshalIRValue(v)
		if err != nil {
			return fmt.Sprintf("<%T>", v)
		}
		return string(data)
	}
}
