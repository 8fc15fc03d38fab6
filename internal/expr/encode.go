package expr

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/shapeq/internal/ir"
	"github.com/roach88/shapeq/internal/source"
)

// Encoding
//
// Trees are encoded as single-key objects, the key naming the node kind:
//
//	{const: "guest"}
//	{ref: c}
//	{member: {of: {ref: c}, name: Name}}
//	{property: {of: {ref: c}, name: Name}}
//	{call: {method: Property, args: [{ref: c}, {const: Name}]}}
//	{convert: {of: ..., type: int}}   {as: {of: ..., type: Customer}}
//	{not: ...}   {negate: ...}
//	{eq: [l, r]}  (likewise ne, and, or, add, sub, lt, le, gt, ge)
//	{cond: {test: ..., then: ..., else: ...}}
//	{coalesce: [l, r]}
//	{nullcond: {guard: ..., root: ..., result: ...}}
//	{opaque: {label: ..., args: [...]}}
//
// Decode additionally accepts two shorthands: a bare scalar is a constant,
// and {path: c.Address.City} is a member-access chain rooted at source c.
//
// Source references are encoded by name. Names must therefore be unique
// among the sources a tree uses; Scope enforces that on decode.

// Encode returns the canonical encoding of n.
func Encode(n Node) ir.IRValue {
	return encode(n, func(r *SourceRef) string { return r.Name })
}

// EncodeSources is Encode with each source reference written as the name
// names gives its handle, ignoring the reference's display name. A handle
// missing from names is written by its handle.
func EncodeSources(n Node, names map[source.Handle]string) ir.IRValue {
	return encode(n, func(r *SourceRef) string {
		if name, ok := names[r.Source]; ok {
			return name
		}
		return r.Source.String()
	})
}

func encode(n Node, refName func(*SourceRef) string) ir.IRValue {
	switch n := n.(type) {
	case *Constant:
		v := n.Value
		if v == nil {
			v = ir.Null
		}
		return single("const", v)
	case *SourceRef:
		return single("ref", ir.IRString(refName(n)))
	case *MemberAccess:
		return single("member", ir.IRObject{"of": encode(n.Receiver, refName), "name": ir.IRString(n.Name)})
	case *PropertyAccess:
		return single("property", ir.IRObject{"of": encode(n.Receiver, refName), "name": ir.IRString(n.Name)})
	case *MethodCall:
		return single("call", ir.IRObject{"method": ir.IRString(n.Method), "args": encodeAll(n.Args, refName)})
	case *Convert:
		return single(string(n.Mode), ir.IRObject{"of": encode(n.Operand, refName), "type": ir.IRString(n.Type)})
	case *Unary:
		return single(string(n.Op), encode(n.Operand, refName))
	case *Binary:
		return single(string(n.Op), ir.IRArray{encode(n.Left, refName), encode(n.Right, refName)})
	case *Conditional:
		return single("cond", ir.IRObject{
			"test": encode(n.Test, refName),
			"then": encode(n.IfTrue, refName),
			"else": encode(n.IfFalse, refName),
		})
	case *Coalesce:
		return single("coalesce", ir.IRArray{encode(n.Left, refName), encode(n.Right, refName)})
	case *NullConditional:
		return single("nullcond", ir.IRObject{
			"guard":  encode(n.Guard, refName),
			"root":   encode(n.TestRoot, refName),
			"result": encode(n.Result, refName),
		})
	case *Opaque:
		return single("opaque", ir.IRObject{"label": ir.IRString(n.Label), "args": encodeAll(n.Args, refName)})
	default:
		panic(fmt.Sprintf("expr: unknown node type %T", n))
	}
}

func single(key string, v ir.IRValue) ir.IRObject {
	return ir.IRObject{key: v}
}

func encodeAll(nodes []Node, refName func(*SourceRef) string) ir.IRArray {
	out := make(ir.IRArray, len(nodes))
	for i, n := range nodes {
		out[i] = encode(n, refName)
	}
	return out
}

// Scope maps source names to handles for decoding.
type Scope map[string]source.Handle

// SourceDecl declares one logical source in a document.
type SourceDecl struct {
	Name   string `yaml:"name"`
	Entity string `yaml:"entity"`
	Clause string `yaml:"clause,omitempty"`
}

// Document is a YAML expression document:
//
//	sources:
//	  - {name: c, entity: Customer}
//	expr:
//	  cond: {test: {eq: [{ref: c}, null]}, then: null, else: {path: c.Name}}
type Document struct {
	Sources []SourceDecl `yaml:"sources"`
	Expr    any          `yaml:"expr"`
}

// DeclareSources declares every source of decls in reg and returns the
// resulting scope. Clause defaults to "from".
func DeclareSources(reg *source.Registry, decls []SourceDecl) (Scope, error) {
	scope := make(Scope, len(decls))
	for i, d := range decls {
		if d.Name == "" {
			return nil, fmt.Errorf("sources[%d]: name is required", i)
		}
		if _, dup := scope[d.Name]; dup {
			return nil, fmt.Errorf("sources[%d]: duplicate source name %q", i, d.Name)
		}
		clause := source.Clause(d.Clause)
		switch clause {
		case "":
			clause = source.ClauseFrom
		case source.ClauseFrom, source.ClauseJoin, source.ClauseLeftJoin:
		default:
			return nil, fmt.Errorf("sources[%d]: unknown clause %q", i, d.Clause)
		}
		scope[d.Name] = reg.Declare(d.Name, d.Entity, clause)
	}
	return scope, nil
}

// ParseDocument decodes a YAML document, declaring its sources in reg.
func ParseDocument(data []byte, reg *source.Registry) (Node, Scope, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("parse expression document: %w", err)
	}
	scope, err := DeclareSources(reg, doc.Sources)
	if err != nil {
		return nil, nil, err
	}
	if doc.Expr == nil {
		return nil, nil, fmt.Errorf("expression document has no expr")
	}
	n, err := Decode(doc.Expr, scope)
	if err != nil {
		return nil, nil, err
	}
	return n, scope, nil
}

// Decode builds a tree from a decoded YAML/JSON value (or an IRValue
// produced by Encode), resolving source names through scope.
func Decode(v any, scope Scope) (Node, error) {
	if obj, ok := v.(ir.IRObject); ok {
		v = irToGo(obj)
	}

	m, ok := v.(map[string]any)
	if !ok {
		if _, isList := v.([]any); isList {
			return nil, fmt.Errorf("expression must be a scalar or a single-key object, got a list")
		}
		val, err := ir.FromGo(v)
		if err != nil {
			return nil, fmt.Errorf("constant: %w", err)
		}
		return Const(val), nil
	}
	if len(m) != 1 {
		return nil, fmt.Errorf("expression object must have exactly one key, got %s", keyList(m))
	}

	var key string
	for k := range m {
		key = k
	}
	n, err := decodeKind(key, m[key], scope)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func decodeKind(key string, body any, scope Scope) (Node, error) {
	switch key {
	case "const":
		val, err := ir.FromGo(body)
		if err != nil {
			return nil, err
		}
		return Const(val), nil

	case "ref":
		name, ok := body.(string)
		if !ok {
			return nil, fmt.Errorf("source name must be a string")
		}
		return resolve(name, scope)

	case "path":
		path, ok := body.(string)
		if !ok || path == "" {
			return nil, fmt.Errorf("path must be a non-empty string")
		}
		parts := strings.Split(path, ".")
		root, err := resolve(parts[0], scope)
		if err != nil {
			return nil, err
		}
		var n Node = root
		for _, p := range parts[1:] {
			if p == "" {
				return nil, fmt.Errorf("empty segment in path %q", path)
			}
			n = Member(n, p)
		}
		return n, nil

	case "member", "property":
		f, err := fields(body, "of", "name")
		if err != nil {
			return nil, err
		}
		recv, err := Decode(f["of"], scope)
		if err != nil {
			return nil, err
		}
		name, ok := f["name"].(string)
		if !ok {
			return nil, fmt.Errorf("name must be a string")
		}
		if key == "member" {
			return Member(recv, name), nil
		}
		return Property(recv, name), nil

	case "call":
		f, err := fields(body, "method", "args")
		if err != nil {
			return nil, err
		}
		method, ok := f["method"].(string)
		if !ok || method == "" {
			return nil, fmt.Errorf("method must be a non-empty string")
		}
		args, err := decodeList(f["args"], -1, scope)
		if err != nil {
			return nil, err
		}
		return Call(method, args...), nil

	case string(CastConvert), string(CastAs):
		f, err := fields(body, "of", "type")
		if err != nil {
			return nil, err
		}
		operand, err := Decode(f["of"], scope)
		if err != nil {
			return nil, err
		}
		typ := ""
		if f["type"] != nil {
			s, ok := f["type"].(string)
			if !ok {
				return nil, fmt.Errorf("type must be a string")
			}
			typ = s
		}
		return &Convert{Operand: operand, Type: typ, Mode: CastMode(key)}, nil

	case string(OpNot), string(OpNegate):
		operand, err := Decode(body, scope)
		if err != nil {
			return nil, err
		}
		return &Unary{Op: UnaryOp(key), Operand: operand}, nil

	case "cond":
		f, err := fields(body, "test", "then", "else")
		if err != nil {
			return nil, err
		}
		kids, err := decodeFields(f, scope, "test", "then", "else")
		if err != nil {
			return nil, err
		}
		return Cond(kids[0], kids[1], kids[2]), nil

	case "coalesce":
		kids, err := decodeList(body, 2, scope)
		if err != nil {
			return nil, err
		}
		return NewCoalesce(kids[0], kids[1]), nil

	case "nullcond":
		f, err := fields(body, "guard", "root", "result")
		if err != nil {
			return nil, err
		}
		if _, ok := f["root"]; !ok {
			f["root"] = f["guard"]
		}
		kids, err := decodeFields(f, scope, "guard", "root", "result")
		if err != nil {
			return nil, err
		}
		return NewNullConditional(kids[0], kids[1], kids[2]), nil

	case "opaque":
		f, err := fields(body, "label", "args")
		if err != nil {
			return nil, err
		}
		label, ok := f["label"].(string)
		if !ok {
			return nil, fmt.Errorf("label must be a string")
		}
		args, err := decodeList(f["args"], -1, scope)
		if err != nil {
			return nil, err
		}
		return NewOpaque(label, args...), nil
	}

	for _, op := range binaryOps {
		if key == string(op) {
			kids, err := decodeList(body, 2, scope)
			if err != nil {
				return nil, err
			}
			return NewBinary(op, kids[0], kids[1]), nil
		}
	}
	return nil, fmt.Errorf("unknown expression kind")
}

func resolve(name string, scope Scope) (*SourceRef, error) {
	h, ok := scope[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnboundSource, name)
	}
	return Ref(h, name), nil
}

// fields checks body is an object whose keys are all in allowed.
func fields(body any, allowed ...string) (map[string]any, error) {
	m, ok := body.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected an object with keys %s", strings.Join(allowed, ", "))
	}
	for k := range m {
		known := false
		for _, a := range allowed {
			if k == a {
				known = true
				break
			}
		}
		if !known {
			return nil, fmt.Errorf("unexpected key %q", k)
		}
	}
	return m, nil
}

func decodeFields(f map[string]any, scope Scope, keys ...string) ([]Node, error) {
	out := make([]Node, len(keys))
	for i, k := range keys {
		body, ok := f[k]
		if !ok {
			return nil, fmt.Errorf("missing key %q", k)
		}
		n, err := Decode(body, scope)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[i] = n
	}
	return out, nil
}

// decodeList decodes a list of expressions. want < 0 accepts any length;
// a missing list decodes as empty.
func decodeList(body any, want int, scope Scope) ([]Node, error) {
	var items []any
	switch b := body.(type) {
	case nil:
	case []any:
		items = b
	default:
		return nil, fmt.Errorf("expected a list")
	}
	if want >= 0 && len(items) != want {
		return nil, fmt.Errorf("expected %d operands, got %d", want, len(items))
	}
	out := make([]Node, len(items))
	for i, item := range items {
		n, err := Decode(item, scope)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = n
	}
	return out, nil
}

func keyList(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "[" + strings.Join(keys, ", ") + "]"
}

// irToGo converts an encoded tree back to plain Go values so Decode handles
// both sources the same way.
func irToGo(v ir.IRValue) any {
	switch val := v.(type) {
	case nil, ir.IRNull:
		return nil
	case ir.IRString:
		return string(val)
	case ir.IRInt:
		return int64(val)
	case ir.IRBool:
		return bool(val)
	case ir.IRArray:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = irToGo(e)
		}
		return out
	case ir.IRObject:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = irToGo(e)
		}
		return out
	}
	return nil
}
