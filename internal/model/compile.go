package model

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
)

// Compile builds a Model from a CUE value holding an "entity" struct:
//
//	entity: Customer: {
//		table: "customers"          // optional, defaults to snake_case name
//		key: ["Id"]
//		properties: {
//			Id:    int
//			Name:  string
//			Email: string | null     // nullable
//			Vip:   {type: "bool", column: "is_vip"}
//		}
//	}
func Compile(v cue.Value) (*Model, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	entitiesVal := v.LookupPath(cue.ParsePath("entity"))
	if !entitiesVal.Exists() {
		return nil, &CompileError{Field: "entity", Message: "no entities defined", Pos: v.Pos()}
	}

	iter, err := entitiesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var entities []EntityType
	for iter.Next() {
		e, err := CompileEntity(iter.Value())
		if err != nil {
			return nil, err
		}
		entities = append(entities, *e)
	}

	m, err := New(entities...)
	if err != nil {
		return nil, &CompileError{Field: "entity", Message: err.Error(), Pos: entitiesVal.Pos()}
	}
	return m, nil
}

// CompileEntity parses one entity struct. The entity name is the struct's
// label, so v should be looked up by path, e.g. "entity.Customer".
func CompileEntity(v cue.Value) (*EntityType, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	e := &EntityType{}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		e.Name = labels[len(labels)-1].String()
	}
	if e.Name == "" {
		return nil, &CompileError{Field: "entity", Message: "entity must be a labeled struct", Pos: v.Pos()}
	}

	e.Table = snakeCase(e.Name)
	if tableVal := v.LookupPath(cue.ParsePath("table")); tableVal.Exists() {
		table, err := tableVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		e.Table = table
	}

	keyVal := v.LookupPath(cue.ParsePath("key"))
	if !keyVal.Exists() {
		return nil, &CompileError{Field: "key", Message: fmt.Sprintf("entity %s: key is required", e.Name), Pos: v.Pos()}
	}
	keyIter, err := keyVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for keyIter.Next() {
		k, err := keyIter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		e.Key = append(e.Key, k)
	}

	propsVal := v.LookupPath(cue.ParsePath("properties"))
	if !propsVal.Exists() {
		return nil, &CompileError{Field: "properties", Message: fmt.Sprintf("entity %s: properties are required", e.Name), Pos: v.Pos()}
	}
	propIter, err := propsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for propIter.Next() {
		p, err := compileProperty(propIter.Label(), propIter.Value())
		if err != nil {
			return nil, err
		}
		e.Properties = append(e.Properties, p)
	}

	if err := validateEntity(e); err != nil {
		return nil, &CompileError{Field: "entity", Message: err.Error(), Pos: v.Pos()}
	}
	return e, nil
}

// compileProperty accepts either a type (int, string | null) or a struct
// with type, column and nullable fields.
func compileProperty(name string, v cue.Value) (Property, error) {
	p := Property{Name: name, Column: snakeCase(name)}

	if v.IncompleteKind() != cue.StructKind {
		typ, nullable, err := extractTypeName(v)
		if err != nil {
			return p, err
		}
		p.Type, p.Nullable = typ, nullable
		return p, nil
	}

	typeVal := v.LookupPath(cue.ParsePath("type"))
	if !typeVal.Exists() {
		return p, &CompileError{Field: "type", Message: fmt.Sprintf("property %s: type is required", name), Pos: v.Pos()}
	}
	if s, err := typeVal.String(); err == nil {
		p.Type = s
	} else {
		typ, nullable, err := extractTypeName(typeVal)
		if err != nil {
			return p, err
		}
		p.Type, p.Nullable = typ, nullable
	}

	if colVal := v.LookupPath(cue.ParsePath("column")); colVal.Exists() {
		col, err := colVal.String()
		if err != nil {
			return p, formatCUEError(err)
		}
		p.Column = col
	}
	if nullVal := v.LookupPath(cue.ParsePath("nullable")); nullVal.Exists() {
		nullable, err := nullVal.Bool()
		if err != nil {
			return p, formatCUEError(err)
		}
		p.Nullable = p.Nullable || nullable
	}
	return p, nil
}

// extractTypeName converts a CUE type to a property type. A disjunction
// with null marks the property nullable. Floats are forbidden.
func extractTypeName(v cue.Value) (string, bool, error) {
	kind := v.IncompleteKind()
	nullable := kind&cue.NullKind != 0
	kind &^= cue.NullKind

	switch kind {
	case cue.StringKind:
		return TypeString, nullable, nil
	case cue.IntKind:
		return TypeInt, nullable, nil
	case cue.BoolKind:
		return TypeBool, nullable, nil
	case cue.FloatKind, cue.NumberKind:
		return "", false, &CompileError{
			Field:   "type",
			Message: "float types are forbidden - use int instead",
			Pos:     v.Pos(),
		}
	default:
		return "", false, &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type kind: %v", kind),
			Pos:     v.Pos(),
		}
	}
}

// LoadDir loads every CUE file in dir as one instance and compiles it.
func LoadDir(dir string) (*Model, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("model directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("model directory: not a directory: %s", dir)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return Compile(value)
}

// CompileString compiles CUE source text. filename is used in positions.
func CompileString(src, filename string) (*Model, error) {
	v := cuecontext.New().CompileString(src, cue.Filename(filename))
	return Compile(v)
}

// CompileError is a model error with its CUE source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError keeps the first CUE error and its position.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}

// snakeCase converts CustomerOrder to customer_order.
func snakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
