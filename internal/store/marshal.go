package store

import (
	"fmt"

	"github.com/roach88/shapeq/internal/ir"
	"github.com/roach88/shapeq/internal/model"
)

// fromDriver converts a value scanned from go-sqlite3 into an IRValue.
func fromDriver(v any) (ir.IRValue, error) {
	switch val := v.(type) {
	case nil:
		return ir.Null, nil
	case int64:
		return ir.IRInt(val), nil
	case string:
		return ir.IRString(val), nil
	case []byte:
		return ir.IRString(string(val)), nil
	case bool:
		return ir.IRBool(val), nil
	case float64:
		return nil, fmt.Errorf("floats are forbidden: %v", val)
	default:
		return nil, fmt.Errorf("unsupported column value type %T", v)
	}
}

// toColumn converts a property value into a driver argument, checking it
// against the property's type. Booleans are stored as 0/1.
func toColumn(p model.Property, v ir.IRValue) (any, error) {
	if ir.IsNull(v) {
		if !p.Nullable {
			return nil, fmt.Errorf("property %s is not nullable", p.Name)
		}
		return nil, nil
	}

	switch p.Type {
	case model.TypeString:
		if s, ok := v.(ir.IRString); ok {
			return string(s), nil
		}
	case model.TypeInt:
		if i, ok := v.(ir.IRInt); ok {
			return int64(i), nil
		}
	case model.TypeBool:
		if b, ok := v.(ir.IRBool); ok {
			if b {
				return int64(1), nil
			}
			return int64(0), nil
		}
	}
	return nil, fmt.Errorf("property %s: expected %s, got %s", p.Name, p.Type, ir.KindName(v))
}
