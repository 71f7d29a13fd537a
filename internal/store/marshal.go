package store

import (
	"fmt"

	"github.com/roach88/quarry/internal/catalog"
	"github.com/roach88/quarry/internal/ir"
)

// toSQLite converts a coerced value to a driver value.
func toSQLite(v ir.Value) any {
	switch x := v.(type) {
	case ir.Null:
		return nil
	case ir.Bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case ir.Int:
		return int64(x)
	case ir.Float:
		return float64(x)
	case ir.Decimal:
		return x.String()
	case ir.String:
		return string(x)
	}
	return v.String()
}

// fromSQLite converts a scanned driver value to a value of type t.
func fromSQLite(t *ir.Type, raw any) (ir.Value, error) {
	var v ir.Value
	switch x := raw.(type) {
	case nil:
		v = ir.Null{}
	case int64:
		if t.Name() == ir.TypeBoolean {
			return ir.Bool(x != 0), nil
		}
		v = ir.Int(x)
	case float64:
		v = ir.Float(x)
	case bool:
		v = ir.Bool(x)
	case string:
		v = ir.String(x)
	case []byte:
		v = ir.String(string(x))
	default:
		return nil, fmt.Errorf("unsupported SQLite value %T", raw)
	}
	return catalog.Coerce(t, v)
}
