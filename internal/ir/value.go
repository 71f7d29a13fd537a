package ir

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"
)

// Value is a sealed interface representing a single SQL datum.
// Only Null, Bool, Int, Float, Decimal, and String implement this.
//
// Int and Decimal are exact; Float is approximate. Keeping the distinction
// on the value itself lets literals round-trip without losing digits.
type Value interface {
	value() // Sealed - only these types implement it
	String() string
}

// Null represents SQL NULL.
type Null struct{}

func (Null) value() {}

func (Null) String() string { return "NULL" }

// Bool represents a BOOLEAN value.
type Bool bool

func (Bool) value() {}

func (b Bool) String() string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

// Int represents an exact integral value (TINYINT through BIGINT).
type Int int64

func (Int) value() {}

func (i Int) String() string { return strconv.FormatInt(int64(i), 10) }

// Float represents an approximate numeric value (REAL, DOUBLE).
type Float float64

func (Float) value() {}

func (f Float) String() string { return strconv.FormatFloat(float64(f), 'g', -1, 64) }

// String represents a character value (CHAR, VARCHAR).
type String string

func (String) value() {}

func (s String) String() string { return string(s) }

// Decimal represents an exact decimal value with arbitrary precision.
// The wrapped apd.Decimal is never mutated after construction.
type Decimal struct {
	d *apd.Decimal
}

func (Decimal) value() {}

// NewDecimal wraps a copy of d.
func NewDecimal(d *apd.Decimal) Decimal {
	c := new(apd.Decimal)
	c.Set(d)
	return Decimal{d: c}
}

// ParseDecimal parses an exact decimal literal such as "12345678901234.5".
func ParseDecimal(s string) (Decimal, error) {
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return Decimal{}, fmt.Errorf("parse decimal %q: %w", s, err)
	}
	return Decimal{d: d}, nil
}

// MustParseDecimal is like ParseDecimal but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustParseDecimal(s string) Decimal {
	d, err := ParseDecimal(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Apd returns a copy of the underlying decimal.
func (d Decimal) Apd() *apd.Decimal {
	c := new(apd.Decimal)
	if d.d != nil {
		c.Set(d.d)
	}
	return c
}

func (d Decimal) String() string {
	if d.d == nil {
		return "0"
	}
	return d.d.Text('f')
}

// IsNull reports whether v is nil or Null.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// FromGo converts a native Go value to a Value.
// Supports nil, bool, all integer kinds, float32/64, string, *apd.Decimal,
// and values that are already a Value.
func FromGo(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int8:
		return Int(val), nil
	case int16:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint8:
		return Int(val), nil
	case uint16:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case float32:
		return Float(val), nil
	case float64:
		return Float(val), nil
	case string:
		return String(val), nil
	case []byte:
		return String(val), nil
	case *apd.Decimal:
		if val == nil {
			return Null{}, nil
		}
		return NewDecimal(val), nil
	case apd.Decimal:
		return NewDecimal(&val), nil
	case time.Time:
		// TIMESTAMP values travel as ISO-8601 text so they order correctly
		return String(val.UTC().Format(time.RFC3339Nano)), nil
	default:
		return nil, fmt.Errorf("unsupported Go value type: %T", v)
	}
}

// isNumeric reports whether v is Int, Float, or Decimal.
func isNumeric(v Value) bool {
	switch v.(type) {
	case Int, Float, Decimal:
		return true
	}
	return false
}

// toApd converts a numeric value to an exact decimal.
func toApd(v Value) (*apd.Decimal, error) {
	switch val := v.(type) {
	case Int:
		return apd.New(int64(val), 0), nil
	case Decimal:
		return val.Apd(), nil
	case Float:
		if math.IsNaN(float64(val)) || math.IsInf(float64(val), 0) {
			return nil, fmt.Errorf("non-finite float %v", val)
		}
		d := new(apd.Decimal)
		if _, err := d.SetFloat64(float64(val)); err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("not numeric: %T", v)
	}
}

// ToFloat64 converts a numeric value to float64.
func ToFloat64(v Value) (float64, error) {
	switch val := v.(type) {
	case Int:
		return float64(val), nil
	case Float:
		return float64(val), nil
	case Decimal:
		return val.Apd().Float64()
	default:
		return 0, fmt.Errorf("not numeric: %T", v)
	}
}

// Compare orders two non-null values.
// Numbers compare by value across Int, Float, and Decimal; strings compare
// bytewise; FALSE sorts before TRUE.
// Returns ok=false when either side is NULL or the kinds are incomparable.
func Compare(a, b Value) (cmp int, ok bool) {
	if IsNull(a) || IsNull(b) {
		return 0, false
	}

	if isNumeric(a) && isNumeric(b) {
		if ai, aok := a.(Int); aok {
			if bi, bok := b.(Int); bok {
				return cmpOrdered(ai, bi), true
			}
		}
		_, af := a.(Float)
		_, bf := b.(Float)
		if af || bf {
			x, _ := ToFloat64(a)
			y, _ := ToFloat64(b)
			return cmpOrdered(x, y), true
		}
		x, err := toApd(a)
		if err != nil {
			return 0, false
		}
		y, err := toApd(b)
		if err != nil {
			return 0, false
		}
		return x.Cmp(y), true
	}

	switch av := a.(type) {
	case String:
		if bv, bok := b.(String); bok {
			return strings.Compare(string(av), string(bv)), true
		}
	case Bool:
		if bv, bok := b.(Bool); bok {
			switch {
			case av == bv:
				return 0, true
			case !bool(av):
				return -1, true
			default:
				return 1, true
			}
		}
	}
	return 0, false
}

func cmpOrdered[T Int | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Key returns a string that is equal for two values exactly when they are
// equal under SQL grouping semantics (NULLs group together, 1 = 1.0).
// Used as a hash key by aggregation, set operations, and equi-joins.
func Key(v Value) string {
	if IsNull(v) {
		return "z:"
	}
	switch val := v.(type) {
	case Bool:
		return "b:" + val.String()
	case String:
		return "s:" + string(val)
	case Int:
		return "n:" + val.String()
	case Float, Decimal:
		d, err := toApd(val)
		if err != nil {
			return "f:" + val.String()
		}
		d.Reduce(d)
		return "n:" + d.Text('f')
	default:
		return fmt.Sprintf("?:%v", v)
	}
}

// RowKey concatenates the keys of every value in the row.
func RowKey(row Row) string {
	var b strings.Builder
	for i, v := range row {
		if i > 0 {
			b.WriteByte(0)
		}
		b.WriteString(Key(v))
	}
	return b.String()
}
