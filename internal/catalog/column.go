package catalog

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"

	"github.com/roach88/quarry/internal/ir"
)

// ColumnDef declares one column of a table defined outside Go code
// (CUE catalogs, YAML scenarios, SQLite introspection).
type ColumnDef struct {
	Name     string `yaml:"name" json:"name"`
	Type     string `yaml:"type" json:"type"`
	Nullable bool   `yaml:"nullable" json:"nullable"`
}

var columnTypePattern = regexp.MustCompile(`^\s*([A-Za-z][A-Za-z ]*?)\s*(?:\(\s*(\d+)\s*(?:,\s*(\d+)\s*)?\))?\s*$`)

// ParseColumnType parses declarations such as "INTEGER", "VARCHAR(20)" and
// "DECIMAL(10, 2)".
func ParseColumnType(tf *ir.TypeFactory, decl string, nullable bool) (*ir.Type, error) {
	m := columnTypePattern.FindStringSubmatch(decl)
	if m == nil {
		return nil, fmt.Errorf("malformed column type %q", decl)
	}
	name, ok := ir.LookupTypeName(m[1])
	if !ok {
		return nil, fmt.Errorf("unknown column type %q", m[1])
	}

	var t *ir.Type
	switch {
	case m[3] != "":
		if !name.AllowsScale() {
			return nil, fmt.Errorf("column type %s does not take a scale", name)
		}
		p, _ := strconv.Atoi(m[2])
		s, _ := strconv.Atoi(m[3])
		if s > p {
			return nil, fmt.Errorf("scale %d exceeds precision %d", s, p)
		}
		t = tf.CreateSQLTypeWithScale(name, p, s)
	case m[2] != "":
		if !name.AllowsPrecision() {
			return nil, fmt.Errorf("column type %s does not take a precision", name)
		}
		p, _ := strconv.Atoi(m[2])
		if name == ir.TypeDecimal {
			t = tf.CreateSQLTypeWithScale(name, p, 0)
		} else {
			t = tf.CreateSQLTypeWithPrecision(name, p)
		}
	case name == ir.TypeDecimal:
		t = tf.CreateSQLTypeWithScale(name, ir.DefaultDecimalPrecision, ir.DefaultDecimalScale)
	default:
		t = tf.CreateSQLType(name)
	}
	return tf.WithNullability(t, nullable), nil
}

// RowTypeOf builds a struct type from column definitions.
func RowTypeOf(tf *ir.TypeFactory, cols []ColumnDef) (*ir.Type, error) {
	names := make([]string, len(cols))
	types := make([]*ir.Type, len(cols))
	seen := make(map[string]bool, len(cols))
	for i, c := range cols {
		if c.Name == "" {
			return nil, fmt.Errorf("column %d: name is required", i)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		seen[c.Name] = true

		t, err := ParseColumnType(tf, c.Type, c.Nullable)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c.Name, err)
		}
		names[i] = c.Name
		types[i] = t
	}
	return tf.CreateStructType(names, types), nil
}

// ColumnsOf is the inverse of RowTypeOf: it spells each field's type the
// way ParseColumnType reads it.
func ColumnsOf(rowType *ir.Type) []ColumnDef {
	fields := rowType.Fields()
	cols := make([]ColumnDef, len(fields))
	for i, f := range fields {
		cols[i] = ColumnDef{
			Name:     f.Name,
			Type:     strings.TrimSuffix(f.Type.Digest(), " NOT NULL"),
			Nullable: f.Type.IsNullable(),
		}
	}
	return cols
}

var coerceContext = apd.BaseContext.WithPrecision(ir.MaxDecimalPrecision)

// Coerce converts a loosely typed value into the representation of t.
// Integral numbers become Int, DECIMAL values are quantized to the declared
// scale, and text columns only accept strings.
func Coerce(t *ir.Type, v ir.Value) (ir.Value, error) {
	if ir.IsNull(v) {
		if !t.IsNullable() {
			return nil, fmt.Errorf("NULL in NOT NULL %s column", t.Name())
		}
		return ir.Null{}, nil
	}

	switch t.Name() {
	case ir.TypeAny:
		return v, nil

	case ir.TypeBoolean:
		if b, ok := v.(ir.Bool); ok {
			return b, nil
		}

	case ir.TypeTinyInt, ir.TypeSmallInt, ir.TypeInteger, ir.TypeBigInt:
		switch n := v.(type) {
		case ir.Int:
			return n, nil
		case ir.Decimal, ir.Float:
			d, _, err := apd.NewFromString(n.String())
			if err != nil {
				return nil, err
			}
			i, err := d.Int64()
			if err != nil {
				return nil, fmt.Errorf("%s is not integral", n)
			}
			return ir.Int(i), nil
		}

	case ir.TypeDecimal:
		var d *apd.Decimal
		switch n := v.(type) {
		case ir.Int:
			d = apd.New(int64(n), 0)
		case ir.Decimal:
			d = n.Apd()
		case ir.Float, ir.String:
			parsed, _, err := apd.NewFromString(n.String())
			if err != nil {
				return nil, fmt.Errorf("%q is not a decimal", n.String())
			}
			d = parsed
		}
		if d != nil {
			if t.Scale() != ir.Unspecified {
				if _, err := coerceContext.Quantize(d, d, int32(-t.Scale())); err != nil {
					return nil, fmt.Errorf("quantize %s: %w", v, err)
				}
			}
			return ir.NewDecimal(d), nil
		}

	case ir.TypeReal, ir.TypeDouble:
		switch v.(type) {
		case ir.Int, ir.Decimal, ir.Float:
			f, err := ir.ToFloat64(v)
			if err != nil {
				return nil, err
			}
			return ir.Float(f), nil
		}

	case ir.TypeChar, ir.TypeVarchar, ir.TypeDate, ir.TypeTimestamp:
		if s, ok := v.(ir.String); ok {
			return s, nil
		}
	}
	return nil, fmt.Errorf("cannot store %T value %s in %s column", v, v, t.Name())
}

// CoerceRow coerces each value of row to the matching field of rowType.
func CoerceRow(rowType *ir.Type, row ir.Row) (ir.Row, error) {
	fields := rowType.Fields()
	if len(row) != len(fields) {
		return nil, fmt.Errorf("row has %d values, table has %d columns", len(row), len(fields))
	}
	out := make(ir.Row, len(row))
	for i, f := range fields {
		v, err := Coerce(f.Type, row[i])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", f.Name, err)
		}
		out[i] = v
	}
	return out, nil
}

// NewDeclaredTable builds a MemTable from column definitions and loosely
// typed rows.
func NewDeclaredTable(tf *ir.TypeFactory, name string, cols []ColumnDef, rows []ir.Row) (*MemTable, error) {
	rowType, err := RowTypeOf(tf, cols)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", name, err)
	}
	coerced := make([]ir.Row, 0, len(rows))
	for i, r := range rows {
		c, err := CoerceRow(rowType, r)
		if err != nil {
			return nil, fmt.Errorf("table %s: row %d: %w", name, i, err)
		}
		coerced = append(coerced, c)
	}
	return NewMemTable(name, rowType, coerced...), nil
}
