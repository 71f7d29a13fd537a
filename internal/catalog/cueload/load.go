// Package cueload declares catalogs in CUE.
//
// A catalog file nests schemas and tables:
//
//	package catalog
//
//	table: T: {
//		columns: [{name: "x", type: "INTEGER"}, {name: "y", type: "INTEGER"}]
//	}
//
//	schema: hr: table: emps: {
//		columns: [
//			{name: "empid", type: "INTEGER"},
//			{name: "name", type: "VARCHAR(20)", nullable: true},
//			{name: "salary", type: "DECIMAL(10, 2)"},
//		]
//		rows: [
//			[100, "Bill", 10000.00],
//			[110, null, "11500.50"],
//		]
//	}
//
// Non-integral numbers are read from their CUE source text, so decimal
// values keep every digit.
package cueload

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/quarry/internal/catalog"
	"github.com/roach88/quarry/internal/ir"
)

// CompileError is a catalog declaration error with source position.
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

// LoadDir loads every CUE file in dir and compiles the result into a root
// schema.
func LoadDir(dir string, tf *ir.TypeFactory) (*catalog.MapSchema, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("catalog directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return Compile(value, tf)
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// Compile turns a CUE value shaped like a catalog file into a root schema.
func Compile(v cue.Value, tf *ir.TypeFactory) (*catalog.MapSchema, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return compileSchema("", v, tf)
}

func compileSchema(name string, v cue.Value, tf *ir.TypeFactory) (*catalog.MapSchema, error) {
	schema := catalog.NewMapSchema(name)

	tablesVal := v.LookupPath(cue.ParsePath("table"))
	if tablesVal.Exists() {
		iter, err := tablesVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			t, err := compileTable(iter.Label(), iter.Value(), tf)
			if err != nil {
				return nil, err
			}
			schema.AddTable(t.Name(), t)
		}
	}

	subsVal := v.LookupPath(cue.ParsePath("schema"))
	if subsVal.Exists() {
		iter, err := subsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			subName := iter.Label()
			sub, err := compileSchema(subName, iter.Value(), tf)
			if err != nil {
				return nil, err
			}
			schema.AddSubSchema(subName, sub)
		}
	}

	return schema, nil
}

func compileTable(name string, v cue.Value, tf *ir.TypeFactory) (*catalog.MemTable, error) {
	colsVal := v.LookupPath(cue.ParsePath("columns"))
	if !colsVal.Exists() {
		return nil, &CompileError{Field: "columns", Message: fmt.Sprintf("table %s: columns are required", name), Pos: v.Pos()}
	}
	cols, err := parseColumns(colsVal)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, &CompileError{Field: "columns", Message: fmt.Sprintf("table %s: at least one column is required", name), Pos: colsVal.Pos()}
	}

	var rows []ir.Row
	rowsVal := v.LookupPath(cue.ParsePath("rows"))
	if rowsVal.Exists() {
		rows, err = parseRows(rowsVal)
		if err != nil {
			return nil, err
		}
	}

	t, err := catalog.NewDeclaredTable(tf, name, cols, rows)
	if err != nil {
		return nil, &CompileError{Field: "table", Message: err.Error(), Pos: v.Pos()}
	}
	return t, nil
}

func parseColumns(v cue.Value) ([]catalog.ColumnDef, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var cols []catalog.ColumnDef
	for iter.Next() {
		cv := iter.Value()
		var col catalog.ColumnDef

		nameVal := cv.LookupPath(cue.ParsePath("name"))
		if !nameVal.Exists() {
			return nil, &CompileError{Field: "name", Message: "column name is required", Pos: cv.Pos()}
		}
		if col.Name, err = nameVal.String(); err != nil {
			return nil, formatCUEError(err)
		}

		typeVal := cv.LookupPath(cue.ParsePath("type"))
		if !typeVal.Exists() {
			return nil, &CompileError{Field: "type", Message: fmt.Sprintf("column %s: type is required", col.Name), Pos: cv.Pos()}
		}
		if col.Type, err = typeVal.String(); err != nil {
			return nil, formatCUEError(err)
		}

		if nullVal := cv.LookupPath(cue.ParsePath("nullable")); nullVal.Exists() {
			if col.Nullable, err = nullVal.Bool(); err != nil {
				return nil, formatCUEError(err)
			}
		}
		cols = append(cols, col)
	}
	return cols, nil
}

func parseRows(v cue.Value) ([]ir.Row, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var rows []ir.Row
	for iter.Next() {
		cells, err := iter.Value().List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		var row ir.Row
		for cells.Next() {
			val, err := valueOf(cells.Value())
			if err != nil {
				return nil, err
			}
			row = append(row, val)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// valueOf converts a concrete CUE scalar to a Value.
func valueOf(v cue.Value) (ir.Value, error) {
	switch v.Kind() {
	case cue.NullKind:
		return ir.Null{}, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Bool(b), nil
	case cue.IntKind:
		i, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Int(i), nil
	case cue.FloatKind:
		text, err := v.MarshalJSON()
		if err != nil {
			return nil, formatCUEError(err)
		}
		d, err := ir.ParseDecimal(string(text))
		if err != nil {
			return nil, &CompileError{Field: "rows", Message: err.Error(), Pos: v.Pos()}
		}
		return d, nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.String(s), nil
	default:
		return nil, &CompileError{
			Field:   "rows",
			Message: fmt.Sprintf("unsupported cell kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
