package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/quarry/internal/catalog"
	"github.com/roach88/quarry/internal/ir"
)

// HR builds the catalog most package tests share:
//
//	hr.emps(empid INTEGER, deptno INTEGER NULL, name VARCHAR(20),
//	        salary DECIMAL(10, 2), commission INTEGER NULL)   4 rows
//	hr.depts(deptno INTEGER, name VARCHAR(20))               3 rows
//	T(x INTEGER, y INTEGER)                                  empty
//
// Each call returns fresh tables, so tests may append rows freely.
func HR(t testing.TB) *catalog.MapSchema {
	t.Helper()
	tf := ir.NewTypeFactory()

	emps, err := catalog.NewDeclaredTable(tf, "emps", []catalog.ColumnDef{
		{Name: "empid", Type: "INTEGER"},
		{Name: "deptno", Type: "INTEGER", Nullable: true},
		{Name: "name", Type: "VARCHAR(20)"},
		{Name: "salary", Type: "DECIMAL(10, 2)"},
		{Name: "commission", Type: "INTEGER", Nullable: true},
	}, []ir.Row{
		{ir.Int(100), ir.Int(10), ir.String("Bill"), ir.MustParseDecimal("10000"), ir.Int(1000)},
		{ir.Int(200), ir.Int(20), ir.String("Eric"), ir.MustParseDecimal("8000"), ir.Int(500)},
		{ir.Int(150), ir.Int(10), ir.String("Sebastian"), ir.MustParseDecimal("7000"), ir.Null{}},
		{ir.Int(110), ir.Int(10), ir.String("Theodore"), ir.MustParseDecimal("11500"), ir.Int(250)},
	})
	require.NoError(t, err)

	depts, err := catalog.NewDeclaredTable(tf, "depts", []catalog.ColumnDef{
		{Name: "deptno", Type: "INTEGER"},
		{Name: "name", Type: "VARCHAR(20)"},
	}, []ir.Row{
		{ir.Int(10), ir.String("Sales")},
		{ir.Int(30), ir.String("Marketing")},
		{ir.Int(40), ir.String("HR")},
	})
	require.NoError(t, err)

	xy, err := catalog.NewDeclaredTable(tf, "T", []catalog.ColumnDef{
		{Name: "x", Type: "INTEGER"},
		{Name: "y", Type: "INTEGER"},
	}, nil)
	require.NoError(t, err)

	hr := catalog.NewMapSchema("hr").AddTable("emps", emps).AddTable("depts", depts)
	return catalog.NewMapSchema("").AddSubSchema("hr", hr).AddTable("T", xy)
}
