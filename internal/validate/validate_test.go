package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/quarry/internal/catalog"
	"github.com/roach88/quarry/internal/ir"
	"github.com/roach88/quarry/internal/rex"
	"github.com/roach88/quarry/internal/sqlparse"
	"github.com/roach88/quarry/internal/testutil"
)

func validator(t *testing.T) *Validator {
	t.Helper()
	tf := ir.NewTypeFactory()
	return New(catalog.NewReader(testutil.HR(t), tf), rex.NewBuilder(tf))
}

func validate(t *testing.T, sql string) (*Validated, *ir.Type, error) {
	t.Helper()
	q, err := sqlparse.Parse(sql)
	require.NoError(t, err)
	return validator(t).Validate(q)
}

func TestValidate_RowTypes(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{"unnamed expression", "SELECT x + 0, y FROM T",
			"RecordType(INTEGER NOT NULL EXPR$0, INTEGER NOT NULL y)"},
		{"star", "SELECT * FROM hr.depts",
			"RecordType(INTEGER NOT NULL deptno, VARCHAR(20) NOT NULL name)"},
		{"qualified star and alias", "SELECT d.*, e.name AS who FROM hr.emps e JOIN hr.depts d ON e.deptno = d.deptno",
			"RecordType(INTEGER NOT NULL deptno, VARCHAR(20) NOT NULL name, VARCHAR(20) NOT NULL who)"},
		{"duplicate names uniquified", "SELECT e.name, d.name FROM hr.emps e, hr.depts d",
			"RecordType(VARCHAR(20) NOT NULL name, VARCHAR(20) NOT NULL name0)"},
		{"left join makes right side nullable", "SELECT d.name FROM hr.emps e LEFT JOIN hr.depts d ON e.deptno = d.deptno",
			"RecordType(VARCHAR(20) name)"},
		{"exact literal keeps digits", "SELECT 12345678901234.5",
			"RecordType(DECIMAL(15, 1) NOT NULL EXPR$0)"},
		{"approximate literal", "SELECT 1e3, 'ab', TRUE",
			"RecordType(DOUBLE NOT NULL EXPR$0, CHAR(2) NOT NULL EXPR$1, BOOLEAN NOT NULL EXPR$2)"},
		{"grouped aggregates", "SELECT deptno, COUNT(*) AS c, SUM(salary) FROM hr.emps GROUP BY deptno",
			"RecordType(INTEGER deptno, BIGINT NOT NULL c, DECIMAL(34, 2) NOT NULL EXPR$2)"},
		{"ungrouped aggregate is nullable", "SELECT MAX(empid) FROM hr.emps",
			"RecordType(INTEGER EXPR$0)"},
		{"case", "SELECT CASE WHEN commission IS NULL THEN 0 ELSE commission END AS c FROM hr.emps",
			"RecordType(INTEGER c)"},
		{"functions", "SELECT UPPER(name), CHAR_LENGTH(name) FROM hr.emps",
			"RecordType(VARCHAR(20) NOT NULL EXPR$0, INTEGER NOT NULL EXPR$1)"},
		{"subquery in from", "SELECT s.n FROM (SELECT name AS n FROM hr.emps WHERE salary > 1000) AS s",
			"RecordType(VARCHAR(20) NOT NULL n)"},
		{"union", "SELECT deptno FROM hr.depts UNION SELECT deptno FROM hr.emps",
			"RecordType(INTEGER deptno)"},
		{"between and in", "SELECT empid BETWEEN 1 AND 200, deptno IN (10, 20) FROM hr.emps",
			"RecordType(BOOLEAN NOT NULL EXPR$0, BOOLEAN EXPR$1)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, rt, err := validate(t, tt.sql)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rt.Digest())
			assert.Equal(t, rt, v.RowType)
		})
	}
}

func TestValidate_Bindings(t *testing.T) {
	v, _, err := validate(t, "SELECT d.name, e.empid FROM hr.emps e JOIN hr.depts d ON e.deptno = d.deptno WHERE e.salary > 5000")
	require.NoError(t, err)

	s := v.Query.Body.(*sqlparse.Select)
	scope := v.Select(s)
	require.Len(t, scope.Namespaces, 2)
	assert.Equal(t, []string{"e"}, scope.Namespaces[0].Qualifier)
	assert.Equal(t, 0, scope.Namespaces[0].Offset)
	assert.Equal(t, 5, scope.Namespaces[1].Offset)

	// d.name is the second field of the second namespace
	b, ok := v.Column(s.Items[0].Expr.(*sqlparse.ColumnRef))
	require.True(t, ok)
	assert.Equal(t, 6, b.Offset)
	assert.Equal(t, "name", b.Name)

	join := s.From.(*sqlparse.Join)
	assert.Equal(t, []string{"hr", "depts"}, v.Table(join.Right.(*sqlparse.TableRef)).QualifiedName())
	assert.Equal(t, "BOOLEAN NOT NULL", v.TypeOf(s.Where).Digest())
}

func TestValidate_QualifiedBySuffix(t *testing.T) {
	_, rt, err := validate(t, "SELECT emps.name, hr.emps.empid FROM hr.emps")
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "empid"}, rt.FieldNames())
}

func TestValidate_Aggregates(t *testing.T) {
	v, _, err := validate(t, `SELECT e.deptno, COUNT(*), SUM(salary) + 1
		FROM hr.emps e GROUP BY deptno HAVING COUNT(*) > 1 ORDER BY MAX(empid)`)
	require.NoError(t, err)

	s := v.Query.Body.(*sqlparse.Select)
	scope := v.Select(s)
	assert.True(t, scope.Aggregated)

	var calls []string
	for _, a := range scope.Aggregates {
		calls = append(calls, a.String())
	}
	// COUNT(*) appears twice but is computed once
	assert.Equal(t, []string{"COUNT(*)", "SUM(salary)", "MAX(empid)"}, calls)

	keys := v.OrderKeys(v.Query)
	require.Len(t, keys, 1)
	assert.Equal(t, -1, keys[0].Ordinal)

	// grouping by an expression admits the same expression in the select list
	_, _, err = validate(t, "SELECT salary * 2, COUNT(*) FROM hr.emps GROUP BY salary * 2")
	require.NoError(t, err)

	// an aggregate in the select list alone makes the block aggregated
	v, _, err = validate(t, "SELECT COUNT(*) FROM hr.emps")
	require.NoError(t, err)
	assert.True(t, v.Select(v.Query.Body.(*sqlparse.Select)).Aggregated)
}

func TestValidate_OrderKeys(t *testing.T) {
	tests := []struct {
		sql     string
		ordinal int
		hidden  bool
		desc    bool
	}{
		{"SELECT name, empid FROM hr.emps ORDER BY 2 DESC", 1, false, true},
		{"SELECT name AS n FROM hr.emps ORDER BY n", 0, false, false},
		{"SELECT name AS n FROM hr.emps ORDER BY name", 0, false, false},
		{"SELECT e.name FROM hr.emps e ORDER BY salary", -1, true, false},
		{"SELECT deptno FROM hr.emps UNION SELECT deptno FROM hr.depts ORDER BY deptno DESC", 0, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			v, _, err := validate(t, tt.sql)
			require.NoError(t, err)
			keys := v.OrderKeys(v.Query)
			require.Len(t, keys, 1)
			assert.Equal(t, tt.ordinal, keys[0].Ordinal)
			assert.Equal(t, tt.hidden, keys[0].Expr != nil)
			assert.Equal(t, tt.desc, keys[0].Desc)
		})
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name       string
		sql        string
		identifier string
		message    string
	}{
		{"missing table", "SELECT * FROM Z", "Z", "Object 'Z' not found"},
		{"missing qualified table", "SELECT * FROM hr.Z", "hr.Z", "Object 'hr.Z' not found"},
		{"over-qualified table", "SELECT * FROM hr.emps.x", "hr.emps.x", "not found"},
		{"missing column", "SELECT nope FROM hr.emps", "nope", "Column 'nope' not found in any table"},
		{"missing qualifier", "SELECT q.name FROM hr.emps", "q", "Table 'q' not found"},
		{"missing column in table", "SELECT e.nope FROM hr.emps e", "nope", "not found in table 'e'"},
		{"ambiguous column", "SELECT name FROM hr.emps, hr.depts", "name", "Column 'name' is ambiguous"},
		{"duplicate alias", "SELECT 1 FROM hr.emps a, hr.depts a", "a", "Duplicate relation name 'a'"},
		{"unknown function", "SELECT FROB(name) FROM hr.emps", "FROB", "No match found for function signature FROB"},
		{"ungrouped column", "SELECT name, COUNT(*) FROM hr.emps GROUP BY deptno", "name", "is not being grouped"},
		{"ungrouped having", "SELECT deptno FROM hr.emps GROUP BY deptno HAVING salary > 1", "salary", "is not being grouped"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := validate(t, tt.sql)
			require.Error(t, err)
			assert.True(t, IsError(err))
			var ve *Error
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.identifier, ve.Identifier)
			assert.Contains(t, ve.Message, tt.message)
		})
	}
}

func TestValidate_MissingTableIsNotFound(t *testing.T) {
	_, _, err := validate(t, "SELECT x FROM Z")
	require.Error(t, err)
	assert.True(t, catalog.IsNotFound(err))
	assert.Contains(t, err.Error(), "'Z'")
	assert.Contains(t, err.Error(), "line 1, column 15")
}

func TestValidate_SemanticErrors(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		message string
	}{
		{"aggregate in where", "SELECT name FROM hr.emps WHERE COUNT(*) > 1", "Aggregate expression is illegal in WHERE clause"},
		{"aggregate in group by", "SELECT 1 FROM hr.emps GROUP BY COUNT(*)", "illegal in GROUP BY clause"},
		{"nested aggregate", "SELECT SUM(COUNT(*)) FROM hr.emps", "cannot be nested"},
		{"star argument", "SELECT SUM(*) FROM hr.emps", "SUM(*) is not allowed"},
		{"where not boolean", "SELECT name FROM hr.emps WHERE empid + 1", "WHERE clause must be a condition"},
		{"bad comparison", "SELECT name FROM hr.emps WHERE name = 1", "Cannot apply '='"},
		{"bad arithmetic", "SELECT name + 1 FROM hr.emps", "Cannot apply '+'"},
		{"set column count", "SELECT name, empid FROM hr.emps UNION SELECT name FROM hr.depts", "Column count mismatch in UNION"},
		{"set types", "SELECT name FROM hr.emps EXCEPT SELECT deptno FROM hr.depts", "Type mismatch in EXCEPT"},
		{"ordinal range", "SELECT name FROM hr.emps ORDER BY 2", "Ordinal out of range: 2"},
		{"set order by expression", "SELECT deptno FROM hr.emps UNION SELECT deptno FROM hr.depts ORDER BY deptno + 1", "ORDER BY of a set operation"},
		{"distinct hidden order", "SELECT DISTINCT name FROM hr.emps ORDER BY salary", "is not in the select clause"},
		{"star without from", "SELECT *", "requires a FROM clause"},
		{"scalar function with star", "SELECT UPPER(*) FROM hr.emps", "not an aggregate function"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := validate(t, tt.sql)
			require.Error(t, err)
			assert.True(t, IsError(err))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestKey_IgnoresQualification(t *testing.T) {
	v, _, err := validate(t, "SELECT e.deptno + 1, deptno + 1, deptno + 2 FROM hr.emps e")
	require.NoError(t, err)
	items := v.Select(v.Query.Body.(*sqlparse.Select)).Items
	assert.Equal(t, v.Key(items[0].Expr), v.Key(items[1].Expr))
	assert.NotEqual(t, v.Key(items[1].Expr), v.Key(items[2].Expr))
}
