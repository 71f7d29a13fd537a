package sqlparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func selectOf(t *testing.T, q *Query) *Select {
	t.Helper()
	s, ok := q.Body.(*Select)
	require.True(t, ok, "body is %T", q.Body)
	return s
}

func TestParse_SimpleSelect(t *testing.T) {
	q, err := Parse("SELECT x + 0, y FROM T")
	require.NoError(t, err)

	s := selectOf(t, q)
	require.Len(t, s.Items, 2)
	assert.Equal(t, "(x + 0)", s.Items[0].Expr.String())
	assert.Equal(t, "y", s.Items[1].Expr.String())
	assert.Equal(t, &TableRef{Pos: Pos{1, 22}, Names: []string{"T"}}, s.From)
	assert.Equal(t, int64(-1), q.Limit)
	assert.Equal(t, int64(-1), q.Offset)
}

func TestParse_Clauses(t *testing.T) {
	q, err := Parse(`select distinct e.deptno, count(*) as c
		from hr.emps as e
		where e.salary > 1000 and not e.name is null
		group by e.deptno
		having count(*) > 1
		order by c desc, 1
		limit 10 offset 5;`)
	require.NoError(t, err)

	s := selectOf(t, q)
	assert.True(t, s.Distinct)
	assert.Equal(t, "c", s.Items[1].Alias)
	assert.Equal(t, "COUNT(*)", s.Items[1].Expr.String())
	assert.Equal(t, []string{"hr", "emps"}, s.From.(*TableRef).Names)
	assert.Equal(t, "e", s.From.(*TableRef).Alias)
	assert.Equal(t, "((e.salary > 1000) AND (NOT (e.name IS NULL)))", s.Where.String())
	require.Len(t, s.GroupBy, 1)
	assert.Equal(t, "(COUNT(*) > 1)", s.Having.String())
	require.Len(t, q.OrderBy, 2)
	assert.True(t, q.OrderBy[0].Desc)
	assert.False(t, q.OrderBy[1].Desc)
	assert.Equal(t, int64(10), q.Limit)
	assert.Equal(t, int64(5), q.Offset)
}

func TestParse_Precedence(t *testing.T) {
	tests := []struct {
		sql  string
		want string
	}{
		{"SELECT 1 + 2 * 3", "(1 + (2 * 3))"},
		{"SELECT (1 + 2) * 3", "((1 + 2) * 3)"},
		{"SELECT 1 - 2 - 3", "((1 - 2) - 3)"},
		{"SELECT a OR b AND c", "(a OR (b AND c))"},
		{"SELECT NOT a = b", "(NOT (a = b))"},
		{"SELECT a || 'x' = 'yx'", "((a || 'x') = 'yx')"},
		{"SELECT -x * 2", "((-x) * 2)"},
		{"SELECT -5", "-5"},
		{"SELECT +5", "5"},
		{"SELECT a != b", "(a <> b)"},
		{"SELECT a BETWEEN 1 AND 2 AND b", "((a BETWEEN 1 AND 2) AND b)"},
		{"SELECT a NOT IN (1, 2)", "(a NOT IN (1, 2))"},
		{"SELECT x IS NOT NULL", "(x IS NOT NULL)"},
		{"SELECT CASE WHEN a > 1 THEN 'b' ELSE 'c' END", "CASE WHEN (a > 1) THEN 'b' ELSE 'c' END"},
		{"SELECT CASE a WHEN 1 THEN 2 END", "CASE a WHEN 1 THEN 2 END"},
		{"SELECT upper(name)", "UPPER(name)"},
		{"SELECT count(DISTINCT x)", "COUNT(DISTINCT x)"},
		{"SELECT 'it''s'", "'it''s'"},
	}
	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			q, err := Parse(tt.sql)
			require.NoError(t, err)
			s := selectOf(t, q)
			assert.Nil(t, s.From)
			assert.Equal(t, tt.want, s.Items[0].Expr.String())
		})
	}
}

func TestParse_Literals(t *testing.T) {
	tests := []struct {
		sql  string
		kind LiteralKind
		text string
	}{
		{"SELECT 42", LitInteger, "42"},
		{"SELECT 12345678901234.5", LitDecimal, "12345678901234.5"},
		{"SELECT .5", LitDecimal, ".5"},
		{"SELECT 1e3", LitApprox, "1e3"},
		{"SELECT 2.5E-2", LitApprox, "2.5E-2"},
		{"SELECT 'hi'", LitString, "hi"},
		{"SELECT NULL", LitNull, ""},
	}
	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			s := selectOf(t, MustParse(tt.sql))
			lit, ok := s.Items[0].Expr.(*Literal)
			require.True(t, ok)
			assert.Equal(t, tt.kind, lit.Kind)
			assert.Equal(t, tt.text, lit.Text)
		})
	}

	s := selectOf(t, MustParse("SELECT TRUE, false"))
	assert.True(t, s.Items[0].Expr.(*Literal).Bool)
	assert.False(t, s.Items[1].Expr.(*Literal).Bool)
}

func TestParse_Identifiers(t *testing.T) {
	s := selectOf(t, MustParse(`SELECT "Weird ""col""", t.* FROM "My Table" t`))
	assert.Equal(t, []string{`Weird "col"`}, s.Items[0].Expr.(*ColumnRef).Names)
	assert.True(t, s.Items[1].Star)
	assert.Equal(t, "t", s.Items[1].Qualifier)
	assert.Equal(t, []string{"My Table"}, s.From.(*TableRef).Names)
	assert.Equal(t, "t", s.From.(*TableRef).Alias)
}

func TestParse_Joins(t *testing.T) {
	s := selectOf(t, MustParse(`SELECT * FROM a JOIN b ON a.id = b.id LEFT OUTER JOIN c ON b.k = c.k, d`))

	cross, ok := s.From.(*Join)
	require.True(t, ok)
	assert.Equal(t, CrossJoin, cross.Kind)
	assert.Nil(t, cross.On)
	assert.Equal(t, []string{"d"}, cross.Right.(*TableRef).Names)

	left := cross.Left.(*Join)
	assert.Equal(t, LeftJoin, left.Kind)
	assert.Equal(t, "(b.k = c.k)", left.On.String())

	inner := left.Left.(*Join)
	assert.Equal(t, InnerJoin, inner.Kind)
	assert.Equal(t, []string{"a"}, inner.Left.(*TableRef).Names)
}

func TestParse_Subquery(t *testing.T) {
	s := selectOf(t, MustParse(`SELECT s.x FROM (SELECT x FROM t WHERE x > 1) AS s`))
	sub, ok := s.From.(*SubqueryRef)
	require.True(t, ok)
	assert.Equal(t, "s", sub.Alias)
	assert.Equal(t, "(x > 1)", selectOf(t, sub.Query).Where.String())
}

func TestParse_SetOperations(t *testing.T) {
	q := MustParse(`SELECT a FROM t UNION ALL SELECT a FROM u INTERSECT SELECT a FROM v EXCEPT SELECT a FROM w ORDER BY 1`)

	except, ok := q.Body.(*SetOp)
	require.True(t, ok)
	assert.Equal(t, Except, except.Kind)

	union := except.Left.(*SetOp)
	assert.Equal(t, Union, union.Kind)
	assert.True(t, union.All)

	// INTERSECT binds tighter than UNION
	intersect := union.Right.(*SetOp)
	assert.Equal(t, Intersect, intersect.Kind)
	assert.False(t, intersect.All)

	require.Len(t, q.OrderBy, 1)

	nested := MustParse(`(SELECT a FROM t LIMIT 1) UNION SELECT a FROM u MINUS SELECT a FROM w`)
	minus := nested.Body.(*SetOp)
	assert.Equal(t, Except, minus.Kind)
	inner := minus.Left.(*SetOp).Left.(*Query)
	assert.Equal(t, int64(1), inner.Limit)
}

func TestParse_Comments(t *testing.T) {
	s := selectOf(t, MustParse("SELECT a -- the column\nFROM t"))
	assert.Equal(t, "a", s.Items[0].Expr.String())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		sql    string
		line   int
		column int
	}{
		{"empty", "   ", 1, 1},
		{"missing from target", "SELECT a FROM", 1, 0},
		{"dangling operator", "SELECT a +\nFROM t", 0, 0},
		{"bad token", "SELECT a FROM t WHERE a ? 1", 1, 25},
		{"inner join without on", "SELECT * FROM a JOIN b", 1, 17},
		{"cross join with on", "SELECT * FROM a CROSS JOIN b ON a.x = b.x", 1, 17},
		{"aliased star", "SELECT * AS x FROM t", 1, 13},
		{"trailing garbage", "SELECT a FROM t t2 t3", 1, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.sql)
			require.Error(t, err)
			assert.True(t, IsParseError(err))

			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			// zero means the position is left to the parser
			if tt.line > 0 {
				assert.Equal(t, tt.line, pe.Line, pe.Error())
			}
			if tt.column > 0 {
				assert.Equal(t, tt.column, pe.Column, pe.Error())
			}
			assert.NotEmpty(t, pe.Message)
		})
	}
}

func TestMustParse_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParse("SELECT") })
}
