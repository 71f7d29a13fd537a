package linq

import (
	"reflect"
	"testing"

	"github.com/cockroachdb/apd/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type emp struct {
	ID     int32   `col:"empid"`
	Name   string  `col:"name"`
	Salary float64 `col:"salary"`
	secret string
}

func TestMember(t *testing.T) {
	e := Parameter("e", reflect.TypeFor[emp]())

	tests := []struct {
		name     string
		member   string
		wantCol  string
		wantType reflect.Type
		wantErr  string
	}{
		{"by tag", "empid", "empid", reflect.TypeFor[int32](), ""},
		{"by field name", "Salary", "salary", reflect.TypeFor[float64](), ""},
		{"unexported", "secret", "", nil, "no such field"},
		{"missing", "dept", "", nil, "no such field"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Member(e, tt.member)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCol, m.Member)
			assert.Equal(t, tt.wantType, m.Type())
			assert.Equal(t, KindMemberAccess, m.Kind())
		})
	}

	_, err := Member(Constant(3), "x")
	assert.ErrorContains(t, err, "not a struct")
}

func TestExprString(t *testing.T) {
	e := Parameter("e", reflect.TypeFor[emp]())
	pred := AndAlso(
		GreaterThan(MustMember(e, "salary"), Constant(1000.5)),
		Equal(Call(nil, MethodToUpper, MustMember(e, "name")), Constant("BOB")),
	)
	l := Lambda(pred, e)
	assert.Equal(t, `e => ((e.salary > 1000.5) && (strings.ToUpper(e.name) == "BOB"))`, l.String())
	assert.Equal(t, reflect.TypeFor[bool](), l.Type())
	assert.Equal(t, "-e.empid", Negate(MustMember(e, "empid")).String())
	assert.Equal(t, "12.50m", Constant(apd.New(1250, -2)).String())
}

func TestNew_BuildsTaggedStruct(t *testing.T) {
	e := Parameter("e", reflect.TypeFor[emp]())
	n, err := New([]string{"who", "pay"}, MustMember(e, "name"), Multiply(MustMember(e, "salary"), Constant(2.0)))
	require.NoError(t, err)

	typ := n.Type()
	require.Equal(t, reflect.Struct, typ.Kind())
	require.Equal(t, 2, typ.NumField())
	assert.Equal(t, "who", typ.Field(0).Tag.Get("col"))
	assert.Equal(t, reflect.TypeFor[float64](), typ.Field(1).Type)
	assert.Equal(t, `new{who: e.name, pay: (e.salary * 2)}`, n.String())

	// the constructed row is itself addressable by member
	m, err := Member(Parameter("r", typ), "pay")
	require.NoError(t, err)
	assert.Equal(t, "pay", m.Member)

	_, err = New([]string{"a"})
	assert.ErrorContains(t, err, "1 members but 0 arguments")
}

func TestConstantDecimalType(t *testing.T) {
	assert.Equal(t, reflect.TypeFor[apd.Decimal](), Constant(apd.New(5, 0)).Type())
	assert.Equal(t, reflect.TypeFor[int64](), Constant(int64(5)).Type())
}

func TestQueryable(t *testing.T) {
	q := From[emp]("hr", "emps")
	e := q.Row("e")
	filtered := q.Where(Lambda(GreaterThan(MustMember(e, "salary"), Constant(10.0)), e))

	r := filtered.Row("r")
	projected := filtered.Select(Lambda(MustNew([]string{"name"}, MustMember(r, "name")), r))
	p := projected.Row("p")
	ordered := projected.OrderBy(Lambda(MustMember(p, "name"), p), true).Take(3)

	assert.Equal(t, QueryTake, ordered.Kind())
	assert.Equal(t, int64(3), ordered.Count())
	assert.Equal(t, reflect.TypeFor[emp](), filtered.ElementType())
	assert.Equal(t, 1, ordered.ElementType().NumField())
	assert.Equal(t, []string{"hr", "emps"}, q.Names())
	assert.Nil(t, q.Source())

	// operators do not mutate their receiver
	assert.Equal(t, QueryFrom, q.Kind())
	assert.Equal(t, "From(hr.emps).Where(e => (e.salary > 10))", filtered.String())

	u := q.Union(From[emp]("hr", "contractors"))
	assert.Equal(t, "From(hr.emps).Union(From(hr.contractors))", u.String())
	assert.Equal(t, "From(hr.emps).Skip(2)", q.Skip(2).String())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "GreaterThanOrEqual", KindGreaterThanOrEqual.String())
	assert.Equal(t, "Conditional", KindConditional.String())
	assert.Equal(t, "Kind(99)", Kind(99).String())
}
