package validate

import (
	"slices"
	"strings"

	"github.com/roach88/quarry/internal/catalog"
	"github.com/roach88/quarry/internal/ir"
	"github.com/roach88/quarry/internal/sqlparse"
)

// Namespace is one FROM item visible to a SELECT block.
type Namespace struct {
	// Qualifier is what column references may be prefixed with: the alias
	// if there is one, else the table name as written. Empty for an
	// unaliased subquery.
	Qualifier []string
	RowType   *ir.Type
	// Offset is the position of the namespace's first field in the FROM row.
	Offset int
	// Table is nil for subqueries.
	Table *catalog.TableHandle
}

// matches reports whether prefix names this namespace: it must be a
// suffix of the qualifier, so hr.emps is reachable as emps too.
func (n *Namespace) matches(prefix []string) bool {
	if len(prefix) == 0 || len(prefix) > len(n.Qualifier) {
		return false
	}
	return slices.Equal(prefix, n.Qualifier[len(n.Qualifier)-len(prefix):])
}

// Binding is a resolved column reference.
type Binding struct {
	// Offset is the field's position in the FROM row.
	Offset int
	Type   *ir.Type
	Name   string
}

// scope is the list of namespaces a column reference can see. Join
// conditions see only the namespaces of their own join.
type scope struct {
	namespaces []*Namespace
}

func (s *scope) width() int {
	if len(s.namespaces) == 0 {
		return 0
	}
	last := s.namespaces[len(s.namespaces)-1]
	return last.Offset + last.RowType.FieldCount()
}

func (s *scope) add(ns *Namespace, pos sqlparse.Pos) error {
	if len(ns.Qualifier) > 0 {
		for _, other := range s.namespaces {
			if slices.Equal(other.Qualifier, ns.Qualifier) {
				return &Error{Pos: pos, Identifier: strings.Join(ns.Qualifier, "."),
					Message: "Duplicate relation name '" + strings.Join(ns.Qualifier, ".") + "' in FROM clause"}
			}
		}
	}
	ns.Offset = s.width()
	s.namespaces = append(s.namespaces, ns)
	return nil
}

func (s *scope) resolve(ref *sqlparse.ColumnRef) (Binding, error) {
	col := ref.Names[len(ref.Names)-1]
	prefix := ref.Names[:len(ref.Names)-1]

	var found []Binding
	qualified := false
	for _, ns := range s.namespaces {
		if len(prefix) > 0 {
			if !ns.matches(prefix) {
				continue
			}
			qualified = true
		}
		if f, ok := ns.RowType.Field(col); ok {
			found = append(found, Binding{Offset: ns.Offset + f.Index, Type: f.Type, Name: f.Name})
		}
	}

	switch {
	case len(prefix) > 0 && !qualified:
		name := strings.Join(prefix, ".")
		return Binding{}, &Error{Pos: ref.Pos, Identifier: name, Message: "Table '" + name + "' not found"}
	case len(found) == 0 && len(prefix) > 0:
		return Binding{}, &Error{Pos: ref.Pos, Identifier: col,
			Message: "Column '" + col + "' not found in table '" + strings.Join(prefix, ".") + "'"}
	case len(found) == 0:
		return Binding{}, columnNotFound(ref.Pos, col)
	case len(found) > 1:
		return Binding{}, &Error{Pos: ref.Pos, Identifier: col, Message: "Column '" + col + "' is ambiguous"}
	}
	return found[0], nil
}

// namespace finds the namespace a "t.*" qualifier names.
func (s *scope) namespace(qualifier string, pos sqlparse.Pos) (*Namespace, error) {
	for _, ns := range s.namespaces {
		if ns.matches([]string{qualifier}) {
			return ns, nil
		}
	}
	return nil, &Error{Pos: pos, Identifier: qualifier, Message: "Table '" + qualifier + "' not found"}
}
