package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"familyphotos/internal/database"
)

// Op is a predicate operator
type Op string

const (
	OpEq       Op = "eq"
	OpContains Op = "contains"
)

// Condition is a single field predicate
type Condition struct {
	Field string
	Op    Op
	Value interface{}
}

// Filter is a conjunction of conditions. An empty filter matches everything.
type Filter []Condition

// Eq matches records whose field equals v
func Eq(field string, v interface{}) Condition {
	return Condition{Field: field, Op: OpEq, Value: v}
}

// Contains matches a substring of a text field or an element of a list field
func Contains(field string, v string) Condition {
	return Condition{Field: field, Op: OpContains, Value: v}
}

// where compiles the filter against m into a SQL condition with ? placeholders
func (m *Model) where(dialect database.Dialect, filter Filter) (string, []interface{}, error) {
	if len(filter) == 0 {
		return "", nil, nil
	}
	clauses := make([]string, 0, len(filter))
	args := make([]interface{}, 0, len(filter))
	for _, c := range filter {
		f, ok := m.byName[c.Field]
		if !ok {
			return "", nil, invalid(c.Field, "is not a field of %s", m.Name)
		}
		switch c.Op {
		case OpEq:
			if f.Type == TypeStringList {
				return "", nil, invalid(f.Name, "supports contains, not eq")
			}
			v, err := coerce(f, c.Value)
			if err != nil {
				return "", nil, err
			}
			clauses = append(clauses, f.Column+" = ?")
			args = append(args, v)

		case OpContains:
			s, ok := c.Value.(string)
			if !ok {
				return "", nil, invalid(f.Name, "contains needs a string value")
			}
			var pattern string
			switch f.Type {
			case TypeString, TypeDate:
				pattern = s
			case TypeStringList:
				// elements are stored JSON encoded, so match the quoted element
				quoted, err := json.Marshal(s)
				if err != nil {
					return "", nil, invalid(f.Name, "contains value cannot be encoded")
				}
				pattern = string(quoted)
			default:
				return "", nil, invalid(f.Name, "supports eq, not contains")
			}
			clauses = append(clauses, fmt.Sprintf("%s LIKE ? %s", f.Column, dialect.LikeEscapeClause()))
			args = append(args, "%"+database.EscapeLike(pattern)+"%")

		default:
			return "", nil, invalid(c.Field, "unknown operator %q", c.Op)
		}
	}
	return strings.Join(clauses, " AND "), args, nil
}
