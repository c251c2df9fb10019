package schema

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"familyphotos/internal/models"
)

// FieldType is the storage type of a field
type FieldType int

const (
	TypeString FieldType = iota
	TypeInt
	TypeBool
	TypeDate
	TypeDateTime
	TypeStringList
)

func (t FieldType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt:
		return "integer"
	case TypeBool:
		return "boolean"
	case TypeDate:
		return "date"
	case TypeDateTime:
		return "datetime"
	case TypeStringList:
		return "array of strings"
	default:
		return "unknown"
	}
}

// Field describes one attribute of an entity
type Field struct {
	Name      string // external name, as in JSON
	Column    string
	Type      FieldType
	Required  bool
	Immutable bool
	System    bool // id and timestamps, never written by callers
	index     []int
}

// Reference is a foreign key checked when a record is written
type Reference struct {
	Field string
	Model string
}

// Model describes an entity type: its table, fields and access rules
type Model struct {
	Name       string
	Table      string
	Fields     []*Field
	OwnerKey   string
	References []Reference
	// ReadOwner, when set, restricts reads to records whose field equals the caller's id
	ReadOwner string

	byName map[string]*Field
}

// ModelOption configures a Model
type ModelOption func(m *Model)

// OwnerKey names the owning foreign key that every update must carry unchanged
func OwnerKey(field string) ModelOption {
	return func(m *Model) { m.OwnerKey = field }
}

// Immutable marks fields that cannot change after creation
func Immutable(fields ...string) ModelOption {
	return func(m *Model) {
		for _, name := range fields {
			if f, ok := m.byName[name]; ok {
				f.Immutable = true
			}
		}
	}
}

// References requires field to hold the id of an existing record of model
func References(field, model string) ModelOption {
	return func(m *Model) { m.References = append(m.References, Reference{Field: field, Model: model}) }
}

// OwnerRead limits get, list and observe to records owned by the caller
func OwnerRead(field string) ModelOption {
	return func(m *Model) { m.ReadOwner = field }
}

// Field returns the field with the given external name
func (m *Model) Field(name string) (*Field, bool) {
	f, ok := m.byName[name]
	return f, ok
}

// Columns returns the column list in field order
func (m *Model) Columns() []string {
	cols := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		cols[i] = f.Column
	}
	return cols
}

var (
	timeType       = reflect.TypeOf(time.Time{})
	stringListType = reflect.TypeOf(models.StringList{})
)

// describe builds a Model from the db, json and validate tags of t
func describe(name, table string, t reflect.Type, opts ...ModelOption) (*Model, error) {
	m := &Model{Name: name, Table: table, byName: map[string]*Field{}}
	if err := m.collect(t, nil); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.OwnerKey != "" {
		f, ok := m.byName[m.OwnerKey]
		if !ok {
			return nil, fmt.Errorf("%s: owner key %q is not a field", name, m.OwnerKey)
		}
		f.Immutable = true
	}
	for _, ref := range m.References {
		if _, ok := m.byName[ref.Field]; !ok {
			return nil, fmt.Errorf("%s: reference %q is not a field", name, ref.Field)
		}
	}
	if m.ReadOwner != "" {
		if _, ok := m.byName[m.ReadOwner]; !ok {
			return nil, fmt.Errorf("%s: read owner %q is not a field", name, m.ReadOwner)
		}
	}
	return m, nil
}

func (m *Model) collect(t reflect.Type, prefix []int) error {
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		index := append(append([]int{}, prefix...), i)

		if sf.Anonymous && sf.Type.Kind() == reflect.Struct {
			if err := m.collect(sf.Type, index); err != nil {
				return err
			}
			continue
		}

		column := sf.Tag.Get("db")
		if column == "" || column == "-" || !sf.IsExported() {
			continue
		}
		jsonName := strings.SplitN(sf.Tag.Get("json"), ",", 2)[0]
		if jsonName == "" {
			jsonName = sf.Name
		}
		validate := sf.Tag.Get("validate")

		f := &Field{
			Name:     jsonName,
			Column:   column,
			Required: hasRule(validate, "required"),
			index:    index,
		}
		switch {
		case sf.Type == timeType:
			f.Type = TypeDateTime
		case sf.Type == stringListType:
			f.Type = TypeStringList
		case sf.Type.Kind() == reflect.String && strings.Contains(validate, "datetime="):
			f.Type = TypeDate
		case sf.Type.Kind() == reflect.String:
			f.Type = TypeString
		case sf.Type.Kind() == reflect.Bool:
			f.Type = TypeBool
		case sf.Type.Kind() >= reflect.Int && sf.Type.Kind() <= reflect.Int64:
			f.Type = TypeInt
		default:
			return fmt.Errorf("%s.%s: unsupported field type %s", m.Name, sf.Name, sf.Type)
		}
		switch column {
		case "id", "created_at", "updated_at":
			f.System = true
			f.Immutable = true
		}
		if _, dup := m.byName[f.Name]; dup {
			return fmt.Errorf("%s: duplicate field %q", m.Name, f.Name)
		}
		m.Fields = append(m.Fields, f)
		m.byName[f.Name] = f
	}
	return nil
}

func hasRule(validate, rule string) bool {
	for _, r := range strings.Split(validate, ",") {
		if r == rule {
			return true
		}
	}
	return false
}
