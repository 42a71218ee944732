package schema

import (
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

// Macro is the kind of an association. It is a closed set: every switch over
// a Macro handles BelongsTo, HasOne and HasMany and rejects anything else.
type Macro uint8

// Association kinds.
const (
	// BelongsTo: the owner holds the foreign key and references the target by
	// its primary key.
	BelongsTo Macro = iota + 1
	// HasOne: the target holds a foreign key to the owner; at most one target.
	HasOne
	// HasMany: the target holds a foreign key to the owner; a collection.
	HasMany
)

var macroNames = map[Macro]string{
	BelongsTo: "belongs_to",
	HasOne:    "has_one",
	HasMany:   "has_many",
}

// String returns the configuration name of the macro.
func (m Macro) String() string {
	if s, ok := macroNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Macro(%d)", uint8(m))
}

// Many reports whether the macro resolves to a collection.
func (m Macro) Many() bool {
	return m == HasMany
}

// ParseMacro parses a configuration name such as "has_many".
func ParseMacro(s string) (Macro, error) {
	for m, name := range macroNames {
		if name == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("schema: unknown association macro %q", s)
}

// MarshalYAML implements yaml.Marshaler.
func (m Macro) MarshalYAML() (any, error) {
	return m.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *Macro) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	v, err := ParseMacro(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Type describes an entity type: its table, ordered columns, primary key and
// declared associations.
type Type struct {
	// Name is the type name, e.g. "Emp".
	Name string `yaml:"name"`
	// Table defaults to the pluralized, underscored name ("emps").
	Table string `yaml:"table,omitempty"`
	// Columns are the ordered column names of the table.
	Columns []string `yaml:"columns,omitempty"`
	// PrimaryKey defaults to ["id"]. More than one column makes it composite.
	PrimaryKey []string `yaml:"primary_key,omitempty"`
	// Associations declared on the type.
	Associations []*Association `yaml:"associations,omitempty"`
	// NestedAttributes names the associations that accept nested writes.
	NestedAttributes []string `yaml:"nested_attributes,omitempty"`
}

// Association returns the association declared under name, or nil.
func (t *Type) Association(name string) *Association {
	for _, a := range t.Associations {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// AcceptsNestedAttributes reports whether the association accepts nested writes.
func (t *Type) AcceptsNestedAttributes(name string) bool {
	return slices.Contains(t.NestedAttributes, name)
}

// HasColumn reports whether the type declares the column.
func (t *Type) HasColumn(name string) bool {
	return slices.Contains(t.Columns, name)
}

func (t *Type) clone() *Type {
	c := *t
	c.Columns = slices.Clone(t.Columns)
	c.PrimaryKey = slices.Clone(t.PrimaryKey)
	c.NestedAttributes = slices.Clone(t.NestedAttributes)
	c.Associations = make([]*Association, len(t.Associations))
	for i, a := range t.Associations {
		ac := *a
		ac.ForeignKey = slices.Clone(a.ForeignKey)
		ac.PrimaryKey = slices.Clone(a.PrimaryKey)
		c.Associations[i] = &ac
	}
	return &c
}

// Association is the declaration of a relationship from one type to another.
type Association struct {
	// Name of the association on the owner, e.g. "employees".
	Name string `yaml:"name"`
	// Macro is the association kind.
	Macro Macro `yaml:"macro"`
	// Type is the target type name. It defaults to the camelized singular of
	// Name, and is taken from the source association for through associations.
	Type string `yaml:"type,omitempty"`
	// ForeignKey overrides the foreign key column(s).
	ForeignKey []string `yaml:"foreign_key,omitempty"`
	// PrimaryKey overrides the referenced key column(s).
	PrimaryKey []string `yaml:"primary_key,omitempty"`
	// Through names the owner association traversed first.
	Through string `yaml:"through,omitempty"`
	// Source names the association on the through target that reaches the
	// final target. It defaults to Name or its singular.
	Source string `yaml:"source,omitempty"`
}

// Reflection is a resolved association: its owner and target types and the
// concrete key columns on both sides.
type Reflection struct {
	// Name and Macro are copied from the declaration.
	Name  string
	Macro Macro
	// Owner is the declaring type, Target the type reached.
	Owner  *Type
	Target *Type
	// Through is the owner association traversed first, nil for direct
	// associations. Source is the association on Through's target that
	// reaches Target.
	Through *Reflection
	Source  *Reflection

	foreignKey   []string
	referenceKey []string
}

// ForeignKey returns the foreign key column(s). For BelongsTo they live on
// the owner, for HasOne and HasMany on the target.
func (r *Reflection) ForeignKey() []string {
	return r.foreignKey
}

// ReferenceKey returns the referenced key column(s). For BelongsTo they live
// on the target, for HasOne and HasMany on the owner.
func (r *Reflection) ReferenceKey() []string {
	return r.referenceKey
}

// Composite reports whether the keys joining the association have more than
// one column. Through associations report on their through hop.
func (r *Reflection) Composite() bool {
	hop := r
	if r.Through != nil {
		hop = r.Through
	}
	return len(hop.foreignKey) > 1
}

// ParentColumns returns the key columns read from the owner side. Through
// associations join on their hop.
func (r *Reflection) ParentColumns() []string {
	if r.Through != nil {
		return r.Through.ParentColumns()
	}
	if r.Macro == BelongsTo {
		return r.foreignKey
	}
	return r.referenceKey
}

// ChildColumns returns the key columns read from the target side.
func (r *Reflection) ChildColumns() []string {
	if r.Through != nil {
		return r.Through.ChildColumns()
	}
	if r.Macro == BelongsTo {
		return r.referenceKey
	}
	return r.foreignKey
}
