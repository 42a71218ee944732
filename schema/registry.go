package schema

import (
	"github.com/go-openapi/inflect"
	"gopkg.in/yaml.v3"

	"github.com/syssam/datagraph"
)

// DefaultPrimaryKey is used for types that do not declare a primary key.
var DefaultPrimaryKey = []string{"id"}

// Registry is a validated, immutable catalogue of types and their resolved
// associations. It is the type and association reflection consumed by graph.
type Registry struct {
	types       map[string]*Type
	order       []string
	reflections map[string]map[string]*Reflection
}

// New validates the given types, applies naming defaults and resolves every
// association. All problems are reported together in one error.
//
// The registry keeps copies of the types; later changes to the arguments are
// not observed.
func New(types ...*Type) (*Registry, error) {
	r := &Registry{
		types:       make(map[string]*Type, len(types)),
		reflections: make(map[string]map[string]*Reflection, len(types)),
	}
	var errs []error
	for _, t := range types {
		if t == nil {
			continue
		}
		if t.Name == "" {
			errs = append(errs, datagraph.NewConfigError("type without a name"))
			continue
		}
		if _, ok := r.types[t.Name]; ok {
			errs = append(errs, datagraph.NewConfigError("type %q declared twice", t.Name))
			continue
		}
		c := t.clone()
		if c.Table == "" {
			c.Table = inflect.Pluralize(inflect.Underscore(c.Name))
		}
		if len(c.PrimaryKey) == 0 {
			c.PrimaryKey = append([]string(nil), DefaultPrimaryKey...)
		}
		r.types[c.Name] = c
		r.order = append(r.order, c.Name)
	}
	// Direct associations first: through associations are resolved from them.
	for _, name := range r.order {
		owner := r.types[name]
		r.reflections[name] = make(map[string]*Reflection, len(owner.Associations))
		for _, a := range owner.Associations {
			if a.Through != "" {
				continue
			}
			refl, err := r.reflectDirect(owner, a)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			r.reflections[name][a.Name] = refl
		}
	}
	for _, name := range r.order {
		owner := r.types[name]
		for _, a := range owner.Associations {
			if a.Through == "" {
				continue
			}
			refl, err := r.reflectThrough(owner, a)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			r.reflections[name][a.Name] = refl
		}
	}
	if err := datagraph.NewAggregateError(errs...); err != nil {
		return nil, err
	}
	return r, nil
}

// Load decodes a YAML catalogue of the form
//
//	types:
//	  - name: Job
//	    columns: [id, name]
//	    associations:
//	      - {name: employees, macro: has_many, type: Emp}
//
// and builds a Registry from it.
func Load(data []byte) (*Registry, error) {
	var doc struct {
		Types []*Type `yaml:"types"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, datagraph.NewConfigError("decode schema: %v", err)
	}
	return New(doc.Types...)
}

// Type returns the type registered under name.
func (r *Registry) Type(name string) (*Type, bool) {
	t, ok := r.types[name]
	return t, ok
}

// Types returns the registered types in declaration order.
func (r *Registry) Types() []*Type {
	types := make([]*Type, len(r.order))
	for i, name := range r.order {
		types[i] = r.types[name]
	}
	return types
}

// Reflect returns the resolved association name declared on the owner type.
func (r *Registry) Reflect(owner, name string) (*Reflection, bool) {
	refl, ok := r.reflections[owner][name]
	return refl, ok
}

func (r *Registry) target(owner *Type, a *Association) (*Type, error) {
	name := a.Type
	if name == "" {
		name = inflect.Camelize(inflect.Singularize(a.Name))
	}
	t, ok := r.types[name]
	if !ok {
		return nil, datagraph.NewConfigError("%s.%s: unknown target type %q", owner.Name, a.Name, name)
	}
	return t, nil
}

func (r *Registry) reflectDirect(owner *Type, a *Association) (*Reflection, error) {
	target, err := r.target(owner, a)
	if err != nil {
		return nil, err
	}
	refl := &Reflection{Name: a.Name, Macro: a.Macro, Owner: owner, Target: target}
	switch a.Macro {
	case BelongsTo:
		refl.foreignKey = orDefault(a.ForeignKey, a.Name+"_id")
		refl.referenceKey = a.PrimaryKey
		if len(refl.referenceKey) == 0 {
			refl.referenceKey = target.PrimaryKey
		}
	case HasOne, HasMany:
		refl.foreignKey = orDefault(a.ForeignKey, inflect.Underscore(owner.Name)+"_id")
		refl.referenceKey = a.PrimaryKey
		if len(refl.referenceKey) == 0 {
			refl.referenceKey = owner.PrimaryKey
		}
	default:
		// Unsupported macros are kept so that linkage construction can reject
		// them when, and only when, they are included.
		return refl, nil
	}
	if len(refl.foreignKey) != len(refl.referenceKey) {
		return nil, datagraph.NewConfigError("%s.%s: foreign key %v and reference key %v differ in arity",
			owner.Name, a.Name, refl.foreignKey, refl.referenceKey)
	}
	return refl, nil
}

func (r *Registry) reflectThrough(owner *Type, a *Association) (*Reflection, error) {
	through, ok := r.reflections[owner.Name][a.Through]
	if !ok {
		return nil, datagraph.NewConfigError("%s.%s: unknown through association %q", owner.Name, a.Name, a.Through)
	}
	candidates := []string{a.Source, a.Name, inflect.Singularize(a.Name)}
	var source *Reflection
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if s, ok := r.reflections[through.Target.Name][c]; ok {
			source = s
			break
		}
	}
	if source == nil {
		return nil, datagraph.NewConfigError("%s.%s: no source association on %s", owner.Name, a.Name, through.Target.Name)
	}
	if a.Type != "" && a.Type != source.Target.Name {
		return nil, datagraph.NewConfigError("%s.%s: type %q does not match source target %q",
			owner.Name, a.Name, a.Type, source.Target.Name)
	}
	return &Reflection{
		Name:    a.Name,
		Macro:   a.Macro,
		Owner:   owner,
		Target:  source.Target,
		Through: through,
		Source:  source,
		// Through associations join on their hop.
		foreignKey:   through.foreignKey,
		referenceKey: through.referenceKey,
	}, nil
}

func orDefault(cols []string, def string) []string {
	if len(cols) > 0 {
		return cols
	}
	return []string{def}
}
