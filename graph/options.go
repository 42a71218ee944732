package graph

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Options configure a Node. They are the whole configuration surface of a
// Node; anything else is derived from the schema.
//
// A non-nil Only or Except counts as given, even when empty. Giving both is
// an error.
type Options struct {
	// Only keeps the listed columns, in the listed order.
	Only []string `yaml:"only,omitempty"`
	// Except drops the listed columns.
	Except []string `yaml:"except,omitempty"`
	// Methods names computed attributes. They are not checked against the type.
	Methods []string `yaml:"methods,omitempty"`
	// Include lists the associations to load, each with its own options.
	Include Includes `yaml:"include,omitempty"`
	// Always lists columns selected in addition to the primary key, even when
	// filtered out of the visible columns.
	Always []string `yaml:"always,omitempty"`
}

// Include is one included association.
type Include struct {
	Name    string
	Options Options
}

// Includes is an ordered list of included associations.
//
// In YAML it is written as a bare name, a list of names (or single-entry
// mappings), or a mapping from name to nested options:
//
//	include: employees
//	include: [employees, dept]
//	include:
//	  employees: {only: [first_name]}
type Includes []Include

// IncludeNames returns includes without options for the given names.
func IncludeNames(names ...string) Includes {
	inc := make(Includes, len(names))
	for i, name := range names {
		inc[i] = Include{Name: name}
	}
	return inc
}

// Names returns the included association names in order.
func (inc Includes) Names() []string {
	names := make([]string, len(inc))
	for i, in := range inc {
		names[i] = in.Name
	}
	return names
}

// ParseOptions decodes node options from YAML.
func ParseOptions(data []byte) (Options, error) {
	var opts Options
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, fmt.Errorf("graph: decode options: %w", err)
	}
	return opts, nil
}

// UnmarshalYAML implements yaml.Unmarshaler. Column lists accept a bare
// scalar as a single-element list.
func (o *Options) UnmarshalYAML(n *yaml.Node) error {
	var raw struct {
		Only    yaml.Node `yaml:"only"`
		Except  yaml.Node `yaml:"except"`
		Methods yaml.Node `yaml:"methods"`
		Include Includes  `yaml:"include"`
		Always  yaml.Node `yaml:"always"`
	}
	if err := n.Decode(&raw); err != nil {
		return err
	}
	var err error
	if o.Only, err = decodeNames(&raw.Only); err != nil {
		return err
	}
	if o.Except, err = decodeNames(&raw.Except); err != nil {
		return err
	}
	if o.Methods, err = decodeNames(&raw.Methods); err != nil {
		return err
	}
	if o.Always, err = decodeNames(&raw.Always); err != nil {
		return err
	}
	o.Include = raw.Include
	return nil
}

// MarshalYAML implements yaml.Marshaler. A non-nil Only or Except is written
// even when empty, since an empty list selects no columns.
func (o Options) MarshalYAML() (any, error) {
	n := &yaml.Node{Kind: yaml.MappingNode}
	add := func(key string, v *yaml.Node) {
		n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: key}, v)
	}
	if o.Only != nil {
		add("only", namesNode(o.Only))
	}
	if o.Except != nil {
		add("except", namesNode(o.Except))
	}
	if len(o.Methods) > 0 {
		add("methods", namesNode(o.Methods))
	}
	if len(o.Include) > 0 {
		v := &yaml.Node{}
		if err := v.Encode(o.Include); err != nil {
			return nil, err
		}
		add("include", v)
	}
	if len(o.Always) > 0 {
		add("always", namesNode(o.Always))
	}
	return n, nil
}

func namesNode(names []string) *yaml.Node {
	n := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, name := range names {
		n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: name})
	}
	return n
}

// decodeNames decodes a scalar or a sequence of scalars. An absent or null
// node yields nil, an empty sequence a non-nil empty slice.
func decodeNames(n *yaml.Node) ([]string, error) {
	switch {
	case n.Kind == 0, n.Tag == "!!null":
		return nil, nil
	case n.Kind == yaml.ScalarNode:
		return []string{n.Value}, nil
	case n.Kind == yaml.SequenceNode:
		names := make([]string, 0, len(n.Content))
		if err := n.Decode(&names); err != nil {
			return nil, err
		}
		return names, nil
	}
	return nil, fmt.Errorf("graph: line %d: expected a name or a list of names", n.Line)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (inc *Includes) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			*inc = nil
			return nil
		}
		*inc = Includes{{Name: n.Value}}
	case yaml.SequenceNode:
		out := make(Includes, 0, len(n.Content))
		for _, c := range n.Content {
			switch c.Kind {
			case yaml.ScalarNode:
				out = append(out, Include{Name: c.Value})
			case yaml.MappingNode:
				var nested Includes
				if err := nested.UnmarshalYAML(c); err != nil {
					return err
				}
				out = append(out, nested...)
			default:
				return fmt.Errorf("graph: line %d: unexpected include entry", c.Line)
			}
		}
		*inc = out
	case yaml.MappingNode:
		out := make(Includes, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			in := Include{Name: k.Value}
			if v.Tag != "!!null" {
				if err := v.Decode(&in.Options); err != nil {
					return err
				}
			}
			out = append(out, in)
		}
		*inc = out
	default:
		return fmt.Errorf("graph: line %d: unexpected include", n.Line)
	}
	return nil
}

// MarshalYAML implements yaml.Marshaler. Includes are written as a mapping
// so that the output decodes back to the same options.
func (inc Includes) MarshalYAML() (any, error) {
	n := &yaml.Node{Kind: yaml.MappingNode}
	for _, in := range inc {
		v := &yaml.Node{}
		if err := v.Encode(in.Options); err != nil {
			return nil, err
		}
		n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: in.Name}, v)
	}
	return n, nil
}
