package graph

import (
	"fmt"
	"maps"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/syssam/datagraph/schema"
)

// Builder assembles a Graph in place. It is owned by a single goroutine and
// discarded after Build; the Graphs it builds do not share its state.
type Builder struct {
	node    *Node
	aliases map[string][]string
	subsets map[string][]string
}

// NewBuilder returns a Builder over the root node.
func NewBuilder(node *Node) *Builder {
	return &Builder{
		node:    node,
		aliases: make(map[string][]string),
		subsets: make(map[string][]string),
	}
}

// Alias defines an alias, replacing any previous definition.
func (b *Builder) Alias(name string, paths ...string) *Builder {
	b.aliases[name] = slices.Clone(paths)
	return b
}

// Register binds the named subset to paths. Paths are resolved when the
// Graph is built, against the final alias table.
func (b *Builder) Register(name string, paths []string) *Builder {
	if paths == nil {
		paths = []string{}
	}
	b.subsets[name] = slices.Clone(paths)
	return b
}

// Unregister removes the named subset, including the default one.
func (b *Builder) Unregister(name string) *Builder {
	b.subsets[name] = nil
	return b
}

// Build returns the Graph described so far.
func (b *Builder) Build() *Graph {
	return NewGraph(b.node, GraphOptions{
		Aliases: maps.Clone(b.aliases),
		Subsets: maps.Clone(b.subsets),
	})
}

// Definition is the YAML form of a Graph:
//
//	type: Job
//	options:
//	  include: employees
//	aliases:
//	  names: [employees.first_name, employees.last_name]
//	subsets:
//	  public: [name, names]
type Definition struct {
	Type         string  `yaml:"type"`
	Options      Options `yaml:"options,omitempty"`
	GraphOptions `yaml:",inline"`
}

// Build returns the Graph described by the definition.
func (d *Definition) Build(reg *schema.Registry) (*Graph, error) {
	node, err := NewNode(reg, d.Type, d.Options)
	if err != nil {
		return nil, err
	}
	return NewGraph(node, d.GraphOptions), nil
}

// Load decodes a YAML graph definition and builds it against reg.
func Load(reg *schema.Registry, data []byte) (*Graph, error) {
	var d Definition
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("graph: decode definition: %w", err)
	}
	return d.Build(reg)
}
