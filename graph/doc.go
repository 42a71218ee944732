// Package graph projects and eagerly loads trees of related records.
//
// A Node describes, for one entity type, which columns and computed
// attributes are visible and which associations are included, each through
// a Linkage owning the child Node. Loading a Node runs one query for its own
// rows and then one batched query per included association per level, never
// one query per row.
//
//	reg, _ := schema.New(job, emp)
//	node, err := graph.NewNode(reg, "Job", graph.Options{
//	    Include: graph.IncludeNames("employees"),
//	})
//	jobs, err := node.Find(ctx, querier, &datagraph.Query{})
//	emps, err := jobs[0].Many("employees")
//
// # Paths
//
// Attributes are addressed by dotted paths such as "employees.first_name".
// Paths returns what a Node shows, GetPaths what a read request may address
// (including keys needed for loading), and SetPaths what a write payload may
// carry, with nested writes under "<association>_attributes".
//
// Only and Except restrict a Node to, or without, a list of paths and return
// a new Node; Nodes are never modified after construction.
//
// # Graphs and subsets
//
// A Graph wraps a root Node with aliases and named subsets. A subset is a
// restricted Node, materialized once, that bounds a class of requests:
//
//	g := graph.NewGraph(node, graph.GraphOptions{
//	    Subsets: map[string][]string{"names": {"employees.first_name"}},
//	})
//	_, err := g.Validate("names", []string{"employees.salary"})
//	// err is a *datagraph.InaccessiblePathError
//
// Register and Unregister return new Graphs. Builder assembles a Graph in
// place before it is shared, and Load builds one from YAML.
//
// # Concurrency
//
// Nodes, Linkages and Graphs are safe for concurrent use. Sibling linkages
// run one after the other unless the context carries WithParallelism.
package graph
