package privacy

import (
	"context"
	"log/slog"

	"github.com/syssam/datagraph"
	"github.com/syssam/datagraph/graph"
)

// Source supplies the graph a Guard checks against. It is consulted on
// every call, so a source may swap graphs at runtime.
type Source interface {
	Graph() *graph.Graph
}

type staticSource struct{ g *graph.Graph }

func (s staticSource) Graph() *graph.Graph { return s.g }

// Static returns a Source that always supplies g.
func Static(g *graph.Graph) Source {
	return staticSource{g}
}

// Guard binds viewers to graph subsets by role, evaluates a policy, then
// validates the requested read paths or write payload against the subset.
type Guard struct {
	src    Source
	roles  map[string]string
	policy Policy
	logger *slog.Logger
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithRoleSubset binds viewers having role to the named subset.
func WithRoleSubset(role, subset string) GuardOption {
	return func(g *Guard) {
		g.roles[role] = subset
	}
}

// WithPolicy sets the rules evaluated before validation.
func WithPolicy(rules ...Rule) GuardOption {
	return func(g *Guard) {
		g.policy = append(g.policy, rules...)
	}
}

// WithLogger sets the logger denials are reported to.
func WithLogger(logger *slog.Logger) GuardOption {
	return func(g *Guard) {
		g.logger = logger
	}
}

// NewGuard returns a Guard over the graphs of src.
func NewGuard(src Source, opts ...GuardOption) *Guard {
	g := &Guard{
		src:    src,
		roles:  make(map[string]string),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SubsetFor returns the subset of the viewer in ctx: the subset bound to
// the first of its roles that has one, or the default subset.
func (g *Guard) SubsetFor(ctx context.Context) string {
	if v := ViewerFromContext(ctx); v != nil {
		for _, role := range v.GetRoles() {
			if subset, ok := g.roles[role]; ok {
				return subset
			}
		}
	}
	return graph.DefaultSubset
}

// Read authorizes reading paths and returns them unchanged.
func (g *Guard) Read(ctx context.Context, paths []string) ([]string, error) {
	gr, req, err := g.check(ctx, &Request{Op: OpRead, Paths: paths})
	if err != nil {
		return nil, err
	}
	if _, err := gr.Validate(req.Subset, paths); err != nil {
		return nil, g.deny(ctx, req, err)
	}
	return paths, nil
}

// Write authorizes the attribute payload and returns it unchanged.
func (g *Guard) Write(ctx context.Context, attrs any) (any, error) {
	gr, req, err := g.check(ctx, &Request{Op: OpWrite, Attrs: attrs})
	if err != nil {
		return nil, err
	}
	if _, err := gr.ValidateAttrs(req.Subset, attrs); err != nil {
		if datagraph.IsInaccessiblePath(err) {
			return nil, g.deny(ctx, req, err)
		}
		return nil, err
	}
	return attrs, nil
}

// Node authorizes a read and returns the viewer's subset Node, ready for
// Find or Paginate.
func (g *Guard) Node(ctx context.Context) (*graph.Node, error) {
	gr, req, err := g.check(ctx, &Request{Op: OpRead})
	if err != nil {
		return nil, err
	}
	return gr.Subset(req.Subset)
}

// Project authorizes a read and projects recs through the viewer's subset.
func (g *Guard) Project(ctx context.Context, recs []*datagraph.Record) ([]map[string]any, error) {
	gr, req, err := g.check(ctx, &Request{Op: OpRead})
	if err != nil {
		return nil, err
	}
	return gr.Project(req.Subset, recs)
}

func (g *Guard) check(ctx context.Context, req *Request) (*graph.Graph, *Request, error) {
	gr := g.src.Graph()
	if gr == nil {
		return nil, nil, datagraph.NewConfigError("privacy: no graph loaded")
	}
	req.Subset = g.SubsetFor(ctx)
	if _, err := gr.Subset(req.Subset); err != nil {
		return nil, nil, err
	}
	if err := g.policy.Eval(ctx, req); err != nil {
		return nil, nil, g.deny(ctx, req, err)
	}
	return gr, req, nil
}

func (g *Guard) deny(ctx context.Context, req *Request, err error) error {
	g.logger.DebugContext(ctx, "privacy denied",
		slog.String("op", string(req.Op)),
		slog.String("subset", req.Subset),
		slog.Any("error", err),
	)
	return datagraph.NewPrivacyError(req.Subset, string(req.Op), err)
}
