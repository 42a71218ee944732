// Package privacy puts viewer-based authorization in front of a graph.
//
// A Policy is an ordered list of rules returning Allow, Deny or Skip
// decisions. Evaluation stops at the first rule that does not skip:
//
//	policy := privacy.Policy{
//	    privacy.DenyIfNoViewer(),
//	    privacy.HasRole("admin"),
//	    privacy.AllowOperationRule(privacy.OpRead),
//	    privacy.IsOwner("user_id"),
//	    privacy.AlwaysDenyRule(),
//	}
//
// A Guard binds each viewer to a graph subset by role, evaluates the policy
// and then checks the request against the subset:
//
//	guard := privacy.NewGuard(privacy.Static(g),
//	    privacy.WithRoleSubset("guest", "public"),
//	    privacy.WithPolicy(policy...),
//	)
//	ctx = privacy.WithViewer(ctx, &privacy.SimpleViewer{UserID: "7", Roles: []string{"guest"}})
//	if _, err := guard.Read(ctx, paths); err != nil {
//	    return err // *datagraph.PrivacyError
//	}
//	node, err := guard.Node(ctx)
//
// Viewers without a bound role use the "default" subset. Denials, including
// paths or attributes outside the subset, are reported as
// *datagraph.PrivacyError wrapping the decision.
package privacy
