package privacy

import (
	"context"
	"fmt"
	"slices"
)

// Viewer represents the authenticated user making a request.
type Viewer interface {
	// GetID returns the viewer's unique identifier.
	GetID() string
	// GetRoles returns the viewer's roles, most significant first.
	GetRoles() []string
	// GetTenantID returns the viewer's tenant identifier, or "".
	GetTenantID() string
}

type viewerCtxKey struct{}

// WithViewer returns a new context with the viewer attached.
func WithViewer(ctx context.Context, viewer Viewer) context.Context {
	return context.WithValue(ctx, viewerCtxKey{}, viewer)
}

// ViewerFromContext retrieves the viewer from the context, or nil.
func ViewerFromContext(ctx context.Context) Viewer {
	v, _ := ctx.Value(viewerCtxKey{}).(Viewer)
	return v
}

// SimpleViewer is a basic implementation of the Viewer interface.
type SimpleViewer struct {
	UserID   string
	Roles    []string
	TenantID string
}

// GetID returns the user ID.
func (v *SimpleViewer) GetID() string {
	return v.UserID
}

// GetRoles returns the user's roles.
func (v *SimpleViewer) GetRoles() []string {
	return v.Roles
}

// GetTenantID returns the tenant ID.
func (v *SimpleViewer) GetTenantID() string {
	return v.TenantID
}

// DenyIfNoViewer returns a rule that denies access if no viewer is present
// in the context.
//
//	privacy.Policy{
//	    privacy.DenyIfNoViewer(),
//	    privacy.HasRole("admin"),
//	    privacy.AlwaysDenyRule(),
//	}
func DenyIfNoViewer() Rule {
	return ContextRule(func(ctx context.Context) error {
		if ViewerFromContext(ctx) == nil {
			return Denyf("datagraph/privacy: viewer required")
		}
		return Skip
	})
}

// HasRole returns a rule that allows access if the viewer has the role, and
// skips otherwise.
func HasRole(role string) Rule {
	return HasAnyRole(role)
}

// HasAnyRole returns a rule that allows access if the viewer has any of the
// roles, and skips otherwise.
func HasAnyRole(roles ...string) Rule {
	return ContextRule(func(ctx context.Context) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		for _, role := range roles {
			if slices.Contains(viewer.GetRoles(), role) {
				return Allow
			}
		}
		return Skip
	})
}

// IsOwner returns a write rule that allows the request if the payload
// attribute equals the viewer's ID.
//
//	privacy.Policy{
//	    privacy.DenyIfNoViewer(),
//	    privacy.IsOwner("user_id"),
//	    privacy.DenyOperationRule(privacy.OpWrite),
//	}
func IsOwner(attr string) Rule {
	return OnOperation(RuleFunc(func(ctx context.Context, r *Request) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		v, ok := r.Attr(attr)
		if !ok {
			return Skip
		}
		if fmt.Sprint(v) == viewer.GetID() {
			return Allow
		}
		return Skip
	}), OpWrite)
}

// TenantRule returns a write rule that denies payloads whose attribute
// differs from the viewer's tenant. Viewers without a tenant and payloads
// without the attribute are skipped.
func TenantRule(attr string) Rule {
	return OnOperation(RuleFunc(func(ctx context.Context, r *Request) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil || viewer.GetTenantID() == "" {
			return Skip
		}
		v, ok := r.Attr(attr)
		if !ok {
			return Skip
		}
		if fmt.Sprint(v) == viewer.GetTenantID() {
			return Allow
		}
		return Denyf("datagraph/privacy: tenant mismatch")
	}), OpWrite)
}

// RequireTenant returns a rule denying viewers without a tenant.
func RequireTenant() Rule {
	return ContextRule(func(ctx context.Context) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Denyf("datagraph/privacy: viewer required")
		}
		if viewer.GetTenantID() == "" {
			return Denyf("datagraph/privacy: tenant required")
		}
		return Skip
	})
}
