package assist

import (
	"context"
	"strings"
)

// Scope is the breadth of organizations a caller may query.
type Scope string

const (
	ScopeOrg    Scope = "org"
	ScopeGlobal Scope = "global"
)

// QueryContext carries everything the executor needs to gate a call. It is
// built once per request from live membership state and never cached or
// mutated afterwards.
type QueryContext struct {
	Scope Scope
	// AllowedOrgIDs is the ordered set of organizations the caller may
	// reference. nil means unrestricted, which only occurs with ScopeGlobal.
	AllowedOrgIDs  []string
	CanCompareOrgs bool
	CallerID       string
	CallerName     string
	// ActiveOrgID defaults an omitted org_id parameter. May be empty for
	// global-scope callers with no selected organization.
	ActiveOrgID string
}

// Allows reports whether the caller may reference orgID.
func (c QueryContext) Allows(orgID string) bool {
	if c.Scope == ScopeGlobal && c.AllowedOrgIDs == nil {
		return true
	}
	for _, id := range c.AllowedOrgIDs {
		if id == orgID {
			return true
		}
	}
	return false
}

// defaultOrgID picks the org used when the caller omits org_id: the active
// organization first, else the first allowed one.
func (c QueryContext) defaultOrgID() string {
	if c.ActiveOrgID != "" {
		return c.ActiveOrgID
	}
	if len(c.AllowedOrgIDs) > 0 {
		return c.AllowedOrgIDs[0]
	}
	return ""
}

// Session is the already-authenticated principal handed in by the session
// layer. It never carries credentials.
type Session struct {
	PrincipalID string
	DisplayName string
	RoleSlug    string
	// ActiveOrgID is the caller's currently selected organization, if any.
	ActiveOrgID string
}

// RoleSuperadmin grants global scope. Matches pkg/authz's role registry.
const RoleSuperadmin = "superadmin"

// MembershipSource looks up the organizations a principal belongs to,
// ordered. Implementations must read live state; the resolver is called
// fresh on every request.
type MembershipSource interface {
	OrgIDsForPrincipal(ctx context.Context, principalID string) ([]string, error)
}

type ScopeResolver struct {
	memberships MembershipSource
}

func NewScopeResolver(memberships MembershipSource) *ScopeResolver {
	return &ScopeResolver{memberships: memberships}
}

// Resolve translates a session into a QueryContext. ok=false means the
// principal has no resolvable scope (no membership and no elevated role);
// the caller must reject the request as unauthorized. The error return is
// reserved for membership-store failures.
func (r *ScopeResolver) Resolve(ctx context.Context, sess Session) (QueryContext, bool, error) {
	role := strings.ToLower(strings.TrimSpace(sess.RoleSlug))
	if role == RoleSuperadmin {
		return QueryContext{
			Scope:          ScopeGlobal,
			AllowedOrgIDs:  nil,
			CanCompareOrgs: true,
			CallerID:       sess.PrincipalID,
			CallerName:     sess.DisplayName,
			ActiveOrgID:    sess.ActiveOrgID,
		}, true, nil
	}

	if r.memberships == nil {
		return QueryContext{}, false, nil
	}
	orgIDs, err := r.memberships.OrgIDsForPrincipal(ctx, sess.PrincipalID)
	if err != nil {
		return QueryContext{}, false, err
	}
	if len(orgIDs) == 0 {
		return QueryContext{}, false, nil
	}

	active := sess.ActiveOrgID
	if active == "" {
		active = orgIDs[0]
	}
	return QueryContext{
		Scope:          ScopeOrg,
		AllowedOrgIDs:  orgIDs,
		CanCompareOrgs: false,
		CallerID:       sess.PrincipalID,
		CallerName:     sess.DisplayName,
		ActiveOrgID:    active,
	}, true, nil
}
