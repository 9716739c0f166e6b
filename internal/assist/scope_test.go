package assist

import (
	"context"
	"errors"
	"testing"
)

type staticMemberships struct {
	byPrincipal map[string][]string
	err         error
}

func (s staticMemberships) OrgIDsForPrincipal(_ context.Context, principalID string) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.byPrincipal[principalID], nil
}

func TestResolve_SuperadminGetsGlobalScope(t *testing.T) {
	r := NewScopeResolver(staticMemberships{})
	qc, ok, err := r.Resolve(context.Background(), Session{
		PrincipalID: "p-1",
		DisplayName: "Root",
		RoleSlug:    "Superadmin",
		ActiveOrgID: "org-A",
	})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !ok {
		t.Fatal("expected resolvable scope")
	}
	if qc.Scope != ScopeGlobal {
		t.Fatalf("scope=%s", qc.Scope)
	}
	if qc.AllowedOrgIDs != nil {
		t.Fatalf("allowed=%v, want unrestricted", qc.AllowedOrgIDs)
	}
	if !qc.CanCompareOrgs {
		t.Fatal("superadmin must compare orgs")
	}
	if qc.ActiveOrgID != "org-A" {
		t.Fatalf("active=%s", qc.ActiveOrgID)
	}
	if !qc.Allows("org-anything") {
		t.Fatal("global scope must allow any org")
	}
}

func TestResolve_MemberGetsOrgScope(t *testing.T) {
	r := NewScopeResolver(staticMemberships{byPrincipal: map[string][]string{
		"p-2": {"org-A", "org-B"},
	}})
	qc, ok, err := r.Resolve(context.Background(), Session{PrincipalID: "p-2", RoleSlug: "member"})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !ok {
		t.Fatal("expected resolvable scope")
	}
	if qc.Scope != ScopeOrg {
		t.Fatalf("scope=%s", qc.Scope)
	}
	if len(qc.AllowedOrgIDs) != 2 || qc.AllowedOrgIDs[0] != "org-A" {
		t.Fatalf("allowed=%v", qc.AllowedOrgIDs)
	}
	if qc.CanCompareOrgs {
		t.Fatal("org scope must not compare orgs")
	}
	if qc.ActiveOrgID != "org-A" {
		t.Fatalf("active=%s", qc.ActiveOrgID)
	}
	if qc.Allows("org-C") {
		t.Fatal("org-C must be outside scope")
	}
}

func TestResolve_NoMembershipIsUnresolvable(t *testing.T) {
	r := NewScopeResolver(staticMemberships{byPrincipal: map[string][]string{}})
	_, ok, err := r.Resolve(context.Background(), Session{PrincipalID: "p-3", RoleSlug: "member"})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if ok {
		t.Fatal("expected unresolvable scope")
	}
}

func TestResolve_MembershipLookupError(t *testing.T) {
	wantErr := errors.New("store down")
	r := NewScopeResolver(staticMemberships{err: wantErr})
	_, ok, err := r.Resolve(context.Background(), Session{PrincipalID: "p-4", RoleSlug: "member"})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err=%v", err)
	}
	if ok {
		t.Fatal("ok must be false on lookup error")
	}
}

func TestResolve_SessionActiveOrgPreferred(t *testing.T) {
	r := NewScopeResolver(staticMemberships{byPrincipal: map[string][]string{
		"p-5": {"org-A", "org-B"},
	}})
	qc, ok, err := r.Resolve(context.Background(), Session{
		PrincipalID: "p-5",
		RoleSlug:    "member",
		ActiveOrgID: "org-B",
	})
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if qc.ActiveOrgID != "org-B" {
		t.Fatalf("active=%s", qc.ActiveOrgID)
	}
}
