package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	expensepersistence "github.com/pricewatch/pricewatch/modules/expense/infrastructure/persistence"
	pricebookpersistence "github.com/pricewatch/pricewatch/modules/pricebook/infrastructure/persistence"
)

const (
	testTenantID      = "00000000-0000-0000-0000-000000000001"
	testOtherTenantID = "00000000-0000-0000-0000-000000000002"
)

type staticIdentityProvider struct {
	ident authenticatedIdentity
	err   error
}

func (s staticIdentityProvider) AuthenticatePassword(context.Context, Tenant, string, string) (authenticatedIdentity, error) {
	return s.ident, s.err
}

func localTenancyResolver() TenancyResolver {
	return newStaticTenancyResolver(map[string]Tenant{
		"localhost":        {ID: testTenantID, Domain: "localhost", Name: "Local Org"},
		"globex.localhost": {ID: testOtherTenantID, Domain: "globex.localhost", Name: "Globex Kitchens"},
	})
}

func mustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	return wd
}

func mustAllowlistPathFromWd(t *testing.T, wd string) string {
	t.Helper()
	return filepath.Clean(filepath.Join(wd, "..", "..", "config", "routing", "allowlist.yaml"))
}

type testStores struct {
	prices   *pricebookpersistence.PriceMemoryStore
	expenses *expensepersistence.ExpenseMemoryStore
}

func newTestHandler(t *testing.T, roleSlug string, opts HandlerOptions) (http.Handler, testStores) {
	t.Helper()
	wd := mustGetwd(t)
	t.Setenv("ALLOWLIST_PATH", mustAllowlistPathFromWd(t, wd))

	st := testStores{
		prices:   pricebookpersistence.NewPriceMemoryStore(),
		expenses: expensepersistence.NewExpenseMemoryStore(),
	}
	if opts.TenancyResolver == nil {
		opts.TenancyResolver = localTenancyResolver()
	}
	if opts.IdentityProvider == nil {
		opts.IdentityProvider = staticIdentityProvider{ident: authenticatedIdentity{
			KratosIdentityID: "00000000-0000-0000-0000-0000000000aa",
			Email:            "user@example.invalid",
			RoleSlug:         roleSlug,
		}}
	}
	if opts.PriceStore == nil {
		opts.PriceStore = st.prices
	}
	if opts.ExpenseStore == nil {
		opts.ExpenseStore = st.expenses
	}
	if opts.Principals == nil {
		opts.Principals = newMemoryPrincipalStore()
	}
	if opts.Sessions == nil {
		opts.Sessions = newMemorySessionStore()
	}
	if opts.Memberships == nil {
		opts.Memberships = newMemoryMembershipStore()
	}

	h, err := NewHandlerWithOptions(opts)
	if err != nil {
		t.Fatal(err)
	}
	return h, st
}

func loginForTest(t *testing.T, h http.Handler) *http.Cookie {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "http://localhost/iam/api/sessions", strings.NewReader(`{"email":"user@example.invalid","password":"pw"}`))
	req.Host = "localhost"
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("login status=%d body=%s", rec.Code, rec.Body.String())
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("sid cookie missing")
	}
	return cookies[0]
}

func TestNewHandler_Health(t *testing.T) {
	h, _ := newTestHandler(t, "tenant-admin", HandlerOptions{})

	for _, path := range []string{"/health", "/healthz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("path=%s status=%d", path, rec.Code)
		}
	}
}

func TestHandler_RootServesBanner(t *testing.T) {
	h, _ := newTestHandler(t, "tenant-admin", HandlerOptions{})

	req := httptest.NewRequest(http.MethodGet, "http://localhost/", nil)
	req.Host = "localhost"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "pricewatch") {
		t.Fatalf("body=%s", rec.Body.String())
	}
}

func TestHandler_UnknownTenantHost(t *testing.T) {
	h, _ := newTestHandler(t, "tenant-admin", HandlerOptions{})

	req := httptest.NewRequest(http.MethodGet, "http://nowhere.invalid/assist/api/templates", nil)
	req.Host = "nowhere.invalid"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "tenant_not_found") {
		t.Fatalf("body=%s", rec.Body.String())
	}
}

func TestHandler_UnauthenticatedAPIRejected(t *testing.T) {
	h, _ := newTestHandler(t, "tenant-admin", HandlerOptions{})

	req := httptest.NewRequest(http.MethodGet, "http://localhost/assist/api/templates", nil)
	req.Host = "localhost"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "unauthorized") {
		t.Fatalf("body=%s", rec.Body.String())
	}
}

func TestHandler_SessionBoundToTenant(t *testing.T) {
	h, _ := newTestHandler(t, "tenant-admin", HandlerOptions{})
	sid := loginForTest(t, h)

	// A session minted for localhost must not open the other tenant.
	req := httptest.NewRequest(http.MethodGet, "http://globex.localhost/assist/api/templates", nil)
	req.Host = "globex.localhost"
	req.AddCookie(sid)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	h, _ := newTestHandler(t, "tenant-admin", HandlerOptions{
		IdentityProvider: staticIdentityProvider{err: errInvalidCredentials},
	})

	req := httptest.NewRequest(http.MethodPost, "http://localhost/iam/api/sessions", strings.NewReader(`{"email":"user@example.invalid","password":"bad"}`))
	req.Host = "localhost"
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "invalid_credentials") {
		t.Fatalf("body=%s", rec.Body.String())
	}
}

func TestLogin_RejectsUnknownRole(t *testing.T) {
	h, _ := newTestHandler(t, "tenant-admin", HandlerOptions{
		IdentityProvider: staticIdentityProvider{ident: authenticatedIdentity{
			KratosIdentityID: "00000000-0000-0000-0000-0000000000aa",
			Email:            "user@example.invalid",
			RoleSlug:         "superuser",
		}},
	})

	req := httptest.NewRequest(http.MethodPost, "http://localhost/iam/api/sessions", strings.NewReader(`{"email":"user@example.invalid","password":"pw"}`))
	req.Host = "localhost"
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "invalid_identity_role") {
		t.Fatalf("body=%s", rec.Body.String())
	}
}

func TestLogin_MissingFields(t *testing.T) {
	h, _ := newTestHandler(t, "tenant-admin", HandlerOptions{})

	req := httptest.NewRequest(http.MethodPost, "http://localhost/iam/api/sessions", strings.NewReader(`{"email":"user@example.invalid"}`))
	req.Host = "localhost"
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestLogout_RevokesSession(t *testing.T) {
	h, _ := newTestHandler(t, "tenant-admin", HandlerOptions{})
	sid := loginForTest(t, h)

	req := httptest.NewRequest(http.MethodPost, "http://localhost/logout", nil)
	req.Host = "localhost"
	req.AddCookie(sid)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("logout status=%d body=%s", rec.Code, rec.Body.String())
	}

	after := httptest.NewRequest(http.MethodGet, "http://localhost/assist/api/templates", nil)
	after.Host = "localhost"
	after.AddCookie(sid)
	recAfter := httptest.NewRecorder()
	h.ServeHTTP(recAfter, after)
	if recAfter.Code != http.StatusUnauthorized {
		t.Fatalf("status after logout=%d body=%s", recAfter.Code, recAfter.Body.String())
	}
}

func TestViewerCannotWrite(t *testing.T) {
	h, _ := newTestHandler(t, "tenant-viewer", HandlerOptions{})
	sid := loginForTest(t, h)

	req := httptest.NewRequest(http.MethodPost, "http://localhost/pricebook/api/items", strings.NewReader(`{"name":"eggs"}`))
	req.Host = "localhost"
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(sid)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "forbidden") {
		t.Fatalf("body=%s", rec.Body.String())
	}
}

func TestViewerCanRead(t *testing.T) {
	h, _ := newTestHandler(t, "tenant-viewer", HandlerOptions{})
	sid := loginForTest(t, h)

	req := httptest.NewRequest(http.MethodGet, "http://localhost/pricebook/api/items", nil)
	req.Host = "localhost"
	req.AddCookie(sid)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestMustNewHandler_PanicsOnBadPath(t *testing.T) {
	t.Setenv("ALLOWLIST_PATH", "no-such-file.yaml")

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	_ = MustNewHandler()
}

func TestDefaultAllowlistPath_Errors(t *testing.T) {
	wd := mustGetwd(t)
	tmp := t.TempDir()
	if err := os.Chdir(tmp); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	if _, err := defaultAllowlistPath(); err == nil {
		t.Fatal("expected error")
	}
}
