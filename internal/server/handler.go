package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pricewatch/pricewatch/internal/assist"
	"github.com/pricewatch/pricewatch/internal/routing"
	expensepersistence "github.com/pricewatch/pricewatch/modules/expense/infrastructure/persistence"
	pricebookpersistence "github.com/pricewatch/pricewatch/modules/pricebook/infrastructure/persistence"
	"github.com/pricewatch/pricewatch/pkg/authz"
)

func NewHandler() (http.Handler, error) {
	return NewHandlerWithOptions(HandlerOptions{})
}

type HandlerOptions struct {
	TenancyResolver  TenancyResolver
	IdentityProvider identityProvider
	PriceStore       PriceStore
	ExpenseStore     ExpenseStore
	Generator        assist.TextGenerator
	Principals       principalStore
	Sessions         sessionStore
	Memberships      membershipStore
}

func NewHandlerWithOptions(opts HandlerOptions) (http.Handler, error) {
	allowlistPath := os.Getenv("ALLOWLIST_PATH")
	if allowlistPath == "" {
		p, err := defaultAllowlistPath()
		if err != nil {
			return nil, err
		}
		allowlistPath = p
	}

	a, err := routing.LoadAllowlist(allowlistPath)
	if err != nil {
		return nil, err
	}

	classifier, err := routing.NewClassifier(a, "server")
	if err != nil {
		return nil, err
	}

	priceStore := opts.PriceStore
	expenseStore := opts.ExpenseStore
	tenancyResolver := opts.TenancyResolver
	identityProvider := opts.IdentityProvider
	principals := opts.Principals
	sessions := opts.Sessions
	memberships := opts.Memberships

	var pgPool *pgxpool.Pool
	if priceStore == nil || expenseStore == nil {
		dsn := dbDSNFromEnv()
		pool, err := pgxpool.New(context.Background(), dsn)
		if err != nil {
			return nil, err
		}
		pgPool = pool
		if priceStore == nil {
			priceStore = pricebookpersistence.NewPricePGStore(pgPool)
		}
		if expenseStore == nil {
			expenseStore = expensepersistence.NewExpensePGStore(pgPool)
		}
	}

	if tenancyResolver == nil {
		if pgPool != nil {
			tenancyResolver = newTenancyDBResolver(pgPool)
		} else {
			tenants, err := loadTenants()
			if err != nil {
				return nil, err
			}
			tenancyResolver = newStaticTenancyResolver(tenants)
		}
	}

	if principals == nil {
		principals = newPrincipalStore(pgPool)
	}
	if sessions == nil {
		sessions = newSessionStore(pgPool)
	}
	if memberships == nil {
		memberships = newMembershipStore(pgPool)
	}

	authorizer, err := loadAuthorizer()
	if err != nil {
		return nil, err
	}

	executor := assist.NewExecutor(priceStore, expenseStore)
	scopes := assist.NewScopeResolver(memberships)
	var chat *assist.ChatService
	if opts.Generator != nil {
		chat = assist.NewChatService(executor, opts.Generator)
	}

	router := routing.NewRouter(classifier)

	router.Handle(routing.RouteClassUI, http.MethodGet, "/", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("pricewatch\n"))
	}))

	router.Handle(routing.RouteClassOps, http.MethodGet, "/health", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}))
	router.Handle(routing.RouteClassOps, http.MethodGet, "/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}))

	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/iam/api/sessions", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenant, _ := currentTenant(r.Context())

		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusUnprocessableEntity, "invalid_json", "invalid json")
			return
		}
		email := strings.TrimSpace(req.Email)
		password := req.Password
		if email == "" || strings.TrimSpace(password) == "" {
			routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusUnprocessableEntity, "invalid_form", "email and password required")
			return
		}

		provider := identityProvider
		if provider == nil {
			p, err := newKratosIdentityProviderFromEnv()
			if err != nil {
				routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusInternalServerError, "identity_provider_error", "identity provider error")
				return
			}
			provider = p
		}

		ident, err := provider.AuthenticatePassword(r.Context(), tenant, email, password)
		if err != nil {
			if errors.Is(err, errInvalidCredentials) {
				routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusUnprocessableEntity, "invalid_credentials", "invalid credentials")
				return
			}
			routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusInternalServerError, "identity_error", "identity error")
			return
		}

		roleSlug := strings.TrimSpace(strings.ToLower(ident.RoleSlug))
		if roleSlug == "" {
			roleSlug = authz.RoleTenantViewer
		}
		if roleSlug != authz.RoleTenantAdmin && roleSlug != authz.RoleTenantViewer {
			routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusUnprocessableEntity, "invalid_identity_role", "invalid identity role")
			return
		}

		p, err := principals.UpsertFromKratos(r.Context(), tenant.ID, ident.Email, roleSlug, ident.KratosIdentityID)
		if err != nil {
			routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusInternalServerError, "principal_error", "principal error")
			return
		}

		// Login establishes membership in the home organization; extra
		// grants come from the memberships table directly.
		if err := memberships.Grant(r.Context(), p.ID, tenant.ID); err != nil {
			routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusInternalServerError, "membership_error", "membership error")
			return
		}

		expiresAt := time.Now().Add(sidTTLFromEnv())
		sid, err := sessions.Create(r.Context(), tenant.ID, p.ID, expiresAt, r.RemoteAddr, r.UserAgent())
		if err != nil {
			routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusInternalServerError, "session_error", "session error")
			return
		}
		setSIDCookie(w, sid)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusNoContent)
	}))

	router.Handle(routing.RouteClassAuthn, http.MethodPost, "/logout", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sid, ok := readSID(r); ok {
			_ = sessions.Revoke(r.Context(), sid)
		}
		clearSIDCookie(w)
		w.WriteHeader(http.StatusNoContent)
	}))

	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/assist/api/templates", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleAssistTemplatesAPI(w, r, scopes, executor)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/assist/api/query", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleAssistQueryAPI(w, r, scopes, executor)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/assist/api/chat", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleAssistChatAPI(w, r, scopes, executor, chat)
	}))

	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/pricebook/api/items", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlePricebookItemsAPI(w, r, priceStore)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/pricebook/api/items", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlePricebookItemsAPI(w, r, priceStore)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/pricebook/api/prices", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlePricebookPricesAPI(w, r, priceStore)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/pricebook/api/prices", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlePricebookPricesAPI(w, r, priceStore)
	}))

	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/expense/api/expenses", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleExpensesAPI(w, r, expenseStore)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/expense/api/expenses", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleExpensesAPI(w, r, expenseStore)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/expense/api/recurring", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleRecurringAPI(w, r, expenseStore)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/expense/api/recurring", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleRecurringAPI(w, r, expenseStore)
	}))

	guarded := withTenantAndSession(classifier, tenancyResolver, principals, sessions, withAuthz(classifier, authorizer, router))

	mux := http.NewServeMux()
	mux.Handle("/", guarded)
	return mux, nil
}

func MustNewHandler() http.Handler {
	h, err := NewHandler()
	if err != nil {
		panic(errors.New("server: failed to build handler: " + err.Error()))
	}
	return h
}

func defaultAllowlistPath() (string, error) {
	path := "config/routing/allowlist.yaml"
	for range 8 {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: allowlist not found")
}

func withTenantAndSession(classifier *routing.Classifier, tenants TenancyResolver, principals principalStore, sessions sessionStore, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		rc := routing.RouteClassUI
		if classifier != nil {
			rc = classifier.Classify(path)
		}

		if path == "/health" || path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		tenantDomain := effectiveHost(r)
		t, ok, err := tenants.ResolveTenant(r.Context(), tenantDomain)
		if err != nil {
			routing.WriteError(w, r, rc, http.StatusInternalServerError, "tenant_resolve_error", "tenant resolve error")
			return
		}
		if !ok {
			routing.WriteError(w, r, rc, http.StatusNotFound, "tenant_not_found", "tenant not found")
			return
		}
		r = r.WithContext(withTenant(r.Context(), t))

		if path == "/" || (path == "/iam/api/sessions" && r.Method == http.MethodPost) {
			next.ServeHTTP(w, r)
			return
		}

		sid, ok := readSID(r)
		if !ok {
			routing.WriteError(w, r, rc, http.StatusUnauthorized, "unauthorized", "unauthorized")
			return
		}

		sess, ok, err := sessions.Lookup(r.Context(), sid)
		if err != nil {
			routing.WriteError(w, r, rc, http.StatusInternalServerError, "session_lookup_error", "session lookup error")
			return
		}
		if !ok || sess.TenantID != t.ID {
			clearSIDCookie(w)
			routing.WriteError(w, r, rc, http.StatusUnauthorized, "unauthorized", "unauthorized")
			return
		}

		p, ok, err := principals.GetByID(r.Context(), t.ID, sess.PrincipalID)
		if err != nil {
			routing.WriteError(w, r, rc, http.StatusInternalServerError, "principal_lookup_error", "principal lookup error")
			return
		}
		if !ok || p.Status != "active" {
			clearSIDCookie(w)
			routing.WriteError(w, r, rc, http.StatusUnauthorized, "unauthorized", "unauthorized")
			return
		}
		r = r.WithContext(withPrincipal(r.Context(), p))

		next.ServeHTTP(w, r)
	})
}

func pathHasPrefixSegment(path, prefix string) bool {
	if path == prefix {
		return true
	}
	return len(path) > len(prefix) && path[:len(prefix)+1] == prefix+"/"
}
