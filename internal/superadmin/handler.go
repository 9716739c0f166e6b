package superadmin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pricewatch/pricewatch/internal/assist"
	"github.com/pricewatch/pricewatch/internal/routing"
	expenseports "github.com/pricewatch/pricewatch/modules/expense/domain/ports"
	expensepersistence "github.com/pricewatch/pricewatch/modules/expense/infrastructure/persistence"
	priceports "github.com/pricewatch/pricewatch/modules/pricebook/domain/ports"
	pricebookpersistence "github.com/pricewatch/pricewatch/modules/pricebook/infrastructure/persistence"
)

// Org is one row of the cross-organization catalog the console exposes.
type Org struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

// OrgSource lists every organization, active first. The console is the only
// surface that may enumerate organizations.
type OrgSource interface {
	ListOrgs(ctx context.Context) ([]Org, error)
}

func NewHandler() (http.Handler, error) {
	return NewHandlerWithOptions(HandlerOptions{})
}

type HandlerOptions struct {
	PriceStore   priceports.PriceReadStore
	ExpenseStore expenseports.ExpenseReadStore
	Orgs         OrgSource
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

	classifier, err := routing.NewClassifier(a, "superadmin")
	if err != nil {
		return nil, err
	}
	router := routing.NewRouter(classifier)

	prices := opts.PriceStore
	expenses := opts.ExpenseStore
	orgs := opts.Orgs

	if prices == nil || expenses == nil || orgs == nil {
		dsn, err := dbDSNFromEnv()
		if err != nil {
			return nil, err
		}
		pool, err := pgxpool.New(context.Background(), dsn)
		if err != nil {
			return nil, err
		}
		if prices == nil {
			prices = pricebookpersistence.NewPricePGStore(pool)
		}
		if expenses == nil {
			expenses = expensepersistence.NewExpensePGStore(pool)
		}
		if orgs == nil {
			orgs = &pgOrgSource{q: pool}
		}
	}

	authorizer, err := loadAuthorizer()
	if err != nil {
		return nil, err
	}

	executor := assist.NewExecutor(prices, expenses)

	router.Handle(routing.RouteClassOps, http.MethodGet, "/health", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}))
	router.Handle(routing.RouteClassOps, http.MethodGet, "/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}))

	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/api/orgs", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleOrgsAPI(w, r, orgs)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/api/templates", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleTemplatesAPI(w, r, executor)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/api/query", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleQueryAPI(w, r, executor)
	}))

	guarded := withBasicAuth(withAuthz(classifier, authorizer, router))

	mux := http.NewServeMux()
	mux.Handle("/", guarded)
	return mux, nil
}

func MustNewHandler() http.Handler {
	h, err := NewHandler()
	if err != nil {
		panic(errors.New("superadmin: failed to build handler: " + err.Error()))
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
	return "", errors.New("superadmin: allowlist not found")
}

// consoleQueryContext is the console's standing scope: global, unrestricted,
// comparisons allowed. Basic auth already gated entry; the executor still
// enforces template availability per call.
func consoleQueryContext(r *http.Request) assist.QueryContext {
	caller := "superadmin"
	if user, _, ok := r.BasicAuth(); ok && strings.TrimSpace(user) != "" {
		caller = strings.TrimSpace(user)
	}
	return assist.QueryContext{
		Scope:          assist.ScopeGlobal,
		AllowedOrgIDs:  nil,
		CanCompareOrgs: true,
		CallerID:       caller,
		CallerName:     caller,
	}
}

func handleOrgsAPI(w http.ResponseWriter, r *http.Request, orgs OrgSource) {
	list, err := orgs.ListOrgs(r.Context())
	if err != nil {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusInternalServerError, "org_list_failed", "org list failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orgs": list})
}

type templateView struct {
	Name     assist.TemplateName `json:"name"`
	Summary  string              `json:"summary"`
	Required []assist.ParamField `json:"required"`
	Optional []assist.ParamField `json:"optional,omitempty"`
	CrossOrg bool                `json:"cross_org,omitempty"`
}

func handleTemplatesAPI(w http.ResponseWriter, r *http.Request, executor *assist.Executor) {
	defs := executor.Definitions(consoleQueryContext(r))
	out := make([]templateView, 0, len(defs))
	for _, def := range defs {
		out = append(out, templateView{
			Name:     def.Name,
			Summary:  def.Summary,
			Required: def.Required,
			Optional: def.Optional,
			CrossOrg: def.CrossOrg,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": out})
}

func handleQueryAPI(w http.ResponseWriter, r *http.Request, executor *assist.Executor) {
	var req struct {
		Template string        `json:"template"`
		Params   assist.Params `json:"params"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusBadRequest, "bad_json", "bad json")
		return
	}
	name := assist.TemplateName(strings.TrimSpace(req.Template))
	if name == "" {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusBadRequest, "invalid_request", "template required")
		return
	}

	res := executor.Execute(r.Context(), consoleQueryContext(r), name, req.Params)
	if res.Err != nil {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, queryErrorStatus(res.Err.Code), res.Err.Code, res.Err.Message)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"template": name, "data": res.Data})
}

func queryErrorStatus(code string) int {
	switch code {
	case assist.ErrCodeTemplateNotFound:
		return http.StatusNotFound
	case assist.ErrCodeTemplateForbidden, assist.ErrCodeOrgForbidden:
		return http.StatusForbidden
	case assist.ErrCodeInvalidParams:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type pgQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type pgOrgSource struct {
	q pgQuerier
}

func (s *pgOrgSource) ListOrgs(ctx context.Context) ([]Org, error) {
	rows, err := s.q.Query(ctx, `
SELECT id::text, name, is_active
FROM iam.tenants
ORDER BY is_active DESC, created_at ASC, id ASC;
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Org, 0, 8)
	for rows.Next() {
		var o Org
		if err := rows.Scan(&o.ID, &o.Name, &o.IsActive); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
