package server

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pricewatch/pricewatch/internal/routing"
	"github.com/pricewatch/pricewatch/pkg/authz"
)

func loadAuthorizer() (*authz.Authorizer, error) {
	modelPath := os.Getenv("AUTHZ_MODEL_PATH")
	if modelPath == "" {
		p, err := defaultAuthzModelPath()
		if err != nil {
			return nil, err
		}
		modelPath = p
	}

	policyPath := os.Getenv("AUTHZ_POLICY_PATH")
	if policyPath == "" {
		p, err := defaultAuthzPolicyPath()
		if err != nil {
			return nil, err
		}
		policyPath = p
	}

	mode, err := authz.ModeFromEnv()
	if err != nil {
		return nil, err
	}

	return authz.NewAuthorizer(modelPath, policyPath, mode)
}

func defaultAuthzModelPath() (string, error) {
	path := "config/access/model.conf"
	for range 8 {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: authz model not found")
}

func defaultAuthzPolicyPath() (string, error) {
	path := "config/access/policy.csv"
	for range 8 {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: authz policy not found")
}

type authorizer interface {
	Authorize(subject string, domain string, object string, action string) (allowed bool, enforced bool, err error)
}

func withAuthz(classifier *routing.Classifier, a authorizer, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		rc := routing.RouteClassUI
		if classifier != nil {
			rc = classifier.Classify(path)
		}

		switch path {
		case "/health", "/healthz", "/":
			next.ServeHTTP(w, r)
			return
		}

		tenant, ok := currentTenant(r.Context())
		if !ok {
			routing.WriteError(w, r, rc, http.StatusInternalServerError, "tenant_missing", "tenant missing")
			return
		}

		roleSlug := authz.RoleAnonymous
		if p, ok := currentPrincipal(r.Context()); ok {
			roleSlug = p.RoleSlug
		}

		subject := authz.SubjectFromRoleSlug(roleSlug)
		domain := authz.DomainFromTenantID(tenant.ID)

		object, action, shouldCheck := authzRequirementForRoute(r.Method, path)
		if !shouldCheck {
			next.ServeHTTP(w, r)
			return
		}

		allowed, enforced, err := a.Authorize(subject, domain, object, action)
		if err != nil {
			routing.WriteError(w, r, rc, http.StatusInternalServerError, "authz_error", "authz error")
			return
		}
		if enforced && !allowed {
			routing.WriteError(w, r, rc, http.StatusForbidden, "forbidden", "forbidden")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func authzRequirementForRoute(method string, path string) (object string, action string, ok bool) {
	switch path {
	case "/iam/api/sessions":
		if method == http.MethodPost {
			return authz.ObjectIAMSession, authz.ActionAdmin, true
		}
		return "", "", false
	case "/logout":
		if method == http.MethodPost {
			return authz.ObjectIAMSession, authz.ActionAdmin, true
		}
		return "", "", false
	case "/assist/api/templates":
		if method == http.MethodGet {
			return authz.ObjectAssistTemplates, authz.ActionRead, true
		}
		return "", "", false
	case "/assist/api/query":
		if method == http.MethodPost {
			return authz.ObjectAssistQuery, authz.ActionRead, true
		}
		return "", "", false
	case "/assist/api/chat":
		if method == http.MethodPost {
			return authz.ObjectAssistChat, authz.ActionRead, true
		}
		return "", "", false
	case "/pricebook/api/items":
		if method == http.MethodGet {
			return authz.ObjectPricebookItems, authz.ActionRead, true
		}
		if method == http.MethodPost {
			return authz.ObjectPricebookItems, authz.ActionWrite, true
		}
		return "", "", false
	case "/pricebook/api/prices":
		if method == http.MethodGet {
			return authz.ObjectPricebookPrices, authz.ActionRead, true
		}
		if method == http.MethodPost {
			return authz.ObjectPricebookPrices, authz.ActionWrite, true
		}
		return "", "", false
	case "/expense/api/expenses":
		if method == http.MethodGet {
			return authz.ObjectExpenseRecords, authz.ActionRead, true
		}
		if method == http.MethodPost {
			return authz.ObjectExpenseRecords, authz.ActionWrite, true
		}
		return "", "", false
	case "/expense/api/recurring":
		if method == http.MethodGet {
			return authz.ObjectExpenseRecurring, authz.ActionRead, true
		}
		if method == http.MethodPost {
			return authz.ObjectExpenseRecurring, authz.ActionWrite, true
		}
		return "", "", false
	default:
		return "", "", false
	}
}
