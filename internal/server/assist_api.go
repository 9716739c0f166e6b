package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pricewatch/pricewatch/internal/assist"
	"github.com/pricewatch/pricewatch/internal/routing"
	"github.com/pricewatch/pricewatch/modules/assistant/infrastructure/gemini"
)

// assistSession translates the authenticated request into the scope
// resolver's input. The active organization is the request's tenant.
func assistSession(tenant Tenant, p Principal) assist.Session {
	return assist.Session{
		PrincipalID: p.ID,
		DisplayName: p.Email,
		RoleSlug:    p.RoleSlug,
		ActiveOrgID: tenant.ID,
	}
}

func resolveAssistScope(w http.ResponseWriter, r *http.Request, scopes *assist.ScopeResolver) (assist.QueryContext, bool) {
	tenant, ok := currentTenant(r.Context())
	if !ok {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusInternalServerError, "tenant_missing", "tenant missing")
		return assist.QueryContext{}, false
	}
	principal, ok := currentPrincipal(r.Context())
	if !ok {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return assist.QueryContext{}, false
	}

	qc, ok, err := scopes.Resolve(r.Context(), assistSession(tenant, principal))
	if err != nil {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusInternalServerError, "scope_resolve_error", "scope resolve error")
		return assist.QueryContext{}, false
	}
	if !ok {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusForbidden, "scope_unresolved", "no query scope for caller")
		return assist.QueryContext{}, false
	}
	return qc, true
}

type assistTemplateView struct {
	Name     assist.TemplateName `json:"name"`
	Summary  string              `json:"summary"`
	Required []assist.ParamField `json:"required"`
	Optional []assist.ParamField `json:"optional,omitempty"`
	CrossOrg bool                `json:"cross_org,omitempty"`
}

func handleAssistTemplatesAPI(w http.ResponseWriter, r *http.Request, scopes *assist.ScopeResolver, executor *assist.Executor) {
	qc, ok := resolveAssistScope(w, r, scopes)
	if !ok {
		return
	}

	defs := executor.Definitions(qc)
	out := make([]assistTemplateView, 0, len(defs))
	for _, def := range defs {
		out = append(out, assistTemplateView{
			Name:     def.Name,
			Summary:  def.Summary,
			Required: def.Required,
			Optional: def.Optional,
			CrossOrg: def.CrossOrg,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": out})
}

func handleAssistQueryAPI(w http.ResponseWriter, r *http.Request, scopes *assist.ScopeResolver, executor *assist.Executor) {
	qc, ok := resolveAssistScope(w, r, scopes)
	if !ok {
		return
	}

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

	res := executor.Execute(r.Context(), qc, name, req.Params)
	if res.Err != nil {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, assistErrorStatus(res.Err.Code), res.Err.Code, res.Err.Message)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"template": name, "data": res.Data})
}

func assistErrorStatus(code string) int {
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

func chatTimeoutFromEnv() time.Duration {
	const defaultSeconds = 30

	v := os.Getenv("ASSIST_CHAT_TIMEOUT_SECONDS")
	if v == "" {
		return defaultSeconds * time.Second
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return defaultSeconds * time.Second
	}
	return time.Duration(n) * time.Second
}

func handleAssistChatAPI(w http.ResponseWriter, r *http.Request, scopes *assist.ScopeResolver, executor *assist.Executor, chat *assist.ChatService) {
	qc, ok := resolveAssistScope(w, r, scopes)
	if !ok {
		return
	}

	var req struct {
		Question string `json:"question"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusBadRequest, "bad_json", "bad json")
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusUnprocessableEntity, "invalid_request", "question required")
		return
	}

	svc := chat
	if svc == nil {
		gen, err := gemini.NewFromEnv(r.Context())
		if err != nil {
			routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusInternalServerError, "chat_generator_error", "chat generator error")
			return
		}
		svc = assist.NewChatService(executor, gen)
	}

	ctx, cancel := context.WithTimeout(r.Context(), chatTimeoutFromEnv())
	defer cancel()

	answer, err := svc.Answer(ctx, qc, question)
	if err != nil {
		switch {
		case errors.Is(err, assist.ErrChatNoProposal):
			routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusUnprocessableEntity, "chat_no_proposal", "could not map question to a query template")
		case errors.Is(err, assist.ErrChatGeneration):
			routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusBadGateway, "chat_generation_failed", "text generation failed")
		default:
			routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusInternalServerError, "chat_failed", "chat failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
