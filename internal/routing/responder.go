package routing

import (
	"encoding/json"
	"net/http"
	"strings"
)

type ErrorEnvelope struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	TraceID string            `json:"trace_id"`
	Meta    ErrorEnvelopeMeta `json:"meta"`
}

type ErrorEnvelopeMeta struct {
	Path   string `json:"path"`
	Method string `json:"method"`
}

func WriteError(w http.ResponseWriter, r *http.Request, rc RouteClass, status int, code string, message string) {
	message = normalizeErrorMessage(code, message)
	if isJSONOnly(rc) || wantsJSON(r) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(ErrorEnvelope{
			Code:    code,
			Message: message,
			TraceID: traceIDFromRequest(r),
			Meta: ErrorEnvelopeMeta{
				Path:   r.URL.Path,
				Method: r.Method,
			},
		})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte("<!doctype html><html><body>"))
	_, _ = w.Write([]byte(message))
	_, _ = w.Write([]byte("</body></html>"))
}

// normalizeErrorMessage keeps explicit handler messages untouched and only
// replaces placeholder ones (empty, code echoes, "x failed") with something
// a person can read.
func normalizeErrorMessage(code string, message string) string {
	if !isGenericErrorMessage(code, message) {
		return message
	}
	if known := knownErrorMessage(code); known != "" {
		return known
	}
	return humanizeErrorCode(code)
}

func isGenericErrorMessage(code string, message string) bool {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return true
	}
	if strings.EqualFold(trimmed, code) {
		return true
	}
	lower := strings.ToLower(trimmed)
	if lower == "internal_error" {
		return true
	}
	if len(strings.Fields(lower)) <= 2 && (strings.HasSuffix(lower, "failed") || strings.HasSuffix(lower, "error")) {
		return true
	}
	return false
}

func knownErrorMessage(code string) string {
	switch code {
	case "forbidden":
		return "You do not have permission to perform this action."
	case "unauthorized":
		return "Your session has expired. Please sign in again."
	case "invalid_request":
		return "The request is invalid. Check the parameters and retry."
	case "tenant_not_found":
		return "No organization is registered for this domain."
	case "tenant_missing":
		return "Organization context is missing. Refresh and retry."
	case "tenant_resolve_error":
		return "Could not resolve the organization. Try again later."
	case "template_not_found":
		return "No such query template."
	case "template_forbidden":
		return "This query template is not available in your scope."
	case "org_forbidden":
		return "You do not have access to that organization."
	case "invalid_params":
		return "The template parameters are invalid."
	case "chat_no_proposal":
		return "The assistant could not map the question to a query."
	default:
		return ""
	}
}

func humanizeErrorCode(code string) string {
	words := strings.FieldsFunc(code, func(r rune) bool { return r == '_' || r == '-' })
	if len(words) == 0 {
		return "Request failed."
	}
	if len(words) == 1 {
		switch strings.ToLower(words[0]) {
		case "failed":
			return "Request failed."
		case "error":
			return "Request error."
		}
	}
	return titleCaseWords(words) + "."
}

var acronymWords = map[string]string{
	"api":  "API",
	"db":   "DB",
	"id":   "ID",
	"rls":  "RLS",
	"uuid": "UUID",
}

func titleCaseWords(words []string) string {
	if len(words) == 0 {
		return ""
	}
	out := make([]string, len(words))
	for i, w := range words {
		if up, ok := acronymWords[strings.ToLower(w)]; ok {
			out[i] = up
			continue
		}
		if i == 0 {
			out[i] = capitalizeWord(w)
			continue
		}
		out[i] = w
	}
	return strings.Join(out, " ")
}

func capitalizeWord(w string) string {
	if w == "" {
		return ""
	}
	return strings.ToUpper(w[:1]) + w[1:]
}

func wantsJSON(r *http.Request) bool {
	return r.Header.Get("Accept") == "application/json" || r.Header.Get("Accept") == "application/json; charset=utf-8"
}

func isJSONOnly(rc RouteClass) bool {
	return rc == RouteClassInternalAPI || rc == RouteClassPublicAPI || rc == RouteClassWebhook
}

func traceIDFromRequest(r *http.Request) string {
	traceparent := strings.TrimSpace(r.Header.Get("traceparent"))
	if traceparent == "" {
		return ""
	}
	parts := strings.Split(traceparent, "-")
	if len(parts) != 4 {
		return ""
	}
	traceID := strings.ToLower(parts[1])
	if len(traceID) != 32 || traceID == "00000000000000000000000000000000" {
		return ""
	}
	for _, ch := range traceID {
		if (ch < '0' || ch > '9') && (ch < 'a' || ch > 'f') {
			return ""
		}
	}
	return traceID
}
