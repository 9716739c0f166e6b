package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pricewatch/pricewatch/internal/routing"
	"github.com/pricewatch/pricewatch/modules/expense/domain/types"
	"github.com/pricewatch/pricewatch/pkg/uuidv7"
)

// handleExpensesAPI serves the tenant's expense records: GET returns monthly
// totals over a range, POST records one expense.
func handleExpensesAPI(w http.ResponseWriter, r *http.Request, store ExpenseStore) {
	tenant, ok := currentTenant(r.Context())
	if !ok {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusInternalServerError, "tenant_missing", "tenant missing")
		return
	}

	switch r.Method {
	case http.MethodGet:
		startDate := strings.TrimSpace(r.URL.Query().Get("start_date"))
		endDate := strings.TrimSpace(r.URL.Query().Get("end_date"))
		if !isISODate(startDate) || !isISODate(endDate) {
			routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusUnprocessableEntity, "invalid_request", "start_date and end_date must be YYYY-MM-DD")
			return
		}
		if startDate > endDate {
			routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusUnprocessableEntity, "invalid_request", "start_date must not exceed end_date")
			return
		}
		totals, err := store.MonthlyExpenses(r.Context(), tenant.ID, startDate, endDate)
		if err != nil {
			routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusInternalServerError, "expense_read_failed", "expense read failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"months": totals})
	case http.MethodPost:
		var req struct {
			Vendor     string  `json:"vendor"`
			Category   string  `json:"category"`
			Amount     float64 `json:"amount"`
			Currency   string  `json:"currency"`
			SpentOn    string  `json:"spent_on"`
			Memo       string  `json:"memo"`
			TemplateID string  `json:"template_id"`
		}
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusBadRequest, "bad_json", "bad json")
			return
		}
		vendor := strings.TrimSpace(req.Vendor)
		if vendor == "" {
			routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusUnprocessableEntity, "invalid_request", "vendor required")
			return
		}
		if req.Amount <= 0 {
			routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusUnprocessableEntity, "invalid_request", "amount must be positive")
			return
		}
		spentOn := strings.TrimSpace(req.SpentOn)
		if spentOn == "" {
			spentOn = time.Now().UTC().Format("2006-01-02")
		} else if !isISODate(spentOn) {
			routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusUnprocessableEntity, "invalid_request", "spent_on must be YYYY-MM-DD")
			return
		}
		currency := strings.ToUpper(strings.TrimSpace(req.Currency))
		if currency == "" {
			currency = "USD"
		}
		expenseID, err := uuidv7.NewString()
		if err != nil {
			routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusInternalServerError, "id_generation_failed", "id generation failed")
			return
		}

		row, err := store.RecordExpense(r.Context(), types.ExpenseRow{
			ExpenseID:  expenseID,
			OrgID:      tenant.ID,
			Vendor:     vendor,
			Category:   strings.TrimSpace(req.Category),
			Amount:     req.Amount,
			Currency:   currency,
			SpentOn:    spentOn,
			Memo:       strings.TrimSpace(req.Memo),
			TemplateID: strings.TrimSpace(req.TemplateID),
		})
		if err != nil {
			routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusInternalServerError, "expense_write_failed", "expense write failed")
			return
		}
		writeJSON(w, http.StatusOK, row)
	default:
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

// handleRecurringAPI lists and creates the tenant's recurring expense
// templates.
func handleRecurringAPI(w http.ResponseWriter, r *http.Request, store ExpenseStore) {
	tenant, ok := currentTenant(r.Context())
	if !ok {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusInternalServerError, "tenant_missing", "tenant missing")
		return
	}

	switch r.Method {
	case http.MethodGet:
		templates, err := store.RecurringTemplates(r.Context(), tenant.ID)
		if err != nil {
			routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusInternalServerError, "expense_read_failed", "expense read failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"templates": templates})
	case http.MethodPost:
		var req struct {
			Vendor   string  `json:"vendor"`
			Category string  `json:"category"`
			Amount   float64 `json:"amount"`
			Currency string  `json:"currency"`
			Cadence  string  `json:"cadence"`
		}
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusBadRequest, "bad_json", "bad json")
			return
		}
		vendor := strings.TrimSpace(req.Vendor)
		if vendor == "" {
			routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusUnprocessableEntity, "invalid_request", "vendor required")
			return
		}
		if req.Amount <= 0 {
			routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusUnprocessableEntity, "invalid_request", "amount must be positive")
			return
		}
		cadence := strings.ToLower(strings.TrimSpace(req.Cadence))
		switch cadence {
		case "weekly", "monthly", "quarterly", "yearly":
		default:
			routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusUnprocessableEntity, "invalid_request", "cadence must be weekly|monthly|quarterly|yearly")
			return
		}
		currency := strings.ToUpper(strings.TrimSpace(req.Currency))
		if currency == "" {
			currency = "USD"
		}
		templateID, err := uuidv7.NewString()
		if err != nil {
			routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusInternalServerError, "id_generation_failed", "id generation failed")
			return
		}

		tpl, err := store.CreateRecurringTemplate(r.Context(), types.RecurringTemplate{
			TemplateID: templateID,
			OrgID:      tenant.ID,
			Vendor:     vendor,
			Category:   strings.TrimSpace(req.Category),
			Amount:     req.Amount,
			Currency:   currency,
			Cadence:    cadence,
			Active:     true,
		})
		if err != nil {
			routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusInternalServerError, "expense_write_failed", "expense write failed")
			return
		}
		writeJSON(w, http.StatusOK, tpl)
	default:
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}
