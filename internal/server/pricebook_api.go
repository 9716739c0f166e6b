package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pricewatch/pricewatch/internal/routing"
	"github.com/pricewatch/pricewatch/modules/pricebook/domain/types"
	"github.com/pricewatch/pricewatch/pkg/uuidv7"
)

// handlePricebookItemsAPI serves the item catalog of the request's tenant:
// GET searches by name, POST upserts one item.
func handlePricebookItemsAPI(w http.ResponseWriter, r *http.Request, store PriceStore) {
	tenant, ok := currentTenant(r.Context())
	if !ok {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusInternalServerError, "tenant_missing", "tenant missing")
		return
	}

	switch r.Method {
	case http.MethodGet:
		term := strings.TrimSpace(r.URL.Query().Get("q"))
		items, err := store.SearchItems(r.Context(), tenant.ID, term)
		if err != nil {
			routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusInternalServerError, "pricebook_read_failed", "pricebook read failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPost:
		var req struct {
			ItemID   string `json:"item_id"`
			Name     string `json:"name"`
			Unit     string `json:"unit"`
			Category string `json:"category"`
		}
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusBadRequest, "bad_json", "bad json")
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusUnprocessableEntity, "invalid_request", "name required")
			return
		}
		itemID := strings.TrimSpace(req.ItemID)
		if itemID == "" {
			id, err := uuidv7.NewString()
			if err != nil {
				routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusInternalServerError, "id_generation_failed", "id generation failed")
				return
			}
			itemID = id
		}

		item, err := store.UpsertItem(r.Context(), types.Item{
			ItemID:   itemID,
			OrgID:    tenant.ID,
			Name:     name,
			Unit:     strings.TrimSpace(req.Unit),
			Category: strings.TrimSpace(req.Category),
		})
		if err != nil {
			routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusInternalServerError, "pricebook_write_failed", "pricebook write failed")
			return
		}
		writeJSON(w, http.StatusOK, item)
	default:
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

// handlePricebookPricesAPI serves the price ledger: GET reads one item's
// history from a start date, POST appends an observation.
func handlePricebookPricesAPI(w http.ResponseWriter, r *http.Request, store PriceStore) {
	tenant, ok := currentTenant(r.Context())
	if !ok {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusInternalServerError, "tenant_missing", "tenant missing")
		return
	}

	switch r.Method {
	case http.MethodGet:
		itemID := strings.TrimSpace(r.URL.Query().Get("item_id"))
		if itemID == "" {
			routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusUnprocessableEntity, "invalid_request", "item_id required")
			return
		}
		startDate := strings.TrimSpace(r.URL.Query().Get("start_date"))
		if startDate == "" {
			startDate = "0001-01-01"
		} else if !isISODate(startDate) {
			routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusUnprocessableEntity, "invalid_request", "start_date must be YYYY-MM-DD")
			return
		}
		points, err := store.PriceHistory(r.Context(), tenant.ID, itemID, startDate)
		if err != nil {
			routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusInternalServerError, "pricebook_read_failed", "pricebook read failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"prices": points})
	case http.MethodPost:
		var req struct {
			ItemID     string  `json:"item_id"`
			Price      float64 `json:"price"`
			Currency   string  `json:"currency"`
			ObservedOn string  `json:"observed_on"`
		}
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusBadRequest, "bad_json", "bad json")
			return
		}
		itemID := strings.TrimSpace(req.ItemID)
		if itemID == "" {
			routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusUnprocessableEntity, "invalid_request", "item_id required")
			return
		}
		if req.Price <= 0 {
			routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusUnprocessableEntity, "invalid_request", "price must be positive")
			return
		}
		currency := strings.ToUpper(strings.TrimSpace(req.Currency))
		if currency == "" {
			currency = "USD"
		}
		observedOn := strings.TrimSpace(req.ObservedOn)
		if observedOn == "" {
			observedOn = time.Now().UTC().Format("2006-01-02")
		} else if !isISODate(observedOn) {
			routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusUnprocessableEntity, "invalid_request", "observed_on must be YYYY-MM-DD")
			return
		}

		point := types.PricePoint{
			ItemID:     itemID,
			OrgID:      tenant.ID,
			Price:      req.Price,
			Currency:   currency,
			ObservedOn: observedOn,
		}
		if err := store.RecordPrice(r.Context(), point); err != nil {
			routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusInternalServerError, "pricebook_write_failed", "pricebook write failed")
			return
		}
		writeJSON(w, http.StatusOK, point)
	default:
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func isISODate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}
