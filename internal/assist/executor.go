package assist

import (
	"context"
	"log"

	expenseports "github.com/pricewatch/pricewatch/modules/expense/domain/ports"
	priceports "github.com/pricewatch/pricewatch/modules/pricebook/domain/ports"
)

// Error codes carried by ExecError. The HTTP layer maps them onto statuses;
// the chat pipeline surfaces them as structured refusals.
const (
	ErrCodeTemplateNotFound  = "template_not_found"
	ErrCodeTemplateForbidden = "template_forbidden"
	ErrCodeOrgForbidden      = "org_forbidden"
	ErrCodeInvalidParams     = "invalid_params"
	ErrCodeFetchFailed       = "fetch_failed"
)

type ExecError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ExecError) Error() string { return e.Code + ": " + e.Message }

// Result is the uniform envelope every Execute call returns. Exactly one of
// Data and Err is set.
type Result struct {
	Data any        `json:"data,omitempty"`
	Err  *ExecError `json:"error,omitempty"`
}

func failure(code string, message string) Result {
	return Result{Err: &ExecError{Code: code, Message: message}}
}

// logf is a seam for tests; security-relevant denials go through it so they
// stay distinguishable from ordinary validation noise in server logs.
var logf = log.Printf

// Executor gates, validates, and dispatches template calls. It holds no
// mutable state: the registry is static and every call carries its own
// QueryContext, so concurrent Execute calls need no coordination.
type Executor struct {
	prices   priceports.PriceReadStore
	expenses expenseports.ExpenseReadStore
}

func NewExecutor(prices priceports.PriceReadStore, expenses expenseports.ExpenseReadStore) *Executor {
	return &Executor{prices: prices, expenses: expenses}
}

// ListAvailable returns the template names qc may invoke, in registration
// order. The order is stable so clients listing "what can I ask" see a
// deterministic catalog.
func (e *Executor) ListAvailable(qc QueryContext) []TemplateName {
	out := make([]TemplateName, 0, len(registry))
	for _, def := range registry {
		if def.availableTo(qc) {
			out = append(out, def.Name)
		}
	}
	return out
}

// Definitions returns the registry entries available to qc, for clients
// that need parameter contracts alongside names.
func (e *Executor) Definitions(qc QueryContext) []TemplateDefinition {
	out := make([]TemplateDefinition, 0, len(registry))
	for _, def := range registry {
		if def.availableTo(qc) {
			out = append(out, def)
		}
	}
	return out
}

// Execute runs one template under qc. Every failure comes back inside the
// Result; nothing from the data layer escapes as a panic or raw error. The
// org-scope check runs here on every call, not only at the route layer, so
// the executor stays safe to reach from both the direct API and the chat
// pipeline.
func (e *Executor) Execute(ctx context.Context, qc QueryContext, name TemplateName, params Params) Result {
	def, ok := lookupTemplate(name)
	if !ok {
		return failure(ErrCodeTemplateNotFound, "unknown template "+string(name))
	}
	if !def.availableTo(qc) {
		logf("assist: template %s denied for caller %s (scope=%s)", name, qc.CallerID, qc.Scope)
		return failure(ErrCodeTemplateForbidden, "template "+string(name)+" is not available in this scope")
	}

	if def.CrossOrg {
		if params.OrgID != "" {
			return failure(ErrCodeInvalidParams, "org_id does not apply to cross-organization templates")
		}
	} else {
		if params.OrgID == "" {
			params.OrgID = qc.defaultOrgID()
			if params.OrgID == "" {
				return failure(ErrCodeInvalidParams, "org_id required and no active organization to default from")
			}
		}
		if qc.Scope == ScopeOrg && !qc.Allows(params.OrgID) {
			// Tenant-isolation boundary. Logged distinctly: repeated hits
			// may indicate a caller probing other organizations.
			logf("assist: org scope violation: caller %s requested org %s", qc.CallerID, params.OrgID)
			return failure(ErrCodeOrgForbidden, "access denied to organization")
		}
	}

	validated, err := validateParams(def, params)
	if err != nil {
		return failure(ErrCodeInvalidParams, err.Error())
	}

	data, err := e.dispatch(ctx, def.Name, validated)
	if err != nil {
		logf("assist: template %s fetch failed: %v", name, err)
		return failure(ErrCodeFetchFailed, "query execution failed")
	}
	return Result{Data: data}
}

// dispatch is the closed dispatch table: one case per TemplateName, calling
// the read ports with already-validated, org-scoped parameters.
func (e *Executor) dispatch(ctx context.Context, name TemplateName, p Params) (any, error) {
	switch name {
	case TemplateCurrentPrice:
		point, found, err := e.prices.CurrentPrice(ctx, p.OrgID, p.ItemID)
		if err != nil {
			return nil, err
		}
		return priceLookupPayload(point, found), nil
	case TemplatePriceAtDate:
		point, found, err := e.prices.PriceAt(ctx, p.OrgID, p.ItemID, p.Date)
		if err != nil {
			return nil, err
		}
		return priceLookupPayload(point, found), nil
	case TemplatePriceHistory:
		return e.prices.PriceHistory(ctx, p.OrgID, p.ItemID, p.StartDate)
	case TemplateTopPriceChanges:
		return e.prices.TopPriceChanges(ctx, p.OrgID, p.StartDate, p.Limit)
	case TemplateMonthlyExpenses:
		return e.expenses.MonthlyExpenses(ctx, p.OrgID, p.StartDate, p.EndDate)
	case TemplateExpensesByCategory:
		return e.expenses.ExpensesByCategory(ctx, p.OrgID, p.StartDate, p.EndDate)
	case TemplateTopVendors:
		return e.expenses.TopVendors(ctx, p.OrgID, p.StartDate, p.EndDate, p.Limit)
	case TemplateSearchItems:
		return e.prices.SearchItems(ctx, p.OrgID, p.SearchTerm)
	case TemplateRecurringTemplates:
		return e.expenses.RecurringTemplates(ctx, p.OrgID)
	case TemplateRecurringExpenseHistory:
		return e.expenses.RecurringExpenseHistory(ctx, p.OrgID, p.TemplateID, p.StartDate, p.EndDate)
	case TemplateCrossOrgItemPrices:
		return e.prices.CrossOrgItemPrices(ctx, p.ItemName)
	case TemplateCrossOrgSpending:
		return e.expenses.CrossOrgSpending(ctx, p.StartDate, p.EndDate)
	}
	// lookupTemplate guarantees name is in the registry.
	return nil, &ExecError{Code: ErrCodeTemplateNotFound, Message: string(name)}
}

func priceLookupPayload(point any, found bool) any {
	if !found {
		return map[string]any{"found": false}
	}
	return map[string]any{"found": true, "price": point}
}
