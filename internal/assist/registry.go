package assist

// TemplateName addresses a query template. The set is closed: templates are
// selected by name, never by arbitrary code, and dispatch is an exhaustive
// switch in the executor so adding or removing one is compile-checked.
type TemplateName string

const (
	TemplateCurrentPrice            TemplateName = "current_price"
	TemplatePriceAtDate             TemplateName = "price_at_date"
	TemplatePriceHistory            TemplateName = "price_history"
	TemplateTopPriceChanges         TemplateName = "top_price_changes"
	TemplateMonthlyExpenses         TemplateName = "monthly_expenses"
	TemplateExpensesByCategory      TemplateName = "expenses_by_category"
	TemplateTopVendors              TemplateName = "top_vendors"
	TemplateSearchItems             TemplateName = "search_items"
	TemplateRecurringTemplates      TemplateName = "recurring_templates"
	TemplateRecurringExpenseHistory TemplateName = "recurring_expense_history"
	TemplateCrossOrgItemPrices      TemplateName = "cross_org_item_prices"
	TemplateCrossOrgSpending        TemplateName = "cross_org_spending"
)

// ParamField names one field of Params in wire form.
type ParamField string

const (
	FieldOrgID      ParamField = "org_id"
	FieldItemID     ParamField = "item_id"
	FieldItemName   ParamField = "item_name"
	FieldSearchTerm ParamField = "search_term"
	FieldTemplateID ParamField = "template_id"
	FieldDate       ParamField = "date"
	FieldStartDate  ParamField = "start_date"
	FieldEndDate    ParamField = "end_date"
	FieldLimit      ParamField = "limit"
)

// Params is the single parameter record shared by every template; each
// definition states which fields it requires. Zero values mean "not set".
type Params struct {
	OrgID      string `json:"org_id,omitempty"`
	ItemID     string `json:"item_id,omitempty"`
	ItemName   string `json:"item_name,omitempty"`
	SearchTerm string `json:"search_term,omitempty"`
	TemplateID string `json:"template_id,omitempty"`
	Date       string `json:"date,omitempty"`
	StartDate  string `json:"start_date,omitempty"`
	EndDate    string `json:"end_date,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// TemplateDefinition is one registry entry. The registry is assembled once
// at package init and immutable thereafter.
type TemplateDefinition struct {
	Name     TemplateName
	Summary  string
	Required []ParamField
	Optional []ParamField
	// CrossOrg templates aggregate over all organizations: they take no
	// org_id, skip org injection, and demand CanCompareOrgs.
	CrossOrg bool
	// Guards are CEL expressions over the normalized parameter map,
	// evaluated after the shape checks pass.
	Guards []string
}

const (
	guardDateOrder  = `params["start_date"] <= params["end_date"]`
	guardLimitRange = `int(params["limit"]) >= 1 && int(params["limit"]) <= 100`
)

// registry holds all templates in registration order. ListAvailable
// preserves this order so repeated listings are deterministic.
var registry = []TemplateDefinition{
	{
		Name:     TemplateCurrentPrice,
		Summary:  "latest recorded price of an item",
		Required: []ParamField{FieldOrgID, FieldItemID},
	},
	{
		Name:     TemplatePriceAtDate,
		Summary:  "price of an item as of a given date",
		Required: []ParamField{FieldOrgID, FieldItemID, FieldDate},
	},
	{
		Name:     TemplatePriceHistory,
		Summary:  "ordered price series for an item from a start date",
		Required: []ParamField{FieldOrgID, FieldItemID, FieldStartDate},
	},
	{
		Name:     TemplateTopPriceChanges,
		Summary:  "items ranked by price-change magnitude since a start date",
		Required: []ParamField{FieldOrgID, FieldStartDate},
		Optional: []ParamField{FieldLimit},
		Guards:   []string{guardLimitRange},
	},
	{
		Name:     TemplateMonthlyExpenses,
		Summary:  "expense totals per month over a date range",
		Required: []ParamField{FieldOrgID, FieldStartDate, FieldEndDate},
		Guards:   []string{guardDateOrder},
	},
	{
		Name:     TemplateExpensesByCategory,
		Summary:  "expense totals grouped by category over a date range",
		Required: []ParamField{FieldOrgID, FieldStartDate, FieldEndDate},
		Guards:   []string{guardDateOrder},
	},
	{
		Name:     TemplateTopVendors,
		Summary:  "vendors ranked by spend over a date range",
		Required: []ParamField{FieldOrgID, FieldStartDate, FieldEndDate},
		Optional: []ParamField{FieldLimit},
		Guards:   []string{guardDateOrder, guardLimitRange},
	},
	{
		Name:     TemplateSearchItems,
		Summary:  "items whose name matches a search term",
		Required: []ParamField{FieldOrgID, FieldSearchTerm},
	},
	{
		Name:     TemplateRecurringTemplates,
		Summary:  "recurring expense templates of an organization",
		Required: []ParamField{FieldOrgID},
	},
	{
		Name:     TemplateRecurringExpenseHistory,
		Summary:  "expenses recorded against one recurring template",
		Required: []ParamField{FieldOrgID, FieldTemplateID, FieldStartDate, FieldEndDate},
		Guards:   []string{guardDateOrder},
	},
	{
		Name:     TemplateCrossOrgItemPrices,
		Summary:  "latest price of a named item across all organizations",
		Required: []ParamField{FieldItemName},
		CrossOrg: true,
	},
	{
		Name:     TemplateCrossOrgSpending,
		Summary:  "total spending per organization over a date range",
		Required: []ParamField{FieldStartDate, FieldEndDate},
		CrossOrg: true,
		Guards:   []string{guardDateOrder},
	},
}

func lookupTemplate(name TemplateName) (TemplateDefinition, bool) {
	for _, def := range registry {
		if def.Name == name {
			return def, true
		}
	}
	return TemplateDefinition{}, false
}

// availableTo reports whether the definition may be invoked under qc.
func (d TemplateDefinition) availableTo(qc QueryContext) bool {
	if d.CrossOrg {
		return qc.Scope == ScopeGlobal && qc.CanCompareOrgs
	}
	return true
}
