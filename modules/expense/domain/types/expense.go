package types

// ExpenseRow is one recorded expense.
type ExpenseRow struct {
	ExpenseID  string  `json:"expense_id"`
	OrgID      string  `json:"org_id"`
	Vendor     string  `json:"vendor"`
	Category   string  `json:"category"`
	Amount     float64 `json:"amount"`
	Currency   string  `json:"currency"`
	SpentOn    string  `json:"spent_on"`
	Memo       string  `json:"memo,omitempty"`
	TemplateID string  `json:"template_id,omitempty"`
}

// RecurringTemplate describes an expense expected to repeat.
type RecurringTemplate struct {
	TemplateID string  `json:"template_id"`
	OrgID      string  `json:"org_id"`
	Vendor     string  `json:"vendor"`
	Category   string  `json:"category"`
	Amount     float64 `json:"amount"`
	Currency   string  `json:"currency"`
	Cadence    string  `json:"cadence"`
	Active     bool    `json:"active"`
}

type MonthlyTotal struct {
	Month string  `json:"month"`
	Total float64 `json:"total"`
	Count int     `json:"count"`
}

type CategoryTotal struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
	Count    int     `json:"count"`
}

type VendorTotal struct {
	Vendor string  `json:"vendor"`
	Total  float64 `json:"total"`
	Count  int     `json:"count"`
}

// OrgSpendTotal is a cross-organization spending aggregate.
type OrgSpendTotal struct {
	OrgID   string  `json:"org_id"`
	OrgName string  `json:"org_name,omitempty"`
	Total   float64 `json:"total"`
	Count   int     `json:"count"`
}
