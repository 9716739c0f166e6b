package ports

import (
	"context"

	"github.com/pricewatch/pricewatch/modules/expense/domain/types"
)

// ExpenseReadStore is the read side consumed by the assist executor and the
// expense API. Date arguments are inclusive ISO days.
type ExpenseReadStore interface {
	MonthlyExpenses(ctx context.Context, orgID string, startDate string, endDate string) ([]types.MonthlyTotal, error)
	ExpensesByCategory(ctx context.Context, orgID string, startDate string, endDate string) ([]types.CategoryTotal, error)
	TopVendors(ctx context.Context, orgID string, startDate string, endDate string, limit int) ([]types.VendorTotal, error)
	RecurringTemplates(ctx context.Context, orgID string) ([]types.RecurringTemplate, error)
	RecurringExpenseHistory(ctx context.Context, orgID string, templateID string, startDate string, endDate string) ([]types.ExpenseRow, error)
	// CrossOrgSpending spans organizations; callers gate it on scope.
	CrossOrgSpending(ctx context.Context, startDate string, endDate string) ([]types.OrgSpendTotal, error)
}

type ExpenseWriteStore interface {
	RecordExpense(ctx context.Context, row types.ExpenseRow) (types.ExpenseRow, error)
	CreateRecurringTemplate(ctx context.Context, tpl types.RecurringTemplate) (types.RecurringTemplate, error)
}
