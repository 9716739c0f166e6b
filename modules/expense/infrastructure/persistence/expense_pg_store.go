package persistence

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pricewatch/pricewatch/modules/expense/domain/types"
)

type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type ExpensePGStore struct {
	db pgQuerier
}

func NewExpensePGStore(db pgQuerier) *ExpensePGStore {
	return &ExpensePGStore{db: db}
}

func (s *ExpensePGStore) MonthlyExpenses(ctx context.Context, orgID string, startDate string, endDate string) ([]types.MonthlyTotal, error) {
	rows, err := s.db.Query(ctx, `
SELECT to_char(date_trunc('month', spent_on), 'YYYY-MM') AS month, SUM(amount), COUNT(*)
FROM expense.expenses
WHERE org_id = $1 AND spent_on BETWEEN $2 AND $3
GROUP BY 1
ORDER BY 1 ASC
`, orgID, startDate, endDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]types.MonthlyTotal, 0, 12)
	for rows.Next() {
		var m types.MonthlyTotal
		if err := rows.Scan(&m.Month, &m.Total, &m.Count); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *ExpensePGStore) ExpensesByCategory(ctx context.Context, orgID string, startDate string, endDate string) ([]types.CategoryTotal, error) {
	rows, err := s.db.Query(ctx, `
SELECT category, SUM(amount), COUNT(*)
FROM expense.expenses
WHERE org_id = $1 AND spent_on BETWEEN $2 AND $3
GROUP BY category
ORDER BY SUM(amount) DESC, category ASC
`, orgID, startDate, endDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]types.CategoryTotal, 0, 8)
	for rows.Next() {
		var c types.CategoryTotal
		if err := rows.Scan(&c.Category, &c.Total, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *ExpensePGStore) TopVendors(ctx context.Context, orgID string, startDate string, endDate string, limit int) ([]types.VendorTotal, error) {
	rows, err := s.db.Query(ctx, `
SELECT vendor, SUM(amount), COUNT(*)
FROM expense.expenses
WHERE org_id = $1 AND spent_on BETWEEN $2 AND $3
GROUP BY vendor
ORDER BY SUM(amount) DESC, vendor ASC
LIMIT $4
`, orgID, startDate, endDate, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]types.VendorTotal, 0, limit)
	for rows.Next() {
		var v types.VendorTotal
		if err := rows.Scan(&v.Vendor, &v.Total, &v.Count); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *ExpensePGStore) RecurringTemplates(ctx context.Context, orgID string) ([]types.RecurringTemplate, error) {
	rows, err := s.db.Query(ctx, `
SELECT template_id::text, org_id::text, vendor, category, amount, currency, cadence, active
FROM expense.recurring_templates
WHERE org_id = $1
ORDER BY vendor ASC, template_id ASC
`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]types.RecurringTemplate, 0, 8)
	for rows.Next() {
		var t types.RecurringTemplate
		if err := rows.Scan(&t.TemplateID, &t.OrgID, &t.Vendor, &t.Category, &t.Amount, &t.Currency, &t.Cadence, &t.Active); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *ExpensePGStore) RecurringExpenseHistory(ctx context.Context, orgID string, templateID string, startDate string, endDate string) ([]types.ExpenseRow, error) {
	rows, err := s.db.Query(ctx, `
SELECT expense_id::text, org_id::text, vendor, category, amount, currency,
  spent_on::text, COALESCE(memo, ''), template_id::text
FROM expense.expenses
WHERE org_id = $1 AND template_id = $2 AND spent_on BETWEEN $3 AND $4
ORDER BY spent_on ASC, expense_id ASC
`, orgID, templateID, startDate, endDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]types.ExpenseRow, 0, 16)
	for rows.Next() {
		var e types.ExpenseRow
		if err := rows.Scan(&e.ExpenseID, &e.OrgID, &e.Vendor, &e.Category, &e.Amount, &e.Currency, &e.SpentOn, &e.Memo, &e.TemplateID); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *ExpensePGStore) CrossOrgSpending(ctx context.Context, startDate string, endDate string) ([]types.OrgSpendTotal, error) {
	rows, err := s.db.Query(ctx, `
SELECT e.org_id::text, COALESCE(t.name, ''), SUM(e.amount), COUNT(*)
FROM expense.expenses e
LEFT JOIN iam.tenants t ON t.id = e.org_id
WHERE e.spent_on BETWEEN $1 AND $2
GROUP BY e.org_id, t.name
ORDER BY SUM(e.amount) DESC, e.org_id ASC
`, startDate, endDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]types.OrgSpendTotal, 0, 8)
	for rows.Next() {
		var o types.OrgSpendTotal
		if err := rows.Scan(&o.OrgID, &o.OrgName, &o.Total, &o.Count); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *ExpensePGStore) RecordExpense(ctx context.Context, row types.ExpenseRow) (types.ExpenseRow, error) {
	err := s.db.QueryRow(ctx, `
INSERT INTO expense.expenses (expense_id, org_id, vendor, category, amount, currency, spent_on, memo, template_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, '')::uuid)
RETURNING expense_id::text
`, row.ExpenseID, row.OrgID, row.Vendor, row.Category, row.Amount, row.Currency, row.SpentOn, row.Memo, row.TemplateID).Scan(&row.ExpenseID)
	if err != nil {
		return types.ExpenseRow{}, err
	}
	return row, nil
}

func (s *ExpensePGStore) CreateRecurringTemplate(ctx context.Context, tpl types.RecurringTemplate) (types.RecurringTemplate, error) {
	err := s.db.QueryRow(ctx, `
INSERT INTO expense.recurring_templates (template_id, org_id, vendor, category, amount, currency, cadence, active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING template_id::text
`, tpl.TemplateID, tpl.OrgID, tpl.Vendor, tpl.Category, tpl.Amount, tpl.Currency, tpl.Cadence, tpl.Active).Scan(&tpl.TemplateID)
	if err != nil {
		return types.RecurringTemplate{}, err
	}
	return tpl, nil
}
