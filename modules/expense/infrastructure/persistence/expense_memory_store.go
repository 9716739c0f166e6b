package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/pricewatch/pricewatch/modules/expense/domain/types"
)

// ExpenseMemoryStore backs tests and single-node dev runs.
type ExpenseMemoryStore struct {
	mu        sync.RWMutex
	expenses  []types.ExpenseRow
	templates []types.RecurringTemplate
	orgNames  map[string]string
}

func NewExpenseMemoryStore() *ExpenseMemoryStore {
	return &ExpenseMemoryStore{orgNames: map[string]string{}}
}

func (s *ExpenseMemoryStore) SetOrgName(orgID string, name string) {
	s.mu.Lock()
	s.orgNames[orgID] = name
	s.mu.Unlock()
}

func (s *ExpenseMemoryStore) RecordExpense(_ context.Context, row types.ExpenseRow) (types.ExpenseRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expenses = append(s.expenses, row)
	return row, nil
}

func (s *ExpenseMemoryStore) CreateRecurringTemplate(_ context.Context, tpl types.RecurringTemplate) (types.RecurringTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates = append(s.templates, tpl)
	return tpl, nil
}

func inRange(day, start, end string) bool { return day >= start && day <= end }

func (s *ExpenseMemoryStore) MonthlyExpenses(_ context.Context, orgID string, startDate string, endDate string) ([]types.MonthlyTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byMonth := map[string]*types.MonthlyTotal{}
	for _, e := range s.expenses {
		if e.OrgID != orgID || !inRange(e.SpentOn, startDate, endDate) {
			continue
		}
		month := e.SpentOn
		if len(month) >= 7 {
			month = month[:7]
		}
		m := byMonth[month]
		if m == nil {
			m = &types.MonthlyTotal{Month: month}
			byMonth[month] = m
		}
		m.Total += e.Amount
		m.Count++
	}

	out := make([]types.MonthlyTotal, 0, len(byMonth))
	for _, m := range byMonth {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

func (s *ExpenseMemoryStore) ExpensesByCategory(_ context.Context, orgID string, startDate string, endDate string) ([]types.CategoryTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byCat := map[string]*types.CategoryTotal{}
	for _, e := range s.expenses {
		if e.OrgID != orgID || !inRange(e.SpentOn, startDate, endDate) {
			continue
		}
		c := byCat[e.Category]
		if c == nil {
			c = &types.CategoryTotal{Category: e.Category}
			byCat[e.Category] = c
		}
		c.Total += e.Amount
		c.Count++
	}

	out := make([]types.CategoryTotal, 0, len(byCat))
	for _, c := range byCat {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}

func (s *ExpenseMemoryStore) TopVendors(_ context.Context, orgID string, startDate string, endDate string, limit int) ([]types.VendorTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byVendor := map[string]*types.VendorTotal{}
	for _, e := range s.expenses {
		if e.OrgID != orgID || !inRange(e.SpentOn, startDate, endDate) {
			continue
		}
		v := byVendor[e.Vendor]
		if v == nil {
			v = &types.VendorTotal{Vendor: e.Vendor}
			byVendor[e.Vendor] = v
		}
		v.Total += e.Amount
		v.Count++
	}

	out := make([]types.VendorTotal, 0, len(byVendor))
	for _, v := range byVendor {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Vendor < out[j].Vendor
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *ExpenseMemoryStore) RecurringTemplates(_ context.Context, orgID string) ([]types.RecurringTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.RecurringTemplate, 0, 8)
	for _, t := range s.templates {
		if t.OrgID == orgID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Vendor != out[j].Vendor {
			return out[i].Vendor < out[j].Vendor
		}
		return out[i].TemplateID < out[j].TemplateID
	})
	return out, nil
}

func (s *ExpenseMemoryStore) RecurringExpenseHistory(_ context.Context, orgID string, templateID string, startDate string, endDate string) ([]types.ExpenseRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.ExpenseRow, 0, 8)
	for _, e := range s.expenses {
		if e.OrgID == orgID && e.TemplateID == templateID && inRange(e.SpentOn, startDate, endDate) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SpentOn < out[j].SpentOn })
	return out, nil
}

func (s *ExpenseMemoryStore) CrossOrgSpending(_ context.Context, startDate string, endDate string) ([]types.OrgSpendTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byOrg := map[string]*types.OrgSpendTotal{}
	for _, e := range s.expenses {
		if !inRange(e.SpentOn, startDate, endDate) {
			continue
		}
		o := byOrg[e.OrgID]
		if o == nil {
			o = &types.OrgSpendTotal{OrgID: e.OrgID, OrgName: s.orgNames[e.OrgID]}
			byOrg[e.OrgID] = o
		}
		o.Total += e.Amount
		o.Count++
	}

	out := make([]types.OrgSpendTotal, 0, len(byOrg))
	for _, o := range byOrg {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].OrgID < out[j].OrgID
	})
	return out, nil
}
