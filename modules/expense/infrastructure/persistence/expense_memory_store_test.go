package persistence

import (
	"context"
	"testing"

	"github.com/pricewatch/pricewatch/modules/expense/domain/types"
)

func seedExpenses(t *testing.T) *ExpenseMemoryStore {
	t.Helper()

	s := NewExpenseMemoryStore()
	ctx := context.Background()

	rows := []types.ExpenseRow{
		{ExpenseID: "e1", OrgID: "org1", Vendor: "Acme Feed", Category: "feed", Amount: 100, Currency: "USD", SpentOn: "2026-01-10"},
		{ExpenseID: "e2", OrgID: "org1", Vendor: "Acme Feed", Category: "feed", Amount: 50, Currency: "USD", SpentOn: "2026-01-20"},
		{ExpenseID: "e3", OrgID: "org1", Vendor: "City Power", Category: "utilities", Amount: 80, Currency: "USD", SpentOn: "2026-02-03", TemplateID: "tpl1"},
		{ExpenseID: "e4", OrgID: "org2", Vendor: "City Power", Category: "utilities", Amount: 60, Currency: "USD", SpentOn: "2026-02-04"},
	}
	for _, r := range rows {
		if _, err := s.RecordExpense(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func TestExpenseMemoryStore_MonthlyExpenses(t *testing.T) {
	s := seedExpenses(t)

	got, err := s.MonthlyExpenses(context.Background(), "org1", "2026-01-01", "2026-12-31")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got=%+v", got)
	}
	if got[0].Month != "2026-01" || got[0].Total != 150 || got[0].Count != 2 {
		t.Fatalf("jan=%+v", got[0])
	}
	if got[1].Month != "2026-02" || got[1].Total != 80 || got[1].Count != 1 {
		t.Fatalf("feb=%+v", got[1])
	}

	clipped, err := s.MonthlyExpenses(context.Background(), "org1", "2026-02-01", "2026-02-28")
	if err != nil {
		t.Fatal(err)
	}
	if len(clipped) != 1 || clipped[0].Month != "2026-02" {
		t.Fatalf("clipped=%+v", clipped)
	}
}

func TestExpenseMemoryStore_ExpensesByCategory(t *testing.T) {
	s := seedExpenses(t)

	got, err := s.ExpensesByCategory(context.Background(), "org1", "2026-01-01", "2026-12-31")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got=%+v", got)
	}
	if got[0].Category != "feed" || got[0].Total != 150 {
		t.Fatalf("first=%+v", got[0])
	}
	if got[1].Category != "utilities" || got[1].Total != 80 {
		t.Fatalf("second=%+v", got[1])
	}
}

func TestExpenseMemoryStore_TopVendors(t *testing.T) {
	s := seedExpenses(t)

	got, err := s.TopVendors(context.Background(), "org1", "2026-01-01", "2026-12-31", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Vendor != "Acme Feed" || got[0].Total != 150 || got[0].Count != 2 {
		t.Fatalf("got=%+v", got)
	}
}

func TestExpenseMemoryStore_RecurringTemplatesAndHistory(t *testing.T) {
	s := seedExpenses(t)
	ctx := context.Background()

	tpl := types.RecurringTemplate{
		TemplateID: "tpl1",
		OrgID:      "org1",
		Vendor:     "City Power",
		Category:   "utilities",
		Amount:     80,
		Currency:   "USD",
		Cadence:    "monthly",
		Active:     true,
	}
	if _, err := s.CreateRecurringTemplate(ctx, tpl); err != nil {
		t.Fatal(err)
	}

	tpls, err := s.RecurringTemplates(ctx, "org1")
	if err != nil {
		t.Fatal(err)
	}
	if len(tpls) != 1 || tpls[0].TemplateID != "tpl1" {
		t.Fatalf("tpls=%+v", tpls)
	}
	if other, _ := s.RecurringTemplates(ctx, "org2"); len(other) != 0 {
		t.Fatalf("other=%+v", other)
	}

	hist, err := s.RecurringExpenseHistory(ctx, "org1", "tpl1", "2026-01-01", "2026-12-31")
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 1 || hist[0].ExpenseID != "e3" {
		t.Fatalf("hist=%+v", hist)
	}
}

func TestExpenseMemoryStore_CrossOrgSpending(t *testing.T) {
	s := seedExpenses(t)
	s.SetOrgName("org1", "Acme")
	s.SetOrgName("org2", "Globex")

	got, err := s.CrossOrgSpending(context.Background(), "2026-01-01", "2026-12-31")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got=%+v", got)
	}
	if got[0].OrgID != "org1" || got[0].Total != 230 || got[0].OrgName != "Acme" {
		t.Fatalf("first=%+v", got[0])
	}
	if got[1].OrgID != "org2" || got[1].Total != 60 || got[1].Count != 1 {
		t.Fatalf("second=%+v", got[1])
	}
}
