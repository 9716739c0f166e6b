package persistence

import (
	"context"
	"math"
	"testing"

	"github.com/pricewatch/pricewatch/modules/pricebook/domain/types"
)

func seedStore(t *testing.T) *PriceMemoryStore {
	t.Helper()

	s := NewPriceMemoryStore()
	ctx := context.Background()

	items := []types.Item{
		{ItemID: "i-eggs", OrgID: "org1", Name: "Eggs dozen", Unit: "dozen", Category: "dairy"},
		{ItemID: "i-milk", OrgID: "org1", Name: "Milk 1L", Unit: "liter", Category: "dairy"},
		{ItemID: "i-eggs", OrgID: "org2", Name: "Eggs dozen", Unit: "dozen", Category: "dairy"},
	}
	for _, it := range items {
		if _, err := s.UpsertItem(ctx, it); err != nil {
			t.Fatal(err)
		}
	}

	points := []types.PricePoint{
		{ItemID: "i-eggs", OrgID: "org1", Price: 3.10, Currency: "USD", ObservedOn: "2026-01-05"},
		{ItemID: "i-eggs", OrgID: "org1", Price: 3.45, Currency: "USD", ObservedOn: "2026-02-05"},
		{ItemID: "i-milk", OrgID: "org1", Price: 1.50, Currency: "USD", ObservedOn: "2026-01-10"},
		{ItemID: "i-milk", OrgID: "org1", Price: 1.55, Currency: "USD", ObservedOn: "2026-02-10"},
		{ItemID: "i-eggs", OrgID: "org2", Price: 2.90, Currency: "USD", ObservedOn: "2026-02-01"},
	}
	for _, p := range points {
		if err := s.RecordPrice(ctx, p); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func TestPriceMemoryStore_CurrentAndAt(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()

	p, ok, err := s.CurrentPrice(ctx, "org1", "i-eggs")
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if p.Price != 3.45 || p.ObservedOn != "2026-02-05" {
		t.Fatalf("current=%+v", p)
	}

	p, ok, err = s.PriceAt(ctx, "org1", "i-eggs", "2026-01-31")
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if p.Price != 3.10 {
		t.Fatalf("at=%+v", p)
	}

	if _, ok, err := s.PriceAt(ctx, "org1", "i-eggs", "2026-01-01"); err != nil || ok {
		t.Fatalf("before first observation ok=%v err=%v", ok, err)
	}
	if _, ok, err := s.CurrentPrice(ctx, "org2", "i-milk"); err != nil || ok {
		t.Fatalf("foreign org ok=%v err=%v", ok, err)
	}
}

func TestPriceMemoryStore_History(t *testing.T) {
	s := seedStore(t)

	hist, err := s.PriceHistory(context.Background(), "org1", "i-eggs", "2026-02-01")
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 1 || hist[0].ObservedOn != "2026-02-05" {
		t.Fatalf("hist=%+v", hist)
	}

	all, err := s.PriceHistory(context.Background(), "org1", "i-eggs", "2026-01-01")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].ObservedOn > all[1].ObservedOn {
		t.Fatalf("all=%+v", all)
	}
}

func TestPriceMemoryStore_TopPriceChanges(t *testing.T) {
	s := seedStore(t)

	changes, err := s.TopPriceChanges(context.Background(), "org1", "2026-01-01", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(changes) != 2 {
		t.Fatalf("changes=%+v", changes)
	}
	// eggs moved 11.3%, milk 3.3%, so eggs rank first.
	if changes[0].ItemID != "i-eggs" || changes[1].ItemID != "i-milk" {
		t.Fatalf("order=%+v", changes)
	}
	if changes[0].ItemName != "Eggs dozen" {
		t.Fatalf("name=%q", changes[0].ItemName)
	}
	wantPct := (3.45 - 3.10) / 3.10 * 100
	if math.Abs(changes[0].DeltaPct-wantPct) > 1e-9 {
		t.Fatalf("pct=%v want %v", changes[0].DeltaPct, wantPct)
	}

	limited, err := s.TopPriceChanges(context.Background(), "org1", "2026-01-01", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 || limited[0].ItemID != "i-eggs" {
		t.Fatalf("limited=%+v", limited)
	}
}

func TestPriceMemoryStore_SearchItems(t *testing.T) {
	s := seedStore(t)

	got, err := s.SearchItems(context.Background(), "org1", "EGG")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ItemID != "i-eggs" {
		t.Fatalf("got=%+v", got)
	}

	none, err := s.SearchItems(context.Background(), "org1", "bread")
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Fatalf("none=%+v", none)
	}
}

func TestPriceMemoryStore_CrossOrgItemPrices(t *testing.T) {
	s := seedStore(t)
	s.SetOrgName("org1", "Acme")
	s.SetOrgName("org2", "Globex")

	got, err := s.CrossOrgItemPrices(context.Background(), "eggs")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got=%+v", got)
	}
	if got[0].OrgID != "org1" || got[0].Price != 3.45 || got[0].OrgName != "Acme" {
		t.Fatalf("org1=%+v", got[0])
	}
	if got[1].OrgID != "org2" || got[1].Price != 2.90 || got[1].OrgName != "Globex" {
		t.Fatalf("org2=%+v", got[1])
	}
}
