package persistence

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/pricewatch/pricewatch/modules/pricebook/domain/types"
)

// PriceMemoryStore backs tests and single-node dev runs. Observation order
// within one day follows insertion order, mirroring recorded_at in the pg
// store.
type PriceMemoryStore struct {
	mu       sync.RWMutex
	items    map[string]types.Item // org|item -> item
	points   []types.PricePoint
	orgNames map[string]string
}

func NewPriceMemoryStore() *PriceMemoryStore {
	return &PriceMemoryStore{
		items:    map[string]types.Item{},
		orgNames: map[string]string{},
	}
}

func (s *PriceMemoryStore) SetOrgName(orgID string, name string) {
	s.mu.Lock()
	s.orgNames[orgID] = name
	s.mu.Unlock()
}

func itemKey(orgID, itemID string) string { return orgID + "|" + itemID }

func (s *PriceMemoryStore) UpsertItem(_ context.Context, item types.Item) (types.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[itemKey(item.OrgID, item.ItemID)] = item
	return item, nil
}

func (s *PriceMemoryStore) RecordPrice(_ context.Context, point types.PricePoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = append(s.points, point)
	return nil
}

func (s *PriceMemoryStore) CurrentPrice(ctx context.Context, orgID string, itemID string) (types.PricePoint, bool, error) {
	return s.PriceAt(ctx, orgID, itemID, "9999-12-31")
}

func (s *PriceMemoryStore) PriceAt(_ context.Context, orgID string, itemID string, date string) (types.PricePoint, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best types.PricePoint
	found := false
	for _, p := range s.points {
		if p.OrgID != orgID || p.ItemID != itemID || p.ObservedOn > date {
			continue
		}
		if !found || p.ObservedOn >= best.ObservedOn {
			best = p
			found = true
		}
	}
	return best, found, nil
}

func (s *PriceMemoryStore) PriceHistory(_ context.Context, orgID string, itemID string, startDate string) ([]types.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.PricePoint, 0, 8)
	for _, p := range s.points {
		if p.OrgID == orgID && p.ItemID == itemID && p.ObservedOn >= startDate {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ObservedOn < out[j].ObservedOn })
	return out, nil
}

func (s *PriceMemoryStore) TopPriceChanges(_ context.Context, orgID string, startDate string, limit int) ([]types.PriceChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type bounds struct {
		firstDay, lastDay     string
		firstPrice, lastPrice float64
		seen                  bool
	}
	byItem := map[string]*bounds{}
	for _, p := range s.points {
		if p.OrgID != orgID || p.ObservedOn < startDate {
			continue
		}
		b := byItem[p.ItemID]
		if b == nil {
			b = &bounds{}
			byItem[p.ItemID] = b
		}
		if !b.seen || p.ObservedOn < b.firstDay {
			b.firstDay = p.ObservedOn
			b.firstPrice = p.Price
		}
		if !b.seen || p.ObservedOn >= b.lastDay {
			b.lastDay = p.ObservedOn
			b.lastPrice = p.Price
		}
		b.seen = true
	}

	out := make([]types.PriceChange, 0, len(byItem))
	for itemID, b := range byItem {
		if b.firstPrice == 0 {
			continue
		}
		name := itemID
		if it, ok := s.items[itemKey(orgID, itemID)]; ok {
			name = it.Name
		}
		delta := b.lastPrice - b.firstPrice
		out = append(out, types.PriceChange{
			ItemID:     itemID,
			ItemName:   name,
			FirstPrice: b.firstPrice,
			LastPrice:  b.lastPrice,
			Delta:      delta,
			DeltaPct:   delta / b.firstPrice * 100,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := math.Abs(out[i].DeltaPct), math.Abs(out[j].DeltaPct)
		if di != dj {
			return di > dj
		}
		return out[i].ItemID < out[j].ItemID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *PriceMemoryStore) SearchItems(_ context.Context, orgID string, term string) ([]types.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	term = strings.ToLower(term)
	out := make([]types.Item, 0, 8)
	for _, it := range s.items {
		if it.OrgID == orgID && strings.Contains(strings.ToLower(it.Name), term) {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *PriceMemoryStore) CrossOrgItemPrices(_ context.Context, itemName string) ([]types.OrgItemPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(itemName)
	latest := map[string]types.PricePoint{}
	for _, p := range s.points {
		it, ok := s.items[itemKey(p.OrgID, p.ItemID)]
		if !ok || !strings.Contains(strings.ToLower(it.Name), needle) {
			continue
		}
		key := itemKey(p.OrgID, p.ItemID)
		if prev, ok := latest[key]; !ok || p.ObservedOn >= prev.ObservedOn {
			latest[key] = p
		}
	}

	out := make([]types.OrgItemPrice, 0, len(latest))
	for key, p := range latest {
		it := s.items[key]
		out = append(out, types.OrgItemPrice{
			OrgID:      p.OrgID,
			OrgName:    s.orgNames[p.OrgID],
			ItemID:     p.ItemID,
			ItemName:   it.Name,
			Price:      p.Price,
			Currency:   p.Currency,
			ObservedOn: p.ObservedOn,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrgID != out[j].OrgID {
			return out[i].OrgID < out[j].OrgID
		}
		return out[i].ItemID < out[j].ItemID
	})
	return out, nil
}
