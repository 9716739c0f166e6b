package types

// Item is a catalog entry whose price is tracked per organization.
type Item struct {
	ItemID   string `json:"item_id"`
	OrgID    string `json:"org_id"`
	Name     string `json:"name"`
	Unit     string `json:"unit,omitempty"`
	Category string `json:"category,omitempty"`
}

// PricePoint is one observation in the append-only price ledger.
type PricePoint struct {
	ItemID     string  `json:"item_id"`
	OrgID      string  `json:"org_id"`
	Price      float64 `json:"price"`
	Currency   string  `json:"currency"`
	ObservedOn string  `json:"observed_on"`
}

// PriceChange summarizes how an item's price moved over a window.
type PriceChange struct {
	ItemID     string  `json:"item_id"`
	ItemName   string  `json:"item_name"`
	FirstPrice float64 `json:"first_price"`
	LastPrice  float64 `json:"last_price"`
	Delta      float64 `json:"delta"`
	DeltaPct   float64 `json:"delta_pct"`
}

// OrgItemPrice is a cross-organization view of one named item.
type OrgItemPrice struct {
	OrgID      string  `json:"org_id"`
	OrgName    string  `json:"org_name,omitempty"`
	ItemID     string  `json:"item_id"`
	ItemName   string  `json:"item_name"`
	Price      float64 `json:"price"`
	Currency   string  `json:"currency"`
	ObservedOn string  `json:"observed_on"`
}
