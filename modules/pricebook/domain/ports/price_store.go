package ports

import (
	"context"

	"github.com/pricewatch/pricewatch/modules/pricebook/domain/types"
)

// PriceReadStore is the read side of the price ledger. All methods are
// point-in-time or range reads; none mutate state.
type PriceReadStore interface {
	// CurrentPrice returns the latest observation as of now.
	CurrentPrice(ctx context.Context, orgID string, itemID string) (types.PricePoint, bool, error)
	// PriceAt returns the latest observation with observed_on <= date.
	PriceAt(ctx context.Context, orgID string, itemID string, date string) (types.PricePoint, bool, error)
	// PriceHistory returns observations from startDate onward, ascending.
	PriceHistory(ctx context.Context, orgID string, itemID string, startDate string) ([]types.PricePoint, error)
	// TopPriceChanges ranks items by absolute percentage move since startDate.
	TopPriceChanges(ctx context.Context, orgID string, startDate string, limit int) ([]types.PriceChange, error)
	SearchItems(ctx context.Context, orgID string, term string) ([]types.Item, error)
	// CrossOrgItemPrices spans organizations; callers gate it on scope.
	CrossOrgItemPrices(ctx context.Context, itemName string) ([]types.OrgItemPrice, error)
}

type PriceWriteStore interface {
	UpsertItem(ctx context.Context, item types.Item) (types.Item, error)
	RecordPrice(ctx context.Context, point types.PricePoint) error
}
