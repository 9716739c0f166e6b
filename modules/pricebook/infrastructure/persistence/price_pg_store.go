package persistence

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pricewatch/pricewatch/modules/pricebook/domain/types"
)

type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PricePGStore struct {
	db pgQuerier
}

func NewPricePGStore(db pgQuerier) *PricePGStore {
	return &PricePGStore{db: db}
}

func (s *PricePGStore) CurrentPrice(ctx context.Context, orgID string, itemID string) (types.PricePoint, bool, error) {
	return s.latestAsOf(ctx, orgID, itemID, "")
}

func (s *PricePGStore) PriceAt(ctx context.Context, orgID string, itemID string, date string) (types.PricePoint, bool, error) {
	return s.latestAsOf(ctx, orgID, itemID, date)
}

func (s *PricePGStore) latestAsOf(ctx context.Context, orgID string, itemID string, date string) (types.PricePoint, bool, error) {
	sql := `
SELECT org_id::text, item_id::text, price, currency, observed_on::text
FROM pricebook.price_points
WHERE org_id = $1 AND item_id = $2
`
	args := []any{orgID, itemID}
	if date != "" {
		sql += ` AND observed_on <= $3`
		args = append(args, date)
	}
	sql += ` ORDER BY observed_on DESC, recorded_at DESC LIMIT 1`

	var p types.PricePoint
	err := s.db.QueryRow(ctx, sql, args...).Scan(&p.OrgID, &p.ItemID, &p.Price, &p.Currency, &p.ObservedOn)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.PricePoint{}, false, nil
		}
		return types.PricePoint{}, false, err
	}
	return p, true, nil
}

func (s *PricePGStore) PriceHistory(ctx context.Context, orgID string, itemID string, startDate string) ([]types.PricePoint, error) {
	rows, err := s.db.Query(ctx, `
SELECT org_id::text, item_id::text, price, currency, observed_on::text
FROM pricebook.price_points
WHERE org_id = $1 AND item_id = $2 AND observed_on >= $3
ORDER BY observed_on ASC, recorded_at ASC
`, orgID, itemID, startDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]types.PricePoint, 0, 16)
	for rows.Next() {
		var p types.PricePoint
		if err := rows.Scan(&p.OrgID, &p.ItemID, &p.Price, &p.Currency, &p.ObservedOn); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PricePGStore) TopPriceChanges(ctx context.Context, orgID string, startDate string, limit int) ([]types.PriceChange, error) {
	rows, err := s.db.Query(ctx, `
WITH window_points AS (
  SELECT item_id, price, observed_on, recorded_at
  FROM pricebook.price_points
  WHERE org_id = $1 AND observed_on >= $2
), bounds AS (
  SELECT DISTINCT item_id,
    first_value(price) OVER w AS first_price,
    last_value(price) OVER (PARTITION BY item_id ORDER BY observed_on, recorded_at
      ROWS BETWEEN UNBOUNDED PRECEDING AND UNBOUNDED FOLLOWING) AS last_price
  FROM window_points
  WINDOW w AS (PARTITION BY item_id ORDER BY observed_on, recorded_at)
)
SELECT b.item_id::text, i.name, b.first_price, b.last_price
FROM bounds b
JOIN pricebook.items i ON i.item_id = b.item_id AND i.org_id = $1
WHERE b.first_price <> 0
ORDER BY abs((b.last_price - b.first_price) / b.first_price) DESC
LIMIT $3
`, orgID, startDate, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]types.PriceChange, 0, limit)
	for rows.Next() {
		var c types.PriceChange
		if err := rows.Scan(&c.ItemID, &c.ItemName, &c.FirstPrice, &c.LastPrice); err != nil {
			return nil, err
		}
		c.Delta = c.LastPrice - c.FirstPrice
		if c.FirstPrice != 0 {
			c.DeltaPct = c.Delta / c.FirstPrice * 100
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PricePGStore) SearchItems(ctx context.Context, orgID string, term string) ([]types.Item, error) {
	rows, err := s.db.Query(ctx, `
SELECT item_id::text, org_id::text, name, COALESCE(unit, ''), COALESCE(category, '')
FROM pricebook.items
WHERE org_id = $1 AND name ILIKE '%' || $2 || '%'
ORDER BY name ASC
`, orgID, term)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]types.Item, 0, 16)
	for rows.Next() {
		var it types.Item
		if err := rows.Scan(&it.ItemID, &it.OrgID, &it.Name, &it.Unit, &it.Category); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *PricePGStore) CrossOrgItemPrices(ctx context.Context, itemName string) ([]types.OrgItemPrice, error) {
	rows, err := s.db.Query(ctx, `
SELECT DISTINCT ON (p.org_id, p.item_id)
  p.org_id::text, COALESCE(t.name, ''), p.item_id::text, i.name,
  p.price, p.currency, p.observed_on::text
FROM pricebook.price_points p
JOIN pricebook.items i ON i.item_id = p.item_id AND i.org_id = p.org_id
LEFT JOIN iam.tenants t ON t.id = p.org_id
WHERE i.name ILIKE '%' || $1 || '%'
ORDER BY p.org_id, p.item_id, p.observed_on DESC, p.recorded_at DESC
`, itemName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]types.OrgItemPrice, 0, 16)
	for rows.Next() {
		var r types.OrgItemPrice
		if err := rows.Scan(&r.OrgID, &r.OrgName, &r.ItemID, &r.ItemName, &r.Price, &r.Currency, &r.ObservedOn); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PricePGStore) UpsertItem(ctx context.Context, item types.Item) (types.Item, error) {
	err := s.db.QueryRow(ctx, `
INSERT INTO pricebook.items (item_id, org_id, name, unit, category)
VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''))
ON CONFLICT (org_id, item_id)
DO UPDATE SET name = EXCLUDED.name, unit = EXCLUDED.unit, category = EXCLUDED.category
RETURNING item_id::text
`, item.ItemID, item.OrgID, item.Name, item.Unit, item.Category).Scan(&item.ItemID)
	if err != nil {
		return types.Item{}, err
	}
	return item, nil
}

func (s *PricePGStore) RecordPrice(ctx context.Context, point types.PricePoint) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO pricebook.price_points (org_id, item_id, price, currency, observed_on, recorded_at)
VALUES ($1, $2, $3, $4, $5, now())
`, point.OrgID, point.ItemID, point.Price, point.Currency, point.ObservedOn)
	return err
}
