package pricing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"adxchange/internal/apierr"
	"adxchange/internal/model"
	"adxchange/internal/platform/cache"
)

// Store is the admin-managed backing store for pricing tiers and
// platform settings; the cache holds a short-lived copy of the tier list,
// dropped on every tier write. Settings are read from Postgres directly.
type Store struct {
	pool  *pgxpool.Pool
	cache *cache.Cache
}

func NewStore(pool *pgxpool.Pool, c *cache.Cache) *Store {
	return &Store{pool: pool, cache: c}
}

const tiersCacheTTL = 5 * time.Minute

func (s *Store) ListTiers(ctx context.Context) ([]model.PricingTier, error) {
	var cached []model.PricingTier
	if s.cache != nil {
		if ok, _ := s.cache.GetJSON(ctx, cache.PricingTiersKey(), &cached); ok {
			return cached, nil
		}
	}

	rows, err := s.pool.Query(ctx, `
		select id, name, impressions, price_usd, is_active, sort_order
		from pricing_tiers order by sort_order asc`)
	if err != nil {
		return nil, apierr.Internal("list pricing tiers", err)
	}
	defer rows.Close()

	var out []model.PricingTier
	for rows.Next() {
		var t model.PricingTier
		if err := rows.Scan(&t.ID, &t.Name, &t.Impressions, &t.PriceUSD, &t.IsActive, &t.SortOrder); err != nil {
			return nil, apierr.Internal("scan pricing tier", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apierr.Internal("list pricing tiers", err)
	}

	if s.cache != nil {
		_ = s.cache.SetJSON(ctx, cache.PricingTiersKey(), out, tiersCacheTTL)
	}
	return out, nil
}

type UpsertTierInput struct {
	ID          string
	Name        string
	Impressions int64
	PriceUSD    decimal.Decimal
	IsActive    bool
	SortOrder   int
}

func (s *Store) UpsertTier(ctx context.Context, in UpsertTierInput) (model.PricingTier, error) {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx, `
		insert into pricing_tiers (id, name, impressions, price_usd, is_active, sort_order)
		values ($1,$2,$3,$4,$5,$6)
		on conflict (id) do update set
			name = excluded.name, impressions = excluded.impressions, price_usd = excluded.price_usd,
			is_active = excluded.is_active, sort_order = excluded.sort_order`,
		in.ID, in.Name, in.Impressions, in.PriceUSD, in.IsActive, in.SortOrder)
	if err != nil {
		return model.PricingTier{}, apierr.Internal("upsert pricing tier", err)
	}
	if s.cache != nil {
		_ = s.cache.Del(ctx, cache.PricingTiersKey())
	}
	return model.PricingTier{ID: in.ID, Name: in.Name, Impressions: in.Impressions, PriceUSD: in.PriceUSD, IsActive: in.IsActive, SortOrder: in.SortOrder}, nil
}

func (s *Store) DeleteTier(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `delete from pricing_tiers where id = $1`, id); err != nil {
		return apierr.Internal("delete pricing tier", err)
	}
	if s.cache != nil {
		_ = s.cache.Del(ctx, cache.PricingTiersKey())
	}
	return nil
}

func (s *Store) GetSettings(ctx context.Context, category string) ([]model.PlatformSettings, error) {
	rows, err := s.pool.Query(ctx, `
		select key, value, value_type, category, updated_by from platform_settings where category = $1 order by key asc`, category)
	if err != nil {
		return nil, apierr.Internal("list platform settings", err)
	}
	defer rows.Close()

	var out []model.PlatformSettings
	for rows.Next() {
		var p model.PlatformSettings
		if err := rows.Scan(&p.Key, &p.Value, &p.ValueType, &p.Category, &p.UpdatedBy); err != nil {
			return nil, apierr.Internal("scan platform setting", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) SetSetting(ctx context.Context, p model.PlatformSettings) error {
	_, err := s.pool.Exec(ctx, `
		insert into platform_settings (key, value, value_type, category, updated_by)
		values ($1,$2,$3,$4,$5)
		on conflict (key) do update set value = excluded.value, value_type = excluded.value_type,
			category = excluded.category, updated_by = excluded.updated_by`,
		p.Key, p.Value, p.ValueType, p.Category, p.UpdatedBy)
	if err != nil {
		return apierr.Internal("set platform setting", err)
	}
	return nil
}

