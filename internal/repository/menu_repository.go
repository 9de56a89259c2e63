package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"b-resto/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const menuColumns = `
	id, name, description, price::text, category, image,
	sizes, extras, extra_price::text, available, created_at, updated_at`

// menuRepository implements the MenuRepository interface using PostgreSQL.
type menuRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewMenuRepository creates a new PostgreSQL-backed menu repository.
func NewMenuRepository(pool *pgxpool.Pool, logger zerolog.Logger) MenuRepository {
	return &menuRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "menu").Logger(),
	}
}

// GetAll retrieves menu items grouped by category, then name.
func (r *menuRepository) GetAll(ctx context.Context, limit, offset int) ([]model.MenuItem, error) {
	query := `
		SELECT ` + menuColumns + `
		FROM menu_items
		ORDER BY category, name
		LIMIT $1 OFFSET $2
	`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error().Err(err).
			Int("limit", limit).
			Int("offset", offset).
			Msg("failed to query menu items")
		return nil, fmt.Errorf("failed to query menu items: %w", err)
	}
	defer rows.Close()

	return r.collect(rows)
}

// GetByID retrieves a single menu item by its ID.
func (r *menuRepository) GetByID(ctx context.Context, id string) (*model.MenuItem, error) {
	item, err := scanMenuItem(r.pool.QueryRow(ctx, `SELECT `+menuColumns+` FROM menu_items WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("menu_item_id", id).Msg("menu item not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("menu_item_id", id).Msg("failed to query menu item")
		return nil, fmt.Errorf("failed to query menu item: %w", err)
	}

	return item, nil
}

// GetByIDs retrieves multiple menu items by their IDs.
func (r *menuRepository) GetByIDs(ctx context.Context, ids []string) ([]model.MenuItem, error) {
	if len(ids) == 0 {
		return []model.MenuItem{}, nil
	}

	query := `
		SELECT ` + menuColumns + `
		FROM menu_items
		WHERE id = ANY($1)
		ORDER BY name
	`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		r.logger.Error().Err(err).Int("count", len(ids)).Msg("failed to query menu items by IDs")
		return nil, fmt.Errorf("failed to query menu items by IDs: %w", err)
	}
	defer rows.Close()

	return r.collect(rows)
}

// Upsert inserts or replaces menu items in a single transaction.
func (r *menuRepository) Upsert(ctx context.Context, items []model.MenuItem) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// No-op once committed.
		_ = tx.Rollback(ctx)
	}()

	query := `
		INSERT INTO menu_items (id, name, description, price, category, image, sizes, extras, extra_price, available, created_at, updated_at)
		VALUES ($1, $2, $3, $4::text::numeric, $5, $6, $7, $8, $9::text::numeric, $10, $11, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			price = EXCLUDED.price,
			category = EXCLUDED.category,
			image = EXCLUDED.image,
			sizes = EXCLUDED.sizes,
			extras = EXCLUDED.extras,
			extra_price = EXCLUDED.extra_price,
			available = EXCLUDED.available,
			updated_at = EXCLUDED.updated_at
	`

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, item := range items {
		sizes, err := json.Marshal(nonNilSizes(item.Sizes))
		if err != nil {
			return fmt.Errorf("failed to encode sizes for %s: %w", item.ID, err)
		}
		extras, err := json.Marshal(nonNilStrings(item.Extras))
		if err != nil {
			return fmt.Errorf("failed to encode extras for %s: %w", item.ID, err)
		}
		batch.Queue(query,
			item.ID, item.Name, item.Description, item.Price.String(), item.Category, item.Image,
			sizes, extras, item.ExtraPrice.String(), item.Available, now,
		)
	}

	results := tx.SendBatch(ctx, batch)
	for i := 0; i < len(items); i++ {
		if _, err := results.Exec(); err != nil {
			results.Close()
			r.logger.Error().
				Err(err).
				Str("menu_item_id", items[i].ID).
				Msg("failed to upsert menu item")
			return fmt.Errorf("failed to upsert menu item %s: %w", items[i].ID, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to upsert menu items: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.Error().Err(err).Msg("failed to commit menu upsert")
		return fmt.Errorf("failed to commit menu upsert: %w", err)
	}

	r.logger.Info().Int("count", len(items)).Msg("menu items upserted")
	return nil
}

func (r *menuRepository) collect(rows pgx.Rows) ([]model.MenuItem, error) {
	items := []model.MenuItem{}
	for rows.Next() {
		item, err := scanMenuItem(rows)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan menu item row")
			return nil, fmt.Errorf("failed to scan menu item: %w", err)
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating menu item rows")
		return nil, fmt.Errorf("error iterating menu items: %w", err)
	}

	return items, nil
}

func scanMenuItem(row pgx.Row) (*model.MenuItem, error) {
	var (
		m                 model.MenuItem
		price, extraPrice string
		sizes, extras     []byte
	)

	err := row.Scan(
		&m.ID, &m.Name, &m.Description, &price, &m.Category, &m.Image,
		&sizes, &extras, &extraPrice, &m.Available, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if m.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("failed to decode price: %w", err)
	}
	if m.ExtraPrice, err = decimal.NewFromString(extraPrice); err != nil {
		return nil, fmt.Errorf("failed to decode extra price: %w", err)
	}
	if err := json.Unmarshal(sizes, &m.Sizes); err != nil {
		return nil, fmt.Errorf("failed to decode sizes: %w", err)
	}
	if err := json.Unmarshal(extras, &m.Extras); err != nil {
		return nil, fmt.Errorf("failed to decode extras: %w", err)
	}

	return &m, nil
}

func nonNilSizes(s []model.SizeOption) []model.SizeOption {
	if s == nil {
		return []model.SizeOption{}
	}
	return s
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
