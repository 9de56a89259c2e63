package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"b-resto/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const orderColumns = `
	id, items, total::text, status, payment_status, payment_ref,
	customer_name, customer_email, customer_phone, delivery_address,
	payment_method, latitude, longitude, idempotency_key, version,
	created_at, updated_at`

// orderRepository implements the OrderRepository interface using PostgreSQL.
type orderRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool *pgxpool.Pool, logger zerolog.Logger) OrderRepository {
	return &orderRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "order").Logger(),
	}
}

// Create inserts a validated order, deduplicating on the idempotency key.
func (r *orderRepository) Create(ctx context.Context, order *model.Order) (*model.Order, bool, error) {
	if err := order.Validate(); err != nil {
		r.logger.Warn().Err(err).Str("order_id", order.ID.String()).Msg("order rejected at persistence boundary")
		return nil, false, err
	}

	items, err := json.Marshal(order.Items)
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode order items: %w", err)
	}

	var lat, lng *float64
	if order.Location != nil {
		lat, lng = &order.Location.Latitude, &order.Location.Longitude
	}

	query := `
		INSERT INTO orders (
			id, items, total, status, payment_status, payment_ref,
			customer_name, customer_email, customer_phone, delivery_address,
			payment_method, latitude, longitude, idempotency_key, version,
			created_at, updated_at
		)
		VALUES ($1, $2, $3::text::numeric, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 1, $15, $16)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING ` + orderColumns

	stored, err := scanOrder(r.pool.QueryRow(ctx, query,
		order.ID,
		items,
		order.Total.String(),
		string(order.Status),
		string(order.PaymentStatus),
		order.PaymentRef,
		order.CustomerName,
		order.CustomerEmail,
		order.CustomerPhone,
		order.DeliveryAddress,
		string(order.PaymentMethod),
		lat,
		lng,
		order.IdempotencyKey,
		order.CreatedAt,
		order.UpdatedAt,
	))
	if err == nil {
		r.logger.Debug().Str("order_id", stored.ID.String()).Msg("order created successfully")
		return stored, true, nil
	}

	if !errors.Is(err, pgx.ErrNoRows) || order.IdempotencyKey == nil {
		r.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to create order")
		return nil, false, fmt.Errorf("failed to create order: %w", err)
	}

	existing, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE idempotency_key = $1`,
		*order.IdempotencyKey,
	))
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to load order for replayed idempotency key")
		return nil, false, fmt.Errorf("failed to load existing order: %w", err)
	}

	r.logger.Info().
		Str("order_id", existing.ID.String()).
		Msg("idempotency key replayed, returning existing order")

	return existing, false, nil
}

// GetByID retrieves an order by its ID.
func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	order, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("order_id", id.String()).Msg("order not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to query order")
		return nil, fmt.Errorf("failed to query order: %w", err)
	}
	return order, nil
}

// List returns orders matching the filter, most recent first.
func (r *orderRepository) List(ctx context.Context, filter model.OrderFilter) ([]model.Order, error) {
	var status *string
	if filter.Status != nil {
		s := string(*filter.Status)
		status = &s
	}

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
		  AND ($2::timestamptz IS NULL OR created_at < $2)
		  AND ($3::text IS NULL OR status = $3)
		ORDER BY created_at DESC, id
		LIMIT NULLIF($4::int, 0)
	`

	rows, err := r.pool.Query(ctx, query, filter.From, filter.To, status, filter.Limit)
	if err != nil {
		r.logger.Error().Err(err).Int("limit", filter.Limit).Msg("failed to query orders")
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := []model.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan order row")
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating order rows")
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}

// UpdateStatus changes the status unless the stored order is terminal. There
// is no version check: concurrent updates to an active order are last-write-wins.
func (r *orderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus, at time.Time) (*model.Order, error) {
	if !status.Valid() {
		return nil, model.ErrInvalidStatus
	}

	query := `
		UPDATE orders
		SET status = $2, updated_at = $3, version = version + 1
		WHERE id = $1 AND status NOT IN ('delivered', 'cancelled')
		RETURNING ` + orderColumns

	order, err := scanOrder(r.pool.QueryRow(ctx, query, id, string(status), at))
	if err == nil {
		r.logger.Debug().
			Str("order_id", id.String()).
			Str("status", string(status)).
			Int64("version", order.Version).
			Msg("order status updated")
		return order, nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to update order status")
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check order existence: %w", err)
	}
	if !exists {
		return nil, model.ErrOrderNotFound
	}

	r.logger.Warn().
		Str("order_id", id.String()).
		Str("status", string(status)).
		Msg("status change rejected for terminal order")
	return nil, model.ErrOrderTerminal
}

// UpdatePayment records the payment outcome. Terminal orders still accept it.
func (r *orderRepository) UpdatePayment(ctx context.Context, id uuid.UUID, status model.PaymentStatus, ref *string, at time.Time) (*model.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("unknown payment status %q", status)
	}

	query := `
		UPDATE orders
		SET payment_status = $2, payment_ref = COALESCE($3, payment_ref),
		    updated_at = $4, version = version + 1
		WHERE id = $1
		RETURNING ` + orderColumns

	order, err := scanOrder(r.pool.QueryRow(ctx, query, id, string(status), ref, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrOrderNotFound
		}
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to update payment status")
		return nil, fmt.Errorf("failed to update payment status: %w", err)
	}

	r.logger.Debug().
		Str("order_id", id.String()).
		Str("payment_status", string(status)).
		Msg("order payment updated")

	return order, nil
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o             model.Order
		items         []byte
		total         string
		status        string
		paymentStatus string
		method        string
		lat, lng      *float64
	)

	err := row.Scan(
		&o.ID,
		&items,
		&total,
		&status,
		&paymentStatus,
		&o.PaymentRef,
		&o.CustomerName,
		&o.CustomerEmail,
		&o.CustomerPhone,
		&o.DeliveryAddress,
		&method,
		&lat,
		&lng,
		&o.IdempotencyKey,
		&o.Version,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("failed to decode order items: %w", err)
	}
	if o.Total, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("failed to decode order total: %w", err)
	}

	o.Status = model.OrderStatus(status)
	o.PaymentStatus = model.PaymentStatus(paymentStatus)
	o.PaymentMethod = model.PaymentMethod(method)
	if lat != nil && lng != nil {
		o.Location = &model.Location{Latitude: *lat, Longitude: *lng}
	}

	return &o, nil
}
