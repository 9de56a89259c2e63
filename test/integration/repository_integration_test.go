package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"b-resto/internal/model"
	"b-resto/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrder(createdAt time.Time, key *string) *model.Order {
	size := "xl"
	return &model.Order{
		ID: uuid.New(),
		Items: model.OrderItems{
			{ProductID: "burger", Name: "Burger Maison", Price: decimal.NewFromInt(3500), Quantity: 2, Size: &size, Extras: []string{"cheese"}},
			{ProductID: "thieb", Name: "Thieboudienne", Price: decimal.NewFromInt(3500), Quantity: 1, Extras: []string{}},
		},
		Total:           decimal.NewFromInt(12390),
		Status:          model.StatusPending,
		PaymentStatus:   model.PaymentUnpaid,
		CustomerName:    "Awa Diop",
		CustomerEmail:   "awa@example.sn",
		CustomerPhone:   "771234567",
		DeliveryAddress: "Rue 10, Medina, Dakar",
		PaymentMethod:   model.PaymentCash,
		Location:        &model.Location{Latitude: 14.6937, Longitude: -17.4441},
		IdempotencyKey:  key,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
}

func TestMenuRepository_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	repo := repository.NewMenuRepository(testDB.Pool, zerolog.Nop())

	ctx := context.Background()

	t.Run("GetAll with pagination", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		SeedMenu(t, testDB.Pool)

		items, err := repo.GetAll(ctx, 4, 0)
		require.NoError(t, err)
		assert.Len(t, items, 4)

		items, err = repo.GetAll(ctx, 4, 4)
		require.NoError(t, err)
		assert.Len(t, items, 3)
	})

	t.Run("GetByID decodes sizes and extras", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		SeedMenu(t, testDB.Pool)

		item, err := repo.GetByID(ctx, "burger")
		require.NoError(t, err)
		require.NotNil(t, item)
		assert.True(t, decimal.NewFromInt(2500).Equal(item.Price))
		assert.True(t, decimal.NewFromInt(300).Equal(item.ExtraPrice))
		assert.ElementsMatch(t, []string{"cheese", "bacon", "egg"}, item.Extras)

		size, ok := item.Size("xl")
		require.True(t, ok)
		assert.True(t, decimal.NewFromInt(3200).Equal(size.Price))
	})

	t.Run("GetByID returns nil for unknown item", func(t *testing.T) {
		item, err := repo.GetByID(ctx, "ceebu-yapp")
		require.NoError(t, err)
		assert.Nil(t, item)
	})

	t.Run("GetByIDs returns only known items", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		SeedMenu(t, testDB.Pool)

		items, err := repo.GetByIDs(ctx, []string{"thieb", "bissap", "ceebu-yapp"})
		require.NoError(t, err)
		assert.Len(t, items, 2)
	})

	t.Run("Upsert replaces existing items", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		SeedMenu(t, testDB.Pool)

		item, err := repo.GetByID(ctx, "bissap")
		require.NoError(t, err)
		require.NotNil(t, item)

		item.Price = decimal.NewFromInt(600)
		item.Available = false
		require.NoError(t, repo.Upsert(ctx, []model.MenuItem{*item}))

		updated, err := repo.GetByID(ctx, "bissap")
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(600).Equal(updated.Price))
		assert.False(t, updated.Available)
	})
}

func TestOrderRepository_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	repo := repository.NewOrderRepository(testDB.Pool, zerolog.Nop())

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("Create stores a complete order", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)

		order := newTestOrder(now, nil)
		stored, created, err := repo.Create(ctx, order)
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, int64(1), stored.Version)

		got, err := repo.GetByID(ctx, order.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, order.ID, got.ID)
		assert.True(t, order.Total.Equal(got.Total))
		require.Len(t, got.Items, 2)
		require.NotNil(t, got.Items[0].Size)
		assert.Equal(t, "xl", *got.Items[0].Size)
		require.NotNil(t, got.Location)
		assert.InDelta(t, 14.6937, got.Location.Latitude, 1e-9)
		assert.True(t, now.Equal(got.CreatedAt))
	})

	t.Run("Create returns the existing order for a reused key", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)

		key := uuid.NewString()
		first, created, err := repo.Create(ctx, newTestOrder(now, &key))
		require.NoError(t, err)
		require.True(t, created)

		second, created, err := repo.Create(ctx, newTestOrder(now, &key))
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("concurrent submissions with one key create one order", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)

		key := uuid.NewString()
		const workers = 8

		var wg sync.WaitGroup
		ids := make([]uuid.UUID, workers)
		createdCount := make([]bool, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				stored, created, err := repo.Create(ctx, newTestOrder(now, &key))
				if !assert.NoError(t, err) {
					return
				}
				ids[i] = stored.ID
				createdCount[i] = created
			}(i)
		}
		wg.Wait()

		winners := 0
		for i := range ids {
			assert.Equal(t, ids[0], ids[i])
			if createdCount[i] {
				winners++
			}
		}
		assert.Equal(t, 1, winners)

		var count int
		require.NoError(t, testDB.Pool.QueryRow(ctx, "SELECT count(*) FROM orders").Scan(&count))
		assert.Equal(t, 1, count)
	})

	t.Run("GetByID returns nil for unknown order", func(t *testing.T) {
		got, err := repo.GetByID(ctx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("List filters by day and status, most recent first", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)

		dakar, err := time.LoadLocation("Africa/Dakar")
		require.NoError(t, err)
		day := time.Date(2026, 3, 14, 0, 0, 0, 0, dakar)

		early := newTestOrder(day.Add(9*time.Hour), nil)
		late := newTestOrder(day.Add(20*time.Hour), nil)
		yesterday := newTestOrder(day.Add(-time.Hour), nil)
		for _, o := range []*model.Order{early, late, yesterday} {
			_, _, err := repo.Create(ctx, o)
			require.NoError(t, err)
		}
		_, err = repo.UpdateStatus(ctx, late.ID, model.StatusReady, now)
		require.NoError(t, err)

		filter := model.DayFilter(day.Add(12*time.Hour), dakar, 50)
		orders, err := repo.List(ctx, filter)
		require.NoError(t, err)
		require.Len(t, orders, 2)
		assert.Equal(t, late.ID, orders[0].ID)
		assert.Equal(t, early.ID, orders[1].ID)

		ready := model.StatusReady
		filter.Status = &ready
		orders, err = repo.List(ctx, filter)
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, late.ID, orders[0].ID)

		filter.Status = nil
		filter.Limit = 1
		orders, err = repo.List(ctx, filter)
		require.NoError(t, err)
		assert.Len(t, orders, 1)
	})

	t.Run("UpdateStatus bumps the version and rejects terminal orders", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)

		order := newTestOrder(now, nil)
		_, _, err := repo.Create(ctx, order)
		require.NoError(t, err)

		updated, err := repo.UpdateStatus(ctx, order.ID, model.StatusCancelled, now.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, model.StatusCancelled, updated.Status)
		assert.Equal(t, int64(2), updated.Version)

		_, err = repo.UpdateStatus(ctx, order.ID, model.StatusPending, now.Add(2*time.Minute))
		assert.ErrorIs(t, err, model.ErrOrderTerminal)

		_, err = repo.UpdateStatus(ctx, uuid.New(), model.StatusReady, now)
		assert.ErrorIs(t, err, model.ErrOrderNotFound)
	})

	t.Run("UpdatePayment keeps the previous reference when none is given", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)

		order := newTestOrder(now, nil)
		_, _, err := repo.Create(ctx, order)
		require.NoError(t, err)

		token := "tok_123"
		paid, err := repo.UpdatePayment(ctx, order.ID, model.PaymentPaid, &token, now)
		require.NoError(t, err)
		assert.Equal(t, model.PaymentPaid, paid.PaymentStatus)
		require.NotNil(t, paid.PaymentRef)

		failed, err := repo.UpdatePayment(ctx, order.ID, model.PaymentFailed, nil, now)
		require.NoError(t, err)
		require.NotNil(t, failed.PaymentRef)
		assert.Equal(t, token, *failed.PaymentRef)
		assert.Equal(t, int64(3), failed.Version)

		_, err = repo.UpdatePayment(ctx, uuid.New(), model.PaymentPaid, nil, now)
		assert.ErrorIs(t, err, model.ErrOrderNotFound)
	})
}
