package service

import (
	"context"
	"time"

	"b-resto/internal/model"
	"b-resto/internal/payment"
	"b-resto/internal/realtime"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockOrderRepository is a mock implementation of OrderRepository.
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Create(ctx context.Context, order *model.Order) (*model.Order, bool, error) {
	args := m.Called(ctx, order)
	switch v := args.Get(0).(type) {
	case nil:
		return nil, args.Bool(1), args.Error(2)
	case func(*model.Order) *model.Order:
		return v(order), args.Bool(1), args.Error(2)
	default:
		return v.(*model.Order), args.Bool(1), args.Error(2)
	}
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepository) List(ctx context.Context, filter model.OrderFilter) ([]model.Order, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

func (m *MockOrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus, at time.Time) (*model.Order, error) {
	args := m.Called(ctx, id, status, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepository) UpdatePayment(ctx context.Context, id uuid.UUID, status model.PaymentStatus, ref *string, at time.Time) (*model.Order, error) {
	args := m.Called(ctx, id, status, ref, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

// MockMenuRepository is a mock implementation of MenuRepository.
type MockMenuRepository struct {
	mock.Mock
}

func (m *MockMenuRepository) GetAll(ctx context.Context, limit, offset int) ([]model.MenuItem, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.MenuItem), args.Error(1)
}

func (m *MockMenuRepository) GetByID(ctx context.Context, id string) (*model.MenuItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MenuItem), args.Error(1)
}

func (m *MockMenuRepository) GetByIDs(ctx context.Context, ids []string) ([]model.MenuItem, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.MenuItem), args.Error(1)
}

func (m *MockMenuRepository) Upsert(ctx context.Context, items []model.MenuItem) error {
	args := m.Called(ctx, items)
	return args.Error(0)
}

// MockPublisher is a mock implementation of realtime.Publisher.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event realtime.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockNotifier is a mock implementation of notify.Notifier.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) OrderPlaced(ctx context.Context, order *model.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

// MockRedirector is a mock implementation of payment.Redirector.
type MockRedirector struct {
	mock.Mock
}

func (m *MockRedirector) Initiate(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal, itemName string) (*payment.Redirect, error) {
	args := m.Called(ctx, orderID, amount, itemName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Redirect), args.Error(1)
}

func testMenu() []model.MenuItem {
	return []model.MenuItem{
		{
			ID:         "burger",
			Name:       "Burger Maison",
			Price:      decimal.NewFromInt(2500),
			Sizes:      []model.SizeOption{{ID: "xl", Name: "XL", Price: decimal.NewFromInt(3200)}},
			Extras:     []string{"cheese", "bacon"},
			ExtraPrice: decimal.NewFromInt(300),
			Available:  true,
		},
		{ID: "thieb", Name: "Thieboudienne", Price: decimal.NewFromInt(3500), Available: true},
		{ID: "yassa", Name: "Yassa Poulet", Price: decimal.NewFromInt(3000), Available: false},
	}
}
