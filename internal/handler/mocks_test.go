package handler

import (
	"context"

	"b-resto/internal/model"
	"b-resto/internal/payment"
	"b-resto/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockOrderService is a mock implementation of OrderService.
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) SubmitOrder(ctx context.Context, sub *service.Submission) (*model.CheckoutResult, error) {
	args := m.Called(ctx, sub)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CheckoutResult), args.Error(1)
}

func (m *MockOrderService) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

// MockMenuService is a mock implementation of MenuService.
type MockMenuService struct {
	mock.Mock
}

func (m *MockMenuService) GetAll(ctx context.Context, limit, offset int) ([]model.MenuItem, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.MenuItem), args.Error(1)
}

func (m *MockMenuService) GetByID(ctx context.Context, id string) (*model.MenuItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MenuItem), args.Error(1)
}

func (m *MockMenuService) Import(ctx context.Context, items []model.MenuItem) error {
	args := m.Called(ctx, items)
	return args.Error(0)
}

// MockBoardService is a mock implementation of BoardService.
type MockBoardService struct {
	mock.Mock
}

func (m *MockBoardService) Filter(date string, limit int) (model.OrderFilter, error) {
	args := m.Called(date, limit)
	return args.Get(0).(model.OrderFilter), args.Error(1)
}

func (m *MockBoardService) List(ctx context.Context, filter model.OrderFilter) ([]model.Order, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

func (m *MockBoardService) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus) (*model.Order, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

// MockPaymentService is a mock implementation of PaymentService.
type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) HandleNotification(ctx context.Context, n *payment.Notification) (*model.Order, error) {
	args := m.Called(ctx, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}
