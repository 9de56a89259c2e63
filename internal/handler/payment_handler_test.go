package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"b-resto/internal/model"
	"b-resto/internal/payment"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func ipnForm(orderID uuid.UUID) string {
	return url.Values{
		"type_event":        {payment.EventSaleComplete},
		"ref_command":       {orderID.String()},
		"item_price":        {"10384"},
		"token":             {"tok_123"},
		"api_key_sha256":    {payment.Hash("key")},
		"api_secret_sha256": {payment.Hash("secret")},
	}.Encode()
}

func TestPaymentHandler_Notify(t *testing.T) {
	logger := zerolog.Nop()
	orderID := uuid.New()

	tests := []struct {
		name           string
		method         string
		contentType    string
		body           string
		expectService  bool
		mockReturn     *model.Order
		mockError      error
		expectedStatus int
	}{
		{
			name:           "Accepted",
			method:         http.MethodPost,
			contentType:    "application/x-www-form-urlencoded",
			body:           ipnForm(orderID),
			expectService:  true,
			mockReturn:     &model.Order{ID: orderID, PaymentStatus: model.PaymentPaid},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "JSON body",
			method:         http.MethodPost,
			contentType:    "application/json",
			body:           `{"type_event":"sale_complete","ref_command":"` + orderID.String() + `","item_price":10384}`,
			expectService:  true,
			mockReturn:     &model.Order{ID: orderID, PaymentStatus: model.PaymentPaid},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Unreadable body",
			method:         http.MethodPost,
			contentType:    "application/json",
			body:           `{not json`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Signature mismatch",
			method:         http.MethodPost,
			contentType:    "application/x-www-form-urlencoded",
			body:           ipnForm(orderID),
			expectService:  true,
			mockError:      payment.ErrSignatureMismatch,
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "Not configured",
			method:         http.MethodPost,
			contentType:    "application/x-www-form-urlencoded",
			body:           ipnForm(orderID),
			expectService:  true,
			mockError:      payment.ErrNotConfigured,
			expectedStatus: http.StatusInternalServerError,
		},
		{
			name:           "Unknown order",
			method:         http.MethodPost,
			contentType:    "application/x-www-form-urlencoded",
			body:           ipnForm(orderID),
			expectService:  true,
			mockError:      model.ErrOrderNotFound,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "Write failure",
			method:         http.MethodPost,
			contentType:    "application/x-www-form-urlencoded",
			body:           ipnForm(orderID),
			expectService:  true,
			mockError:      errors.New("connection refused"),
			expectedStatus: http.StatusInternalServerError,
		},
		{
			name:           "Method not allowed",
			method:         http.MethodGet,
			expectedStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockPaymentService)
			handler := NewPaymentHandler(mockService, logger)

			if tt.expectService {
				mockService.On("HandleNotification", mock.Anything, mock.MatchedBy(func(n *payment.Notification) bool {
					return n.RefCommand == orderID.String()
				})).Return(tt.mockReturn, tt.mockError)
			}

			req := httptest.NewRequest(tt.method, "/api/payments/ipn", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()

			handler.Notify(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			mockService.AssertExpectations(t)
		})
	}
}

func TestPaymentHandler_Notify_ReportsPaymentStatus(t *testing.T) {
	mockService := new(MockPaymentService)
	handler := NewPaymentHandler(mockService, zerolog.Nop())

	orderID := uuid.New()
	mockService.On("HandleNotification", mock.Anything, mock.Anything).
		Return(&model.Order{ID: orderID, PaymentStatus: model.PaymentPaid}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/payments/ipn", strings.NewReader(ipnForm(orderID)))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	handler.Notify(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, orderID.String(), body["orderId"])
	assert.Equal(t, "paid", body["paymentStatus"])
}
