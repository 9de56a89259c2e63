// Package payment talks to the PayTech mobile-money gateway.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"b-resto/internal/config"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrNotConfigured is returned when gateway credentials are missing.
var ErrNotConfigured = errors.New("payment gateway credentials are not configured")

// Redirect is where the customer must be sent to pay.
type Redirect struct {
	Token string `json:"token"`
	URL   string `json:"redirectUrl"`
}

// Redirector opens a hosted payment session for a persisted order.
type Redirector interface {
	Initiate(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal, itemName string) (*Redirect, error)
}

type payTech struct {
	cfg        config.PaymentConfig
	successURL string
	client     *http.Client
	logger     zerolog.Logger
}

// NewPayTech creates a Redirector backed by the PayTech request-payment API.
// successURL is the order status page; the order id is appended as orderId.
func NewPayTech(cfg config.PaymentConfig, successURL string, logger zerolog.Logger) Redirector {
	return &payTech{
		cfg:        cfg,
		successURL: successURL,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger.With().Str("component", "paytech").Logger(),
	}
}

type paymentRequest struct {
	ItemName    string `json:"item_name"`
	ItemPrice   string `json:"item_price"`
	Currency    string `json:"currency"`
	RefCommand  string `json:"ref_command"`
	CommandName string `json:"command_name"`
	Env         string `json:"env"`
	IPNURL      string `json:"ipn_url,omitempty"`
	SuccessURL  string `json:"success_url"`
	CancelURL   string `json:"cancel_url,omitempty"`
	CustomField string `json:"custom_field"`
}

type paymentResponse struct {
	Success     int    `json:"success"`
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
	RedirectAlt string `json:"redirectUrl"`
	Message     string `json:"message"`
}

func (p *payTech) Initiate(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal, itemName string) (*Redirect, error) {
	if !p.cfg.Configured() {
		return nil, ErrNotConfigured
	}

	custom, err := json.Marshal(CustomField{OrderID: orderID.String()})
	if err != nil {
		return nil, fmt.Errorf("failed to encode custom field: %w", err)
	}

	body, err := json.Marshal(paymentRequest{
		ItemName:    itemName,
		ItemPrice:   amount.Round(0).String(),
		Currency:    p.cfg.Currency,
		RefCommand:  orderID.String(),
		CommandName: fmt.Sprintf("Commande %s", orderID.String()[:8]),
		Env:         p.cfg.Env,
		IPNURL:      p.cfg.IPNURL,
		SuccessURL:  withOrderID(p.successURL, orderID),
		CancelURL:   p.cfg.CancelURL,
		CustomField: string(custom),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode payment request: %w", err)
	}

	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/payment/request-payment"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build payment request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("API_KEY", p.cfg.APIKey)
	req.Header.Set("API_SECRET", p.cfg.APISecret)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payment gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read payment gateway response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.logger.Error().
			Int("status", resp.StatusCode).
			Str("order_id", orderID.String()).
			Msg("payment gateway rejected request")
		return nil, fmt.Errorf("payment gateway returned status %d", resp.StatusCode)
	}

	var out paymentResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("invalid payment gateway response: %w", err)
	}

	redirectURL := out.RedirectURL
	if redirectURL == "" {
		redirectURL = out.RedirectAlt
	}
	if out.Success != 1 || redirectURL == "" {
		msg := out.Message
		if msg == "" {
			msg = "no redirect url"
		}
		return nil, fmt.Errorf("payment gateway declined request: %s", msg)
	}

	p.logger.Info().
		Str("order_id", orderID.String()).
		Str("token", out.Token).
		Msg("payment session created")

	return &Redirect{Token: out.Token, URL: redirectURL}, nil
}

func withOrderID(base string, orderID uuid.UUID) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "?orderId=" + orderID.String()
	}
	q := u.Query()
	q.Set("orderId", orderID.String())
	u.RawQuery = q.Encode()
	return u.String()
}
