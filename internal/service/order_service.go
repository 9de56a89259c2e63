package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"b-resto/internal/cart"
	"b-resto/internal/model"
	"b-resto/internal/notify"
	"b-resto/internal/payment"
	"b-resto/internal/realtime"
	"b-resto/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxIdempotencyKeyLength = 128

var (
	emailPattern   = regexp.MustCompile(`^[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}$`)
	phonePattern   = regexp.MustCompile(`^[0-9]{9}$`)
	addressPattern = regexp.MustCompile(`^[\p{L}\p{N}\s\-,.']{4,}$`)
	cityPattern    = regexp.MustCompile(`^[\p{L}\p{N}\s\-,.']{5,}$`)
)

// Customer is the contact and delivery information entered at checkout.
type Customer struct {
	Name       string
	Email      string
	Phone      string
	Address    string
	City       string
	PostalCode string
}

// Submission is everything the customer confirms at checkout.
type Submission struct {
	Cart           *cart.Cart
	Customer       Customer
	PaymentMethod  model.PaymentMethod
	Location       *model.Location
	IdempotencyKey string
}

// CheckoutConfig holds the storefront settings used at submission.
type CheckoutConfig struct {
	TaxRate        decimal.Decimal
	WhatsAppNumber string
	StatusPageURL  string
}

// orderService implements OrderService.
type orderService struct {
	orderRepo  repository.OrderRepository
	menuRepo   repository.MenuRepository
	publisher  realtime.Publisher
	notifier   notify.Notifier
	redirector payment.Redirector
	cfg        CheckoutConfig
	tracer     trace.Tracer
	now        func() time.Time
	logger     zerolog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(
	orderRepo repository.OrderRepository,
	menuRepo repository.MenuRepository,
	publisher realtime.Publisher,
	notifier notify.Notifier,
	redirector payment.Redirector,
	cfg CheckoutConfig,
	logger zerolog.Logger,
) OrderService {
	return &orderService{
		orderRepo:  orderRepo,
		menuRepo:   menuRepo,
		publisher:  publisher,
		notifier:   notifier,
		redirector: redirector,
		cfg:        cfg,
		tracer:     otel.Tracer("b-resto/service"),
		now:        time.Now,
		logger:     logger.With().Str("service", "order").Logger(),
	}
}

// SubmitOrder validates and reprices the cart, then persists the order or
// builds the WhatsApp hand-off link.
func (s *orderService) SubmitOrder(ctx context.Context, sub *Submission) (result *model.CheckoutResult, err error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.SubmitOrder")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := validateSubmission(sub); err != nil {
		s.logger.Warn().Err(err).Msg("checkout rejected")
		return nil, err
	}

	span.SetAttributes(attribute.String("payment.method", string(sub.PaymentMethod)))

	items, err := s.reprice(ctx, sub.Cart.Lines())
	if err != nil {
		return nil, err
	}

	subtotal := items.Subtotal()
	total := subtotal.Mul(decimal.NewFromInt(1).Add(s.cfg.TaxRate)).Round(2)
	tax := total.Sub(subtotal)

	if sub.PaymentMethod == model.PaymentWhatsApp {
		link := s.whatsAppLink(sub, items, total)
		s.logger.Info().Int("item_count", len(items)).Msg("checkout handed off to WhatsApp")
		return &model.CheckoutResult{
			Subtotal:    subtotal,
			Tax:         tax,
			Total:       total,
			WhatsAppURL: link,
		}, nil
	}

	now := s.now().UTC()
	order := &model.Order{
		ID:              uuid.New(),
		Items:           items,
		Total:           total,
		Status:          model.StatusPending,
		PaymentStatus:   model.PaymentUnpaid,
		CustomerName:    strings.TrimSpace(sub.Customer.Name),
		CustomerEmail:   strings.ToLower(strings.TrimSpace(sub.Customer.Email)),
		CustomerPhone:   strings.TrimSpace(sub.Customer.Phone),
		DeliveryAddress: deliveryAddress(sub.Customer),
		PaymentMethod:   sub.PaymentMethod,
		Location:        sub.Location,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if key := strings.TrimSpace(sub.IdempotencyKey); key != "" {
		order.IdempotencyKey = &key
	}

	stored, created, err := s.orderRepo.Create(ctx, order)
	if err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			return nil, verr
		}
		s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to persist order")
		return nil, &model.PersistenceError{Op: "create order", Err: err}
	}

	sub.Cart.Clear()

	if created {
		s.announce(ctx, stored)
		s.logger.Info().
			Str("order_id", stored.ID.String()).
			Str("payment_method", string(stored.PaymentMethod)).
			Str("total", stored.Total.String()).
			Msg("order placed")
	} else {
		s.logger.Info().Str("order_id", stored.ID.String()).Msg("checkout replayed for existing order")
	}
	span.SetAttributes(attribute.String("order.id", stored.ID.String()), attribute.Bool("order.replayed", !created))

	id := stored.ID
	result = &model.CheckoutResult{
		OrderID:   &id,
		Order:     stored,
		Replayed:  !created,
		Subtotal:  stored.Items.Subtotal(),
		Total:     stored.Total,
		StatusURL: s.statusURL(id),
	}
	result.Tax = result.Total.Sub(result.Subtotal)

	if stored.PaymentMethod == model.PaymentMobileMoney && stored.PaymentStatus != model.PaymentPaid {
		redirect, err := s.redirector.Initiate(ctx, id, stored.Total, paymentItemName(stored))
		if err != nil {
			s.logger.Error().Err(err).Str("order_id", id.String()).Msg("payment redirect failed")
			return nil, &model.ExternalGatewayError{OrderID: id, Err: err}
		}
		result.PaymentURL = redirect.URL
	}

	return result, nil
}

// GetByID retrieves the current snapshot of an order.
func (s *orderService) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to get order")
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		s.logger.Debug().Str("order_id", id.String()).Msg("order not found")
	}
	return order, nil
}

// announce publishes the change event and tells the kitchen. The order is
// already committed, so failures are only logged.
func (s *orderService) announce(ctx context.Context, order *model.Order) {
	event := realtime.Event{
		OrderID: order.ID,
		Kind:    realtime.EventCreated,
		Version: order.Version,
		At:      order.CreatedAt,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("order_id", order.ID.String()).Msg("failed to publish order change")
	}
	if err := s.notifier.OrderPlaced(ctx, order); err != nil {
		s.logger.Warn().Err(err).Str("order_id", order.ID.String()).Msg("failed to notify kitchen")
	}
}

// reprice rebuilds every line from the menu. Client prices are ignored.
func (s *orderService) reprice(ctx context.Context, lines []cart.Line) (model.OrderItems, error) {
	ids := make([]string, 0, len(lines))
	seen := make(map[string]struct{}, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.ProductID]; !ok {
			seen[l.ProductID] = struct{}{}
			ids = append(ids, l.ProductID)
		}
	}

	menu, err := s.menuRepo.GetByIDs(ctx, ids)
	if err != nil {
		s.logger.Error().Err(err).Int("product_count", len(ids)).Msg("failed to load menu for repricing")
		return nil, &model.PersistenceError{Op: "load menu", Err: err}
	}
	byID := make(map[string]*model.MenuItem, len(menu))
	for i := range menu {
		byID[menu[i].ID] = &menu[i]
	}

	verr := model.NewValidationError()
	items := make(model.OrderItems, 0, len(lines))
	for _, l := range lines {
		menuItem, ok := byID[l.ProductID]
		if !ok || !menuItem.Available {
			verr.Add("cart", fmt.Sprintf("%q is not on the menu", l.ProductID))
			continue
		}

		unit := menuItem.Price
		var size *string
		if l.Size != nil {
			option, ok := menuItem.Size(l.Size.Name)
			if !ok {
				verr.Add("cart", fmt.Sprintf("%s has no size %q", menuItem.Name, l.Size.Name))
				continue
			}
			unit = option.Price
			name := option.Name
			size = &name
		}

		extras := make([]string, 0, len(l.Extras))
		valid := true
		for _, e := range l.Extras {
			if !menuItem.HasExtra(e) {
				verr.Add("cart", fmt.Sprintf("%s has no extra %q", menuItem.Name, e))
				valid = false
				break
			}
			extras = append(extras, e)
		}
		if !valid {
			continue
		}
		unit = unit.Add(menuItem.ExtraPrice.Mul(decimal.NewFromInt(int64(len(extras)))))

		if !l.UnitPrice().Equal(unit) {
			s.logger.Warn().
				Str("product_id", l.ProductID).
				Str("client_price", l.UnitPrice().String()).
				Str("menu_price", unit.String()).
				Msg("client price differs from menu, using menu price")
		}

		items = append(items, model.OrderItem{
			ProductID: menuItem.ID,
			Name:      menuItem.Name,
			Price:     unit,
			Quantity:  l.Quantity,
			Size:      size,
			Extras:    extras,
		})
	}

	if verr.HasErrors() {
		s.logger.Warn().Err(verr).Msg("cart references unavailable menu items")
		return nil, verr
	}
	return items, nil
}

func (s *orderService) statusURL(id uuid.UUID) string {
	u, err := url.Parse(s.cfg.StatusPageURL)
	if err != nil {
		return s.cfg.StatusPageURL + "?orderId=" + id.String()
	}
	q := u.Query()
	q.Set("orderId", id.String())
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *orderService) whatsAppLink(sub *Submission, items model.OrderItems, total decimal.Decimal) string {
	var b strings.Builder
	b.WriteString("Nouvelle commande B-Resto\n")
	fmt.Fprintf(&b, "Nom: %s\n", strings.TrimSpace(sub.Customer.Name))
	fmt.Fprintf(&b, "Téléphone: %s\n", strings.TrimSpace(sub.Customer.Phone))
	fmt.Fprintf(&b, "Adresse: %s\n", deliveryAddress(sub.Customer))
	fmt.Fprintf(&b, "Paiement: %s\n", sub.PaymentMethod)
	b.WriteString("Articles:\n")
	for _, item := range items {
		label := item.Name
		if item.Size != nil {
			label += " " + *item.Size
		}
		if len(item.Extras) > 0 {
			label += " + " + strings.Join(item.Extras, ", ")
		}
		fmt.Fprintf(&b, "- %d x %s (%s FCFA)\n", item.Quantity, label, item.LineTotal().StringFixed(0))
	}
	fmt.Fprintf(&b, "Total: %s FCFA", total.StringFixed(0))

	text := strings.ReplaceAll(url.QueryEscape(b.String()), "+", "%20")
	return "https://wa.me/" + s.cfg.WhatsAppNumber + "?text=" + text
}

func paymentItemName(order *model.Order) string {
	count := 0
	for _, item := range order.Items {
		count += item.Quantity
	}
	if count == 1 {
		return "Commande B-Resto (1 article)"
	}
	return fmt.Sprintf("Commande B-Resto (%d articles)", count)
}

func deliveryAddress(c Customer) string {
	parts := []string{strings.TrimSpace(c.Address), strings.TrimSpace(c.City)}
	if pc := strings.TrimSpace(c.PostalCode); pc != "" {
		parts = append(parts, pc)
	}
	return strings.Join(parts, ", ")
}

func validateSubmission(sub *Submission) error {
	verr := model.NewValidationError()
	if sub == nil {
		verr.Add("cart", "submission is required")
		return verr
	}

	c := sub.Customer
	if strings.TrimSpace(c.Name) == "" {
		verr.Add("name", "name is required")
	}
	if !emailPattern.MatchString(strings.ToLower(strings.TrimSpace(c.Email))) {
		verr.Add("email", "a valid email address is required")
	}
	if !phonePattern.MatchString(strings.TrimSpace(c.Phone)) {
		verr.Add("phone", "phone number must be exactly 9 digits")
	}
	if !addressPattern.MatchString(strings.TrimSpace(c.Address)) {
		verr.Add("address", "address must be at least 4 characters")
	}
	if !cityPattern.MatchString(strings.TrimSpace(c.City)) {
		verr.Add("city", "city must be at least 5 characters")
	}
	if sub.Cart == nil || sub.Cart.IsEmpty() {
		verr.Add("cart", "cart is empty")
	}
	if !sub.PaymentMethod.Valid() {
		verr.Add("paymentMethod", fmt.Sprintf("unknown payment method %q", sub.PaymentMethod))
	}
	if sub.Location != nil && !sub.Location.Valid() {
		verr.Add("location", "coordinates out of range")
	}
	if utf8.RuneCountInString(sub.IdempotencyKey) > maxIdempotencyKeyLength {
		verr.Add("idempotencyKey", fmt.Sprintf("idempotency key must be at most %d characters", maxIdempotencyKeyLength))
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}
