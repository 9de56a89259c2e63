package payment

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// Event types sent by the gateway.
const (
	EventSaleComplete = "sale_complete"
	EventSaleCanceled = "sale_canceled"
)

// ErrSignatureMismatch means the notification hashes do not match our credentials.
var ErrSignatureMismatch = errors.New("payment notification signature mismatch")

// CustomField is the JSON blob echoed back by the gateway.
type CustomField struct {
	OrderID string `json:"orderId"`
}

// Notification is an instant payment notification from the gateway.
type Notification struct {
	TypeEvent       string
	ClientPhone     string
	PaymentMethod   string
	ItemName        string
	ItemPrice       string
	RefCommand      string
	CommandName     string
	Currency        string
	Env             string
	CustomField     string
	Token           string
	APIKeySHA256    string
	APISecretSHA256 string
}

// OrderID resolves the order the notification refers to, trying
// ref_command first and then custom_field.orderId.
func (n *Notification) OrderID() (uuid.UUID, error) {
	if id, err := uuid.Parse(strings.TrimSpace(n.RefCommand)); err == nil {
		return id, nil
	}

	if n.CustomField != "" {
		var cf CustomField
		if err := json.Unmarshal([]byte(n.CustomField), &cf); err == nil {
			if id, err := uuid.Parse(cf.OrderID); err == nil {
				return id, nil
			}
		}
	}

	return uuid.Nil, fmt.Errorf("notification does not reference an order")
}

// ParseNotification reads a form-encoded or JSON notification body.
func ParseNotification(r *http.Request) (*Notification, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read notification: %w", err)
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		return parseJSON(body)
	}
	return parseForm(body)
}

func parseForm(body []byte) (*Notification, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("invalid form notification: %w", err)
	}
	return fromLookup(values.Get), nil
}

func parseJSON(body []byte) (*Notification, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON notification: %w", err)
	}

	get := func(key string) string {
		v, ok := raw[key]
		if !ok {
			return ""
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			return s
		}
		// numbers and objects are kept in their JSON form
		return string(v)
	}
	return fromLookup(get), nil
}

func fromLookup(get func(string) string) *Notification {
	return &Notification{
		TypeEvent:       get("type_event"),
		ClientPhone:     get("client_phone"),
		PaymentMethod:   get("payment_method"),
		ItemName:        get("item_name"),
		ItemPrice:       get("item_price"),
		RefCommand:      get("ref_command"),
		CommandName:     get("command_name"),
		Currency:        get("currency"),
		Env:             get("env"),
		CustomField:     get("custom_field"),
		Token:           get("token"),
		APIKeySHA256:    get("api_key_sha256"),
		APISecretSHA256: get("api_secret_sha256"),
	}
}

// Verifier authenticates notifications against the merchant credentials.
type Verifier struct {
	keyHash    string
	secretHash string
}

// NewVerifier precomputes the credential hashes. Empty credentials produce a
// verifier that rejects everything with ErrNotConfigured.
func NewVerifier(apiKey, apiSecret string) *Verifier {
	if apiKey == "" || apiSecret == "" {
		return &Verifier{}
	}
	return &Verifier{keyHash: Hash(apiKey), secretHash: Hash(apiSecret)}
}

// Configured reports whether credentials are present.
func (v *Verifier) Configured() bool {
	return v.keyHash != "" && v.secretHash != ""
}

// Verify checks both hashes in constant time.
func (v *Verifier) Verify(n *Notification) error {
	if !v.Configured() {
		return ErrNotConfigured
	}

	keyOK := subtle.ConstantTimeCompare([]byte(v.keyHash), []byte(strings.ToLower(n.APIKeySHA256)))
	secretOK := subtle.ConstantTimeCompare([]byte(v.secretHash), []byte(strings.ToLower(n.APISecretSHA256)))
	if keyOK&secretOK != 1 {
		return ErrSignatureMismatch
	}
	return nil
}

// Hash returns the lowercase hex SHA-256 of s, as the gateway sends it.
func Hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
