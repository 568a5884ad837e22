// Package payments wraps Stripe Checkout: session creation for card top-ups and
// verification of the webhook that reports the outcome.
package payments

import (
	"context"       // Context propagation
	"encoding/json" // JSON encoding/decoding
	"errors"        // Error matching
	"fmt"           // Error and message formatting
	"strconv"       // String conversions
	"strings"       // String manipulation

	"github.com/shopspring/decimal"           // Money amounts
	"github.com/stripe/stripe-go/v76"         // Stripe types
	"github.com/stripe/stripe-go/v76/client"  // Stripe API client
	"github.com/stripe/stripe-go/v76/webhook" // Webhook signature verification
)

// Checkout session event types handled by the webhook
const (
	EventSessionCompleted      = "checkout.session.completed"
	EventAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	EventAsyncPaymentFailed    = "checkout.session.async_payment_failed"
	EventSessionExpired        = "checkout.session.expired"
)

var (
	ErrNotConfigured    = errors.New("payment processor is not configured")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrBadMetadata      = errors.New("checkout session metadata is missing wallet or user")
	ErrInvalidAmount    = errors.New("invalid amount")
)

// Gateway is the part of the payment processor the API depends on
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, in CheckoutInput) (*CheckoutSession, error)
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

// CheckoutInput describes a wallet top-up
type CheckoutInput struct {
	WalletID uint
	UserID   uint
	Email    string
	Amount   decimal.Decimal
	Currency string
}

// CheckoutSession is what the client needs to redirect to the hosted page
type CheckoutSession struct {
	ID  string `json:"session_id"`
	URL string `json:"url"`
}

// WebhookEvent is a verified processor event. Session is set for checkout.session.* events.
type WebhookEvent struct {
	ID      string
	Type    string
	Session *stripe.CheckoutSession
}

// Settlement is the wallet credit described by a paid checkout session
type Settlement struct {
	SessionID string
	WalletID  uint
	UserID    uint
	Amount    decimal.Decimal
	Currency  string
}

// Options configure the Stripe processor
type Options struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
	Backends      *stripe.Backends // Overrides the Stripe API endpoint, nil for production
}

// Processor talks to Stripe
type Processor struct {
	api  *client.API
	opts Options
}

// NewProcessor builds a Stripe processor. Without a secret key session creation fails
// with ErrNotConfigured; without a webhook secret every webhook is rejected.
func NewProcessor(opts Options) *Processor {
	p := &Processor{opts: opts}
	if opts.SecretKey != "" {
		p.api = client.New(opts.SecretKey, opts.Backends)
	}
	return p
}

// CreateCheckoutSession opens a hosted payment page for a single top-up line item
func (p *Processor) CreateCheckoutSession(ctx context.Context, in CheckoutInput) (*CheckoutSession, error) {
	if p.api == nil {
		return nil, ErrNotConfigured
	}
	unit, err := MinorUnits(in.Amount, in.Currency)
	if err != nil {
		return nil, err
	}
	walletID := strconv.FormatUint(uint64(in.WalletID), 10)

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(p.opts.SuccessURL),
		CancelURL:         stripe.String(p.opts.CancelURL),
		ClientReferenceID: stripe.String(walletID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(strings.ToLower(in.Currency)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("InstaPay wallet top-up"),
					},
					UnitAmount: stripe.Int64(unit),
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	if in.Email != "" {
		params.CustomerEmail = stripe.String(in.Email)
	}
	params.Context = ctx
	params.AddMetadata("wallet_id", walletID)
	params.AddMetadata("user_id", strconv.FormatUint(uint64(in.UserID), 10))

	s, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, err
	}
	return &CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes the event
func (p *Processor) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	if p.opts.WebhookSecret == "" {
		return nil, ErrNotConfigured
	}
	ev, err := webhook.ConstructEventWithOptions(payload, signature, p.opts.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := &WebhookEvent{ID: ev.ID, Type: string(ev.Type)}
	if strings.HasPrefix(out.Type, "checkout.session.") && ev.Data != nil {
		var s stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		out.Session = &s
	}
	return out, nil
}

// Paid reports whether the session has captured funds
func Paid(s *stripe.CheckoutSession) bool {
	return s != nil && s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid
}

// SettlementFor reads the wallet credit out of a checkout session
func SettlementFor(s *stripe.CheckoutSession) (*Settlement, error) {
	if s == nil {
		return nil, ErrBadMetadata
	}
	walletID, err := strconv.ParseUint(s.Metadata["wallet_id"], 10, 64)
	if err != nil {
		return nil, ErrBadMetadata
	}
	userID, err := strconv.ParseUint(s.Metadata["user_id"], 10, 64)
	if err != nil {
		return nil, ErrBadMetadata
	}
	currency := strings.ToUpper(string(s.Currency))
	return &Settlement{
		SessionID: s.ID,
		WalletID:  uint(walletID),
		UserID:    uint(userID),
		Amount:    MajorUnits(s.AmountTotal, currency),
		Currency:  currency,
	}, nil
}
