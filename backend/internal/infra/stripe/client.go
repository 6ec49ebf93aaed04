package stripe

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	stripeapi "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"

	"github.com/ivankudzin/nikah/backend/internal/domain/enums"
	"github.com/ivankudzin/nikah/backend/internal/domain/model"
)

const breakerName = "stripe"

var ErrPriceNotConfigured = errors.New("stripe price is not configured for tier")

type Config struct {
	SecretKey        string
	WebhookSecret    string
	Prices           map[enums.Tier]string
	FailureThreshold uint32
	BreakerTimeout   time.Duration
	BreakerInterval  time.Duration
}

type BreakerObserver interface {
	BreakerStateChanged(name, state string)
}

// Client is the billing provider backed by the Stripe API. Every outbound call goes
// through one circuit breaker so a failing provider is not hammered by retries.
type Client struct {
	api           *client.API
	prices        map[enums.Tier]string
	webhookSecret string
	breaker       *gobreaker.CircuitBreaker[any]
	logger        *zap.Logger
}

func New(cfg Config, observer BreakerObserver, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, fmt.Errorf("stripe secret key is empty")
	}
	api := client.New(strings.TrimSpace(cfg.SecretKey), nil)
	return newWithAPI(api, cfg, observer, logger), nil
}

func newWithAPI(api *client.API, cfg Config, observer BreakerObserver, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}
	if cfg.BreakerInterval <= 0 {
		cfg.BreakerInterval = time.Minute
	}

	prices := make(map[enums.Tier]string, len(cfg.Prices))
	for tier, price := range cfg.Prices {
		if price = strings.TrimSpace(price); price != "" {
			prices[tier] = price
		}
	}

	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			if observer != nil {
				observer.BreakerStateChanged(name, to.String())
			}
		},
	})

	return &Client{
		api:           api,
		prices:        prices,
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		breaker:       breaker,
		logger:        logger,
	}
}

func (c *Client) CreateCheckoutSession(ctx context.Context, req model.CheckoutRequest) (model.CheckoutSession, error) {
	price, ok := c.prices[req.Tier]
	if !ok {
		return model.CheckoutSession{}, fmt.Errorf("%w: %s", ErrPriceNotConfigured, req.Tier)
	}

	userRef := strconv.FormatInt(req.UserID, 10)
	params := &stripeapi.CheckoutSessionParams{
		Mode:              stripeapi.String(string(stripeapi.CheckoutSessionModeSubscription)),
		SuccessURL:        stripeapi.String(req.SuccessURL),
		CancelURL:         stripeapi.String(req.CancelURL),
		ClientReferenceID: stripeapi.String(userRef),
		LineItems: []*stripeapi.CheckoutSessionLineItemParams{
			{
				Price:    stripeapi.String(price),
				Quantity: stripeapi.Int64(1),
			},
		},
		SubscriptionData: &stripeapi.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				"user_id": userRef,
				"tier":    string(req.Tier),
			},
		},
	}
	params.Context = ctx
	params.AddMetadata("user_id", userRef)
	params.AddMetadata("tier", string(req.Tier))
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	out, err := c.breaker.Execute(func() (any, error) {
		return c.api.CheckoutSessions.New(params)
	})
	if err != nil {
		return model.CheckoutSession{}, fmt.Errorf("create stripe checkout session: %w", err)
	}

	session := out.(*stripeapi.CheckoutSession)
	return model.CheckoutSession{SessionID: session.ID, URL: session.URL}, nil
}

func (c *Client) CancelSubscription(ctx context.Context, ref string) error {
	params := &stripeapi.SubscriptionCancelParams{}
	params.Context = ctx

	_, err := c.breaker.Execute(func() (any, error) {
		return c.api.Subscriptions.Cancel(ref, params)
	})
	if err != nil {
		return fmt.Errorf("cancel stripe subscription: %w", err)
	}
	return nil
}

func (c *Client) SetCancelAtPeriodEnd(ctx context.Context, ref string, cancel bool) error {
	params := &stripeapi.SubscriptionParams{
		CancelAtPeriodEnd: stripeapi.Bool(cancel),
	}
	params.Context = ctx

	_, err := c.breaker.Execute(func() (any, error) {
		return c.api.Subscriptions.Update(ref, params)
	})
	if err != nil {
		return fmt.Errorf("update stripe subscription: %w", err)
	}
	return nil
}

func (c *Client) GetSubscription(ctx context.Context, ref string) (model.ProviderSubscription, error) {
	params := &stripeapi.SubscriptionParams{}
	params.Context = ctx

	out, err := c.breaker.Execute(func() (any, error) {
		return c.api.Subscriptions.Get(ref, params)
	})
	if err != nil {
		return model.ProviderSubscription{}, fmt.Errorf("get stripe subscription: %w", err)
	}

	return subscriptionFromStripe(out.(*stripeapi.Subscription)), nil
}

func subscriptionFromStripe(sub *stripeapi.Subscription) model.ProviderSubscription {
	if sub == nil {
		return model.ProviderSubscription{}
	}
	return model.ProviderSubscription{
		Ref:               sub.ID,
		Status:            string(sub.Status),
		PeriodStart:       unixTime(sub.CurrentPeriodStart),
		PeriodEnd:         unixTime(sub.CurrentPeriodEnd),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
}

func unixTime(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
