package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	stripeapi "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/ivankudzin/nikah/backend/internal/domain/enums"
	"github.com/ivankudzin/nikah/backend/internal/domain/model"
)

var (
	ErrInvalidSignature = fmt.Errorf("%w: invalid webhook signature", model.ErrValidation)
	ErrMalformedEvent   = fmt.Errorf("%w: malformed webhook event", model.ErrValidation)
)

type subscriptionFetcher interface {
	GetSubscription(ctx context.Context, ref string) (model.ProviderSubscription, error)
}

// ParseWebhook verifies the Stripe signature header and reduces the event to a
// BillingEvent. Event types without a reconciler transition come back as BillingIgnored.
func (c *Client) ParseWebhook(ctx context.Context, payload []byte, signature string) (model.BillingEvent, error) {
	if c.webhookSecret == "" {
		return model.BillingEvent{}, fmt.Errorf("stripe webhook secret is empty")
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, c.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return model.BillingEvent{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	return decodeEvent(ctx, event, c)
}

func decodeEvent(ctx context.Context, event stripeapi.Event, fetcher subscriptionFetcher) (model.BillingEvent, error) {
	out := model.BillingEvent{
		ID:           event.ID,
		Kind:         enums.BillingIgnored,
		ProviderType: string(event.Type),
	}
	if event.Data == nil {
		return model.BillingEvent{}, fmt.Errorf("%w: missing data", ErrMalformedEvent)
	}
	raw := event.Data.Raw

	switch event.Type {
	case "checkout.session.completed":
		var session stripeapi.CheckoutSession
		if err := json.Unmarshal(raw, &session); err != nil {
			return model.BillingEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		if session.Mode != stripeapi.CheckoutSessionModeSubscription || session.Subscription == nil {
			return out, nil
		}

		userID, err := strconv.ParseInt(strings.TrimSpace(session.ClientReferenceID), 10, 64)
		if err != nil || userID <= 0 {
			return model.BillingEvent{}, fmt.Errorf("%w: client reference %q", ErrMalformedEvent, session.ClientReferenceID)
		}
		tier, ok := enums.ParseTier(session.Metadata["tier"])
		if !ok || !tier.Purchasable() {
			return model.BillingEvent{}, fmt.Errorf("%w: tier %q", ErrMalformedEvent, session.Metadata["tier"])
		}

		sub := subscriptionFromStripe(session.Subscription)
		if sub.PeriodEnd.IsZero() && fetcher != nil {
			fetched, err := fetcher.GetSubscription(ctx, sub.Ref)
			if err != nil {
				return model.BillingEvent{}, err
			}
			sub = fetched
		}

		out.Kind = enums.BillingCheckoutCompleted
		out.UserID = userID
		out.Ref = session.Subscription.ID
		out.Tier = tier
		out.PeriodStart = sub.PeriodStart
		out.PeriodEnd = sub.PeriodEnd
		out.ProviderStatus = sub.Status

	case "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripeapi.Subscription
		if err := json.Unmarshal(raw, &sub); err != nil {
			return model.BillingEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		if sub.ID == "" {
			return model.BillingEvent{}, fmt.Errorf("%w: subscription id", ErrMalformedEvent)
		}

		out.Kind = enums.BillingSubscriptionUpdated
		if event.Type == "customer.subscription.deleted" {
			out.Kind = enums.BillingSubscriptionDeleted
		}
		out.Ref = sub.ID
		out.PeriodStart = unixTime(sub.CurrentPeriodStart)
		out.PeriodEnd = unixTime(sub.CurrentPeriodEnd)
		out.ProviderStatus = string(sub.Status)

	case "invoice.payment_succeeded", "invoice.payment_failed":
		var invoice stripeapi.Invoice
		if err := json.Unmarshal(raw, &invoice); err != nil {
			return model.BillingEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		if invoice.Subscription == nil || invoice.Subscription.ID == "" {
			return out, nil
		}

		out.Kind = enums.BillingPaymentSucceeded
		if event.Type == "invoice.payment_failed" {
			out.Kind = enums.BillingPaymentFailed
		}
		out.Ref = invoice.Subscription.ID
	}

	return out, nil
}
