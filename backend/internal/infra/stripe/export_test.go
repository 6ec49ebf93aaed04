package stripe

import (
	stripeapi "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

func verifyForTest(payload []byte, signature string) (stripeapi.Event, error) {
	return webhook.ConstructEventWithOptions(payload, signature, testWebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}
