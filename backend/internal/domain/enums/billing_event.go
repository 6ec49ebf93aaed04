package enums

type BillingEventKind string

const (
	BillingCheckoutCompleted   BillingEventKind = "checkout_completed"
	BillingSubscriptionUpdated BillingEventKind = "subscription_updated"
	BillingSubscriptionDeleted BillingEventKind = "subscription_deleted"
	BillingPaymentSucceeded    BillingEventKind = "payment_succeeded"
	BillingPaymentFailed       BillingEventKind = "payment_failed"
	// BillingIgnored marks verified provider events the reconciler has no transition for.
	BillingIgnored BillingEventKind = "ignored"
)
