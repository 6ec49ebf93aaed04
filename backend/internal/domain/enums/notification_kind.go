package enums

type NotificationKind string

const (
	NotificationMatchCreated  NotificationKind = "match_created"
	NotificationPaymentFailed NotificationKind = "payment_failed"
)
