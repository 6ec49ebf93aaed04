package model

import (
	"time"

	"github.com/ivankudzin/nikah/backend/internal/domain/enums"
)

// Notification is an outbound message produced by the core. Delivery is best effort.
type Notification struct {
	ID            string                 `json:"id"`
	Kind          enums.NotificationKind `json:"kind"`
	UserID        int64                  `json:"user_id"`
	CounterpartID int64                  `json:"counterpart_id,omitempty"`
	Recipient     NotificationRecipient  `json:"recipient"`
	CreatedAt     time.Time              `json:"created_at"`
}

type NotificationRecipient struct {
	TelegramChatID int64  `json:"telegram_chat_id,omitempty"`
	Email          string `json:"email,omitempty"`
}
