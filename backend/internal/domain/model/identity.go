package model

import "github.com/ivankudzin/nikah/backend/internal/domain/enums"

type Identity struct {
	ID             int64             `json:"id"`
	GenderClass    enums.GenderClass `json:"gender_class"`
	TelegramChatID int64             `json:"telegram_chat_id,omitempty"`
	Guardian       *GuardianContact  `json:"guardian,omitempty"`
}

// GuardianContact is the wali/tuteur attached to a profile.
type GuardianContact struct {
	NotifyOnMatch  bool   `json:"notify_on_match"`
	TelegramChatID int64  `json:"telegram_chat_id,omitempty"`
	Email          string `json:"email,omitempty"`
}

func (i Identity) WantsGuardianMatchNotice() bool {
	return i.Guardian != nil && i.Guardian.NotifyOnMatch
}
