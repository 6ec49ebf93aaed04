package model

import (
	"time"

	"github.com/ivankudzin/nikah/backend/internal/domain/enums"
)

type InterestEdge struct {
	ID           int64                `json:"id"`
	SourceUserID int64                `json:"source_user_id"`
	TargetUserID int64                `json:"target_user_id"`
	Kind         enums.InterestKind   `json:"kind"`
	Note         *string              `json:"note,omitempty"`
	Status       enums.InterestStatus `json:"status"`
	Mutual       bool                 `json:"mutual"`
	CreatedAt    time.Time            `json:"created_at"`
}
