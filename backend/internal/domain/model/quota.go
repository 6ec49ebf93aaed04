package model

import "time"

type QuotaCounter struct {
	UserID      int64     `json:"user_id"`
	Count       int       `json:"count"`
	WindowStart time.Time `json:"window_start"`
}
