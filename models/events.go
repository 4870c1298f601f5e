package models

import "time"

// UserStatusEvent is published whenever a user's status changes.
type UserStatusEvent struct {
	UserID    string    `json:"userId"`
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}
