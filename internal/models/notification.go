package models

import "time"

type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityLow:
		return "low"
	default:
		return "normal"
	}
}

type NotificationStatus string

const (
	NotificationPending   NotificationStatus = "pending"
	NotificationSending   NotificationStatus = "sending"
	NotificationDelivered NotificationStatus = "delivered"
	NotificationExhausted NotificationStatus = "exhausted"
)

type Channel string

const (
	ChannelEmail   Channel = "email"
	ChannelMessage Channel = "message"
)

// Notification is a queued confirmation awaiting delivery. It lives only
// in the in-memory queue; it does not survive a restart.
type Notification struct {
	ID           string
	GuestToken   string
	Channel      Channel
	Recipient    string
	GuestName    string
	Attending    bool
	Priority     Priority
	Status       NotificationStatus
	AttemptCount int
	MaxAttempts  int
	NextAttempt  time.Time
	CreatedAt    time.Time
}
