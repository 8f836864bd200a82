package model

import "time"

// Lifecycle events published through the outbox.
const (
	EventOnboardingStarted   = "OnboardingStarted"
	EventDocumentsUploaded   = "DocumentsUploaded"
	EventOnboardingCompleted = "OnboardingCompleted"
	EventOnboardingFailed    = "OnboardingFailed"
)

type OutboxEvent struct {
	ID          uint64    `gorm:"primaryKey"`
	Aggregate   string    `gorm:"size:64;not null"`
	AggregateID string    `gorm:"size:36;not null;index"`
	EventType   string    `gorm:"size:64;not null"`
	Payload     string    `gorm:"type:text;not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	Processed   bool      `gorm:"not null;default:false"`
	ProcessedAt *time.Time
}

func (OutboxEvent) TableName() string { return "event_outbox" }
