package repo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/richardliu001/onboarding-service/internal/model"
	"github.com/segmentio/kafka-go"
	"gorm.io/gorm"
)

// NewOnboardingEvent snapshots the record into an outbox row.
func NewOnboardingEvent(o *model.Onboarding, eventType string) *model.OutboxEvent {
	payload, _ := json.Marshal(map[string]interface{}{
		"onboarding_id":       o.ID,
		"process_instance_id": o.ProcessInstanceID,
		"status":              o.Status,
		"error_type":          o.ErrorType,
		"account_number":      o.AccountNumber,
		"occurred_at":         time.Now().UTC(),
	})
	return &model.OutboxEvent{
		Aggregate:   "Onboarding",
		AggregateID: o.ID,
		EventType:   eventType,
		Payload:     string(payload),
	}
}

// CreateOutboxEvent writes event.
func (r *Repository) CreateOutboxEvent(ctx context.Context, tx *gorm.DB, evt *model.OutboxEvent) error {
	return tx.WithContext(ctx).Create(evt).Error
}

// PollOutbox pulls unprocessed events.
func (r *Repository) PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error) {
	var evts []model.OutboxEvent
	err := r.db.WithContext(ctx).Where("processed = ?", false).Order("id").Limit(limit).Find(&evts).Error
	return evts, err
}

// MarkOutboxProcessed sets processed flag.
func (r *Repository) MarkOutboxProcessed(ctx context.Context, id uint64) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.OutboxEvent{}).Where("id = ?", id).
		Updates(map[string]interface{}{"processed": true, "processed_at": &now}).Error
}

// PublishEvent sends to Kafka, keyed by onboarding id so one customer's events stay ordered.
func (r *Repository) PublishEvent(ctx context.Context, evt model.OutboxEvent) error {
	if r.writer == nil {
		return errors.New("kafka writer not configured")
	}
	msg := kafka.Message{
		Key:   []byte(evt.AggregateID),
		Value: []byte(evt.Payload),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(evt.EventType)},
		},
		Time: time.Now(),
	}
	return r.writer.WriteMessages(ctx, msg)
}
