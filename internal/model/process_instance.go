package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

type InstanceState string

const (
	InstanceActive    InstanceState = "ACTIVE"
	InstanceWaiting   InstanceState = "WAITING"
	InstanceCompleted InstanceState = "COMPLETED"
	InstanceFailed    InstanceState = "FAILED"
)

// Variables holds process context values persisted as JSON.
type Variables map[string]any

// Value implements driver.Valuer.
func (v Variables) Value() (driver.Value, error) {
	if v == nil {
		return "{}", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (v *Variables) Scan(src any) error {
	var raw []byte
	switch s := src.(type) {
	case nil:
		*v = Variables{}
		return nil
	case []byte:
		raw = s
	case string:
		raw = []byte(s)
	default:
		return errors.New("variables: unsupported scan type")
	}
	out := Variables{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return err
		}
	}
	*v = out
	return nil
}

// ProcessInstance is the durable execution pointer of one onboarding process.
// BusinessKey is the onboarding id it drives.
type ProcessInstance struct {
	ID             string        `gorm:"primaryKey;size:26"`
	DefinitionKey  string        `gorm:"size:64;not null"`
	BusinessKey    string        `gorm:"size:36;not null;index"`
	State          InstanceState `gorm:"size:16;not null;index"`
	CurrentStep    string        `gorm:"size:64"`
	WaitingMessage string        `gorm:"size:64"`
	Variables      Variables     `gorm:"type:text;not null"`
	Incident       string        `gorm:"size:1000"`
	CreatedAt      time.Time     `gorm:"autoCreateTime"`
	UpdatedAt      time.Time     `gorm:"autoUpdateTime"`
	EndedAt        *time.Time
}

func (ProcessInstance) TableName() string { return "process_instance" }

// IsActive reports whether the instance can still make progress.
func (p *ProcessInstance) IsActive() bool {
	return p.State == InstanceActive || p.State == InstanceWaiting
}
