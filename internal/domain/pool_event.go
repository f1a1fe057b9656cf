package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Pool event types.
const (
	PoolEventCreated   = "CREATED"
	PoolEventInvested  = "INVESTED"
	PoolEventFunded    = "FUNDED"
	PoolEventCancelled = "CANCELLED"
	PoolEventReleased  = "RELEASED"
	PoolEventSettled   = "SETTLED"
	PoolEventDefaulted = "DEFAULTED"
	PoolEventHalted    = "HALTED"
)

// PoolEvent is an append-only audit record of pool lifecycle activity.
type PoolEvent struct {
	EventID   uuid.UUID      `gorm:"column:event_id;type:uuid;primaryKey" json:"event_id"`
	PoolID    uuid.UUID      `gorm:"column:pool_id;type:uuid;not null;index" json:"pool_id"`
	EventType string         `gorm:"column:event_type;type:varchar(20);not null" json:"event_type"`
	EventData datatypes.JSON `gorm:"column:event_data;type:json" json:"event_data"`
	CreatedAt time.Time      `gorm:"column:createdAt" json:"createdAt"`
}

func (PoolEvent) TableName() string {
	return "PoolEvents"
}

func (e *PoolEvent) BeforeCreate(tx *gorm.DB) error {
	if e.EventID == uuid.Nil {
		e.EventID = uuid.New()
	}
	return nil
}
