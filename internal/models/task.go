package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TaskPriority int

const (
	TaskPriorityLow    TaskPriority = 0
	TaskPriorityMedium TaskPriority = 1
	TaskPriorityHigh   TaskPriority = 2
)

// Valid reports whether p is one of the known priority levels.
func (p TaskPriority) Valid() bool {
	return p >= TaskPriorityLow && p <= TaskPriorityHigh
}

type Task struct {
	ID          uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	Title       string       `gorm:"type:varchar(200);not null;index" json:"title"`
	Description *string      `gorm:"type:text" json:"description"`
	Completed   bool         `gorm:"not null;default:false" json:"completed"`
	Priority    TaskPriority `gorm:"not null;default:0" json:"priority"`
	OwnerID     uuid.UUID    `gorm:"type:uuid;not null;index" json:"owner_id"`
	CreatedAt   time.Time    `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// BeforeCreate assigns a UUIDv7 id. v7 ids sort in creation order, which the
// task listing relies on to break created_at ties.
func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID != uuid.Nil {
		return nil
	}
	id, err := uuid.NewV7()
	if err != nil {
		return err
	}
	t.ID = id
	return nil
}
