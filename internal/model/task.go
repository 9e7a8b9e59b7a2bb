package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TaskStatus is the lifecycle state of a shipment task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
)

// ParseTaskStatus validates a status string coming from a request
func ParseTaskStatus(s string) (TaskStatus, bool) {
	switch TaskStatus(s) {
	case TaskStatusPending, TaskStatusProcessing, TaskStatusCompleted:
		return TaskStatus(s), true
	}
	return "", false
}

// CanTransitionTo reports whether a task in status s may move to next.
// Completed tasks are final.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	switch s {
	case TaskStatusPending:
		return next == TaskStatusProcessing || next == TaskStatusCompleted
	case TaskStatusProcessing:
		return next == TaskStatusCompleted
	}
	return false
}

// Task represents one shipment/sales record. Items are fixed after creation.
type Task struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	TaskNumber  string     `gorm:"type:varchar(100);uniqueIndex;not null" json:"task_number"`
	Status      TaskStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	CreatorName string     `gorm:"type:varchar(255);index" json:"creator_name"` // salesperson attribution, matched by name
	CreatedBy   *uuid.UUID `gorm:"type:uuid;index" json:"created_by"`
	Note        string     `gorm:"type:text" json:"note"`
	Items       []TaskItem `gorm:"foreignKey:TaskID" json:"items"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	CompletedAt *time.Time `gorm:"index" json:"completed_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Creator is the attribution name with surrounding whitespace removed
func (t *Task) Creator() string {
	return strings.TrimSpace(t.CreatorName)
}

// OwnedBy reports whether name identifies the task's creator. Both sides are trimmed
// and an empty name owns nothing.
func (t *Task) OwnedBy(name string) bool {
	name = strings.TrimSpace(name)
	return name != "" && t.Creator() == name
}

// EffectiveDate is the completion time if present, else the creation time.
// ok is false when neither timestamp is set.
func (t *Task) EffectiveDate() (at time.Time, ok bool) {
	if t.CompletedAt != nil && !t.CompletedAt.IsZero() {
		return *t.CompletedAt, true
	}
	if !t.CreatedAt.IsZero() {
		return t.CreatedAt, true
	}
	return time.Time{}, false
}

// TaskItem represents a line item within a Task
type TaskItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	TaskID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"task_id"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"product_id"`
	Quantity    int             `gorm:"type:int;not null" json:"quantity"`
	ProductName string          `gorm:"type:varchar(255)" json:"product_name"`                   // snapshot at creation
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"unit_price"` // snapshot at creation
}

func (i *TaskItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
