package repository

import (
	"context"
	"strings"
	"time"

	"stockroom/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TaskFilter narrows task queries. Nil/empty fields do not filter.
type TaskFilter struct {
	Status      model.TaskStatus
	CreatorName *string
	// EffectiveFrom/EffectiveTo bound COALESCE(completed_at, created_at) as [from, to)
	EffectiveFrom *time.Time
	EffectiveTo   *time.Time
}

type TaskRepository interface {
	Create(ctx context.Context, task *model.Task) error
	FindByIDWithItems(ctx context.Context, id uuid.UUID) (*model.Task, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Task, error)
	FindByNumber(ctx context.Context, number string) (*model.Task, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.TaskStatus, completedAt *time.Time) error
	List(ctx context.Context, filter TaskFilter, page, limit int) ([]model.Task, int64, error)
	ListWithItems(ctx context.Context, filter TaskFilter) ([]model.Task, error)
}

type taskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

// Create inserts the task together with its items
func (r *taskRepository) Create(ctx context.Context, task *model.Task) error {
	return GetDB(ctx, r.db).Create(task).Error
}

func (r *taskRepository) FindByIDWithItems(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	var task model.Task
	if err := GetDB(ctx, r.db).Preload("Items").First(&task, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *taskRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	var task model.Task
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Items").
		Where("id = ?", id).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *taskRepository) FindByNumber(ctx context.Context, number string) (*model.Task, error) {
	var task model.Task
	if err := GetDB(ctx, r.db).Where("task_number = ?", number).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *taskRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.TaskStatus, completedAt *time.Time) error {
	return GetDB(ctx, r.db).Model(&model.Task{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":       status,
		"completed_at": completedAt,
	}).Error
}

func (r *taskRepository) List(ctx context.Context, filter TaskFilter, page, limit int) ([]model.Task, int64, error) {
	var tasks []model.Task
	query := applyTaskFilter(GetDB(ctx, r.db).Model(&model.Task{}), filter)
	total, err := countAndFind(query, &tasks, "created_at DESC", page, limit, withItems)
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

// ListWithItems returns every matching task in creation order, for aggregation
func (r *taskRepository) ListWithItems(ctx context.Context, filter TaskFilter) ([]model.Task, error) {
	var tasks []model.Task
	if err := applyTaskFilter(GetDB(ctx, r.db).Model(&model.Task{}), filter).
		Preload("Items").
		Order("created_at ASC").
		Order("task_number ASC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func applyTaskFilter(db *gorm.DB, filter TaskFilter) *gorm.DB {
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.CreatorName != nil {
		db = db.Where("TRIM(creator_name) = ?", strings.TrimSpace(*filter.CreatorName))
	}
	if filter.EffectiveFrom != nil {
		db = db.Where("COALESCE(completed_at, created_at) >= ?", *filter.EffectiveFrom)
	}
	if filter.EffectiveTo != nil {
		db = db.Where("COALESCE(completed_at, created_at) < ?", *filter.EffectiveTo)
	}
	return db
}

func withItems(db *gorm.DB) *gorm.DB {
	return db.Preload("Items")
}
