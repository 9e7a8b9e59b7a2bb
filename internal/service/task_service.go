package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"stockroom/internal/cache"
	"stockroom/internal/model"
	"stockroom/internal/repository"
	"stockroom/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- DTOs ---

type TaskItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
}

type CreateTaskRequest struct {
	TaskNumber string            `json:"task_number" binding:"required"`
	Note       string            `json:"note"`
	Items      []TaskItemRequest `json:"items" binding:"required,min=1,dive"`
}

type UpdateTaskStatusRequest struct {
	Status string `json:"status" binding:"required,task_status"`
}

type TaskListFilter struct {
	Page   int
	Limit  int
	Status string
}

type TaskItemResponse struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price" swaggertype:"string"`
	LineTotal   decimal.Decimal `json:"line_total" swaggertype:"string"`
}

type TaskResponse struct {
	ID            string             `json:"id"`
	TaskNumber    string             `json:"task_number"`
	Status        model.TaskStatus   `json:"status" swaggertype:"string"`
	CreatorName   string             `json:"creator_name"`
	CreatedBy     string             `json:"created_by,omitempty"`
	Note          string             `json:"note"`
	Items         []TaskItemResponse `json:"items"`
	TotalQuantity int                `json:"total_quantity"`
	TotalValue    decimal.Decimal    `json:"total_value" swaggertype:"string"`
	CreatedAt     time.Time          `json:"created_at"`
	CompletedAt   *time.Time         `json:"completed_at"`
}

type TaskService interface {
	CreateTask(ctx context.Context, viewer model.Viewer, req CreateTaskRequest) (TaskResponse, error)
	ListTasks(ctx context.Context, viewer model.Viewer, filter TaskListFilter) ([]TaskResponse, int64, error)
	GetTask(ctx context.Context, viewer model.Viewer, id string) (TaskResponse, error)
	UpdateStatus(ctx context.Context, viewer model.Viewer, id string, status string) (TaskResponse, error)
}

type taskService struct {
	taskRepo    repository.TaskRepository
	productRepo repository.ProductRepository
	invTxRepo   repository.InventoryTxRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	statsCache  cache.StatisticsCache
	publisher   EventPublisher
	log         *logger.Logger
	now         func() time.Time
}

func NewTaskService(
	taskRepo repository.TaskRepository,
	productRepo repository.ProductRepository,
	invTxRepo repository.InventoryTxRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	statsCache cache.StatisticsCache,
	publisher EventPublisher,
	log *logger.Logger,
) TaskService {
	return &taskService{
		taskRepo:    taskRepo,
		productRepo: productRepo,
		invTxRepo:   invTxRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		statsCache:  statsCache,
		publisher:   publisher,
		log:         log.With("service", "TaskService"),
		now:         time.Now,
	}
}

func toTaskResponse(t *model.Task) TaskResponse {
	res := TaskResponse{
		ID:          t.ID.String(),
		TaskNumber:  t.TaskNumber,
		Status:      t.Status,
		CreatorName: t.CreatorName,
		Note:        t.Note,
		Items:       make([]TaskItemResponse, 0, len(t.Items)),
		TotalValue:  decimal.Zero,
		CreatedAt:   t.CreatedAt,
		CompletedAt: t.CompletedAt,
	}
	if t.CreatedBy != nil {
		res.CreatedBy = t.CreatedBy.String()
	}
	for _, item := range t.Items {
		line := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		res.Items = append(res.Items, TaskItemResponse{
			ID:          item.ID.String(),
			ProductID:   item.ProductID.String(),
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			LineTotal:   line,
		})
		res.TotalQuantity += item.Quantity
		res.TotalValue = res.TotalValue.Add(line)
	}
	return res
}

// canSeeTask applies the statistics visibility rule, widened to warehouse staff
func canSeeTask(viewer model.Viewer, task *model.Task) bool {
	if model.CanViewAllData(viewer.Role) || viewer.Role == model.RoleWarehouse {
		return true
	}
	return task.OwnedBy(viewer.Name)
}

func (s *taskService) CreateTask(ctx context.Context, viewer model.Viewer, req CreateTaskRequest) (TaskResponse, error) {
	number := strings.TrimSpace(req.TaskNumber)
	if number == "" {
		return TaskResponse{}, fmt.Errorf("%w: task number is required", ErrValidation)
	}
	if strings.TrimSpace(viewer.Name) == "" {
		return TaskResponse{}, fmt.Errorf("%w: creator name is missing from the token", ErrValidation)
	}
	if len(req.Items) == 0 {
		return TaskResponse{}, fmt.Errorf("%w: a task needs at least one item", ErrValidation)
	}

	ids := make([]uuid.UUID, 0, len(req.Items))
	for _, item := range req.Items {
		pid, err := parseID("product", item.ProductID)
		if err != nil {
			return TaskResponse{}, err
		}
		if item.Quantity <= 0 {
			return TaskResponse{}, fmt.Errorf("%w: quantity for product %s must be positive", ErrValidation, pid)
		}
		ids = append(ids, pid)
	}

	task := model.Task{
		TaskNumber:  number,
		Status:      model.TaskStatusPending,
		CreatorName: strings.TrimSpace(viewer.Name),
		CreatedBy:   viewerUserID(viewer),
		Note:        req.Note,
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.taskRepo.FindByNumber(txCtx, number); err == nil {
			return fmt.Errorf("task number %q: %w", number, ErrConflict)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("database error: %w", err)
		}

		products, err := s.productRepo.FindByIDs(txCtx, ids)
		if err != nil {
			return fmt.Errorf("failed to load products: %w", err)
		}
		byID := make(map[uuid.UUID]*model.Product, len(products))
		for i := range products {
			byID[products[i].ID] = &products[i]
		}

		for i, item := range req.Items {
			p, ok := byID[ids[i]]
			if !ok {
				return fmt.Errorf("product %s: %w", ids[i], ErrNotFound)
			}
			task.Items = append(task.Items, model.TaskItem{
				ProductID:   p.ID,
				Quantity:    item.Quantity,
				ProductName: p.Name,
				UnitPrice:   p.SalePrice,
			})
		}

		if err := s.taskRepo.Create(txCtx, &task); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("task number %q: %w", number, ErrConflict)
			}
			return fmt.Errorf("failed to create task: %w", err)
		}

		audit := &model.AuditLog{
			UserID:     viewerUserID(viewer),
			Username:   viewer.Name,
			Action:     model.ActionCreateTask,
			EntityID:   task.ID.String(),
			EntityName: task.TaskNumber,
			Details:    auditDetails(req),
		}
		if err := s.auditRepo.Log(txCtx, audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
	if err != nil {
		return TaskResponse{}, err
	}

	invalidateStatistics(ctx, s.statsCache, s.log)
	s.publisher.Publish(EventTaskCreated, map[string]interface{}{
		"id":           task.ID.String(),
		"task_number":  task.TaskNumber,
		"creator_name": task.CreatorName,
		"status":       string(task.Status),
	})

	return toTaskResponse(&task), nil
}

func (s *taskService) ListTasks(ctx context.Context, viewer model.Viewer, filter TaskListFilter) ([]TaskResponse, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}

	var repoFilter repository.TaskFilter
	if filter.Status != "" {
		status, ok := model.ParseTaskStatus(filter.Status)
		if !ok {
			return nil, 0, fmt.Errorf("%w: unknown task status %q", ErrValidation, filter.Status)
		}
		repoFilter.Status = status
	}
	if !model.CanViewAllData(viewer.Role) && viewer.Role != model.RoleWarehouse {
		if viewer.Name == "" {
			return []TaskResponse{}, 0, nil
		}
		name := viewer.Name
		repoFilter.CreatorName = &name
	}

	tasks, total, err := s.taskRepo.List(ctx, repoFilter, filter.Page, filter.Limit)
	if err != nil {
		return nil, 0, err
	}

	res := make([]TaskResponse, 0, len(tasks))
	for i := range tasks {
		res = append(res, toTaskResponse(&tasks[i]))
	}
	return res, total, nil
}

func (s *taskService) GetTask(ctx context.Context, viewer model.Viewer, id string) (TaskResponse, error) {
	taskID, err := parseID("task", id)
	if err != nil {
		return TaskResponse{}, err
	}

	task, err := s.taskRepo.FindByIDWithItems(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return TaskResponse{}, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
		}
		return TaskResponse{}, fmt.Errorf("database error: %w", err)
	}
	// hidden tasks look missing
	if !canSeeTask(viewer, task) {
		return TaskResponse{}, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	return toTaskResponse(task), nil
}

// UpdateStatus moves a task along pending -> processing -> completed.
// Completion decrements stock for every item inside the same transaction.
func (s *taskService) UpdateStatus(ctx context.Context, viewer model.Viewer, id string, status string) (TaskResponse, error) {
	taskID, err := parseID("task", id)
	if err != nil {
		return TaskResponse{}, err
	}
	next, ok := model.ParseTaskStatus(status)
	if !ok {
		return TaskResponse{}, fmt.Errorf("%w: unknown task status %q", ErrValidation, status)
	}
	switch viewer.Role {
	case model.RoleAdmin, model.RoleWarehouse, model.RoleSales:
	default:
		return TaskResponse{}, fmt.Errorf("role %q may not change task status: %w", viewer.Role, ErrForbidden)
	}

	var previous model.TaskStatus
	var task *model.Task
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		locked, err := s.taskRepo.FindByIDForUpdate(txCtx, taskID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("task %s: %w", taskID, ErrNotFound)
			}
			return fmt.Errorf("database error: %w", err)
		}
		if viewer.Role == model.RoleSales && !locked.OwnedBy(viewer.Name) {
			return fmt.Errorf("task %s belongs to another salesperson: %w", locked.TaskNumber, ErrForbidden)
		}
		if !locked.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, locked.Status, next)
		}

		var completedAt *time.Time
		if next == model.TaskStatusCompleted {
			if err := s.releaseStock(txCtx, locked); err != nil {
				return err
			}
			at := s.now()
			completedAt = &at
		}

		if err := s.taskRepo.UpdateStatus(txCtx, locked.ID, next, completedAt); err != nil {
			return fmt.Errorf("failed to update task status: %w", err)
		}

		action := model.ActionUpdateTaskStatus
		if next == model.TaskStatusCompleted {
			action = model.ActionCompleteTask
		}
		audit := &model.AuditLog{
			UserID:     viewerUserID(viewer),
			Username:   viewer.Name,
			Action:     action,
			EntityID:   locked.ID.String(),
			EntityName: locked.TaskNumber,
			Details: auditDetails(map[string]interface{}{
				"from": locked.Status,
				"to":   next,
			}),
		}
		if err := s.auditRepo.Log(txCtx, audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}

		previous = locked.Status
		locked.Status = next
		locked.CompletedAt = completedAt
		task = locked
		return nil
	})
	if err != nil {
		return TaskResponse{}, err
	}

	invalidateStatistics(ctx, s.statsCache, s.log)
	s.publisher.Publish(EventTaskStatusChanged, map[string]interface{}{
		"id":           task.ID.String(),
		"task_number":  task.TaskNumber,
		"creator_name": task.CreatorName,
		"from":         string(previous),
		"status":       string(next),
	})

	return toTaskResponse(task), nil
}

// releaseStock locks each product in id order and books one OUT movement per item
func (s *taskService) releaseStock(ctx context.Context, task *model.Task) error {
	needed := make(map[uuid.UUID]int)
	for _, item := range task.Items {
		needed[item.ProductID] += item.Quantity
	}
	ids := make([]uuid.UUID, 0, len(needed))
	for id := range needed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	stock := make(map[uuid.UUID]int, len(ids))
	for _, id := range ids {
		p, err := s.productRepo.FindByIDForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("product %s: %w", id, ErrNotFound)
			}
			return fmt.Errorf("database error: %w", err)
		}
		if p.Quantity < needed[id] {
			return fmt.Errorf("%w: %s has %d, task %s needs %d", ErrInsufficientStock, p.Code, p.Quantity, task.TaskNumber, needed[id])
		}
		stock[id] = p.Quantity
	}

	taskID := task.ID
	for _, item := range task.Items {
		stock[item.ProductID] -= item.Quantity
		movement := &model.InventoryTransaction{
			ProductID:       item.ProductID,
			TaskID:          &taskID,
			TransactionType: model.TxTypeOut,
			QuantityChanged: item.Quantity,
			StockAfter:      stock[item.ProductID],
		}
		if err := s.invTxRepo.Create(ctx, movement); err != nil {
			return fmt.Errorf("failed to record stock movement: %w", err)
		}
	}
	for _, id := range ids {
		if err := s.productRepo.UpdateStock(ctx, id, stock[id]); err != nil {
			return fmt.Errorf("failed to update stock: %w", err)
		}
	}
	return nil
}
