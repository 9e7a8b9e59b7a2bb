package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"stockroom/internal/cache"
	"stockroom/internal/database"
	"stockroom/internal/model"
	"stockroom/internal/repository"
	"stockroom/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
	data   []map[string]interface{}
}

func (p *recordingPublisher) Publish(event string, data map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	p.data = append(p.data, data)
}

func (p *recordingPublisher) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

type harness struct {
	db        *gorm.DB
	products  repository.ProductRepository
	tasks     repository.TaskRepository
	invTx     repository.InventoryTxRepository
	audit     repository.AuditRepository
	txm       repository.TransactionManager
	cache     cache.StatisticsCache
	publisher *recordingPublisher

	inventory InventoryService
	taskSvc   *taskService
	statsSvc  *statisticsService
	auditSvc  AuditService
	clock     time.Time
}

var (
	admin     = model.Viewer{ID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), Name: "Root", Role: model.RoleAdmin}
	alice     = model.Viewer{ID: uuid.MustParse("00000000-0000-0000-0000-00000000000a"), Name: "Alice", Role: model.RoleSales}
	bob       = model.Viewer{ID: uuid.MustParse("00000000-0000-0000-0000-00000000000b"), Name: "Bob", Role: model.RoleSales}
	carol     = model.Viewer{ID: uuid.MustParse("00000000-0000-0000-0000-00000000000c"), Name: "Carol", Role: model.RoleStaff}
	warehouse = model.Viewer{ID: uuid.MustParse("00000000-0000-0000-0000-00000000000d"), Name: "Dock", Role: model.RoleWarehouse}
)

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent), TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	h := &harness{
		db:        db,
		products:  repository.NewProductRepository(db),
		tasks:     repository.NewTaskRepository(db),
		invTx:     repository.NewInventoryTxRepository(db),
		audit:     repository.NewAuditRepository(db),
		txm:       repository.NewTransactionManager(db),
		cache:     cache.NewMemory(time.Minute),
		publisher: &recordingPublisher{},
		clock:     time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC),
	}
	log := logger.NewNop()

	h.inventory = NewInventoryService(h.products, h.invTx, h.audit, h.txm, h.cache, h.publisher, log)
	h.taskSvc = NewTaskService(h.tasks, h.products, h.invTx, h.audit, h.txm, h.cache, h.publisher, log).(*taskService)
	h.taskSvc.now = func() time.Time { return h.clock }
	h.statsSvc = NewStatisticsService(h.tasks, h.products, h.cache, time.UTC, log).(*statisticsService)
	h.statsSvc.now = func() time.Time { return h.clock }
	h.auditSvc = NewAuditService(h.audit)
	return h
}

func (h *harness) createProduct(t *testing.T, code, name, supplier string, qty int, purchase, sale string) ProductResponse {
	t.Helper()
	p, err := h.inventory.CreateProduct(context.Background(), admin, CreateProductRequest{
		Code:          code,
		Name:          name,
		Supplier:      supplier,
		Quantity:      qty,
		PurchasePrice: decimal.RequireFromString(purchase),
		SalePrice:     decimal.RequireFromString(sale),
	})
	require.NoError(t, err)
	return p
}

// seedTask inserts a task directly so tests control its timestamps
func (h *harness) seedTask(t *testing.T, number, creator string, created time.Time, completed *time.Time, items ...model.TaskItem) *model.Task {
	t.Helper()
	status := model.TaskStatusPending
	if completed != nil {
		status = model.TaskStatusCompleted
	}
	task := &model.Task{
		TaskNumber:  number,
		Status:      status,
		CreatorName: creator,
		CreatedAt:   created,
		CompletedAt: completed,
		Items:       items,
	}
	require.NoError(t, h.tasks.Create(context.Background(), task))
	return task
}

func item(p ProductResponse, qty int) model.TaskItem {
	return model.TaskItem{
		ProductID:   uuid.MustParse(p.ID),
		Quantity:    qty,
		ProductName: p.Name,
		UnitPrice:   p.SalePrice,
	}
}
