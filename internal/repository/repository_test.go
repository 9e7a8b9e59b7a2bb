package repository

import (
	"context"
	"testing"
	"time"

	"stockroom/internal/database"
	"stockroom/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent), TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection to ":memory:" is a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func seedProduct(t *testing.T, repo ProductRepository, code, name string, sale int64) *model.Product {
	t.Helper()
	p := &model.Product{
		Code:          code,
		Name:          name,
		Supplier:      "Acme",
		Quantity:      10,
		PurchasePrice: decimal.NewFromInt(sale / 2),
		SalePrice:     decimal.NewFromInt(sale),
	}
	require.NoError(t, repo.Create(context.Background(), p))
	return p
}

func seedTask(t *testing.T, repo TaskRepository, number, creator string, created time.Time, completed *time.Time, p *model.Product, qty int) *model.Task {
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
		Items: []model.TaskItem{
			{ProductID: p.ID, Quantity: qty, ProductName: p.Name, UnitPrice: p.SalePrice},
		},
	}
	require.NoError(t, repo.Create(context.Background(), task))
	return task
}

func TestTaskRepository_CreateAndFind(t *testing.T) {
	db := newTestDB(t)
	products := NewProductRepository(db)
	tasks := NewTaskRepository(db)
	ctx := context.Background()

	p := seedProduct(t, products, "P-1", "Widget", 20)
	created := seedTask(t, tasks, "T-1", "Alice", time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC), nil, p, 3)

	got, err := tasks.FindByIDWithItems(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "T-1", got.TaskNumber)
	assert.Equal(t, model.TaskStatusPending, got.Status)
	require.Len(t, got.Items, 1)
	assert.Equal(t, p.ID, got.Items[0].ProductID)
	assert.Equal(t, 3, got.Items[0].Quantity)
	assert.Equal(t, "20", got.Items[0].UnitPrice.String())

	byNumber, err := tasks.FindByNumber(ctx, "T-1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byNumber.ID)

	_, err = tasks.FindByNumber(ctx, "T-404")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestTaskRepository_UpdateStatus(t *testing.T) {
	db := newTestDB(t)
	products := NewProductRepository(db)
	tasks := NewTaskRepository(db)
	ctx := context.Background()

	p := seedProduct(t, products, "P-1", "Widget", 20)
	task := seedTask(t, tasks, "T-1", "Alice", time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC), nil, p, 1)

	done := time.Date(2026, 10, 2, 8, 0, 0, 0, time.UTC)
	require.NoError(t, tasks.UpdateStatus(ctx, task.ID, model.TaskStatusCompleted, &done))

	got, err := tasks.FindByIDWithItems(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, done.Equal(*got.CompletedAt))
}

func TestTaskRepository_ListWithItemsFilters(t *testing.T) {
	db := newTestDB(t)
	products := NewProductRepository(db)
	tasks := NewTaskRepository(db)
	ctx := context.Background()

	p := seedProduct(t, products, "P-1", "Widget", 20)
	oct1 := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	oct20 := time.Date(2026, 10, 20, 8, 0, 0, 0, time.UTC)
	nov5 := time.Date(2026, 11, 5, 8, 0, 0, 0, time.UTC)

	seedTask(t, tasks, "T-1", "Alice", oct1, nil, p, 1)
	// created in September, completed in October: effective date is October
	seedTask(t, tasks, "T-2", "Bob", time.Date(2026, 9, 28, 8, 0, 0, 0, time.UTC), &oct20, p, 2)
	seedTask(t, tasks, "T-3", "Alice", oct20, &nov5, p, 4)

	from := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)

	t.Run("window on effective date", func(t *testing.T) {
		got, err := tasks.ListWithItems(ctx, TaskFilter{EffectiveFrom: &from, EffectiveTo: &to})
		require.NoError(t, err)
		numbers := make([]string, 0, len(got))
		for _, task := range got {
			numbers = append(numbers, task.TaskNumber)
			assert.Len(t, task.Items, 1)
		}
		assert.Equal(t, []string{"T-2", "T-1"}, numbers)
	})

	t.Run("creator and status", func(t *testing.T) {
		alice := "Alice"
		got, err := tasks.ListWithItems(ctx, TaskFilter{CreatorName: &alice, Status: model.TaskStatusCompleted})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "T-3", got[0].TaskNumber)
	})

	t.Run("paginated list", func(t *testing.T) {
		got, total, err := tasks.List(ctx, TaskFilter{}, 1, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, got, 2)
	})
}

func TestProductRepository_CatalogIncludesDeleted(t *testing.T) {
	db := newTestDB(t)
	products := NewProductRepository(db)
	ctx := context.Background()

	keep := seedProduct(t, products, "P-1", "Widget", 20)
	gone := seedProduct(t, products, "P-2", "Gadget", 40)
	require.NoError(t, products.Delete(ctx, gone.ID))

	_, err := products.FindByID(ctx, gone.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	listed, total, err := products.List(ctx, 1, 20, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, keep.ID, listed[0].ID)

	catalog, err := products.ListCatalog(ctx)
	require.NoError(t, err)
	assert.Len(t, catalog, 2)

	held, err := products.FindByCode(ctx, "P-2")
	require.NoError(t, err)
	assert.Equal(t, gone.ID, held.ID)
	assert.True(t, held.DeletedAt.Valid)

	err = products.Create(ctx, &model.Product{Code: "P-2", Name: "Gadget II"})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestTaskRepository_CreatorFilterTrims(t *testing.T) {
	db := newTestDB(t)
	products := NewProductRepository(db)
	tasks := NewTaskRepository(db)
	ctx := context.Background()

	p := seedProduct(t, products, "P-1", "Widget", 20)
	oct1 := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	seedTask(t, tasks, "T-1", "Alice", oct1, nil, p, 1)
	seedTask(t, tasks, "T-2", " Alice  ", oct1.Add(time.Hour), nil, p, 2)
	seedTask(t, tasks, "T-3", "Alicia", oct1.Add(2*time.Hour), nil, p, 3)

	name := " Alice"
	got, total, err := tasks.List(ctx, TaskFilter{CreatorName: &name}, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, got, 2)
}

func TestProductRepository_SearchAndStock(t *testing.T) {
	db := newTestDB(t)
	products := NewProductRepository(db)
	ctx := context.Background()

	p := seedProduct(t, products, "IP-15", "iPhone", 9999)
	seedProduct(t, products, "CASE-1", "Case", 30)

	found, total, err := products.List(ctx, 1, 20, "iphone")
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, p.ID, found[0].ID)

	byCode, err := products.FindByCode(ctx, "CASE-1")
	require.NoError(t, err)
	assert.Equal(t, "Case", byCode.Name)

	require.NoError(t, products.UpdateStock(ctx, p.ID, 7))
	reloaded, err := products.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, reloaded.Quantity)

	some, err := products.FindByIDs(ctx, []uuid.UUID{p.ID})
	require.NoError(t, err)
	assert.Len(t, some, 1)
}

func TestTransactionManager_RollsBack(t *testing.T) {
	db := newTestDB(t)
	products := NewProductRepository(db)
	audit := NewAuditRepository(db)
	txm := NewTransactionManager(db)
	ctx := context.Background()

	err := txm.RunInTx(ctx, func(txCtx context.Context) error {
		require.NoError(t, products.Create(txCtx, &model.Product{Code: "P-1", Name: "Widget"}))
		require.NoError(t, audit.Log(txCtx, &model.AuditLog{Action: model.ActionCreateProduct, EntityName: "Widget"}))
		return gorm.ErrInvalidData
	})
	require.ErrorIs(t, err, gorm.ErrInvalidData)

	_, total, err := products.List(ctx, 1, 20, "")
	require.NoError(t, err)
	assert.Zero(t, total)

	logs, total, err := audit.List(ctx, AuditFilter{}, 1, 20)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, logs)
}

func TestTransactionManager_NestedJoinsOuter(t *testing.T) {
	db := newTestDB(t)
	products := NewProductRepository(db)
	txm := NewTransactionManager(db)
	ctx := context.Background()

	assert.False(t, InTx(ctx))
	err := txm.RunInTx(ctx, func(outer context.Context) error {
		assert.True(t, InTx(outer))
		require.NoError(t, txm.RunInTx(outer, func(inner context.Context) error {
			return products.Create(inner, &model.Product{Code: "P-1", Name: "Widget"})
		}))
		return gorm.ErrInvalidData
	})
	require.ErrorIs(t, err, gorm.ErrInvalidData)

	_, total, err := products.List(ctx, 1, 20, "")
	require.NoError(t, err)
	assert.Zero(t, total, "inner write must roll back with the outer transaction")
}

func TestAuditRepository_ListFilters(t *testing.T) {
	db := newTestDB(t)
	audit := NewAuditRepository(db)
	ctx := context.Background()

	entries := []model.AuditLog{
		{Action: model.ActionCreateProduct, EntityID: "p1", EntityName: "Widget"},
		{Action: model.ActionUpdateProduct, EntityID: "p1", EntityName: "Widget"},
		{Action: model.ActionCreateProduct, EntityID: "p2", EntityName: "Gadget"},
	}
	for i := range entries {
		require.NoError(t, audit.Log(ctx, &entries[i]))
	}

	_, total, err := audit.List(ctx, AuditFilter{Action: model.ActionCreateProduct}, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	logs, total, err := audit.List(ctx, AuditFilter{EntityID: "p1"}, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, logs, 1)
}

func TestProductRepository_DeleteMissing(t *testing.T) {
	db := newTestDB(t)
	products := NewProductRepository(db)

	err := products.Delete(context.Background(), uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	err = products.UpdateStock(context.Background(), uuid.New(), 3)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestPaginate_Defaults(t *testing.T) {
	db := newTestDB(t)
	products := NewProductRepository(db)
	for i := 0; i < 3; i++ {
		seedProduct(t, products, "P-"+string(rune('A'+i)), "Widget", 10)
	}

	var page []model.Product
	require.NoError(t, db.Model(&model.Product{}).Order("code ASC").Scopes(Paginate(2, 2)).Find(&page).Error)
	require.Len(t, page, 1)
	assert.Equal(t, "P-C", page[0].Code)

	var all []model.Product
	require.NoError(t, db.Model(&model.Product{}).Scopes(Paginate(0, 0)).Find(&all).Error)
	assert.Len(t, all, 3)
}
