package service

import (
	"context"
	"encoding/json"
	"testing"

	"stockroom/internal/model"
	"stockroom/internal/repository"
	"stockroom/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestInventoryService_CreateProduct(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	p := h.createProduct(t, "IP-15", " iPhone ", "Apple", 5, "7999", "9999")
	assert.Equal(t, "iPhone", p.Name)
	assert.Equal(t, 5, p.Quantity)
	assert.Equal(t, "9999", p.SalePrice.String())

	card, total, err := h.inventory.ListProductTransactions(ctx, p.ID, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, model.TxTypeIn, card[0].TransactionType)
	assert.Equal(t, 5, card[0].QuantityChanged)
	assert.Equal(t, 5, card[0].StockAfter)
	assert.Empty(t, card[0].TaskID)

	logs, _, err := h.auditSvc.GetAuditLogs(ctx, AuditLogQuery{Page: 1, Limit: 20, Action: model.ActionCreateProduct})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "Root", logs[0].Username)
	assert.Equal(t, admin.ID.String(), logs[0].UserID)
	assert.Equal(t, p.ID, logs[0].EntityID)

	var details map[string]interface{}
	require.NoError(t, json.Unmarshal(logs[0].Details, &details))
	assert.Equal(t, "IP-15", details["code"])

	assert.Equal(t, []string{EventProductCreated}, h.publisher.Events())
	gen, err := h.cache.Generation(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen)
}

func TestInventoryService_CreateProductRejects(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.createProduct(t, "IP-15", "iPhone", "Apple", 0, "7999", "9999")

	_, err := h.inventory.CreateProduct(ctx, admin, CreateProductRequest{Code: "IP-15", Name: "Other"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = h.inventory.CreateProduct(ctx, admin, CreateProductRequest{
		Code:      "NEG",
		Name:      "Broken",
		SalePrice: decimal.NewFromInt(-1),
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, total, err := h.inventory.ListProducts(ctx, 1, 20, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestInventoryService_UpdateProductRecordsAdjustment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.createProduct(t, "IP-15", "iPhone", "Apple", 5, "7999", "9999")

	updated, err := h.inventory.UpdateProduct(ctx, admin, p.ID, UpdateProductRequest{
		Code:          "IP-15",
		Name:          "iPhone 15",
		Supplier:      "Apple",
		Quantity:      3,
		PurchasePrice: decimal.NewFromInt(7999),
		SalePrice:     decimal.NewFromInt(8999),
	})
	require.NoError(t, err)
	assert.Equal(t, "iPhone 15", updated.Name)
	assert.Equal(t, 3, updated.Quantity)

	card, total, err := h.inventory.ListProductTransactions(ctx, p.ID, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	var out *InventoryTransactionResponse
	for i := range card {
		if card[i].TransactionType == model.TxTypeOut {
			out = &card[i]
		}
	}
	require.NotNil(t, out)
	assert.Equal(t, 2, out.QuantityChanged)
	assert.Equal(t, 3, out.StockAfter)

	got, err := h.inventory.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "8999", got.SalePrice.String())
}

func TestInventoryService_UpdateProductCodeConflict(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.createProduct(t, "A", "Alpha", "", 0, "1", "2")
	b := h.createProduct(t, "B", "Beta", "", 0, "1", "2")

	_, err := h.inventory.UpdateProduct(ctx, admin, b.ID, UpdateProductRequest{Code: "A", Name: "Beta"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = h.inventory.UpdateProduct(ctx, admin, uuid.NewString(), UpdateProductRequest{Code: "C", Name: "Gamma"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInventoryService_DeletedCodeStaysReserved(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.createProduct(t, "IP-15", "iPhone", "Apple", 0, "7999", "9999")
	other := h.createProduct(t, "CASE-1", "Case", "Belkin", 0, "10", "25")
	require.NoError(t, h.inventory.DeleteProduct(ctx, admin, p.ID))

	_, err := h.inventory.CreateProduct(ctx, admin, CreateProductRequest{
		Code:          "IP-15",
		Name:          "iPhone 15",
		PurchasePrice: decimal.RequireFromString("7999"),
		SalePrice:     decimal.RequireFromString("9999"),
	})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = h.inventory.UpdateProduct(ctx, admin, other.ID, UpdateProductRequest{Code: "IP-15", Name: "Case"})
	assert.ErrorIs(t, err, ErrConflict)

	listed, total, err := h.inventory.ListProducts(ctx, 1, 20, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "CASE-1", listed[0].Code)
}

// codeBlindProducts hides existing codes so the unique index is the only guard left
type codeBlindProducts struct {
	repository.ProductRepository
}

func (codeBlindProducts) FindByCode(context.Context, string) (*model.Product, error) {
	return nil, gorm.ErrRecordNotFound
}

func TestInventoryService_UniqueIndexMapsToConflict(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.createProduct(t, "IP-15", "iPhone", "Apple", 0, "7999", "9999")

	svc := NewInventoryService(codeBlindProducts{h.products}, h.invTx, h.audit, h.txm, h.cache, h.publisher, logger.NewNop())
	_, err := svc.CreateProduct(ctx, admin, CreateProductRequest{
		Code:          "IP-15",
		Name:          "iPhone again",
		PurchasePrice: decimal.RequireFromString("1"),
		SalePrice:     decimal.RequireFromString("2"),
	})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestInventoryService_DeleteProduct(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.createProduct(t, "IP-15", "iPhone", "Apple", 0, "7999", "9999")

	require.NoError(t, h.inventory.DeleteProduct(ctx, admin, p.ID))

	_, err := h.inventory.GetProduct(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, h.inventory.DeleteProduct(ctx, admin, p.ID), ErrNotFound)

	logs, total, err := h.auditSvc.GetAuditLogs(ctx, AuditLogQuery{Page: 1, Limit: 20, Action: model.ActionDeleteProduct})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "iPhone", logs[0].EntityName)
	assert.Equal(t, []string{EventProductCreated, EventProductDeleted}, h.publisher.Events())
}

func TestInventoryService_InvalidID(t *testing.T) {
	h := newHarness(t)
	_, err := h.inventory.GetProduct(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, ErrValidation)
}
