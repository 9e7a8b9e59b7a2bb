package service

import (
	"context"
	"errors"
	"fmt"
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

type CreateProductRequest struct {
	Code          string          `json:"code" binding:"required"`
	Name          string          `json:"name" binding:"required"`
	Supplier      string          `json:"supplier"`
	Quantity      int             `json:"quantity" binding:"min=0"`
	PurchasePrice decimal.Decimal `json:"purchase_price" swaggertype:"string"`
	SalePrice     decimal.Decimal `json:"sale_price" swaggertype:"string"`
}

// UpdateProductRequest replaces every editable field. A changed quantity is
// recorded on the stock card as a manual adjustment.
type UpdateProductRequest struct {
	Code          string          `json:"code" binding:"required"`
	Name          string          `json:"name" binding:"required"`
	Supplier      string          `json:"supplier"`
	Quantity      int             `json:"quantity" binding:"min=0"`
	PurchasePrice decimal.Decimal `json:"purchase_price" swaggertype:"string"`
	SalePrice     decimal.Decimal `json:"sale_price" swaggertype:"string"`
}

type ProductResponse struct {
	ID            string          `json:"id"`
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	Supplier      string          `json:"supplier"`
	Quantity      int             `json:"quantity"`
	PurchasePrice decimal.Decimal `json:"purchase_price" swaggertype:"string"`
	SalePrice     decimal.Decimal `json:"sale_price" swaggertype:"string"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type InventoryTransactionResponse struct {
	ID              string    `json:"id"`
	ProductID       string    `json:"product_id"`
	TaskID          string    `json:"task_id,omitempty"`
	TransactionType string    `json:"transaction_type"`
	QuantityChanged int       `json:"quantity_changed"`
	StockAfter      int       `json:"stock_after"`
	CreatedAt       time.Time `json:"created_at"`
}

type InventoryService interface {
	ListProducts(ctx context.Context, page, limit int, search string) ([]ProductResponse, int64, error)
	GetProduct(ctx context.Context, id string) (ProductResponse, error)
	CreateProduct(ctx context.Context, viewer model.Viewer, req CreateProductRequest) (ProductResponse, error)
	UpdateProduct(ctx context.Context, viewer model.Viewer, id string, req UpdateProductRequest) (ProductResponse, error)
	DeleteProduct(ctx context.Context, viewer model.Viewer, id string) error
	ListProductTransactions(ctx context.Context, id string, page, limit int) ([]InventoryTransactionResponse, int64, error)
}

type inventoryService struct {
	productRepo repository.ProductRepository
	invTxRepo   repository.InventoryTxRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	statsCache  cache.StatisticsCache
	publisher   EventPublisher
	log         *logger.Logger
}

func NewInventoryService(
	productRepo repository.ProductRepository,
	invTxRepo repository.InventoryTxRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	statsCache cache.StatisticsCache,
	publisher EventPublisher,
	log *logger.Logger,
) InventoryService {
	return &inventoryService{
		productRepo: productRepo,
		invTxRepo:   invTxRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		statsCache:  statsCache,
		publisher:   publisher,
		log:         log.With("service", "InventoryService"),
	}
}

func toProductResponse(p *model.Product) ProductResponse {
	return ProductResponse{
		ID:            p.ID.String(),
		Code:          p.Code,
		Name:          p.Name,
		Supplier:      p.Supplier,
		Quantity:      p.Quantity,
		PurchasePrice: p.PurchasePrice,
		SalePrice:     p.SalePrice,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func parseID(kind, id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s id %q", ErrValidation, kind, id)
	}
	return parsed, nil
}

func validatePrices(purchase, sale decimal.Decimal) error {
	if purchase.IsNegative() || sale.IsNegative() {
		return fmt.Errorf("%w: prices must not be negative", ErrValidation)
	}
	return nil
}

func (s *inventoryService) ListProducts(ctx context.Context, page, limit int, search string) ([]ProductResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	products, total, err := s.productRepo.List(ctx, page, limit, strings.TrimSpace(search))
	if err != nil {
		return nil, 0, err
	}

	res := make([]ProductResponse, 0, len(products))
	for i := range products {
		res = append(res, toProductResponse(&products[i]))
	}
	return res, total, nil
}

func (s *inventoryService) GetProduct(ctx context.Context, id string) (ProductResponse, error) {
	productID, err := parseID("product", id)
	if err != nil {
		return ProductResponse{}, err
	}
	product, err := s.findProduct(ctx, productID)
	if err != nil {
		return ProductResponse{}, err
	}
	return toProductResponse(product), nil
}

func (s *inventoryService) findProduct(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return product, nil
}

// ensureCodeFree fails with ErrConflict when another product, deleted or not, uses code
func (s *inventoryService) ensureCodeFree(ctx context.Context, code string, self uuid.UUID) error {
	existing, err := s.productRepo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("database error: %w", err)
	}
	if existing.ID == self {
		return nil
	}
	if existing.DeletedAt.Valid {
		return fmt.Errorf("product code %q is held by a deleted product: %w", code, ErrConflict)
	}
	return fmt.Errorf("product code %q: %w", code, ErrConflict)
}

func (s *inventoryService) CreateProduct(ctx context.Context, viewer model.Viewer, req CreateProductRequest) (ProductResponse, error) {
	if err := validatePrices(req.PurchasePrice, req.SalePrice); err != nil {
		return ProductResponse{}, err
	}

	product := model.Product{
		Code:          strings.TrimSpace(req.Code),
		Name:          strings.TrimSpace(req.Name),
		Supplier:      strings.TrimSpace(req.Supplier),
		Quantity:      req.Quantity,
		PurchasePrice: req.PurchasePrice,
		SalePrice:     req.SalePrice,
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.ensureCodeFree(txCtx, product.Code, uuid.Nil); err != nil {
			return err
		}
		if err := s.productRepo.Create(txCtx, &product); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("product code %q: %w", product.Code, ErrConflict)
			}
			return fmt.Errorf("failed to create product: %w", err)
		}

		if product.Quantity > 0 {
			opening := &model.InventoryTransaction{
				ProductID:       product.ID,
				TransactionType: model.TxTypeIn,
				QuantityChanged: product.Quantity,
				StockAfter:      product.Quantity,
			}
			if err := s.invTxRepo.Create(txCtx, opening); err != nil {
				return fmt.Errorf("failed to record opening stock: %w", err)
			}
		}

		audit := &model.AuditLog{
			UserID:     viewerUserID(viewer),
			Username:   viewer.Name,
			Action:     model.ActionCreateProduct,
			EntityID:   product.ID.String(),
			EntityName: product.Name,
			Details:    auditDetails(req),
		}
		if err := s.auditRepo.Log(txCtx, audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
	if err != nil {
		return ProductResponse{}, err
	}

	invalidateStatistics(ctx, s.statsCache, s.log)
	s.publisher.Publish(EventProductCreated, map[string]interface{}{
		"id":       product.ID.String(),
		"code":     product.Code,
		"name":     product.Name,
		"quantity": product.Quantity,
	})

	return toProductResponse(&product), nil
}

func (s *inventoryService) UpdateProduct(ctx context.Context, viewer model.Viewer, id string, req UpdateProductRequest) (ProductResponse, error) {
	productID, err := parseID("product", id)
	if err != nil {
		return ProductResponse{}, err
	}
	if err := validatePrices(req.PurchasePrice, req.SalePrice); err != nil {
		return ProductResponse{}, err
	}

	var product *model.Product
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		locked, err := s.productRepo.FindByIDForUpdate(txCtx, productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("product %s: %w", productID, ErrNotFound)
			}
			return fmt.Errorf("database error: %w", err)
		}

		code := strings.TrimSpace(req.Code)
		if code != locked.Code {
			if err := s.ensureCodeFree(txCtx, code, locked.ID); err != nil {
				return err
			}
		}

		delta := req.Quantity - locked.Quantity
		locked.Code = code
		locked.Name = strings.TrimSpace(req.Name)
		locked.Supplier = strings.TrimSpace(req.Supplier)
		locked.Quantity = req.Quantity
		locked.PurchasePrice = req.PurchasePrice
		locked.SalePrice = req.SalePrice

		if err := s.productRepo.Update(txCtx, locked); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("product code %q: %w", code, ErrConflict)
			}
			return fmt.Errorf("failed to update product: %w", err)
		}

		if delta != 0 {
			adjustment := &model.InventoryTransaction{
				ProductID:       locked.ID,
				TransactionType: model.TxTypeIn,
				QuantityChanged: delta,
				StockAfter:      locked.Quantity,
			}
			if delta < 0 {
				adjustment.TransactionType = model.TxTypeOut
				adjustment.QuantityChanged = -delta
			}
			if err := s.invTxRepo.Create(txCtx, adjustment); err != nil {
				return fmt.Errorf("failed to record stock adjustment: %w", err)
			}
		}

		audit := &model.AuditLog{
			UserID:     viewerUserID(viewer),
			Username:   viewer.Name,
			Action:     model.ActionUpdateProduct,
			EntityID:   locked.ID.String(),
			EntityName: locked.Name,
			Details:    auditDetails(req),
		}
		if err := s.auditRepo.Log(txCtx, audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}

		product = locked
		return nil
	})
	if err != nil {
		return ProductResponse{}, err
	}

	invalidateStatistics(ctx, s.statsCache, s.log)
	s.publisher.Publish(EventProductUpdated, map[string]interface{}{
		"id":       product.ID.String(),
		"code":     product.Code,
		"name":     product.Name,
		"quantity": product.Quantity,
	})

	return toProductResponse(product), nil
}

func (s *inventoryService) DeleteProduct(ctx context.Context, viewer model.Viewer, id string) error {
	productID, err := parseID("product", id)
	if err != nil {
		return err
	}

	product, err := s.findProduct(ctx, productID)
	if err != nil {
		return err
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.productRepo.Delete(txCtx, productID); err != nil {
			return fmt.Errorf("failed to delete product: %w", err)
		}

		audit := &model.AuditLog{
			UserID:     viewerUserID(viewer),
			Username:   viewer.Name,
			Action:     model.ActionDeleteProduct,
			EntityID:   product.ID.String(),
			EntityName: product.Name,
			Details:    auditDetails(map[string]interface{}{"deleted": true, "code": product.Code}),
		}
		if err := s.auditRepo.Log(txCtx, audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	invalidateStatistics(ctx, s.statsCache, s.log)
	s.publisher.Publish(EventProductDeleted, map[string]interface{}{
		"id":   product.ID.String(),
		"code": product.Code,
	})
	return nil
}

func (s *inventoryService) ListProductTransactions(ctx context.Context, id string, page, limit int) ([]InventoryTransactionResponse, int64, error) {
	productID, err := parseID("product", id)
	if err != nil {
		return nil, 0, err
	}
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	txs, total, err := s.invTxRepo.ListByProduct(ctx, productID, page, limit)
	if err != nil {
		return nil, 0, err
	}

	res := make([]InventoryTransactionResponse, 0, len(txs))
	for _, t := range txs {
		entry := InventoryTransactionResponse{
			ID:              t.ID.String(),
			ProductID:       t.ProductID.String(),
			TransactionType: t.TransactionType,
			QuantityChanged: t.QuantityChanged,
			StockAfter:      t.StockAfter,
			CreatedAt:       t.CreatedAt,
		}
		if t.TaskID != nil {
			entry.TaskID = t.TaskID.String()
		}
		res = append(res, entry)
	}
	return res, total, nil
}
