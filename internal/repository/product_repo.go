package repository

import (
	"context"

	"stockroom/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	Update(ctx context.Context, product *model.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	FindByCode(ctx context.Context, code string) (*model.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Product, error)
	List(ctx context.Context, page, limit int, search string) ([]model.Product, int64, error)
	ListCatalog(ctx context.Context) ([]model.Product, error)
	UpdateStock(ctx context.Context, id uuid.UUID, stock int) error
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Product, error)
}

type productRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(ctx context.Context, product *model.Product) error {
	return GetDB(ctx, r.db).Create(product).Error
}

func (r *productRepository) Update(ctx context.Context, product *model.Product) error {
	return GetDB(ctx, r.db).Save(product).Error
}

// Delete soft-deletes; ListCatalog still returns the row
func (r *productRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Product{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	return r.findOne(GetDB(ctx, r.db), "id = ?", id)
}

// FindByCode also returns soft-deleted rows; a deleted product keeps its code reserved
func (r *productRepository) FindByCode(ctx context.Context, code string) (*model.Product, error) {
	return r.findOne(GetDB(ctx, r.db).Unscoped(), "code = ?", code)
}

func (r *productRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Product, error) {
	var products []model.Product
	if len(ids) == 0 {
		return products, nil
	}
	if err := GetDB(ctx, r.db).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (r *productRepository) List(ctx context.Context, page, limit int, search string) ([]model.Product, int64, error) {
	var products []model.Product
	query := GetDB(ctx, r.db).Model(&model.Product{}).Scopes(Search(search, "name", "code"))
	total, err := countAndFind(query, &products, "created_at DESC", page, limit)
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// ListCatalog returns every product including soft-deleted ones, so historical
// task items still resolve to their price and supplier.
func (r *productRepository) ListCatalog(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	if err := GetDB(ctx, r.db).Unscoped().Order("created_at asc").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// UpdateStock sets quantity-on-hand without touching the other columns
func (r *productRepository) UpdateStock(ctx context.Context, id uuid.UUID, stock int) error {
	res := GetDB(ctx, r.db).Model(&model.Product{}).Where("id = ?", id).Update("quantity", stock)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindByIDForUpdate row-locks the product until the surrounding transaction ends
func (r *productRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	return r.findOne(GetDB(ctx, r.db).Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}), "id = ?", id)
}

func (r *productRepository) findOne(db *gorm.DB, cond string, arg interface{}) (*model.Product, error) {
	var product model.Product
	if err := db.Where(cond, arg).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}
