package ledger

import (
	"context"

	"github.com/cartloop/cartloop-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository manages persistence for stock ledger entries and the
// denormalized stock counter on products.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateEntry(ctx context.Context, entry *models.StockEntry) error
	// ApplyDelta atomically shifts product stock by delta, refusing to
	// cross below zero. Returns the number of rows updated (0 or 1).
	ApplyDelta(ctx context.Context, productID uuid.UUID, delta int) (int64, error)
	FindProductByID(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	ListByProductID(ctx context.Context, productID uuid.UUID, limit int) ([]models.StockEntry, error)
	ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.StockEntry, error)
	SumDeltas(ctx context.Context, productID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateEntry(ctx context.Context, entry *models.StockEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ApplyDelta(ctx context.Context, productID uuid.UUID, delta int) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock + ? >= 0", productID, delta).
		UpdateColumn("stock", gorm.Expr("stock + ?", delta))
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repository) FindProductByID(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", productID).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) ListByProductID(ctx context.Context, productID uuid.UUID, limit int) ([]models.StockEntry, error) {
	q := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var entries []models.StockEntry
	if err := q.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.StockEntry, error) {
	var entries []models.StockEntry
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) SumDeltas(ctx context.Context, productID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.StockEntry{}).
		Where("product_id = ?", productID).
		Select("COALESCE(SUM(delta), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}
