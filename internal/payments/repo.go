package payments

import (
	"context"
	"encoding/json"

	"github.com/cartloop/cartloop-backend/pkg/db/models"
	"github.com/cartloop/cartloop-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository manages persistence for payment attempts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindByProviderOrderID(ctx context.Context, providerOrderID string) (*models.Payment, error)
	SetProviderOrderID(ctx context.Context, id uuid.UUID, providerOrderID string) error
	MarkFailed(ctx context.Context, id uuid.UUID, metadata json.RawMessage) error
	// CaptureLatch flips the payment to captured only when it is not
	// captured yet. Zero rows affected means another path won the race.
	CaptureLatch(ctx context.Context, id uuid.UUID, providerPaymentID string, metadata json.RawMessage) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payments repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).First(&payment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindByProviderOrderID(ctx context.Context, providerOrderID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		First(&payment, "provider_order_id = ?", providerOrderID).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) SetProviderOrderID(ctx context.Context, id uuid.UUID, providerOrderID string) error {
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", id).
		UpdateColumn("provider_order_id", providerOrderID).Error
}

func (r *repository) MarkFailed(ctx context.Context, id uuid.UUID, metadata json.RawMessage) error {
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"status":   enums.PaymentStateFailed,
			"metadata": metadata,
		}).Error
}

func (r *repository) CaptureLatch(ctx context.Context, id uuid.UUID, providerPaymentID string, metadata json.RawMessage) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status <> ?", id, enums.PaymentStateCaptured).
		UpdateColumns(map[string]any{
			"status":              enums.PaymentStateCaptured,
			"provider_payment_id": providerPaymentID,
			"metadata":            metadata,
		})
	return result.RowsAffected, result.Error
}
