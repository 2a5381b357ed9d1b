package delivery

import (
	"context"
	"errors"
	"fmt"

	"github.com/cartloop/cartloop-backend/internal/orders"
	pkgdb "github.com/cartloop/cartloop-backend/pkg/db"
	"github.com/cartloop/cartloop-backend/pkg/db/models"
	"github.com/cartloop/cartloop-backend/pkg/enums"
	pkgerrors "github.com/cartloop/cartloop-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type orderAdvancer interface {
	AdvanceStatusInTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, next enums.OrderStatus) error
}

// Service assigns orders to delivery partners and walks deliveries
// through their transition table, propagating each step into the
// parent order inside the same transaction.
type Service interface {
	Assign(ctx context.Context, orderID, partnerID uuid.UUID) (*models.Delivery, error)
	UpdateStatus(ctx context.Context, partnerID, deliveryID uuid.UUID, next enums.DeliveryStatus, notes *string) (*models.Delivery, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Delivery, error)
	GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error)
	ListForPartner(ctx context.Context, partnerID uuid.UUID) ([]models.Delivery, error)
}

type service struct {
	tx       txRunner
	repo     Repository
	ordersvc orderAdvancer
}

// NewService builds the delivery service.
func NewService(tx txRunner, repo Repository, ordersvc orders.Service) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("delivery repository required")
	}
	if ordersvc == nil {
		return nil, fmt.Errorf("orders service required")
	}
	return &service{tx: tx, repo: repo, ordersvc: ordersvc}, nil
}

func (s *service) Assign(ctx context.Context, orderID, partnerID uuid.UUID) (*models.Delivery, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if partnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery partner id required")
	}

	delivery := &models.Delivery{
		ID:                uuid.New(),
		OrderID:           orderID,
		DeliveryPartnerID: partnerID,
		Status:            enums.DeliveryStatusAssigned,
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, delivery); err != nil {
			if pkgdb.IsUniqueViolation(err, "deliveries") {
				return pkgerrors.New(pkgerrors.CodeConflict, "order already has a delivery assignment")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create delivery")
		}
		// assignment drives the order forward in the same transaction
		return s.ordersvc.AdvanceStatusInTx(ctx, tx, orderID, enums.OrderStatusProcessing)
	})
	if err != nil {
		return nil, err
	}
	return delivery, nil
}

func (s *service) UpdateStatus(ctx context.Context, partnerID, deliveryID uuid.UUID, next enums.DeliveryStatus, notes *string) (*models.Delivery, error) {
	if deliveryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery id required")
	}
	if !next.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid delivery status %q", next))
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		delivery, err := repo.FindByID(ctx, deliveryID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
		}

		// only the assigned partner may report progress
		if partnerID == uuid.Nil || delivery.DeliveryPartnerID != partnerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "delivery belongs to another partner")
		}

		if !delivery.Status.CanTransitionTo(next) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("delivery status cannot move from %s to %s", delivery.Status, next))
		}

		if err := repo.UpdateStatus(ctx, deliveryID, next, notes); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update delivery status")
		}

		orderStatus, ok := next.OrderStatusFor()
		if !ok {
			return nil
		}
		return s.ordersvc.AdvanceStatusInTx(ctx, tx, delivery.OrderID, orderStatus)
	})
	if err != nil {
		return nil, err
	}

	delivery, err := s.repo.FindByID(ctx, deliveryID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload delivery")
	}
	return delivery, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery id required")
	}
	delivery, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
	}
	return delivery, nil
}

func (s *service) GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	delivery, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no delivery assigned to order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
	}
	return delivery, nil
}

func (s *service) ListForPartner(ctx context.Context, partnerID uuid.UUID) ([]models.Delivery, error) {
	if partnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "partner identity missing")
	}
	deliveries, err := s.repo.ListByPartner(ctx, partnerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list deliveries")
	}
	return deliveries, nil
}
