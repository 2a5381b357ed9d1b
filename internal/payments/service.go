package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cartloop/cartloop-backend/internal/cart"
	"github.com/cartloop/cartloop-backend/internal/ledger"
	"github.com/cartloop/cartloop-backend/internal/orders"
	"github.com/cartloop/cartloop-backend/pkg/db/models"
	"github.com/cartloop/cartloop-backend/pkg/enums"
	pkgerrors "github.com/cartloop/cartloop-backend/pkg/errors"
	"github.com/cartloop/cartloop-backend/pkg/metrics"
	"github.com/cartloop/cartloop-backend/pkg/razorpay"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const providerName = "razorpay"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type providerClient interface {
	CreateOrder(ctx context.Context, amountCents int64, currency, receipt string, notes map[string]interface{}) (*razorpay.ProviderOrder, error)
	FetchPayment(ctx context.Context, paymentID string) (*razorpay.ProviderPayment, error)
	VerifyPaymentSignature(providerOrderID, providerPaymentID, signature string) bool
	KeyID() string
	Currency() string
}

type stockAdjuster interface {
	ApplyInTx(ctx context.Context, tx *gorm.DB, input ledger.AdjustmentInput) (*models.StockEntry, error)
}

// Service opens provider payment sessions and reconciles captures. The
// session's order carries tax and is not stock-decremented until the
// capture latch succeeds, so abandoned sessions never hold inventory.
type Service interface {
	OpenSession(ctx context.Context, userID uuid.UUID, input OpenSessionInput) (*Session, error)
	VerifyAndCapture(ctx context.Context, userID uuid.UUID, input VerifyInput) (*CaptureResult, error)
	// CaptureByProviderOrderID is the webhook reconciliation entry. An
	// unknown provider order id is acknowledged as a no-op rather than
	// an error so provider retries stay quiet.
	CaptureByProviderOrderID(ctx context.Context, providerOrderID, providerPaymentID string, metadata json.RawMessage) (*CaptureResult, error)
}

// OpenSessionInput starts a payment session from the user's cart.
type OpenSessionInput struct {
	CartID   uuid.UUID            `json:"cart_id" validate:"required"`
	Shipping orders.ShippingInput `json:"shipping"`
}

// Session is handed to the client so it can invoke provider checkout.
type Session struct {
	OrderID         uuid.UUID `json:"order_id"`
	PaymentID       uuid.UUID `json:"payment_id"`
	ProviderOrderID string    `json:"provider_order_id"`
	KeyID           string    `json:"key_id"`
	AmountCents     int       `json:"amount_cents"`
	Currency        string    `json:"currency"`
	Receipt         string    `json:"receipt"`
}

// VerifyInput carries the client-side checkout callback fields.
type VerifyInput struct {
	PaymentID         uuid.UUID  `json:"payment_id" validate:"required"`
	OrderID           uuid.UUID  `json:"order_id" validate:"required"`
	ProviderOrderID   string     `json:"provider_order_id" validate:"required"`
	ProviderPaymentID string     `json:"provider_payment_id" validate:"required"`
	Signature         string     `json:"signature" validate:"required"`
	CartID            *uuid.UUID `json:"cart_id,omitempty"`
}

// CaptureResult reports whether this call applied the capture or found
// it already done.
type CaptureResult struct {
	PaymentID uuid.UUID `json:"payment_id"`
	OrderID   uuid.UUID `json:"order_id"`
	Applied   bool      `json:"applied"`
}

type service struct {
	tx         txRunner
	repo       Repository
	orders     orders.Service
	ordersRepo orders.Repository
	carts      cart.Repository
	stock      stockAdjuster
	provider   providerClient
	metrics    *metrics.CommerceMetrics
	now        func() time.Time
}

// NewService builds the payments service.
func NewService(
	tx txRunner,
	repo Repository,
	orderSvc orders.Service,
	ordersRepo orders.Repository,
	carts cart.Repository,
	stock stockAdjuster,
	provider providerClient,
	commerceMetrics *metrics.CommerceMetrics,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if orderSvc == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock adjuster required")
	}
	if provider == nil {
		return nil, fmt.Errorf("provider client required")
	}
	return &service{
		tx:         tx,
		repo:       repo,
		orders:     orderSvc,
		ordersRepo: ordersRepo,
		carts:      carts,
		stock:      stock,
		provider:   provider,
		metrics:    commerceMetrics,
		now:        time.Now,
	}, nil
}

func (s *service) OpenSession(ctx context.Context, userID uuid.UUID, input OpenSessionInput) (*Session, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.CartID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart id required")
	}

	var (
		order   *models.Order
		payment *models.Payment
		receipt string
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		userCart, err := s.carts.WithTx(tx).FindByIDAndUser(ctx, input.CartID, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}

		order, err = s.orders.AssembleFromCartInTx(ctx, tx, userID, userCart, input.Shipping, true)
		if err != nil {
			return err
		}

		receipt = makeReceipt(order.ID, s.now())
		cartID := userCart.ID
		payment = &models.Payment{
			ID:          uuid.New(),
			OrderID:     order.ID,
			CartID:      &cartID,
			Provider:    providerName,
			Receipt:     receipt,
			AmountCents: order.Amounts.TotalCents,
			Currency:    enums.Currency(s.provider.Currency()),
			Status:      enums.PaymentStateCreated,
		}
		return s.repo.WithTx(tx).Create(ctx, payment)
	})
	if err != nil {
		return nil, err
	}

	// the provider call stays outside the transaction: a failure must
	// keep the order and the failed payment attempt for audit
	providerOrder, err := s.provider.CreateOrder(ctx, int64(payment.AmountCents), string(payment.Currency), receipt, map[string]interface{}{
		"order_id": order.ID.String(),
	})
	if err != nil {
		s.metrics.IncPaymentFailed("provider")
		meta, _ := json.Marshal(map[string]string{"provider_error": err.Error()})
		if markErr := s.repo.MarkFailed(ctx, payment.ID, meta); markErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, markErr, "record provider failure")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open provider order")
	}

	if err := s.repo.SetProviderOrderID(ctx, payment.ID, providerOrder.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist provider order id")
	}

	return &Session{
		OrderID:         order.ID,
		PaymentID:       payment.ID,
		ProviderOrderID: providerOrder.ID,
		KeyID:           s.provider.KeyID(),
		AmountCents:     payment.AmountCents,
		Currency:        string(payment.Currency),
		Receipt:         receipt,
	}, nil
}

func (s *service) VerifyAndCapture(ctx context.Context, userID uuid.UUID, input VerifyInput) (*CaptureResult, error) {
	if input.PaymentID == uuid.Nil || input.OrderID == uuid.Nil ||
		strings.TrimSpace(input.ProviderOrderID) == "" ||
		strings.TrimSpace(input.ProviderPaymentID) == "" ||
		strings.TrimSpace(input.Signature) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "missing required payment fields")
	}

	started := s.now()

	payment, err := s.repo.FindByID(ctx, input.PaymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if payment.OrderID != input.OrderID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment does not belong to order")
	}

	// idempotency gate: repeat verification is a success, not an error
	if payment.Status == enums.PaymentStateCaptured {
		return &CaptureResult{PaymentID: payment.ID, OrderID: payment.OrderID, Applied: false}, nil
	}

	if !s.provider.VerifyPaymentSignature(input.ProviderOrderID, input.ProviderPaymentID, input.Signature) {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid payment signature")
	}

	remote, err := s.provider.FetchPayment(ctx, input.ProviderPaymentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch provider payment")
	}
	if remote.Status != "captured" {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment not captured by provider")
	}

	meta, _ := json.Marshal(map[string]string{
		"verified_via":        "client_callback",
		"provider_payment_id": input.ProviderPaymentID,
	})

	actor := userID
	applied, err := s.finalizeCapture(ctx, payment, input.ProviderPaymentID, meta, input.CartID, &actor)
	if err != nil {
		return nil, err
	}
	if applied {
		s.metrics.IncPaymentCaptured("verify")
		s.metrics.ObserveCaptureDuration("verify", s.now().Sub(started))
	}
	return &CaptureResult{PaymentID: payment.ID, OrderID: payment.OrderID, Applied: applied}, nil
}

func (s *service) CaptureByProviderOrderID(ctx context.Context, providerOrderID, providerPaymentID string, metadata json.RawMessage) (*CaptureResult, error) {
	if strings.TrimSpace(providerOrderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provider order id required")
	}

	payment, err := s.repo.FindByProviderOrderID(ctx, providerOrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// not created locally yet; acknowledge and let the client
			// verification path finish the job
			return &CaptureResult{Applied: false}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}

	if payment.Status == enums.PaymentStateCaptured {
		return &CaptureResult{PaymentID: payment.ID, OrderID: payment.OrderID, Applied: false}, nil
	}

	applied, err := s.finalizeCapture(ctx, payment, providerPaymentID, metadata, payment.CartID, nil)
	if err != nil {
		return nil, err
	}
	if applied {
		s.metrics.IncPaymentCaptured("webhook")
	}
	return &CaptureResult{PaymentID: payment.ID, OrderID: payment.OrderID, Applied: applied}, nil
}

// finalizeCapture runs the one transactional reconciliation shared by
// the verify and webhook paths. The capture latch closes the race
// between them: only the caller whose conditional update lands runs the
// stock decrement and cart clear.
func (s *service) finalizeCapture(ctx context.Context, payment *models.Payment, providerPaymentID string, metadata json.RawMessage, cartID *uuid.UUID, actorUserID *uuid.UUID) (bool, error) {
	applied := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		affected, err := s.repo.WithTx(tx).CaptureLatch(ctx, payment.ID, providerPaymentID, metadata)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "capture payment")
		}
		if affected == 0 {
			return nil
		}
		applied = true

		ordersRepo := s.ordersRepo.WithTx(tx)
		if err := ordersRepo.MarkPaidConfirmed(ctx, payment.OrderID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
		}

		items, err := ordersRepo.ListItems(ctx, payment.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
		}
		orderID := payment.OrderID
		for _, item := range items {
			if _, err := s.stock.ApplyInTx(ctx, tx, ledger.AdjustmentInput{
				ProductID:   item.ProductID,
				OrderID:     &orderID,
				Delta:       -item.Qty,
				Kind:        enums.StockEntryKindOrderPlaced,
				ActorUserID: actorUserID,
			}); err != nil {
				return err
			}
		}

		if cartID != nil && *cartID != uuid.Nil {
			if err := s.carts.WithTx(tx).ClearItems(ctx, *cartID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}
