package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/cartloop/cartloop-backend/internal/address"
	"github.com/cartloop/cartloop-backend/internal/cart"
	"github.com/cartloop/cartloop-backend/internal/ledger"
	"github.com/cartloop/cartloop-backend/pkg/config"
	"github.com/cartloop/cartloop-backend/pkg/db/models"
	"github.com/cartloop/cartloop-backend/pkg/enums"
	pkgerrors "github.com/cartloop/cartloop-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockAdjuster interface {
	ApplyInTx(ctx context.Context, tx *gorm.DB, input ledger.AdjustmentInput) (*models.StockEntry, error)
}

type addressSnapshotter interface {
	SnapshotInTx(ctx context.Context, tx *gorm.DB, addressID, userID uuid.UUID) (*models.ShippingAddress, error)
	SnapshotInlineInTx(ctx context.Context, tx *gorm.DB, input address.Input) (*models.ShippingAddress, error)
}


// Service assembles immutable orders and drives their status forward.
type Service interface {
	PlaceDirect(ctx context.Context, userID uuid.UUID, input PlaceDirectInput) (*models.Order, error)
	PlaceFromCart(ctx context.Context, userID uuid.UUID, input PlaceFromCartInput) (*models.Order, error)
	// AssembleFromCartInTx creates the order tree from a cart snapshot
	// without touching stock; the payment session path decrements only
	// on capture.
	AssembleFromCartInTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID, cart *models.Cart, shipping ShippingInput, withTax bool) (*models.Order, error)
	Get(ctx context.Context, id, userID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, next enums.OrderStatus) (*models.Order, error)
	// AdvanceStatusInTx applies the same monotonic rule inside the
	// caller's transaction; used by delivery propagation.
	AdvanceStatusInTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, next enums.OrderStatus) error
}

// ShippingInput selects either a saved address-book entry or an inline
// shipping payload. Exactly one must be set.
type ShippingInput struct {
	AddressID *uuid.UUID     `json:"address_id,omitempty"`
	Inline    *address.Input `json:"inline,omitempty"`
}

// ItemInput is one requested line on a direct placement.
type ItemInput struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Qty       int       `json:"qty" validate:"required,gt=0"`
}

// PlaceDirectInput places an order from an explicit item list.
type PlaceDirectInput struct {
	Items    []ItemInput   `json:"items" validate:"required,min=1,dive"`
	Shipping ShippingInput `json:"shipping"`
}

// PlaceFromCartInput places an order from the user's cart snapshot.
type PlaceFromCartInput struct {
	CartID   uuid.UUID     `json:"cart_id" validate:"required"`
	Shipping ShippingInput `json:"shipping"`
}

type service struct {
	tx        txRunner
	repo      Repository
	stock     stockAdjuster
	addresses addressSnapshotter
	carts     cart.Repository
	checkout  config.CheckoutConfig
}

// NewService builds the orders service.
func NewService(
	tx txRunner,
	repo Repository,
	stock stockAdjuster,
	addresses addressSnapshotter,
	carts cart.Repository,
	checkout config.CheckoutConfig,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock adjuster required")
	}
	if addresses == nil {
		return nil, fmt.Errorf("address snapshotter required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart source required")
	}
	return &service{
		tx:        tx,
		repo:      repo,
		stock:     stock,
		addresses: addresses,
		carts:     carts,
		checkout:  checkout,
	}, nil
}

func (s *service) PlaceDirect(ctx context.Context, userID uuid.UUID, input PlaceDirectInput) (*models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one item")
	}
	for _, item := range input.Items {
		if item.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required on every item")
		}
		if item.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
	}

	var placed *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		snapshot, err := s.resolveShipping(ctx, tx, userID, input.Shipping)
		if err != nil {
			return err
		}

		items := make([]models.OrderItem, 0, len(input.Items))
		for _, requested := range input.Items {
			product, err := repo.FindProductByID(ctx, requested.ProductID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
						WithDetails(map[string]any{"product_id": requested.ProductID})
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
			}
			items = append(items, models.OrderItem{
				ID:             uuid.New(),
				ProductID:      product.ID,
				ProductName:    product.Name,
				UnitPriceCents: product.PriceCents,
				Qty:            requested.Qty,
				LineTotalCents: product.PriceCents * requested.Qty,
			})
		}

		order, err := s.createOrderTree(ctx, repo, userID, snapshot.ID, items, false)
		if err != nil {
			return err
		}

		if err := s.decrementLines(ctx, tx, order.ID, userID, items); err != nil {
			return err
		}

		placed = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, placed.ID, userID)
}

func (s *service) PlaceFromCart(ctx context.Context, userID uuid.UUID, input PlaceFromCartInput) (*models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.CartID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart id required")
	}

	var placed *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		carts := s.carts.WithTx(tx)

		cart, err := carts.FindByIDAndUser(ctx, input.CartID, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}

		order, err := s.AssembleFromCartInTx(ctx, tx, userID, cart, input.Shipping, false)
		if err != nil {
			return err
		}

		items, err := s.repo.WithTx(tx).ListItems(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
		}
		if err := s.decrementLines(ctx, tx, order.ID, userID, items); err != nil {
			return err
		}

		// clearing inside the same transaction keeps a crash from
		// leaving a placed order with a full cart
		if err := carts.ClearItems(ctx, cart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}

		placed = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, placed.ID, userID)
}

func (s *service) AssembleFromCartInTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID, cart *models.Cart, shipping ShippingInput, withTax bool) (*models.Order, error) {
	if cart == nil || len(cart.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart contains no items")
	}

	snapshot, err := s.resolveShipping(ctx, tx, userID, shipping)
	if err != nil {
		return nil, err
	}

	items := make([]models.OrderItem, 0, len(cart.Items))
	for _, line := range cart.Items {
		items = append(items, models.OrderItem{
			ID:             uuid.New(),
			ProductID:      line.ProductID,
			ProductName:    line.ProductName,
			UnitPriceCents: line.UnitPriceCents,
			Qty:            line.Qty,
			LineTotalCents: line.UnitPriceCents * line.Qty,
		})
	}

	return s.createOrderTree(ctx, s.repo.WithTx(tx), userID, snapshot.ID, items, withTax)
}

func (s *service) Get(ctx context.Context, id, userID uuid.UUID) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	order, err := s.repo.FindByIDAndUser(ctx, id, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	orders, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return orders, nil
}

func (s *service) UpdateStatus(ctx context.Context, id uuid.UUID, next enums.OrderStatus) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !next.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", next))
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.AdvanceStatusInTx(ctx, tx, id, next)
	})
	if err != nil {
		return nil, err
	}

	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}
	return order, nil
}

func (s *service) AdvanceStatusInTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, next enums.OrderStatus) error {
	repo := s.repo.WithTx(tx)

	order, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	if !order.Status.CanAdvanceTo(next) {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order status cannot move from %s to %s", order.Status, next))
	}

	if err := repo.UpdateStatus(ctx, id, next); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	return nil
}

func (s *service) createOrderTree(ctx context.Context, repo Repository, userID, shippingAddressID uuid.UUID, items []models.OrderItem, withTax bool) (*models.Order, error) {
	order := &models.Order{
		ID:                uuid.New(),
		UserID:            userID,
		Status:            enums.OrderStatusPending,
		PaymentStatus:     enums.OrderPaymentStatusUnpaid,
		ShippingAddressID: shippingAddressID,
	}
	if err := repo.Create(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}

	subtotal := 0
	for i := range items {
		items[i].OrderID = order.ID
		subtotal += items[i].LineTotalCents
	}
	if err := repo.CreateItems(ctx, items); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
	}

	totals := ComputeTotals(subtotal, withTax, s.checkout)
	amounts := &models.OrderAmounts{
		ID:            uuid.New(),
		OrderID:       order.ID,
		SubtotalCents: totals.SubtotalCents,
		ShippingCents: totals.ShippingCents,
		TaxCents:      totals.TaxCents,
		DiscountCents: totals.DiscountCents,
		TotalCents:    totals.TotalCents,
	}
	if err := repo.CreateAmounts(ctx, amounts); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order amounts")
	}

	order.Items = items
	order.Amounts = amounts
	return order, nil
}

func (s *service) decrementLines(ctx context.Context, tx *gorm.DB, orderID, actorUserID uuid.UUID, items []models.OrderItem) error {
	oid := orderID
	actor := actorUserID
	for _, item := range items {
		_, err := s.stock.ApplyInTx(ctx, tx, ledger.AdjustmentInput{
			ProductID:   item.ProductID,
			OrderID:     &oid,
			Delta:       -item.Qty,
			Kind:        enums.StockEntryKindOrderPlaced,
			ActorUserID: &actor,
		})
		if err != nil {
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeConflict {
				return pkgerrors.New(pkgerrors.CodeConflict,
					fmt.Sprintf("insufficient stock for %s", item.ProductName)).
					WithDetails(map[string]any{"product_id": item.ProductID, "requested": item.Qty})
			}
			return err
		}
	}
	return nil
}

func (s *service) resolveShipping(ctx context.Context, tx *gorm.DB, userID uuid.UUID, shipping ShippingInput) (*models.ShippingAddress, error) {
	switch {
	case shipping.AddressID != nil && *shipping.AddressID != uuid.Nil:
		return s.addresses.SnapshotInTx(ctx, tx, *shipping.AddressID, userID)
	case shipping.Inline != nil:
		return s.addresses.SnapshotInlineInTx(ctx, tx, *shipping.Inline)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address required")
	}
}
