package delivery

import (
	"context"
	"testing"

	"github.com/cartloop/cartloop-backend/internal/address"
	"github.com/cartloop/cartloop-backend/internal/cart"
	"github.com/cartloop/cartloop-backend/internal/ledger"
	"github.com/cartloop/cartloop-backend/internal/orders"
	"github.com/cartloop/cartloop-backend/pkg/config"
	"github.com/cartloop/cartloop-backend/pkg/db/models"
	"github.com/cartloop/cartloop-backend/pkg/enums"
	pkgerrors "github.com/cartloop/cartloop-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupDeliveryTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:delivery_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{
		`CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  payment_status TEXT NOT NULL DEFAULT 'unpaid',
  shipping_address_id TEXT NOT NULL,
  placed_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS deliveries (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL UNIQUE,
  delivery_partner_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'assigned',
  notes TEXT,
  assigned_at DATETIME,
  last_update_at DATETIME
);`,
	}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newDeliveryService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	runner := gormTxRunner{db: db}
	stock, err := ledger.NewService(runner, ledger.NewRepository(db))
	require.NoError(t, err)
	addresses, err := address.NewService(address.NewRepository(db))
	require.NoError(t, err)
	orderSvc, err := orders.NewService(runner, orders.NewRepository(db), stock, addresses, cart.NewRepository(db),
		config.CheckoutConfig{FreeShippingThresholdCents: 10000, ShippingFlatCents: 999, TaxRate: 0.08})
	require.NoError(t, err)
	svc, err := NewService(runner, NewRepository(db), orderSvc)
	require.NoError(t, err)
	return svc
}

func seedOrder(t *testing.T, db *gorm.DB, status enums.OrderStatus) uuid.UUID {
	t.Helper()
	order := models.Order{
		ID:                uuid.New(),
		UserID:            uuid.New(),
		Status:            status,
		PaymentStatus:     enums.OrderPaymentStatusPaid,
		ShippingAddressID: uuid.New(),
	}
	require.NoError(t, db.Create(&order).Error)
	return order.ID
}

func orderStatus(t *testing.T, db *gorm.DB, id uuid.UUID) enums.OrderStatus {
	t.Helper()
	var order models.Order
	require.NoError(t, db.First(&order, "id = ?", id).Error)
	return order.Status
}

func TestAssignCreatesDeliveryAndAdvancesOrder(t *testing.T) {
	db := setupDeliveryTestDB(t)
	svc := newDeliveryService(t, db)
	ctx := context.Background()
	partnerID := uuid.New()

	orderID := seedOrder(t, db, enums.OrderStatusConfirmed)

	delivery, err := svc.Assign(ctx, orderID, partnerID)
	require.NoError(t, err)
	require.Equal(t, enums.DeliveryStatusAssigned, delivery.Status)
	require.Equal(t, partnerID, delivery.DeliveryPartnerID)
	require.Equal(t, enums.OrderStatusProcessing, orderStatus(t, db, orderID))

	// one delivery per order
	_, err = svc.Assign(ctx, orderID, uuid.New())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeConflict, typed.Code())
}

func TestAssignRejectsTerminalOrder(t *testing.T) {
	db := setupDeliveryTestDB(t)
	svc := newDeliveryService(t, db)
	ctx := context.Background()

	orderID := seedOrder(t, db, enums.OrderStatusDelivered)

	_, err := svc.Assign(ctx, orderID, uuid.New())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeStateConflict, typed.Code())

	// the rejected propagation rolls the assignment back too
	var count int64
	require.NoError(t, db.Model(&models.Delivery{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestUpdateStatusFollowsTableAndPropagates(t *testing.T) {
	db := setupDeliveryTestDB(t)
	svc := newDeliveryService(t, db)
	ctx := context.Background()
	partnerID := uuid.New()

	orderID := seedOrder(t, db, enums.OrderStatusConfirmed)
	delivery, err := svc.Assign(ctx, orderID, partnerID)
	require.NoError(t, err)

	// assigned cannot jump straight to delivered
	_, err = svc.UpdateStatus(ctx, partnerID, delivery.ID, enums.DeliveryStatusDelivered, nil)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeStateConflict, typed.Code())

	updated, err := svc.UpdateStatus(ctx, partnerID, delivery.ID, enums.DeliveryStatusOutForDelivery, nil)
	require.NoError(t, err)
	require.Equal(t, enums.DeliveryStatusOutForDelivery, updated.Status)
	require.Equal(t, enums.OrderStatusShipped, orderStatus(t, db, orderID))

	note := "left with neighbour"
	updated, err = svc.UpdateStatus(ctx, partnerID, delivery.ID, enums.DeliveryStatusDelivered, &note)
	require.NoError(t, err)
	require.Equal(t, enums.DeliveryStatusDelivered, updated.Status)
	require.NotNil(t, updated.Notes)
	require.Equal(t, note, *updated.Notes)
	require.Equal(t, enums.OrderStatusDelivered, orderStatus(t, db, orderID))

	// delivered is terminal
	_, err = svc.UpdateStatus(ctx, partnerID, delivery.ID, enums.DeliveryStatusFailed, nil)
	require.Error(t, err)
}

func TestUpdateStatusFailureCancelsOrder(t *testing.T) {
	db := setupDeliveryTestDB(t)
	svc := newDeliveryService(t, db)
	ctx := context.Background()
	partnerID := uuid.New()

	orderID := seedOrder(t, db, enums.OrderStatusConfirmed)
	delivery, err := svc.Assign(ctx, orderID, partnerID)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, partnerID, delivery.ID, enums.DeliveryStatusFailed, nil)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusCancelled, orderStatus(t, db, orderID))
}

func TestUpdateStatusGatesOnPartnerOwnership(t *testing.T) {
	db := setupDeliveryTestDB(t)
	svc := newDeliveryService(t, db)
	ctx := context.Background()
	partnerID := uuid.New()

	orderID := seedOrder(t, db, enums.OrderStatusConfirmed)
	delivery, err := svc.Assign(ctx, orderID, partnerID)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, uuid.New(), delivery.ID, enums.DeliveryStatusOutForDelivery, nil)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeForbidden, typed.Code())

	reloaded, err := svc.Get(ctx, delivery.ID)
	require.NoError(t, err)
	require.Equal(t, enums.DeliveryStatusAssigned, reloaded.Status)
	require.Equal(t, enums.OrderStatusProcessing, orderStatus(t, db, orderID))
}

func TestListForPartner(t *testing.T) {
	db := setupDeliveryTestDB(t)
	svc := newDeliveryService(t, db)
	ctx := context.Background()
	partnerID := uuid.New()

	first, err := svc.Assign(ctx, seedOrder(t, db, enums.OrderStatusConfirmed), partnerID)
	require.NoError(t, err)
	_, err = svc.Assign(ctx, seedOrder(t, db, enums.OrderStatusConfirmed), uuid.New())
	require.NoError(t, err)

	mine, err := svc.ListForPartner(ctx, partnerID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, first.ID, mine[0].ID)

	byOrder, err := svc.GetByOrder(ctx, first.OrderID)
	require.NoError(t, err)
	require.Equal(t, first.ID, byOrder.ID)
}
