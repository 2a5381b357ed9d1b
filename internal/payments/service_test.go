package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/cartloop/cartloop-backend/internal/address"
	"github.com/cartloop/cartloop-backend/internal/cart"
	"github.com/cartloop/cartloop-backend/internal/ledger"
	"github.com/cartloop/cartloop-backend/internal/orders"
	"github.com/cartloop/cartloop-backend/pkg/config"
	"github.com/cartloop/cartloop-backend/pkg/db/models"
	"github.com/cartloop/cartloop-backend/pkg/enums"
	pkgerrors "github.com/cartloop/cartloop-backend/pkg/errors"
	"github.com/cartloop/cartloop-backend/pkg/razorpay"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupPaymentsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:payments_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{
		`CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  category_id TEXT,
  name TEXT NOT NULL,
  description TEXT,
  price_cents INTEGER NOT NULL,
  stock INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS stock_entries (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  order_id TEXT,
  delta INTEGER NOT NULL,
  kind TEXT NOT NULL,
  note TEXT,
  actor_user_id TEXT,
  created_at DATETIME
);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_stock_entries_order_product
  ON stock_entries(product_id, order_id)
  WHERE order_id IS NOT NULL;`,
		`CREATE TABLE IF NOT EXISTS addresses (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  recipient_name TEXT NOT NULL,
  phone TEXT NOT NULL,
  line1 TEXT NOT NULL,
  line2 TEXT,
  city TEXT NOT NULL,
  state TEXT NOT NULL,
  postal_code TEXT NOT NULL,
  country TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS shipping_addresses (
  id TEXT PRIMARY KEY,
  recipient_name TEXT NOT NULL,
  phone TEXT NOT NULL,
  line1 TEXT NOT NULL,
  line2 TEXT,
  city TEXT NOT NULL,
  state TEXT NOT NULL,
  postal_code TEXT NOT NULL,
  country TEXT NOT NULL,
  created_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS carts (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS cart_items (
  id TEXT PRIMARY KEY,
  cart_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  product_name TEXT NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  qty INTEGER NOT NULL,
  created_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  payment_status TEXT NOT NULL DEFAULT 'unpaid',
  shipping_address_id TEXT NOT NULL,
  placed_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  product_name TEXT NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  qty INTEGER NOT NULL,
  line_total_cents INTEGER NOT NULL,
  created_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS order_amounts (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL UNIQUE,
  subtotal_cents INTEGER NOT NULL,
  shipping_cents INTEGER NOT NULL DEFAULT 0,
  tax_cents INTEGER NOT NULL DEFAULT 0,
  discount_cents INTEGER NOT NULL DEFAULT 0,
  total_cents INTEGER NOT NULL,
  created_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS payments (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  cart_id TEXT,
  provider TEXT NOT NULL,
  receipt TEXT NOT NULL,
  provider_order_id TEXT UNIQUE,
  provider_payment_id TEXT,
  amount_cents INTEGER NOT NULL,
  currency TEXT NOT NULL DEFAULT 'INR',
  status TEXT NOT NULL DEFAULT 'created',
  metadata TEXT,
  created_at DATETIME,
  updated_at DATETIME
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

// fakeProvider stands in for the Razorpay client. Signature checks and
// remote payment status are scripted per test.
type fakeProvider struct {
	createErr     error
	remoteStatus  string
	signatureOK   bool
	lastReceipt   string
	lastAmount    int64
	ordersCreated int
}

func (f *fakeProvider) CreateOrder(_ context.Context, amountCents int64, currency, receipt string, _ map[string]interface{}) (*razorpay.ProviderOrder, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.ordersCreated++
	f.lastReceipt = receipt
	f.lastAmount = amountCents
	return &razorpay.ProviderOrder{
		ID:          fmt.Sprintf("order_fake%03d", f.ordersCreated),
		AmountCents: amountCents,
		Currency:    currency,
		Receipt:     receipt,
		Status:      "created",
	}, nil
}

func (f *fakeProvider) FetchPayment(_ context.Context, paymentID string) (*razorpay.ProviderPayment, error) {
	status := f.remoteStatus
	if status == "" {
		status = "captured"
	}
	return &razorpay.ProviderPayment{
		ID:          paymentID,
		Status:      status,
		AmountCents: f.lastAmount,
		Method:      "card",
	}, nil
}

func (f *fakeProvider) VerifyPaymentSignature(_, _, _ string) bool {
	return f.signatureOK
}

func (f *fakeProvider) KeyID() string    { return "rzp_test_cartloop" }
func (f *fakeProvider) Currency() string { return "INR" }

func testCheckout() config.CheckoutConfig {
	return config.CheckoutConfig{
		FreeShippingThresholdCents: 10000,
		ShippingFlatCents:          999,
		TaxRate:                    0.08,
	}
}

func newPaymentsService(t *testing.T, db *gorm.DB, provider *fakeProvider) Service {
	t.Helper()
	runner := gormTxRunner{db: db}
	stock, err := ledger.NewService(runner, ledger.NewRepository(db))
	require.NoError(t, err)
	addresses, err := address.NewService(address.NewRepository(db))
	require.NoError(t, err)
	orderSvc, err := orders.NewService(runner, orders.NewRepository(db), stock, addresses, cart.NewRepository(db), testCheckout())
	require.NoError(t, err)
	svc, err := NewService(runner, NewRepository(db), orderSvc, orders.NewRepository(db), cart.NewRepository(db), stock, provider, nil)
	require.NoError(t, err)
	return svc
}

func seedProduct(t *testing.T, db *gorm.DB, name string, priceCents, stock int) uuid.UUID {
	t.Helper()
	product := models.Product{
		ID:         uuid.New(),
		Name:       name,
		PriceCents: priceCents,
		Stock:      stock,
		IsActive:   true,
	}
	require.NoError(t, db.Create(&product).Error)
	entry := models.StockEntry{
		ID:        uuid.New(),
		ProductID: product.ID,
		Delta:     stock,
		Kind:      enums.StockEntryKindRestock,
	}
	require.NoError(t, db.Create(&entry).Error)
	return product.ID
}

func seedCart(t *testing.T, db *gorm.DB, userID, productID uuid.UUID, qty int) uuid.UUID {
	t.Helper()
	cartSvc, err := cart.NewService(cart.NewRepository(db))
	require.NoError(t, err)
	userCart, err := cartSvc.AddItem(context.Background(), userID, productID, qty)
	require.NoError(t, err)
	return userCart.ID
}

func inlineShipping() orders.ShippingInput {
	return orders.ShippingInput{Inline: &address.Input{
		RecipientName: "Asha Rao",
		Phone:         "+91-9000000000",
		Line1:         "12 MG Road",
		City:          "Bengaluru",
		State:         "KA",
		PostalCode:    "560001",
		Country:       "IN",
	}}
}

func TestOpenSessionTaxesAboveThreshold(t *testing.T) {
	db := setupPaymentsTestDB(t)
	provider := &fakeProvider{}
	svc := newPaymentsService(t, db, provider)
	ctx := context.Background()
	userID := uuid.New()

	productID := seedProduct(t, db, "Lamp", 5000, 5)
	cartID := seedCart(t, db, userID, productID, 3)

	session, err := svc.OpenSession(ctx, userID, OpenSessionInput{
		CartID:   cartID,
		Shipping: inlineShipping(),
	})
	require.NoError(t, err)

	// 15000 subtotal ships free; 8% tax rounds to 1200
	require.Equal(t, 16200, session.AmountCents)
	require.Equal(t, int64(16200), provider.lastAmount)
	require.Equal(t, "INR", session.Currency)
	require.Equal(t, "rzp_test_cartloop", session.KeyID)
	require.NotEmpty(t, session.ProviderOrderID)
	require.LessOrEqual(t, len(session.Receipt), 40)

	var payment models.Payment
	require.NoError(t, db.First(&payment, "id = ?", session.PaymentID).Error)
	require.Equal(t, enums.PaymentStateCreated, payment.Status)
	require.NotNil(t, payment.ProviderOrderID)
	require.Equal(t, session.ProviderOrderID, *payment.ProviderOrderID)
	require.NotNil(t, payment.CartID)
	require.Equal(t, cartID, *payment.CartID)

	// opening a session reserves nothing: stock moves only at capture
	var product models.Product
	require.NoError(t, db.First(&product, "id = ?", productID).Error)
	require.Equal(t, 5, product.Stock)

	var order models.Order
	require.NoError(t, db.First(&order, "id = ?", session.OrderID).Error)
	require.Equal(t, enums.OrderStatusPending, order.Status)
	require.Equal(t, enums.OrderPaymentStatusUnpaid, order.PaymentStatus)
}

func TestOpenSessionChargesShippingAndTaxBelowThreshold(t *testing.T) {
	db := setupPaymentsTestDB(t)
	provider := &fakeProvider{}
	svc := newPaymentsService(t, db, provider)
	ctx := context.Background()
	userID := uuid.New()

	productID := seedProduct(t, db, "Mug", 2500, 10)
	cartID := seedCart(t, db, userID, productID, 2)

	session, err := svc.OpenSession(ctx, userID, OpenSessionInput{
		CartID:   cartID,
		Shipping: inlineShipping(),
	})
	require.NoError(t, err)

	// 5000 + 999 shipping + 400 tax
	require.Equal(t, 6399, session.AmountCents)
}

func TestOpenSessionProviderFailureKeepsOrder(t *testing.T) {
	db := setupPaymentsTestDB(t)
	provider := &fakeProvider{createErr: fmt.Errorf("gateway timeout")}
	svc := newPaymentsService(t, db, provider)
	ctx := context.Background()
	userID := uuid.New()

	productID := seedProduct(t, db, "Lamp", 5000, 5)
	cartID := seedCart(t, db, userID, productID, 1)

	_, err := svc.OpenSession(ctx, userID, OpenSessionInput{
		CartID:   cartID,
		Shipping: inlineShipping(),
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeDependency, typed.Code())

	// the attempt is recorded as failed and the order survives for retry
	var payment models.Payment
	require.NoError(t, db.First(&payment).Error)
	require.Equal(t, enums.PaymentStateFailed, payment.Status)
	require.Nil(t, payment.ProviderOrderID)
	require.Contains(t, string(payment.Metadata), "gateway timeout")

	var order models.Order
	require.NoError(t, db.First(&order, "id = ?", payment.OrderID).Error)
	require.Equal(t, enums.OrderStatusPending, order.Status)
	require.Equal(t, enums.OrderPaymentStatusUnpaid, order.PaymentStatus)
}

func TestOpenSessionRejectsForeignCart(t *testing.T) {
	db := setupPaymentsTestDB(t)
	svc := newPaymentsService(t, db, &fakeProvider{})
	ctx := context.Background()

	productID := seedProduct(t, db, "Lamp", 5000, 5)
	cartID := seedCart(t, db, uuid.New(), productID, 1)

	_, err := svc.OpenSession(ctx, uuid.New(), OpenSessionInput{
		CartID:   cartID,
		Shipping: inlineShipping(),
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func openSession(t *testing.T, svc Service, userID, cartID uuid.UUID) *Session {
	t.Helper()
	session, err := svc.OpenSession(context.Background(), userID, OpenSessionInput{
		CartID:   cartID,
		Shipping: inlineShipping(),
	})
	require.NoError(t, err)
	return session
}

func TestVerifyAndCaptureDecrementsStockOnce(t *testing.T) {
	db := setupPaymentsTestDB(t)
	provider := &fakeProvider{signatureOK: true}
	svc := newPaymentsService(t, db, provider)
	ctx := context.Background()
	userID := uuid.New()

	productID := seedProduct(t, db, "Lamp", 5000, 5)
	cartID := seedCart(t, db, userID, productID, 3)
	session := openSession(t, svc, userID, cartID)

	input := VerifyInput{
		PaymentID:         session.PaymentID,
		OrderID:           session.OrderID,
		ProviderOrderID:   session.ProviderOrderID,
		ProviderPaymentID: "pay_fake001",
		Signature:         "deadbeef",
		CartID:            &cartID,
	}

	result, err := svc.VerifyAndCapture(ctx, userID, input)
	require.NoError(t, err)
	require.True(t, result.Applied)

	var payment models.Payment
	require.NoError(t, db.First(&payment, "id = ?", session.PaymentID).Error)
	require.Equal(t, enums.PaymentStateCaptured, payment.Status)
	require.NotNil(t, payment.ProviderPaymentID)
	require.Equal(t, "pay_fake001", *payment.ProviderPaymentID)

	var order models.Order
	require.NoError(t, db.First(&order, "id = ?", session.OrderID).Error)
	require.Equal(t, enums.OrderStatusConfirmed, order.Status)
	require.Equal(t, enums.OrderPaymentStatusPaid, order.PaymentStatus)

	var product models.Product
	require.NoError(t, db.First(&product, "id = ?", productID).Error)
	require.Equal(t, 2, product.Stock)

	var cartItems int64
	require.NoError(t, db.Model(&models.CartItem{}).Where("cart_id = ?", cartID).Count(&cartItems).Error)
	require.Zero(t, cartItems)

	// a replayed callback is acknowledged without a second decrement
	result, err = svc.VerifyAndCapture(ctx, userID, input)
	require.NoError(t, err)
	require.False(t, result.Applied)

	require.NoError(t, db.First(&product, "id = ?", productID).Error)
	require.Equal(t, 2, product.Stock)

	var entries int64
	require.NoError(t, db.Model(&models.StockEntry{}).Where("order_id = ?", session.OrderID).Count(&entries).Error)
	require.Equal(t, int64(1), entries)
}

func TestVerifyAndCaptureRejectsBadSignature(t *testing.T) {
	db := setupPaymentsTestDB(t)
	provider := &fakeProvider{signatureOK: false}
	svc := newPaymentsService(t, db, provider)
	ctx := context.Background()
	userID := uuid.New()

	productID := seedProduct(t, db, "Lamp", 5000, 5)
	cartID := seedCart(t, db, userID, productID, 2)
	session := openSession(t, svc, userID, cartID)

	_, err := svc.VerifyAndCapture(ctx, userID, VerifyInput{
		PaymentID:         session.PaymentID,
		OrderID:           session.OrderID,
		ProviderOrderID:   session.ProviderOrderID,
		ProviderPaymentID: "pay_fake001",
		Signature:         "forged",
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeUnauthorized, typed.Code())

	var payment models.Payment
	require.NoError(t, db.First(&payment, "id = ?", session.PaymentID).Error)
	require.Equal(t, enums.PaymentStateCreated, payment.Status)

	var product models.Product
	require.NoError(t, db.First(&product, "id = ?", productID).Error)
	require.Equal(t, 5, product.Stock)
}

func TestVerifyAndCaptureRequiresProviderCapture(t *testing.T) {
	db := setupPaymentsTestDB(t)
	provider := &fakeProvider{signatureOK: true, remoteStatus: "authorized"}
	svc := newPaymentsService(t, db, provider)
	ctx := context.Background()
	userID := uuid.New()

	productID := seedProduct(t, db, "Lamp", 5000, 5)
	cartID := seedCart(t, db, userID, productID, 1)
	session := openSession(t, svc, userID, cartID)

	_, err := svc.VerifyAndCapture(ctx, userID, VerifyInput{
		PaymentID:         session.PaymentID,
		OrderID:           session.OrderID,
		ProviderOrderID:   session.ProviderOrderID,
		ProviderPaymentID: "pay_fake001",
		Signature:         "deadbeef",
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestVerifyAndCaptureValidation(t *testing.T) {
	db := setupPaymentsTestDB(t)
	svc := newPaymentsService(t, db, &fakeProvider{signatureOK: true})
	ctx := context.Background()

	cases := []VerifyInput{
		{},
		{PaymentID: uuid.New(), OrderID: uuid.New(), ProviderOrderID: "order_x", ProviderPaymentID: "pay_x"},
		{PaymentID: uuid.New(), OrderID: uuid.New(), ProviderPaymentID: "pay_x", Signature: "sig"},
	}
	for _, input := range cases {
		_, err := svc.VerifyAndCapture(ctx, uuid.New(), input)
		require.Error(t, err)
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	}
}

func TestCaptureByProviderOrderID(t *testing.T) {
	db := setupPaymentsTestDB(t)
	provider := &fakeProvider{signatureOK: true}
	svc := newPaymentsService(t, db, provider)
	ctx := context.Background()
	userID := uuid.New()

	productID := seedProduct(t, db, "Lamp", 5000, 5)
	cartID := seedCart(t, db, userID, productID, 2)
	session := openSession(t, svc, userID, cartID)

	meta, err := json.Marshal(map[string]string{"verified_via": "webhook"})
	require.NoError(t, err)

	result, err := svc.CaptureByProviderOrderID(ctx, session.ProviderOrderID, "pay_hook001", meta)
	require.NoError(t, err)
	require.True(t, result.Applied)
	require.Equal(t, session.OrderID, result.OrderID)

	var product models.Product
	require.NoError(t, db.First(&product, "id = ?", productID).Error)
	require.Equal(t, 3, product.Stock)

	// the session cart clears even though the webhook carries no cart id
	var cartItems int64
	require.NoError(t, db.Model(&models.CartItem{}).Where("cart_id = ?", cartID).Count(&cartItems).Error)
	require.Zero(t, cartItems)

	// replayed delivery is acknowledged without touching stock again
	result, err = svc.CaptureByProviderOrderID(ctx, session.ProviderOrderID, "pay_hook001", meta)
	require.NoError(t, err)
	require.False(t, result.Applied)

	require.NoError(t, db.First(&product, "id = ?", productID).Error)
	require.Equal(t, 3, product.Stock)
}

func TestCaptureByProviderOrderIDUnknownIsNoOp(t *testing.T) {
	db := setupPaymentsTestDB(t)
	svc := newPaymentsService(t, db, &fakeProvider{})
	ctx := context.Background()

	result, err := svc.CaptureByProviderOrderID(ctx, "order_never_seen", "pay_x", nil)
	require.NoError(t, err)
	require.False(t, result.Applied)
}

func TestWebhookAfterVerifyDoesNotDoubleDecrement(t *testing.T) {
	db := setupPaymentsTestDB(t)
	provider := &fakeProvider{signatureOK: true}
	svc := newPaymentsService(t, db, provider)
	ctx := context.Background()
	userID := uuid.New()

	productID := seedProduct(t, db, "Lamp", 5000, 5)
	cartID := seedCart(t, db, userID, productID, 2)
	session := openSession(t, svc, userID, cartID)

	result, err := svc.VerifyAndCapture(ctx, userID, VerifyInput{
		PaymentID:         session.PaymentID,
		OrderID:           session.OrderID,
		ProviderOrderID:   session.ProviderOrderID,
		ProviderPaymentID: "pay_fake001",
		Signature:         "deadbeef",
		CartID:            &cartID,
	})
	require.NoError(t, err)
	require.True(t, result.Applied)

	result, err = svc.CaptureByProviderOrderID(ctx, session.ProviderOrderID, "pay_fake001", nil)
	require.NoError(t, err)
	require.False(t, result.Applied)

	var product models.Product
	require.NoError(t, db.First(&product, "id = ?", productID).Error)
	require.Equal(t, 3, product.Stock)
}
