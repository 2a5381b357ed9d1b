package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/cartloop/cartloop-backend/pkg/db"
	"github.com/cartloop/cartloop-backend/pkg/db/models"
	"github.com/cartloop/cartloop-backend/pkg/enums"
	pkgerrors "github.com/cartloop/cartloop-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service owns every stock mutation. Product.stock is never written
// outside this package, so the sum of entry deltas for a product always
// matches the counter.
type Service interface {
	Adjust(ctx context.Context, input AdjustmentInput) (*models.StockEntry, error)
	// ApplyInTx performs the adjustment inside the caller's transaction
	// so order placement can roll the whole batch back on failure.
	ApplyInTx(ctx context.Context, tx *gorm.DB, input AdjustmentInput) (*models.StockEntry, error)
	Restock(ctx context.Context, productID uuid.UUID, qty int, actorUserID *uuid.UUID, note *string) (*models.StockEntry, error)
	Reserve(ctx context.Context, productID uuid.UUID, qty int, actorUserID *uuid.UUID, note *string) (*models.StockEntry, error)
	Summary(ctx context.Context, productID uuid.UUID) (*StockSummary, error)
	EntriesForProduct(ctx context.Context, productID uuid.UUID, limit int) ([]models.StockEntry, error)
}

// AdjustmentInput captures one ledger write. Delta is signed: negative
// consumes stock, positive replenishes it.
type AdjustmentInput struct {
	ProductID   uuid.UUID
	OrderID     *uuid.UUID
	Delta       int
	Kind        enums.StockEntryKind
	Note        *string
	ActorUserID *uuid.UUID
}

// StockSummary pairs the denormalized counter with the ledger sum so
// callers can audit the invariant between them.
type StockSummary struct {
	ProductID  uuid.UUID `json:"product_id"`
	Stock      int       `json:"stock"`
	LedgerSum  int64     `json:"ledger_sum"`
	Consistent bool      `json:"consistent"`
}

type service struct {
	tx   txRunner
	repo Repository
}

// NewService wires a stock ledger service with the provided runner and repository.
func NewService(tx txRunner, repo Repository) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{tx: tx, repo: repo}, nil
}

func (s *service) Adjust(ctx context.Context, input AdjustmentInput) (*models.StockEntry, error) {
	var entry *models.StockEntry
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		created, err := s.ApplyInTx(ctx, tx, input)
		if err != nil {
			return err
		}
		entry = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) ApplyInTx(ctx context.Context, tx *gorm.DB, input AdjustmentInput) (*models.StockEntry, error) {
	if err := validateAdjustment(input); err != nil {
		return nil, err
	}

	repo := s.repo.WithTx(tx)

	affected, err := repo.ApplyDelta(ctx, input.ProductID, input.Delta)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply stock delta")
	}
	if affected == 0 {
		if _, lookupErr := repo.FindProductByID(ctx, input.ProductID); lookupErr != nil {
			if errors.Is(lookupErr, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, lookupErr, "load product")
		}
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock").
			WithDetails(map[string]any{"product_id": input.ProductID, "delta": input.Delta})
	}

	entry := &models.StockEntry{
		ID:          uuid.New(),
		ProductID:   input.ProductID,
		OrderID:     input.OrderID,
		Delta:       input.Delta,
		Kind:        input.Kind,
		Note:        input.Note,
		ActorUserID: input.ActorUserID,
	}
	if err := repo.CreateEntry(ctx, entry); err != nil {
		if db.IsUniqueViolation(err, "uq_stock_entries_order_product") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "stock already adjusted for this order line")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write stock entry")
	}
	return entry, nil
}

func (s *service) Restock(ctx context.Context, productID uuid.UUID, qty int, actorUserID *uuid.UUID, note *string) (*models.StockEntry, error) {
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restock quantity must be positive")
	}
	return s.Adjust(ctx, AdjustmentInput{
		ProductID:   productID,
		Delta:       qty,
		Kind:        enums.StockEntryKindRestock,
		Note:        note,
		ActorUserID: actorUserID,
	})
}

func (s *service) Reserve(ctx context.Context, productID uuid.UUID, qty int, actorUserID *uuid.UUID, note *string) (*models.StockEntry, error) {
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reserve quantity must be positive")
	}
	return s.Adjust(ctx, AdjustmentInput{
		ProductID:   productID,
		Delta:       -qty,
		Kind:        enums.StockEntryKindReservation,
		Note:        note,
		ActorUserID: actorUserID,
	})
}

func (s *service) Summary(ctx context.Context, productID uuid.UUID) (*StockSummary, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}

	product, err := s.repo.FindProductByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	sum, err := s.repo.SumDeltas(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum stock entries")
	}

	return &StockSummary{
		ProductID:  productID,
		Stock:      product.Stock,
		LedgerSum:  sum,
		Consistent: int64(product.Stock) == sum,
	}, nil
}

func (s *service) EntriesForProduct(ctx context.Context, productID uuid.UUID, limit int) ([]models.StockEntry, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	entries, err := s.repo.ListByProductID(ctx, productID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock entries")
	}
	return entries, nil
}

func validateAdjustment(input AdjustmentInput) error {
	if input.ProductID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.Delta == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "delta must be non-zero")
	}
	if !input.Kind.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid stock entry kind %q", input.Kind))
	}
	if input.Kind == enums.StockEntryKindOrderPlaced && (input.OrderID == nil || *input.OrderID == uuid.Nil) {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required for order placement entries")
	}
	return nil
}
