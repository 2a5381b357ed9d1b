package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/cartloop/cartloop-backend/api/middleware"
	"github.com/cartloop/cartloop-backend/api/responses"
	"github.com/cartloop/cartloop-backend/api/validators"
	"github.com/cartloop/cartloop-backend/internal/ledger"
	"github.com/cartloop/cartloop-backend/pkg/logger"
	"github.com/cartloop/cartloop-backend/pkg/metrics"
)

type stockAdjustmentRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Qty       int       `json:"qty" validate:"required,gt=0"`
	Note      *string   `json:"note,omitempty"`
}

const maxNoteLen = 500

func (req *stockAdjustmentRequest) note() *string {
	if req.Note == nil {
		return nil
	}
	cleaned := validators.SanitizeString(*req.Note, maxNoteLen)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

// Restock adds inventory for a product. Admin only.
func Restock(svc ledger.Service, commerce *metrics.CommerceMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID := middleware.UserUUIDFromContext(r.Context())

		var input stockAdjustmentRequest
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entry, err := svc.Restock(r.Context(), input.ProductID, input.Qty, &actorID, input.note())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		commerce.IncStockAdjustment(string(entry.Kind))
		responses.WriteMessage(w, http.StatusCreated, "stock replenished", entry)
	}
}

// ReserveStock withholds inventory for a product, failing when the
// floor would be crossed. Admin only.
func ReserveStock(svc ledger.Service, commerce *metrics.CommerceMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID := middleware.UserUUIDFromContext(r.Context())

		var input stockAdjustmentRequest
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entry, err := svc.Reserve(r.Context(), input.ProductID, input.Qty, &actorID, input.note())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		commerce.IncStockAdjustment(string(entry.Kind))
		responses.WriteMessage(w, http.StatusCreated, "stock reserved", entry)
	}
}

// StockSummary reports a product's stored stock against the ledger sum.
func StockSummary(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := parseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.Summary(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// StockEntries lists a product's ledger rows, newest first.
func StockEntries(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := parseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 0, 500)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entries, err := svc.EntriesForProduct(r.Context(), productID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entries)
	}
}
