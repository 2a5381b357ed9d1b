package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/cartloop/cartloop-backend/api/middleware"
	"github.com/cartloop/cartloop-backend/api/responses"
	"github.com/cartloop/cartloop-backend/api/validators"
	"github.com/cartloop/cartloop-backend/internal/delivery"
	"github.com/cartloop/cartloop-backend/pkg/enums"
	pkgerrors "github.com/cartloop/cartloop-backend/pkg/errors"
	"github.com/cartloop/cartloop-backend/pkg/logger"
)

type assignDeliveryRequest struct {
	OrderID   uuid.UUID `json:"order_id" validate:"required"`
	PartnerID uuid.UUID `json:"partner_id" validate:"required"`
}

// AssignDelivery attaches a delivery partner to an order. Admin only.
func AssignDelivery(svc delivery.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input assignDeliveryRequest
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		assigned, err := svc.Assign(r.Context(), input.OrderID, input.PartnerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteMessage(w, http.StatusCreated, "delivery assigned", assigned)
	}
}

type updateDeliveryStatusRequest struct {
	Status string  `json:"status" validate:"required"`
	Notes  *string `json:"notes,omitempty"`
}

// UpdateDeliveryStatus moves a delivery through its transition table.
// Only the assigned partner may call it.
func UpdateDeliveryStatus(svc delivery.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		partnerID := middleware.UserUUIDFromContext(r.Context())

		deliveryID, err := parseUUIDParam(r, "deliveryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var input updateDeliveryStatusRequest
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseDeliveryStatus(input.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		updated, err := svc.UpdateStatus(r.Context(), partnerID, deliveryID, status, input.Notes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteMessage(w, http.StatusOK, "delivery status updated", updated)
	}
}

// ListMyDeliveries returns the calling partner's assignments.
func ListMyDeliveries(svc delivery.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		partnerID := middleware.UserUUIDFromContext(r.Context())

		list, err := svc.ListForPartner(r.Context(), partnerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}
