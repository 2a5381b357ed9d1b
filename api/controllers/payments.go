package controllers

import (
	"net/http"

	"github.com/cartloop/cartloop-backend/api/middleware"
	"github.com/cartloop/cartloop-backend/api/responses"
	"github.com/cartloop/cartloop-backend/api/validators"
	"github.com/cartloop/cartloop-backend/internal/payments"
	"github.com/cartloop/cartloop-backend/pkg/logger"
)

// OpenPaymentSession assembles a taxed order from the cart and opens a
// provider payment intent for it.
func OpenPaymentSession(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserUUIDFromContext(r.Context())

		var input payments.OpenSessionInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.OpenSession(r.Context(), userID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteMessage(w, http.StatusCreated, "payment session opened", session)
	}
}

// VerifyPayment validates the checkout callback signature and finalizes
// the capture. Replayed callbacks succeed without re-applying.
func VerifyPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserUUIDFromContext(r.Context())

		var input payments.VerifyInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.VerifyAndCapture(r.Context(), userID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteMessage(w, http.StatusOK, "payment captured", result)
	}
}
