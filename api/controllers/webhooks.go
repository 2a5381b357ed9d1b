package controllers

import (
	"io"
	"net/http"

	"github.com/cartloop/cartloop-backend/api/responses"
	razorpaywebhook "github.com/cartloop/cartloop-backend/internal/webhooks/razorpay"
	pkgerrors "github.com/cartloop/cartloop-backend/pkg/errors"
	"github.com/cartloop/cartloop-backend/pkg/logger"
)

const (
	razorpaySignatureHeader = "X-Razorpay-Signature"
	razorpayEventIDHeader   = "X-Razorpay-Event-Id"
)

// RazorpayWebhook receives provider event deliveries. Signature is
// verified against the raw body before any decoding; everything the
// reconciler cannot act on is acknowledged so the provider stops
// retrying.
func RazorpayWebhook(svc *razorpaywebhook.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read webhook body"))
			return
		}

		result, err := svc.HandleEvent(r.Context(),
			body,
			r.Header.Get(razorpaySignatureHeader),
			r.Header.Get(razorpayEventIDHeader),
		)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
