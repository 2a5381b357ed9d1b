package razorpaywebhook

import (
	"context"
	"encoding/json"

	"github.com/cartloop/cartloop-backend/internal/payments"
	pkgerrors "github.com/cartloop/cartloop-backend/pkg/errors"
	"github.com/cartloop/cartloop-backend/pkg/logger"
	"github.com/cartloop/cartloop-backend/pkg/metrics"
)

// Event names Razorpay sends that this reconciler acts on. Everything
// else is acknowledged and ignored.
const (
	EventPaymentCaptured = "payment.captured"
	EventOrderPaid       = "order.paid"
)

type paymentReconciler interface {
	CaptureByProviderOrderID(ctx context.Context, providerOrderID, providerPaymentID string, metadata json.RawMessage) (*payments.CaptureResult, error)
}

type signatureVerifier interface {
	VerifyWebhookSignature(body []byte, signature string) bool
}

// event mirrors the subset of the Razorpay webhook envelope the
// reconciler reads.
type event struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Status  string `json:"status"`
				Method  string `json:"method"`
			} `json:"entity"`
		} `json:"payment"`
		Order struct {
			Entity struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

// Result reports how an event was handled. Duplicate deliveries,
// unknown event types, and payments not known locally all acknowledge
// with Applied false.
type Result struct {
	Event   string `json:"event"`
	Applied bool   `json:"applied"`
}

type ServiceParams struct {
	Verifier signatureVerifier
	Payments paymentReconciler
	Guard    *IdempotencyGuard
	Logger   *logger.Logger
	Metrics  *metrics.CommerceMetrics
}

type Service struct {
	verifier signatureVerifier
	payments paymentReconciler
	guard    *IdempotencyGuard
	log      *logger.Logger
	metrics  *metrics.CommerceMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Verifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "signature verifier required")
	}
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment reconciler required")
	}
	if params.Guard == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		verifier: params.Verifier,
		payments: params.Payments,
		guard:    params.Guard,
		log:      params.Logger,
		metrics:  params.Metrics,
	}, nil
}

// HandleEvent verifies and dispatches one raw webhook delivery. A bad
// signature is the only outcome that must surface as an error status;
// every other non-actionable delivery is acknowledged so the provider
// stops retrying.
func (s *Service) HandleEvent(ctx context.Context, body []byte, signature, eventID string) (*Result, error) {
	if len(body) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "webhook body required")
	}
	if !s.verifier.VerifyWebhookSignature(body, signature) {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook signature")
	}

	var evt event
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode webhook event")
	}
	s.metrics.IncWebhookEvent(evt.Event)

	if evt.Event != EventPaymentCaptured && evt.Event != EventOrderPaid {
		return &Result{Event: evt.Event}, nil
	}

	if eventID != "" {
		duplicate, err := s.guard.CheckAndMark(ctx, eventID)
		if err != nil {
			// the capture latch already makes replays harmless, so a
			// degraded dedup store must not drop the event
			s.log.Warn(s.log.WithField(ctx, "event_id", eventID), "webhook dedup store unavailable, processing anyway")
		} else if duplicate {
			return &Result{Event: evt.Event}, nil
		}
	}

	providerOrderID := evt.Payload.Payment.Entity.OrderID
	if providerOrderID == "" {
		providerOrderID = evt.Payload.Order.Entity.ID
	}
	if providerOrderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "webhook event carries no order id")
	}

	meta, _ := json.Marshal(map[string]string{
		"verified_via":        "webhook",
		"event":               evt.Event,
		"provider_payment_id": evt.Payload.Payment.Entity.ID,
		"method":              evt.Payload.Payment.Entity.Method,
	})

	result, err := s.payments.CaptureByProviderOrderID(ctx, providerOrderID, evt.Payload.Payment.Entity.ID, meta)
	if err != nil {
		if eventID != "" {
			if delErr := s.guard.Delete(ctx, eventID); delErr != nil {
				s.log.Error(ctx, "release webhook event key", delErr)
			}
		}
		return nil, err
	}
	return &Result{Event: evt.Event, Applied: result.Applied}, nil
}
