package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/washpoint/washpoint-backend/api/responses"
	"github.com/washpoint/washpoint-backend/internal/payments"
	"github.com/washpoint/washpoint-backend/pkg/db/models"
	pkgerrors "github.com/washpoint/washpoint-backend/pkg/errors"
	"github.com/washpoint/washpoint-backend/pkg/logger"
)

type paymentConfirmer interface {
	ConfirmPayment(ctx context.Context, input payments.ConfirmPaymentInput) (*models.Job, error)
}

type webhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type stripeClient interface {
	SigningSecret() string
}

// StripeWebhook ingests payment events. Signature verification happens
// before any other processing; unrecognized event types are acknowledged
// and dropped.
func StripeWebhook(reconciler paymentConfirmer, client stripeClient, guard webhookGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if reconciler == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment reconciler unavailable"))
			return
		}
		if client == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe client unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get("Stripe-Signature")
		if sigHeader == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "stripe signature missing"))
			return
		}

		event, err := webhook.ConstructEvent(payload, sigHeader, client.SigningSecret())
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "verify signature"))
			return
		}

		if event.Type != "payment_intent.succeeded" {
			responses.WriteSuccess(w, nil)
			return
		}

		alreadyProcessed, err := guard.CheckAndMark(ctx, event.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			responses.WriteSuccess(w, nil)
			return
		}

		input, err := confirmInputFromEvent(&event)
		if err != nil {
			_ = guard.Delete(ctx, event.ID)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if _, err := reconciler.ConfirmPayment(ctx, input); err != nil {
			// the database-level guards make redelivery safe
			_ = guard.Delete(ctx, event.ID)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(logg.WithField(ctx, "event_id", event.ID), "stripe payment event processed")
		}
		responses.WriteSuccess(w, nil)
	}
}

func confirmInputFromEvent(event *stripe.Event) (payments.ConfirmPaymentInput, error) {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return payments.ConfirmPaymentInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent")
	}
	if intent.ID == "" {
		return payments.ConfirmPaymentInput{}, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id missing")
	}

	input := payments.ConfirmPaymentInput{PaymentRef: intent.ID}
	if raw, ok := intent.Metadata["tip_fils"]; ok {
		tip, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || tip < 0 {
			return payments.ConfirmPaymentInput{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid tip metadata")
		}
		input.TipFils = tip
	}
	if raw, ok := intent.Metadata["requested_cleaner_id"]; ok {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return payments.ConfirmPaymentInput{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid requested cleaner metadata")
		}
		input.RequestedCleanerID = &id
	}
	return input, nil
}
