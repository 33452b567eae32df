package controllers

import (
	"context"
	"net/http"

	"github.com/washpoint/washpoint-backend/api/middleware"
	"github.com/washpoint/washpoint-backend/api/responses"
	"github.com/washpoint/washpoint-backend/api/validators"
	"github.com/washpoint/washpoint-backend/internal/payments"
	"github.com/washpoint/washpoint-backend/pkg/db/models"
	pkgerrors "github.com/washpoint/washpoint-backend/pkg/errors"
	"github.com/washpoint/washpoint-backend/pkg/logger"
)

type paymentConfirmer interface {
	ConfirmPayment(ctx context.Context, input payments.ConfirmPaymentInput) (*models.Job, error)
}

type confirmPaymentRequest struct {
	PaymentRef string `json:"paymentRef" validate:"required,max=200"`
	TipFils    int64  `json:"tipFils" validate:"min=0"`
}

// ConfirmPayment is the manual confirmation path for operators when the
// webhook is delayed or lost. It converges on the same state as the webhook
// for a given payment reference.
func ConfirmPayment(reconciler paymentConfirmer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reconciler == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment reconciler unavailable"))
			return
		}

		companyID := middleware.CompanyIDFromContext(r.Context())
		if companyID <= 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "company identity required"))
			return
		}

		var req confirmPaymentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		job, err := reconciler.ConfirmPayment(r.Context(), payments.ConfirmPaymentInput{
			PaymentRef: req.PaymentRef,
			TipFils:    req.TipFils,
			CompanyID:  companyID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toJobResponse(job))
	}
}
