package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/washpoint/washpoint-backend/pkg/errors"

	"github.com/washpoint/washpoint-backend/internal/cleaners"
	"github.com/washpoint/washpoint-backend/internal/dispatch"
	"github.com/washpoint/washpoint-backend/internal/finance"
	"github.com/washpoint/washpoint-backend/internal/jobs"
	"github.com/washpoint/washpoint-backend/internal/notifications"
	"github.com/washpoint/washpoint-backend/pkg/db"
	"github.com/washpoint/washpoint-backend/pkg/db/models"
	"github.com/washpoint/washpoint-backend/pkg/enums"
	"github.com/washpoint/washpoint-backend/pkg/logger"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type dispatcher interface {
	FanOut(ctx context.Context, job *models.Job) error
}

// ConfirmPaymentInput is one payment-succeeded delivery, from the provider
// webhook or the manual confirmation endpoint. Both paths converge on the
// same terminal state for a given payment reference.
type ConfirmPaymentInput struct {
	PaymentRef         string
	TipFils            int64
	RequestedCleanerID *int64

	// CompanyID scopes the manual confirmation path. Zero means unscoped
	// (webhook deliveries carry no caller identity).
	CompanyID int64
}

// Reconciler applies payment-succeeded events to job state. It is
// idempotent under redelivery: a job already past pending_payment is never
// status-mutated again, and the financial record and receipt are guarded by
// their own existence checks.
type Reconciler struct {
	jobs     jobs.Repository
	cleaners cleaners.Repository
	finance  finance.Repository
	tx       txRunner
	calc     *finance.Calculator
	dispatch dispatcher
	notifier notifications.Notifier
	logg     *logger.Logger
}

// ReconcilerParams carries the reconciler dependencies.
type ReconcilerParams struct {
	Jobs       jobs.Repository
	Cleaners   cleaners.Repository
	Finance    finance.Repository
	Tx         txRunner
	Calculator *finance.Calculator
	Dispatch   dispatcher
	Notifier   notifications.Notifier
	Logger     *logger.Logger
}

// NewReconciler builds the payment reconciler.
func NewReconciler(params ReconcilerParams) (*Reconciler, error) {
	if params.Jobs == nil {
		return nil, fmt.Errorf("jobs repository required")
	}
	if params.Cleaners == nil {
		return nil, fmt.Errorf("cleaners repository required")
	}
	if params.Finance == nil {
		return nil, fmt.Errorf("finance repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Calculator == nil {
		return nil, fmt.Errorf("fee calculator required")
	}
	if params.Dispatch == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Reconciler{
		jobs:     params.Jobs,
		cleaners: params.Cleaners,
		finance:  params.Finance,
		tx:       params.Tx,
		calc:     params.Calculator,
		dispatch: params.Dispatch,
		notifier: params.Notifier,
		logg:     params.Logger,
	}, nil
}

// ConfirmPayment processes one payment-succeeded delivery.
func (r *Reconciler) ConfirmPayment(ctx context.Context, input ConfirmPaymentInput) (*models.Job, error) {
	if input.PaymentRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}
	if input.TipFils < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tip must not be negative")
	}

	var (
		result    *models.Job
		firstPass bool
	)
	err := r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		jobRepo := r.jobs.WithTx(tx)
		financeRepo := r.finance.WithTx(tx)

		job, err := jobRepo.FindByPaymentRefForUpdate(ctx, input.PaymentRef)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "no job for payment reference")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load job by payment reference")
		}

		// ownership resolves under the row lock, before any write
		if input.CompanyID > 0 && job.CompanyID != input.CompanyID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "job does not belong to company")
		}

		// redelivery: the state machine already moved on, only the
		// separately guarded financial writes may still be missing
		if job.Status != enums.JobStatusPendingPayment {
			result = job
			return r.ensureFinancialRecord(ctx, financeRepo, job)
		}
		firstPass = true

		tip := input.TipFils
		if tip == 0 {
			tip = job.TipFils
		}
		breakdown := r.calc.ComputeFees(
			filsToAmount(job.BaseFils),
			filsToAmount(tip),
			filsToAmount(job.PlatformFeeFils),
			job.Package,
		)
		totalFils := finance.Fils(breakdown.Total)

		requested := job.RequestedCleanerID
		if input.RequestedCleanerID != nil {
			requested = input.RequestedCleanerID
		}

		updates := map[string]any{
			"tip_fils":   tip,
			"total_fils": totalFils,
		}
		record := &models.FinancialRecord{
			JobID:              job.ID,
			BaseFils:           finance.Fils(breakdown.Base),
			TipFils:            finance.Fils(breakdown.Tip),
			PlatformFeeFils:    finance.Fils(breakdown.PlatformFee),
			BaseTaxFils:        finance.Fils(breakdown.BaseTax),
			TipTaxFils:         finance.Fils(breakdown.TipTax),
			PlatformFeeTaxFils: finance.Fils(breakdown.PlatformFeeTax),
			ProcessingFeeFils:  finance.Fils(breakdown.ProcessingFee),
			TotalFils:          totalFils,
			Currency:           job.Currency,
		}

		if requested != nil {
			cleaner := r.resolveDirect(ctx, tx, job, *requested)
			if cleaner != nil {
				// direct path: no contention, straight to assigned in the
				// same transaction as the payment confirmation
				now := time.Now().UTC()
				updates["status"] = enums.JobStatusAssigned
				updates["cleaner_id"] = cleaner.ID
				updates["assigned_at"] = now
				if err := r.cleaners.WithTx(tx).Update(ctx, cleaner.ID, map[string]any{
					"status": enums.CleanerStatusBusy,
				}); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark cleaner busy")
				}
				record.CleanerID = &cleaner.ID
				job.CleanerID = &cleaner.ID
				job.AssignedAt = &now
				job.Status = enums.JobStatusAssigned
			} else {
				// fallback happens here, atomically with the confirmation,
				// so the job is never payable but unreachable
				updates["status"] = enums.JobStatusPaid
				updates["assignment_mode"] = enums.AssignmentModePool
				updates["requested_cleaner_id"] = nil
				job.Status = enums.JobStatusPaid
				job.AssignmentMode = enums.AssignmentModePool
				job.RequestedCleanerID = nil
			}
		} else {
			updates["status"] = enums.JobStatusPaid
			job.Status = enums.JobStatusPaid
		}

		if err := jobRepo.Update(ctx, job.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm payment")
		}
		job.TipFils = tip
		job.TotalFils = totalFils

		if _, err := financeRepo.GetOrCreateRecord(ctx, record); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create financial record")
		}
		if _, err := financeRepo.SetReceiptIfAbsent(ctx, job.ID, uuid.NewString()); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mint receipt reference")
		}
		if _, err := financeRepo.CreateTransaction(ctx, &models.Transaction{
			JobID:      job.ID,
			Type:       enums.TransactionTypeCharge,
			AmountFils: totalFils,
			Reference:  input.PaymentRef,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record charge")
		}

		result = job
		return nil
	})
	if err != nil {
		return nil, err
	}

	if firstPass {
		r.notifyAfterCommit(ctx, result)
	}
	return result, nil
}

// resolveDirect validates the requested cleaner under the job lock. Any
// failure degrades to pool, it never aborts the confirmation.
func (r *Reconciler) resolveDirect(ctx context.Context, tx *gorm.DB, job *models.Job, requestedID int64) *models.Cleaner {
	cleaner, err := r.cleaners.WithTx(tx).FindByIDForUpdate(ctx, requestedID)
	if err != nil {
		if !db.IsNotFound(err) {
			r.logg.Warn(r.logg.WithJobID(ctx, job.ID), "requested cleaner lookup failed, degrading to pool: "+err.Error())
		}
		return nil
	}
	if !dispatch.EligibleForDirect(cleaner, job.CompanyID) {
		return nil
	}
	return cleaner
}

// ensureFinancialRecord backfills the separately guarded financial writes
// on redelivery without touching job status.
func (r *Reconciler) ensureFinancialRecord(ctx context.Context, financeRepo finance.Repository, job *models.Job) error {
	breakdown := r.calc.ComputeFees(
		filsToAmount(job.BaseFils),
		filsToAmount(job.TipFils),
		filsToAmount(job.PlatformFeeFils),
		job.Package,
	)
	record := &models.FinancialRecord{
		JobID:              job.ID,
		CleanerID:          job.CleanerID,
		BaseFils:           finance.Fils(breakdown.Base),
		TipFils:            finance.Fils(breakdown.Tip),
		PlatformFeeFils:    finance.Fils(breakdown.PlatformFee),
		BaseTaxFils:        finance.Fils(breakdown.BaseTax),
		TipTaxFils:         finance.Fils(breakdown.TipTax),
		PlatformFeeTaxFils: finance.Fils(breakdown.PlatformFeeTax),
		ProcessingFeeFils:  finance.Fils(breakdown.ProcessingFee),
		TotalFils:          job.TotalFils,
		Currency:           job.Currency,
	}
	if _, err := financeRepo.GetOrCreateRecord(ctx, record); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create financial record")
	}
	if _, err := financeRepo.SetReceiptIfAbsent(ctx, job.ID, uuid.NewString()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mint receipt reference")
	}
	return nil
}

func (r *Reconciler) notifyAfterCommit(ctx context.Context, job *models.Job) {
	switch job.Status {
	case enums.JobStatusAssigned:
		r.notifier.JobEvent(ctx, "job.assigned", job)
	case enums.JobStatusPaid:
		r.notifier.JobEvent(ctx, "job.paid", job)
		if err := r.dispatch.FanOut(ctx, job); err != nil {
			r.logg.Warn(r.logg.WithJobID(ctx, job.ID), "dispatch fan-out failed: "+err.Error())
		}
	}
}

func filsToAmount(fils int64) decimal.Decimal {
	return decimal.NewFromInt(fils).Div(decimal.NewFromInt(100))
}
