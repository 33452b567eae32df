package jobs

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/washpoint/washpoint-backend/pkg/errors"

	"github.com/washpoint/washpoint-backend/internal/cleaners"
	"github.com/washpoint/washpoint-backend/internal/finance"
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

// PaymentProvider is the slice of the payment client the job lifecycle
// needs: opening an intent at booking and returning money on refund.
type PaymentProvider interface {
	CreateIntent(ctx context.Context, amountFils int64, currency string, metadata map[string]string) (*stripe.PaymentIntent, error)
	Refund(ctx context.Context, paymentRef string) (string, error)
}

// Service drives the job lifecycle. Every transition runs as the unique
// writer of its job row: lock, recheck, write, commit. Money movement
// against the provider happens after commit, never under the lock.
type Service interface {
	Create(ctx context.Context, input CreateJobInput) (*models.Job, error)
	// Accept claims a paid job for a cleaner. accepted=false is the normal
	// contention outcome when the job is no longer claimable.
	Accept(ctx context.Context, jobID, cleanerID int64) (job *models.Job, accepted bool, err error)
	Start(ctx context.Context, jobID, cleanerID int64) (*models.Job, error)
	Complete(ctx context.Context, jobID, cleanerID int64) (*models.Job, error)
	Cancel(ctx context.Context, jobID int64) (*models.Job, error)
	Refund(ctx context.Context, jobID int64) (*models.Job, error)
	Get(ctx context.Context, jobID int64) (*models.Job, error)
	ListByCustomer(ctx context.Context, customerID int64) ([]models.Job, error)
}

// CreateJobInput is the booking request. Amounts are major units; fils are
// derived through the fee calculator.
type CreateJobInput struct {
	CompanyID          int64
	CustomerID         int64
	Base               decimal.Decimal
	Tip                decimal.Decimal
	PlatformFee        decimal.Decimal
	Package            enums.PackageType
	Currency           enums.Currency
	Lat                float64
	Lng                float64
	Address            string
	RequestedCleanerID *int64
}

// ServiceParams carries the service dependencies.
type ServiceParams struct {
	Repo       Repository
	Cleaners   cleaners.Repository
	Finance    finance.Repository
	Tx         txRunner
	Provider   PaymentProvider
	Calculator *finance.Calculator
	Notifier   notifications.Notifier
	Logger     *logger.Logger
}

type service struct {
	repo     Repository
	cleaners cleaners.Repository
	finance  finance.Repository
	tx       txRunner
	provider PaymentProvider
	calc     *finance.Calculator
	notifier notifications.Notifier
	logg     *logger.Logger
}

// NewService builds the job lifecycle service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
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
	if params.Provider == nil {
		return nil, fmt.Errorf("payment provider required")
	}
	if params.Calculator == nil {
		return nil, fmt.Errorf("fee calculator required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     params.Repo,
		cleaners: params.Cleaners,
		finance:  params.Finance,
		tx:       params.Tx,
		provider: params.Provider,
		calc:     params.Calculator,
		notifier: params.Notifier,
		logg:     params.Logger,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateJobInput) (*models.Job, error) {
	if input.CompanyID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "company id required")
	}
	if input.CustomerID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if !input.Package.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid package type")
	}
	if !input.Base.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "base price must be positive")
	}
	if input.Tip.IsNegative() || input.PlatformFee.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amounts must not be negative")
	}
	if input.Lat < -90 || input.Lat > 90 || input.Lng < -180 || input.Lng > 180 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid coordinates")
	}

	currency := input.Currency
	if currency == "" {
		currency = enums.CurrencyAED
	}
	if !currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid currency")
	}

	breakdown := s.calc.ComputeFees(input.Base, input.Tip, input.PlatformFee, input.Package)

	mode := enums.AssignmentModePool
	if input.RequestedCleanerID != nil {
		mode = enums.AssignmentModeDirect
	}

	job := &models.Job{
		CompanyID:          input.CompanyID,
		CustomerID:         input.CustomerID,
		RequestedCleanerID: input.RequestedCleanerID,
		AssignmentMode:     mode,
		Status:             enums.JobStatusPendingPayment,
		BaseFils:           finance.Fils(breakdown.Base),
		TipFils:            finance.Fils(breakdown.Tip),
		PlatformFeeFils:    finance.Fils(breakdown.PlatformFee),
		TotalFils:          finance.Fils(breakdown.Total),
		Currency:           currency,
		Package:            input.Package,
		Lat:                input.Lat,
		Lng:                input.Lng,
		Address:            input.Address,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.repo.WithTx(tx).Create(ctx, job); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create job")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	intent, err := s.provider.CreateIntent(ctx, job.TotalFils, string(currency), map[string]string{
		"job_id": strconv.FormatInt(job.ID, 10),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open payment intent")
	}
	if err := s.repo.Update(ctx, job.ID, map[string]any{"payment_ref": intent.ID}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store payment reference")
	}
	ref := intent.ID
	job.PaymentRef = &ref
	return job, nil
}

func (s *service) Accept(ctx context.Context, jobID, cleanerID int64) (*models.Job, bool, error) {
	if jobID <= 0 {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "job id required")
	}
	if cleanerID <= 0 {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "cleaner id required")
	}

	var (
		result   *models.Job
		accepted bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cleanerRepo := s.cleaners.WithTx(tx)

		job, err := repo.FindByIDForUpdate(ctx, jobID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "job not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load job")
		}

		// contention outcome, not an error: someone else got here first or
		// the sweep already parked the job
		if job.Status != enums.JobStatusPaid || job.CleanerID != nil {
			result = job
			accepted = false
			return nil
		}

		cleaner, err := cleanerRepo.FindByIDForUpdate(ctx, cleanerID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cleaner not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cleaner")
		}
		if cleaner.CompanyID != job.CompanyID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "job belongs to another company")
		}
		if !cleaner.Active {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cleaner is deactivated")
		}
		if cleaner.Status != enums.CleanerStatusOnDuty {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cleaner is not on duty")
		}

		now := time.Now().UTC()
		if err := repo.Update(ctx, job.ID, map[string]any{
			"status":      enums.JobStatusAssigned,
			"cleaner_id":  cleaner.ID,
			"assigned_at": now,
			"accepted_at": now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign job")
		}
		if err := cleanerRepo.Update(ctx, cleaner.ID, map[string]any{"status": enums.CleanerStatusBusy}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark cleaner busy")
		}
		if err := s.finance.WithTx(tx).SetCleaner(ctx, job.ID, cleaner.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach cleaner to financial record")
		}

		job.Status = enums.JobStatusAssigned
		job.CleanerID = &cleaner.ID
		job.AssignedAt = &now
		job.AcceptedAt = &now
		result = job
		accepted = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if accepted {
		s.notifier.JobEvent(ctx, "job.assigned", result)
	}
	return result, accepted, nil
}

func (s *service) Start(ctx context.Context, jobID, cleanerID int64) (*models.Job, error) {
	job, err := s.transition(ctx, jobID, cleanerID, enums.JobStatusAssigned, enums.JobStatusInProgress, "started_at")
	if err != nil {
		return nil, err
	}
	s.notifier.JobEvent(ctx, "job.started", job)
	return job, nil
}

func (s *service) Complete(ctx context.Context, jobID, cleanerID int64) (*models.Job, error) {
	var result *models.Job
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		job, err := repo.FindByIDForUpdate(ctx, jobID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "job not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load job")
		}
		if job.CleanerID == nil || *job.CleanerID != cleanerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "job is not assigned to cleaner")
		}
		if job.Status != enums.JobStatusInProgress {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "job is not in progress")
		}

		now := time.Now().UTC()
		if err := repo.Update(ctx, job.ID, map[string]any{
			"status":       enums.JobStatusCompleted,
			"completed_at": now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete job")
		}
		if err := s.freeCleaner(ctx, tx, *job.CleanerID); err != nil {
			return err
		}

		job.Status = enums.JobStatusCompleted
		job.CompletedAt = &now
		result = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notifier.JobEvent(ctx, "job.completed", result)
	return result, nil
}

func (s *service) Cancel(ctx context.Context, jobID int64) (*models.Job, error) {
	var result *models.Job
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		job, err := repo.FindByIDForUpdate(ctx, jobID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "job not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load job")
		}
		if job.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "job already finished")
		}

		if err := repo.Update(ctx, job.ID, map[string]any{"status": enums.JobStatusCancelled}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel job")
		}
		if job.CleanerID != nil {
			if err := s.freeCleaner(ctx, tx, *job.CleanerID); err != nil {
				return err
			}
		}

		job.Status = enums.JobStatusCancelled
		result = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notifier.JobEvent(ctx, "job.cancelled", result)
	return result, nil
}

// Refund handles the manual, complaint-driven path. The status flip commits
// before the provider call so the job can never be claimed while money is
// moving; a failed provider call leaves the job refunded without a refund
// reference, which is surfaced for operator reconciliation.
func (s *service) Refund(ctx context.Context, jobID int64) (*models.Job, error) {
	var (
		result     *models.Job
		paymentRef *string
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		job, err := repo.FindByIDForUpdate(ctx, jobID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "job not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load job")
		}
		if job.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "job already finished")
		}

		now := time.Now().UTC()
		if err := repo.Update(ctx, job.ID, map[string]any{
			"status":      enums.JobStatusRefunded,
			"refunded_at": now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark job refunded")
		}
		if job.CleanerID != nil {
			if err := s.freeCleaner(ctx, tx, *job.CleanerID); err != nil {
				return err
			}
		}

		job.Status = enums.JobStatusRefunded
		job.RefundedAt = &now
		paymentRef = job.PaymentRef
		result = job
		return nil
	})
	if err != nil {
		return nil, err
	}

	if paymentRef == nil {
		s.logg.Warn(s.logg.WithJobID(ctx, result.ID), "refunded job has no payment reference, skipping provider refund")
		s.notifier.JobEvent(ctx, "job.refunded", result)
		return result, nil
	}

	refundRef, err := s.provider.Refund(ctx, *paymentRef)
	if err != nil {
		s.logg.Error(s.logg.WithJobID(ctx, result.ID), "provider refund failed, job parked for reconciliation", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "provider refund")
	}
	if err := s.recordRefund(ctx, result, refundRef); err != nil {
		return nil, err
	}
	s.notifier.JobEvent(ctx, "job.refunded", result)
	return result, nil
}

func (s *service) Get(ctx context.Context, jobID int64) (*models.Job, error) {
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "job not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load job")
	}
	return job, nil
}

func (s *service) ListByCustomer(ctx context.Context, customerID int64) ([]models.Job, error) {
	if customerID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	jobs, err := s.repo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list jobs")
	}
	return jobs, nil
}

// transition moves a cleaner-held job between two in-flight statuses.
func (s *service) transition(ctx context.Context, jobID, cleanerID int64, from, to enums.JobStatus, stampColumn string) (*models.Job, error) {
	var result *models.Job
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		job, err := repo.FindByIDForUpdate(ctx, jobID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "job not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load job")
		}
		if job.CleanerID == nil || *job.CleanerID != cleanerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "job is not assigned to cleaner")
		}
		if job.Status != from {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("job is not %s", from))
		}

		now := time.Now().UTC()
		if err := repo.Update(ctx, job.ID, map[string]any{
			"status":    to,
			stampColumn: now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "transition job")
		}

		job.Status = to
		if stampColumn == "started_at" {
			job.StartedAt = &now
		}
		result = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) freeCleaner(ctx context.Context, tx *gorm.DB, cleanerID int64) error {
	cleanerRepo := s.cleaners.WithTx(tx)
	cleaner, err := cleanerRepo.FindByIDForUpdate(ctx, cleanerID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cleaner")
	}
	if cleaner.Status != enums.CleanerStatusBusy {
		return nil
	}
	if err := cleanerRepo.Update(ctx, cleaner.ID, map[string]any{"status": enums.CleanerStatusOnDuty}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "free cleaner")
	}
	return nil
}

func (s *service) recordRefund(ctx context.Context, job *models.Job, refundRef string) error {
	if err := s.repo.Update(ctx, job.ID, map[string]any{"refund_ref": refundRef}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store refund reference")
	}
	job.RefundRef = &refundRef
	if err := s.finance.MarkRefunded(ctx, job.ID, time.Now().UTC()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark financial record refunded")
	}
	if _, err := s.finance.CreateTransaction(ctx, &models.Transaction{
		JobID:      job.ID,
		Type:       enums.TransactionTypeRefund,
		AmountFils: -job.TotalFils,
		Reference:  refundRef,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record refund transaction")
	}
	return nil
}
