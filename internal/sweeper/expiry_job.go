package sweeper

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/washpoint/washpoint-backend/internal/finance"
	"github.com/washpoint/washpoint-backend/internal/jobs"
	"github.com/washpoint/washpoint-backend/internal/notifications"
	"github.com/washpoint/washpoint-backend/pkg/db/models"
	"github.com/washpoint/washpoint-backend/pkg/enums"
	"github.com/washpoint/washpoint-backend/pkg/logger"
	"github.com/washpoint/washpoint-backend/pkg/metrics"
)

const defaultGraceWindow = 15 * time.Minute

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type refunder interface {
	Refund(ctx context.Context, paymentRef string) (string, error)
}

// ExpiryJobParams configure the unclaimed-job expiry sweep.
type ExpiryJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Jobs        jobs.Repository
	Finance     finance.Repository
	Provider    refunder
	Notifier    notifications.Notifier
	Metrics     *metrics.SweeperMetrics
	GraceWindow time.Duration
}

// NewExpiryJob builds the sweep job that force-refunds paid jobs no cleaner
// claimed within the grace window.
func NewExpiryJob(params ExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Jobs == nil {
		return nil, fmt.Errorf("jobs repository required")
	}
	if params.Finance == nil {
		return nil, fmt.Errorf("finance repository required")
	}
	if params.Provider == nil {
		return nil, fmt.Errorf("payment provider required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	grace := params.GraceWindow
	if grace <= 0 {
		grace = defaultGraceWindow
	}
	return &expiryJob{
		logg:     params.Logger,
		db:       params.DB,
		jobs:     params.Jobs,
		finance:  params.Finance,
		provider: params.Provider,
		notifier: params.Notifier,
		metrics:  params.Metrics,
		grace:    grace,
		now:      time.Now,
	}, nil
}

type expiryJob struct {
	logg     *logger.Logger
	db       txRunner
	jobs     jobs.Repository
	finance  finance.Repository
	provider refunder
	notifier notifications.Notifier
	metrics  *metrics.SweeperMetrics
	grace    time.Duration
	now      func() time.Time
}

func (j *expiryJob) Name() string { return "unclaimed-expiry" }

// Run expires every stale unclaimed paid job. Failures are isolated per
// job so one bad row never blocks the rest of the sweep.
func (j *expiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.grace)
	candidates, err := j.jobs.FindPaidBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("query unclaimed paid jobs: %w", err)
	}

	var errs []error
	expired := 0
	for i := range candidates {
		if err := j.expireJob(ctx, &candidates[i]); err != nil {
			errs = append(errs, fmt.Errorf("job %d: %w", candidates[i].ID, err))
			continue
		}
		expired++
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(candidates),
		"expired":    expired,
	})
	j.logg.Info(logCtx, "unclaimed expiry loop complete")
	return multierr.Combine(errs...)
}

// expireJob flips one job to refunded_unattended and then refunds it. The
// status flip commits first: the moment it lands no cleaner can accept the
// job, even if the provider call after it fails.
func (j *expiryJob) expireJob(ctx context.Context, candidate *models.Job) error {
	var job *models.Job
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.jobs.WithTx(tx)

		current, err := repo.FindByIDForUpdate(ctx, candidate.ID)
		if err != nil {
			return err
		}
		// a cleaner may have accepted between the list query and the lock
		if current.Status != enums.JobStatusPaid || current.CleanerID != nil {
			return nil
		}

		now := j.now().UTC()
		if err := repo.Update(ctx, current.ID, map[string]any{
			"status":      enums.JobStatusRefundedUnattended,
			"refunded_at": now,
		}); err != nil {
			return err
		}
		current.Status = enums.JobStatusRefundedUnattended
		current.RefundedAt = &now
		job = current
		return nil
	})
	if err != nil {
		return err
	}
	if job == nil {
		return nil
	}
	j.metrics.IncExpired()

	if job.PaymentRef == nil {
		j.logg.Warn(j.logg.WithJobID(ctx, job.ID), "expired job has no payment reference, skipping provider refund")
		j.notifier.JobEvent(ctx, "job.refunded_unattended", job)
		return nil
	}

	refundRef, err := j.provider.Refund(ctx, *job.PaymentRef)
	if err != nil {
		// job stays locked out without a refund reference, surfaced for
		// operator reconciliation
		j.metrics.IncRefundFailure()
		j.logg.Error(j.logg.WithJobID(ctx, job.ID), "provider refund failed for expired job", err)
		return fmt.Errorf("provider refund: %w", err)
	}
	if err := j.recordRefund(ctx, job, refundRef); err != nil {
		return err
	}
	j.notifier.JobEvent(ctx, "job.refunded_unattended", job)
	return nil
}

func (j *expiryJob) recordRefund(ctx context.Context, job *models.Job, refundRef string) error {
	if err := j.jobs.Update(ctx, job.ID, map[string]any{"refund_ref": refundRef}); err != nil {
		return fmt.Errorf("store refund reference: %w", err)
	}
	job.RefundRef = &refundRef
	if err := j.finance.MarkRefunded(ctx, job.ID, j.now().UTC()); err != nil {
		return fmt.Errorf("mark financial record refunded: %w", err)
	}
	if _, err := j.finance.CreateTransaction(ctx, &models.Transaction{
		JobID:      job.ID,
		Type:       enums.TransactionTypeRefund,
		AmountFils: -job.TotalFils,
		Reference:  refundRef,
	}); err != nil {
		return fmt.Errorf("record refund transaction: %w", err)
	}
	return nil
}
