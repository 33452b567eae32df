package dispatch

import (
	"context"
	"fmt"
	"sync"

	pkgerrors "github.com/washpoint/washpoint-backend/pkg/errors"

	"github.com/washpoint/washpoint-backend/internal/cleaners"
	"github.com/washpoint/washpoint-backend/internal/geofence"
	"github.com/washpoint/washpoint-backend/internal/jobs"
	"github.com/washpoint/washpoint-backend/internal/notifications"
	"github.com/washpoint/washpoint-backend/pkg/db"
	"github.com/washpoint/washpoint-backend/pkg/db/models"
	"github.com/washpoint/washpoint-backend/pkg/enums"
	"github.com/washpoint/washpoint-backend/pkg/logger"
	"github.com/washpoint/washpoint-backend/pkg/metrics"
)

// Engine fans newly paid jobs out to eligible cleaners and answers which
// pool jobs a cleaner may currently claim. Eligibility is always computed
// fresh from the job location and the cleaner's service area; there is no
// persisted offer queue to drift out of date.
type Engine struct {
	jobs     jobs.Repository
	cleaners cleaners.Repository
	resolver *geofence.Resolver
	notifier notifications.Notifier
	metrics  *metrics.DispatchMetrics
	logg     *logger.Logger
}

// EngineParams carries the engine dependencies.
type EngineParams struct {
	Jobs     jobs.Repository
	Cleaners cleaners.Repository
	Resolver *geofence.Resolver
	Notifier notifications.Notifier
	Metrics  *metrics.DispatchMetrics
	Logger   *logger.Logger
}

// NewEngine builds the dispatch engine.
func NewEngine(params EngineParams) (*Engine, error) {
	if params.Jobs == nil {
		return nil, fmt.Errorf("jobs repository required")
	}
	if params.Cleaners == nil {
		return nil, fmt.Errorf("cleaners repository required")
	}
	if params.Resolver == nil {
		return nil, fmt.Errorf("geofence resolver required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Engine{
		jobs:     params.Jobs,
		cleaners: params.Cleaners,
		resolver: params.Resolver,
		notifier: params.Notifier,
		metrics:  params.Metrics,
		logg:     params.Logger,
	}, nil
}

// FanOut notifies every eligible on-duty cleaner about a paid pool job.
// Eligibility checks run in parallel; a failed check degrades to
// ineligible and is logged, it never aborts the fan-out.
func (e *Engine) FanOut(ctx context.Context, job *models.Job) error {
	if job == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "job required")
	}

	candidates, err := e.cleaners.ListOnDutyByCompany(ctx, job.CompanyID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list on-duty cleaners")
	}

	eligible := make([]int64, 0, len(candidates))
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for i := range candidates {
		cleaner := candidates[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := e.resolver.EligibleForLocation(ctx, &cleaner, job.Lat, job.Lng)
			if err != nil {
				e.logg.Warn(e.logg.WithCleanerID(e.logg.WithJobID(ctx, job.ID), cleaner.ID),
					"eligibility check failed, treating cleaner as ineligible: "+err.Error())
				return
			}
			if !ok {
				e.metrics.IncIneligible()
				return
			}
			mu.Lock()
			eligible = append(eligible, cleaner.ID)
			mu.Unlock()
		}()
	}
	wg.Wait()

	for _, cleanerID := range eligible {
		e.notifier.CleanerJobOffer(ctx, cleanerID, job)
		e.metrics.IncNotified()
	}

	e.logg.Info(e.logg.WithFields(ctx, map[string]any{
		"job_id":     job.ID,
		"candidates": len(candidates),
		"notified":   len(eligible),
	}), "dispatch fan-out complete")
	return nil
}

// AvailableJobs lists the pool jobs a cleaner may claim right now.
func (e *Engine) AvailableJobs(ctx context.Context, cleanerID int64) ([]models.Job, error) {
	if cleanerID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cleaner id required")
	}

	cleaner, err := e.cleaners.FindByID(ctx, cleanerID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cleaner not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cleaner")
	}
	if !cleaner.Active {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cleaner is deactivated")
	}

	pool, err := e.jobs.ListPoolByCompany(ctx, cleaner.CompanyID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pool jobs")
	}

	available := make([]models.Job, 0, len(pool))
	for i := range pool {
		job := pool[i]
		ok, err := e.resolver.EligibleForLocation(ctx, cleaner, job.Lat, job.Lng)
		if err != nil {
			e.logg.Warn(e.logg.WithJobID(ctx, job.ID), "eligibility check failed, hiding job: "+err.Error())
			continue
		}
		if ok {
			available = append(available, job)
		}
	}
	return available, nil
}

// EligibleForDirect reports whether a requested cleaner can take a direct
// assignment for the given company right now. The payment reconciler calls
// this inside the confirmation transaction to decide direct versus pool.
func EligibleForDirect(cleaner *models.Cleaner, companyID int64) bool {
	if cleaner == nil {
		return false
	}
	return cleaner.CompanyID == companyID &&
		cleaner.Active &&
		cleaner.Status == enums.CleanerStatusOnDuty
}
