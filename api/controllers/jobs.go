package controllers

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/washpoint/washpoint-backend/api/middleware"
	"github.com/washpoint/washpoint-backend/api/responses"
	"github.com/washpoint/washpoint-backend/api/validators"
	"github.com/washpoint/washpoint-backend/internal/dispatch"
	"github.com/washpoint/washpoint-backend/internal/jobs"
	"github.com/washpoint/washpoint-backend/pkg/db/models"
	"github.com/washpoint/washpoint-backend/pkg/enums"
	pkgerrors "github.com/washpoint/washpoint-backend/pkg/errors"
	"github.com/washpoint/washpoint-backend/pkg/logger"
)

type createJobRequest struct {
	CompanyID          int64   `json:"companyId" validate:"required,min=1"`
	Base               string  `json:"base" validate:"required"`
	Tip                string  `json:"tip"`
	PlatformFee        string  `json:"platformFee"`
	Package            string  `json:"package" validate:"required,oneof=basic deluxe custom"`
	Currency           string  `json:"currency"`
	Lat                float64 `json:"lat" validate:"required,latitude"`
	Lng                float64 `json:"lng" validate:"required,longitude"`
	Address            string  `json:"address" validate:"required,max=500"`
	RequestedCleanerID *int64  `json:"requestedCleanerId"`
}

// CreateJob books a wash for the authenticated customer.
func CreateJob(svc jobs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "jobs service unavailable"))
			return
		}

		customerID := middleware.CustomerIDFromContext(r.Context())
		if customerID <= 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "customer identity required"))
			return
		}

		var req createJobRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		base, err := parseAmount(req.Base, "base")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tip, err := parseOptionalAmount(req.Tip, "tip")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		platformFee, err := parseOptionalAmount(req.PlatformFee, "platformFee")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		job, err := svc.Create(r.Context(), jobs.CreateJobInput{
			CompanyID:          req.CompanyID,
			CustomerID:         customerID,
			Base:               base,
			Tip:                tip,
			PlatformFee:        platformFee,
			Package:            enums.PackageType(req.Package),
			Currency:           enums.Currency(req.Currency),
			Lat:                req.Lat,
			Lng:                req.Lng,
			Address:            req.Address,
			RequestedCleanerID: req.RequestedCleanerID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toJobResponse(job))
	}
}

// GetJob returns one job, visible to its customer, its cleaner and its
// company.
func GetJob(svc jobs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "jobs service unavailable"))
			return
		}

		jobID, err := validators.ParseIDParam(r, "jobId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		job, err := svc.Get(r.Context(), jobID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !canViewJob(r, job.CustomerID, job.CleanerID, job.CompanyID) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "job is not visible to this account"))
			return
		}
		responses.WriteSuccess(w, toJobResponse(job))
	}
}

// ListMyJobs returns the authenticated customer's jobs.
func ListMyJobs(svc jobs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "jobs service unavailable"))
			return
		}

		customerID := middleware.CustomerIDFromContext(r.Context())
		if customerID <= 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "customer identity required"))
			return
		}

		list, err := svc.ListByCustomer(r.Context(), customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toJobResponses(list))
	}
}

// AcceptJob claims a pool job for the authenticated cleaner. Losing the race
// answers 409, not 500: contention is an expected outcome.
func AcceptJob(svc jobs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "jobs service unavailable"))
			return
		}

		cleanerID := middleware.CleanerIDFromContext(r.Context())
		if cleanerID <= 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "cleaner identity required"))
			return
		}
		jobID, err := validators.ParseIDParam(r, "jobId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		job, accepted, err := svc.Accept(r.Context(), jobID, cleanerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !accepted {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeConflict, "job is no longer available"))
			return
		}
		responses.WriteSuccess(w, toJobResponse(job))
	}
}

// StartJob marks an assigned job in progress.
func StartJob(svc jobs.Service, logg *logger.Logger) http.HandlerFunc {
	return cleanerTransition(svc, logg, svc.Start)
}

// CompleteJob finishes an in-progress job and frees the cleaner.
func CompleteJob(svc jobs.Service, logg *logger.Logger) http.HandlerFunc {
	return cleanerTransition(svc, logg, svc.Complete)
}

func cleanerTransition(svc jobs.Service, logg *logger.Logger, fn func(ctx context.Context, jobID, cleanerID int64) (*models.Job, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "jobs service unavailable"))
			return
		}

		cleanerID := middleware.CleanerIDFromContext(r.Context())
		if cleanerID <= 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "cleaner identity required"))
			return
		}
		jobID, err := validators.ParseIDParam(r, "jobId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		job, err := fn(r.Context(), jobID, cleanerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toJobResponse(job))
	}
}

// CancelJob cancels a job on the customer's behalf.
func CancelJob(svc jobs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "jobs service unavailable"))
			return
		}

		jobID, err := validators.ParseIDParam(r, "jobId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		current, err := svc.Get(r.Context(), jobID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !canViewJob(r, current.CustomerID, nil, current.CompanyID) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "job is not visible to this account"))
			return
		}

		job, err := svc.Cancel(r.Context(), jobID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toJobResponse(job))
	}
}

// RefundJob runs the manual, complaint-driven refund. Company scope only.
func RefundJob(svc jobs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "jobs service unavailable"))
			return
		}

		companyID := middleware.CompanyIDFromContext(r.Context())
		if companyID <= 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "company identity required"))
			return
		}
		jobID, err := validators.ParseIDParam(r, "jobId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		current, err := svc.Get(r.Context(), jobID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if current.CompanyID != companyID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "job does not belong to company"))
			return
		}

		job, err := svc.Refund(r.Context(), jobID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toJobResponse(job))
	}
}

// AvailableJobs lists the pool jobs the authenticated cleaner may claim.
func AvailableJobs(engine *dispatch.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if engine == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dispatch engine unavailable"))
			return
		}

		cleanerID := middleware.CleanerIDFromContext(r.Context())
		if cleanerID <= 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "cleaner identity required"))
			return
		}

		list, err := engine.AvailableJobs(r.Context(), cleanerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toJobResponses(list))
	}
}

func canViewJob(r *http.Request, customerID int64, cleanerID *int64, companyID int64) bool {
	ctx := r.Context()
	if id := middleware.CustomerIDFromContext(ctx); id > 0 && id == customerID {
		return true
	}
	if id := middleware.CleanerIDFromContext(ctx); id > 0 && cleanerID != nil && id == *cleanerID {
		return true
	}
	if id := middleware.CompanyIDFromContext(ctx); id > 0 && id == companyID {
		return true
	}
	return false
}

func parseAmount(raw, field string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "amount must be a decimal string").WithDetails(map[string]any{"field": field})
	}
	return value, nil
}

func parseOptionalAmount(raw, field string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return parseAmount(raw, field)
}
