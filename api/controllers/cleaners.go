package controllers

import (
	"net/http"

	"github.com/washpoint/washpoint-backend/api/middleware"
	"github.com/washpoint/washpoint-backend/api/responses"
	"github.com/washpoint/washpoint-backend/api/validators"
	"github.com/washpoint/washpoint-backend/internal/cleaners"
	"github.com/washpoint/washpoint-backend/pkg/enums"
	pkgerrors "github.com/washpoint/washpoint-backend/pkg/errors"
	"github.com/washpoint/washpoint-backend/pkg/logger"
)

type dutyStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=off_duty on_duty"`
}

// SetDutyStatus flips the authenticated cleaner between on and off duty.
// Busy is never a valid target: only the job lifecycle sets it.
func SetDutyStatus(svc cleaners.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cleaners service unavailable"))
			return
		}

		cleanerID := middleware.CleanerIDFromContext(r.Context())
		if cleanerID <= 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "cleaner identity required"))
			return
		}

		var req dutyStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cleaner, err := svc.SetDutyStatus(r.Context(), cleanerID, enums.CleanerStatus(req.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toCleanerResponse(cleaner))
	}
}

type locationRequest struct {
	Lat float64 `json:"lat" validate:"required,latitude"`
	Lng float64 `json:"lng" validate:"required,longitude"`
}

// UpdateLocation stores the cleaner's last reported position.
func UpdateLocation(svc cleaners.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cleaners service unavailable"))
			return
		}

		cleanerID := middleware.CleanerIDFromContext(r.Context())
		if cleanerID <= 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "cleaner identity required"))
			return
		}

		var req locationRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.UpdateLocation(r.Context(), cleanerID, req.Lat, req.Lng); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

type assignGeofencesRequest struct {
	GeofenceIDs []int64 `json:"geofenceIds"`
	AssignAll   bool    `json:"assignAll"`
}

// AssignGeofences replaces a cleaner's service-area configuration. Company
// scope only.
func AssignGeofences(svc cleaners.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cleaners service unavailable"))
			return
		}

		companyID := middleware.CompanyIDFromContext(r.Context())
		if companyID <= 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "company identity required"))
			return
		}
		cleanerID, err := validators.ParseIDParam(r, "cleanerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req assignGeofencesRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.AssignGeofences(r.Context(), cleaners.AssignGeofencesInput{
			CleanerID:   cleanerID,
			CompanyID:   companyID,
			GeofenceIDs: req.GeofenceIDs,
			AssignAll:   req.AssignAll,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

// ListCleaners lists the company's cleaners.
func ListCleaners(svc cleaners.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cleaners service unavailable"))
			return
		}

		companyID := middleware.CompanyIDFromContext(r.Context())
		if companyID <= 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "company identity required"))
			return
		}

		list, err := svc.ListByCompany(r.Context(), companyID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toCleanerResponses(list))
	}
}
