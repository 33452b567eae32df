package controllers

import (
	"net/http"

	"github.com/washpoint/washpoint-backend/api/middleware"
	"github.com/washpoint/washpoint-backend/api/responses"
	"github.com/washpoint/washpoint-backend/api/validators"
	"github.com/washpoint/washpoint-backend/internal/geofence"
	"github.com/washpoint/washpoint-backend/pkg/db/models"
	pkgerrors "github.com/washpoint/washpoint-backend/pkg/errors"
	"github.com/washpoint/washpoint-backend/pkg/logger"
	"github.com/washpoint/washpoint-backend/pkg/types"
)

type createGeofenceRequest struct {
	Name     string      `json:"name" validate:"required,max=200"`
	Vertices [][]float64 `json:"vertices" validate:"required,min=3,dive,len=2"`
}

// CreateGeofence adds a named service-area polygon for the company.
func CreateGeofence(repo geofence.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "geofence repository unavailable"))
			return
		}

		companyID := middleware.CompanyIDFromContext(r.Context())
		if companyID <= 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "company identity required"))
			return
		}

		var req createGeofenceRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		polygon := make(types.Polygon, 0, len(req.Vertices))
		for _, pair := range req.Vertices {
			lat, lng := pair[0], pair[1]
			if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "vertex out of range"))
				return
			}
			polygon = append(polygon, types.Vertex{lat, lng})
		}

		fence, err := repo.Create(r.Context(), &models.Geofence{
			CompanyID: companyID,
			Name:      req.Name,
			Vertices:  polygon,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create geofence"))
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toGeofenceResponse(fence))
	}
}

// ListGeofences lists the company's service-area polygons.
func ListGeofences(repo geofence.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "geofence repository unavailable"))
			return
		}

		companyID := middleware.CompanyIDFromContext(r.Context())
		if companyID <= 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "company identity required"))
			return
		}

		list, err := repo.ListByCompany(r.Context(), companyID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list geofences"))
			return
		}
		responses.WriteSuccess(w, toGeofenceResponses(list))
	}
}
