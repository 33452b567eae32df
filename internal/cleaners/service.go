package cleaners

import (
	"context"
	"fmt"

	pkgerrors "github.com/washpoint/washpoint-backend/pkg/errors"

	"github.com/washpoint/washpoint-backend/internal/geofence"
	"github.com/washpoint/washpoint-backend/pkg/db"
	"github.com/washpoint/washpoint-backend/pkg/db/models"
	"github.com/washpoint/washpoint-backend/pkg/enums"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines cleaner-facing operations outside the job lifecycle.
type Service interface {
	SetDutyStatus(ctx context.Context, cleanerID int64, status enums.CleanerStatus) (*models.Cleaner, error)
	UpdateLocation(ctx context.Context, cleanerID int64, lat, lng float64) error
	AssignGeofences(ctx context.Context, input AssignGeofencesInput) error
	Get(ctx context.Context, cleanerID int64) (*models.Cleaner, error)
	ListByCompany(ctx context.Context, companyID int64) ([]models.Cleaner, error)
}

// AssignGeofencesInput replaces a cleaner's service-area configuration.
// AssignAll overrides explicit assignments entirely.
type AssignGeofencesInput struct {
	CleanerID   int64
	CompanyID   int64
	GeofenceIDs []int64
	AssignAll   bool
}

type service struct {
	repo     Repository
	geofence geofence.Repository
	tx       txRunner
}

// NewService builds a cleaners service with the required dependencies.
func NewService(repo Repository, fences geofence.Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cleaners repository required")
	}
	if fences == nil {
		return nil, fmt.Errorf("geofence repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, geofence: fences, tx: tx}, nil
}

// SetDutyStatus moves a cleaner between off_duty and on_duty. Busy is owned
// by the job lifecycle and can never be set here.
func (s *service) SetDutyStatus(ctx context.Context, cleanerID int64, status enums.CleanerStatus) (*models.Cleaner, error) {
	if cleanerID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cleaner id required")
	}
	if status == enums.CleanerStatusBusy {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "busy is set by job transitions only")
	}
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid duty status")
	}

	var result *models.Cleaner
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cleaner, err := repo.FindByIDForUpdate(ctx, cleanerID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cleaner not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cleaner")
		}
		if !cleaner.Active {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cleaner is deactivated")
		}
		if cleaner.Status == enums.CleanerStatusBusy {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cleaner is on an active job")
		}
		if cleaner.Status == status {
			result = cleaner
			return nil
		}
		if err := repo.Update(ctx, cleaner.ID, map[string]any{"status": status}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update duty status")
		}
		cleaner.Status = status
		result = cleaner
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) UpdateLocation(ctx context.Context, cleanerID int64, lat, lng float64) error {
	if cleanerID <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cleaner id required")
	}
	if err := s.repo.Update(ctx, cleanerID, map[string]any{"lat": lat, "lng": lng}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update location")
	}
	return nil
}

func (s *service) AssignGeofences(ctx context.Context, input AssignGeofencesInput) error {
	if input.CleanerID <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cleaner id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		fences := s.geofence.WithTx(tx)

		cleaner, err := repo.FindByIDForUpdate(ctx, input.CleanerID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cleaner not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cleaner")
		}
		if input.CompanyID != 0 && cleaner.CompanyID != input.CompanyID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "cleaner does not belong to company")
		}

		if input.AssignAll {
			// the marker replaces explicit assignments, clear them so a later
			// un-set falls back to an empty service area, not a stale one
			if err := fences.ReplaceCleanerAssignments(ctx, cleaner.ID, nil); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear geofence assignments")
			}
			return wrapUpdate(repo.Update(ctx, cleaner.ID, map[string]any{"assign_all_geofences": true}))
		}

		for _, fenceID := range input.GeofenceIDs {
			fence, err := fences.FindByID(ctx, fenceID)
			if err != nil {
				if db.IsNotFound(err) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "geofence not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load geofence")
			}
			if fence.CompanyID != cleaner.CompanyID {
				return pkgerrors.New(pkgerrors.CodeForbidden, "geofence belongs to another company")
			}
		}

		if err := fences.ReplaceCleanerAssignments(ctx, cleaner.ID, input.GeofenceIDs); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace geofence assignments")
		}
		return wrapUpdate(repo.Update(ctx, cleaner.ID, map[string]any{"assign_all_geofences": false}))
	})
}

func (s *service) Get(ctx context.Context, cleanerID int64) (*models.Cleaner, error) {
	cleaner, err := s.repo.FindByID(ctx, cleanerID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cleaner not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cleaner")
	}
	return cleaner, nil
}

func (s *service) ListByCompany(ctx context.Context, companyID int64) ([]models.Cleaner, error) {
	if companyID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "company id required")
	}
	list, err := s.repo.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cleaners")
	}
	return list, nil
}

func wrapUpdate(err error) error {
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cleaner")
	}
	return nil
}
