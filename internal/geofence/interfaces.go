package geofence

import (
	"context"

	"github.com/washpoint/washpoint-backend/pkg/db/models"
	"github.com/washpoint/washpoint-backend/pkg/types"
	"gorm.io/gorm"
)

// Repository exposes geofence reads and assignment writes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, fence *models.Geofence) (*models.Geofence, error)
	FindByID(ctx context.Context, id int64) (*models.Geofence, error)
	ListByCompany(ctx context.Context, companyID int64) ([]models.Geofence, error)
	ListPolygonsForCleaner(ctx context.Context, cleanerID int64) ([]types.Polygon, error)
	ReplaceCleanerAssignments(ctx context.Context, cleanerID int64, geofenceIDs []int64) error
}
