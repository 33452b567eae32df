package geofence

import (
	"context"

	"github.com/washpoint/washpoint-backend/pkg/db/models"
	"github.com/washpoint/washpoint-backend/pkg/types"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a geofence repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, fence *models.Geofence) (*models.Geofence, error) {
	if err := r.db.WithContext(ctx).Create(fence).Error; err != nil {
		return nil, err
	}
	return fence, nil
}

func (r *repository) FindByID(ctx context.Context, id int64) (*models.Geofence, error) {
	var fence models.Geofence
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&fence).Error
	if err != nil {
		return nil, err
	}
	return &fence, nil
}

func (r *repository) ListByCompany(ctx context.Context, companyID int64) ([]models.Geofence, error) {
	var fences []models.Geofence
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("created_at ASC").
		Find(&fences).Error
	if err != nil {
		return nil, err
	}
	return fences, nil
}

func (r *repository) ListPolygonsForCleaner(ctx context.Context, cleanerID int64) ([]types.Polygon, error) {
	var fences []models.Geofence
	err := r.db.WithContext(ctx).
		Joins("JOIN cleaner_geofences cg ON cg.geofence_id = geofences.id").
		Where("cg.cleaner_id = ?", cleanerID).
		Find(&fences).Error
	if err != nil {
		return nil, err
	}
	polygons := make([]types.Polygon, 0, len(fences))
	for _, fence := range fences {
		polygons = append(polygons, fence.Vertices)
	}
	return polygons, nil
}

func (r *repository) ReplaceCleanerAssignments(ctx context.Context, cleanerID int64, geofenceIDs []int64) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("cleaner_id = ?", cleanerID).Delete(&models.CleanerGeofence{}).Error; err != nil {
		return err
	}
	if len(geofenceIDs) == 0 {
		return nil
	}
	joins := make([]models.CleanerGeofence, 0, len(geofenceIDs))
	for _, fenceID := range geofenceIDs {
		joins = append(joins, models.CleanerGeofence{CleanerID: cleanerID, GeofenceID: fenceID})
	}
	return db.Create(&joins).Error
}
