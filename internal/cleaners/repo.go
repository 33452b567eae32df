package cleaners

import (
	"context"

	"github.com/washpoint/washpoint-backend/pkg/db"
	"github.com/washpoint/washpoint-backend/pkg/db/models"
	"github.com/washpoint/washpoint-backend/pkg/enums"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a cleaners repository bound to the provided DB.
func NewRepository(gdb *gorm.DB) Repository {
	return &repository{db: gdb}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, cleaner *models.Cleaner) (*models.Cleaner, error) {
	if err := r.db.WithContext(ctx).Create(cleaner).Error; err != nil {
		return nil, err
	}
	return cleaner, nil
}

func (r *repository) FindByID(ctx context.Context, id int64) (*models.Cleaner, error) {
	var cleaner models.Cleaner
	err := r.db.WithContext(ctx).
		Preload("Geofences").
		Where("id = ?", id).
		First(&cleaner).Error
	if err != nil {
		return nil, err
	}
	return &cleaner, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id int64) (*models.Cleaner, error) {
	var cleaner models.Cleaner
	err := db.ForUpdate(r.db.WithContext(ctx)).
		Where("id = ?", id).
		First(&cleaner).Error
	if err != nil {
		return nil, err
	}
	return &cleaner, nil
}

func (r *repository) ListByCompany(ctx context.Context, companyID int64) ([]models.Cleaner, error) {
	var list []models.Cleaner
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("created_at ASC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (r *repository) ListOnDutyByCompany(ctx context.Context, companyID int64) ([]models.Cleaner, error) {
	var list []models.Cleaner
	err := r.db.WithContext(ctx).
		Preload("Geofences").
		Where("company_id = ? AND active = ? AND status = ?", companyID, true, enums.CleanerStatusOnDuty).
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (r *repository) Update(ctx context.Context, id int64, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Cleaner{}).
		Where("id = ?", id).
		Updates(updates).Error
}
