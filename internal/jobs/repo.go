package jobs

import (
	"context"
	"time"

	"github.com/washpoint/washpoint-backend/pkg/db"
	"github.com/washpoint/washpoint-backend/pkg/db/models"
	"github.com/washpoint/washpoint-backend/pkg/enums"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a jobs repository bound to the provided DB.
func NewRepository(gdb *gorm.DB) Repository {
	return &repository{db: gdb}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, job *models.Job) (*models.Job, error) {
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return nil, err
	}
	return job, nil
}

func (r *repository) FindByID(ctx context.Context, id int64) (*models.Job, error) {
	var job models.Job
	err := r.db.WithContext(ctx).
		Preload("FinancialRecord").
		Where("id = ?", id).
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id int64) (*models.Job, error) {
	var job models.Job
	err := db.ForUpdate(r.db.WithContext(ctx)).
		Where("id = ?", id).
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *repository) FindByPaymentRef(ctx context.Context, ref string) (*models.Job, error) {
	var job models.Job
	err := r.db.WithContext(ctx).
		Where("payment_ref = ?", ref).
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *repository) FindByPaymentRefForUpdate(ctx context.Context, ref string) (*models.Job, error) {
	var job models.Job
	err := db.ForUpdate(r.db.WithContext(ctx)).
		Where("payment_ref = ?", ref).
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *repository) FindPaidBefore(ctx context.Context, cutoff time.Time) ([]models.Job, error) {
	var jobs []models.Job
	err := r.db.WithContext(ctx).
		Where("status = ? AND cleaner_id IS NULL AND created_at <= ?", enums.JobStatusPaid, cutoff).
		Order("created_at ASC").
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *repository) ListPoolByCompany(ctx context.Context, companyID int64) ([]models.Job, error) {
	var jobs []models.Job
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND status = ? AND cleaner_id IS NULL AND assignment_mode = ?",
			companyID, enums.JobStatusPaid, enums.AssignmentModePool).
		Order("created_at ASC").
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *repository) ListByCustomer(ctx context.Context, customerID int64) ([]models.Job, error) {
	var jobs []models.Job
	err := r.db.WithContext(ctx).
		Preload("FinancialRecord").
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *repository) Update(ctx context.Context, id int64, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ?", id).
		Updates(updates).Error
}
