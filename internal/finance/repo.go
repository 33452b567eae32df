package finance

import (
	"context"
	"time"

	"github.com/washpoint/washpoint-backend/pkg/db/models"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a finance repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetOrCreateRecord(ctx context.Context, record *models.FinancialRecord) (*models.FinancialRecord, error) {
	err := r.db.WithContext(ctx).
		Where("job_id = ?", record.JobID).
		FirstOrCreate(record).Error
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *repository) FindRecordByJob(ctx context.Context, jobID int64) (*models.FinancialRecord, error) {
	var record models.FinancialRecord
	err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) SetReceiptIfAbsent(ctx context.Context, jobID int64, receiptRef string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.FinancialRecord{}).
		Where("job_id = ? AND receipt_ref IS NULL", jobID).
		Update("receipt_ref", receiptRef)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) SetCleaner(ctx context.Context, jobID, cleanerID int64) error {
	return r.db.WithContext(ctx).
		Model(&models.FinancialRecord{}).
		Where("job_id = ?", jobID).
		Update("cleaner_id", cleanerID).Error
}

func (r *repository) MarkRefunded(ctx context.Context, jobID int64, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.FinancialRecord{}).
		Where("job_id = ?", jobID).
		Update("refunded_at", at).Error
}

func (r *repository) CreateTransaction(ctx context.Context, txn *models.Transaction) (*models.Transaction, error) {
	if err := r.db.WithContext(ctx).Create(txn).Error; err != nil {
		return nil, err
	}
	return txn, nil
}

func (r *repository) ListTransactionsByJob(ctx context.Context, jobID int64) ([]models.Transaction, error) {
	var txns []models.Transaction
	err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("created_at ASC").
		Find(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}
