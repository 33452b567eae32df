package finance

import (
	"context"
	"time"

	"github.com/washpoint/washpoint-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository persists financial records and transaction rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	// GetOrCreateRecord returns the job's financial record, creating it on
	// first call. The unique index on job_id makes this race-safe.
	GetOrCreateRecord(ctx context.Context, record *models.FinancialRecord) (*models.FinancialRecord, error)
	FindRecordByJob(ctx context.Context, jobID int64) (*models.FinancialRecord, error)
	// SetReceiptIfAbsent writes the receipt reference only when none exists
	// yet and reports whether this call won the write.
	SetReceiptIfAbsent(ctx context.Context, jobID int64, receiptRef string) (bool, error)
	SetCleaner(ctx context.Context, jobID, cleanerID int64) error
	MarkRefunded(ctx context.Context, jobID int64, at time.Time) error

	CreateTransaction(ctx context.Context, txn *models.Transaction) (*models.Transaction, error)
	ListTransactionsByJob(ctx context.Context, jobID int64) ([]models.Transaction, error)
}
