package jobs

import (
	"context"
	"time"

	"github.com/washpoint/washpoint-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository persists jobs. ForUpdate variants take the row lock that
// serializes acceptance, reconciliation and the expiry sweep against each
// other.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, job *models.Job) (*models.Job, error)
	FindByID(ctx context.Context, id int64) (*models.Job, error)
	FindByIDForUpdate(ctx context.Context, id int64) (*models.Job, error)
	FindByPaymentRef(ctx context.Context, ref string) (*models.Job, error)
	FindByPaymentRefForUpdate(ctx context.Context, ref string) (*models.Job, error)
	// FindPaidBefore lists unclaimed paid jobs created at or before the
	// cutoff, the expiry sweep's candidate set.
	FindPaidBefore(ctx context.Context, cutoff time.Time) ([]models.Job, error)
	ListPoolByCompany(ctx context.Context, companyID int64) ([]models.Job, error)
	ListByCustomer(ctx context.Context, customerID int64) ([]models.Job, error)
	Update(ctx context.Context, id int64, updates map[string]any) error
}
