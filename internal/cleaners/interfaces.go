package cleaners

import (
	"context"

	"github.com/washpoint/washpoint-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository exposes cleaner reads and writes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, cleaner *models.Cleaner) (*models.Cleaner, error)
	FindByID(ctx context.Context, id int64) (*models.Cleaner, error)
	FindByIDForUpdate(ctx context.Context, id int64) (*models.Cleaner, error)
	ListByCompany(ctx context.Context, companyID int64) ([]models.Cleaner, error)
	ListOnDutyByCompany(ctx context.Context, companyID int64) ([]models.Cleaner, error)
	Update(ctx context.Context, id int64, updates map[string]any) error
}
