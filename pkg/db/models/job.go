package models

import (
	"time"

	"github.com/washpoint/washpoint-backend/pkg/enums"
)

// Job is the central marketplace entity. Status, cleaner reference and the
// cleaner's busy flag only change together, inside one transaction holding
// the job row lock.
//
// Invariants: CleanerID is non-nil exactly when the status is assigned,
// in_progress or completed; a job carries at most one cleaner for its whole
// lifetime; PaymentRef and RefundRef are each written at most once.
type Job struct {
	ID         int64 `gorm:"column:id;primaryKey;autoIncrement"`
	CompanyID  int64 `gorm:"column:company_id;not null;index"`
	CustomerID int64 `gorm:"column:customer_id;not null;index"`

	CleanerID          *int64               `gorm:"column:cleaner_id"`
	RequestedCleanerID *int64               `gorm:"column:requested_cleaner_id"`
	AssignmentMode     enums.AssignmentMode `gorm:"column:assignment_mode;type:text;not null;default:'pool'"`

	Status enums.JobStatus `gorm:"column:status;type:text;not null;default:'pending_payment';index"`

	BaseFils        int64             `gorm:"column:base_fils;not null"`
	TipFils         int64             `gorm:"column:tip_fils;not null;default:0"`
	PlatformFeeFils int64             `gorm:"column:platform_fee_fils;not null;default:0"`
	TotalFils       int64             `gorm:"column:total_fils;not null;default:0"`
	Currency        enums.Currency    `gorm:"column:currency;type:text;not null;default:'AED'"`
	Package         enums.PackageType `gorm:"column:package;type:text;not null;default:'basic'"`

	PaymentRef *string `gorm:"column:payment_ref;uniqueIndex"`
	RefundRef  *string `gorm:"column:refund_ref"`

	Lat     float64 `gorm:"column:lat;not null"`
	Lng     float64 `gorm:"column:lng;not null"`
	Address string  `gorm:"column:address;not null"`

	AssignedAt  *time.Time `gorm:"column:assigned_at"`
	AcceptedAt  *time.Time `gorm:"column:accepted_at"`
	StartedAt   *time.Time `gorm:"column:started_at"`
	CompletedAt *time.Time `gorm:"column:completed_at"`
	RefundedAt  *time.Time `gorm:"column:refunded_at"`

	Cleaner         *Cleaner         `gorm:"foreignKey:CleanerID"`
	FinancialRecord *FinancialRecord `gorm:"foreignKey:JobID"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
