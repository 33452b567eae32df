package models

import (
	"time"

	"github.com/washpoint/washpoint-backend/pkg/enums"
)

// FinancialRecord is the fee/tax breakdown persisted exactly once per paid
// job. The unique index on JobID backs the get-or-create existence check;
// ReceiptRef is minted with a set-if-absent update so concurrent
// confirmations cannot produce two receipts.
type FinancialRecord struct {
	ID        int64  `gorm:"column:id;primaryKey;autoIncrement"`
	JobID     int64  `gorm:"column:job_id;not null;uniqueIndex"`
	CleanerID *int64 `gorm:"column:cleaner_id"`

	BaseFils           int64 `gorm:"column:base_fils;not null"`
	TipFils            int64 `gorm:"column:tip_fils;not null;default:0"`
	PlatformFeeFils    int64 `gorm:"column:platform_fee_fils;not null;default:0"`
	BaseTaxFils        int64 `gorm:"column:base_tax_fils;not null;default:0"`
	TipTaxFils         int64 `gorm:"column:tip_tax_fils;not null;default:0"`
	PlatformFeeTaxFils int64 `gorm:"column:platform_fee_tax_fils;not null;default:0"`
	ProcessingFeeFils  int64 `gorm:"column:processing_fee_fils;not null;default:0"`
	TotalFils          int64 `gorm:"column:total_fils;not null"`

	Currency   enums.Currency `gorm:"column:currency;type:text;not null;default:'AED'"`
	ReceiptRef *string        `gorm:"column:receipt_ref"`
	RefundedAt *time.Time     `gorm:"column:refunded_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
