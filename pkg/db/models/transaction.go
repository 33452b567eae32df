package models

import (
	"time"

	"github.com/washpoint/washpoint-backend/pkg/enums"
)

// Transaction records one money movement against a job (charge on payment,
// refund/debit on money returned).
type Transaction struct {
	ID         int64                 `gorm:"column:id;primaryKey;autoIncrement"`
	JobID      int64                 `gorm:"column:job_id;not null;index"`
	Type       enums.TransactionType `gorm:"column:type;type:text;not null"`
	AmountFils int64                 `gorm:"column:amount_fils;not null"`
	Reference  string                `gorm:"column:reference;not null"`
	CreatedAt  time.Time             `gorm:"column:created_at;autoCreateTime"`
}
