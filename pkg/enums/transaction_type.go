package enums

import "fmt"

// TransactionType classifies money movement rows.
type TransactionType string

const (
	TransactionTypeCharge TransactionType = "charge"
	TransactionTypeRefund TransactionType = "refund"
)

func (t TransactionType) IsValid() bool {
	return t == TransactionTypeCharge || t == TransactionTypeRefund
}

func ParseTransactionType(raw string) (TransactionType, error) {
	typ := TransactionType(raw)
	if !typ.IsValid() {
		return "", fmt.Errorf("invalid transaction type %q", raw)
	}
	return typ, nil
}
