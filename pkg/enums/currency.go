package enums

// Currency is the ISO 4217 code amounts are denominated in. Monetary columns
// store minor units (fils for AED).
type Currency string

const (
	CurrencyAED Currency = "AED"
	CurrencyUSD Currency = "USD"
)

func (c Currency) IsValid() bool {
	return c == CurrencyAED || c == CurrencyUSD
}
