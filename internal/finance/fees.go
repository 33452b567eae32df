package finance

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/washpoint/washpoint-backend/pkg/config"
	"github.com/washpoint/washpoint-backend/pkg/enums"
)

// FeeBreakdown carries every fee component of a booking. Each component is
// rounded to two decimal places before summation; the total is the sum of
// the rounded components, never a re-rounded raw sum.
type FeeBreakdown struct {
	Base           decimal.Decimal
	Tip            decimal.Decimal
	PlatformFee    decimal.Decimal
	BaseTax        decimal.Decimal
	TipTax         decimal.Decimal
	PlatformFeeTax decimal.Decimal
	ProcessingFee  decimal.Decimal
	Total          decimal.Decimal
}

// Fils converts a monetary amount to minor units for storage.
func Fils(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// Calculator computes fee breakdowns from the configured rates.
type Calculator struct {
	taxRate           decimal.Decimal
	processingRate    decimal.Decimal
	basicPlatformFee  decimal.Decimal
	deluxePlatformFee decimal.Decimal
}

// NewCalculator parses the configured rates once at startup.
func NewCalculator(cfg config.FeesConfig) (*Calculator, error) {
	taxRate, err := decimal.NewFromString(cfg.TaxRate)
	if err != nil {
		return nil, fmt.Errorf("invalid tax rate %q: %w", cfg.TaxRate, err)
	}
	processingRate, err := decimal.NewFromString(cfg.ProcessingRate)
	if err != nil {
		return nil, fmt.Errorf("invalid processing rate %q: %w", cfg.ProcessingRate, err)
	}
	basicFee, err := decimal.NewFromString(cfg.BasicPlatformFee)
	if err != nil {
		return nil, fmt.Errorf("invalid basic platform fee %q: %w", cfg.BasicPlatformFee, err)
	}
	deluxeFee, err := decimal.NewFromString(cfg.DeluxePlatformFee)
	if err != nil {
		return nil, fmt.Errorf("invalid deluxe platform fee %q: %w", cfg.DeluxePlatformFee, err)
	}
	return &Calculator{
		taxRate:           taxRate,
		processingRate:    processingRate,
		basicPlatformFee:  basicFee,
		deluxePlatformFee: deluxeFee,
	}, nil
}

// ComputeFees derives the full breakdown for a booking. Fixed packages fall
// back to their default platform fee when none is given; custom bookings use
// the fee as passed. Tax applies per component, the processing fee applies
// to the customer-facing amount (base + tip).
func (c *Calculator) ComputeFees(base, tip, platformFee decimal.Decimal, pkg enums.PackageType) FeeBreakdown {
	if platformFee.IsZero() {
		switch pkg {
		case enums.PackageTypeBasic:
			platformFee = c.basicPlatformFee
		case enums.PackageTypeDeluxe:
			platformFee = c.deluxePlatformFee
		}
	}

	breakdown := FeeBreakdown{
		Base:           base.Round(2),
		Tip:            tip.Round(2),
		PlatformFee:    platformFee.Round(2),
		BaseTax:        base.Mul(c.taxRate).Round(2),
		TipTax:         tip.Mul(c.taxRate).Round(2),
		PlatformFeeTax: platformFee.Mul(c.taxRate).Round(2),
		ProcessingFee:  base.Add(tip).Mul(c.processingRate).Round(2),
	}
	breakdown.Total = breakdown.Base.
		Add(breakdown.Tip).
		Add(breakdown.PlatformFee).
		Add(breakdown.BaseTax).
		Add(breakdown.TipTax).
		Add(breakdown.PlatformFeeTax).
		Add(breakdown.ProcessingFee)
	return breakdown
}
