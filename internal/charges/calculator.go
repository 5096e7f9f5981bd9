// Package charges computes bill totals: subtotal, VAT, tourism levy, service
// charge and discount. It performs no I/O.
package charges

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/oomaallah/hotelops/internal/shared"
)

// Mode selects the VAT base.
type Mode string

const (
	// ModeFlat applies the configured VAT rate to the whole subtotal.
	ModeFlat Mode = "flat"
	// ModePerLine applies each line's own tax rate, falling back to the VAT rate.
	ModePerLine Mode = "per_line"
)

// Valid reports whether the mode is known.
func (m Mode) Valid() bool {
	return m == ModeFlat || m == ModePerLine
}

// Rates holds the fractional VAT and tourism levy rates.
type Rates struct {
	VAT  float64
	Levy float64
}

// DefaultRates are the rates used when configuration does not override them.
var DefaultRates = Rates{VAT: 0.165, Levy: 0.01}

// Line is one priced line of an order or bill.
type Line struct {
	UnitPrice float64
	Quantity  int
	TaxRate   *float64
}

// Input carries everything Compute needs.
type Input struct {
	Lines         []Line
	Discount      float64
	ServiceCharge float64
	Rates         Rates
	Mode          Mode
}

// Result holds the computed monetary fields, each rounded to 2 dp.
type Result struct {
	Subtotal      float64
	TaxAmount     float64
	TourismLevy   float64
	ServiceCharge float64
	Discount      float64
	Total         float64
}

// Compute evaluates
//
//	total = subtotal - discount + service_charge + tax_amount + tourism_levy
//
// with half-up rounding to 2 dp on each derived amount.
func Compute(in Input) (Result, error) {
	if err := validate(in); err != nil {
		return Result{}, err
	}
	vat := decimal.NewFromFloat(in.Rates.VAT)
	levy := decimal.NewFromFloat(in.Rates.Levy)

	subtotal := decimal.Zero
	lineTax := decimal.Zero
	for _, l := range in.Lines {
		amount := decimal.NewFromFloat(l.UnitPrice).Mul(decimal.NewFromInt(int64(l.Quantity)))
		subtotal = subtotal.Add(amount)
		rate := vat
		if l.TaxRate != nil {
			rate = decimal.NewFromFloat(*l.TaxRate)
		}
		lineTax = lineTax.Add(amount.Mul(rate))
	}

	discount := decimal.NewFromFloat(in.Discount)
	if discount.GreaterThan(subtotal) {
		return Result{}, fmt.Errorf("%w: discount %s exceeds subtotal %s", shared.ErrValidation, discount.StringFixed(2), subtotal.StringFixed(2))
	}
	service := decimal.NewFromFloat(in.ServiceCharge)

	var tax decimal.Decimal
	switch mode(in.Mode) {
	case ModePerLine:
		tax = lineTax.Round(2)
	default:
		tax = subtotal.Mul(vat).Round(2)
	}
	levyAmount := subtotal.Mul(levy).Round(2)
	total := subtotal.Sub(discount).Add(service).Add(tax).Add(levyAmount).Round(2)

	return Result{
		Subtotal:      Float(subtotal.Round(2)),
		TaxAmount:     Float(tax),
		TourismLevy:   Float(levyAmount),
		ServiceCharge: Float(service.Round(2)),
		Discount:      Float(discount.Round(2)),
		Total:         Float(total),
	}, nil
}

func validate(in Input) error {
	if in.Mode != "" && !in.Mode.Valid() {
		return fmt.Errorf("%w: unknown tax mode %q", shared.ErrValidation, in.Mode)
	}
	if in.Rates.VAT < 0 || in.Rates.Levy < 0 {
		return fmt.Errorf("%w: rates must be non-negative", shared.ErrValidation)
	}
	if in.Discount < 0 || in.ServiceCharge < 0 {
		return fmt.Errorf("%w: discount and service charge must be non-negative", shared.ErrValidation)
	}
	for i, l := range in.Lines {
		if l.Quantity < 1 {
			return fmt.Errorf("%w: line %d quantity must be at least 1", shared.ErrValidation, i+1)
		}
		if l.UnitPrice < 0 {
			return fmt.Errorf("%w: line %d price must be non-negative", shared.ErrValidation, i+1)
		}
		if l.TaxRate != nil && *l.TaxRate < 0 {
			return fmt.Errorf("%w: line %d tax rate must be non-negative", shared.ErrValidation, i+1)
		}
	}
	return nil
}

func mode(m Mode) Mode {
	if m == "" {
		return ModeFlat
	}
	return m
}

// Round2 rounds half away from zero to 2 dp.
func Round2(v float64) float64 {
	return Float(decimal.NewFromFloat(v).Round(2))
}

// Float converts back to float64 for storage and transport.
func Float(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
