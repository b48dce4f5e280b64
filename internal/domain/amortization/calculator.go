// Package amortization turns a financed amount, an annual rate and a term
// into fixed monthly installments. Every function is pure; money outputs are
// rounded half-up to the currency's minor unit once, on the final value.
package amortization

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of decimal places of the currency's smallest unit.
const MoneyPlaces int32 = 2

// MaxTermMonths bounds every term the calculator accepts.
const MaxTermMonths = 120

// digits kept for rates, powers and quotients before the final rounding.
const workPrecision int32 = 28

var (
	hundred       = decimal.NewFromInt(100)
	monthsPerYear = decimal.NewFromInt(12)
)

// InvalidInputError reports a contract violation by the caller. Callers that
// pre-validate (Quote, the approval step) never see it.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("amortization: invalid %s: %s", e.Field, e.Reason)
}

// Result bundles the economics of one financing offer.
type Result struct {
	Principal      decimal.Decimal `json:"principal"`
	MonthlyPayment decimal.Decimal `json:"monthlyPayment"`
	TotalPayment   decimal.Decimal `json:"totalPayment"`
	TotalInterest  decimal.Decimal `json:"totalInterest"`
}

// MonthlyPayment returns the fixed installment for principal at
// annualRatePercent over termMonths.
func MonthlyPayment(principal, annualRatePercent decimal.Decimal, termMonths int) (decimal.Decimal, error) {
	exact, err := monthlyPaymentExact(principal, annualRatePercent, termMonths)
	if err != nil {
		return decimal.Zero, err
	}
	return roundMoney(exact), nil
}

// TotalPayment is downPayment + monthlyPayment * termMonths.
func TotalPayment(downPayment, monthlyPayment decimal.Decimal, termMonths int) decimal.Decimal {
	return roundMoney(totalPaymentExact(downPayment, monthlyPayment, termMonths))
}

// TotalInterest is totalPayment - vehiclePrice.
func TotalInterest(totalPayment, vehiclePrice decimal.Decimal) decimal.Decimal {
	return roundMoney(totalPayment.Sub(vehiclePrice))
}

// Compute finances vehiclePrice - downPayment and derives the totals from the
// unrounded installment, so the three outputs carry one rounding each.
func Compute(vehiclePrice, downPayment, annualRatePercent decimal.Decimal, termMonths int) (*Result, error) {
	principal := vehiclePrice.Sub(downPayment)
	monthly, err := monthlyPaymentExact(principal, annualRatePercent, termMonths)
	if err != nil {
		return nil, err
	}
	total := totalPaymentExact(downPayment, monthly, termMonths)
	return &Result{
		Principal:      roundMoney(principal),
		MonthlyPayment: roundMoney(monthly),
		TotalPayment:   roundMoney(total),
		TotalInterest:  roundMoney(total.Sub(vehiclePrice)),
	}, nil
}

func monthlyPaymentExact(principal, annualRatePercent decimal.Decimal, termMonths int) (decimal.Decimal, error) {
	if principal.IsNegative() {
		return decimal.Zero, &InvalidInputError{Field: "principal", Reason: "must not be negative"}
	}
	if termMonths <= 0 {
		return decimal.Zero, &InvalidInputError{Field: "termMonths", Reason: "must be positive"}
	}
	if termMonths > MaxTermMonths {
		return decimal.Zero, &InvalidInputError{Field: "termMonths", Reason: fmt.Sprintf("must be at most %d", MaxTermMonths)}
	}
	if annualRatePercent.IsNegative() {
		return decimal.Zero, &InvalidInputError{Field: "annualRatePercent", Reason: "must not be negative"}
	}

	n := decimal.NewFromInt(int64(termMonths))
	if annualRatePercent.IsZero() {
		return principal.DivRound(n, workPrecision), nil
	}

	r := monthlyRate(annualRatePercent)
	growth, err := decimal.NewFromInt(1).Add(r).PowWithPrecision(n, workPrecision)
	if err != nil {
		return decimal.Zero, &InvalidInputError{Field: "termMonths", Reason: err.Error()}
	}
	numerator := principal.Mul(r).Mul(growth)
	return numerator.DivRound(growth.Sub(decimal.NewFromInt(1)), workPrecision), nil
}

func totalPaymentExact(downPayment, monthlyPayment decimal.Decimal, termMonths int) decimal.Decimal {
	return downPayment.Add(monthlyPayment.Mul(decimal.NewFromInt(int64(termMonths))))
}

func monthlyRate(annualRatePercent decimal.Decimal) decimal.Decimal {
	return annualRatePercent.DivRound(hundred.Mul(monthsPerYear), workPrecision)
}

// half away from zero, which is half-up for the non-negative amounts here.
func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}
