package amortization

import "github.com/shopspring/decimal"

// Installment is one row of an amortization table.
type Installment struct {
	Month     int             `json:"month"`
	Payment   decimal.Decimal `json:"payment"`
	Interest  decimal.Decimal `json:"interest"`
	Principal decimal.Decimal `json:"principal"`
	Balance   decimal.Decimal `json:"balance"`
}

// Schedule splits each installment into interest and principal. Rows carry
// minor-unit amounts; the final row absorbs the residue so the balance closes
// at exactly zero.
func Schedule(principal, annualRatePercent decimal.Decimal, termMonths int) ([]Installment, error) {
	payment, err := MonthlyPayment(principal, annualRatePercent, termMonths)
	if err != nil {
		return nil, err
	}

	r := decimal.Zero
	if !annualRatePercent.IsZero() {
		r = monthlyRate(annualRatePercent)
	}

	balance := roundMoney(principal)
	rows := make([]Installment, 0, termMonths)
	for month := 1; month <= termMonths; month++ {
		interest := roundMoney(balance.Mul(r))
		amortized := payment.Sub(interest)
		rowPayment := payment
		if month == termMonths || amortized.GreaterThan(balance) {
			amortized = balance
			rowPayment = amortized.Add(interest)
		}
		balance = balance.Sub(amortized)
		rows = append(rows, Installment{
			Month:     month,
			Payment:   rowPayment,
			Interest:  interest,
			Principal: amortized,
			Balance:   balance,
		})
		if balance.IsZero() && month < termMonths {
			break
		}
	}
	return rows, nil
}
