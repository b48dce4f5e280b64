package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/carmarket/backend/internal/domain/amortization"
	partnerdomain "github.com/carmarket/backend/internal/domain/partner"
	"github.com/shopspring/decimal"
)

// Reasons a quote is not computable. They describe an expected simulator
// state, so they travel in the result instead of as errors.
const (
	QuoteInvalidVehiclePrice     = "invalid_vehicle_price"
	QuoteDownPaymentBelowMinimum = "down_payment_below_minimum"
	QuoteDownPaymentAbovePrice   = "down_payment_above_price"
	QuoteTermOutOfRange          = "term_out_of_range"
	QuotePartnerInactive         = "partner_inactive"
)

type QuoteInput struct {
	VehiclePrice decimal.Decimal `json:"vehiclePrice"`
	DownPayment  decimal.Decimal `json:"downPayment"`
	TermMonths   int             `json:"termMonths"`
	PartnerID    string          `json:"partnerId"`
}

type QuoteResult struct {
	Computable     bool                  `json:"computable"`
	Reason         string                `json:"reason,omitempty"`
	MinDownPayment decimal.Decimal       `json:"minDownPayment"`
	Principal      decimal.Decimal       `json:"principal"`
	MonthlyPayment decimal.Decimal       `json:"monthlyPayment"`
	TotalPayment   decimal.Decimal       `json:"totalPayment"`
	TotalInterest  decimal.Decimal       `json:"totalInterest"`
	Partner        *partnerdomain.Entity `json:"partner,omitempty"`
}

// Quote simulates the financing of a vehicle with one partner. Only an
// unknown partner is an error; every policy miss yields Computable=false.
func (s *Service) Quote(ctx context.Context, in QuoteInput) (*QuoteResult, error) {
	res, err := s.quote(ctx, in)
	if err == nil {
		s.metrics.QuoteObserved(res.Computable)
	}
	return res, err
}

func (s *Service) quote(ctx context.Context, in QuoteInput) (*QuoteResult, error) {
	partnerID := strings.TrimSpace(in.PartnerID)
	if partnerID == "" {
		return nil, &NotFoundError{Resource: "partner", ID: partnerID}
	}
	p, err := s.catalog.Get(ctx, partnerID)
	if errors.Is(err, partnerdomain.ErrNotFound) {
		return nil, &NotFoundError{Resource: "partner", ID: partnerID}
	}
	if err != nil {
		return nil, fmt.Errorf("get partner: %w", err)
	}

	res := &QuoteResult{Partner: p}
	if !in.VehiclePrice.IsPositive() {
		res.Reason = QuoteInvalidVehiclePrice
		return res, nil
	}
	res.MinDownPayment = s.MinDownPayment(in.VehiclePrice)

	switch {
	case !p.Active:
		res.Reason = QuotePartnerInactive
	case in.DownPayment.LessThan(in.VehiclePrice.Mul(s.minDownPaymentRatio)):
		res.Reason = QuoteDownPaymentBelowMinimum
	case in.DownPayment.GreaterThan(in.VehiclePrice):
		res.Reason = QuoteDownPaymentAbovePrice
	case !p.AcceptsTerm(in.TermMonths) || in.TermMonths > amortization.MaxTermMonths:
		res.Reason = QuoteTermOutOfRange
	}
	if res.Reason != "" {
		return res, nil
	}

	out, err := amortization.Compute(in.VehiclePrice, in.DownPayment, p.AnnualRate, in.TermMonths)
	if err != nil {
		return nil, err
	}
	res.Computable = true
	res.Principal = out.Principal
	res.MonthlyPayment = out.MonthlyPayment
	res.TotalPayment = out.TotalPayment
	res.TotalInterest = out.TotalInterest
	return res, nil
}

// MinDownPayment is the policy floor for vehiclePrice, rounded up to the
// minor unit so that paying the displayed amount always meets the policy.
func (s *Service) MinDownPayment(vehiclePrice decimal.Decimal) decimal.Decimal {
	return vehiclePrice.Mul(s.minDownPaymentRatio).RoundCeil(amortization.MoneyPlaces)
}
