package partner

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("partner_not_found")

type Entity struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	AnnualRate         decimal.Decimal `json:"annualRate"`
	MinTerm            int             `json:"minTerm"`
	MaxTerm            int             `json:"maxTerm"`
	Active             bool            `json:"active"`
	MaxVehicleAgeYears *int            `json:"maxVehicleAgeYears,omitempty"`
	MinVehicleYear     *int            `json:"minVehicleYear,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// AcceptsVehicleYear evaluates the partner's eligibility predicate against the
// manufacture year of the financed vehicle.
func (e Entity) AcceptsVehicleYear(year, currentYear int) bool {
	if e.MinVehicleYear != nil && year < *e.MinVehicleYear {
		return false
	}
	if e.MaxVehicleAgeYears != nil && year < currentYear-*e.MaxVehicleAgeYears {
		return false
	}
	return true
}

func (e Entity) AcceptsTerm(termMonths int) bool {
	return e.MinTerm <= termMonths && termMonths <= e.MaxTerm
}

// Source is the read-only view over partner records administered elsewhere.
type Source interface {
	ListActive(ctx context.Context) ([]Entity, error)
	GetByID(ctx context.Context, id string) (*Entity, error)
}
