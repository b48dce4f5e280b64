package postgres

import (
	"github.com/carmarket/backend/internal/domain/application"
	"github.com/carmarket/backend/internal/domain/partner"
	"github.com/carmarket/backend/internal/domain/vehicle"
)

var (
	_ application.Repository      = (*ApplicationRepository)(nil)
	_ application.AuditRepository = (*AuditRepository)(nil)
	_ partner.Source              = (*PartnerRepository)(nil)
	_ vehicle.Lookup              = (*VehicleRepository)(nil)
)
