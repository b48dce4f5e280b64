package auth

import "github.com/carmarket/backend/internal/domain/application"

const (
	RoleApplicant = "applicant"
	RoleReviewer  = "reviewer"
	RoleAdmin     = "admin"
)

// RoleGate decides application access from the caller's role. Reviewers and
// admins see and decide everything; anyone else only their own records.
type RoleGate struct{}

func (RoleGate) CanReview(identity application.Identity) bool {
	return identity.Role == RoleReviewer || identity.Role == RoleAdmin
}

func (g RoleGate) CanView(identity application.Identity, app *application.Entity) bool {
	if identity.ID == "" || app == nil {
		return false
	}
	return g.CanReview(identity) || app.ApplicantID == identity.ID
}

// CanCancel allows only the applicant to withdraw, and only while the
// application still waits in pending.
func (RoleGate) CanCancel(identity application.Identity, app *application.Entity) bool {
	if identity.ID == "" || app == nil {
		return false
	}
	return app.ApplicantID == identity.ID && app.Status == application.StatusPending
}
