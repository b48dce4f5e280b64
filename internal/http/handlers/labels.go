package handlers

import "github.com/carmarket/backend/internal/domain/application"

var statusLabels = map[application.Status]string{
	application.StatusPending:     "Pending",
	application.StatusUnderReview: "Under review",
	application.StatusApproved:    "Approved",
	application.StatusRejected:    "Rejected",
	application.StatusCancelled:   "Cancelled",
}

var rejectionReasonLabels = map[application.RejectionReason]string{
	application.RejectInsufficientIncome:      "Insufficient income",
	application.RejectHighDebtRatio:           "High debt-to-income ratio",
	application.RejectPoorCreditHistory:       "Poor credit history",
	application.RejectIncompleteDocumentation: "Incomplete documentation",
	application.RejectUnverifiableInformation: "Information could not be verified",
	application.RejectVehicleNotEligible:      "Vehicle not eligible for financing",
	application.RejectOther:                   "Other",
}

func statusLabel(s application.Status) string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

func rejectionReasonLabel(r application.RejectionReason) string {
	if label, ok := rejectionReasonLabels[r]; ok {
		return label
	}
	return string(r)
}

// applicationView is the wire shape of an application: the aggregate plus
// display labels for the client.
type applicationView struct {
	*application.Entity
	StatusLabel          string `json:"statusLabel"`
	RejectionReasonLabel string `json:"rejectionReasonLabel,omitempty"`
}

func newApplicationView(app *application.Entity) applicationView {
	v := applicationView{Entity: app, StatusLabel: statusLabel(app.Status)}
	if app.ReviewInfo != nil && app.ReviewInfo.Rejection != nil {
		v.RejectionReasonLabel = rejectionReasonLabel(app.ReviewInfo.Rejection.Reason)
	}
	return v
}
