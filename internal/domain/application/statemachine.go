package application

type Action string

const (
	ActionStartReview Action = "start_review"
	ActionApprove     Action = "approve"
	ActionReject      Action = "reject"
	ActionCancel      Action = "cancel"
)

var transitions = map[Status]map[Action]Status{
	StatusPending: {
		ActionStartReview: StatusUnderReview,
		ActionApprove:     StatusApproved,
		ActionReject:      StatusRejected,
		ActionCancel:      StatusCancelled,
	},
	StatusUnderReview: {
		ActionApprove: StatusApproved,
		ActionReject:  StatusRejected,
	},
}

func (a Action) Valid() bool {
	switch a {
	case ActionStartReview, ActionApprove, ActionReject, ActionCancel:
		return true
	}
	return false
}

// reviewerAction reports whether a belongs to the reviewer side of the
// workflow; cancel is the applicant's only action.
func (a Action) reviewerAction() bool {
	return a == ActionStartReview || a == ActionApprove || a == ActionReject
}

// Next returns the status reached by applying a to from. Terminal statuses
// have no outgoing edges.
func Next(from Status, a Action) (Status, bool) {
	to, ok := transitions[from][a]
	return to, ok
}
