package progress

import "fmt"

// Action is a transition request a participant can make.
type Action string

const (
	ActionAcceptApplication Action = "accept_application"
	ActionStartWork         Action = "start_work"
	ActionMarkCompleted     Action = "mark_completed"
	ActionReleasePayment    Action = "release_payment"
	ActionAcceptPayment     Action = "accept_payment"
	ActionSubmitReview      Action = "submit_review"
	ActionCloseJob          Action = "close_job"

	// ActionRetryPayment re-dispatches a failed settlement. It is a system
	// operation and never appears in the role gate.
	ActionRetryPayment Action = "retry_payment"

	// ActionCancelPayment abandons the settlement in flight. Like retry it is
	// outside the role gate.
	ActionCancelPayment Action = "cancel_payment"
)

var actionLabels = map[Action]string{
	ActionAcceptApplication: "Accept Application",
	ActionStartWork:         "Start Work",
	ActionMarkCompleted:     "Mark as Completed",
	ActionReleasePayment:    "Release Payment",
	ActionAcceptPayment:     "Accept Payment",
	ActionSubmitReview:      "Submit Review",
	ActionCloseJob:          "Close Job",
	ActionRetryPayment:      "Retry Payment",
	ActionCancelPayment:     "Cancel Payment",
}

func (a Action) String() string { return string(a) }

// Label is the human readable button text for the action.
func (a Action) Label() string { return actionLabels[a] }

// ParseAction converts a string into an Action.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if _, ok := actionLabels[a]; !ok {
		return "", fmt.Errorf("unknown action %q", s)
	}
	return a, nil
}

// gate is the static role-to-stage action table. Each (stage, role) pair has
// at most one action. Stage 5 has none: it is left by payment settlement.
var gate = map[Stage]map[Role]Action{
	StageApplicationPending:  {RoleClient: ActionAcceptApplication},
	StageApplicationAccepted: {RoleWorker: ActionStartWork},
	StageInProgress:          {RoleWorker: ActionMarkCompleted},
	StageWorkCompleted:       {RoleClient: ActionReleasePayment},
	StagePaymentSuccessful:   {RoleWorker: ActionAcceptPayment, RoleClient: ActionSubmitReview},
	StageReviewFeedback:      {RoleWorker: ActionCloseJob},
}

// ActionFor returns the single action role may take at stage, if any.
func ActionFor(role Role, stage Stage) (Action, bool) {
	a, ok := gate[stage][role]
	return a, ok
}
