package progress

import "errors"

// ActionAvailability is what a participant's view should render for the
// current stage: the one action the role may take, whether it is enabled and
// if not, why.
type ActionAvailability struct {
	Stage     Stage  `json:"stage"`
	StageName string `json:"stage_name"`
	Role      Role   `json:"role"`

	// Action is empty when the gate has nothing for this role at this stage.
	Action  Action `json:"action,omitempty"`
	Label   string `json:"label,omitempty"`
	Enabled bool   `json:"enabled"`
	Reason  string `json:"reason,omitempty"`

	PaymentProcessing bool `json:"payment_processing"`
	CanRetryPayment   bool `json:"can_retry_payment"`
	CanCancelPayment  bool `json:"can_cancel_payment"`
}

// Availability derives the enabled or disabled view of role's action by
// evaluating Transition against s with the given draft payload. The gating
// logic is never duplicated here.
func Availability(s State, role Role, draft Payload) ActionAvailability {
	av := ActionAvailability{
		Stage:             s.CurrentStage,
		StageName:         s.CurrentStage.String(),
		Role:              role,
		PaymentProcessing: s.PaymentProcessing,
		CanRetryPayment:   role == RoleClient && s.CanRetryPayment(),
		CanCancelPayment:  role == RoleClient && s.CanCancelPayment(),
	}

	action, ok := ActionFor(role, s.CurrentStage)
	if !ok {
		switch {
		case s.PaymentProcessing:
			av.Reason = ReasonPaymentProcessing
		case !role.Valid():
			av.Reason = ReasonUnknownRole
		}
		return av
	}

	av.Action = action
	av.Label = action.Label()

	_, err := Transition(s, role, action, draft)
	var ite *InvalidTransitionError
	if errors.As(err, &ite) {
		av.Reason = ite.Reason
		return av
	}
	av.Enabled = err == nil

	return av
}
