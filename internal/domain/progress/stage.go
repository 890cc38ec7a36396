// Package progress models the lifecycle of a hired job: the eight ordered
// stages a job moves through, which participant may advance it at each stage,
// review capture and payment settlement.
package progress

import "fmt"

// Stage is a position in the job lifecycle. Stage ids are stable, dense and
// totally ordered; a job only ever moves to Next.
type Stage int

const (
	StageApplicationPending  Stage = iota + 1 // 1
	StageApplicationAccepted                  // 2
	StageInProgress                           // 3
	StageWorkCompleted                        // 4
	StagePaymentPending                       // 5
	StagePaymentSuccessful                    // 6
	StageReviewFeedback                       // 7
	StageJobClosed                            // 8
)

// FirstStage and LastStage bound the lifecycle.
const (
	FirstStage = StageApplicationPending
	LastStage  = StageJobClosed
)

var stageNames = [...]string{
	StageApplicationPending:  "Application Pending",
	StageApplicationAccepted: "Application Accepted",
	StageInProgress:          "In Progress",
	StageWorkCompleted:       "Work Completed",
	StagePaymentPending:      "Payment Pending",
	StagePaymentSuccessful:   "Payment Successful",
	StageReviewFeedback:      "Review & Feedback",
	StageJobClosed:           "Job Closed",
}

// StageDescriptor pairs a stage id with its display name.
type StageDescriptor struct {
	ID   Stage  `json:"id"`
	Name string `json:"name"`
}

// Stages returns the ordered stage table.
func Stages() []StageDescriptor {
	out := make([]StageDescriptor, 0, int(LastStage))
	for s := FirstStage; s <= LastStage; s++ {
		out = append(out, StageDescriptor{ID: s, Name: s.String()})
	}
	return out
}

// Valid reports whether s is one of the eight lifecycle stages.
func (s Stage) Valid() bool { return s >= FirstStage && s <= LastStage }

// String returns the display name of the stage.
func (s Stage) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// Next returns the successor stage. The last stage has none.
func (s Stage) Next() (Stage, bool) {
	if !s.Valid() || s == LastStage {
		return s, false
	}
	return s + 1, true
}

// IsTerminal reports whether no further transition can leave s.
func (s Stage) IsTerminal() bool { return s == LastStage }

// ParseStage converts a numeric stage id into a Stage.
func ParseStage(id int) (Stage, error) {
	s := Stage(id)
	if !s.Valid() {
		return 0, fmt.Errorf("stage %d out of range [%d,%d]", id, FirstStage, LastStage)
	}
	return s, nil
}
