package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStagesAreDenseAndOrdered(t *testing.T) {
	stages := Stages()
	require.Len(t, stages, 8)

	want := []string{
		"Application Pending",
		"Application Accepted",
		"In Progress",
		"Work Completed",
		"Payment Pending",
		"Payment Successful",
		"Review & Feedback",
		"Job Closed",
	}
	for i, d := range stages {
		assert.Equal(t, Stage(i+1), d.ID)
		assert.Equal(t, want[i], d.Name)
	}
}

func TestStageNext(t *testing.T) {
	for s := FirstStage; s < LastStage; s++ {
		next, ok := s.Next()
		assert.True(t, ok)
		assert.Equal(t, s+1, next)
	}

	_, ok := LastStage.Next()
	assert.False(t, ok)
	assert.True(t, LastStage.IsTerminal())
}

func TestParseStage(t *testing.T) {
	s, err := ParseStage(5)
	require.NoError(t, err)
	assert.Equal(t, StagePaymentPending, s)

	for _, id := range []int{0, 9, -1} {
		_, err := ParseStage(id)
		assert.Error(t, err, "id %d", id)
	}
	assert.Equal(t, "Stage(12)", Stage(12).String())
}

func TestParseRoleAndAction(t *testing.T) {
	r, err := ParseRole("client")
	require.NoError(t, err)
	assert.Equal(t, RoleClient, r)
	_, err = ParseRole("admin")
	assert.Error(t, err)

	a, err := ParseAction("submit_review")
	require.NoError(t, err)
	assert.Equal(t, ActionSubmitReview, a)
	assert.Equal(t, "Submit Review", a.Label())
	_, err = ParseAction("skip_ahead")
	assert.Error(t, err)
}
