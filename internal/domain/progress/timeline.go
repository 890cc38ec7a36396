package progress

import "time"

// TimeProvider is an interface that provides a Now method to get the current time.
type TimeProvider interface {
	Now() time.Time
}

type realTimeProvider struct{}

func (realTimeProvider) Now() time.Time { return time.Now().UTC() }

// StageChange is one accepted move between stages.
type StageChange struct {
	From   Stage     `json:"from"`
	To     Stage     `json:"to"`
	Action Action    `json:"action"`
	Role   Role      `json:"role,omitempty"`
	At     time.Time `json:"at"`
}

// Timeline tracks temporal aspects of a job's progress.
type Timeline struct {
	createdAt    time.Time
	lastUpdate   time.Time
	closedAt     time.Time
	history      []StageChange
	timeProvider TimeProvider
}

// NewTimeline creates a new Timeline instance.
func NewTimeline(timeProvider TimeProvider) *Timeline {
	now := timeProvider.Now()
	return &Timeline{
		createdAt:    now,
		lastUpdate:   now,
		timeProvider: timeProvider,
	}
}

// ReconstructTimeline rebuilds a timeline from stored fields.
func ReconstructTimeline(createdAt, lastUpdate, closedAt time.Time, history []StageChange) *Timeline {
	return &Timeline{
		createdAt:    createdAt,
		lastUpdate:   lastUpdate,
		closedAt:     closedAt,
		history:      history,
		timeProvider: realTimeProvider{},
	}
}

func (t *Timeline) CreatedAt() time.Time  { return t.createdAt }
func (t *Timeline) LastUpdate() time.Time { return t.lastUpdate }
func (t *Timeline) ClosedAt() time.Time   { return t.closedAt }

// History returns a copy of the recorded stage changes, oldest first.
func (t *Timeline) History() []StageChange {
	out := make([]StageChange, len(t.history))
	copy(out, t.history)
	return out
}

// IsClosed checks if the job has reached its final stage.
func (t *Timeline) IsClosed() bool { return !t.closedAt.IsZero() }

func (t *Timeline) record(from, to Stage, action Action, role Role) time.Time {
	now := t.timeProvider.Now()
	t.history = append(t.history, StageChange{From: from, To: to, Action: action, Role: role, At: now})
	t.lastUpdate = now
	if to == LastStage {
		t.closedAt = now
	}
	return now
}

func (t *Timeline) touch() time.Time {
	t.lastUpdate = t.timeProvider.Now()
	return t.lastUpdate
}
