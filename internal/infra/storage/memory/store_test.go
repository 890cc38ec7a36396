package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workielk/workie/internal/domain/marketplace"
	"github.com/workielk/workie/internal/domain/progress"
)

func newJob() *progress.JobProgress {
	return progress.NewJobProgress(uuid.New(), uuid.New(), uuid.New(),
		progress.Participants{ClientID: uuid.New(), WorkerID: uuid.New()}, 1000)
}

func TestStoreUpdateChecksVersion(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	job := newJob()
	require.NoError(t, store.Create(ctx, job))

	_, err := job.Perform(progress.RoleClient, progress.ActionAcceptApplication, progress.Payload{})
	require.NoError(t, err)

	assert.ErrorIs(t, store.Update(ctx, job, 5), progress.ErrConflict)
	require.NoError(t, store.Update(ctx, job, 0))

	got, err := store.Get(ctx, job.JobID())
	require.NoError(t, err)
	assert.Equal(t, progress.StageApplicationAccepted, got.Stage())
	assert.Len(t, got.Timeline().History(), 1)

	_, err = store.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, progress.ErrJobNotFound)
}

func TestStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	job := newJob()
	require.NoError(t, store.Create(ctx, job))

	loaded, err := store.Get(ctx, job.JobID())
	require.NoError(t, err)
	_, err = loaded.Perform(progress.RoleClient, progress.ActionAcceptApplication, progress.Payload{})
	require.NoError(t, err)

	again, err := store.Get(ctx, job.JobID())
	require.NoError(t, err)
	assert.Equal(t, progress.StageApplicationPending, again.Stage())
}

func TestStoreApplicationsAreUniquePerWorker(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	posting := marketplace.NewPosting(uuid.New(), marketplace.PostingDetails{Title: "Paint fence", Type: marketplace.JobTypeOneOff})
	require.NoError(t, store.CreatePosting(ctx, posting))

	worker := uuid.New()
	app, err := marketplace.NewApplication(posting, worker, "")
	require.NoError(t, err)
	job := progress.NewJobProgress(app.ID(), posting.ID(), app.ID(),
		progress.Participants{ClientID: posting.ClientID(), WorkerID: worker}, 0)
	require.NoError(t, store.CreateApplication(ctx, app, job))

	dup, err := marketplace.NewApplication(posting, worker, "again")
	require.NoError(t, err)
	err = store.CreateApplication(ctx, dup, progress.NewJobProgress(dup.ID(), posting.ID(), dup.ID(),
		progress.Participants{ClientID: posting.ClientID(), WorkerID: worker}, 0))
	assert.ErrorIs(t, err, marketplace.ErrAlreadyApplied)

	apps, err := store.ListApplications(ctx, posting.ID())
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, app.ID(), apps[0].ID())

	_, err = store.Get(ctx, app.ID())
	assert.NoError(t, err)
}

func TestStoreListPostingsFilters(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	client := uuid.New()

	plumbing := marketplace.NewPosting(client, marketplace.PostingDetails{Title: "Sink", Skills: []string{"Plumbing"}})
	painting := marketplace.NewPosting(uuid.New(), marketplace.PostingDetails{Title: "Wall", Skills: []string{"Painting"}})
	require.NoError(t, store.CreatePosting(ctx, plumbing))
	require.NoError(t, store.CreatePosting(ctx, painting))

	require.NoError(t, painting.Close(painting.ClientID()))
	require.NoError(t, store.UpdatePosting(ctx, painting))

	open, err := store.ListPostings(ctx, marketplace.PostingFilter{Status: marketplace.PostingOpen})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, plumbing.ID(), open[0].ID())

	bySkill, err := store.ListPostings(ctx, marketplace.PostingFilter{Skill: "painting"})
	require.NoError(t, err)
	require.Len(t, bySkill, 1)
	assert.Equal(t, painting.ID(), bySkill[0].ID())

	byClient, err := store.ListPostings(ctx, marketplace.PostingFilter{ClientID: client})
	require.NoError(t, err)
	assert.Len(t, byClient, 1)

	past, err := store.ListPostings(ctx, marketplace.PostingFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, past)
}

func TestStoreWorkerRating(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	worker := uuid.New()

	for _, rating := range []int{5, 3} {
		job := progress.ReconstructJobProgress(uuid.New(), uuid.New(), uuid.New(),
			progress.Participants{ClientID: uuid.New(), WorkerID: worker}, 0,
			progress.State{CurrentStage: progress.StageReviewFeedback, Review: "ok", Rating: rating},
			progress.NewTimeline(clock{}))
		require.NoError(t, store.Create(ctx, job))
	}

	summary, err := store.WorkerRating(ctx, worker)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Count)
	assert.InDelta(t, 4.0, summary.Average, 0.0001)

	empty, err := store.WorkerRating(ctx, uuid.New())
	require.NoError(t, err)
	assert.Zero(t, empty.Count)
}
