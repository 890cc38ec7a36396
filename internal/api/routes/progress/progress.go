// Package progress binds the job lifecycle endpoints. Participants post
// transition requests; the server validates and returns the canonical state.
package progress

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/workielk/workie/internal/api/errs"
	progressapp "github.com/workielk/workie/internal/app/progress"
	domain "github.com/workielk/workie/internal/domain/progress"
	"github.com/workielk/workie/pkg/common/logger"
	"github.com/workielk/workie/pkg/web"
)

// Config contains the dependencies needed by the progress handlers.
type Config struct {
	Log     *logger.Logger
	Service progressapp.JobProgressService
}

// Routes binds all the job progress endpoints.
func Routes(app *web.App, cfg Config) {
	const version = "v1"

	app.HandlerFunc(http.MethodGet, version, "/progress/stages", stages())
	app.HandlerFunc(http.MethodGet, version, "/progress/{id}", get(cfg))
	app.HandlerFunc(http.MethodGet, version, "/progress/{id}/actions", actions(cfg))
	app.HandlerFunc(http.MethodPost, version, "/progress/{id}/actions", apply(cfg))
	app.HandlerFunc(http.MethodPost, version, "/progress/{id}/payment/retry", settlement(cfg.Service.RetryPayment))
	app.HandlerFunc(http.MethodPost, version, "/progress/{id}/payment/cancel", settlement(cfg.Service.CancelSettlement))
	app.HandlerFunc(http.MethodGet, version, "/workers/{id}/rating", workerRating(cfg))
}

func parseID(r *http.Request) (uuid.UUID, *errs.Error) {
	id, err := uuid.Parse(web.Param(r, "id"))
	if err != nil {
		return uuid.Nil, errs.Newf(errs.InvalidArgument, "invalid id %q", web.Param(r, "id"))
	}
	return id, nil
}

func stages() web.HandlerFunc {
	resp := newStagesResponse()
	return func(ctx context.Context, r *http.Request) web.Encoder {
		return resp
	}
}

func get(cfg Config) web.HandlerFunc {
	return func(ctx context.Context, r *http.Request) web.Encoder {
		jobID, perr := parseID(r)
		if perr != nil {
			return perr
		}

		job, err := cfg.Service.Get(ctx, jobID)
		if err != nil {
			return errs.FromDomain(err)
		}

		return NewJobView(job)
	}
}

// actions reports the action the role may take now. Optional review and
// rating query parameters evaluate a draft review the same way a submit
// would, so the form can show why it is disabled.
func actions(cfg Config) web.HandlerFunc {
	return func(ctx context.Context, r *http.Request) web.Encoder {
		jobID, perr := parseID(r)
		if perr != nil {
			return perr
		}

		q := r.URL.Query()
		role, err := domain.ParseRole(q.Get("role"))
		if err != nil {
			return errs.New(errs.InvalidArgument, err)
		}

		var draft domain.Payload
		draft.Review = q.Get("review")
		if raw := q.Get("rating"); raw != "" {
			if draft.Rating, err = strconv.Atoi(raw); err != nil {
				return errs.Newf(errs.InvalidArgument, "rating must be an integer")
			}
		}

		av, err := cfg.Service.Availability(ctx, jobID, role, draft)
		if err != nil {
			return errs.FromDomain(err)
		}

		return availabilityResponse(av)
	}
}

func apply(cfg Config) web.HandlerFunc {
	return func(ctx context.Context, r *http.Request) web.Encoder {
		jobID, perr := parseID(r)
		if perr != nil {
			return perr
		}

		var req actionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return errs.New(errs.InvalidArgument, err)
		}
		if err := errs.Check(req); err != nil {
			return errs.FromDomain(err)
		}

		action, err := domain.ParseAction(req.Action)
		if err != nil {
			return errs.New(errs.InvalidArgument, err)
		}

		job, err := cfg.Service.Apply(ctx, jobID, progressapp.TransitionRequest{
			ActorID:         uuid.MustParse(req.ActorID),
			Role:            domain.Role(req.Role),
			Action:          action,
			Review:          req.Review,
			Rating:          req.Rating,
			ExpectedVersion: req.ExpectedVersion,
		})
		if err != nil {
			return errs.FromDomain(err)
		}

		return NewJobView(job)
	}
}

// settlement binds a client-only payment operation that takes no payload
// beyond the actor.
func settlement(op func(ctx context.Context, jobID, actorID uuid.UUID) (*domain.JobProgress, error)) web.HandlerFunc {
	return func(ctx context.Context, r *http.Request) web.Encoder {
		jobID, perr := parseID(r)
		if perr != nil {
			return perr
		}

		var req settlementRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return errs.New(errs.InvalidArgument, err)
		}
		if err := errs.Check(req); err != nil {
			return errs.FromDomain(err)
		}

		job, err := op(ctx, jobID, uuid.MustParse(req.ActorID))
		if err != nil {
			return errs.FromDomain(err)
		}

		return NewJobView(job)
	}
}

func workerRating(cfg Config) web.HandlerFunc {
	return func(ctx context.Context, r *http.Request) web.Encoder {
		workerID, perr := parseID(r)
		if perr != nil {
			return perr
		}

		summary, err := cfg.Service.WorkerRating(ctx, workerID)
		if err != nil {
			return errs.FromDomain(err)
		}

		return ratingResponse(summary)
	}
}
