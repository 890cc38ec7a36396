// Package jobs binds the posting and application endpoints.
package jobs

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/workielk/workie/internal/api/errs"
	progressroutes "github.com/workielk/workie/internal/api/routes/progress"
	marketplaceapp "github.com/workielk/workie/internal/app/marketplace"
	"github.com/workielk/workie/internal/domain/marketplace"
	"github.com/workielk/workie/pkg/common/logger"
	"github.com/workielk/workie/pkg/web"
)

// Config contains the dependencies needed by the job handlers.
type Config struct {
	Log     *logger.Logger
	Service marketplaceapp.Service
}

// Routes binds all the posting endpoints.
func Routes(app *web.App, cfg Config) {
	const version = "v1"

	app.HandlerFunc(http.MethodPost, version, "/jobs", create(cfg))
	app.HandlerFunc(http.MethodGet, version, "/jobs", list(cfg))
	app.HandlerFunc(http.MethodGet, version, "/jobs/{id}", get(cfg))
	app.HandlerFunc(http.MethodPost, version, "/jobs/{id}/close", closePosting(cfg))
	app.HandlerFunc(http.MethodPost, version, "/jobs/{id}/applications", apply(cfg))
	app.HandlerFunc(http.MethodGet, version, "/jobs/{id}/applications", listApplications(cfg))
}

func parseUUID(field, raw string) (uuid.UUID, *errs.Error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errs.Newf(errs.InvalidArgument, "invalid %s %q", field, raw)
	}
	return id, nil
}

func decode(r *http.Request, v any) *errs.Error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errs.New(errs.InvalidArgument, err)
	}
	if err := errs.Check(v); err != nil {
		return errs.FromDomain(err)
	}
	return nil
}

func create(cfg Config) web.HandlerFunc {
	return func(ctx context.Context, r *http.Request) web.Encoder {
		var req postingRequest
		if err := decode(r, &req); err != nil {
			return err
		}

		jobType, err := marketplace.ParseJobType(req.Type)
		if err != nil {
			return errs.New(errs.InvalidArgument, err)
		}

		posting, err := cfg.Service.CreatePosting(ctx, uuid.MustParse(req.ClientID), marketplace.PostingDetails{
			Title:       req.Title,
			Description: req.Description,
			Skills:      req.Skills,
			Location:    req.Location,
			Salary:      req.Salary,
			Type:        jobType,
		})
		if err != nil {
			return errs.FromDomain(err)
		}

		return createdPosting{newPostingView(posting)}
	}
}

func list(cfg Config) web.HandlerFunc {
	return func(ctx context.Context, r *http.Request) web.Encoder {
		q := r.URL.Query()

		var filter marketplace.PostingFilter
		if raw := q.Get("status"); raw != "" {
			status, err := marketplace.ParsePostingStatus(raw)
			if err != nil {
				return errs.New(errs.InvalidArgument, err)
			}
			filter.Status = status
		}
		filter.Skill = q.Get("skill")
		if raw := q.Get("client_id"); raw != "" {
			id, perr := parseUUID("client_id", raw)
			if perr != nil {
				return perr
			}
			filter.ClientID = id
		}
		for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
			raw := q.Get(name)
			if raw == "" {
				continue
			}
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				return errs.Newf(errs.InvalidArgument, "%s must be a non-negative integer", name)
			}
			*dst = n
		}

		postings, err := cfg.Service.ListPostings(ctx, filter)
		if err != nil {
			return errs.FromDomain(err)
		}

		resp := postingList{
			Items:  make([]postingView, 0, len(postings)),
			Limit:  filter.PageLimit(),
			Offset: filter.Offset,
		}
		for _, p := range postings {
			resp.Items = append(resp.Items, newPostingView(p))
		}
		return resp
	}
}

func get(cfg Config) web.HandlerFunc {
	return func(ctx context.Context, r *http.Request) web.Encoder {
		id, perr := parseUUID("id", web.Param(r, "id"))
		if perr != nil {
			return perr
		}

		posting, err := cfg.Service.GetPosting(ctx, id)
		if err != nil {
			return errs.FromDomain(err)
		}

		return newPostingView(posting)
	}
}

func closePosting(cfg Config) web.HandlerFunc {
	return func(ctx context.Context, r *http.Request) web.Encoder {
		id, perr := parseUUID("id", web.Param(r, "id"))
		if perr != nil {
			return perr
		}

		var req closeRequest
		if err := decode(r, &req); err != nil {
			return err
		}

		posting, err := cfg.Service.ClosePosting(ctx, id, uuid.MustParse(req.ActorID))
		if err != nil {
			return errs.FromDomain(err)
		}

		return newPostingView(posting)
	}
}

func apply(cfg Config) web.HandlerFunc {
	return func(ctx context.Context, r *http.Request) web.Encoder {
		id, perr := parseUUID("id", web.Param(r, "id"))
		if perr != nil {
			return perr
		}

		var req applyRequest
		if err := decode(r, &req); err != nil {
			return err
		}

		app, job, err := cfg.Service.Apply(ctx, id, uuid.MustParse(req.WorkerID), req.CoverNote)
		if err != nil {
			return errs.FromDomain(err)
		}

		return applyResponse{
			Application: newApplicationView(app),
			Progress:    progressroutes.NewJobView(job),
		}
	}
}

// listApplications is only answered for the posting's client, identified by
// the actor_id query parameter.
func listApplications(cfg Config) web.HandlerFunc {
	return func(ctx context.Context, r *http.Request) web.Encoder {
		id, perr := parseUUID("id", web.Param(r, "id"))
		if perr != nil {
			return perr
		}
		actorID, perr := parseUUID("actor_id", r.URL.Query().Get("actor_id"))
		if perr != nil {
			return perr
		}

		apps, err := cfg.Service.ListApplications(ctx, id, actorID)
		if err != nil {
			return errs.FromDomain(err)
		}

		resp := applicationList{Items: make([]applicationView, 0, len(apps))}
		for _, a := range apps {
			resp.Items = append(resp.Items, newApplicationView(a))
		}
		return resp
	}
}
