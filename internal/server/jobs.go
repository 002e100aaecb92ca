package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"gigline/internal/domain"
	"gigline/internal/engine"
	"gigline/internal/repo"
)

func registerJobs(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-job",
		Method:        http.MethodPost,
		Path:          "/jobs",
		Summary:       "Create job",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusConflict,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateJobRequest `json:"body"`
	}) (*struct {
		Body JobResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.Title == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "title is required", nil)
		}
		principal, authErr := requireRole(ctx, e, domain.ActorRoleClient)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.JobCreateOptions{
			CreatorID:   principal.ActorID,
			Title:       input.Body.Title,
			Description: stringOrEmpty(input.Body.Description),
			Category:    stringOrEmpty(input.Body.Category),
			BudgetMin:   input.Body.BudgetMin,
			BudgetMax:   input.Body.BudgetMax,
			Milestones:  mapMilestoneInputs(input.Body.Milestones),
		}
		if input.Body.ID != nil {
			opts.ID = *input.Body.ID
		}
		if input.Body.Status != nil {
			opts.Status = *input.Body.Status
		}
		j, err := e.CreateJob(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body JobResponse `json:"body"`
		}{Body: jobResponse(j)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-jobs",
		Method:      http.MethodGet,
		Path:        "/jobs",
		Summary:     "List jobs",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Status    string `query:"status" enum:",draft,open,in_progress,completed,cancelled"`
		Category  string `query:"category"`
		CreatorID string `query:"creator_id"`
		Limit     int    `query:"limit" default:"50"`
		Cursor    string `query:"cursor"`
	}) (*struct {
		Body paginatedJobs `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		limit := normalizeLimit(input.Limit)
		cursorCreated, cursorID, err := parseCompositeCursor(input.Cursor)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
		}
		filter := repo.JobFilters{
			Status:          input.Status,
			Category:        input.Category,
			CreatorID:       input.CreatorID,
			Limit:           limit + 1,
			CursorCreatedAt: cursorCreated,
			CursorID:        cursorID,
		}
		jobs, err := e.Repo.ListJobs(ctx, filter)
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedJobs{Items: []JobResponse{}}
		if len(jobs) > limit {
			resp.NextCursor = composeCursor(jobs[limit].CreatedAt, jobs[limit].ID)
			jobs = jobs[:limit]
		}
		resp.Items = mapJobs(jobs)
		return &struct {
			Body paginatedJobs `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-job",
		Method:      http.MethodGet,
		Path:        "/jobs/{id}",
		Summary:     "Get job",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID        string `path:"id"`
		CountView bool   `query:"count_view"`
	}) (*struct {
		Body JobResponse `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		j, err := e.GetJob(ctx, input.ID, input.CountView)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body JobResponse `json:"body"`
		}{Body: jobResponse(j)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-job",
		Method:      http.MethodPatch,
		Path:        "/jobs/{id}",
		Summary:     "Update job",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID   string           `path:"id"`
		Body UpdateJobRequest `json:"body"`
	}) (*struct {
		Body JobResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.JobUpdateOptions{
			ID:          input.ID,
			ActorID:     actorID,
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Category:    input.Body.Category,
			BudgetMin:   input.Body.BudgetMin,
			BudgetMax:   input.Body.BudgetMax,
		}
		if input.Body.Milestones != nil {
			ms := mapMilestoneInputs(*input.Body.Milestones)
			opts.Milestones = &ms
		}
		j, err := e.UpdateJob(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body JobResponse `json:"body"`
		}{Body: jobResponse(j)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "publish-job",
		Method:      http.MethodPost,
		Path:        "/jobs/{id}/publish",
		Summary:     "Publish job",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body JobResponse `json:"body"`
	}, error) {
		principal, authErr := requireRole(ctx, e, domain.ActorRoleClient)
		if authErr != nil {
			return nil, authErr
		}
		j, err := e.PublishJob(ctx, input.ID, principal.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body JobResponse `json:"body"`
		}{Body: jobResponse(j)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-job",
		Method:      http.MethodDelete,
		Path:        "/jobs/{id}",
		Summary:     "Delete job",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteJob(ctx, input.ID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "request-job-cancellation",
		Method:      http.MethodPost,
		Path:        "/jobs/{id}/cancellation",
		Summary:     "Request job cancellation",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID   string                     `path:"id"`
		Body RequestCancellationRequest `json:"body"`
	}) (*struct {
		Body JobResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		j, err := e.RequestCancellation(ctx, input.ID, actorID, input.Body.Reason)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body JobResponse `json:"body"`
		}{Body: jobResponse(j)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "respond-job-cancellation",
		Method:      http.MethodPost,
		Path:        "/jobs/{id}/cancellation/respond",
		Summary:     "Respond to a cancellation request",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID   string                     `path:"id"`
		Body RespondCancellationRequest `json:"body"`
	}) (*struct {
		Body JobResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		j, err := e.RespondCancellation(ctx, input.ID, actorID, input.Body.Action)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body JobResponse `json:"body"`
		}{Body: jobResponse(j)}, nil
	})
}

func registerMilestones(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "submit-milestone",
		Method:      http.MethodPost,
		Path:        "/jobs/{id}/milestones/{index}/submit",
		Summary:     "Submit milestone for review",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID    string                 `path:"id"`
		Index int                    `path:"index"`
		Body  SubmitMilestoneRequest `json:"body"`
	}) (*struct {
		Body JobResponse `json:"body"`
	}, error) {
		principal, authErr := requireRole(ctx, e, domain.ActorRoleFreelancer)
		if authErr != nil {
			return nil, authErr
		}
		j, err := e.SubmitMilestone(ctx, input.ID, input.Index, principal.ActorID, input.Body.Evidence)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body JobResponse `json:"body"`
		}{Body: jobResponse(j)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "approve-milestone",
		Method:      http.MethodPost,
		Path:        "/jobs/{id}/milestones/{index}/approve",
		Summary:     "Approve a submitted milestone",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID    string `path:"id"`
		Index int    `path:"index"`
	}) (*struct {
		Body struct {
			Job          JobResponse `json:"job"`
			JobCompleted bool        `json:"job_completed"`
		} `json:"body"`
	}, error) {
		principal, authErr := requireRole(ctx, e, domain.ActorRoleClient)
		if authErr != nil {
			return nil, authErr
		}
		j, completed, err := e.ApproveMilestone(ctx, input.ID, input.Index, principal.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		out := &struct {
			Body struct {
				Job          JobResponse `json:"job"`
				JobCompleted bool        `json:"job_completed"`
			} `json:"body"`
		}{}
		out.Body.Job = jobResponse(j)
		out.Body.JobCompleted = completed
		return out, nil
	})
}

func mapMilestoneInputs(in []MilestoneRequest) []engine.MilestoneInput {
	res := make([]engine.MilestoneInput, 0, len(in))
	for _, m := range in {
		res = append(res, engine.MilestoneInput{Title: m.Title, Value: m.Value})
	}
	return res
}

func stringOrEmpty(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
