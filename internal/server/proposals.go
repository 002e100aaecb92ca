package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"gigline/internal/domain"
	"gigline/internal/engine"
	"gigline/internal/repo"
)

func registerProposals(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-proposal",
		Method:        http.MethodPost,
		Path:          "/proposals",
		Summary:       "Submit proposal",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateProposalRequest `json:"body"`
	}) (*struct {
		Body ProposalResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.JobID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "job_id is required", nil)
		}
		principal, authErr := requireRole(ctx, e, domain.ActorRoleFreelancer)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.ProposalCreateOptions{
			JobID:        input.Body.JobID,
			FreelancerID: principal.ActorID,
			CoverLetter:  input.Body.CoverLetter,
			BidAmount:    input.Body.BidAmount,
		}
		if input.Body.ID != nil {
			opts.ID = *input.Body.ID
		}
		p, err := e.CreateProposal(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProposalResponse `json:"body"`
		}{Body: proposalResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-proposals",
		Method:      http.MethodGet,
		Path:        "/proposals",
		Summary:     "List proposals",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		JobID        string `query:"job_id"`
		FreelancerID string `query:"freelancer_id"`
		Status       string `query:"status" enum:",pending,accepted,rejected,withdrawn"`
		Limit        int    `query:"limit" default:"50"`
		Cursor       string `query:"cursor"`
	}) (*struct {
		Body paginatedProposals `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		limit := normalizeLimit(input.Limit)
		cursorCreated, cursorID, err := parseCompositeCursor(input.Cursor)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
		}
		filter := repo.ProposalFilters{
			JobID:           input.JobID,
			FreelancerID:    input.FreelancerID,
			Status:          input.Status,
			Limit:           limit + 1,
			CursorCreatedAt: cursorCreated,
			CursorID:        cursorID,
		}
		items, err := e.Repo.ListProposals(ctx, filter)
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedProposals{Items: []ProposalResponse{}}
		if len(items) > limit {
			resp.NextCursor = composeCursor(items[limit].CreatedAt, items[limit].ID)
			items = items[:limit]
		}
		resp.Items = mapProposals(items)
		return &struct {
			Body paginatedProposals `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-proposal",
		Method:      http.MethodGet,
		Path:        "/proposals/{id}",
		Summary:     "Get proposal",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body ProposalResponse `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		p, err := e.Repo.GetProposal(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProposalResponse `json:"body"`
		}{Body: proposalResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "accept-proposal",
		Method:      http.MethodPost,
		Path:        "/proposals/{id}/accept",
		Summary:     "Accept proposal and hire",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body struct {
			Proposal ProposalResponse `json:"proposal"`
			Job      JobResponse      `json:"job"`
		} `json:"body"`
	}, error) {
		principal, authErr := requireRole(ctx, e, domain.ActorRoleClient)
		if authErr != nil {
			return nil, authErr
		}
		p, j, err := e.AcceptProposal(ctx, input.ID, principal.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		out := &struct {
			Body struct {
				Proposal ProposalResponse `json:"proposal"`
				Job      JobResponse      `json:"job"`
			} `json:"body"`
		}{}
		out.Body.Proposal = proposalResponse(p)
		out.Body.Job = jobResponse(j)
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reject-proposal",
		Method:      http.MethodPost,
		Path:        "/proposals/{id}/reject",
		Summary:     "Reject proposal",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID   string                `path:"id"`
		Body RejectProposalRequest `json:"body"`
	}) (*struct {
		Body ProposalResponse `json:"body"`
	}, error) {
		principal, authErr := requireRole(ctx, e, domain.ActorRoleClient)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.RejectProposal(ctx, input.ID, principal.ActorID, input.Body.Reason)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProposalResponse `json:"body"`
		}{Body: proposalResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "withdraw-proposal",
		Method:      http.MethodPost,
		Path:        "/proposals/{id}/withdraw",
		Summary:     "Withdraw proposal",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body ProposalResponse `json:"body"`
	}, error) {
		principal, authErr := requireRole(ctx, e, domain.ActorRoleFreelancer)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.WithdrawProposal(ctx, input.ID, principal.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProposalResponse `json:"body"`
		}{Body: proposalResponse(p)}, nil
	})
}
