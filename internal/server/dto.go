package server

import (
	"encoding/json"

	"gigline/internal/domain"
)

// Request payloads

type MilestoneRequest struct {
	Title string  `json:"title"`
	Value float64 `json:"value"`
}

type CreateJobRequest struct {
	ID          *string            `json:"id,omitempty"`
	Title       string             `json:"title"`
	Description *string            `json:"description,omitempty"`
	Category    *string            `json:"category,omitempty"`
	BudgetMin   *float64           `json:"budget_min,omitempty"`
	BudgetMax   *float64           `json:"budget_max,omitempty"`
	Status      *string            `json:"status,omitempty"`
	Milestones  []MilestoneRequest `json:"milestones,omitempty"`
}

type UpdateJobRequest struct {
	Title       *string             `json:"title,omitempty"`
	Description *string             `json:"description,omitempty"`
	Category    *string             `json:"category,omitempty"`
	BudgetMin   *float64            `json:"budget_min,omitempty"`
	BudgetMax   *float64            `json:"budget_max,omitempty"`
	Milestones  *[]MilestoneRequest `json:"milestones,omitempty"`
}

type RequestCancellationRequest struct {
	Reason string `json:"reason,omitempty"`
}

type RespondCancellationRequest struct {
	Action string `json:"action" enum:"accept,reject"`
}

type SubmitMilestoneRequest struct {
	Evidence string `json:"evidence,omitempty"`
}

type CreateProposalRequest struct {
	ID          *string  `json:"id,omitempty"`
	JobID       string   `json:"job_id"`
	CoverLetter string   `json:"cover_letter,omitempty"`
	BidAmount   *float64 `json:"bid_amount,omitempty"`
}

type RejectProposalRequest struct {
	Reason string `json:"reason,omitempty"`
}

type RegisterActorRequest struct {
	ID   string `json:"id"`
	Role string `json:"role" enum:"client,freelancer"`
	Name string `json:"name,omitempty"`
}

type CreateAPIKeyRequest struct {
	Name string `json:"name,omitempty"`
}

type DevLoginRequest struct {
	ActorID string `json:"actor_id"`
	Role    string `json:"role,omitempty" enum:"client,freelancer"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

// Response payloads

type MilestoneResponse struct {
	Title       string   `json:"title"`
	Value       float64  `json:"value"`
	Status      string   `json:"status" enum:"active,submitted,completed,cancelled"`
	Evidence    string   `json:"evidence,omitempty"`
	ApprovedBy  []string `json:"approved_by,omitempty"`
	CompletedAt *string  `json:"completed_at,omitempty" format:"date-time"`
}

type PartyResponse struct {
	ActorID string `json:"actor_id"`
	Role    string `json:"role" enum:"creator,contractor,arbitrator"`
}

type CancellationResponse struct {
	Status        string  `json:"status" enum:"pending,accepted,rejected"`
	InitiatedBy   string  `json:"initiated_by"`
	InitiatedRole string  `json:"initiated_role"`
	Reason        string  `json:"reason,omitempty"`
	RequestedAt   string  `json:"requested_at" format:"date-time"`
	RespondedBy   *string `json:"responded_by,omitempty"`
	RespondedAt   *string `json:"responded_at,omitempty" format:"date-time"`
}

type JobResponse struct {
	ID              string                `json:"id"`
	CreatorID       string                `json:"creator_id"`
	Title           string                `json:"title"`
	Description     string                `json:"description,omitempty"`
	Category        string                `json:"category,omitempty"`
	BudgetMin       *float64              `json:"budget_min,omitempty"`
	BudgetMax       *float64              `json:"budget_max,omitempty"`
	Status          string                `json:"status" enum:"draft,open,in_progress,completed,cancelled"`
	HiredFreelancer *string               `json:"hired_freelancer,omitempty"`
	Parties         []PartyResponse       `json:"parties"`
	Milestones      []MilestoneResponse   `json:"milestones"`
	Cancellation    *CancellationResponse `json:"cancellation,omitempty"`
	ViewCount       int64                 `json:"view_count"`
	ProposalCount   int64                 `json:"proposal_count"`
	CreatedAt       string                `json:"created_at" format:"date-time"`
	UpdatedAt       string                `json:"updated_at" format:"date-time"`
}

type ProposalResponse struct {
	ID           string   `json:"id"`
	JobID        string   `json:"job_id"`
	FreelancerID string   `json:"freelancer_id"`
	CoverLetter  string   `json:"cover_letter,omitempty"`
	BidAmount    *float64 `json:"bid_amount,omitempty"`
	Status       string   `json:"status" enum:"pending,accepted,rejected,withdrawn"`
	RejectReason string   `json:"reject_reason,omitempty"`
	CreatedAt    string   `json:"created_at" format:"date-time"`
	UpdatedAt    string   `json:"updated_at" format:"date-time"`
	RejectedAt   *string  `json:"rejected_at,omitempty" format:"date-time"`
	WithdrawnAt  *string  `json:"withdrawn_at,omitempty" format:"date-time"`
}

type ActorResponse struct {
	ID        string `json:"id"`
	Role      string `json:"role" enum:"client,freelancer"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
	// Key carries the plaintext key only in the creation response.
	Key string `json:"key,omitempty"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload,omitempty"`
}

type WhoAmIResponse struct {
	ActorID string `json:"actor_id"`
	Role    string `json:"role,omitempty"`
	Source  string `json:"source,omitempty"`
}

type paginatedJobs struct {
	Items      []JobResponse `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

type paginatedProposals struct {
	Items      []ProposalResponse `json:"items"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

func jobResponse(j domain.Job) JobResponse {
	resp := JobResponse{
		ID:              j.ID,
		CreatorID:       j.CreatorID,
		Title:           j.Title,
		Description:     j.Description,
		Category:        j.Category,
		BudgetMin:       j.Budget.Min,
		BudgetMax:       j.Budget.Max,
		Status:          j.Status,
		HiredFreelancer: j.HiredFreelancer,
		Parties:         []PartyResponse{},
		Milestones:      []MilestoneResponse{},
		ViewCount:       j.ViewCount,
		ProposalCount:   j.ProposalCount,
		CreatedAt:       j.CreatedAt,
		UpdatedAt:       j.UpdatedAt,
	}
	for _, p := range j.Parties {
		resp.Parties = append(resp.Parties, PartyResponse{ActorID: p.ActorID, Role: p.Role})
	}
	for _, m := range j.Milestones {
		resp.Milestones = append(resp.Milestones, MilestoneResponse{
			Title:       m.Title,
			Value:       m.Value,
			Status:      m.Status,
			Evidence:    m.Evidence,
			ApprovedBy:  m.ApprovedBy,
			CompletedAt: m.CompletedAt,
		})
	}
	if c := j.Cancellation; c != nil {
		resp.Cancellation = &CancellationResponse{
			Status:        c.Status,
			InitiatedBy:   c.InitiatedBy,
			InitiatedRole: c.InitiatedRole,
			Reason:        c.Reason,
			RequestedAt:   c.RequestedAt,
			RespondedBy:   c.RespondedBy,
			RespondedAt:   c.RespondedAt,
		}
	}
	return resp
}

func proposalResponse(p domain.Proposal) ProposalResponse {
	return ProposalResponse{
		ID:           p.ID,
		JobID:        p.JobID,
		FreelancerID: p.FreelancerID,
		CoverLetter:  p.CoverLetter,
		BidAmount:    p.BidAmount,
		Status:       p.Status,
		RejectReason: p.RejectReason,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
		RejectedAt:   p.RejectedAt,
		WithdrawnAt:  p.WithdrawnAt,
	}
}

func actorResponse(a domain.Actor) ActorResponse {
	return ActorResponse{ID: a.ID, Role: a.Role, Name: a.Name, CreatedAt: a.CreatedAt}
}

func apiKeyResponse(k domain.APIKey) APIKeyResponse {
	return APIKeyResponse{ID: k.ID, ActorID: k.ActorID, Name: k.Name, CreatedAt: k.CreatedAt}
}

func eventResponse(evt domain.Event) EventResponse {
	resp := EventResponse{
		ID:         evt.ID,
		TS:         evt.TS,
		Type:       evt.Type,
		EntityKind: evt.EntityKind,
		EntityID:   evt.EntityID,
		ActorID:    evt.ActorID,
	}
	if evt.Payload != "" {
		var payload map[string]any
		if err := json.Unmarshal([]byte(evt.Payload), &payload); err == nil {
			resp.Payload = payload
		}
	}
	return resp
}

func mapJobs(items []domain.Job) []JobResponse {
	res := make([]JobResponse, 0, len(items))
	for _, j := range items {
		res = append(res, jobResponse(j))
	}
	return res
}

func mapProposals(items []domain.Proposal) []ProposalResponse {
	res := make([]ProposalResponse, 0, len(items))
	for _, p := range items {
		res = append(res, proposalResponse(p))
	}
	return res
}
