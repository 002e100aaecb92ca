package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"gigline/internal/domain"
	"gigline/internal/events"
	"gigline/internal/repo"
)

// ProposalCreateOptions are parameters for submitting a proposal.
type ProposalCreateOptions struct {
	ID           string
	JobID        string
	FreelancerID string
	CoverLetter  string
	BidAmount    *float64
}

// CreateProposal records a pending proposal against an open job. A
// freelancer holds at most one active proposal per job.
func (e Engine) CreateProposal(ctx context.Context, opts ProposalCreateOptions) (domain.Proposal, error) {
	if opts.FreelancerID == "" {
		return domain.Proposal{}, InvalidStatef("freelancer is required")
	}
	j, err := e.Repo.GetJob(ctx, opts.JobID)
	if err != nil {
		return domain.Proposal{}, jobLoadError(err, opts.JobID)
	}
	if opts.FreelancerID == j.CreatorID {
		return domain.Proposal{}, InvalidStatef("cannot submit a proposal on your own job")
	}
	if j.Status != domain.JobStatusOpen {
		return domain.Proposal{}, InvalidStatef("job is not open for proposals")
	}
	exists, err := e.Repo.ActiveProposalExists(ctx, opts.JobID, opts.FreelancerID)
	if err != nil {
		return domain.Proposal{}, err
	}
	if exists {
		return domain.Proposal{}, InvalidStatef("an active proposal for this job already exists")
	}
	now := e.nowString()
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	p := domain.Proposal{
		ID:           id,
		JobID:        opts.JobID,
		FreelancerID: opts.FreelancerID,
		CoverLetter:  strings.TrimSpace(opts.CoverLetter),
		BidAmount:    opts.BidAmount,
		Status:       domain.ProposalStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Proposal{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertProposal(ctx, tx, p); err != nil {
		return domain.Proposal{}, err
	}
	if err := e.Repo.IncrementProposalCount(ctx, tx, opts.JobID); err != nil {
		return domain.Proposal{}, err
	}
	if err := e.Events.Append(ctx, tx, "proposal.created", "proposal", p.ID, opts.FreelancerID, events.EventPayload{"job_id": opts.JobID}); err != nil {
		return domain.Proposal{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Proposal{}, err
	}
	return p, nil
}

// AcceptProposal hires the proposal's freelancer. In one transaction the job
// moves open to in_progress, the accepted proposal flips to accepted, and
// every remaining pending sibling flips to rejected. The job-status write is
// the authoritative gate against concurrent accepts.
func (e Engine) AcceptProposal(ctx context.Context, proposalID, actorID string) (domain.Proposal, domain.Job, error) {
	p, err := e.Repo.GetProposal(ctx, proposalID)
	if err != nil {
		return domain.Proposal{}, domain.Job{}, proposalLoadError(err, proposalID)
	}
	j, err := e.Repo.GetJob(ctx, p.JobID)
	if err != nil {
		return p, domain.Job{}, jobLoadError(err, p.JobID)
	}
	if actorID != j.CreatorID {
		return p, j, Forbiddenf("only the job creator can accept proposals")
	}
	if err := CanAcceptProposal(j); err != nil {
		return p, j, err
	}
	if p.Status != domain.ProposalStatusPending {
		return p, j, InvalidStatef("proposal is %s, not pending", p.Status)
	}
	now := e.nowString()
	j.Status = domain.JobStatusInProgress
	j.HiredFreelancer = &p.FreelancerID
	j.AddParty(domain.Party{ActorID: p.FreelancerID, Role: domain.RoleContractor})
	j.UpdatedAt = now
	p.Status = domain.ProposalStatusAccepted
	p.UpdatedAt = now

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return p, j, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateJob(ctx, tx, j, domain.JobStatusOpen); err != nil {
		return p, j, staleAsConflict(err)
	}
	if err := e.Repo.UpdateProposal(ctx, tx, p, domain.ProposalStatusPending); err != nil {
		return p, j, staleAsConflict(err)
	}
	rejected, err := e.Repo.RejectPendingSiblings(ctx, tx, j.ID, p.ID, now)
	if err != nil {
		return p, j, err
	}
	if err := e.Events.Append(ctx, tx, "proposal.accepted", "proposal", p.ID, actorID, events.EventPayload{"job_id": j.ID, "rejected_siblings": rejected}); err != nil {
		return p, j, err
	}
	if err := e.Events.Append(ctx, tx, "job.started", "job", j.ID, actorID, events.EventPayload{"contractor": p.FreelancerID}); err != nil {
		return p, j, err
	}
	if err := tx.Commit(); err != nil {
		return p, j, err
	}
	return p, j, nil
}

// RejectProposal declines a pending proposal with an optional reason.
func (e Engine) RejectProposal(ctx context.Context, proposalID, actorID, reason string) (domain.Proposal, error) {
	p, err := e.Repo.GetProposal(ctx, proposalID)
	if err != nil {
		return domain.Proposal{}, proposalLoadError(err, proposalID)
	}
	j, err := e.Repo.GetJob(ctx, p.JobID)
	if err != nil {
		return p, jobLoadError(err, p.JobID)
	}
	if actorID != j.CreatorID {
		return p, Forbiddenf("only the job creator can reject proposals")
	}
	if err := CanRejectProposal(j, p); err != nil {
		return p, err
	}
	now := e.nowString()
	p.Status = domain.ProposalStatusRejected
	p.RejectReason = strings.TrimSpace(reason)
	p.RejectedAt = &now
	p.UpdatedAt = now

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return p, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateProposal(ctx, tx, p, domain.ProposalStatusPending); err != nil {
		return p, staleAsConflict(err)
	}
	if err := e.Events.Append(ctx, tx, "proposal.rejected", "proposal", p.ID, actorID, events.EventPayload{"job_id": p.JobID}); err != nil {
		return p, err
	}
	if err := tx.Commit(); err != nil {
		return p, err
	}
	return p, nil
}

// WithdrawProposal lets the proposal's own freelancer retract a pending
// proposal. Withdrawn is terminal.
func (e Engine) WithdrawProposal(ctx context.Context, proposalID, actorID string) (domain.Proposal, error) {
	p, err := e.Repo.GetProposal(ctx, proposalID)
	if err != nil {
		return domain.Proposal{}, proposalLoadError(err, proposalID)
	}
	if actorID != p.FreelancerID {
		return p, Forbiddenf("only the proposal owner can withdraw it")
	}
	if err := CanWithdrawProposal(p); err != nil {
		return p, err
	}
	now := e.nowString()
	p.Status = domain.ProposalStatusWithdrawn
	p.WithdrawnAt = &now
	p.UpdatedAt = now

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return p, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateProposal(ctx, tx, p, domain.ProposalStatusPending); err != nil {
		return p, staleAsConflict(err)
	}
	if err := e.Events.Append(ctx, tx, "proposal.withdrawn", "proposal", p.ID, actorID, events.EventPayload{"job_id": p.JobID}); err != nil {
		return p, err
	}
	if err := tx.Commit(); err != nil {
		return p, err
	}
	return p, nil
}

func proposalLoadError(err error, id string) error {
	if errors.Is(err, repo.ErrNotFound) {
		return NotFoundf("proposal %s not found", id)
	}
	return err
}
