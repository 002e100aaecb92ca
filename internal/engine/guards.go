package engine

import (
	"gigline/internal/domain"
)

// Transition guards. Each guard is a pure predicate over the current entity
// (and sometimes the acting identity): it either returns nil or a typed
// *Error, and never mutates anything. Services call the guard first and only
// then apply the transition.

// CanUpdateJob allows edits while the job is draft or open.
func CanUpdateJob(job domain.Job) error {
	if job.Status != domain.JobStatusDraft && job.Status != domain.JobStatusOpen {
		return InvalidStatef("only draft or open jobs can be edited (status %s)", job.Status)
	}
	return nil
}

// CanPublishJob requires a draft job with a category and a minimum budget.
func CanPublishJob(job domain.Job) error {
	if job.Status != domain.JobStatusDraft {
		return InvalidStatef("only draft jobs can be published (status %s)", job.Status)
	}
	if job.Category == "" {
		return InvalidStatef("job is not publishable: category is required")
	}
	if job.Budget.Min == nil {
		return InvalidStatef("job is not publishable: budget.min is required")
	}
	return nil
}

// CanDeleteJob allows deletion while the job is draft or open.
func CanDeleteJob(job domain.Job) error {
	if job.Status != domain.JobStatusDraft && job.Status != domain.JobStatusOpen {
		return InvalidStatef("only draft or open jobs can be deleted (status %s)", job.Status)
	}
	return nil
}

// CanSubmitMilestone requires an in-progress job and an active milestone.
func CanSubmitMilestone(job domain.Job, m domain.Milestone) error {
	if job.Status != domain.JobStatusInProgress {
		return InvalidStatef("milestones can only be submitted while the job is in progress (status %s)", job.Status)
	}
	if m.Status != domain.MilestoneStatusActive {
		return InvalidStatef("milestone is not active (status %s)", m.Status)
	}
	return nil
}

// CanApproveMilestone requires a submitted milestone.
func CanApproveMilestone(m domain.Milestone) error {
	if m.Status != domain.MilestoneStatusSubmitted {
		return InvalidStatef("milestone is not submitted (status %s)", m.Status)
	}
	return nil
}

// CanRequestCancellation requires an in-progress job with no pending
// cancellation. A rejected record does not block a new request.
func CanRequestCancellation(job domain.Job) error {
	if job.Status != domain.JobStatusInProgress {
		return InvalidStatef("only in-progress jobs can be cancelled (status %s)", job.Status)
	}
	if job.Cancellation != nil && job.Cancellation.Status == domain.CancellationPending {
		return InvalidStatef("a cancellation request is already pending")
	}
	return nil
}

// CanRespondCancellation requires an in-progress job with a pending
// cancellation, a responder other than the initiator, and a known action.
func CanRespondCancellation(job domain.Job, responderID, action string) error {
	if job.Status != domain.JobStatusInProgress {
		return InvalidStatef("job is not in progress (status %s)", job.Status)
	}
	if job.Cancellation == nil || job.Cancellation.Status != domain.CancellationPending {
		return InvalidStatef("no pending cancellation request")
	}
	if job.Cancellation.InitiatedBy == responderID {
		return Forbiddenf("the cancellation initiator cannot respond to their own request")
	}
	if action != "accept" && action != "reject" {
		return InvalidStatef("cancellation response must be 'accept' or 'reject'")
	}
	return nil
}

// CanAcceptProposal requires the job to be open for hiring.
func CanAcceptProposal(job domain.Job) error {
	if job.Status != domain.JobStatusOpen {
		return InvalidStatef("job is not open for hiring (status %s)", job.Status)
	}
	return nil
}

// CanRejectProposal layers its checks so each violated sub-condition carries
// a distinct message: job status first, then the proposal's own state.
func CanRejectProposal(job domain.Job, p domain.Proposal) error {
	if job.Status != domain.JobStatusOpen && job.Status != domain.JobStatusInProgress {
		return InvalidStatef("proposals can only be rejected while the job is open or in progress (status %s)", job.Status)
	}
	switch p.Status {
	case domain.ProposalStatusAccepted:
		return InvalidStatef("an accepted proposal cannot be rejected")
	case domain.ProposalStatusWithdrawn:
		return InvalidStatef("a withdrawn proposal cannot be rejected")
	case domain.ProposalStatusRejected:
		return InvalidStatef("proposal is already rejected")
	}
	return nil
}

// CanWithdrawProposal requires a pending proposal.
func CanWithdrawProposal(p domain.Proposal) error {
	if p.Status != domain.ProposalStatusPending {
		return InvalidStatef("only pending proposals can be withdrawn (status %s)", p.Status)
	}
	return nil
}
