package domain

import "strings"

// Job statuses. Transitions are monotonic along draft -> open -> in_progress
// -> completed; cancelled is reachable only from in_progress through the
// cancellation handshake.
const (
	JobStatusDraft      = "draft"
	JobStatusOpen       = "open"
	JobStatusInProgress = "in_progress"
	JobStatusCompleted  = "completed"
	JobStatusCancelled  = "cancelled"
)

// Milestone statuses. Forward path is active -> submitted -> completed.
const (
	MilestoneStatusActive    = "active"
	MilestoneStatusSubmitted = "submitted"
	MilestoneStatusCompleted = "completed"
	MilestoneStatusCancelled = "cancelled"
)

// Proposal statuses. Accepted and withdrawn are terminal; rejected is
// reachable from pending only.
const (
	ProposalStatusPending   = "pending"
	ProposalStatusAccepted  = "accepted"
	ProposalStatusRejected  = "rejected"
	ProposalStatusWithdrawn = "withdrawn"
)

// Cancellation sub-record statuses.
const (
	CancellationPending  = "pending"
	CancellationAccepted = "accepted"
	CancellationRejected = "rejected"
)

// Party roles on a job.
const (
	RoleCreator    = "creator"
	RoleContractor = "contractor"
	RoleArbitrator = "arbitrator"
)

// Coarse actor roles resolved by the caller layer.
const (
	ActorRoleClient     = "client"
	ActorRoleFreelancer = "freelancer"
)

var ValidJobStatuses = map[string]struct{}{
	JobStatusDraft:      {},
	JobStatusOpen:       {},
	JobStatusInProgress: {},
	JobStatusCompleted:  {},
	JobStatusCancelled:  {},
}

var ValidMilestoneStatuses = map[string]struct{}{
	MilestoneStatusActive:    {},
	MilestoneStatusSubmitted: {},
	MilestoneStatusCompleted: {},
	MilestoneStatusCancelled: {},
}

var ValidProposalStatuses = map[string]struct{}{
	ProposalStatusPending:   {},
	ProposalStatusAccepted:  {},
	ProposalStatusRejected:  {},
	ProposalStatusWithdrawn: {},
}

var ValidCancellationStatuses = map[string]struct{}{
	CancellationPending:  {},
	CancellationAccepted: {},
	CancellationRejected: {},
}

// NormalizeCreateStatus maps an untrusted client-provided status hint to a
// legal creation status. Only draft and open may be chosen at creation time;
// anything else defaults to draft. The hint is case-insensitive.
func NormalizeCreateStatus(candidate string) string {
	s := strings.ToLower(strings.TrimSpace(candidate))
	if s == JobStatusDraft || s == JobStatusOpen {
		return s
	}
	return JobStatusDraft
}
