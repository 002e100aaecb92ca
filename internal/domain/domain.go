package domain

type Budget struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Party is an identity attached to a job in a role. The parties list is an
// ordered set: at most one entry per (actor, role) pair.
type Party struct {
	ActorID string `json:"actor_id"`
	Role    string `json:"role" enum:"creator,contractor,arbitrator"`
}

// Milestone is a sub-deliverable embedded in its job. Milestones are only
// ever mutated through the owning job record.
type Milestone struct {
	Title       string   `json:"title"`
	Value       float64  `json:"value"`
	Status      string   `json:"status" enum:"active,submitted,completed,cancelled"`
	Evidence    string   `json:"evidence,omitempty"`
	ApprovedBy  []string `json:"approved_by,omitempty"`
	CompletedAt *string  `json:"completed_at,omitempty" format:"date-time"`
}

// Cancellation is the optional request/respond sub-record on a job. A
// rejected record stays in place as history; only a pending record blocks a
// new request.
type Cancellation struct {
	Status        string  `json:"status" enum:"pending,accepted,rejected"`
	InitiatedBy   string  `json:"initiated_by"`
	InitiatedRole string  `json:"initiated_role" enum:"creator,contractor"`
	Reason        string  `json:"reason,omitempty"`
	RequestedAt   string  `json:"requested_at" format:"date-time"`
	RespondedBy   *string `json:"responded_by,omitempty"`
	RespondedAt   *string `json:"responded_at,omitempty" format:"date-time"`
}

type Job struct {
	ID              string        `json:"id"`
	CreatorID       string        `json:"creator_id"`
	Title           string        `json:"title"`
	Description     string        `json:"description,omitempty"`
	Category        string        `json:"category,omitempty"`
	Budget          Budget        `json:"budget"`
	Status          string        `json:"status" enum:"draft,open,in_progress,completed,cancelled"`
	HiredFreelancer *string       `json:"hired_freelancer,omitempty"`
	Parties         []Party       `json:"parties,omitempty"`
	Milestones      []Milestone   `json:"milestones,omitempty"`
	Cancellation    *Cancellation `json:"cancellation,omitempty"`
	ViewCount       int64         `json:"view_count"`
	ProposalCount   int64         `json:"proposal_count"`
	CreatedAt       string        `json:"created_at" format:"date-time"`
	UpdatedAt       string        `json:"updated_at" format:"date-time"`
}

// HasParty reports whether the job already carries the (actor, role) pair.
func (j *Job) HasParty(actorID, role string) bool {
	for _, p := range j.Parties {
		if p.ActorID == actorID && p.Role == role {
			return true
		}
	}
	return false
}

// AddParty appends the party if absent. Returns true when a new entry was
// added, keeping retries idempotent.
func (j *Job) AddParty(p Party) bool {
	if j.HasParty(p.ActorID, p.Role) {
		return false
	}
	j.Parties = append(j.Parties, p)
	return true
}

// Contractor returns the hired contractor's actor id, if one exists.
func (j *Job) Contractor() (string, bool) {
	for _, p := range j.Parties {
		if p.Role == RoleContractor {
			return p.ActorID, true
		}
	}
	return "", false
}

// IsParticipant reports whether the actor is the creator or the contractor.
// The creator matches by CreatorID or by a creator-role party entry.
func (j *Job) IsParticipant(actorID string) bool {
	if actorID == j.CreatorID || j.HasParty(actorID, RoleCreator) {
		return true
	}
	c, ok := j.Contractor()
	return ok && c == actorID
}

// AllMilestonesCompleted reports whether every milestone reached completed.
// A job with no milestones is never auto-completed.
func (j *Job) AllMilestonesCompleted() bool {
	if len(j.Milestones) == 0 {
		return false
	}
	for _, m := range j.Milestones {
		if m.Status != MilestoneStatusCompleted {
			return false
		}
	}
	return true
}

// Approve records an approver on the milestone, deduplicated.
func (m *Milestone) Approve(approverID string) {
	for _, a := range m.ApprovedBy {
		if a == approverID {
			return
		}
	}
	m.ApprovedBy = append(m.ApprovedBy, approverID)
}

// Proposal is a freelancer's bid on a job. At most one proposal per
// (freelancer, job) pair may be pending or accepted at a time.
type Proposal struct {
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

// Actor is a marketplace account with its coarse role. Fine-grained
// authorization is relational (creator/contractor/proposal owner) and lives
// with the transition guards.
type Actor struct {
	ID        string `json:"id"`
	Role      string `json:"role" enum:"client,freelancer"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
