package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gigline/internal/domain"
)

func TestNormalizeCreateStatus(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty falls back to draft", "", domain.JobStatusDraft},
		{"draft passes through", "draft", domain.JobStatusDraft},
		{"open passes through", "open", domain.JobStatusOpen},
		{"mixed case open", "OPEN", domain.JobStatusOpen},
		{"whitespace trimmed", "  draft  ", domain.JobStatusDraft},
		{"privileged status rejected", "in_progress", domain.JobStatusDraft},
		{"terminal status rejected", "completed", domain.JobStatusDraft},
		{"unknown value rejected", "ACTIVE", domain.JobStatusDraft},
		{"garbage rejected", "what", domain.JobStatusDraft},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, domain.NormalizeCreateStatus(tc.in))
		})
	}
}

func TestAddPartyIdempotent(t *testing.T) {
	j := domain.Job{Parties: []domain.Party{{ActorID: "client-1", Role: domain.RoleCreator}}}
	added := j.AddParty(domain.Party{ActorID: "fl-1", Role: domain.RoleContractor})
	assert.True(t, added)
	assert.Len(t, j.Parties, 2)

	added = j.AddParty(domain.Party{ActorID: "fl-1", Role: domain.RoleContractor})
	assert.False(t, added)
	assert.Len(t, j.Parties, 2)
}

func TestContractorLookup(t *testing.T) {
	j := domain.Job{Parties: []domain.Party{{ActorID: "client-1", Role: domain.RoleCreator}}}
	_, ok := j.Contractor()
	assert.False(t, ok)

	j.AddParty(domain.Party{ActorID: "fl-1", Role: domain.RoleContractor})
	c, ok := j.Contractor()
	assert.True(t, ok)
	assert.Equal(t, "fl-1", c)

	assert.True(t, j.IsParticipant("client-1"))
	assert.True(t, j.IsParticipant("fl-1"))
	assert.False(t, j.IsParticipant("stranger"))

	// Creator matches through CreatorID even without a party entry.
	byField := domain.Job{CreatorID: "client-2"}
	assert.True(t, byField.IsParticipant("client-2"))
}

func TestAllMilestonesCompleted(t *testing.T) {
	var j domain.Job
	assert.False(t, j.AllMilestonesCompleted(), "no milestones means nothing to complete")

	j.Milestones = []domain.Milestone{
		{Title: "design", Status: domain.MilestoneStatusCompleted},
		{Title: "build", Status: domain.MilestoneStatusSubmitted},
	}
	assert.False(t, j.AllMilestonesCompleted())

	j.Milestones[1].Status = domain.MilestoneStatusCompleted
	assert.True(t, j.AllMilestonesCompleted())
}

func TestMilestoneApproveDeduplicates(t *testing.T) {
	m := domain.Milestone{Title: "design", Status: domain.MilestoneStatusSubmitted}
	m.Approve("client-1")
	m.Approve("client-1")
	m.Approve("client-2")
	assert.Equal(t, []string{"client-1", "client-2"}, m.ApprovedBy)
}
