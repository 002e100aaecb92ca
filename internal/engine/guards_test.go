package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gigline/internal/domain"
	"gigline/internal/engine"
)

func floatPtr(v float64) *float64 { return &v }

func publishableJob(status string) domain.Job {
	return domain.Job{
		ID:       "job-1",
		Status:   status,
		Category: "Design",
		Budget:   domain.Budget{Min: floatPtr(100)},
	}
}

func TestCanUpdateJob(t *testing.T) {
	cases := []struct {
		status string
		wantOK bool
	}{
		{domain.JobStatusDraft, true},
		{domain.JobStatusOpen, true},
		{domain.JobStatusInProgress, false},
		{domain.JobStatusCompleted, false},
		{domain.JobStatusCancelled, false},
	}
	for _, tc := range cases {
		t.Run(tc.status, func(t *testing.T) {
			err := engine.CanUpdateJob(domain.Job{Status: tc.status})
			if tc.wantOK {
				assert.NoError(t, err)
				return
			}
			requireKind(t, err, engine.KindInvalidState)
		})
	}
}

func TestCanPublishJob(t *testing.T) {
	t.Run("draft with category and budget", func(t *testing.T) {
		assert.NoError(t, engine.CanPublishJob(publishableJob(domain.JobStatusDraft)))
	})
	t.Run("already open", func(t *testing.T) {
		requireKind(t, engine.CanPublishJob(publishableJob(domain.JobStatusOpen)), engine.KindInvalidState)
	})
	t.Run("missing category", func(t *testing.T) {
		j := publishableJob(domain.JobStatusDraft)
		j.Category = ""
		requireKind(t, engine.CanPublishJob(j), engine.KindInvalidState)
	})
	t.Run("missing budget", func(t *testing.T) {
		j := publishableJob(domain.JobStatusDraft)
		j.Budget.Min = nil
		requireKind(t, engine.CanPublishJob(j), engine.KindInvalidState)
	})
}

func TestCanDeleteJob(t *testing.T) {
	assert.NoError(t, engine.CanDeleteJob(domain.Job{Status: domain.JobStatusDraft}))
	assert.NoError(t, engine.CanDeleteJob(domain.Job{Status: domain.JobStatusOpen}))
	requireKind(t, engine.CanDeleteJob(domain.Job{Status: domain.JobStatusInProgress}), engine.KindInvalidState)
	requireKind(t, engine.CanDeleteJob(domain.Job{Status: domain.JobStatusCompleted}), engine.KindInvalidState)
}

func TestCanSubmitMilestone(t *testing.T) {
	cases := []struct {
		name      string
		jobStatus string
		msStatus  string
		wantOK    bool
	}{
		{"in progress active", domain.JobStatusInProgress, domain.MilestoneStatusActive, true},
		{"job not started", domain.JobStatusOpen, domain.MilestoneStatusActive, false},
		{"milestone already submitted", domain.JobStatusInProgress, domain.MilestoneStatusSubmitted, false},
		{"milestone completed", domain.JobStatusInProgress, domain.MilestoneStatusCompleted, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := engine.CanSubmitMilestone(domain.Job{Status: tc.jobStatus}, domain.Milestone{Status: tc.msStatus})
			if tc.wantOK {
				assert.NoError(t, err)
				return
			}
			requireKind(t, err, engine.KindInvalidState)
		})
	}
}

func TestCanApproveMilestone(t *testing.T) {
	assert.NoError(t, engine.CanApproveMilestone(domain.Milestone{Status: domain.MilestoneStatusSubmitted}))
	requireKind(t, engine.CanApproveMilestone(domain.Milestone{Status: domain.MilestoneStatusActive}), engine.KindInvalidState)
	requireKind(t, engine.CanApproveMilestone(domain.Milestone{Status: domain.MilestoneStatusCompleted}), engine.KindInvalidState)
}

func TestCanRequestCancellation(t *testing.T) {
	t.Run("in progress without pending request", func(t *testing.T) {
		assert.NoError(t, engine.CanRequestCancellation(domain.Job{Status: domain.JobStatusInProgress}))
	})
	t.Run("not in progress", func(t *testing.T) {
		requireKind(t, engine.CanRequestCancellation(domain.Job{Status: domain.JobStatusOpen}), engine.KindInvalidState)
	})
	t.Run("pending request already exists", func(t *testing.T) {
		j := domain.Job{
			Status:       domain.JobStatusInProgress,
			Cancellation: &domain.Cancellation{Status: domain.CancellationPending, InitiatedBy: "client-1"},
		}
		requireKind(t, engine.CanRequestCancellation(j), engine.KindInvalidState)
	})
	t.Run("rejected record allows a new request", func(t *testing.T) {
		j := domain.Job{
			Status:       domain.JobStatusInProgress,
			Cancellation: &domain.Cancellation{Status: domain.CancellationRejected, InitiatedBy: "client-1"},
		}
		assert.NoError(t, engine.CanRequestCancellation(j))
	})
}

func TestCanRespondCancellation(t *testing.T) {
	pending := func() domain.Job {
		return domain.Job{
			Status:       domain.JobStatusInProgress,
			Cancellation: &domain.Cancellation{Status: domain.CancellationPending, InitiatedBy: "client-1"},
		}
	}
	t.Run("other party accepts", func(t *testing.T) {
		assert.NoError(t, engine.CanRespondCancellation(pending(), "fl-1", "accept"))
	})
	t.Run("other party rejects", func(t *testing.T) {
		assert.NoError(t, engine.CanRespondCancellation(pending(), "fl-1", "reject"))
	})
	t.Run("initiator cannot respond", func(t *testing.T) {
		requireKind(t, engine.CanRespondCancellation(pending(), "client-1", "accept"), engine.KindForbidden)
	})
	t.Run("no pending request", func(t *testing.T) {
		requireKind(t, engine.CanRespondCancellation(domain.Job{Status: domain.JobStatusInProgress}, "fl-1", "accept"), engine.KindInvalidState)
	})
	t.Run("unknown action", func(t *testing.T) {
		requireKind(t, engine.CanRespondCancellation(pending(), "fl-1", "maybe"), engine.KindInvalidState)
	})
}

func TestCanAcceptProposal(t *testing.T) {
	assert.NoError(t, engine.CanAcceptProposal(domain.Job{Status: domain.JobStatusOpen}))
	err := engine.CanAcceptProposal(domain.Job{Status: domain.JobStatusInProgress})
	requireKind(t, err, engine.KindInvalidState)
	assert.Contains(t, err.Error(), "not open for hiring")
}

func TestCanRejectProposal(t *testing.T) {
	openJob := domain.Job{Status: domain.JobStatusOpen}
	t.Run("pending proposal on open job", func(t *testing.T) {
		assert.NoError(t, engine.CanRejectProposal(openJob, domain.Proposal{Status: domain.ProposalStatusPending}))
	})
	t.Run("pending proposal on in-progress job", func(t *testing.T) {
		assert.NoError(t, engine.CanRejectProposal(domain.Job{Status: domain.JobStatusInProgress}, domain.Proposal{Status: domain.ProposalStatusPending}))
	})
	t.Run("job in terminal state", func(t *testing.T) {
		requireKind(t, engine.CanRejectProposal(domain.Job{Status: domain.JobStatusCompleted}, domain.Proposal{Status: domain.ProposalStatusPending}), engine.KindInvalidState)
	})
	t.Run("distinct messages per proposal state", func(t *testing.T) {
		cases := []struct {
			status  string
			message string
		}{
			{domain.ProposalStatusAccepted, "accepted"},
			{domain.ProposalStatusWithdrawn, "withdrawn"},
			{domain.ProposalStatusRejected, "already rejected"},
		}
		for _, tc := range cases {
			err := engine.CanRejectProposal(openJob, domain.Proposal{Status: tc.status})
			requireKind(t, err, engine.KindInvalidState)
			assert.Contains(t, err.Error(), tc.message)
		}
	})
}

func TestCanWithdrawProposal(t *testing.T) {
	assert.NoError(t, engine.CanWithdrawProposal(domain.Proposal{Status: domain.ProposalStatusPending}))
	for _, status := range []string{
		domain.ProposalStatusAccepted,
		domain.ProposalStatusRejected,
		domain.ProposalStatusWithdrawn,
	} {
		requireKind(t, engine.CanWithdrawProposal(domain.Proposal{Status: status}), engine.KindInvalidState)
	}
}

func requireKind(t *testing.T, err error, kind engine.ErrorKind) {
	t.Helper()
	require.Error(t, err)
	var ee *engine.Error
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, kind, ee.Kind)
}
