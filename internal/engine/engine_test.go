package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"gigline/internal/config"
	"gigline/internal/db"
	"gigline/internal/domain"
	"gigline/internal/engine"
	"gigline/internal/migrate"
	"gigline/internal/repo"
)

func newTestEnv(t *testing.T) engine.Engine {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default("test-market"))
	eng.Now = func() time.Time {
		return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	}
	return eng
}

func mustCreateJob(t *testing.T, eng engine.Engine, opts engine.JobCreateOptions) domain.Job {
	t.Helper()
	if opts.Category == "" {
		opts.Category = "Design"
	}
	if opts.Title == "" {
		opts.Title = "Logo refresh"
	}
	if opts.BudgetMin == nil {
		min := 500.0
		opts.BudgetMin = &min
	}
	j, err := eng.CreateJob(context.Background(), opts)
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	return j
}

// hireFreelancer drives a job from draft to in_progress with fl hired.
func hireFreelancer(t *testing.T, eng engine.Engine, j domain.Job, fl string) domain.Job {
	t.Helper()
	ctx := context.Background()
	if j.Status == domain.JobStatusDraft {
		var err error
		j, err = eng.PublishJob(ctx, j.ID, j.CreatorID)
		if err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	p, err := eng.CreateProposal(ctx, engine.ProposalCreateOptions{JobID: j.ID, FreelancerID: fl})
	if err != nil {
		t.Fatalf("create proposal: %v", err)
	}
	_, hired, err := eng.AcceptProposal(ctx, p.ID, j.CreatorID)
	if err != nil {
		t.Fatalf("accept proposal: %v", err)
	}
	return hired
}

func wantKind(t *testing.T, err error, kind engine.ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	var ee *engine.Error
	if !errors.As(err, &ee) {
		t.Fatalf("expected %s error, got %v", kind, err)
	}
	if ee.Kind != kind {
		t.Fatalf("expected kind %s, got %s (%v)", kind, ee.Kind, err)
	}
}

func TestCreateJobDefaults(t *testing.T) {
	eng := newTestEnv(t)
	j := mustCreateJob(t, eng, engine.JobCreateOptions{CreatorID: "client-1"})
	if j.Status != domain.JobStatusDraft {
		t.Fatalf("expected draft, got %s", j.Status)
	}
	if len(j.Parties) != 1 || j.Parties[0].Role != domain.RoleCreator {
		t.Fatalf("expected a single creator party, got %+v", j.Parties)
	}
	if j.ID == "" {
		t.Fatalf("expected a generated id")
	}
}

func TestCreateJobPrivilegedStatusNormalized(t *testing.T) {
	eng := newTestEnv(t)
	j := mustCreateJob(t, eng, engine.JobCreateOptions{CreatorID: "client-1", Status: "completed"})
	if j.Status != domain.JobStatusDraft {
		t.Fatalf("expected completed hint to normalize to draft, got %s", j.Status)
	}
}

func TestCreateJobUnknownCategory(t *testing.T) {
	eng := newTestEnv(t)
	_, err := eng.CreateJob(context.Background(), engine.JobCreateOptions{
		CreatorID: "client-1",
		Title:     "Thing",
		Category:  "Astrology",
	})
	wantKind(t, err, engine.KindInvalidState)
}

func TestPublishJobLifecycle(t *testing.T) {
	eng := newTestEnv(t)
	ctx := context.Background()
	j := mustCreateJob(t, eng, engine.JobCreateOptions{CreatorID: "client-1"})

	pub, err := eng.PublishJob(ctx, j.ID, "client-1")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if pub.Status != domain.JobStatusOpen {
		t.Fatalf("expected open, got %s", pub.Status)
	}

	_, err = eng.PublishJob(ctx, j.ID, "client-1")
	wantKind(t, err, engine.KindInvalidState)
}

func TestPublishJobRequiresCreator(t *testing.T) {
	eng := newTestEnv(t)
	j := mustCreateJob(t, eng, engine.JobCreateOptions{CreatorID: "client-1"})
	_, err := eng.PublishJob(context.Background(), j.ID, "client-2")
	wantKind(t, err, engine.KindForbidden)
}

func TestPublishJobMissingBudget(t *testing.T) {
	eng := newTestEnv(t)
	j, err := eng.CreateJob(context.Background(), engine.JobCreateOptions{
		CreatorID: "client-1",
		Title:     "Unbudgeted",
		Category:  "Design",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = eng.PublishJob(context.Background(), j.ID, "client-1")
	wantKind(t, err, engine.KindInvalidState)
}

func TestUpdateJobLockedOnceStarted(t *testing.T) {
	eng := newTestEnv(t)
	ctx := context.Background()
	j := mustCreateJob(t, eng, engine.JobCreateOptions{CreatorID: "client-1"})
	j = hireFreelancer(t, eng, j, "fl-1")

	title := "Too late"
	_, err := eng.UpdateJob(ctx, engine.JobUpdateOptions{ID: j.ID, ActorID: "client-1", Title: &title})
	wantKind(t, err, engine.KindInvalidState)
}

func TestUpdateJobReplacesMilestones(t *testing.T) {
	eng := newTestEnv(t)
	ctx := context.Background()
	j := mustCreateJob(t, eng, engine.JobCreateOptions{
		CreatorID:  "client-1",
		Milestones: []engine.MilestoneInput{{Title: "draft copy", Value: 100}},
	})
	ms := []engine.MilestoneInput{{Title: "wireframes", Value: 200}, {Title: "final", Value: 300}}
	updated, err := eng.UpdateJob(ctx, engine.JobUpdateOptions{ID: j.ID, ActorID: "client-1", Milestones: &ms})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(updated.Milestones) != 2 {
		t.Fatalf("expected 2 milestones, got %d", len(updated.Milestones))
	}
	for _, m := range updated.Milestones {
		if m.Status != domain.MilestoneStatusActive {
			t.Fatalf("replacement milestone should start active, got %s", m.Status)
		}
	}
}

func TestGetJobNotFound(t *testing.T) {
	eng := newTestEnv(t)
	_, err := eng.GetJob(context.Background(), "missing", false)
	wantKind(t, err, engine.KindNotFound)
}

func TestCreateProposalRules(t *testing.T) {
	eng := newTestEnv(t)
	ctx := context.Background()
	j := mustCreateJob(t, eng, engine.JobCreateOptions{CreatorID: "client-1"})

	_, err := eng.CreateProposal(ctx, engine.ProposalCreateOptions{JobID: j.ID, FreelancerID: "fl-1"})
	wantKind(t, err, engine.KindInvalidState) // draft job is not open

	j, err = eng.PublishJob(ctx, j.ID, "client-1")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	_, err = eng.CreateProposal(ctx, engine.ProposalCreateOptions{JobID: j.ID, FreelancerID: "client-1"})
	wantKind(t, err, engine.KindInvalidState) // own job

	p, err := eng.CreateProposal(ctx, engine.ProposalCreateOptions{JobID: j.ID, FreelancerID: "fl-1"})
	if err != nil {
		t.Fatalf("create proposal: %v", err)
	}
	if p.Status != domain.ProposalStatusPending {
		t.Fatalf("expected pending, got %s", p.Status)
	}

	_, err = eng.CreateProposal(ctx, engine.ProposalCreateOptions{JobID: j.ID, FreelancerID: "fl-1"})
	wantKind(t, err, engine.KindInvalidState) // duplicate active proposal

	got, err := eng.GetJob(ctx, j.ID, false)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.ProposalCount != 1 {
		t.Fatalf("expected proposal_count 1, got %d", got.ProposalCount)
	}
}

func TestWithdrawThenReapply(t *testing.T) {
	eng := newTestEnv(t)
	ctx := context.Background()
	j := mustCreateJob(t, eng, engine.JobCreateOptions{CreatorID: "client-1"})
	j, _ = eng.PublishJob(ctx, j.ID, "client-1")

	p, err := eng.CreateProposal(ctx, engine.ProposalCreateOptions{JobID: j.ID, FreelancerID: "fl-1"})
	if err != nil {
		t.Fatalf("create proposal: %v", err)
	}
	w, err := eng.WithdrawProposal(ctx, p.ID, "fl-1")
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if w.Status != domain.ProposalStatusWithdrawn || w.WithdrawnAt == nil {
		t.Fatalf("expected withdrawn with timestamp, got %+v", w)
	}

	_, err = eng.WithdrawProposal(ctx, p.ID, "fl-1")
	wantKind(t, err, engine.KindInvalidState)

	// Withdrawn no longer counts as active, so a fresh proposal is allowed.
	if _, err := eng.CreateProposal(ctx, engine.ProposalCreateOptions{JobID: j.ID, FreelancerID: "fl-1"}); err != nil {
		t.Fatalf("reapply after withdraw: %v", err)
	}
}

func TestWithdrawProposalOwnerOnly(t *testing.T) {
	eng := newTestEnv(t)
	ctx := context.Background()
	j := mustCreateJob(t, eng, engine.JobCreateOptions{CreatorID: "client-1"})
	j, _ = eng.PublishJob(ctx, j.ID, "client-1")
	p, err := eng.CreateProposal(ctx, engine.ProposalCreateOptions{JobID: j.ID, FreelancerID: "fl-1"})
	if err != nil {
		t.Fatalf("create proposal: %v", err)
	}
	_, err = eng.WithdrawProposal(ctx, p.ID, "fl-2")
	wantKind(t, err, engine.KindForbidden)
}

func TestAcceptProposalSideEffects(t *testing.T) {
	eng := newTestEnv(t)
	ctx := context.Background()
	j := mustCreateJob(t, eng, engine.JobCreateOptions{CreatorID: "client-1"})
	j, _ = eng.PublishJob(ctx, j.ID, "client-1")

	winner, err := eng.CreateProposal(ctx, engine.ProposalCreateOptions{JobID: j.ID, FreelancerID: "fl-1"})
	if err != nil {
		t.Fatalf("create proposal: %v", err)
	}
	loser, err := eng.CreateProposal(ctx, engine.ProposalCreateOptions{JobID: j.ID, FreelancerID: "fl-2"})
	if err != nil {
		t.Fatalf("create proposal: %v", err)
	}

	p, hired, err := eng.AcceptProposal(ctx, winner.ID, "client-1")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if p.Status != domain.ProposalStatusAccepted {
		t.Fatalf("expected accepted, got %s", p.Status)
	}
	if hired.Status != domain.JobStatusInProgress {
		t.Fatalf("expected in_progress, got %s", hired.Status)
	}
	if hired.HiredFreelancer == nil || *hired.HiredFreelancer != "fl-1" {
		t.Fatalf("expected fl-1 hired, got %+v", hired.HiredFreelancer)
	}
	if c, ok := hired.Contractor(); !ok || c != "fl-1" {
		t.Fatalf("expected contractor party fl-1, got %+v", hired.Parties)
	}

	sibling, err := eng.Repo.GetProposal(ctx, loser.ID)
	if err != nil {
		t.Fatalf("get sibling: %v", err)
	}
	if sibling.Status != domain.ProposalStatusRejected {
		t.Fatalf("expected pending sibling auto-rejected, got %s", sibling.Status)
	}

	// Second accept must fail: the job already left open.
	_, _, err = eng.AcceptProposal(ctx, loser.ID, "client-1")
	wantKind(t, err, engine.KindInvalidState)
}

func TestAcceptProposalCreatorOnly(t *testing.T) {
	eng := newTestEnv(t)
	ctx := context.Background()
	j := mustCreateJob(t, eng, engine.JobCreateOptions{CreatorID: "client-1"})
	j, _ = eng.PublishJob(ctx, j.ID, "client-1")
	p, err := eng.CreateProposal(ctx, engine.ProposalCreateOptions{JobID: j.ID, FreelancerID: "fl-1"})
	if err != nil {
		t.Fatalf("create proposal: %v", err)
	}
	_, _, err = eng.AcceptProposal(ctx, p.ID, "fl-1")
	wantKind(t, err, engine.KindForbidden)
}

func TestRejectProposal(t *testing.T) {
	eng := newTestEnv(t)
	ctx := context.Background()
	j := mustCreateJob(t, eng, engine.JobCreateOptions{CreatorID: "client-1"})
	j, _ = eng.PublishJob(ctx, j.ID, "client-1")
	p, err := eng.CreateProposal(ctx, engine.ProposalCreateOptions{JobID: j.ID, FreelancerID: "fl-1"})
	if err != nil {
		t.Fatalf("create proposal: %v", err)
	}

	rejected, err := eng.RejectProposal(ctx, p.ID, "client-1", "  budget mismatch  ")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != domain.ProposalStatusRejected {
		t.Fatalf("expected rejected, got %s", rejected.Status)
	}
	if rejected.RejectReason != "budget mismatch" {
		t.Fatalf("expected trimmed reason, got %q", rejected.RejectReason)
	}
	if rejected.RejectedAt == nil {
		t.Fatalf("expected rejected_at set")
	}

	_, err = eng.RejectProposal(ctx, p.ID, "client-1", "")
	wantKind(t, err, engine.KindInvalidState)
}

func TestMilestoneFlow(t *testing.T) {
	eng := newTestEnv(t)
	ctx := context.Background()
	j := mustCreateJob(t, eng, engine.JobCreateOptions{
		CreatorID: "client-1",
		Milestones: []engine.MilestoneInput{
			{Title: "wireframes", Value: 200},
			{Title: "final design", Value: 300},
		},
	})
	j = hireFreelancer(t, eng, j, "fl-1")

	// Only the contractor submits.
	_, err := eng.SubmitMilestone(ctx, j.ID, 0, "client-1", "")
	wantKind(t, err, engine.KindForbidden)

	j, err = eng.SubmitMilestone(ctx, j.ID, 0, "fl-1", "https://example.com/wireframes")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if j.Milestones[0].Status != domain.MilestoneStatusSubmitted {
		t.Fatalf("expected submitted, got %s", j.Milestones[0].Status)
	}
	if j.Milestones[0].Evidence != "https://example.com/wireframes" {
		t.Fatalf("expected evidence kept, got %q", j.Milestones[0].Evidence)
	}

	// Resubmitting a submitted milestone is rejected.
	_, err = eng.SubmitMilestone(ctx, j.ID, 0, "fl-1", "")
	wantKind(t, err, engine.KindInvalidState)

	// Approving an active milestone is rejected.
	_, _, err = eng.ApproveMilestone(ctx, j.ID, 1, "client-1")
	wantKind(t, err, engine.KindInvalidState)

	j, done, err := eng.ApproveMilestone(ctx, j.ID, 0, "client-1")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if done {
		t.Fatalf("job should not complete with one milestone remaining")
	}
	if j.Status != domain.JobStatusInProgress {
		t.Fatalf("expected job still in_progress, got %s", j.Status)
	}
	if j.Milestones[0].CompletedAt == nil {
		t.Fatalf("expected completed_at on approval")
	}

	if _, err = eng.SubmitMilestone(ctx, j.ID, 1, "fl-1", ""); err != nil {
		t.Fatalf("submit last: %v", err)
	}
	j, done, err = eng.ApproveMilestone(ctx, j.ID, 1, "client-1")
	if err != nil {
		t.Fatalf("approve last: %v", err)
	}
	if !done {
		t.Fatalf("expected job completion on final approval")
	}
	if j.Status != domain.JobStatusCompleted {
		t.Fatalf("expected completed, got %s", j.Status)
	}
}

func TestSubmitMilestoneIndexOutOfRange(t *testing.T) {
	eng := newTestEnv(t)
	j := mustCreateJob(t, eng, engine.JobCreateOptions{
		CreatorID:  "client-1",
		Milestones: []engine.MilestoneInput{{Title: "only", Value: 100}},
	})
	j = hireFreelancer(t, eng, j, "fl-1")
	_, err := eng.SubmitMilestone(context.Background(), j.ID, 5, "fl-1", "")
	wantKind(t, err, engine.KindInvalidState)
}

func TestCancellationAccepted(t *testing.T) {
	eng := newTestEnv(t)
	ctx := context.Background()
	j := mustCreateJob(t, eng, engine.JobCreateOptions{CreatorID: "client-1"})
	j = hireFreelancer(t, eng, j, "fl-1")

	j, err := eng.RequestCancellation(ctx, j.ID, "fl-1", "client unresponsive")
	if err != nil {
		t.Fatalf("request cancellation: %v", err)
	}
	if j.Cancellation == nil || j.Cancellation.Status != domain.CancellationPending {
		t.Fatalf("expected pending cancellation, got %+v", j.Cancellation)
	}
	if j.Cancellation.InitiatedRole != domain.RoleContractor {
		t.Fatalf("expected contractor initiator role, got %s", j.Cancellation.InitiatedRole)
	}

	// The initiator cannot answer their own request.
	_, err = eng.RespondCancellation(ctx, j.ID, "fl-1", "accept")
	wantKind(t, err, engine.KindForbidden)

	j, err = eng.RespondCancellation(ctx, j.ID, "client-1", "accept")
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if j.Status != domain.JobStatusCancelled {
		t.Fatalf("expected cancelled, got %s", j.Status)
	}
	if j.Cancellation.Status != domain.CancellationAccepted || j.Cancellation.RespondedBy == nil {
		t.Fatalf("expected accepted cancellation with responder, got %+v", j.Cancellation)
	}
}

func TestCancellationRejectedKeepsJobRunning(t *testing.T) {
	eng := newTestEnv(t)
	ctx := context.Background()
	j := mustCreateJob(t, eng, engine.JobCreateOptions{CreatorID: "client-1"})
	j = hireFreelancer(t, eng, j, "fl-1")

	if _, err := eng.RequestCancellation(ctx, j.ID, "client-1", "scope changed"); err != nil {
		t.Fatalf("request: %v", err)
	}
	j, err := eng.RespondCancellation(ctx, j.ID, "fl-1", "reject")
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if j.Status != domain.JobStatusInProgress {
		t.Fatalf("expected job still in_progress, got %s", j.Status)
	}
	if j.Cancellation == nil || j.Cancellation.Status != domain.CancellationRejected {
		t.Fatalf("expected rejected record kept, got %+v", j.Cancellation)
	}

	// A rejected record does not block a new request.
	if _, err := eng.RequestCancellation(ctx, j.ID, "client-1", "second try"); err != nil {
		t.Fatalf("second request: %v", err)
	}
}

func TestCancellationOutsiderForbidden(t *testing.T) {
	eng := newTestEnv(t)
	j := mustCreateJob(t, eng, engine.JobCreateOptions{CreatorID: "client-1"})
	j = hireFreelancer(t, eng, j, "fl-1")
	_, err := eng.RequestCancellation(context.Background(), j.ID, "stranger", "")
	wantKind(t, err, engine.KindForbidden)
}

func TestDeleteJobCascadesProposals(t *testing.T) {
	eng := newTestEnv(t)
	ctx := context.Background()
	j := mustCreateJob(t, eng, engine.JobCreateOptions{CreatorID: "client-1"})
	j, _ = eng.PublishJob(ctx, j.ID, "client-1")
	p, err := eng.CreateProposal(ctx, engine.ProposalCreateOptions{JobID: j.ID, FreelancerID: "fl-1"})
	if err != nil {
		t.Fatalf("create proposal: %v", err)
	}

	if err := eng.DeleteJob(ctx, j.ID, "client-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err = eng.GetJob(ctx, j.ID, false)
	wantKind(t, err, engine.KindNotFound)
	if _, err := eng.Repo.GetProposal(ctx, p.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected proposal removed with the job, got %v", err)
	}
}

func TestDeleteJobLockedOnceStarted(t *testing.T) {
	eng := newTestEnv(t)
	j := mustCreateJob(t, eng, engine.JobCreateOptions{CreatorID: "client-1"})
	j = hireFreelancer(t, eng, j, "fl-1")
	err := eng.DeleteJob(context.Background(), j.ID, "client-1")
	wantKind(t, err, engine.KindInvalidState)
}

func TestEventsRecorded(t *testing.T) {
	eng := newTestEnv(t)
	ctx := context.Background()
	j := mustCreateJob(t, eng, engine.JobCreateOptions{CreatorID: "client-1"})
	hireFreelancer(t, eng, j, "fl-1")

	evts, err := eng.Repo.LatestEvents(ctx, 50, "", "", "")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	seen := map[string]bool{}
	for _, e := range evts {
		seen[e.Type] = true
	}
	for _, want := range []string{"job.created", "job.published", "proposal.created", "proposal.accepted", "job.started"} {
		if !seen[want] {
			t.Fatalf("expected event %s in log, got %v", want, seen)
		}
	}
}
