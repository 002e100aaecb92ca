package engine

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"gigline/internal/config"
	"gigline/internal/domain"
	"gigline/internal/events"
	"gigline/internal/repo"
)

// Engine hosts the job, milestone and proposal lifecycle services. Every
// operation is guard-then-mutate: the transition guard runs against the
// current record, and only a passing guard leads to a persisted write. No
// partial mutation happens before a guard check completes.
type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowString() string {
	return e.now().UTC().Format(time.RFC3339)
}

// MilestoneInput describes a milestone at job creation or edit time.
type MilestoneInput struct {
	Title string
	Value float64
}

// JobCreateOptions are parameters for creating a job.
type JobCreateOptions struct {
	ID          string
	CreatorID   string
	Title       string
	Description string
	Category    string
	BudgetMin   *float64
	BudgetMax   *float64
	// Status is the untrusted client hint; anything but draft or open
	// normalizes to draft.
	Status     string
	Milestones []MilestoneInput
}

func (e Engine) CreateJob(ctx context.Context, opts JobCreateOptions) (domain.Job, error) {
	if e.Config == nil {
		return domain.Job{}, errors.New("config not loaded")
	}
	if opts.CreatorID == "" {
		return domain.Job{}, InvalidStatef("creator is required")
	}
	if strings.TrimSpace(opts.Title) == "" {
		return domain.Job{}, InvalidStatef("title is required")
	}
	if !e.Config.CategoryAllowed(opts.Category) {
		return domain.Job{}, InvalidStatef("unknown category %s", opts.Category)
	}
	hint := opts.Status
	if hint == "" {
		hint = e.Config.Defaults.CreateStatus
	}
	now := e.nowString()
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	j := domain.Job{
		ID:          id,
		CreatorID:   opts.CreatorID,
		Title:       strings.TrimSpace(opts.Title),
		Description: opts.Description,
		Category:    opts.Category,
		Budget:      domain.Budget{Min: opts.BudgetMin, Max: opts.BudgetMax},
		Status:      domain.NormalizeCreateStatus(hint),
		Parties:     []domain.Party{{ActorID: opts.CreatorID, Role: domain.RoleCreator}},
		Milestones:  buildMilestones(opts.Milestones),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Job{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertJob(ctx, tx, j); err != nil {
		return domain.Job{}, err
	}
	if err := e.Events.Append(ctx, tx, "job.created", "job", j.ID, opts.CreatorID, events.EventPayload{"status": j.Status, "title": j.Title}); err != nil {
		return domain.Job{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Job{}, err
	}
	return j, nil
}

func buildMilestones(in []MilestoneInput) []domain.Milestone {
	var out []domain.Milestone
	for _, m := range in {
		out = append(out, domain.Milestone{
			Title:  strings.TrimSpace(m.Title),
			Value:  m.Value,
			Status: domain.MilestoneStatusActive,
		})
	}
	return out
}

// GetJob loads a job, optionally counting the read as a view.
func (e Engine) GetJob(ctx context.Context, id string, countView bool) (domain.Job, error) {
	j, err := e.Repo.GetJob(ctx, id)
	if err != nil {
		return domain.Job{}, jobLoadError(err, id)
	}
	if countView {
		if err := e.Repo.IncrementViewCount(ctx, id); err != nil {
			return domain.Job{}, err
		}
		j.ViewCount++
	}
	return j, nil
}

// JobUpdateOptions encapsulates allowed edits while a job is draft or open.
type JobUpdateOptions struct {
	ID          string
	ActorID     string
	Title       *string
	Description *string
	Category    *string
	BudgetMin   *float64
	BudgetMax   *float64
	// Milestones replaces the milestone list; replacements start active.
	Milestones *[]MilestoneInput
}

func (e Engine) UpdateJob(ctx context.Context, opts JobUpdateOptions) (domain.Job, error) {
	if e.Config == nil {
		return domain.Job{}, errors.New("config not loaded")
	}
	j, err := e.Repo.GetJob(ctx, opts.ID)
	if err != nil {
		return domain.Job{}, jobLoadError(err, opts.ID)
	}
	if opts.ActorID != j.CreatorID {
		return j, Forbiddenf("only the job creator can edit the job")
	}
	if err := CanUpdateJob(j); err != nil {
		return j, err
	}
	expected := j.Status
	if opts.Title != nil {
		if strings.TrimSpace(*opts.Title) == "" {
			return j, InvalidStatef("title cannot be empty")
		}
		j.Title = strings.TrimSpace(*opts.Title)
	}
	if opts.Description != nil {
		j.Description = *opts.Description
	}
	if opts.Category != nil {
		if !e.Config.CategoryAllowed(*opts.Category) {
			return j, InvalidStatef("unknown category %s", *opts.Category)
		}
		j.Category = *opts.Category
	}
	if opts.BudgetMin != nil {
		j.Budget.Min = opts.BudgetMin
	}
	if opts.BudgetMax != nil {
		j.Budget.Max = opts.BudgetMax
	}
	if opts.Milestones != nil {
		j.Milestones = buildMilestones(*opts.Milestones)
	}
	j.UpdatedAt = e.nowString()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return j, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateJob(ctx, tx, j, expected); err != nil {
		return j, staleAsConflict(err)
	}
	if err := e.Events.Append(ctx, tx, "job.updated", "job", j.ID, opts.ActorID, events.EventPayload{"status": j.Status}); err != nil {
		return j, err
	}
	if err := tx.Commit(); err != nil {
		return j, err
	}
	return j, nil
}

// PublishJob moves a draft job to open.
func (e Engine) PublishJob(ctx context.Context, id, actorID string) (domain.Job, error) {
	j, err := e.Repo.GetJob(ctx, id)
	if err != nil {
		return domain.Job{}, jobLoadError(err, id)
	}
	if actorID != j.CreatorID {
		return j, Forbiddenf("only the job creator can publish the job")
	}
	if err := CanPublishJob(j); err != nil {
		return j, err
	}
	j.Status = domain.JobStatusOpen
	j.UpdatedAt = e.nowString()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return j, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateJob(ctx, tx, j, domain.JobStatusDraft); err != nil {
		return j, staleAsConflict(err)
	}
	if err := e.Events.Append(ctx, tx, "job.published", "job", j.ID, actorID, events.EventPayload{"from_status": domain.JobStatusDraft, "to_status": j.Status}); err != nil {
		return j, err
	}
	if err := tx.Commit(); err != nil {
		return j, err
	}
	return j, nil
}

// DeleteJob removes a draft or open job and, unconditionally once the guard
// passed, every proposal referencing it.
func (e Engine) DeleteJob(ctx context.Context, id, actorID string) error {
	j, err := e.Repo.GetJob(ctx, id)
	if err != nil {
		return jobLoadError(err, id)
	}
	if actorID != j.CreatorID {
		return Forbiddenf("only the job creator can delete the job")
	}
	if err := CanDeleteJob(j); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteProposalsForJob(ctx, tx, id); err != nil {
		return err
	}
	if err := e.Repo.DeleteJobTx(ctx, tx, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "job.deleted", "job", id, actorID, events.EventPayload{"status": j.Status}); err != nil {
		return err
	}
	return tx.Commit()
}

// RequestCancellation records a pending cancellation on an in-progress job.
func (e Engine) RequestCancellation(ctx context.Context, id, actorID, reason string) (domain.Job, error) {
	j, err := e.Repo.GetJob(ctx, id)
	if err != nil {
		return domain.Job{}, jobLoadError(err, id)
	}
	role, err := participantRole(j, actorID)
	if err != nil {
		return j, err
	}
	if err := CanRequestCancellation(j); err != nil {
		return j, err
	}
	now := e.nowString()
	j.Cancellation = &domain.Cancellation{
		Status:        domain.CancellationPending,
		InitiatedBy:   actorID,
		InitiatedRole: role,
		Reason:        strings.TrimSpace(reason),
		RequestedAt:   now,
	}
	j.UpdatedAt = now

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return j, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateJob(ctx, tx, j, domain.JobStatusInProgress); err != nil {
		return j, staleAsConflict(err)
	}
	if err := e.Events.Append(ctx, tx, "job.cancellation.requested", "job", j.ID, actorID, events.EventPayload{"role": role}); err != nil {
		return j, err
	}
	if err := tx.Commit(); err != nil {
		return j, err
	}
	return j, nil
}

// RespondCancellation resolves a pending cancellation. Accepting cancels the
// job; rejecting leaves the job in progress with the rejected record kept as
// history.
func (e Engine) RespondCancellation(ctx context.Context, id, actorID, action string) (domain.Job, error) {
	j, err := e.Repo.GetJob(ctx, id)
	if err != nil {
		return domain.Job{}, jobLoadError(err, id)
	}
	if _, err := participantRole(j, actorID); err != nil {
		return j, err
	}
	if err := CanRespondCancellation(j, actorID, action); err != nil {
		return j, err
	}
	now := e.nowString()
	j.Cancellation.RespondedBy = &actorID
	j.Cancellation.RespondedAt = &now
	if action == "accept" {
		j.Cancellation.Status = domain.CancellationAccepted
		j.Status = domain.JobStatusCancelled
	} else {
		j.Cancellation.Status = domain.CancellationRejected
	}
	j.UpdatedAt = now

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return j, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateJob(ctx, tx, j, domain.JobStatusInProgress); err != nil {
		return j, staleAsConflict(err)
	}
	if err := e.Events.Append(ctx, tx, "job.cancellation.responded", "job", j.ID, actorID, events.EventPayload{"action": action, "job_status": j.Status}); err != nil {
		return j, err
	}
	if err := tx.Commit(); err != nil {
		return j, err
	}
	return j, nil
}

// participantRole resolves the actor's relational role on the job, rejecting
// anyone who is neither the creator nor the contractor.
func participantRole(j domain.Job, actorID string) (string, error) {
	if actorID == j.CreatorID {
		return domain.RoleCreator, nil
	}
	if c, ok := j.Contractor(); ok && c == actorID {
		return domain.RoleContractor, nil
	}
	return "", Forbiddenf("not authorized: only the job creator or contractor may do this")
}

func jobLoadError(err error, id string) error {
	if errors.Is(err, repo.ErrNotFound) {
		return NotFoundf("job %s not found", id)
	}
	return err
}

func staleAsConflict(err error) error {
	if errors.Is(err, repo.ErrStaleWrite) {
		return Conflictf("entity changed state concurrently; reload and retry")
	}
	return err
}
