package engine

import (
	"context"
	"strings"

	"gigline/internal/domain"
	"gigline/internal/events"
)

// SubmitMilestone marks a milestone as submitted for review. Only the hired
// contractor may submit, and only while the job is in progress.
func (e Engine) SubmitMilestone(ctx context.Context, jobID string, index int, actorID, evidence string) (domain.Job, error) {
	j, err := e.Repo.GetJob(ctx, jobID)
	if err != nil {
		return domain.Job{}, jobLoadError(err, jobID)
	}
	contractor, ok := j.Contractor()
	if !ok || contractor != actorID {
		return j, Forbiddenf("only the hired contractor can submit milestones")
	}
	if index < 0 || index >= len(j.Milestones) {
		return j, InvalidStatef("invalid milestone index %d", index)
	}
	m := &j.Milestones[index]
	if err := CanSubmitMilestone(j, *m); err != nil {
		return j, err
	}
	now := e.nowString()
	m.Status = domain.MilestoneStatusSubmitted
	if ev := strings.TrimSpace(evidence); ev != "" {
		m.Evidence = ev
	}
	m.CompletedAt = &now
	j.UpdatedAt = now

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return j, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateJob(ctx, tx, j, domain.JobStatusInProgress); err != nil {
		return j, staleAsConflict(err)
	}
	if err := e.Events.Append(ctx, tx, "milestone.submitted", "job", j.ID, actorID, events.EventPayload{"index": index, "title": m.Title}); err != nil {
		return j, err
	}
	if err := tx.Commit(); err != nil {
		return j, err
	}
	return j, nil
}

// ApproveMilestone completes a submitted milestone. When the approval
// completes the last remaining milestone, the job transitions to completed
// in the same write; the returned bool reports that cascade.
func (e Engine) ApproveMilestone(ctx context.Context, jobID string, index int, actorID string) (domain.Job, bool, error) {
	j, err := e.Repo.GetJob(ctx, jobID)
	if err != nil {
		return domain.Job{}, false, jobLoadError(err, jobID)
	}
	if actorID != j.CreatorID {
		return j, false, Forbiddenf("only the job creator can approve milestones")
	}
	if index < 0 || index >= len(j.Milestones) {
		return j, false, InvalidStatef("invalid milestone index %d", index)
	}
	m := &j.Milestones[index]
	if err := CanApproveMilestone(*m); err != nil {
		return j, false, err
	}
	now := e.nowString()
	expected := j.Status
	m.Status = domain.MilestoneStatusCompleted
	m.Approve(actorID)
	if m.CompletedAt == nil {
		m.CompletedAt = &now
	}
	allDone := j.AllMilestonesCompleted()
	if allDone {
		j.Status = domain.JobStatusCompleted
	}
	j.UpdatedAt = now

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return j, false, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateJob(ctx, tx, j, expected); err != nil {
		return j, false, staleAsConflict(err)
	}
	if err := e.Events.Append(ctx, tx, "milestone.approved", "job", j.ID, actorID, events.EventPayload{"index": index, "title": m.Title}); err != nil {
		return j, false, err
	}
	if allDone {
		if err := e.Events.Append(ctx, tx, "job.completed", "job", j.ID, actorID, events.EventPayload{"milestones": len(j.Milestones)}); err != nil {
			return j, false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return j, false, err
	}
	return j, allDone, nil
}
