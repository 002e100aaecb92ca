package repo

import (
	"context"
	"database/sql"
	"strings"

	"gigline/internal/domain"
)

const proposalColumns = `id,job_id,freelancer_id,cover_letter,bid_amount,status,reject_reason,created_at,updated_at,rejected_at,withdrawn_at`

func scanProposal(row rowScanner) (domain.Proposal, error) {
	var p domain.Proposal
	var cover, reason, rejectedAt, withdrawnAt sql.NullString
	var bid sql.NullFloat64
	err := row.Scan(&p.ID, &p.JobID, &p.FreelancerID, &cover, &bid, &p.Status, &reason,
		&p.CreatedAt, &p.UpdatedAt, &rejectedAt, &withdrawnAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if cover.Valid {
		p.CoverLetter = cover.String
	}
	if bid.Valid {
		v := bid.Float64
		p.BidAmount = &v
	}
	if reason.Valid {
		p.RejectReason = reason.String
	}
	if rejectedAt.Valid {
		p.RejectedAt = &rejectedAt.String
	}
	if withdrawnAt.Valid {
		p.WithdrawnAt = &withdrawnAt.String
	}
	return p, nil
}

func (r Repo) InsertProposal(ctx context.Context, tx *sql.Tx, p domain.Proposal) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO proposals(`+proposalColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.JobID, p.FreelancerID, nullable(p.CoverLetter), nullableFloatPtr(p.BidAmount),
		p.Status, nullable(p.RejectReason), p.CreatedAt, p.UpdatedAt,
		nullableStringPtr(p.RejectedAt), nullableStringPtr(p.WithdrawnAt))
	return err
}

func (r Repo) GetProposal(ctx context.Context, id string) (domain.Proposal, error) {
	return scanProposal(r.DB.QueryRowContext(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE id=?`, id))
}

func (r Repo) GetProposalTx(ctx context.Context, tx *sql.Tx, id string) (domain.Proposal, error) {
	return scanProposal(tx.QueryRowContext(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE id=?`, id))
}

// UpdateProposal writes the proposal conditionally on the status the guard
// observed, like Repo.UpdateJob.
func (r Repo) UpdateProposal(ctx context.Context, tx *sql.Tx, p domain.Proposal, expectedStatus string) error {
	res, err := tx.ExecContext(ctx, `UPDATE proposals SET status=?, reject_reason=?, updated_at=?, rejected_at=?, withdrawn_at=? WHERE id=? AND status=?`,
		p.Status, nullable(p.RejectReason), p.UpdatedAt,
		nullableStringPtr(p.RejectedAt), nullableStringPtr(p.WithdrawnAt), p.ID, expectedStatus)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrStaleWrite
	}
	return nil
}

// ActiveProposalExists reports whether the freelancer already has a pending
// or accepted proposal on the job. This backs the (freelancer, job)
// uniqueness invariant.
func (r Repo) ActiveProposalExists(ctx context.Context, jobID, freelancerID string) (bool, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT 1 FROM proposals WHERE job_id=? AND freelancer_id=? AND status IN (?,?) LIMIT 1`,
		jobID, freelancerID, domain.ProposalStatusPending, domain.ProposalStatusAccepted)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	return rows.Next(), rows.Err()
}

// RejectPendingSiblings bulk-transitions every other pending proposal for
// the job to rejected. No reason is attached to these auto-rejections. The
// statement is idempotent: re-running it after a partial failure rejects
// whatever is still pending.
func (r Repo) RejectPendingSiblings(ctx context.Context, tx *sql.Tx, jobID, acceptedID, ts string) (int64, error) {
	res, err := tx.ExecContext(ctx, `UPDATE proposals SET status=?, updated_at=?, rejected_at=? WHERE job_id=? AND id != ? AND status=?`,
		domain.ProposalStatusRejected, ts, ts, jobID, acceptedID, domain.ProposalStatusPending)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteProposalsForJob removes every proposal referencing the job. Used by
// the job delete cascade; unconditional once the delete guard passed.
func (r Repo) DeleteProposalsForJob(ctx context.Context, tx *sql.Tx, jobID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM proposals WHERE job_id=?`, jobID)
	return err
}

type ProposalFilters struct {
	JobID           string
	FreelancerID    string
	Status          string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListProposals(ctx context.Context, f ProposalFilters) ([]domain.Proposal, error) {
	var clauses []string
	var args []any
	if f.JobID != "" {
		clauses = append(clauses, "job_id=?")
		args = append(args, f.JobID)
	}
	if f.FreelancerID != "" {
		clauses = append(clauses, "freelancer_id=?")
		args = append(args, f.FreelancerID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + proposalColumns + ` FROM proposals ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}
