package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gigline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// ErrStaleWrite signals that a status-conditional update matched no row: the
// entity changed state (or disappeared) between the guard check and the
// write.
var ErrStaleWrite = errors.New("stale write: entity status changed")

const jobColumns = `id,creator_id,title,description,category,budget_min,budget_max,status,hired_freelancer,parties_json,milestones_json,cancellation_json,view_count,proposal_count,created_at,updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (domain.Job, error) {
	var j domain.Job
	var description, category, hired, parties, milestones, cancellation sql.NullString
	var budgetMin, budgetMax sql.NullFloat64
	err := row.Scan(&j.ID, &j.CreatorID, &j.Title, &description, &category, &budgetMin, &budgetMax,
		&j.Status, &hired, &parties, &milestones, &cancellation, &j.ViewCount, &j.ProposalCount,
		&j.CreatedAt, &j.UpdatedAt)
	if err == sql.ErrNoRows {
		return j, ErrNotFound
	}
	if err != nil {
		return j, err
	}
	if description.Valid {
		j.Description = description.String
	}
	if category.Valid {
		j.Category = category.String
	}
	if budgetMin.Valid {
		v := budgetMin.Float64
		j.Budget.Min = &v
	}
	if budgetMax.Valid {
		v := budgetMax.Float64
		j.Budget.Max = &v
	}
	if hired.Valid {
		j.HiredFreelancer = &hired.String
	}
	if parties.Valid && parties.String != "" {
		if err := json.Unmarshal([]byte(parties.String), &j.Parties); err != nil {
			return j, fmt.Errorf("decode parties: %w", err)
		}
	}
	if milestones.Valid && milestones.String != "" {
		if err := json.Unmarshal([]byte(milestones.String), &j.Milestones); err != nil {
			return j, fmt.Errorf("decode milestones: %w", err)
		}
	}
	if cancellation.Valid && cancellation.String != "" {
		var c domain.Cancellation
		if err := json.Unmarshal([]byte(cancellation.String), &c); err != nil {
			return j, fmt.Errorf("decode cancellation: %w", err)
		}
		j.Cancellation = &c
	}
	return j, nil
}

func jobJSONColumns(j domain.Job) (parties, milestones, cancellation any, err error) {
	p, err := json.Marshal(j.Parties)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("encode parties: %w", err)
	}
	m, err := json.Marshal(j.Milestones)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("encode milestones: %w", err)
	}
	cancellation = nil
	if j.Cancellation != nil {
		c, err := json.Marshal(j.Cancellation)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("encode cancellation: %w", err)
		}
		cancellation = string(c)
	}
	return string(p), string(m), cancellation, nil
}

func (r Repo) InsertJob(ctx context.Context, tx *sql.Tx, j domain.Job) error {
	parties, milestones, cancellation, err := jobJSONColumns(j)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO jobs(`+jobColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		j.ID, j.CreatorID, j.Title, nullable(j.Description), nullable(j.Category),
		nullableFloatPtr(j.Budget.Min), nullableFloatPtr(j.Budget.Max), j.Status,
		nullableStringPtr(j.HiredFreelancer), parties, milestones, cancellation,
		j.ViewCount, j.ProposalCount, j.CreatedAt, j.UpdatedAt)
	return err
}

func (r Repo) GetJob(ctx context.Context, id string) (domain.Job, error) {
	return scanJob(r.DB.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id=?`, id))
}

func (r Repo) GetJobTx(ctx context.Context, tx *sql.Tx, id string) (domain.Job, error) {
	return scanJob(tx.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id=?`, id))
}

// UpdateJob writes the full job row conditionally on the status the caller's
// guard observed. Zero rows affected means a concurrent transition won the
// race and the caller must treat its guard result as stale.
func (r Repo) UpdateJob(ctx context.Context, tx *sql.Tx, j domain.Job, expectedStatus string) error {
	parties, milestones, cancellation, err := jobJSONColumns(j)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE jobs SET title=?, description=?, category=?, budget_min=?, budget_max=?, status=?, hired_freelancer=?, parties_json=?, milestones_json=?, cancellation_json=?, updated_at=? WHERE id=? AND status=?`,
		j.Title, nullable(j.Description), nullable(j.Category),
		nullableFloatPtr(j.Budget.Min), nullableFloatPtr(j.Budget.Max), j.Status,
		nullableStringPtr(j.HiredFreelancer), parties, milestones, cancellation,
		j.UpdatedAt, j.ID, expectedStatus)
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

func (r Repo) DeleteJobTx(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type JobFilters struct {
	CreatorID       string
	Status          string
	Category        string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListJobs(ctx context.Context, f JobFilters) ([]domain.Job, error) {
	var clauses []string
	var args []any
	if f.CreatorID != "" {
		clauses = append(clauses, "creator_id=?")
		args = append(args, f.CreatorID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.Category != "" {
		clauses = append(clauses, "category=?")
		args = append(args, f.Category)
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + jobColumns + ` FROM jobs ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, j)
	}
	return res, rows.Err()
}

// IncrementViewCount bumps the job's view counter atomically. Counters are
// bookkeeping outside the transition engine.
func (r Repo) IncrementViewCount(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE jobs SET view_count=view_count+1 WHERE id=?`, id)
	return err
}

func (r Repo) IncrementProposalCount(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := tx.ExecContext(ctx, `UPDATE jobs SET proposal_count=proposal_count+1 WHERE id=?`, id)
	return err
}

func (r Repo) CountJobsByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, count(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		res[status] = count
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func nullableFloatPtr(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
