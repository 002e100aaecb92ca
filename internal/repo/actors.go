package repo

import (
	"context"
	"database/sql"

	"gigline/internal/domain"
)

// EnsureActor inserts the actor if missing. An existing actor keeps its role.
func (r Repo) EnsureActor(ctx context.Context, tx *sql.Tx, a domain.Actor) error {
	exec := func(query string, args ...any) (sql.Result, error) {
		if tx != nil {
			return tx.ExecContext(ctx, query, args...)
		}
		return r.DB.ExecContext(ctx, query, args...)
	}
	_, err := exec(`INSERT INTO actors(id,role,name,created_at) VALUES (?,?,?,?) ON CONFLICT(id) DO NOTHING`,
		a.ID, a.Role, nullable(a.Name), a.CreatedAt)
	return err
}

func (r Repo) GetActor(ctx context.Context, id string) (domain.Actor, error) {
	var a domain.Actor
	var name sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,role,COALESCE(name,''),created_at FROM actors WHERE id=?`, id).
		Scan(&a.ID, &a.Role, &name, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	if name.Valid {
		a.Name = name.String
	}
	return a, nil
}

func (r Repo) ListActors(ctx context.Context, role string) ([]domain.Actor, error) {
	query := `SELECT id,role,COALESCE(name,''),created_at FROM actors`
	var args []any
	if role != "" {
		query += ` WHERE role=?`
		args = append(args, role)
	}
	query += ` ORDER BY created_at DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Actor
	for rows.Next() {
		var a domain.Actor
		var name string
		if err := rows.Scan(&a.ID, &a.Role, &name, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Name = name
		res = append(res, a)
	}
	return res, rows.Err()
}
