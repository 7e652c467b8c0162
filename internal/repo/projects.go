package repo

import (
	"context"
	"database/sql"

	"taskmaster/internal/domain"
)

const projectCols = "id, name, description, client_id, deadline, status, created_by, created_at, updated_at"

func scanProject(row interface{ Scan(...any) error }) (domain.Project, error) {
	var p domain.Project
	var description, clientID, deadline sql.NullString
	err := row.Scan(&p.ID, &p.Name, &description, &clientID, &deadline, &p.Status, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return domain.Project{}, err
	}
	p.Description = description.String
	if clientID.Valid {
		p.ClientID = &clientID.String
	}
	if deadline.Valid {
		p.Deadline = &deadline.String
	}
	return p, nil
}

func (r *Repo) InsertProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO projects (`+projectCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, nullable(p.Description), nullableStringPtr(p.ClientID), nullableStringPtr(p.Deadline),
		p.Status, p.CreatedBy, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r *Repo) UpdateProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	res, err := tx.ExecContext(ctx, `UPDATE projects SET name = ?, description = ?, client_id = ?, deadline = ?, status = ?, updated_at = ? WHERE id = ?`,
		p.Name, nullable(p.Description), nullableStringPtr(p.ClientID), nullableStringPtr(p.Deadline),
		p.Status, p.UpdatedAt, p.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) DeleteProject(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+projectCols+` FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return domain.Project{}, ErrNotFound
	}
	return p, err
}

func (r *Repo) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+projectCols+` FROM projects ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
