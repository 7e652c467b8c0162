package repo

import (
	"context"
	"database/sql"

	"taskmaster/internal/domain"
)

const priorityCols = "id, name, color, sort_order, created_at"

func scanPriority(row interface{ Scan(...any) error }) (domain.Priority, error) {
	var p domain.Priority
	err := row.Scan(&p.ID, &p.Name, &p.Color, &p.Order, &p.CreatedAt)
	if err != nil {
		return domain.Priority{}, err
	}
	return p, nil
}

func (r *Repo) InsertPriority(ctx context.Context, tx *sql.Tx, p domain.Priority) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO priorities (`+priorityCols+`) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Color, p.Order, p.CreatedAt)
	return err
}

func (r *Repo) UpdatePriority(ctx context.Context, tx *sql.Tx, p domain.Priority) error {
	res, err := tx.ExecContext(ctx, `UPDATE priorities SET name = ?, color = ?, sort_order = ? WHERE id = ?`,
		p.Name, p.Color, p.Order, p.ID)
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

func (r *Repo) DeletePriority(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM priorities WHERE id = ?`, id)
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

func (r *Repo) GetPriority(ctx context.Context, id string) (domain.Priority, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+priorityCols+` FROM priorities WHERE id = ?`, id)
	p, err := scanPriority(row)
	if err == sql.ErrNoRows {
		return domain.Priority{}, ErrNotFound
	}
	return p, err
}

func (r *Repo) ListPriorities(ctx context.Context) ([]domain.Priority, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+priorityCols+` FROM priorities ORDER BY sort_order, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Priority
	for rows.Next() {
		p, err := scanPriority(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) CountPriorities(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM priorities`).Scan(&n)
	return n, err
}
