package repo

import (
	"context"
	"database/sql"

	"taskmaster/internal/domain"
)

const taskCols = "id, title, description, project_id, priority_id, status, created_by, created_at, updated_at"

func scanTask(row interface{ Scan(...any) error }) (domain.Task, error) {
	var t domain.Task
	var description, projectID, priorityID sql.NullString
	err := row.Scan(&t.ID, &t.Title, &description, &projectID, &priorityID, &t.Status, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return domain.Task{}, err
	}
	t.Description = description.String
	if projectID.Valid {
		t.ProjectID = &projectID.String
	}
	if priorityID.Valid {
		t.PriorityID = &priorityID.String
	}
	return t, nil
}

func (r *Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks (`+taskCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, nullable(t.Description), nullableStringPtr(t.ProjectID), nullableStringPtr(t.PriorityID),
		t.Status, t.CreatedBy, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return err
	}
	return r.replaceAssignees(ctx, tx, t.ID, t.Assignees)
}

func (r *Repo) UpdateTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET title = ?, description = ?, project_id = ?, priority_id = ?, status = ?, updated_at = ? WHERE id = ?`,
		t.Title, nullable(t.Description), nullableStringPtr(t.ProjectID), nullableStringPtr(t.PriorityID),
		t.Status, t.UpdatedAt, t.ID)
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
	return r.replaceAssignees(ctx, tx, t.ID, t.Assignees)
}

func (r *Repo) DeleteTask(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
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

func (r *Repo) replaceAssignees(ctx context.Context, tx *sql.Tx, taskID string, assignees []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM task_assignees WHERE task_id = ?`, taskID); err != nil {
		return err
	}
	for _, userID := range assignees {
		if _, err := tx.ExecContext(ctx, `INSERT INTO task_assignees (task_id, user_id) VALUES (?, ?)`, taskID, userID); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return domain.Task{}, ErrNotFound
	}
	if err != nil {
		return domain.Task{}, err
	}
	t.Assignees, err = r.taskAssignees(ctx, id)
	return t, err
}

func (r *Repo) taskAssignees(ctx context.Context, taskID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT user_id FROM task_assignees WHERE task_id = ? ORDER BY user_id`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *Repo) ListTasks(ctx context.Context) ([]domain.Task, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+taskCols+` FROM tasks ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Task
	index := map[string]int{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		index[t.ID] = len(out)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	arows, err := r.DB.QueryContext(ctx, `SELECT task_id, user_id FROM task_assignees ORDER BY task_id, user_id`)
	if err != nil {
		return nil, err
	}
	defer arows.Close()
	for arows.Next() {
		var taskID, userID string
		if err := arows.Scan(&taskID, &userID); err != nil {
			return nil, err
		}
		if i, ok := index[taskID]; ok {
			out[i].Assignees = append(out[i].Assignees, userID)
		}
	}
	return out, arows.Err()
}
