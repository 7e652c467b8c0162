package repo

import (
	"context"
	"database/sql"

	"taskmaster/internal/domain"
)

// Notification feeds are capped per user: the newest rows win and anything
// past the cap is pruned on insert.
const notificationCap = 50

const notificationCols = "id, user_id, title, content, link, read, created_at, read_at"

func scanNotification(row interface{ Scan(...any) error }) (domain.Notification, error) {
	var n domain.Notification
	var link, readAt sql.NullString
	err := row.Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &link, &n.Read, &n.CreatedAt, &readAt)
	if err != nil {
		return domain.Notification{}, err
	}
	if link.Valid {
		n.Link = &link.String
	}
	if readAt.Valid {
		n.ReadAt = &readAt.String
	}
	return n, nil
}

func (r *Repo) InsertNotification(ctx context.Context, tx *sql.Tx, n domain.Notification) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO notifications (`+notificationCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Title, n.Content, nullableStringPtr(n.Link), n.Read, n.CreatedAt, nullableStringPtr(n.ReadAt))
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `DELETE FROM notifications WHERE user_id = ? AND id NOT IN (
		SELECT id FROM notifications WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?)`,
		n.UserID, n.UserID, notificationCap)
	return err
}

func (r *Repo) MarkNotificationRead(ctx context.Context, tx *sql.Tx, id, userID, readAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE notifications SET read = 1, read_at = ? WHERE id = ? AND user_id = ?`,
		readAt, id, userID)
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

func (r *Repo) MarkAllNotificationsRead(ctx context.Context, tx *sql.Tx, userID, readAt string) error {
	_, err := tx.ExecContext(ctx, `UPDATE notifications SET read = 1, read_at = ? WHERE user_id = ? AND read = 0`,
		readAt, userID)
	return err
}

func (r *Repo) DeleteNotification(ctx context.Context, tx *sql.Tx, id, userID string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM notifications WHERE id = ? AND user_id = ?`, id, userID)
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

func (r *Repo) ListNotifications(ctx context.Context, userID string) ([]domain.Notification, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+notificationCols+` FROM notifications WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		userID, notificationCap)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *Repo) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = ? AND read = 0`, userID).Scan(&n)
	return n, err
}
