package manager

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"taskmaster/internal/domain"
	"taskmaster/internal/watch"
)

// insertNotification appends a notification for userID inside the caller's
// transaction. The per-user cap is enforced by the repo on insert.
func (m *Manager) insertNotification(ctx context.Context, tx *sql.Tx, userID, title, content, link string) error {
	n := domain.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Content:   content,
		CreatedAt: m.nowRFC3339(),
	}
	if link != "" {
		n.Link = &link
	}
	return m.Repo.InsertNotification(ctx, tx, n)
}

// ListNotifications returns the identity's own feed, newest first.
func (m *Manager) ListNotifications(ctx context.Context, ident domain.Identity) ([]domain.Notification, error) {
	return m.Repo.ListNotifications(ctx, ident.UserID)
}

func (m *Manager) UnreadNotifications(ctx context.Context, ident domain.Identity) (int, error) {
	return m.Repo.CountUnreadNotifications(ctx, ident.UserID)
}

// MarkNotificationRead marks one of the identity's own notifications read.
// Someone else's notification is reported as not found.
func (m *Manager) MarkNotificationRead(ctx context.Context, ident domain.Identity, id string) error {
	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := m.Repo.MarkNotificationRead(ctx, tx, id, ident.UserID, m.nowRFC3339()); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	m.Hub.Notify(watch.KindNotifications)
	return nil
}

func (m *Manager) MarkAllNotificationsRead(ctx context.Context, ident domain.Identity) error {
	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := m.Repo.MarkAllNotificationsRead(ctx, tx, ident.UserID, m.nowRFC3339()); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	m.Hub.Notify(watch.KindNotifications)
	return nil
}

func (m *Manager) DeleteNotification(ctx context.Context, ident domain.Identity, id string) error {
	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := m.Repo.DeleteNotification(ctx, tx, id, ident.UserID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	m.Hub.Notify(watch.KindNotifications)
	return nil
}
