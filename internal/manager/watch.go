package manager

import (
	"context"

	"taskmaster/internal/domain"
	"taskmaster/internal/visibility"
	"taskmaster/internal/watch"
)

// WatchTasks pushes the identity's visible, filtered task list to fn: once
// immediately, then again after every task change. It blocks until ctx is
// done and the subscription is revoked on return. A store fault during a
// recompute ends the watch with that error rather than leaving a silent
// subscription behind.
func (m *Manager) WatchTasks(ctx context.Context, ident domain.Identity, filters visibility.TaskFilters, fn func([]domain.Task)) error {
	emit := func() error {
		tasks, err := m.ListTasks(ctx, ident, filters)
		if err != nil {
			return err
		}
		fn(tasks)
		return nil
	}
	return m.watchLoop(ctx, watch.KindTasks, emit)
}

func (m *Manager) WatchProjects(ctx context.Context, ident domain.Identity, filters visibility.ProjectFilters, fn func([]domain.Project)) error {
	emit := func() error {
		projects, err := m.ListProjects(ctx, ident, filters)
		if err != nil {
			return err
		}
		fn(projects)
		return nil
	}
	return m.watchLoop(ctx, watch.KindProjects, emit)
}

func (m *Manager) WatchNotifications(ctx context.Context, ident domain.Identity, fn func([]domain.Notification)) error {
	emit := func() error {
		ns, err := m.ListNotifications(ctx, ident)
		if err != nil {
			return err
		}
		fn(ns)
		return nil
	}
	return m.watchLoop(ctx, watch.KindNotifications, emit)
}

// watchLoop emits once, then serializes one re-emit per hub ping on the
// caller's goroutine until ctx is done or an emit fails. A ping that arrives
// while an emit is in flight coalesces into a single pending re-emit.
func (m *Manager) watchLoop(ctx context.Context, kind watch.Kind, emit func() error) error {
	pings := make(chan struct{}, 1)
	cancel := m.Hub.Subscribe(kind, func() {
		select {
		case pings <- struct{}{}:
		default:
		}
	})
	defer cancel()

	if err := emit(); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-pings:
			if err := emit(); err != nil {
				return err
			}
		}
	}
}
