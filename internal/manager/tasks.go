package manager

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"taskmaster/internal/domain"
	"taskmaster/internal/events"
	"taskmaster/internal/policy"
	"taskmaster/internal/repo"
	"taskmaster/internal/visibility"
	"taskmaster/internal/watch"
)

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	ID          string
	Title       string `validate:"required"`
	Description string
	ProjectID   *string
	PriorityID  *string
	Status      string
	Assignees   []string
}

func (m *Manager) CreateTask(ctx context.Context, ident domain.Identity, opts TaskCreateOptions) (domain.Task, error) {
	if err := m.checkInput(opts); err != nil {
		return domain.Task{}, err
	}
	if opts.Status == "" {
		opts.Status = domain.TaskNew
	}
	if !domain.ValidTaskStatus(opts.Status) {
		return domain.Task{}, ValidationError{Msg: fmt.Sprintf("unknown task status %q", opts.Status)}
	}
	if !policy.CanPerform(ident, policy.ActionCreate, policy.KindTask) {
		return domain.Task{}, policy.Deny(ident, policy.ActionCreate, policy.KindTask)
	}
	if opts.ProjectID != nil {
		if _, err := m.Repo.GetProject(ctx, *opts.ProjectID); err != nil {
			return domain.Task{}, fmt.Errorf("project %s: %w", *opts.ProjectID, err)
		}
	}
	if opts.PriorityID != nil {
		if _, err := m.Repo.GetPriority(ctx, *opts.PriorityID); err != nil {
			return domain.Task{}, fmt.Errorf("priority %s: %w", *opts.PriorityID, err)
		}
	}
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := m.nowRFC3339()
	t := domain.Task{
		ID:          id,
		Title:       opts.Title,
		Description: opts.Description,
		ProjectID:   opts.ProjectID,
		PriorityID:  opts.PriorityID,
		Status:      opts.Status,
		Assignees:   opts.Assignees,
		CreatedBy:   ident.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	if err := m.Repo.InsertTask(ctx, tx, t); err != nil {
		return domain.Task{}, fmt.Errorf("insert task: %w", err)
	}
	if err := m.Events.Append(ctx, tx, "task.created", "task", t.ID, ident.UserID, events.EventPayload{"title": t.Title}); err != nil {
		return domain.Task{}, err
	}
	for _, userID := range t.Assignees {
		if userID == ident.UserID {
			continue
		}
		if err := m.insertNotification(ctx, tx, userID, "New task assigned",
			fmt.Sprintf("You were assigned to %q", t.Title), "/tasks/"+t.ID); err != nil {
			return domain.Task{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	m.Hub.Notify(watch.KindTasks)
	m.Hub.Notify(watch.KindNotifications)
	return t, nil
}

// TaskPatch carries the fields an update may change. Nil means unchanged.
type TaskPatch struct {
	Title       *string
	Description *string
	ProjectID   **string
	PriorityID  **string
	Status      *string
	Assignees   *[]string
}

func (m *Manager) UpdateTask(ctx context.Context, ident domain.Identity, id string, patch TaskPatch) (domain.Task, error) {
	if !policy.CanPerform(ident, policy.ActionUpdate, policy.KindTask) {
		return domain.Task{}, policy.Deny(ident, policy.ActionUpdate, policy.KindTask)
	}
	// Fetch through visibility so an invisible task stays indistinguishable
	// from a missing one.
	t, err := m.GetTask(ctx, ident, id)
	if err != nil {
		return domain.Task{}, err
	}
	before := map[string]bool{}
	for _, a := range t.Assignees {
		before[a] = true
	}
	if patch.Title != nil {
		if *patch.Title == "" {
			return domain.Task{}, ValidationError{Msg: "title must not be empty"}
		}
		t.Title = *patch.Title
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.ProjectID != nil {
		if *patch.ProjectID != nil {
			if _, err := m.Repo.GetProject(ctx, **patch.ProjectID); err != nil {
				return domain.Task{}, fmt.Errorf("project %s: %w", **patch.ProjectID, err)
			}
		}
		t.ProjectID = *patch.ProjectID
	}
	if patch.PriorityID != nil {
		if *patch.PriorityID != nil {
			if _, err := m.Repo.GetPriority(ctx, **patch.PriorityID); err != nil {
				return domain.Task{}, fmt.Errorf("priority %s: %w", **patch.PriorityID, err)
			}
		}
		t.PriorityID = *patch.PriorityID
	}
	if patch.Status != nil {
		if !domain.ValidTaskStatus(*patch.Status) {
			return domain.Task{}, ValidationError{Msg: fmt.Sprintf("unknown task status %q", *patch.Status)}
		}
		t.Status = *patch.Status
	}
	if patch.Assignees != nil {
		t.Assignees = *patch.Assignees
	}
	t.UpdatedAt = m.nowRFC3339()

	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	if err := m.Repo.UpdateTask(ctx, tx, t); err != nil {
		return domain.Task{}, err
	}
	if err := m.Events.Append(ctx, tx, "task.updated", "task", t.ID, ident.UserID, nil); err != nil {
		return domain.Task{}, err
	}
	notified := false
	for _, userID := range t.Assignees {
		if before[userID] || userID == ident.UserID {
			continue
		}
		if err := m.insertNotification(ctx, tx, userID, "New task assigned",
			fmt.Sprintf("You were assigned to %q", t.Title), "/tasks/"+t.ID); err != nil {
			return domain.Task{}, err
		}
		notified = true
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	m.Hub.Notify(watch.KindTasks)
	if notified {
		m.Hub.Notify(watch.KindNotifications)
	}
	return t, nil
}

func (m *Manager) DeleteTask(ctx context.Context, ident domain.Identity, id string) error {
	if !policy.CanPerform(ident, policy.ActionDelete, policy.KindTask) {
		return policy.Deny(ident, policy.ActionDelete, policy.KindTask)
	}
	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := m.Repo.DeleteTask(ctx, tx, id); err != nil {
		return err
	}
	if err := m.Events.Append(ctx, tx, "task.deleted", "task", id, ident.UserID, nil); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	m.Hub.Notify(watch.KindTasks)
	return nil
}

// GetTask returns the task if the identity may see it. An invisible task and
// a missing one are both reported as not found.
func (m *Manager) GetTask(ctx context.Context, ident domain.Identity, id string) (domain.Task, error) {
	t, err := m.Repo.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}
	var proj *domain.Project
	if t.ProjectID != nil {
		p, err := m.Repo.GetProject(ctx, *t.ProjectID)
		if err == nil {
			proj = &p
		} else if err != repo.ErrNotFound {
			return domain.Task{}, err
		}
	}
	if !visibility.TaskVisible(ident, t, proj) {
		return domain.Task{}, repo.ErrNotFound
	}
	return t, nil
}

func (m *Manager) ListTasks(ctx context.Context, ident domain.Identity, filters visibility.TaskFilters) ([]domain.Task, error) {
	all, err := m.Repo.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	projects, err := m.Repo.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	visible := visibility.Tasks(ident, all, projects)
	return visibility.FilterTasks(visible, filters), nil
}
