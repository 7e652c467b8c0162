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

// ProjectCreateOptions are parameters for creating a project.
type ProjectCreateOptions struct {
	ID          string
	Name        string `validate:"required"`
	Description string
	ClientID    *string
	Deadline    *string
	Status      string
}

func (m *Manager) CreateProject(ctx context.Context, ident domain.Identity, opts ProjectCreateOptions) (domain.Project, error) {
	if err := m.checkInput(opts); err != nil {
		return domain.Project{}, err
	}
	if opts.Status == "" {
		opts.Status = domain.ProjectActive
	}
	if !domain.ValidProjectStatus(opts.Status) {
		return domain.Project{}, ValidationError{Msg: fmt.Sprintf("unknown project status %q", opts.Status)}
	}
	if !policy.CanPerform(ident, policy.ActionCreate, policy.KindProject) {
		return domain.Project{}, policy.Deny(ident, policy.ActionCreate, policy.KindProject)
	}
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := m.nowRFC3339()
	p := domain.Project{
		ID:          id,
		Name:        opts.Name,
		Description: opts.Description,
		ClientID:    opts.ClientID,
		Deadline:    opts.Deadline,
		Status:      opts.Status,
		CreatedBy:   ident.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()
	if err := m.Repo.InsertProject(ctx, tx, p); err != nil {
		return domain.Project{}, fmt.Errorf("insert project: %w", err)
	}
	if err := m.Events.Append(ctx, tx, "project.created", "project", p.ID, ident.UserID, events.EventPayload{"name": p.Name}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	m.Hub.Notify(watch.KindProjects)
	return p, nil
}

// ProjectPatch carries the fields an update may change. Nil means unchanged.
type ProjectPatch struct {
	Name        *string
	Description *string
	ClientID    **string
	Deadline    **string
	Status      *string
}

func (m *Manager) UpdateProject(ctx context.Context, ident domain.Identity, id string, patch ProjectPatch) (domain.Project, error) {
	if !policy.CanPerform(ident, policy.ActionUpdate, policy.KindProject) {
		return domain.Project{}, policy.Deny(ident, policy.ActionUpdate, policy.KindProject)
	}
	p, err := m.Repo.GetProject(ctx, id)
	if err != nil {
		return domain.Project{}, err
	}
	if patch.Name != nil {
		if *patch.Name == "" {
			return domain.Project{}, ValidationError{Msg: "name must not be empty"}
		}
		p.Name = *patch.Name
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.ClientID != nil {
		p.ClientID = *patch.ClientID
	}
	if patch.Deadline != nil {
		p.Deadline = *patch.Deadline
	}
	if patch.Status != nil {
		if !domain.ValidProjectStatus(*patch.Status) {
			return domain.Project{}, ValidationError{Msg: fmt.Sprintf("unknown project status %q", *patch.Status)}
		}
		p.Status = *patch.Status
	}
	p.UpdatedAt = m.nowRFC3339()

	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()
	if err := m.Repo.UpdateProject(ctx, tx, p); err != nil {
		return domain.Project{}, err
	}
	if err := m.Events.Append(ctx, tx, "project.updated", "project", p.ID, ident.UserID, nil); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	m.Hub.Notify(watch.KindProjects)
	return p, nil
}

func (m *Manager) DeleteProject(ctx context.Context, ident domain.Identity, id string) error {
	if !policy.CanPerform(ident, policy.ActionDelete, policy.KindProject) {
		return policy.Deny(ident, policy.ActionDelete, policy.KindProject)
	}
	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := m.Repo.DeleteProject(ctx, tx, id); err != nil {
		return err
	}
	if err := m.Events.Append(ctx, tx, "project.deleted", "project", id, ident.UserID, nil); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	m.Hub.Notify(watch.KindProjects)
	return nil
}

// GetProject returns the project if the identity may see it. An invisible
// project and a missing one are both reported as not found.
func (m *Manager) GetProject(ctx context.Context, ident domain.Identity, id string) (domain.Project, error) {
	p, err := m.Repo.GetProject(ctx, id)
	if err != nil {
		return domain.Project{}, err
	}
	if !visibility.ProjectVisible(ident, p) {
		return domain.Project{}, repo.ErrNotFound
	}
	return p, nil
}

func (m *Manager) ListProjects(ctx context.Context, ident domain.Identity, filters visibility.ProjectFilters) ([]domain.Project, error) {
	all, err := m.Repo.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	visible := visibility.Projects(ident, all)
	return visibility.FilterProjects(visible, filters), nil
}

