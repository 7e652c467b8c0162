package manager

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"taskmaster/internal/domain"
	"taskmaster/internal/events"
	"taskmaster/internal/policy"
	"taskmaster/internal/watch"
)

// PriorityCreateOptions are parameters for creating a priority level.
type PriorityCreateOptions struct {
	ID    string
	Name  string `validate:"required"`
	Color string `validate:"required,hexcolor"`
	Order int
}

func (m *Manager) CreatePriority(ctx context.Context, ident domain.Identity, opts PriorityCreateOptions) (domain.Priority, error) {
	if err := m.checkInput(opts); err != nil {
		return domain.Priority{}, err
	}
	if !policy.CanPerform(ident, policy.ActionCreate, policy.KindPriority) {
		return domain.Priority{}, policy.Deny(ident, policy.ActionCreate, policy.KindPriority)
	}
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	p := domain.Priority{
		ID:        id,
		Name:      opts.Name,
		Color:     opts.Color,
		Order:     opts.Order,
		CreatedAt: m.nowRFC3339(),
	}
	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Priority{}, err
	}
	defer tx.Rollback()
	if err := m.Repo.InsertPriority(ctx, tx, p); err != nil {
		return domain.Priority{}, fmt.Errorf("insert priority: %w", err)
	}
	if err := m.Events.Append(ctx, tx, "priority.created", "priority", p.ID, ident.UserID, events.EventPayload{"name": p.Name}); err != nil {
		return domain.Priority{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Priority{}, err
	}
	m.Hub.Notify(watch.KindPriorities)
	return p, nil
}

// PriorityPatch carries the fields an update may change. Nil means unchanged.
type PriorityPatch struct {
	Name  *string
	Color *string
	Order *int
}

func (m *Manager) UpdatePriority(ctx context.Context, ident domain.Identity, id string, patch PriorityPatch) (domain.Priority, error) {
	if !policy.CanPerform(ident, policy.ActionUpdate, policy.KindPriority) {
		return domain.Priority{}, policy.Deny(ident, policy.ActionUpdate, policy.KindPriority)
	}
	p, err := m.Repo.GetPriority(ctx, id)
	if err != nil {
		return domain.Priority{}, err
	}
	if patch.Name != nil {
		if *patch.Name == "" {
			return domain.Priority{}, ValidationError{Msg: "name must not be empty"}
		}
		p.Name = *patch.Name
	}
	if patch.Color != nil {
		p.Color = *patch.Color
	}
	if patch.Order != nil {
		p.Order = *patch.Order
	}
	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Priority{}, err
	}
	defer tx.Rollback()
	if err := m.Repo.UpdatePriority(ctx, tx, p); err != nil {
		return domain.Priority{}, err
	}
	if err := m.Events.Append(ctx, tx, "priority.updated", "priority", p.ID, ident.UserID, nil); err != nil {
		return domain.Priority{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Priority{}, err
	}
	m.Hub.Notify(watch.KindPriorities)
	return p, nil
}

func (m *Manager) DeletePriority(ctx context.Context, ident domain.Identity, id string) error {
	if !policy.CanPerform(ident, policy.ActionDelete, policy.KindPriority) {
		return policy.Deny(ident, policy.ActionDelete, policy.KindPriority)
	}
	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := m.Repo.DeletePriority(ctx, tx, id); err != nil {
		return err
	}
	if err := m.Events.Append(ctx, tx, "priority.deleted", "priority", id, ident.UserID, nil); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	m.Hub.Notify(watch.KindPriorities)
	return nil
}

// ListPriorities is readable by every authenticated identity, ordered by rank.
func (m *Manager) ListPriorities(ctx context.Context, ident domain.Identity) ([]domain.Priority, error) {
	if !policy.CanPerform(ident, policy.ActionView, policy.KindPriority) {
		return nil, policy.Deny(ident, policy.ActionView, policy.KindPriority)
	}
	return m.Repo.ListPriorities(ctx)
}

func (m *Manager) GetPriority(ctx context.Context, ident domain.Identity, id string) (domain.Priority, error) {
	if !policy.CanPerform(ident, policy.ActionView, policy.KindPriority) {
		return domain.Priority{}, policy.Deny(ident, policy.ActionView, policy.KindPriority)
	}
	return m.Repo.GetPriority(ctx, id)
}
