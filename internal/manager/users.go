package manager

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"taskmaster/internal/domain"
	"taskmaster/internal/events"
	"taskmaster/internal/policy"
	"taskmaster/internal/visibility"
	"taskmaster/internal/watch"
)

// UserCreateOptions are parameters for creating a user profile.
type UserCreateOptions struct {
	ID    string
	Name  string `validate:"required"`
	Email string `validate:"required,email"`
	Role  string `validate:"required"`
	Phone string
}

// CreateUser provisions a profile with an arbitrary role. Admin only; new
// clients register themselves through SignUp instead.
func (m *Manager) CreateUser(ctx context.Context, ident domain.Identity, opts UserCreateOptions) (domain.UserProfile, error) {
	if err := m.checkInput(opts); err != nil {
		return domain.UserProfile{}, err
	}
	role := domain.Role(opts.Role)
	if !role.Valid() {
		return domain.UserProfile{}, ValidationError{Msg: fmt.Sprintf("unknown role %q", opts.Role)}
	}
	if !policy.CanPerform(ident, policy.ActionCreate, policy.KindUser) {
		return domain.UserProfile{}, policy.Deny(ident, policy.ActionCreate, policy.KindUser)
	}
	return m.insertUser(ctx, opts, role, ident.UserID)
}

// SignUp registers a new client profile. It is the one write that runs
// without an authenticated identity; the role is always client.
func (m *Manager) SignUp(ctx context.Context, opts UserCreateOptions) (domain.UserProfile, error) {
	opts.Role = string(domain.RoleClient)
	if err := m.checkInput(opts); err != nil {
		return domain.UserProfile{}, err
	}
	return m.insertUser(ctx, opts, domain.RoleClient, "")
}

func (m *Manager) insertUser(ctx context.Context, opts UserCreateOptions, role domain.Role, actorID string) (domain.UserProfile, error) {
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	u := domain.UserProfile{
		ID:        id,
		Name:      opts.Name,
		Email:     strings.ToLower(strings.TrimSpace(opts.Email)),
		Role:      role,
		Phone:     opts.Phone,
		CreatedAt: m.nowRFC3339(),
	}
	if actorID == "" {
		actorID = u.ID
	}
	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.UserProfile{}, err
	}
	defer tx.Rollback()
	if err := m.Repo.InsertProfile(ctx, tx, u); err != nil {
		return domain.UserProfile{}, fmt.Errorf("insert profile: %w", err)
	}
	if err := m.Events.Append(ctx, tx, "user.created", "user", u.ID, actorID, events.EventPayload{"role": string(u.Role)}); err != nil {
		return domain.UserProfile{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.UserProfile{}, err
	}
	m.Hub.Notify(watch.KindUsers)
	return u, nil
}

// UserPatch carries the fields an update may change. Nil means unchanged.
type UserPatch struct {
	Name  *string
	Email *string
	Phone *string
	Role  *string
}

// UpdateUser lets anyone edit their own profile and admins edit anyone.
// A role change, including one's own, is admin only.
func (m *Manager) UpdateUser(ctx context.Context, ident domain.Identity, id string, patch UserPatch) (domain.UserProfile, error) {
	roleChange := patch.Role != nil
	if !policy.CanUpdateUser(ident, id, roleChange) {
		return domain.UserProfile{}, policy.Deny(ident, policy.ActionUpdate, policy.KindUser)
	}
	u, err := m.Repo.GetProfile(ctx, id)
	if err != nil {
		return domain.UserProfile{}, err
	}
	if patch.Name != nil {
		if *patch.Name == "" {
			return domain.UserProfile{}, ValidationError{Msg: "name must not be empty"}
		}
		u.Name = *patch.Name
	}
	if patch.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*patch.Email))
		if email == "" {
			return domain.UserProfile{}, ValidationError{Msg: "email must not be empty"}
		}
		u.Email = email
	}
	if patch.Phone != nil {
		u.Phone = *patch.Phone
	}
	if roleChange {
		role := domain.Role(*patch.Role)
		if !role.Valid() {
			return domain.UserProfile{}, ValidationError{Msg: fmt.Sprintf("unknown role %q", *patch.Role)}
		}
		u.Role = role
	}

	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.UserProfile{}, err
	}
	defer tx.Rollback()
	if err := m.Repo.UpdateProfile(ctx, tx, u); err != nil {
		return domain.UserProfile{}, err
	}
	evt := "user.updated"
	if roleChange {
		evt = "user.role_changed"
	}
	if err := m.Events.Append(ctx, tx, evt, "user", u.ID, ident.UserID, events.EventPayload{"role": string(u.Role)}); err != nil {
		return domain.UserProfile{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.UserProfile{}, err
	}
	m.Hub.Notify(watch.KindUsers)
	return u, nil
}

func (m *Manager) DeleteUser(ctx context.Context, ident domain.Identity, id string) error {
	if !policy.CanPerform(ident, policy.ActionDelete, policy.KindUser) {
		return policy.Deny(ident, policy.ActionDelete, policy.KindUser)
	}
	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := m.Repo.DeleteProfile(ctx, tx, id); err != nil {
		return err
	}
	if err := m.Events.Append(ctx, tx, "user.deleted", "user", id, ident.UserID, nil); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	m.Hub.Notify(watch.KindUsers)
	return nil
}

// GetUser returns another user's profile; staff only. For one's own profile
// use Me, which every authenticated identity may call.
func (m *Manager) GetUser(ctx context.Context, ident domain.Identity, id string) (domain.UserProfile, error) {
	if ident.UserID != id && !policy.CanPerform(ident, policy.ActionView, policy.KindUser) {
		return domain.UserProfile{}, policy.Deny(ident, policy.ActionView, policy.KindUser)
	}
	return m.Repo.GetProfile(ctx, id)
}

func (m *Manager) Me(ctx context.Context, ident domain.Identity) (domain.UserProfile, error) {
	return m.Repo.GetProfile(ctx, ident.UserID)
}

func (m *Manager) ListUsers(ctx context.Context, ident domain.Identity) ([]domain.UserProfile, error) {
	all, err := m.Repo.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}
	return visibility.Users(ident, all), nil
}
