package policy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"taskmaster/internal/domain"
	"taskmaster/internal/policy"
)

var (
	admin    = domain.Identity{UserID: "a1", Role: domain.RoleAdmin}
	employee = domain.Identity{UserID: "e1", Role: domain.RoleEmployee}
	client   = domain.Identity{UserID: "c1", Role: domain.RoleClient}
)

func TestProjectPermissions(t *testing.T) {
	assert.True(t, policy.CanPerform(admin, policy.ActionCreate, policy.KindProject))
	assert.True(t, policy.CanPerform(employee, policy.ActionCreate, policy.KindProject))
	assert.False(t, policy.CanPerform(client, policy.ActionCreate, policy.KindProject))

	assert.True(t, policy.CanPerform(admin, policy.ActionDelete, policy.KindProject))
	assert.False(t, policy.CanPerform(employee, policy.ActionDelete, policy.KindProject))
	assert.False(t, policy.CanPerform(client, policy.ActionDelete, policy.KindProject))
}

func TestTaskCreationIsUniversal(t *testing.T) {
	// Clients may create tasks even though they may not create projects.
	for _, id := range []domain.Identity{admin, employee, client} {
		assert.True(t, policy.CanPerform(id, policy.ActionCreate, policy.KindTask), id.Role)
		assert.True(t, policy.CanPerform(id, policy.ActionUpdate, policy.KindTask), id.Role)
	}
}

func TestTaskDeleteExcludesClients(t *testing.T) {
	assert.True(t, policy.CanPerform(admin, policy.ActionDelete, policy.KindTask))
	assert.True(t, policy.CanPerform(employee, policy.ActionDelete, policy.KindTask))
	assert.False(t, policy.CanPerform(client, policy.ActionDelete, policy.KindTask))
}

func TestUserPermissions(t *testing.T) {
	assert.True(t, policy.CanPerform(admin, policy.ActionCreate, policy.KindUser))
	assert.False(t, policy.CanPerform(employee, policy.ActionCreate, policy.KindUser))
	assert.False(t, policy.CanPerform(client, policy.ActionCreate, policy.KindUser))

	assert.True(t, policy.CanPerform(admin, policy.ActionView, policy.KindUser))
	assert.True(t, policy.CanPerform(employee, policy.ActionView, policy.KindUser))
	assert.False(t, policy.CanPerform(client, policy.ActionView, policy.KindUser))

	assert.True(t, policy.CanPerform(admin, policy.ActionDelete, policy.KindUser))
	assert.False(t, policy.CanPerform(employee, policy.ActionDelete, policy.KindUser))
}

func TestUserUpdateTargetRules(t *testing.T) {
	// Own profile, no role change: allowed for everyone.
	assert.True(t, policy.CanUpdateUser(client, "c1", false))
	assert.True(t, policy.CanUpdateUser(employee, "e1", false))

	// Someone else's profile: admin only.
	assert.False(t, policy.CanUpdateUser(client, "u9", false))
	assert.False(t, policy.CanUpdateUser(employee, "u9", false))
	assert.True(t, policy.CanUpdateUser(admin, "u9", false))

	// Role changes always need admin, self-promotion included.
	assert.False(t, policy.CanUpdateUser(employee, "e1", true))
	assert.False(t, policy.CanUpdateUser(client, "c1", true))
	assert.True(t, policy.CanUpdateUser(admin, "u9", true))
}

func TestPriorityPermissions(t *testing.T) {
	for _, action := range []policy.Action{policy.ActionCreate, policy.ActionUpdate, policy.ActionDelete} {
		assert.True(t, policy.CanPerform(admin, action, policy.KindPriority))
		assert.False(t, policy.CanPerform(employee, action, policy.KindPriority))
		assert.False(t, policy.CanPerform(client, action, policy.KindPriority))
	}
	for _, id := range []domain.Identity{admin, employee, client} {
		assert.True(t, policy.CanPerform(id, policy.ActionView, policy.KindPriority))
	}
}

func TestEventPermissions(t *testing.T) {
	assert.True(t, policy.CanPerform(admin, policy.ActionView, policy.KindEvent))
	assert.True(t, policy.CanPerform(employee, policy.ActionView, policy.KindEvent))
	assert.False(t, policy.CanPerform(client, policy.ActionView, policy.KindEvent))

	// Nobody writes events through the API.
	for _, id := range []domain.Identity{admin, employee, client} {
		assert.False(t, policy.CanPerform(id, policy.ActionCreate, policy.KindEvent))
		assert.False(t, policy.CanPerform(id, policy.ActionDelete, policy.KindEvent))
	}
}

func TestUnauthenticatedAndUnknownRolesDenied(t *testing.T) {
	anon := domain.Identity{}
	bogus := domain.Identity{UserID: "x", Role: "superuser"}
	for _, id := range []domain.Identity{anon, bogus} {
		assert.False(t, policy.CanPerform(id, policy.ActionCreate, policy.KindTask))
		assert.False(t, policy.CanUpdateUser(id, "x", false))
	}
}

func TestDeniedErrorMessage(t *testing.T) {
	err := policy.Deny(client, policy.ActionDelete, policy.KindProject)
	assert.EqualError(t, err, "clients cannot delete projects")
}
