package manager_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"taskmaster/internal/db"
	"taskmaster/internal/domain"
	"taskmaster/internal/manager"
	"taskmaster/internal/migrate"
	"taskmaster/internal/policy"
	"taskmaster/internal/repo"
	"taskmaster/internal/visibility"
	"taskmaster/internal/watch"
)

var (
	admin    = domain.Identity{UserID: "u-admin", Role: domain.RoleAdmin}
	employee = domain.Identity{UserID: "u-emp", Role: domain.RoleEmployee}
	client   = domain.Identity{UserID: "u-client", Role: domain.RoleClient}
	client2  = domain.Identity{UserID: "u-client2", Role: domain.RoleClient}
)

type testEnv struct {
	M   *manager.Manager
	Ctx context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn, nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	m := manager.New(conn)
	m.Now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	for _, u := range []struct {
		ident domain.Identity
		name  string
	}{
		{admin, "Admin"},
		{employee, "Employee"},
		{client, "Client One"},
		{client2, "Client Two"},
	} {
		_, err := m.CreateUser(ctx, admin, manager.UserCreateOptions{
			ID:    u.ident.UserID,
			Name:  u.name,
			Email: u.ident.UserID + "@example.com",
			Role:  string(u.ident.Role),
		})
		if err != nil {
			t.Fatalf("seed user %s: %v", u.ident.UserID, err)
		}
	}
	return testEnv{M: m, Ctx: ctx}
}

func isDenied(err error) bool {
	var d policy.DeniedError
	return errors.As(err, &d)
}

func TestProjectCreationIsStaffOnly(t *testing.T) {
	env := newTestEnv(t)
	for _, ident := range []domain.Identity{admin, employee} {
		_, err := env.M.CreateProject(env.Ctx, ident, manager.ProjectCreateOptions{Name: "ok"})
		if err != nil {
			t.Fatalf("%s create project: %v", ident.Role, err)
		}
	}
	_, err := env.M.CreateProject(env.Ctx, client, manager.ProjectCreateOptions{Name: "nope"})
	if !isDenied(err) {
		t.Fatalf("client create project: want denial, got %v", err)
	}
	if err.Error() != "clients cannot create projects" {
		t.Fatalf("denial message: %q", err.Error())
	}
}

func TestAnyAuthenticatedMayCreateTasks(t *testing.T) {
	env := newTestEnv(t)
	for _, ident := range []domain.Identity{admin, employee, client} {
		_, err := env.M.CreateTask(env.Ctx, ident, manager.TaskCreateOptions{Title: "t"})
		if err != nil {
			t.Fatalf("%s create task: %v", ident.Role, err)
		}
	}
}

func TestEmployeeMayDeleteTasksButNotProjects(t *testing.T) {
	env := newTestEnv(t)
	p, err := env.M.CreateProject(env.Ctx, admin, manager.ProjectCreateOptions{Name: "p"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	task, err := env.M.CreateTask(env.Ctx, admin, manager.TaskCreateOptions{Title: "t"})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if err := env.M.DeleteTask(env.Ctx, employee, task.ID); err != nil {
		t.Fatalf("employee delete task: %v", err)
	}
	if err := env.M.DeleteProject(env.Ctx, employee, p.ID); !isDenied(err) {
		t.Fatalf("employee delete project: want denial, got %v", err)
	}
	if err := env.M.DeleteProject(env.Ctx, admin, p.ID); err != nil {
		t.Fatalf("admin delete project: %v", err)
	}
}

func TestClientMayNotDeleteTasks(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.M.CreateTask(env.Ctx, client, manager.TaskCreateOptions{Title: "own task"})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	err = env.M.DeleteTask(env.Ctx, client, task.ID)
	if !isDenied(err) {
		t.Fatalf("want denial, got %v", err)
	}
	if err.Error() != "clients cannot delete tasks" {
		t.Fatalf("denial message: %q", err.Error())
	}
}

func TestClientTaskVisibility(t *testing.T) {
	env := newTestEnv(t)
	owned, err := env.M.CreateProject(env.Ctx, admin, manager.ProjectCreateOptions{Name: "owned", ClientID: &client.UserID})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	other, err := env.M.CreateProject(env.Ctx, admin, manager.ProjectCreateOptions{Name: "other", ClientID: &client2.UserID})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	inOwned, _ := env.M.CreateTask(env.Ctx, admin, manager.TaskCreateOptions{Title: "in owned", ProjectID: &owned.ID})
	assigned, _ := env.M.CreateTask(env.Ctx, admin, manager.TaskCreateOptions{Title: "assigned", ProjectID: &other.ID, Assignees: []string{client.UserID}})
	hidden, _ := env.M.CreateTask(env.Ctx, admin, manager.TaskCreateOptions{Title: "hidden", ProjectID: &other.ID})

	tasks, err := env.M.ListTasks(env.Ctx, client, visibility.TaskFilters{})
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	got := map[string]bool{}
	for _, task := range tasks {
		got[task.ID] = true
	}
	if !got[inOwned.ID] || !got[assigned.ID] || got[hidden.ID] || len(got) != 2 {
		t.Fatalf("client visible tasks: %v", got)
	}

	// staff see everything
	all, err := env.M.ListTasks(env.Ctx, employee, visibility.TaskFilters{})
	if err != nil || len(all) != 3 {
		t.Fatalf("employee visible tasks: %d, %v", len(all), err)
	}
}

func TestInvisibleLooksLikeMissing(t *testing.T) {
	env := newTestEnv(t)
	other, _ := env.M.CreateProject(env.Ctx, admin, manager.ProjectCreateOptions{Name: "other", ClientID: &client2.UserID})
	hidden, _ := env.M.CreateTask(env.Ctx, admin, manager.TaskCreateOptions{Title: "hidden", ProjectID: &other.ID})

	_, errInvisible := env.M.GetTask(env.Ctx, client, hidden.ID)
	_, errMissing := env.M.GetTask(env.Ctx, client, "no-such-task")
	if errInvisible != repo.ErrNotFound || errMissing != repo.ErrNotFound {
		t.Fatalf("want both not found, got %v / %v", errInvisible, errMissing)
	}

	_, errProj := env.M.GetProject(env.Ctx, client, other.ID)
	if errProj != repo.ErrNotFound {
		t.Fatalf("invisible project: want not found, got %v", errProj)
	}
}

func TestClientCannotUpdateInvisibleTask(t *testing.T) {
	env := newTestEnv(t)
	other, _ := env.M.CreateProject(env.Ctx, admin, manager.ProjectCreateOptions{Name: "other", ClientID: &client2.UserID})
	hidden, _ := env.M.CreateTask(env.Ctx, admin, manager.TaskCreateOptions{Title: "hidden", ProjectID: &other.ID})
	title := "renamed"
	_, err := env.M.UpdateTask(env.Ctx, client, hidden.ID, manager.TaskPatch{Title: &title})
	if err != repo.ErrNotFound {
		t.Fatalf("want not found, got %v", err)
	}
}

func TestRoleChangeIsAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	role := string(domain.RoleEmployee)

	_, err := env.M.UpdateUser(env.Ctx, client, client.UserID, manager.UserPatch{Role: &role})
	if !isDenied(err) {
		t.Fatalf("self role change: want denial, got %v", err)
	}
	_, err = env.M.UpdateUser(env.Ctx, employee, client.UserID, manager.UserPatch{Role: &role})
	if !isDenied(err) {
		t.Fatalf("employee role change: want denial, got %v", err)
	}
	u, err := env.M.UpdateUser(env.Ctx, admin, client.UserID, manager.UserPatch{Role: &role})
	if err != nil || u.Role != domain.RoleEmployee {
		t.Fatalf("admin role change: %v (%s)", err, u.Role)
	}
}

func TestOwnProfileUpdate(t *testing.T) {
	env := newTestEnv(t)
	name := "Renamed"
	u, err := env.M.UpdateUser(env.Ctx, client, client.UserID, manager.UserPatch{Name: &name})
	if err != nil || u.Name != "Renamed" {
		t.Fatalf("self update: %v", err)
	}
	_, err = env.M.UpdateUser(env.Ctx, client, client2.UserID, manager.UserPatch{Name: &name})
	if !isDenied(err) {
		t.Fatalf("cross update: want denial, got %v", err)
	}
}

func TestClientsSeeNoUsers(t *testing.T) {
	env := newTestEnv(t)
	users, err := env.M.ListUsers(env.Ctx, client)
	if err != nil || len(users) != 0 {
		t.Fatalf("client user list: %d, %v", len(users), err)
	}
	users, err = env.M.ListUsers(env.Ctx, employee)
	if err != nil || len(users) != 4 {
		t.Fatalf("employee user list: %d, %v", len(users), err)
	}
}

func TestSignUpAlwaysCreatesClients(t *testing.T) {
	env := newTestEnv(t)
	u, err := env.M.SignUp(env.Ctx, manager.UserCreateOptions{
		Name:  "Walk In",
		Email: "walkin@example.com",
		Role:  "admin", // ignored
	})
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if u.Role != domain.RoleClient {
		t.Fatalf("sign up role: %s", u.Role)
	}
}

func TestPriorityManagementIsAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	p, err := env.M.CreatePriority(env.Ctx, admin, manager.PriorityCreateOptions{Name: "high", Color: "#EF4444", Order: 1})
	if err != nil {
		t.Fatalf("admin create priority: %v", err)
	}
	_, err = env.M.CreatePriority(env.Ctx, employee, manager.PriorityCreateOptions{Name: "mid", Color: "#F59E0B", Order: 2})
	if !isDenied(err) {
		t.Fatalf("employee create priority: want denial, got %v", err)
	}
	if err := env.M.DeletePriority(env.Ctx, client, p.ID); !isDenied(err) {
		t.Fatalf("client delete priority: want denial, got %v", err)
	}
	// but everyone may read
	list, err := env.M.ListPriorities(env.Ctx, client)
	if err != nil || len(list) != 1 {
		t.Fatalf("client list priorities: %d, %v", len(list), err)
	}
}

func TestPrioritiesOrderedByRank(t *testing.T) {
	env := newTestEnv(t)
	env.M.CreatePriority(env.Ctx, admin, manager.PriorityCreateOptions{Name: "low", Color: "#10B981", Order: 3})
	env.M.CreatePriority(env.Ctx, admin, manager.PriorityCreateOptions{Name: "high", Color: "#EF4444", Order: 1})
	env.M.CreatePriority(env.Ctx, admin, manager.PriorityCreateOptions{Name: "medium", Color: "#F59E0B", Order: 2})
	list, err := env.M.ListPriorities(env.Ctx, employee)
	if err != nil {
		t.Fatalf("list priorities: %v", err)
	}
	var names []string
	for _, p := range list {
		names = append(names, p.Name)
	}
	want := []string{"high", "medium", "low"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("priority order: %v", names)
		}
	}
}

func TestAssignmentCreatesNotification(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.M.CreateTask(env.Ctx, admin, manager.TaskCreateOptions{Title: "t", Assignees: []string{employee.UserID}})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	ns, err := env.M.ListNotifications(env.Ctx, employee)
	if err != nil || len(ns) != 1 {
		t.Fatalf("notifications: %d, %v", len(ns), err)
	}
	if ns[0].Read {
		t.Fatal("new notification should be unread")
	}
	if err := env.M.MarkNotificationRead(env.Ctx, employee, ns[0].ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	n, err := env.M.UnreadNotifications(env.Ctx, employee)
	if err != nil || n != 0 {
		t.Fatalf("unread count: %d, %v", n, err)
	}
}

func TestNotificationsAreOwnerScoped(t *testing.T) {
	env := newTestEnv(t)
	env.M.CreateTask(env.Ctx, admin, manager.TaskCreateOptions{Title: "t", Assignees: []string{employee.UserID}})
	ns, _ := env.M.ListNotifications(env.Ctx, employee)
	if len(ns) != 1 {
		t.Fatalf("notifications: %d", len(ns))
	}
	// another user cannot touch it
	if err := env.M.MarkNotificationRead(env.Ctx, client, ns[0].ID); err != repo.ErrNotFound {
		t.Fatalf("foreign mark read: want not found, got %v", err)
	}
	if err := env.M.DeleteNotification(env.Ctx, client, ns[0].ID); err != repo.ErrNotFound {
		t.Fatalf("foreign delete: want not found, got %v", err)
	}
}

func TestValidationRunsBeforePolicy(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.M.CreateProject(env.Ctx, client, manager.ProjectCreateOptions{})
	var v manager.ValidationError
	if !errors.As(err, &v) {
		t.Fatalf("want validation error, got %v", err)
	}
}

func TestWatchTasksRecomputesOnChange(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(env.Ctx)
	defer cancel()

	snapshots := make(chan int, 8)
	done := make(chan error, 1)
	go func() {
		done <- env.M.WatchTasks(ctx, employee, visibility.TaskFilters{}, func(tasks []domain.Task) {
			snapshots <- len(tasks)
		})
	}()

	waitSnapshot := func(want int) {
		t.Helper()
		deadline := time.After(2 * time.Second)
		for {
			select {
			case n := <-snapshots:
				if n == want {
					return
				}
			case <-deadline:
				t.Fatalf("timed out waiting for snapshot of %d tasks", want)
			}
		}
	}

	waitSnapshot(0)
	if _, err := env.M.CreateTask(env.Ctx, admin, manager.TaskCreateOptions{Title: "t"}); err != nil {
		t.Fatalf("create task: %v", err)
	}
	waitSnapshot(1)

	cancel()
	if err := <-done; err != context.Canceled {
		t.Fatalf("watch exit: %v", err)
	}
}

func TestWatchEndsOnStoreFault(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(env.Ctx)
	defer cancel()

	snapshots := make(chan int, 8)
	done := make(chan error, 1)
	go func() {
		done <- env.M.WatchTasks(ctx, employee, visibility.TaskFilters{}, func(tasks []domain.Task) {
			snapshots <- len(tasks)
		})
	}()

	select {
	case <-snapshots:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for initial snapshot")
	}

	env.M.DB.Close()
	env.M.Hub.Notify(watch.KindTasks)

	select {
	case err := <-done:
		if err == nil || errors.Is(err, context.Canceled) {
			t.Fatalf("want store fault to end the watch, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not end after store fault")
	}
}
