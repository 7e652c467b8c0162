// Package visibility reduces full entity collections to the subset an
// identity may see. The functions are pure and cheap enough to re-run on
// every store change notification; managers call them on each snapshot.
package visibility

import (
	"taskmaster/internal/domain"
)

// Projects returns the projects visible to id. Admins and employees see the
// whole collection; clients only projects whose ClientID is theirs.
func Projects(id domain.Identity, projects []domain.Project) []domain.Project {
	if id.Role != domain.RoleClient {
		return projects
	}
	out := make([]domain.Project, 0, len(projects))
	for _, p := range projects {
		if ProjectVisible(id, p) {
			out = append(out, p)
		}
	}
	return out
}

// ProjectVisible is the single-record predicate behind Projects. GetById
// paths apply it so that an invisible record is indistinguishable from a
// missing one.
func ProjectVisible(id domain.Identity, p domain.Project) bool {
	if id.Role != domain.RoleClient {
		return true
	}
	return p.ClientID != nil && *p.ClientID == id.UserID
}

// Tasks returns the tasks visible to id. For clients a task is visible when
// its project is owned by the client OR the client appears in its assignee
// set; either condition alone suffices.
func Tasks(id domain.Identity, tasks []domain.Task, projects []domain.Project) []domain.Task {
	if id.Role != domain.RoleClient {
		return tasks
	}
	owned := ownedProjectSet(id, projects)
	out := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if taskVisibleTo(id, t, owned) {
			out = append(out, t)
		}
	}
	return out
}

// TaskVisible is the single-record predicate behind Tasks. proj is the task's
// parent project, or nil when the task has none or the project is unknown.
func TaskVisible(id domain.Identity, t domain.Task, proj *domain.Project) bool {
	if id.Role != domain.RoleClient {
		return true
	}
	if proj != nil && proj.ClientID != nil && *proj.ClientID == id.UserID {
		return true
	}
	return t.HasAssignee(id.UserID)
}

// Users returns the profiles visible to id: the full collection for admins
// and employees, nothing for clients.
func Users(id domain.Identity, users []domain.UserProfile) []domain.UserProfile {
	if id.Role == domain.RoleAdmin || id.Role == domain.RoleEmployee {
		return users
	}
	return nil
}

func ownedProjectSet(id domain.Identity, projects []domain.Project) map[string]struct{} {
	owned := make(map[string]struct{}, len(projects))
	for _, p := range projects {
		if p.ClientID != nil && *p.ClientID == id.UserID {
			owned[p.ID] = struct{}{}
		}
	}
	return owned
}

func taskVisibleTo(id domain.Identity, t domain.Task, owned map[string]struct{}) bool {
	if t.ProjectID != nil {
		if _, ok := owned[*t.ProjectID]; ok {
			return true
		}
	}
	return t.HasAssignee(id.UserID)
}
