package visibility

import (
	"strings"

	"taskmaster/internal/domain"
)

// TaskFilters narrows an already-visible task list. Each field is an
// independent predicate; empty fields match everything, so application order
// cannot change the result set.
type TaskFilters struct {
	Status     string
	PriorityID string
	ProjectID  string
	AssigneeID string
	Search     string
}

func (f TaskFilters) Empty() bool {
	return f == TaskFilters{}
}

// Matches reports whether t passes every non-empty predicate.
func (f TaskFilters) Matches(t domain.Task) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.PriorityID != "" && (t.PriorityID == nil || *t.PriorityID != f.PriorityID) {
		return false
	}
	if f.ProjectID != "" && (t.ProjectID == nil || *t.ProjectID != f.ProjectID) {
		return false
	}
	if f.AssigneeID != "" && !t.HasAssignee(f.AssigneeID) {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(t.Title), needle) &&
			!strings.Contains(strings.ToLower(t.Description), needle) {
			return false
		}
	}
	return true
}

// FilterTasks applies f to tasks.
func FilterTasks(tasks []domain.Task, f TaskFilters) []domain.Task {
	if f.Empty() {
		return tasks
	}
	out := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if f.Matches(t) {
			out = append(out, t)
		}
	}
	return out
}

// ProjectFilters mirrors TaskFilters for project lists.
type ProjectFilters struct {
	Status   string
	ClientID string
	Search   string
}

func (f ProjectFilters) Empty() bool {
	return f == ProjectFilters{}
}

func (f ProjectFilters) Matches(p domain.Project) bool {
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.ClientID != "" && (p.ClientID == nil || *p.ClientID != f.ClientID) {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(p.Name), needle) &&
			!strings.Contains(strings.ToLower(p.Description), needle) {
			return false
		}
	}
	return true
}

func FilterProjects(projects []domain.Project, f ProjectFilters) []domain.Project {
	if f.Empty() {
		return projects
	}
	out := make([]domain.Project, 0, len(projects))
	for _, p := range projects {
		if f.Matches(p) {
			out = append(out, p)
		}
	}
	return out
}
