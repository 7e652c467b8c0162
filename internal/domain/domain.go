package domain

// Role classifies the acting principal. All permission branching on roles
// lives in internal/policy; nothing outside it compares roles directly.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
	RoleClient   Role = "client"
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEmployee, RoleClient:
		return true
	}
	return false
}

// Identity is the resolved acting principal for a single request. It is
// passed explicitly to every manager operation; there is no ambient
// current-user state.
type Identity struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role" enum:"admin,employee,client"`
}

type Project struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	ClientID    *string `json:"client_id,omitempty"`
	Deadline    *string `json:"deadline,omitempty" format:"date-time"`
	Status      string  `json:"status" enum:"active,on_hold,completed"`
	CreatedBy   string  `json:"created_by"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
}

type Task struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	ProjectID   *string  `json:"project_id,omitempty"`
	PriorityID  *string  `json:"priority_id,omitempty"`
	Status      string   `json:"status" enum:"new,in_progress,waiting_for_client,completed"`
	Assignees   []string `json:"assignees,omitempty"`
	CreatedBy   string   `json:"created_by"`
	CreatedAt   string   `json:"created_at" format:"date-time"`
	UpdatedAt   string   `json:"updated_at" format:"date-time"`
}

// HasAssignee reports membership of userID in the assignee set. Insertion
// order of assignees carries no meaning.
func (t Task) HasAssignee(userID string) bool {
	for _, a := range t.Assignees {
		if a == userID {
			return true
		}
	}
	return false
}

type UserProfile struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email"`
	Role      Role   `json:"role" enum:"admin,employee,client"`
	Phone     string `json:"phone,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Priority is a globally shared reference record. Order sorts ascending for
// display (1 = most urgent); duplicate or non-contiguous values are tolerated.
type Priority struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	Order     int    `json:"order"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Notification struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	Title     string  `json:"title"`
	Content   string  `json:"content"`
	Link      *string `json:"link,omitempty"`
	Read      bool    `json:"read"`
	CreatedAt string  `json:"created_at" format:"date-time"`
	ReadAt    *string `json:"read_at,omitempty" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Project status values.
const (
	ProjectActive    = "active"
	ProjectOnHold    = "on_hold"
	ProjectCompleted = "completed"
)

// Task status values.
const (
	TaskNew              = "new"
	TaskInProgress       = "in_progress"
	TaskWaitingForClient = "waiting_for_client"
	TaskCompleted        = "completed"
)

func ValidProjectStatus(s string) bool {
	switch s {
	case ProjectActive, ProjectOnHold, ProjectCompleted:
		return true
	}
	return false
}

func ValidTaskStatus(s string) bool {
	switch s {
	case TaskNew, TaskInProgress, TaskWaitingForClient, TaskCompleted:
		return true
	}
	return false
}
