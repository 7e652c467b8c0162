package server

import (
	"taskmaster/internal/domain"
)

// Every response body is the same envelope: success plus data, or success
// false plus a plain-string error and a machine code. Handlers return
// results; failures go through handleError.

type resultBody[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty" example:"clients cannot delete projects"`
	Code    string `json:"code,omitempty" example:"forbidden"`
}

type result[T any] struct {
	Body resultBody[T] `json:"body"`
}

func ok[T any](data T) *result[T] {
	return &result[T]{Body: resultBody[T]{Success: true, Data: data}}
}

// Request payloads

type SignUpRequest struct {
	Name  string `json:"name"`
	Email string `json:"email" format:"email"`
	Phone string `json:"phone,omitempty"`
}

type LoginRequest struct {
	Email string `json:"email" format:"email"`
}

type LoginResponse struct {
	Token string             `json:"token"`
	User  domain.UserProfile `json:"user"`
}

type CreateUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email" format:"email"`
	Role  string `json:"role" enum:"admin,employee,client"`
	Phone string `json:"phone,omitempty"`
}

type UpdateUserRequest struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty" format:"email"`
	Phone *string `json:"phone,omitempty"`
	Role  *string `json:"role,omitempty" enum:"admin,employee,client"`
}

type CreateProjectRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	ClientID    *string `json:"client_id,omitempty"`
	Deadline    *string `json:"deadline,omitempty" format:"date-time"`
	Status      string  `json:"status,omitempty" enum:"active,on_hold,completed"`
}

// In update requests an omitted field is unchanged and an explicit empty
// string clears an optional reference.
type UpdateProjectRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	ClientID    *string `json:"client_id,omitempty"`
	Deadline    *string `json:"deadline,omitempty"`
	Status      *string `json:"status,omitempty" enum:"active,on_hold,completed"`
}

type CreateTaskRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	ProjectID   *string  `json:"project_id,omitempty"`
	PriorityID  *string  `json:"priority_id,omitempty"`
	Status      string   `json:"status,omitempty" enum:"new,in_progress,waiting_for_client,completed"`
	Assignees   []string `json:"assignees,omitempty"`
}

type UpdateTaskRequest struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	ProjectID   *string   `json:"project_id,omitempty"`
	PriorityID  *string   `json:"priority_id,omitempty"`
	Status      *string   `json:"status,omitempty" enum:"new,in_progress,waiting_for_client,completed"`
	Assignees   *[]string `json:"assignees,omitempty"`
}

type CreatePriorityRequest struct {
	Name  string `json:"name"`
	Color string `json:"color" example:"#EF4444"`
	Order int    `json:"order"`
}

type UpdatePriorityRequest struct {
	Name  *string `json:"name,omitempty"`
	Color *string `json:"color,omitempty"`
	Order *int    `json:"order,omitempty"`
}

type CreateAPIKeyRequest struct {
	Name string `json:"name,omitempty"`
}

type APIKeyCreated struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Key       string `json:"key"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
