// Package server exposes the managers over HTTP. Handlers stay thin: decode,
// resolve the identity, call the manager, wrap the outcome in the response
// envelope.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"taskmaster/internal/config"
	"taskmaster/internal/domain"
	"taskmaster/internal/manager"
	"taskmaster/internal/policy"
	"taskmaster/internal/repo"
	"taskmaster/internal/visibility"
)

// Config for the HTTP API handler.
type Config struct {
	Manager  *manager.Manager
	BasePath string
	Auth     AuthConfig
	Webhooks []config.Webhook
	Logger   *logrus.Logger
}

// apiError is the failure half of the response envelope. The error field is
// a plain string so callers can surface it without unpacking anything.
type apiError struct {
	status  int
	Success bool   `json:"success"`
	Reason  string `json:"error"`
	Code    string `json:"code,omitempty"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Reason }

func newAPIError(status int, code, message string) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{status: status, Reason: message, Code: code}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	var denied policy.DeniedError
	if errors.As(err, &denied) {
		return newAPIError(http.StatusForbidden, "forbidden", denied.Error())
	}
	var invalid manager.ValidationError
	if errors.As(err, &invalid) {
		return newAPIError(http.StatusBadRequest, "bad_request", invalid.Error())
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", "not found")
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error")
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

// New returns an HTTP handler exposing the Taskmaster API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Manager == nil {
		return nil, errors.New("manager is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	cfg.Auth.Logger = cfg.Logger
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			status = http.StatusBadRequest
		}
		return newAPIError(status, "", msg)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Manager.Repo))
	hcfg := huma.DefaultConfig("Taskmaster API", "1.0.0")
	hcfg.OpenAPIPath = "/openapi"
	// The default create hook injects a $schema link into every body. The
	// envelope is the documented wire shape, so keep it free of extras.
	hcfg.CreateHooks = nil
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerAuth(group, cfg.Manager, cfg.Auth)
	registerUsers(group, cfg.Manager)
	registerProjects(group, cfg.Manager)
	registerTasks(group, cfg.Manager)
	registerPriorities(group, cfg.Manager)
	registerNotifications(group, cfg.Manager)
	registerAPIKeys(group, cfg.Manager)
	registerEvents(group, cfg.Manager)
	registerWatch(router, basePath, cfg.Manager, cfg.Logger)

	startWebhookDispatcher(cfg.Manager, cfg.Webhooks, cfg.Logger)

	return router, nil
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*result[map[string]string], error) {
		return ok(map[string]string{"status": "ok"}), nil
	})
}

func registerAuth(api huma.API, m *manager.Manager, auth AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID:   "signup",
		Method:        http.MethodPost,
		Path:          "/auth/signup",
		Summary:       "Register a client account",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body SignUpRequest
	}) (*result[LoginResponse], error) {
		u, err := m.SignUp(ctx, manager.UserCreateOptions{
			Name:  input.Body.Name,
			Email: input.Body.Email,
			Phone: input.Body.Phone,
		})
		if err != nil {
			return nil, handleError(err)
		}
		token, err := signToken(u.ID, auth.JWTSecret, auth.TokenTTL, m.Now())
		if err != nil {
			return nil, handleError(err)
		}
		return ok(LoginResponse{Token: token, User: u}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Exchange an email for a token (development mode)",
	}, func(ctx context.Context, input *struct {
		Body LoginRequest
	}) (*result[LoginResponse], error) {
		if !auth.DevLogin {
			return nil, newAPIError(http.StatusNotFound, "not_found", "not found")
		}
		u, err := m.Repo.GetProfileByEmail(ctx, strings.ToLower(strings.TrimSpace(input.Body.Email)))
		if err != nil {
			return nil, handleError(err)
		}
		token, err := signToken(u.ID, auth.JWTSecret, auth.TokenTTL, m.Now())
		if err != nil {
			return nil, handleError(err)
		}
		return ok(LoginResponse{Token: token, User: u}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current profile",
	}, func(ctx context.Context, _ *struct{}) (*result[domain.UserProfile], error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		u, err := m.Me(ctx, ident)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(u), nil
	})
}

type IDPath struct {
	ID string `path:"id"`
}

func registerUsers(api huma.API, m *manager.Manager) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-user",
		Method:        http.MethodPost,
		Path:          "/users",
		Summary:       "Create user",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body CreateUserRequest
	}) (*result[domain.UserProfile], error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		u, err := m.CreateUser(ctx, ident, manager.UserCreateOptions{
			Name:  input.Body.Name,
			Email: input.Body.Email,
			Role:  input.Body.Role,
			Phone: input.Body.Phone,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return ok(u), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "List users",
	}, func(ctx context.Context, _ *struct{}) (*result[[]domain.UserProfile], error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		users, err := m.ListUsers(ctx, ident)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(users), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-user",
		Method:      http.MethodGet,
		Path:        "/users/{id}",
		Summary:     "Get user",
	}, func(ctx context.Context, input *IDPath) (*result[domain.UserProfile], error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		u, err := m.GetUser(ctx, ident, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(u), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-user",
		Method:      http.MethodPatch,
		Path:        "/users/{id}",
		Summary:     "Update user",
	}, func(ctx context.Context, input *struct {
		IDPath
		Body UpdateUserRequest
	}) (*result[domain.UserProfile], error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		u, err := m.UpdateUser(ctx, ident, input.ID, manager.UserPatch{
			Name:  input.Body.Name,
			Email: input.Body.Email,
			Phone: input.Body.Phone,
			Role:  input.Body.Role,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return ok(u), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-user",
		Method:      http.MethodDelete,
		Path:        "/users/{id}",
		Summary:     "Delete user",
	}, func(ctx context.Context, input *IDPath) (*result[struct{}], error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := m.DeleteUser(ctx, ident, input.ID); err != nil {
			return nil, handleError(err)
		}
		return ok(struct{}{}), nil
	})
}

func registerProjects(api huma.API, m *manager.Manager) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest
	}) (*result[domain.Project], error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := m.CreateProject(ctx, ident, manager.ProjectCreateOptions{
			Name:        input.Body.Name,
			Description: input.Body.Description,
			ClientID:    input.Body.ClientID,
			Deadline:    input.Body.Deadline,
			Status:      input.Body.Status,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return ok(p), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects",
	}, func(ctx context.Context, input *struct {
		Status   string `query:"status"`
		ClientID string `query:"client_id"`
		Search   string `query:"q"`
	}) (*result[[]domain.Project], error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		projects, err := m.ListProjects(ctx, ident, visibility.ProjectFilters{
			Status:   input.Status,
			ClientID: input.ClientID,
			Search:   input.Search,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return ok(projects), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{id}",
		Summary:     "Get project",
	}, func(ctx context.Context, input *IDPath) (*result[domain.Project], error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := m.GetProject(ctx, ident, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(p), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-project",
		Method:      http.MethodPatch,
		Path:        "/projects/{id}",
		Summary:     "Update project",
	}, func(ctx context.Context, input *struct {
		IDPath
		Body UpdateProjectRequest
	}) (*result[domain.Project], error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := m.UpdateProject(ctx, ident, input.ID, manager.ProjectPatch{
			Name:        input.Body.Name,
			Description: input.Body.Description,
			ClientID:    clearable(input.Body.ClientID),
			Deadline:    clearable(input.Body.Deadline),
			Status:      input.Body.Status,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return ok(p), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-project",
		Method:      http.MethodDelete,
		Path:        "/projects/{id}",
		Summary:     "Delete project",
	}, func(ctx context.Context, input *IDPath) (*result[struct{}], error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := m.DeleteProject(ctx, ident, input.ID); err != nil {
			return nil, handleError(err)
		}
		return ok(struct{}{}), nil
	})
}

// clearable turns the wire encoding (omitted = unchanged, empty = clear)
// into the patch encoding (nil pointer = clear).
func clearable(v *string) **string {
	if v == nil {
		return nil
	}
	if *v == "" {
		var null *string
		return &null
	}
	val := *v
	ptr := &val
	return &ptr
}

func registerTasks(api huma.API, m *manager.Manager) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest
	}) (*result[domain.Task], error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := m.CreateTask(ctx, ident, manager.TaskCreateOptions{
			Title:       input.Body.Title,
			Description: input.Body.Description,
			ProjectID:   input.Body.ProjectID,
			PriorityID:  input.Body.PriorityID,
			Status:      input.Body.Status,
			Assignees:   input.Body.Assignees,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return ok(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks",
	}, func(ctx context.Context, input *struct {
		Status     string `query:"status"`
		PriorityID string `query:"priority_id"`
		ProjectID  string `query:"project_id"`
		AssigneeID string `query:"assignee_id"`
		Search     string `query:"q"`
	}) (*result[[]domain.Task], error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		tasks, err := m.ListTasks(ctx, ident, visibility.TaskFilters{
			Status:     input.Status,
			PriorityID: input.PriorityID,
			ProjectID:  input.ProjectID,
			AssigneeID: input.AssigneeID,
			Search:     input.Search,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return ok(tasks), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Get task",
	}, func(ctx context.Context, input *IDPath) (*result[domain.Task], error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := m.GetTask(ctx, ident, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{id}",
		Summary:     "Update task",
	}, func(ctx context.Context, input *struct {
		IDPath
		Body UpdateTaskRequest
	}) (*result[domain.Task], error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := m.UpdateTask(ctx, ident, input.ID, manager.TaskPatch{
			Title:       input.Body.Title,
			Description: input.Body.Description,
			ProjectID:   clearable(input.Body.ProjectID),
			PriorityID:  clearable(input.Body.PriorityID),
			Status:      input.Body.Status,
			Assignees:   input.Body.Assignees,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return ok(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-task",
		Method:      http.MethodDelete,
		Path:        "/tasks/{id}",
		Summary:     "Delete task",
	}, func(ctx context.Context, input *IDPath) (*result[struct{}], error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := m.DeleteTask(ctx, ident, input.ID); err != nil {
			return nil, handleError(err)
		}
		return ok(struct{}{}), nil
	})
}

func registerPriorities(api huma.API, m *manager.Manager) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-priority",
		Method:        http.MethodPost,
		Path:          "/priorities",
		Summary:       "Create priority",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body CreatePriorityRequest
	}) (*result[domain.Priority], error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := m.CreatePriority(ctx, ident, manager.PriorityCreateOptions{
			Name:  input.Body.Name,
			Color: input.Body.Color,
			Order: input.Body.Order,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return ok(p), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-priorities",
		Method:      http.MethodGet,
		Path:        "/priorities",
		Summary:     "List priorities",
	}, func(ctx context.Context, _ *struct{}) (*result[[]domain.Priority], error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		list, err := m.ListPriorities(ctx, ident)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(list), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-priority",
		Method:      http.MethodPatch,
		Path:        "/priorities/{id}",
		Summary:     "Update priority",
	}, func(ctx context.Context, input *struct {
		IDPath
		Body UpdatePriorityRequest
	}) (*result[domain.Priority], error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := m.UpdatePriority(ctx, ident, input.ID, manager.PriorityPatch{
			Name:  input.Body.Name,
			Color: input.Body.Color,
			Order: input.Body.Order,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return ok(p), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-priority",
		Method:      http.MethodDelete,
		Path:        "/priorities/{id}",
		Summary:     "Delete priority",
	}, func(ctx context.Context, input *IDPath) (*result[struct{}], error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := m.DeletePriority(ctx, ident, input.ID); err != nil {
			return nil, handleError(err)
		}
		return ok(struct{}{}), nil
	})
}

func registerNotifications(api huma.API, m *manager.Manager) {
	huma.Register(api, huma.Operation{
		OperationID: "list-notifications",
		Method:      http.MethodGet,
		Path:        "/notifications",
		Summary:     "List own notifications",
	}, func(ctx context.Context, _ *struct{}) (*result[[]domain.Notification], error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ns, err := m.ListNotifications(ctx, ident)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(ns), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "unread-notifications",
		Method:      http.MethodGet,
		Path:        "/notifications/unread",
		Summary:     "Unread notification count",
	}, func(ctx context.Context, _ *struct{}) (*result[map[string]int], error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		n, err := m.UnreadNotifications(ctx, ident)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(map[string]int{"unread": n}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "read-notification",
		Method:      http.MethodPost,
		Path:        "/notifications/{id}/read",
		Summary:     "Mark notification read",
	}, func(ctx context.Context, input *IDPath) (*result[struct{}], error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := m.MarkNotificationRead(ctx, ident, input.ID); err != nil {
			return nil, handleError(err)
		}
		return ok(struct{}{}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "read-all-notifications",
		Method:      http.MethodPost,
		Path:        "/notifications/read_all",
		Summary:     "Mark all notifications read",
	}, func(ctx context.Context, _ *struct{}) (*result[struct{}], error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := m.MarkAllNotificationsRead(ctx, ident); err != nil {
			return nil, handleError(err)
		}
		return ok(struct{}{}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-notification",
		Method:      http.MethodDelete,
		Path:        "/notifications/{id}",
		Summary:     "Delete notification",
	}, func(ctx context.Context, input *IDPath) (*result[struct{}], error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := m.DeleteNotification(ctx, ident, input.ID); err != nil {
			return nil, handleError(err)
		}
		return ok(struct{}{}), nil
	})
}

func registerAPIKeys(api huma.API, m *manager.Manager) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-apikey",
		Method:        http.MethodPost,
		Path:          "/apikeys",
		Summary:       "Create API key",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body CreateAPIKeyRequest
	}) (*result[APIKeyCreated], error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		key, plaintext, err := m.CreateAPIKey(ctx, ident, input.Body.Name)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(APIKeyCreated{ID: key.ID, Name: key.Name, Key: plaintext, CreatedAt: key.CreatedAt}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-apikeys",
		Method:      http.MethodGet,
		Path:        "/apikeys",
		Summary:     "List own API keys",
	}, func(ctx context.Context, _ *struct{}) (*result[[]domain.APIKey], error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		keys, err := m.ListAPIKeys(ctx, ident)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(keys), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-apikey",
		Method:      http.MethodDelete,
		Path:        "/apikeys/{id}",
		Summary:     "Revoke API key",
	}, func(ctx context.Context, input *IDPath) (*result[struct{}], error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := m.DeleteAPIKey(ctx, ident, input.ID); err != nil {
			return nil, handleError(err)
		}
		return ok(struct{}{}), nil
	})
}

func registerEvents(api huma.API, m *manager.Manager) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Audit trail",
	}, func(ctx context.Context, input *struct {
		After int64 `query:"after"`
		Limit int   `query:"limit"`
	}) (*result[[]domain.Event], error) {
		ident, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if !policy.CanPerform(ident, policy.ActionView, policy.KindEvent) {
			return nil, handleError(policy.Deny(ident, policy.ActionView, policy.KindEvent))
		}
		events, err := m.Events.ListSince(ctx, input.After, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(events), nil
	})
}

// registerWatch wires the recompute-on-change feeds as newline-delimited
// JSON streams. Each write is a full snapshot of what the caller may see.
func registerWatch(router chi.Router, basePath string, m *manager.Manager, log *logrus.Logger) {
	stream := func(w http.ResponseWriter, req *http.Request, run func(ctx context.Context, emit func(v any)) error) {
		flusher, canFlush := w.(http.Flusher)
		if !canFlush {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.WriteHeader(http.StatusOK)
		enc := json.NewEncoder(w)
		err := run(req.Context(), func(v any) {
			if err := enc.Encode(v); err != nil {
				return
			}
			flusher.Flush()
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Debug("watch stream closed")
		}
	}

	router.Get(basePath+"/watch/tasks", func(w http.ResponseWriter, req *http.Request) {
		ident, authErr := identityFromContext(req.Context())
		if authErr != nil {
			respondStatusError(w, authErr)
			return
		}
		q := req.URL.Query()
		filters := visibility.TaskFilters{
			Status:     q.Get("status"),
			PriorityID: q.Get("priority_id"),
			ProjectID:  q.Get("project_id"),
			AssigneeID: q.Get("assignee_id"),
			Search:     q.Get("q"),
		}
		stream(w, req, func(ctx context.Context, emit func(v any)) error {
			return m.WatchTasks(ctx, ident, filters, func(tasks []domain.Task) { emit(tasks) })
		})
	})

	router.Get(basePath+"/watch/projects", func(w http.ResponseWriter, req *http.Request) {
		ident, authErr := identityFromContext(req.Context())
		if authErr != nil {
			respondStatusError(w, authErr)
			return
		}
		q := req.URL.Query()
		filters := visibility.ProjectFilters{
			Status:   q.Get("status"),
			ClientID: q.Get("client_id"),
			Search:   q.Get("q"),
		}
		stream(w, req, func(ctx context.Context, emit func(v any)) error {
			return m.WatchProjects(ctx, ident, filters, func(projects []domain.Project) { emit(projects) })
		})
	})

	router.Get(basePath+"/watch/notifications", func(w http.ResponseWriter, req *http.Request) {
		ident, authErr := identityFromContext(req.Context())
		if authErr != nil {
			respondStatusError(w, authErr)
			return
		}
		stream(w, req, func(ctx context.Context, emit func(v any)) error {
			return m.WatchNotifications(ctx, ident, func(ns []domain.Notification) { emit(ns) })
		})
	})
}
