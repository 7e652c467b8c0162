// Package manager holds the side-effecting operations. Every mutation runs
// the same pipeline: validate the input, ask policy, write inside one
// transaction with its audit event, then ping watchers. Reads go through the
// visibility filter so a caller never sees more than their role allows.
package manager

import (
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"

	"taskmaster/internal/events"
	"taskmaster/internal/repo"
	"taskmaster/internal/watch"
)

type Manager struct {
	DB       *sql.DB
	Repo     *repo.Repo
	Events   events.Writer
	Hub      *watch.Hub
	Validate *validator.Validate
	Now      func() time.Time
}

func New(db *sql.DB) *Manager {
	return &Manager{
		DB:       db,
		Repo:     &repo.Repo{DB: db},
		Events:   events.Writer{DB: db},
		Hub:      watch.NewHub(),
		Validate: validator.New(),
		Now:      time.Now,
	}
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *Manager) nowRFC3339() string {
	return m.now().UTC().Format(time.RFC3339)
}

// ValidationError reports malformed input, before any policy decision.
type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string { return e.Msg }

func (m *Manager) checkInput(v any) error {
	if err := m.Validate.Struct(v); err != nil {
		return ValidationError{Msg: err.Error()}
	}
	return nil
}
