// Package app wires a fresh workspace into a usable state: open the
// database, run migrations, and seed the records every deployment needs.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"taskmaster/internal/config"
	"taskmaster/internal/db"
	"taskmaster/internal/domain"
	"taskmaster/internal/migrate"
	"taskmaster/internal/repo"
)

// Open prepares the workspace database, migrated and ready for managers.
func Open(workspace string) (*sql.DB, error) {
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return conn, nil
}

// Seed makes sure the bootstrap admin and the default priority ladder exist.
// Running it twice is harmless.
func Seed(ctx context.Context, conn *sql.DB, cfg *config.Config) error {
	r := &repo.Repo{DB: conn}
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := r.GetProfileByEmail(ctx, cfg.Seed.AdminEmail)
	if errors.Is(err, repo.ErrNotFound) {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()
		admin := domain.UserProfile{
			ID:        uuid.NewString(),
			Name:      cfg.Seed.AdminName,
			Email:     cfg.Seed.AdminEmail,
			Role:      domain.RoleAdmin,
			CreatedAt: now,
		}
		if err := r.InsertProfile(ctx, tx, admin); err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	n, err := r.CountPriorities(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	ladder := []domain.Priority{
		{ID: uuid.NewString(), Name: "high", Color: "#EF4444", Order: 1, CreatedAt: now},
		{ID: uuid.NewString(), Name: "medium", Color: "#F59E0B", Order: 2, CreatedAt: now},
		{ID: uuid.NewString(), Name: "low", Color: "#10B981", Order: 3, CreatedAt: now},
	}
	for _, p := range ladder {
		if err := r.InsertPriority(ctx, tx, p); err != nil {
			return fmt.Errorf("seed priority %s: %w", p.Name, err)
		}
	}
	return tx.Commit()
}
