package manager

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"

	"taskmaster/internal/domain"
	"taskmaster/internal/events"
	"taskmaster/internal/repo"
)

// CreateAPIKey mints a key bound to the identity. The plaintext is returned
// exactly once; only its hash is stored.
func (m *Manager) CreateAPIKey(ctx context.Context, ident domain.Identity, name string) (domain.APIKey, string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return domain.APIKey{}, "", fmt.Errorf("generate key: %w", err)
	}
	plaintext := "tmk_" + hex.EncodeToString(buf)
	key := domain.APIKey{
		ID:        uuid.NewString(),
		UserID:    ident.UserID,
		Name:      name,
		KeyHash:   repo.HashAPIKey(plaintext),
		CreatedAt: m.nowRFC3339(),
	}
	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.APIKey{}, "", err
	}
	defer tx.Rollback()
	if err := m.Repo.InsertAPIKey(ctx, tx, key); err != nil {
		return domain.APIKey{}, "", fmt.Errorf("insert api key: %w", err)
	}
	if err := m.Events.Append(ctx, tx, "apikey.created", "apikey", key.ID, ident.UserID, events.EventPayload{"name": name}); err != nil {
		return domain.APIKey{}, "", err
	}
	if err := tx.Commit(); err != nil {
		return domain.APIKey{}, "", err
	}
	return key, plaintext, nil
}

func (m *Manager) ListAPIKeys(ctx context.Context, ident domain.Identity) ([]domain.APIKey, error) {
	return m.Repo.ListAPIKeys(ctx, ident.UserID)
}

// DeleteAPIKey revokes one of the identity's own keys.
func (m *Manager) DeleteAPIKey(ctx context.Context, ident domain.Identity, id string) error {
	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := m.Repo.DeleteAPIKey(ctx, tx, id, ident.UserID); err != nil {
		return err
	}
	if err := m.Events.Append(ctx, tx, "apikey.deleted", "apikey", id, ident.UserID, nil); err != nil {
		return err
	}
	return tx.Commit()
}
