package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	tx "github.com/Thiht/transactor/pgx"
	"github.com/jackc/pgx/v5"

	"github.com/sand/digiseba/backend/internal/entities"
	"github.com/sand/digiseba/backend/pkg/database"
)

// SettingsRepository keeps the global settings as one JSONB row.
type SettingsRepository struct {
	logger *slog.Logger
	db     tx.DBGetter
}

func NewSettingsRepository(logger *slog.Logger, pg *database.Postgres) *SettingsRepository {
	return &SettingsRepository{logger: logger, db: pg.DBGetter}
}

func (r *SettingsRepository) GetSettings(ctx context.Context) (*entities.Settings, error) {
	var raw []byte
	err := r.db(ctx).QueryRow(ctx, "SELECT data FROM settings WHERE id = 1").Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}

	var settings entities.Settings
	if err = json.Unmarshal(raw, &settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	return &settings, nil
}

func (r *SettingsRepository) SaveSettings(ctx context.Context, settings *entities.Settings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	_, err = r.db(ctx).Exec(ctx, `
		INSERT INTO settings (id, data, updated_at) VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`, raw)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}
