package usecases

import (
	"context"
	"log/slog"
	"strings"

	apperrors "github.com/sand/digiseba/backend/internal/core/errors"
	"github.com/sand/digiseba/backend/internal/core/ports"
	"github.com/sand/digiseba/backend/internal/entities"
)

type SettingsService struct {
	logger *slog.Logger
	repo   ports.SettingsRepository
}

func NewSettingsService(logger *slog.Logger, repo ports.SettingsRepository) *SettingsService {
	return &SettingsService{logger: logger, repo: repo}
}

// Get returns the stored settings, or the defaults before the first save.
func (s *SettingsService) Get(ctx context.Context) (*entities.Settings, error) {
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		defaults := entities.DefaultSettings()
		return &defaults, nil
	}
	if settings.PaymentMethods == nil {
		settings.PaymentMethods = []entities.PaymentMethod{}
	}
	return settings, nil
}

func (s *SettingsService) Update(ctx context.Context, settings *entities.Settings) (*entities.Settings, error) {
	for i := range settings.PaymentMethods {
		pm := &settings.PaymentMethods[i]
		pm.Name = strings.TrimSpace(pm.Name)
		pm.Number = strings.TrimSpace(pm.Number)
		if provider, ok := entities.ParsePaymentProvider(string(pm.Type)); ok {
			pm.Type = provider
		}
	}
	if settings.PaymentMethods == nil {
		settings.PaymentMethods = []entities.PaymentMethod{}
	}

	if err := settings.Validate(); err != nil {
		return nil, apperrors.BadRequest(apperrors.WithError(err))
	}

	if err := s.repo.SaveSettings(ctx, settings); err != nil {
		return nil, err
	}

	s.logger.Info("Settings updated", "payment_methods", len(settings.PaymentMethods))
	return settings, nil
}
