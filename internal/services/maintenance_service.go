package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"ninex/internal/authz"
	"ninex/internal/models"
	"ninex/internal/repositories"
)

type MaintenanceService interface {
	State(ctx context.Context) (string, error)
	SetState(ctx context.Context, actor models.Actor, state string) (*BatchResult, error)
}

type maintenanceService struct {
	settings repositories.SettingsRepository // nil: таблицы настроек нет
	accounts repositories.AccountRepository
	bulk     BulkService
}

func NewMaintenanceService(settings repositories.SettingsRepository, accounts repositories.AccountRepository, bulk BulkService) MaintenanceService {
	return &maintenanceService{settings: settings, accounts: accounts, bulk: bulk}
}

// State reads the singleton setting. Without a settings table it falls back to the
// Version of whatever record the store returns first.
func (s *maintenanceService) State(ctx context.Context) (string, error) {
	if s.settings != nil {
		setting, err := s.settings.Get(ctx, models.SettingMaintenance)
		switch {
		case err == nil:
			return normalizeVersion(setting.Value), nil
		case errors.Is(err, repositories.ErrNotFound):
			return models.VersionOnline, nil
		default:
			return "", err
		}
	}

	first, err := s.accounts.First(ctx)
	if errors.Is(err, repositories.ErrNotFound) {
		return models.VersionOnline, nil
	}
	if err != nil {
		return "", err
	}
	return normalizeVersion(first.Version), nil
}

func (s *maintenanceService) SetState(ctx context.Context, actor models.Actor, state string) (*BatchResult, error) {
	if !authz.IsPrivileged(actor.Role) {
		return nil, ErrForbidden
	}
	if state != models.VersionOnline && state != models.VersionMaintenance {
		return nil, fmt.Errorf("%w: state must be %q or %q", ErrValidation, models.VersionOnline, models.VersionMaintenance)
	}
	if s.settings != nil {
		if err := s.settings.Put(ctx, models.SettingMaintenance, state); err != nil {
			return nil, fmt.Errorf("write maintenance setting: %w", err)
		}
	}
	log.Printf("[maintenance][set] actor=%s state=%s", actor.Username, state)
	return s.bulk.BroadcastVersion(ctx, actor, state)
}

func normalizeVersion(v string) string {
	if v == models.VersionMaintenance {
		return models.VersionMaintenance
	}
	return models.VersionOnline
}
