package repositories

import (
	"context"
	"errors"

	"ninex/internal/airtable"
	"ninex/internal/models"
	"ninex/internal/query"
)

// SettingsRepository reads and writes rows of the Key/Value settings table.
type SettingsRepository interface {
	Get(ctx context.Context, key string) (*models.Setting, error)
	Put(ctx context.Context, key, value string) error
}

type settingsRepository struct {
	store RecordStore
}

func NewSettingsRepository(store RecordStore) SettingsRepository {
	return &settingsRepository{store: store}
}

func (r *settingsRepository) Get(ctx context.Context, key string) (*models.Setting, error) {
	res, err := r.store.List(ctx, airtable.ListParams{
		Filter:   keyFormula(key),
		PageSize: 1,
	})
	if err != nil {
		return nil, err
	}
	if len(res.Records) == 0 {
		return nil, ErrNotFound
	}
	var f struct {
		Key   string     `json:"Key"`
		Value flexString `json:"Value"`
	}
	if err := res.Records[0].Decode(&f); err != nil {
		return nil, err
	}
	return &models.Setting{ID: res.Records[0].ID, Key: f.Key, Value: string(f.Value)}, nil
}

// Put updates the row for key, creating it on first write.
func (r *settingsRepository) Put(ctx context.Context, key, value string) error {
	cur, err := r.Get(ctx, key)
	switch {
	case err == nil:
		return r.store.Update(ctx, []airtable.RecordPatch{{ID: cur.ID, Fields: airtable.Fields{"Value": value}}})
	case errors.Is(err, ErrNotFound):
		_, err = r.store.Create(ctx, airtable.Fields{"Key": key, "Value": value})
		return err
	default:
		return err
	}
}

func keyFormula(key string) string {
	return "{Key}='" + query.Escape(key) + "'"
}
