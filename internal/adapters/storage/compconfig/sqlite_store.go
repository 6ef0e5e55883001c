package compconfig

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"academy/internal/adapters/storage"
	"academy/internal/domain/compensation"
)

// globalConfigID is the row id of the academy-wide fallback config.
// Per-teacher overrides use "salary_{teacherID}".
const globalConfigID = "salary"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new compensation config store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// storedItem is the JSON shape of a rate policy item inside items_json.
type storedItem struct {
	Name        string  `json:"name"`
	Color       string  `json:"color,omitempty"`
	Type        string  `json:"type"`
	FixedRate   int     `json:"fixedRate,omitempty"`
	BaseTuition int     `json:"baseTuition,omitempty"`
	Ratio       float64 `json:"ratio,omitempty"`
}

// MarshalItems encodes rate policy items for storage.
func MarshalItems(items []compensation.RatePolicyItem) (string, error) {
	out := make([]storedItem, len(items))
	for i, it := range items {
		out[i] = storedItem(it)
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("failed to marshal rate items: %w", err)
	}
	return string(b), nil
}

// UnmarshalItems decodes rate policy items from storage.
func UnmarshalItems(data string) ([]compensation.RatePolicyItem, error) {
	if data == "" {
		return nil, nil
	}
	var stored []storedItem
	if err := json.Unmarshal([]byte(data), &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rate items: %w", err)
	}
	items := make([]compensation.RatePolicyItem, len(stored))
	for i, it := range stored {
		items[i] = compensation.RatePolicyItem(it)
	}
	return items, nil
}

// storedConfig is the JSON shape of a full config (used for frozen
// settlement snapshots).
type storedConfig struct {
	FeePercent          float64      `json:"feePercent"`
	Items               []storedItem `json:"items"`
	BlogBonus           int          `json:"blogBonus,omitempty"`
	RetentionBonus      int          `json:"retentionBonus,omitempty"`
	RetentionTargetRate float64      `json:"retentionTargetRate,omitempty"`
}

// MarshalConfig encodes a whole config as one JSON document.
func MarshalConfig(cfg *compensation.Config) (string, error) {
	if cfg == nil {
		return "", nil
	}
	stored := storedConfig{
		FeePercent:          cfg.FeePercent,
		Items:               make([]storedItem, len(cfg.Items)),
		BlogBonus:           cfg.Incentives.BlogBonus,
		RetentionBonus:      cfg.Incentives.RetentionBonus,
		RetentionTargetRate: cfg.Incentives.RetentionTargetRate,
	}
	for i, it := range cfg.Items {
		stored.Items[i] = storedItem(it)
	}
	b, err := json.Marshal(stored)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	return string(b), nil
}

// UnmarshalConfig decodes a whole config from one JSON document.
// Empty input yields (nil, nil).
func UnmarshalConfig(data string) (*compensation.Config, error) {
	if data == "" {
		return nil, nil
	}
	var stored storedConfig
	if err := json.Unmarshal([]byte(data), &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := &compensation.Config{
		FeePercent: stored.FeePercent,
		Incentives: compensation.Incentives{
			BlogBonus:           stored.BlogBonus,
			RetentionBonus:      stored.RetentionBonus,
			RetentionTargetRate: stored.RetentionTargetRate,
		},
	}
	if stored.Items != nil {
		cfg.Items = make([]compensation.RatePolicyItem, len(stored.Items))
		for i, it := range stored.Items {
			cfg.Items[i] = compensation.RatePolicyItem(it)
		}
	}
	return cfg, nil
}

// GetGlobal retrieves the global fallback config.
// POST: Returns (nil, nil) when no global config has been saved
func (s *SQLiteStore) GetGlobal(ctx context.Context) (*compensation.Config, error) {
	return s.getByID(ctx, globalConfigID)
}

// GetByTeacher retrieves a teacher's config override.
// PRE: teacherID is non-empty
// POST: Returns (nil, nil) when the teacher has no override
func (s *SQLiteStore) GetByTeacher(ctx context.Context, teacherID string) (*compensation.Config, error) {
	return s.getByID(ctx, "salary_"+teacherID)
}

func (s *SQLiteStore) getByID(ctx context.Context, id string) (*compensation.Config, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT fee_percent, items_json, blog_bonus, retention_bonus, retention_target_rate
		FROM compensation_config WHERE id = ?`, id)

	var cfg compensation.Config
	var itemsJSON string
	err := row.Scan(
		&cfg.FeePercent,
		&itemsJSON,
		&cfg.Incentives.BlogBonus,
		&cfg.Incentives.RetentionBonus,
		&cfg.Incentives.RetentionTargetRate,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	cfg.Items, err = UnmarshalItems(itemsJSON)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveGlobal upserts the global fallback config.
// PRE: cfg is non-nil and validated
// POST: Global config persisted
func (s *SQLiteStore) SaveGlobal(ctx context.Context, cfg *compensation.Config) error {
	return s.save(ctx, globalConfigID, nil, cfg)
}

// SaveByTeacher upserts a teacher's config override.
// PRE: teacherID is non-empty, cfg is non-nil and validated
// POST: Teacher config persisted
func (s *SQLiteStore) SaveByTeacher(ctx context.Context, teacherID string, cfg *compensation.Config) error {
	return s.save(ctx, "salary_"+teacherID, teacherID, cfg)
}

func (s *SQLiteStore) save(ctx context.Context, id string, teacherID any, cfg *compensation.Config) error {
	itemsJSON, err := MarshalItems(cfg.Items)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO compensation_config (id, teacher_id, fee_percent, items_json, blog_bonus, retention_bonus, retention_target_rate, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			fee_percent=excluded.fee_percent, items_json=excluded.items_json,
			blog_bonus=excluded.blog_bonus, retention_bonus=excluded.retention_bonus,
			retention_target_rate=excluded.retention_target_rate, updated_at=excluded.updated_at`,
		id, teacherID, cfg.FeePercent, itemsJSON,
		cfg.Incentives.BlogBonus, cfg.Incentives.RetentionBonus, cfg.Incentives.RetentionTargetRate,
		time.Now().UTC().Format(time.RFC3339Nano))
	return err
}
