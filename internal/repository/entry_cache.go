package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/iliyamo/sourcetrak/internal/model"
)

// EntryCache keeps the view models a user submitted from this installation.
// It is the local fallback for the dashboard when the backend is
// unreachable and is never treated as authoritative.
type EntryCache struct{ DB *sql.DB }

func NewEntryCache(db *sql.DB) *EntryCache { return &EntryCache{DB: db} }

// Save stores vm for userID, replacing an earlier copy of the same entry.
func (c *EntryCache) Save(ctx context.Context, userID string, vm model.ViewModel) error {
	payload, err := json.Marshal(vm)
	if err != nil {
		return err
	}
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, "DELETE FROM farm_entries WHERE entry_id=?", vm.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO farm_entries (entry_id, user_id, batch_id, payload, created_at) VALUES (?,?,?,?,?)",
		vm.ID, userID, vm.BatchID, string(payload), time.Now().UTC().Format(timeLayout)); err != nil {
		return err
	}
	return tx.Commit()
}

// List returns userID's cached entries, newest first.  Rows that no longer
// decode are skipped.
func (c *EntryCache) List(ctx context.Context, userID string) ([]model.ViewModel, error) {
	rows, err := c.DB.QueryContext(ctx,
		"SELECT entry_id, payload FROM farm_entries WHERE user_id=? ORDER BY created_at DESC, entry_id DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ViewModel
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		var vm model.ViewModel
		if err := json.Unmarshal([]byte(payload), &vm); err != nil {
			continue
		}
		out = append(out, vm)
	}
	return out, rows.Err()
}

// Clear drops every cached entry of userID.
func (c *EntryCache) Clear(ctx context.Context, userID string) error {
	if _, err := c.DB.ExecContext(ctx, "DELETE FROM farm_entries WHERE user_id=?", userID); err != nil {
		return fmt.Errorf("clear entry cache: %w", err)
	}
	return nil
}
