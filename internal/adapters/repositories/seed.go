package repositories

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

type TenantSeed struct {
	ID                  int64  `json:"id"`
	Name                string `json:"name"`
	Active              bool   `json:"active"`
	APIToken            string `json:"api_token"`
	SyncIntervalMinutes int    `json:"sync_interval_minutes"`
}

// Populate the tenants table from a JSON file. Existing tenants are
// updated in place, so the seed can be re-run after token rotation.
func SeedTenantsFromJSON(store *SQLStore, jsonPath string) error {
	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return fmt.Errorf("seed tenants: read %q: %w", jsonPath, err)
	}

	var data []TenantSeed
	if err := json.Unmarshal(bytes, &data); err != nil {
		return fmt.Errorf("seed tenants: parse json: %w", err)
	}

	rows := make([]TenantSeed, 0, len(data))
	for i, item := range data {
		if item.ID <= 0 {
			return fmt.Errorf("seed tenants: invalid id at index %d: %d", i+1, item.ID)
		}
		name := strings.TrimSpace(item.Name)
		if name == "" {
			return fmt.Errorf("seed tenants: item at index %d: name cannot be empty", i+1)
		}
		if item.SyncIntervalMinutes <= 0 {
			item.SyncIntervalMinutes = 60
		}
		item.Name = name
		rows = append(rows, item)
	}

	tx, err := store.DB.Begin()
	if err != nil {
		return fmt.Errorf("seed tenants: begin tx: %w", err)
	}
	defer tx.Rollback()

	query := store.bind(`
	INSERT INTO tenants (
		id,
		name,
		active,
		api_token,
		sync_interval_minutes,
		created_at
	)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		name = excluded.name,
		active = excluded.active,
		api_token = excluded.api_token,
		sync_interval_minutes = excluded.sync_interval_minutes;
	`)
	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("seed tenants: prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, t := range rows {
		active := 0
		if t.Active {
			active = 1
		}
		if _, err := stmt.Exec(t.ID, t.Name, active, t.APIToken, t.SyncIntervalMinutes, now); err != nil {
			return fmt.Errorf("seed tenants: insert tenant id=%d: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed tenants: commit tx: %w", err)
	}

	return nil
}
