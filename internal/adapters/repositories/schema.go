package repositories

import (
	"database/sql"
	"errors"
	"fmt"
)

// surrogateKey returns the DDL for an auto-assigned integer primary
// key. Sqlite's INTEGER PRIMARY KEY is a rowid alias and assigns
// itself; postgres needs an explicit identity or every insert that
// omits the id fails a not-null check.
func surrogateKey(driver string) string {
	if driver == "pgx" || driver == "postgres" {
		return "BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY"
	}
	return "INTEGER PRIMARY KEY"
}

// schemaStatements builds the DDL for the given driver. Tables whose
// ids come from upstream or from seeds (tenants, inventory_mappings,
// sync_checkpoints) keep plain keys; everything else gets a
// driver-appropriate surrogate key.
func schemaStatements(driver string) []string {
	id := surrogateKey(driver)

	return []string{
		`CREATE TABLE IF NOT EXISTS tenants (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			active INTEGER NOT NULL DEFAULT 1,
			api_token TEXT NOT NULL DEFAULT '',
			sync_interval_minutes INTEGER NOT NULL DEFAULT 60,
			created_at TIMESTAMP NOT NULL
		);`,

		`CREATE TABLE IF NOT EXISTS orders (
			id ` + id + `,
			tenant_id INTEGER NOT NULL,
			upstream_id TEXT NOT NULL,
			reference_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT '',
			order_type TEXT NOT NULL DEFAULT '',
			channel TEXT NOT NULL DEFAULT '',
			purchase_date TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			deleted_at TIMESTAMP,
			last_verified_at TIMESTAMP,
			UNIQUE (tenant_id, upstream_id)
		);`,

		`CREATE TABLE IF NOT EXISTS order_items (
			id ` + id + `,
			order_id INTEGER NOT NULL,
			tenant_id INTEGER NOT NULL,
			product_id INTEGER NOT NULL,
			sku TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL DEFAULT '',
			quantity INTEGER NOT NULL DEFAULT 0,
			unit_price REAL NOT NULL DEFAULT 0,
			UNIQUE (order_id, product_id)
		);`,

		`CREATE TABLE IF NOT EXISTS shipments (
			id ` + id + `,
			tenant_id INTEGER NOT NULL,
			order_id INTEGER NOT NULL,
			upstream_id INTEGER NOT NULL UNIQUE,
			order_upstream_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT '',
			carrier TEXT NOT NULL DEFAULT '',
			tracking_number TEXT NOT NULL DEFAULT '',
			origin_country TEXT NOT NULL DEFAULT '',
			destination_country TEXT NOT NULL DEFAULT '',
			length_in REAL NOT NULL DEFAULT 0,
			width_in REAL NOT NULL DEFAULT 0,
			height_in REAL NOT NULL DEFAULT 0,
			actual_weight_oz REAL NOT NULL DEFAULT 0,
			billable_oz REAL NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			picked_at TIMESTAMP,
			packed_at TIMESTAMP,
			labeled_at TIMESTAMP,
			label_validated_at TIMESTAMP,
			in_transit_at TIMESTAMP,
			out_for_delivery_at TIMESTAMP,
			delivered_at TIMESTAMP,
			delivery_failed_at TIMESTAMP,
			transit_time_days REAL,
			timeline_checked_at TIMESTAMP,
			deleted_at TIMESTAMP,
			last_verified_at TIMESTAMP
		);`,

		`CREATE TABLE IF NOT EXISTS shipment_items (
			id ` + id + `,
			shipment_id INTEGER NOT NULL,
			tenant_id INTEGER NOT NULL,
			product_id INTEGER NOT NULL,
			sku TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL DEFAULT '',
			quantity INTEGER NOT NULL DEFAULT 0,
			UNIQUE (shipment_id, product_id)
		);`,

		`CREATE TABLE IF NOT EXISTS cartons (
			id ` + id + `,
			shipment_id INTEGER NOT NULL,
			tenant_id INTEGER NOT NULL,
			upstream_id TEXT NOT NULL,
			carton_type TEXT NOT NULL DEFAULT '',
			length_in REAL NOT NULL DEFAULT 0,
			width_in REAL NOT NULL DEFAULT 0,
			height_in REAL NOT NULL DEFAULT 0,
			actual_weight_oz REAL NOT NULL DEFAULT 0,
			UNIQUE (shipment_id, upstream_id)
		);`,

		`CREATE TABLE IF NOT EXISTS returns (
			id ` + id + `,
			tenant_id INTEGER NOT NULL,
			upstream_id INTEGER NOT NULL UNIQUE,
			order_id INTEGER,
			status TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			deleted_at TIMESTAMP
		);`,

		`CREATE TABLE IF NOT EXISTS receiving_orders (
			id ` + id + `,
			tenant_id INTEGER NOT NULL,
			upstream_id INTEGER NOT NULL UNIQUE,
			status TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			deleted_at TIMESTAMP
		);`,

		`CREATE TABLE IF NOT EXISTS inventory_mappings (
			inventory_id INTEGER PRIMARY KEY,
			tenant_id INTEGER NOT NULL,
			sku TEXT NOT NULL DEFAULT ''
		);`,

		`CREATE TABLE IF NOT EXISTS transactions (
			id ` + id + `,
			upstream_id TEXT NOT NULL UNIQUE,
			reference_type TEXT NOT NULL DEFAULT '',
			reference_id TEXT NOT NULL DEFAULT '',
			client_id INTEGER,
			fee_type TEXT NOT NULL DEFAULT '',
			amount REAL NOT NULL DEFAULT 0,
			currency TEXT NOT NULL DEFAULT '',
			comment TEXT NOT NULL DEFAULT '',
			tracking_number TEXT NOT NULL DEFAULT '',
			meta_inventory_id TEXT NOT NULL DEFAULT '',
			transacted_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL
		);`,

		`CREATE TABLE IF NOT EXISTS sync_checkpoints (
			tenant_id INTEGER NOT NULL,
			mode INTEGER NOT NULL,
			last_synced_at TIMESTAMP NOT NULL,
			last_verified_at TIMESTAMP,
			timeline_checked_at TIMESTAMP,
			PRIMARY KEY (tenant_id, mode)
		);`,

		`CREATE INDEX IF NOT EXISTS idx_orders_tenant_created
			ON orders(tenant_id, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_shipments_tenant_created
			ON shipments(tenant_id, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_shipments_order
			ON shipments(order_id);`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_unattributed
			ON transactions(reference_type) WHERE client_id IS NULL;`,
	}
}

// Initialize the database schema for the given driver. Safe to run
// repeatedly.
func InitSchema(db *sql.DB, driver string) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, stmt := range schemaStatements(driver) {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}
