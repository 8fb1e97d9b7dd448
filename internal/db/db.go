package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

// Sentinel errors mapped to HTTP categories by the handlers.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
)

// queryTimeout bounds every store operation independently of the caller.
const queryTimeout = 10 * time.Second

// DB wraps the shared connection pool. One instance is constructed at
// startup and injected into the handlers.
type DB struct {
	conn *sql.DB

	// StrictTransitions rejects batch-item status regressions when set.
	// Off by default: the back-office relies on free re-statusing for
	// manual corrections.
	StrictTransitions bool
}

// New opens the store. libsql:// URLs go to Turso with the given auth
// token; anything else is treated as a local sqlite file path.
func New(dataSource, authToken string) (*DB, error) {
	var (
		conn *sql.DB
		err  error
	)
	if strings.HasPrefix(dataSource, "libsql://") {
		conn, err = sql.Open("libsql", dataSource+"?authToken="+authToken)
	} else {
		conn, err = sql.Open("sqlite3", dataSource)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

// Close drains the pool on shutdown.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, queryTimeout)
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS campaigns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		description TEXT DEFAULT '',
		goal_amount REAL NOT NULL,
		total_raised REAL NOT NULL DEFAULT 0,
		donor_count INTEGER NOT NULL DEFAULT 0,
		progress_percentage INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'active',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS campaign_products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		campaign_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		price REAL NOT NULL,
		stock_count INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY(campaign_id) REFERENCES campaigns(id)
	);

	CREATE TABLE IF NOT EXISTS donations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		campaign_id INTEGER NOT NULL,
		receipt_number TEXT NOT NULL,
		donor_name TEXT NOT NULL,
		donor_email TEXT DEFAULT '',
		donor_phone TEXT DEFAULT '',
		amount REAL NOT NULL,
		source TEXT NOT NULL DEFAULT 'online',
		donation_date DATETIME DEFAULT CURRENT_TIMESTAMP,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(campaign_id) REFERENCES campaigns(id)
	);

	CREATE TABLE IF NOT EXISTS donation_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		donation_id INTEGER NOT NULL,
		product_id INTEGER NOT NULL,
		quantity INTEGER NOT NULL,
		total_price REAL NOT NULL,
		fulfillment_status TEXT NOT NULL DEFAULT 'pending',
		FOREIGN KEY(donation_id) REFERENCES donations(id),
		FOREIGN KEY(product_id) REFERENCES campaign_products(id)
	);

	CREATE TABLE IF NOT EXISTS distribution_batches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		campaign_id INTEGER NOT NULL,
		product_id INTEGER NOT NULL,
		batch_name TEXT NOT NULL,
		description TEXT DEFAULT '',
		planned_distribution_date TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'planning',
		total_items INTEGER NOT NULL DEFAULT 0,
		total_value REAL NOT NULL DEFAULT 0,
		progress_percentage INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(campaign_id) REFERENCES campaigns(id),
		FOREIGN KEY(product_id) REFERENCES campaign_products(id)
	);

	CREATE TABLE IF NOT EXISTS batch_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		batch_id INTEGER NOT NULL,
		donation_item_id INTEGER NOT NULL UNIQUE,
		quantity INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'allocated',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(batch_id) REFERENCES distribution_batches(id),
		FOREIGN KEY(donation_item_id) REFERENCES donation_items(id)
	);

	CREATE TABLE IF NOT EXISTS donation_payment_requests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		donation_id INTEGER,
		gateway_order_id TEXT NOT NULL UNIQUE,
		gateway_payment_id TEXT DEFAULT '',
		amount REAL NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'created',
		payment_response TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(donation_id) REFERENCES donations(id)
	);

	CREATE TABLE IF NOT EXISTS payment_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		gateway_order_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		payload TEXT NOT NULL,
		signature_valid BOOLEAN NOT NULL DEFAULT 0,
		received_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_donation_items_status
		ON donation_items(product_id, fulfillment_status);
	CREATE INDEX IF NOT EXISTS idx_payment_events_order
		ON payment_events(gateway_order_id);
	`

	if _, err := db.conn.Exec(schema); err != nil {
		return err
	}
	return nil
}
