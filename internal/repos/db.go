package repos

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
)

// casefold lowers text with Unicode case mapping. SQLite's built-in LOWER
// only folds ASCII.
func init() {
	sqlite.MustRegisterDeterministicScalarFunction("casefold", 1,
		func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			switch v := args[0].(type) {
			case string:
				return strings.ToLower(v), nil
			case []byte:
				return strings.ToLower(string(v)), nil
			default:
				return v, nil
			}
		})
}

// OpenDB opens the SQLite database and applies the schema. SQLite serialises
// writers anyway, so the pool is pinned to one connection; this also keeps
// ":memory:" databases alive across calls.
func OpenDB(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		return nil, err
	}
	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	return db, nil
}

func ensureSchema(db *sqlx.DB) error {
	schema := `
PRAGMA foreign_keys = ON;

-- Inventory catalog
CREATE TABLE IF NOT EXISTS inventory_items(
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  id TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT ''
);

-- Inventory ledger (append-only)
CREATE TABLE IF NOT EXISTS inventory_records(
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  id TEXT NOT NULL UNIQUE,
  inventory_item_id TEXT NOT NULL REFERENCES inventory_items(id) ON DELETE RESTRICT,
  quantity INTEGER NOT NULL,
  notes TEXT,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_inventory_records_item ON inventory_records(inventory_item_id, created_at);
CREATE TRIGGER IF NOT EXISTS inventory_records_no_update BEFORE UPDATE ON inventory_records
BEGIN
  SELECT RAISE(ABORT, 'inventory records are append-only');
END;
CREATE TRIGGER IF NOT EXISTS inventory_records_no_delete BEFORE DELETE ON inventory_records
BEGIN
  SELECT RAISE(ABORT, 'inventory records are append-only');
END;

-- Products
CREATE TABLE IF NOT EXISTS products(
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  id TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  display_order INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_products_display_order ON products(display_order, id);

CREATE TABLE IF NOT EXISTS variants(
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  id TEXT NOT NULL UNIQUE,
  product_id TEXT NOT NULL REFERENCES products(id) ON DELETE RESTRICT,
  name TEXT NOT NULL,
  price_cents INTEGER NOT NULL CHECK (price_cents >= 0)
);
CREATE INDEX IF NOT EXISTS idx_variants_product ON variants(product_id);

-- Orders
CREATE TABLE IF NOT EXISTS orders(
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  id TEXT NOT NULL UNIQUE,
  email TEXT NOT NULL,
  ship_name TEXT NOT NULL,
  ship_street1 TEXT NOT NULL,
  ship_street2 TEXT,
  ship_city TEXT NOT NULL,
  ship_province TEXT NOT NULL,
  ship_zip TEXT NOT NULL,
  ship_country TEXT NOT NULL,
  ship_phone TEXT,
  created_at INTEGER NOT NULL,
  printed_at INTEGER,
  label_url TEXT,
  tracking_url TEXT
);
CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at, seq);
CREATE INDEX IF NOT EXISTS idx_orders_unprinted ON orders(printed_at, label_url);
CREATE TRIGGER IF NOT EXISTS orders_printed_at_immutable BEFORE UPDATE OF printed_at ON orders
WHEN OLD.printed_at IS NOT NULL AND (NEW.printed_at IS NULL OR NEW.printed_at != OLD.printed_at)
BEGIN
  SELECT RAISE(ABORT, 'printed_at is immutable');
END;

CREATE TABLE IF NOT EXISTS order_items(
  order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  position INTEGER NOT NULL,
  product_name TEXT NOT NULL,
  variant_name TEXT NOT NULL,
  quantity INTEGER NOT NULL CHECK (quantity > 0),
  unit_amount_cents INTEGER NOT NULL CHECK (unit_amount_cents >= 0),
  PRIMARY KEY (order_id, position)
);

-- Print jobs
CREATE TABLE IF NOT EXISTS print_jobs(
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  id TEXT NOT NULL UNIQUE,
  status TEXT NOT NULL CHECK (status IN ('PENDING','CONFIRMED','CANCELLED')),
  labels_json TEXT NOT NULL DEFAULT '[]',
  created_at INTEGER NOT NULL,
  resolved_at INTEGER,
  printed INTEGER NOT NULL DEFAULT 0,
  skipped INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS print_job_orders(
  job_id TEXT NOT NULL REFERENCES print_jobs(id) ON DELETE CASCADE,
  position INTEGER NOT NULL,
  order_id TEXT NOT NULL REFERENCES orders(id),
  PRIMARY KEY (job_id, position)
);
`
	_, err := db.Exec(schema)
	return err
}

// Timestamps are stored as UTC unix nanoseconds so they sort numerically.
func toNanos(t time.Time) int64 { return t.UTC().UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

func nullTime(n sql.NullInt64) sql.Null[time.Time] {
	if !n.Valid {
		return sql.Null[time.Time]{}
	}
	return sql.Null[time.Time]{V: fromNanos(n.Int64), Valid: true}
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

func isNoRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }

// exists reports whether a row with the given id is present in table.
func exists(ctx context.Context, q sqlx.QueryerContext, table, id string) (bool, error) {
	var n int
	if err := sqlx.GetContext(ctx, q, &n, `SELECT COUNT(*) FROM `+table+` WHERE id = ?`, id); err != nil {
		return false, err
	}
	return n > 0, nil
}
