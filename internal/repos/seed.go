package repos

import (
	"context"

	"github.com/jmoiron/sqlx"

	applog "backoffice/internal/log"
)

// SeedDemo inserts the demo catalog when no products exist. Safe to run on
// every start.
func SeedDemo(ctx context.Context, db *sqlx.DB) error {
	var n int
	if err := db.GetContext(ctx, &n, `SELECT COUNT(*) FROM products`); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	applog.L().Info("seed.catalog")

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT INTO products(id,name,description,display_order) VALUES
	  ('prod-tshirt','T-Shirt','Comfortable cotton t-shirt',0),
	  ('prod-jeans','Jeans','Classic denim jeans',1),
	  ('prod-sneakers','Sneakers','Sporty sneakers for everyday wear',2)`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO variants(id,product_id,name,price_cents) VALUES
	  ('var-tshirt-sw','prod-tshirt','Small White',1999),
	  ('var-tshirt-mb','prod-tshirt','Medium Black',1999),
	  ('var-jeans-3232','prod-jeans','32x32 Blue',4999),
	  ('var-sneakers-9r','prod-sneakers','Size 9 Red',7999)`); err != nil {
		return err
	}
	return tx.Commit()
}
