package repos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"backoffice/internal/domain"
)

type ProductRepo struct{ db *sqlx.DB }

func NewProductRepo(db *sqlx.DB) *ProductRepo { return &ProductRepo{db: db} }

type productRow struct {
	ID          string `db:"id"`
	Name        string `db:"name"`
	Description string `db:"description"`
	Order       int    `db:"display_order"`
}

type variantRow struct {
	ID         string `db:"id"`
	ProductID  string `db:"product_id"`
	Name       string `db:"name"`
	PriceCents int64  `db:"price_cents"`
}

func (r variantRow) toDomain() domain.Variant {
	return domain.Variant{ID: r.ID, ProductID: r.ProductID, Name: r.Name, PriceCents: r.PriceCents}
}

// CreateProduct appends a product; its display order is the catalog size at
// insert time.
func (r *ProductRepo) CreateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products(id, name, description, display_order)
		SELECT ?, ?, ?, COUNT(*) FROM products
	`, p.ID, p.Name, p.Description)
	if isUniqueViolation(err) {
		return domain.Product{}, domain.Conflict("product %q already exists", p.ID)
	}
	if err != nil {
		return domain.Product{}, err
	}
	return r.GetProduct(ctx, p.ID)
}

// UpdateProduct replaces name, description and display order.
func (r *ProductRepo) UpdateProduct(ctx context.Context, p domain.Product) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE products SET name = ?, description = ?, display_order = ? WHERE id = ?
	`, p.Name, p.Description, p.Order, p.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NotFound("product", p.ID)
	}
	return nil
}

func (r *ProductRepo) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	var row productRow
	err := r.db.GetContext(ctx, &row, `SELECT id, name, description, display_order FROM products WHERE id = ?`, id)
	if isNoRows(err) {
		return domain.Product{}, domain.NotFound("product", id)
	}
	if err != nil {
		return domain.Product{}, err
	}
	var vs []variantRow
	if err := r.db.SelectContext(ctx, &vs, `
		SELECT id, product_id, name, price_cents FROM variants WHERE product_id = ? ORDER BY seq
	`, id); err != nil {
		return domain.Product{}, err
	}
	p := domain.Product{ID: row.ID, Name: row.Name, Description: row.Description, Order: row.Order}
	p.Variants = make([]domain.Variant, 0, len(vs))
	for _, v := range vs {
		p.Variants = append(p.Variants, v.toDomain())
	}
	return p, nil
}

// ListProducts returns products by display order, ties by id, with variants.
func (r *ProductRepo) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var rows []productRow
	if err := r.db.SelectContext(ctx, &rows, `
		SELECT id, name, description, display_order FROM products ORDER BY display_order, id
	`); err != nil {
		return nil, err
	}
	var vs []variantRow
	if err := r.db.SelectContext(ctx, &vs, `
		SELECT id, product_id, name, price_cents FROM variants ORDER BY seq
	`); err != nil {
		return nil, err
	}
	byProduct := map[string][]domain.Variant{}
	for _, v := range vs {
		byProduct[v.ProductID] = append(byProduct[v.ProductID], v.toDomain())
	}
	out := make([]domain.Product, 0, len(rows))
	for _, row := range rows {
		variants := byProduct[row.ID]
		if variants == nil {
			variants = []domain.Variant{}
		}
		out = append(out, domain.Product{
			ID: row.ID, Name: row.Name, Description: row.Description, Order: row.Order, Variants: variants,
		})
	}
	return out, nil
}

func (r *ProductRepo) CreateVariant(ctx context.Context, v domain.Variant) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO variants(id, product_id, name, price_cents) VALUES (?, ?, ?, ?)
	`, v.ID, v.ProductID, v.Name, v.PriceCents)
	switch {
	case isForeignKeyViolation(err):
		return domain.NotFound("product", v.ProductID)
	case isUniqueViolation(err):
		return domain.Conflict("variant %q already exists", v.ID)
	}
	return err
}

// UpdateVariant replaces name and price. Id and product are fixed.
func (r *ProductRepo) UpdateVariant(ctx context.Context, id, name string, priceCents int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE variants SET name = ?, price_cents = ? WHERE id = ?`, name, priceCents, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NotFound("variant", id)
	}
	return nil
}

func (r *ProductRepo) GetVariant(ctx context.Context, id string) (domain.Variant, error) {
	var row variantRow
	err := r.db.GetContext(ctx, &row, `SELECT id, product_id, name, price_cents FROM variants WHERE id = ?`, id)
	if isNoRows(err) {
		return domain.Variant{}, domain.NotFound("variant", id)
	}
	if err != nil {
		return domain.Variant{}, err
	}
	return row.toDomain(), nil
}
