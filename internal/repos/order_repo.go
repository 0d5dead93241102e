package repos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"backoffice/internal/domain"
)

type OrderRepo struct{ db *sqlx.DB }

func NewOrderRepo(db *sqlx.DB) *OrderRepo { return &OrderRepo{db: db} }

const orderColumns = `id, email, ship_name, ship_street1, ship_street2, ship_city, ship_province,
	ship_zip, ship_country, ship_phone, created_at, printed_at, label_url, tracking_url`

type orderRow struct {
	ID           string           `db:"id"`
	Email        string           `db:"email"`
	ShipName     string           `db:"ship_name"`
	ShipStreet1  string           `db:"ship_street1"`
	ShipStreet2  sql.Null[string] `db:"ship_street2"`
	ShipCity     string           `db:"ship_city"`
	ShipProvince string           `db:"ship_province"`
	ShipZip      string           `db:"ship_zip"`
	ShipCountry  string           `db:"ship_country"`
	ShipPhone    sql.Null[string] `db:"ship_phone"`
	CreatedAt    int64            `db:"created_at"`
	PrintedAt    sql.NullInt64    `db:"printed_at"`
	LabelURL     sql.Null[string] `db:"label_url"`
	TrackingURL  sql.Null[string] `db:"tracking_url"`
}

func (r orderRow) toDomain() domain.Order {
	return domain.Order{
		ID:    r.ID,
		Email: r.Email,
		ShippingAddress: domain.ShippingAddress{
			Name:     r.ShipName,
			Street1:  r.ShipStreet1,
			Street2:  r.ShipStreet2,
			City:     r.ShipCity,
			Province: r.ShipProvince,
			Zip:      r.ShipZip,
			Country:  r.ShipCountry,
			Phone:    r.ShipPhone,
		},
		CreatedAt:   fromNanos(r.CreatedAt),
		PrintedAt:   nullTime(r.PrintedAt),
		LabelURL:    r.LabelURL,
		TrackingURL: r.TrackingURL,
		Items:       []domain.OrderItem{},
	}
}

type orderItemRow struct {
	OrderID         string `db:"order_id"`
	ProductName     string `db:"product_name"`
	VariantName     string `db:"variant_name"`
	Quantity        int    `db:"quantity"`
	UnitAmountCents int64  `db:"unit_amount_cents"`
}

// CreateOrder writes the header and its items in one transaction.
func (r *OrderRepo) CreateOrder(ctx context.Context, o domain.Order) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var printedAt sql.NullInt64
	if o.PrintedAt.Valid {
		printedAt = sql.NullInt64{Int64: toNanos(o.PrintedAt.V), Valid: true}
	}
	a := o.ShippingAddress
	_, err = tx.ExecContext(ctx, `
	  INSERT INTO orders
	    (id, email, ship_name, ship_street1, ship_street2, ship_city, ship_province,
	     ship_zip, ship_country, ship_phone, created_at, printed_at, label_url, tracking_url)
	  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, o.ID, o.Email, a.Name, a.Street1, a.Street2, a.City, a.Province,
		a.Zip, a.Country, a.Phone, toNanos(o.CreatedAt), printedAt, o.LabelURL, o.TrackingURL)
	if isUniqueViolation(err) {
		return domain.Conflict("order %q already exists", o.ID)
	}
	if err != nil {
		return err
	}

	for i, it := range o.Items {
		if _, err := tx.ExecContext(ctx, `
		  INSERT INTO order_items(order_id, position, product_name, variant_name, quantity, unit_amount_cents)
		  VALUES (?, ?, ?, ?, ?, ?)
		`, o.ID, i, it.ProductName, it.VariantName, it.Quantity, it.UnitAmountCents); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *OrderRepo) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	var row orderRow
	err := r.db.GetContext(ctx, &row, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	if isNoRows(err) {
		return domain.Order{}, domain.NotFound("order", id)
	}
	if err != nil {
		return domain.Order{}, err
	}
	orders, err := r.withItems(ctx, []orderRow{row})
	if err != nil {
		return domain.Order{}, err
	}
	return orders[0], nil
}

// SearchOrders keeps orders whose shipping name or email contains the query
// (case-insensitive substring), sorts by creation time then insertion order,
// and slices the requested page.
func (r *OrderRepo) SearchOrders(ctx context.Context, f domain.OrderFilter) (domain.OrderPage, error) {
	where := `1 = 1`
	args := []any{}
	if f.Query != "" {
		pattern := "%" + escapeLike(strings.ToLower(f.Query)) + "%"
		where += ` AND (casefold(ship_name) LIKE ? ESCAPE '\' OR casefold(email) LIKE ? ESCAPE '\')`
		args = append(args, pattern, pattern)
	}

	var page domain.OrderPage
	if err := r.db.GetContext(ctx, &page.Total, `SELECT COUNT(*) FROM orders WHERE `+where, args...); err != nil {
		return domain.OrderPage{}, err
	}

	var rows []orderRow
	if err := r.db.SelectContext(ctx, &rows, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE `+where+`
		ORDER BY created_at, seq
		LIMIT ? OFFSET ?`, append(args, f.Limit, f.Offset)...); err != nil {
		return domain.OrderPage{}, err
	}
	orders, err := r.withItems(ctx, rows)
	if err != nil {
		return domain.OrderPage{}, err
	}
	page.Orders = orders
	return page, nil
}

// ListUnprinted returns orders with a label and no print time, oldest first.
func (r *OrderRepo) ListUnprinted(ctx context.Context) ([]domain.Order, error) {
	var rows []orderRow
	if err := r.db.SelectContext(ctx, &rows, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE label_url IS NOT NULL AND printed_at IS NULL
		ORDER BY created_at, seq
	`); err != nil {
		return nil, err
	}
	return r.withItems(ctx, rows)
}

// MarkPrinted stamps printed_at on the given orders that are still printable
// and returns the ids it changed. Other ids are skipped.
func (r *OrderRepo) MarkPrinted(ctx context.Context, ids []string, at time.Time) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`
		UPDATE orders SET printed_at = ?
		WHERE id IN (?) AND label_url IS NOT NULL AND printed_at IS NULL
		RETURNING id
	`, toNanos(at), ids)
	if err != nil {
		return nil, err
	}
	var printed []string
	if err := r.db.SelectContext(ctx, &printed, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return printed, nil
}

// SetLabelURL assigns a label while the order is unprinted.
func (r *OrderRepo) SetLabelURL(ctx context.Context, id, url string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE orders SET label_url = ? WHERE id = ? AND printed_at IS NULL`, url, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	ok, err := exists(ctx, r.db, "orders", id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.NotFound("order", id)
	}
	return domain.Conflict("order %q is already printed", id)
}

func (r *OrderRepo) SetTrackingURL(ctx context.Context, id, url string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE orders SET tracking_url = ? WHERE id = ?`, url, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NotFound("order", id)
	}
	return nil
}

func (r *OrderRepo) withItems(ctx context.Context, rows []orderRow) ([]domain.Order, error) {
	out := make([]domain.Order, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	query, args, err := sqlx.In(`
		SELECT order_id, product_name, variant_name, quantity, unit_amount_cents
		FROM order_items
		WHERE order_id IN (?)
		ORDER BY order_id, position
	`, ids)
	if err != nil {
		return nil, err
	}
	var items []orderItemRow
	if err := r.db.SelectContext(ctx, &items, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	byOrder := map[string][]domain.OrderItem{}
	for _, it := range items {
		byOrder[it.OrderID] = append(byOrder[it.OrderID], domain.OrderItem{
			ProductName:     it.ProductName,
			VariantName:     it.VariantName,
			Quantity:        it.Quantity,
			UnitAmountCents: it.UnitAmountCents,
		})
	}
	for _, row := range rows {
		o := row.toDomain()
		if its, ok := byOrder[o.ID]; ok {
			o.Items = its
		}
		out = append(out, o)
	}
	return out, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
