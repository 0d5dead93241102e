package repos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"backoffice/internal/domain"
)

type InventoryRepo struct{ db *sqlx.DB }

func NewInventoryRepo(db *sqlx.DB) *InventoryRepo { return &InventoryRepo{db: db} }

type itemRow struct {
	ID          string `db:"id"`
	Name        string `db:"name"`
	Description string `db:"description"`
}

func (r itemRow) toDomain() domain.InventoryItem {
	return domain.InventoryItem{ID: r.ID, Name: r.Name, Description: r.Description}
}

type recordRow struct {
	ID              string           `db:"id"`
	InventoryItemID string           `db:"inventory_item_id"`
	Quantity        int64            `db:"quantity"`
	Notes           sql.Null[string] `db:"notes"`
	CreatedAt       int64            `db:"created_at"`
}

func (r recordRow) toDomain() domain.InventoryRecord {
	return domain.InventoryRecord{
		ID:              r.ID,
		InventoryItemID: r.InventoryItemID,
		Quantity:        r.Quantity,
		Notes:           r.Notes,
		CreatedAt:       fromNanos(r.CreatedAt),
	}
}

// CreateItem inserts a new item. An existing id is never overwritten.
func (r *InventoryRepo) CreateItem(ctx context.Context, it domain.InventoryItem) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO inventory_items(id, name, description) VALUES (?, ?, ?)
	`, it.ID, it.Name, it.Description)
	if isUniqueViolation(err) {
		return domain.Conflict("inventory item %q already exists", it.ID)
	}
	return err
}

func (r *InventoryRepo) GetItem(ctx context.Context, id string) (domain.InventoryItem, error) {
	var row itemRow
	err := r.db.GetContext(ctx, &row, `SELECT id, name, description FROM inventory_items WHERE id = ?`, id)
	if isNoRows(err) {
		return domain.InventoryItem{}, domain.NotFound("inventory item", id)
	}
	if err != nil {
		return domain.InventoryItem{}, err
	}
	return row.toDomain(), nil
}

// ListItems returns items in insertion order.
func (r *InventoryRepo) ListItems(ctx context.Context) ([]domain.InventoryItem, error) {
	var rows []itemRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT id, name, description FROM inventory_items ORDER BY seq`); err != nil {
		return nil, err
	}
	out := make([]domain.InventoryItem, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *InventoryRepo) AppendRecord(ctx context.Context, rec domain.InventoryRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO inventory_records(id, inventory_item_id, quantity, notes, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, rec.ID, rec.InventoryItemID, rec.Quantity, rec.Notes, toNanos(rec.CreatedAt))
	switch {
	case isForeignKeyViolation(err):
		return domain.NotFound("inventory item", rec.InventoryItemID)
	case isUniqueViolation(err):
		return domain.Conflict("inventory record %q already exists", rec.ID)
	}
	return err
}

// Records returns an item's movements newest first. Records sharing a
// timestamp keep their write order.
func (r *InventoryRepo) Records(ctx context.Context, itemID string) ([]domain.InventoryRecord, error) {
	var rows []recordRow
	if err := r.db.SelectContext(ctx, &rows, `
		SELECT id, inventory_item_id, quantity, notes, created_at
		FROM inventory_records
		WHERE inventory_item_id = ?
		ORDER BY created_at DESC, seq ASC
	`, itemID); err != nil {
		return nil, err
	}
	out := make([]domain.InventoryRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// Total sums an item's movements; zero when it has none.
func (r *InventoryRepo) Total(ctx context.Context, itemID string) (int64, error) {
	var total int64
	err := r.db.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(quantity), 0) FROM inventory_records WHERE inventory_item_id = ?
	`, itemID)
	return total, err
}

// Totals joins every item with its derived total, in insertion order.
func (r *InventoryRepo) Totals(ctx context.Context) ([]domain.ItemTotal, error) {
	var rows []struct {
		ID          string `db:"id"`
		Name        string `db:"name"`
		Description string `db:"description"`
		Total       int64  `db:"total"`
	}
	if err := r.db.SelectContext(ctx, &rows, `
		SELECT i.id, i.name, i.description, COALESCE(SUM(r.quantity), 0) AS total
		FROM inventory_items i
		LEFT JOIN inventory_records r ON r.inventory_item_id = i.id
		GROUP BY i.seq, i.id, i.name, i.description
		ORDER BY i.seq
	`); err != nil {
		return nil, err
	}
	out := make([]domain.ItemTotal, 0, len(rows))
	for _, row := range rows {
		item := domain.InventoryItem{ID: row.ID, Name: row.Name, Description: row.Description}
		out = append(out, domain.ItemTotal{InventoryItem: item, Total: row.Total})
	}
	return out, nil
}
