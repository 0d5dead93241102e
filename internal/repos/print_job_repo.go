package repos

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"

	"backoffice/internal/domain"
)

type PrintJobRepo struct{ db *sqlx.DB }

func NewPrintJobRepo(db *sqlx.DB) *PrintJobRepo { return &PrintJobRepo{db: db} }

type printJobRow struct {
	ID         string        `db:"id"`
	Status     string        `db:"status"`
	LabelsJSON string        `db:"labels_json"`
	CreatedAt  int64         `db:"created_at"`
	ResolvedAt sql.NullInt64 `db:"resolved_at"`
	Printed    int           `db:"printed"`
	Skipped    int           `db:"skipped"`
}

func (r *PrintJobRepo) CreatePrintJob(ctx context.Context, j domain.PrintJob) error {
	labels := j.Labels
	if labels == nil {
		labels = []domain.LabelBatch{}
	}
	labelsJSON, err := json.Marshal(labels)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO print_jobs(id, status, labels_json, created_at) VALUES (?, ?, ?, ?)
	`, j.ID, string(j.Status), string(labelsJSON), toNanos(j.CreatedAt)); err != nil {
		return err
	}
	for i, oid := range j.OrderIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO print_job_orders(job_id, position, order_id) VALUES (?, ?, ?)
		`, j.ID, i, oid); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *PrintJobRepo) GetPrintJob(ctx context.Context, id string) (domain.PrintJob, error) {
	var row printJobRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, status, labels_json, created_at, resolved_at, printed, skipped
		FROM print_jobs WHERE id = ?
	`, id)
	if isNoRows(err) {
		return domain.PrintJob{}, domain.NotFound("print job", id)
	}
	if err != nil {
		return domain.PrintJob{}, err
	}

	j := domain.PrintJob{
		ID:         row.ID,
		Status:     domain.PrintJobStatus(row.Status),
		CreatedAt:  fromNanos(row.CreatedAt),
		ResolvedAt: nullTime(row.ResolvedAt),
		Printed:    row.Printed,
		Skipped:    row.Skipped,
		OrderIDs:   []string{},
	}
	if err := json.Unmarshal([]byte(row.LabelsJSON), &j.Labels); err != nil {
		return domain.PrintJob{}, err
	}
	if err := r.db.SelectContext(ctx, &j.OrderIDs, `
		SELECT order_id FROM print_job_orders WHERE job_id = ? ORDER BY position
	`, id); err != nil {
		return domain.PrintJob{}, err
	}
	return j, nil
}

// ResolvePrintJob moves a pending job to status. Only one caller can win;
// the rest get a conflict.
func (r *PrintJobRepo) ResolvePrintJob(ctx context.Context, id string, status domain.PrintJobStatus, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE print_jobs SET status = ?, resolved_at = ? WHERE id = ? AND status = ?
	`, string(status), toNanos(at), id, string(domain.PrintJobPending))
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
	ok, err := exists(ctx, r.db, "print_jobs", id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.NotFound("print job", id)
	}
	return domain.Conflict("print job %q is no longer pending", id)
}

func (r *PrintJobRepo) RecordPrintResult(ctx context.Context, id string, printed, skipped int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE print_jobs SET printed = ?, skipped = ? WHERE id = ?`, printed, skipped, id)
	return err
}
