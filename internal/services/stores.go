package services

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"

	"backoffice/internal/domain"
)

// The stores below are implemented by internal/repos. Services depend only on
// these method sets.

type InventoryStore interface {
	CreateItem(ctx context.Context, it domain.InventoryItem) error
	GetItem(ctx context.Context, id string) (domain.InventoryItem, error)
	ListItems(ctx context.Context) ([]domain.InventoryItem, error)
	AppendRecord(ctx context.Context, rec domain.InventoryRecord) error
	Records(ctx context.Context, itemID string) ([]domain.InventoryRecord, error)
	Total(ctx context.Context, itemID string) (int64, error)
	Totals(ctx context.Context) ([]domain.ItemTotal, error)
}

type ProductStore interface {
	CreateProduct(ctx context.Context, p domain.Product) (domain.Product, error)
	UpdateProduct(ctx context.Context, p domain.Product) error
	GetProduct(ctx context.Context, id string) (domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	CreateVariant(ctx context.Context, v domain.Variant) error
	UpdateVariant(ctx context.Context, id, name string, priceCents int64) error
	GetVariant(ctx context.Context, id string) (domain.Variant, error)
}

type OrderStore interface {
	CreateOrder(ctx context.Context, o domain.Order) error
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	SearchOrders(ctx context.Context, f domain.OrderFilter) (domain.OrderPage, error)
	ListUnprinted(ctx context.Context) ([]domain.Order, error)
	MarkPrinted(ctx context.Context, ids []string, at time.Time) ([]string, error)
	SetLabelURL(ctx context.Context, id, url string) error
	SetTrackingURL(ctx context.Context, id, url string) error
}

type PrintJobStore interface {
	CreatePrintJob(ctx context.Context, j domain.PrintJob) error
	GetPrintJob(ctx context.Context, id string) (domain.PrintJob, error)
	ResolvePrintJob(ctx context.Context, id string, status domain.PrintJobStatus, at time.Time) error
	RecordPrintResult(ctx context.Context, id string, printed, skipped int) error
}

var tracer = otel.Tracer("backoffice/internal/services")

// utcNow is the default clock. Stored times are UTC.
func utcNow() time.Time { return time.Now().UTC() }
