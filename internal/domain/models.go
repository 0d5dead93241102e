package domain

import (
	"database/sql"
	"time"
)

type InventoryItem struct {
	ID          string
	Name        string
	Description string
}

// InventoryRecord is one quantity movement. Records are never updated.
type InventoryRecord struct {
	ID              string
	InventoryItemID string
	Quantity        int64
	Notes           sql.Null[string]
	CreatedAt       time.Time
}

// ItemTotal joins an item with its derived ledger total.
type ItemTotal struct {
	InventoryItem
	Total int64
}

type Product struct {
	ID          string
	Name        string
	Description string
	Order       int // display rank
	Variants    []Variant
}

type Variant struct {
	ID         string
	ProductID  string
	Name       string
	PriceCents int64
}

type ShippingAddress struct {
	Name     string
	Street1  string
	Street2  sql.Null[string]
	City     string
	Province string
	Zip      string
	Country  string
	Phone    sql.Null[string]
}

// OrderItem snapshots catalog names at order time; later catalog edits do not touch it.
type OrderItem struct {
	ProductName     string
	VariantName     string
	Quantity        int
	UnitAmountCents int64
}

func (it OrderItem) AmountCents() int64 { return it.UnitAmountCents * int64(it.Quantity) }

type Order struct {
	ID              string
	Email           string
	Items           []OrderItem
	ShippingAddress ShippingAddress
	CreatedAt       time.Time
	PrintedAt       sql.Null[time.Time]
	LabelURL        sql.Null[string]
	TrackingURL     sql.Null[string]
}

// TotalAmountCents sums unit amount times quantity over the order's items.
func (o Order) TotalAmountCents() int64 {
	var total int64
	for _, it := range o.Items {
		total += it.AmountCents()
	}
	return total
}

// Printable reports whether the order has a label and has not been printed yet.
func (o Order) Printable() bool {
	return o.LabelURL.Valid && !o.PrintedAt.Valid
}

// OrderFilter drives order search. An empty Query matches every order.
type OrderFilter struct {
	Query  string
	Offset int
	Limit  int
}

type OrderPage struct {
	Orders []Order
	Total  int // matches before paging
}

// LabelBatch is one generated label document covering Count orders.
type LabelBatch struct {
	Count int    `json:"count"`
	URL   string `json:"url"`
}

type PrintJobStatus string

const (
	PrintJobPending   PrintJobStatus = "PENDING"
	PrintJobConfirmed PrintJobStatus = "CONFIRMED"
	PrintJobCancelled PrintJobStatus = "CANCELLED"
)

// PrintJob persists the snapshot taken for one print cycle together with the
// labels the provider produced for it.
type PrintJob struct {
	ID         string
	Status     PrintJobStatus
	OrderIDs   []string
	Labels     []LabelBatch
	CreatedAt  time.Time
	ResolvedAt sql.Null[time.Time]
	Printed    int
	Skipped    int
}
