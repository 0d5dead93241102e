package handlers

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"backoffice/internal/domain"
	"backoffice/internal/services"
	"backoffice/internal/validate"
)

// Response bodies. Optional fields are omitted when unset.

type itemJSON struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Total       *int64 `json:"total,omitempty"`
}

type recordJSON struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"item_id"`
	Quantity  int64     `json:"quantity"`
	Notes     *string   `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type variantJSON struct {
	ID         string `json:"id"`
	ProductID  string `json:"product_id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Price      string `json:"price"`
}

type productJSON struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Order       int           `json:"order"`
	Variants    []variantJSON `json:"variants"`
}

type addressJSON struct {
	Name     string  `json:"name"`
	Street1  string  `json:"street1"`
	Street2  *string `json:"street2,omitempty"`
	City     string  `json:"city"`
	Province string  `json:"province"`
	Zip      string  `json:"zip"`
	Country  string  `json:"country"`
	Phone    *string `json:"phone,omitempty"`
}

type orderItemJSON struct {
	ProductName     string `json:"product_name"`
	VariantName     string `json:"variant_name"`
	Quantity        int    `json:"quantity"`
	UnitAmountCents int64  `json:"unit_amount_cents"`
	AmountCents     int64  `json:"amount_cents"`
}

type orderJSON struct {
	ID              string          `json:"id"`
	Email           string          `json:"email"`
	Items           []orderItemJSON `json:"items"`
	ShippingAddress addressJSON     `json:"shipping_address"`
	AmountCents     int64           `json:"amount_cents"`
	Amount          string          `json:"amount"`
	CreatedAt       time.Time       `json:"created_at"`
	PrintedAt       *time.Time      `json:"printed_at,omitempty"`
	LabelURL        *string         `json:"label_url,omitempty"`
	TrackingURL     *string         `json:"tracking_url,omitempty"`
}

type printJobJSON struct {
	ID         string              `json:"id"`
	Status     string              `json:"status"`
	OrderIDs   []string            `json:"order_ids"`
	Labels     []domain.LabelBatch `json:"labels"`
	CreatedAt  time.Time           `json:"created_at"`
	ResolvedAt *time.Time          `json:"resolved_at,omitempty"`
	Printed    int                 `json:"printed"`
	Skipped    int                 `json:"skipped"`
}

type demandJSON struct {
	Key      string `json:"key"`
	Quantity int    `json:"quantity"`
}

func ptr[T any](n sql.Null[T]) *T {
	if !n.Valid {
		return nil
	}
	v := n.V
	return &v
}

func null(s *string) sql.Null[string] {
	if s == nil {
		return sql.Null[string]{}
	}
	return sql.Null[string]{V: *s, Valid: true}
}

func toItemJSON(it domain.InventoryItem) itemJSON {
	return itemJSON{ID: it.ID, Name: it.Name, Description: it.Description}
}

func toRecordJSON(r domain.InventoryRecord) recordJSON {
	return recordJSON{ID: r.ID, ItemID: r.InventoryItemID, Quantity: r.Quantity, Notes: ptr(r.Notes), CreatedAt: r.CreatedAt}
}

func toVariantJSON(v domain.Variant) variantJSON {
	return variantJSON{ID: v.ID, ProductID: v.ProductID, Name: v.Name, PriceCents: v.PriceCents, Price: validate.Amount(v.PriceCents)}
}

func toProductJSON(p domain.Product) productJSON {
	out := productJSON{ID: p.ID, Name: p.Name, Description: p.Description, Order: p.Order, Variants: []variantJSON{}}
	for _, v := range p.Variants {
		out.Variants = append(out.Variants, toVariantJSON(v))
	}
	return out
}

func toOrderJSON(o domain.Order) orderJSON {
	a := o.ShippingAddress
	out := orderJSON{
		ID:    o.ID,
		Email: o.Email,
		Items: make([]orderItemJSON, 0, len(o.Items)),
		ShippingAddress: addressJSON{
			Name: a.Name, Street1: a.Street1, Street2: ptr(a.Street2), City: a.City,
			Province: a.Province, Zip: a.Zip, Country: a.Country, Phone: ptr(a.Phone),
		},
		AmountCents: o.TotalAmountCents(),
		Amount:      validate.Amount(o.TotalAmountCents()),
		CreatedAt:   o.CreatedAt,
		PrintedAt:   ptr(o.PrintedAt),
		LabelURL:    ptr(o.LabelURL),
		TrackingURL: ptr(o.TrackingURL),
	}
	for _, it := range o.Items {
		out.Items = append(out.Items, orderItemJSON{
			ProductName: it.ProductName, VariantName: it.VariantName, Quantity: it.Quantity,
			UnitAmountCents: it.UnitAmountCents, AmountCents: it.AmountCents(),
		})
	}
	return out
}

func toPrintJobJSON(j domain.PrintJob) printJobJSON {
	labels := j.Labels
	if labels == nil {
		labels = []domain.LabelBatch{}
	}
	return printJobJSON{
		ID: j.ID, Status: string(j.Status), OrderIDs: j.OrderIDs, Labels: labels,
		CreatedAt: j.CreatedAt, ResolvedAt: ptr(j.ResolvedAt), Printed: j.Printed, Skipped: j.Skipped,
	}
}

func toDemandJSON(rows []services.DemandRow) []demandJSON {
	out := make([]demandJSON, 0, len(rows))
	for _, r := range rows {
		out = append(out, demandJSON{Key: r.Key, Quantity: r.Quantity})
	}
	return out
}

func (a addressJSON) toDomain() domain.ShippingAddress {
	return domain.ShippingAddress{
		Name: a.Name, Street1: a.Street1, Street2: null(a.Street2), City: a.City,
		Province: a.Province, Zip: a.Zip, Country: a.Country, Phone: null(a.Phone),
	}
}

// cents converts an operator-entered amount, rejecting negatives and
// sub-cent precision.
func cents(field string, d decimal.Decimal) (int64, error) {
	c, ok := validate.Cents(d)
	if !ok {
		return 0, domain.Invalid("%s must be a non-negative amount with at most two decimals", field)
	}
	return c, nil
}
