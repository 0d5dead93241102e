package services

import (
	"context"
	"database/sql"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"backoffice/internal/domain"
	"backoffice/internal/ids"
	"backoffice/internal/validate"
)

type OrderService struct {
	Orders   OrderStore
	Products ProductStore
	IDs      ids.Generator
	Now      func() time.Time
	Log      *zap.Logger

	// DefaultLabelURL, when set, is assigned to every new order so it is
	// printable immediately. Empty leaves labelling to AssignLabel.
	DefaultLabelURL string
	PageSize        int
	PageMax         int
}

func NewOrderService(orders OrderStore, products ProductStore) *OrderService {
	return &OrderService{
		Orders:   orders,
		Products: products,
		IDs:      ids.UUID{},
		Now:      utcNow,
		Log:      zap.NewNop(),
		PageSize: 20,
		PageMax:  100,
	}
}

// CatalogLine asks for Quantity units of a catalog variant.
type CatalogLine struct {
	VariantID string
	Quantity  int
}

// Create stores an order with the given line items.
func (s *OrderService) Create(ctx context.Context, email string, items []domain.OrderItem, addr domain.ShippingAddress) (domain.Order, error) {
	e, ok := validate.Email(email)
	if !ok {
		return domain.Order{}, domain.Invalid("a valid email is required")
	}
	if len(items) == 0 {
		return domain.Order{}, domain.Invalid("an order needs at least one item")
	}
	clean := make([]domain.OrderItem, 0, len(items))
	var total int64
	for i, it := range items {
		pn, ok := validate.Name(it.ProductName)
		if !ok {
			return domain.Order{}, domain.Invalid("item %d: product name is required", i+1)
		}
		vn, ok := validate.Name(it.VariantName)
		if !ok {
			return domain.Order{}, domain.Invalid("item %d: variant name is required", i+1)
		}
		if it.Quantity <= 0 {
			return domain.Order{}, domain.Invalid("item %d: quantity must be positive", i+1)
		}
		if it.UnitAmountCents < 0 {
			return domain.Order{}, domain.Invalid("item %d: amount must not be negative", i+1)
		}
		if it.UnitAmountCents > 0 && int64(it.Quantity) > math.MaxInt64/it.UnitAmountCents {
			return domain.Order{}, domain.Invalid("item %d: amount is too large", i+1)
		}
		line := it.UnitAmountCents * int64(it.Quantity)
		if total > math.MaxInt64-line {
			return domain.Order{}, domain.Invalid("order total is too large")
		}
		total += line
		clean = append(clean, domain.OrderItem{
			ProductName: pn, VariantName: vn, Quantity: it.Quantity, UnitAmountCents: it.UnitAmountCents,
		})
	}
	a, err := cleanAddress(addr)
	if err != nil {
		return domain.Order{}, err
	}

	o := domain.Order{
		ID:              s.IDs.NewID(),
		Email:           e,
		Items:           clean,
		ShippingAddress: a,
		CreatedAt:       s.Now(),
	}
	if s.DefaultLabelURL != "" {
		o.LabelURL = sql.Null[string]{V: s.DefaultLabelURL, Valid: true}
	}
	if err := s.Orders.CreateOrder(ctx, o); err != nil {
		return domain.Order{}, err
	}
	s.Log.Info("order.create", zap.String("order_id", o.ID), zap.Int("items", len(o.Items)),
		zap.Int64("amount_cents", o.TotalAmountCents()))
	return o, nil
}

// CreateFromCatalog prices each line from the current catalog and snapshots
// the product and variant names. Zero-quantity lines are skipped.
func (s *OrderService) CreateFromCatalog(ctx context.Context, email string, lines []CatalogLine, addr domain.ShippingAddress) (domain.Order, error) {
	var items []domain.OrderItem
	products := map[string]domain.Product{}
	for _, l := range lines {
		if l.Quantity == 0 {
			continue
		}
		if l.Quantity < 0 {
			return domain.Order{}, domain.Invalid("quantity for variant %q must not be negative", l.VariantID)
		}
		v, err := s.Products.GetVariant(ctx, l.VariantID)
		if err != nil {
			return domain.Order{}, err
		}
		p, ok := products[v.ProductID]
		if !ok {
			if p, err = s.Products.GetProduct(ctx, v.ProductID); err != nil {
				return domain.Order{}, err
			}
			products[v.ProductID] = p
		}
		items = append(items, domain.OrderItem{
			ProductName:     p.Name,
			VariantName:     v.Name,
			Quantity:        l.Quantity,
			UnitAmountCents: v.PriceCents,
		})
	}
	if len(items) == 0 {
		return domain.Order{}, domain.Invalid("select at least one variant")
	}
	return s.Create(ctx, email, items, addr)
}

func (s *OrderService) Get(ctx context.Context, id string) (domain.Order, error) {
	return s.Orders.GetOrder(ctx, id)
}

// Search matches the term against shipping name and email and returns one
// page ordered by creation time.
func (s *OrderService) Search(ctx context.Context, q string, offset, limit int) (domain.OrderPage, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = s.PageSize
	}
	if s.PageMax > 0 && limit > s.PageMax {
		limit = s.PageMax
	}
	term, ok := validate.Q(q)
	if !ok {
		return domain.OrderPage{}, domain.Invalid("search term must be at most %d characters", validate.MaxQueryLen)
	}
	return s.Orders.SearchOrders(ctx, domain.OrderFilter{Query: term, Offset: offset, Limit: limit})
}

// MarkPrinted stamps the still-printable orders among ids and reports how
// many changed. Repeating the call with the same ids changes nothing.
func (s *OrderService) MarkPrinted(ctx context.Context, orderIDs []string) (int, error) {
	printed, err := s.Orders.MarkPrinted(ctx, unique(orderIDs), s.Now())
	return len(printed), err
}

// AssignLabel attaches a label document to an unprinted order.
func (s *OrderService) AssignLabel(ctx context.Context, id, url string) (domain.Order, error) {
	u, ok := validate.URL(url)
	if !ok {
		return domain.Order{}, domain.Invalid("label url must be an http(s) url")
	}
	if err := s.Orders.SetLabelURL(ctx, id, u); err != nil {
		return domain.Order{}, err
	}
	return s.Orders.GetOrder(ctx, id)
}

func (s *OrderService) SetTracking(ctx context.Context, id, url string) (domain.Order, error) {
	u, ok := validate.URL(url)
	if !ok {
		return domain.Order{}, domain.Invalid("tracking url must be an http(s) url")
	}
	if err := s.Orders.SetTrackingURL(ctx, id, u); err != nil {
		return domain.Order{}, err
	}
	return s.Orders.GetOrder(ctx, id)
}

func cleanAddress(a domain.ShippingAddress) (domain.ShippingAddress, error) {
	required := []struct {
		field string
		value *string
	}{
		{"name", &a.Name}, {"street1", &a.Street1}, {"city", &a.City},
		{"province", &a.Province}, {"zip", &a.Zip}, {"country", &a.Country},
	}
	for _, r := range required {
		v, ok := validate.Name(*r.value)
		if !ok {
			return domain.ShippingAddress{}, domain.Invalid("shipping %s is required", r.field)
		}
		*r.value = v
	}
	a.Street2 = optional(a.Street2)
	a.Phone = optional(a.Phone)
	return a, nil
}

func optional(v sql.Null[string]) sql.Null[string] {
	s := strings.TrimSpace(v.V)
	return sql.Null[string]{V: s, Valid: v.Valid && s != ""}
}

func unique(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, id := range in {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
