package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"backoffice/internal/domain"
	applog "backoffice/internal/log"
	"backoffice/internal/services"
)

type OrderHandler struct {
	Orders *services.OrderService
}

// GET /api/v1/orders?q=&offset=&limit=
func (h *OrderHandler) Search(c *fiber.Ctx) error {
	offset := c.QueryInt("offset", 0)
	limit := c.QueryInt("limit", 0)
	page, err := h.Orders.Search(c.UserContext(), c.Query("q"), offset, limit)
	if err != nil {
		return respondErr(c, "orders.search", err)
	}
	out := make([]orderJSON, 0, len(page.Orders))
	for _, o := range page.Orders {
		out = append(out, toOrderJSON(o))
	}
	return c.JSON(fiber.Map{"orders": out, "total": page.Total, "offset": max(offset, 0)})
}

// POST /api/v1/orders
func (h *OrderHandler) Create(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
		Items []struct {
			ProductName string           `json:"product_name"`
			VariantName string           `json:"variant_name"`
			Quantity    int              `json:"quantity"`
			UnitAmount  *decimal.Decimal `json:"unit_amount"`
		} `json:"items"`
		ShippingAddress addressJSON `json:"shipping_address"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		if it.UnitAmount == nil {
			return badRequest(c, "unit_amount is required for every item")
		}
		amount, err := cents("unit_amount", *it.UnitAmount)
		if err != nil {
			return respondErr(c, "orders.create", err)
		}
		items = append(items, domain.OrderItem{
			ProductName: it.ProductName, VariantName: it.VariantName, Quantity: it.Quantity, UnitAmountCents: amount,
		})
	}
	o, err := h.Orders.Create(c.UserContext(), req.Email, items, req.ShippingAddress.toDomain())
	if err != nil {
		return respondErr(c, "orders.create", err)
	}
	applog.Audit(c, "orders.create", map[string]any{"order_id": o.ID, "amount_cents": o.TotalAmountCents()})
	return c.Status(fiber.StatusCreated).JSON(toOrderJSON(o))
}

// POST /api/v1/orders/catalog
func (h *OrderHandler) CreateFromCatalog(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
		Lines []struct {
			VariantID string `json:"variant_id"`
			Quantity  int    `json:"quantity"`
		} `json:"lines"`
		ShippingAddress addressJSON `json:"shipping_address"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	lines := make([]services.CatalogLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, services.CatalogLine{VariantID: l.VariantID, Quantity: l.Quantity})
	}
	o, err := h.Orders.CreateFromCatalog(c.UserContext(), req.Email, lines, req.ShippingAddress.toDomain())
	if err != nil {
		return respondErr(c, "orders.create", err)
	}
	applog.Audit(c, "orders.create", map[string]any{"order_id": o.ID, "amount_cents": o.TotalAmountCents(), "source": "catalog"})
	return c.Status(fiber.StatusCreated).JSON(toOrderJSON(o))
}

// GET /api/v1/orders/:id
func (h *OrderHandler) View(c *fiber.Ctx) error {
	id, err := paramID(c, "order")
	if err != nil {
		return respondErr(c, "orders.get", err)
	}
	o, err := h.Orders.Get(c.UserContext(), id)
	if err != nil {
		return respondErr(c, "orders.get", err)
	}
	return c.JSON(toOrderJSON(o))
}

type urlRequest struct {
	URL string `json:"url"`
}

// PUT /api/v1/orders/:id/label
func (h *OrderHandler) AssignLabel(c *fiber.Ctx) error {
	id, err := paramID(c, "order")
	if err != nil {
		return respondErr(c, "orders.label", err)
	}
	var req urlRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	o, err := h.Orders.AssignLabel(c.UserContext(), id, req.URL)
	if err != nil {
		return respondErr(c, "orders.label", err)
	}
	applog.Audit(c, "orders.label", map[string]any{"order_id": id})
	return c.JSON(toOrderJSON(o))
}

// PUT /api/v1/orders/:id/tracking
func (h *OrderHandler) SetTracking(c *fiber.Ctx) error {
	id, err := paramID(c, "order")
	if err != nil {
		return respondErr(c, "orders.tracking", err)
	}
	var req urlRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	o, err := h.Orders.SetTracking(c.UserContext(), id, req.URL)
	if err != nil {
		return respondErr(c, "orders.tracking", err)
	}
	applog.Audit(c, "orders.tracking", map[string]any{"order_id": id})
	return c.JSON(toOrderJSON(o))
}
