package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"backoffice/internal/domain"
	applog "backoffice/internal/log"
	"backoffice/internal/services"
)

type ProductHandler struct {
	Catalog *services.CatalogService
}

type variantRequest struct {
	Name  string           `json:"name"`
	Price *decimal.Decimal `json:"price"`
}

func (r variantRequest) priceCents() (int64, error) {
	if r.Price == nil {
		return 0, domain.Invalid("price is required")
	}
	return cents("price", *r.Price)
}

// GET /api/v1/products
func (h *ProductHandler) List(c *fiber.Ctx) error {
	ps, err := h.Catalog.ListProducts(c.UserContext())
	if err != nil {
		return respondErr(c, "products.list", err)
	}
	out := make([]productJSON, 0, len(ps))
	for _, p := range ps {
		out = append(out, toProductJSON(p))
	}
	return c.JSON(fiber.Map{"products": out})
}

// POST /api/v1/products
func (h *ProductHandler) Create(c *fiber.Ctx) error {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	p, err := h.Catalog.CreateProduct(c.UserContext(), req.Name, req.Description)
	if err != nil {
		return respondErr(c, "products.create", err)
	}
	applog.Audit(c, "products.create", map[string]any{"product_id": p.ID, "name": p.Name})
	return c.Status(fiber.StatusCreated).JSON(toProductJSON(p))
}

// GET /api/v1/products/:id
func (h *ProductHandler) Detail(c *fiber.Ctx) error {
	id, err := paramID(c, "product")
	if err != nil {
		return respondErr(c, "products.get", err)
	}
	p, err := h.Catalog.GetProduct(c.UserContext(), id)
	if err != nil {
		return respondErr(c, "products.get", err)
	}
	return c.JSON(toProductJSON(p))
}

// PUT /api/v1/products/:id
func (h *ProductHandler) Update(c *fiber.Ctx) error {
	id, err := paramID(c, "product")
	if err != nil {
		return respondErr(c, "products.update", err)
	}
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Order       *int   `json:"order"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	if req.Order == nil {
		return badRequest(c, "order is required")
	}
	p, err := h.Catalog.EditProduct(c.UserContext(), id, req.Name, req.Description, *req.Order)
	if err != nil {
		return respondErr(c, "products.update", err)
	}
	applog.Audit(c, "products.update", map[string]any{"product_id": id, "order": p.Order})
	return c.JSON(toProductJSON(p))
}

// POST /api/v1/products/:id/variants
func (h *ProductHandler) AddVariant(c *fiber.Ctx) error {
	id, err := paramID(c, "product")
	if err != nil {
		return respondErr(c, "variants.create", err)
	}
	var req variantRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	price, err := req.priceCents()
	if err != nil {
		return respondErr(c, "variants.create", err)
	}
	v, err := h.Catalog.AddVariant(c.UserContext(), id, req.Name, price)
	if err != nil {
		return respondErr(c, "variants.create", err)
	}
	applog.Audit(c, "variants.create", map[string]any{"product_id": id, "variant_id": v.ID, "price_cents": v.PriceCents})
	return c.Status(fiber.StatusCreated).JSON(toVariantJSON(v))
}

// PUT /api/v1/variants/:id
func (h *ProductHandler) UpdateVariant(c *fiber.Ctx) error {
	id, err := paramID(c, "variant")
	if err != nil {
		return respondErr(c, "variants.update", err)
	}
	var req variantRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	price, err := req.priceCents()
	if err != nil {
		return respondErr(c, "variants.update", err)
	}
	v, err := h.Catalog.EditVariant(c.UserContext(), id, req.Name, price)
	if err != nil {
		return respondErr(c, "variants.update", err)
	}
	applog.Audit(c, "variants.update", map[string]any{"variant_id": id, "price_cents": v.PriceCents})
	return c.JSON(toVariantJSON(v))
}
