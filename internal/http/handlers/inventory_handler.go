package handlers

import (
	"github.com/gofiber/fiber/v2"

	"backoffice/internal/domain"
	applog "backoffice/internal/log"
	"backoffice/internal/services"
	"backoffice/internal/validate"
)

type InventoryHandler struct {
	Inv *services.InventoryService
}

// paramID reads the :id route parameter. Malformed ids cannot exist, so they
// are reported as not found.
func paramID(c *fiber.Ctx, kind string) (string, error) {
	raw := c.Params("id")
	id, ok := validate.ID(raw)
	if !ok {
		return "", domain.NotFound(kind, raw)
	}
	return id, nil
}

// GET /api/v1/inventory
func (h *InventoryHandler) List(c *fiber.Ctx) error {
	totals, err := h.Inv.Totals(c.UserContext())
	if err != nil {
		return respondErr(c, "inventory.list", err)
	}
	out := make([]itemJSON, 0, len(totals))
	for _, t := range totals {
		j := toItemJSON(t.InventoryItem)
		j.Total = &t.Total
		out = append(out, j)
	}
	return c.JSON(fiber.Map{"items": out})
}

// POST /api/v1/inventory
func (h *InventoryHandler) Create(c *fiber.Ctx) error {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	it, err := h.Inv.CreateItem(c.UserContext(), req.Name, req.Description)
	if err != nil {
		return respondErr(c, "inventory.create", err)
	}
	applog.Audit(c, "inventory.create", map[string]any{"item_id": it.ID, "name": it.Name})
	return c.Status(fiber.StatusCreated).JSON(toItemJSON(it))
}

// GET /api/v1/inventory/:id
func (h *InventoryHandler) Get(c *fiber.Ctx) error {
	id, err := paramID(c, "inventory item")
	if err != nil {
		return respondErr(c, "inventory.get", err)
	}
	it, err := h.Inv.GetItem(c.UserContext(), id)
	if err != nil {
		return respondErr(c, "inventory.get", err)
	}
	total, err := h.Inv.Total(c.UserContext(), id)
	if err != nil {
		return respondErr(c, "inventory.get", err)
	}
	j := toItemJSON(it)
	j.Total = &total
	return c.JSON(j)
}

// POST /api/v1/inventory/:id/records
func (h *InventoryHandler) Record(c *fiber.Ctx) error {
	id, err := paramID(c, "inventory item")
	if err != nil {
		return respondErr(c, "inventory.record", err)
	}
	var req struct {
		Quantity *int64 `json:"quantity"`
		Notes    string `json:"notes"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "quantity must be a whole number")
	}
	if req.Quantity == nil {
		return badRequest(c, "quantity is required")
	}
	rec, err := h.Inv.Record(c.UserContext(), id, *req.Quantity, req.Notes)
	if err != nil {
		return respondErr(c, "inventory.record", err)
	}
	applog.Audit(c, "inventory.record", map[string]any{"item_id": id, "record_id": rec.ID, "quantity": rec.Quantity})
	return c.Status(fiber.StatusCreated).JSON(toRecordJSON(rec))
}

// GET /api/v1/inventory/:id/history
func (h *InventoryHandler) History(c *fiber.Ctx) error {
	id, err := paramID(c, "inventory item")
	if err != nil {
		return respondErr(c, "inventory.history", err)
	}
	recs, err := h.Inv.History(c.UserContext(), id)
	if err != nil {
		return respondErr(c, "inventory.history", err)
	}
	var total int64
	out := make([]recordJSON, 0, len(recs))
	for _, r := range recs {
		total += r.Quantity
		out = append(out, toRecordJSON(r))
	}
	return c.JSON(fiber.Map{"item_id": id, "total": total, "records": out})
}
