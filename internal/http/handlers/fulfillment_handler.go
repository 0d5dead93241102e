package handlers

import (
	"github.com/gofiber/fiber/v2"

	applog "backoffice/internal/log"
	"backoffice/internal/services"
)

type FulfillmentHandler struct {
	Fulfillment *services.FulfillmentService
}

// GET /api/v1/fulfillment/unprinted
func (h *FulfillmentHandler) Unprinted(c *fiber.Ctx) error {
	sum, err := h.Fulfillment.Unprinted(c.UserContext())
	if err != nil {
		return respondErr(c, "fulfillment.unprinted", err)
	}
	return c.JSON(fiber.Map{"count": sum.Count, "demand": toDemandJSON(sum.Demand)})
}

// POST /api/v1/fulfillment/print-jobs
//
// Snapshots the printable orders and generates their labels. Nothing is
// marked printed until the job is confirmed.
func (h *FulfillmentHandler) Prepare(c *fiber.Ctx) error {
	job, err := h.Fulfillment.Prepare(c.UserContext())
	if err != nil {
		return respondErr(c, "fulfillment.prepare", err)
	}
	applog.Audit(c, "fulfillment.prepare", map[string]any{"job_id": job.ID, "orders": len(job.OrderIDs)})
	return c.Status(fiber.StatusCreated).JSON(toPrintJobJSON(job))
}

// GET /api/v1/fulfillment/print-jobs/:id
func (h *FulfillmentHandler) Job(c *fiber.Ctx) error {
	id, err := paramID(c, "print job")
	if err != nil {
		return respondErr(c, "fulfillment.job", err)
	}
	job, err := h.Fulfillment.GetJob(c.UserContext(), id)
	if err != nil {
		return respondErr(c, "fulfillment.job", err)
	}
	return c.JSON(toPrintJobJSON(job))
}

// POST /api/v1/fulfillment/print-jobs/:id/confirm
func (h *FulfillmentHandler) Confirm(c *fiber.Ctx) error {
	id, err := paramID(c, "print job")
	if err != nil {
		return respondErr(c, "fulfillment.confirm", err)
	}
	job, err := h.Fulfillment.Confirm(c.UserContext(), id)
	if err != nil {
		return respondErr(c, "fulfillment.confirm", err)
	}
	applog.Audit(c, "fulfillment.confirm", map[string]any{"job_id": id, "printed": job.Printed, "skipped": job.Skipped})
	return c.JSON(toPrintJobJSON(job))
}

// POST /api/v1/fulfillment/print-jobs/:id/cancel
func (h *FulfillmentHandler) Cancel(c *fiber.Ctx) error {
	id, err := paramID(c, "print job")
	if err != nil {
		return respondErr(c, "fulfillment.cancel", err)
	}
	job, err := h.Fulfillment.Cancel(c.UserContext(), id)
	if err != nil {
		return respondErr(c, "fulfillment.cancel", err)
	}
	applog.Audit(c, "fulfillment.cancel", map[string]any{"job_id": id})
	return c.JSON(toPrintJobJSON(job))
}
