package log_test

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	applog "backoffice/internal/log"
)

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	applog.SetLogger(zap.New(core))
	t.Cleanup(func() { applog.SetLogger(nil) })
	return logs
}

func TestRequestHelpersAttachContext(t *testing.T) {
	logs := observe(t)

	app := fiber.New()
	app.Use(requestid.New())
	app.Post("/x", func(c *fiber.Ctx) error {
		applog.Audit(c, "inventory.record", map[string]any{"item": "i-1"})
		applog.Security(c, "access.denied.operator", nil)
		applog.Error(c, "orders.get.fail", errors.New("boom"), nil)
		return c.SendStatus(fiber.StatusNoContent)
	})
	_, err := app.Test(httptest.NewRequest("POST", "/x", nil))
	require.NoError(t, err)

	audit := logs.FilterMessage("inventory.record").All()
	require.Len(t, audit, 1)
	ctx := audit[0].ContextMap()
	assert.Equal(t, "audit", ctx["kind"])
	assert.Equal(t, "POST", ctx["method"])
	assert.Equal(t, "/x", ctx["path"])
	assert.NotEmpty(t, ctx["req_id"])
	assert.Equal(t, map[string]any{"item": "i-1"}, ctx["fields"])

	sec := logs.FilterMessage("access.denied.operator").All()
	require.Len(t, sec, 1)
	assert.Equal(t, zapcore.WarnLevel, sec[0].Level)

	fail := logs.FilterMessage("orders.get.fail").All()
	require.Len(t, fail, 1)
	assert.Equal(t, "boom", fail[0].ContextMap()["error"])
}

func TestMiddlewareLogsEveryRequest(t *testing.T) {
	logs := observe(t)

	app := fiber.New()
	app.Use(applog.Middleware())
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })

	_, err := app.Test(httptest.NewRequest("GET", "/healthz", nil))
	require.NoError(t, err)

	entries := logs.FilterMessage("http.request").All()
	require.Len(t, entries, 1)
	assert.EqualValues(t, 200, entries[0].ContextMap()["status"])
}
