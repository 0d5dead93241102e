// Package metrics holds the Prometheus collectors for the back office.
package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	reg *prometheus.Registry

	RequestCounter   *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	LabelRequests    *prometheus.CounterVec
	OrdersPrinted    prometheus.Counter
	OrdersSkipped    prometheus.Counter
	InventoryRecords *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		RequestCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		LabelRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backoffice_label_requests_total",
			Help: "Label provider calls by outcome",
		}, []string{"outcome"}),
		OrdersPrinted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backoffice_orders_printed_total",
			Help: "Orders moved to printed by confirmed print jobs",
		}),
		OrdersSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backoffice_orders_skipped_total",
			Help: "Snapshot orders skipped at confirm time because they were no longer eligible",
		}),
		InventoryRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backoffice_inventory_records_total",
			Help: "Ledger movements appended, by direction",
		}, []string{"direction"}),
	}
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RequestCounter, m.RequestDuration,
		m.LabelRequests, m.OrdersPrinted, m.OrdersSkipped, m.InventoryRecords,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) LabelRequest(err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.LabelRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) PrintConfirmed(printed, skipped int) {
	if m == nil {
		return
	}
	m.OrdersPrinted.Add(float64(printed))
	m.OrdersSkipped.Add(float64(skipped))
}

func (m *Metrics) InventoryRecorded(quantity int64) {
	if m == nil {
		return
	}
	direction := "in"
	if quantity < 0 {
		direction = "out"
	}
	m.InventoryRecords.WithLabelValues(direction).Inc()
}

// Middleware records request count and latency per route pattern.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		path := c.Route().Path
		statusStr := strconv.Itoa(status)
		m.RequestCounter.WithLabelValues(c.Method(), path, statusStr).Inc()
		m.RequestDuration.WithLabelValues(c.Method(), path, statusStr).Observe(time.Since(start).Seconds())
		return err
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{}))
}
