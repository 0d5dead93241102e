package handlers

import (
	"github.com/jmoiron/sqlx"

	"backoffice/internal/config"
	"backoffice/internal/events"
	"backoffice/internal/labels"
	applog "backoffice/internal/log"
	"backoffice/internal/metrics"
	"backoffice/internal/repos"
	"backoffice/internal/services"
)

type Deps struct {
	InventoryHandler   *InventoryHandler
	ProductHandler     *ProductHandler
	OrderHandler       *OrderHandler
	FulfillmentHandler *FulfillmentHandler
}

// NewDeps wires repos and services over db. A nil publisher drops events and
// nil metrics disables the domain counters.
func NewDeps(db *sqlx.DB, cfg config.Config, provider labels.Provider, pub events.Publisher, m *metrics.Metrics) *Deps {
	if pub == nil {
		pub = events.Nop{}
	}
	invRepo := repos.NewInventoryRepo(db)
	prodRepo := repos.NewProductRepo(db)
	orderRepo := repos.NewOrderRepo(db)
	jobRepo := repos.NewPrintJobRepo(db)

	invSvc := services.NewInventoryService(invRepo)
	invSvc.AllowNegative = cfg.LedgerAllowNegative
	invSvc.Log = applog.L()
	invSvc.Events = pub
	invSvc.Metrics = m

	catalogSvc := services.NewCatalogService(prodRepo)

	orderSvc := services.NewOrderService(orderRepo, prodRepo)
	orderSvc.DefaultLabelURL = cfg.DefaultLabelURL
	orderSvc.Log = applog.L()
	if cfg.OrderPageSize > 0 {
		orderSvc.PageSize = cfg.OrderPageSize
	}
	if cfg.OrderPageMax > 0 {
		orderSvc.PageMax = cfg.OrderPageMax
	}

	fulfillSvc := services.NewFulfillmentService(orderRepo, jobRepo, provider)
	fulfillSvc.Log = applog.L()
	fulfillSvc.Events = pub
	fulfillSvc.Metrics = m

	return &Deps{
		InventoryHandler:   &InventoryHandler{Inv: invSvc},
		ProductHandler:     &ProductHandler{Catalog: catalogSvc},
		OrderHandler:       &OrderHandler{Orders: orderSvc},
		FulfillmentHandler: &FulfillmentHandler{Fulfillment: fulfillSvc},
	}
}

// LabelProvider picks the HTTP provider when an endpoint is configured and the
// staging provider otherwise, bounded by the configured timeout and retry.
func LabelProvider(cfg config.Config) labels.Provider {
	var p labels.Provider = labels.Staging{BaseURL: cfg.LabelBaseURL, BatchSize: cfg.LabelBatchSize}
	if cfg.LabelProviderURL != "" {
		p = labels.HTTP{Endpoint: cfg.LabelProviderURL}
	}
	return labels.Guarded{Next: p, Timeout: cfg.LabelTimeout, Retries: cfg.LabelRetries, Log: applog.L()}
}
