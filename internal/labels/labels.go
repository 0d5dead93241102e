// Package labels talks to the shipping-label generator.
package labels

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"backoffice/internal/domain"
)

// Provider turns a set of orders into label documents. Calls are not assumed
// to be idempotent.
type Provider interface {
	GenerateLabels(ctx context.Context, orders []domain.Order) ([]domain.LabelBatch, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, orders []domain.Order) ([]domain.LabelBatch, error)

func (f ProviderFunc) GenerateLabels(ctx context.Context, orders []domain.Order) ([]domain.LabelBatch, error) {
	return f(ctx, orders)
}

// Staging batches orders into fixed-size documents under BaseURL without
// calling anything. Used when no provider endpoint is configured.
type Staging struct {
	BaseURL   string
	BatchSize int
}

func (s Staging) GenerateLabels(ctx context.Context, orders []domain.Order) ([]domain.LabelBatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	size := s.BatchSize
	if size <= 0 {
		size = 1
	}
	var out []domain.LabelBatch
	for i := 0; i < len(orders); i += size {
		n := min(size, len(orders)-i)
		out = append(out, domain.LabelBatch{
			Count: n,
			URL:   fmt.Sprintf("%s/labels-%d.pdf", s.BaseURL, len(out)+1),
		})
	}
	return out, nil
}

// HTTP posts the orders to a label service and expects a JSON array of
// {count, url} back.
type HTTP struct {
	Endpoint string
	Client   *http.Client
}

type labelAddress struct {
	Name     string  `json:"name"`
	Street1  string  `json:"street1"`
	Street2  *string `json:"street2,omitempty"`
	City     string  `json:"city"`
	Province string  `json:"province"`
	Zip      string  `json:"zip"`
	Country  string  `json:"country"`
	Phone    *string `json:"phone,omitempty"`
}

type labelOrder struct {
	ID       string       `json:"id"`
	LabelURL string       `json:"label_url"`
	Address  labelAddress `json:"address"`
	Items    int          `json:"items"`
}

func (h HTTP) GenerateLabels(ctx context.Context, orders []domain.Order) ([]domain.LabelBatch, error) {
	req := struct {
		Orders []labelOrder `json:"orders"`
	}{Orders: make([]labelOrder, 0, len(orders))}
	for _, o := range orders {
		a := o.ShippingAddress
		la := labelAddress{Name: a.Name, Street1: a.Street1, City: a.City, Province: a.Province, Zip: a.Zip, Country: a.Country}
		if a.Street2.Valid {
			la.Street2 = &a.Street2.V
		}
		if a.Phone.Valid {
			la.Phone = &a.Phone.V
		}
		items := 0
		for _, it := range o.Items {
			items += it.Quantity
		}
		req.Orders = append(req.Orders, labelOrder{ID: o.ID, LabelURL: o.LabelURL.V, Address: la, Items: items})
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("label service returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	var out []domain.LabelBatch
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode label response: %w", err)
	}
	return out, nil
}

// Guarded bounds each attempt with Timeout and retries at most Retries times
// (capped at one). Cancellation of the parent context is never retried.
type Guarded struct {
	Next    Provider
	Timeout time.Duration
	Retries int
	Log     *zap.Logger
}

func (g Guarded) GenerateLabels(ctx context.Context, orders []domain.Order) ([]domain.LabelBatch, error) {
	retries := min(max(g.Retries, 0), 1)
	log := g.Log
	if log == nil {
		log = zap.NewNop()
	}

	var errs []error
	for attempt := 0; attempt <= retries; attempt++ {
		out, err := g.attempt(ctx, orders)
		if err == nil {
			return out, nil
		}
		errs = append(errs, fmt.Errorf("attempt %d: %w", attempt+1, err))
		log.Warn("labels.generate.fail", zap.Int("attempt", attempt+1), zap.Int("orders", len(orders)), zap.Error(err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, errors.Join(errs...)
}

func (g Guarded) attempt(ctx context.Context, orders []domain.Order) ([]domain.LabelBatch, error) {
	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}
	return g.Next.GenerateLabels(ctx, orders)
}
