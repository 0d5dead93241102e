package services

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"backoffice/internal/domain"
	"backoffice/internal/events"
	"backoffice/internal/ids"
	"backoffice/internal/metrics"
	"backoffice/internal/validate"
)

type InventoryService struct {
	Items   InventoryStore
	IDs     ids.Generator
	Now     func() time.Time
	Log     *zap.Logger
	Events  events.Publisher
	Metrics *metrics.Metrics

	// AllowNegative permits withdrawal movements. Zero is never accepted.
	AllowNegative bool
}

func NewInventoryService(items InventoryStore) *InventoryService {
	return &InventoryService{
		Items:         items,
		IDs:           ids.UUID{},
		Now:           utcNow,
		Log:           zap.NewNop(),
		Events:        events.Nop{},
		AllowNegative: true,
	}
}

type RecordedEvent struct {
	RecordID string    `json:"record_id"`
	ItemID   string    `json:"item_id"`
	Quantity int64     `json:"quantity"`
	At       time.Time `json:"at"`
}

func (s *InventoryService) CreateItem(ctx context.Context, name, description string) (domain.InventoryItem, error) {
	n, ok := validate.Name(name)
	if !ok {
		return domain.InventoryItem{}, domain.Invalid("item name is required")
	}
	d, ok := validate.Text(description)
	if !ok {
		return domain.InventoryItem{}, domain.Invalid("item description is too long")
	}
	it := domain.InventoryItem{ID: s.IDs.NewID(), Name: n, Description: d}
	if err := s.Items.CreateItem(ctx, it); err != nil {
		return domain.InventoryItem{}, err
	}
	return it, nil
}

func (s *InventoryService) GetItem(ctx context.Context, id string) (domain.InventoryItem, error) {
	return s.Items.GetItem(ctx, id)
}

func (s *InventoryService) ListItems(ctx context.Context) ([]domain.InventoryItem, error) {
	return s.Items.ListItems(ctx)
}

// Record appends one movement to an item's ledger.
func (s *InventoryService) Record(ctx context.Context, itemID string, quantity int64, notes string) (domain.InventoryRecord, error) {
	switch {
	case quantity == 0:
		return domain.InventoryRecord{}, domain.Invalid("quantity must not be zero")
	case quantity < 0 && !s.AllowNegative:
		return domain.InventoryRecord{}, domain.Invalid("quantity must be positive")
	}
	text, ok := validate.Text(notes)
	if !ok {
		return domain.InventoryRecord{}, domain.Invalid("notes are too long")
	}
	if _, err := s.Items.GetItem(ctx, itemID); err != nil {
		return domain.InventoryRecord{}, err
	}

	rec := domain.InventoryRecord{
		ID:              s.IDs.NewID(),
		InventoryItemID: itemID,
		Quantity:        quantity,
		Notes:           sql.Null[string]{V: text, Valid: text != ""},
		CreatedAt:       s.Now(),
	}
	if err := s.Items.AppendRecord(ctx, rec); err != nil {
		return domain.InventoryRecord{}, err
	}
	s.Metrics.InventoryRecorded(quantity)

	ev := events.Event{Type: events.InventoryRecorded, Key: itemID, Payload: RecordedEvent{
		RecordID: rec.ID, ItemID: itemID, Quantity: quantity, At: rec.CreatedAt,
	}}
	if err := s.Events.Publish(ctx, ev); err != nil {
		s.Log.Warn("event.publish.fail", zap.String("type", ev.Type), zap.String("item_id", itemID), zap.Error(err))
	}
	return rec, nil
}

// History returns the item's movements newest first.
func (s *InventoryService) History(ctx context.Context, itemID string) ([]domain.InventoryRecord, error) {
	if _, err := s.Items.GetItem(ctx, itemID); err != nil {
		return nil, err
	}
	return s.Items.Records(ctx, itemID)
}

// Total is the sum of the item's ledger, zero when it has no movements.
func (s *InventoryService) Total(ctx context.Context, itemID string) (int64, error) {
	if _, err := s.Items.GetItem(ctx, itemID); err != nil {
		return 0, err
	}
	return s.Items.Total(ctx, itemID)
}

func (s *InventoryService) Totals(ctx context.Context) ([]domain.ItemTotal, error) {
	return s.Items.Totals(ctx)
}
