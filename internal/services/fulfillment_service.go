package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"backoffice/internal/domain"
	"backoffice/internal/events"
	"backoffice/internal/ids"
	"backoffice/internal/labels"
	"backoffice/internal/metrics"
)

// FulfillmentService runs the two-phase print cycle: snapshot the printable
// orders, have labels generated for them, then confirm exactly that snapshot.
type FulfillmentService struct {
	Orders  OrderStore
	Jobs    PrintJobStore
	Labels  labels.Provider
	IDs     ids.Generator
	Now     func() time.Time
	Log     *zap.Logger
	Events  events.Publisher
	Metrics *metrics.Metrics
}

func NewFulfillmentService(orders OrderStore, jobs PrintJobStore, provider labels.Provider) *FulfillmentService {
	return &FulfillmentService{
		Orders: orders,
		Jobs:   jobs,
		Labels: provider,
		IDs:    ids.UUID{},
		Now:    utcNow,
		Log:    zap.NewNop(),
		Events: events.Nop{},
	}
}

// Snapshot is the set of printable orders at TakenAt.
type Snapshot struct {
	TakenAt time.Time
	Orders  []domain.Order
}

func (s Snapshot) OrderIDs() []string {
	out := make([]string, 0, len(s.Orders))
	for _, o := range s.Orders {
		out = append(out, o.ID)
	}
	return out
}

type DemandRow struct {
	Key      string
	Quantity int
}

type UnprintedSummary struct {
	Count  int
	Demand []DemandRow
}

type ConfirmResult struct {
	Printed    int
	Skipped    int
	PrintedIDs []string
	SkippedIDs []string
}

type PrintedEvent struct {
	JobID    string    `json:"job_id"`
	OrderIDs []string  `json:"order_ids"`
	Printed  int       `json:"printed"`
	Skipped  int       `json:"skipped"`
	At       time.Time `json:"at"`
}

func (s *FulfillmentService) SnapshotUnprinted(ctx context.Context) (Snapshot, error) {
	at := s.Now()
	orders, err := s.Orders.ListUnprinted(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{TakenAt: at, Orders: orders}, nil
}

// AggregateDemand sums quantities per "product - variant" across orders.
// Distinct variants sharing both names fold into one key.
func AggregateDemand(orders []domain.Order) map[string]int {
	out := map[string]int{}
	for _, o := range orders {
		for _, it := range o.Items {
			out[fmt.Sprintf("%s - %s", it.ProductName, it.VariantName)] += it.Quantity
		}
	}
	return out
}

// DemandRows returns the aggregate sorted by key.
func DemandRows(demand map[string]int) []DemandRow {
	out := make([]DemandRow, 0, len(demand))
	for k, q := range demand {
		out = append(out, DemandRow{Key: k, Quantity: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (s *FulfillmentService) Unprinted(ctx context.Context) (UnprintedSummary, error) {
	snap, err := s.SnapshotUnprinted(ctx)
	if err != nil {
		return UnprintedSummary{}, err
	}
	return UnprintedSummary{Count: len(snap.Orders), Demand: DemandRows(AggregateDemand(snap.Orders))}, nil
}

// RequestLabels calls the provider once for the snapshot. It writes nothing.
func (s *FulfillmentService) RequestLabels(ctx context.Context, snap Snapshot) ([]domain.LabelBatch, error) {
	if len(snap.Orders) == 0 {
		return nil, nil
	}
	ctx, span := tracer.Start(ctx, "fulfillment.request_labels",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int("orders.count", len(snap.Orders))))
	defer span.End()

	out, err := s.Labels.GenerateLabels(ctx, snap.Orders)
	s.Metrics.LabelRequest(err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "label generation failed")
		return nil, domain.ProviderFailure(err)
	}
	return out, nil
}

// ConfirmPrint re-reads every order in orderIDs and stamps only those still
// printable. Orders that vanished or were printed meanwhile are skipped and
// counted; orders outside orderIDs are never touched.
func (s *FulfillmentService) ConfirmPrint(ctx context.Context, orderIDs []string) (ConfirmResult, error) {
	ctx, span := tracer.Start(ctx, "fulfillment.confirm_print")
	defer span.End()

	orderIDs = unique(orderIDs)
	var res ConfirmResult
	eligible := make([]string, 0, len(orderIDs))
	for _, id := range orderIDs {
		o, err := s.Orders.GetOrder(ctx, id)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			res.SkippedIDs = append(res.SkippedIDs, id)
			s.Log.Warn("fulfillment.confirm.skip", zap.String("order_id", id), zap.String("reason", "missing"))
			continue
		case err != nil:
			span.RecordError(err)
			return ConfirmResult{}, err
		}
		if !o.Printable() {
			res.SkippedIDs = append(res.SkippedIDs, id)
			s.Log.Warn("fulfillment.confirm.skip", zap.String("order_id", id),
				zap.Error(domain.Conflict("order %q is no longer eligible for printing", id)))
			continue
		}
		eligible = append(eligible, id)
	}

	printed, err := s.Orders.MarkPrinted(ctx, eligible, s.Now())
	if err != nil {
		span.RecordError(err)
		return ConfirmResult{}, err
	}
	// an eligible order can still lose the race to another confirm
	stamped := make(map[string]bool, len(printed))
	for _, id := range printed {
		stamped[id] = true
	}
	for _, id := range eligible {
		if stamped[id] {
			res.PrintedIDs = append(res.PrintedIDs, id)
			continue
		}
		res.SkippedIDs = append(res.SkippedIDs, id)
		s.Log.Warn("fulfillment.confirm.skip", zap.String("order_id", id), zap.String("reason", "printed concurrently"))
	}
	res.Printed = len(res.PrintedIDs)
	res.Skipped = len(orderIDs) - res.Printed
	span.SetAttributes(attribute.Int("orders.printed", res.Printed), attribute.Int("orders.skipped", res.Skipped))
	return res, nil
}

// Prepare snapshots the printable orders, requests their labels and stores
// both as a pending print job. A provider failure leaves no job behind.
func (s *FulfillmentService) Prepare(ctx context.Context) (domain.PrintJob, error) {
	ctx, span := tracer.Start(ctx, "fulfillment.prepare")
	defer span.End()

	snap, err := s.SnapshotUnprinted(ctx)
	if err != nil {
		return domain.PrintJob{}, err
	}
	if len(snap.Orders) == 0 {
		return domain.PrintJob{}, domain.Conflict("no orders are waiting to be printed")
	}
	batches, err := s.RequestLabels(ctx, snap)
	if err != nil {
		s.Log.Error("fulfillment.labels.fail", zap.Int("orders", len(snap.Orders)), zap.Error(err))
		return domain.PrintJob{}, err
	}

	job := domain.PrintJob{
		ID:        s.IDs.NewID(),
		Status:    domain.PrintJobPending,
		OrderIDs:  snap.OrderIDs(),
		Labels:    batches,
		CreatedAt: snap.TakenAt,
	}
	if err := s.Jobs.CreatePrintJob(ctx, job); err != nil {
		return domain.PrintJob{}, err
	}
	span.SetAttributes(attribute.String("print_job.id", job.ID))
	s.Log.Info("fulfillment.prepare", zap.String("job_id", job.ID), zap.Int("orders", len(job.OrderIDs)),
		zap.Int("documents", len(job.Labels)))
	return job, nil
}

// Confirm claims a pending job and prints its snapshot. A second confirm, or
// a confirm after cancel, is a conflict.
func (s *FulfillmentService) Confirm(ctx context.Context, jobID string) (domain.PrintJob, error) {
	ctx, span := tracer.Start(ctx, "fulfillment.confirm")
	defer span.End()
	span.SetAttributes(attribute.String("print_job.id", jobID))

	job, err := s.Jobs.GetPrintJob(ctx, jobID)
	if err != nil {
		return domain.PrintJob{}, err
	}
	if err := s.Jobs.ResolvePrintJob(ctx, jobID, domain.PrintJobConfirmed, s.Now()); err != nil {
		return domain.PrintJob{}, err
	}

	res, err := s.ConfirmPrint(ctx, job.OrderIDs)
	if err != nil {
		span.SetStatus(codes.Error, "confirm print failed")
		return domain.PrintJob{}, err
	}
	if err := s.Jobs.RecordPrintResult(ctx, jobID, res.Printed, res.Skipped); err != nil {
		return domain.PrintJob{}, err
	}
	s.Metrics.PrintConfirmed(res.Printed, res.Skipped)
	s.Log.Info("fulfillment.confirm", zap.String("job_id", jobID), zap.Int("printed", res.Printed),
		zap.Int("skipped", res.Skipped), zap.Strings("skipped_ids", res.SkippedIDs))

	ev := events.Event{Type: events.OrdersPrinted, Key: jobID, Payload: PrintedEvent{
		JobID: jobID, OrderIDs: res.PrintedIDs, Printed: res.Printed, Skipped: res.Skipped, At: s.Now(),
	}}
	if err := s.Events.Publish(ctx, ev); err != nil {
		s.Log.Warn("event.publish.fail", zap.String("type", ev.Type), zap.String("job_id", jobID), zap.Error(err))
	}
	return s.Jobs.GetPrintJob(ctx, jobID)
}

// Cancel discards a pending job. Orders are not touched and the generated
// labels are abandoned.
func (s *FulfillmentService) Cancel(ctx context.Context, jobID string) (domain.PrintJob, error) {
	if err := s.Jobs.ResolvePrintJob(ctx, jobID, domain.PrintJobCancelled, s.Now()); err != nil {
		return domain.PrintJob{}, err
	}
	s.Log.Info("fulfillment.cancel", zap.String("job_id", jobID))
	return s.Jobs.GetPrintJob(ctx, jobID)
}

func (s *FulfillmentService) GetJob(ctx context.Context, jobID string) (domain.PrintJob, error) {
	return s.Jobs.GetPrintJob(ctx, jobID)
}
