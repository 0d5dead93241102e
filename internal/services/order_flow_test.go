package services_test

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/domain"
	"backoffice/internal/events"
	"backoffice/internal/ids"
	"backoffice/internal/labels"
	"backoffice/internal/metrics"
	"backoffice/internal/repos"
	"backoffice/internal/services"
)

type env struct {
	db          *sqlx.DB
	catalog     *services.CatalogService
	orders      *services.OrderService
	fulfillment *services.FulfillmentService
	events      *events.Recorder
	labelCalls  int
	labelErr    error
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{db: memdb(t), events: &events.Recorder{}}
	clk := newClock()

	products := repos.NewProductRepo(e.db)
	orders := repos.NewOrderRepo(e.db)

	e.catalog = services.NewCatalogService(products)
	e.catalog.IDs = ids.NewSequence("prod")

	e.orders = services.NewOrderService(orders, products)
	e.orders.IDs = ids.NewSequence("order")
	e.orders.Now = clk.Now

	provider := labels.ProviderFunc(func(ctx context.Context, os []domain.Order) ([]domain.LabelBatch, error) {
		e.labelCalls++
		if e.labelErr != nil {
			return nil, e.labelErr
		}
		return labels.Staging{BaseURL: "https://labels.test", BatchSize: 2}.GenerateLabels(ctx, os)
	})
	e.fulfillment = services.NewFulfillmentService(orders, repos.NewPrintJobRepo(e.db), provider)
	e.fulfillment.IDs = ids.NewSequence("job")
	e.fulfillment.Now = clk.Now
	e.fulfillment.Events = e.events
	return e
}

func address(name string) domain.ShippingAddress {
	return domain.ShippingAddress{
		Name: name, Street1: "1 Main St", City: "Springfield", Province: "IL", Zip: "62701", Country: "US",
	}
}

func shirt(qty int) []domain.OrderItem {
	return []domain.OrderItem{{ProductName: "Shirt", VariantName: "Blue/M", Quantity: qty, UnitAmountCents: 1999}}
}

// labelled creates an order and assigns it a label so it is printable.
func (e *env) labelled(t *testing.T, name string) domain.Order {
	t.Helper()
	ctx := context.Background()
	o, err := e.orders.Create(ctx, "buyer@example.com", shirt(1), address(name))
	require.NoError(t, err)
	o, err = e.orders.AssignLabel(ctx, o.ID, "https://labels.test/"+o.ID+".pdf")
	require.NoError(t, err)
	return o
}

func TestOrder_ShirtTotal(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	p, err := e.catalog.CreateProduct(ctx, "Shirt", "cotton")
	require.NoError(t, err)
	_, err = e.catalog.AddVariant(ctx, p.ID, "Blue/M", 1999)
	require.NoError(t, err)

	o, err := e.orders.Create(ctx, "buyer@example.com", shirt(3), address("John Smith"))
	require.NoError(t, err)
	assert.Equal(t, int64(5997), o.TotalAmountCents())

	got, err := e.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5997), got.TotalAmountCents())
	assert.False(t, got.PrintedAt.Valid)
	assert.False(t, got.LabelURL.Valid)
	assert.False(t, got.TrackingURL.Valid)
}

func TestOrder_CreateValidation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	_, err := e.orders.Create(ctx, "buyer@example.com", nil, address("A"))
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = e.orders.Create(ctx, "buyer@example.com", shirt(0), address("A"))
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = e.orders.Create(ctx, "not-an-email", shirt(1), address("A"))
	assert.ErrorIs(t, err, domain.ErrValidation)
	addr := address("A")
	addr.Zip = ""
	_, err = e.orders.Create(ctx, "buyer@example.com", shirt(1), addr)
	assert.ErrorIs(t, err, domain.ErrValidation)

	page, err := e.orders.Search(ctx, "", 0, 0)
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestOrder_CreateRejectsOverflowingTotals(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	huge := []domain.OrderItem{{ProductName: "Shirt", VariantName: "Blue/M", Quantity: math.MaxInt64 / 1000, UnitAmountCents: 1999}}
	_, err := e.orders.Create(ctx, "buyer@example.com", huge, address("A"))
	assert.ErrorIs(t, err, domain.ErrValidation)

	// each line fits on its own, the sum does not
	half := domain.OrderItem{ProductName: "Shirt", VariantName: "Blue/M", Quantity: math.MaxInt64 / 2000, UnitAmountCents: 1999}
	_, err = e.orders.Create(ctx, "buyer@example.com", []domain.OrderItem{half, half}, address("A"))
	assert.ErrorIs(t, err, domain.ErrValidation)

	o, err := e.orders.Create(ctx, "buyer@example.com", []domain.OrderItem{half}, address("A"))
	require.NoError(t, err)
	assert.Positive(t, o.TotalAmountCents())

	page, err := e.orders.Search(ctx, "", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}

func TestOrder_SearchRejectsLongTerms(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	_, err := e.orders.Create(ctx, "buyer@example.com", shirt(1), address("ÉLODIE Müller"))
	require.NoError(t, err)

	_, err = e.orders.Search(ctx, strings.Repeat("a", 51), 0, 0)
	assert.ErrorIs(t, err, domain.ErrValidation)

	page, err := e.orders.Search(ctx, "élodie", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}

func TestOrder_DefaultLabelURL(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.orders.DefaultLabelURL = "https://labels.test/placeholder.pdf"

	o, err := e.orders.Create(ctx, "buyer@example.com", shirt(1), address("A"))
	require.NoError(t, err)
	assert.True(t, o.Printable())

	snap, err := e.fulfillment.SnapshotUnprinted(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{o.ID}, snap.OrderIDs())
}

func TestOrder_CreateFromCatalog(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	p, err := e.catalog.CreateProduct(ctx, "Shirt", "")
	require.NoError(t, err)
	blue, err := e.catalog.AddVariant(ctx, p.ID, "Blue/M", 1999)
	require.NoError(t, err)
	red, err := e.catalog.AddVariant(ctx, p.ID, "Red/L", 2499)
	require.NoError(t, err)

	o, err := e.orders.CreateFromCatalog(ctx, "buyer@example.com", []services.CatalogLine{
		{VariantID: blue.ID, Quantity: 2}, {VariantID: red.ID, Quantity: 0},
	}, address("A"))
	require.NoError(t, err)
	require.Len(t, o.Items, 1)
	assert.Equal(t, domain.OrderItem{ProductName: "Shirt", VariantName: "Blue/M", Quantity: 2, UnitAmountCents: 1999}, o.Items[0])

	// later catalog edits leave the order alone
	_, err = e.catalog.EditVariant(ctx, blue.ID, "Navy/M", 2999)
	require.NoError(t, err)
	got, err := e.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "Blue/M", got.Items[0].VariantName)
	assert.Equal(t, int64(3998), got.TotalAmountCents())

	_, err = e.orders.CreateFromCatalog(ctx, "buyer@example.com", []services.CatalogLine{{VariantID: red.ID}}, address("A"))
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = e.orders.CreateFromCatalog(ctx, "buyer@example.com", []services.CatalogLine{{VariantID: "ghost", Quantity: 1}}, address("A"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOrder_SearchSmith(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	smith, err := e.orders.Create(ctx, "john@example.com", shirt(1), address("John Smith"))
	require.NoError(t, err)
	_, err = e.orders.Create(ctx, "jane@example.com", shirt(1), address("Jane Doe"))
	require.NoError(t, err)

	page, err := e.orders.Search(ctx, "smith", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Orders, 1)
	assert.Equal(t, smith.ID, page.Orders[0].ID)

	page, err = e.orders.Search(ctx, "EXAMPLE.com", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
}

func TestOrder_SearchPagesInCreationOrder(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	var want []string
	for _, n := range []string{"A", "B", "C", "D", "E"} {
		o, err := e.orders.Create(ctx, "x@example.com", shirt(1), address(n))
		require.NoError(t, err)
		want = append(want, o.ID)
	}

	var got []string
	for off := 0; off < 5; off += 2 {
		page, err := e.orders.Search(ctx, "", off, 2)
		require.NoError(t, err)
		assert.Equal(t, 5, page.Total)
		for _, o := range page.Orders {
			got = append(got, o.ID)
		}
	}
	assert.Equal(t, want, got)

	e.orders.PageMax = 3
	page, err := e.orders.Search(ctx, "", -4, 50)
	require.NoError(t, err)
	assert.Len(t, page.Orders, 3)
}

func TestOrder_MarkPrintedIdempotent(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a := e.labelled(t, "A")
	b := e.labelled(t, "B")

	n, err := e.orders.MarkPrinted(ctx, []string{a.ID, b.ID, a.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	first, err := e.orders.Get(ctx, a.ID)
	require.NoError(t, err)

	n, err = e.orders.MarkPrinted(ctx, []string{a.ID, b.ID})
	require.NoError(t, err)
	assert.Zero(t, n)
	again, err := e.orders.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, first.PrintedAt, again.PrintedAt)
}

func TestOrder_MarkPrintedSkipsUnlabelled(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	o, err := e.orders.Create(ctx, "buyer@example.com", shirt(1), address("A"))
	require.NoError(t, err)

	n, err := e.orders.MarkPrinted(ctx, []string{o.ID, "ghost"})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOrder_LabelAfterPrintConflicts(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	o := e.labelled(t, "A")
	_, err := e.orders.MarkPrinted(ctx, []string{o.ID})
	require.NoError(t, err)

	_, err = e.orders.AssignLabel(ctx, o.ID, "https://labels.test/other.pdf")
	assert.ErrorIs(t, err, domain.ErrConflict)
	_, err = e.orders.AssignLabel(ctx, "ghost", "https://labels.test/other.pdf")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = e.orders.AssignLabel(ctx, o.ID, "ftp://nope")
	assert.ErrorIs(t, err, domain.ErrValidation)

	got, err := e.orders.SetTracking(ctx, o.ID, "https://track.test/1Z")
	require.NoError(t, err)
	assert.Equal(t, sql.Null[string]{V: "https://track.test/1Z", Valid: true}, got.TrackingURL)
}

func TestFulfillment_LateOrderNotSwept(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a := e.labelled(t, "A")
	b := e.labelled(t, "B")

	snap, err := e.fulfillment.SnapshotUnprinted(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, snap.OrderIDs())

	c := e.labelled(t, "C")

	res, err := e.fulfillment.ConfirmPrint(ctx, snap.OrderIDs())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Printed)
	assert.Zero(t, res.Skipped)

	for _, id := range []string{a.ID, b.ID} {
		o, err := e.orders.Get(ctx, id)
		require.NoError(t, err)
		assert.True(t, o.PrintedAt.Valid, id)
	}
	late, err := e.orders.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, late.Printable())
}

func TestFulfillment_ConfirmSkipsConcurrentlyPrinted(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a := e.labelled(t, "A")
	b := e.labelled(t, "B")

	snap, err := e.fulfillment.SnapshotUnprinted(ctx)
	require.NoError(t, err)

	_, err = e.orders.MarkPrinted(ctx, []string{a.ID})
	require.NoError(t, err)

	res, err := e.fulfillment.ConfirmPrint(ctx, snap.OrderIDs())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Printed)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, []string{a.ID}, res.SkippedIDs)

	got, err := e.orders.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, got.PrintedAt.Valid)
}

// racingOrders prints an order right after the confirm re-check has read it.
type racingOrders struct {
	services.OrderStore
	victim string
}

func (r *racingOrders) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	o, err := r.OrderStore.GetOrder(ctx, id)
	if err == nil && id == r.victim {
		_, err = r.OrderStore.MarkPrinted(ctx, []string{id}, o.CreatedAt)
	}
	return o, err
}

func TestFulfillment_ConfirmReportsOrdersLostToARace(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a := e.labelled(t, "A")
	b := e.labelled(t, "B")

	job, err := e.fulfillment.Prepare(ctx)
	require.NoError(t, err)

	e.fulfillment.Orders = &racingOrders{OrderStore: repos.NewOrderRepo(e.db), victim: a.ID}
	res, err := e.fulfillment.ConfirmPrint(ctx, job.OrderIDs)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Printed)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, []string{b.ID}, res.PrintedIDs)
	assert.Equal(t, []string{a.ID}, res.SkippedIDs)
}

func TestFulfillment_PrintedEventCarriesPrintedOrders(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a := e.labelled(t, "A")
	b := e.labelled(t, "B")

	job, err := e.fulfillment.Prepare(ctx)
	require.NoError(t, err)
	_, err = e.orders.MarkPrinted(ctx, []string{a.ID})
	require.NoError(t, err)

	done, err := e.fulfillment.Confirm(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, done.Printed)
	assert.Equal(t, 1, done.Skipped)

	evs := e.events.Events()
	require.Len(t, evs, 1)
	payload, ok := evs[0].Payload.(services.PrintedEvent)
	require.True(t, ok)
	assert.Equal(t, []string{b.ID}, payload.OrderIDs)
	assert.Equal(t, job.ID, payload.JobID)
}

func TestFulfillment_AggregateDemand(t *testing.T) {
	orders := []domain.Order{
		{Items: []domain.OrderItem{
			{ProductName: "Shirt", VariantName: "Blue/M", Quantity: 2},
			{ProductName: "Jeans", VariantName: "32x32", Quantity: 1},
		}},
		{Items: []domain.OrderItem{{ProductName: "Shirt", VariantName: "Blue/M", Quantity: 3}}},
	}
	demand := services.AggregateDemand(orders)
	assert.Equal(t, map[string]int{"Shirt - Blue/M": 5, "Jeans - 32x32": 1}, demand)
	assert.Equal(t, []services.DemandRow{{Key: "Jeans - 32x32", Quantity: 1}, {Key: "Shirt - Blue/M", Quantity: 5}},
		services.DemandRows(demand))
}

func TestFulfillment_ProviderFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.fulfillment.Metrics = metrics.New()
	a := e.labelled(t, "A")
	e.labelErr = errors.New("label bucket unavailable")

	_, err := e.fulfillment.Prepare(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExternalProvider)
	assert.Equal(t, 1, e.labelCalls)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.fulfillment.Metrics.LabelRequests.WithLabelValues("error")))

	got, err := e.orders.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.Printable())

	var jobs int
	require.NoError(t, e.db.Get(&jobs, `SELECT COUNT(*) FROM print_jobs`))
	assert.Zero(t, jobs)
}

func TestFulfillment_PrepareConfirm(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a := e.labelled(t, "A")
	b := e.labelled(t, "B")
	c := e.labelled(t, "C")

	job, err := e.fulfillment.Prepare(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PrintJobPending, job.Status)
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, job.OrderIDs)
	assert.Equal(t, []domain.LabelBatch{
		{Count: 2, URL: "https://labels.test/labels-1.pdf"},
		{Count: 1, URL: "https://labels.test/labels-2.pdf"},
	}, job.Labels)
	assert.Equal(t, 1, e.labelCalls)

	late := e.labelled(t, "D")

	done, err := e.fulfillment.Confirm(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PrintJobConfirmed, done.Status)
	assert.True(t, done.ResolvedAt.Valid)
	assert.Equal(t, 3, done.Printed)
	assert.Zero(t, done.Skipped)
	assert.Equal(t, 1, e.labelCalls)

	got, err := e.orders.Get(ctx, late.ID)
	require.NoError(t, err)
	assert.True(t, got.Printable())

	evs := e.events.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, events.OrdersPrinted, evs[0].Type)

	_, err = e.fulfillment.Confirm(ctx, job.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)
	_, err = e.fulfillment.Cancel(ctx, job.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestFulfillment_CancelLeavesOrders(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a := e.labelled(t, "A")

	job, err := e.fulfillment.Prepare(ctx)
	require.NoError(t, err)

	cancelled, err := e.fulfillment.Cancel(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PrintJobCancelled, cancelled.Status)

	got, err := e.orders.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.Printable())

	_, err = e.fulfillment.Confirm(ctx, job.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)
	_, err = e.fulfillment.Confirm(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFulfillment_PrepareWithNothingToPrint(t *testing.T) {
	e := newEnv(t)
	_, err := e.fulfillment.Prepare(context.Background())
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Zero(t, e.labelCalls)

	out, err := e.fulfillment.RequestLabels(context.Background(), services.Snapshot{})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Zero(t, e.labelCalls)
}

func TestFulfillment_UnprintedSummary(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.labelled(t, "A")
	e.labelled(t, "B")
	_, err := e.orders.Create(ctx, "buyer@example.com", shirt(4), address("no label"))
	require.NoError(t, err)

	sum, err := e.fulfillment.Unprinted(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Count)
	assert.Equal(t, []services.DemandRow{{Key: "Shirt - Blue/M", Quantity: 2}}, sum.Demand)
}
