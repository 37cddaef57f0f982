package application

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogapp "github.com/nvalerio/storefront-api/internal/catalog/application"
	catalogdomain "github.com/nvalerio/storefront-api/internal/catalog/domain"
	"github.com/nvalerio/storefront-api/internal/order/domain"
	"github.com/nvalerio/storefront-api/pkg/logging"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fakeEvent struct {
	AggregateID int64
	Type        string
	Payload     []byte
}

// fakeStore is the committed state. The fake unit of work hands the service a
// shadow copy and copies it back only on success, which mirrors the
// commit/rollback contract of the real pgx implementation. The mutex stands
// in for the row locks: transactions never interleave.
type fakeStore struct {
	mu       sync.Mutex
	products map[int64]catalogdomain.Product
	orders   []domain.Order
	lines    []domain.Line
	events   []fakeEvent
	nextID   int64

	lockOrder      []int64
	failInsertLine bool
}

func newFakeStore(products ...catalogdomain.Product) *fakeStore {
	s := &fakeStore{products: map[int64]catalogdomain.Product{}, nextID: 1}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *fakeStore) clone() *fakeStore {
	c := &fakeStore{
		products:       make(map[int64]catalogdomain.Product, len(s.products)),
		orders:         append([]domain.Order{}, s.orders...),
		lines:          append([]domain.Line{}, s.lines...),
		events:         append([]fakeEvent{}, s.events...),
		nextID:         s.nextID,
		failInsertLine: s.failInsertLine,
	}
	for id, p := range s.products {
		c.products[id] = p
	}
	return c
}

type fakeUoW struct {
	store *fakeStore
}

func (u *fakeUoW) Do(ctx context.Context, fn func(tx OrderTx) error) error {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	shadow := u.store.clone()
	if err := fn(&fakeTx{store: shadow, root: u.store}); err != nil {
		return err
	}
	u.store.products = shadow.products
	u.store.orders = shadow.orders
	u.store.lines = shadow.lines
	u.store.events = shadow.events
	u.store.nextID = shadow.nextID
	return nil
}

type fakeTx struct {
	store *fakeStore
	root  *fakeStore // lock acquisitions are recorded outside the shadow
}

func (t *fakeTx) ProductForUpdate(ctx context.Context, productID int64) (catalogdomain.Product, error) {
	t.root.lockOrder = append(t.root.lockOrder, productID)
	p, ok := t.store.products[productID]
	if !ok {
		return catalogdomain.Product{}, catalogapp.ErrProductNotFound
	}
	return p, nil
}

func (t *fakeTx) InsertOrder(ctx context.Context, o *domain.Order) error {
	o.ID = t.store.nextID
	t.store.nextID++
	t.store.orders = append(t.store.orders, *o)
	return nil
}

func (t *fakeTx) InsertLine(ctx context.Context, l *domain.Line) error {
	if t.store.failInsertLine {
		return errors.New("insert line: connection reset")
	}
	l.ID = t.store.nextID
	t.store.nextID++
	t.store.lines = append(t.store.lines, *l)
	return nil
}

func (t *fakeTx) DecrementStock(ctx context.Context, productID int64, qty int) error {
	p, ok := t.store.products[productID]
	if !ok {
		return catalogapp.ErrProductNotFound
	}
	p.Stock -= qty
	if p.Stock < 0 {
		return errors.New("stock check constraint violated")
	}
	t.store.products[productID] = p
	return nil
}

func (t *fakeTx) AppendEvent(ctx context.Context, aggregateID int64, eventType string, payload []byte, traceparent string) error {
	t.store.events = append(t.store.events, fakeEvent{AggregateID: aggregateID, Type: eventType, Payload: payload})
	return nil
}

func newTestService(store *fakeStore) *Service {
	return NewService(logging.New(), &fakeUoW{store: store}, nil)
}

func productA() catalogdomain.Product {
	return catalogdomain.Product{ID: 1, Name: "Keyboard", Price: dec("10.00"), Stock: 5}
}

func productB() catalogdomain.Product {
	return catalogdomain.Product{ID: 2, Name: "Mouse pad", Price: dec("3.50"), Stock: 2}
}

func TestPlaceOrderSuccess(t *testing.T) {
	store := newFakeStore(productA(), productB())
	svc := newTestService(store)

	order, err := svc.PlaceOrder(context.Background(), 42, []LineRequest{
		{ProductID: 1, Quantity: 3},
		{ProductID: 2, Quantity: 2},
	})
	require.NoError(t, err)

	assert.True(t, order.TotalPrice.Equal(dec("37.00")), "total was %s", order.TotalPrice)
	assert.Equal(t, int64(42), order.UserID)
	require.Len(t, order.Lines, 2)
	assert.True(t, order.Lines[0].PriceAtPurchase.Equal(dec("10.00")))
	assert.True(t, order.Lines[1].PriceAtPurchase.Equal(dec("3.50")))

	assert.Equal(t, 2, store.products[1].Stock)
	assert.Equal(t, 0, store.products[2].Stock)
	assert.Len(t, store.orders, 1)
	assert.Len(t, store.lines, 2)
	require.Len(t, store.events, 1)

	var ev domain.OrderPlaced
	require.NoError(t, json.Unmarshal(store.events[0].Payload, &ev))
	assert.Equal(t, order.ID, ev.OrderID)
	assert.Len(t, ev.Lines, 2)
	assert.Equal(t, domain.EventOrderPlaced, store.events[0].Type)
}

func TestPlaceOrderInsufficientStock(t *testing.T) {
	store := newFakeStore(productA(), productB())
	svc := newTestService(store)

	before := store.clone()
	_, err := svc.PlaceOrder(context.Background(), 42, []LineRequest{
		{ProductID: 1, Quantity: 2},
		{ProductID: 2, Quantity: 3},
	})

	var noStock *InsufficientStockError
	require.ErrorAs(t, err, &noStock)
	assert.Equal(t, int64(2), noStock.ProductID)
	assert.Equal(t, "Mouse pad", noStock.Name)
	assert.Equal(t, 3, noStock.Requested)
	assert.Equal(t, 2, noStock.Available)

	// Nothing may have changed, including the product checked before the
	// failing one.
	assert.Equal(t, before.products, store.products)
	assert.Empty(t, store.orders)
	assert.Empty(t, store.lines)
	assert.Empty(t, store.events)
}

func TestPlaceOrderProductNotFound(t *testing.T) {
	store := newFakeStore(productA())
	svc := newTestService(store)

	_, err := svc.PlaceOrder(context.Background(), 42, []LineRequest{
		{ProductID: 1, Quantity: 1},
		{ProductID: 99, Quantity: 1},
	})

	var notFound *ProductNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, int64(99), notFound.ProductID)

	assert.Equal(t, 5, store.products[1].Stock)
	assert.Empty(t, store.orders)
	assert.Empty(t, store.events)
}

func TestPlaceOrderRollsBackOnPersistenceFailure(t *testing.T) {
	store := newFakeStore(productA(), productB())
	store.failInsertLine = true
	svc := newTestService(store)

	_, err := svc.PlaceOrder(context.Background(), 42, []LineRequest{
		{ProductID: 1, Quantity: 1},
		{ProductID: 2, Quantity: 1},
	})
	require.Error(t, err)

	assert.Equal(t, 5, store.products[1].Stock)
	assert.Equal(t, 2, store.products[2].Stock)
	assert.Empty(t, store.orders)
	assert.Empty(t, store.lines)
	assert.Empty(t, store.events)
}

func TestPlaceOrderEmptyRequest(t *testing.T) {
	svc := newTestService(newFakeStore(productA()))

	_, err := svc.PlaceOrder(context.Background(), 42, nil)
	assert.ErrorIs(t, err, ErrEmptyOrder)

	_, err = svc.PlaceOrder(context.Background(), 42, []LineRequest{{ProductID: 1, Quantity: 0}})
	assert.ErrorIs(t, err, ErrEmptyOrder)
}

func TestPlaceOrderDuplicateProductAggregatesQuantities(t *testing.T) {
	store := newFakeStore(productA())
	svc := newTestService(store)

	// Combined quantity 6 exceeds stock 5 even though each entry alone fits.
	_, err := svc.PlaceOrder(context.Background(), 42, []LineRequest{
		{ProductID: 1, Quantity: 3},
		{ProductID: 1, Quantity: 3},
	})
	var noStock *InsufficientStockError
	require.ErrorAs(t, err, &noStock)
	assert.Equal(t, 6, noStock.Requested)
	assert.Equal(t, 5, store.products[1].Stock)

	// Combined quantity 5 fits exactly and yields one line per entry.
	order, err := svc.PlaceOrder(context.Background(), 42, []LineRequest{
		{ProductID: 1, Quantity: 2},
		{ProductID: 1, Quantity: 3},
	})
	require.NoError(t, err)
	require.Len(t, order.Lines, 2)
	assert.Equal(t, 2, order.Lines[0].Quantity)
	assert.Equal(t, 3, order.Lines[1].Quantity)
	assert.True(t, order.Lines[0].PriceAtPurchase.Equal(order.Lines[1].PriceAtPurchase))
	assert.True(t, order.TotalPrice.Equal(dec("50.00")), "total was %s", order.TotalPrice)
	assert.Equal(t, 0, store.products[1].Stock)
}

func TestPlaceOrderLocksProductsInAscendingIDOrder(t *testing.T) {
	store := newFakeStore(productA(), productB())
	svc := newTestService(store)

	// Request order is descending; locks must still be taken ascending so
	// two opposite-order placements can never deadlock on each other's rows.
	order, err := svc.PlaceOrder(context.Background(), 42, []LineRequest{
		{ProductID: 2, Quantity: 1},
		{ProductID: 1, Quantity: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, store.lockOrder)

	// Line order still follows the request.
	require.Len(t, order.Lines, 2)
	assert.Equal(t, int64(2), order.Lines[0].ProductID)
	assert.Equal(t, int64(1), order.Lines[1].ProductID)
}

func TestPlaceOrderPriceSnapshotSurvivesCatalogChange(t *testing.T) {
	store := newFakeStore(productA())
	svc := newTestService(store)

	order, err := svc.PlaceOrder(context.Background(), 42, []LineRequest{{ProductID: 1, Quantity: 1}})
	require.NoError(t, err)

	p := store.products[1]
	p.Price = dec("99.99")
	store.products[1] = p

	assert.True(t, order.Lines[0].PriceAtPurchase.Equal(dec("10.00")))
	assert.True(t, store.lines[0].PriceAtPurchase.Equal(dec("10.00")))
}

func TestPlaceOrderConcurrentPlacementsNeverOversell(t *testing.T) {
	store := newFakeStore(productA()) // stock 5
	svc := newTestService(store)

	const quantity = 3 // 2*3 > 5: at most one may succeed
	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.PlaceOrder(context.Background(), 42, []LineRequest{{ProductID: 1, Quantity: quantity}})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, stockFailures int
	for err := range results {
		if err == nil {
			successes++
			continue
		}
		var noStock *InsufficientStockError
		require.ErrorAs(t, err, &noStock)
		stockFailures++
	}

	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, stockFailures)
	assert.Equal(t, 2, store.products[1].Stock)
	assert.Len(t, store.orders, 1)
}
