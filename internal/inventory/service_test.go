package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-storefront/internal/apperr"
	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReserver struct {
	stock     map[int64]int
	reserved  map[int64]bool
	cancelled map[int64]bool
	calls     int
	err       error
}

func (f *fakeReserver) AlreadyReserved(_ context.Context, orderID int64, _ int) (bool, error) {
	return f.reserved[orderID], nil
}

func (f *fakeReserver) ReserveAll(_ context.Context, orderID int64, items []orders.ItemQty) (bool, []orders.StockRejectedDetail, error) {
	f.calls++
	if f.err != nil {
		return false, nil, f.err
	}
	if f.reserved[orderID] {
		return true, nil, nil
	}
	if f.cancelled[orderID] {
		return false, nil, fmt.Errorf("order %d is cancelled: %w", orderID, apperr.ErrConflict)
	}
	var short []orders.StockRejectedDetail
	for _, it := range items {
		if f.stock[it.VariantID] < it.Qty {
			short = append(short, orders.StockRejectedDetail{VariantID: it.VariantID, Required: it.Qty, Available: f.stock[it.VariantID]})
		}
	}
	if len(short) > 0 {
		return false, short, nil
	}
	for _, it := range items {
		f.stock[it.VariantID] -= it.Qty
	}
	f.reserved[orderID] = true
	return true, nil, nil
}

type fakeOrders struct {
	cancelled []int64
	err       error
}

func (f *fakeOrders) UpdateStatus(_ context.Context, id int64, from, to orders.Status, _ *string) error {
	if f.err != nil {
		return f.err
	}
	if from == orders.StatusPending && to == orders.StatusCancelled {
		f.cancelled = append(f.cancelled, id)
	}
	return nil
}

type capture struct {
	mu   sync.Mutex
	envs []orders.Envelope
}

func (c *capture) Publish(_, value []byte, _ ...kafkago.Header) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var env orders.Envelope
	_ = json.Unmarshal(value, &env)
	c.envs = append(c.envs, env)
}

func setup(t *testing.T, stock map[int64]int) (*Service, *fakeReserver, *fakeOrders, *capture, *capture) {
	t.Helper()
	mr := miniredis.RunT(t)
	res := &fakeReserver{stock: stock, reserved: map[int64]bool{}, cancelled: map[int64]bool{}}
	ord := &fakeOrders{}
	ok, rej := &capture{}, &capture{}
	return &Service{
		Reserver:       res,
		Orders:         ord,
		Redis:          redisx.New(mr.Addr()),
		ProducerOK:     ok,
		ProducerReject: rej,
		ServiceName:    "storefront-inventory",
	}, res, ord, ok, rej
}

func placedMessage(orderID int64, items ...orders.PlacedItem) kafkago.Message {
	env := orders.NewEnvelope(orders.EventOrderPlaced, "storefront-api", "trace-1", "ref",
		orders.OrderPlacedPayload{OrderID: orderID, Items: items})
	return kafkago.Message{
		Value:   kafkax.MustMarshal(env),
		Headers: kafkax.EventHeaders(env.EventType, env.EventVersion),
	}
}

func TestHandleOrderPlaced_Reserves(t *testing.T) {
	svc, res, ord, ok, rej := setup(t, map[int64]int{10: 5})
	m := placedMessage(1, orders.PlacedItem{VariantID: 10, Qty: 2})

	require.NoError(t, svc.HandleOrderPlaced(context.Background(), m))
	assert.Equal(t, 3, res.stock[10])
	require.Len(t, ok.envs, 1)
	assert.Equal(t, orders.EventStockReserved, ok.envs[0].EventType)
	assert.Equal(t, "trace-1", ok.envs[0].TraceID)
	assert.Empty(t, rej.envs)
	assert.Empty(t, ord.cancelled)

	// redelivery of the same event is ignored
	require.NoError(t, svc.HandleOrderPlaced(context.Background(), m))
	assert.Equal(t, 1, res.calls)
	assert.Len(t, ok.envs, 1)
}

func TestHandleOrderPlaced_ShortageCancelsOrder(t *testing.T) {
	svc, res, ord, ok, rej := setup(t, map[int64]int{10: 1})

	require.NoError(t, svc.HandleOrderPlaced(context.Background(), placedMessage(2, orders.PlacedItem{VariantID: 10, Qty: 3})))
	assert.Equal(t, 1, res.stock[10])
	assert.Equal(t, []int64{2}, ord.cancelled)
	assert.Empty(t, ok.envs)
	require.Len(t, rej.envs, 1)
	p, err := kafkax.UnwrapPayload[orders.StockRejectedPayload](rej.envs[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, "OUT_OF_STOCK", p.Reason)
	assert.Equal(t, []orders.StockRejectedDetail{{VariantID: 10, Required: 3, Available: 1}}, p.Details)
}

func TestHandleOrderPlaced_ShortageOnNonPendingOrder(t *testing.T) {
	svc, _, ord, _, rej := setup(t, map[int64]int{})
	ord.err = apperr.ErrConflict

	require.NoError(t, svc.HandleOrderPlaced(context.Background(), placedMessage(3, orders.PlacedItem{VariantID: 10, Qty: 1})))
	assert.Len(t, rej.envs, 1)
}

func TestHandleOrderPlaced_CancelledBeforeReserve(t *testing.T) {
	svc, res, ord, ok, rej := setup(t, map[int64]int{10: 5})
	res.cancelled[6] = true

	require.NoError(t, svc.HandleOrderPlaced(context.Background(), placedMessage(6, orders.PlacedItem{VariantID: 10, Qty: 2})))
	assert.Equal(t, 5, res.stock[10], "stock of a cancelled order is not taken")
	assert.False(t, res.reserved[6])
	assert.Empty(t, ok.envs)
	assert.Empty(t, rej.envs)
	assert.Empty(t, ord.cancelled)
}

func TestHandleOrderPlaced_StalePendingKeyIsProcessed(t *testing.T) {
	svc, res, _, ok, _ := setup(t, map[int64]int{10: 5})
	m := placedMessage(7, orders.PlacedItem{VariantID: 10, Qty: 1})
	var env orders.Envelope
	require.NoError(t, json.Unmarshal(m.Value, &env))
	dkey := fmt.Sprintf(redisx.KeyDedup, "inventory", env.EventID)
	require.NoError(t, svc.Redis.Set(context.Background(), dkey, "pending", 0).Err())

	require.NoError(t, svc.HandleOrderPlaced(context.Background(), m))
	assert.Equal(t, 4, res.stock[10])
	assert.Len(t, ok.envs, 1)
	done, err := redisx.IsDone(context.Background(), svc.Redis, dkey)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestHandleOrderPlaced_FailureAllowsRetry(t *testing.T) {
	svc, res, _, ok, _ := setup(t, map[int64]int{10: 5})
	res.err = errors.New("db down")
	m := placedMessage(4, orders.PlacedItem{VariantID: 10, Qty: 1})

	require.Error(t, svc.HandleOrderPlaced(context.Background(), m))
	res.err = nil
	require.NoError(t, svc.HandleOrderPlaced(context.Background(), m))
	assert.Len(t, ok.envs, 1)
}

func TestHandleOrderPlaced_IgnoresOtherEvents(t *testing.T) {
	svc, res, _, _, _ := setup(t, map[int64]int{})
	env := orders.NewEnvelope(orders.EventStockReserved, "x", "", "", orders.StockReservedPayload{OrderID: 1})
	m := kafkago.Message{Value: kafkax.MustMarshal(env), Headers: kafkax.EventHeaders(env.EventType, 1)}

	require.NoError(t, svc.HandleOrderPlaced(context.Background(), m))
	require.NoError(t, svc.HandleOrderPlaced(context.Background(), kafkago.Message{Value: []byte("{")}))
	assert.Zero(t, res.calls)
}

func TestHandleOrderPlaced_AlreadyReservedRepublishes(t *testing.T) {
	svc, res, _, ok, _ := setup(t, map[int64]int{10: 5})
	res.reserved[5] = true

	require.NoError(t, svc.HandleOrderPlaced(context.Background(), placedMessage(5, orders.PlacedItem{VariantID: 10, Qty: 1})))
	assert.Zero(t, res.calls)
	assert.Len(t, ok.envs, 1)
}
