package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

// Reserver is satisfied by *orders.ReservationRepo.
type Reserver interface {
	AlreadyReserved(ctx context.Context, orderID int64, itemCount int) (bool, error)
	ReserveAll(ctx context.Context, orderID int64, items []orders.ItemQty) (bool, []orders.StockRejectedDetail, error)
}

// StatusUpdater is satisfied by *orders.Repo.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, id int64, from, to orders.Status, tracking *string) error
}

type Service struct {
	Reserver       Reserver
	Orders         StatusUpdater
	Redis          *redis.Client
	ProducerOK     orders.Publisher // order.stock.reserved
	ProducerReject orders.Publisher // order.stock.rejected
	ServiceName    string
}

// HandleOrderPlaced reserves stock for a newly placed order. An order that
// cannot be fully reserved is cancelled.
func (s *Service) HandleOrderPlaced(ctx context.Context, m kafkago.Message) error {
	if t := kafkax.HeaderValue(m, kafkax.HeaderEventType); t != "" && t != orders.EventOrderPlaced {
		return nil
	}
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		log.Printf("inventory: skip undecodable message at offset %d: %v", m.Offset, err)
		return nil
	}
	if env.EventType != orders.EventOrderPlaced {
		return nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, "inventory", env.EventID)
	done, err := redisx.IsDone(ctx, s.Redis, dkey)
	if err != nil {
		return err
	}
	if done {
		return nil
	}
	if err := s.handle(ctx, env); err != nil {
		return err
	}
	if err := redisx.MarkDone(context.WithoutCancel(ctx), s.Redis, dkey, redisx.TTLDedup); err != nil {
		log.Printf("inventory: mark event %s done: %v", env.EventID, err)
	}
	return nil
}

func (s *Service) handle(ctx context.Context, env orders.Envelope) error {
	p, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
	if err != nil {
		return err
	}
	items := p.Quantities()

	done, err := s.Reserver.AlreadyReserved(ctx, p.OrderID, len(items))
	if err != nil {
		return err
	}
	if done {
		s.publishReserved(p.OrderID, items, env.TraceID)
		return nil
	}

	ok, details, err := s.Reserver.ReserveAll(ctx, p.OrderID, items)
	if errors.Is(err, apperr.ErrConflict) || errors.Is(err, apperr.ErrNotFound) {
		log.Printf("inventory: skip reservation of order %d: %v", p.OrderID, err)
		return nil
	}
	if err != nil {
		return err
	}
	if ok {
		s.publishReserved(p.OrderID, items, env.TraceID)
		return nil
	}

	err = s.Orders.UpdateStatus(ctx, p.OrderID, orders.StatusPending, orders.StatusCancelled, nil)
	if err != nil && !errors.Is(err, apperr.ErrConflict) {
		return err
	}
	if err != nil {
		log.Printf("inventory: order %d out of stock but no longer pending", p.OrderID)
	}
	s.publishRejected(p.OrderID, details, env.TraceID)
	return nil
}

func (s *Service) publishReserved(orderID int64, items []orders.ItemQty, trace string) {
	orders.Emit(s.ProducerOK, orderID, orders.NewEnvelope(orders.EventStockReserved, s.ServiceName, trace,
		fmt.Sprint(orderID), orders.StockReservedPayload{OrderID: orderID, Items: items}))
}

func (s *Service) publishRejected(orderID int64, details []orders.StockRejectedDetail, trace string) {
	orders.Emit(s.ProducerReject, orderID, orders.NewEnvelope(orders.EventStockRejected, s.ServiceName, trace,
		fmt.Sprint(orderID), orders.StockRejectedPayload{OrderID: orderID, Reason: "OUT_OF_STOCK", Details: details}))
}
