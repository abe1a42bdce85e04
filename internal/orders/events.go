package orders

import (
	"encoding/json"
	"time"

	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

const (
	EventOrderPlaced   = "OrderPlaced"
	EventStockReserved = "StockReserved"
	EventStockRejected = "StockRejected"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order reference
	Payload       json.RawMessage `json:"payload"`
}

type ItemQty struct {
	VariantID int64 `json:"variant_id"`
	Qty       int   `json:"qty"`
}

type PlacedItem struct {
	VariantID   int64  `json:"variant_id"`
	Qty         int    `json:"qty"`
	UnitPrice   string `json:"unit_price"`
	ProductName string `json:"product_name"`
	Size        string `json:"size"`
	Color       string `json:"color"`
}

type OrderPlacedPayload struct {
	OrderID   int64        `json:"order_id"`
	Reference string       `json:"reference"`
	UserID    int64        `json:"user_id"`
	Items     []PlacedItem `json:"items"`
	Subtotal  string       `json:"subtotal"`
	Shipping  string       `json:"shipping"`
	Tax       string       `json:"tax"`
	Total     string       `json:"total"`
}

type StockReservedPayload struct {
	OrderID int64     `json:"order_id"`
	Items   []ItemQty `json:"items"`
}

type StockRejectedDetail struct {
	VariantID int64 `json:"variant_id"`
	Required  int   `json:"required"`
	Available int   `json:"available"`
}

type StockRejectedPayload struct {
	OrderID int64                 `json:"order_id"`
	Reason  string                `json:"reason"` // OUT_OF_STOCK
	Details []StockRejectedDetail `json:"details,omitempty"`
}

// Quantities drops prices from a placed payload.
func (p OrderPlacedPayload) Quantities() []ItemQty {
	out := make([]ItemQty, 0, len(p.Items))
	for _, it := range p.Items {
		out = append(out, ItemQty{VariantID: it.VariantID, Qty: it.Qty})
	}
	return out
}

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// NewEnvelope wraps payload in a v1 envelope with a fresh event id.
func NewEnvelope(eventType, producer, traceID, correlationID string, payload any) Envelope {
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: correlationID,
		Payload:       kafkax.MustMarshal(payload),
	}
}

// Emit publishes env keyed by order id. A nil publisher is a no-op.
func Emit(p Publisher, orderID int64, env Envelope) {
	if p == nil {
		return
	}
	p.Publish(PartitionKey(orderID), kafkax.MustMarshal(env), kafkax.EventHeaders(env.EventType, env.EventVersion)...)
}
