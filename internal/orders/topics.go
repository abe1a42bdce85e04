package orders

import "strconv"

const (
	TopicOrderPlaced   = "order.placed"
	TopicStockReserved = "order.stock.reserved"
	TopicStockRejected = "order.stock.rejected"
)

// PartitionKey keeps every event of one order on the same partition, in order.
func PartitionKey(orderID int64) []byte { return []byte(strconv.FormatInt(orderID, 10)) }
