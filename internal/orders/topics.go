package orders

const (
	TopicOrderReserved = "orders.reserved"
)

// Partition key = order id, so every event for one order keeps its order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
