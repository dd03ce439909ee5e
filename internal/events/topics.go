package events

// Topic constants for domain events emitted by the settlement engine.
const (
	TopicSettlementCompleted = "settlement.completed"
	TopicStockDepleted       = "stock.depleted"
)

// DefaultTopics returns the canonical list of topics that support notifications.
func DefaultTopics() []string {
	return []string{
		TopicSettlementCompleted,
		TopicStockDepleted,
	}
}
