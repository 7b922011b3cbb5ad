package events

// Topic constants for domain events emitted by the ledger.
const (
	TopicTransactionCompleted = "transaction.completed"
	TopicRefundCompleted      = "refund.completed"
	TopicProductCreated       = "product.created"
	TopicProductUpdated       = "product.updated"
	TopicProductDeleted       = "product.deleted"
)

// DefaultTopics returns the canonical list of topics that support notifications.
func DefaultTopics() []string {
	return []string{
		TopicTransactionCompleted,
		TopicRefundCompleted,
		TopicProductCreated,
		TopicProductUpdated,
		TopicProductDeleted,
	}
}
