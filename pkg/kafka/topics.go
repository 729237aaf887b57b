package kafka

const (
	TopicOrder           string = "order.events"
	TopicVendor          string = "vendor.events"
	TopicAssignment      string = "assignment.events"
	TopicNotifications   string = "notifications.events"
	TopicDeadLetterQueue string = "dlq.events"
)
