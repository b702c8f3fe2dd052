package events

// Topic constants for domain events emitted by the platform.
const (
	TopicRateChanged     = "rates.changed"
	TopicRateDeleted     = "rates.deleted"
	TopicRatesWiped      = "rates.wiped"
	TopicRatesImported   = "rates.imported"
	TopicOrderFinalized  = "order.finalized"
	TopicRenewalComplete = "billing.renewal_complete"
)
