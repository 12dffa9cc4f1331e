package events

// Topics emitted by the pricing service.
const (
	TopicQuoteComputed     = "pricing.quote_computed"
	TopicPurchaseCompleted = "pricing.purchase_completed"
	TopicRuleUseSettled    = "pricing.rule_use_settled"
)
