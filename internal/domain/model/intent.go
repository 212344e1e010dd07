package model

// Intent is the coarse category of a customer utterance.
type Intent string

const (
	IntentGreeting Intent = "greeting"
	IntentProduct  Intent = "product_query"
	IntentPolicy   Intent = "policy_query"
	IntentPrice    Intent = "price_query"
	IntentOrder    Intent = "order_query"
	IntentOther    Intent = "other"
)

// Intents lists every intent, used to pre-create metric series.
var Intents = []Intent{IntentGreeting, IntentProduct, IntentPolicy, IntentPrice, IntentOrder, IntentOther}

func (i Intent) String() string { return string(i) }
