package usecase

// OrderSettledMsg rides the outbox to RabbitMQ after an order commits.
// Consumers use it to send the confirmation email.
type OrderSettledMsg struct {
	OrderID     string `json:"orderId"`
	UserID      int64  `json:"userId"`
	IntentID    string `json:"intentId"`
	AmountCents int64  `json:"amountCents"`
	Currency    string `json:"currency"`
}
