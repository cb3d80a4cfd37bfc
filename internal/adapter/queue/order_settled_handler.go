package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dstein131/Main/internal/adapter/email"
	"github.com/dstein131/Main/internal/usecase"
)

// OrderSettledHandler turns order.settled events into confirmation emails.
// This is the notification sink: it runs after the order is durable and a
// failure here only requeues the message, never touches the order.
type OrderSettledHandler struct {
	sender email.Sender
	to     string // order-notification mailbox
	log    *slog.Logger
}

func NewOrderSettledHandler(sender email.Sender, to string, log *slog.Logger) *OrderSettledHandler {
	return &OrderSettledHandler{sender: sender, to: to, log: log}
}

// HandleSettled is used with queue.JSONHandler[usecase.OrderSettledMsg].
func (h *OrderSettledHandler) HandleSettled(ctx context.Context, msg usecase.OrderSettledMsg) error {
	subject := fmt.Sprintf("Order %s confirmed", msg.OrderID)
	html := fmt.Sprintf(
		`<p>Order <strong>%s</strong> for user %d settled.</p>
<p>Amount: %d %s (intent %s)</p>`,
		msg.OrderID, msg.UserID, msg.AmountCents, msg.Currency, msg.IntentID,
	)

	if err := h.sender.Send(ctx, h.to, subject, html); err != nil {
		h.log.Error("confirmation email failed", "order_id", msg.OrderID, "err", err)
		return err
	}
	h.log.Info("confirmation email sent", "order_id", msg.OrderID)
	return nil
}
