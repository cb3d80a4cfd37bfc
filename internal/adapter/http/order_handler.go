package http

import (
	"net/http"

	"github.com/dstein131/Main/internal/adapter/http/middleware"
	domain "github.com/dstein131/Main/internal/entity"
	"github.com/dstein131/Main/internal/usecase"
	"github.com/gin-gonic/gin"
)

// OrderHandler serves the read model: settled and failed orders with their
// items, addons and payment record. Orders are write-once; there is no
// mutation surface here.
type OrderHandler struct {
	orders usecase.OrderRepo
}

func NewOrderHandler(orders usecase.OrderRepo) *OrderHandler {
	return &OrderHandler{orders: orders}
}

type orderAddonResp struct {
	AddonID   int64  `json:"addon_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
}

type orderItemResp struct {
	OrderItemID int64            `json:"order_item_id"`
	ServiceID   int64            `json:"service_id"`
	Title       string           `json:"title"`
	Quantity    int64            `json:"quantity"`
	UnitPrice   int64            `json:"unit_price"`
	TotalPrice  int64            `json:"total_price"`
	Addons      []orderAddonResp `json:"addons"`
}

type paymentResp struct {
	PaymentID string `json:"payment_id"`
	Method    string `json:"payment_method"`
	Status    string `json:"payment_status"`
	Amount    int64  `json:"amount"`
	PaidAt    string `json:"payment_date"`
}

type orderResp struct {
	OrderID         string          `json:"order_id"`
	Status          string          `json:"status"`
	TotalAmount     int64           `json:"total_amount"`
	Currency        string          `json:"currency"`
	PaymentIntentID string          `json:"payment_intent_id"`
	CreatedAt       string          `json:"created_at"`
	Items           []orderItemResp `json:"items"`
	Payment         *paymentResp    `json:"payment,omitempty"`
}

func orderResponse(o domain.Order) orderResp {
	resp := orderResp{
		OrderID:         o.ID,
		Status:          string(o.Status),
		TotalAmount:     o.Total.Cents,
		Currency:        o.Total.Currency,
		PaymentIntentID: o.PaymentIntentID,
		CreatedAt:       o.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		Items:           make([]orderItemResp, 0, len(o.Items)),
	}
	for _, it := range o.Items {
		item := orderItemResp{
			OrderItemID: it.ID,
			ServiceID:   it.ServiceID,
			Title:       it.Title,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TotalPrice:  it.TotalPrice,
			Addons:      make([]orderAddonResp, 0, len(it.Addons)),
		}
		for _, ad := range it.Addons {
			item.Addons = append(item.Addons, orderAddonResp{AddonID: ad.AddonID, Name: ad.Name, UnitPrice: ad.UnitPrice})
		}
		resp.Items = append(resp.Items, item)
	}
	if o.Payment != nil {
		resp.Payment = &paymentResp{
			PaymentID: o.Payment.ID,
			Method:    o.Payment.Method,
			Status:    o.Payment.Status,
			Amount:    o.Payment.Amount,
			PaidAt:    o.Payment.PaidAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
	}
	return resp
}

// GET /api/orders
func (h *OrderHandler) ListOrders(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	orders, err := h.orders.ListByUser(ctx, userID)
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]orderResp, 0, len(orders))
	for _, o := range orders {
		out = append(out, orderResponse(o))
	}
	c.JSON(http.StatusOK, gin.H{"orders": out})
}

// GET /api/orders/:order_id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	order, err := h.orders.GetByID(ctx, userID, c.Param("order_id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": orderResponse(*order)})
}
