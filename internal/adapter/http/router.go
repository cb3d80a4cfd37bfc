package http

import (
	"github.com/dstein131/Main/internal/adapter/http/middleware"
	"github.com/dstein131/Main/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(cart *CartHandler, pay *PaymentHandler, orders *OrderHandler, authn *middleware.Authn) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.MetricsMiddleware())

	l := logging.New("http")
	r.Use(middleware.Logging(l))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})
	// Prometheus endpoint (scraped by Prometheus)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		// Provider-authenticated via its signature header, not a user token.
		api.POST("/payments/webhook", pay.Webhook)

		auth := api.Group("", authn.RequireUser())
		{
			auth.POST("/payments/create-intent", pay.CreateIntent)

			auth.GET("/cart", cart.GetCart)
			auth.POST("/cart/items", cart.AddItem)
			auth.PUT("/cart/items/:cart_item_id", cart.UpdateQuantity)
			auth.DELETE("/cart/items/:cart_item_id", cart.RemoveItem)
			auth.DELETE("/cart", cart.Clear)

			auth.GET("/orders", orders.ListOrders)
			auth.GET("/orders/:order_id", orders.GetOrder)
		}
	}

	return r
}
