package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/dstein131/Main/internal/adapter/http/middleware"
	"github.com/dstein131/Main/internal/logging"
	"github.com/dstein131/Main/internal/usecase"
	"github.com/gin-gonic/gin"
)

const (
	sigHeader       = "Stripe-Signature"
	maxWebhookBytes = 64 * 1024

	// Webhook handling must finish inside the provider's delivery timeout;
	// a slow settlement fails here and rides the provider's retry loop.
	webhookTimeout = 10 * time.Second

	createIntentTimeout = 10 * time.Second
)

// intentCreator and webhookProcessor let tests stand in for the use cases.
type intentCreator interface {
	Execute(ctx context.Context, in usecase.CreateIntentInput) (usecase.CreateIntentOutput, error)
}

type webhookProcessor interface {
	Execute(ctx context.Context, rawBody []byte, sigHeader string) error
}

type PaymentHandler struct {
	createIntent intentCreator
	processEvent webhookProcessor
}

func NewPaymentHandler(createIntent intentCreator, processEvent webhookProcessor) *PaymentHandler {
	return &PaymentHandler{createIntent: createIntent, processEvent: processEvent}
}

type createIntentReq struct {
	Currency string `json:"currency"`
	Items    []struct {
		ServiceID int64 `json:"service_id" binding:"required"`
		Quantity  int64 `json:"quantity"`
		Addons    []struct {
			AddonID int64 `json:"addon_id" binding:"required"`
		} `json:"addons"`
	} `json:"items" binding:"required"`
}

// POST /api/payments/create-intent
func (h *PaymentHandler) CreateIntent(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	var req createIntentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no items provided for payment"})
		return
	}

	in := usecase.CreateIntentInput{UserID: userID, Currency: req.Currency}
	for _, it := range req.Items {
		item := usecase.CheckoutItem{ServiceID: it.ServiceID, Quantity: it.Quantity}
		for _, ad := range it.Addons {
			item.AddonIDs = append(item.AddonIDs, ad.AddonID)
		}
		in.Items = append(in.Items, item)
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), createIntentTimeout)
	defer cancel()

	out, err := h.createIntent.Execute(ctx, in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"clientSecret": out.ClientSecret,
		"amount":       out.Amount,
		"currency":     out.Currency,
	})
}

// POST /api/payments/webhook
//
// The raw body is handed to signature verification untouched. 200 means the
// event is durably handled or a harmless duplicate; anything else tells the
// provider to redeliver.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	// MaxBytesReader rejects oversized bodies outright instead of truncating
	// them into a misleading signature failure.
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), webhookTimeout)
	defer cancel()

	if err := h.processEvent.Execute(ctx, body, c.GetHeader(sigHeader)); err != nil {
		logging.From(c).Error("webhook processing failed", "err", err)
		if errors.Is(err, usecase.ErrUnauthenticated) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "signature verification failed"})
			return
		}
		// Unacknowledged: the provider's retry loop redelivers.
		c.JSON(http.StatusInternalServerError, gin.H{"error": "event processing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
