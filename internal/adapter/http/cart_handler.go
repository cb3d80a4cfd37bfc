package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/dstein131/Main/internal/adapter/http/middleware"
	domain "github.com/dstein131/Main/internal/entity"
	"github.com/dstein131/Main/internal/usecase"
	"github.com/gin-gonic/gin"
)

type CartHandler struct {
	carts *usecase.CartService
}

func NewCartHandler(carts *usecase.CartService) *CartHandler {
	return &CartHandler{carts: carts}
}

type cartAddonResp struct {
	AddonID   int64  `json:"addon_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
}

type cartItemResp struct {
	CartItemID int64           `json:"cart_item_id"`
	ServiceID  int64           `json:"service_id"`
	Title      string          `json:"title"`
	Quantity   int64           `json:"quantity"`
	UnitPrice  int64           `json:"unit_price"`
	Addons     []cartAddonResp `json:"addons"`
}

func cartResponse(snap domain.CartSnapshot) gin.H {
	items := make([]cartItemResp, 0, len(snap.Items))
	for _, it := range snap.Items {
		addons := make([]cartAddonResp, 0, len(it.Addons))
		for _, ad := range it.Addons {
			addons = append(addons, cartAddonResp{AddonID: ad.AddonID, Name: ad.Name, UnitPrice: ad.UnitPrice})
		}
		items = append(items, cartItemResp{
			CartItemID: it.ID,
			ServiceID:  it.ServiceID,
			Title:      it.Title,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
			Addons:     addons,
		})
	}
	return gin.H{"cart_id": snap.CartID, "items": items}
}

// GET /api/cart
func (h *CartHandler) GetCart(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	snap, err := h.carts.Snapshot(ctx, userID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cartResponse(snap))
}

type addItemReq struct {
	ServiceID int64 `json:"service_id" binding:"required"`
	Quantity  int64 `json:"quantity"`
	Addons    []struct {
		AddonID int64 `json:"addon_id" binding:"required"`
	} `json:"addons"`
}

// POST /api/cart/items
func (h *CartHandler) AddItem(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	var req addItemReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "service_id is required"})
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	in := usecase.AddItemInput{UserID: userID, ServiceID: req.ServiceID, Quantity: req.Quantity}
	for _, ad := range req.Addons {
		in.AddonIDs = append(in.AddonIDs, ad.AddonID)
	}

	itemID, err := h.carts.AddItem(ctx, in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"cart_item_id": itemID})
}

type updateQuantityReq struct {
	Quantity int64 `json:"quantity" binding:"required"`
}

// PUT /api/cart/items/:cart_item_id
func (h *CartHandler) UpdateQuantity(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	itemID, err := strconv.ParseInt(c.Param("cart_item_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cart item id"})
		return
	}
	var req updateQuantityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity must be at least 1"})
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.carts.UpdateQuantity(ctx, userID, itemID, req.Quantity); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "cart item quantity updated"})
}

// DELETE /api/cart/items/:cart_item_id
func (h *CartHandler) RemoveItem(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	itemID, err := strconv.ParseInt(c.Param("cart_item_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cart item id"})
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.carts.RemoveItem(ctx, userID, itemID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "cart item removed"})
}

// DELETE /api/cart
func (h *CartHandler) Clear(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.carts.Clear(ctx, userID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "cart cleared"})
}

func reqCtx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), 3*time.Second)
}
