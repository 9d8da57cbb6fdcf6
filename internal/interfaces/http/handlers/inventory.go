// internal/interfaces/http/handlers/inventory.go
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/inventory"
	"github.com/your-org/storefront-backend/internal/interfaces/http/middleware"
)

// InventoryHandler handles stock management and stock alert endpoints
type InventoryHandler struct {
	inventoryService *inventory.Service
	config           *config.Config
}

// NewInventoryHandler creates a new inventory handler
func NewInventoryHandler(inventoryService *inventory.Service, cfg *config.Config) *InventoryHandler {
	return &InventoryHandler{
		inventoryService: inventoryService,
		config:           cfg,
	}
}

// AdjustStock handles PUT /admin/inventory/:id
func (h *InventoryHandler) AdjustStock(c *gin.Context) {
	adminID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "User not authenticated",
		})
		return
	}

	productID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req inventory.AdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	p, err := h.inventoryService.Adjust(productID, adminID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Stock adjusted successfully",
		"data":    p,
	})
}

// GetLowStock handles GET /admin/inventory/low-stock
func (h *InventoryHandler) GetLowStock(c *gin.Context) {
	threshold, err := strconv.Atoi(c.DefaultQuery("threshold", "10"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid threshold parameter",
		})
		return
	}

	items, err := h.inventoryService.LowStock(threshold)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Low stock items retrieved successfully",
		"data":    items,
	})
}

// GetMovements handles GET /admin/inventory/:id/movements
func (h *InventoryHandler) GetMovements(c *gin.Context) {
	productID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	movements, err := h.inventoryService.GetMovements(productID, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Stock movements retrieved successfully",
		"data":    movements,
	})
}

// SubscribeStockAlert handles POST /products/:id/stock-alert. The caller
// is notified by email when the product comes back in stock.
func (h *InventoryHandler) SubscribeStockAlert(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "User not authenticated",
		})
		return
	}

	productID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	email, ok := middleware.GetUserEmailFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "User not authenticated",
		})
		return
	}

	alert, err := h.inventoryService.Subscribe(userID, productID, email)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Stock alert subscription created",
		"data":    alert,
	})
}
