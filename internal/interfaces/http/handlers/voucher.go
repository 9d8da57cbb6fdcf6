// internal/interfaces/http/handlers/voucher.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/voucher"
)

// VoucherHandler handles voucher endpoints
type VoucherHandler struct {
	engine *voucher.Engine
	config *config.Config
}

// NewVoucherHandler creates a new voucher handler
func NewVoucherHandler(engine *voucher.Engine, cfg *config.Config) *VoucherHandler {
	return &VoucherHandler{
		engine: engine,
		config: cfg,
	}
}

// PreviewVoucher handles POST /vouchers/preview. It evaluates a code
// against a cart total without placing an order, so the storefront can
// show the discount before checkout.
func (h *VoucherHandler) PreviewVoucher(c *gin.Context) {
	var req struct {
		Code      string `json:"code" binding:"required"`
		CartTotal int64  `json:"cart_total" binding:"required,min=0"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.engine.Apply(req.Code, req.CartTotal)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Voucher evaluated",
		"data":    result,
	})
}

// CreateVoucher handles POST /admin/vouchers
func (h *VoucherHandler) CreateVoucher(c *gin.Context) {
	var req struct {
		Code     string              `json:"code" binding:"required"`
		Type     voucher.VoucherType `json:"type" binding:"required,oneof=percentage fixed shipping"`
		Discount int64               `json:"discount"`
		MinOrder int64               `json:"min_order"`
		IsActive *bool               `json:"is_active"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	v := &voucher.Voucher{
		Code:     req.Code,
		Type:     req.Type,
		Discount: req.Discount,
		MinOrder: req.MinOrder,
		IsActive: true,
	}
	if req.IsActive != nil {
		v.IsActive = *req.IsActive
	}

	if err := h.engine.CreateVoucher(v); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Voucher created successfully",
		"data":    v,
	})
}

// ListVouchers handles GET /admin/vouchers
func (h *VoucherHandler) ListVouchers(c *gin.Context) {
	vouchers, err := h.engine.ListVouchers()
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Vouchers retrieved successfully",
		"data":    vouchers,
	})
}
