// internal/interfaces/http/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/domain/inventory"
	"github.com/your-org/storefront-backend/internal/domain/order"
	"github.com/your-org/storefront-backend/internal/domain/product"
	"github.com/your-org/storefront-backend/internal/domain/user"
	"github.com/your-org/storefront-backend/internal/domain/voucher"
	"github.com/your-org/storefront-backend/internal/interfaces/http/handlers"
	"github.com/your-org/storefront-backend/internal/interfaces/http/middleware"
	"github.com/your-org/storefront-backend/internal/pkg/email"
	"github.com/your-org/storefront-backend/internal/pkg/invoice"
	"gorm.io/gorm"
)

// SetupRoutes wires all services and registers every API route. The order
// sequence reads the last persisted order number, so migrations must have
// run before this is called.
func SetupRoutes(rg *gin.RouterGroup, db *gorm.DB, redisClient *redis.Client, log *logrus.Logger, cfg *config.Config) error {
	emailService := email.NewService(cfg, log)

	userService := user.NewService(db, cfg)
	productService := product.NewService(db, cfg)
	reviewService := product.NewReviewService(db, cfg)
	cartService := cart.NewService(db, redisClient, cfg)
	voucherEngine := voucher.NewEngine(db, cfg)
	inventoryService := inventory.NewService(db, cfg, log, emailService)

	sequence, err := order.NewSequence(db)
	if err != nil {
		return err
	}
	orderService := order.NewService(db, cfg, log, inventoryService, voucherEngine, sequence, emailService)
	invoiceService := invoice.NewService(cfg)

	authHandler := handlers.NewAuthHandler(userService, cartService, cfg)
	productHandler := handlers.NewProductHandler(productService, cfg)
	reviewHandler := handlers.NewReviewHandler(reviewService, cfg)
	cartHandler := handlers.NewCartHandler(cartService, cfg)
	voucherHandler := handlers.NewVoucherHandler(voucherEngine, cfg)
	orderHandler := handlers.NewOrderHandler(orderService, cfg)
	inventoryHandler := handlers.NewInventoryHandler(inventoryService, cfg)
	invoiceHandler := handlers.NewInvoiceHandler(orderService, invoiceService, cfg)

	setupAuthRoutes(rg, authHandler, cfg)
	setupProductRoutes(rg, productHandler, reviewHandler, inventoryHandler, cfg)
	setupReviewRoutes(rg, reviewHandler, cfg)
	setupCartRoutes(rg, cartHandler, cfg)
	setupVoucherRoutes(rg, voucherHandler, cfg)
	setupOrderRoutes(rg, orderHandler, invoiceHandler, cfg)
	setupAdminRoutes(rg, productHandler, orderHandler, inventoryHandler, voucherHandler, cfg)

	return nil
}

func setupAuthRoutes(rg *gin.RouterGroup, h *handlers.AuthHandler, cfg *config.Config) {
	auth := rg.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.RefreshToken)

		protected := auth.Group("")
		protected.Use(middleware.AuthMiddleware(cfg))
		{
			protected.POST("/logout", h.Logout)
			protected.GET("/profile", h.GetProfile)
			protected.PUT("/profile", h.UpdateProfile)
			protected.PUT("/change-password", h.ChangePassword)
		}
	}
}

func setupProductRoutes(rg *gin.RouterGroup, h *handlers.ProductHandler, reviews *handlers.ReviewHandler, inv *handlers.InventoryHandler, cfg *config.Config) {
	products := rg.Group("/products")
	{
		products.GET("", h.GetProducts)
		products.GET("/:id", h.GetProduct)
		products.GET("/:id/reviews", reviews.GetProductReviews)

		protected := products.Group("")
		protected.Use(middleware.AuthMiddleware(cfg))
		{
			protected.POST("/:id/reviews", reviews.CreateReview)
			protected.POST("/:id/stock-alert", inv.SubscribeStockAlert)
		}
	}
}

func setupReviewRoutes(rg *gin.RouterGroup, h *handlers.ReviewHandler, cfg *config.Config) {
	reviews := rg.Group("/reviews")
	reviews.Use(middleware.AuthMiddleware(cfg))
	{
		reviews.PUT("/:id", h.UpdateReview)
		reviews.DELETE("/:id", h.DeleteReview)
	}
}

func setupCartRoutes(rg *gin.RouterGroup, h *handlers.CartHandler, cfg *config.Config) {
	// Carts work for guests too; auth only attaches the user when present
	cart := rg.Group("/cart")
	cart.Use(middleware.OptionalAuthMiddleware(cfg))
	{
		cart.GET("", h.GetCart)
		cart.GET("/count", h.GetCartCount)
		cart.POST("/items", h.AddToCart)
		cart.PUT("/items/:id", h.UpdateCartItem)
		cart.DELETE("/items/:id", h.RemoveFromCart)
		cart.DELETE("", h.ClearCart)
	}
}

func setupVoucherRoutes(rg *gin.RouterGroup, h *handlers.VoucherHandler, cfg *config.Config) {
	vouchers := rg.Group("/vouchers")
	vouchers.Use(middleware.OptionalAuthMiddleware(cfg))
	{
		vouchers.POST("/preview", h.PreviewVoucher)
	}
}

func setupOrderRoutes(rg *gin.RouterGroup, h *handlers.OrderHandler, invoices *handlers.InvoiceHandler, cfg *config.Config) {
	orders := rg.Group("/orders")
	orders.Use(middleware.AuthMiddleware(cfg))
	{
		orders.POST("", h.CreateOrder)
		orders.GET("", h.GetOrders)
		orders.GET("/:id", h.GetOrder)
		orders.GET("/number/:number", h.GetOrderByNumber)
		orders.PUT("/:id/cancel", h.CancelOrder)
		orders.GET("/:id/invoice", invoices.DownloadInvoice)
	}
}

func setupAdminRoutes(rg *gin.RouterGroup, products *handlers.ProductHandler, orders *handlers.OrderHandler, inv *handlers.InventoryHandler, vouchers *handlers.VoucherHandler, cfg *config.Config) {
	admin := rg.Group("/admin")
	admin.Use(middleware.AuthMiddleware(cfg))
	admin.Use(middleware.AdminMiddleware())
	{
		adminProducts := admin.Group("/products")
		{
			adminProducts.POST("", products.CreateProduct)
			adminProducts.PUT("/:id", products.UpdateProduct)
			adminProducts.DELETE("/:id", products.DeleteProduct)
		}

		adminOrders := admin.Group("/orders")
		{
			adminOrders.GET("", orders.AdminGetOrders)
			adminOrders.PUT("/:id/status", orders.AdminUpdateOrderStatus)
		}

		adminInventory := admin.Group("/inventory")
		{
			adminInventory.GET("/low-stock", inv.GetLowStock)
			adminInventory.PUT("/:id", inv.AdjustStock)
			adminInventory.GET("/:id/movements", inv.GetMovements)
		}

		adminVouchers := admin.Group("/vouchers")
		{
			adminVouchers.GET("", vouchers.ListVouchers)
			adminVouchers.POST("", vouchers.CreateVoucher)
		}
	}
}
