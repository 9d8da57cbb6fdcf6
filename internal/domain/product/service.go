// internal/domain/product/service.go
package product

import (
	"fmt"
	"strings"

	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/pkg/apperror"
	"gorm.io/gorm"
)

// Service handles catalog business logic. The core never originates stock or
// rating mutations here; those belong to the inventory ledger and the review
// service.
type Service struct {
	db     *gorm.DB
	config *config.Config
}

// NewService creates a new product service
func NewService(db *gorm.DB, cfg *config.Config) *Service {
	return &Service{
		db:     db,
		config: cfg,
	}
}

// CreateProductRequest represents product creation data
type CreateProductRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	Category    Category `json:"category" binding:"required"`
	Price       int64    `json:"price" binding:"required"`
	Stock       int      `json:"stock"`
	Image       string   `json:"image"`
}

// UpdateProductRequest represents product update data. Stock and rating are
// deliberately absent; they are mutated through their owning services.
type UpdateProductRequest struct {
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	Category    *Category `json:"category,omitempty"`
	Price       *int64    `json:"price,omitempty"`
	Image       *string   `json:"image,omitempty"`
	IsActive    *bool     `json:"is_active,omitempty"`
}

// ProductListRequest represents product list query parameters
type ProductListRequest struct {
	Page     int      `form:"page,default=1"`
	Limit    int      `form:"limit,default=20"`
	Category Category `form:"category"`
	Search   string   `form:"search"`
}

// ProductListResponse represents products with pagination
type ProductListResponse struct {
	Products   []Product `json:"products"`
	Page       int       `json:"page"`
	Limit      int       `json:"limit"`
	Total      int64     `json:"total"`
	TotalPages int       `json:"total_pages"`
}

// CreateProduct creates a new product (admin action)
func (s *Service) CreateProduct(req *CreateProductRequest) (*Product, error) {
	if !req.Category.IsValid() {
		return nil, apperror.Validation("unknown category %q", req.Category)
	}
	if req.Price < 0 {
		return nil, apperror.Validation("price cannot be negative")
	}
	if req.Stock < 0 {
		return nil, apperror.Validation("stock cannot be negative")
	}

	prod := &Product{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Category:    req.Category,
		Price:       req.Price,
		Stock:       req.Stock,
		Image:       req.Image,
		IsActive:    true,
	}

	if err := s.db.Create(prod).Error; err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	return prod, nil
}

// GetProduct retrieves a single product by ID
func (s *Service) GetProduct(id uint) (*Product, error) {
	var prod Product
	result := s.db.Where("id = ?", id).First(&prod)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, apperror.NotFound("product %d not found", id)
		}
		return nil, fmt.Errorf("failed to retrieve product: %w", result.Error)
	}
	return &prod, nil
}

// GetProducts retrieves products with filtering and pagination
func (s *Service) GetProducts(req *ProductListRequest) (*ProductListResponse, error) {
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 20
	}

	query := s.db.Model(&Product{}).Where("is_active = ?", true)

	if req.Category != "" {
		if !req.Category.IsValid() {
			return nil, apperror.Validation("unknown category %q", req.Category)
		}
		query = query.Where("category = ?", req.Category)
	}

	if req.Search != "" {
		searchTerm := "%" + strings.ToLower(req.Search) + "%"
		query = query.Where("LOWER(name) LIKE ?", searchTerm)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}

	var products []Product
	offset := (req.Page - 1) * req.Limit
	if err := query.Order("created_at DESC").Offset(offset).Limit(req.Limit).Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve products: %w", err)
	}

	totalPages := int((total + int64(req.Limit) - 1) / int64(req.Limit))

	return &ProductListResponse{
		Products:   products,
		Page:       req.Page,
		Limit:      req.Limit,
		Total:      total,
		TotalPages: totalPages,
	}, nil
}

// UpdateProduct updates mutable product fields (admin action)
func (s *Service) UpdateProduct(id uint, req *UpdateProductRequest) (*Product, error) {
	prod, err := s.GetProduct(id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		updates["description"] = strings.TrimSpace(*req.Description)
	}
	if req.Category != nil {
		if !req.Category.IsValid() {
			return nil, apperror.Validation("unknown category %q", *req.Category)
		}
		updates["category"] = *req.Category
	}
	if req.Price != nil {
		if *req.Price < 0 {
			return nil, apperror.Validation("price cannot be negative")
		}
		updates["price"] = *req.Price
	}
	if req.Image != nil {
		updates["image"] = *req.Image
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if len(updates) == 0 {
		return prod, nil
	}

	if err := s.db.Model(prod).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	return s.GetProduct(id)
}

// DeleteProduct soft-deletes a product (admin action). Orders keep their own
// snapshot of this product, so existing orders are unaffected.
func (s *Service) DeleteProduct(id uint) error {
	prod, err := s.GetProduct(id)
	if err != nil {
		return err
	}
	if err := s.db.Delete(prod).Error; err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return nil
}
