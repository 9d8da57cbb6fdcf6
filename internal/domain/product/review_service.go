// internal/domain/product/review_service.go
package product

import (
	"fmt"
	"math"
	"strings"

	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/pkg/apperror"
	"github.com/your-org/storefront-backend/internal/pkg/keymutex"
	"gorm.io/gorm"
)

// ReviewService manages product reviews and the derived rating aggregates on
// the product row. Per-product writes are serialized through locks so the
// aggregate recompute never races a concurrent review for the same product.
type ReviewService struct {
	db     *gorm.DB
	config *config.Config
	locks  *keymutex.KeyMutex
}

// NewReviewService creates a new review service
func NewReviewService(db *gorm.DB, cfg *config.Config) *ReviewService {
	return &ReviewService{
		db:     db,
		config: cfg,
		locks:  keymutex.New(64),
	}
}

// CreateReviewRequest represents review creation data
type CreateReviewRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment" binding:"required"`
}

// UpdateReviewRequest represents review update data
type UpdateReviewRequest struct {
	Rating  *int    `json:"rating,omitempty"`
	Comment *string `json:"comment,omitempty"`
}

// ReviewListResponse represents reviews with pagination
type ReviewListResponse struct {
	Reviews    []Review `json:"reviews"`
	Page       int      `json:"page"`
	Limit      int      `json:"limit"`
	Total      int64    `json:"total"`
	TotalPages int      `json:"total_pages"`
}

func validateReviewContent(rating int, comment string) error {
	if rating < 1 || rating > 5 {
		return apperror.Validation("rating must be between 1 and 5")
	}
	trimmed := strings.TrimSpace(comment)
	if len(trimmed) < 10 {
		return apperror.Validation("comment must be at least 10 characters")
	}
	if len(trimmed) > 500 {
		return apperror.Validation("comment must not exceed 500 characters")
	}
	return nil
}

// CreateReview creates a review for a product. A user may review a given
// product at most once.
func (s *ReviewService) CreateReview(userID, productID uint, req *CreateReviewRequest) (*Review, error) {
	if err := validateReviewContent(req.Rating, req.Comment); err != nil {
		return nil, err
	}

	s.locks.Lock(productID)
	defer s.locks.Unlock(productID)

	var prod Product
	if err := s.db.Where("id = ?", productID).First(&prod).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperror.NotFound("product %d not found", productID)
		}
		return nil, fmt.Errorf("failed to retrieve product: %w", err)
	}

	var existing Review
	err := s.db.Where("product_id = ? AND user_id = ?", productID, userID).First(&existing).Error
	if err == nil {
		return nil, apperror.Conflict("you have already reviewed this product")
	}
	if err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("failed to check existing review: %w", err)
	}

	review := &Review{
		ProductID: productID,
		UserID:    userID,
		Rating:    req.Rating,
		Comment:   strings.TrimSpace(req.Comment),
	}

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Create(review).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to create review: %w", err)
	}

	if err := s.recomputeAggregates(tx, productID); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("failed to commit review: %w", err)
	}

	return review, nil
}

// UpdateReview updates the caller's own review
func (s *ReviewService) UpdateReview(userID, reviewID uint, req *UpdateReviewRequest) (*Review, error) {
	var review Review
	if err := s.db.Where("id = ?", reviewID).First(&review).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperror.NotFound("review %d not found", reviewID)
		}
		return nil, fmt.Errorf("failed to retrieve review: %w", err)
	}
	if review.UserID != userID {
		return nil, apperror.NotFound("review %d not found", reviewID)
	}

	rating := review.Rating
	comment := review.Comment
	if req.Rating != nil {
		rating = *req.Rating
	}
	if req.Comment != nil {
		comment = *req.Comment
	}
	if err := validateReviewContent(rating, comment); err != nil {
		return nil, err
	}

	s.locks.Lock(review.ProductID)
	defer s.locks.Unlock(review.ProductID)

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	review.Rating = rating
	review.Comment = strings.TrimSpace(comment)
	if err := tx.Save(&review).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to update review: %w", err)
	}

	if err := s.recomputeAggregates(tx, review.ProductID); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("failed to commit review update: %w", err)
	}

	return &review, nil
}

// DeleteReview deletes the caller's own review
func (s *ReviewService) DeleteReview(userID, reviewID uint) error {
	var review Review
	if err := s.db.Where("id = ?", reviewID).First(&review).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return apperror.NotFound("review %d not found", reviewID)
		}
		return fmt.Errorf("failed to retrieve review: %w", err)
	}
	if review.UserID != userID {
		return apperror.NotFound("review %d not found", reviewID)
	}

	s.locks.Lock(review.ProductID)
	defer s.locks.Unlock(review.ProductID)

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Delete(&review).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to delete review: %w", err)
	}

	if err := s.recomputeAggregates(tx, review.ProductID); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit review deletion: %w", err)
	}

	return nil
}

// GetProductReviews retrieves reviews for a product, newest first
func (s *ReviewService) GetProductReviews(productID uint, page, limit int) (*ReviewListResponse, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var prod Product
	if err := s.db.Where("id = ?", productID).First(&prod).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperror.NotFound("product %d not found", productID)
		}
		return nil, fmt.Errorf("failed to retrieve product: %w", err)
	}

	query := s.db.Model(&Review{}).Where("product_id = ?", productID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count reviews: %w", err)
	}

	var reviews []Review
	offset := (page - 1) * limit
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&reviews).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve reviews: %w", err)
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))

	return &ReviewListResponse{
		Reviews:    reviews,
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
	}, nil
}

// recomputeAggregates recalculates the product's rating and review count from
// the full review set inside the caller's transaction. The average is rounded
// to one decimal place; a product with no reviews goes back to 0 / 0.
func (s *ReviewService) recomputeAggregates(tx *gorm.DB, productID uint) error {
	var stats struct {
		Avg   float64
		Count int64
	}
	err := tx.Model(&Review{}).
		Select("COALESCE(AVG(rating), 0) as avg, COUNT(*) as count").
		Where("product_id = ?", productID).
		Scan(&stats).Error
	if err != nil {
		return fmt.Errorf("failed to compute rating aggregates: %w", err)
	}

	rating := math.Round(stats.Avg*10) / 10

	err = tx.Model(&Product{}).Where("id = ?", productID).Updates(map[string]interface{}{
		"rating":       rating,
		"review_count": stats.Count,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to update rating aggregates: %w", err)
	}
	return nil
}
