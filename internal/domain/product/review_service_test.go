package product

import (
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/pkg/apperror"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&Product{}, &Review{}))
	return db
}

func seedProduct(t *testing.T, db *gorm.DB) *Product {
	t.Helper()
	prod := &Product{
		Name:     "Wireless Mouse",
		Category: CategoryElectronics,
		Price:    129900,
		Stock:    10,
		IsActive: true,
	}
	require.NoError(t, db.Create(prod).Error)
	return prod
}

func TestCreateReviewUpdatesAggregates(t *testing.T) {
	db := setupTestDB(t)
	svc := NewReviewService(db, &config.Config{})
	prod := seedProduct(t, db)

	_, err := svc.CreateReview(1, prod.ID, &CreateReviewRequest{
		Rating:  5,
		Comment: "Excellent build quality, very happy with it",
	})
	require.NoError(t, err)

	_, err = svc.CreateReview(2, prod.ID, &CreateReviewRequest{
		Rating:  4,
		Comment: "Good value for money overall",
	})
	require.NoError(t, err)

	var got Product
	require.NoError(t, db.First(&got, prod.ID).Error)
	assert.Equal(t, 4.5, got.Rating)
	assert.Equal(t, 2, got.ReviewCount)
}

func TestCreateReviewRoundsToOneDecimal(t *testing.T) {
	db := setupTestDB(t)
	svc := NewReviewService(db, &config.Config{})
	prod := seedProduct(t, db)

	ratings := []int{5, 4, 4} // avg 4.333...
	for i, r := range ratings {
		_, err := svc.CreateReview(uint(i+1), prod.ID, &CreateReviewRequest{
			Rating:  r,
			Comment: "This comment is long enough to pass",
		})
		require.NoError(t, err)
	}

	var got Product
	require.NoError(t, db.First(&got, prod.ID).Error)
	assert.Equal(t, 4.3, got.Rating)
	assert.Equal(t, 3, got.ReviewCount)
}

func TestCreateReviewDuplicateConflict(t *testing.T) {
	db := setupTestDB(t)
	svc := NewReviewService(db, &config.Config{})
	prod := seedProduct(t, db)

	_, err := svc.CreateReview(1, prod.ID, &CreateReviewRequest{
		Rating:  3,
		Comment: "Average product, nothing special",
	})
	require.NoError(t, err)

	_, err = svc.CreateReview(1, prod.ID, &CreateReviewRequest{
		Rating:  5,
		Comment: "Changed my mind, actually great",
	})
	require.Error(t, err)
	assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))
}

func TestCreateReviewValidation(t *testing.T) {
	db := setupTestDB(t)
	svc := NewReviewService(db, &config.Config{})
	prod := seedProduct(t, db)

	_, err := svc.CreateReview(1, prod.ID, &CreateReviewRequest{Rating: 6, Comment: "Rating out of range here"})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	_, err = svc.CreateReview(1, prod.ID, &CreateReviewRequest{Rating: 4, Comment: "short"})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	_, err = svc.CreateReview(1, 9999, &CreateReviewRequest{Rating: 4, Comment: "Product does not exist at all"})
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
}

func TestDeleteLastReviewResetsAggregates(t *testing.T) {
	db := setupTestDB(t)
	svc := NewReviewService(db, &config.Config{})
	prod := seedProduct(t, db)

	review, err := svc.CreateReview(1, prod.ID, &CreateReviewRequest{
		Rating:  4,
		Comment: "Solid product, does what it says",
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteReview(1, review.ID))

	var got Product
	require.NoError(t, db.First(&got, prod.ID).Error)
	assert.Equal(t, 0.0, got.Rating)
	assert.Equal(t, 0, got.ReviewCount)
}

func TestUpdateReviewRecomputesAggregates(t *testing.T) {
	db := setupTestDB(t)
	svc := NewReviewService(db, &config.Config{})
	prod := seedProduct(t, db)

	review, err := svc.CreateReview(1, prod.ID, &CreateReviewRequest{
		Rating:  2,
		Comment: "Disappointed with the packaging",
	})
	require.NoError(t, err)

	newRating := 5
	_, err = svc.UpdateReview(1, review.ID, &UpdateReviewRequest{Rating: &newRating})
	require.NoError(t, err)

	var got Product
	require.NoError(t, db.First(&got, prod.ID).Error)
	assert.Equal(t, 5.0, got.Rating)
}

func TestUpdateReviewOwnershipHidden(t *testing.T) {
	db := setupTestDB(t)
	svc := NewReviewService(db, &config.Config{})
	prod := seedProduct(t, db)

	review, err := svc.CreateReview(1, prod.ID, &CreateReviewRequest{
		Rating:  4,
		Comment: "Works well after a week of use",
	})
	require.NoError(t, err)

	// another user cannot see or touch it
	newRating := 1
	_, err = svc.UpdateReview(2, review.ID, &UpdateReviewRequest{Rating: &newRating})
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))

	err = svc.DeleteReview(2, review.ID)
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
}

func TestConcurrentReviewsSameProduct(t *testing.T) {
	db := setupTestDB(t)
	svc := NewReviewService(db, &config.Config{})
	prod := seedProduct(t, db)

	const users = 10
	var wg sync.WaitGroup
	for i := 1; i <= users; i++ {
		wg.Add(1)
		go func(userID uint) {
			defer wg.Done()
			_, err := svc.CreateReview(userID, prod.ID, &CreateReviewRequest{
				Rating:  4,
				Comment: "Concurrent review body with enough length",
			})
			assert.NoError(t, err)
		}(uint(i))
	}
	wg.Wait()

	var got Product
	require.NoError(t, db.First(&got, prod.ID).Error)
	assert.Equal(t, users, got.ReviewCount)
	assert.Equal(t, 4.0, got.Rating)
}
