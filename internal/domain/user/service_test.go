package user

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/pkg/apperror"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&User{}))

	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret-key-for-unit-tests-only"
	cfg.JWT.AccessTokenExpiry = time.Hour
	cfg.JWT.RefreshTokenExpiry = 24 * time.Hour
	cfg.Security.BcryptCost = 4 // keep hashing fast in tests

	return NewService(db, cfg)
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newTestService(t)

	resp, err := svc.Register(&RegisterRequest{
		Email:     "Asha@Example.com",
		Password:  "Sup3rSecret",
		FirstName: "Asha",
	})
	require.NoError(t, err)
	assert.Equal(t, "asha@example.com", resp.User.Email)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Empty(t, resp.User.Password)

	login, err := svc.Login(&LoginRequest{Email: "asha@example.com", Password: "Sup3rSecret"})
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, login.User.ID)
	assert.NotNil(t, login.User.LastLoginAt)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Register(&RegisterRequest{
		Email: "dup@example.com", Password: "Sup3rSecret", FirstName: "One",
	})
	require.NoError(t, err)

	_, err = svc.Register(&RegisterRequest{
		Email: "DUP@example.com", Password: "Sup3rSecret", FirstName: "Two",
	})
	assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))
}

func TestRegisterWeakPassword(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Register(&RegisterRequest{
		Email: "weak@example.com", Password: "short", FirstName: "Weak",
	})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}

func TestLoginWrongPassword(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Register(&RegisterRequest{
		Email: "asha@example.com", Password: "Sup3rSecret", FirstName: "Asha",
	})
	require.NoError(t, err)

	_, err = svc.Login(&LoginRequest{Email: "asha@example.com", Password: "WrongPass1"})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}

func TestRefreshToken(t *testing.T) {
	svc := newTestService(t)

	resp, err := svc.Register(&RegisterRequest{
		Email: "asha@example.com", Password: "Sup3rSecret", FirstName: "Asha",
	})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(resp.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)

	// an access token is not a refresh token
	_, err = svc.RefreshToken(resp.AccessToken)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}

func TestChangePassword(t *testing.T) {
	svc := newTestService(t)

	resp, err := svc.Register(&RegisterRequest{
		Email: "asha@example.com", Password: "Sup3rSecret", FirstName: "Asha",
	})
	require.NoError(t, err)

	err = svc.ChangePassword(resp.User.ID, "WrongOld1", "NewSecret9")
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	require.NoError(t, svc.ChangePassword(resp.User.ID, "Sup3rSecret", "NewSecret9"))

	_, err = svc.Login(&LoginRequest{Email: "asha@example.com", Password: "NewSecret9"})
	require.NoError(t, err)
}

func TestUpdateProfile(t *testing.T) {
	svc := newTestService(t)

	resp, err := svc.Register(&RegisterRequest{
		Email: "asha@example.com", Password: "Sup3rSecret", FirstName: "Asha",
	})
	require.NoError(t, err)

	phone := "9876543210"
	updated, err := svc.UpdateProfile(resp.User.ID, &UpdateProfileRequest{Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, phone, updated.Phone)
	assert.Equal(t, "Asha", updated.FirstName)

	_, err = svc.UpdateProfile(999, &UpdateProfileRequest{Phone: &phone})
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
}
