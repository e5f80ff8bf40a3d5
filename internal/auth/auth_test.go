package auth_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/openbid/auction-api/internal/auth"
	"github.com/openbid/auction-api/internal/database"
	"github.com/openbid/auction-api/pkg/apperrors"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.NewDatabase(dsn)
	require.NoError(t, err)
	return db
}

func newTestService(t *testing.T) *auth.Service {
	t.Helper()
	return auth.NewService(newTestDB(t), "test-secret", 7*24*time.Hour)
}

func TestRegister(t *testing.T) {
	service := newTestService(t)

	tests := []struct {
		name          string
		req           auth.RegisterRequest
		expectedError error
		expectedRole  string
	}{
		{
			name: "buyer_registration",
			req: auth.RegisterRequest{
				Email:       "buyer@example.com",
				Password:    "password123",
				DisplayName: "Buyer One",
				Role:        auth.RoleBuyer,
			},
			expectedRole: auth.RoleBuyer,
		},
		{
			name: "seller_registration",
			req: auth.RegisterRequest{
				Email:       "seller@example.com",
				Password:    "password123",
				DisplayName: "Seller One",
				Role:        auth.RoleSeller,
			},
			expectedRole: auth.RoleSeller,
		},
		{
			name: "role_defaults_to_buyer",
			req: auth.RegisterRequest{
				Email:       "default@example.com",
				Password:    "password123",
				DisplayName: "Default Role",
			},
			expectedRole: auth.RoleBuyer,
		},
		{
			name: "admin_role_not_self_assignable",
			req: auth.RegisterRequest{
				Email:       "admin@example.com",
				Password:    "password123",
				DisplayName: "Wannabe Admin",
				Role:        auth.RoleAdmin,
			},
			expectedError: apperrors.ErrValidation,
		},
		{
			name: "duplicate_email",
			req: auth.RegisterRequest{
				Email:       "buyer@example.com",
				Password:    "password456",
				DisplayName: "Buyer Again",
				Role:        auth.RoleBuyer,
			},
			expectedError: apperrors.ErrConflict,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			user, err := service.Register(tc.req)

			if tc.expectedError != nil {
				require.Error(t, err)
				require.True(t, errors.Is(err, tc.expectedError), "expected %v, got %v", tc.expectedError, err)
				return
			}

			require.NoError(t, err)
			require.NotEmpty(t, user.UserID)
			require.Equal(t, tc.req.Email, user.Email)
			require.Equal(t, tc.expectedRole, user.Role)
			require.NotEqual(t, tc.req.Password, user.PasswordHash, "password must never be stored in plain text")
			require.True(t, user.CheckPassword(tc.req.Password))
		})
	}
}

func TestLoginAndValidateToken(t *testing.T) {
	service := newTestService(t)

	user, err := service.Register(auth.RegisterRequest{
		Email:       "seller@example.com",
		Password:    "password123",
		DisplayName: "Seller One",
		Role:        auth.RoleSeller,
	})
	require.NoError(t, err)

	token, err := service.Login("seller@example.com", "password123")
	require.NoError(t, err)
	require.NotEmpty(t, token.Token)
	require.WithinDuration(t, time.Now().Add(7*24*time.Hour), token.Expiration, 5*time.Second)

	claims, err := service.ValidateToken(token.Token)
	require.NoError(t, err)
	require.Equal(t, user.UserID, claims.UserID)
	require.Equal(t, "seller@example.com", claims.Email)
	require.Equal(t, auth.RoleSeller, claims.Role)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	service := newTestService(t)

	_, err := service.Register(auth.RegisterRequest{
		Email:       "buyer@example.com",
		Password:    "password123",
		DisplayName: "Buyer One",
	})
	require.NoError(t, err)

	_, err = service.Login("buyer@example.com", "wrong-password")
	require.True(t, errors.Is(err, apperrors.ErrUnauthorized))

	_, err = service.Login("nobody@example.com", "password123")
	require.True(t, errors.Is(err, apperrors.ErrUnauthorized))
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	db := newTestDB(t)
	service := auth.NewService(db, "test-secret", -time.Hour)

	_, err := service.Register(auth.RegisterRequest{
		Email:       "buyer@example.com",
		Password:    "password123",
		DisplayName: "Buyer One",
	})
	require.NoError(t, err)

	token, err := service.Login("buyer@example.com", "password123")
	require.NoError(t, err)

	_, err = service.ValidateToken(token.Token)
	require.True(t, errors.Is(err, apperrors.ErrUnauthorized))
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	db := newTestDB(t)
	issuer := auth.NewService(db, "issuer-secret", time.Hour)
	verifier := auth.NewService(db, "other-secret", time.Hour)

	_, err := issuer.Register(auth.RegisterRequest{
		Email:       "buyer@example.com",
		Password:    "password123",
		DisplayName: "Buyer One",
	})
	require.NoError(t, err)

	token, err := issuer.Login("buyer@example.com", "password123")
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token.Token)
	require.True(t, errors.Is(err, apperrors.ErrUnauthorized))
}

func TestUpdateProfile(t *testing.T) {
	service := newTestService(t)

	user, err := service.Register(auth.RegisterRequest{
		Email:       "buyer@example.com",
		Password:    "password123",
		DisplayName: "Old Name",
	})
	require.NoError(t, err)

	updated, err := service.UpdateProfile(user.UserID, "New Name")
	require.NoError(t, err)
	require.Equal(t, "New Name", updated.DisplayName)
	require.Equal(t, user.Email, updated.Email)

	name, err := service.DisplayName(user.UserID)
	require.NoError(t, err)
	require.Equal(t, "New Name", name)

	_, err = service.UpdateProfile("USR_missing", "Name")
	require.True(t, errors.Is(err, apperrors.ErrNotFound))
}
