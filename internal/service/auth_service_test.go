package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"wove-server/internal/config"
	imocks "wove-server/internal/interfaces/mocks"
	"wove-server/internal/models"
	"wove-server/internal/service"
)

func newAuthService(userRepo *imocks.UserRepository, tokenRepo *imocks.TokenRepository) service.AuthService {
	cfg := &config.Config{
		JWTSecret:       "test-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	}
	return service.NewAuthService(userRepo, tokenRepo, cfg, zap.NewNop())
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("Email is normalized and user gets default roles", func(t *testing.T) {
		userRepo := new(imocks.UserRepository)
		tokenRepo := new(imocks.TokenRepository)
		svc := newAuthService(userRepo, tokenRepo)

		userRepo.On("Create", ctx, mock.MatchedBy(func(u *models.User) bool {
			return u.Email == "alice@example.com" &&
				u.Username == "alice" &&
				len(u.Roles) == 1 && u.Roles[0] == models.UserRoleUser &&
				u.CurrentAgeTier == models.AgeTierUnverified
		})).Return(nil).Once()

		user, err := svc.Register(ctx, "  alice  ", "  ALICE@Example.COM ", "password123")
		require.NoError(t, err)

		// Пароль хранится только в виде bcrypt-хеша
		assert.NotEqual(t, "password123", user.PasswordHash)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("password123")))
		userRepo.AssertExpectations(t)
	})

	t.Run("Invalid email is rejected", func(t *testing.T) {
		svc := newAuthService(new(imocks.UserRepository), new(imocks.TokenRepository))
		_, err := svc.Register(ctx, "bob", "not-an-email", "password123")
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	})

	t.Run("Short password is rejected", func(t *testing.T) {
		svc := newAuthService(new(imocks.UserRepository), new(imocks.TokenRepository))
		_, err := svc.Register(ctx, "bob", "bob@example.com", "short")
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	})

	t.Run("Duplicate username error is passed through", func(t *testing.T) {
		userRepo := new(imocks.UserRepository)
		svc := newAuthService(userRepo, new(imocks.TokenRepository))
		userRepo.On("Create", ctx, mock.Anything).Return(models.ErrUserAlreadyExists).Once()

		_, err := svc.Register(ctx, "bob", "bob@example.com", "password123")
		assert.ErrorIs(t, err, models.ErrUserAlreadyExists)
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)

	activeUser := &models.User{
		ID:           uuid.New(),
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: string(hash),
		Roles:        []string{models.UserRoleUser},
	}

	t.Run("Valid credentials produce a stored token pair", func(t *testing.T) {
		userRepo := new(imocks.UserRepository)
		tokenRepo := new(imocks.TokenRepository)
		svc := newAuthService(userRepo, tokenRepo)

		userRepo.On("GetByUsername", ctx, "alice").Return(activeUser, nil).Once()
		tokenRepo.On("SetToken", ctx, activeUser.ID, mock.MatchedBy(func(td *models.TokenDetails) bool {
			return td.AccessToken != "" && td.RefreshToken != "" && td.AccessUUID != td.RefreshUUID
		})).Return(nil).Once()

		td, err := svc.Login(ctx, "alice", "password123")
		require.NoError(t, err)
		assert.NotEmpty(t, td.AccessToken)
		tokenRepo.AssertExpectations(t)
	})

	t.Run("Wrong password yields invalid credentials", func(t *testing.T) {
		userRepo := new(imocks.UserRepository)
		svc := newAuthService(userRepo, new(imocks.TokenRepository))
		userRepo.On("GetByUsername", ctx, "alice").Return(activeUser, nil).Once()

		_, err := svc.Login(ctx, "alice", "wrong-password")
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	})

	t.Run("Unknown user yields the same invalid credentials error", func(t *testing.T) {
		userRepo := new(imocks.UserRepository)
		svc := newAuthService(userRepo, new(imocks.TokenRepository))
		userRepo.On("GetByUsername", ctx, "ghost").Return(nil, models.ErrUserNotFound).Once()

		_, err := svc.Login(ctx, "ghost", "password123")
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	})

	t.Run("Banned user cannot log in", func(t *testing.T) {
		banned := *activeUser
		banned.IsBanned = true
		userRepo := new(imocks.UserRepository)
		svc := newAuthService(userRepo, new(imocks.TokenRepository))
		userRepo.On("GetByUsername", ctx, "alice").Return(&banned, nil).Once()

		_, err := svc.Login(ctx, "alice", "password123")
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	})
}

func TestVerifyAccessToken(t *testing.T) {
	ctx := context.Background()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{
		ID:           uuid.New(),
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: string(hash),
		Roles:        []string{models.UserRoleUser, models.UserRoleModerator},
	}

	// login выпускает настоящую подписанную пару, которой пользуются остальные подтесты
	login := func(t *testing.T, svc service.AuthService, userRepo *imocks.UserRepository, tokenRepo *imocks.TokenRepository) *models.TokenDetails {
		t.Helper()
		userRepo.On("GetByUsername", ctx, "alice").Return(user, nil).Once()
		tokenRepo.On("SetToken", ctx, user.ID, mock.Anything).Return(nil).Once()
		td, err := svc.Login(ctx, "alice", "password123")
		require.NoError(t, err)
		return td
	}

	t.Run("Stored token verifies and carries user claims", func(t *testing.T) {
		userRepo := new(imocks.UserRepository)
		tokenRepo := new(imocks.TokenRepository)
		svc := newAuthService(userRepo, tokenRepo)
		td := login(t, svc, userRepo, tokenRepo)

		tokenRepo.On("GetUserIDByAccessUUID", ctx, td.AccessUUID).Return(user.ID, nil).Once()

		claims, err := svc.VerifyAccessToken(ctx, td.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, user.ID, claims.UserID)
		assert.Equal(t, user.Email, claims.Email)
		assert.Contains(t, claims.Roles, models.UserRoleModerator)
	})

	t.Run("Revoked token is invalid", func(t *testing.T) {
		userRepo := new(imocks.UserRepository)
		tokenRepo := new(imocks.TokenRepository)
		svc := newAuthService(userRepo, tokenRepo)
		td := login(t, svc, userRepo, tokenRepo)

		tokenRepo.On("GetUserIDByAccessUUID", ctx, td.AccessUUID).
			Return(uuid.Nil, models.ErrTokenNotFound).Once()

		_, err := svc.VerifyAccessToken(ctx, td.AccessToken)
		assert.ErrorIs(t, err, models.ErrTokenInvalid)
	})

	t.Run("Garbage token is malformed", func(t *testing.T) {
		svc := newAuthService(new(imocks.UserRepository), new(imocks.TokenRepository))
		_, err := svc.VerifyAccessToken(ctx, "not.a.jwt")
		assert.ErrorIs(t, err, models.ErrTokenMalformed)
	})
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{
		ID:           uuid.New(),
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: string(hash),
		Roles:        []string{models.UserRoleUser},
	}

	login := func(t *testing.T, svc service.AuthService, userRepo *imocks.UserRepository, tokenRepo *imocks.TokenRepository) *models.TokenDetails {
		t.Helper()
		userRepo.On("GetByUsername", ctx, "alice").Return(user, nil).Once()
		tokenRepo.On("SetToken", ctx, user.ID, mock.Anything).Return(nil).Once()
		td, err := svc.Login(ctx, "alice", "password123")
		require.NoError(t, err)
		return td
	}

	t.Run("Valid refresh rotates the pair and revokes the old one", func(t *testing.T) {
		userRepo := new(imocks.UserRepository)
		tokenRepo := new(imocks.TokenRepository)
		svc := newAuthService(userRepo, tokenRepo)
		td := login(t, svc, userRepo, tokenRepo)

		tokenRepo.On("GetUserIDByRefreshUUID", ctx, td.RefreshUUID).Return(user.ID, nil).Once()
		userRepo.On("GetByID", ctx, user.ID).Return(user, nil).Once()
		tokenRepo.On("DeleteTokens", ctx, user.ID, "", td.RefreshUUID).Return(nil).Once()
		tokenRepo.On("SetToken", ctx, user.ID, mock.Anything).Return(nil).Once()

		newTd, err := svc.Refresh(ctx, td.RefreshToken)
		require.NoError(t, err)
		assert.NotEqual(t, td.RefreshUUID, newTd.RefreshUUID)
		tokenRepo.AssertExpectations(t)
	})

	t.Run("Revoked refresh token is rejected", func(t *testing.T) {
		userRepo := new(imocks.UserRepository)
		tokenRepo := new(imocks.TokenRepository)
		svc := newAuthService(userRepo, tokenRepo)
		td := login(t, svc, userRepo, tokenRepo)

		tokenRepo.On("GetUserIDByRefreshUUID", ctx, td.RefreshUUID).
			Return(uuid.Nil, models.ErrTokenNotFound).Once()

		_, err := svc.Refresh(ctx, td.RefreshToken)
		assert.ErrorIs(t, err, models.ErrTokenNotFound)
	})

	t.Run("Banned user cannot refresh", func(t *testing.T) {
		banned := *user
		banned.IsBanned = true
		userRepo := new(imocks.UserRepository)
		tokenRepo := new(imocks.TokenRepository)
		svc := newAuthService(userRepo, tokenRepo)
		td := login(t, svc, userRepo, tokenRepo)

		tokenRepo.On("GetUserIDByRefreshUUID", ctx, td.RefreshUUID).Return(user.ID, nil).Once()
		userRepo.On("GetByID", ctx, user.ID).Return(&banned, nil).Once()

		_, err := svc.Refresh(ctx, td.RefreshToken)
		assert.ErrorIs(t, err, models.ErrUserBanned)
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("Logout succeeds even when tokens are already gone", func(t *testing.T) {
		tokenRepo := new(imocks.TokenRepository)
		svc := newAuthService(new(imocks.UserRepository), tokenRepo)
		tokenRepo.On("DeleteTokens", ctx, userID, "access-uuid", "refresh-uuid").
			Return(models.ErrTokenNotFound).Once()

		assert.NoError(t, svc.Logout(ctx, userID, "access-uuid", "refresh-uuid"))
	})
}

func TestRevokeAllTokens(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	tokenRepo := new(imocks.TokenRepository)
	svc := newAuthService(new(imocks.UserRepository), tokenRepo)
	tokenRepo.On("DeleteAllForUser", ctx, userID).Return(nil).Once()

	require.NoError(t, svc.RevokeAllTokens(ctx, userID))
	tokenRepo.AssertExpectations(t)
}
