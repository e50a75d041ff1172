package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/uzconnect/operator-console-api/internal/models"
	appErrors "github.com/uzconnect/operator-console-api/pkg/errors"
)

type fakeAuthStore struct {
	byEmail map[string]*models.Staff
	byID    map[string]*models.Staff
	tokens  map[string]*models.RefreshToken
	revoked []string
}

func newFakeAuthStore(staff ...*models.Staff) *fakeAuthStore {
	store := &fakeAuthStore{
		byEmail: make(map[string]*models.Staff),
		byID:    make(map[string]*models.Staff),
		tokens:  make(map[string]*models.RefreshToken),
	}
	for _, s := range staff {
		store.byEmail[s.Email] = s
		store.byID[s.ID] = s
	}
	return store
}

func (f *fakeAuthStore) FindByEmail(ctx context.Context, email string) (*models.Staff, error) {
	staff, ok := f.byEmail[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *staff
	return &clone, nil
}

func (f *fakeAuthStore) FindByID(ctx context.Context, id string) (*models.Staff, error) {
	staff, ok := f.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *staff
	return &clone, nil
}

func (f *fakeAuthStore) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	if staff, ok := f.byID[id]; ok {
		staff.LastLogin = &ts
	}
	return nil
}

func (f *fakeAuthStore) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	staff, ok := f.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	staff.PasswordHash = passwordHash
	staff.UpdatedAt = updatedAt
	return nil
}

func (f *fakeAuthStore) RevokeStaffRefreshTokens(ctx context.Context, staffID string) error {
	for _, token := range f.tokens {
		if token.StaffID == staffID {
			token.Revoked = true
			f.revoked = append(f.revoked, token.ID)
		}
	}
	return nil
}

func (f *fakeAuthStore) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	clone := *token
	f.tokens[token.Token] = &clone
	return nil
}

func (f *fakeAuthStore) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	stored, ok := f.tokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *stored
	return &clone, nil
}

func (f *fakeAuthStore) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, token := range f.tokens {
		if token.ID == id {
			token.Revoked = true
			f.revoked = append(f.revoked, id)
			return nil
		}
	}
	return sql.ErrNoRows
}

func testAuthConfig() AuthConfig {
	return AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "operator-console-api",
		Audience:           []string{"operator-console"},
	}
}

func activeStaff(t *testing.T, password string) *models.Staff {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.Staff{
		ID:           "staff-1",
		Email:        "manager@example.com",
		PasswordHash: string(hash),
		FullName:     "Dilshod Abdullaev",
		Role:         models.RoleManager,
		Active:       true,
	}
}

func TestLoginSuccess(t *testing.T) {
	store := newFakeAuthStore(activeStaff(t, "secret123"))
	svc := NewAuthService(store, nil, nil, zap.NewNop(), testAuthConfig())

	res, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "manager@example.com",
		Password: "secret123",
		IP:       "10.0.0.1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, int64(900), res.ExpiresIn)
	assert.Equal(t, "staff-1", res.Staff.ID)
	assert.Equal(t, models.RoleManager, res.Staff.Role)

	stored, err := store.FindRefreshToken(context.Background(), res.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "staff-1", stored.StaffID)
	assert.Equal(t, "10.0.0.1", stored.IPAddress)
	require.NotNil(t, store.byID["staff-1"].LastLogin)
}

func TestLoginWrongPassword(t *testing.T) {
	store := newFakeAuthStore(activeStaff(t, "secret123"))
	svc := NewAuthService(store, nil, nil, zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "manager@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginUnknownEmail(t *testing.T) {
	svc := NewAuthService(newFakeAuthStore(), nil, nil, zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ghost@example.com", Password: "secret123"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginInactiveAccount(t *testing.T) {
	staff := activeStaff(t, "secret123")
	staff.Active = false
	svc := NewAuthService(newFakeAuthStore(staff), nil, nil, zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "manager@example.com", Password: "secret123"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestRefreshTokenRotates(t *testing.T) {
	ctx := context.Background()
	store := newFakeAuthStore(activeStaff(t, "secret123"))
	svc := NewAuthService(store, nil, nil, zap.NewNop(), testAuthConfig())

	login, err := svc.Login(ctx, models.LoginRequest{Email: "manager@example.com", Password: "secret123"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(ctx, models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	used := store.tokens[login.RefreshToken]
	require.NotNil(t, used)
	assert.True(t, used.Revoked)

	_, err = svc.RefreshToken(ctx, models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestRefreshTokenExpired(t *testing.T) {
	ctx := context.Background()
	store := newFakeAuthStore(activeStaff(t, "secret123"))
	store.tokens["stale"] = &models.RefreshToken{
		ID:        "rt-1",
		StaffID:   "staff-1",
		Token:     "stale",
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
	}
	svc := NewAuthService(store, nil, nil, zap.NewNop(), testAuthConfig())

	_, err := svc.RefreshToken(ctx, models.RefreshTokenRequest{RefreshToken: "stale"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestLogoutRevokesOwnTokenOnly(t *testing.T) {
	ctx := context.Background()
	store := newFakeAuthStore(activeStaff(t, "secret123"))
	svc := NewAuthService(store, nil, nil, zap.NewNop(), testAuthConfig())

	login, err := svc.Login(ctx, models.LoginRequest{Email: "manager@example.com", Password: "secret123"})
	require.NoError(t, err)

	err = svc.Logout(ctx, login.RefreshToken, "someone-else")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Logout(ctx, login.RefreshToken, "staff-1"))
	assert.True(t, store.tokens[login.RefreshToken].Revoked)
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	ctx := context.Background()
	store := newFakeAuthStore(activeStaff(t, "secret123"))
	svc := NewAuthService(store, nil, nil, zap.NewNop(), testAuthConfig())

	login, err := svc.Login(ctx, models.LoginRequest{Email: "manager@example.com", Password: "secret123"})
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, "staff-1", models.ChangePasswordRequest{OldPassword: "wrong", NewPassword: "newsecret"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.ChangePassword(ctx, "staff-1", models.ChangePasswordRequest{OldPassword: "secret123", NewPassword: "newsecret"}))
	assert.True(t, store.tokens[login.RefreshToken].Revoked)

	_, err = svc.Login(ctx, models.LoginRequest{Email: "manager@example.com", Password: "newsecret"})
	require.NoError(t, err)
}

func TestValidateTokenRoundTrip(t *testing.T) {
	staff := activeStaff(t, "secret123")
	svc := NewAuthService(newFakeAuthStore(staff), nil, nil, zap.NewNop(), testAuthConfig())

	token, _, err := svc.generateAccessToken(staff)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "staff-1", claims.StaffID)
	assert.Equal(t, models.RoleManager, claims.Role)
	assert.Equal(t, "operator-console-api", claims.Issuer)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	staff := activeStaff(t, "secret123")
	issuer := NewAuthService(newFakeAuthStore(staff), nil, nil, zap.NewNop(), testAuthConfig())

	otherConfig := testAuthConfig()
	otherConfig.AccessTokenSecret = "different"
	verifier := NewAuthService(newFakeAuthStore(staff), nil, nil, zap.NewNop(), otherConfig)

	token, _, err := issuer.generateAccessToken(staff)
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
