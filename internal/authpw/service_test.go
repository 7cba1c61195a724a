package authpw

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casedesk/api/internal/store"
)

// userStore is an in-memory UserStore keyed by user id.
type userStore struct {
	mu     sync.Mutex
	users  map[string]store.User
	resets map[string]string
	used   []string
}

func newUserStore() *userStore {
	return &userStore{users: map[string]store.User{}, resets: map[string]string{}}
}

func (m *userStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if strings.EqualFold(user.Email, strings.TrimSpace(email)) {
			return user, nil
		}
	}
	return store.User{}, sql.ErrNoRows
}

func (m *userStore) GetUserByID(_ context.Context, id string) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (m *userStore) CreateUser(_ context.Context, user store.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	return nil
}

func (m *userStore) update(id string, fn func(*store.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	fn(&user)
	m.users[id] = user
	return nil
}

func (m *userStore) UpdateUserVerificationToken(_ context.Context, userID, token string, expiresAt time.Time) error {
	return m.update(userID, func(u *store.User) {
		u.VerificationToken = token
		u.VerificationExpiresAt = &expiresAt
	})
}

func (m *userStore) VerifyUserEmail(_ context.Context, token string) error {
	m.mu.Lock()
	var id string
	for _, user := range m.users {
		if user.VerificationToken == token {
			id = user.ID
		}
	}
	m.mu.Unlock()
	if id == "" {
		return sql.ErrNoRows
	}
	return m.update(id, func(u *store.User) {
		u.IsEmailVerified = true
		u.VerificationToken = ""
	})
}

func (m *userStore) UpdateUserPassword(_ context.Context, userID, hash string) error {
	return m.update(userID, func(u *store.User) { u.PasswordHash = hash })
}

func (m *userStore) CreatePasswordReset(_ context.Context, userID, token string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets[token] = userID
	return nil
}

func (m *userStore) GetPasswordReset(_ context.Context, token string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	userID, ok := m.resets[token]
	if !ok {
		return "", sql.ErrNoRows
	}
	return userID, nil
}

func (m *userStore) MarkPasswordResetUsed(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.resets, token)
	m.used = append(m.used, token)
	return nil
}

func (m *userStore) SetTOTPSecret(_ context.Context, userID, secret string) error {
	return m.update(userID, func(u *store.User) {
		u.TOTPSecret = secret
		u.TOTPEnabled = false
	})
}

func (m *userStore) SetTOTPEnabled(_ context.Context, userID string, enabled bool) error {
	return m.update(userID, func(u *store.User) {
		u.TOTPEnabled = enabled
		if !enabled {
			u.TOTPSecret = ""
		}
	})
}

func signUp(t *testing.T, svc *Service, email string) *SignUpResponse {
	t.Helper()
	resp, err := svc.SignUp(context.Background(), SignUpRequest{Email: email, Password: "correct horse", DisplayName: "Dana Counsel"})
	require.NoError(t, err)
	return resp
}

func TestSignUpCreatesUnverifiedLawyer(t *testing.T) {
	users := newUserStore()
	svc := NewService(users, "casedesk-test", nil)

	resp := signUp(t, svc, "  dana@firm.example ")
	assert.True(t, resp.RequiresEmailVerify)
	assert.Len(t, resp.VerificationToken, 64)
	assert.True(t, strings.HasPrefix(resp.UserID, "usr_"))

	user := users.users[resp.UserID]
	assert.Equal(t, "dana@firm.example", user.Email)
	assert.Equal(t, "lawyer", user.Role)
	assert.False(t, user.IsEmailVerified)
	assert.NotEqual(t, "correct horse", user.PasswordHash)
	require.NotNil(t, user.VerificationExpiresAt)
}

func TestSignUpRejects(t *testing.T) {
	users := newUserStore()
	svc := NewService(users, "casedesk-test", nil)
	signUp(t, svc, "taken@firm.example")

	tests := []struct {
		name string
		req  SignUpRequest
		want error
	}{
		{"missing email", SignUpRequest{Password: "correct horse", DisplayName: "A"}, ErrMissingFields},
		{"blank display name", SignUpRequest{Email: "a@firm.example", Password: "correct horse", DisplayName: "  "}, ErrMissingFields},
		{"short password", SignUpRequest{Email: "a@firm.example", Password: "short", DisplayName: "A"}, ErrWeakPassword},
		{"email taken ignoring case", SignUpRequest{Email: "TAKEN@firm.example", Password: "correct horse", DisplayName: "B"}, ErrEmailTaken},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.SignUp(context.Background(), tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Len(t, users.users, 1)
}

func TestSignIn(t *testing.T) {
	ctx := context.Background()
	users := newUserStore()
	svc := NewService(users, "casedesk-test", nil)
	resp := signUp(t, svc, "dana@firm.example")

	t.Run("unverified account needs verification", func(t *testing.T) {
		got, err := svc.SignIn(ctx, SignInRequest{Email: "dana@firm.example", Password: "correct horse"})
		require.NoError(t, err)
		assert.True(t, got.RequiresVerify)
		assert.False(t, got.RequiresTwoFactor)
	})

	t.Run("wrong password hides account state", func(t *testing.T) {
		_, err := svc.SignIn(ctx, SignInRequest{Email: "dana@firm.example", Password: "wrong horse"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	require.NoError(t, svc.VerifyEmail(ctx, resp.VerificationToken))

	tests := []struct {
		name string
		req  SignInRequest
		want error
	}{
		{"unknown email", SignInRequest{Email: "nobody@firm.example", Password: "correct horse"}, ErrInvalidCredentials},
		{"wrong password", SignInRequest{Email: "dana@firm.example", Password: "correct hors"}, ErrInvalidCredentials},
		{"missing password", SignInRequest{Email: "dana@firm.example"}, ErrMissingFields},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.SignIn(ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	t.Run("verified account signs in", func(t *testing.T) {
		got, err := svc.SignIn(ctx, SignInRequest{Email: "Dana@Firm.example", Password: "correct horse"})
		require.NoError(t, err)
		assert.False(t, got.RequiresVerify)
		assert.Equal(t, resp.UserID, got.User.ID)
	})
}

func TestVerifyEmailAndResend(t *testing.T) {
	ctx := context.Background()
	users := newUserStore()
	svc := NewService(users, "casedesk-test", nil)
	resp := signUp(t, svc, "dana@firm.example")

	assert.ErrorIs(t, svc.VerifyEmail(ctx, ""), ErrMissingFields)
	assert.ErrorIs(t, svc.VerifyEmail(ctx, "not-a-token"), ErrInvalidToken)

	user, fresh, err := svc.ResendVerification(ctx, "dana@firm.example")
	require.NoError(t, err)
	assert.Equal(t, resp.UserID, user.ID)
	assert.NotEqual(t, resp.VerificationToken, fresh)
	assert.ErrorIs(t, svc.VerifyEmail(ctx, resp.VerificationToken), ErrInvalidToken, "the replaced token no longer verifies")
	require.NoError(t, svc.VerifyEmail(ctx, fresh))
	assert.True(t, users.users[resp.UserID].IsEmailVerified)

	_, token, err := svc.ResendVerification(ctx, "dana@firm.example")
	require.NoError(t, err)
	assert.Empty(t, token, "verified accounts get no new token")

	_, token, err = svc.ResendVerification(ctx, "nobody@firm.example")
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestPasswordReset(t *testing.T) {
	ctx := context.Background()
	users := newUserStore()
	svc := NewService(users, "casedesk-test", nil)
	resp := signUp(t, svc, "dana@firm.example")
	require.NoError(t, svc.VerifyEmail(ctx, resp.VerificationToken))

	_, token, err := svc.RequestPasswordReset(ctx, "nobody@firm.example")
	require.NoError(t, err)
	assert.Empty(t, token)

	user, token, err := svc.RequestPasswordReset(ctx, "dana@firm.example")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, resp.UserID, user.ID)

	assert.ErrorIs(t, svc.ResetPassword(ctx, ResetPasswordRequest{Token: token, NewPassword: "short"}), ErrWeakPassword)
	assert.ErrorIs(t, svc.ResetPassword(ctx, ResetPasswordRequest{Token: "bogus", NewPassword: "new password"}), ErrInvalidToken)
	assert.ErrorIs(t, svc.ResetPassword(ctx, ResetPasswordRequest{NewPassword: "new password"}), ErrMissingFields)

	require.NoError(t, svc.ResetPassword(ctx, ResetPasswordRequest{Token: token, NewPassword: "new password"}))
	assert.Equal(t, []string{token}, users.used)
	assert.ErrorIs(t, svc.ResetPassword(ctx, ResetPasswordRequest{Token: token, NewPassword: "newer password"}), ErrInvalidToken, "reset tokens are single use")

	_, err = svc.SignIn(ctx, SignInRequest{Email: "dana@firm.example", Password: "correct horse"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	got, err := svc.SignIn(ctx, SignInRequest{Email: "dana@firm.example", Password: "new password"})
	require.NoError(t, err)
	assert.Equal(t, resp.UserID, got.User.ID)
}
