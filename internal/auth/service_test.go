package auth_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-kasir/internal/auth"
	"github.com/noah-isme/backend-kasir/internal/common"
	"github.com/noah-isme/backend-kasir/internal/model"
	"github.com/noah-isme/backend-kasir/internal/store"
)

func newService(t *testing.T) *auth.Service {
	t.Helper()
	svc, err := auth.NewService(auth.Config{Users: store.NewMemory(), Secret: "test-secret", AccessTokenTTL: time.Hour})
	require.NoError(t, err)
	return svc
}

func budi() auth.RegisterInput {
	return auth.RegisterInput{
		FullName:         "Budi Santoso",
		Email:            "Budi@Example.com",
		BirthDate:        "1990-04-01",
		Password:         "Rahasia123",
		ConfirmPassword:  "Rahasia123",
		SecurityQuestion: "pet",
		SecurityAnswer:   "Mochi",
	}
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *common.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	require.Equal(t, code, appErr.Code)
}

func TestPasswordScore(t *testing.T) {
	require.Equal(t, 1, auth.PasswordScore("abc"))
	require.Equal(t, 2, auth.PasswordScore("abcdefgh"))
	require.Equal(t, 4, auth.PasswordScore("Rahasia123"))
	require.Equal(t, 5, auth.PasswordScore("Rahasia#123"))
}

func TestRegister(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, budi())
	require.NoError(t, err)
	require.Equal(t, "budi@example.com", u.Email)
	require.Equal(t, "budi", u.Username)
	require.NotEqual(t, "Rahasia123", u.PasswordHash)
	require.True(t, strings.HasPrefix(u.PasswordHash, "$argon2id$"))

	_, err = svc.Register(ctx, budi())
	requireCode(t, err, "EMAIL_ALREADY_USED")

	weak := budi()
	weak.Email = "weak@example.com"
	weak.Password, weak.ConfirmPassword = "abcdefgh", "abcdefgh"
	_, err = svc.Register(ctx, weak)
	requireCode(t, err, "WEAK_PASSWORD")

	mismatch := budi()
	mismatch.Email = "other@example.com"
	mismatch.ConfirmPassword = "Different123"
	_, err = svc.Register(ctx, mismatch)
	require.ErrorIs(t, err, model.ErrValidation)

	badQuestion := budi()
	badQuestion.Email = "q@example.com"
	badQuestion.SecurityQuestion = "movie"
	_, err = svc.Register(ctx, badQuestion)
	require.ErrorIs(t, err, model.ErrValidation)
}

func TestLoginAndParseToken(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	u, err := svc.Register(ctx, budi())
	require.NoError(t, err)

	for _, identifier := range []string{"budi@example.com", "BUDI"} {
		res, err := svc.Login(ctx, identifier, "Rahasia123")
		require.NoError(t, err)
		op, err := svc.ParseAccessToken(res.AccessToken)
		require.NoError(t, err)
		require.Equal(t, u.ID, op.ID)
		require.Equal(t, "Budi Santoso", op.Name)
	}

	_, err = svc.Login(ctx, "budi", "wrong-password")
	requireCode(t, err, "INVALID_CREDENTIALS")
	_, err = svc.Login(ctx, "nobody", "Rahasia123")
	requireCode(t, err, "INVALID_CREDENTIALS")
}

func TestExpiredTokenRejected(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, budi())
	require.NoError(t, err)

	issued := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	svc.WithNow(func() time.Time { return issued })
	res, err := svc.Login(ctx, "budi", "Rahasia123")
	require.NoError(t, err)

	svc.WithNow(func() time.Time { return issued.Add(2 * time.Hour) })
	_, err = svc.ParseAccessToken(res.AccessToken)
	requireCode(t, err, "UNAUTHORIZED")

	_, err = svc.ParseAccessToken("not-a-token")
	requireCode(t, err, "UNAUTHORIZED")
}

func TestForgotPassword(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, budi())
	require.NoError(t, err)

	q, err := svc.SecurityQuestion(ctx, "budi@example.com")
	require.NoError(t, err)
	require.Equal(t, "pet", q.Key)
	require.Equal(t, model.SecurityQuestions["pet"], q.Text)

	_, err = svc.SecurityQuestion(ctx, "ghost@example.com")
	require.ErrorIs(t, err, model.ErrNotFound)

	err = svc.ResetPassword(ctx, auth.ResetInput{Identifier: "budi", SecurityAnswer: "Kucing", NewPassword: "BaruSekali99"})
	requireCode(t, err, "WRONG_ANSWER")

	err = svc.ResetPassword(ctx, auth.ResetInput{Identifier: "budi", SecurityAnswer: " mochi ", NewPassword: "lemah"})
	requireCode(t, err, "WEAK_PASSWORD")

	require.NoError(t, svc.ResetPassword(ctx, auth.ResetInput{Identifier: "budi", SecurityAnswer: "MOCHI", NewPassword: "BaruSekali99"}))
	_, err = svc.Login(ctx, "budi", "Rahasia123")
	requireCode(t, err, "INVALID_CREDENTIALS")
	_, err = svc.Login(ctx, "budi", "BaruSekali99")
	require.NoError(t, err)
}

func TestRequireAuth(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, budi())
	require.NoError(t, err)
	res, err := svc.Login(ctx, "budi", "Rahasia123")
	require.NoError(t, err)

	var seen common.Operator
	protected := auth.Middleware{Service: svc}.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = common.OperatorFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+res.AccessToken)
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "Budi Santoso", seen.Name)
}
