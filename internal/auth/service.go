package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-kasir/internal/common"
	"github.com/noah-isme/backend-kasir/internal/model"
	"github.com/noah-isme/backend-kasir/internal/store"
)

const (
	defaultAccessTTL = 12 * time.Hour
	minPasswordLen   = 8
	minPasswordScore = 3
)

var errInvalidCredentials = common.NewAppError("INVALID_CREDENTIALS", "email/username atau password salah", http.StatusUnauthorized, nil)

// Service registers operators, signs them in and resets forgotten passwords.
type Service struct {
	users     store.UserStore
	secret    []byte
	accessTTL time.Duration
	now       func() time.Time
	signer    jwa.SignatureAlgorithm
	validator TokenValidator
	issuer    string
	audience  string
	clockSkew time.Duration
	logger    zerolog.Logger
}

// Config configures the auth service.
type Config struct {
	Users          store.UserStore
	Secret         string
	AccessTokenTTL time.Duration
	Issuer         string
	Audience       string
	ClockSkew      time.Duration
	Logger         zerolog.Logger
}

// RegisterInput is the registration form.
type RegisterInput struct {
	FullName         string `json:"fullName" validate:"required,max=120"`
	Email            string `json:"email" validate:"required,email"`
	Username         string `json:"username" validate:"omitempty,max=60"`
	BirthDate        string `json:"birthDate" validate:"omitempty,datetime=2006-01-02"`
	Password         string `json:"password" validate:"required"`
	ConfirmPassword  string `json:"confirmPassword" validate:"omitempty,eqfield=Password"`
	SecurityQuestion string `json:"securityQuestion" validate:"required,securityquestion"`
	SecurityAnswer   string `json:"securityAnswer" validate:"required"`
}

// ResetInput is the second step of the forgot-password flow.
type ResetInput struct {
	Identifier     string `json:"identifier" validate:"required"`
	SecurityAnswer string `json:"securityAnswer" validate:"required"`
	NewPassword    string `json:"newPassword" validate:"required"`
}

// LoginResult bundles the signed access token with the operator profile.
type LoginResult struct {
	User         model.User `json:"user"`
	AccessToken  string     `json:"accessToken"`
	AccessExpiry time.Time  `json:"accessExpiresAt"`
}

// Question is the security prompt shown before a password reset.
type Question struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// NewService constructs a Service instance with sane defaults.
func NewService(cfg Config) (*Service, error) {
	if cfg.Users == nil {
		return nil, errors.New("auth: user store is required")
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	accessTTL := cfg.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = "backend-kasir"
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = "kasir-terminal"
	}
	clockSkew := cfg.ClockSkew
	if clockSkew < 0 {
		clockSkew = 0
	}
	return &Service{
		users:     cfg.Users,
		secret:    []byte(secret),
		accessTTL: accessTTL,
		now:       time.Now,
		signer:    jwa.HS256,
		validator: TokenValidator{
			Issuer:    issuer,
			Audience:  audience,
			ClockSkew: clockSkew,
			Algorithm: jwa.HS256,
		},
		issuer:    issuer,
		audience:  audience,
		clockSkew: clockSkew,
		logger:    cfg.Logger,
	}, nil
}

// WithNow allows tests to override the time provider.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// PasswordScore counts how many strength criteria password meets: length of
// at least 8, a lowercase letter, an uppercase letter, a digit and a symbol.
func PasswordScore(password string) int {
	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			symbol = true
		}
	}
	score := 0
	for _, ok := range []bool{len(password) >= minPasswordLen, lower, upper, digit, symbol} {
		if ok {
			score++
		}
	}
	return score
}

func checkPassword(password string) error {
	if len(password) < minPasswordLen || PasswordScore(password) < minPasswordScore {
		return common.NewAppError("WEAK_PASSWORD", "password minimal 8 karakter dengan kombinasi huruf, angka, dan simbol", http.StatusBadRequest, nil)
	}
	return nil
}

// Register creates an operator account.
func (s *Service) Register(ctx context.Context, in RegisterInput) (model.User, error) {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.FullName = strings.TrimSpace(in.FullName)
	if err := model.ValidateStruct(in); err != nil {
		return model.User{}, err
	}
	if err := checkPassword(in.Password); err != nil {
		return model.User{}, err
	}
	username := strings.TrimSpace(strings.ToLower(in.Username))
	if username == "" {
		username = strings.SplitN(in.Email, "@", 2)[0]
	}
	passwordHash, err := argon2id.CreateHash(in.Password, argon2id.DefaultParams)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}
	answerHash, err := argon2id.CreateHash(normalizeAnswer(in.SecurityAnswer), argon2id.DefaultParams)
	if err != nil {
		return model.User{}, fmt.Errorf("hash security answer: %w", err)
	}
	now := s.now().UTC()
	u := model.User{
		ID:                 uuid.NewString(),
		FullName:           in.FullName,
		Email:              in.Email,
		Username:           username,
		BirthDate:          in.BirthDate,
		PasswordHash:       passwordHash,
		SecurityQuestion:   in.SecurityQuestion,
		SecurityAnswerHash: answerHash,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, model.ErrDuplicateID) {
			return model.User{}, common.NewAppError("EMAIL_ALREADY_USED", "email atau username sudah terdaftar", http.StatusConflict, err)
		}
		return model.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// Login verifies credentials by email or username and signs an access token.
func (s *Service) Login(ctx context.Context, identifier, password string) (LoginResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return LoginResult{}, errInvalidCredentials
	}
	u, err := s.users.GetUserByLogin(ctx, identifier)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			s.logger.Warn().Err(err).Msg("auth lookup failed")
		}
		return LoginResult{}, errInvalidCredentials
	}
	ok, err := argon2id.ComparePasswordAndHash(password, u.PasswordHash)
	if err != nil || !ok {
		return LoginResult{}, errInvalidCredentials
	}
	token, expiry, err := s.signAccessToken(u)
	if err != nil {
		return LoginResult{}, fmt.Errorf("sign access token: %w", err)
	}
	return LoginResult{User: u, AccessToken: token, AccessExpiry: expiry}, nil
}

// Me fetches the signed-in operator.
func (s *Service) Me(ctx context.Context, userID string) (model.User, error) {
	if strings.TrimSpace(userID) == "" {
		return model.User{}, common.NewAppError("UNAUTHORIZED", "unauthorized", http.StatusUnauthorized, nil)
	}
	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return model.User{}, common.NewAppError("UNAUTHORIZED", "unauthorized", http.StatusUnauthorized, err)
	}
	return u, nil
}

// SecurityQuestion returns the prompt registered for identifier.
func (s *Service) SecurityQuestion(ctx context.Context, identifier string) (Question, error) {
	u, err := s.users.GetUserByLogin(ctx, strings.TrimSpace(identifier))
	if err != nil {
		return Question{}, model.NewError(model.ErrNotFound, "email tidak ditemukan")
	}
	text, ok := model.SecurityQuestions[u.SecurityQuestion]
	if !ok {
		text = u.SecurityQuestion
	}
	return Question{Key: u.SecurityQuestion, Text: text}, nil
}

// ResetPassword verifies the security answer (case-insensitively) and
// replaces the password.
func (s *Service) ResetPassword(ctx context.Context, in ResetInput) error {
	if err := model.ValidateStruct(in); err != nil {
		return err
	}
	u, err := s.users.GetUserByLogin(ctx, strings.TrimSpace(in.Identifier))
	if err != nil {
		return model.NewError(model.ErrNotFound, "email tidak ditemukan")
	}
	ok, err := argon2id.ComparePasswordAndHash(normalizeAnswer(in.SecurityAnswer), u.SecurityAnswerHash)
	if err != nil || !ok {
		return common.NewAppError("WRONG_ANSWER", "jawaban keamanan salah", http.StatusUnauthorized, nil)
	}
	if err := checkPassword(in.NewPassword); err != nil {
		return err
	}
	hash, err := argon2id.CreateHash(in.NewPassword, argon2id.DefaultParams)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func normalizeAnswer(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}
