package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/server/repository"
	cryptohelper "github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/shared/crypto"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/shared/models"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/shared/passhash"
)

const minPasswordLength = 6

// AuthService implements account registration, password verification,
// JWT access token issuance and refresh token rotation.
type AuthService struct {
	repo       Repository
	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	params     passhash.Params
	now        func() time.Time
}

func (a *AuthService) Register(ctx context.Context, req models.RegisterRequest) (models.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	req.FullName = strings.TrimSpace(req.FullName)
	switch {
	case req.FullName == "":
		return models.User{}, invalid("full_name is required")
	case req.Username == "":
		return models.User{}, invalid("username is required")
	case req.Email == "":
		return models.User{}, invalid("email is required")
	case len(req.Password) < minPasswordLength:
		return models.User{}, invalid("password must be at least %d characters", minPasswordLength)
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return models.User{}, invalid("invalid email address")
	}
	phc, err := passhash.HashWith(a.params, req.Password)
	if err != nil {
		return models.User{}, err
	}
	u, err := a.repo.CreateUser(ctx, models.User{Username: req.Username, Email: req.Email, FullName: req.FullName, Role: "user"}, []byte(phc))
	if errors.Is(err, repository.ErrConflict) {
		return models.User{}, ErrAccountExists
	}
	return u, err
}

// Login checks the password and issues an access and refresh token pair.
func (a *AuthService) Login(ctx context.Context, username, password string) (models.TokenResponse, error) {
	if username == "" || password == "" {
		return models.TokenResponse{}, invalid("username and password are required")
	}
	u, hash, err := a.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return models.TokenResponse{}, ErrInvalidCredentials
	}
	ok, err := passhash.Verify(string(hash), password)
	if err != nil || !ok {
		return models.TokenResponse{}, ErrInvalidCredentials
	}
	return a.issue(ctx, u)
}

func (a *AuthService) issue(ctx context.Context, u models.User) (models.TokenResponse, error) {
	access, err := a.IssueAccessToken(u.ID)
	if err != nil {
		return models.TokenResponse{}, err
	}
	refresh, err := a.IssueRefreshToken(ctx, u.ID)
	if err != nil {
		return models.TokenResponse{}, err
	}
	return models.TokenResponse{AccessToken: access, RefreshToken: refresh, Data: &u}, nil
}

func (a *AuthService) IssueAccessToken(userID string) (string, error) {
	claims := jwt.MapClaims{"sub": userID, "iat": a.now().Unix(), "exp": a.now().Add(a.accessTTL).Unix()}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.jwtSecret)
}

// IssueRefreshToken stores only the token's hash.
func (a *AuthService) IssueRefreshToken(ctx context.Context, userID string) (string, error) {
	token := uuid.NewString()
	if err := a.repo.CreateRefreshToken(ctx, userID, cryptohelper.HashToken(token), a.now().Add(a.refreshTTL)); err != nil {
		return "", err
	}
	return token, nil
}

func (a *AuthService) ParseToken(_ context.Context, token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.jwtSecret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}

// Refresh rotates a refresh token: the presented one is consumed and a new
// pair is returned.
func (a *AuthService) Refresh(ctx context.Context, refreshToken string) (models.TokenResponse, error) {
	hash := cryptohelper.HashToken(refreshToken)
	userID, exp, err := a.repo.GetRefreshToken(ctx, hash)
	if err != nil {
		return models.TokenResponse{}, ErrInvalidToken
	}
	_ = a.repo.DeleteRefreshToken(ctx, hash)
	if a.now().After(exp) {
		return models.TokenResponse{}, ErrInvalidToken
	}
	u, err := a.repo.GetUser(ctx, userID)
	if err != nil {
		return models.TokenResponse{}, ErrInvalidToken
	}
	return a.issue(ctx, u)
}

func (a *AuthService) Profile(ctx context.Context, userID string) (models.User, error) {
	return a.repo.GetUser(ctx, userID)
}
