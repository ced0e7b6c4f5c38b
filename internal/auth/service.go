package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"qc-ledger/internal/ident"
	"qc-ledger/internal/storage"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type Service struct {
	store        storage.Store
	issuer       string
	secret       []byte
	ttl          time.Duration
	demoStarting decimal.Decimal
}

func NewService(store storage.Store, issuer string, secret []byte, ttl time.Duration, demoStarting decimal.Decimal) *Service {
	return &Service{store: store, issuer: issuer, secret: secret, ttl: ttl, demoStarting: demoStarting}
}

// Register creates the user together with their single account. New
// accounts start with a zero funding balance and the configured demo
// allowance.
func (s *Service) Register(ctx context.Context, email, password string) (storage.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return storage.User{}, errors.New("email and password required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return storage.User{}, err
	}
	now := time.Now().UTC()
	acc := storage.Account{
		ID:             ident.New("acc"),
		FundingBalance: decimal.Zero,
		DemoBalance:    s.demoStarting,
		Holdings:       map[string]decimal.Decimal{},
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	u := storage.User{
		ID:           ident.New("usr"),
		Email:        email,
		PasswordHash: string(hash),
		AccountID:    acc.ID,
		CreatedAt:    now,
	}
	acc.UserID = u.ID
	if err := s.store.CreateUser(ctx, u, acc); err != nil {
		return storage.User{}, err
	}
	return u, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	u, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return s.signToken(u.ID)
}

func (s *Service) GetUser(ctx context.Context, userID string) (storage.User, error) {
	return s.store.GetUser(ctx, userID)
}

func (s *Service) signToken(userID string) (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.secret)
}

func (s *Service) ParseToken(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return "", errors.New("invalid token")
	}
	if claims.Issuer != s.issuer {
		return "", errors.New("invalid issuer")
	}
	if claims.Subject == "" {
		return "", errors.New("invalid subject")
	}
	return claims.Subject, nil
}
