package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/platinummonkey/adminkit/pkg/apperr"
)

// TokenType is the token_type returned by the login endpoint.
const TokenType = "bearer"

// DefaultTokenTTL is used when the config leaves the expiry unset.
const DefaultTokenTTL = 15 * time.Minute

// Claims are the JWT claims of an access token. The subject is the user
// name; uid pins the token to the account that held the name at issue time.
type Claims struct {
	UserID int64 `json:"uid"`
	jwt.RegisteredClaims
}

// Token is an issued access token.
type Token struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int64
	ExpiresAt   time.Time
}

// TokenService signs and verifies HMAC access tokens.
type TokenService struct {
	secret []byte
	method *jwt.SigningMethodHMAC
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a token service. algorithm is HS256, HS384 or
// HS512.
func NewTokenService(secret, algorithm string, ttl time.Duration) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("token secret is required")
	}

	var method *jwt.SigningMethodHMAC
	switch algorithm {
	case "", "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("unsupported token algorithm %q", algorithm)
	}

	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	return &TokenService{secret: []byte(secret), method: method, ttl: ttl, now: time.Now}, nil
}

// Issue signs an access token for the user named subject with id userID.
func (s *TokenService) Issue(subject string, userID int64) (*Token, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	return &Token{
		AccessToken: signed,
		TokenType:   TokenType,
		ExpiresIn:   int64(s.ttl.Seconds()),
		ExpiresAt:   expires,
	}, nil
}

// Verify checks the signature, algorithm and expiry of token. Every failure
// is TokenInvalid; the cause is kept for logs but never echoed to clients.
func (s *TokenService) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, apperr.E(apperr.TokenInvalid, "missing credential")
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.TokenInvalid, "invalid credential", err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, apperr.E(apperr.TokenInvalid, "invalid credential")
	}
	return claims, nil
}
