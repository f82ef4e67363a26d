package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/pkg/errors"

	"github.com/talkincode/storefront/internal/apperr"
)

// DefaultTokenTTL is the lifetime of issued tokens.
const DefaultTokenTTL = 72 * time.Hour

const tokenIssuer = "storefront"

// Claims identifies the authenticated customer.
type Claims struct {
	CustomerID int64  `json:"customer_id,string"`
	Email      string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// NewSecret returns a random 32-byte signing key, hex encoded.
func NewSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "generate signing key")
	}
	return hex.EncodeToString(buf), nil
}

// TokenService issues and verifies HS256 bearer tokens with a single key.
// The key is fixed for the lifetime of the service.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL returns the default token lifetime.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs claims expiring ttl from now; a non-positive ttl uses the
// service default.
func (s *TokenService) Issue(claims Claims, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = s.ttl
	}
	now := s.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", apperr.Internal(err, "Failed to sign token")
	}
	return signed, nil
}

// Verify returns the claims of a token signed with the service key.
// An empty token is Unauthorized, anything else that fails is InvalidToken.
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, apperr.Unauthorized("")
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, apperr.InvalidToken(err)
	}
	if !token.Valid || claims.CustomerID == 0 {
		return nil, apperr.InvalidToken(nil)
	}
	return claims, nil
}

type claimsKey struct{}

// NewContext returns a copy of ctx carrying the authenticated claims.
func NewContext(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// FromContext returns the claims injected by the auth gate, if any.
func FromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*Claims)
	return claims, ok
}
