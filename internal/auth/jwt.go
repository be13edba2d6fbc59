package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nguyentuongbachhy/ViMarket-sub002/internal/config"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims are the token claims the cart service cares about. The user ID
// comes from the subject.
type Claims struct {
	UserID string `json:"nameid,omitempty"`
	Name   string `json:"unique_name,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Subject returns the authenticated user's ID.
func (c *Claims) Subject() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.RegisteredClaims.Subject
}

// Verifier validates tokens issued by the platform's user service.
// Tokens are HMAC-signed; issuer and audience must match.
type Verifier struct {
	secretKey []byte
	issuer    string
	audience  string
}

func NewVerifier(cfg config.JWTConfig) *Verifier {
	return &Verifier{
		secretKey: []byte(cfg.SecretKey),
		issuer:    cfg.Issuer,
		audience:  cfg.Audience,
	}
}

// Verify parses and validates a token string and returns its claims.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, ErrInvalidToken
			}
			return v.secretKey, nil
		},
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid || claims.Subject() == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
