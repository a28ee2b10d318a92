package security

import (
	"crypto/rsa"
	"errors"
	"time"

	"github.com/cwrk-planet/chat-relay/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

// Signer выпускает токены того же формата, что и основной бэкенд.
// Нужен для CLI-команды token и для тестов; в проде токены выдаёт auth.
type Signer struct {
	key      any
	method   jwt.SigningMethod
	issuer   string
	audience string
	ttl      time.Duration
}

func NewHMACSigner(secret []byte, issuer, audience string, ttl time.Duration) (*Signer, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt secret is empty")
	}
	return &Signer{key: secret, method: jwt.SigningMethodHS256, issuer: issuer, audience: audience, ttl: ttl}, nil
}

func NewRSASigner(private *rsa.PrivateKey, issuer, audience string, ttl time.Duration) (*Signer, error) {
	if private == nil {
		return nil, errors.New("jwt private key is nil")
	}
	return &Signer{key: private, method: jwt.SigningMethodRS256, issuer: issuer, audience: audience, ttl: ttl}, nil
}

func (s *Signer) TTL() time.Duration {
	return s.ttl
}

// Sign выпускает токен с sub=user.id и exp=now+ttl (ttl<=0: без exp).
func (s *Signer) Sign(id domain.Identity, now time.Time) (string, error) {
	if id.UserID == "" {
		return "", errors.New("identity without user id")
	}
	claims := AccessClaims{
		User: &UserClaim{ID: id.UserID, Username: id.Username, Avatar: id.Avatar},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  id.UserID,
			Issuer:   s.issuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if s.audience != "" {
		claims.Audience = jwt.ClaimStrings{s.audience}
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}

	return jwt.NewWithClaims(s.method, claims).SignedString(s.key)
}
