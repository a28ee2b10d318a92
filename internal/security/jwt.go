package security

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cwrk-planet/chat-relay/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

// UserClaim: вложенный объект user, который кладёт в токен основной бэкенд.
type UserClaim struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

type AccessClaims struct {
	User *UserClaim `json:"user,omitempty"`
	jwt.RegisteredClaims
}

type Options struct {
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	// Now подменяется в тестах
	Now func() time.Time
}

// Verifier проверяет bearer-токен и достаёт из него Identity.
// Поддерживается HS256 (общий секрет) и RS256 (публичный ключ).
type Verifier struct {
	key    any
	method jwt.SigningMethod
	opts   Options
}

func NewHMACVerifier(secret []byte, opts Options) (*Verifier, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt secret is empty")
	}
	return &Verifier{key: secret, method: jwt.SigningMethodHS256, opts: opts}, nil
}

func NewRSAVerifier(public *rsa.PublicKey, opts Options) (*Verifier, error) {
	if public == nil {
		return nil, errors.New("jwt public key is nil")
	}
	return &Verifier{key: public, method: jwt.SigningMethodRS256, opts: opts}, nil
}

func (v *Verifier) Verify(tokenStr string) (domain.Identity, error) {
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return domain.Identity{}, domain.ErrAuthMissing
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{v.method.Alg()}),
		jwt.WithLeeway(v.opts.ClockSkew),
		jwt.WithIssuedAt(),
	}
	if v.opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.opts.Issuer))
	}
	if v.opts.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(v.opts.Audience))
	}
	if v.opts.Now != nil {
		parserOpts = append(parserOpts, jwt.WithTimeFunc(v.opts.Now))
	}

	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	}, parserOpts...)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrAuthInvalid, err)
	}
	if !token.Valid {
		return domain.Identity{}, domain.ErrAuthInvalid
	}

	return IdentityFromClaims(claims)
}

// IdentityFromClaims берёт user.id, а если его нет, sub.
func IdentityFromClaims(claims *AccessClaims) (domain.Identity, error) {
	if claims == nil {
		return domain.Identity{}, domain.ErrAuthInvalid
	}
	var id domain.Identity
	if claims.User != nil {
		id = domain.Identity{
			UserID:   strings.TrimSpace(claims.User.ID),
			Username: strings.TrimSpace(claims.User.Username),
			Avatar:   strings.TrimSpace(claims.User.Avatar),
		}
	}
	if id.UserID == "" {
		id.UserID = strings.TrimSpace(claims.Subject)
	}
	if id.UserID == "" {
		return domain.Identity{}, fmt.Errorf("%w: no subject", domain.ErrAuthInvalid)
	}

	return id, nil
}

func LoadRSAPublicKeyFromPEM(path string) (*rsa.PublicKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(b)
	if err != nil {
		return nil, err
	}

	return pub, nil
}

func LoadRSAPrivateKeyFromPEM(path string) (*rsa.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(b)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in %s", path)
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	k, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	pk, ok := k.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("not RSA private key")
	}

	return pk, nil
}
