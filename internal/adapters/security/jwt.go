package security

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/maidsofhonourafrica/escrow-service/internal/ports"
)

// JWTVerifier checks access tokens issued by the auth service. It accepts RS256 when a
// public key is configured and HS256 otherwise, never both.
type JWTVerifier struct {
	method   jwt.SigningMethod
	key      any
	issuer   string
	audience string
	leeway   time.Duration
}

type VerifierConfig struct {
	PublicKeyPEM string
	HMACSecret   string
	Issuer       string
	Audience     string
}

func NewJWTVerifier(cfg VerifierConfig) (*JWTVerifier, error) {
	v := &JWTVerifier{
		issuer:   strings.TrimSpace(cfg.Issuer),
		audience: strings.TrimSpace(cfg.Audience),
		leeway:   30 * time.Second,
	}
	switch {
	case strings.TrimSpace(cfg.PublicKeyPEM) != "":
		pub, err := parseRSAPublic(cfg.PublicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("parse public key: %w", err)
		}
		v.method = jwt.SigningMethodRS256
		v.key = pub
	case cfg.HMACSecret != "":
		v.method = jwt.SigningMethodHS256
		v.key = []byte(cfg.HMACSecret)
	default:
		return nil, errors.New("jwt public key or hmac secret is required")
	}
	return v, nil
}

type accessClaims struct {
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

func (v *JWTVerifier) Verify(raw string) (ports.AuthClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{v.method.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	parsed, err := jwt.ParseWithClaims(raw, &accessClaims{}, func(*jwt.Token) (any, error) {
		return v.key, nil
	}, opts...)
	if err != nil {
		return ports.AuthClaims{}, err
	}
	claims, ok := parsed.Claims.(*accessClaims)
	if !ok || !parsed.Valid {
		return ports.AuthClaims{}, errors.New("invalid token claims")
	}

	subject := strings.TrimSpace(claims.UserID)
	if subject == "" {
		subject = strings.TrimSpace(claims.Subject)
	}
	if subject == "" {
		return ports.AuthClaims{}, errors.New("token has no subject")
	}
	return ports.AuthClaims{
		SubjectID: subject,
		Role:      claims.Role,
		SessionID: claims.SessionID,
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}, nil
}

func parseRSAPublic(raw string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(raw))
	if block == nil {
		return nil, errors.New("invalid public key pem")
	}
	if key, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		pub, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("public key is not rsa")
		}
		return pub, nil
	}
	return x509.ParsePKCS1PublicKey(block.Bytes)
}
