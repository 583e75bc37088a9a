// Package token issues and verifies the short-lived bearer tokens accepted
// by the reference server. A token is base64url(JSON claims) "."
// base64url(HMAC-SHA256(claims)).
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MinSecretSize is the smallest accepted signing secret.
const MinSecretSize = 32

var (
	ErrMalformed      = errors.New("malformed token")
	ErrBadSignature   = errors.New("token signature mismatch")
	ErrExpired        = errors.New("token expired")
	ErrShortSecret    = fmt.Errorf("token secret must be at least %d bytes", MinSecretSize)
	ErrEmptySubject   = errors.New("token subject is empty")
	ErrNonPositiveTTL = errors.New("token lifetime must be positive")
)

// Claims are the signed contents of a token.
type Claims struct {
	Subject  string `json:"sub"`
	ID       string `json:"jti"`
	IssuedAt int64  `json:"iat"`
	Expires  int64  `json:"exp"`
}

// Issuer signs and verifies tokens with one shared secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer returns an issuer whose tokens live for ttl.
func NewIssuer(secret []byte, ttl time.Duration) (*Issuer, error) {
	if len(secret) < MinSecretSize {
		return nil, ErrShortSecret
	}
	if ttl <= 0 {
		return nil, ErrNonPositiveTTL
	}
	return &Issuer{
		secret: append([]byte(nil), secret...),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue returns a token for subject.
func (i *Issuer) Issue(subject string) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", ErrEmptySubject
	}
	now := i.now()
	claims := Claims{
		Subject:  subject,
		ID:       uuid.NewString(),
		IssuedAt: now.Unix(),
		Expires:  now.Add(i.ttl).Unix(),
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}

	enc := base64.RawURLEncoding
	return enc.EncodeToString(payload) + "." + enc.EncodeToString(i.sign(payload)), nil
}

// Verify checks the signature and expiry of tok and returns its claims.
func (i *Issuer) Verify(tok string) (*Claims, error) {
	body, sig, ok := strings.Cut(tok, ".")
	if !ok {
		return nil, ErrMalformed
	}

	enc := base64.RawURLEncoding
	payload, err := enc.DecodeString(body)
	if err != nil {
		return nil, ErrMalformed
	}
	mac, err := enc.DecodeString(sig)
	if err != nil {
		return nil, ErrMalformed
	}
	if !hmac.Equal(mac, i.sign(payload)) {
		return nil, ErrBadSignature
	}

	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, ErrMalformed
	}
	if claims.Subject == "" {
		return nil, ErrMalformed
	}
	if i.now().Unix() >= claims.Expires {
		return nil, ErrExpired
	}
	return &claims, nil
}

func (i *Issuer) sign(payload []byte) []byte {
	h := hmac.New(sha256.New, i.secret)
	h.Write(payload)
	return h.Sum(nil)
}
