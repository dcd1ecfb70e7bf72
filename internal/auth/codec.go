package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/utafrali/marketplace/pkg/errors"
)

// Claims is the account snapshot carried by a session token.
type Claims struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Username     string `json:"username"`
	Address      string `json:"address"`
	Phone        string `json:"phoneNumber"`
	ProfileImage string `json:"profileImage"`
	State        string `json:"selectedState"`
	ZipCode      string `json:"zipCode"`
	jwt.RegisteredClaims
}

// Expired reports whether the token is no longer valid at now. A token is
// valid only while exp > now; a missing exp counts as expired.
func (c *Claims) Expired(now time.Time) bool {
	if c.ExpiresAt == nil {
		return true
	}
	return !c.ExpiresAt.Time.After(now)
}

// Codec signs and verifies session tokens with HS256.
type Codec struct {
	secret []byte
	now    func() time.Time
	parser *jwt.Parser
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithClock overrides the time source used for iat/exp.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) { c.now = now }
}

// NewCodec creates a codec for secret. An empty secret is reported by Encode
// and Decode rather than here so that misconfiguration surfaces per call.
func NewCodec(secret string, opts ...CodecOption) *Codec {
	c := &Codec{
		secret: []byte(secret),
		now:    time.Now,
		// Expiry is the caller's decision; see Claims.Expired.
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
			jwt.WithStrictDecoding(),
		),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Encode signs claims with iat = now and exp = now + ttl, both in whole seconds.
func (c *Codec) Encode(claims Claims, ttl time.Duration) (string, error) {
	if len(c.secret) == 0 {
		return "", apperrors.Config("session token secret is empty")
	}

	now := c.now().UTC().Truncate(time.Second)
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Decode verifies the signature and returns the claims. It does not reject
// expired tokens.
func (c *Codec) Decode(token string) (*Claims, error) {
	if len(c.secret) == 0 {
		return nil, apperrors.Config("session token secret is empty")
	}

	claims := &Claims{}
	parsed, err := c.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		return nil, apperrors.InvalidToken(err)
	}
	if !parsed.Valid {
		return nil, apperrors.InvalidToken(nil)
	}
	return claims, nil
}

// ParseUnverified reads the claims without checking the signature. Only
// clients that cannot hold the secret may use it; the server always calls
// Decode.
func ParseUnverified(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, apperrors.InvalidToken(err)
	}
	if claims.ID == "" {
		return nil, apperrors.InvalidToken(errors.New("token has no account id"))
	}
	return claims, nil
}
