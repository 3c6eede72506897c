package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"card-admin/internal/model"
)

type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrWrongType    = errors.New("unexpected token type")
)

type Claims struct {
	Username string    `json:"username"`
	Admin    bool      `json:"adm"`
	Type     TokenType `json:"typ"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 tokens with a shared secret. Tokens
// are self-contained; nothing is recorded server side.
type TokenIssuer struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenIssuer(secret string, issuer string, accessTTL time.Duration, refreshTTL time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, errors.New("token secret is required")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}

	return &TokenIssuer{
		secret:     []byte(secret),
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

// SetClock replaces the time source, used by tests to step past expiry.
func (i *TokenIssuer) SetClock(now func() time.Time) {
	i.now = now
}

func (i *TokenIssuer) AccessTTL() time.Duration {
	return i.accessTTL
}

func (i *TokenIssuer) IssuePair(user model.User) (model.TokenPair, error) {
	access, err := i.Issue(user, AccessToken)
	if err != nil {
		return model.TokenPair{}, err
	}

	refresh, err := i.Issue(user, RefreshToken)
	if err != nil {
		return model.TokenPair{}, err
	}

	return i.pair(access, refresh), nil
}

func (i *TokenIssuer) Issue(user model.User, typ TokenType) (string, error) {
	ttl := i.accessTTL
	if typ == RefreshToken {
		ttl = i.refreshTTL
	}

	now := i.now().UTC()
	claims := Claims{
		Username: user.Username,
		Admin:    user.IsAdmin,
		Type:     typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    i.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, nil
}

// pair assembles a response from already-issued tokens.
func (i *TokenIssuer) pair(access string, refresh string) model.TokenPair {
	return model.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(i.accessTTL.Seconds()),
	}
}

// Renew mints a new access token for user. The refresh token returned is
// either the presented one or, when rotate is set, a freshly issued one.
func (i *TokenIssuer) Renew(user model.User, presented string, rotate bool) (model.TokenPair, error) {
	access, err := i.Issue(user, AccessToken)
	if err != nil {
		return model.TokenPair{}, err
	}

	refresh := presented
	if rotate {
		refresh, err = i.Issue(user, RefreshToken)
		if err != nil {
			return model.TokenPair{}, err
		}
	}

	return i.pair(access, refresh), nil
}

// Parse verifies signature, issuer, expiry and type. Every failure maps to
// ErrInvalidToken, ErrTokenExpired or ErrWrongType.
func (i *TokenIssuer) Parse(tokenString string, expected TokenType) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (interface{}, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrTokenExpired
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	if expected != "" && claims.Type != expected {
		return nil, ErrWrongType
	}

	return claims, nil
}

// AuthClaims flattens verified claims for request contexts.
func (c *Claims) AuthClaims() *model.AuthClaims {
	return &model.AuthClaims{
		UserID:   c.Subject,
		Username: c.Username,
		IsAdmin:  c.Admin,
		Type:     string(c.Type),
		TokenID:  c.ID,
	}
}
