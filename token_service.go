package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// DefaultTokenTTL is used when the service is built without a ttl.
const DefaultTokenTTL = 24 * time.Hour

// TokenService issues and verifies signed bearer tokens. There is no
// revocation: a token stays valid until it expires.
type TokenService interface {
	Issue(identity Identity) (string, error)
	Verify(token string) (*Principal, error)
}

// TokenServiceOption customizes the JWT service.
type TokenServiceOption func(*jwtTokenService)

// WithTokenClock injects the clock used for issuing and verifying.
func WithTokenClock(clock func() time.Time) TokenServiceOption {
	return func(ts *jwtTokenService) {
		if clock != nil {
			ts.now = clock
		}
	}
}

// WithTokenLogger sets the logger.
func WithTokenLogger(logger Logger) TokenServiceOption {
	return func(ts *jwtTokenService) {
		if logger != nil {
			ts.logger = logger
		}
	}
}

type jwtTokenService struct {
	signingKey []byte
	ttl        time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	now        func() time.Time
	logger     Logger
}

// NewTokenService creates an HS256 TokenService.
func NewTokenService(signingKey []byte, ttl time.Duration, issuer string, audience []string, opts ...TokenServiceOption) (TokenService, error) {
	if len(signingKey) == 0 {
		return nil, ErrConfiguration("token signing key is empty", nil)
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	ts := &jwtTokenService{
		signingKey: append([]byte(nil), signingKey...),
		ttl:        ttl,
		issuer:     issuer,
		now:        time.Now,
		logger:     defLogger{},
	}
	if len(audience) > 0 {
		ts.audience = append(jwt.ClaimStrings(nil), audience...)
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}

	return ts, nil
}

// Issue signs a token for identity, with the email as subject.
func (ts *jwtTokenService) Issue(identity Identity) (string, error) {
	if identity == nil {
		return "", goerrors.New("identity is required", goerrors.CategoryBadInput)
	}

	now := ts.now()
	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ts.issuer,
			Subject:   identity.Email(),
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.ttl)),
		},
		UID:      identity.ID(),
		UserRole: string(identity.Role()),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}

	return signed, nil
}

// Verify checks signature, algorithm, issuer, audience and expiry.
func (ts *jwtTokenService) Verify(tokenString string) (*Principal, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(ts.now),
		jwt.WithExpirationRequired(),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired()
		}
		ts.logger.Debug("token verification failed", "error", err)
		return nil, ErrTokenInvalid(err)
	}

	if !token.Valid || claims.Subject == "" {
		return nil, ErrTokenInvalid(nil)
	}

	return claims.principal(), nil
}
