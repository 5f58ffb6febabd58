package service

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token classes. Access and refresh tokens are signed with disjoint secrets
// and carry the class in a "cls" claim, so one can never stand in for the
// other.
const (
	TokenClassAccess  = "access"
	TokenClassRefresh = "refresh"
)

var (
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenSignature = errors.New("token signature invalid")
)

type TokenClaims struct {
	UserID    int64
	TokenID   string
	ExpiresAt time.Time
}

type tokenClaims struct {
	Class string `json:"cls"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies the two token classes. It performs no I/O;
// validity is entirely signature plus expiry.
type TokenCodec struct {
	accessSecret  []byte
	refreshSecret []byte
}

func NewTokenCodec(accessSecret, refreshSecret []byte) (*TokenCodec, error) {
	if len(accessSecret) == 0 || len(refreshSecret) == 0 {
		return nil, fmt.Errorf("%w: JWT_ACCESS_SECRET and JWT_REFRESH_SECRET are required", ErrMisconfigured)
	}
	if bytes.Equal(accessSecret, refreshSecret) {
		return nil, fmt.Errorf("%w: access and refresh secrets must differ", ErrMisconfigured)
	}
	return &TokenCodec{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
	}, nil
}

// Encode mints a signed token for the user. The returned token ID (jti) is
// the revocable identity of refresh tokens; access tokens get one too but it
// is never recorded anywhere.
func (c *TokenCodec) Encode(userID int64, class string, ttl time.Duration) (string, string, error) {
	secret, err := c.secretFor(class)
	if err != nil {
		return "", "", err
	}

	now := time.Now()
	tokenID := uuid.NewString()
	claims := tokenClaims{
		Class: class,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ID:        tokenID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", "", err
	}
	return signed, tokenID, nil
}

// Decode verifies a token against the expected class. Errors are
// ErrTokenExpired, ErrTokenSignature or ErrTokenMalformed; callers facing
// clients must collapse all three to a generic unauthorized response.
func (c *TokenCodec) Decode(tokenStr, class string) (*TokenClaims, error) {
	secret, err := c.secretFor(class)
	if err != nil {
		return nil, err
	}

	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrTokenSignature
		default:
			return nil, ErrTokenMalformed
		}
	}
	if !token.Valid || claims.Class != class {
		return nil, ErrTokenSignature
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, ErrTokenMalformed
	}

	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	return &TokenClaims{
		UserID:    userID,
		TokenID:   claims.ID,
		ExpiresAt: expiresAt,
	}, nil
}

func (c *TokenCodec) secretFor(class string) ([]byte, error) {
	switch class {
	case TokenClassAccess:
		return c.accessSecret, nil
	case TokenClassRefresh:
		return c.refreshSecret, nil
	default:
		return nil, fmt.Errorf("%w: unknown token class %q", ErrMisconfigured, class)
	}
}
