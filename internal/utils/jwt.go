package utils // package utils provides password hashing and session token helpers

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/Spycrab06/snailmail/internal/model"
)

// SessionToken is a signed HS256 JWT handed out at login and sign-up.
type SessionToken struct {
	Token string
	Exp   time.Time
}

// SessionClaims carries the account's role next to the standard claims. The
// subject is the auth_id in decimal.
type SessionClaims struct {
	AccountType model.AccountType `json:"account_type"`
	Area        model.Area        `json:"area"`
	jwt.RegisteredClaims
}

// AuthID parses the subject claim.
func (c SessionClaims) AuthID() (uint64, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, "invalid subject")
	}
	return id, nil
}

// NewSessionToken signs a token for authID valid for ttlMin minutes.
func NewSessionToken(secret string, authID uint64, accountType model.AccountType, ttlMin int) (SessionToken, error) {
	now := time.Now().UTC()
	exp := now.Add(time.Duration(ttlMin) * time.Minute)
	claims := SessionClaims{
		AccountType: accountType,
		Area:        accountType.Area(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(authID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return SessionToken{}, errors.Wrap(err, "sign session token")
	}
	return SessionToken{Token: signed, Exp: exp}, nil
}

// ParseSessionToken validates signature, algorithm and expiry.
func ParseSessionToken(secret, raw string) (SessionClaims, error) {
	var claims SessionClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return SessionClaims{}, errors.Wrap(err, "parse session token")
	}
	return claims, nil
}
