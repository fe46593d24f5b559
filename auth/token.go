package auth

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/Dosada05/lanparty/models"
	"github.com/golang-jwt/jwt/v4"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

// Claims is the token payload. Roles are keyed by event id in decimal form because JSON
// object keys are strings.
type Claims struct {
	UserID int                    `json:"uid"`
	Admin  bool                   `json:"admin"`
	Roles  map[string]models.Role `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

type TokenManager struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration, issuer string) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: issuer,
		now:    time.Now,
	}
}

// Issue signs a token for the user with its current event roles.
func (m *TokenManager) Issue(user *models.User, registrations []models.Registration) (string, time.Time, error) {
	if user == nil || user.ID <= 0 {
		return "", time.Time{}, ErrInvalidToken
	}

	roles := make(map[string]models.Role, len(registrations))
	for _, reg := range registrations {
		roles[strconv.Itoa(reg.EventID)] = reg.Role
	}

	now := m.now()
	expires := now.Add(m.ttl)
	claims := &Claims{
		UserID: user.ID,
		Admin:  user.IsAdmin,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(user.ID),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// Verify checks the signature and expiry and returns the caller.
func (m *TokenManager) Verify(tokenString string) (*Caller, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, ErrMissingToken
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID <= 0 {
		return nil, ErrInvalidToken
	}

	caller := &Caller{
		UserID: claims.UserID,
		Admin:  claims.Admin,
		Roles:  make(map[int]models.Role, len(claims.Roles)),
	}
	for k, role := range claims.Roles {
		eventID, err := strconv.Atoi(k)
		if err != nil || !role.Valid() {
			return nil, ErrInvalidToken
		}
		caller.Roles[eventID] = role
	}
	return caller, nil
}

// TokenFromHeader extracts the bearer token of an Authorization header.
func TokenFromHeader(authHeader string) (string, error) {
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", ErrMissingToken
	}
	return parts[1], nil
}
