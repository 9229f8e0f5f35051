package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/goliatone/go-clinic-notifications/pkg/channels"
	"github.com/labstack/echo/v4"
)

var (
	errMissingAuthorization = errors.New("missing authorization header")
	errBadAuthorization     = errors.New("bad auth header")
	errMissingSubject       = errors.New("missing sub")
)

const identityKey = "identity"

// Authenticator validates HS256 bearer tokens and maps their claims to a
// channels.Identity. Roles are read from the "roles" claim.
type Authenticator struct {
	secret []byte
	parser *jwt.Parser
	now    func() time.Time
}

// NewAuthenticator builds an authenticator for secret.
func NewAuthenticator(secret []byte) (*Authenticator, error) {
	if len(secret) == 0 {
		return nil, channels.ErrSecretRequired
	}
	return &Authenticator{
		secret: append([]byte(nil), secret...),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
		now:    time.Now,
	}, nil
}

// IdentityFromHeader parses an Authorization header value.
func (a *Authenticator) IdentityFromHeader(header string) (channels.Identity, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return channels.Identity{}, errMissingAuthorization
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return channels.Identity{}, errBadAuthorization
	}
	return a.IdentityFromToken(strings.TrimSpace(parts[1]))
}

// IdentityFromToken parses a raw bearer token.
func (a *Authenticator) IdentityFromToken(raw string) (channels.Identity, error) {
	if strings.Count(raw, ".") != 2 {
		return channels.Identity{}, errBadAuthorization
	}
	token, err := a.parser.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return a.secret, nil
	})
	if err != nil {
		return channels.Identity{}, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return channels.Identity{}, errors.New("invalid claims")
	}
	sub, _ := claims["sub"].(string)
	if strings.TrimSpace(sub) == "" {
		return channels.Identity{}, errMissingSubject
	}
	return channels.Identity{ID: sub, Authenticated: true, Roles: rolesClaim(claims["roles"])}, nil
}

func rolesClaim(raw any) []string {
	switch v := raw.(type) {
	case string:
		if v == "" {
			return nil
		}
		return strings.Fields(v)
	case []any:
		roles := make([]string, 0, len(v))
		for _, item := range v {
			if role, ok := item.(string); ok && role != "" {
				roles = append(roles, role)
			}
		}
		return roles
	default:
		return nil
	}
}

// SignToken issues a bearer token compatible with Authenticator. Used by the
// CLI and tests.
func SignToken(secret []byte, subject string, roles []string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", channels.ErrSecretRequired
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
	}
	if len(roles) > 0 {
		claims["roles"] = roles
	}
	if ttl > 0 {
		claims["exp"] = now.Add(ttl).Unix()
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("httpapi: sign token: %w", err)
	}
	return signed, nil
}

// requireIdentity rejects requests without a valid bearer token. EventSource
// clients cannot set headers, so a "token" query parameter is accepted too.
func (s *Server) requireIdentity(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		if header == "" {
			if token := c.QueryParam("token"); token != "" {
				header = "Bearer " + token
			}
		}
		identity, err := s.auth.IdentityFromHeader(header)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		c.Set(identityKey, identity)
		return next(c)
	}
}

func identityFrom(c echo.Context) channels.Identity {
	identity, _ := c.Get(identityKey).(channels.Identity)
	return identity
}
