package channels

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var (
	ErrForbidden       = errors.New("channels: subscription forbidden")
	ErrSecretRequired  = errors.New("channels: grant secret is required")
	ErrInvalidGrant    = errors.New("channels: invalid grant")
	ErrChannelMismatch = errors.New("channels: grant issued for another channel")
)

const defaultGrantTTL = 5 * time.Minute

// Grant is the decoded subscription grant.
type Grant struct {
	Subject   string
	Channel   string
	SocketID  string
	ExpiresAt time.Time
}

// Granter signs short-lived subscription grants for channels the authorizer
// allows.
type Granter struct {
	authorizer *Authorizer
	secret     []byte
	ttl        time.Duration
	now        func() time.Time
	parser     *jwt.Parser
}

// GranterOption customises a Granter.
type GranterOption func(*Granter)

// WithGrantTTL sets the lifetime of issued grants.
func WithGrantTTL(ttl time.Duration) GranterOption {
	return func(g *Granter) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// WithGrantClock overrides the clock used to stamp and check expiry.
func WithGrantClock(now func() time.Time) GranterOption {
	return func(g *Granter) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGranter builds a granter signing with HS256.
func NewGranter(authorizer *Authorizer, secret []byte, opts ...GranterOption) (*Granter, error) {
	if len(secret) == 0 {
		return nil, ErrSecretRequired
	}
	if authorizer == nil {
		authorizer = NewAuthorizer()
	}
	g := &Granter{
		authorizer: authorizer,
		secret:     append([]byte(nil), secret...),
		ttl:        defaultGrantTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	return g, nil
}

// Authorizer exposes the underlying authorizer.
func (g *Granter) Authorizer() *Authorizer { return g.authorizer }

// Issue authorizes identity for channel and returns a signed grant.
func (g *Granter) Issue(identity Identity, channel, socketID string) (string, error) {
	channel = strings.TrimSpace(channel)
	if !g.authorizer.Authorize(channel, identity) {
		return "", ErrForbidden
	}
	now := g.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":       identity.ID,
		"channel":   channel,
		"socket_id": socketID,
		"iat":       now.Unix(),
		"exp":       now.Add(g.ttl).Unix(),
	})
	signed, err := token.SignedString(g.secret)
	if err != nil {
		return "", fmt.Errorf("channels: sign grant: %w", err)
	}
	return signed, nil
}

// Verify checks signature, expiry and channel binding of a grant.
func (g *Granter) Verify(raw, channel string) (Grant, error) {
	token, err := g.parser.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return g.secret, nil
	})
	if err != nil {
		return Grant{}, fmt.Errorf("%w: %v", ErrInvalidGrant, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Grant{}, ErrInvalidGrant
	}
	if !claims.VerifyExpiresAt(g.now().Unix(), true) {
		return Grant{}, fmt.Errorf("%w: expired", ErrInvalidGrant)
	}
	grant := Grant{
		Subject:  stringClaim(claims, "sub"),
		Channel:  stringClaim(claims, "channel"),
		SocketID: stringClaim(claims, "socket_id"),
	}
	if exp, ok := claims["exp"].(float64); ok {
		grant.ExpiresAt = time.Unix(int64(exp), 0)
	}
	if grant.Channel != channel {
		return Grant{}, ErrChannelMismatch
	}
	return grant, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	value, _ := claims[key].(string)
	return value
}
