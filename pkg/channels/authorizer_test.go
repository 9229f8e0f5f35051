package channels

import (
	"errors"
	"testing"
	"time"
)

func TestAuthorizerPrivateChannel(t *testing.T) {
	a := NewAuthorizer()
	owner := Identity{ID: "42", Authenticated: true}
	if !a.Authorize("user.42", owner) {
		t.Fatalf("expected owner to be allowed")
	}
	if a.Authorize("user.7", owner) {
		t.Fatalf("expected other user channel to be denied")
	}
	if a.Authorize("user.42", Identity{ID: "42"}) {
		t.Fatalf("expected unauthenticated caller to be denied")
	}
	if a.Authorize("user.", Identity{ID: "", Authenticated: true}) {
		t.Fatalf("expected empty id channel to be denied")
	}
}

func TestAuthorizerAdminChannel(t *testing.T) {
	a := NewAuthorizer()
	if a.Authorize("admin.appointments", Identity{ID: "1", Authenticated: true}) {
		t.Fatalf("expected non admin to be denied")
	}
	if !a.Authorize("admin.appointments", Identity{ID: "1", Authenticated: true, Roles: []string{RoleAdmin}}) {
		t.Fatalf("expected admin to be allowed")
	}
}

func TestAuthorizerPublicAndUnknown(t *testing.T) {
	a := NewAuthorizer()
	caller := Identity{ID: "5", Authenticated: true}
	if !a.Authorize("appointments", caller) {
		t.Fatalf("expected public topic for authenticated caller")
	}
	if a.Authorize("appointments", Identity{}) {
		t.Fatalf("expected public topic denied for anonymous caller")
	}
	if a.Authorize("billing", caller) {
		t.Fatalf("expected unknown channel denied")
	}
	if vis, ok := a.Classify("user.5"); !ok || vis != VisibilityPrivate {
		t.Fatalf("unexpected classification %q %v", vis, ok)
	}
}

func TestGranterIssueAndVerify(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	g, err := NewGranter(NewAuthorizer(), []byte("secret"), WithGrantTTL(time.Minute), WithGrantClock(clock))
	if err != nil {
		t.Fatalf("new granter: %v", err)
	}
	identity := Identity{ID: "42", Authenticated: true}

	token, err := g.Issue(identity, "user.42", "1234.5678")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	grant, err := g.Verify(token, "user.42")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if grant.Subject != "42" || grant.SocketID != "1234.5678" {
		t.Fatalf("unexpected grant %+v", grant)
	}
	if _, err := g.Verify(token, "user.7"); !errors.Is(err, ErrChannelMismatch) {
		t.Fatalf("expected channel mismatch, got %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := g.Verify(token, "user.42"); !errors.Is(err, ErrInvalidGrant) {
		t.Fatalf("expected expired grant rejected, got %v", err)
	}
}

func TestGranterRejectsForbiddenAndForeignSignature(t *testing.T) {
	g, err := NewGranter(nil, []byte("secret"))
	if err != nil {
		t.Fatalf("new granter: %v", err)
	}
	if _, err := g.Issue(Identity{ID: "1", Authenticated: true}, "user.2", ""); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	other, _ := NewGranter(nil, []byte("other"))
	token, err := other.Issue(Identity{ID: "1", Authenticated: true}, "user.1", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := g.Verify(token, "user.1"); !errors.Is(err, ErrInvalidGrant) {
		t.Fatalf("expected invalid signature, got %v", err)
	}
	if _, err := NewGranter(nil, nil); !errors.Is(err, ErrSecretRequired) {
		t.Fatalf("expected secret required, got %v", err)
	}
}
