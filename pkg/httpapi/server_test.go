package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-clinic-notifications/internal/storage/memory"
	"github.com/goliatone/go-clinic-notifications/pkg/channels"
	"github.com/goliatone/go-clinic-notifications/pkg/domain"
	"github.com/goliatone/go-clinic-notifications/pkg/interfaces/broadcaster"
	"github.com/goliatone/go-clinic-notifications/pkg/notifications"
	transportmemory "github.com/goliatone/go-clinic-notifications/pkg/transport/memory"
)

var testSecret = []byte("test-secret")

type fixture struct {
	server *Server
	repo   *memory.NotificationRepository
	hub    *transportmemory.Hub
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	repo := memory.NewNotificationRepository()
	hub := transportmemory.NewHub(nil)
	query, err := notifications.New(notifications.Dependencies{Repository: repo, Broadcaster: hub})
	if err != nil {
		t.Fatalf("notifications: %v", err)
	}
	granter, err := channels.NewGranter(channels.NewAuthorizer(), testSecret)
	if err != nil {
		t.Fatalf("granter: %v", err)
	}
	auth, err := NewAuthenticator(testSecret)
	if err != nil {
		t.Fatalf("authenticator: %v", err)
	}
	srv, err := New(Dependencies{
		Notifications: query,
		Granter:       granter,
		Subscriber:    hub,
		Authenticator: auth,
		KeepAlive:     time.Hour,
	})
	if err != nil {
		t.Fatalf("server: %v", err)
	}
	return fixture{server: srv, repo: repo, hub: hub}
}

func bearer(t *testing.T, subject string, roles ...string) string {
	t.Helper()
	token, err := SignToken(testSecret, subject, roles, time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func (f fixture) do(t *testing.T, method, target, token string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func (f fixture) seed(t *testing.T, userID string, count int, read bool) []domain.Notification {
	t.Helper()
	out := make([]domain.Notification, 0, count)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < count; i++ {
		n := &domain.Notification{UserID: userID, Type: "appointment.created", Title: "New appointment"}
		n.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if read {
			n.ReadAt = base
		}
		if err := f.repo.Create(context.Background(), n); err != nil {
			t.Fatalf("seed: %v", err)
		}
		out = append(out, *n)
	}
	return out
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestRequiresAuthentication(t *testing.T) {
	f := newFixture(t)
	if rec := f.do(t, http.MethodGet, "/notifications", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	forged, _ := SignToken([]byte("other"), "7", nil, time.Hour)
	if rec := f.do(t, http.MethodGet, "/notifications", forged, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for foreign signature, got %d", rec.Code)
	}
}

func TestListNotifications(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "7", 3, false)
	f.seed(t, "7", 2, true)
	f.seed(t, "42", 4, false)

	rec := f.do(t, http.MethodGet, "/notifications?per_page=2&page=2", bearer(t, "7"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode[notifications.ListResponse](t, rec)
	if body.Total != 5 || body.CurrentPage != 2 || body.PerPage != 2 || body.LastPage != 3 {
		t.Fatalf("unexpected pagination %+v", body)
	}
	if body.UnreadCount != 3 || len(body.Data) != 2 {
		t.Fatalf("unexpected page body %+v", body)
	}

	rec = f.do(t, http.MethodGet, "/notifications?unread_only=true", bearer(t, "7"), "")
	body = decode[notifications.ListResponse](t, rec)
	if body.Total != 3 {
		t.Fatalf("expected 3 unread, got %d", body.Total)
	}
	for _, item := range body.Data {
		if item.ReadAt != nil {
			t.Fatalf("expected unread items only, got %+v", item)
		}
	}
}

func TestQueryValidation(t *testing.T) {
	f := newFixture(t)
	token := bearer(t, "7")
	for _, target := range []string{
		"/notifications?per_page=-1",
		"/notifications?per_page=101",
		"/notifications?page=-2",
		"/notifications/latest?limit=51",
	} {
		if rec := f.do(t, http.MethodGet, target, token, ""); rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("%s: expected 422, got %d", target, rec.Code)
		}
	}
	if rec := f.do(t, http.MethodGet, "/notifications?page=abc", token, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed page, got %d", rec.Code)
	}
}

func TestLatestAndUnreadCount(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "7", 4, false)
	token := bearer(t, "7")

	rec := f.do(t, http.MethodGet, "/notifications/latest?limit=3", token, "")
	feed := decode[notifications.FeedResponse](t, rec)
	if len(feed.Data) != 3 || feed.UnreadCount != 4 {
		t.Fatalf("unexpected feed %+v", feed)
	}
	if !feed.Data[0].Time.After(feed.Data[1].Time) {
		t.Fatalf("expected newest first")
	}

	rec = f.do(t, http.MethodGet, "/notifications/unread-count", token, "")
	if count := decode[notifications.CountResponse](t, rec); count.Count != 4 {
		t.Fatalf("expected 4 unread, got %d", count.Count)
	}
}

func TestMutations(t *testing.T) {
	f := newFixture(t)
	mine := f.seed(t, "7", 3, false)
	theirs := f.seed(t, "42", 1, false)
	token := bearer(t, "7")

	if rec := f.do(t, http.MethodPost, "/notifications/"+mine[0].ID.String()+"/read", token, ""); rec.Code != http.StatusOK {
		t.Fatalf("mark read: %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/notifications/"+theirs[0].ID.String()+"/read", token, ""); rec.Code != http.StatusOK {
		t.Fatalf("foreign id must be acknowledged, got %d", rec.Code)
	}
	if n, _ := f.repo.GetByID(context.Background(), theirs[0].ID); !n.Unread() {
		t.Fatalf("foreign notification must stay unread")
	}
	if rec := f.do(t, http.MethodPost, "/notifications/not-a-uuid/read", token, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", rec.Code)
	}

	rec := f.do(t, http.MethodPost, "/notifications/mark-all-read", token, "")
	if ack := decode[notifications.AckResponse](t, rec); !ack.Success || ack.Affected != 2 {
		t.Fatalf("unexpected mark-all ack %+v", ack)
	}

	if rec := f.do(t, http.MethodDelete, "/notifications/"+mine[1].ID.String(), token, ""); rec.Code != http.StatusOK {
		t.Fatalf("delete: %d", rec.Code)
	}
	rec = f.do(t, http.MethodDelete, "/notifications/read/all", token, "")
	if ack := decode[notifications.AckResponse](t, rec); ack.Affected != 2 {
		t.Fatalf("expected 2 read deleted, got %+v", ack)
	}

	rec = f.do(t, http.MethodGet, "/notifications", token, "")
	if body := decode[notifications.ListResponse](t, rec); body.Total != 0 {
		t.Fatalf("expected empty feed, got %d", body.Total)
	}
}

func TestBroadcastingAuth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/broadcasting/auth", bearer(t, "7"), `{"channel_name":"user.7","socket_id":"s1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	grant := decode[authResponse](t, rec)
	if _, err := f.server.granter.Verify(grant.Auth, "user.7"); err != nil {
		t.Fatalf("issued grant must verify: %v", err)
	}

	cases := []struct {
		token   string
		channel string
		status  int
	}{
		{bearer(t, "7"), "user.42", http.StatusForbidden},
		{bearer(t, "7"), "admin.appointments", http.StatusForbidden},
		{bearer(t, "1", channels.RoleAdmin), "admin.appointments", http.StatusOK},
		{bearer(t, "7"), "appointments", http.StatusOK},
		{bearer(t, "7"), "unknown", http.StatusForbidden},
	}
	for _, tc := range cases {
		rec := f.do(t, http.MethodPost, "/broadcasting/auth", tc.token, `{"channel_name":"`+tc.channel+`"}`)
		if rec.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.channel, tc.status, rec.Code)
		}
	}

	if rec := f.do(t, http.MethodPost, "/broadcasting/auth", bearer(t, "7"), `{}`); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for missing channel, got %d", rec.Code)
	}
}

func TestStreamRejectsMissingGrant(t *testing.T) {
	f := newFixture(t)
	token := bearer(t, "7")

	if rec := f.do(t, http.MethodGet, "/broadcasting/stream?channel=user.7", token, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without grant, got %d", rec.Code)
	}
	other, _ := f.server.granter.Issue(channels.Identity{ID: "42", Authenticated: true}, "user.42", "")
	if rec := f.do(t, http.MethodGet, "/broadcasting/stream?channel=user.7&auth="+other, token, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign grant, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/broadcasting/stream", token, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without channel, got %d", rec.Code)
	}
}

func TestStreamRelaysMessages(t *testing.T) {
	f := newFixture(t)
	identity := channels.Identity{ID: "7", Authenticated: true}
	grant, err := f.server.granter.Issue(identity, "user.7", "s1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/broadcasting/stream?channel=user.7&auth="+grant+"&token="+bearer(t, "7"), nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.server.ServeHTTP(rec, req)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for f.hub.Subscribers("user.7") == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if f.hub.Subscribers("user.7") == 0 {
		cancel()
		t.Fatalf("stream never subscribed")
	}

	_ = f.hub.Broadcast(context.Background(), broadcaster.Event{
		Channel: "user.7",
		Name:    "AppointmentCreated",
		Payload: map[string]any{"notification_id": "n1"},
	})
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := rec.Body.String()
	if rec.Header().Get("Content-Type") != "text/event-stream" {
		t.Fatalf("unexpected content type %q", rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(body, "event: AppointmentCreated\ndata: {\"notification_id\":\"n1\"}\n\n") {
		t.Fatalf("unexpected stream body %q", body)
	}
}
