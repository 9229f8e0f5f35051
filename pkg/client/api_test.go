package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goliatone/go-clinic-notifications/internal/storage/memory"
	"github.com/goliatone/go-clinic-notifications/pkg/channels"
	"github.com/goliatone/go-clinic-notifications/pkg/domain"
	"github.com/goliatone/go-clinic-notifications/pkg/httpapi"
	"github.com/goliatone/go-clinic-notifications/pkg/notifications"
)

var apiSecret = []byte("client-secret")

func newAPIServer(t *testing.T) (*httptest.Server, *memory.NotificationRepository) {
	t.Helper()
	repo := memory.NewNotificationRepository()
	query, err := notifications.New(notifications.Dependencies{Repository: repo})
	if err != nil {
		t.Fatalf("notifications: %v", err)
	}
	granter, _ := channels.NewGranter(channels.NewAuthorizer(), apiSecret)
	auth, _ := httpapi.NewAuthenticator(apiSecret)
	srv, err := httpapi.New(httpapi.Dependencies{Notifications: query, Granter: granter, Authenticator: auth})
	if err != nil {
		t.Fatalf("httpapi: %v", err)
	}
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts, repo
}

func newAPIClient(t *testing.T, baseURL, subject string) *APIClient {
	t.Helper()
	token, err := httpapi.SignToken(apiSecret, subject, nil, time.Hour)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	c, err := NewAPIClient(baseURL, WithToken(token))
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	return c
}

func seedNotifications(t *testing.T, repo *memory.NotificationRepository, userID string, count int) []domain.Notification {
	t.Helper()
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	out := make([]domain.Notification, 0, count)
	for i := 0; i < count; i++ {
		n := &domain.Notification{UserID: userID, Type: "appointment.created", Title: "New appointment"}
		n.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := repo.Create(context.Background(), n); err != nil {
			t.Fatalf("seed: %v", err)
		}
		out = append(out, *n)
	}
	return out
}

func TestAPIClientRoundTrip(t *testing.T) {
	ts, repo := newAPIServer(t)
	seeded := seedNotifications(t, repo, "7", 4)
	api := newAPIClient(t, ts.URL, "7")
	ctx := context.Background()

	page, err := api.List(ctx, ListQuery{Page: 1, PerPage: 3})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 4 || len(page.Data) != 3 || page.LastPage != 2 || page.UnreadCount != 4 {
		t.Fatalf("unexpected page %+v", page)
	}

	if err := api.MarkRead(ctx, seeded[0].ID.String()); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if count, err := api.UnreadCount(ctx); err != nil || count != 3 {
		t.Fatalf("expected 3 unread, got %d (%v)", count, err)
	}
	if err := api.Delete(ctx, seeded[1].ID.String()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := api.MarkAllRead(ctx); err != nil {
		t.Fatalf("mark all: %v", err)
	}
	if err := api.DeleteRead(ctx); err != nil {
		t.Fatalf("delete read: %v", err)
	}
	feed, err := api.Latest(ctx, 10)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if len(feed.Data) != 0 || feed.UnreadCount != 0 {
		t.Fatalf("expected empty feed, got %+v", feed)
	}
}

func TestAPIClientStatusError(t *testing.T) {
	ts, _ := newAPIServer(t)
	api, _ := NewAPIClient(ts.URL)

	_, err := api.Latest(context.Background(), 5)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 status error, got %v", err)
	}
}

func TestAPIClientAuthorizeChannel(t *testing.T) {
	ts, _ := newAPIServer(t)
	api := newAPIClient(t, ts.URL, "7")

	grant, err := api.AuthorizeChannel(context.Background(), "user.7", "s1")
	if err != nil || grant == "" {
		t.Fatalf("expected grant, got %q (%v)", grant, err)
	}
	_, err = api.AuthorizeChannel(context.Background(), "user.42", "s1")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Status != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}
}

func TestStoreAgainstAPI(t *testing.T) {
	ts, repo := newAPIServer(t)
	seeded := seedNotifications(t, repo, "7", 3)
	store := newStore(t, newAPIClient(t, ts.URL, "7"))
	ctx := context.Background()

	if err := store.FetchLatest(ctx, 2); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if store.Len() != 2 || store.UnreadCount() != 3 {
		t.Fatalf("expected 2 items and 3 unread, got %d/%d", store.Len(), store.UnreadCount())
	}
	if err := store.Dismiss(ctx, seeded[2].ID.String()); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	if err := store.MarkAllRead(ctx); err != nil {
		t.Fatalf("mark all: %v", err)
	}
	if err := store.FetchLatest(ctx, 10); err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if store.UnreadCount() != 0 || store.Len() != 2 {
		t.Fatalf("expected 2 read items after reconcile, got %d/%d", store.Len(), store.UnreadCount())
	}
}
