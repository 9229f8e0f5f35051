package notifications

import (
	"time"

	"github.com/goliatone/go-clinic-notifications/pkg/domain"
)

// Item is the JSON shape of one feed entry on the query API.
type Item struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Data        map[string]any `json:"data,omitempty"`
	Time        time.Time      `json:"time"`
	ReadAt      *time.Time     `json:"read_at"`
}

// ListResponse is returned by GET /notifications.
type ListResponse struct {
	Data        []Item `json:"data"`
	Total       int    `json:"total"`
	CurrentPage int    `json:"current_page"`
	PerPage     int    `json:"per_page"`
	LastPage    int    `json:"last_page"`
	UnreadCount int    `json:"unread_count"`
}

// FeedResponse is returned by GET /notifications/latest.
type FeedResponse struct {
	Data        []Item `json:"data"`
	UnreadCount int    `json:"unread_count"`
}

// CountResponse is returned by GET /notifications/unread-count.
type CountResponse struct {
	Count int `json:"count"`
}

// AckResponse acknowledges a mutation. Affected is set for bulk operations.
type AckResponse struct {
	Success  bool `json:"success"`
	Affected int  `json:"affected,omitempty"`
}

// ToItem converts a stored notification.
func ToItem(n domain.Notification) Item {
	item := Item{
		ID:          n.ID.String(),
		Type:        n.Type,
		Title:       n.Title,
		Description: n.Description,
		Time:        n.CreatedAt,
	}
	if len(n.Data) > 0 {
		item.Data = map[string]any(n.Data)
	}
	if !n.ReadAt.IsZero() {
		readAt := n.ReadAt
		item.ReadAt = &readAt
	}
	return item
}

// ToItems converts a slice, never returning nil.
func ToItems(list []domain.Notification) []Item {
	out := make([]Item, 0, len(list))
	for _, n := range list {
		out = append(out, ToItem(n))
	}
	return out
}

// NewListResponse maps a page.
func NewListResponse(p Page) ListResponse {
	return ListResponse{
		Data:        ToItems(p.Items),
		Total:       p.Total,
		CurrentPage: p.Page,
		PerPage:     p.PerPage,
		LastPage:    p.LastPage,
		UnreadCount: p.UnreadCount,
	}
}

// NewFeedResponse maps a latest feed.
func NewFeedResponse(f Feed) FeedResponse {
	return FeedResponse{Data: ToItems(f.Items), UnreadCount: f.UnreadCount}
}
