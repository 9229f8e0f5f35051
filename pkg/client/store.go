package client

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-clinic-notifications/pkg/events"
	"github.com/goliatone/go-clinic-notifications/pkg/interfaces/logger"
	"github.com/goliatone/go-clinic-notifications/pkg/notifications"
	"github.com/goliatone/go-clinic-notifications/pkg/transport"
)

// SyncState tags the last local mutation of an item.
type SyncState string

const (
	SyncPending   SyncState = "pending"
	SyncConfirmed SyncState = "confirmed"
	SyncFailed    SyncState = "failed"
)

// Notification is one entry of the client feed.
type Notification struct {
	ID          string
	Type        string
	Title       string
	Description string
	Time        time.Time
	ReadAt      time.Time
	Data        map[string]any
	Sync        SyncState
}

// Unread reports whether ReadAt is unset.
func (n Notification) Unread() bool { return n.ReadAt.IsZero() }

// Push is a realtime delivery reduced to the fields the feed keeps.
type Push struct {
	ID          string
	Type        string
	Title       string
	Description string
	Time        time.Time
	Data        map[string]any
}

// PushFromMessage extracts a feed push from a transport message. Messages
// without a notification id (public and admin topics) are not feed items.
func PushFromMessage(msg transport.Message) (Push, bool) {
	id, _ := msg.Data["notification_id"].(string)
	if strings.TrimSpace(id) == "" {
		return Push{}, false
	}
	kind, _ := msg.Data["type"].(string)
	message, _ := msg.Data["message"].(string)
	title, _ := msg.Data["title"].(string)
	if title == "" {
		title = events.TitleFor(events.Kind(kind))
	}
	return Push{ID: id, Type: kind, Title: title, Description: message, Data: msg.Data}, true
}

var errQueryRequired = errors.New("client: query service is required")

type entry struct {
	Notification
	rev uint64
}

// Store is the in-memory notification feed of one session. Local state is
// updated before the server acknowledges a mutation; failed mutations stay
// applied, are tagged SyncFailed and are overwritten by the next successful
// FetchLatest. Server calls run outside the lock so pushes and user actions
// may interleave freely.
type Store struct {
	api    QueryService
	now    func() time.Time
	logger logger.Logger

	mu         sync.Mutex
	items      []*entry
	tombstones map[string]SyncState
	offset     int
	rev        uint64
	generation uint64
	onError    func(error)
}

// StoreOption customises a Store.
type StoreOption func(*Store)

// WithStoreClock overrides the clock used for ReadAt and push times.
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithStoreLogger sets the logger.
func WithStoreLogger(lgr logger.Logger) StoreOption {
	return func(s *Store) {
		if lgr != nil {
			s.logger = lgr
		}
	}
}

// NewStore builds an empty feed backed by api.
func NewStore(api QueryService, opts ...StoreOption) (*Store, error) {
	if api == nil {
		return nil, errQueryRequired
	}
	s := &Store{
		api:        api,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     &logger.Nop{},
		tombstones: make(map[string]SyncState),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// OnError registers the handler failed server calls are reported to.
func (s *Store) OnError(fn func(error)) {
	s.mu.Lock()
	s.onError = fn
	s.mu.Unlock()
}

// ReceivePush prepends p as unread unless an item with the same id is already
// present or was dismissed. It reports whether the feed changed.
func (s *Store) ReceivePush(p Push) bool {
	id := strings.TrimSpace(p.ID)
	if id == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(id) >= 0 || s.blocked(id) {
		return false
	}
	at := p.Time
	if at.IsZero() {
		at = s.now()
	}
	s.rev++
	item := &entry{
		Notification: Notification{
			ID:          id,
			Type:        p.Type,
			Title:       p.Title,
			Description: p.Description,
			Time:        at,
			Data:        cloneData(p.Data),
			Sync:        SyncConfirmed,
		},
		rev: s.rev,
	}
	s.items = append([]*entry{item}, s.items...)
	return true
}

// ApplyUnreadCount folds a server-reported unread count into the badge.
func (s *Store) ApplyUnreadCount(count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offset = count - s.localUnread()
}

// FetchLatest pulls the newest limit items and merges them by id. Items with
// a mutation in flight keep their local state; failed items take the server
// state. A fetch started before Detach commits nothing.
func (s *Store) FetchLatest(ctx context.Context, limit int) error {
	s.mu.Lock()
	generation := s.generation
	s.mu.Unlock()

	feed, err := s.api.Latest(ctx, limit)
	if err != nil {
		s.report(err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation {
		return nil
	}
	for _, item := range feed.Data {
		s.merge(item)
	}
	sort.SliceStable(s.items, func(i, j int) bool {
		return s.items[i].Time.After(s.items[j].Time)
	})
	s.offset = feed.UnreadCount - s.localUnread()
	return nil
}

// MarkRead marks id as read locally, then on the server. Unknown ids and
// items already read are a no-op.
func (s *Store) MarkRead(ctx context.Context, id string) error {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 || !s.items[idx].Unread() {
		s.mu.Unlock()
		return nil
	}
	item := s.items[idx]
	s.rev++
	item.rev = s.rev
	item.ReadAt = s.now()
	item.Sync = SyncPending
	rev := item.rev
	s.mu.Unlock()

	err := s.api.MarkRead(ctx, id)
	s.settle(map[string]uint64{id: rev}, err)
	return err
}

// MarkAllRead marks every local item read and clears the server offset.
func (s *Store) MarkAllRead(ctx context.Context) error {
	s.mu.Lock()
	now := s.now()
	revs := make(map[string]uint64)
	for _, item := range s.items {
		if !item.Unread() {
			continue
		}
		s.rev++
		item.rev = s.rev
		item.ReadAt = now
		item.Sync = SyncPending
		revs[item.ID] = item.rev
	}
	s.offset = 0
	s.mu.Unlock()

	err := s.api.MarkAllRead(ctx)
	s.settle(revs, err)
	return err
}

// Dismiss removes id locally, then deletes it on the server. Dismissing an
// id that is not in the feed is a no-op.
func (s *Store) Dismiss(ctx context.Context, id string) error {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return nil
	}
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	s.tombstones[id] = SyncPending
	s.mu.Unlock()

	err := s.api.Delete(ctx, id)
	s.settleTombstones([]string{id}, err)
	return err
}

// DeleteRead removes every read item locally, then on the server.
func (s *Store) DeleteRead(ctx context.Context) error {
	s.mu.Lock()
	kept := s.items[:0]
	removed := make([]string, 0)
	for _, item := range s.items {
		if item.Unread() {
			kept = append(kept, item)
			continue
		}
		removed = append(removed, item.ID)
		s.tombstones[item.ID] = SyncPending
	}
	for i := len(kept); i < len(s.items); i++ {
		s.items[i] = nil
	}
	s.items = kept
	s.mu.Unlock()

	err := s.api.DeleteRead(ctx)
	s.settleTombstones(removed, err)
	return err
}

// UnreadCount is the local unread count corrected by the offset to the last
// server-reported count. Right after a fetch it equals the server count.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return max(0, s.localUnread()+s.offset)
}

// Items returns a copy of the feed, newest first.
func (s *Store) Items() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notification, 0, len(s.items))
	for _, item := range s.items {
		n := item.Notification
		n.Data = cloneData(n.Data)
		out = append(out, n)
	}
	return out
}

// Get returns one item by id.
func (s *Store) Get(id string) (Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return Notification{}, false
	}
	n := s.items[idx].Notification
	n.Data = cloneData(n.Data)
	return n, true
}

// Len returns the number of items in the feed.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Attach feeds messages of sub into the store until ctx is done or the
// subscription ends.
func (s *Store) Attach(ctx context.Context, sub transport.Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-sub.Messages():
			if !ok {
				return nil
			}
			s.receive(msg)
		}
	}
}

// Detach invalidates fetches that are still in flight.
func (s *Store) Detach() {
	s.mu.Lock()
	s.generation++
	s.mu.Unlock()
}

func (s *Store) receive(msg transport.Message) {
	if msg.Event == notifications.UpdatedEvent {
		if count, ok := intValue(msg.Data["unread_count"]); ok {
			s.ApplyUnreadCount(count)
		}
		return
	}
	if push, ok := PushFromMessage(msg); ok {
		s.ReceivePush(push)
	}
}

func (s *Store) merge(item notifications.Item) {
	switch s.tombstones[item.ID] {
	case SyncPending, SyncConfirmed:
		return
	case SyncFailed:
		delete(s.tombstones, item.ID)
	}

	server := Notification{
		ID:          item.ID,
		Type:        item.Type,
		Title:       item.Title,
		Description: item.Description,
		Time:        item.Time,
		Data:        cloneData(item.Data),
		Sync:        SyncConfirmed,
	}
	if item.ReadAt != nil {
		server.ReadAt = *item.ReadAt
	}

	idx := s.indexOf(item.ID)
	if idx < 0 {
		s.rev++
		s.items = append(s.items, &entry{Notification: server, rev: s.rev})
		return
	}
	local := s.items[idx]
	switch local.Sync {
	case SyncPending:
		server.ReadAt = local.ReadAt
		server.Sync = SyncPending
	case SyncFailed:
	default:
		if server.ReadAt.IsZero() || local.ReadAt.After(server.ReadAt) {
			server.ReadAt = local.ReadAt
		}
	}
	local.Notification = server
}

// settle resolves pending read marks whose revision is unchanged.
func (s *Store) settle(revs map[string]uint64, err error) {
	s.mu.Lock()
	for _, item := range s.items {
		if rev, ok := revs[item.ID]; ok && item.rev == rev {
			item.Sync = syncResult(err)
		}
	}
	s.mu.Unlock()
	if err != nil {
		s.report(err)
	}
}

func (s *Store) settleTombstones(ids []string, err error) {
	s.mu.Lock()
	for _, id := range ids {
		if s.tombstones[id] == SyncPending {
			s.tombstones[id] = syncResult(err)
		}
	}
	s.mu.Unlock()
	if err != nil {
		s.report(err)
	}
}

func (s *Store) report(err error) {
	s.mu.Lock()
	handler := s.onError
	s.mu.Unlock()
	s.logger.Warn("client: query service call failed", logger.Field{Key: "error", Value: err})
	if handler != nil {
		handler(err)
	}
}

func (s *Store) indexOf(id string) int {
	for i, item := range s.items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

// blocked reports whether id was dismissed and the deletion did not fail.
func (s *Store) blocked(id string) bool {
	state, ok := s.tombstones[id]
	return ok && state != SyncFailed
}

func (s *Store) localUnread() int {
	count := 0
	for _, item := range s.items {
		if item.Unread() {
			count++
		}
	}
	return count
}

func syncResult(err error) SyncState {
	if err != nil {
		return SyncFailed
	}
	return SyncConfirmed
}

func cloneData(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func intValue(raw any) (int, bool) {
	switch v := raw.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
