package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RecordMeta captures identifiers and audit fields shared across entities.
type RecordMeta struct {
	ID        uuid.UUID `bun:",pk,type:uuid" json:"id"`
	CreatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"updated_at"`
	DeletedAt time.Time `bun:",soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// EnsureID assigns a UUID when the struct is about to be persisted.
func (m *RecordMeta) EnsureID() {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
}

// JSONMap persists arbitrary metadata fields as JSON.
type JSONMap map[string]any

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("null"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(value any) error {
	if m == nil {
		return errors.New("JSONMap: Scan on nil pointer")
	}
	switch v := value.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("JSONMap: unsupported type %T", value)
	}
}

// Notification is the durable, per-user row behind the notification feed.
type Notification struct {
	bun.BaseModel `bun:"table:notifications"`
	RecordMeta

	UserID      string    `bun:",nullzero,notnull" json:"user_id"`
	Type        string    `bun:",nullzero,notnull" json:"type"`
	Title       string    `bun:",nullzero" json:"title"`
	Description string    `bun:",nullzero" json:"description"`
	Data        JSONMap   `bun:"type:jsonb,nullzero" json:"data,omitempty"`
	ReadAt      time.Time `bun:",nullzero" json:"read_at,omitempty"`
}

// Unread reports whether the notification has not been read yet.
func (n Notification) Unread() bool {
	return n.ReadAt.IsZero()
}

// User is an application account. Clients and veterinaries may link one.
type User struct {
	bun.BaseModel `bun:"table:users"`

	ID      int64  `bun:",pk,autoincrement" json:"id"`
	Name    string `bun:",nullzero" json:"name"`
	Email   string `bun:",nullzero" json:"email"`
	IsAdmin bool   `bun:",nullzero" json:"is_admin"`
}

// Client is a pet owner.
type Client struct {
	bun.BaseModel `bun:"table:clients"`

	ID     int64  `bun:",pk,autoincrement" json:"id"`
	Name   string `bun:",nullzero" json:"name"`
	UserID *int64 `bun:",nullzero" json:"user_id,omitempty"`
	User   *User  `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
}

// Veterinary is a clinic practitioner.
type Veterinary struct {
	bun.BaseModel `bun:"table:veterinaries"`

	ID     int64  `bun:",pk,autoincrement" json:"id"`
	Name   string `bun:",nullzero" json:"name"`
	UserID *int64 `bun:",nullzero" json:"user_id,omitempty"`
	User   *User  `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
}

// Pet is the patient of an appointment.
type Pet struct {
	bun.BaseModel `bun:"table:pets"`

	ID      int64  `bun:",pk,autoincrement" json:"id"`
	Name    string `bun:",nullzero" json:"name"`
	Species string `bun:",nullzero" json:"species"`
}

// Appointment is the source entity for appointment notifications. Relations are
// hydrated by the caller; any of them may be nil.
type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	ID             int64       `bun:",pk,autoincrement" json:"id"`
	UUID           uuid.UUID   `bun:"uuid,type:uuid" json:"uuid"`
	StartsAt       time.Time   `bun:",nullzero,notnull" json:"starts_at"`
	EndsAt         time.Time   `bun:",nullzero" json:"ends_at"`
	Status         string      `bun:",nullzero" json:"status"`
	Reason         string      `bun:",nullzero" json:"reason"`
	VeterinaryID   *int64      `bun:",nullzero" json:"veterinary_id,omitempty"`
	ClientID       *int64      `bun:",nullzero" json:"client_id,omitempty"`
	PetID          *int64      `bun:",nullzero" json:"pet_id,omitempty"`
	Veterinary     *Veterinary `bun:"rel:belongs-to,join:veterinary_id=id" json:"veterinary,omitempty"`
	Client         *Client     `bun:"rel:belongs-to,join:client_id=id" json:"client,omitempty"`
	Pet            *Pet        `bun:"rel:belongs-to,join:pet_id=id" json:"pet,omitempty"`
	ReminderSentAt time.Time   `bun:",nullzero" json:"reminder_sent_at,omitempty"`
}

// AccountID returns the linked account id as a string, or "" when the client
// or its account did not resolve.
func (c *Client) AccountID() string {
	if c == nil {
		return ""
	}
	return linkedAccount(c.User)
}

// AccountID returns the linked account id as a string, or "" when the
// veterinary or its account did not resolve.
func (v *Veterinary) AccountID() string {
	if v == nil {
		return ""
	}
	return linkedAccount(v.User)
}

// A foreign key alone is not enough: the account row itself must be loaded.
func linkedAccount(user *User) string {
	if user == nil || user.ID == 0 {
		return ""
	}
	return strconv.FormatInt(user.ID, 10)
}

// Appointment statuses.
const (
	AppointmentStatusPending   = "pending"
	AppointmentStatusConfirmed = "confirmed"
	AppointmentStatusCancelled = "cancelled"
	AppointmentStatusCompleted = "completed"
)
