package channels

import (
	"strings"
)

// Visibility classifies who may subscribe to a channel.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
	VisibilityAdmin   Visibility = "admin"
)

const (
	// PublicAppointments is the topic for appointment events any authenticated
	// subscriber may follow.
	PublicAppointments = "appointments"
	// AdminAppointments is the privileged topic for administratively visible
	// appointment events.
	AdminAppointments = "admin.appointments"

	userPrefix  = "user."
	adminPrefix = "admin."
)

// Channel is a named delivery topic.
type Channel struct {
	Name       string
	Visibility Visibility
}

// String returns the channel name.
func (c Channel) String() string { return c.Name }

// Public returns a public topic channel.
func Public(name string) Channel {
	return Channel{Name: name, Visibility: VisibilityPublic}
}

// Admin returns an admin topic channel.
func Admin(name string) Channel {
	return Channel{Name: name, Visibility: VisibilityAdmin}
}

// User returns the private channel of a single account.
func User(accountID string) Channel {
	return Channel{Name: userPrefix + accountID, Visibility: VisibilityPrivate}
}

// UserID returns the account id of a private channel name.
func UserID(name string) (string, bool) {
	if !strings.HasPrefix(name, userPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(name, userPrefix)
	if id == "" || strings.ContainsAny(id, ". \t") {
		return "", false
	}
	return id, true
}

// IsAdmin reports whether name is in the admin namespace.
func IsAdmin(name string) bool {
	return strings.HasPrefix(name, adminPrefix) && len(name) > len(adminPrefix)
}

// Names flattens a channel list into names.
func Names(list []Channel) []string {
	out := make([]string, 0, len(list))
	for _, ch := range list {
		out = append(out, ch.Name)
	}
	return out
}
