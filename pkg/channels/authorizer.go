package channels

import (
	"slices"
	"strings"
)

// RoleAdmin is the capability that unlocks admin topics.
const RoleAdmin = "admin"

// Identity is the authenticated caller as seen by the authorizer.
type Identity struct {
	ID            string
	Authenticated bool
	Roles         []string
}

// IsAdmin reports whether the identity carries the admin capability.
func (i Identity) IsAdmin() bool {
	return i.Authenticated && slices.Contains(i.Roles, RoleAdmin)
}

// Authorizer decides subscription requests. Unknown channel names are denied.
type Authorizer struct {
	public map[string]struct{}
}

// NewAuthorizer registers the public topics. With no arguments the appointment
// topic is used.
func NewAuthorizer(publicTopics ...string) *Authorizer {
	if len(publicTopics) == 0 {
		publicTopics = []string{PublicAppointments}
	}
	public := make(map[string]struct{}, len(publicTopics))
	for _, topic := range publicTopics {
		topic = strings.TrimSpace(topic)
		if topic != "" {
			public[topic] = struct{}{}
		}
	}
	return &Authorizer{public: public}
}

// Authorize returns true when identity may subscribe to channel.
func (a *Authorizer) Authorize(channel string, identity Identity) bool {
	if !identity.Authenticated {
		return false
	}
	if id, ok := UserID(channel); ok {
		return identity.ID != "" && identity.ID == id
	}
	if IsAdmin(channel) {
		return identity.IsAdmin()
	}
	_, ok := a.public[channel]
	return ok
}

// Classify returns the visibility of a channel name this authorizer knows.
func (a *Authorizer) Classify(channel string) (Visibility, bool) {
	if _, ok := UserID(channel); ok {
		return VisibilityPrivate, true
	}
	if IsAdmin(channel) {
		return VisibilityAdmin, true
	}
	if _, ok := a.public[channel]; ok {
		return VisibilityPublic, true
	}
	return "", false
}
