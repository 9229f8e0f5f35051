package channels

import (
	"github.com/goliatone/go-clinic-notifications/pkg/events"
)

// Rule declares where events of one kind are delivered.
type Rule struct {
	// Public is the topic broadcast to every authenticated subscriber. Empty
	// disables the public copy.
	Public string
	// Roles are the actors, in delivery order, whose linked account receives a
	// private copy.
	Roles []events.Role
	// Admin is the privileged topic. Empty means the kind is not
	// administratively visible.
	Admin string
}

// DefaultRules covers every appointment kind.
func DefaultRules() map[events.Kind]Rule {
	return RulesFor(PublicAppointments, AdminAppointments)
}

// RulesFor builds the appointment rules around custom topic names.
func RulesFor(public, admin string) map[events.Kind]Rule {
	actors := []events.Role{events.RoleVeterinary, events.RoleClient}
	return map[events.Kind]Rule{
		events.KindAppointmentCreated: {
			Public: public,
			Roles:  actors,
			Admin:  admin,
		},
		events.KindAppointmentReminder: {
			Public: public,
			Roles:  actors,
		},
		events.KindAppointmentCancelled: {
			Public: public,
			Roles:  actors,
			Admin:  admin,
		},
	}
}

// Resolver maps events to their ordered delivery channels.
type Resolver struct {
	rules map[events.Kind]Rule
}

// NewResolver builds a resolver. Nil rules fall back to DefaultRules.
func NewResolver(rules map[events.Kind]Rule) *Resolver {
	if rules == nil {
		rules = DefaultRules()
	}
	copied := make(map[events.Kind]Rule, len(rules))
	for kind, rule := range rules {
		rule.Roles = append([]events.Role(nil), rule.Roles...)
		copied[kind] = rule
	}
	return &Resolver{rules: copied}
}

// Resolve returns the public topic first, then one private channel per role
// with a linked account, then the admin topic. Duplicates keep their first
// position. Events without a rule resolve to no channels.
func (r *Resolver) Resolve(evt events.Event) []Channel {
	if evt == nil {
		return nil
	}
	rule, ok := r.rules[evt.Kind()]
	if !ok {
		return nil
	}

	out := make([]Channel, 0, len(rule.Roles)+2)
	seen := make(map[string]struct{}, len(rule.Roles)+2)
	add := func(ch Channel) {
		if _, dup := seen[ch.Name]; dup {
			return
		}
		seen[ch.Name] = struct{}{}
		out = append(out, ch)
	}

	if rule.Public != "" {
		add(Public(rule.Public))
	}
	for _, role := range rule.Roles {
		if account := evt.AccountFor(role); account != "" {
			add(User(account))
		}
	}
	if rule.Admin != "" {
		add(Admin(rule.Admin))
	}
	return out
}
