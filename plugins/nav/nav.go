// Package nav filters the portal's navigation entries by role. The entry
// table is ordered; VisibleTo projects the subset a role may see without
// reordering. Filtering only controls presentation, the entries themselves
// carry no enforcement.
package nav

import (
	"github.com/carebridge/portal/plugins/profile"
)

// Constant name for identifying the nav plugin.
const PluginName = "nav"

// Entry is one navigation item. Label is a translation key resolved by the
// locale layer; Roles lists every role that may see the entry.
type Entry struct {
	Label string
	Path  string
	Roles []profile.Role
}

// allows reports whether the entry is visible to the given role.
func (e Entry) allows(role profile.Role) bool {
	for _, r := range e.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// VisibleTo returns the ordered subset of entries visible to the given role.
// Callers must not render role-gated entries before a profile is resolved.
func VisibleTo(entries []Entry, role profile.Role) []Entry {
	visible := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.allows(role) {
			visible = append(visible, e)
		}
	}
	return visible
}

// everyone is shorthand for entries with no role restriction.
var everyone = []profile.Role{profile.RoleAdmin, profile.RoleDoctor, profile.RolePatient}

// DefaultEntries returns the portal's sidebar table in display order.
func DefaultEntries() []Entry {
	return []Entry{
		{Label: "dashboard", Path: "/dashboard", Roles: everyone},
		{Label: "appointments", Path: "/appointments", Roles: everyone},
		{Label: "medical_records", Path: "/medical-records", Roles: everyone},
		{Label: "patients", Path: "/patients", Roles: []profile.Role{profile.RoleAdmin, profile.RoleDoctor}},
		{Label: "doctors", Path: "/doctors", Roles: []profile.Role{profile.RoleAdmin}},
		{Label: "departments", Path: "/departments", Roles: []profile.Role{profile.RoleAdmin}},
		{Label: "billing", Path: "/billing", Roles: []profile.Role{profile.RoleAdmin, profile.RolePatient}},
		{Label: "analytics", Path: "/analytics", Roles: []profile.Role{profile.RoleAdmin, profile.RoleDoctor}},
		{Label: "chatbot", Path: "/chatbot", Roles: everyone},
		{Label: "telemedicine", Path: "/telemedicine", Roles: everyone},
		{Label: "queue_management", Path: "/queue", Roles: everyone},
		{Label: "messages", Path: "/messages", Roles: everyone},
		{Label: "settings", Path: "/settings", Roles: everyone},
	}
}

// Option allows configuration of the NavPlugin.
type Option func(*NavPlugin)

// WithEntries replaces the default entry table.
func WithEntries(entries []Entry) Option {
	return func(p *NavPlugin) {
		p.entries = entries
	}
}

// Plugin returns a new NavPlugin serving the default entry table.
func Plugin(opts ...Option) *NavPlugin {
	p := &NavPlugin{entries: DefaultEntries()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NavPlugin exposes the entry table to the rest of the app.
type NavPlugin struct {
	entries []Entry
}

// From portal.Plugin.
func (p *NavPlugin) Name() string {
	return PluginName
}

// Entries returns the full ordered table.
func (p *NavPlugin) Entries() []Entry {
	return p.entries
}

// VisibleTo returns the ordered subset of the table visible to the role.
func (p *NavPlugin) VisibleTo(role profile.Role) []Entry {
	return VisibleTo(p.entries, role)
}
