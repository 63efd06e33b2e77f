package nav

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/portal/plugins/profile"
)

func paths(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Path
	}
	return out
}

func TestVisibleToPatient(t *testing.T) {
	visible := VisibleTo(DefaultEntries(), profile.RolePatient)
	assert.Equal(t, []string{
		"/dashboard",
		"/appointments",
		"/medical-records",
		"/billing",
		"/chatbot",
		"/telemedicine",
		"/queue",
		"/messages",
		"/settings",
	}, paths(visible))
}

func TestVisibleToDoctor(t *testing.T) {
	visible := VisibleTo(DefaultEntries(), profile.RoleDoctor)
	assert.Equal(t, []string{
		"/dashboard",
		"/appointments",
		"/medical-records",
		"/patients",
		"/analytics",
		"/chatbot",
		"/telemedicine",
		"/queue",
		"/messages",
		"/settings",
	}, paths(visible))
}

func TestVisibleToAdminSeesEverything(t *testing.T) {
	all := DefaultEntries()
	visible := VisibleTo(all, profile.RoleAdmin)
	assert.Equal(t, paths(all), paths(visible))
}

func TestVisibleToPreservesOrder(t *testing.T) {
	entries := []Entry{
		{Label: "b", Path: "/b", Roles: []profile.Role{profile.RolePatient}},
		{Label: "a", Path: "/a", Roles: []profile.Role{profile.RolePatient}},
		{Label: "c", Path: "/c", Roles: []profile.Role{profile.RoleAdmin}},
	}
	visible := VisibleTo(entries, profile.RolePatient)
	assert.Equal(t, []string{"/b", "/a"}, paths(visible))
}

func TestVisibleToIsPure(t *testing.T) {
	entries := DefaultEntries()
	before := paths(entries)

	VisibleTo(entries, profile.RolePatient)
	VisibleTo(entries, profile.RoleDoctor)

	assert.Equal(t, before, paths(entries), "input table is never mutated")
}

func TestVisibleToInvalidRole(t *testing.T) {
	visible := VisibleTo(DefaultEntries(), profile.Role(0))
	assert.Empty(t, visible, "unresolved roles see nothing")
}

func TestPluginDefaults(t *testing.T) {
	p := Plugin()
	require.Len(t, p.Entries(), 13)
	assert.Equal(t, "dashboard", p.Entries()[0].Label)

	visible := p.VisibleTo(profile.RolePatient)
	assert.NotContains(t, paths(visible), "/doctors")
}

func TestPluginWithEntries(t *testing.T) {
	custom := []Entry{{Label: "home", Path: "/", Roles: []profile.Role{profile.RolePatient}}}
	p := Plugin(WithEntries(custom))
	assert.Equal(t, custom, p.Entries())
}
