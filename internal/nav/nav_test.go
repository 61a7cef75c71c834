package nav

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/Arrogantx/slapper/internal/types"
)

func paths(links []Link) []string {
	out := make([]string, len(links))
	for i, l := range links {
		out[i] = l.Path
	}
	return out
}

func TestLinks(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  []string
	}{
		{"anonymous", State{Role: types.RoleAnonymous}, []string{PathHome}},
		{"connected", State{Connected: true, Role: types.RoleConnected}, []string{PathHome, PathPresale, PathDeposit}},
		{"pending still sees deposit", State{Connected: true, Role: types.RolePending}, []string{PathHome, PathPresale, PathDeposit}},
		{"denied still sees presale", State{Connected: true, Role: types.RoleDenied}, []string{PathHome, PathPresale, PathDeposit}},
		{"admin", State{Connected: true, Role: types.RoleAdmin}, []string{PathHome, PathPresale, PathDeposit, PathAdmin}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, paths(Links(tt.state, "/")))
		})
	}
}

func TestLinks_ActiveIsExactMatch(t *testing.T) {
	state := State{Connected: true, Role: types.RoleAdmin}

	links := Links(state, "/presale")
	for _, l := range links {
		assert.Equal(t, l.Path == PathPresale, l.Active, l.Path)
	}

	for _, l := range Links(state, "/presale/") {
		assert.False(t, l.Active, "trailing slash is not an exact match")
	}
	for _, l := range Links(state, "/admin/requests") {
		assert.False(t, l.Active)
	}
}

func TestLinksProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	roleGen := gen.OneConstOf(types.RoleAnonymous, types.RoleConnected, types.RolePending,
		types.RoleApproved, types.RoleDenied, types.RoleAdmin)
	pathGen := gen.OneConstOf("/", "/presale", "/deposit", "/admin", "/other", "")

	properties.Property("admin link iff admin role", prop.ForAll(
		func(connected bool, role types.Role, path string) bool {
			hasAdmin := false
			for _, l := range Links(State{Connected: connected, Role: role}, path) {
				if l.Path == PathAdmin {
					hasAdmin = true
				}
			}
			return hasAdmin == (role == types.RoleAdmin)
		},
		gen.Bool(), roleGen, pathGen,
	))

	properties.Property("presale and deposit iff connected", prop.ForAll(
		func(connected bool, role types.Role, path string) bool {
			seen := 0
			for _, l := range Links(State{Connected: connected, Role: role}, path) {
				if l.Path == PathPresale || l.Path == PathDeposit {
					seen++
				}
			}
			return (seen == 2) == connected && (seen == 0) == !connected
		},
		gen.Bool(), roleGen, pathGen,
	))

	properties.Property("at most one active link and home always first", prop.ForAll(
		func(connected bool, role types.Role, path string) bool {
			links := Links(State{Connected: connected, Role: role}, path)
			active := 0
			for _, l := range links {
				if l.Active {
					active++
				}
			}
			return len(links) > 0 && links[0].Path == PathHome && active <= 1
		},
		gen.Bool(), roleGen, pathGen,
	))

	properties.TestingRun(t)
}
