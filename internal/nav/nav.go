// Package nav computes the navigation links a viewer sees.
package nav

import "github.com/Arrogantx/slapper/internal/types"

// Route paths
const (
	PathHome    = "/"
	PathPresale = "/presale"
	PathDeposit = "/deposit"
	PathAdmin   = "/admin"
)

// State is the access state the shell renders from
type State struct {
	Connected bool       `json:"connected"`
	Role      types.Role `json:"role"`
}

// Link is one navigation entry
type Link struct {
	Label  string `json:"label"`
	Path   string `json:"path"`
	Active bool   `json:"active"`
}

type entry struct {
	label   string
	path    string
	visible func(State) bool
}

var entries = []entry{
	{label: "Home", path: PathHome, visible: func(State) bool { return true }},
	{label: "Presale", path: PathPresale, visible: func(s State) bool { return s.Connected }},
	{label: "Deposit", path: PathDeposit, visible: func(s State) bool { return s.Connected }},
	{label: "Admin", path: PathAdmin, visible: func(s State) bool { return s.Role == types.RoleAdmin }},
}

// Links returns the visible links in display order. A link is active only on
// an exact path match.
func Links(state State, currentPath string) []Link {
	links := make([]Link, 0, len(entries))
	for _, e := range entries {
		if !e.visible(state) {
			continue
		}
		links = append(links, Link{Label: e.label, Path: e.path, Active: e.path == currentPath})
	}
	return links
}
