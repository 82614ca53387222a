// Package nav models the screens a flow can land on.
package nav

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// Route paths.
const (
	PathLogin          = "/login"
	PathSignup         = "/signup"
	PathRenewPlan      = "/renew-plan"
	PathJobCardNew     = "/jobcards/new"
	PathJobCardEdit    = "/jobcards/%s/edit"
	PathAssignEngineer = "/assign-engineer/%s"
)

// Route is a destination with optional carried state.
type Route struct {
	Path  string
	State map[string]string
}

func (r Route) String() string {
	if len(r.State) == 0 {
		return r.Path
	}
	keys := make([]string, 0, len(r.State))
	for k := range r.State {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + r.State[k]
	}
	return r.Path + " {" + strings.Join(parts, ", ") + "}"
}

// Login is the sign-in screen.
func Login() Route { return Route{Path: PathLogin} }

// Signup is the registration screen.
func Signup() Route { return Route{Path: PathSignup} }

// RenewPlan is the subscription renewal screen carrying the organization identity.
func RenewPlan(state map[string]string) Route {
	return Route{Path: PathRenewPlan, State: state}
}

// JobCardNew is the job-card editor for a card not yet saved.
func JobCardNew() Route { return Route{Path: PathJobCardNew} }

// JobCardEdit is the job-card editor for an existing card.
func JobCardEdit(id string) Route { return Route{Path: fmt.Sprintf(PathJobCardEdit, id)} }

// AssignEngineer is the engineer assignment screen for a job card.
func AssignEngineer(id string) Route { return Route{Path: fmt.Sprintf(PathAssignEngineer, id)} }

// Navigator moves the operator between routes.
type Navigator interface {
	Navigate(r Route)
	Current() Route
}

// History is a Navigator that records every navigation and optionally
// echoes it to Out.
type History struct {
	mu     sync.Mutex
	out    io.Writer
	routes []Route
}

// NewHistory returns a History starting on start. out may be nil.
func NewHistory(start Route, out io.Writer) *History {
	return &History{out: out, routes: []Route{start}}
}

func (h *History) Navigate(r Route) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.routes = append(h.routes, r)
	if h.out != nil {
		fmt.Fprintf(h.out, "→ %s\n", r)
	}
}

func (h *History) Current() Route {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.routes) == 0 {
		return Route{}
	}
	return h.routes[len(h.routes)-1]
}

// Visits returns how many times path was navigated to, excluding the start.
func (h *History) Visits(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, r := range h.routes[1:] {
		if r.Path == path {
			n++
		}
	}
	return n
}
