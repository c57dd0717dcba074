// Package session holds caller-owned trip planning state: the entered
// addresses, the last estimate and the selected route. State changes only
// through Reduce, and Store keeps one State per session ID.
package session

import (
	"slices"

	"github.com/NERVsystems/ecoroute/pkg/estimator"
)

// NoSelection is the Selected value when no route is selected.
const NoSelection = -1

// State is the planning state of one session.
type State struct {
	FromAddress string                     `json:"from_address"`
	ToAddress   string                     `json:"to_address"`
	Routes      []estimator.RouteCandidate `json:"routes"`
	Loading     bool                       `json:"loading"`
	Error       string                     `json:"error,omitempty"`
	Selected    int                        `json:"selected"`

	// Request numbers the latest estimate started on this session.
	Request uint64 `json:"request"`
}

// InitialState returns an empty state with no selection.
func InitialState() State {
	return State{
		Routes:   []estimator.RouteCandidate{},
		Selected: NoSelection,
	}
}

// SelectedRoute returns the selected route, if any.
func (s State) SelectedRoute() (estimator.RouteCandidate, bool) {
	if s.Selected < 0 || s.Selected >= len(s.Routes) {
		return estimator.RouteCandidate{}, false
	}
	return s.Routes[s.Selected], true
}

// ActionType names a state transition.
type ActionType string

const (
	ActionSetLoading   ActionType = "SET_LOADING"
	ActionSetRoutes    ActionType = "SET_ROUTES"
	ActionSetError     ActionType = "SET_ERROR"
	ActionSetAddresses ActionType = "SET_ADDRESSES"
	ActionSelectRoute  ActionType = "SELECT_ROUTE"
)

// Action is a state transition request. Only the fields relevant to Type
// are read.
type Action struct {
	Type    ActionType
	Loading bool
	Routes  []estimator.RouteCandidate
	Error   string
	From    string
	To      string
	Index   int

	// Request ties the action to one estimate. Zero applies
	// unconditionally.
	Request uint64
}

// ForRequest tags a with the estimate it belongs to.
func (a Action) ForRequest(n uint64) Action {
	a.Request = n
	return a
}

func SetLoading(loading bool) Action {
	return Action{Type: ActionSetLoading, Loading: loading}
}

func SetRoutes(routes []estimator.RouteCandidate) Action {
	return Action{Type: ActionSetRoutes, Routes: routes}
}

func SetError(msg string) Action {
	return Action{Type: ActionSetError, Error: msg}
}

func SetAddresses(from, to string) Action {
	return Action{Type: ActionSetAddresses, From: from, To: to}
}

func SelectRoute(index int) Action {
	return Action{Type: ActionSelectRoute, Index: index}
}

// Reduce returns the state after applying a. It never modifies s or the
// slices in a. Unknown actions return s unchanged.
//
// SET_ROUTES clears the error, the loading flag and the selection.
// SET_ERROR clears the loading flag and keeps the previous routes so a
// failed estimate leaves the displayed results in place.
// SELECT_ROUTE outside the current routes is ignored.
//
// SET_ADDRESSES starts a new estimate and advances Request. Other actions
// tagged with an older Request are dropped, so when estimates on one
// session overlap the one started last owns Loading, Routes and Error.
func Reduce(s State, a Action) State {
	next := s
	next.Routes = cloneRoutes(s.Routes)

	if a.Request != 0 && a.Request != s.Request && a.Type != ActionSetAddresses {
		return next
	}

	switch a.Type {
	case ActionSetLoading:
		next.Loading = a.Loading
	case ActionSetRoutes:
		next.Routes = cloneRoutes(a.Routes)
		next.Loading = false
		next.Error = ""
		next.Selected = NoSelection
	case ActionSetError:
		next.Error = a.Error
		next.Loading = false
	case ActionSetAddresses:
		next.FromAddress = a.From
		next.ToAddress = a.To
		next.Request = s.Request + 1
	case ActionSelectRoute:
		if a.Index >= 0 && a.Index < len(next.Routes) {
			next.Selected = a.Index
		}
	}

	return next
}

func cloneRoutes(routes []estimator.RouteCandidate) []estimator.RouteCandidate {
	if routes == nil {
		return []estimator.RouteCandidate{}
	}
	return slices.Clone(routes)
}
