package nav

import "sync"

// Route is a client view path.
type Route string

const (
	RouteRoot         Route = "/"
	RouteLogin        Route = "/login"
	RouteRegister     Route = "/register"
	RouteDashboard    Route = "/dashboard"
	RouteSendMessage  Route = "/messages/send"
	RouteSentMessages Route = "/messages/sent"
)

const defaultEventBuffer = 16

// Navigator receives navigation signals from view-models.
type Navigator interface {
	Navigate(route Route)
}

// Public reports whether a route is reachable without a session.
func (r Route) Public() bool {
	return r == RouteLogin || r == RouteRegister
}

// Resolve applies the route guard: "/" goes to the dashboard, protected
// routes fall back to login without a session, and the login and register
// views bounce an authenticated user to the dashboard.
func Resolve(route Route, authenticated bool) Route {
	if route == RouteRoot || route == "" {
		route = RouteDashboard
	}
	switch {
	case route.Public() && authenticated:
		return RouteDashboard
	case !route.Public() && !authenticated:
		return RouteLogin
	default:
		return route
	}
}

// Router records the current route and publishes every navigation on a
// buffered channel. Events are dropped when the buffer is full; Current is
// always up to date.
type Router struct {
	mu      sync.RWMutex
	current Route
	history []Route
	events  chan Route
}

// NewRouter creates a router positioned at start.
func NewRouter(start Route) *Router {
	return &Router{
		current: start,
		events:  make(chan Route, defaultEventBuffer),
	}
}

// Navigate implements Navigator.
func (r *Router) Navigate(route Route) {
	r.mu.Lock()
	r.current = route
	r.history = append(r.history, route)
	r.mu.Unlock()

	select {
	case r.events <- route:
	default:
	}
}

// Current returns the most recent route.
func (r *Router) Current() Route {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// History returns every route navigated to, oldest first.
func (r *Router) History() []Route {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Route(nil), r.history...)
}

// Events streams navigations.
func (r *Router) Events() <-chan Route {
	return r.events
}
