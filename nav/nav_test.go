package nav

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveGuardsRoutes(t *testing.T) {
	cases := []struct {
		route         Route
		authenticated bool
		want          Route
	}{
		{RouteRoot, true, RouteDashboard},
		{RouteRoot, false, RouteLogin},
		{RouteSentMessages, false, RouteLogin},
		{RouteSendMessage, true, RouteSendMessage},
		{RouteLogin, true, RouteDashboard},
		{RouteRegister, false, RouteRegister},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Resolve(tc.route, tc.authenticated), "route %s authenticated=%v", tc.route, tc.authenticated)
	}
}

func TestRouterRecordsAndPublishes(t *testing.T) {
	r := NewRouter(RouteLogin)
	assert.Equal(t, RouteLogin, r.Current())

	r.Navigate(RouteDashboard)
	r.Navigate(RouteSentMessages)

	assert.Equal(t, RouteSentMessages, r.Current())
	assert.Equal(t, []Route{RouteDashboard, RouteSentMessages}, r.History())
	assert.Equal(t, RouteDashboard, <-r.Events())
	assert.Equal(t, RouteSentMessages, <-r.Events())
}

func TestRouterNeverBlocksWhenNobodyListens(t *testing.T) {
	r := NewRouter(RouteLogin)
	for i := 0; i < defaultEventBuffer*3; i++ {
		r.Navigate(RouteDashboard)
	}
	assert.Len(t, r.History(), defaultEventBuffer*3)
}
