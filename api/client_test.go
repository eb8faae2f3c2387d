package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moob/fakebackend"
	"moob/models"
	"moob/nav"
)

type harness struct {
	server *fakebackend.Server
	client *Client
	tokens *MemoryTokenStore
	router *nav.Router
	userID string
}

func newHarness(t *testing.T, token string) *harness {
	t.Helper()

	server := fakebackend.Start()
	t.Cleanup(server.Close)

	h := &harness{
		server: server,
		tokens: NewMemoryTokenStore(token),
		router: nav.NewRouter(nav.RouteDashboard),
	}
	h.userID = server.AddUser("alice", "alice@example.com", "secret12")

	client, err := NewClient(Options{
		BaseURL:   server.URL(),
		Tokens:    h.tokens,
		Navigator: h.router,
	})
	require.NoError(t, err)
	h.client = client
	return h
}

func (h *harness) login(t *testing.T) string {
	t.Helper()
	token := h.server.IssueToken(h.userID)
	require.NoError(t, h.tokens.SetToken(token))
	return token
}

func TestNewClientValidatesOptions(t *testing.T) {
	tokens := NewMemoryTokenStore("")

	_, err := NewClient(Options{Tokens: tokens})
	require.Error(t, err)

	_, err = NewClient(Options{BaseURL: "ftp://example.com", Tokens: tokens})
	require.Error(t, err)

	_, err = NewClient(Options{BaseURL: "http://example.com"})
	require.Error(t, err)

	client, err := NewClient(Options{BaseURL: "http://example.com/", Tokens: tokens})
	require.NoError(t, err)
	assert.Equal(t, "http://example.com", client.BaseURL())
}

func TestRequestCarriesBearerTokenAndRequestID(t *testing.T) {
	h := newHarness(t, "")
	token := h.login(t)

	profile, err := h.client.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", profile.User.Email)

	requests := h.server.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, "Bearer "+token, requests[0].Authorization)
	assert.NotEmpty(t, requests[0].RequestID)
}

func TestRequestWithoutTokenOmitsAuthorization(t *testing.T) {
	h := newHarness(t, "")

	_, err := h.client.Login(context.Background(), models.LoginRequest{Email: "alice@example.com", Password: "secret12"})
	require.NoError(t, err)

	requests := h.server.Requests()
	require.Len(t, requests, 1)
	assert.Empty(t, requests[0].Authorization)
}

func TestUnauthorizedClearsTokenAndNavigatesToLogin(t *testing.T) {
	h := newHarness(t, "")
	h.login(t)

	notified := 0
	h.client.OnUnauthorized(func() {
		token, _ := h.tokens.Token()
		assert.Empty(t, token, "token must be cleared before listeners run")
		notified++
	})

	h.server.RevokeTokens()
	_, err := h.client.Stats(context.Background())
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))

	token, err := h.tokens.Token()
	require.NoError(t, err)
	assert.Empty(t, token)
	assert.Equal(t, nav.RouteLogin, h.router.Current())
	assert.Equal(t, 1, notified)
}

func TestLoginUnauthorizedLeavesSessionAlone(t *testing.T) {
	h := newHarness(t, "stale-but-kept")

	notified := false
	h.client.OnUnauthorized(func() { notified = true })

	_, err := h.client.Login(context.Background(), models.LoginRequest{Email: "alice@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, "Invalid credentials", Message(err, "fallback"))

	token, _ := h.tokens.Token()
	assert.Equal(t, "stale-but-kept", token)
	assert.Equal(t, nav.RouteDashboard, h.router.Current())
	assert.False(t, notified)
}

func TestRegisterReturnsToken(t *testing.T) {
	h := newHarness(t, "")

	resp, err := h.client.Register(context.Background(), models.RegisterRequest{
		Username: "bob",
		Email:    "bob@example.com",
		Password: "hunter22",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
}

func TestMessageExtraction(t *testing.T) {
	h := newHarness(t, "")

	_, err := h.client.Register(context.Background(), models.RegisterRequest{Username: "x", Email: "nope", Password: "1"})
	require.Error(t, err)
	msg := Message(err, "fallback")
	assert.Contains(t, msg, "username must be between 3 and 30 characters")
	assert.Contains(t, msg, ", ")

	assert.Equal(t, "fallback", Message(errors.New("dial tcp: refused"), "fallback"))
	assert.Equal(t, "fallback", Message(&Error{StatusCode: http.StatusBadGateway}, "fallback"))
	assert.Equal(t, "a, b", Message(&Error{Messages: models.ErrorMessages{Values: []string{"a", "", "b"}, List: true}}, "fallback"))
}

func TestMetricsCountRequests(t *testing.T) {
	server := fakebackend.Start()
	t.Cleanup(server.Close)
	userID := server.AddUser("alice", "alice@example.com", "secret12")

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	client, err := NewClient(Options{
		BaseURL: server.URL(),
		Tokens:  NewMemoryTokenStore(server.IssueToken(userID)),
		Metrics: metrics,
	})
	require.NoError(t, err)

	_, err = client.Stats(context.Background())
	require.NoError(t, err)
	_, err = client.Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.RequestCounter.WithLabelValues("get", "200")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.RequestsInFlight))

	count, err := testutil.GatherAndCount(reg, "moob_client_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestErrorStringIncludesStatus(t *testing.T) {
	err := &Error{StatusCode: http.StatusNotFound}
	assert.True(t, strings.Contains(err.Error(), "404"))
}
