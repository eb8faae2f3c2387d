// Package session holds the authenticated-user state shared by every view.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"moob/api"
	"moob/logger"
	"moob/models"
	"moob/nav"
)

const (
	fallbackLoginError    = "login failed"
	fallbackRegisterError = "registration failed"
)

// ErrInvalidCredentials is returned when credentials fail local validation.
// No request is sent in that case.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthClient is the subset of the backend API the session needs.
type AuthClient interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error)
	Profile(ctx context.Context) (*models.ProfileResponse, error)
}

// State is a snapshot of the session. IsAuthenticated is true only when both
// Token and User are set.
type State struct {
	IsAuthenticated bool
	User            *models.User
	Token           string
	IsLoading       bool
	Error           string
}

// Options configures a Store.
type Options struct {
	Client    AuthClient
	Tokens    api.TokenStore
	Navigator nav.Navigator
	Logger    *logrus.Entry
}

// Store owns the session state. It is safe for concurrent use; the mutex is
// never held across a network call.
type Store struct {
	client    AuthClient
	tokens    api.TokenStore
	navigator nav.Navigator
	log       *logrus.Entry
	validate  *validator.Validate

	mu    sync.RWMutex
	state State
}

// New builds an empty, unauthenticated store.
func New(opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("auth client is required")
	}
	if opts.Tokens == nil {
		return nil, errors.New("token store is required")
	}
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	return &Store{
		client:    opts.Client,
		tokens:    opts.Tokens,
		navigator: opts.Navigator,
		log:       log,
		validate:  models.NewValidator(),
	}, nil
}

// State returns a copy of the current session.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state
	if st.User != nil {
		user := *st.User
		st.User = &user
	}
	return st
}

// Authenticated reports whether a user is logged in.
func (s *Store) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsAuthenticated
}

// Initialize restores the session from the persisted token. Any failure
// leaves the store logged out with the persisted token removed.
func (s *Store) Initialize(ctx context.Context) {
	token, err := s.tokens.Token()
	if err != nil {
		s.log.WithError(err).Warn("read persisted token; starting logged out")
		s.clearPersisted()
		s.reset()
		return
	}
	if token == "" {
		s.reset()
		return
	}

	s.mu.Lock()
	s.state = State{Token: token, IsLoading: true}
	s.mu.Unlock()

	profile, err := s.client.Profile(ctx)
	if err != nil {
		s.log.WithError(err).Info("persisted token rejected; starting logged out")
		s.clearPersisted()
		s.reset()
		return
	}

	user := profile.User
	s.mu.Lock()
	s.state = State{IsAuthenticated: true, User: &user, Token: token}
	s.mu.Unlock()
	s.log.WithField("user_id", user.UserID).Debug("session restored")
}

// Login authenticates with email and password. On success the token is
// persisted, the profile loaded and the navigator sent to the dashboard. On
// failure the display message is stored in State().Error and the error is
// returned.
func (s *Store) Login(ctx context.Context, email, password string) error {
	req := models.LoginRequest{Email: strings.TrimSpace(email), Password: password}
	if err := s.validate.Struct(req); err != nil {
		return s.rejectLocally(err)
	}

	return s.authenticate(ctx, fallbackLoginError, func(ctx context.Context) (*models.AuthResponse, error) {
		return s.client.Login(ctx, req)
	})
}

// Register creates an account and logs into it, with the same contract as
// Login.
func (s *Store) Register(ctx context.Context, username, email, password string) error {
	req := models.RegisterRequest{
		Username: strings.TrimSpace(username),
		Email:    strings.TrimSpace(email),
		Password: password,
	}
	if err := s.validate.Struct(req); err != nil {
		return s.rejectLocally(err)
	}

	return s.authenticate(ctx, fallbackRegisterError, func(ctx context.Context) (*models.AuthResponse, error) {
		return s.client.Register(ctx, req)
	})
}

// RegisterConfirmed is Register with a password confirmation check.
func (s *Store) RegisterConfirmed(ctx context.Context, username, email, password, confirm string) error {
	if password != confirm {
		return s.rejectLocally(errors.New("passwords do not match"))
	}
	return s.Register(ctx, username, email, password)
}

// Logout forgets the session and navigates to the login view.
func (s *Store) Logout() {
	s.clearPersisted()
	s.reset()
	if s.navigator != nil {
		s.navigator.Navigate(nav.RouteLogin)
	}
}

// Expire resets the in-memory session after the HTTP client has already
// cleared the persisted token and navigated to login.
func (s *Store) Expire() {
	s.log.Debug("session expired")
	s.reset()
}

// ClearError resets the error message.
func (s *Store) ClearError() {
	s.mu.Lock()
	s.state.Error = ""
	s.mu.Unlock()
}

func (s *Store) authenticate(ctx context.Context, fallback string, call func(context.Context) (*models.AuthResponse, error)) error {
	s.mu.Lock()
	s.state.Error = ""
	s.state.IsLoading = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.state.IsLoading = false
		s.mu.Unlock()
	}()

	resp, err := call(ctx)
	if err != nil {
		s.setError(api.Message(err, fallback))
		return err
	}

	if err := s.tokens.SetToken(resp.AccessToken); err != nil {
		s.setError("could not save session")
		return fmt.Errorf("persist token: %w", err)
	}
	s.mu.Lock()
	s.state.Token = resp.AccessToken
	s.mu.Unlock()

	profile, err := s.client.Profile(ctx)
	if err != nil {
		s.clearPersisted()
		s.mu.Lock()
		s.state = State{IsLoading: true, Error: api.Message(err, fallback)}
		s.mu.Unlock()
		return fmt.Errorf("load profile: %w", err)
	}

	user := profile.User
	s.mu.Lock()
	s.state.User = &user
	s.state.IsAuthenticated = true
	s.mu.Unlock()

	s.log.WithField("user_id", user.UserID).Info("logged in")
	if s.navigator != nil {
		s.navigator.Navigate(nav.RouteDashboard)
	}
	return nil
}

func (s *Store) rejectLocally(err error) error {
	msg := validationMessage(err)
	s.setError(msg)
	return fmt.Errorf("%w: %s", ErrInvalidCredentials, msg)
}

func (s *Store) setError(msg string) {
	s.mu.Lock()
	s.state.Error = msg
	s.mu.Unlock()
}

func (s *Store) reset() {
	s.mu.Lock()
	s.state = State{}
	s.mu.Unlock()
}

func (s *Store) clearPersisted() {
	if err := s.tokens.ClearToken(); err != nil {
		s.log.WithError(err).Error("clear persisted token")
	}
}

// validationMessage turns validator output into the same ", "-joined form the
// backend uses for validation arrays.
func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return strings.Join(msgs, ", ")
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return "enter a valid email address"
	case "min", "max":
		if field == "username" {
			return "username must be between 3 and 30 characters"
		}
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "letterdigit":
		return field + " must contain a letter and a digit"
	default:
		return field + " is invalid"
	}
}
