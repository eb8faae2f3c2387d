// Package fakebackend is an in-memory MOOB backend served by the
// fake-backend subcommand and used by tests.
package fakebackend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"moob/models"
)

const (
	maxUploadBytes = 32 << 20
	cacheTTL       = "60s"
)

// Request is one recorded inbound request.
type Request struct {
	Method        string
	Path          string
	RawQuery      string
	Authorization string
	RequestID     string
}

// StoredMessage is a sent message plus the upload metadata the backend saw.
type StoredMessage struct {
	models.Message
	OwnerID       string
	FileName      string
	FileMediaType string
	FileSize      int
}

type account struct {
	user     models.User
	password string
}

// Backend holds the in-memory state. Its Handler can be mounted on any server.
type Backend struct {
	mu       sync.Mutex
	now      func() time.Time
	accounts map[string]*account // by email
	tokens   map[string]string   // token -> user ID
	messages []StoredMessage
	cached   map[string]bool
	requests []Request

	beforeSentPage func(offset, limit int)
	sendFailure    *Failure
}

// Failure is a canned error response.
type Failure struct {
	Status   int
	Messages []string
	// List sends the messages as a JSON array even when there is only one.
	List bool
}

// New creates an empty backend.
func New() *Backend {
	return &Backend{
		now:      time.Now,
		accounts: make(map[string]*account),
		tokens:   make(map[string]string),
		cached:   make(map[string]bool),
	}
}

// Server is a Backend bound to an httptest server.
type Server struct {
	*Backend
	HTTP *httptest.Server
}

// Start serves a new backend on a loopback port. Callers must Close it.
func Start() *Server {
	backend := New()
	return &Server{Backend: backend, HTTP: httptest.NewServer(backend.Handler())}
}

// URL returns the server base URL.
func (s *Server) URL() string {
	return s.HTTP.URL
}

// Close stops the server.
func (s *Server) Close() {
	s.HTTP.Close()
}

// Handler returns the chi router serving the backend API.
func (b *Backend) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(b.record)

	r.Route("/auth", func(auth chi.Router) {
		auth.Post("/register", b.handleRegister)
		auth.Post("/login", b.handleLogin)
		auth.With(b.requireToken).Get("/profile", b.handleProfile)
	})
	r.Route("/messages", func(messages chi.Router) {
		messages.Use(b.requireToken)
		messages.Post("/send", b.handleSend)
		messages.Get("/sent", b.handleSent)
		messages.Get("/stats", b.handleStats)
	})
	return r
}

// AddUser creates an account and returns its user ID.
func (b *Backend) AddUser(username, email, password string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addUserLocked(username, email, password).user.UserID
}

// IssueToken returns a fresh access token for userID.
func (b *Backend) IssueToken(userID string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.issueTokenLocked(userID)
}

// RevokeTokens invalidates every issued token.
func (b *Backend) RevokeTokens() {
	b.mu.Lock()
	b.tokens = make(map[string]string)
	b.mu.Unlock()
}

// SeedMessages stores n messages for userID, oldest first, one minute apart.
func (b *Backend) SeedMessages(userID string, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	base := b.now().Add(-time.Duration(n) * time.Minute)
	platforms := models.Platforms
	for i := 0; i < n; i++ {
		b.messages = append(b.messages, StoredMessage{
			Message: models.Message{
				ID:         uuid.NewString(),
				Platform:   platforms[i%len(platforms)],
				Recipients: []string{fmt.Sprintf("recipient-%d", i)},
				Content:    fmt.Sprintf("seeded message %d", i),
				Sent:       i%5 != 4,
				CreatedAt:  base.Add(time.Duration(i) * time.Minute).UTC(),
			},
			OwnerID: userID,
		})
	}
	b.invalidateCacheLocked()
}

// SetBeforeSentPage installs a hook that runs before GET /messages/sent
// responds. Pass nil to remove it.
func (b *Backend) SetBeforeSentPage(fn func(offset, limit int)) {
	b.mu.Lock()
	b.beforeSentPage = fn
	b.mu.Unlock()
}

// SetSendFailure makes POST /messages/send fail with f. Pass nil to restore
// normal behavior.
func (b *Backend) SetSendFailure(f *Failure) {
	b.mu.Lock()
	b.sendFailure = f
	b.mu.Unlock()
}

// Messages returns a copy of every stored message.
func (b *Backend) Messages() []StoredMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]StoredMessage(nil), b.messages...)
}

// Requests returns a copy of the request log.
func (b *Backend) Requests() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Request(nil), b.requests...)
}

// CountRequests counts recorded requests for path.
func (b *Backend) CountRequests(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	count := 0
	for _, req := range b.requests {
		if req.Path == path {
			count++
		}
	}
	return count
}

func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.requests = append(b.requests, Request{
			Method:        r.Method,
			Path:          r.URL.Path,
			RawQuery:      r.URL.RawQuery,
			Authorization: r.Header.Get("Authorization"),
			RequestID:     r.Header.Get("X-Request-ID"),
		})
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

type ctxUserKey struct{}

func withUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxUserKey{}, userID)
}

func userIDFrom(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(ctxUserKey{}).(string)
	return userID, ok && userID != ""
}

func (b *Backend) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		b.mu.Lock()
		userID, known := b.tokens[token]
		b.mu.Unlock()
		if !known {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), userID)))
	})
}

func (b *Backend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var problems []string
	if n := len([]rune(req.Username)); n < 3 || n > 30 {
		problems = append(problems, "username must be between 3 and 30 characters")
	}
	if !strings.Contains(req.Email, "@") {
		problems = append(problems, "email must be an email")
	}
	if len(req.Password) < 7 {
		problems = append(problems, "password must be longer than or equal to 7 characters")
	}
	if len(problems) > 0 {
		writeErrorList(w, http.StatusBadRequest, problems)
		return
	}

	b.mu.Lock()
	if _, exists := b.accounts[strings.ToLower(req.Email)]; exists {
		b.mu.Unlock()
		writeError(w, http.StatusConflict, "Email already registered")
		return
	}
	acct := b.addUserLocked(req.Username, req.Email, req.Password)
	token := b.issueTokenLocked(acct.user.UserID)
	b.mu.Unlock()

	writeJSON(w, http.StatusCreated, models.AuthResponse{AccessToken: token})
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	b.mu.Lock()
	acct, ok := b.accounts[strings.ToLower(req.Email)]
	if !ok || acct.password != req.Password {
		b.mu.Unlock()
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	token := b.issueTokenLocked(acct.user.UserID)
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, models.AuthResponse{AccessToken: token})
}

func (b *Backend) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := b.userFor(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, models.ProfileResponse{Message: "Profile retrieved successfully", User: user})
}

func (b *Backend) handleSend(w http.ResponseWriter, r *http.Request) {
	user, ok := b.userFor(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	b.mu.Lock()
	failure := b.sendFailure
	b.mu.Unlock()
	if failure != nil {
		if failure.List || len(failure.Messages) > 1 {
			writeErrorList(w, failure.Status, failure.Messages)
		} else {
			writeError(w, failure.Status, strings.Join(failure.Messages, ""))
		}
		return
	}

	var problems []string
	platform := models.Platform(r.FormValue("platform"))
	if !platform.Valid() {
		problems = append(problems, "platform must be one of telegram, slack, discord, whatsapp")
	}
	content := r.FormValue("content")
	if strings.TrimSpace(content) == "" {
		problems = append(problems, "content should not be empty")
	}
	var recipients []string
	if err := json.Unmarshal([]byte(r.FormValue("recipients")), &recipients); err != nil || len(recipients) == 0 {
		problems = append(problems, "recipients must contain at least 1 elements")
	}
	if len(problems) > 0 {
		writeErrorList(w, http.StatusBadRequest, problems)
		return
	}

	stored := StoredMessage{
		Message: models.Message{
			ID:         uuid.NewString(),
			Platform:   platform,
			Recipients: recipients,
			Content:    content,
			Sent:       true,
			CreatedAt:  b.now().UTC(),
		},
		OwnerID: user.UserID,
	}

	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		stored.FileName = header.Filename
		stored.FileMediaType = header.Header.Get("Content-Type")
		stored.FileSize = int(header.Size)
		fileURL := fmt.Sprintf("https://files.moob.test/%s/%s", stored.ID, header.Filename)
		stored.FileURL = &fileURL
	case errors.Is(err, http.ErrMissingFile):
	default:
		writeError(w, http.StatusBadRequest, "invalid file part")
		return
	}

	b.mu.Lock()
	b.messages = append(b.messages, stored)
	b.invalidateCacheLocked()
	b.mu.Unlock()

	writeJSON(w, http.StatusCreated, models.SendMessageResponse{
		Success: true,
		Message: "Message sent successfully",
		Data: models.MessageWithSender{
			Message: stored.Message,
			SentBy:  models.Sender{ID: user.UserID, Username: user.Username},
		},
	})
}

func (b *Backend) handleSent(w http.ResponseWriter, r *http.Request) {
	user, ok := b.userFor(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}
	limit, err := queryInt(r, "limit", 10)
	if err != nil || limit <= 0 {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	b.mu.Lock()
	hook := b.beforeSentPage
	b.mu.Unlock()
	if hook != nil {
		hook(offset, limit)
	}

	b.mu.Lock()
	owned := b.ownedLocked(user.UserID)
	key := fmt.Sprintf("%s:%d:%d", user.UserID, offset, limit)
	hit := b.cached[key]
	b.cached[key] = true
	b.mu.Unlock()

	page := make([]models.Message, 0, limit)
	for i := offset; i < len(owned) && i < offset+limit; i++ {
		page = append(page, owned[i].Message)
	}

	source := "database"
	if hit {
		source = "cache"
	}

	writeJSON(w, http.StatusOK, models.SentMessagesResponse{
		Success: true,
		Message: "Sent messages retrieved successfully",
		Data: models.SentMessagesPage{
			User:       models.Sender{ID: user.UserID, Username: user.Username},
			Messages:   page,
			Pagination: Paginate(len(owned), len(page), offset, limit),
			Cache:      models.CacheMeta{Hit: hit, TTL: cacheTTL, Source: source},
		},
	})
}

func (b *Backend) handleStats(w http.ResponseWriter, r *http.Request) {
	user, ok := b.userFor(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	b.mu.Lock()
	owned := b.ownedLocked(user.UserID)
	b.mu.Unlock()

	stats := models.Statistics{ByPlatform: make(map[models.Platform]int)}
	for _, msg := range owned {
		stats.Total++
		if msg.Sent {
			stats.Sent++
		} else {
			stats.Failed++
		}
		stats.ByPlatform[msg.Platform]++
	}

	writeJSON(w, http.StatusOK, models.MessageStatsResponse{
		Success: true,
		Message: "Statistics retrieved successfully",
		Data: models.StatsData{
			User:       models.Sender{ID: user.UserID, Username: user.Username},
			Statistics: stats,
		},
	})
}

// Paginate derives the pagination block the backend attaches to a page.
func Paginate(total, count, offset, limit int) models.PaginationMeta {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	currentPage := 1
	if limit > 0 {
		currentPage = offset/limit + 1
	}
	return models.PaginationMeta{
		Total:           total,
		Count:           count,
		Limit:           limit,
		Offset:          offset,
		CurrentPage:     currentPage,
		TotalPages:      totalPages,
		HasNextPage:     offset+limit < total,
		HasPreviousPage: offset > 0,
	}
}

func (b *Backend) addUserLocked(username, email, password string) *account {
	acct := &account{
		user: models.User{
			UserID:   uuid.NewString(),
			Email:    email,
			Username: username,
		},
		password: password,
	}
	b.accounts[strings.ToLower(email)] = acct
	return acct
}

func (b *Backend) issueTokenLocked(userID string) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	b.tokens[token] = userID
	return token
}

func (b *Backend) invalidateCacheLocked() {
	b.cached = make(map[string]bool)
}

// ownedLocked returns the user's messages newest first.
func (b *Backend) ownedLocked(userID string) []StoredMessage {
	owned := make([]StoredMessage, 0)
	for _, msg := range b.messages {
		if msg.OwnerID == userID {
			owned = append(owned, msg)
		}
	}
	sort.SliceStable(owned, func(i, j int) bool {
		return owned[i].CreatedAt.After(owned[j].CreatedAt)
	})
	return owned
}

func (b *Backend) userFor(r *http.Request) (models.User, bool) {
	userID, ok := userIDFrom(r.Context())
	if !ok {
		return models.User{}, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, acct := range b.accounts {
		if acct.user.UserID == userID {
			return acct.user, true
		}
	}
	return models.User{}, false
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.ErrorResponse{
		StatusCode: status,
		Message:    models.ErrorMessages{Values: []string{message}},
		Error:      http.StatusText(status),
	})
}

func writeErrorList(w http.ResponseWriter, status int, messages []string) {
	writeJSON(w, status, models.ErrorResponse{
		StatusCode: status,
		Message:    models.ErrorMessages{Values: messages, List: true},
		Error:      http.StatusText(status),
	})
}
