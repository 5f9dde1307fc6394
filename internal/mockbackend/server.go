// SPDX-License-Identifier: MIT

// Package mockbackend is an in-memory implementation of the public and
// admin backends for development and tests.
package mockbackend

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kenttv99/MM-sub001/internal/platform"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var mockRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "evc_mock_requests_total",
	Help: "Requests served by the development backend",
}, []string{"backend", "method", "status"})

// Default seeded admin account.
const (
	DefaultAdminEmail    = "admin@example.com"
	DefaultAdminPassword = "admin"
)

type account struct {
	platform.User
	password string
}

// Backend holds the shared state behind both handlers.
type Backend struct {
	mu sync.RWMutex

	events        map[int64]*platform.Event
	users         map[int64]*account
	tickets       map[int64][]platform.Ticket
	notifications map[int64][]platform.Notification
	sessions      map[string]int64 // user token -> user id
	adminSessions map[string]struct{}
	nextID        int64

	failures map[string]int           // remaining forced 500s per path
	delay    map[string]time.Duration // artificial latency per path

	rotate      bool
	rateLimit   int
	rateWindow  time.Duration
	adminEmail  string
	adminPass   string
	seedDefault bool
	now         func() time.Time
}

// Option configures a Backend.
type Option func(*Backend)

// WithTokenRotation makes every authenticated response carry a fresh token
// in X-Refresh-Token and invalidates the one that was presented.
func WithTokenRotation() Option { return func(b *Backend) { b.rotate = true } }

// WithRateLimit limits each client IP to limit requests per window.
func WithRateLimit(limit int, window time.Duration) Option {
	return func(b *Backend) { b.rateLimit, b.rateWindow = limit, window }
}

// WithAdmin overrides the seeded admin credentials.
func WithAdmin(email, password string) Option {
	return func(b *Backend) { b.adminEmail, b.adminPass = email, password }
}

// WithoutSeed starts with no events.
func WithoutSeed() Option { return func(b *Backend) { b.seedDefault = false } }

// New creates a backend with seeded events.
func New(opts ...Option) *Backend {
	b := &Backend{
		events:        make(map[int64]*platform.Event),
		users:         make(map[int64]*account),
		tickets:       make(map[int64][]platform.Ticket),
		notifications: make(map[int64][]platform.Notification),
		sessions:      make(map[string]int64),
		adminSessions: make(map[string]struct{}),
		failures:      make(map[string]int),
		delay:         make(map[string]time.Duration),
		adminEmail:    DefaultAdminEmail,
		adminPass:     DefaultAdminPassword,
		seedDefault:   true,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.seedDefault {
		b.seed()
	}
	return b
}

func (b *Backend) seed() {
	start := b.now().Add(7 * 24 * time.Hour).Truncate(time.Hour)
	for _, e := range []platform.Event{
		{Title: "Jazz in the Park", Location: "Central Park", Price: 0, TicketsTotal: 100},
		{Title: "Go Meetup", Location: "Hub 12", Price: 5, TicketsTotal: 40},
		{Title: "Night Market", Location: "Old Town", Price: 2.5, TicketsTotal: 300},
	} {
		b.nextID++
		e.ID = b.nextID
		e.StartDate = start.Add(time.Duration(e.ID) * 24 * time.Hour)
		e.Published = true
		e.Status = platform.StatusRegistrationOpen
		e.TicketsAvailable = e.TicketsTotal
		e.URLSlug = slug(e.Title)
		ev := e
		b.events[e.ID] = &ev
	}
}

func slug(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "-")
}

// AddUser creates an account and returns its id.
func (b *Backend) AddUser(email, password, fio string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addUserLocked(email, password, fio)
}

func (b *Backend) addUserLocked(email, password, fio string) int64 {
	b.nextID++
	b.users[b.nextID] = &account{
		User:     platform.User{ID: b.nextID, Email: email, FIO: fio, IsActive: true},
		password: password,
	}
	return b.nextID
}

// Notify queues a notification for a user.
func (b *Backend) Notify(userID int64, msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.notifications[userID] = append(b.notifications[userID], platform.Notification{
		ID: b.nextID, Message: msg, CreatedAt: b.now(),
	})
}

// SetFailures makes the next count requests to path fail with 500.
func (b *Backend) SetFailures(path string, count int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[path] = count
}

// SetDelay delays every response for path.
func (b *Backend) SetDelay(path string, d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delay[path] = d
}

// UserToken returns a fresh valid token for userID, for tests.
func (b *Backend) UserToken(userID int64) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	tok := uuid.NewString()
	b.sessions[tok] = userID
	return tok
}

// PublicHandler serves the public/user backend routes.
func (b *Backend) PublicHandler() http.Handler {
	r := b.router("public")
	r.Post("/auth/login", b.handleLogin)
	r.Post("/auth/register", b.handleSignUp)
	r.Get("/auth/check-auth", b.handleCheckAuth)
	r.Get("/v1/public/events", b.handleListEvents)
	r.Get("/v1/public/events/{id}", b.handleGetEvent)
	r.Get("/images/*", b.handleImage)

	r.Group(func(r chi.Router) {
		r.Use(b.requireUser)
		r.Get("/users/me", b.handleMe)
		r.Post("/registration/register", b.handleRegister)
		r.Post("/registration/cancel", b.handleCancel)
		r.Get("/user_edits/my-tickets", b.handleMyTickets)
		r.Put("/user_edits/update_user", b.handleUpdateProfile)
		r.Get("/notifications", b.handleNotifications)
		r.Post("/notifications/{id}/read", b.handleMarkRead)
	})
	return r
}

// AdminHandler serves the admin backend routes.
func (b *Backend) AdminHandler() http.Handler {
	r := b.router("admin")
	r.Post("/admin/login", b.handleAdminLogin)

	r.Group(func(r chi.Router) {
		r.Use(b.requireAdmin)
		r.Get("/admin/me", b.handleAdminMe)
		r.Get("/admin_edits/events", b.handleAdminListEvents)
		r.Post("/admin_edits/events", b.handleCreateEvent)
		r.Put("/admin_edits/events/{id}", b.handleUpdateEvent)
		r.Delete("/admin_edits/events/{id}", b.handleDeleteEvent)
		r.Get("/admin_edits/users", b.handleListUsers)
		r.Get("/admin_edits/users/{id}", b.handleGetUser)
	})
	return r
}

func (b *Backend) router(name string) chi.Router {
	r := chi.NewRouter()
	r.Use(recoverer)
	r.Use(requestID)
	r.Use(accessLog(name))
	if b.rateLimit > 0 {
		r.Use(rateLimit(b.rateLimit, b.rateWindow))
	}
	r.Use(b.faults)
	r.Handle("/metrics", promhttp.Handler())
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found")
	})
	return r
}

// faults applies configured delays and forced failures.
func (b *Backend) faults(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		d := b.delay[r.URL.Path]
		fail := b.failures[r.URL.Path] > 0
		if fail {
			b.failures[r.URL.Path]--
		}
		b.mu.Unlock()

		if d > 0 {
			select {
			case <-time.After(d):
			case <-r.Context().Done():
				return
			}
		}
		if fail {
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(tok)
	}
	return ""
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}
