// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package platform holds the typed calls against the event platform
// backends. Every call goes through the gated api.Client, so it is subject
// to the loading stage and request policy of the owning session.
package platform

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/kenttv99/MM-sub001/internal/api"
	"github.com/kenttv99/MM-sub001/internal/log"
	"github.com/kenttv99/MM-sub001/internal/tokenstore"
)

// CredentialHook observes local credential changes made by this client.
type CredentialHook func(tokenstore.Change)

// Option configures a Client.
type Option func(*Client)

// WithCredentialHook registers fn for login and logout events.
func WithCredentialHook(fn CredentialHook) Option {
	return func(c *Client) { c.hook = fn }
}

// Client exposes the platform operations as typed calls.
type Client struct {
	api    *api.Client
	tokens tokenstore.Store
	hook   CredentialHook
}

// New wraps an api.Client. tokens must be the store the api.Client reads.
func New(c *api.Client, tokens tokenstore.Store, opts ...Option) *Client {
	pc := &Client{api: c, tokens: tokens}
	for _, opt := range opts {
		opt(pc)
	}
	return pc
}

// API returns the underlying gated client.
func (c *Client) API() *api.Client { return c.api }

func (c *Client) notify(key string, present bool) {
	if c.hook != nil {
		c.hook(tokenstore.Change{Key: key, Present: present})
	}
}

// store persists a freshly issued token. A failure to persist is reported
// as a failed login since the next request would go out unauthenticated.
func (c *Client) store(key string, r api.Result[TokenResponse]) api.Result[TokenResponse] {
	if !r.Ok() || r.Value.AccessToken == "" {
		return r
	}
	if err := c.tokens.Set(key, r.Value.AccessToken); err != nil {
		logger := log.WithComponent("platform")
		logger.Error().Err(err).Str("key", key).Msg("failed to persist token")
		return api.Failure[TokenResponse](api.FailureDetail{Message: "could not save credentials", Err: err})
	}
	c.notify(key, true)
	return r
}

func (c *Client) forget(key string) error {
	if err := c.tokens.Delete(key); err != nil {
		return err
	}
	c.notify(key, false)
	return nil
}

// --- public ---

// ListEvents returns the public event listing.
func (c *Client) ListEvents(ctx context.Context, p ListEventsParams) api.Result[[]Event] {
	q := url.Values{}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.Size > 0 {
		q.Set("size", strconv.Itoa(p.Size))
	}
	if p.Status != "" {
		q.Set("status", p.Status)
	}
	if p.Search != "" {
		q.Set("search", p.Search)
	}
	return api.Fetch[[]Event](ctx, c.api, api.Request{Path: PathEvents, Query: q})
}

// GetEvent returns a single event.
func (c *Client) GetEvent(ctx context.Context, id int64) api.Result[Event] {
	return api.Fetch[Event](ctx, c.api, api.Request{Path: EventPath(id)})
}

// Login exchanges credentials for a user token and stores it.
func (c *Client) Login(ctx context.Context, creds Credentials) api.Result[TokenResponse] {
	r := api.Fetch[TokenResponse](ctx, c.api, api.Request{Method: http.MethodPost, Path: PathLogin, Body: creds})
	return c.store(tokenstore.KeyUser, r)
}

// SignUp creates an account. It does not log in.
func (c *Client) SignUp(ctx context.Context, form SignUp) api.Result[User] {
	return api.Fetch[User](ctx, c.api, api.Request{Method: http.MethodPost, Path: PathSignUp, Body: form})
}

// CheckAuth asks the backend whether the stored user token is valid. An
// absent token short-circuits to an unauthenticated answer.
func (c *Client) CheckAuth(ctx context.Context) api.Result[AuthStatus] {
	tok, err := tokenstore.Lookup(c.tokens, tokenstore.KeyUser)
	if err == nil && tok == "" {
		return api.Success(AuthStatus{})
	}
	return api.Fetch[AuthStatus](ctx, c.api, api.Request{Path: PathCheckAuth, NoCache: true})
}

// Me returns the current user's profile.
func (c *Client) Me(ctx context.Context) api.Result[User] {
	return api.Fetch[User](ctx, c.api, api.Request{Path: PathMe})
}

// Logout drops the user token.
func (c *Client) Logout() error {
	return c.forget(tokenstore.KeyUser)
}

// --- user ---

// Register books a ticket for eventID.
func (c *Client) Register(ctx context.Context, eventID int64) api.Result[Ticket] {
	return api.Fetch[Ticket](ctx, c.api, api.Request{
		Method: http.MethodPost,
		Path:   PathRegister,
		Body:   RegistrationRequest{EventID: eventID},
	})
}

// CancelRegistration cancels the user's ticket for eventID.
func (c *Client) CancelRegistration(ctx context.Context, eventID int64) api.Result[struct{}] {
	return api.Fetch[struct{}](ctx, c.api, api.Request{
		Method: http.MethodPost,
		Path:   PathCancel,
		Body:   RegistrationRequest{EventID: eventID},
	})
}

// MyTickets lists the user's tickets.
func (c *Client) MyTickets(ctx context.Context) api.Result[[]Ticket] {
	return api.Fetch[[]Ticket](ctx, c.api, api.Request{Path: PathMyTickets})
}

// Notifications lists the user's notifications.
func (c *Client) Notifications(ctx context.Context) api.Result[[]Notification] {
	return api.Fetch[[]Notification](ctx, c.api, api.Request{Path: PathNotifications})
}

// MarkNotificationRead flags one notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, id int64) api.Result[struct{}] {
	return api.Fetch[struct{}](ctx, c.api, api.Request{Method: http.MethodPost, Path: NotificationReadPath(id)})
}

// UpdateProfile edits the current user's profile.
func (c *Client) UpdateProfile(ctx context.Context, upd ProfileUpdate) api.Result[User] {
	return api.Fetch[User](ctx, c.api, api.Request{Method: http.MethodPut, Path: PathUpdateProfile, Body: upd})
}

// --- admin ---

// AdminLogin exchanges admin credentials for an admin token and stores it.
func (c *Client) AdminLogin(ctx context.Context, creds Credentials) api.Result[TokenResponse] {
	r := api.Fetch[TokenResponse](ctx, c.api, api.Request{Method: http.MethodPost, Path: PathAdminLogin, Body: creds})
	return c.store(tokenstore.KeyAdmin, r)
}

// AdminLogout drops the admin token.
func (c *Client) AdminLogout() error {
	return c.forget(tokenstore.KeyAdmin)
}

// CreateEvent creates an event.
func (c *Client) CreateEvent(ctx context.Context, in EventInput) api.Result[Event] {
	return api.Fetch[Event](ctx, c.api, api.Request{Method: http.MethodPost, Path: PathAdminEvents, Body: in})
}

// UpdateEvent replaces an event.
func (c *Client) UpdateEvent(ctx context.Context, id int64, in EventInput) api.Result[Event] {
	return api.Fetch[Event](ctx, c.api, api.Request{Method: http.MethodPut, Path: AdminEventPath(id), Body: in})
}

// DeleteEvent removes an event.
func (c *Client) DeleteEvent(ctx context.Context, id int64) api.Result[struct{}] {
	return api.Fetch[struct{}](ctx, c.api, api.Request{Method: http.MethodDelete, Path: AdminEventPath(id)})
}

// ListUsers lists all accounts, optionally filtered by search.
func (c *Client) ListUsers(ctx context.Context, search string) api.Result[[]User] {
	var q url.Values
	if search != "" {
		q = url.Values{"search": {search}}
	}
	return api.Fetch[[]User](ctx, c.api, api.Request{Path: PathAdminUsers, Query: q})
}

// GetUser returns one account.
func (c *Client) GetUser(ctx context.Context, id int64) api.Result[User] {
	return api.Fetch[User](ctx, c.api, api.Request{Path: AdminUserPath(id)})
}
