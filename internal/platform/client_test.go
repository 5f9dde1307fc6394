// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package platform_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kenttv99/MM-sub001/internal/api"
	"github.com/kenttv99/MM-sub001/internal/mockbackend"
	"github.com/kenttv99/MM-sub001/internal/platform"
	"github.com/kenttv99/MM-sub001/internal/stage"
	"github.com/kenttv99/MM-sub001/internal/tokenstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type completed struct{}

func (completed) Current() stage.Stage { return stage.Completed }

type fixture struct {
	backend *mockbackend.Backend
	tokens  *tokenstore.Memory
	client  *platform.Client
	changes []tokenstore.Change
}

func setup(t *testing.T, opts ...mockbackend.Option) *fixture {
	t.Helper()
	b := mockbackend.New(opts...)
	pub := httptest.NewServer(b.PublicHandler())
	adm := httptest.NewServer(b.AdminHandler())
	t.Cleanup(pub.Close)
	t.Cleanup(adm.Close)

	router, err := api.NewRouter(pub.URL, adm.URL)
	require.NoError(t, err)
	f := &fixture{backend: b, tokens: tokenstore.NewMemory()}
	c, err := api.NewClient(api.Options{
		Router:     router,
		Stage:      completed{},
		Tokens:     f.tokens,
		HTTPClient: &http.Client{Timeout: 2 * time.Second},
	})
	require.NoError(t, err)
	f.client = platform.New(c, f.tokens, platform.WithCredentialHook(func(ch tokenstore.Change) {
		f.changes = append(f.changes, ch)
	}))
	return f
}

func (f *fixture) login(t *testing.T, email, password string) {
	t.Helper()
	r := f.client.Login(context.Background(), platform.Credentials{Email: email, Password: password})
	require.True(t, r.Ok(), "login: kind=%s failure=%+v", r.Kind, r.Failure)
}

func TestListEvents_Filters(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	all := f.client.ListEvents(ctx, platform.ListEventsParams{})
	require.True(t, all.Ok())
	assert.Len(t, all.Value, 3)

	page := f.client.ListEvents(ctx, platform.ListEventsParams{Page: 2, Size: 2})
	require.True(t, page.Ok())
	require.Len(t, page.Value, 1)
	assert.Equal(t, "Night Market", page.Value[0].Title)

	search := f.client.ListEvents(ctx, platform.ListEventsParams{Search: "meetup"})
	require.True(t, search.Ok())
	require.Len(t, search.Value, 1)
	assert.Equal(t, "go-meetup", search.Value[0].URLSlug)
}

func TestGetEvent(t *testing.T) {
	f := setup(t)

	r := f.client.GetEvent(context.Background(), 2)
	require.True(t, r.Ok())
	assert.Equal(t, "Go Meetup", r.Value.Title)

	missing := f.client.GetEvent(context.Background(), 99)
	require.Equal(t, api.KindFailure, missing.Kind)
	assert.Equal(t, http.StatusNotFound, missing.Failure.Status)
	assert.Equal(t, "Event not found", missing.Failure.Message)
}

func TestSignUpLoginAndCheckAuth(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	anon := f.client.CheckAuth(ctx)
	require.True(t, anon.Ok())
	assert.False(t, anon.Value.Authenticated)

	su := f.client.SignUp(ctx, platform.SignUp{FIO: "Eve", Email: "eve@example.com", Password: "pw"})
	require.True(t, su.Ok(), "kind=%s", su.Kind)
	assert.Equal(t, "eve@example.com", su.Value.Email)

	f.login(t, "eve@example.com", "pw")
	tok, err := f.tokens.Get(tokenstore.KeyUser)
	require.NoError(t, err)
	assert.NotEmpty(t, tok)
	assert.Equal(t, []tokenstore.Change{{Key: tokenstore.KeyUser, Present: true}}, f.changes)

	st := f.client.CheckAuth(ctx)
	require.True(t, st.Ok())
	assert.True(t, st.Value.Authenticated)
	require.NotNil(t, st.Value.User)
	assert.Equal(t, "Eve", st.Value.User.FIO)

	require.NoError(t, f.client.Logout())
	_, err = f.tokens.Get(tokenstore.KeyUser)
	assert.ErrorIs(t, err, tokenstore.ErrNotFound)
	assert.Len(t, f.changes, 2)
}

func TestLogin_WrongPassword(t *testing.T) {
	f := setup(t)
	f.backend.AddUser("frank@example.com", "right", "Frank")

	r := f.client.Login(context.Background(), platform.Credentials{Email: "frank@example.com", Password: "wrong"})
	require.True(t, r.IsAuthError())
	assert.Equal(t, "Incorrect email or password", r.Failure.Message)
	assert.Empty(t, f.changes)
}

func TestSignUp_Validation(t *testing.T) {
	f := setup(t)

	r := f.client.SignUp(context.Background(), platform.SignUp{Email: "x@example.com"})
	require.Equal(t, api.KindFailure, r.Kind)
	assert.Equal(t, http.StatusUnprocessableEntity, r.Failure.Status)
}

func TestRegistrationFlow(t *testing.T) {
	f := setup(t)
	f.backend.AddUser("gina@example.com", "pw", "Gina")
	f.login(t, "gina@example.com", "pw")
	ctx := context.Background()

	reg := f.client.Register(ctx, 1)
	require.True(t, reg.Ok(), "kind=%s failure=%+v", reg.Kind, reg.Failure)
	assert.Equal(t, int64(1), reg.Value.EventID)
	assert.Equal(t, "active", reg.Value.Status)

	again := f.client.Register(ctx, 1)
	require.Equal(t, api.KindFailure, again.Kind)
	assert.Equal(t, "Already registered for this event", again.Failure.Message)

	tickets := f.client.MyTickets(ctx)
	require.True(t, tickets.Ok())
	require.Len(t, tickets.Value, 1)

	ev := f.client.GetEvent(ctx, 1)
	require.True(t, ev.Ok())
	assert.Equal(t, ev.Value.TicketsTotal-1, ev.Value.TicketsAvailable)

	notes := f.client.Notifications(ctx)
	require.True(t, notes.Ok())
	require.Len(t, notes.Value, 1)
	assert.Contains(t, notes.Value[0].Message, "Jazz in the Park")

	read := f.client.MarkNotificationRead(ctx, notes.Value[0].ID)
	require.True(t, read.Ok(), "kind=%s", read.Kind)

	cancel := f.client.CancelRegistration(ctx, 1)
	require.True(t, cancel.Ok(), "kind=%s", cancel.Kind)

	tickets = f.client.MyTickets(ctx)
	require.True(t, tickets.Ok())
	assert.Equal(t, "cancelled", tickets.Value[0].Status)
}

func TestUpdateProfile(t *testing.T) {
	f := setup(t)
	f.backend.AddUser("hal@example.com", "pw", "Hal")
	f.login(t, "hal@example.com", "pw")

	r := f.client.UpdateProfile(context.Background(), platform.ProfileUpdate{Telegram: "@hal"})
	require.True(t, r.Ok())
	assert.Equal(t, "@hal", r.Value.Telegram)
	assert.Equal(t, "Hal", r.Value.FIO)

	me := f.client.Me(context.Background())
	require.True(t, me.Ok())
	assert.Equal(t, "@hal", me.Value.Telegram)
}

func TestUserCallWithoutLogin(t *testing.T) {
	f := setup(t)

	r := f.client.MyTickets(context.Background())
	require.True(t, r.IsAuthError())
	assert.Equal(t, http.StatusUnauthorized, r.Failure.Status)
	assert.Equal(t, "/login", r.Failure.Redirect)
}

func TestTokenRotation(t *testing.T) {
	f := setup(t, mockbackend.WithTokenRotation())
	f.backend.AddUser("ivy@example.com", "pw", "Ivy")
	f.login(t, "ivy@example.com", "pw")
	first, err := f.tokens.Get(tokenstore.KeyUser)
	require.NoError(t, err)

	r := f.client.Me(context.Background())
	require.True(t, r.Ok())
	second, err := f.tokens.Get(tokenstore.KeyUser)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	// The rotated token must be the one the next call presents.
	r = f.client.Me(context.Background())
	require.True(t, r.Ok(), "kind=%s", r.Kind)
}

func TestAdminCRUD(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	denied := f.client.ListUsers(ctx, "")
	require.True(t, denied.IsAuthError())
	assert.Equal(t, "/admin/login", denied.Failure.Redirect)

	login := f.client.AdminLogin(ctx, platform.Credentials{
		Email:    mockbackend.DefaultAdminEmail,
		Password: mockbackend.DefaultAdminPassword,
	})
	require.True(t, login.Ok())
	_, err := f.tokens.Get(tokenstore.KeyAdmin)
	require.NoError(t, err)

	start := time.Date(2026, 11, 1, 18, 0, 0, 0, time.UTC)
	created := f.client.CreateEvent(ctx, platform.EventInput{
		Title:        "Winter Fair",
		StartDate:    start,
		Published:    true,
		Status:       platform.StatusRegistrationOpen,
		TicketsTotal: 10,
	})
	require.True(t, created.Ok(), "kind=%s failure=%+v", created.Kind, created.Failure)
	id := created.Value.ID
	assert.Equal(t, "winter-fair", created.Value.URLSlug)

	updated := f.client.UpdateEvent(ctx, id, platform.EventInput{
		Title:        "Winter Fair",
		StartDate:    start,
		Published:    true,
		Status:       platform.StatusRegistrationClosed,
		TicketsTotal: 20,
	})
	require.True(t, updated.Ok())
	assert.Equal(t, platform.StatusRegistrationClosed, updated.Value.Status)
	assert.Equal(t, 20, updated.Value.TicketsAvailable)

	invalid := f.client.CreateEvent(ctx, platform.EventInput{StartDate: start})
	require.Equal(t, api.KindFailure, invalid.Kind)
	assert.Equal(t, "title is required", invalid.Failure.Message)

	deleted := f.client.DeleteEvent(ctx, id)
	require.True(t, deleted.Ok(), "kind=%s", deleted.Kind)
	gone := f.client.GetEvent(ctx, id)
	assert.Equal(t, http.StatusNotFound, gone.Failure.Status)

	uid := f.backend.AddUser("jo@example.com", "pw", "Jo March")
	users := f.client.ListUsers(ctx, "march")
	require.True(t, users.Ok())
	require.Len(t, users.Value, 1)
	assert.Equal(t, uid, users.Value[0].ID)

	one := f.client.GetUser(ctx, uid)
	require.True(t, one.Ok())
	assert.Equal(t, "jo@example.com", one.Value.Email)

	require.NoError(t, f.client.AdminLogout())
	_, err = f.tokens.Get(tokenstore.KeyAdmin)
	assert.ErrorIs(t, err, tokenstore.ErrNotFound)
}
