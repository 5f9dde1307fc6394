// SPDX-License-Identifier: MIT
package mockbackend

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/kenttv99/MM-sub001/internal/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func do(t *testing.T, srv *httptest.Server, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestPublicEventsSeeded(t *testing.T) {
	srv := httptest.NewServer(New().PublicHandler())
	defer srv.Close()

	resp := do(t, srv, http.MethodGet, "/v1/public/events", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	events := decode[[]platform.Event](t, resp)
	require.Len(t, events, 3)
	assert.Equal(t, "jazz-in-the-park", events[0].URLSlug)

	resp = do(t, srv, http.MethodGet, "/v1/public/events?search=go&size=1&page=1", "", nil)
	events = decode[[]platform.Event](t, resp)
	require.Len(t, events, 1)
	assert.Equal(t, "Go Meetup", events[0].Title)

	resp = do(t, srv, http.MethodGet, "/v1/public/events/999", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, map[string]string{"detail": "Event not found"}, decode[map[string]string](t, resp))
}

func TestUserFlow(t *testing.T) {
	b := New()
	srv := httptest.NewServer(b.PublicHandler())
	defer srv.Close()

	resp := do(t, srv, http.MethodPost, "/auth/register", "", platform.SignUp{FIO: "Ann", Email: "ann@example.com", Password: "pw"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/auth/login", "", platform.Credentials{Email: "ann@example.com", Password: "pw"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tok := decode[platform.TokenResponse](t, resp).AccessToken
	require.NotEmpty(t, tok)

	resp = do(t, srv, http.MethodGet, "/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/registration/register", tok, platform.RegistrationRequest{EventID: 1})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "active", decode[platform.Ticket](t, resp).Status)

	resp = do(t, srv, http.MethodPost, "/registration/register", tok, platform.RegistrationRequest{EventID: 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/notifications", tok, nil)
	notes := decode[[]platform.Notification](t, resp)
	require.Len(t, notes, 1)

	resp = do(t, srv, http.MethodPost, "/notifications/"+itoa(notes[0].ID)+"/read", tok, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/registration/cancel", tok, platform.RegistrationRequest{EventID: 1})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/v1/public/events/1", "", nil)
	ev := decode[platform.Event](t, resp)
	assert.Equal(t, ev.TicketsTotal, ev.TicketsAvailable)
}

func TestTokenRotation(t *testing.T) {
	b := New(WithTokenRotation())
	uid := b.AddUser("bob@example.com", "pw", "Bob")
	tok := b.UserToken(uid)
	srv := httptest.NewServer(b.PublicHandler())
	defer srv.Close()

	resp := do(t, srv, http.MethodGet, "/users/me", tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	next := resp.Header.Get("X-Refresh-Token")
	require.NotEmpty(t, next)
	assert.NotEqual(t, tok, next)

	assert.Equal(t, http.StatusUnauthorized, do(t, srv, http.MethodGet, "/users/me", tok, nil).StatusCode)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/users/me", next, nil).StatusCode)
}

func TestAdminCRUD(t *testing.T) {
	srv := httptest.NewServer(New(WithoutSeed()).AdminHandler())
	defer srv.Close()

	assert.Equal(t, http.StatusUnauthorized, do(t, srv, http.MethodGet, "/admin_edits/events", "", nil).StatusCode)
	assert.Equal(t, http.StatusForbidden, do(t, srv, http.MethodGet, "/admin_edits/events", "nope", nil).StatusCode)

	resp := do(t, srv, http.MethodPost, "/admin/login", "", platform.Credentials{Email: DefaultAdminEmail, Password: DefaultAdminPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tok := decode[platform.TokenResponse](t, resp).AccessToken

	in := platform.EventInput{Title: "Launch", StartDate: time.Now(), TicketsTotal: 10, Status: platform.StatusRegistrationOpen, Published: true}
	resp = do(t, srv, http.MethodPost, "/admin_edits/events", tok, in)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[platform.Event](t, resp)
	assert.Equal(t, 10, created.TicketsAvailable)

	in.Title = "Launch party"
	resp = do(t, srv, http.MethodPut, "/admin_edits/events/"+itoa(created.ID), tok, in)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "launch-party", decode[platform.Event](t, resp).URLSlug)

	resp = do(t, srv, http.MethodPost, "/admin_edits/events", tok, platform.EventInput{})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	assert.Equal(t, http.StatusNoContent, do(t, srv, http.MethodDelete, "/admin_edits/events/"+itoa(created.ID), tok, nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodDelete, "/admin_edits/events/"+itoa(created.ID), tok, nil).StatusCode)
}

func TestFaultInjection(t *testing.T) {
	b := New()
	b.SetFailures("/v1/public/events", 1)
	srv := httptest.NewServer(b.PublicHandler())
	defer srv.Close()

	assert.Equal(t, http.StatusInternalServerError, do(t, srv, http.MethodGet, "/v1/public/events", "", nil).StatusCode)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/v1/public/events", "", nil).StatusCode)
}

func TestRateLimit(t *testing.T) {
	srv := httptest.NewServer(New(WithRateLimit(2, time.Minute)).PublicHandler())
	defer srv.Close()

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/v1/public/events", "", nil).StatusCode)
	}
	resp := do(t, srv, http.MethodGet, "/v1/public/events", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "60", resp.Header.Get("Retry-After"))
}

func TestRequestIDEchoed(t *testing.T) {
	srv := httptest.NewServer(New().PublicHandler())
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/public/events", nil)
	req.Header.Set("X-Request-ID", "req-1")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "req-1", resp.Header.Get("X-Request-ID"))

	resp2 := do(t, srv, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
	assert.NotEmpty(t, resp2.Header.Get("X-Request-ID"))
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
