// SPDX-License-Identifier: MIT

package mockbackend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/kenttv99/MM-sub001/internal/platform"
)

type ctxKey struct{}

func userIDFrom(ctx context.Context) int64 {
	id, _ := ctx.Value(ctxKey{}).(int64)
	return id
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Invalid request body")
		return false
	}
	return true
}

// rotateLocked swaps tok for a new token in sessions. Caller holds mu.
func rotateLocked[V any](sessions map[string]V, tok string, w http.ResponseWriter) {
	v := sessions[tok]
	delete(sessions, tok)
	next := uuid.NewString()
	sessions[next] = v
	w.Header().Set("X-Refresh-Token", next)
}

func (b *Backend) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := bearer(r)
		b.mu.Lock()
		id, ok := b.sessions[tok]
		if ok && b.rotate {
			rotateLocked(b.sessions, tok, w)
		}
		b.mu.Unlock()
		if !ok {
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func (b *Backend) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := bearer(r)
		b.mu.Lock()
		_, ok := b.adminSessions[tok]
		if ok && b.rotate {
			rotateLocked(b.adminSessions, tok, w)
		}
		b.mu.Unlock()
		switch {
		case tok == "":
			writeError(w, http.StatusUnauthorized, "Not authenticated")
		case !ok:
			writeError(w, http.StatusForbidden, "Admin privileges required")
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// --- public ---

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds platform.Credentials
	if !decodeJSON(w, r, &creds) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, acc := range b.users {
		if strings.EqualFold(acc.Email, creds.Email) && acc.password == creds.Password {
			tok := uuid.NewString()
			b.sessions[tok] = acc.ID
			u := acc.User
			writeJSON(w, http.StatusOK, platform.TokenResponse{AccessToken: tok, TokenType: "bearer", User: &u})
			return
		}
	}
	writeError(w, http.StatusUnauthorized, "Incorrect email or password")
}

func (b *Backend) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var form platform.SignUp
	if !decodeJSON(w, r, &form) {
		return
	}
	if strings.TrimSpace(form.Email) == "" || form.Password == "" || strings.TrimSpace(form.FIO) == "" {
		writeError(w, http.StatusUnprocessableEntity, "fio, email and password are required")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, acc := range b.users {
		if strings.EqualFold(acc.Email, form.Email) {
			writeError(w, http.StatusBadRequest, "Email already registered")
			return
		}
	}
	id := b.addUserLocked(form.Email, form.Password, form.FIO)
	acc := b.users[id]
	acc.Telegram, acc.Whatsapp = form.Telegram, form.Whatsapp
	writeJSON(w, http.StatusCreated, acc.User)
}

func (b *Backend) handleCheckAuth(w http.ResponseWriter, r *http.Request) {
	b.mu.RLock()
	id, ok := b.sessions[bearer(r)]
	var u platform.User
	if ok {
		u = b.users[id].User
	}
	b.mu.RUnlock()
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, platform.AuthStatus{Authenticated: true, User: &u})
}

func (b *Backend) sortedEvents(publishedOnly bool) []platform.Event {
	out := make([]platform.Event, 0, len(b.events))
	for _, e := range b.events {
		if publishedOnly && (!e.Published || e.Status == platform.StatusDraft) {
			continue
		}
		out = append(out, *e)
	}
	slices.SortFunc(out, func(x, y platform.Event) int { return int(x.ID - y.ID) })
	return out
}

func (b *Backend) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := q.Get("status")
	search := strings.ToLower(q.Get("search"))

	b.mu.RLock()
	all := b.sortedEvents(true)
	b.mu.RUnlock()

	events := all[:0]
	for _, e := range all {
		if status != "" && e.Status != status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(e.Title), search) {
			continue
		}
		events = append(events, e)
	}

	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("size"))
	if size > 0 {
		page = max(page, 1)
		from := min((page-1)*size, len(events))
		events = events[from:min(from+size, len(events))]
	}
	writeJSON(w, http.StatusOK, events)
}

func (b *Backend) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "Invalid event id")
		return
	}
	b.mu.RLock()
	e, found := b.events[id]
	var ev platform.Event
	if found {
		ev = *e
	}
	b.mu.RUnlock()
	if !found || !ev.Published {
		writeError(w, http.StatusNotFound, "Event not found")
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

const placeholderSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="16" height="9"><rect width="16" height="9" fill="#ccc"/></svg>`

func (b *Backend) handleImage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/svg+xml")
	_, _ = w.Write([]byte(placeholderSVG))
}

// --- user ---

func (b *Backend) handleMe(w http.ResponseWriter, r *http.Request) {
	b.mu.RLock()
	u := b.users[userIDFrom(r.Context())].User
	b.mu.RUnlock()
	writeJSON(w, http.StatusOK, u)
}

func (b *Backend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req platform.RegistrationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	uid := userIDFrom(r.Context())

	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.events[req.EventID]
	switch {
	case !ok || !e.Published:
		writeError(w, http.StatusNotFound, "Event not found")
		return
	case e.Status != platform.StatusRegistrationOpen:
		writeError(w, http.StatusBadRequest, "Registration is closed")
		return
	case e.TicketsAvailable <= 0:
		writeError(w, http.StatusBadRequest, "No tickets available")
		return
	}
	for _, t := range b.tickets[uid] {
		if t.EventID == req.EventID && t.Status == "active" {
			writeError(w, http.StatusBadRequest, "Already registered for this event")
			return
		}
	}

	b.nextID++
	e.TicketsAvailable--
	ev := *e
	t := platform.Ticket{
		ID:           b.nextID,
		EventID:      e.ID,
		Event:        &ev,
		TicketNumber: fmt.Sprintf("T-%06d", b.nextID),
		Status:       "active",
		CreatedAt:    b.now(),
	}
	b.tickets[uid] = append(b.tickets[uid], t)
	b.nextID++
	b.notifications[uid] = append(b.notifications[uid], platform.Notification{
		ID:        b.nextID,
		Message:   "You are registered for " + e.Title,
		CreatedAt: b.now(),
	})
	writeJSON(w, http.StatusCreated, t)
}

func (b *Backend) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req platform.RegistrationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	uid := userIDFrom(r.Context())

	b.mu.Lock()
	defer b.mu.Unlock()
	tickets := b.tickets[uid]
	for i := range tickets {
		if tickets[i].EventID == req.EventID && tickets[i].Status == "active" {
			tickets[i].Status = "cancelled"
			if e, ok := b.events[req.EventID]; ok {
				e.TicketsAvailable++
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeError(w, http.StatusNotFound, "Registration not found")
}

func (b *Backend) handleMyTickets(w http.ResponseWriter, r *http.Request) {
	b.mu.RLock()
	tickets := slices.Clone(b.tickets[userIDFrom(r.Context())])
	b.mu.RUnlock()
	if tickets == nil {
		tickets = []platform.Ticket{}
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (b *Backend) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var upd platform.ProfileUpdate
	if !decodeJSON(w, r, &upd) {
		return
	}
	b.mu.Lock()
	acc := b.users[userIDFrom(r.Context())]
	if upd.FIO != "" {
		acc.FIO = upd.FIO
	}
	if upd.Telegram != "" {
		acc.Telegram = upd.Telegram
	}
	if upd.Whatsapp != "" {
		acc.Whatsapp = upd.Whatsapp
	}
	u := acc.User
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, u)
}

func (b *Backend) handleNotifications(w http.ResponseWriter, r *http.Request) {
	b.mu.RLock()
	list := slices.Clone(b.notifications[userIDFrom(r.Context())])
	b.mu.RUnlock()
	if list == nil {
		list = []platform.Notification{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (b *Backend) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "Invalid notification id")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.notifications[userIDFrom(r.Context())]
	for i := range list {
		if list[i].ID == id {
			list[i].Read = true
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeError(w, http.StatusNotFound, "Notification not found")
}

// --- admin ---

func (b *Backend) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var creds platform.Credentials
	if !decodeJSON(w, r, &creds) {
		return
	}
	if !strings.EqualFold(creds.Email, b.adminEmail) || creds.Password != b.adminPass {
		writeError(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}
	tok := uuid.NewString()
	b.mu.Lock()
	b.adminSessions[tok] = struct{}{}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, platform.TokenResponse{AccessToken: tok, TokenType: "bearer"})
}

func (b *Backend) handleAdminMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, platform.User{Email: b.adminEmail, FIO: "Administrator", IsActive: true})
}

func (b *Backend) handleAdminListEvents(w http.ResponseWriter, r *http.Request) {
	b.mu.RLock()
	events := b.sortedEvents(false)
	b.mu.RUnlock()
	writeJSON(w, http.StatusOK, events)
}

func validEventInput(in platform.EventInput) string {
	switch {
	case strings.TrimSpace(in.Title) == "":
		return "title is required"
	case in.TicketsTotal < 0:
		return "tickets_total must not be negative"
	case in.EndDate != nil && in.EndDate.Before(in.StartDate):
		return "end_date must not be before start_date"
	}
	return ""
}

func applyInput(e *platform.Event, in platform.EventInput) {
	sold := e.TicketsTotal - e.TicketsAvailable
	e.Title = in.Title
	e.Description = in.Description
	e.StartDate = in.StartDate
	e.EndDate = in.EndDate
	e.Location = in.Location
	e.Price = in.Price
	e.Published = in.Published
	e.Status = in.Status
	if e.Status == "" {
		e.Status = platform.StatusDraft
	}
	e.TicketsTotal = in.TicketsTotal
	e.TicketsAvailable = max(in.TicketsTotal-sold, 0)
	e.URLSlug = slug(in.Title)
}

func (b *Backend) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var in platform.EventInput
	if !decodeJSON(w, r, &in) {
		return
	}
	if msg := validEventInput(in); msg != "" {
		writeError(w, http.StatusUnprocessableEntity, msg)
		return
	}
	b.mu.Lock()
	b.nextID++
	e := &platform.Event{ID: b.nextID}
	applyInput(e, in)
	b.events[e.ID] = e
	ev := *e
	b.mu.Unlock()
	writeJSON(w, http.StatusCreated, ev)
}

func (b *Backend) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "Invalid event id")
		return
	}
	var in platform.EventInput
	if !decodeJSON(w, r, &in) {
		return
	}
	if msg := validEventInput(in); msg != "" {
		writeError(w, http.StatusUnprocessableEntity, msg)
		return
	}
	b.mu.Lock()
	e, found := b.events[id]
	var ev platform.Event
	if found {
		applyInput(e, in)
		ev = *e
	}
	b.mu.Unlock()
	if !found {
		writeError(w, http.StatusNotFound, "Event not found")
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (b *Backend) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "Invalid event id")
		return
	}
	b.mu.Lock()
	_, found := b.events[id]
	delete(b.events, id)
	b.mu.Unlock()
	if !found {
		writeError(w, http.StatusNotFound, "Event not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) handleListUsers(w http.ResponseWriter, r *http.Request) {
	search := strings.ToLower(r.URL.Query().Get("search"))
	b.mu.RLock()
	users := make([]platform.User, 0, len(b.users))
	for _, acc := range b.users {
		if search != "" && !strings.Contains(strings.ToLower(acc.Email+" "+acc.FIO), search) {
			continue
		}
		users = append(users, acc.User)
	}
	b.mu.RUnlock()
	slices.SortFunc(users, func(x, y platform.User) int { return int(x.ID - y.ID) })
	writeJSON(w, http.StatusOK, users)
}

func (b *Backend) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "Invalid user id")
		return
	}
	b.mu.RLock()
	acc, found := b.users[id]
	var u platform.User
	if found {
		u = acc.User
	}
	b.mu.RUnlock()
	if !found {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, u)
}
