// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package platform

import "time"

// Event status values reported by the public backend.
const (
	StatusDraft              = "draft"
	StatusRegistrationOpen   = "registration_open"
	StatusRegistrationClosed = "registration_closed"
	StatusCompleted          = "completed"
)

// Event is a public event as listed and edited by the backends.
type Event struct {
	ID               int64      `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	StartDate        time.Time  `json:"start_date"`
	EndDate          *time.Time `json:"end_date,omitempty"`
	Location         string     `json:"location,omitempty"`
	ImageURL         string     `json:"image_url,omitempty"`
	Price            float64    `json:"price"`
	Published        bool       `json:"published"`
	Status           string     `json:"status"`
	TicketsTotal     int        `json:"tickets_total"`
	TicketsAvailable int        `json:"tickets_available"`
	URLSlug          string     `json:"url_slug,omitempty"`
}

// EventInput is the admin payload for creating or updating an event.
type EventInput struct {
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	StartDate    time.Time  `json:"start_date"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	Location     string     `json:"location,omitempty"`
	Price        float64    `json:"price"`
	Published    bool       `json:"published"`
	Status       string     `json:"status"`
	TicketsTotal int        `json:"tickets_total"`
}

// ListEventsParams filters the public event listing.
type ListEventsParams struct {
	Page   int
	Size   int
	Status string
	Search string
}

// User is an account as seen by the user itself or by an admin.
type User struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FIO       string `json:"fio"`
	Telegram  string `json:"telegram,omitempty"`
	Whatsapp  string `json:"whatsapp,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	IsActive  bool   `json:"is_active"`
}

// ProfileUpdate carries the editable profile fields.
type ProfileUpdate struct {
	FIO      string `json:"fio,omitempty"`
	Telegram string `json:"telegram,omitempty"`
	Whatsapp string `json:"whatsapp,omitempty"`
}

// Credentials is a login form.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUp is the account registration form.
type SignUp struct {
	FIO      string `json:"fio"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Telegram string `json:"telegram,omitempty"`
	Whatsapp string `json:"whatsapp,omitempty"`
}

// TokenResponse is returned by both login endpoints.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        *User  `json:"user,omitempty"`
}

// AuthStatus is the check-auth answer.
type AuthStatus struct {
	Authenticated bool  `json:"authenticated"`
	User          *User `json:"user,omitempty"`
}

// Ticket is a user's registration for an event.
type Ticket struct {
	ID           int64     `json:"id"`
	EventID      int64     `json:"event_id"`
	Event        *Event    `json:"event,omitempty"`
	TicketNumber string    `json:"ticket_number"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// Notification is a message addressed to the current user.
type Notification struct {
	ID        int64     `json:"id"`
	Message   string    `json:"message"`
	Read      bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// RegistrationRequest books or cancels a ticket.
type RegistrationRequest struct {
	EventID int64 `json:"event_id"`
}
