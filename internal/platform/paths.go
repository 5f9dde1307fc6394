// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package platform

import "strconv"

// Backend paths. Handlers in the development backend mount the same set.
const (
	PathLogin          = "/auth/login"
	PathSignUp         = "/auth/register"
	PathCheckAuth      = "/auth/check-auth"
	PathMe             = "/users/me"
	PathEvents         = "/v1/public/events"
	PathRegister       = "/registration/register"
	PathCancel         = "/registration/cancel"
	PathMyTickets      = "/user_edits/my-tickets"
	PathUpdateProfile  = "/user_edits/update_user"
	PathNotifications  = "/notifications"
	PathAdminLogin     = "/admin/login"
	PathAdminMe        = "/admin/me"
	PathAdminEvents    = "/admin_edits/events"
	PathAdminUsers     = "/admin_edits/users"
	notificationReadTo = "/read"
)

func withID(base string, id int64) string {
	return base + "/" + strconv.FormatInt(id, 10)
}

// EventPath is the public detail path of an event.
func EventPath(id int64) string { return withID(PathEvents, id) }

// AdminEventPath addresses one event for admin edits.
func AdminEventPath(id int64) string { return withID(PathAdminEvents, id) }

// AdminUserPath addresses one user for admin reads.
func AdminUserPath(id int64) string { return withID(PathAdminUsers, id) }

// NotificationReadPath marks one notification as read.
func NotificationReadPath(id int64) string {
	return withID(PathNotifications, id) + notificationReadTo
}
