// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package stage

import (
	"net/url"
	"strings"
)

// RouteContext describes the page the client is currently on.
type RouteContext struct {
	Path         string
	IsAdminRoute bool
}

// RouteFromPath derives the route context from a URL path or full URL.
func RouteFromPath(raw string) RouteContext {
	p := raw
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		p = u.Path
	}
	if p == "" {
		p = "/"
	}
	return RouteContext{
		Path:         p,
		IsAdminRoute: p == "/admin" || strings.HasPrefix(p, "/admin/"),
	}
}
