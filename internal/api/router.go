// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/kenttv99/MM-sub001/internal/tokenstore"
)

// Backend names one of the upstream services.
type Backend string

const (
	BackendPublic   Backend = "public"
	BackendAdmin    Backend = "admin"
	BackendExternal Backend = "external"
)

// TokenKey is the credential slot used for requests to b.
func (b Backend) TokenKey() string {
	switch b {
	case BackendAdmin:
		return tokenstore.KeyAdmin
	case BackendPublic:
		return tokenstore.KeyUser
	default:
		return ""
	}
}

// LoginPath is where the user is sent after an auth failure on b.
func (b Backend) LoginPath() string {
	if b == BackendAdmin {
		return "/admin/login"
	}
	return "/login"
}

// routes maps same-origin path prefixes to their backend. Unknown prefixes
// go to the public backend.
var routes = []struct {
	prefix  string
	backend Backend
}{
	{"/admin_edits", BackendAdmin},
	{"/admin", BackendAdmin},
	{"/auth", BackendPublic},
	{"/users", BackendPublic},
	{"/registration", BackendPublic},
	{"/v1", BackendPublic},
	{"/notifications", BackendPublic},
	{"/user_edits", BackendPublic},
	{"/images", BackendPublic},
}

// Router resolves request paths against the configured backend base URLs.
type Router struct {
	bases map[Backend]*url.URL
}

// NewRouter parses both base URLs.
func NewRouter(publicBase, adminBase string) (*Router, error) {
	r := &Router{bases: make(map[Backend]*url.URL, 2)}
	for b, raw := range map[Backend]string{BackendPublic: publicBase, BackendAdmin: adminBase} {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse %s base url: %w", b, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("%s base url %q must be absolute", b, raw)
		}
		r.bases[b] = u
	}
	return r, nil
}

// BackendFor classifies a path by prefix. Absolute URLs are external.
func BackendFor(target string) Backend {
	if u, err := url.Parse(target); err == nil && (u.IsAbs() || u.Host != "") {
		return BackendExternal
	}
	path := target
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	for _, rt := range routes {
		if path == rt.prefix || strings.HasPrefix(path, rt.prefix+"/") {
			return rt.backend
		}
	}
	return BackendPublic
}

// Resolve returns the backend and the absolute URL for target with query
// merged in.
func (r *Router) Resolve(target string, query url.Values) (Backend, *url.URL, error) {
	b := BackendFor(target)
	ref, err := url.Parse(target)
	if err != nil {
		return b, nil, fmt.Errorf("parse request target: %w", err)
	}

	var u *url.URL
	if b == BackendExternal {
		u = ref
	} else {
		base := *r.bases[b]
		base.Path = strings.TrimRight(base.Path, "/") + "/" + strings.TrimLeft(ref.Path, "/")
		base.RawPath = ""
		base.RawQuery = ref.RawQuery
		u = &base
	}

	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return b, u, nil
}
