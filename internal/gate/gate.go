// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package gate decides whether an outbound request may be sent in the
// current loading stage.
package gate

import (
	"net/url"
	"strings"

	"github.com/kenttv99/MM-sub001/internal/stage"
)

// SkipReason is reported for every request the gate refuses.
const SkipReason = "Request skipped due to loading stage"

// Category is the inferred kind of a request target.
type Category int

const (
	CategoryPublic Category = iota
	CategoryAuth
	CategoryUser
	CategoryExternal
)

func (c Category) String() string {
	switch c {
	case CategoryAuth:
		return "auth"
	case CategoryUser:
		return "user"
	case CategoryExternal:
		return "external"
	default:
		return "public"
	}
}

// userPrefixes are per-user resources that must wait for the dynamic stages.
var userPrefixes = []string{
	"/users",
	"/notifications",
	"/user_edits",
	"/registration",
	"/admin_edits",
	"/admin",
}

// Classify infers the category of a request URL. Absolute URLs, including
// scheme-relative ones, are External.
func Classify(rawURL string) Category {
	u, err := url.Parse(rawURL)
	if err != nil {
		return CategoryPublic
	}
	if u.IsAbs() || u.Host != "" {
		return CategoryExternal
	}

	p := strings.ToLower(u.Path)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}

	if hasSegmentPrefix(p, "/auth") ||
		strings.Contains(p, "login") ||
		strings.Contains(p, "check-auth") ||
		strings.Contains(p, "check_auth") {
		return CategoryAuth
	}
	if strings.Contains(p, "profile") {
		return CategoryUser
	}
	for _, prefix := range userPrefixes {
		if hasSegmentPrefix(p, prefix) {
			return CategoryUser
		}
	}
	return CategoryPublic
}

// hasSegmentPrefix matches prefix as a whole path segment ("/users" matches
// "/users" and "/users/1" but not "/userservice").
func hasSegmentPrefix(p, prefix string) bool {
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

// ShouldProcessRequest applies the stage policy to url.
func ShouldProcessRequest(rawURL string, current stage.Stage) bool {
	return allowed(Classify(rawURL), current)
}

func allowed(c Category, current stage.Stage) bool {
	if c == CategoryExternal {
		return true
	}
	switch current {
	case stage.Initial, stage.Authentication:
		return c == CategoryAuth
	case stage.StaticContent, stage.DynamicContent:
		return c != CategoryUser
	default:
		return true
	}
}

// Verdict is the result of Check.
type Verdict struct {
	Allowed  bool
	Reason   string
	Category Category
}

// Check is ShouldProcessRequest with a per-call override. bypass skips the
// stage policy entirely.
func Check(rawURL string, current stage.Stage, bypass bool) Verdict {
	c := Classify(rawURL)
	if bypass || allowed(c, current) {
		return Verdict{Allowed: true, Category: c}
	}
	return Verdict{Allowed: false, Reason: SkipReason, Category: c}
}
