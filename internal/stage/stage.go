// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package stage sequences client readiness. A Store moves forward through an
// ordered set of loading stages; the request gate consults the current stage
// before any outbound call is made.
package stage

import (
	"fmt"
	"strings"
)

// Stage is a named phase of page readiness. Stages are totally ordered.
type Stage int

const (
	Initial Stage = iota
	Authentication
	StaticContent
	DynamicContent
	DataLoading
	Completed
)

var stageNames = [...]string{
	Initial:        "initial",
	Authentication: "authentication",
	StaticContent:  "static_content",
	DynamicContent: "dynamic_content",
	DataLoading:    "data_loading",
	Completed:      "completed",
}

// All lists every stage in progression order.
func All() []Stage {
	return []Stage{Initial, Authentication, StaticContent, DynamicContent, DataLoading, Completed}
}

// Index returns the position of s in the progression.
func (s Stage) Index() int { return int(s) }

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool { return s >= Initial && s <= Completed }

func (s Stage) String() string {
	if !s.Valid() {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// Parse resolves a stage name. Upper-case names with underscores
// ("STATIC_CONTENT") are accepted as well.
func Parse(name string) (Stage, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, v := range stageNames {
		if v == n {
			return Stage(i), nil
		}
	}
	return Initial, fmt.Errorf("unknown stage %q", name)
}

func (s Stage) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid stage %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Stage) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// HistoryEntry records one accepted transition.
type HistoryEntry struct {
	Stage     Stage `json:"stage"`
	Timestamp int64 `json:"timestamp"` // unix milliseconds
}
