// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package stage

// Decision is the outcome of a transition check.
type Decision struct {
	Allowed bool
	Reason  string
}

// Reasons reported by CanChangeStage and Store.SetStage.
const (
	ReasonAlreadyInStage = "already in stage"
	ReasonRegression     = "regression blocked"
	ReasonForcedReauth   = "forced re-authentication"
	ReasonForwardSkip    = "forward skip"
	ReasonForward        = "forward transition"
	ReasonAuthNotChecked = "authentication not checked"
	ReasonAdminFastTrack = "admin route fast-track"
	ReasonInvalidStage   = "invalid stage"
	ReasonReset          = "reset"
)

type guardOptions struct {
	forceReauth bool
}

// GuardOption adjusts a single transition check.
type GuardOption func(*guardOptions)

// ForceReauth permits a regression to Authentication, as used by a re-login
// flow. It has no effect on any other target stage.
func ForceReauth() GuardOption {
	return func(o *guardOptions) { o.forceReauth = true }
}

// CanChangeStage decides whether a transition from current to requested is
// legal. It has no side effects. history is accepted for diagnostics; the
// decision depends only on the two stages and the options.
func CanChangeStage(current, requested Stage, history []HistoryEntry, opts ...GuardOption) Decision {
	var o guardOptions
	for _, opt := range opts {
		opt(&o)
	}

	if !requested.Valid() {
		return Decision{Allowed: false, Reason: ReasonInvalidStage}
	}

	switch {
	case requested == current:
		return Decision{Allowed: true, Reason: ReasonAlreadyInStage}
	case requested.Index() < current.Index():
		if requested == Authentication && o.forceReauth {
			return Decision{Allowed: true, Reason: ReasonForcedReauth}
		}
		return Decision{Allowed: false, Reason: ReasonRegression}
	case current == Initial && requested.Index()-current.Index() > 1:
		// Static pages never pass through the intermediate stages.
		return Decision{Allowed: true, Reason: ReasonForwardSkip}
	default:
		return Decision{Allowed: true, Reason: ReasonForward}
	}
}
