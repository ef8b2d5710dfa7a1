package domain

import (
	"errors"
)

type ActionType string

const (
	ActionComment ActionType = "comment"
	ActionLike    ActionType = "like"
	ActionRetweet ActionType = "retweet"
)

// ActionTypes lists every action the executor can dispatch, in the order
// the generator draws from.
var ActionTypes = []ActionType{ActionComment, ActionLike, ActionRetweet}

func (a ActionType) Valid() bool {
	switch a {
	case ActionComment, ActionLike, ActionRetweet:
		return true
	}
	return false
}

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status ends an entry's lifecycle.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo enforces the monotonic lifecycle
// scheduled → running → completed|failed. Terminal states are final.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusScheduled:
		return next == StatusRunning || next.Terminal()
	case StatusRunning:
		return next.Terminal()
	default:
		return false
	}
}

var (
	ErrNoActiveProfiles = errors.New("no active profiles configured")
	ErrEntryNotFound    = errors.New("schedule entry not found")
	ErrWindowNotFound   = errors.New("no schedule window")
	ErrInvalidStatus    = errors.New("invalid status transition")
	ErrNotLoggedIn      = errors.New("account is not logged in")
	ErrNoTweetsFound    = errors.New("no tweets survived filtering")
)

// ActionResult is the outcome payload written into a completed entry.
// The Telegram reporter consumes Success and CommentURL, so the JSON keys
// of those two fields are a contract.
type ActionResult struct {
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
	Comment    string `json:"comment,omitempty"`
	CommentURL string `json:"commentUrl,omitempty"`
	Partial    bool   `json:"partial,omitempty"`
}
