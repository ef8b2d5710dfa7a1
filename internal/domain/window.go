package domain

import (
	"time"
)

// WindowDuration is the validity span of a schedule window.
const WindowDuration = 24 * time.Hour

// Profile is one configured identity: the persona fed to comment generation
// plus the AdsPower account the browser session is started under.
type Profile struct {
	ID         string `json:"id"`
	AdsPowerID string `json:"adspower_id"`
	Persona    string `json:"persona"`
	Active     bool   `json:"active"`
}

// Entry is one profile's planned action within a window. It is created once
// by the generator and mutated exactly twice: scheduled→running at pickup,
// then running→completed|failed when the invocation ends.
type Entry struct {
	ProfileID   string     `json:"profileId"`
	AdsPowerID  string     `json:"adspowerId"`
	ScheduledAt time.Time  `json:"scheduledTime"`
	Action      ActionType `json:"actionType"`
	Status      Status     `json:"status"`
	Completed   bool       `json:"completed"`
	Immediate   bool       `json:"isImmediateExecution"`

	CompletedAt *time.Time    `json:"completedAt,omitempty"`
	Error       string        `json:"error,omitempty"`
	Result      *ActionResult `json:"result,omitempty"`
}

// Window is the 24-hour batch of scheduled actions generated together and
// expiring together. Expired windows are discarded whole, never merged.
type Window struct {
	ID      string    `json:"id"`
	Created time.Time `json:"created"`
	Expires time.Time `json:"expires"`
	Entries []Entry   `json:"profiles"`
}

func (w *Window) ExpiredAt(now time.Time) bool {
	return now.After(w.Expires)
}

// Entry returns the entry for profileID, or nil.
func (w *Window) Entry(profileID string) *Entry {
	for i := range w.Entries {
		if w.Entries[i].ProfileID == profileID {
			return &w.Entries[i]
		}
	}
	return nil
}

// Pending returns the entries that still need a timer armed.
func (w *Window) Pending() []Entry {
	var out []Entry
	for _, e := range w.Entries {
		if !e.Completed {
			out = append(out, e)
		}
	}
	return out
}
