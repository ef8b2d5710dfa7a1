package schedule

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/nurbekov/engage-scheduler/internal/domain"
)

const (
	// immediateDelay is how soon the distinguished entry runs. One fast,
	// observable action per window is a fixed business rule.
	immediateDelay = time.Minute

	// minLead is the earliest an ordinary entry may be scheduled.
	minLead = time.Hour
)

// Generate builds a fresh 24-hour window for the given profiles.
//
// Exactly one profile, chosen uniformly at random, gets the immediate
// entry: scheduled at now+1min, always a comment. Every other entry gets
// a uniformly random time in [now+1h, now+24h) and a uniformly random
// action type.
func Generate(profiles []domain.Profile, now time.Time) *domain.Window {
	w := &domain.Window{
		ID:      uuid.NewString(),
		Created: now,
		Expires: now.Add(domain.WindowDuration),
		Entries: make([]domain.Entry, 0, len(profiles)),
	}

	immediate := -1
	if len(profiles) > 0 {
		immediate = rand.Intn(len(profiles))
	}

	spread := domain.WindowDuration - minLead
	for i, p := range profiles {
		e := domain.Entry{
			ProfileID:  p.ID,
			AdsPowerID: p.AdsPowerID,
			Status:     domain.StatusScheduled,
		}
		if i == immediate {
			e.ScheduledAt = now.Add(immediateDelay)
			e.Action = domain.ActionComment
			e.Immediate = true
		} else {
			e.ScheduledAt = now.Add(minLead + time.Duration(rand.Int63n(int64(spread))))
			e.Action = domain.ActionTypes[rand.Intn(len(domain.ActionTypes))]
		}
		w.Entries = append(w.Entries, e)
	}

	return w
}
