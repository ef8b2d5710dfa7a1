package profiles

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/nurbekov/engage-scheduler/internal/domain"
)

type fileDoc struct {
	Profiles []domain.Profile `json:"profiles"`
}

// Load reads the profiles file and returns the active profiles in file
// order. An empty result is a startup error: the scheduler refuses to run
// with nothing to schedule.
func Load(path string) ([]domain.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles file: %w", err)
	}

	var doc fileDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse profiles file: %w", err)
	}

	var active []domain.Profile
	for _, p := range doc.Profiles {
		if p.Active {
			active = append(active, p)
		}
	}
	if len(active) == 0 {
		return nil, domain.ErrNoActiveProfiles
	}
	return active, nil
}
