package engagement

import "time"

// Record is the stored state of a pair. Version increases by one on every write.
type Record struct {
	ClientID             string     `json:"client_id"`
	TrainerID            string     `json:"trainer_id"`
	Stage                Stage      `json:"stage"`
	Version              int64      `json:"version"`
	Notes                string     `json:"notes,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
	DiscoveryCompletedAt *time.Time `json:"discovery_completed_at,omitempty"`
}

// Pair returns the record's identity.
func (r Record) Pair() Pair {
	return Pair{ClientID: r.ClientID, TrainerID: r.TrainerID}
}

// Browsing returns the implicit record of a pair that was never stored.
func Browsing(p Pair) Record {
	return Record{ClientID: p.ClientID, TrainerID: p.TrainerID, Stage: StageBrowsing}
}
