// Package inspection holds the restaurant inspection dataset: the open-data
// provider, snapshot persistence, and the atomically swapped in-memory
// snapshot the analytics read from.
package inspection

import (
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/orderrisk/internal/model"
)

// Snapshot is one complete, immutable copy of the inspection dataset.
// Readers share it without locking; a refresh builds a new Snapshot rather
// than touching this one.
type Snapshot struct {
	ID        uuid.UUID                `json:"id"`
	FetchedAt time.Time                `json:"fetched_at"`
	Records   []model.InspectionRecord `json:"records"`
	Index     model.InspectionIndex    `json:"-"`
}

// NewSnapshot wraps freshly fetched records in a new Snapshot.
func NewSnapshot(records []model.InspectionRecord, fetchedAt time.Time) *Snapshot {
	return restore(uuid.New(), fetchedAt, records)
}

func restore(id uuid.UUID, fetchedAt time.Time, records []model.InspectionRecord) *Snapshot {
	return &Snapshot{
		ID:        id,
		FetchedAt: fetchedAt.UTC(),
		Records:   records,
		Index:     model.GroupByCAMIS(records),
	}
}

// Age returns how old the snapshot is at now.
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.FetchedAt)
}

// Stale reports whether the snapshot is older than maxAge at now.
func (s *Snapshot) Stale(now time.Time, maxAge time.Duration) bool {
	return s.Age(now) > maxAge
}

// Restaurants returns the number of distinct CAMIS values in the snapshot.
func (s *Snapshot) Restaurants() int {
	return len(s.Index)
}
