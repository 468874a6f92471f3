package store

import (
	"time"

	"github.com/google/uuid"
)

func newID() string {
	return uuid.NewString()
}

// now is truncated to microseconds so values round-trip through DATETIME(6).
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func stamp(id *string, created *time.Time) {
	if *id == "" {
		*id = newID()
	}
	if created.IsZero() {
		*created = now()
	} else {
		*created = created.UTC().Truncate(time.Microsecond)
	}
}
