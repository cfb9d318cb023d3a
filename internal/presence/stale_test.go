package presence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsStale(t *testing.T) {
	now := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	rec := &PresenceRecord{LastUpdated: now.Add(-9 * time.Hour)}
	assert.False(t, IsStale(rec, now))

	// Exactly at the cap is still fresh; the comparison is strict.
	rec = &PresenceRecord{LastUpdated: now.Add(-MaxPresenceDuration)}
	assert.False(t, IsStale(rec, now))

	rec = &PresenceRecord{LastUpdated: now.Add(-MaxPresenceDuration - time.Second)}
	assert.True(t, IsStale(rec, now))
}
