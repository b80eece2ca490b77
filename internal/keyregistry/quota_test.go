package keyregistry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextQuotaResetBeforeTodayReset(t *testing.T) {
	now := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	deadline := nextQuotaReset(now, time.UTC, 12)

	assert.Equal(t, time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC), deadline)
}

func TestNextQuotaResetAfterTodayReset(t *testing.T) {
	now := time.Date(2026, 3, 5, 14, 0, 0, 0, time.UTC)
	deadline := nextQuotaReset(now, time.UTC, 12)

	assert.Equal(t, time.Date(2026, 3, 6, 12, 0, 0, 0, time.UTC), deadline)
}

func TestNextQuotaResetExactlyAtResetHour(t *testing.T) {
	now := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	deadline := nextQuotaReset(now, time.UTC, 12)

	assert.Equal(t, time.Date(2026, 3, 6, 12, 0, 0, 0, time.UTC), deadline)
}

func TestLoadTimezoneUnknownFallsBackToUTC(t *testing.T) {
	var gotErr error

	loc := loadTimezone("Not/ARealZone", func(_ string, err error) { gotErr = err })

	assert.Equal(t, time.UTC, loc)
	assert.Error(t, gotErr)
}

func TestLoadTimezoneKnown(t *testing.T) {
	loc := loadTimezone("America/Los_Angeles", nil)
	assert.Equal(t, "America/Los_Angeles", loc.String())
}
