package keyregistry

import (
	"time"
)

// nextQuotaReset computes the next daily wall-clock reset instant for a
// per-model quota, returned in UTC. Grounded on the original Python
// implementation's mark_key_model_as_cooling: upstream per-model limits reset
// on a fixed local hour rather than a rolling window, so the deadline is
// "today at H:00 in tz" unless that has already passed, in which case it's
// tomorrow at H:00.
func nextQuotaReset(now time.Time, tz *time.Location, resetHour int) time.Time {
	local := now.In(tz)
	todayReset := time.Date(local.Year(), local.Month(), local.Day(), resetHour, 0, 0, 0, tz)

	if !local.Before(todayReset) {
		todayReset = todayReset.AddDate(0, 0, 1)
	}

	return todayReset.UTC()
}

// loadTimezone resolves a timezone name, falling back to UTC and a logged
// warning (via the supplied fallback function) on an unknown name — mirroring
// Python's pytz.UnknownTimeZoneError handling.
func loadTimezone(name string, onUnknown func(name string, err error)) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		if onUnknown != nil {
			onUnknown(name, err)
		}

		return time.UTC
	}

	return loc
}
