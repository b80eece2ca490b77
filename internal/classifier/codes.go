package classifier

import (
	"regexp"
	"strconv"
	"strings"
)

var statusCodePattern = regexp.MustCompile(`status code (\d+)`)

// substringFallbackOrder is the priority order used to recover a status code
// from an opaque error string when no "status code N" literal is present,
// matching the original error_processor.py extraction order exactly.
var substringFallbackOrder = []string{
	"429", "401", "403", "400", "404", "422", "500", "502", "504", "503", "408",
}

// extractCode recovers an HTTP-ish status code from err. A collab.StatusCoder
// implementation is tried first (the structured path for a strongly-typed
// rewrite); failing that, the literal "status code N"
// substring is tried; failing that, a fixed-priority list of bare status
// substrings is probed. Returns ok=false if no code could be recovered.
func extractCode(err error) (code int, ok bool) {
	if err == nil {
		return 0, false
	}

	if sc, implements := err.(interface{ StatusCode() (int, bool) }); implements {
		if c, has := sc.StatusCode(); has {
			return c, true
		}
	}

	msg := err.Error()

	if m := statusCodePattern.FindStringSubmatch(msg); m != nil {
		if n, convErr := strconv.Atoi(m[1]); convErr == nil {
			return n, true
		}
	}

	for _, candidate := range substringFallbackOrder {
		if strings.Contains(msg, candidate) {
			n, _ := strconv.Atoi(candidate)
			return n, true
		}
	}

	return 0, false
}
