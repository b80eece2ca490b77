// Package statussrv exposes the read-only observability surface: key status
// by validity, valid-pool statistics, and the scheduled verifier's last-run
// summary, as a small JSON HTTP handler served by `keygated serve` (the
// `status` CLI subcommand only probes its /health endpoint). Grounded on the reference service's internal/proxy route
// registration style (a plain http.ServeMux, one handler per concern) but
// scoped to a single read-only endpoint rather than the full
// request-forwarding surface.
package statussrv

import (
	"encoding/json"
	"net/http"

	"github.com/relaykeys/keygated/internal/validpool"
	"github.com/relaykeys/keygated/internal/verifier"
)

// Registry is the subset of keyregistry.Registry the handler needs.
type Registry interface {
	SnapshotByStatus() (valid, invalid map[string]int)
}

// Pool is the subset of validpool.Pool the handler needs.
type Pool interface {
	Stats() validpool.Stats
}

// Verifier is the subset of verifier.Verifier the handler needs.
type Verifier interface {
	LastStats() verifier.Stats
}

// Source supplies the live Registry/Pool/Verifier to read at request time,
// so the handler observes post-hot-reload state without being rebuilt
// itself.
type Source interface {
	Registry() Registry
	Pool() Pool
	Verifier() Verifier
}

// Response is the JSON body returned by Handler.
type Response struct {
	Keys     KeysStatus      `json:"keys"`
	Pool     validpool.Stats `json:"pool"`
	Verifier verifier.Stats  `json:"verifier"`
}

// KeysStatus reports per-key failure counters split by validity, matching
// keysByStatus() in the observability surface.
type KeysStatus struct {
	Valid   map[string]int `json:"valid"`
	Invalid map[string]int `json:"invalid"`
}

// Handler serves the observability surface as JSON on GET /status.
func Handler(src Source) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		valid, invalid := src.Registry().SnapshotByStatus()

		resp := Response{
			Keys:     KeysStatus{Valid: valid, Invalid: invalid},
			Pool:     src.Pool().Stats(),
			Verifier: src.Verifier().LastStats(),
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return mux
}
