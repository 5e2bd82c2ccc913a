package optimization

import (
	"encoding/json"
	"net/http"

	"github.com/waynr/wasm-renderer/internal/platform/metrics"
)

// Handler returns an HTTP handler for the /api/tuning endpoint. It analyzes
// the live metrics snapshot and reports recommended settings on top of the
// requested base profile (?profile=default|stress|low).
func Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		profile := r.URL.Query().Get("profile")
		base, ok := profileConfig(profile)
		if !ok {
			http.Error(w, "Unknown profile: "+profile, http.StatusBadRequest)
			return
		}

		rec := Analyze(metrics.Get().Snapshot())
		tuned := ApplyRecommendations(base, rec)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"profile":         profileName(profile),
			"recommendations": rec,
			"suggested":       tuned,
		})
	}
}

func profileConfig(name string) (*Config, bool) {
	switch name {
	case "", "default":
		return DefaultConfig(), true
	case "stress":
		return StressTestConfig(), true
	case "low":
		return LowResourceConfig(), true
	default:
		return nil, false
	}
}

func profileName(name string) string {
	if name == "" {
		return "default"
	}
	return name
}
