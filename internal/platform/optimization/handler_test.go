package optimization

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type tuningResponse struct {
	Profile   string `json:"profile"`
	Suggested Config `json:"suggested"`
}

func getTuning(t *testing.T, target string) (*httptest.ResponseRecorder, tuningResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	Handler()(w, req)

	var resp tuningResponse
	if w.Code == http.StatusOK {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("response is not valid JSON: %v", err)
		}
	}
	return w, resp
}

func TestHandlerProfiles(t *testing.T) {
	cases := []struct {
		target    string
		profile   string
		poolSlots int
	}{
		{"/api/tuning", "default", DefaultConfig().PoolSlots},
		{"/api/tuning?profile=default", "default", DefaultConfig().PoolSlots},
		{"/api/tuning?profile=stress", "stress", StressTestConfig().PoolSlots},
		{"/api/tuning?profile=low", "low", LowResourceConfig().PoolSlots},
	}
	for _, c := range cases {
		w, resp := getTuning(t, c.target)
		if w.Code != http.StatusOK {
			t.Errorf("%s: status %d, want 200", c.target, w.Code)
			continue
		}
		if resp.Profile != c.profile {
			t.Errorf("%s: profile %q, want %q", c.target, resp.Profile, c.profile)
		}
		// Base profile pool sizes differ, so a wrong base is visible even
		// when live metrics add recommendations on top.
		if resp.Suggested.PoolSlots < c.poolSlots {
			t.Errorf("%s: suggested pool slots %d, want >= %d", c.target, resp.Suggested.PoolSlots, c.poolSlots)
		}
	}
}

func TestHandlerRejectsUnknownProfile(t *testing.T) {
	w, _ := getTuning(t, "/api/tuning?profile=warp")
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown profile status = %d, want 400", w.Code)
	}
}

func TestHandlerRejectsNonGet(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/tuning", nil)
	w := httptest.NewRecorder()
	Handler()(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want 405", w.Code)
	}
}

func TestAnalyzeFlagsPoolExhaustion(t *testing.T) {
	rec := Analyze(map[string]interface{}{
		"pool": map[string]interface{}{
			"exhausted": int64(3),
		},
	})
	if !rec.IncreasePoolSlots {
		t.Error("pool exhaustion did not recommend more slots")
	}

	before := DefaultConfig().PoolSlots
	tuned := ApplyRecommendations(DefaultConfig(), rec)
	if tuned.PoolSlots != before+1 {
		t.Errorf("tuned pool slots = %d, want %d", tuned.PoolSlots, before+1)
	}
}
