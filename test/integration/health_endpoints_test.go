package integration

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestHealthEndpoints(t *testing.T) {
	baseURL, client, _, closeFn := newAuthTestServer(t)
	defer closeFn()

	for _, path := range []string{"/health/live", "/health/ready"} {
		resp, env := doJSON(t, client, http.MethodGet, baseURL+path, nil, nil)
		if resp.StatusCode != http.StatusOK || !env.Success {
			t.Fatalf("%s failed: status=%d success=%v", path, resp.StatusCode, env.Success)
		}
		var data map[string]any
		if err := json.Unmarshal(env.Data, &data); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
		if got, _ := data["status"].(string); got != "ok" {
			t.Fatalf("%s: expected status=ok, got %+v", path, data)
		}
	}
}

func TestSecurityHeadersOnEveryResponse(t *testing.T) {
	baseURL, client, _, closeFn := newAuthTestServer(t)
	defer closeFn()

	resp, _ := doJSON(t, client, http.MethodGet, baseURL+"/health/live", nil, nil)
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("missing nosniff header, got %q", got)
	}
	if got := resp.Header.Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("missing frame options header, got %q", got)
	}
}
