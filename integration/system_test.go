//go:build integration
// +build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"testing"
	"time"
)

var baseURL = getenv("E2E_BASE_URL", "http://localhost:8080")

type cartBody struct {
	SessionID string `json:"session_id"`
	LineCount int    `json:"line_count"`
	Quantity  int    `json:"quantity"`
}

func TestSystem_E2E_BrowseAndCart(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	waitReady(t, ctx, baseURL+"/readyz")

	var page struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
		TotalCount int `json:"total_count"`
	}
	doJSON(t, http.MethodGet, baseURL+"/products?sort=price_asc&page=1", nil, &page, 200)
	if len(page.Items) == 0 {
		t.Fatalf("expected non-empty catalog page")
	}
	pid := page.Items[0].ID

	doJSON(t, http.MethodGet, baseURL+"/products?sort=cheapest", nil, nil, 400)

	var sess cartBody
	doJSON(t, http.MethodPost, baseURL+"/sessions", nil, &sess, 201)
	if sess.SessionID == "" {
		t.Fatalf("session id missing")
	}
	cartURL := baseURL + "/sessions/" + sess.SessionID + "/cart"

	var c cartBody
	doJSON(t, http.MethodPost, cartURL+"/items", map[string]any{"product_id": pid}, &c, 200)
	doJSON(t, http.MethodPost, cartURL+"/items", map[string]any{"product_id": pid}, &c, 200)
	if c.LineCount != 1 || c.Quantity != 2 {
		t.Fatalf("merge on add: line_count=%d quantity=%d", c.LineCount, c.Quantity)
	}

	if os.Getenv("E2E_RESTART") == "1" {
		restartStorefrontContainer(t, ctx)
		waitReady(t, ctx, baseURL+"/readyz")

		var restored cartBody
		doJSON(t, http.MethodGet, cartURL, nil, &restored, 200)
		if restored.LineCount != 1 || restored.Quantity != 2 {
			t.Fatalf("cart not restored: %+v", restored)
		}
	}

	doJSON(t, http.MethodDelete, cartURL, nil, &c, 200)
	if c.LineCount != 0 {
		t.Fatalf("cart not cleared: %+v", c)
	}
}

func waitReady(t *testing.T, ctx context.Context, url string) {
	t.Helper()
	client := &http.Client{Timeout: 2 * time.Second}

	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		resp, err := client.Do(req)
		if err == nil && resp != nil && resp.StatusCode == 200 {
			_ = resp.Body.Close()
			return
		}
		if resp != nil {
			_ = resp.Body.Close()
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("service not ready: %s", url)
}

func doJSON(t *testing.T, method, url string, body any, out any, want int) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		t.Fatalf("%s %s: status=%d want=%d", method, url, resp.StatusCode, want)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
