package clock

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// DefaultTimeAPIURL is the authoritative time endpoint used when none is
// configured.
const DefaultTimeAPIURL = "https://worldtimeapi.org/api/timezone/Etc/UTC"

// HTTPTimeFetcher implements TimeFetcher against a worldtimeapi-compatible
// JSON endpoint exposing a "unixtime" field in seconds.
type HTTPTimeFetcher struct {
	url    string
	client *http.Client
}

// NewHTTPTimeFetcher creates a fetcher for the given endpoint URL. An empty
// URL selects DefaultTimeAPIURL.
func NewHTTPTimeFetcher(url string) *HTTPTimeFetcher {
	if url == "" {
		url = DefaultTimeAPIURL
	}
	return &HTTPTimeFetcher{
		url:    url,
		client: &http.Client{Timeout: fetchTimeout},
	}
}

// FetchAuthoritativeTime fetches the current epoch-millisecond time.
func (f *HTTPTimeFetcher) FetchAuthoritativeTime(ctx context.Context) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build time request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("time fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("time fetch returned status %d", resp.StatusCode)
	}

	var payload struct {
		UnixTime int64 `json:"unixtime"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("failed to decode time response: %w", err)
	}
	if payload.UnixTime <= 0 {
		return 0, fmt.Errorf("time response missing unixtime")
	}

	ms := payload.UnixTime * int64(time.Second/time.Millisecond)
	slog.Debug("HTTPTimeFetcher fetched authoritative time", "unixtime", payload.UnixTime)
	return ms, nil
}
