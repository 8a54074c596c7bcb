package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTP reports healthy when a GET of URL answers with a 2xx status within
// Timeout. When ExpectField is set, the body must be a JSON object whose
// field equals Expect. The parsed body is returned in Detail so callers get
// typed payloads rather than scraping text.
type HTTP struct {
	URL         string
	ExpectField string
	Expect      string
	Timeout     time.Duration
}

func (p HTTP) Check(ctx context.Context) Result {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(cctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return unhealthy(map[string]any{"url": p.URL, "error": err.Error()})
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return unhealthy(map[string]any{"url": p.URL, "error": err.Error()})
	}
	defer func() { _ = resp.Body.Close() }()

	detail := map[string]any{"url": p.URL, "status_code": resp.StatusCode}
	// cap the body; health endpoints are small and this is called in a loop
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload map[string]any
	if json.Unmarshal(body, &payload) == nil {
		detail["body"] = payload
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return unhealthy(detail)
	}
	if p.ExpectField != "" {
		got, ok := payload[p.ExpectField]
		if !ok || fmt.Sprint(got) != p.Expect {
			detail["expect_field"] = p.ExpectField
			detail["expect"] = p.Expect
			return unhealthy(detail)
		}
	}
	return healthy(detail)
}

func (p HTTP) Describe() string { return "http:" + p.URL }
