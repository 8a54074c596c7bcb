package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/loykin/healthgate"
)

// APIClient talks to a running healthgate daemon over its admin API.
type APIClient struct {
	baseURL string
	client  *http.Client
}

func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	if baseURL == "" {
		baseURL = "http://localhost:8080/api"
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &APIClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *APIClient) do(method, path string, out any) error {
	req, err := http.NewRequest(method, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if derr := json.NewDecoder(resp.Body).Decode(&apiErr); derr == nil && apiErr.Error != "" {
			return fmt.Errorf("API error: %s", apiErr.Error)
		}
		return fmt.Errorf("API error: unexpected status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Start starts a registered service and returns its resulting state.
func (c *APIClient) Start(name string) (healthgate.State, error) {
	var resp struct {
		State healthgate.State `json:"state"`
	}
	err := c.do(http.MethodPost, "/start?name="+url.QueryEscape(name), &resp)
	return resp.State, err
}

// Stop stops a service; wait overrides the descriptor's grace period.
func (c *APIClient) Stop(name string, wait time.Duration) (healthgate.State, error) {
	path := "/stop?name=" + url.QueryEscape(name)
	if wait > 0 {
		path += "&wait=" + wait.String()
	}
	var resp struct {
		State healthgate.State `json:"state"`
	}
	err := c.do(http.MethodPost, path, &resp)
	return resp.State, err
}

// Status returns one service's state; history > 0 also fetches journal events.
func (c *APIClient) Status(name string, history int) (healthgate.State, []healthgate.JournalEvent, error) {
	if history > 0 {
		var resp struct {
			State   healthgate.State         `json:"state"`
			History []healthgate.JournalEvent `json:"history"`
		}
		err := c.do(http.MethodGet, fmt.Sprintf("/status?name=%s&history=%d", url.QueryEscape(name), history), &resp)
		return resp.State, resp.History, err
	}
	var st healthgate.State
	err := c.do(http.MethodGet, "/status?name="+url.QueryEscape(name), &st)
	return st, nil, err
}

// StatusAll returns all service states in dependency order.
func (c *APIClient) StatusAll() ([]healthgate.State, error) {
	var sts []healthgate.State
	err := c.do(http.MethodGet, "/status", &sts)
	return sts, err
}

// Report returns the combined service and host-resource snapshot.
func (c *APIClient) Report() (healthgate.Snapshot, error) {
	var snap healthgate.Snapshot
	err := c.do(http.MethodGet, "/report", &snap)
	return snap, err
}
