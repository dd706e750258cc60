// Package complaint talks to the complaint backend: submitting finalized
// reports and looking up their status by tracking ID.
package complaint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/user/certassist/internal/gateway"
	"github.com/user/certassist/internal/report"
)

// Ack is the backend's answer to a submission.
type Ack struct {
	TrackingID string `json:"complaintId"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

// StatusResult is the backend's answer to a status lookup.
type StatusResult struct {
	TrackingID string `json:"complaintId"`
	Status     string `json:"status"`
}

// Client posts complaint payloads to the backend endpoint. Unlike the
// model gateway, submissions retry on transient failures.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      *gateway.RetryPolicy
}

// New creates a complaint client for the given base URL, e.g.
// "http://localhost:3000/api/complaint".
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		retry: gateway.DefaultRetryPolicy(),
	}
}

// Submit posts a finalized report payload and returns the backend's
// acknowledgement.
func (c *Client) Submit(ctx context.Context, payload report.Payload) (*Ack, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal complaint: %w", err)
	}

	var ack Ack
	err = c.retry.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		}

		if err := json.Unmarshal(respBody, &ack); err != nil {
			return fmt.Errorf("parsing response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Backends without IDs still get a usable acknowledgement.
	if ack.TrackingID == "" {
		ack.TrackingID = fmt.Sprintf("COM-%d", time.Now().UnixMilli())
	}
	if ack.Message == "" {
		ack.Message = "Complaint submitted successfully."
	}
	return &ack, nil
}

// Status fetches the current status for a tracking ID. Lookups are a
// single attempt: a stale answer is worthless and the poller will come
// back anyway.
func (c *Client) Status(ctx context.Context, trackingID string) (*StatusResult, error) {
	if strings.TrimSpace(trackingID) == "" {
		return nil, fmt.Errorf("empty tracking ID")
	}

	endpoint := c.baseURL + "/" + url.PathEscape(strings.TrimSpace(trackingID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	result := StatusResult{TrackingID: trackingID}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	if result.Status == "" {
		result.Status = "Unknown"
	}
	return &result, nil
}
