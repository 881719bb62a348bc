package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// AlertClient pushes tagged payloads to the external alert sink. The
// short timeout bounds how long a slow sink can hold up the stream; the
// caller treats any failure as non-blocking telemetry loss.
type AlertClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAlertClient builds a client for the sink at baseURL.
func NewAlertClient(baseURL string) *AlertClient {
	return &AlertClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

type broadcast struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

// Send posts one tagged payload to the sink's broadcast endpoint.
func (c *AlertClient) Send(ctx context.Context, kind string, payload map[string]any) error {
	body, err := json.Marshal(broadcast{Type: kind, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal broadcast: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/broadcast-event", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build broadcast request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post broadcast: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("broadcast rejected: %s", resp.Status)
	}
	return nil
}
