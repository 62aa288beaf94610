package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"apimapper/internal/mapping"
	"apimapper/internal/util"
)

// ComposePath is the route of the filter composition endpoint.
const ComposePath = "/api/v1/filters/compose"

// RemoteComposer composes filters by calling a compose endpoint.
type RemoteComposer struct {
	BaseURL string
	Client  *http.Client
}

// NewRemoteComposer returns a composer for the server at baseURL.
func NewRemoteComposer(baseURL string, client *http.Client) *RemoteComposer {
	if client == nil {
		client = http.DefaultClient
	}
	return &RemoteComposer{BaseURL: strings.TrimRight(baseURL, "/"), Client: client}
}

// ComposeFilter implements mapping.FilterComposer. An error payload from
// the endpoint is returned as an error.
func (c *RemoteComposer) ComposeFilter(ctx context.Context, req mapping.FilterRequest) (*mapping.FilterSubmission, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding filter request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+ComposePath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create compose request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("compose request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading compose response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var e ErrorResponse
		if json.Unmarshal(body, &e) == nil && e.Error {
			return nil, fmt.Errorf("compose endpoint: %s", e.Message)
		}
		return nil, fmt.Errorf("compose endpoint returned status %d: %s", resp.StatusCode, util.Snippet(body))
	}

	var sub mapping.FilterSubmission
	if err := json.Unmarshal(body, &sub); err != nil {
		return nil, fmt.Errorf("decoding compose response: %w. Body snippet: %s", err, util.Snippet(body))
	}
	return &sub, nil
}
