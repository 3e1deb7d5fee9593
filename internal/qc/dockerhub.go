package qc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const DefaultTagsURL = "https://hub.docker.com/v2/namespaces/quantconnect/repositories/mcp-server/tags?page_size=2"

// ReleaseFeed reads published server image tags from Docker Hub.
type ReleaseFeed struct {
	URL        string
	HTTPClient *http.Client
}

func NewReleaseFeed() *ReleaseFeed {
	return &ReleaseFeed{URL: DefaultTagsURL, HTTPClient: &http.Client{Timeout: 10 * time.Second}}
}

type tagsResponse struct {
	Results []struct {
		Name string `json:"name"`
	} `json:"results"`
}

// Latest returns the newest versioned tag. The first entry of the feed is
// "latest", so the second one is preferred when present.
func (f *ReleaseFeed) Latest(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return "", &RequestError{Endpoint: f.URL, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &RequestError{Endpoint: f.URL, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &APIError{Endpoint: f.URL, StatusCode: resp.StatusCode, Detail: string(raw), Body: string(raw)}
	}

	var tags tagsResponse
	if err := json.Unmarshal(raw, &tags); err != nil {
		return "", nil
	}
	switch {
	case len(tags.Results) > 1:
		return tags.Results[1].Name, nil
	case len(tags.Results) == 1:
		return tags.Results[0].Name, nil
	}
	return "", nil
}
