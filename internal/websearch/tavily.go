package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"nephro-assistant/pkg"
)

const tavilyDefaultURL = "https://api.tavily.com/search"

// TavilyProvider implements Provider using the Tavily search API.
type TavilyProvider struct {
	httpClient *http.Client
	apiKey     string
	endpoint   string
}

// NewTavilyProvider creates a Tavily provider.  An empty endpoint uses the
// public API.
func NewTavilyProvider(apiKey, endpoint string, client *http.Client) *TavilyProvider {
	if endpoint == "" {
		endpoint = tavilyDefaultURL
	}
	return &TavilyProvider{httpClient: client, apiKey: apiKey, endpoint: endpoint}
}

// Name returns the provider name.
func (p *TavilyProvider) Name() string { return ProviderTavily }

type tavilyRequest struct {
	Query             string `json:"query"`
	MaxResults        int    `json:"max_results"`
	IncludeAnswer     bool   `json:"include_answer"`
	IncludeImages     bool   `json:"include_images"`
	IncludeRawContent bool   `json:"include_raw_content"`
}

type tavilyResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

type tavilyResponse struct {
	Results []tavilyResult `json:"results"`
}

// Search performs a search using the Tavily API.
func (p *TavilyProvider) Search(ctx context.Context, query string, maxResults int) ([]pkg.WebResult, error) {
	body, err := json.Marshal(tavilyRequest{Query: query, MaxResults: maxResults})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("tavily returned status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var parsed tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode tavily response: %w", err)
	}

	results := make([]pkg.WebResult, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		results = append(results, pkg.WebResult{Title: r.Title, URL: r.URL, Snippet: r.Content})
	}
	return truncateResults(results, maxResults), nil
}
