package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"nephro-assistant/pkg"
)

const googleDefaultURL = "https://www.googleapis.com/customsearch/v1"

// googleMaxResults is the per-request cap of the Custom Search API.
const googleMaxResults = 10

// GoogleProvider implements Provider using Google Custom Search API.
type GoogleProvider struct {
	httpClient *http.Client
	apiKey     string
	cx         string
	endpoint   string
}

// NewGoogleProvider creates a new Google Custom Search provider.
func NewGoogleProvider(apiKey, cx, endpoint string, client *http.Client) *GoogleProvider {
	if endpoint == "" {
		endpoint = googleDefaultURL
	}
	return &GoogleProvider{httpClient: client, apiKey: apiKey, cx: cx, endpoint: endpoint}
}

// Name returns the provider name.
func (p *GoogleProvider) Name() string { return ProviderGoogle }

// googleSearchItem represents a single item in the Google Custom Search response.
type googleSearchItem struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// googleSearchError represents an error response from Google Custom Search API.
type googleSearchError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type googleSearchResponse struct {
	Items []googleSearchItem `json:"items"`
	Error *googleSearchError `json:"error,omitempty"`
}

// Search performs a search using Google Custom Search API.
func (p *GoogleProvider) Search(ctx context.Context, query string, maxResults int) ([]pkg.WebResult, error) {
	num := maxResults
	if num <= 0 || num > googleMaxResults {
		num = googleMaxResults
	}
	params := url.Values{}
	params.Set("key", p.apiKey)
	params.Set("cx", p.cx)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(num))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google search request failed: %w", err)
	}
	defer resp.Body.Close()

	var parsed googleSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode google response (status %d): %w", resp.StatusCode, err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("google search error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google search returned status %d", resp.StatusCode)
	}

	results := make([]pkg.WebResult, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		results = append(results, pkg.WebResult{Title: item.Title, URL: item.Link, Snippet: item.Snippet})
	}
	return truncateResults(results, maxResults), nil
}
