// Package websearch implements the live web search used by the clinical
// handler's blended path.
package websearch

import (
	"context"
	"fmt"
	"net/http"

	"nephro-assistant/pkg"
)

// Provider names accepted in configuration.
const (
	ProviderTavily = "tavily"
	ProviderGoogle = "google"
	ProviderNone   = "none"
)

// Provider defines the interface for web search backends.  Calls are
// single-attempt; an empty result set is not an error.
type Provider interface {
	// Name returns a human-readable name for the provider.
	Name() string
	// Search performs a web search and returns at most maxResults results.
	Search(ctx context.Context, query string, maxResults int) ([]pkg.WebResult, error)
}

// Config selects and configures a provider.
type Config struct {
	Provider string
	APIKey   string
	GoogleCX string
	// BaseURL overrides the provider endpoint; used in tests.
	BaseURL string
}

// New returns the configured provider, or nil for ProviderNone or an empty
// provider name.
func New(cfg Config, client *http.Client) (Provider, error) {
	if client == nil {
		client = http.DefaultClient
	}
	switch cfg.Provider {
	case "", ProviderNone:
		return nil, nil
	case ProviderTavily:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("web search: tavily requires an api key")
		}
		return NewTavilyProvider(cfg.APIKey, cfg.BaseURL, client), nil
	case ProviderGoogle:
		if cfg.APIKey == "" || cfg.GoogleCX == "" {
			return nil, fmt.Errorf("web search: google requires an api key and a search engine id")
		}
		return NewGoogleProvider(cfg.APIKey, cfg.GoogleCX, cfg.BaseURL, client), nil
	default:
		return nil, fmt.Errorf("web search: unknown provider %q", cfg.Provider)
	}
}

func truncateResults(results []pkg.WebResult, n int) []pkg.WebResult {
	if n > 0 && len(results) > n {
		return results[:n]
	}
	return results
}
