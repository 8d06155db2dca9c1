package webtool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/quaneh2/research-agent/agent"
)

const braveSearchURL = "https://api.search.brave.com/res/v1/web/search"

const maxSearchResults = 10

// SearchClient executes web_search against the Brave Search API.
type SearchClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewSearchClient creates a SearchClient. The key may be empty; execution
// then fails with a descriptive error the model can react to.
func NewSearchClient(apiKey string) *SearchClient {
	return &SearchClient{
		apiKey:     apiKey,
		baseURL:    braveSearchURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

// Execute runs one search and formats the results for the model.
func (c *SearchClient) Execute(ctx context.Context, arguments json.RawMessage) (agent.ToolOutput, error) {
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(arguments, &args); err != nil {
		return agent.ToolOutput{}, fmt.Errorf("invalid arguments for web_search: %w", err)
	}
	if c.apiKey == "" {
		return agent.ToolOutput{}, fmt.Errorf("BRAVE_API_KEY not configured")
	}

	endpoint, err := url.Parse(c.baseURL)
	if err != nil {
		return agent.ToolOutput{}, fmt.Errorf("invalid search endpoint: %w", err)
	}
	params := url.Values{}
	params.Set("q", args.Query)
	params.Set("count", fmt.Sprint(maxSearchResults))
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return agent.ToolOutput{}, err
	}
	req.Header.Set("X-Subscription-Token", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return agent.ToolOutput{}, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return agent.ToolOutput{}, fmt.Errorf("search API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return agent.ToolOutput{}, fmt.Errorf("read search response: %w", err)
	}
	var parsed braveResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return agent.ToolOutput{}, fmt.Errorf("decode search response: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Search results for %q:\n\n", args.Query)
	if len(parsed.Web.Results) == 0 {
		sb.WriteString("No results found.\n")
	}
	for i, result := range parsed.Web.Results {
		if i >= maxSearchResults {
			break
		}
		title := result.Title
		if title == "" {
			title = "No title"
		}
		fmt.Fprintf(&sb, "%d. %s\n   URL: %s\n   %s\n\n", i+1, title, result.URL, result.Description)
	}

	return agent.ToolOutput{Content: sb.String()}, nil
}
