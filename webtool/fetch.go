package webtool

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/quaneh2/research-agent/agent"
)

// maxFetchChars caps page text sent back to the model.
const maxFetchChars = 8000

const fetchUserAgent = "Mozilla/5.0 (Research Bot)"

// skippedElements are stripped before text extraction.
var skippedElements = map[string]bool{
	"script": true, "style": true, "nav": true,
	"footer": true, "header": true, "head": true,
	"noscript": true,
}

// Fetcher executes web_fetch: it retrieves a page and extracts its visible
// text for the model.
type Fetcher struct {
	httpClient *http.Client
}

// NewFetcher creates a Fetcher with a bounded request timeout.
func NewFetcher() *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Execute fetches one URL. The URL is recorded as a source on success.
func (f *Fetcher) Execute(ctx context.Context, arguments json.RawMessage) (agent.ToolOutput, error) {
	var args struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(arguments, &args); err != nil {
		return agent.ToolOutput{}, fmt.Errorf("invalid arguments for web_fetch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, args.URL, nil)
	if err != nil {
		return agent.ToolOutput{}, fmt.Errorf("invalid URL %q: %w", args.URL, err)
	}
	req.Header.Set("User-Agent", fetchUserAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return agent.ToolOutput{}, fmt.Errorf("fetching %s: %w", args.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return agent.ToolOutput{}, fmt.Errorf("HTTP %d error fetching %s", resp.StatusCode, args.URL)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return agent.ToolOutput{}, fmt.Errorf("parsing %s: %w", args.URL, err)
	}

	text := extractText(doc)
	if len(text) > maxFetchChars {
		text = text[:maxFetchChars] + "\n\n[Content truncated...]"
	}

	return agent.ToolOutput{
		Content: fmt.Sprintf("Content from %s:\n\n%s", args.URL, text),
		Sources: []string{args.URL},
	}, nil
}

// extractText walks the parsed document collecting visible text, skipping
// chrome elements, and normalizing whitespace to one line per text chunk.
func extractText(doc *html.Node) string {
	var chunks []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skippedElements[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			for _, line := range strings.Split(n.Data, "\n") {
				if trimmed := strings.TrimSpace(line); trimmed != "" {
					chunks = append(chunks, trimmed)
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return strings.Join(chunks, "\n")
}
