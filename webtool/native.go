package webtool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/quaneh2/research-agent/agent"
)

const (
	anthropicMessagesURL = "https://api.anthropic.com/v1/messages"
	anthropicVersion     = "2023-06-01"

	nativeSearchToolType = "web_search_20250305"
	nativeFetchToolType  = "web_fetch_20250305"
)

// NativeTools delegates web_search and web_fetch to Anthropic's server-side
// tools. Each execution is a one-shot Messages API request whose tool runs
// on the provider's side; the loop still controls when that happens.
type NativeTools struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewNativeTools creates a NativeTools executor set.
func NewNativeTools(apiKey, model string) *NativeTools {
	return &NativeTools{
		apiKey:     apiKey,
		model:      model,
		baseURL:    anthropicMessagesURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type nativeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	Tools     []nativeTool    `json:"tools"`
	Messages  []nativeMessage `json:"messages"`
}

type nativeTool struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type nativeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type nativeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text,omitempty"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// ExecuteSearch runs web_search through the provider.
func (n *NativeTools) ExecuteSearch(ctx context.Context, arguments json.RawMessage) (agent.ToolOutput, error) {
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(arguments, &args); err != nil {
		return agent.ToolOutput{}, fmt.Errorf("invalid arguments for web_search: %w", err)
	}

	text, err := n.invoke(ctx, nativeSearchToolType, "web_search", "Search for: "+args.Query, 2000)
	if err != nil {
		return agent.ToolOutput{}, err
	}
	return agent.ToolOutput{Content: text}, nil
}

// ExecuteFetch runs web_fetch through the provider. The URL is recorded as
// a source on success.
func (n *NativeTools) ExecuteFetch(ctx context.Context, arguments json.RawMessage) (agent.ToolOutput, error) {
	var args struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(arguments, &args); err != nil {
		return agent.ToolOutput{}, fmt.Errorf("invalid arguments for web_fetch: %w", err)
	}

	text, err := n.invoke(ctx, nativeFetchToolType, "web_fetch", "Fetch content from: "+args.URL, 4000)
	if err != nil {
		return agent.ToolOutput{}, err
	}
	return agent.ToolOutput{Content: text, Sources: []string{args.URL}}, nil
}

func (n *NativeTools) invoke(ctx context.Context, toolType, toolName, prompt string, maxTokens int) (string, error) {
	payload, err := json.Marshal(nativeRequest{
		Model:     n.model,
		MaxTokens: maxTokens,
		Tools:     []nativeTool{{Type: toolType, Name: toolName}},
		Messages:  []nativeMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal %s request: %w", toolName, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", n.apiKey)
	req.Header.Set("Anthropic-Version", anthropicVersion)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s request failed: %w", toolName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read %s response: %w", toolName, err)
	}

	var parsed nativeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode %s response: %w", toolName, err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			return "", fmt.Errorf("%s API error: %s", toolName, parsed.Error.Message)
		}
		return "", fmt.Errorf("%s API returned status %d", toolName, resp.StatusCode)
	}

	var sb strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}
