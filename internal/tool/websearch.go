package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Strob0t/AgentCorp/internal/port/cache"
	"github.com/Strob0t/AgentCorp/internal/resilience"
)

const defaultSearchURL = "https://api.duckduckgo.com/"

// WebSearch queries the DuckDuckGo instant answer API. Results are cached so
// several agents researching the same topic do not repeat the request.
type WebSearch struct {
	BaseURL string
	Client  *http.Client
	Limiter *resilience.Limiter
	Cache   cache.Cache
	TTL     time.Duration
}

func (t *WebSearch) Name() string { return "web_search" }

func (t *WebSearch) Description() string {
	return "Search the web for a short factual summary of a topic."
}

func (t *WebSearch) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Search query",
			},
		},
		"required": []any{"query"},
	}
}

type instantAnswer struct {
	AbstractText  string `json:"AbstractText"`
	AbstractURL   string `json:"AbstractURL"`
	Answer        string `json:"Answer"`
	Definition    string `json:"Definition"`
	RelatedTopics []struct {
		Text string `json:"Text"`
	} `json:"RelatedTopics"`
}

func (t *WebSearch) Execute(ctx context.Context, args map[string]any) (string, error) {
	query := strings.TrimSpace(stringArg(args, "query"))
	if query == "" {
		return "", fmt.Errorf("web_search: empty query")
	}

	cacheKey := "websearch:" + strings.ToLower(query)
	if t.Cache != nil {
		if data, ok, err := t.Cache.Get(ctx, cacheKey); err == nil && ok {
			return string(data), nil
		}
	}

	if t.Limiter != nil {
		if err := t.Limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("web_search: %w", err)
		}
	}

	result, err := t.fetch(ctx, query)
	if err != nil {
		return "", err
	}

	if t.Cache != nil {
		ttl := t.TTL
		if ttl <= 0 {
			ttl = 5 * time.Minute
		}
		_ = t.Cache.Set(ctx, cacheKey, []byte(result), ttl)
	}
	return result, nil
}

func (t *WebSearch) fetch(ctx context.Context, query string) (string, error) {
	base := t.BaseURL
	if base == "" {
		base = defaultSearchURL
	}
	u := base + "?" + url.Values{
		"q":      {query},
		"format": {"json"},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("web_search: %w", err)
	}

	client := t.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("web_search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("web_search: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("web_search: %w", err)
	}

	var ia instantAnswer
	if err := json.Unmarshal(body, &ia); err != nil {
		return "", fmt.Errorf("web_search: decode: %w", err)
	}
	return formatAnswer(query, ia), nil
}

func formatAnswer(query string, ia instantAnswer) string {
	var b strings.Builder
	switch {
	case ia.Answer != "":
		b.WriteString(ia.Answer)
	case ia.AbstractText != "":
		b.WriteString(ia.AbstractText)
		if ia.AbstractURL != "" {
			b.WriteString("\nSource: " + ia.AbstractURL)
		}
	case ia.Definition != "":
		b.WriteString(ia.Definition)
	}

	related := 0
	for _, rt := range ia.RelatedTopics {
		if rt.Text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- " + rt.Text)
		related++
		if related == 3 {
			break
		}
	}

	if b.Len() == 0 {
		return fmt.Sprintf("No instant answer found for %q.", query)
	}
	return b.String()
}
