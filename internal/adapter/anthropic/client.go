// Package anthropic implements the llm.Provider port against the Anthropic
// Messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Strob0t/AgentCorp/internal/port/llm"
	"github.com/Strob0t/AgentCorp/internal/resilience"
)

const (
	apiVersion = "2023-06-01"
	maxTokens  = 8192
)

// Client is a Messages API client for one model.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	breaker    *resilience.Breaker
	limiter    *resilience.Limiter
}

// NewClient creates a provider for the given model.
func NewClient(baseURL, apiKey, model string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// SetBreaker attaches a circuit breaker to completion calls.
func (c *Client) SetBreaker(b *resilience.Breaker) { c.breaker = b }

// SetLimiter attaches a rate limiter to completion calls.
func (c *Client) SetLimiter(l *resilience.Limiter) { c.limiter = l }

// Model returns the model identifier used for cost attribution.
func (c *Client) Model() string { return c.model }

type messagesRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	System    string       `json:"system,omitempty"`
	Messages  []apiMessage `json:"messages"`
	Tools     []apiTool    `json:"tools,omitempty"`
}

type apiMessage struct {
	Role    string     `json:"role"`
	Content []apiBlock `json:"content"`
}

type apiBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`

	// tool_use
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`

	// tool_result
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
}

type apiTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type messagesResponse struct {
	Content []apiBlock `json:"content"`
	Usage   *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Complete sends the transcript and returns the model's next turn.
func (c *Client) Complete(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition) (*llm.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("anthropic rate limit: %w", err)
		}
	}

	req := encodeRequest(c.model, messages)
	for _, t := range tools {
		req.Tools = append(req.Tools, apiTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Parameters,
		})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic marshal request: %w", err)
	}

	var raw []byte
	call := func(ctx context.Context) error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-api-key", c.apiKey)
		httpReq.Header.Set("anthropic-version", apiVersion)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("anthropic API error %d: %s", resp.StatusCode, string(data))
		}
		raw = data
		return nil
	}

	if c.breaker != nil {
		err = c.breaker.Execute(ctx, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}

	var mr messagesResponse
	if err := json.Unmarshal(raw, &mr); err != nil {
		return nil, fmt.Errorf("anthropic unmarshal response: %w", err)
	}
	return decodeResponse(mr), nil
}

// encodeRequest maps the neutral transcript to the Messages API shape.
// System turns are hoisted to the top-level system field; tool-result turns
// become user messages with tool_result blocks.
func encodeRequest(model string, messages []llm.Message) messagesRequest {
	req := messagesRequest{Model: model, MaxTokens: maxTokens}
	var system []string

	for _, m := range messages {
		switch m.Role {
		case llm.RoleSystem:
			system = append(system, m.Content)

		case llm.RoleAssistant:
			blocks := []apiBlock{}
			if m.Content != "" {
				blocks = append(blocks, apiBlock{Type: "text", Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				input := tc.Arguments
				if input == nil {
					input = map[string]any{}
				}
				blocks = append(blocks, apiBlock{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Name,
					Input: input,
				})
			}
			req.Messages = append(req.Messages, apiMessage{Role: "assistant", Content: blocks})

		case llm.RoleTool:
			req.Messages = append(req.Messages, apiMessage{
				Role: "user",
				Content: []apiBlock{{
					Type:      "tool_result",
					ToolUseID: m.ToolCallID,
					Content:   m.Content,
				}},
			})

		default: // user
			req.Messages = append(req.Messages, apiMessage{
				Role:    "user",
				Content: []apiBlock{{Type: "text", Text: m.Content}},
			})
		}
	}

	req.System = strings.Join(system, "\n\n")
	return req
}

func decodeResponse(mr messagesResponse) *llm.Response {
	resp := &llm.Response{}
	var text []string

	for _, b := range mr.Content {
		switch b.Type {
		case "text":
			text = append(text, b.Text)
		case "tool_use":
			args := b.Input
			if args == nil {
				args = map[string]any{}
			}
			resp.ToolCalls = append(resp.ToolCalls, llm.ToolCall{
				ID:        b.ID,
				Name:      b.Name,
				Arguments: args,
			})
		}
	}
	resp.Content = strings.Join(text, "\n")

	if mr.Usage != nil {
		resp.Usage = &llm.Usage{
			TokensIn:  mr.Usage.InputTokens,
			TokensOut: mr.Usage.OutputTokens,
		}
	}
	return resp
}
