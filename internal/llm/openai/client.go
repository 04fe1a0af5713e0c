package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	openailib "github.com/sashabaranov/go-openai"

	"github.com/sandboxy-go/sandboxy/internal/llm"
)

// Client implements llm.Provider using the OpenAI-compatible chat
// completions protocol, adapted from the teacher's
// internal/llm/openai/client.go — the retry-with-backoff loop and
// stream-assembly logic are kept nearly verbatim; the thinking-mode and
// FC/YAML auto-switching are dropped since a reference agent always
// calls through CallLLMWithTools.
type Client struct {
	client *openailib.Client
	config *Config
}

// NewClient creates a new OpenAI-compatible client.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	clientConfig := openailib.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	httpTimeout := time.Duration(config.HTTPTimeout) * time.Second
	clientConfig.HTTPClient = &http.Client{Timeout: httpTimeout}

	return &Client{
		client: openailib.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// NewClientFromEnv creates a client using environment variables.
func NewClientFromEnv() (*Client, error) {
	config, err := NewConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}
	return NewClient(config)
}

func toOpenAIMessages(messages []llm.Message) []openailib.ChatCompletionMessage {
	out := make([]openailib.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		out[i] = openailib.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
		if msg.Role == llm.RoleTool && msg.ToolCallID != "" {
			out[i].ToolCallID = msg.ToolCallID
			out[i].Name = msg.Name
		}
		if msg.Role == llm.RoleAssistant && len(msg.ToolCalls) > 0 {
			tcs := make([]openailib.ToolCall, len(msg.ToolCalls))
			for j, tc := range msg.ToolCalls {
				tcs[j] = openailib.ToolCall{
					ID:   tc.ID,
					Type: openailib.ToolTypeFunction,
					Function: openailib.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				}
			}
			out[i].ToolCalls = tcs
		}
	}
	return out
}

// CallLLM sends messages to the LLM and returns the complete response.
func (c *Client) CallLLM(ctx context.Context, messages []llm.Message) (llm.Message, error) {
	if len(messages) == 0 {
		return llm.Message{}, fmt.Errorf("no messages to send")
	}

	req := openailib.ChatCompletionRequest{
		Model:    c.config.Model,
		Messages: toOpenAIMessages(messages),
	}
	if c.config.Temperature != nil {
		req.Temperature = *c.config.Temperature
	}
	if c.config.MaxTokens > 0 {
		req.MaxTokens = c.config.MaxTokens
	}

	resp, err := c.createWithRetry(ctx, req)
	if err != nil {
		return llm.Message{}, err
	}
	return llm.Message{Role: llm.RoleAssistant, Content: resp.Choices[0].Message.Content}, nil
}

// CallLLMStream sends messages and streams the response token-by-token,
// falling back to CallLLM if no callback is supplied or stream creation
// fails.
func (c *Client) CallLLMStream(ctx context.Context, messages []llm.Message, onChunk llm.StreamCallback) (llm.Message, error) {
	if onChunk == nil {
		return c.CallLLM(ctx, messages)
	}
	if len(messages) == 0 {
		return llm.Message{}, fmt.Errorf("no messages to send")
	}

	req := openailib.ChatCompletionRequest{
		Model:    c.config.Model,
		Messages: toOpenAIMessages(messages),
		Stream:   true,
	}
	if c.config.Temperature != nil {
		req.Temperature = *c.config.Temperature
	}
	if c.config.MaxTokens > 0 {
		req.MaxTokens = c.config.MaxTokens
	}

	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		log.Printf("[LLM] stream creation failed, falling back to sync: %v", err)
		return c.CallLLM(ctx, messages)
	}
	defer stream.Close()

	var sb strings.Builder
	for {
		chunkResp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if sb.Len() > 0 {
				log.Printf("[LLM] stream interrupted after %d chars: %v", sb.Len(), err)
				break
			}
			return llm.Message{}, fmt.Errorf("stream recv error: %w", err)
		}
		if len(chunkResp.Choices) > 0 {
			if delta := chunkResp.Choices[0].Delta.Content; delta != "" {
				sb.WriteString(delta)
				onChunk(delta)
			}
		}
	}

	return llm.Message{Role: llm.RoleAssistant, Content: sb.String()}, nil
}

// CallLLMWithTools sends messages with tool definitions for Function
// Calling. The model may return tool_calls or direct text.
func (c *Client) CallLLMWithTools(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition) (llm.Message, error) {
	if len(messages) == 0 {
		return llm.Message{}, fmt.Errorf("no messages to send")
	}

	openaiTools := make([]openailib.Tool, len(tools))
	for i, t := range tools {
		openaiTools[i] = openailib.Tool{
			Type: openailib.ToolTypeFunction,
			Function: &openailib.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}

	req := openailib.ChatCompletionRequest{
		Model:    c.config.Model,
		Messages: toOpenAIMessages(messages),
		Tools:    openaiTools,
	}
	if c.config.Temperature != nil {
		req.Temperature = *c.config.Temperature
	}
	if c.config.MaxTokens > 0 {
		req.MaxTokens = c.config.MaxTokens
	}

	resp, err := c.createWithRetry(ctx, req)
	if err != nil {
		return llm.Message{}, err
	}

	choice := resp.Choices[0].Message
	result := llm.Message{Role: llm.RoleAssistant, Content: choice.Content}
	if len(choice.ToolCalls) > 0 {
		result.ToolCalls = make([]llm.ToolCall, len(choice.ToolCalls))
		for i, tc := range choice.ToolCalls {
			result.ToolCalls[i] = llm.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: json.RawMessage(tc.Function.Arguments),
			}
		}
	}
	return result, nil
}

// createWithRetry executes req, retrying any error up to
// config.MaxRetries times with linear backoff.
func (c *Client) createWithRetry(ctx context.Context, req openailib.ChatCompletionRequest) (openailib.ChatCompletionResponse, error) {
	var resp openailib.ChatCompletionResponse
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		resp, lastErr = c.client.CreateChatCompletion(ctx, req)
		if lastErr == nil {
			break
		}
		if attempt < c.config.MaxRetries {
			wait := time.Duration(attempt+1) * time.Second
			log.Printf("[LLM] retry %d/%d after %v, error: %v", attempt+1, c.config.MaxRetries, wait, lastErr)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return resp, ctx.Err()
			}
		}
	}
	if lastErr != nil {
		return resp, fmt.Errorf("LLM call failed after %d retries: %w", c.config.MaxRetries, lastErr)
	}
	if len(resp.Choices) == 0 {
		return resp, fmt.Errorf("no choices returned from LLM")
	}
	return resp, nil
}

// GetName returns the provider name.
func (c *Client) GetName() string {
	return fmt.Sprintf("openai-compatible (%s)", c.config.Model)
}
