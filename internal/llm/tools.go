// internal/llm/tools.go
package llm

import (
	"alcyxob/coach-ai/internal/domain"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"

	openai "github.com/sashabaranov/go-openai"
)

// Tool is one server-side executable function exposed to the model. Each
// tool owns a concrete parameter schema and a typed Run implementation; the
// model only ever sees the JSON surface.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON schema
	Run         func(ctx context.Context, args json.RawMessage) (any, error)
}

// ToolResult is the tagged envelope a tool execution produces. Tool failures
// are payloads, not aborts: the conversation continues with OK=false.
type ToolResult struct {
	Tool  string `json:"tool"`
	OK    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// Registry is a fixed tool catalogue for one conversational surface.
type Registry struct {
	tools  []Tool
	byName map[string]Tool
}

// NewRegistry builds a registry from a tool list.
func NewRegistry(tools ...Tool) *Registry {
	byName := make(map[string]Tool, len(tools))
	for _, t := range tools {
		byName[t.Name] = t
	}
	return &Registry{tools: tools, byName: byName}
}

// openAITools converts the catalogue to the wire format.
func (r *Registry) openAITools() []openai.Tool {
	out := make([]openai.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

// Execute runs a named tool, converting any failure (unknown tool, execution
// error) into an error-flagged result payload.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) ToolResult {
	tool, ok := r.byName[name]
	if !ok {
		return ToolResult{Tool: name, OK: false, Error: fmt.Sprintf("unknown tool %q", name)}
	}
	data, err := tool.Run(ctx, args)
	if err != nil {
		log.Printf("WARN: tool %s failed: %v", name, err)
		return ToolResult{Tool: name, OK: false, Error: err.Error()}
	}
	return ToolResult{Tool: name, OK: true, Data: data}
}

// Message is one prior conversation turn fed into a tool run.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// ToolRunRequest describes a tool-augmented multi-turn conversation.
type ToolRunRequest struct {
	System    string
	Messages  []Message
	Registry  *Registry
	MaxRounds int // hard bound on tool rounds; guarantees termination
}

// ToolEventType tags incremental events emitted during a tool run.
type ToolEventType string

const (
	EventDelta      ToolEventType = "delta"
	EventToolStart  ToolEventType = "tool_start"
	EventToolResult ToolEventType = "tool_result"
)

// ToolEvent is one incremental event from a tool run.
type ToolEvent struct {
	Type   ToolEventType
	Delta  string
	Tool   string
	Result *ToolResult
}

// ToolRunResult is the final outcome of a tool run.
type ToolRunResult struct {
	Content string
	Usage   domain.TokenUsage
	Rounds  int
}

// RunTools implements Completer. Each round streams the model's reply,
// emitting text deltas as they arrive and accumulating any tool-call
// fragments. Requested tools are executed server-side and their results fed
// back; the loop ends when the model stops requesting tools or the round
// budget is exhausted.
func (c *Client) RunTools(ctx context.Context, req ToolRunRequest, onEvent func(ToolEvent)) (*ToolRunResult, error) {
	if req.Registry == nil {
		return nil, errors.New("tool registry is required")
	}
	maxRounds := req.MaxRounds
	if maxRounds <= 0 {
		maxRounds = 6
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: req.System},
	}
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	result := &ToolRunResult{}
	wireTools := req.Registry.openAITools()

	for round := 0; round < maxRounds; round++ {
		result.Rounds = round + 1

		content, toolCalls, usage, err := c.streamRound(ctx, messages, wireTools, onEvent)
		if err != nil {
			return nil, err
		}
		result.Usage.Add(usage)
		result.Content += content

		if len(toolCalls) == 0 {
			return result, nil
		}

		messages = append(messages, openai.ChatCompletionMessage{
			Role:      openai.ChatMessageRoleAssistant,
			Content:   content,
			ToolCalls: toolCalls,
		})

		for _, call := range toolCalls {
			onEvent(ToolEvent{Type: EventToolStart, Tool: call.Function.Name})

			toolResult := req.Registry.Execute(ctx, call.Function.Name, json.RawMessage(call.Function.Arguments))
			onEvent(ToolEvent{Type: EventToolResult, Tool: call.Function.Name, Result: &toolResult})

			payload, err := json.Marshal(toolResult)
			if err != nil {
				payload = []byte(`{"ok":false,"error":"failed to encode tool result"}`)
			}
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: call.ID,
				Name:       call.Function.Name,
				Content:    string(payload),
			})
		}
	}

	// Round budget exhausted while the model still wants tools; return what
	// accumulated so the caller can surface a usable answer.
	return result, nil
}

// streamRound makes one streaming call, forwarding content deltas and
// reassembling tool-call fragments by index.
func (c *Client) streamRound(ctx context.Context, messages []openai.ChatCompletionMessage, wireTools []openai.Tool, onEvent func(ToolEvent)) (string, []openai.ToolCall, domain.TokenUsage, error) {
	req := openai.ChatCompletionRequest{
		Model:         c.model,
		Messages:      messages,
		Tools:         wireTools,
		Stream:        true,
		StreamOptions: &openai.StreamOptions{IncludeUsage: true},
	}

	var (
		content string
		usage   domain.TokenUsage
		calls   []openai.ToolCall
	)

	err := c.withRetry(ctx, func() error {
		stream, err := c.api.CreateChatCompletionStream(ctx, req)
		if err != nil {
			return err
		}
		defer stream.Close()

		content = ""
		calls = nil

		for {
			resp, recvErr := stream.Recv()
			if errors.Is(recvErr, io.EOF) {
				return nil
			}
			if recvErr != nil {
				return recvErr
			}
			if resp.Usage != nil {
				usage = usageOf(*resp.Usage)
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta
			if delta.Content != "" {
				content += delta.Content
				onEvent(ToolEvent{Type: EventDelta, Delta: delta.Content})
			}
			for _, fragment := range delta.ToolCalls {
				idx := 0
				if fragment.Index != nil {
					idx = *fragment.Index
				}
				for len(calls) <= idx {
					calls = append(calls, openai.ToolCall{Type: openai.ToolTypeFunction})
				}
				if fragment.ID != "" {
					calls[idx].ID = fragment.ID
				}
				if fragment.Function.Name != "" {
					calls[idx].Function.Name = fragment.Function.Name
				}
				calls[idx].Function.Arguments += fragment.Function.Arguments
			}
		}
	})
	if err != nil {
		return "", nil, usage, err
	}
	return content, calls, usage, nil
}
