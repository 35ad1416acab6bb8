package service

import (
	"alcyxob/coach-ai/internal/domain"
	"alcyxob/coach-ai/internal/llm"
	"context"
	"encoding/json"
	"errors"
	"time"
)

// fakeCompleter replays scripted JSON responses in call order; the last
// response repeats once the script runs out.
type fakeCompleter struct {
	responses []string
	err       error

	calls int
	users []string
}

func (f *fakeCompleter) CompleteJSON(_ context.Context, _, user string, out any) (domain.TokenUsage, error) {
	f.users = append(f.users, user)
	if f.err != nil {
		return domain.TokenUsage{}, f.err
	}
	idx := f.calls
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	f.calls++
	if err := json.Unmarshal([]byte(f.responses[idx]), out); err != nil {
		return domain.TokenUsage{}, err
	}
	return domain.TokenUsage{PromptTokens: 7, CompletionTokens: 3, TotalTokens: 10}, nil
}

func (f *fakeCompleter) Stream(context.Context, string, string, func(string)) (domain.TokenUsage, error) {
	return domain.TokenUsage{}, errors.New("streaming not scripted")
}

func (f *fakeCompleter) RunTools(context.Context, llm.ToolRunRequest, func(llm.ToolEvent)) (*llm.ToolRunResult, error) {
	return nil, errors.New("tool runs not scripted")
}

// fakeEmbedder returns a fixed vector, optionally after a delay that honors
// context cancellation.
type fakeEmbedder struct {
	vec   []float32
	delay time.Duration
	err   error
}

func (f *fakeEmbedder) Embed(ctx context.Context, _ string) ([]float32, error) {
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}
