package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"github.com/bio-nexus/backend/pkg/ai"
	"github.com/bio-nexus/backend/pkg/common"

	"github.com/ollama/ollama/api"
	"github.com/pkoukk/tiktoken-go"
)

const defaultContextTokens = 4096

// GenerateCompletion sends a single-turn prompt and returns assistant text.
func (c *OllamaClient) GenerateCompletion(
	ctx context.Context,
	prompt string,
	opts ...ai.GenerateOption,
) (string, error) {
	options := ai.ApplyOptions(ai.GenerateOptions{
		Model:       c.chatModel,
		Temperature: 0.3,
	}, opts...)

	msgs := buildMessages(options.SystemPrompts, []ai.ChatMessage{{Role: "user", Message: prompt}})
	return c.chat(ctx, "completion", options, msgs, nil)
}

// GenerateCompletionWithFormat enforces a JSON schema and unmarshals into out.
// Undecodable output is returned as *common.ParseError.
func (c *OllamaClient) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...ai.GenerateOption,
) error {
	if out == nil {
		return errors.New("out must be a non-nil pointer")
	}
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.New("out must be a non-nil pointer")
	}

	formatBytes, err := json.Marshal(ai.GenerateSchema(out))
	if err != nil {
		return err
	}

	options := ai.ApplyOptions(ai.GenerateOptions{
		Model:         c.extractModel,
		Temperature:   0.1,
		SystemPrompts: []string{description},
	}, opts...)

	msgs := buildMessages(options.SystemPrompts, []ai.ChatMessage{{Role: "user", Message: prompt}})
	content, err := c.chat(ctx, name, options, msgs, json.RawMessage(formatBytes))
	if err != nil {
		return err
	}
	return ai.DecodeStructured(name, content, out)
}

// GenerateChat sends a multi-turn conversation and returns assistant text.
func (c *OllamaClient) GenerateChat(
	ctx context.Context,
	messages []ai.ChatMessage,
	opts ...ai.GenerateOption,
) (string, error) {
	options := ai.ApplyOptions(ai.GenerateOptions{
		Model:       c.chatModel,
		Temperature: 0.2,
	}, opts...)

	return c.chat(ctx, "chat", options, buildMessages(options.SystemPrompts, messages), nil)
}

func (c *OllamaClient) chat(
	ctx context.Context,
	op string,
	options ai.GenerateOptions,
	msgs []api.Message,
	format json.RawMessage,
) (string, error) {
	rCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	stream := false
	req := &api.ChatRequest{
		Model:    options.Model,
		Messages: msgs,
		Stream:   &stream,
		Format:   format,
		Options:  map[string]any{"temperature": options.Temperature},
	}
	if tokens := estimateContext(msgs); tokens > defaultContextTokens {
		req.Options["num_ctx"] = tokens
	}

	if err := c.reqLock.Acquire(rCtx, 1); err != nil {
		return "", &common.ProviderError{Op: op, Err: err}
	}
	defer c.reqLock.Release(1)

	var final api.ChatResponse
	if err := c.Client.Chat(rCtx, req, func(cr api.ChatResponse) error {
		final.Message.Content += cr.Message.Content
		if cr.Done {
			final.Done = true
			final.Metrics = cr.Metrics
		}
		return nil
	}); err != nil {
		return "", &common.ProviderError{Op: op, Err: err}
	}

	c.modifyMetrics(ai.ModelMetrics{
		InputTokens:  final.Metrics.PromptEvalCount,
		OutputTokens: final.Metrics.EvalCount,
		TotalTokens:  final.Metrics.PromptEvalCount + final.Metrics.EvalCount,
		DurationMs:   final.Metrics.TotalDuration.Milliseconds(),
	})

	return final.Message.Content, nil
}

// estimateContext returns the prompt size in tokens plus room for the reply.
func estimateContext(msgs []api.Message) int {
	var sb strings.Builder
	for _, m := range msgs {
		sb.WriteString(m.Content)
		sb.WriteByte('\n')
	}
	// a token never spans less than one byte
	if sb.Len()+1024 <= defaultContextTokens {
		return sb.Len() + 1024
	}
	enc, err := tiktoken.GetEncoding("o200k_base")
	if err != nil {
		return sb.Len()/4 + 1024
	}
	return len(enc.Encode(sb.String(), nil, nil)) + 1024
}

func buildMessages(system []string, messages []ai.ChatMessage) []api.Message {
	msgs := make([]api.Message, 0, len(system)+len(messages))
	for _, sys := range system {
		if strings.TrimSpace(sys) == "" {
			continue
		}
		msgs = append(msgs, api.Message{Role: "system", Content: sys})
	}
	for _, m := range messages {
		role := m.Role
		if role == "" {
			role = "user"
		}
		msgs = append(msgs, api.Message{Role: role, Content: m.Message})
	}
	return msgs
}
