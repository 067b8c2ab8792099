package stage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/PranavReddyGaddam/Signal/domain"
	"github.com/PranavReddyGaddam/Signal/llm"
)

const intentPrompt = `Extract the target market from the user's request.
Respond with a single JSON object and nothing else, with fields:
"industry" (e.g. "SaaS", "FinTech", "HealthTech", "E-commerce", "AI/ML"),
"country" (full country name),
"company_size" (or empty string if unspecified),
"goal" (default "lead_generation").`

// LLMIntent extracts a structured intent via a chat completion call.
// Connectivity failures and server errors are retryable; malformed
// model output and client-side rejections are fatal.
func LLMIntent(client *llm.Client, model string) Func {
	return func(ctx context.Context, in Input, progress ProgressFunc) (*Result, error) {
		progress(10, "Starting intent extraction...")

		temperature := 0.0
		req := &llm.ChatCompletionRequest{
			Model: model,
			Messages: []llm.ChatMessage{
				{Role: "system", Content: intentPrompt},
				{Role: "user", Content: in.UserInput},
			},
			Temperature:    &temperature,
			ResponseFormat: map[string]interface{}{"type": "json_object"},
		}

		progress(40, "Processing intent with AI models...")

		content, err := client.Complete(ctx, req)
		if err != nil {
			var statusErr *llm.StatusError
			if errors.As(err, &statusErr) && !statusErr.Temporary() {
				return nil, Fatal(err)
			}
			return nil, Retryable(err)
		}

		progress(80, "Parsing extracted intent...")

		var result domain.IntentResult
		if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &result); err != nil {
			return nil, Fatalf("model returned malformed intent: %w", err)
		}
		if result.Industry == "" || result.Country == "" {
			return nil, Fatalf("model returned incomplete intent: %q", content)
		}
		if result.Goal == "" {
			result.Goal = "lead_generation"
		}
		result.RawInput = in.UserInput
		result.Confidence = 0.9
		result.ExtractedAt = time.Now().UTC()

		payload, err := json.Marshal(result)
		if err != nil {
			return nil, Fatal(err)
		}
		return &Result{Payload: payload}, nil
	}
}
