package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/connexus-ai/ragcore/internal/apperr"
)

// DefaultCompleteTimeout bounds the wall-clock duration of a single
// Complete or Summarize call.
const DefaultCompleteTimeout = 60 * time.Second

// MaxCompleteTemperature is the ceiling honored by CompletionParams so
// that Q&A answers stay deterministic-enough to ground citations.
const MaxCompleteTemperature = 0.3

// truncationSlack is the multiple of target_length_ratio output is
// allowed to exceed before Summarize truncates it.
const truncationSlack = 1.2

// LLMClient abstracts the underlying generative model for testability.
type LLMClient interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error)
}

// CompletionParams configures a Complete call.
type CompletionParams struct {
	Temperature float64
	MaxTokens   int
}

// LLM implements the Q&A completion and summarization operations (C2)
// on top of an LLMClient, applying the temperature ceiling, wall-clock
// timeout, and summary-length truncation the rest of the pipeline
// relies on.
type LLM struct {
	client  LLMClient
	timeout time.Duration
}

// NewLLM creates an LLM client wrapper. timeout defaults to
// DefaultCompleteTimeout when zero.
func NewLLM(client LLMClient, timeout time.Duration) *LLM {
	if timeout <= 0 {
		timeout = DefaultCompleteTimeout
	}
	return &LLM{client: client, timeout: timeout}
}

// Complete answers user_message given system_prompt, clamping
// temperature to MaxCompleteTemperature so answers stay grounded
// rather than creative.
func (l *LLM) Complete(ctx context.Context, systemPrompt, userMessage string, params CompletionParams) (string, error) {
	if strings.TrimSpace(userMessage) == "" {
		return "", apperr.Stage(apperr.ErrInvalidQuery, "complete", fmt.Errorf("user_message is empty"))
	}

	temperature := params.Temperature
	if temperature <= 0 || temperature > MaxCompleteTemperature {
		temperature = MaxCompleteTemperature
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	out, err := l.client.Generate(ctx, systemPrompt, userMessage, temperature)
	if err != nil {
		return "", classifyLLMError(ctx, "complete", err)
	}
	return out, nil
}

// Summarize compresses body per instruction, targeting
// target_length_ratio (e.g. 0.10 for 10:1). The returned text is
// truncated at truncationSlack times the target length (in words) if
// the model overshoots.
func (l *LLM) Summarize(ctx context.Context, instruction, body string, targetLengthRatio float64) (string, error) {
	if strings.TrimSpace(body) == "" {
		return "", apperr.Stage(apperr.ErrInvalidQuery, "summarize", fmt.Errorf("body is empty"))
	}
	if targetLengthRatio <= 0 || targetLengthRatio >= 1 {
		targetLengthRatio = 0.1
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	systemPrompt := fmt.Sprintf(
		"%s Target compression ratio: %.0f%% of the original length. Respond with the summary text only, no preamble.",
		instruction, targetLengthRatio*100,
	)

	out, err := l.client.Generate(ctx, systemPrompt, body, MaxCompleteTemperature)
	if err != nil {
		return "", classifyLLMError(ctx, "summarize", err)
	}

	targetWords := int(float64(wordCount(body)) * targetLengthRatio)
	maxWords := int(float64(targetWords) * truncationSlack)
	return truncateToWords(out, maxWords), nil
}

// truncateToWords returns the first maxWords words of s, unmodified if
// maxWords <= 0 or s already fits.
func truncateToWords(s string, maxWords int) string {
	if maxWords <= 0 {
		return s
	}
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ")
}

// classifyLLMError maps a raw client error to the error taxonomy,
// distinguishing an exhausted wall-clock timeout from other upstream
// failures.
func classifyLLMError(ctx context.Context, stage string, err error) error {
	if ctx.Err() != nil {
		return apperr.Stage(apperr.ErrLLMTimeout, stage, ctx.Err())
	}
	return apperr.Stage(apperr.ErrUpstreamUnavailable, stage, err)
}
