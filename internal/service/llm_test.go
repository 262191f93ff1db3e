package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/connexus-ai/ragcore/internal/apperr"
)

type fakeLLMClient struct {
	response    string
	err         error
	temperature float64
	delay       time.Duration
}

func (f *fakeLLMClient) Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error) {
	f.temperature = temperature
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func TestLLM_Complete_ClampsTemperature(t *testing.T) {
	client := &fakeLLMClient{response: "an answer"}
	l := NewLLM(client, 0)

	out, err := l.Complete(context.Background(), "system", "what is x?", CompletionParams{Temperature: 0.9})
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if out != "an answer" {
		t.Errorf("out = %q", out)
	}
	if client.temperature != MaxCompleteTemperature {
		t.Errorf("temperature = %f, want clamped to %f", client.temperature, MaxCompleteTemperature)
	}
}

func TestLLM_Complete_EmptyMessage(t *testing.T) {
	l := NewLLM(&fakeLLMClient{}, 0)
	_, err := l.Complete(context.Background(), "system", "   ", CompletionParams{})
	if !errors.Is(err, apperr.ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery, got %v", err)
	}
}

func TestLLM_Complete_ClientError(t *testing.T) {
	client := &fakeLLMClient{err: fmt.Errorf("upstream down")}
	l := NewLLM(client, 0)
	_, err := l.Complete(context.Background(), "system", "question", CompletionParams{})
	if !errors.Is(err, apperr.ErrUpstreamUnavailable) {
		t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestLLM_Complete_Timeout(t *testing.T) {
	client := &fakeLLMClient{delay: 50 * time.Millisecond, response: "too slow"}
	l := NewLLM(client, 10*time.Millisecond)
	_, err := l.Complete(context.Background(), "system", "question", CompletionParams{})
	if !errors.Is(err, apperr.ErrLLMTimeout) {
		t.Errorf("expected ErrLLMTimeout, got %v", err)
	}
}

func TestLLM_Summarize_TruncatesAtSlack(t *testing.T) {
	body := strings.Repeat("word ", 100)
	overlong := strings.Repeat("summary ", 50) // far more than 1.2x target
	client := &fakeLLMClient{response: overlong}
	l := NewLLM(client, 0)

	out, err := l.Summarize(context.Background(), "Summarize concisely.", body, 0.1)
	if err != nil {
		t.Fatalf("Summarize() error: %v", err)
	}
	gotWords := len(strings.Fields(out))
	wantMax := int(float64(10) * truncationSlack) // target = 100*0.1 = 10 words
	if gotWords > wantMax {
		t.Errorf("summary has %d words, want <= %d", gotWords, wantMax)
	}
}

func TestLLM_Summarize_ShortOutputUntouched(t *testing.T) {
	body := strings.Repeat("word ", 100)
	client := &fakeLLMClient{response: "a short summary"}
	l := NewLLM(client, 0)

	out, err := l.Summarize(context.Background(), "Summarize concisely.", body, 0.1)
	if err != nil {
		t.Fatalf("Summarize() error: %v", err)
	}
	if out != "a short summary" {
		t.Errorf("out = %q, want unchanged", out)
	}
}

func TestLLM_Summarize_EmptyBody(t *testing.T) {
	l := NewLLM(&fakeLLMClient{}, 0)
	_, err := l.Summarize(context.Background(), "instr", "", 0.1)
	if !errors.Is(err, apperr.ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery, got %v", err)
	}
}

func TestLLM_Summarize_DefaultRatio(t *testing.T) {
	client := &fakeLLMClient{response: "summary"}
	l := NewLLM(client, 0)
	_, err := l.Summarize(context.Background(), "instr", "body text here", 0)
	if err != nil {
		t.Fatalf("Summarize() error: %v", err)
	}
}

func TestTruncateToWords(t *testing.T) {
	if got := truncateToWords("a b c d", 2); got != "a b" {
		t.Errorf("truncateToWords = %q", got)
	}
	if got := truncateToWords("a b", 5); got != "a b" {
		t.Errorf("truncateToWords should not pad: %q", got)
	}
	if got := truncateToWords("a b", 0); got != "a b" {
		t.Errorf("truncateToWords with maxWords<=0 should be no-op: %q", got)
	}
}
