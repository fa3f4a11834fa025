package query

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/papershelf/internal/domain"
	"github.com/kailas-cloud/papershelf/internal/domain/search/result"
)

// Generation defaults.
const (
	DefaultModel       = "gpt-3.5-turbo"
	DefaultTemperature = 0.0
	DefaultMaxTokens   = 500
)

// NoAnswer is the reply the model is instructed to give when the context is insufficient.
const NoAnswer = "I don't have enough information to answer this question."

const promptTemplate = `You are an academic assistant helping with research papers.
Answer the following question based on the provided context from academic papers.
If the answer cannot be derived from the context, say "` + NoAnswer + `"

Context:
%s

Question: %s

Answer:`

// SynthesizerConfig tunes the generation call.
type SynthesizerConfig struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

// AnswerSynthesizer builds a grounded prompt and makes one generation call.
type AnswerSynthesizer struct {
	gen         Generator
	model       string
	temperature float32
	maxTokens   int
}

// NewSynthesizer creates a synthesizer. Empty model and non-positive max tokens select the defaults.
func NewSynthesizer(gen Generator, cfg SynthesizerConfig) (*AnswerSynthesizer, error) {
	if gen == nil {
		return nil, fmt.Errorf("%w: generator is required", domain.ErrInvalidConfiguration)
	}
	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		return nil, fmt.Errorf("%w: temperature must be in [0, 2], got %v", domain.ErrInvalidConfiguration, cfg.Temperature)
	}
	s := &AnswerSynthesizer{
		gen:         gen,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
	if s.model == "" {
		s.model = DefaultModel
	}
	if s.maxTokens <= 0 {
		s.maxTokens = DefaultMaxTokens
	}
	return s, nil
}

// Synthesize answers question using docs as the only context.
func (s *AnswerSynthesizer) Synthesize(ctx context.Context, question string, docs []result.Result) (string, error) {
	answer, err := s.gen.Complete(ctx, buildPrompt(question, docs), s.model, s.temperature, s.maxTokens)
	if err != nil {
		if errors.Is(err, domain.ErrGenerationFailed) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", fmt.Errorf("%w: empty answer", domain.ErrGenerationFailed)
	}
	return answer, nil
}

// buildPrompt renders docs as numbered "Document N:" blocks.
func buildPrompt(question string, docs []result.Result) string {
	blocks := make([]string, len(docs))
	for i := range docs {
		blocks[i] = "Document " + strconv.Itoa(i+1) + ":\n" + docs[i].Text()
	}
	return fmt.Sprintf(promptTemplate, strings.Join(blocks, "\n\n"), question)
}
