package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Result is one complete pass of the pipeline. Vectors are full length;
// truncation happens only in Preview.
type Result struct {
	ID             string         `json:"id"`
	Input          string         `json:"input"`
	Character      []float64      `json:"character"`
	Positional     []float64      `json:"positional"`
	Contextual     []float64      `json:"contextual"`
	Classification Classification `json:"classification"`
	ComputedAt     time.Time      `json:"computed_at"`
}

// Pipeline runs vectorizer, positional encoder, combiner and classifier
// in order. It holds configuration only.
type Pipeline struct {
	Embedding EmbeddingCfg
	Policy    ClassificationPolicy
}

func NewPipeline(embedding EmbeddingCfg, policy ClassificationPolicy) *Pipeline {
	return &Pipeline{Embedding: embedding, Policy: policy}
}

// Run computes all vectors for text. Empty text returns ErrEmptyInput and
// no result.
func (p *Pipeline) Run(text string) (*Result, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}

	character := CharacterVector(text, p.Embedding)
	positional := PositionalVector(len(character), p.Embedding)
	contextual, err := Combine(character, positional)
	if err != nil {
		return nil, err
	}

	cls, err := p.Policy.Classify(contextual)
	if err != nil {
		return nil, fmt.Errorf("classify with %s policy: %w", p.Policy.Name(), err)
	}

	return &Result{
		ID:             uuid.NewString(),
		Input:          text,
		Character:      character,
		Positional:     positional,
		Contextual:     contextual,
		Classification: cls,
		ComputedAt:     time.Now(),
	}, nil
}

// ResultPreview is the display projection of a Result.
type ResultPreview struct {
	ID         string         `json:"id"`
	Input      string         `json:"input"`
	Length     int            `json:"length"`
	Character  []float64      `json:"character"`
	Positional []float64      `json:"positional"`
	Contextual []float64      `json:"contextual"`
	Prediction Classification `json:"prediction"`
}

// Preview truncates every vector of r to n values.
func (r *Result) Preview(n int) ResultPreview {
	return ResultPreview{
		ID:         r.ID,
		Input:      r.Input,
		Length:     len(r.Contextual),
		Character:  Preview(r.Character, n),
		Positional: Preview(r.Positional, n),
		Contextual: Preview(r.Contextual, n),
		Prediction: r.Classification,
	}
}

// Preview returns at most the first n values of v, as a copy.
func Preview(v []float64, n int) []float64 {
	if n < 0 || n > len(v) {
		n = len(v)
	}
	return append([]float64{}, v[:n]...)
}

// FormatVector renders v as "[0.3882, 0.3804]".
func FormatVector(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprintf("%.4f", x)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
