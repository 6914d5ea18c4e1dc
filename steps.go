package main

import (
	"context"
	"sort"
)

// Step describes one stage of the pipeline for display.
type Step struct {
	ID          int     `json:"id"`
	Name        string  `json:"step_name"`
	Description string  `json:"description"`
	Formula     string  `json:"formula"`
	ImageURL    *string `json:"image_url"`
	Order       int     `json:"order_number"`
}

// Reached reports whether a viewer at currentStep has got to this step.
func (s Step) Reached(currentStep int) bool {
	return currentStep >= s.Order
}

// StepSource lists step metadata from a backend.
type StepSource interface {
	ListSteps(ctx context.Context) ([]Step, error)
}

// DefaultSteps is the static ordering used when no backend is available.
func DefaultSteps() []Step {
	return []Step{
		{
			ID:          1,
			Name:        "Character Embedding",
			Description: "Each character becomes a number by normalising its character code.",
			Formula:     "E(c) = code(c) / 255",
			Order:       1,
		},
		{
			ID:          2,
			Name:        "Positional Encoding",
			Description: "A sinusoid of the position tells the model where each character sits.",
			Formula:     "PE(i) = sin(i / 10000^(2·(i mod 2)/64))",
			Order:       2,
		},
		{
			ID:          3,
			Name:        "Contextual Vector",
			Description: "The embedding and the positional signal are added together.",
			Formula:     "E_final = E_word + E_position",
			Order:       3,
		},
		{
			ID:          4,
			Name:        "Prediction",
			Description: "A linear layer scores each category and softmax turns the scores into probabilities.",
			Formula:     "softmax(x_i) = exp(x_i) / Σ exp(x_j)",
			Order:       4,
		},
	}
}

// SortSteps orders steps by their order number, then id.
func SortSteps(steps []Step) {
	sort.SliceStable(steps, func(i, j int) bool {
		if steps[i].Order != steps[j].Order {
			return steps[i].Order < steps[j].Order
		}
		return steps[i].ID < steps[j].ID
	})
}

// LoadSteps fetches steps from src and falls back to DefaultSteps when src
// is nil, fails, or has nothing.
func LoadSteps(ctx context.Context, src StepSource) []Step {
	if src == nil {
		return DefaultSteps()
	}
	steps, err := src.ListSteps(ctx)
	if err != nil {
		logf("steps: falling back to defaults: %v", err)
		return DefaultSteps()
	}
	if len(steps) == 0 {
		return DefaultSteps()
	}
	SortSteps(steps)
	return steps
}
