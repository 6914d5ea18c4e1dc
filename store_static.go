package main

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// StaticStore serves the built-in steps and sample questions and keeps
// attempts in memory.
type StaticStore struct {
	mu       sync.Mutex
	attempts []Attempt
}

func NewStaticStore() *StaticStore {
	return &StaticStore{}
}

func (s *StaticStore) ListSteps(ctx context.Context) ([]Step, error) {
	return DefaultSteps(), nil
}

func (s *StaticStore) ListQuestions(ctx context.Context) ([]Question, error) {
	return SampleQuestions(), nil
}

func (s *StaticStore) RecordAttempt(ctx context.Context, a Attempt) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, a)
	return nil
}

func (s *StaticStore) Attempts() []Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Attempt(nil), s.attempts...)
}

// SampleQuestions is the quiz used without a database.
func SampleQuestions() []Question {
	return []Question{
		{
			ID:          1,
			Title:       "Vector Embedding",
			Description: "Words become numbers",
			Question:    "What does an embedding turn a token into?",
			Options: []string{
				"A list of numbers",
				"A single character",
				"An image",
				"A probability",
			},
			CorrectAnswer: 0,
			Explanation:   "An embedding maps each token to a vector of numbers that stands in for its meaning.",
			Difficulty:    "beginner",
			Category:      "embeddings",
		},
		{
			ID:          2,
			Title:       "Positional Encoding",
			Description: "Order matters",
			Question:    "Why is a positional signal added to each embedding?",
			Options: []string{
				"To make vectors shorter",
				"To tell the model where each token sits in the sequence",
				"To normalise the vector length",
				"To pick the output label",
			},
			CorrectAnswer: 1,
			Explanation:   "Attention on its own ignores order; the sinusoidal signal encodes each position.",
			Difficulty:    "beginner",
			Category:      "positional-encoding",
		},
		{
			ID:          3,
			Title:       "Attention",
			Description: "Query, key and value",
			Question:    "How is a raw attention score computed?",
			Options: []string{
				"Query + Key",
				"(Query · Key) / √d",
				"max(0, Query)",
				"exp(Key) / Σ exp(Key)",
			},
			CorrectAnswer: 1,
			Explanation:   "The dot product of query and key is scaled by the square root of the key dimension.",
			Difficulty:    "intermediate",
			Category:      "attention",
		},
		{
			ID:          4,
			Title:       "Feed-Forward Network",
			Description: "After attention",
			Question:    "Which formula describes the position-wise feed-forward network?",
			Options: []string{
				"max(0, xW₁ + b₁)W₂ + b₂",
				"sin(x / 10000)",
				"x / 255",
				"Query · Key",
			},
			CorrectAnswer: 0,
			Explanation:   "Each position goes through two linear layers with a ReLU between them.",
			Difficulty:    "intermediate",
			Category:      "architecture",
		},
		{
			ID:          5,
			Title:       "Softmax",
			Description: "Scores to probabilities",
			Question:    "What do the outputs of softmax always sum to?",
			Options: []string{
				"0",
				"The vector length",
				"1",
				"It depends on the input",
			},
			CorrectAnswer: 2,
			Explanation:   "softmax(x_i) = exp(x_i) / Σ exp(x_j), so the outputs form a probability distribution.",
			Difficulty:    "beginner",
			Category:      "softmax",
		},
	}
}
