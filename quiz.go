package main

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Question is one quiz entry.
type Question struct {
	ID            int      `json:"id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
	Difficulty    string   `json:"difficulty_level"`
	Category      string   `json:"category"`
}

func (q Question) Validate() error {
	if len(q.Options) == 0 {
		return fmt.Errorf("question %d has no options: %w", q.ID, ErrInvalidQuestion)
	}
	if q.CorrectAnswer < 0 || q.CorrectAnswer >= len(q.Options) {
		return fmt.Errorf("question %d: correct answer %d of %d options: %w", q.ID, q.CorrectAnswer, len(q.Options), ErrInvalidQuestion)
	}
	return nil
}

// AnswerResult is returned after an answer is selected.
type AnswerResult struct {
	QuestionID    int    `json:"question_id"`
	Selected      int    `json:"selected"`
	Correct       bool   `json:"correct"`
	CorrectAnswer int    `json:"correct_answer"`
	Explanation   string `json:"explanation"`
}

// Grade checks answer against q.
func Grade(q Question, answer int) (AnswerResult, error) {
	if answer < 0 || answer >= len(q.Options) {
		return AnswerResult{}, fmt.Errorf("answer %d for question %d: %w", answer, q.ID, ErrInvalidAnswer)
	}
	return AnswerResult{
		QuestionID:    q.ID,
		Selected:      answer,
		Correct:       answer == q.CorrectAnswer,
		CorrectAnswer: q.CorrectAnswer,
		Explanation:   q.Explanation,
	}, nil
}

// QuizSource lists quiz questions from a backend.
type QuizSource interface {
	ListQuestions(ctx context.Context) ([]Question, error)
}

// Attempt is a graded answer kept by backends that support it.
type Attempt struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	QuestionID int       `json:"question_id"`
	Selected   int       `json:"selected"`
	Correct    bool      `json:"correct"`
	CreatedAt  time.Time `json:"created_at"`
}

type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, a Attempt) error
}

// Quiz wraps a source with validation and lookup.
type Quiz struct {
	src      QuizSource
	recorder AttemptRecorder
}

func NewQuiz(src QuizSource) *Quiz {
	q := &Quiz{src: src}
	if rec, ok := src.(AttemptRecorder); ok {
		q.recorder = rec
	}
	return q
}

// Questions returns the valid questions ordered by id. Invalid rows are
// skipped and reported in the returned error list.
func (q *Quiz) Questions(ctx context.Context) ([]Question, []error, error) {
	all, err := q.src.ListQuestions(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list questions: %w", err)
	}
	var (
		valid   []Question
		invalid []error
	)
	for _, qu := range all {
		if err := qu.Validate(); err != nil {
			invalid = append(invalid, err)
			continue
		}
		valid = append(valid, qu)
	}
	sort.SliceStable(valid, func(i, j int) bool { return valid[i].ID < valid[j].ID })
	return valid, invalid, nil
}

func (q *Quiz) Find(ctx context.Context, id int) (Question, error) {
	questions, _, err := q.Questions(ctx)
	if err != nil {
		return Question{}, err
	}
	for _, qu := range questions {
		if qu.ID == id {
			return qu, nil
		}
	}
	return Question{}, fmt.Errorf("question %d: %w", id, ErrQuestionNotFound)
}

// Answer grades an answer and records the attempt when the backend keeps
// attempts. A failed recording is logged, not returned.
func (q *Quiz) Answer(ctx context.Context, sessionID string, id, answer int) (AnswerResult, error) {
	qu, err := q.Find(ctx, id)
	if err != nil {
		return AnswerResult{}, err
	}
	res, err := Grade(qu, answer)
	if err != nil {
		return AnswerResult{}, err
	}
	if q.recorder != nil {
		err := q.recorder.RecordAttempt(ctx, Attempt{
			SessionID:  sessionID,
			QuestionID: id,
			Selected:   answer,
			Correct:    res.Correct,
			CreatedAt:  time.Now(),
		})
		if err != nil {
			logf("quiz: record attempt for question %d: %v", id, err)
		}
	}
	return res, nil
}
