package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	// fixed width so created_at sorts as text
	attemptTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

var sqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS transformer_steps(
		id INTEGER PRIMARY KEY,
		step_name TEXT NOT NULL,
		description TEXT NOT NULL,
		formula TEXT NOT NULL,
		image_url TEXT,
		order_number INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS transformer_questions(
		id INTEGER PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		question TEXT NOT NULL,
		options TEXT NOT NULL,
		correct_answer INTEGER NOT NULL,
		explanation TEXT NOT NULL,
		difficulty_level TEXT NOT NULL,
		category TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS quiz_attempts(
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		question_id INTEGER NOT NULL,
		selected INTEGER NOT NULL,
		correct BOOLEAN NOT NULL,
		created_at TEXT NOT NULL
	)`,
}

// SQLStore keeps steps, questions and attempts in SQLite or Postgres.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// OpenSQLStore opens the database and creates the tables if needed.
func OpenSQLStore(driver, dsn string) (*SQLStore, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// one writer at a time
		db.SetMaxOpenConns(1)
	}
	s := &SQLStore{db: db, driver: driver}
	for _, stmt := range sqlSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return s, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for Postgres.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) ListSteps(ctx context.Context) ([]Step, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, step_name, description, formula, image_url, order_number FROM transformer_steps ORDER BY order_number, id")
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	var steps []Step
	for rows.Next() {
		var (
			st  Step
			img sql.NullString
		)
		if err := rows.Scan(&st.ID, &st.Name, &st.Description, &st.Formula, &img, &st.Order); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		if img.Valid {
			v := img.String
			st.ImageURL = &v
		}
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

func (s *SQLStore) ListQuestions(ctx context.Context) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, title, description, question, options, correct_answer, explanation, difficulty_level, category FROM transformer_questions ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var questions []Question
	for rows.Next() {
		var (
			q       Question
			options string
		)
		if err := rows.Scan(&q.ID, &q.Title, &q.Description, &q.Question, &options, &q.CorrectAnswer, &q.Explanation, &q.Difficulty, &q.Category); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal([]byte(options), &q.Options); err != nil {
			return nil, fmt.Errorf("question %d options: %w", q.ID, err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func (s *SQLStore) RecordAttempt(ctx context.Context, a Attempt) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, s.rebind(
		"INSERT INTO quiz_attempts(id, session_id, question_id, selected, correct, created_at) VALUES(?,?,?,?,?,?)"),
		a.ID, a.SessionID, a.QuestionID, a.Selected, a.Correct, a.CreatedAt.UTC().Format(attemptTimeLayout))
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// Attempts returns the attempts of one session, oldest first.
func (s *SQLStore) Attempts(ctx context.Context, sessionID string) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		"SELECT id, session_id, question_id, selected, correct, created_at FROM quiz_attempts WHERE session_id = ? ORDER BY created_at"),
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		var (
			a  Attempt
			ts string
		)
		if err := rows.Scan(&a.ID, &a.SessionID, &a.QuestionID, &a.Selected, &a.Correct, &ts); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		if a.CreatedAt, err = time.Parse(attemptTimeLayout, ts); err != nil {
			return nil, fmt.Errorf("attempt %s timestamp: %w", a.ID, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SeedData is the JSON document accepted by the seed command.
type SeedData struct {
	Steps     []Step     `json:"steps"`
	Questions []Question `json:"questions"`
}

// Seed upserts steps and questions in one transaction.
func (s *SQLStore) Seed(ctx context.Context, data SeedData) error {
	for _, q := range data.Questions {
		if err := q.Validate(); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback()

	stepStmt := s.rebind(`INSERT INTO transformer_steps(id, step_name, description, formula, image_url, order_number)
		VALUES(?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET step_name = excluded.step_name, description = excluded.description,
			formula = excluded.formula, image_url = excluded.image_url, order_number = excluded.order_number`)
	for _, st := range data.Steps {
		var img sql.NullString
		if st.ImageURL != nil {
			img = sql.NullString{String: *st.ImageURL, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, stepStmt, st.ID, st.Name, st.Description, st.Formula, img, st.Order); err != nil {
			return fmt.Errorf("seed step %d: %w", st.ID, err)
		}
	}

	questionStmt := s.rebind(`INSERT INTO transformer_questions(id, title, description, question, options, correct_answer, explanation, difficulty_level, category)
		VALUES(?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET title = excluded.title, description = excluded.description,
			question = excluded.question, options = excluded.options, correct_answer = excluded.correct_answer,
			explanation = excluded.explanation, difficulty_level = excluded.difficulty_level, category = excluded.category`)
	for _, q := range data.Questions {
		options, err := json.Marshal(q.Options)
		if err != nil {
			return fmt.Errorf("question %d options: %w", q.ID, err)
		}
		if _, err := tx.ExecContext(ctx, questionStmt, q.ID, q.Title, q.Description, q.Question, string(options), q.CorrectAnswer, q.Explanation, q.Difficulty, q.Category); err != nil {
			return fmt.Errorf("seed question %d: %w", q.ID, err)
		}
	}

	return tx.Commit()
}
