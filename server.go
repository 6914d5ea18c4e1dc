package main

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	maxTablePositions = 512
	maxTableDim       = 512
)

// Server exposes the pipeline, steps, quiz and tokenizer over HTTP.
type Server struct {
	cfg      *Config
	pipeline *Pipeline
	steps    StepSource
	quiz     *Quiz
	sessions *SessionStore
	counter  TokenCounter
	engine   *gin.Engine
}

func NewServer(cfg *Config, pipeline *Pipeline, backend *Backend, counter TokenCounter) *Server {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	s := &Server{
		cfg:      cfg,
		pipeline: pipeline,
		steps:    backend.Steps,
		quiz:     NewQuiz(backend.Quiz),
		sessions: NewSessionStore(cfg.Server.SessionTTL),
		counter:  counter,
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.SetHTMLTemplate(indexTemplate)

	r.GET("/", s.handleIndex)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.GET("/steps", s.handleSteps)
	api.POST("/embed", s.handleEmbed)
	api.GET("/positional", s.handlePositional)
	api.POST("/tokenize", s.handleTokenize)
	api.GET("/quiz", s.handleQuiz)
	api.POST("/quiz/:id/answer", s.handleAnswer)

	s.engine = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Server.Addr,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		logf("🚀 listening on %s", s.cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type stepView struct {
	Step
	Reached bool `json:"reached"`
}

func (s *Server) stepViews(ctx context.Context, current int) []stepView {
	steps := LoadSteps(ctx, s.steps)
	views := make([]stepView, len(steps))
	for i, st := range steps {
		views[i] = stepView{Step: st, Reached: st.Reached(current)}
	}
	return views
}

func (s *Server) handleIndex(c *gin.Context) {
	c.HTML(http.StatusOK, "index", gin.H{
		"Steps": LoadSteps(c.Request.Context(), s.steps),
	})
}

func (s *Server) handleSteps(c *gin.Context) {
	current, _ := strconv.Atoi(c.Query("current"))
	c.JSON(http.StatusOK, gin.H{"steps": s.stepViews(c.Request.Context(), current)})
}

type embedRequest struct {
	Text      string `json:"text"`
	SessionID string `json:"session_id"`
}

func (s *Server) handleEmbed(c *gin.Context) {
	var req embedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	sess, res, err := s.sessions.Compute(req.SessionID, s.pipeline, req.Text)
	if errors.Is(err, ErrEmptyInput) {
		body := gin.H{
			"error":      "Please enter some text to analyze",
			"session_id": sess.ID,
		}
		if res != nil {
			body["result"] = res.Preview(s.cfg.Preview)
		}
		c.JSON(http.StatusUnprocessableEntity, body)
		return
	}
	if err != nil {
		logf("embed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": sess.ID,
		"result":     res.Preview(s.cfg.Preview),
		"steps":      s.stepViews(c.Request.Context(), sess.CurrentStep),
	})
}

func (s *Server) handlePositional(c *gin.Context) {
	positions, err := queryInt(c, "positions", 10)
	if err != nil || positions < 0 || positions > maxTablePositions {
		c.JSON(http.StatusBadRequest, gin.H{"error": "positions must be between 0 and 512"})
		return
	}
	dim, err := queryInt(c, "dim", 16)
	if err != nil || dim <= 0 || dim > maxTableDim {
		c.JSON(http.StatusBadRequest, gin.H{"error": "dim must be between 1 and 512"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"positions": positions,
		"dim":       dim,
		"table":     PositionalTable(positions, dim, s.cfg.Embedding.Base),
		"collapsed": PositionalVector(positions, s.cfg.Embedding),
	})
}

func (s *Server) handleTokenize(c *gin.Context) {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	c.JSON(http.StatusOK, Tokenize(req.Text, s.counter))
}

func (s *Server) handleQuiz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.backendTimeout())
	defer cancel()

	questions, invalid, err := s.quiz.Questions(ctx)
	if err != nil {
		logf("quiz: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not load questions"})
		return
	}
	for _, e := range invalid {
		logf("quiz: skipping %v", e)
	}
	// Answers stay server side until graded.
	type publicQuestion struct {
		ID          int      `json:"id"`
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Question    string   `json:"question"`
		Options     []string `json:"options"`
		Difficulty  string   `json:"difficulty_level"`
		Category    string   `json:"category"`
	}
	out := make([]publicQuestion, len(questions))
	for i, q := range questions {
		out[i] = publicQuestion{
			ID:          q.ID,
			Title:       q.Title,
			Description: q.Description,
			Question:    q.Question,
			Options:     q.Options,
			Difficulty:  q.Difficulty,
			Category:    q.Category,
		}
	}
	c.JSON(http.StatusOK, gin.H{"questions": out})
}

func (s *Server) handleAnswer(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question id must be a number"})
		return
	}
	var req struct {
		Answer    *int   `json:"answer"`
		SessionID string `json:"session_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Answer == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must contain an answer index"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.backendTimeout())
	defer cancel()

	res, err := s.quiz.Answer(ctx, req.SessionID, id, *req.Answer)
	switch {
	case errors.Is(err, ErrQuestionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrInvalidAnswer):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		logf("quiz answer: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not load questions"})
	default:
		c.JSON(http.StatusOK, res)
	}
}

func (s *Server) backendTimeout() time.Duration {
	if s.cfg.Store.Timeout > 0 {
		return s.cfg.Store.Timeout
	}
	return 10 * time.Second
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Tokenizely</title></head>
<body>
<h1>Tokenizely</h1>
<p>POST text to <code>/api/embed</code> to see how a transformer processes it step by step.</p>
<ol>
{{range .Steps}}<li><strong>Step {{.Order}}: {{.Name}}</strong><br>{{.Description}}<br><code>{{.Formula}}</code></li>
{{end}}</ol>
<p>Test your knowledge at <code>/api/quiz</code>.</p>
</body>
</html>
`))
