package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

type cliOptions struct {
	configPath string
	quiet      bool
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:   "tokenizely",
		Short: "See how a transformer processes text, step by step",
		Long: `Tokenizely walks text through a toy transformer pipeline:
character embedding, positional encoding, contextual vector and a
linear+softmax prediction. It also serves a quiz and a tokenizer playground.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.quiet {
				SetLogOutput(io.Discard)
			}
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to config file (default ./tokenizely.yaml)")
	root.PersistentFlags().BoolVarP(&opts.quiet, "quiet", "q", false, "Silence diagnostic logging")

	root.AddCommand(
		newServeCmd(opts),
		newEmbedCmd(opts),
		newStepsCmd(opts),
		newQuizCmd(opts),
		newTokenizeCmd(opts),
		newSeedCmd(opts),
	)
	return root
}

func newServeCmd(opts *cliOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(opts.configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			pipeline, err := NewPipelineFromConfig(cfg)
			if err != nil {
				return err
			}
			backend, err := OpenBackend(cfg)
			if err != nil {
				return err
			}
			defer backend.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logf("store=%s policy=%s", cfg.Store.Backend, pipeline.Policy.Name())
			return NewServer(cfg, pipeline, backend, NewTokenCounter(cfg.Tokenizer)).Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}

func newEmbedCmd(opts *cliOptions) *cobra.Command {
	var (
		policy  string
		preview int
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "embed <text>",
		Short: "Run text through the pipeline and print every step",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(opts.configPath)
			if err != nil {
				return err
			}
			if policy != "" {
				cfg.Classifier.Policy = policy
			}
			if cmd.Flags().Changed("preview") {
				cfg.Preview = preview
			}
			pipeline, err := NewPipelineFromConfig(cfg)
			if err != nil {
				return err
			}

			text := strings.Join(args, " ")
			res, err := pipeline.Run(text)
			if errors.Is(err, ErrEmptyInput) {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to compute: input is empty.")
				return nil
			}
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), res.Preview(cfg.Preview))
			}
			steps := LoadSteps(cmd.Context(), nil)
			printResult(cmd.OutOrStdout(), res, steps, cfg.Preview)
			return nil
		},
	}
	cmd.Flags().StringVar(&policy, "policy", "", "Classification policy: threshold or linear")
	cmd.Flags().IntVar(&preview, "preview", 5, "Number of values shown per vector")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the preview as JSON")
	return cmd
}

func printResult(w io.Writer, res *Result, steps []Step, preview int) {
	fmt.Fprintf(w, "🤖 Tokenizely - %q (%d characters)\n", res.Input, len(res.Contextual))
	fmt.Fprintln(w, strings.Repeat("=", 40))

	vectors := [][]float64{res.Character, res.Positional, res.Contextual}
	for i, st := range steps {
		fmt.Fprintf(w, "\n📐 Step %d: %s\n", st.Order, st.Name)
		fmt.Fprintf(w, "   Formula: %s\n", st.Formula)
		if i < len(vectors) {
			fmt.Fprintf(w, "   Values:  %s\n", FormatVector(Preview(vectors[i], preview)))
		}
	}

	cls := res.Classification
	fmt.Fprintf(w, "\n🎯 Prediction (%s policy): %s\n", cls.Policy, cls.Label)
	if cls.Scores != nil {
		fmt.Fprintf(w, "   Probabilities: %s\n", FormatVector(cls.Scores))
	} else {
		fmt.Fprintf(w, "   Mean: %.4f\n", cls.Mean)
	}
}

func newStepsCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "steps",
		Short: "List the pipeline steps from the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(opts.configPath)
			if err != nil {
				return err
			}
			backend, err := OpenBackend(cfg)
			if err != nil {
				return err
			}
			defer backend.Close()

			for _, st := range LoadSteps(cmd.Context(), backend.Steps) {
				fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n   %s\n   %s\n", st.Order, st.Name, st.Description, st.Formula)
			}
			return nil
		},
	}
}

func newQuizCmd(opts *cliOptions) *cobra.Command {
	var showAnswers bool
	cmd := &cobra.Command{
		Use:   "quiz",
		Short: "Print the quiz questions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(opts.configPath)
			if err != nil {
				return err
			}
			backend, err := OpenBackend(cfg)
			if err != nil {
				return err
			}
			defer backend.Close()

			questions, invalid, err := NewQuiz(backend.Quiz).Questions(cmd.Context())
			if err != nil {
				return err
			}
			for _, e := range invalid {
				logf("quiz: skipping %v", e)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "🧠 Test Your Knowledge (%d questions)\n", len(questions))
			for _, q := range questions {
				fmt.Fprintf(out, "\n[%s] %s\n%s\n", q.Difficulty, q.Title, q.Question)
				for i, opt := range q.Options {
					marker := " "
					if showAnswers && i == q.CorrectAnswer {
						marker = "*"
					}
					fmt.Fprintf(out, "  %s %d) %s\n", marker, i, opt)
				}
				if showAnswers {
					fmt.Fprintf(out, "  💡 %s\n", q.Explanation)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showAnswers, "answers", false, "Mark correct answers and show explanations")
	return cmd
}

func newTokenizeCmd(opts *cliOptions) *cobra.Command {
	var bpe bool
	cmd := &cobra.Command{
		Use:   "tokenize <text>",
		Short: "Split text into tokens",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(opts.configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("bpe") {
				cfg.Tokenizer.BPE = bpe
			}
			tok := Tokenize(strings.Join(args, " "), NewTokenCounter(cfg.Tokenizer))

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Tokens: %s\n", strings.Join(tok.Words, " → "))
			fmt.Fprintf(out, "Token count: %d\n", tok.TokenCount)
			fmt.Fprintf(out, "Character vocabulary: %d\n", len(tok.Vocab))
			if tok.BPETokens != nil {
				fmt.Fprintf(out, "BPE tokens (%s): %d\n", cfg.Tokenizer.Encoding, *tok.BPETokens)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&bpe, "bpe", true, "Also count BPE tokens with tiktoken")
	return cmd
}

func newSeedCmd(opts *cliOptions) *cobra.Command {
	var (
		file     string
		defaults bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load steps and questions into the SQL store",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" && !defaults {
				return fmt.Errorf("--file or --defaults is required")
			}
			cfg, err := LoadConfig(opts.configPath)
			if err != nil {
				return err
			}
			backend, err := OpenBackend(cfg)
			if err != nil {
				return err
			}
			defer backend.Close()
			if backend.SQL == nil {
				return fmt.Errorf("seed needs store.backend sqlite or postgres, got %s", cfg.Store.Backend)
			}

			data := SeedData{Steps: DefaultSteps(), Questions: SampleQuestions()}
			if file != "" {
				data = SeedData{}
				if err := loadJSON(file, &data); err != nil {
					return fmt.Errorf("read seed file: %w", err)
				}
			}
			if err := backend.SQL.Seed(cmd.Context(), data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "💾 Seeded %d steps and %d questions into %s\n", len(data.Steps), len(data.Questions), cfg.Store.Backend)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "JSON file with steps and questions")
	cmd.Flags().BoolVar(&defaults, "defaults", false, "Seed the built-in steps and sample questions")
	return cmd
}

func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func writeJSON(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func loadJSON(path string, data interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return json.NewDecoder(f).Decode(data)
}
