package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/kirillkom/policy-qa/internal/adapters/tui"
	"github.com/kirillkom/policy-qa/internal/bootstrap"
	"github.com/kirillkom/policy-qa/internal/config"
	"github.com/kirillkom/policy-qa/internal/observability/logging"
)

const serviceName = "policy-qa-ask"

func main() {
	_ = godotenv.Load()

	var question string
	var verbose bool
	flag.StringVar(&question, "q", "", "Answer one question and exit")
	flag.BoolVar(&verbose, "v", false, "Write JSON logs to stdout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	// The terminal UI owns stdout, so logs are off unless asked for.
	logger := logging.Discard()
	if verbose {
		logger = logging.NewJSONLogger(serviceName, cfg.LogLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, serviceName, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bootstrap error: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	count, err := app.BuildIndex(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "index error: %v\n", err)
		os.Exit(1)
	}

	timeout := time.Duration(cfg.Retrieval.TimeoutSeconds+cfg.GenerationTimeoutSeconds) * time.Second
	if question != "" {
		answerCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		result, err := app.Answerer.Answer(answerCtx, question)
		if err != nil {
			fmt.Fprintf(os.Stderr, "answer error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(result.PlainText())
		return
	}

	summary := fmt.Sprintf("%d passages indexed from %s", count, cfg.CorpusDir)
	if _, err := tea.NewProgram(tui.New(app.Answerer, summary, timeout), tea.WithContext(ctx)).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "terminal ui error: %v\n", err)
		os.Exit(1)
	}
}
