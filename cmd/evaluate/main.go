package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"

	"github.com/kirillkom/policy-qa/internal/bootstrap"
	"github.com/kirillkom/policy-qa/internal/config"
	"github.com/kirillkom/policy-qa/internal/core/usecase"
	"github.com/kirillkom/policy-qa/internal/observability/logging"
)

const serviceName = "policy-qa-evaluate"

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, serviceName, logging.Discard())
	if err != nil {
		fmt.Fprintf(os.Stderr, "bootstrap error: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	if _, err := app.BuildIndex(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "index error: %v\n", err)
		os.Exit(1)
	}

	rows := usecase.NewEvaluationSuite(app.Answerer, usecase.DefaultEvaluationCases()).Run(ctx)

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "QUESTION\tCATEGORY\tOUTCOME\tCONFIDENCE\tRESULT")
	for _, row := range rows {
		outcome, confidence := "error", "-"
		if row.Err == nil {
			outcome = string(row.Result.Outcome)
			if !row.Result.IsRefusal() {
				confidence = fmt.Sprintf("%.2f", row.Result.Confidence)
			}
		}
		verdict := "FAIL"
		if row.Passed {
			verdict = "PASS"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", row.Case.Question, row.Case.Expectation, outcome, confidence, verdict)
	}
	_ = tw.Flush()

	passed := usecase.CountPassed(rows)
	fmt.Printf("\n%d/%d passed\n", passed, len(rows))
	if passed != len(rows) {
		os.Exit(1)
	}
}
