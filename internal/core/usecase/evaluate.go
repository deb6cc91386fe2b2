package usecase

import (
	"context"

	"github.com/kirillkom/policy-qa/internal/core/domain"
	"github.com/kirillkom/policy-qa/internal/core/ports"
)

type Expectation string

const (
	ExpectAnswerable   Expectation = "Answerable"
	ExpectPartial      Expectation = "Partial"
	ExpectUnanswerable Expectation = "Unanswerable"
	ExpectOutOfScope   Expectation = "Out of Scope"
)

type EvaluationCase struct {
	Question    string
	Expectation Expectation
}

// DefaultEvaluationCases covers the shipping and refund sample corpus.
func DefaultEvaluationCases() []EvaluationCase {
	return []EvaluationCase{
		{Question: "How long does a refund take?", Expectation: ExpectAnswerable},
		{Question: "Can I cancel after shipping?", Expectation: ExpectPartial},
		{Question: "Do you ship internationally?", Expectation: ExpectAnswerable},
		{Question: "Is there a student discount?", Expectation: ExpectUnanswerable},
		{Question: "Who is the CEO?", Expectation: ExpectOutOfScope},
	}
}

type EvaluationRow struct {
	Case   EvaluationCase
	Result domain.AnswerResult
	Err    error
	Passed bool
}

type EvaluationSuite struct {
	answerer ports.PolicyAnswerer
	cases    []EvaluationCase
}

func NewEvaluationSuite(answerer ports.PolicyAnswerer, cases []EvaluationCase) *EvaluationSuite {
	if len(cases) == 0 {
		cases = DefaultEvaluationCases()
	}
	return &EvaluationSuite{answerer: answerer, cases: cases}
}

// Run asks every question in order. A failed query marks its row as failed and the run continues.
func (s *EvaluationSuite) Run(ctx context.Context) []EvaluationRow {
	rows := make([]EvaluationRow, 0, len(s.cases))
	for _, c := range s.cases {
		if ctx.Err() != nil {
			rows = append(rows, EvaluationRow{Case: c, Err: ctx.Err()})
			continue
		}
		result, err := s.answerer.Answer(ctx, c.Question)
		row := EvaluationRow{Case: c, Result: result, Err: err}
		row.Passed = err == nil && meetsExpectation(c.Expectation, result)
		rows = append(rows, row)
	}
	return rows
}

func meetsExpectation(expectation Expectation, result domain.AnswerResult) bool {
	switch expectation {
	case ExpectAnswerable:
		return !result.IsRefusal()
	case ExpectUnanswerable, ExpectOutOfScope:
		return result.IsRefusal()
	default:
		return true
	}
}

func CountPassed(rows []EvaluationRow) int {
	passed := 0
	for _, row := range rows {
		if row.Passed {
			passed++
		}
	}
	return passed
}
