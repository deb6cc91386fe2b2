package mcpadapter

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/policy-qa/internal/core/domain"
	"github.com/kirillkom/policy-qa/internal/core/ports"
)

const askPolicyQuestionTool = "ask_policy_question"

// NewServer exposes the answerer as a single MCP tool.
func NewServer(answerer ports.PolicyAnswerer, version string, logger *slog.Logger) *server.MCPServer {
	if logger == nil {
		logger = slog.Default()
	}
	s := server.NewMCPServer(
		"policy-qa",
		version,
		server.WithToolCapabilities(false),
	)
	s.AddTool(newAskPolicyQuestionTool(), handleAskPolicyQuestion(answerer, logger))
	return s
}

func newAskPolicyQuestionTool() mcp.Tool {
	return mcp.NewTool(askPolicyQuestionTool,
		mcp.WithDescription("Answer a question using only the company policy documents. "+
			"Returns the answer with its source files and confidence, or a fixed refusal sentence when the documents do not cover the question."),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("Natural-language question about company policy"),
		),
	)
}

func handleAskPolicyQuestion(answerer ports.PolicyAnswerer, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := request.RequireString("question")
		if err != nil || strings.TrimSpace(question) == "" {
			return mcp.NewToolResultError("question parameter is required"), nil
		}

		result, err := answerer.Answer(ctx, question)
		if err != nil {
			logger.Error("mcp_answer_failed",
				"tool", askPolicyQuestionTool,
				"error_kind", domain.ErrorKind(err),
				"error", err.Error(),
			)
			return mcp.NewToolResultError(toolErrorMessage(err)), nil
		}

		return mcp.NewToolResultText(result.PlainText()), nil
	}
}

func toolErrorMessage(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return "invalid question: " + err.Error()
	case domain.IsKind(err, domain.ErrRetrieval):
		return "could not search the policy documents, try again later"
	case domain.IsKind(err, domain.ErrGeneration):
		return "could not generate an answer, try again later"
	default:
		return "internal error"
	}
}
