package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kirillkom/policy-qa/internal/core/domain"
)

const defaultListLimit = 50

type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across worker replicas.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS answer_traces (
	id TEXT PRIMARY KEY,
	request_id TEXT,
	query TEXT NOT NULL,
	outcome TEXT NOT NULL,
	reason TEXT,
	error_kind TEXT,
	error_message TEXT,
	max_similarity DOUBLE PRECISION NOT NULL DEFAULT 0,
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	retrieved INTEGER NOT NULL DEFAULT 0,
	sources JSONB NOT NULL DEFAULT '[]'::jsonb,
	synthesizer_called BOOLEAN NOT NULL DEFAULT FALSE,
	retrieval_ms DOUBLE PRECISION NOT NULL DEFAULT 0,
	generation_ms DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_ms DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_answer_traces_created_at ON answer_traces(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_answer_traces_outcome_reason ON answer_traces(outcome, reason);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Save is idempotent on trace id; NATS may redeliver.
func (r *AuditRepository) Save(ctx context.Context, trace domain.AnswerTrace) error {
	sources := trace.Sources
	if sources == nil {
		sources = []string{}
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}
	createdAt := trace.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO answer_traces (
	id, request_id, query, outcome, reason, error_kind, error_message, max_similarity, confidence,
	retrieved, sources, synthesizer_called, retrieval_ms, generation_ms, total_ms, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
ON CONFLICT (id) DO NOTHING
`,
		trace.ID, trace.RequestID, trace.Query, trace.Outcome, string(trace.Reason), trace.ErrorKind, trace.Error,
		trace.MaxSimilarity, trace.Confidence, trace.Retrieved, sourcesJSON, trace.SynthesizerCalled,
		millis(trace.RetrievalDuration), millis(trace.GenerationDuration), millis(trace.TotalDuration), createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert answer trace: %w", err)
	}
	return nil
}

func (r *AuditRepository) ListRecent(ctx context.Context, limit int) ([]domain.AnswerTrace, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT id, request_id, query, outcome, reason, error_kind, error_message, max_similarity, confidence,
	retrieved, sources, synthesizer_called, retrieval_ms, generation_ms, total_ms, created_at
FROM answer_traces
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query answer traces: %w", err)
	}
	defer rows.Close()

	out := make([]domain.AnswerTrace, 0, limit)
	for rows.Next() {
		var (
			trace                        domain.AnswerTrace
			requestID, reason, errorKind sql.NullString
			errorMessage                 sql.NullString
			sourcesRaw                   []byte
			retrievalMS, generationMS    float64
			totalMS                      float64
		)
		if err := rows.Scan(
			&trace.ID, &requestID, &trace.Query, &trace.Outcome, &reason, &errorKind, &errorMessage,
			&trace.MaxSimilarity, &trace.Confidence, &trace.Retrieved, &sourcesRaw, &trace.SynthesizerCalled,
			&retrievalMS, &generationMS, &totalMS, &trace.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan answer trace: %w", err)
		}
		if err := json.Unmarshal(sourcesRaw, &trace.Sources); err != nil {
			return nil, fmt.Errorf("unmarshal sources: %w", err)
		}
		trace.RequestID = requestID.String
		trace.Reason = domain.RefusalReason(reason.String)
		trace.ErrorKind = errorKind.String
		trace.Error = errorMessage.String
		trace.RetrievalDuration = fromMillis(retrievalMS)
		trace.GenerationDuration = fromMillis(generationMS)
		trace.TotalDuration = fromMillis(totalMS)
		out = append(out, trace)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate answer traces: %w", err)
	}
	return out, nil
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}

func fromMillis(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
