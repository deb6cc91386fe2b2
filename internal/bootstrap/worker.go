package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/policy-qa/internal/config"
	"github.com/kirillkom/policy-qa/internal/core/ports"
	"github.com/kirillkom/policy-qa/internal/core/usecase"
	"github.com/kirillkom/policy-qa/internal/infrastructure/queue/nats"
	"github.com/kirillkom/policy-qa/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/policy-qa/internal/observability/metrics"
)

const traceRecordTimeout = 30 * time.Second

// Worker consumes published answer traces and stores them in Postgres.
type Worker struct {
	Config  config.Config
	Logger  *slog.Logger
	Metrics *metrics.WorkerMetrics

	subscriber ports.TraceSubscriber
	recorder   ports.AuditRecorder
	closeFn    func()
}

func NewWorker(ctx context.Context, cfg config.Config, service string, logger *slog.Logger) (*Worker, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewAuditRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ClientName: service,
		QueueGroup: nats.DefaultQueueGroup,
		Logger:     logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init audit queue: %w", err)
	}

	return newWorker(cfg, logger, metrics.NewWorkerMetrics(service), queue, usecase.NewRecordAuditUseCase(repo), func() {
		queue.Close()
		_ = db.Close()
	}), nil
}

func newWorker(
	cfg config.Config,
	logger *slog.Logger,
	m *metrics.WorkerMetrics,
	subscriber ports.TraceSubscriber,
	recorder ports.AuditRecorder,
	closeFn func(),
) *Worker {
	return &Worker{
		Config:     cfg,
		Logger:     logger,
		Metrics:    m,
		subscriber: subscriber,
		recorder:   recorder,
		closeFn:    closeFn,
	}
}

// Run blocks until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	w.Logger.Info("worker_subscribed", "subject", w.Config.NATSSubject)
	return w.subscriber.SubscribeAnswerTraces(ctx, w.handle)
}

func (w *Worker) handle(ctx context.Context, payload []byte) error {
	var envelope struct {
		CreatedAt time.Time `json:"created_at"`
	}
	if err := json.Unmarshal(payload, &envelope); err == nil && !envelope.CreatedAt.IsZero() {
		w.Metrics.ObserveQueueLag(time.Since(envelope.CreatedAt))
	}

	recordCtx, cancel := context.WithTimeout(ctx, traceRecordTimeout)
	defer cancel()

	start := time.Now()
	w.Metrics.StartTrace()
	err := w.recorder.RecordTrace(recordCtx, payload)
	w.Metrics.FinishTrace(time.Since(start), err)
	return err
}

func (w *Worker) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}
