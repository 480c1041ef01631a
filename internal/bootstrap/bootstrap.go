package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/resume-ranker/internal/config"
	"github.com/kirillkom/resume-ranker/internal/core/domain"
	"github.com/kirillkom/resume-ranker/internal/core/ports"
	"github.com/kirillkom/resume-ranker/internal/core/usecase"
	rediscache "github.com/kirillkom/resume-ranker/internal/infrastructure/cache/redis"
	"github.com/kirillkom/resume-ranker/internal/infrastructure/chunking"
	"github.com/kirillkom/resume-ranker/internal/infrastructure/embedding"
	"github.com/kirillkom/resume-ranker/internal/infrastructure/embedding/cached"
	"github.com/kirillkom/resume-ranker/internal/infrastructure/embedding/hashing"
	"github.com/kirillkom/resume-ranker/internal/infrastructure/embedding/ollama"
	"github.com/kirillkom/resume-ranker/internal/infrastructure/extractor/document"
	"github.com/kirillkom/resume-ranker/internal/infrastructure/parser/heuristic"
	memoryqueue "github.com/kirillkom/resume-ranker/internal/infrastructure/queue/memory"
	"github.com/kirillkom/resume-ranker/internal/infrastructure/queue/nats"
	"github.com/kirillkom/resume-ranker/internal/infrastructure/report/xlsx"
	"github.com/kirillkom/resume-ranker/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/resume-ranker/internal/infrastructure/resilience"
	"github.com/kirillkom/resume-ranker/internal/infrastructure/storage/localfs"
	memorystore "github.com/kirillkom/resume-ranker/internal/infrastructure/vector/memory"
	"github.com/kirillkom/resume-ranker/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/resume-ranker/internal/observability/metrics"
)

const embeddingCacheTTL = 7 * 24 * time.Hour

type App struct {
	Config config.Config

	Queue ports.TaskQueue
	// InProcessQueue is set when the queue lives in this process, in which
	// case the API must run the worker pool itself.
	InProcessQueue bool

	SubmitUC    *usecase.SubmitResumeUseCase
	ProcessUC   ports.ResumeProcessor
	MatchUC     *usecase.MatchUseCase
	JobUC       *usecase.JobUseCase
	ReadinessUC *usecase.ReadinessUseCase
	RecoverUC   *usecase.RecoverPendingUseCase
	Exporter    *xlsx.Exporter

	WorkerMetrics *metrics.WorkerMetrics
	HTTPMetrics   *metrics.HTTPServerMetrics

	closers []func()
}

type stores struct {
	resumes ports.ResumeStore
	jobs    ports.JobStore
	lister  ports.PendingLister
}

// New wires every adapter selected by cfg. service names the process in logs
// and metrics.
func New(ctx context.Context, cfg config.Config, service string) (app *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	app = &App{Config: cfg}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	executor := resilience.NewExecutor(cfg.Resilience())
	var pingers []ports.HealthPinger

	st, storePingers, err := app.openStores(ctx, cfg, executor)
	if err != nil {
		return nil, err
	}
	pingers = append(pingers, storePingers...)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	embedder, cachePinger, err := app.buildEmbedder(cfg.Embedding(), cfg.RedisURL, executor)
	if err != nil {
		return nil, err
	}
	if cachePinger != nil {
		pingers = append(pingers, cachePinger)
	}

	parser, err := buildParser(cfg.SkillsVocabularyFile)
	if err != nil {
		return nil, err
	}

	queue, notifier, queuePinger, err := app.openQueue(cfg, executor)
	if err != nil {
		return nil, err
	}
	if queuePinger != nil {
		pingers = append(pingers, queuePinger)
	}

	app.WorkerMetrics = metrics.NewWorkerMetrics(service)
	app.HTTPMetrics = metrics.NewHTTPServerMetrics(service)

	locks := usecase.NewKeyedLock()
	pipeline := cfg.Pipeline()
	app.SubmitUC = usecase.NewSubmitResumeUseCase(st.resumes, storage, queue, locks, usecase.WithStaleAfter(pipeline.StaleAfter))
	app.ProcessUC = usecase.NewProcessResumeUseCase(
		st.resumes,
		storage,
		document.NewExtractor(),
		parser,
		embedder,
		locks,
		pipeline.StageTimeout,
		usecase.WithNotifier(notifier),
		usecase.WithObserver(app.WorkerMetrics),
	)
	app.MatchUC, err = usecase.NewMatchUseCase(st.resumes, st.jobs, parser, embedder, cfg.Matching(), app.HTTPMetrics)
	if err != nil {
		return nil, fmt.Errorf("init matcher: %w", err)
	}
	app.JobUC = usecase.NewJobUseCase(st.jobs, parser, embedder)
	app.ReadinessUC = usecase.NewReadinessUseCase(0, pingers...)
	app.RecoverUC = usecase.NewRecoverPendingUseCase(st.lister, st.resumes, queue, locks, pipeline.StaleAfter)
	app.Exporter = xlsx.NewExporter()
	app.Queue = queue

	slog.Info("app_initialized",
		"store_backend", cfg.StoreBackend,
		"queue_backend", cfg.QueueBackend,
		"embedding_provider", cfg.EmbeddingProvider,
		"embedding_dimension", cfg.EmbeddingDimension,
		"embedding_cache", cachePinger != nil,
	)
	return app, nil
}

func (a *App) openStores(ctx context.Context, cfg config.Config, executor *resilience.Executor) (stores, []ports.HealthPinger, error) {
	dim := cfg.EmbeddingDimension
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return stores{}, nil, fmt.Errorf("open postgres: %w", err)
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		if err := postgres.EnsureSchema(ctx, db, dim); err != nil {
			return stores{}, nil, fmt.Errorf("ensure schema: %w", err)
		}
		repo := postgres.NewResumeRepository(db, dim)
		return stores{resumes: repo, jobs: postgres.NewJobRepository(db, dim), lister: repo},
			[]ports.HealthPinger{postgres.NewPinger(db)}, nil
	case config.BackendQdrant:
		client := qdrant.NewClient(cfg.QdrantURL, executor)
		resumes := qdrant.NewResumeStore(client, cfg.QdrantCollection, dim)
		jobs := qdrant.NewJobStore(client, cfg.QdrantCollection+"_jobs", dim)
		return stores{resumes: resumes, jobs: jobs, lister: resumes},
			[]ports.HealthPinger{qdrant.NewPinger(client)}, nil
	default:
		store := memorystore.NewStore(dim)
		return stores{resumes: store, jobs: store, lister: store}, nil, nil
	}
}

// buildEmbedder composes model -> chunk pooling -> optional Redis cache.
func (a *App) buildEmbedder(cfg config.EmbeddingSettings, redisURL string, executor *resilience.Executor) (ports.Embedder, ports.HealthPinger, error) {
	var model embedding.ChunkModel
	switch cfg.Provider {
	case config.ProviderOllama:
		model = ollama.New(cfg.OllamaURL, cfg.Model, cfg.Dimension, executor)
	default:
		model = hashing.New(cfg.Dimension)
	}
	pooler := embedding.NewPooler(model, chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap, cfg.MaxChunks))

	if redisURL == "" {
		return pooler, nil, nil
	}
	client, err := rediscache.NewClient(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("init redis: %w", err)
	}
	a.closers = append(a.closers, func() { _ = client.Close() })

	cache := rediscache.NewEmbeddingCache(client, "emb:", embeddingCacheTTL)
	cacheModel := fmt.Sprintf("%s/%d/%d/%d", pooler.ModelName(), cfg.Dimension, cfg.ChunkSize, cfg.MaxChunks)
	return cached.New(pooler, cache, cacheModel), rediscache.NewPinger(client), nil
}

func buildParser(vocabularyFile string) (*heuristic.Parser, error) {
	vocab := heuristic.DefaultVocabulary()
	if vocabularyFile != "" {
		loaded, err := heuristic.LoadVocabularyFile(vocabularyFile)
		if err != nil {
			return nil, fmt.Errorf("load skills vocabulary: %w", err)
		}
		vocab = loaded
	}
	return heuristic.New(vocab), nil
}

func (a *App) openQueue(cfg config.Config, executor *resilience.Executor) (ports.TaskQueue, ports.CompletionNotifier, ports.HealthPinger, error) {
	pipeline := cfg.Pipeline()
	if cfg.QueueBackend == config.BackendNATS {
		q, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			Concurrency:        pipeline.WorkerConcurrency,
			ResilienceExecutor: executor,
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("init message queue: %w", err)
		}
		a.closers = append(a.closers, q.Close)
		return q, q, nats.NewPinger(q), nil
	}

	a.InProcessQueue = true
	notifier := usecase.NotifierFunc(func(_ context.Context, record domain.ResumeRecord) error {
		slog.Info("resume_completed",
			"resume_id", record.ID,
			"status", string(record.Status),
			"failed_stage", string(record.FailedStage),
		)
		return nil
	})
	return memoryqueue.New(pipeline.QueueBuffer, pipeline.WorkerConcurrency), notifier, nil, nil
}

// subscriptionSignaler is implemented by queues that report when their
// consumers are attached.
type subscriptionSignaler interface {
	Subscribed() <-chan struct{}
}

// RunWorkers consumes the task queue until ctx is cancelled. Work interrupted
// by a restart is re-published once the consumers are attached, so it is
// neither dropped by an unsubscribed subject nor stuck behind a full buffer.
func (a *App) RunWorkers(ctx context.Context) error {
	go a.recoverWhenSubscribed(ctx)
	return a.Queue.SubscribeResumeSubmitted(ctx, func(ctx context.Context, resumeID string) error {
		return a.ProcessUC.ProcessByID(ctx, resumeID)
	})
}

func (a *App) recoverWhenSubscribed(ctx context.Context) {
	if s, ok := a.Queue.(subscriptionSignaler); ok {
		select {
		case <-ctx.Done():
			return
		case <-s.Subscribed():
		}
	}
	if _, err := a.RecoverUC.Recover(ctx); err != nil && ctx.Err() == nil {
		slog.Warn("pending_recovery_failed", "error", err)
	}
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
